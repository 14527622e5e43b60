// Package geometry converts location points between GeoJSON, EWKB, and go-geom.
package geometry

import (
	"encoding/json"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"
	"github.com/twpayne/go-geom/encoding/geojson"
)

// SRID is the spatial reference of every stored point (WGS84).
const SRID = 4326

// Messages reported when a submitted geometry is rejected.
const (
	MsgOnlyPoints         = "Only points can be used."
	MsgCoordinatesMissing = "Coordinates are not set."
	MsgCoordinatesInvalid = "Coordinates are incorrect."
)

// InvalidError describes why a GeoJSON geometry could not be used.
type InvalidError struct {
	Message string
}

func (e *InvalidError) Error() string {
	return e.Message
}

// NewPoint builds a WGS84 point from longitude and latitude.
func NewPoint(lon, lat float64) *geom.Point {
	return geom.NewPointFlat(geom.XY, []float64{lon, lat}).SetSRID(SRID)
}

// ParsePoint reads a decoded GeoJSON geometry object. Anything other than
// a point with two numeric coordinates is rejected with an *InvalidError.
func ParsePoint(raw any) (*geom.Point, error) {
	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, &InvalidError{Message: MsgOnlyPoints}
	}
	if typ, _ := obj["type"].(string); typ != "Point" {
		return nil, &InvalidError{Message: MsgOnlyPoints}
	}

	coords, ok := obj["coordinates"]
	if !ok || coords == nil {
		return nil, &InvalidError{Message: MsgCoordinatesMissing}
	}
	list, ok := coords.([]any)
	if !ok || len(list) < 2 {
		return nil, &InvalidError{Message: MsgCoordinatesInvalid}
	}

	x, okX := number(list[0])
	y, okY := number(list[1])
	if !okX || !okY {
		return nil, &InvalidError{Message: MsgCoordinatesInvalid}
	}
	return NewPoint(x, y), nil
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// MarshalGeoJSON encodes the point as a GeoJSON geometry object.
func MarshalGeoJSON(p *geom.Point) (json.RawMessage, error) {
	if p == nil {
		return json.RawMessage("null"), nil
	}
	data, err := geojson.Marshal(p)
	if err != nil {
		return nil, eris.Wrap(err, "geometry: marshal geojson")
	}
	return data, nil
}

// MarshalEWKB encodes the point as little-endian EWKB carrying its SRID.
func MarshalEWKB(p *geom.Point) ([]byte, error) {
	if p == nil {
		return nil, eris.New("geometry: nil point")
	}
	if p.SRID() == 0 {
		p = geom.NewPointFlat(p.Layout(), p.FlatCoords()).SetSRID(SRID)
	}
	data, err := ewkb.Marshal(p, ewkb.NDR)
	if err != nil {
		return nil, eris.Wrap(err, "geometry: encode EWKB")
	}
	return data, nil
}

// UnmarshalEWKB decodes a point previously written by MarshalEWKB or by
// PostGIS ST_AsEWKB.
func UnmarshalEWKB(data []byte) (*geom.Point, error) {
	g, err := ewkb.Unmarshal(data)
	if err != nil {
		return nil, eris.Wrap(err, "geometry: decode EWKB")
	}
	p, ok := g.(*geom.Point)
	if !ok {
		return nil, eris.Errorf("geometry: expected point, got %T", g)
	}
	return p, nil
}
