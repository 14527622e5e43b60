package serialize

import (
	"encoding/json"
	"time"

	"github.com/mappingforchange/geokey-airquality/internal/geometry"
	"github.com/mappingforchange/geokey-airquality/internal/model"
)

// Feature is the GeoJSON representation of a location.
type Feature struct {
	Type         string            `json:"type"`
	Geometry     json.RawMessage   `json:"geometry"`
	ID           int64             `json:"id"`
	Name         string            `json:"name"`
	Created      string            `json:"created"`
	Properties   model.Properties  `json:"properties"`
	Measurements []MeasurementView `json:"measurements"`
}

// MeasurementView is the wire representation of a measurement.
type MeasurementView struct {
	ID         int64            `json:"id"`
	Barcode    string           `json:"barcode"`
	Started    string           `json:"started"`
	Finished   *string          `json:"finished"`
	Properties model.Properties `json:"properties"`
}

// LocationFeature renders a location with its measurements.
func LocationFeature(l *model.Location) (*Feature, error) {
	geo, err := geometry.MarshalGeoJSON(l.Geometry)
	if err != nil {
		return nil, err
	}

	f := &Feature{
		Type:         "Feature",
		Geometry:     geo,
		ID:           l.ID,
		Name:         l.Name,
		Created:      FormatTime(l.Created),
		Properties:   nonNil(l.Properties),
		Measurements: make([]MeasurementView, 0, len(l.Measurements)),
	}
	for i := range l.Measurements {
		f.Measurements = append(f.Measurements, Measurement(&l.Measurements[i]))
	}
	return f, nil
}

// LocationFeatures renders a list of locations.
func LocationFeatures(locs []model.Location) ([]*Feature, error) {
	out := make([]*Feature, 0, len(locs))
	for i := range locs {
		f, err := LocationFeature(&locs[i])
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

// Measurement renders a single measurement.
func Measurement(m *model.Measurement) MeasurementView {
	v := MeasurementView{
		ID:         m.ID,
		Barcode:    m.Barcode,
		Started:    FormatTime(m.Started),
		Properties: nonNil(m.Properties),
	}
	if m.Finished != nil {
		s := FormatTime(*m.Finished)
		v.Finished = &s
	}
	return v
}

// FormatTime renders timestamps as RFC 3339 in UTC.
func FormatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func nonNil(p model.Properties) model.Properties {
	if p == nil {
		return model.Properties{}
	}
	return p
}
