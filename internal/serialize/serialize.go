// Package serialize validates mobile client payloads and renders locations
// and measurements back to the wire format.
package serialize

import (
	"errors"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/twpayne/go-geom"

	"github.com/mappingforchange/geokey-airquality/internal/geometry"
	"github.com/mappingforchange/geokey-airquality/internal/model"
)

const (
	maxNameLength    = 100
	maxBarcodeLength = 25
)

// Allowed property keys; anything else in a payload is dropped.
var (
	locationPropertyKeys    = []string{"height", "distance", "characteristics"}
	measurementPropertyKeys = []string{"results", "additional_details"}
)

// ValidationErrors maps a payload field to the reason it was rejected.
type ValidationErrors map[string]string

func (e ValidationErrors) Error() string {
	keys := make([]string, 0, len(e))
	for k := range e {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ": " + e[k]
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// LocationData is a validated location payload.
type LocationData struct {
	Name       string
	Geometry   *geom.Point
	Properties model.Properties
}

// ValidateLocation checks a location payload. All problems are collected
// and returned together as ValidationErrors.
func ValidateLocation(data map[string]any) (*LocationData, error) {
	errs := ValidationErrors{}
	out := &LocationData{}

	payload := model.Properties(data)
	if !payload.Has("name") {
		errs["name"] = "Name must be specified."
	} else {
		out.Name = payload.String("name")
		if utf8.RuneCountInString(out.Name) > maxNameLength {
			errs["name"] = "Ensure this field has no more than 100 characters."
		}
	}

	pt, err := geometry.ParsePoint(data["geometry"])
	if err != nil {
		var invalid *geometry.InvalidError
		if !errors.As(err, &invalid) {
			return nil, err
		}
		errs["geometry"] = invalid.Message
	}
	out.Geometry = pt

	out.Properties = filterProperties(data["properties"], locationPropertyKeys)

	if len(errs) > 0 {
		return nil, errs
	}
	return out, nil
}

// MeasurementData is a validated measurement payload.
type MeasurementData struct {
	Barcode    string
	Properties model.Properties
}

// ValidateMeasurement checks a measurement payload. Numeric barcodes are
// accepted and stored as text.
func ValidateMeasurement(data map[string]any) (*MeasurementData, error) {
	errs := ValidationErrors{}
	out := &MeasurementData{}

	payload := model.Properties(data)
	if !payload.Has("barcode") {
		errs["barcode"] = "Barcode must be specified."
	} else {
		out.Barcode = payload.String("barcode")
		if utf8.RuneCountInString(out.Barcode) > maxBarcodeLength {
			errs["barcode"] = "Ensure this field has no more than 25 characters."
		}
	}

	out.Properties = filterProperties(data["properties"], measurementPropertyKeys)

	if len(errs) > 0 {
		return nil, errs
	}
	return out, nil
}

func filterProperties(raw any, allowed []string) model.Properties {
	out := model.Properties{}
	props, ok := raw.(map[string]any)
	if !ok {
		return out
	}
	for _, key := range allowed {
		if v, ok := props[key]; ok {
			out[key] = v
		}
	}
	return out
}
