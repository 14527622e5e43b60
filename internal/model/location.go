package model

import (
	"strconv"
	"time"

	"github.com/twpayne/go-geom"
)

// Properties is a free-form JSON object attached to locations and measurements.
type Properties map[string]any

// String returns the property as a string, or "" when absent or null.
func (p Properties) String(key string) string {
	v, ok := p[key]
	if !ok || v == nil {
		return ""
	}
	return stringify(v)
}

// Has reports whether the property is present and not null.
func (p Properties) Has(key string) bool {
	v, ok := p[key]
	return ok && v != nil
}

// Location is a place where measurements are collected.
type Location struct {
	ID           int64         `json:"id"`
	Name         string        `json:"name"`
	Geometry     *geom.Point   `json:"-"`
	CreatorID    int64         `json:"creator_id"`
	Created      time.Time     `json:"created"`
	Properties   Properties    `json:"properties"`
	Measurements []Measurement `json:"measurements,omitempty"`
}

// Measurement is a single diffusion tube sample at a location.
type Measurement struct {
	ID         int64      `json:"id"`
	LocationID int64      `json:"location_id"`
	Barcode    string     `json:"barcode"`
	CreatorID  int64      `json:"creator_id"`
	Started    time.Time  `json:"started"`
	Finished   *time.Time `json:"finished,omitempty"`
	Properties Properties `json:"properties"`
}

// Exposure returns how long the tube was out. Zero while unfinished.
func (m *Measurement) Exposure() time.Duration {
	if m.Finished == nil {
		return 0
	}
	return m.Finished.Sub(m.Started)
}

// stringify renders JSON scalar values the way they are shown on sheets:
// integral floats lose their fraction, other values use their natural form.
func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}
