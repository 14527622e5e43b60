// Package classify assigns finished measurements to severity bands and
// derives the values written into host contribution fields.
package classify

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/mappingforchange/geokey-airquality/internal/model"
)

// Date and time formats used on measurement sheets.
const (
	DateLayout = "02/01/2006"
	TimeLayout = "15:04"
)

// Band maps a result onto its severity band.
func Band(result float64) model.CategoryType {
	switch {
	case result < 40:
		return model.CategoryBelow40
	case result < 60:
		return model.Category40To60
	case result < 80:
		return model.Category60To80
	case result < 100:
		return model.Category80To100
	default:
		return model.CategoryAbove100
	}
}

// ParseResult reads a results property, which devices send either as a
// number or as numeric text.
func ParseResult(v any) (float64, bool) {
	switch r := v.(type) {
	case float64:
		return r, !math.IsNaN(r)
	case int:
		return float64(r), true
	case int64:
		return float64(r), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(r), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

// FormatResult renders a result the way it is stored on contributions:
// integral values keep one decimal place ("45.0"), magnitudes from 1e16 up
// or below 1e-4 use exponent form ("1e+21").
func FormatResult(f float64) string {
	if a := math.Abs(f); a >= 1e16 || (a != 0 && a < 1e-4) {
		return strconv.FormatFloat(f, 'e', -1, 64)
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}

// ExposureMinutes returns the whole minutes between start and finish.
func ExposureMinutes(started, finished time.Time) int64 {
	return int64(finished.Sub(started) / time.Minute)
}

// ExposureHours returns the whole hours between start and finish.
func ExposureHours(started, finished time.Time) int64 {
	return int64(finished.Sub(started) / time.Hour)
}

// FieldValues derives the value of every sheet role for a finished
// measurement. Roles whose source value is missing are left out. Dates and
// times are rendered in loc.
func FieldValues(m *model.Measurement, location *model.Location, result float64, loc *time.Location) map[model.FieldType]string {
	if loc == nil {
		loc = time.UTC
	}
	values := map[model.FieldType]string{
		model.FieldResults: FormatResult(result),
		model.FieldDateOut: m.Started.In(loc).Format(DateLayout),
		model.FieldTimeOut: m.Started.In(loc).Format(TimeLayout),
	}

	if m.Finished != nil {
		values[model.FieldDateCollected] = m.Finished.In(loc).Format(DateLayout)
		values[model.FieldTimeCollected] = m.Finished.In(loc).Format(TimeLayout)
		values[model.FieldExposureMin] = strconv.FormatInt(ExposureMinutes(m.Started, *m.Finished), 10)
	}

	if location != nil {
		if location.Properties.Has("distance") {
			values[model.FieldDistanceFromRoad] = location.Properties.String("distance") + "m"
		}
		if location.Properties.Has("height") {
			values[model.FieldHeight] = location.Properties.String("height") + "m"
		}
		if location.Properties.Has("characteristics") {
			values[model.FieldSiteCharacteristics] = location.Properties.String("characteristics")
		}
	}
	if m.Properties.Has("additional_details") {
		values[model.FieldAdditionalDetails] = m.Properties.String("additional_details")
	}
	return values
}
