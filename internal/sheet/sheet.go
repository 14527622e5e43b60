// Package sheet builds measurement sheets and writes them as CSV or XLSX.
package sheet

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/mappingforchange/geokey-airquality/internal/classify"
	"github.com/mappingforchange/geokey-airquality/internal/model"
)

// Columns of a sheet, in order. ColumnAddedBy is only present on exports.
var Columns = []string{
	"Barcode",
	"Location",
	"Site characteristics",
	"Height from ground (m)",
	"Distance from the road (m)",
	"Additional details",
	"Date out",
	"Date in",
	"Time out",
	"Time in",
	"Exposure time (min)",
	"Exposure time (hr)",
}

// ColumnAddedBy names the creator column of full exports.
const ColumnAddedBy = "Added by"

// Entry is one measurement with its location and the creator's name.
type Entry struct {
	Measurement model.Measurement
	Location    model.Location
	AddedBy     string
}

// Sheet is a header and its rows of text cells.
type Sheet struct {
	Header []string
	Rows   [][]string
}

// Build renders entries into rows. Dates and times use loc. Missing, empty
// and zero values become empty cells.
func Build(entries []Entry, loc *time.Location, withAddedBy bool) *Sheet {
	if loc == nil {
		loc = time.UTC
	}
	header := append([]string{}, Columns...)
	if withAddedBy {
		header = append(header, ColumnAddedBy)
	}

	s := &Sheet{Header: header, Rows: make([][]string, 0, len(entries))}
	for _, e := range entries {
		m := e.Measurement
		l := e.Location

		row := []string{
			cell(m.Barcode),
			cell(l.Name),
			cell(l.Properties["characteristics"]),
			cell(l.Properties["height"]),
			cell(l.Properties["distance"]),
			cell(m.Properties["additional_details"]),
			m.Started.In(loc).Format(classify.DateLayout),
			"",
			m.Started.In(loc).Format(classify.TimeLayout),
			"",
			"",
			"",
		}
		if m.Finished != nil {
			row[7] = m.Finished.In(loc).Format(classify.DateLayout)
			row[9] = m.Finished.In(loc).Format(classify.TimeLayout)
			row[10] = cell(classify.ExposureMinutes(m.Started, *m.Finished))
			row[11] = cell(classify.ExposureHours(m.Started, *m.Finished))
		}
		if withAddedBy {
			row = append(row, cell(e.AddedBy))
		}
		s.Rows = append(s.Rows, row)
	}
	return s
}

func cell(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		if t == 0 {
			return ""
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int64:
		if t == 0 {
			return ""
		}
		return strconv.FormatInt(t, 10)
	case int:
		if t == 0 {
			return ""
		}
		return strconv.Itoa(t)
	case bool:
		if !t {
			return ""
		}
		return "True"
	default:
		return fmt.Sprint(t)
	}
}

// WriteCSV writes the sheet as CSV.
func (s *Sheet) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(s.Header); err != nil {
		return eris.Wrap(err, "sheet: write csv header")
	}
	if err := cw.WriteAll(s.Rows); err != nil {
		return eris.Wrap(err, "sheet: write csv rows")
	}
	return nil
}

// WriteXLSX writes the sheet as a single-sheet workbook.
func (s *Sheet) WriteXLSX(w io.Writer) error {
	f := xlsx.NewFile()
	xs, err := f.AddSheet("Measurements")
	if err != nil {
		return eris.Wrap(err, "sheet: add xlsx sheet")
	}
	for _, values := range append([][]string{s.Header}, s.Rows...) {
		row := xs.AddRow()
		for _, v := range values {
			row.AddCell().SetString(v)
		}
	}
	if err := f.Write(w); err != nil {
		return eris.Wrap(err, "sheet: write xlsx")
	}
	return nil
}

// Format is an output file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatCSV, FormatXLSX:
		return Format(s), nil
	}
	return "", eris.Errorf("sheet: unknown format %q", s)
}

// ContentType returns the MIME type of the format.
func (f Format) ContentType() string {
	if f == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv"
}

// Write writes the sheet in the given format.
func (s *Sheet) Write(w io.Writer, f Format) error {
	if f == FormatXLSX {
		return s.WriteXLSX(w)
	}
	return s.WriteCSV(w)
}

// ExportFilename names an export file after the day it was made, e.g.
// "Measurements - Monday, 19th of October, 2026.csv".
func ExportFilename(day time.Time, f Format) string {
	return fmt.Sprintf("Measurements - %s, %d%s of %s, %d.%s",
		day.Weekday(), day.Day(), ordinal(day.Day()), day.Month(), day.Year(), f)
}

func ordinal(n int) string {
	if n%100 >= 11 && n%100 <= 13 {
		return "th"
	}
	switch n % 10 {
	case 1:
		return "st"
	case 2:
		return "nd"
	case 3:
		return "rd"
	}
	return "th"
}
