package sheet

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/mappingforchange/geokey-airquality/internal/model"
)

func entries() []Entry {
	started := time.Date(2026, 9, 1, 8, 5, 0, 0, time.UTC)
	finished := started.Add(28*24*time.Hour + 90*time.Minute)
	loc := model.Location{
		Name:       "Euston Road",
		Properties: model.Properties{"height": 2.5, "distance": 0.0, "characteristics": "Bus stop"},
	}
	return []Entry{
		{
			Measurement: model.Measurement{
				Barcode:    "145627",
				Started:    started,
				Finished:   &finished,
				Properties: model.Properties{"additional_details": "Rain"},
			},
			Location: loc,
			AddedBy:  "Ann",
		},
		{
			Measurement: model.Measurement{Barcode: "145628", Started: started},
			Location:    loc,
			AddedBy:     "Ann",
		},
	}
}

func TestBuild(t *testing.T) {
	s := Build(entries(), time.UTC, false)

	assert.Equal(t, Columns, s.Header)
	require.Len(t, s.Rows, 2)
	assert.Equal(t, []string{
		"145627", "Euston Road", "Bus stop", "2.5", "", "Rain",
		"01/09/2026", "29/09/2026", "08:05", "09:35", "40410", "673",
	}, s.Rows[0])
	assert.Equal(t, []string{
		"145628", "Euston Road", "Bus stop", "2.5", "", "",
		"01/09/2026", "", "08:05", "", "", "",
	}, s.Rows[1])
}

func TestBuild_AddedBy(t *testing.T) {
	s := Build(entries(), nil, true)

	assert.Equal(t, ColumnAddedBy, s.Header[len(s.Header)-1])
	assert.Equal(t, "Ann", s.Rows[0][12])
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Build(entries()[:1], time.UTC, false).WriteCSV(&buf))

	assert.Equal(t,
		"Barcode,Location,Site characteristics,Height from ground (m),Distance from the road (m),Additional details,Date out,Date in,Time out,Time in,Exposure time (min),Exposure time (hr)\n"+
			"145627,Euston Road,Bus stop,2.5,,Rain,01/09/2026,29/09/2026,08:05,09:35,40410,673\n",
		buf.String())
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Build(entries(), time.UTC, true).Write(&buf, FormatXLSX))

	f, err := xlsx.OpenBinary(buf.Bytes())
	require.NoError(t, err)
	require.Len(t, f.Sheets, 1)
	rows := f.Sheets[0].Rows
	require.Len(t, rows, 3)
	assert.Equal(t, "Barcode", rows[0].Cells[0].String())
	assert.Equal(t, "145628", rows[2].Cells[0].String())
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("xlsx")
	require.NoError(t, err)
	assert.Equal(t, FormatXLSX, f)
	assert.Contains(t, f.ContentType(), "spreadsheetml")
	assert.Equal(t, "text/csv", FormatCSV.ContentType())

	_, err = ParseFormat("pdf")
	assert.Error(t, err)
}

func TestExportFilename(t *testing.T) {
	tests := []struct {
		day  time.Time
		want string
	}{
		{time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC), "Measurements - Monday, 19th of October, 2026.csv"},
		{time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC), "Measurements - Thursday, 1st of October, 2026.csv"},
		{time.Date(2026, 10, 22, 9, 0, 0, 0, time.UTC), "Measurements - Thursday, 22nd of October, 2026.csv"},
		{time.Date(2026, 10, 23, 9, 0, 0, 0, time.UTC), "Measurements - Friday, 23rd of October, 2026.csv"},
		{time.Date(2026, 10, 11, 9, 0, 0, 0, time.UTC), "Measurements - Sunday, 11th of October, 2026.csv"},
		{time.Date(2026, 10, 13, 9, 0, 0, 0, time.UTC), "Measurements - Tuesday, 13th of October, 2026.csv"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ExportFilename(tt.day, FormatCSV))
	}
}
