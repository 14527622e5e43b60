package geometry

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, s string) any {
	t.Helper()
	var v any
	require.NoError(t, json.Unmarshal([]byte(s), &v))
	return v
}

func TestParsePoint(t *testing.T) {
	t.Parallel()

	p, err := ParsePoint(decode(t, `{"type":"Point","coordinates":[-0.134,51.524]}`))
	require.NoError(t, err)
	assert.InDelta(t, -0.134, p.X(), 1e-9)
	assert.InDelta(t, 51.524, p.Y(), 1e-9)
	assert.Equal(t, SRID, p.SRID())
}

func TestParsePoint_Rejected(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"not an object", `"Point"`, MsgOnlyPoints},
		{"null", `null`, MsgOnlyPoints},
		{"line", `{"type":"LineString","coordinates":[[0,0],[1,1]]}`, MsgOnlyPoints},
		{"no coordinates", `{"type":"Point"}`, MsgCoordinatesMissing},
		{"null coordinates", `{"type":"Point","coordinates":null}`, MsgCoordinatesMissing},
		{"one coordinate", `{"type":"Point","coordinates":[1]}`, MsgCoordinatesInvalid},
		{"null latitude", `{"type":"Point","coordinates":[1,null]}`, MsgCoordinatesInvalid},
		{"string longitude", `{"type":"Point","coordinates":["a",2]}`, MsgCoordinatesInvalid},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := ParsePoint(decode(t, tt.in))
			var invalid *InvalidError
			require.ErrorAs(t, err, &invalid)
			assert.Equal(t, tt.want, invalid.Message)
		})
	}
}

func TestMarshalGeoJSON(t *testing.T) {
	t.Parallel()

	data, err := MarshalGeoJSON(NewPoint(-0.134, 51.524))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"Point","coordinates":[-0.134,51.524]}`, string(data))

	data, err = MarshalGeoJSON(nil)
	require.NoError(t, err)
	assert.Equal(t, "null", string(data))
}

func TestEWKBRoundTrip(t *testing.T) {
	t.Parallel()

	data, err := MarshalEWKB(NewPoint(2.35, 48.85))
	require.NoError(t, err)

	p, err := UnmarshalEWKB(data)
	require.NoError(t, err)
	assert.InDelta(t, 2.35, p.X(), 1e-9)
	assert.InDelta(t, 48.85, p.Y(), 1e-9)
	assert.Equal(t, SRID, p.SRID())
}

func TestUnmarshalEWKB_Garbage(t *testing.T) {
	t.Parallel()

	_, err := UnmarshalEWKB([]byte{0x01, 0x02})
	assert.Error(t, err)
}
