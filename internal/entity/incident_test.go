package entity

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimeMinutes(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		expected *int
	}{
		{name: "morning", raw: "0830", expected: intPtr(510)},
		{name: "midnight is zero not unknown", raw: "0000", expected: intPtr(0)},
		{name: "end of day", raw: "2359", expected: intPtr(1439)},
		{name: "unknown", raw: "", expected: nil},
		{name: "bad hours", raw: "2400", expected: nil},
		{name: "bad minutes", raw: "1260", expected: nil},
		{name: "non numeric", raw: "12a0", expected: nil},
		{name: "wrong length", raw: "830", expected: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inc := &Incident{Time: tt.raw}
			got := inc.TimeMinutes()
			if tt.expected == nil {
				assert.Nil(t, got)
			} else {
				require.NotNil(t, got)
				assert.Equal(t, *tt.expected, *got)
			}
		})
	}
}

func TestGeocoded(t *testing.T) {
	lat, lon := 37.44, -122.14
	assert.False(t, (&Incident{}).Geocoded())
	assert.False(t, (&Incident{Latitude: &lat}).Geocoded())
	assert.True(t, (&Incident{Latitude: &lat, Longitude: &lon}).Geocoded())
}

func TestFinalRecordTimeSerializesNullWhenUnknown(t *testing.T) {
	data, err := json.Marshal(FinalRecord{CaseNumber: "25-00001", Date: "2025-04-18"})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"time":null`)

	m := 510
	data, err = json.Marshal(FinalRecord{CaseNumber: "25-00001", Date: "2025-04-18", Time: &m})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"time":510`)
}

func intPtr(v int) *int { return &v }
