package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/patrol-log/internal/entity"
)

func TestIncidentsXLSX(t *testing.T) {
	m := 510
	records := []entity.FinalRecord{
		{
			CaseNumber:       "25-00001",
			Date:             "2025-04-18",
			Time:             &m,
			OffenseType:      "PETTY THEFT",
			OffenseCategory:  "Theft",
			Location:         "University Ave",
			Latitude:         37.44,
			Longitude:        -122.14,
			FormattedAddress: "University Ave, Palo Alto, CA",
		},
		{
			CaseNumber:      "25-00002",
			Date:            "2025-04-18",
			Time:            nil,
			OffenseType:     "DUI",
			OffenseCategory: "Traffic Incidents",
			Location:        "Alma St",
			Latitude:        37.43,
			Longitude:       -122.15,
		},
	}

	data, err := NewService(nil).IncidentsXLSX(records)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer func() {
		require.NoError(t, f.Close())
	}()

	rows, err := f.GetRows("Incidents")
	require.NoError(t, err)
	require.Len(t, rows, 3) // header + 2 records

	assert.Equal(t, "Date", rows[0][0])
	assert.Equal(t, "Case Number", rows[0][2])

	assert.Equal(t, "2025-04-18", rows[1][0])
	assert.Equal(t, "08:30", rows[1][1])
	assert.Equal(t, "25-00001", rows[1][2])
	assert.Equal(t, "Theft", rows[1][4])

	// Unknown time renders as an empty cell, not 00:00.
	assert.Equal(t, "25-00002", rows[2][2])
	if len(rows[2]) > 1 {
		assert.Equal(t, "", rows[2][1])
	}
}

func TestIncidentsXLSXEmpty(t *testing.T) {
	data, err := NewService(nil).IncidentsXLSX(nil)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer func() {
		require.NoError(t, f.Close())
	}()

	rows, err := f.GetRows("Incidents")
	require.NoError(t, err)
	require.Len(t, rows, 1, "header only")
}
