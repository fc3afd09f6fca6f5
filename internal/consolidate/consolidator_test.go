package consolidate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/patrol-log/constants"
	"github.com/joseph-ayodele/patrol-log/internal/entity"
)

func ptr(f float64) *float64 { return &f }

func incident(caseNumber, day, hhmm string) *entity.Incident {
	date, _ := time.Parse("2006-01-02", day)
	return &entity.Incident{
		CaseNumber:       caseNumber,
		Date:             date,
		Time:             hhmm,
		OffenseType:      "THEFT",
		Location:         "University Ave",
		Latitude:         ptr(37.44),
		Longitude:        ptr(-122.14),
		FormattedAddress: "University Ave, Palo Alto, CA",
		Category:         constants.Theft,
	}
}

func TestConsolidateOrdersByDateThenTime(t *testing.T) {
	c := NewConsolidator(nil)
	out := c.Consolidate([]*entity.Incident{
		incident("25-00003", "2025-04-19", "0100"),
		incident("25-00002", "2025-04-18", "2300"),
		incident("25-00001", "2025-04-18", "0830"),
		incident("25-00004", "2025-04-18", ""), // unknown time sorts first in its day
	})

	require.Len(t, out.Records, 4)
	var got []string
	for _, r := range out.Records {
		got = append(got, r.CaseNumber)
	}
	assert.Equal(t, []string{"25-00004", "25-00001", "25-00002", "25-00003"}, got)

	assert.Nil(t, out.Records[0].Time)
	require.NotNil(t, out.Records[1].Time)
	assert.Equal(t, 8*60+30, *out.Records[1].Time)
}

func TestConsolidateDropsUngeocoded(t *testing.T) {
	c := NewConsolidator(nil)
	missing := incident("25-00002", "2025-04-18", "0900")
	missing.Latitude = nil
	missing.Longitude = nil

	out := c.Consolidate([]*entity.Incident{
		incident("25-00001", "2025-04-18", "0830"),
		missing,
	})

	require.Len(t, out.Records, 1)
	assert.Equal(t, "25-00001", out.Records[0].CaseNumber)
	assert.Equal(t, 1, out.Dropped)
	assert.Equal(t, 0, out.Deduped)
}

func TestConsolidateDeduplicates(t *testing.T) {
	c := NewConsolidator(nil)

	first := incident("25-00001", "2025-04-18", "0830")
	duplicate := incident("25-00001", "2025-04-18", "0900")
	duplicate.OffenseType = "DIFFERENT TEXT" // still the same (date, case) pair
	otherDay := incident("25-00001", "2025-04-19", "0830")

	out := c.Consolidate([]*entity.Incident{first, duplicate, otherDay})

	require.Len(t, out.Records, 2)
	assert.Equal(t, 1, out.Deduped)
	// First occurrence wins.
	assert.Equal(t, "THEFT", out.Records[0].OffenseType)
	// Same case number on another date is a distinct record.
	assert.Equal(t, "2025-04-19", out.Records[1].Date)
}

func TestConsolidateProjection(t *testing.T) {
	c := NewConsolidator(nil)
	inc := incident("25-00001", "2025-04-18", "2359")
	inc.ReportDate = time.Date(2025, 4, 18, 0, 0, 0, 0, time.UTC)
	inc.LocationKind = "route"

	out := c.Consolidate([]*entity.Incident{inc})

	require.Len(t, out.Records, 1)
	r := out.Records[0]
	assert.Equal(t, "2025-04-18", r.Date)
	require.NotNil(t, r.Time)
	assert.Equal(t, 23*60+59, *r.Time)
	assert.Equal(t, string(constants.Theft), r.OffenseCategory)
	assert.Equal(t, 37.44, r.Latitude)
	assert.Equal(t, -122.14, r.Longitude)
	assert.Equal(t, "route", r.LocationKind)
	assert.Equal(t, "2025-04-18", r.ReportDate)
}

func TestConsolidateEmptyInput(t *testing.T) {
	c := NewConsolidator(nil)
	out := c.Consolidate(nil)
	assert.Empty(t, out.Records)
	assert.Equal(t, 0, out.Dropped)
	assert.Equal(t, 0, out.Deduped)
}
