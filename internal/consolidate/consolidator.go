// Package consolidate merges all per-day enriched records into the single
// dataset the visualization front end consumes: deduplicated, filtered to
// geocoded records, chronologically ordered, with a stable typed schema.
package consolidate

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/joseph-ayodele/patrol-log/internal/entity"
)

// Output is the consolidation result plus the observability counters the run
// report surfaces.
type Output struct {
	Records []entity.FinalRecord
	Dropped int // lacked coordinates; excluded by policy
	Deduped int // duplicate (date, case_number) pairs removed
}

type Consolidator struct {
	logger *slog.Logger
}

func NewConsolidator(logger *slog.Logger) *Consolidator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Consolidator{logger: logger}
}

// Consolidate produces the final dataset from per-day incident records.
//
// Case numbers are only locally unique per source document, so the dedup key
// is (date, case_number), first occurrence wins. Records without resolved
// coordinates are dropped — the consumer cannot place them — and the drop
// count is reported. Output order is (date, time) ascending with unknown
// times first within a date; ties keep input order.
func (c *Consolidator) Consolidate(incidents []*entity.Incident) Output {
	seen := make(map[string]struct{}, len(incidents))
	var out Output
	kept := make([]*entity.Incident, 0, len(incidents))

	for _, inc := range incidents {
		key := fmt.Sprintf("%s|%s", inc.Date.Format("2006-01-02"), inc.CaseNumber)
		if _, dup := seen[key]; dup {
			out.Deduped++
			continue
		}
		seen[key] = struct{}{}

		if !inc.Geocoded() {
			out.Dropped++
			continue
		}
		kept = append(kept, inc)
	}

	sort.SliceStable(kept, func(i, j int) bool {
		di, dj := kept[i].Date, kept[j].Date
		if !di.Equal(dj) {
			return di.Before(dj)
		}
		return sortMinutes(kept[i]) < sortMinutes(kept[j])
	})

	out.Records = make([]entity.FinalRecord, 0, len(kept))
	for _, inc := range kept {
		out.Records = append(out.Records, project(inc))
	}

	c.logger.Info("consolidate.done",
		"input", len(incidents),
		"records", len(out.Records),
		"dropped_missing_coords", out.Dropped,
		"deduplicated", out.Deduped,
	)
	return out
}

// sortMinutes places unknown times before any known time on the same date.
func sortMinutes(inc *entity.Incident) int {
	if m := inc.TimeMinutes(); m != nil {
		return *m
	}
	return -1
}

func project(inc *entity.Incident) entity.FinalRecord {
	rec := entity.FinalRecord{
		CaseNumber:       inc.CaseNumber,
		Date:             inc.Date.Format("2006-01-02"),
		Time:             inc.TimeMinutes(),
		OffenseType:      inc.OffenseType,
		OffenseCategory:  string(inc.Category),
		Location:         inc.Location,
		Latitude:         *inc.Latitude,
		Longitude:        *inc.Longitude,
		FormattedAddress: inc.FormattedAddress,
		LocationKind:     inc.LocationKind,
	}
	if !inc.ReportDate.IsZero() {
		rec.ReportDate = inc.ReportDate.Format("2006-01-02")
	}
	return rec
}
