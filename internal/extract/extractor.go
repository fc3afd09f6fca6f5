// Package extract parses per-day raw incident tables (CSV) into typed
// records. Failures are isolated per row and per file: a malformed row is
// recorded with its index and cause, and extraction continues.
package extract

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joseph-ayodele/patrol-log/internal/batch"
	"github.com/joseph-ayodele/patrol-log/internal/entity"
)

// Column order written by the extract stage and expected here.
var expectedHeader = []string{"case_number", "date", "time", "offense_type", "location", "arrest_info"}

var dateLayouts = []string{"1/2/2006", "01/02/2006", "2006-01-02"}

type Extractor struct {
	logger *slog.Logger
}

func NewExtractor(logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{logger: logger}
}

// ExtractFile parses one per-day CSV file. An unreadable file yields a single
// file-level failure; it never aborts the batch of sibling files.
func (e *Extractor) ExtractFile(path string, reportDate time.Time) batch.Result[*entity.Incident] {
	f, err := os.Open(path)
	if err != nil {
		var res batch.Result[*entity.Incident]
		res.AddFailure(path, "open file: %v", err)
		return res
	}
	defer func() {
		if err := f.Close(); err != nil {
			e.logger.Warn("extract.file_close_error", "path", path, "error", err)
		}
	}()
	return e.Extract(f, path, reportDate)
}

// Extract parses a raw CSV table into incidents. Successes preserve source
// row order. Rows with a wrong field count or an unparseable date become
// failures identifying the row index and cause; the remaining rows are still
// processed.
func (e *Extractor) Extract(r io.Reader, unit string, reportDate time.Time) batch.Result[*entity.Incident] {
	var res batch.Result[*entity.Incident]

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1 // field-count mismatches are per-row failures, not parse aborts
	reader.TrimLeadingSpace = true

	rowIdx := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		rowIdx++
		if err != nil {
			res.AddFailure(rowUnit(unit, rowIdx), "read row: %v", err)
			continue
		}

		// Skip the header wherever it appears; LLM output occasionally
		// repeats it mid-file.
		if isHeader(record) {
			rowIdx--
			continue
		}

		incident, err := parseRow(record, reportDate)
		if err != nil {
			res.AddFailure(rowUnit(unit, rowIdx), "%v (raw: %s)", err, snippet(record))
			continue
		}
		res.AddSuccess(incident)
	}

	e.logger.Info("extract.file_done",
		"unit", unit,
		"rows", res.Processed(),
		"succeeded", len(res.Successes),
		"failed", len(res.Failures),
	)
	return res
}

func parseRow(record []string, reportDate time.Time) (*entity.Incident, error) {
	if len(record) != len(expectedHeader) {
		return nil, fmt.Errorf("expected %d fields, got %d", len(expectedHeader), len(record))
	}

	caseNumber := strings.TrimSpace(record[0])
	if caseNumber == "" {
		return nil, fmt.Errorf("missing case number")
	}

	rawDate := strings.TrimSpace(record[1])
	date, err := parseDate(rawDate)
	if err != nil {
		return nil, fmt.Errorf("parse date %q: %w", rawDate, err)
	}

	offense := strings.TrimSpace(record[3])
	if offense == "" {
		return nil, fmt.Errorf("missing offense type")
	}

	return &entity.Incident{
		CaseNumber:  caseNumber,
		Date:        date,
		Time:        normalizeTime(record[2]),
		OffenseType: offense,
		Location:    strings.TrimSpace(record[4]),
		ArrestInfo:  strings.TrimSpace(record[5]),
		ReportDate:  reportDate,
	}, nil
}

func parseDate(raw string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date format")
}

// normalizeTime keeps only valid HHMM values; anything else is the unknown
// sentinel (empty string). Time is optional, so a bad value never fails the
// row.
func normalizeTime(raw string) string {
	t := strings.TrimSpace(raw)
	if len(t) == 3 {
		t = "0" + t // tolerate dropped leading zero
	}
	if len(t) != 4 {
		return ""
	}
	for _, r := range t {
		if r < '0' || r > '9' {
			return ""
		}
	}
	hours := int(t[0]-'0')*10 + int(t[1]-'0')
	minutes := int(t[2]-'0')*10 + int(t[3]-'0')
	if hours > 23 || minutes > 59 {
		return ""
	}
	return t
}

func isHeader(record []string) bool {
	return len(record) > 0 && strings.EqualFold(strings.TrimSpace(record[0]), expectedHeader[0])
}

func rowUnit(unit string, rowIdx int) string {
	return fmt.Sprintf("%s#row %d", unit, rowIdx)
}

func snippet(record []string) string {
	s := strings.Join(record, ",")
	if len(s) > 120 {
		s = s[:120] + "..."
	}
	return s
}
