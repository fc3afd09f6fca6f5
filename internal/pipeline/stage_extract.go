package pipeline

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/joseph-ayodele/patrol-log/constants"
	"github.com/joseph-ayodele/patrol-log/internal/common"
	"github.com/joseph-ayodele/patrol-log/internal/llm"
)

var csvHeader = []string{"case_number", "date", "time", "offense_type", "location", "arrest_info"}

// ExtractStage asks the table extractor to structure each day's markdown
// into incident rows and writes them as the day's CSV. A day whose
// extraction or validation fails is recorded in the manifest and retried on
// the next run; sibling days are unaffected.
type ExtractStage struct {
	Tables llm.TableExtractor
	InDir  string
	Dir    string
	Logger *slog.Logger
}

func NewExtractStage(tables llm.TableExtractor, inDir, dir string, logger *slog.Logger) *ExtractStage {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExtractStage{Tables: tables, InDir: inDir, Dir: dir, Logger: logger}
}

func (s *ExtractStage) Number() constants.Stage { return constants.StageExtract }
func (s *ExtractStage) OutputDir() string       { return s.Dir }

func (s *ExtractStage) Run(ctx context.Context, dates []time.Time, force bool) (Summary, error) {
	var sum Summary
	inputs := datedInputs(s.InDir, ".md", dates)
	if len(inputs) == 0 {
		return sum, noInputsError(s.Number(), s.InDir, dates)
	}
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return sum, common.NewStageError(int(s.Number()), s.Number().String(), s.Dir, err)
	}

	failDay := func(key string, err error) {
		sum.Failed++
		sum.Failures = append(sum.Failures, failureFor(key, err))
		sum.FailedDates = append(sum.FailedDates, key)
	}

	for _, in := range inputs {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		sum.Processed++
		out := filepath.Join(s.Dir, in.Key+".csv")

		if !force {
			if _, err := os.Stat(out); err == nil {
				s.Logger.Info("extract.skip_existing", "date", in.Key)
				sum.Succeeded++
				continue
			}
		}

		text, err := os.ReadFile(in.Path)
		if err != nil {
			failDay(in.Key, fmt.Errorf("read markdown: %w", err))
			continue
		}

		rows, _, err := s.Tables.ExtractTable(ctx, string(text))
		if err != nil {
			failDay(in.Key, fmt.Errorf("extract table: %w", err))
			continue
		}

		data, err := encodeCSV(rows)
		if err != nil {
			failDay(in.Key, err)
			continue
		}
		if err := writeFileAtomic(out, data); err != nil {
			failDay(in.Key, err)
			continue
		}

		s.Logger.Info("extract.day_ok", "date", in.Key, "rows", len(rows))
		sum.Succeeded++
	}
	return sum, nil
}

func encodeCSV(rows []llm.RawRow) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(csvHeader); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	for _, r := range rows {
		record := []string{r.CaseNumber, r.Date, r.Time, r.OffenseType, r.Location, r.ArrestInfo}
		if err := w.Write(record); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}
