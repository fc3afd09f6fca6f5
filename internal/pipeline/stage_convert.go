package pipeline

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/joseph-ayodele/patrol-log/constants"
	"github.com/joseph-ayodele/patrol-log/internal/common"
	"github.com/joseph-ayodele/patrol-log/internal/convert"
)

// ConvertStage turns each raw PDF into markdown text.
type ConvertStage struct {
	Converter convert.Converter
	InDir     string
	Dir       string
	Logger    *slog.Logger
}

func NewConvertStage(converter convert.Converter, inDir, dir string, logger *slog.Logger) *ConvertStage {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConvertStage{Converter: converter, InDir: inDir, Dir: dir, Logger: logger}
}

func (s *ConvertStage) Number() constants.Stage { return constants.StageConvert }
func (s *ConvertStage) OutputDir() string       { return s.Dir }

func (s *ConvertStage) Run(ctx context.Context, dates []time.Time, force bool) (Summary, error) {
	var sum Summary
	inputs := datedInputs(s.InDir, ".pdf", dates)
	if len(inputs) == 0 {
		return sum, noInputsError(s.Number(), s.InDir, dates)
	}
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return sum, common.NewStageError(int(s.Number()), s.Number().String(), s.Dir, err)
	}

	for _, in := range inputs {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		sum.Processed++
		out := filepath.Join(s.Dir, in.Key+".md")

		if !force {
			if _, err := os.Stat(out); err == nil {
				s.Logger.Info("convert.skip_existing", "date", in.Key)
				sum.Succeeded++
				continue
			}
		}

		if err := s.Converter.ToText(ctx, in.Path, out); err != nil {
			sum.Failed++
			sum.Failures = append(sum.Failures, failureFor(in.Key, err))
			sum.FailedDates = append(sum.FailedDates, in.Key)
			continue
		}
		sum.Succeeded++
	}
	return sum, nil
}
