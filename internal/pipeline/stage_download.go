package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/joseph-ayodele/patrol-log/constants"
	"github.com/joseph-ayodele/patrol-log/internal/common"
	"github.com/joseph-ayodele/patrol-log/internal/download"
)

// DownloadStage fetches one report PDF per date into raw_pdfs/. Already
// downloaded files are never re-fetched — published PDFs are immutable, so
// skipping them is safe even on a forced run.
type DownloadStage struct {
	Fetcher download.ReportFetcher
	Dir     string
	Logger  *slog.Logger
}

func NewDownloadStage(fetcher download.ReportFetcher, dir string, logger *slog.Logger) *DownloadStage {
	if logger == nil {
		logger = slog.Default()
	}
	return &DownloadStage{Fetcher: fetcher, Dir: dir, Logger: logger}
}

func (s *DownloadStage) Number() constants.Stage { return constants.StageDownload }
func (s *DownloadStage) OutputDir() string       { return s.Dir }

func (s *DownloadStage) Run(ctx context.Context, dates []time.Time, _ bool) (Summary, error) {
	var sum Summary
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return sum, common.NewStageError(int(s.Number()), s.Number().String(), s.Dir, err)
	}

	for _, date := range dates {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		key := dateKey(date)
		dest := filepath.Join(s.Dir, key+".pdf")
		sum.Processed++

		if _, err := os.Stat(dest); err == nil {
			s.Logger.Info("download.skip_existing", "date", key)
			sum.Succeeded++
			continue
		}

		status, err := s.Fetcher.Fetch(ctx, date, dest)
		if err != nil {
			sum.Failed++
			sum.Failures = append(sum.Failures, failureFor(key, err))
			sum.FailedDates = append(sum.FailedDates, key)
			continue
		}
		if status == download.StatusNotFound {
			sum.NotFound++
			continue
		}
		sum.Succeeded++
	}

	// Nothing on disk for the whole range means the later stages have no
	// input at all: halt here rather than three stages later.
	if sum.Succeeded == 0 {
		return sum, common.NewStageError(int(s.Number()), s.Number().String(), s.Dir,
			fmt.Errorf("no reports available for %s..%s", dateKey(dates[0]), dateKey(dates[len(dates)-1])))
	}
	return sum, nil
}
