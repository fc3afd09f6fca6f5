// Package pipeline drives the five ordered stages that turn daily
// police-report-log PDFs into the published incident dataset. Each stage owns
// a durable output directory; directory contents plus a completion marker are
// the resumability state, so a fixed-and-rerun invocation continues from
// where the previous run stopped.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/patrol-log/constants"
	"github.com/joseph-ayodele/patrol-log/internal/batch"
	"github.com/joseph-ayodele/patrol-log/internal/common"
)

// Stage is one ordered phase of the pipeline.
//
// force is true when the caller explicitly started the run at this stage:
// the stage must regenerate its units instead of skipping ones whose output
// files already exist.
type Stage interface {
	Number() constants.Stage
	OutputDir() string
	Run(ctx context.Context, dates []time.Time, force bool) (Summary, error)
}

// Summary is what one stage reports upward: aggregate counts plus the
// failure manifest. Unit-level errors never propagate as errors.
//
// FailedDates names the requested dates with at least one failed unit; those
// dates are excluded from the stage's completion marker so the next run
// re-enters the stage and retries them.
type Summary struct {
	Stage        int             `json:"stage"`
	Name         string          `json:"name"`
	Processed    int             `json:"processed"`
	Succeeded    int             `json:"succeeded"`
	Failed       int             `json:"failed"`
	NotFound     int             `json:"not_found,omitempty"`     // stage 1: days with no published report
	Dropped      int             `json:"dropped,omitempty"`       // stage 5: records lacking coordinates
	Deduped      int             `json:"deduplicated,omitempty"`  // stage 5: duplicate (date, case_number)
	SkippedUnits int             `json:"skipped_units,omitempty"` // stage 4: days with output already present
	Skipped      bool            `json:"skipped,omitempty"`
	Failures     []batch.Failure `json:"failures,omitempty"`
	FailedDates  []string        `json:"failed_dates,omitempty"`
}

// RunReport aggregates the whole run for operators: per-stage counts, the
// failure manifest, and the last stage that completed.
type RunReport struct {
	RunID              string    `json:"run_id"`
	StartDate          string    `json:"start_date"`
	EndDate            string    `json:"end_date"`
	StartStep          int       `json:"start_step"`
	StartedAt          time.Time `json:"started_at"`
	FinishedAt         time.Time `json:"finished_at"`
	LastCompletedStage int       `json:"last_completed_stage"`
	Stages             []Summary `json:"stages"`
}

type Runner struct {
	stages     []Stage
	reportPath string
	logger     *slog.Logger
}

func NewRunner(stages []Stage, reportPath string, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{stages: stages, reportPath: reportPath, logger: logger}
}

// Run executes stages startStep..5 over the inclusive date range.
//
// Stages before startStep are skipped without validating their outputs — the
// caller asserts they already ran correctly. The startStep stage itself is
// forced; later stages are skipped when their completion marker already
// covers every requested date. A stage error halts the run without rolling
// back that stage's partial output.
func (r *Runner) Run(ctx context.Context, startDate, endDate time.Time, startStep constants.Stage) (*RunReport, error) {
	if endDate.Before(startDate) {
		return nil, common.NewAppError("PIPELINE_ERROR", "start date after end date", common.ErrInvalidInput)
	}
	if !startStep.Valid() {
		return nil, common.NewAppError("PIPELINE_ERROR", fmt.Sprintf("invalid start step %d", startStep), common.ErrInvalidInput)
	}

	dates := expandDates(startDate, endDate)
	keys := dateKeys(dates)

	report := &RunReport{
		RunID:     uuid.New().String(),
		StartDate: dateKey(startDate),
		EndDate:   dateKey(endDate),
		StartStep: int(startStep),
		StartedAt: time.Now().UTC(),
	}

	r.logger.Info("pipeline.start",
		"run_id", report.RunID,
		"start_date", report.StartDate,
		"end_date", report.EndDate,
		"start_step", int(startStep),
		"days", len(dates),
	)

	for _, stage := range r.stages {
		n := stage.Number()
		name := n.String()

		if n < startStep {
			r.logger.Info("pipeline.stage.skipped", "stage", int(n), "name", name, "reason", "before start step")
			report.Stages = append(report.Stages, Summary{Stage: int(n), Name: name, Skipped: true})
			report.LastCompletedStage = int(n)
			continue
		}

		if n > startStep {
			m, err := loadMarker(stage.OutputDir())
			if err != nil {
				r.logger.Warn("pipeline.stage.marker_unreadable", "stage", int(n), "error", err)
			}
			if m.covers(keys) {
				r.logger.Info("pipeline.stage.skipped", "stage", int(n), "name", name, "reason", "output already complete")
				report.Stages = append(report.Stages, Summary{Stage: int(n), Name: name, Skipped: true})
				report.LastCompletedStage = int(n)
				continue
			}
		}

		force := n == startStep
		summary, err := stage.Run(ctx, dates, force)
		summary.Stage = int(n)
		summary.Name = name
		report.Stages = append(report.Stages, summary)

		if err != nil {
			report.FinishedAt = time.Now().UTC()
			r.writeReport(report)
			r.logger.Error("pipeline.stage.failed",
				"run_id", report.RunID,
				"stage", int(n),
				"name", name,
				"last_completed_stage", report.LastCompletedStage,
				"error", err,
			)
			var stageErr *common.StageError
			if !errors.As(err, &stageErr) {
				err = common.NewStageError(int(n), name, stage.OutputDir(), err)
			}
			return report, err
		}

		// The marker records only the dates whose units all completed; dates
		// with failures stay uncovered so the next run re-enters the stage
		// and retries them.
		if covered := coveredDates(keys, summary); len(covered) == 0 {
			r.logger.Warn("pipeline.stage.marker_withheld", "stage", int(n), "failed", summary.Failed)
		} else if err := writeMarker(stage.OutputDir(), marker{
			Stage:      int(n),
			Name:       name,
			Dates:      covered,
			FinishedAt: time.Now().UTC(),
			Processed:  summary.Processed,
			Succeeded:  summary.Succeeded,
			Failed:     summary.Failed,
		}); err != nil {
			r.logger.Warn("pipeline.stage.marker_write_failed", "stage", int(n), "error", err)
		}

		report.LastCompletedStage = int(n)
		r.logger.Info("pipeline.stage.ok",
			"run_id", report.RunID,
			"stage", int(n),
			"name", name,
			"processed", summary.Processed,
			"succeeded", summary.Succeeded,
			"failed", summary.Failed,
		)
	}

	report.FinishedAt = time.Now().UTC()
	r.writeReport(report)
	r.logger.Info("pipeline.done",
		"run_id", report.RunID,
		"last_completed_stage", report.LastCompletedStage,
		"elapsed_ms", report.FinishedAt.Sub(report.StartedAt).Milliseconds(),
	)
	return report, nil
}

func (r *Runner) writeReport(report *RunReport) {
	if r.reportPath == "" {
		return
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		r.logger.Warn("pipeline.report.encode_failed", "error", err)
		return
	}
	if err := os.WriteFile(r.reportPath, data, 0o644); err != nil {
		r.logger.Warn("pipeline.report.write_failed", "path", r.reportPath, "error", err)
	}
}

func expandDates(start, end time.Time) []time.Time {
	var dates []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		dates = append(dates, time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC))
	}
	return dates
}
