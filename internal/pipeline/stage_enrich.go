package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/patrol-log/constants"
	"github.com/joseph-ayodele/patrol-log/internal/batch"
	"github.com/joseph-ayodele/patrol-log/internal/cache"
	"github.com/joseph-ayodele/patrol-log/internal/categorize"
	"github.com/joseph-ayodele/patrol-log/internal/common"
	"github.com/joseph-ayodele/patrol-log/internal/entity"
	"github.com/joseph-ayodele/patrol-log/internal/extract"
	"github.com/joseph-ayodele/patrol-log/internal/geocode"
)

// EnrichStage parses each day's CSV into typed incidents and enriches them
// with coordinates and an offense category. Incidents within a day are
// enriched concurrently — both lookups sit behind the keyed caches, so
// concurrency changes wall-clock time, never results.
type EnrichStage struct {
	Extractor   *extract.Extractor
	Geocoder    *geocode.Geocoder
	Categorizer *categorize.Categorizer
	Caches      []*cache.Store // flushed after each day's batch
	Workers     int
	InDir       string
	Dir         string
	Logger      *slog.Logger
}

func NewEnrichStage(
	extractor *extract.Extractor,
	geocoder *geocode.Geocoder,
	categorizer *categorize.Categorizer,
	caches []*cache.Store,
	workers int,
	inDir, dir string,
	logger *slog.Logger,
) *EnrichStage {
	if workers < 1 {
		workers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &EnrichStage{
		Extractor:   extractor,
		Geocoder:    geocoder,
		Categorizer: categorizer,
		Caches:      caches,
		Workers:     workers,
		InDir:       inDir,
		Dir:         dir,
		Logger:      logger,
	}
}

func (s *EnrichStage) Number() constants.Stage { return constants.StageEnrich }
func (s *EnrichStage) OutputDir() string       { return s.Dir }

func (s *EnrichStage) Run(ctx context.Context, dates []time.Time, force bool) (Summary, error) {
	var sum Summary
	inputs := datedInputs(s.InDir, ".csv", dates)
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
		out := filepath.Join(s.Dir, in.Key+".json")

		if !force {
			if _, err := os.Stat(out); err == nil {
				// Processed/Succeeded count rows; a skipped day's rows were
				// counted by the run that produced its file.
				s.Logger.Info("enrich.skip_existing", "date", in.Key)
				sum.SkippedUnits++
				continue
			}
		}

		res := s.Extractor.ExtractFile(in.Path, in.Date)
		enrichFailures := s.enrichBatch(ctx, res.Successes)

		sum.Processed += res.Processed()
		sum.Succeeded += len(res.Successes) - len(enrichFailures)
		sum.Failed += len(res.Failures) + len(enrichFailures)
		sum.Failures = append(sum.Failures, res.Failures...)
		sum.Failures = append(sum.Failures, enrichFailures...)

		// Persist both caches at batch granularity even when the day is
		// incomplete: successful lookups must survive for the retry.
		for _, st := range s.Caches {
			if err := st.Flush(); err != nil {
				s.Logger.Error("enrich.cache_flush_failed", "date", in.Key, "error", err)
			}
		}

		if len(enrichFailures) > 0 {
			// Withhold the day file: the next run re-enters the stage, finds
			// no output for this day, and retries the failed lookups.
			sum.FailedDates = append(sum.FailedDates, in.Key)
			s.Logger.Warn("enrich.day_incomplete",
				"date", in.Key,
				"enrich_failures", len(enrichFailures),
			)
			continue
		}

		data, err := json.MarshalIndent(res.Successes, "", "  ")
		if err != nil {
			sum.Failed++
			sum.Failures = append(sum.Failures, failureFor(in.Key, fmt.Errorf("encode enriched records: %w", err)))
			sum.FailedDates = append(sum.FailedDates, in.Key)
			continue
		}
		if err := writeFileAtomic(out, data); err != nil {
			sum.Failed++
			sum.Failures = append(sum.Failures, failureFor(in.Key, err))
			sum.FailedDates = append(sum.FailedDates, in.Key)
			continue
		}

		// Row failures are data defects, not transient: the day file is
		// written, but the date stays uncovered so the manifest entry is
		// re-surfaced once before the marker records it.
		if len(res.Failures) > 0 {
			sum.FailedDates = append(sum.FailedDates, in.Key)
		}

		s.Logger.Info("enrich.day_ok",
			"date", in.Key,
			"incidents", len(res.Successes),
			"row_failures", len(res.Failures),
			"enrich_failures", len(enrichFailures),
		)
	}
	return sum, nil
}

// enrichBatch geocodes and categorizes incidents in place. A failed lookup
// marks the incident's unit as failed for this run but never aborts the
// batch; sibling incidents keep whatever enrichment succeeded.
func (s *EnrichStage) enrichBatch(ctx context.Context, incidents []*entity.Incident) []batch.Failure {
	failures := make([]string, len(incidents))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.Workers)
	for i, inc := range incidents {
		g.Go(func() error {
			loc, err := s.Geocoder.Resolve(gctx, inc.Location)
			if err != nil {
				failures[i] = fmt.Sprintf("geocode %q: %v", inc.Location, err)
			} else if loc.Resolved {
				inc.Latitude = &loc.Latitude
				inc.Longitude = &loc.Longitude
				inc.FormattedAddress = loc.FormattedAddress
				inc.LocationKind = loc.Kind
			} else {
				inc.LocationKind = loc.Kind
			}

			cat, err := s.Categorizer.Categorize(gctx, inc.OffenseType)
			if err != nil {
				// Stable fallback; the failure entry makes the retry visible.
				inc.Category = constants.Administrative
				if failures[i] != "" {
					failures[i] += "; "
				}
				failures[i] += fmt.Sprintf("categorize %q: %v", inc.OffenseType, err)
				return nil
			}
			inc.Category = cat
			return nil
		})
	}
	_ = g.Wait() // workers report via failures, never via error

	var out []batch.Failure
	for i, reason := range failures {
		if reason != "" {
			out = append(out, batch.Failure{
				Unit:   fmt.Sprintf("%s %s", dateKey(incidents[i].Date), incidents[i].CaseNumber),
				Reason: reason,
			})
		}
	}
	return out
}
