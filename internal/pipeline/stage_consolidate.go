package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/joseph-ayodele/patrol-log/constants"
	"github.com/joseph-ayodele/patrol-log/internal/archive"
	"github.com/joseph-ayodele/patrol-log/internal/common"
	"github.com/joseph-ayodele/patrol-log/internal/consolidate"
	"github.com/joseph-ayodele/patrol-log/internal/entity"
	"github.com/joseph-ayodele/patrol-log/internal/export"
)

// ConsolidateStage merges every enriched day on disk — not just the requested
// range — into the website dataset, so the published artifacts always reflect
// the full history gathered so far. It also upserts the dataset into the
// incident archive.
type ConsolidateStage struct {
	Consolidator *consolidate.Consolidator
	Exporter     *export.Service
	Archive      *archive.Store // optional
	InDir        string
	Dir          string
	Logger       *slog.Logger
}

func NewConsolidateStage(
	consolidator *consolidate.Consolidator,
	exporter *export.Service,
	arch *archive.Store,
	inDir, dir string,
	logger *slog.Logger,
) *ConsolidateStage {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConsolidateStage{
		Consolidator: consolidator,
		Exporter:     exporter,
		Archive:      arch,
		InDir:        inDir,
		Dir:          dir,
		Logger:       logger,
	}
}

func (s *ConsolidateStage) Number() constants.Stage { return constants.StageConsolidate }
func (s *ConsolidateStage) OutputDir() string       { return s.Dir }

func (s *ConsolidateStage) Run(ctx context.Context, dates []time.Time, _ bool) (Summary, error) {
	var sum Summary

	incidents, files, err := s.readEnriched()
	if err != nil {
		return sum, err
	}
	if len(files) == 0 {
		return sum, noInputsError(s.Number(), s.InDir, dates)
	}
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return sum, common.NewStageError(int(s.Number()), s.Number().String(), s.Dir, err)
	}

	out := s.Consolidator.Consolidate(incidents)
	sum.Processed = len(incidents)
	sum.Succeeded = len(out.Records)
	sum.Dropped = out.Dropped
	sum.Deduped = out.Deduped

	data, err := json.MarshalIndent(out.Records, "", "  ")
	if err != nil {
		return sum, common.NewStageError(int(s.Number()), s.Number().String(), s.Dir,
			fmt.Errorf("encode dataset: %w", err))
	}
	jsonPath := filepath.Join(s.Dir, "incidents.json")
	if err := writeFileAtomic(jsonPath, data); err != nil {
		return sum, common.NewStageError(int(s.Number()), s.Number().String(), jsonPath, err)
	}

	xlsx, err := s.Exporter.IncidentsXLSX(out.Records)
	if err != nil {
		return sum, common.NewStageError(int(s.Number()), s.Number().String(), s.Dir, err)
	}
	xlsxPath := filepath.Join(s.Dir, "incidents.xlsx")
	if err := writeFileAtomic(xlsxPath, xlsx); err != nil {
		return sum, common.NewStageError(int(s.Number()), s.Number().String(), xlsxPath, err)
	}

	if s.Archive != nil {
		if err := s.Archive.UpsertRecords(ctx, out.Records); err != nil {
			return sum, common.NewStageError(int(s.Number()), s.Number().String(), s.Dir, err)
		}
	}

	s.Logger.Info("consolidate.stage_ok",
		"days", len(files),
		"records", len(out.Records),
		"dropped", out.Dropped,
		"deduped", out.Deduped,
	)
	return sum, nil
}

// readEnriched loads every per-day enriched file in filename (date) order.
func (s *ConsolidateStage) readEnriched() ([]*entity.Incident, []string, error) {
	entries, err := os.ReadDir(s.InDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, nil
		}
		return nil, nil, common.NewStageError(int(s.Number()), s.Number().String(), s.InDir, err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		files = append(files, e.Name())
	}
	sort.Strings(files)

	var incidents []*entity.Incident
	for _, name := range files {
		path := filepath.Join(s.InDir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, nil, common.NewStageError(int(s.Number()), s.Number().String(), path, err)
		}
		var day []*entity.Incident
		if err := json.Unmarshal(data, &day); err != nil {
			return nil, nil, common.NewStageError(int(s.Number()), s.Number().String(), path,
				fmt.Errorf("decode enriched day: %w", err))
		}
		incidents = append(incidents, day...)
	}
	return incidents, files, nil
}
