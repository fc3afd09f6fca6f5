package pipeline

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/patrol-log/constants"
	"github.com/joseph-ayodele/patrol-log/internal/common"
	"github.com/joseph-ayodele/patrol-log/internal/download"
	"github.com/joseph-ayodele/patrol-log/internal/entity"
	"github.com/joseph-ayodele/patrol-log/internal/geocode"
	"github.com/joseph-ayodele/patrol-log/internal/llm"
)

// stubFetcher writes a placeholder PDF for every requested date.
type stubFetcher struct{ calls atomic.Int32 }

func (f *stubFetcher) Fetch(_ context.Context, date time.Time, dest string) (download.Status, error) {
	f.calls.Add(1)
	return download.StatusDownloaded, os.WriteFile(dest, []byte("%PDF "+date.Format("2006-01-02")), 0o644)
}

// stubConverter emits the date key as the markdown body, which the table stub
// keys on.
type stubConverter struct{}

func (stubConverter) ToText(_ context.Context, pdfPath, outPath string) error {
	key := filepath.Base(pdfPath)
	key = key[:len(key)-len(".pdf")]
	return os.WriteFile(outPath, []byte(key), 0o644)
}

type stubTables struct {
	calls atomic.Int32
	rows  map[string][]llm.RawRow // markdown body -> rows
}

func (s *stubTables) ExtractTable(_ context.Context, text string) ([]llm.RawRow, []byte, error) {
	s.calls.Add(1)
	return s.rows[text], nil, nil
}

type countingSearcher struct{ calls atomic.Int32 }

func (s *countingSearcher) SearchText(_ context.Context, _ string) (*geocode.Place, error) {
	s.calls.Add(1)
	return &geocode.Place{
		Latitude:         37.44,
		Longitude:        -122.14,
		FormattedAddress: "Somewhere, Palo Alto, CA",
		Types:            []string{"route"},
	}, nil
}

type countingClassifier struct{ calls atomic.Int32 }

func (c *countingClassifier) Classify(_ context.Context, _ string, _ []string) (string, error) {
	c.calls.Add(1)
	return "Theft", nil
}

func testConfig(t *testing.T) *common.Config {
	t.Helper()
	return &common.Config{
		Data:    common.DataConfig{Root: t.TempDir()},
		Geocode: common.GeocodeConfig{CitySuffix: ", Palo Alto, CA"},
		Enrich:  common.EnrichConfig{Workers: 4},
	}
}

func TestPipelineEndToEnd(t *testing.T) {
	cfg := testConfig(t)

	tables := &stubTables{rows: map[string][]llm.RawRow{
		"2025-04-18": {
			{CaseNumber: "25-00001", Date: "04/18/2025", Time: "0830", OffenseType: "PETTY THEFT", Location: "University Ave"},
			{CaseNumber: "25-00002", Date: "bogus", Time: "0900", OffenseType: "VANDALISM", Location: "Alma St"},
			{CaseNumber: "25-00003", Date: "04/18/2025", Time: "", OffenseType: "VANDALISM", Location: "Alma St"},
		},
		"2025-04-19": {
			{CaseNumber: "25-00004", Date: "04/19/2025", Time: "2215", OffenseType: "PETTY THEFT", Location: "University Ave"},
		},
	}}
	searcher := &countingSearcher{}
	classifier := &countingClassifier{}

	runner := Build(cfg, Deps{
		Fetcher:    &stubFetcher{},
		Converter:  stubConverter{},
		Tables:     tables,
		Searcher:   searcher,
		Classifier: classifier,
	}, nil)

	report, err := runner.Run(context.Background(), day1, day2, constants.FirstStage)
	require.NoError(t, err)
	assert.Equal(t, int(constants.LastStage), report.LastCompletedStage)

	// The unparsable row surfaces in the enrich stage's manifest; the valid
	// rows from both days survive.
	enrich := report.Stages[3]
	assert.Equal(t, 1, enrich.Failed)
	require.Len(t, enrich.Failures, 1)
	assert.Contains(t, enrich.Failures[0].Reason, "parse date")

	data, err := os.ReadFile(filepath.Join(cfg.StageDir(constants.StageConsolidate.DirName()), "incidents.json"))
	require.NoError(t, err)
	var records []entity.FinalRecord
	require.NoError(t, json.Unmarshal(data, &records))
	require.Len(t, records, 3)
	assert.Equal(t, "25-00003", records[0].CaseNumber, "unknown time sorts first in its day")
	assert.Equal(t, "25-00001", records[1].CaseNumber)
	assert.Equal(t, "25-00004", records[2].CaseNumber)
	assert.Nil(t, records[0].Time)
	require.NotNil(t, records[2].Time)
	assert.Equal(t, 22*60+15, *records[2].Time)

	// Two distinct locations, one distinct offense: keyed caching collapses
	// everything else.
	assert.Equal(t, int32(2), searcher.calls.Load())
	assert.Equal(t, int32(2), classifier.calls.Load())

	// XLSX artifact is produced alongside the JSON.
	_, err = os.Stat(filepath.Join(cfg.StageDir(constants.StageConsolidate.DirName()), "incidents.xlsx"))
	assert.NoError(t, err)

	// The run report lands under the data root.
	_, err = os.Stat(filepath.Join(cfg.Data.Root, "run_report.json"))
	assert.NoError(t, err)
}

func TestPipelineResumeWithWarmCaches(t *testing.T) {
	cfg := testConfig(t)

	tables := &stubTables{rows: map[string][]llm.RawRow{
		"2025-04-18": {
			{CaseNumber: "25-00001", Date: "04/18/2025", Time: "0830", OffenseType: "PETTY THEFT", Location: "University Ave"},
		},
		"2025-04-19": {
			{CaseNumber: "25-00002", Date: "04/19/2025", Time: "0900", OffenseType: "PETTY THEFT", Location: "University Ave"},
		},
	}}

	first := Build(cfg, Deps{
		Fetcher:    &stubFetcher{},
		Converter:  stubConverter{},
		Tables:     tables,
		Searcher:   &countingSearcher{},
		Classifier: &countingClassifier{},
	}, nil)
	_, err := first.Run(context.Background(), day1, day2, constants.FirstStage)
	require.NoError(t, err)

	enrichedDir := cfg.StageDir(constants.StageEnrich.DirName())
	sitePath := filepath.Join(cfg.StageDir(constants.StageConsolidate.DirName()), "incidents.json")
	firstEnriched := readStageFiles(t, enrichedDir, ".json")
	firstSite, err := os.ReadFile(sitePath)
	require.NoError(t, err)

	// Resume from enrichment with fresh collaborators: the stage is forced to
	// regenerate, but every lookup is already cached on disk.
	searcher := &countingSearcher{}
	classifier := &countingClassifier{}
	fetcher := &stubFetcher{}
	secondTables := &stubTables{}
	second := Build(cfg, Deps{
		Fetcher:    fetcher,
		Converter:  stubConverter{},
		Tables:     secondTables,
		Searcher:   searcher,
		Classifier: classifier,
	}, nil)

	report, err := second.Run(context.Background(), day1, day2, constants.StageEnrich)
	require.NoError(t, err)
	assert.Equal(t, int(constants.LastStage), report.LastCompletedStage)

	assert.Equal(t, int32(0), fetcher.calls.Load())
	assert.Equal(t, int32(0), secondTables.calls.Load())
	assert.Equal(t, int32(0), searcher.calls.Load(), "geocode cache must absorb the rerun")
	assert.Equal(t, int32(0), classifier.calls.Load(), "category cache must absorb the rerun")

	assert.True(t, report.Stages[0].Skipped)
	assert.True(t, report.Stages[1].Skipped)
	assert.True(t, report.Stages[2].Skipped)
	assert.False(t, report.Stages[3].Skipped)

	// The regenerated artifacts are byte-identical to the first run's.
	assert.Equal(t, firstEnriched, readStageFiles(t, enrichedDir, ".json"))
	secondSite, err := os.ReadFile(sitePath)
	require.NoError(t, err)
	assert.Equal(t, firstSite, secondSite)
}

// readStageFiles maps file name to content for every ext file in dir.
func readStageFiles(t *testing.T, dir, ext string) map[string][]byte {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	out := make(map[string][]byte)
	for _, e := range entries {
		// Completion markers carry timestamps; only the day artifacts are
		// compared.
		if e.IsDir() || filepath.Ext(e.Name()) != ext || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		require.NoError(t, err)
		out[e.Name()] = data
	}
	return out
}

func TestPipelineHaltsWhenNoReportsExist(t *testing.T) {
	cfg := testConfig(t)

	notFound := fetcherFunc(func(_ context.Context, _ time.Time, _ string) (download.Status, error) {
		return download.StatusNotFound, nil
	})
	runner := Build(cfg, Deps{
		Fetcher:    notFound,
		Converter:  stubConverter{},
		Tables:     &stubTables{},
		Searcher:   &countingSearcher{},
		Classifier: &countingClassifier{},
	}, nil)

	report, err := runner.Run(context.Background(), day1, day1, constants.FirstStage)
	require.Error(t, err)
	var stageErr *common.StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, 1, stageErr.Stage)
	assert.Equal(t, 1, report.Stages[0].NotFound)
}

type fetcherFunc func(ctx context.Context, date time.Time, dest string) (download.Status, error)

func (f fetcherFunc) Fetch(ctx context.Context, date time.Time, dest string) (download.Status, error) {
	return f(ctx, date, dest)
}
