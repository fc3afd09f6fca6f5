package pipeline

import (
	"log/slog"
	"path/filepath"

	"github.com/joseph-ayodele/patrol-log/constants"
	"github.com/joseph-ayodele/patrol-log/internal/archive"
	"github.com/joseph-ayodele/patrol-log/internal/cache"
	"github.com/joseph-ayodele/patrol-log/internal/categorize"
	"github.com/joseph-ayodele/patrol-log/internal/common"
	"github.com/joseph-ayodele/patrol-log/internal/consolidate"
	"github.com/joseph-ayodele/patrol-log/internal/convert"
	"github.com/joseph-ayodele/patrol-log/internal/download"
	"github.com/joseph-ayodele/patrol-log/internal/export"
	"github.com/joseph-ayodele/patrol-log/internal/extract"
	"github.com/joseph-ayodele/patrol-log/internal/geocode"
	"github.com/joseph-ayodele/patrol-log/internal/llm"
)

// Deps are the external collaborators the stages run against. Production
// wiring fills them with the real HTTP clients and the markitdown converter;
// tests swap in stubs.
type Deps struct {
	Fetcher    download.ReportFetcher
	Converter  convert.Converter
	Tables     llm.TableExtractor
	Searcher   geocode.PlaceSearcher
	Classifier llm.Classifier
	Archive    *archive.Store // optional; nil skips archival
}

// Build assembles the five stages and the runner from config and
// collaborators. The keyed caches are created here so both live under
// <data root>/cache and get flushed by the enrich stage.
func Build(cfg *common.Config, deps Deps, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}

	geoStore := cache.NewStore(filepath.Join(cfg.CacheDir(), "geocode.json"), "geocode", logger)
	catStore := cache.NewStore(filepath.Join(cfg.CacheDir(), "categories.json"), "categories", logger)
	for _, st := range []*cache.Store{geoStore, catStore} {
		if err := st.Load(); err != nil {
			// A damaged cache file costs re-lookups, not correctness.
			logger.Warn("pipeline.cache_load_failed", "error", err)
		}
	}

	geocoder := geocode.NewGeocoder(geoStore, deps.Searcher, cfg.Geocode.CitySuffix, logger)
	categorizer := categorize.NewCategorizer(catStore, deps.Classifier, logger)
	extractor := extract.NewExtractor(logger)

	rawDir := cfg.StageDir(constants.StageDownload.DirName())
	mdDir := cfg.StageDir(constants.StageConvert.DirName())
	csvDir := cfg.StageDir(constants.StageExtract.DirName())
	enrichedDir := cfg.StageDir(constants.StageEnrich.DirName())
	siteDir := cfg.StageDir(constants.StageConsolidate.DirName())

	stages := []Stage{
		NewDownloadStage(deps.Fetcher, rawDir, logger),
		NewConvertStage(deps.Converter, rawDir, mdDir, logger),
		NewExtractStage(deps.Tables, mdDir, csvDir, logger),
		NewEnrichStage(
			extractor, geocoder, categorizer,
			[]*cache.Store{geoStore, catStore},
			cfg.Enrich.Workers,
			csvDir, enrichedDir, logger,
		),
		NewConsolidateStage(
			consolidate.NewConsolidator(logger),
			export.NewService(logger),
			deps.Archive,
			enrichedDir, siteDir, logger,
		),
	}

	reportPath := filepath.Join(cfg.Data.Root, "run_report.json")
	return NewRunner(stages, reportPath, logger)
}
