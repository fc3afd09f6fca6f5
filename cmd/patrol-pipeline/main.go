// Command patrol-pipeline runs the police report log pipeline over a date
// range: download the daily PDFs, convert them to markdown, extract the
// incident table, enrich with coordinates and offense categories, and
// consolidate into the published dataset.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/patrol-log/constants"
	"github.com/joseph-ayodele/patrol-log/internal/archive"
	"github.com/joseph-ayodele/patrol-log/internal/common"
	"github.com/joseph-ayodele/patrol-log/internal/convert"
	"github.com/joseph-ayodele/patrol-log/internal/download"
	"github.com/joseph-ayodele/patrol-log/internal/geocode"
	"github.com/joseph-ayodele/patrol-log/internal/llm/anthropic"
	"github.com/joseph-ayodele/patrol-log/internal/pipeline"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	var (
		startDateFlag string
		endDateFlag   string
		startStepFlag int
	)

	rootCmd := &cobra.Command{
		Use:          "patrol-pipeline",
		Short:        "Build the Palo Alto police incident dataset from the daily report logs",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			startDate, err := time.Parse("2006-01-02", startDateFlag)
			if err != nil {
				return fmt.Errorf("invalid --start-date %q: %w", startDateFlag, err)
			}
			endDate, err := time.Parse("2006-01-02", endDateFlag)
			if err != nil {
				return fmt.Errorf("invalid --end-date %q: %w", endDateFlag, err)
			}
			startStep := constants.Stage(startStepFlag)
			if !startStep.Valid() {
				return fmt.Errorf("invalid --start-step %d: must be %d..%d",
					startStepFlag, constants.FirstStage, constants.LastStage)
			}

			cfg := common.LoadConfig()
			if err := cfg.Validate(startStepFlag); err != nil {
				return err
			}

			arch, err := archive.Open(filepath.Join(cfg.Data.Root, "incidents.db"), logger)
			if err != nil {
				return err
			}
			defer func() {
				if err := arch.Close(); err != nil {
					logger.Warn("archive.close_error", "error", err)
				}
			}()

			claude := anthropic.NewClient(anthropic.Config{
				APIKey:      cfg.LLM.APIKey,
				BaseURL:     cfg.LLM.BaseURL,
				Model:       cfg.LLM.Model,
				MaxTokens:   cfg.LLM.MaxTokens,
				Temperature: cfg.LLM.Temperature,
				Timeout:     cfg.LLM.Timeout,
			}, logger)

			runner := pipeline.Build(cfg, pipeline.Deps{
				Fetcher:   download.NewDownloader(cfg.Download.BaseURL, cfg.Download.Timeout, logger),
				Converter: convert.NewMarkitdownConverter(cfg.Convert.MarkitdownBin, logger),
				Tables:    claude,
				Searcher: geocode.NewPlacesClient(geocode.PlacesConfig{
					APIKey:      cfg.Geocode.APIKey,
					BiasLat:     cfg.Geocode.BiasLat,
					BiasLon:     cfg.Geocode.BiasLon,
					BiasRadiusM: cfg.Geocode.BiasRadiusM,
					Timeout:     cfg.Geocode.Timeout,
				}, logger),
				Classifier: claude,
				Archive:    arch,
			}, logger)

			report, err := runner.Run(cmd.Context(), startDate, endDate, startStep)
			if report != nil {
				for _, stage := range report.Stages {
					for _, f := range stage.Failures {
						logger.Warn("pipeline.unit_failed", "stage", stage.Stage, "unit", f.Unit, "reason", f.Reason)
					}
				}
			}
			return err
		},
	}

	rootCmd.Flags().StringVar(&startDateFlag, "start-date", "", "first report date, YYYY-MM-DD (required)")
	rootCmd.Flags().StringVar(&endDateFlag, "end-date", "", "last report date, YYYY-MM-DD (required)")
	rootCmd.Flags().IntVar(&startStepFlag, "start-step", int(constants.FirstStage),
		"stage to start from (1=download 2=convert 3=extract 4=enrich 5=consolidate)")
	_ = rootCmd.MarkFlagRequired("start-date")
	_ = rootCmd.MarkFlagRequired("end-date")

	if err := rootCmd.Execute(); err != nil {
		logger.Error("pipeline.run_failed", "error", err)
		os.Exit(1)
	}
}
