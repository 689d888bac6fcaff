package main

import (
	"github.com/spf13/cobra"

	"industryinsider/internal/contextutil"
	"industryinsider/internal/extractor"
	"industryinsider/internal/logging"
	"industryinsider/internal/metrics"
	"industryinsider/internal/storage"
)

func extractCMD() *cobra.Command {
	var baseURLs []string

	var extract = &cobra.Command{
		Use:   "extract",
		Short: "Scrape article listing pages and save new articles to the data directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cfg, closer, err := setup(cmd.Context(), logging.DataExtraction)
			if err != nil {
				return err
			}
			defer func() {
				_ = closer.Close()
			}()
			logger := contextutil.LoggerFromContext(ctx)

			if len(baseURLs) == 0 {
				baseURLs = cfg.Extract.BaseURLs
			}

			db, err := openDB(ctx, cfg.DBPath)
			if err != nil {
				return err
			}
			defer func() {
				_ = db.Close()
			}()

			parser, err := extractor.NewParser(cfg.Extract.ContentClass, cfg.Extract.ExcludeClasses, cfg.Extract.TitleSuffix)
			if err != nil {
				return err
			}
			files, err := extractor.NewFileStore(cfg.DataDir, cfg.FileExtension)
			if err != nil {
				return err
			}

			ex := extractor.New(extractor.Options{
				Browser: &extractor.ChromeBrowser{
					InitialWait: cfg.Extract.InitialWait,
					ScrollPause: cfg.Extract.ScrollPause,
					ScrollStep:  cfg.Extract.ScrollStep,
					MaxScrolls:  cfg.Extract.MaxScrolls,
				},
				Fetcher:     extractor.NewHTTPFetcher(cfg.Extract.FetchTimeout),
				Parser:      parser,
				Files:       files,
				Articles:    storage.NewArticleRepo(db),
				Metrics:     metrics.NewUnregistered(),
				URLPrefix:   cfg.Extract.URLPrefix,
				Concurrency: cfg.Extract.Concurrency,
			})

			stats, err := ex.Run(ctx, baseURLs)
			if err != nil {
				logger.ErrorContext(ctx, "extraction failed", "error", err)
				return err
			}
			logger.InfoContext(ctx, "extraction completed",
				"links", stats.Links,
				"saved", stats.Saved,
				"skipped", stats.Skipped,
			)
			return nil
		},
	}
	extract.Flags().StringSliceVar(&baseURLs, "url", nil, "listing page to scrape (repeatable, default EXTRACT_BASE_URLS)")

	return extract
}
