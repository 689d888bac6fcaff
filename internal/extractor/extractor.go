// Package extractor scrapes news articles from listing pages and stores them as text files.
package extractor

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"industryinsider/internal/contextutil"
	"industryinsider/internal/metrics"
	"industryinsider/internal/storage"
)

// Extractor collects article links from listing pages, downloads and parses
// each article and saves new ones to disk.
type Extractor struct {
	browser     Browser
	fetcher     Fetcher
	parser      *Parser
	files       *FileStore
	articles    storage.ArticleStore
	metrics     *metrics.Metrics
	urlPrefix   string
	concurrency int
}

// Options holds the collaborators and settings of an Extractor.
type Options struct {
	Browser     Browser
	Fetcher     Fetcher
	Parser      *Parser
	Files       *FileStore
	Articles    storage.ArticleStore // optional
	Metrics     *metrics.Metrics
	URLPrefix   string
	Concurrency int
}

// New creates an Extractor.
func New(opts Options) *Extractor {
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	m := opts.Metrics
	if m == nil {
		m = metrics.NewUnregistered()
	}
	return &Extractor{
		browser:     opts.Browser,
		fetcher:     opts.Fetcher,
		parser:      opts.Parser,
		files:       opts.Files,
		articles:    opts.Articles,
		metrics:     m,
		urlPrefix:   opts.URLPrefix,
		concurrency: concurrency,
	}
}

// RunStats summarises one extraction run.
type RunStats struct {
	Links   int
	Saved   int
	Skipped int
}

// Run extracts every article reachable from baseURLs. The first error stops the run.
func (e *Extractor) Run(ctx context.Context, baseURLs []string) (*RunStats, error) {
	logger := contextutil.LoggerFromContext(ctx)
	stats := &RunStats{}

	for _, baseURL := range baseURLs {
		links, err := e.CollectLinks(ctx, baseURL)
		if err != nil {
			return stats, err
		}
		stats.Links += len(links)

		pages, err := e.fetchAll(ctx, links)
		if err != nil {
			return stats, err
		}

		for i, page := range pages {
			saved, err := e.store(ctx, page, links[i])
			if err != nil {
				return stats, err
			}
			if saved {
				stats.Saved++
			} else {
				stats.Skipped++
			}
		}
		logger.InfoContext(ctx, "finished base url", "url", baseURL, "links", len(links))
	}

	logger.InfoContext(ctx, "extraction complete", "links", stats.Links, "saved", stats.Saved, "skipped", stats.Skipped)
	return stats, nil
}

// CollectLinks renders the listing page at baseURL and returns its article links.
func (e *Extractor) CollectLinks(ctx context.Context, baseURL string) ([]string, error) {
	page, err := e.browser.Render(ctx, baseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to load listing page: %w", err)
	}

	links, err := ExtractLinks(page, baseURL, e.urlPrefix)
	if err != nil {
		return nil, err
	}

	contextutil.LoggerFromContext(ctx).InfoContext(ctx, "extracted article links", "url", baseURL, "count", len(links))
	return links, nil
}

// fetchAll downloads links concurrently; pages[i] belongs to links[i].
func (e *Extractor) fetchAll(ctx context.Context, links []string) ([]string, error) {
	pages := make([]string, len(links))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for i, link := range links {
		g.Go(func() error {
			page, err := e.fetcher.Fetch(gctx, link)
			if err != nil {
				return err
			}
			pages[i] = page
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to fetch articles: %w", err)
	}
	return pages, nil
}

func (e *Extractor) store(ctx context.Context, page, link string) (bool, error) {
	logger := contextutil.LoggerFromContext(ctx)

	article, err := e.parser.Parse(page, link)
	if err != nil {
		return false, fmt.Errorf("failed to parse %s: %w", link, err)
	}

	name, written, err := e.files.Save(article.Title, article.Content())
	if err != nil {
		return false, err
	}
	if !written {
		e.metrics.ArticlesSkipped.Inc()
		logger.DebugContext(ctx, "article already saved", "file", name)
		return false, nil
	}
	e.metrics.ArticlesSaved.Inc()
	logger.InfoContext(ctx, "saved article", "file", name)

	if e.articles != nil {
		record := &storage.ArticleRecord{
			FileName:  name,
			Title:     article.Title,
			SourceURL: article.SourceURL,
		}
		if err := e.articles.Upsert(ctx, record); err != nil {
			return true, fmt.Errorf("failed to register article: %w", err)
		}
	}
	return true, nil
}
