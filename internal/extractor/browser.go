package extractor

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_extractor.go -package=mocks industryinsider/internal/extractor Browser,Fetcher

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"

	"industryinsider/internal/contextutil"
)

// Browser renders a listing page, including content loaded by infinite scroll.
type Browser interface {
	Render(ctx context.Context, url string) (string, error)
}

// ChromeBrowser drives a headless Chrome through chromedp.
type ChromeBrowser struct {
	InitialWait time.Duration
	ScrollPause time.Duration
	ScrollStep  int
	MaxScrolls  int
	UserAgent   string
}

// Render opens url, waits for the page to settle, scrolls until the document
// height stops growing and returns the final outer HTML.
func (b *ChromeBrowser) Render(ctx context.Context, url string) (string, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
	)
	if b.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(b.UserAgent))
	}
	actx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()
	bctx, cancelBrowser := chromedp.NewContext(actx)
	defer cancelBrowser()

	var html string
	err := chromedp.Run(bctx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(b.InitialWait),
		chromedp.ActionFunc(b.scrollToEnd),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return "", fmt.Errorf("failed to render %s: %w", url, err)
	}
	return html, nil
}

func (b *ChromeBrowser) scrollToEnd(ctx context.Context) error {
	logger := contextutil.LoggerFromContext(ctx)

	var last int64
	for i := 0; i < b.MaxScrolls; i++ {
		if err := chromedp.Evaluate(fmt.Sprintf("window.scrollBy(0, %d)", b.ScrollStep), nil).Do(ctx); err != nil {
			return fmt.Errorf("scroll: %w", err)
		}
		if err := chromedp.Sleep(b.ScrollPause).Do(ctx); err != nil {
			return err
		}

		var height int64
		if err := chromedp.Evaluate("document.body.scrollHeight", &height).Do(ctx); err != nil {
			return fmt.Errorf("read scroll height: %w", err)
		}
		if height == last {
			logger.DebugContext(ctx, "reached end of page", "scrolls", i+1, "height", height)
			return nil
		}
		last = height
	}

	logger.WarnContext(ctx, "stopped scrolling at limit", "max_scrolls", b.MaxScrolls, "height", last)
	return nil
}
