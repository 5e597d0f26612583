package fetch

import (
	"context"
	"log/slog"
	"time"

	"github.com/chromedp/chromedp"

	apperrors "pricegrab/internal/errors"
)

// rowScript collects the cell texts of the first full data row of the
// history table after the page has rendered.
const rowScript = `
(() => {
	const rows = Array.from(document.querySelectorAll('table tbody tr'));
	for (const row of rows) {
		const cells = Array.from(row.querySelectorAll('td')).map(c => c.innerText.trim());
		if (cells.length >= 7) {
			return cells;
		}
	}
	return [];
})()
`

// BrowserFetcher drives a headless Chrome through the quote page and reads
// the history table from the rendered DOM. Use it when the source stops
// serving the table in the initial document.
type BrowserFetcher struct {
	url      string
	headless bool
	timeout  time.Duration
	logger   *slog.Logger
}

// NewBrowserFetcher creates a chromedp-backed fetch collaborator.
func NewBrowserFetcher(url string, headless bool, timeout time.Duration, logger *slog.Logger) *BrowserFetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &BrowserFetcher{
		url:      url,
		headless: headless,
		timeout:  timeout,
		logger:   logger,
	}
}

// Fetch implements Fetcher.
func (f *BrowserFetcher) Fetch(ctx context.Context) (FieldSet, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	opts := chromedp.DefaultExecAllocatorOptions[:]
	opts = append(opts, chromedp.Flag("headless", f.headless))

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	f.logger.Debug("navigating to quote page",
		slog.String("url", f.url),
		slog.Bool("headless", f.headless))

	var cells []string
	err := chromedp.Run(browserCtx,
		chromedp.Navigate(f.url),
		chromedp.WaitVisible(`table tbody tr`, chromedp.ByQuery),
		chromedp.Evaluate(rowScript, &cells),
	)
	if err != nil {
		return nil, apperrors.NewSourceUnavailableError("browser fetch failed", err).
			WithContext("url", f.url)
	}
	if len(cells) == 0 {
		return nil, apperrors.NewSourceUnavailableError("history table has no data rows", nil).
			WithContext("url", f.url)
	}

	return fieldSetFromCells(cells)
}
