package fetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"time"

	apperrors "pricegrab/internal/errors"
)

var (
	tbodyPattern = regexp.MustCompile(`(?s)<tbody[^>]*>(.*?)</tbody>`)
	rowPattern   = regexp.MustCompile(`(?s)<tr[^>]*>(.*?)</tr>`)
	// A data cell may wrap its text in a span; annotation rows do not.
	cellPattern = regexp.MustCompile(`(?s)<td[^>]*>(?:\s*<span[^>]*>)?([^<]*)`)
)

// HTTPFetcher retrieves the quote page with a plain GET and extracts the
// first data row of the history table. It works as long as the source
// serves the table in the initial document; pages that only render it
// under JavaScript need the BrowserFetcher instead.
type HTTPFetcher struct {
	url       string
	userAgent string
	client    *http.Client
	logger    *slog.Logger
}

// NewHTTPFetcher creates an HTTP fetch collaborator for the given
// historical-data page URL. The timeout bounds the whole request.
func NewHTTPFetcher(url, userAgent string, timeout time.Duration, logger *slog.Logger) *HTTPFetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPFetcher{
		url:       url,
		userAgent: userAgent,
		client:    &http.Client{Timeout: timeout},
		logger:    logger,
	}
}

// Fetch implements Fetcher.
func (f *HTTPFetcher) Fetch(ctx context.Context) (FieldSet, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, apperrors.NewSourceUnavailableError("failed to build request", err).
			WithContext("url", f.url)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, apperrors.NewSourceUnavailableError("failed to reach source", err).
			WithContext("url", f.url)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apperrors.NewSourceUnavailableError(
			fmt.Sprintf("source returned status %d", resp.StatusCode), nil).
			WithContext("url", f.url).
			WithContext("status", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.NewSourceUnavailableError("failed to read source response", err).
			WithContext("url", f.url)
	}

	fs, err := extractLatestRow(string(body))
	if err != nil {
		return nil, err
	}

	f.logger.Debug("fetched latest quote row",
		slog.String("url", f.url),
		slog.String("date", fs[FieldDate]))
	return fs, nil
}

// extractLatestRow finds the topmost full data row of the history table.
// The topmost row is where the source publishes the latest session, so only
// the first row with a full cell count is considered.
func extractLatestRow(html string) (FieldSet, error) {
	tbody := tbodyPattern.FindStringSubmatch(html)
	if tbody == nil {
		return nil, apperrors.NewSourceUnavailableError("history table not found in page markup", nil)
	}

	for _, row := range rowPattern.FindAllStringSubmatch(tbody[1], -1) {
		matches := cellPattern.FindAllStringSubmatch(row[1], -1)
		if len(matches) < historyRowCells {
			// Dividend and split annotation rows span fewer cells.
			continue
		}
		cells := make([]string, len(matches))
		for i, m := range matches {
			cells[i] = m[1]
		}
		return fieldSetFromCells(cells)
	}

	return nil, apperrors.NewSourceUnavailableError("history table has no data rows", nil)
}
