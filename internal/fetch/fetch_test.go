package fetch

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "pricegrab/internal/errors"
)

const quotePage = `<html><body>
<table>
<thead><tr><th>Date</th><th>Open</th><th>High</th><th>Low</th><th>Close</th><th>Adj Close</th><th>Volume</th></tr></thead>
<tbody>
<tr><td><span>Dec 17, 2020</span></td><td><span>5.00</span></td><td><span>5.50</span></td><td><span>4.90</span></td><td><span>5.20</span></td><td><span>5.20</span></td><td><span>12,345</span></td></tr>
<tr><td><span>Dec 16, 2020</span></td><td><span>4.80</span></td><td><span>5.05</span></td><td><span>4.75</span></td><td><span>5.00</span></td><td><span>5.00</span></td><td><span>9,870</span></td></tr>
</tbody>
</table>
</body></html>`

const quotePageWithDividendRow = `<html><body>
<table>
<tbody>
<tr><td><span>Dec 18, 2020</span></td><td colspan="6"><span>0.05 Dividend</span></td></tr>
<tr><td><span>Dec 17, 2020</span></td><td><span>5.00</span></td><td><span>5.50</span></td><td><span>4.90</span></td><td><span>5.20</span></td><td><span>5.20</span></td><td><span>12,345</span></td></tr>
</tbody>
</table>
</body></html>`

func serve(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestHTTPFetcher_Fetch(t *testing.T) {
	srv := serve(t, http.StatusOK, quotePage)
	f := NewHTTPFetcher(srv.URL, "test-agent", 5*time.Second, nil)

	fs, err := f.Fetch(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "Dec 17, 2020", fs[FieldDate])
	assert.Equal(t, "5.00", fs[FieldOpen])
	assert.Equal(t, "5.50", fs[FieldHigh])
	assert.Equal(t, "4.90", fs[FieldLow])
	assert.Equal(t, "5.20", fs[FieldClose])
	assert.Equal(t, "12,345", fs[FieldVolume])
}

func TestHTTPFetcher_SendsUserAgent(t *testing.T) {
	var gotAgent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAgent = r.Header.Get("User-Agent")
		fmt.Fprint(w, quotePage)
	}))
	t.Cleanup(srv.Close)

	f := NewHTTPFetcher(srv.URL, "pricegrab-test", 5*time.Second, nil)
	_, err := f.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "pricegrab-test", gotAgent)
}

func TestHTTPFetcher_SkipsAnnotationRows(t *testing.T) {
	srv := serve(t, http.StatusOK, quotePageWithDividendRow)
	f := NewHTTPFetcher(srv.URL, "", 5*time.Second, nil)

	fs, err := f.Fetch(context.Background())
	require.NoError(t, err)
	// The dividend row on top must not be mistaken for the latest session.
	assert.Equal(t, "Dec 17, 2020", fs[FieldDate])
}

func TestHTTPFetcher_SourceErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"server error", http.StatusInternalServerError, "oops"},
		{"not found", http.StatusNotFound, ""},
		{"no table", http.StatusOK, "<html><body>nothing here</body></html>"},
		{"empty tbody", http.StatusOK, "<html><table><tbody></tbody></table></html>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := serve(t, tt.status, tt.body)
			f := NewHTTPFetcher(srv.URL, "", 5*time.Second, nil)

			_, err := f.Fetch(context.Background())
			require.Error(t, err)
			assert.True(t, apperrors.IsType(err, apperrors.ErrTypeNetwork))
		})
	}
}

func TestHTTPFetcher_Unreachable(t *testing.T) {
	f := NewHTTPFetcher("http://127.0.0.1:1/history", "", 500*time.Millisecond, nil)

	_, err := f.Fetch(context.Background())
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeNetwork))
}

func TestFieldSetFromCells(t *testing.T) {
	cells := []string{"Dec 17, 2020", "5.00", "5.50", "4.90", "5.20", "5.20", "12,345"}

	fs, err := fieldSetFromCells(cells)
	require.NoError(t, err)
	assert.Equal(t, "12,345", fs[FieldVolume])
	// Adjusted close (index 5) is never carried over.
	assert.Len(t, fs, 6)
}

func TestFieldSetFromCells_EmptyCell(t *testing.T) {
	cells := []string{"Dec 17, 2020", "5.00", "5.50", "4.90", "", "5.20", "12,345"}

	_, err := fieldSetFromCells(cells)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeFieldMissing))
}

func TestFieldSet_Validate(t *testing.T) {
	fs := FieldSet{
		FieldDate: "Dec 17, 2020", FieldOpen: "5.00", FieldHigh: "5.50",
		FieldLow: "4.90", FieldClose: "5.20", FieldVolume: "12,345",
	}
	require.NoError(t, fs.Validate())

	delete(fs, FieldVolume)
	err := fs.Validate()
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeFieldMissing))
}
