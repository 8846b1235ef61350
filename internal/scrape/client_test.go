package scrape

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cerrors "github.com/KieranMcFarlane/panther-chat-sub003/internal/core/errors"
)

const articleHTML = `<!DOCTYPE html>
<html><head><title>Tender Notice</title></head>
<body><article>
<h1>Invitation to Tender</h1>
<p>The club invites proposals for a new fan engagement platform. Submissions close on 30 September.</p>
<p>All suppliers must register through the procurement portal before submitting.</p>
</article></body></html>`

func newTestScrapeClient() *Client {
	logger := zerolog.Nop()

	return NewClient(NewFetcher(100, 5*time.Second), 8000, &logger)
}

func TestScrapeProjectsContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(articleHTML))
	}))
	defer srv.Close()

	page, err := newTestScrapeClient().Scrape(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, page.Status)
	assert.Contains(t, page.Content, "fan engagement platform")
}

func TestScrapeRetriesOnce(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts++
		if attempts == 1 {
			w.WriteHeader(http.StatusInternalServerError)

			return
		}

		_, _ = w.Write([]byte(articleHTML))
	}))
	defer srv.Close()

	page, err := newTestScrapeClient().Scrape(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
	assert.Equal(t, StatusSuccess, page.Status)
}

func TestScrapeFailureIsTyped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	page, err := newTestScrapeClient().Scrape(context.Background(), srv.URL)
	require.Error(t, err)
	assert.True(t, cerrors.Is(err, cerrors.ErrScrapeFailed))
	assert.Equal(t, StatusError, page.Status)
	assert.NotEmpty(t, page.Error)
}

func TestScrapeDoesNotRetryClientError(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts++
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := newTestScrapeClient().Scrape(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Equal(t, 1, attempts, "a 404 never clears on retry")
	assert.False(t, cerrors.Is(err, cerrors.ErrTransientIO))
}

func TestScrapeServerErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := newTestScrapeClient().Scrape(context.Background(), srv.URL)
	require.Error(t, err)
	assert.True(t, cerrors.Is(err, cerrors.ErrTransientIO))
	assert.True(t, cerrors.Is(err, cerrors.ErrScrapeFailed))
}

func TestBatchScrapeIsolatesFailures(t *testing.T) {
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(articleHTML))
	}))
	defer good.Close()

	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer bad.Close()

	pages := newTestScrapeClient().BatchScrape(context.Background(), []string{good.URL, bad.URL})
	require.Len(t, pages, 2)
	assert.Equal(t, StatusSuccess, pages[0].Status)
	assert.Equal(t, StatusError, pages[1].Status)
}

func TestNormalizeText(t *testing.T) {
	in := "line one\n\n\n\nline two   \n"
	assert.Equal(t, "line one\n\nline two", normalizeText(in))
}

func TestTruncateKeepsRunesWhole(t *testing.T) {
	// "é" is two bytes; a byte-index cut at 3 would split the second rune.
	in := "aéé"
	got := truncate(in, 4)

	assert.Equal(t, "aé", got)
	assert.True(t, utf8.ValidString(got))

	assert.Equal(t, in, truncate(in, len(in)))
	assert.Equal(t, in, truncate(in, 0))
}
