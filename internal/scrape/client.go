package scrape

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	readability "github.com/go-shiori/go-readability"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	cerrors "github.com/KieranMcFarlane/panther-chat-sub003/internal/core/errors"
	"github.com/KieranMcFarlane/panther-chat-sub003/internal/platform/observability"
)

// Scrape status values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

const (
	retryDelay       = time.Second
	batchConcurrency = 4
)

// Page is the result of scraping one URL.
type Page struct {
	URL     string
	Title   string
	Content string
	Status  string
	Error   string
}

// Client scrapes URLs into a markdown-ish textual projection using the
// readability algorithm.
type Client struct {
	fetcher *Fetcher
	maxLen  int
	logger  *zerolog.Logger
}

// NewClient creates a scrape client. maxLen truncates the projected content.
func NewClient(fetcher *Fetcher, maxLen int, logger *zerolog.Logger) *Client {
	return &Client{fetcher: fetcher, maxLen: maxLen, logger: logger}
}

// Scrape fetches one URL and projects it to text. Transient fetch failures
// are retried once after a short delay.
func (c *Client) Scrape(ctx context.Context, rawURL string) (Page, error) {
	body, err := c.fetchWithRetry(ctx, rawURL)
	if err != nil {
		observability.ScrapeRequests.WithLabelValues(StatusError).Inc()

		return Page{URL: rawURL, Status: StatusError, Error: err.Error()},
			fmt.Errorf("%w: %s: %w", cerrors.ErrScrapeFailed, rawURL, err)
	}

	page := c.project(body, rawURL)
	observability.ScrapeRequests.WithLabelValues(page.Status).Inc()

	return page, nil
}

// BatchScrape fetches several URLs concurrently. Individual failures are
// reported per page, never as a batch error.
func (c *Client) BatchScrape(ctx context.Context, urls []string) []Page {
	pages := make([]Page, len(urls))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(batchConcurrency)

	for i, u := range urls {
		g.Go(func() error {
			page, err := c.Scrape(gctx, u)
			if err != nil {
				c.logger.Debug().Err(err).Str("url", u).Msg("batch scrape item failed")
			}

			pages[i] = page

			return nil
		})
	}

	_ = g.Wait() //nolint:errcheck // workers never return errors

	return pages
}

func (c *Client) fetchWithRetry(ctx context.Context, rawURL string) ([]byte, error) {
	body, err := c.fetcher.Fetch(ctx, rawURL)
	if err == nil || !cerrors.Is(err, cerrors.ErrTransientIO) {
		return body, err
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(retryDelay):
	}

	return c.fetcher.Fetch(ctx, rawURL)
}

// project runs readability over the body and normalises the text. A
// readability failure degrades to a raw-text projection rather than an error.
func (c *Client) project(body []byte, rawURL string) Page {
	u, _ := url.Parse(rawURL)

	article, err := readability.FromReader(bytes.NewReader(body), u)
	if err != nil {
		return Page{
			URL:     rawURL,
			Content: truncate(normalizeText(string(body)), c.maxLen),
			Status:  StatusSuccess,
		}
	}

	return Page{
		URL:     rawURL,
		Title:   article.Title,
		Content: truncate(normalizeText(article.TextContent), c.maxLen),
		Status:  StatusSuccess,
	}
}

// normalizeText collapses runs of blank lines and trims trailing space.
func normalizeText(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	blank := false

	for _, line := range lines {
		trimmed := strings.TrimRight(line, " \t")
		if strings.TrimSpace(trimmed) == "" {
			if blank {
				continue
			}

			blank = true
			trimmed = ""
		} else {
			blank = false
		}

		out = append(out, trimmed)
	}

	return strings.TrimSpace(strings.Join(out, "\n"))
}

// truncate cuts s to at most maxLen bytes, backing up so a multi-byte rune
// is never split.
func truncate(s string, maxLen int) string {
	if maxLen <= 0 || len(s) <= maxLen {
		return s
	}

	cut := maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}

	return s[:cut]
}
