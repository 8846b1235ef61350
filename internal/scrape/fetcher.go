// Package scrape fetches web pages and projects them to a markdown-ish
// textual form for the Ralph judge. Fetching is rate limited globally and
// per domain; transient failures are retried once.
package scrape

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	cerrors "github.com/KieranMcFarlane/panther-chat-sub003/internal/core/errors"
)

const (
	maxRedirects     = 5
	maxBodyBytes     = 5 * 1024 * 1024
	perDomainRPS     = 1
	perDomainBurst   = 2
	globalBurst      = 5
	defaultTimeout   = 30 * time.Second
	defaultUserAgent = "SignalDiscovery/1.0 (Procurement Research)"
)

// Fetcher downloads raw HTML with global and per-domain rate limits.
type Fetcher struct {
	client         *http.Client
	globalLimiter  *rate.Limiter
	domainLimiters map[string]*rate.Limiter
	mu             sync.RWMutex
	userAgent      string
}

// NewFetcher creates a fetcher with the given global requests-per-second.
func NewFetcher(rps float64, timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Fetcher{
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(_ *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return fmt.Errorf("too many redirects")
				}

				return nil
			},
		},
		globalLimiter:  rate.NewLimiter(rate.Limit(rps), globalBurst),
		domainLimiters: make(map[string]*rate.Limiter),
		userAgent:      defaultUserAgent,
	}
}

// Fetch downloads a page body, capped at 5 MB.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	if err := f.globalLimiter.Wait(ctx); err != nil {
		return nil, err
	}

	domainLimiter := f.getDomainLimiter(f.extractDomain(rawURL))
	if err := domainLimiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}

	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", cerrors.ErrTransientIO, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Server-side failures may clear on retry; client errors will not.
		if resp.StatusCode >= http.StatusInternalServerError {
			return nil, fmt.Errorf("%w: HTTP %d", cerrors.ErrTransientIO, resp.StatusCode)
		}

		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	return io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
}

func (f *Fetcher) getDomainLimiter(domain string) *rate.Limiter {
	f.mu.RLock()
	limiter, exists := f.domainLimiters[domain]
	f.mu.RUnlock()

	if exists {
		return limiter
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	// Double check
	if limiter, exists := f.domainLimiters[domain]; exists {
		return limiter
	}

	limiter = rate.NewLimiter(perDomainRPS, perDomainBurst)
	f.domainLimiters[domain] = limiter

	return limiter
}

func (f *Fetcher) extractDomain(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}

	return strings.ToLower(u.Host)
}
