// Package verify annotates evidence items with reachability and source
// credibility. Verification is best-effort: a failed probe downgrades
// credibility but never aborts the run.
package verify

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/KieranMcFarlane/panther-chat-sub003/internal/core/domain"
)

const (
	defaultTimeout = 10 * time.Second

	// verifiedCredibilityFloor is the minimum credibility for an accessible
	// item to count as verified.
	verifiedCredibilityFloor = 0.4

	// placeholderCredibility caps unreachable or placeholder URLs.
	placeholderCredibility = 0.2
)

// Credibility tiers: official sites > major press > aggregators > social.
const (
	credibilityOfficial   = 0.9
	credibilityPress      = 0.7
	credibilityAggregator = 0.5
	credibilitySocial     = 0.3
	credibilityUnknown    = 0.45
)

// officialSuffixes mark first-party and government sources.
var officialSuffixes = []string{".gov", ".gov.uk", ".org", ".int", ".edu"}

// pressDomains is the major-press whitelist.
var pressDomains = map[string]bool{
	"bbc.com": true, "bbc.co.uk": true, "reuters.com": true, "apnews.com": true,
	"theguardian.com": true, "ft.com": true, "bloomberg.com": true,
	"skysports.com": true, "espn.com": true, "theathletic.com": true,
	"sportbusiness.com": true, "sportspromedia.com": true,
}

// aggregatorDomains score below press.
var aggregatorDomains = map[string]bool{
	"medium.com": true, "substack.com": true, "news.google.com": true,
	"sports.yahoo.com": true, "msn.com": true,
}

// socialDomains score lowest of the reachable tiers.
var socialDomains = map[string]bool{
	"twitter.com": true, "x.com": true, "facebook.com": true,
	"instagram.com": true, "linkedin.com": true, "tiktok.com": true,
	"reddit.com": true, "youtube.com": true,
}

// Verifier probes evidence URLs and scores source credibility.
type Verifier struct {
	client *http.Client
	logger *zerolog.Logger
}

// New creates a verifier with the given probe timeout.
func New(timeout time.Duration, logger *zerolog.Logger) *Verifier {
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Verifier{
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// Verify annotates one evidence item in place: accessible, credibility, and
// the verified flag.
func (v *Verifier) Verify(ctx context.Context, ev *domain.Evidence) {
	ev.Accessible = v.probe(ctx, ev.SourceURL)
	ev.CredibilityScore = v.credibility(ev.SourceURL, ev.Accessible)
	ev.Verified = ev.Accessible && ev.CredibilityScore >= verifiedCredibilityFloor
}

// VerifyAll annotates a slice of evidence items sequentially.
func (v *Verifier) VerifyAll(ctx context.Context, items []domain.Evidence) []domain.Evidence {
	for i := range items {
		v.Verify(ctx, &items[i])
	}

	return items
}

// probe issues a HEAD request, falling back to a GET when HEAD is rejected.
// Accessible means a 2xx/3xx status with a text content type.
func (v *Verifier) probe(ctx context.Context, rawURL string) bool {
	if rawURL == "" {
		return false
	}

	ok, retryWithGet := v.probeMethod(ctx, http.MethodHead, rawURL)
	if ok {
		return true
	}

	if retryWithGet {
		ok, _ = v.probeMethod(ctx, http.MethodGet, rawURL)
	}

	return ok
}

func (v *Verifier) probeMethod(ctx context.Context, method, rawURL string) (accessible, retryWithGet bool) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return false, false
	}

	resp, err := v.client.Do(req)
	if err != nil {
		v.logger.Debug().Err(err).Str("url", rawURL).Msg("verification probe failed")

		return false, false
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	// Some servers reject HEAD outright; a GET may still succeed.
	if resp.StatusCode == http.StatusMethodNotAllowed || resp.StatusCode == http.StatusNotImplemented {
		return false, true
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 400 {
		return false, false
	}

	return isTextContentType(resp.Header.Get("Content-Type")), false
}

func isTextContentType(ct string) bool {
	ct = strings.ToLower(ct)

	return ct == "" ||
		strings.HasPrefix(ct, "text/") ||
		strings.Contains(ct, "html") ||
		strings.Contains(ct, "json") ||
		strings.Contains(ct, "xml")
}

// credibility scores a source URL by whitelist tier and TLD heuristic.
// Unreachable or placeholder URLs never exceed 0.2.
func (v *Verifier) credibility(rawURL string, accessible bool) float64 {
	host := hostOf(rawURL)
	if host == "" || isPlaceholder(rawURL) || !accessible {
		return placeholderCredibility
	}

	switch {
	case pressDomains[host]:
		return credibilityPress
	case aggregatorDomains[host]:
		return credibilityAggregator
	case socialDomains[host]:
		return credibilitySocial
	}

	for _, suffix := range officialSuffixes {
		if strings.HasSuffix(host, suffix) {
			return credibilityOfficial
		}
	}

	// First-party club/federation sites usually sit on a country TLD or .com
	// without being press or social; treat them between press and aggregator.
	return credibilityUnknown
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return ""
	}

	return strings.ToLower(strings.TrimPrefix(u.Host, "www."))
}

func isPlaceholder(rawURL string) bool {
	lower := strings.ToLower(rawURL)

	return strings.Contains(lower, "example.com") ||
		strings.Contains(lower, "localhost") ||
		strings.Contains(lower, "placeholder")
}
