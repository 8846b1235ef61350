// Package discovery runs the per-entity discovery loop: hop planning, URL
// resolution, scraping, judging, and dossier assembly.
package discovery

import (
	"net/url"
	"strings"

	"github.com/KieranMcFarlane/panther-chat-sub003/internal/core/domain"
	"github.com/KieranMcFarlane/panther-chat-sub003/internal/search"
)

const (
	forbiddenScore   = 0.1
	keywordScoreMax  = 0.5
	keywordScoreStep = 0.25
	entityMatchScore = 0.2
	shapeScore       = 0.1
	minURLLength     = 10
)

// forbiddenFragments mark channels that never carry procurement signals.
var forbiddenFragments = []string{
	"play.google.com",
	"apps.apple.com",
	"/about",
	"/contact",
	"facebook.com",
	"twitter.com",
	"x.com/",
	"instagram.com",
	"tiktok.com",
	"linkedin.com/in/",
}

// hopKeywords reward URLs, titles, and snippets matching the hop intent.
var hopKeywords = map[string][]string{
	domain.HopRFPPage:      {"tender", "procurement", "rfp", "request for proposal", "invitation to tender", "bid"},
	domain.HopCareersPage:  {"careers", "jobs", "vacancies", "join us", "work with us", "recruitment"},
	domain.HopPressRelease: {"press", "announcement", "news release", "media", "statement"},
	domain.HopPartnerSite:  {"partner", "sponsor", "supplier", "collaboration", "agreement"},
	domain.HopOfficialNews: {"news", "official", "update", "launch", "announce"},
	domain.HopJobsBoard:    {"job", "vacancy", "hiring", "position", "recruiter", "digital"},
}

// majorTLDs accepted by the URL-shape bonus, beyond two-letter country codes.
var majorTLDs = map[string]bool{
	"com": true, "org": true, "net": true, "gov": true, "edu": true, "int": true, "io": true,
}

// Score rates one search result for a hop type on [0, 1]. Rule-based and
// deterministic; no network access.
func Score(rawURL, hopType, entityName, title, snippet string) float64 {
	lowered := strings.ToLower(rawURL)

	for _, fragment := range forbiddenFragments {
		if strings.Contains(lowered, fragment) {
			return forbiddenScore
		}
	}

	var score float64

	haystack := lowered + " " + strings.ToLower(title) + " " + strings.ToLower(snippet)

	var keywordScore float64
	for _, kw := range hopKeywords[hopType] {
		if strings.Contains(haystack, kw) {
			keywordScore += keywordScoreStep
		}
	}

	if keywordScore > keywordScoreMax {
		keywordScore = keywordScoreMax
	}

	score += keywordScore

	if matchesEntity(haystack, entityName) {
		score += entityMatchScore
	}

	if validShape(rawURL) {
		score += shapeScore
	}

	if score > 1 {
		score = 1
	}

	return score
}

// SelectBest picks the argmax-scored result. Ties keep the earlier-ranked
// result. Returns ok=false for an empty slice.
func SelectBest(results []search.Result, hopType, entityName string) (search.Result, float64, bool) {
	if len(results) == 0 {
		return search.Result{}, 0, false
	}

	best := results[0]
	bestScore := Score(best.URL, hopType, entityName, best.Title, best.Snippet)

	for _, r := range results[1:] {
		s := Score(r.URL, hopType, entityName, r.Title, r.Snippet)
		if s > bestScore {
			best = r
			bestScore = s
		}
	}

	return best, bestScore, true
}

// matchesEntity checks the entity name or its hyphenated slug.
func matchesEntity(haystack, entityName string) bool {
	name := strings.ToLower(strings.TrimSpace(entityName))
	if name == "" {
		return false
	}

	if strings.Contains(haystack, name) {
		return true
	}

	slug := strings.ReplaceAll(name, " ", "-")

	return strings.Contains(haystack, slug)
}

// validShape requires a parseable URL longer than 10 chars with a country
// code or major gTLD.
func validShape(rawURL string) bool {
	if len(rawURL) <= minURLLength {
		return false
	}

	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return false
	}

	host := u.Hostname()

	i := strings.LastIndex(host, ".")
	if i < 0 || i == len(host)-1 {
		return false
	}

	tld := host[i+1:]

	return len(tld) == 2 || majorTLDs[tld]
}
