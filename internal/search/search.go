// Package search provides the multi-engine web search client. Engine
// preference is per hop type; on error or empty results the client falls
// through the preference list. Results are cached for 24 hours under a
// normalised query key.
package search

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/KieranMcFarlane/panther-chat-sub003/internal/core/domain"
	cerrors "github.com/KieranMcFarlane/panther-chat-sub003/internal/core/errors"
	"github.com/KieranMcFarlane/panther-chat-sub003/internal/platform/observability"
)

// Engine name constants.
const (
	EngineGoogle     = "google"
	EngineBing       = "bing"
	EngineDuckDuckGo = "duckduckgo"
)

// Result is one search hit.
type Result struct {
	URL     string
	Title   string
	Snippet string
	Rank    int
}

// Engine is a single search backend.
type Engine interface {
	Name() string
	Search(ctx context.Context, query string, n int) ([]Result, error)
}

// enginePreference maps hop types to engine order. RFP hops favour google
// first; the rest share the same order today but stay independently tunable.
var enginePreference = map[string][]string{
	domain.HopRFPPage:      {EngineGoogle, EngineBing, EngineDuckDuckGo},
	domain.HopCareersPage:  {EngineGoogle, EngineDuckDuckGo, EngineBing},
	domain.HopPressRelease: {EngineGoogle, EngineBing, EngineDuckDuckGo},
	domain.HopPartnerSite:  {EngineBing, EngineGoogle, EngineDuckDuckGo},
	domain.HopOfficialNews: {EngineGoogle, EngineBing, EngineDuckDuckGo},
	domain.HopJobsBoard:    {EngineDuckDuckGo, EngineGoogle, EngineBing},
}

const (
	retryDelay       = time.Second
	cacheOutcomeHit  = "hit"
	cacheOutcomeMiss = "miss"
)

// Client searches with per-hop-type engine fallback and a TTL cache.
type Client struct {
	mu      sync.RWMutex
	engines map[string]Engine
	cache   *queryCache
	logger  *zerolog.Logger
}

// NewClient builds a client over the given engines.
func NewClient(cacheTTL time.Duration, logger *zerolog.Logger, engines ...Engine) *Client {
	byName := make(map[string]Engine, len(engines))
	for _, e := range engines {
		byName[e.Name()] = e
	}

	return &Client{
		engines: byName,
		cache:   newQueryCache(cacheTTL),
		logger:  logger,
	}
}

// Search issues a query for the given hop type, walking the engine
// preference list until one returns results. Cached results short-circuit
// the network entirely. entityName is stripped from the cache key so
// semantically equivalent queries hit.
func (c *Client) Search(ctx context.Context, query, hopType, entityName string, n int) ([]Result, error) {
	order, ok := enginePreference[hopType]
	if !ok {
		order = enginePreference[domain.HopOfficialNews]
	}

	for _, name := range order {
		engine, found := c.engine(name)
		if !found {
			continue
		}

		key := cacheKey(query, entityName, name)

		cached, cacheErr := c.cache.get(key)
		if cacheErr == nil {
			observability.SearchCacheHits.WithLabelValues(cacheOutcomeHit).Inc()

			return cached, nil
		}

		observability.SearchCacheHits.WithLabelValues(cacheOutcomeMiss).Inc()

		if cerrors.Is(cacheErr, cerrors.ErrCacheExpired) {
			c.logger.Debug().Str("engine", name).Str("query", query).Msg("cache entry expired, refreshing")
		}

		results, err := c.searchWithRetry(ctx, engine, query, n)
		if err != nil {
			observability.SearchRequests.WithLabelValues(name, "error").Inc()
			c.logger.Warn().Err(err).Str("engine", name).Str("query", query).Msg("engine failed, falling through")

			continue
		}

		if len(results) == 0 {
			observability.SearchRequests.WithLabelValues(name, "empty").Inc()

			continue
		}

		observability.SearchRequests.WithLabelValues(name, "ok").Inc()
		c.cache.put(key, results)

		return results, nil
	}

	return nil, fmt.Errorf("search %q: %w", query, cerrors.ErrNoResults)
}

// searchWithRetry retries once on transient failure with a short delay.
func (c *Client) searchWithRetry(ctx context.Context, engine Engine, query string, n int) ([]Result, error) {
	results, err := engine.Search(ctx, query, n)
	if err == nil {
		return results, nil
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(retryDelay):
	}

	return engine.Search(ctx, query, n)
}

func (c *Client) engine(name string) (Engine, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.engines[name]

	return e, ok
}
