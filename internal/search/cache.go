package search

import (
	"strings"
	"sync"
	"time"
	"unicode"

	cerrors "github.com/KieranMcFarlane/panther-chat-sub003/internal/core/errors"
)

// queryCache is an in-process TTL cache keyed by normalised query + engine.
// Concurrent readers, single writer per key; stale reads are acceptable.
type queryCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]cacheEntry
}

type cacheEntry struct {
	results  []Result
	storedAt time.Time
}

func newQueryCache(ttl time.Duration) *queryCache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	return &queryCache{
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
	}
}

// get returns the cached results for key, ErrCacheNotFound when the key was
// never stored, or ErrCacheExpired when the entry outlived its TTL.
func (c *queryCache) get(key string) ([]Result, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, cerrors.ErrCacheNotFound
	}

	if time.Since(entry.storedAt) > c.ttl {
		return nil, cerrors.ErrCacheExpired
	}

	return entry.results, nil
}

func (c *queryCache) put(key string, results []Result) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = cacheEntry{results: results, storedAt: time.Now()}
}

// cacheKey normalises a query so semantically equivalent forms collide:
// casing and punctuation are stripped, whitespace collapsed, and the entity
// name removed.
func cacheKey(query, entityName, engine string) string {
	return normalizeQuery(query, entityName) + "|" + engine
}

func normalizeQuery(query, entityName string) string {
	q := strings.ToLower(query)

	if entityName != "" {
		q = strings.ReplaceAll(q, strings.ToLower(entityName), " ")
	}

	var b strings.Builder

	for _, r := range q {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}

	return strings.Join(strings.Fields(b.String()), " ")
}
