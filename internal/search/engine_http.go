package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const (
	httpEngineDefaultTimeout = 30 * time.Second
	httpEngineSearchPath     = "/search"
	httpHeaderAccept         = "Accept"
	httpContentTypeJSON      = "application/json"
	maxResponseBytes         = 2 * 1024 * 1024
)

var errUnexpectedStatus = errors.New("search engine unexpected status")

// HTTPEngine adapts one upstream engine of a SearxNG-compatible metasearch
// instance. One HTTPEngine is created per engine name so the client can walk
// its per-hop preference order.
type HTTPEngine struct {
	name       string
	baseURL    string
	httpClient *http.Client
}

// HTTPEngineConfig holds configuration for an HTTPEngine.
type HTTPEngineConfig struct {
	Name    string
	BaseURL string
	Timeout time.Duration
}

// NewHTTPEngine creates an engine adapter for a metasearch instance.
func NewHTTPEngine(cfg HTTPEngineConfig) *HTTPEngine {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = httpEngineDefaultTimeout
	}

	return &HTTPEngine{
		name:    cfg.Name,
		baseURL: cfg.BaseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Name returns the engine name.
func (e *HTTPEngine) Name() string { return e.name }

// Search queries the metasearch instance restricted to this engine.
func (e *HTTPEngine) Search(ctx context.Context, query string, n int) ([]Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.buildSearchURL(query, n), nil)
	if err != nil {
		return nil, fmt.Errorf("create search request: %w", err)
	}

	req.Header.Set(httpHeaderAccept, httpContentTypeJSON)

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request: %w", err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %d", errUnexpectedStatus, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read search response: %w", err)
	}

	var parsed struct {
		Results []struct {
			URL     string `json:"url"`
			Title   string `json:"title"`
			Content string `json:"content"`
		} `json:"results"`
	}

	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("parse search response: %w", err)
	}

	results := make([]Result, 0, len(parsed.Results))

	for i, r := range parsed.Results {
		if i >= n {
			break
		}

		results = append(results, Result{
			URL:     r.URL,
			Title:   r.Title,
			Snippet: r.Content,
			Rank:    i,
		})
	}

	return results, nil
}

func (e *HTTPEngine) buildSearchURL(query string, n int) string {
	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "json")
	params.Set("engines", e.name)
	params.Set("max_results", strconv.Itoa(n))

	return e.baseURL + httpEngineSearchPath + "?" + params.Encode()
}
