package verify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/KieranMcFarlane/panther-chat-sub003/internal/core/domain"
)

func newTestVerifier() *Verifier {
	logger := zerolog.Nop()

	return New(2*time.Second, &logger)
}

func TestVerifyAccessibleTextURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ev := domain.Evidence{SourceURL: srv.URL}
	newTestVerifier().Verify(context.Background(), &ev)

	assert.True(t, ev.Accessible)
	assert.GreaterOrEqual(t, ev.CredibilityScore, 0.4)
	assert.True(t, ev.Verified)
}

func TestVerifyUnreachableURLDowngraded(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	ev := domain.Evidence{SourceURL: srv.URL}
	newTestVerifier().Verify(context.Background(), &ev)

	assert.False(t, ev.Accessible)
	assert.LessOrEqual(t, ev.CredibilityScore, 0.2)
	assert.False(t, ev.Verified)
}

func TestVerifyHeadRejectedFallsBackToGet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusMethodNotAllowed)

			return
		}

		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ev := domain.Evidence{SourceURL: srv.URL}
	newTestVerifier().Verify(context.Background(), &ev)

	assert.True(t, ev.Accessible)
}

func TestVerifyBinaryContentTypeNotAccessible(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ev := domain.Evidence{SourceURL: srv.URL}
	newTestVerifier().Verify(context.Background(), &ev)

	assert.False(t, ev.Accessible)
}

func TestCredibilityTiers(t *testing.T) {
	v := newTestVerifier()

	tests := []struct {
		url  string
		want float64
	}{
		{"https://www.bbc.com/sport/article", credibilityPress},
		{"https://medium.com/@someone/post", credibilityAggregator},
		{"https://twitter.com/club/status/1", credibilitySocial},
		{"https://www.knvb.org/procurement", credibilityOfficial},
		{"https://arsenal.com/tenders", credibilityUnknown},
		{"https://example.com/fake", placeholderCredibility},
	}

	for _, tt := range tests {
		assert.InDelta(t, tt.want, v.credibility(tt.url, true), 1e-9, tt.url)
	}
}

func TestVerificationFailureNeverPanics(t *testing.T) {
	ev := domain.Evidence{SourceURL: "http://127.0.0.1:1/unreachable"}
	newTestVerifier().Verify(context.Background(), &ev)

	assert.False(t, ev.Verified)
	assert.LessOrEqual(t, ev.CredibilityScore, 0.2)
}
