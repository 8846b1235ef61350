package discovery

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/KieranMcFarlane/panther-chat-sub003/internal/core/domain"
	"github.com/KieranMcFarlane/panther-chat-sub003/internal/search"
)

func TestScoreForbiddenChannelsClamped(t *testing.T) {
	tests := []struct {
		name string
		url  string
	}{
		{name: "app_store", url: "https://apps.apple.com/app/fc-example/id12345"},
		{name: "play_store", url: "https://play.google.com/store/apps/details?id=com.fcexample"},
		{name: "about_page", url: "https://fcexample.com/about"},
		{name: "contact_page", url: "https://fcexample.com/contact"},
		{name: "social_profile", url: "https://facebook.com/fcexample"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Title stuffed with hop keywords must not rescue a forbidden URL.
			got := Score(tt.url, domain.HopRFPPage, "FC Example", "tender procurement rfp", "")
			assert.LessOrEqual(t, got, 0.1)
		})
	}
}

func TestScoreRFPKeywordsReward(t *testing.T) {
	low := Score("https://fcexample.com/shop/kits-2025", domain.HopRFPPage, "", "Kit shop", "")
	high := Score("https://fcexample.com/procurement/tender-notices", domain.HopRFPPage, "", "Invitation to tender", "")

	assert.Greater(t, high, low)
}

func TestScoreKeywordContributionCapped(t *testing.T) {
	// Every RFP keyword present; keyword part must cap at 0.5, so with the
	// shape bonus and no entity match the total is 0.6.
	url := "https://example.com/tender-procurement-rfp"
	got := Score(url, domain.HopRFPPage, "", "request for proposal invitation to tender bid", "")

	assert.InDelta(t, 0.6, got, 1e-9)
}

func TestScoreEntityMatch(t *testing.T) {
	without := Score("https://news.example.com/tender-story-archive", domain.HopRFPPage, "Rivertown FC", "", "")
	with := Score("https://news.example.com/rivertown-fc-tender-archive", domain.HopRFPPage, "Rivertown FC", "", "")

	assert.InDelta(t, entityMatchScore, with-without, 1e-9)
}

func TestScoreShapeBonus(t *testing.T) {
	short := Score("https://a.b", domain.HopRFPPage, "", "", "")
	long := Score("https://federation.example.com/path", domain.HopRFPPage, "", "", "")

	assert.InDelta(t, shapeScore, long-short, 1e-9)
}

func TestSelectBestArgmax(t *testing.T) {
	results := []search.Result{
		{URL: "https://fcexample.com/about", Title: "About", Rank: 1},
		{URL: "https://fcexample.com/procurement/tender", Title: "Tender notices", Rank: 2},
		{URL: "https://fcexample.com/news", Title: "News", Rank: 3},
	}

	best, score, ok := SelectBest(results, domain.HopRFPPage, "FC Example")
	assert.True(t, ok)
	assert.Equal(t, "https://fcexample.com/procurement/tender", best.URL)
	assert.Greater(t, score, 0.2)
}

func TestSelectBestTiePrefersEarlierRank(t *testing.T) {
	results := []search.Result{
		{URL: "https://a-site.example.com/tender-one", Title: "", Rank: 1},
		{URL: "https://b-site.example.com/tender-two", Title: "", Rank: 2},
	}

	best, _, ok := SelectBest(results, domain.HopRFPPage, "")
	assert.True(t, ok)
	assert.Equal(t, results[0].URL, best.URL)
}

func TestSelectBestEmpty(t *testing.T) {
	_, _, ok := SelectBest(nil, domain.HopRFPPage, "")
	assert.False(t, ok)
}
