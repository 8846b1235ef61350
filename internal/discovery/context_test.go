package discovery

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"

	"github.com/KieranMcFarlane/panther-chat-sub003/internal/core/domain"
)

func promptInput() PromptInput {
	return PromptInput{
		EntityName:        "FC Example",
		EntityType:        "SPORT_CLUB",
		SignalPatterns:    []string{"rfp publication", "digital hiring"},
		HopType:           domain.HopRFPPage,
		Statement:         "FC Example is procuring a ticketing platform",
		CurrentConfidence: 0.62,
		PreviousEvidence:  []string{"tender notice from march"},
		Content:           "The club invites proposals for a new CRM system.",
	}
}

func TestBuildPromptDeterministic(t *testing.T) {
	in := promptInput()

	assert.Equal(t, BuildPrompt(in), BuildPrompt(in))
}

func TestBuildPromptCarriesAllFields(t *testing.T) {
	got := BuildPrompt(promptInput())

	assert.Contains(t, got, "FC Example (SPORT_CLUB)")
	assert.Contains(t, got, "Hop type: RFP_PAGE")
	assert.Contains(t, got, "FC Example is procuring a ticketing platform")
	assert.Contains(t, got, "Current confidence: 0.62")
	assert.Contains(t, got, "- rfp publication")
	assert.Contains(t, got, "- digital hiring")
	assert.Contains(t, got, "- tender notice from march")
	assert.Contains(t, got, "The club invites proposals for a new CRM system.")
}

func TestBuildPromptTruncatesContent(t *testing.T) {
	in := promptInput()
	in.Content = strings.Repeat("x", 500)
	in.ContentLimit = 100

	got := BuildPrompt(in)

	assert.Contains(t, got, strings.Repeat("x", 100))
	assert.NotContains(t, got, strings.Repeat("x", 101))
}

func TestBuildPromptTruncatesOnRuneBoundary(t *testing.T) {
	in := promptInput()
	// Each "é" is two bytes; an odd byte limit would land mid-rune.
	in.Content = strings.Repeat("é", 60)
	in.ContentLimit = 99

	got := BuildPrompt(in)

	assert.True(t, utf8.ValidString(got))
	assert.Contains(t, got, strings.Repeat("é", 49))
	assert.NotContains(t, got, strings.Repeat("é", 50))
}

func TestBuildPromptEmptyEvidenceList(t *testing.T) {
	in := promptInput()
	in.PreviousEvidence = nil

	assert.Contains(t, BuildPrompt(in), "- none")
}
