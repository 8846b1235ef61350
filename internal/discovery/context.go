package discovery

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// defaultContentLimit bounds the fetched content included in a prompt.
const defaultContentLimit = 8000

// mcpEvidencePatterns steer the judge toward the evidence shapes the
// downstream validation accepts.
var mcpEvidencePatterns = []string{
	"direct quote of a tender, RFP, or procurement notice",
	"named vendor selection or contract award",
	"job posting for digital, data, or technology roles",
	"budget allocation or board approval for technology spend",
	"partnership or supplier announcement with a commercial scope",
}

// PromptInput is everything the judge prompt is assembled from.
type PromptInput struct {
	EntityName        string
	EntityType        string
	SignalPatterns    []string
	HopType           string
	Statement         string
	CurrentConfidence float64
	PreviousEvidence  []string
	Content           string
	ContentLimit      int
}

// BuildPrompt assembles the judge prompt. Pure: identical input yields an
// identical prompt.
func BuildPrompt(in PromptInput) string {
	limit := in.ContentLimit
	if limit <= 0 {
		limit = defaultContentLimit
	}

	content := truncateContent(in.Content, limit)

	var b strings.Builder

	fmt.Fprintf(&b, "You are judging whether fetched web content supports a procurement hypothesis.\n\n")
	fmt.Fprintf(&b, "Entity: %s (%s)\n", in.EntityName, in.EntityType)
	fmt.Fprintf(&b, "Hop type: %s\n", in.HopType)
	fmt.Fprintf(&b, "Hypothesis: %s\n", in.Statement)
	fmt.Fprintf(&b, "Current confidence: %.2f\n\n", in.CurrentConfidence)

	b.WriteString("Signal patterns for this entity's cluster:\n")

	for _, p := range in.SignalPatterns {
		fmt.Fprintf(&b, "- %s\n", p)
	}

	b.WriteString("\nEvidence accepted in earlier iterations (do not resubmit):\n")

	if len(in.PreviousEvidence) == 0 {
		b.WriteString("- none\n")
	}

	for _, ev := range in.PreviousEvidence {
		fmt.Fprintf(&b, "- %s\n", ev)
	}

	b.WriteString("\nAcceptable evidence shapes:\n")

	for _, p := range mcpEvidencePatterns {
		fmt.Fprintf(&b, "- %s\n", p)
	}

	b.WriteString("\nRespond with JSON: {\"decision\": ACCEPT|WEAK_ACCEPT|REJECT|NO_PROGRESS|SATURATED, ")
	b.WriteString("\"justification\": string quoting the evidence or its URL, ")
	b.WriteString("\"evidence_found\": [string], \"evidence_type\": string, \"confidence\": number}.\n")
	b.WriteString("ACCEPT only for direct procurement intent with a verifiable quote or URL. ")
	b.WriteString("WEAK_ACCEPT for capability evidence without explicit intent.\n\n")
	fmt.Fprintf(&b, "Fetched content:\n%s\n", content)

	return b.String()
}

// truncateContent cuts content to at most limit bytes on a rune boundary so
// non-ASCII pages never end in a split rune.
func truncateContent(s string, limit int) string {
	if len(s) <= limit {
		return s
	}

	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}

	return s[:cut]
}
