package agents

import (
	"fmt"
	"strings"
	"time"

	"github.com/consensusnet/core/internal/claim"
	"github.com/consensusnet/core/internal/evidence"
)

// Specialized agents override the prioritized evidence-source list (baked
// into the evidence.Aggregator each is constructed with) and the prompt
// template; the news specialization also reweights the gathered bundle via
// PostProcess. The complexity heuristic is not overridden: every agent
// selects its model tier from the claim's inferred Complexity.
// Spec §4.5 mandates three: science, news, tech.

// SciencePromptBuilder prefers peer-reviewed framing and penalizes news-tier
// evidence in the rendered excerpts.
type SciencePromptBuilder struct{}

func (SciencePromptBuilder) Build(c claim.Claim, bundle evidence.Bundle, strict bool) string {
	var b strings.Builder
	b.WriteString("You are a science verification specialist. Weigh peer-reviewed and academic sources heavily; discount news-tier sources.\n")
	b.WriteString(fmt.Sprintf("Claim: %s\n", c.Normalized))
	writeExcerpts(&b, bundle, func(it evidence.Item) float64 {
		if it.SourceTier == "news" {
			return it.Relevance * 0.5
		}
		return it.Relevance
	})
	writeInstruction(&b, strict)
	return b.String()
}

// NewsPromptBuilder weighs recency-adjusted relevance (the bundle passed in
// has already been reweighted by ApplyRecencyWeight via PostProcess).
type NewsPromptBuilder struct{}

func (NewsPromptBuilder) Build(c claim.Claim, bundle evidence.Bundle, strict bool) string {
	var b strings.Builder
	b.WriteString("You are a news verification specialist. Recency has already been folded into each item's relevance.\n")
	b.WriteString(fmt.Sprintf("Claim: %s\n", c.Normalized))
	writeExcerpts(&b, bundle, func(it evidence.Item) float64 { return it.Relevance })
	writeInstruction(&b, strict)
	return b.String()
}

// TechPromptBuilder prefers primary-documentation-tier evidence.
type TechPromptBuilder struct{}

func (TechPromptBuilder) Build(c claim.Claim, bundle evidence.Bundle, strict bool) string {
	var b strings.Builder
	b.WriteString("You are a technical documentation verification specialist. Prefer primary documentation sources over secondary commentary.\n")
	b.WriteString(fmt.Sprintf("Claim: %s\n", c.Normalized))
	writeExcerpts(&b, bundle, func(it evidence.Item) float64 {
		if it.SourceTier == "primary_documentation" {
			return it.Relevance * 1.2
		}
		return it.Relevance
	})
	writeInstruction(&b, strict)
	return b.String()
}

// GeneralPromptBuilder is the base, unspecialized template.
type GeneralPromptBuilder struct{}

func (GeneralPromptBuilder) Build(c claim.Claim, bundle evidence.Bundle, strict bool) string {
	var b strings.Builder
	b.WriteString("You are a general-purpose verification agent.\n")
	b.WriteString(fmt.Sprintf("Claim: %s\n", c.Normalized))
	writeExcerpts(&b, bundle, func(it evidence.Item) float64 { return it.Relevance })
	writeInstruction(&b, strict)
	return b.String()
}

func writeExcerpts(b *strings.Builder, bundle evidence.Bundle, weight func(evidence.Item) float64) {
	b.WriteString("Supporting evidence:\n")
	for _, it := range bundle.Supporting {
		fmt.Fprintf(b, "- [%s, w=%.2f] %s\n", it.SourceID, weight(it), it.Content)
	}
	b.WriteString("Contradicting evidence:\n")
	for _, it := range bundle.Contradicting {
		fmt.Fprintf(b, "- [%s, w=%.2f] %s\n", it.SourceID, weight(it), it.Content)
	}
	b.WriteString("Neutral evidence:\n")
	for _, it := range bundle.Neutral {
		fmt.Fprintf(b, "- [%s, w=%.2f] %s\n", it.SourceID, weight(it), it.Content)
	}
}

func writeInstruction(b *strings.Builder, strict bool) {
	if strict {
		b.WriteString("---\nRespond with EXACTLY three lines, no prose outside them:\nLABEL: TRUE|FALSE|UNCERTAIN\nCONFIDENCE: <number between 0 and 1>\nREASONING: <one paragraph>\n")
		return
	}
	b.WriteString("---\nRespond with a LABEL (TRUE, FALSE, or UNCERTAIN), a CONFIDENCE between 0 and 1, and a brief REASONING.\n")
}

// NewsPostProcess applies the recency weight from spec §4.5 to the gathered
// bundle before the prompt is built and confidence is calibrated.
func NewsPostProcess(bundle evidence.Bundle, c claim.Claim, now time.Time) evidence.Bundle {
	return evidence.ApplyRecencyWeight(bundle, c.Domain, now)
}
