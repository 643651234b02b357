// Package claim defines the Claim value type and the heuristics used to
// infer its domain tag and complexity class before it enters the pool.
package claim

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/google/uuid"
)

// Domain is a closed set of claim subject-matter tags.
type Domain string

const (
	DomainScience Domain = "science"
	DomainHealth  Domain = "health"
	DomainNews    Domain = "news"
	DomainTech    Domain = "tech"
	DomainGeneral Domain = "general"
)

// Complexity is a closed set of claim difficulty classes.
type Complexity string

const (
	ComplexitySimple   Complexity = "simple"
	ComplexityModerate Complexity = "moderate"
	ComplexityComplex  Complexity = "complex"
)

// MaxLength is the length cap beyond which a claim is INPUT_INVALID.
const MaxLength = 2000

// Hints carries optional caller-supplied context, per spec §6.
type Hints struct {
	Language       string
	DomainOverride Domain
	Privacy        bool
	Urgency        string // "low" (default) | "high"
}

// Claim is the immutable unit of work submitted to the pool. Once
// constructed it is never mutated; Normalize produces a new value.
type Claim struct {
	ID         string
	Text       string
	Normalized string
	Domain     Domain
	Complexity Complexity
	Hints      Hints
}

// New builds a Claim from raw submission text and hints, inferring domain
// and complexity unless the caller overrides the domain. It does not
// validate length; callers validate at the Submit boundary so the error
// carries INPUT_INVALID there instead of here.
func New(text string, hints Hints) Claim {
	normalized := normalize(text)
	domain := hints.DomainOverride
	if domain == "" {
		domain = inferDomain(normalized)
	}
	return Claim{
		ID:         uuid.NewString(),
		Text:       text,
		Normalized: normalized,
		Domain:     domain,
		Complexity: inferComplexity(normalized),
		Hints:      hints,
	}
}

var whitespaceRun = regexp.MustCompile(`\s+`)

func normalize(text string) string {
	trimmed := strings.TrimSpace(text)
	return whitespaceRun.ReplaceAllString(trimmed, " ")
}

var domainKeywords = map[Domain][]string{
	DomainHealth:  {"vaccine", "disease", "symptom", "drug", "medicine", "cancer", "virus", "health", "diagnosis"},
	DomainScience: {"hypothesis", "theorem", "proof", "physics", "chemistry", "biology", "experiment", "particle", "gravity"},
	DomainNews:    {"breaking", "today", "yesterday", "announced", "reported", "election", "president"},
	DomainTech:    {"software", "algorithm", "api", "programming", "computer", "internet", "database", "app"},
}

// inferDomain is a lightweight keyword heuristic, not ground truth — per
// spec §3, domain/complexity are heuristics that agents and the pool
// manager may override via hints or further analysis. A keyword matches only
// at the start of a word, so "vaccines" matches "vaccine" but "capital" does
// not match "api".
func inferDomain(normalized string) Domain {
	words := strings.FieldsFunc(strings.ToLower(normalized), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, d := range []Domain{DomainHealth, DomainScience, DomainNews, DomainTech} {
		for _, kw := range domainKeywords[d] {
			for _, w := range words {
				if strings.HasPrefix(w, kw) {
					return d
				}
			}
		}
	}
	return DomainGeneral
}

var complexityKeywords = []string{
	"hypothesis", "theorem", "prove", "proof", "causal", "correlat",
	"statistically", "mechanism", "peer-reviewed", "meta-analysis",
}

// inferComplexity buckets by length and the presence of technical
// vocabulary that tends to require multi-step reasoning to verify.
func inferComplexity(normalized string) Complexity {
	words := strings.Fields(normalized)
	technical := 0
	lower := strings.ToLower(normalized)
	for _, kw := range complexityKeywords {
		if strings.Contains(lower, kw) {
			technical++
		}
	}

	switch {
	case technical >= 2 || len(words) > 40:
		return ComplexityComplex
	case technical == 1 || len(words) > 15:
		return ComplexityModerate
	default:
		return ComplexitySimple
	}
}
