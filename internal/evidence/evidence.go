// Package evidence implements the Evidence Aggregator: fanning a claim out
// to configured sources, normalizing and deduplicating their results, and
// scoring the resulting bundle's overall quality.
package evidence

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/consensusnet/core/internal/claim"
	"github.com/consensusnet/core/internal/reputation"
)

// Stance is the relationship an evidence item bears to the claim it was
// gathered for.
type Stance string

const (
	StanceSupports    Stance = "supports"
	StanceContradicts Stance = "contradicts"
	StanceNeutral     Stance = "neutral"
)

// ItemRaw is what an EvidenceSource returns before normalization.
type ItemRaw struct {
	Content    string
	SourceID   string
	SourceTier string
	Relevance  float64
	Timestamp  time.Time
}

// Item is an immutable, normalized piece of evidence.
type Item struct {
	Content     string
	SourceID    string
	SourceTier  string
	Credibility float64
	Relevance   float64
	Timestamp   time.Time
	Stance      Stance
}

// Source is the consumed interface the core is agnostic across: HTTP
// clients, API keys, and parsers live entirely behind this boundary.
type Source interface {
	Name() string
	Query(ctx context.Context, normalizedClaim string, domain claim.Domain, deadline time.Time) ([]ItemRaw, error)
}

// Bundle is the ordered evidence gathered for one claim.
type Bundle struct {
	Supporting    []Item
	Contradicting []Item
	Neutral       []Item
	OverallQuality float64
}

// Empty reports whether the bundle has no items at all — the only state in
// which OverallQuality is permitted to be zero (spec §3 invariant).
func (b Bundle) Empty() bool {
	return len(b.Supporting) == 0 && len(b.Contradicting) == 0 && len(b.Neutral) == 0
}

// maxExpected is the domain-specific normalizing constant in the
// overall_quality formula (spec §4.3 step 5).
var maxExpected = map[claim.Domain]float64{
	claim.DomainHealth:  4.0,
	claim.DomainScience: 4.0,
	claim.DomainNews:    3.0,
	claim.DomainTech:    3.0,
	claim.DomainGeneral: 2.5,
}

// StanceClassifier assigns a stance to a raw item relative to the claim
// text. In production this is typically delegated to the model router for
// anything not decidable by lightweight heuristics; tests can supply a
// deterministic stub.
type StanceClassifier interface {
	Classify(ctx context.Context, claimNormalized, content string) Stance
}

// CredibilityView is the adaptive source-credibility lookup the Aggregator
// consults in place of the static initialCredibility table;
// internal/reputation.CredibilityStore satisfies this (spec §4.7.2).
type CredibilityView interface {
	Credibility(sourceID string, tier reputation.Tier, initial float64) float64
}

// Aggregator runs the fan-out/normalize/dedup/score pipeline of spec §4.3.
type Aggregator struct {
	logger      logrus.FieldLogger
	sources     map[claim.Domain][]Source
	classifier  StanceClassifier
	credibility CredibilityView
	perSource   time.Duration
	total       time.Duration
}

// New constructs an Aggregator. sourcesByDomain gives the prioritized list
// of sources to fan out to for each domain; perSource and total are the
// layered deadlines from spec §5. credibility is consulted for each item's
// starting credibility in place of the static per-tier default; pass nil to
// fall back to that static table (e.g. in tests that don't exercise
// adaptation).
func New(logger logrus.FieldLogger, sourcesByDomain map[claim.Domain][]Source, classifier StanceClassifier, perSource, total time.Duration, credibility CredibilityView) *Aggregator {
	return &Aggregator{
		logger:      logger,
		sources:     sourcesByDomain,
		classifier:  classifier,
		credibility: credibility,
		perSource:   perSource,
		total:       total,
	}
}

type sourceResult struct {
	items []ItemRaw
	err   error
}

// Gather executes the five-step pipeline and returns the resulting bundle.
// It never returns an error for a partial or empty result: spec §7 treats
// EVIDENCE_SHORTAGE as a degraded verdict, not a propagated error.
func (a *Aggregator) Gather(ctx context.Context, c claim.Claim) Bundle {
	sources := a.sources[c.Domain]
	if len(sources) == 0 {
		sources = a.sources[claim.DomainGeneral]
	}

	totalCtx, cancel := context.WithTimeout(ctx, a.total)
	defer cancel()

	results := a.fanOut(totalCtx, c, sources)

	items := a.normalize(totalCtx, c, results)
	items = dedup(items)

	bundle := classify(items)
	bundle.OverallQuality = score(bundle, c.Domain)
	return bundle
}

func (a *Aggregator) fanOut(ctx context.Context, c claim.Claim, sources []Source) []sourceResult {
	results := make([]sourceResult, len(sources))
	var wg sync.WaitGroup
	for i, src := range sources {
		wg.Add(1)
		go func(i int, src Source) {
			defer wg.Done()
			sourceCtx, cancel := context.WithTimeout(ctx, a.perSource)
			defer cancel()

			deadline, _ := sourceCtx.Deadline()
			items, err := src.Query(sourceCtx, c.Normalized, c.Domain, deadline)
			if err != nil {
				a.logger.WithFields(logrus.Fields{
					"source": src.Name(),
					"claim":  c.ID,
				}).Warnf("evidence source query failed: %v", err)
				results[i] = sourceResult{err: err}
				return
			}
			results[i] = sourceResult{items: items}
		}(i, src)
	}
	wg.Wait()
	return results
}

func (a *Aggregator) normalize(ctx context.Context, c claim.Claim, results []sourceResult) []Item {
	var items []Item
	for _, r := range results {
		if r.err != nil {
			continue
		}
		for _, raw := range r.items {
			stance := StanceNeutral
			if a.classifier != nil {
				stance = a.classifier.Classify(ctx, c.Normalized, raw.Content)
			}
			items = append(items, Item{
				Content:     strings.TrimSpace(raw.Content),
				SourceID:    raw.SourceID,
				SourceTier:  raw.SourceTier,
				Credibility: a.credibilityFor(raw.SourceID, raw.SourceTier),
				Relevance:   clamp01(raw.Relevance),
				Timestamp:   raw.Timestamp,
				Stance:      stance,
			})
		}
	}
	return items
}

// credibilityFor resolves a source's credibility through the adaptive store
// when one is configured, seeding it with the static per-tier default on
// first use; with no store configured it returns that static default
// unchanged.
func (a *Aggregator) credibilityFor(sourceID, tier string) float64 {
	initial := initialCredibility(tier)
	if a.credibility == nil {
		return initial
	}
	return a.credibility.Credibility(sourceID, reputation.Tier(tier), initial)
}

// initialCredibility gives a static starting credibility per tier; the
// adaptive update in internal/reputation moves these over time.
func initialCredibility(tier string) float64 {
	switch tier {
	case "academic", "peer_reviewed":
		return 0.9
	case "encyclopedic":
		return 0.75
	case "primary_documentation":
		return 0.85
	case "news":
		return 0.55
	case "web":
		return 0.4
	default:
		return 0.5
	}
}

func contentHash(content string) string {
	normalized := strings.ToLower(strings.Join(strings.Fields(content), " "))
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// dedup keeps the highest-credibility copy per normalized content hash
// (spec §4.3 step 4).
func dedup(items []Item) []Item {
	best := make(map[string]Item, len(items))
	order := make([]string, 0, len(items))
	for _, it := range items {
		h := contentHash(it.Content)
		existing, ok := best[h]
		if !ok {
			order = append(order, h)
			best[h] = it
			continue
		}
		if it.Credibility > existing.Credibility {
			best[h] = it
		}
	}
	out := make([]Item, 0, len(order))
	for _, h := range order {
		out = append(out, best[h])
	}
	return out
}

func classify(items []Item) Bundle {
	var b Bundle
	for _, it := range items {
		switch it.Stance {
		case StanceSupports:
			b.Supporting = append(b.Supporting, it)
		case StanceContradicts:
			b.Contradicting = append(b.Contradicting, it)
		default:
			b.Neutral = append(b.Neutral, it)
		}
	}
	sortByCredibility(b.Supporting)
	sortByCredibility(b.Contradicting)
	sortByCredibility(b.Neutral)
	return b
}

func sortByCredibility(items []Item) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Credibility > items[j].Credibility
	})
}

// score implements overall_quality = clamp(Σ credibility·relevance /
// max_expected, 0, 1) (spec §4.3 step 5), returning exactly 0 when the
// bundle has no items (spec §3 invariant).
func score(b Bundle, domain claim.Domain) float64 {
	if b.Empty() {
		return 0
	}
	sum := 0.0
	for _, it := range append(append(append([]Item{}, b.Supporting...), b.Contradicting...), b.Neutral...) {
		sum += it.Credibility * it.Relevance
	}
	me, ok := maxExpected[domain]
	if !ok {
		me = maxExpected[claim.DomainGeneral]
	}
	return clamp01(sum / me)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// ApplyRecencyWeight reweights every item's relevance by
// 0.5 + 0.5·exp(-age_hours/24) relative to now, and recomputes
// OverallQuality for the given domain. Used by the news specialization
// (spec §4.5).
func ApplyRecencyWeight(b Bundle, domain claim.Domain, now time.Time) Bundle {
	reweight := func(items []Item) []Item {
		out := make([]Item, len(items))
		for i, it := range items {
			ageHours := now.Sub(it.Timestamp).Hours()
			if ageHours < 0 {
				ageHours = 0
			}
			weight := 0.5 + 0.5*math.Exp(-ageHours/24)
			it.Relevance = clamp01(it.Relevance * weight)
			out[i] = it
		}
		return out
	}
	reweighted := Bundle{
		Supporting:    reweight(b.Supporting),
		Contradicting: reweight(b.Contradicting),
		Neutral:       reweight(b.Neutral),
	}
	reweighted.OverallQuality = score(reweighted, domain)
	return reweighted
}
