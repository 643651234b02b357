// Package agents implements the Verification Agent: the base five-step
// pipeline of spec §4.5 plus its mandatory specializations (science, news,
// tech). Agents never reference each other directly; they are addressed
// through the opaque AgentHandle and communicate only via the bus (spec §9
// design notes).
package agents

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/consensusnet/core/internal/claim"
	"github.com/consensusnet/core/internal/consensuserr"
	"github.com/consensusnet/core/internal/evidence"
	"github.com/consensusnet/core/internal/modelrouter"
)

// Label is an agent's judgment about a claim.
type Label string

const (
	LabelTrue      Label = "TRUE"
	LabelFalse     Label = "FALSE"
	LabelUncertain Label = "UNCERTAIN"
)

// Verdict is an agent's immutable judgment about a claim (spec §3).
type Verdict struct {
	ClaimID         string
	AgentID         string
	Label           Label
	Confidence      float64
	Reasoning       string
	Sources         []string
	SourceTiers     map[string]string // source_id -> tier, for credibility adaptation
	EvidenceQuality float64
	ModelTierUsed   modelrouter.Tier
	Latency         time.Duration
	Timestamp       time.Time
}

// ParsedOutput is the model's structured response, once parsed.
type ParsedOutput struct {
	Label      Label
	Confidence float64
	Reasoning  string
}

// OutputParser turns raw model text into a structured verdict component. A
// parse failure is expected and handled by the agent's retry policy, not
// treated as a hard error by the parser itself.
type OutputParser interface {
	Parse(text string) (ParsedOutput, error)
}

// PromptBuilder renders the instruction template binding
// {claim, normalized_evidence_excerpts, instruction_for_structured_output}
// (spec §4.5 step 3). strict requests a stricter reformat instruction, used
// on the single retry after an unparsable first response.
type PromptBuilder interface {
	Build(c claim.Claim, bundle evidence.Bundle, strict bool) string
}

// EvidencePostProcessor lets a specialization reweight the gathered bundle
// before it reaches the prompt builder and the confidence calibration (e.g.
// the news specialization's recency weighting).
type EvidencePostProcessor func(bundle evidence.Bundle, c claim.Claim, now time.Time) evidence.Bundle

// Clock is the minimal time source an agent needs; clock.Clock satisfies it.
type Clock interface {
	Now() time.Time
}

// Agent is the base Verification Agent. Specializations are built by
// constructing an Agent with a different evidence source set (via the
// Evidence aggregator passed in), PromptBuilder, and PostProcess — not by
// subtyping (spec §9: "the pool manager never pattern-matches on concrete
// types, only on declared capabilities").
type Agent struct {
	ID           string
	Capabilities map[string]bool
	Domain       claim.Domain // the specialization's home domain, "" for the generalist

	logger      logrus.FieldLogger
	clock       Clock
	evidenceAgg *evidence.Aggregator
	router      *modelrouter.Router
	parser      OutputParser
	prompts     PromptBuilder
	postProcess EvidencePostProcessor

	lowConfidenceThreshold float64
}

// New constructs an Agent.
func New(
	id string,
	capabilities map[string]bool,
	domain claim.Domain,
	logger logrus.FieldLogger,
	c Clock,
	evidenceAgg *evidence.Aggregator,
	router *modelrouter.Router,
	parser OutputParser,
	prompts PromptBuilder,
	postProcess EvidencePostProcessor,
	lowConfidenceThreshold float64,
) *Agent {
	return &Agent{
		ID:                     id,
		Capabilities:           capabilities,
		Domain:                 domain,
		logger:                 logger,
		clock:                  c,
		evidenceAgg:            evidenceAgg,
		router:                 router,
		parser:                 parser,
		prompts:                prompts,
		postProcess:            postProcess,
		lowConfidenceThreshold: lowConfidenceThreshold,
	}
}

// Verify runs the base five-step pipeline of spec §4.5. ctx carries the
// cancellation token and per-agent deadline the pool manager establishes;
// Verify observes it at the evidence and model-call boundaries.
func (a *Agent) Verify(ctx context.Context, c claim.Claim) Verdict {
	start := a.clock.Now()

	if ctx.Err() != nil {
		return a.cancelledVerdict(c, start)
	}

	bundle := a.evidenceAgg.Gather(ctx, c)
	if a.postProcess != nil {
		bundle = a.postProcess(bundle, c, a.clock.Now())
	}

	if ctx.Err() != nil {
		return a.cancelledVerdict(c, start)
	}

	if bundle.Empty() {
		return Verdict{
			ClaimID:         c.ID,
			AgentID:         a.ID,
			Label:           LabelUncertain,
			Confidence:      0,
			Reasoning:       "no evidence available",
			EvidenceQuality: 0,
			Timestamp:       a.clock.Now(),
			Latency:         a.clock.Now().Sub(start),
		}
	}

	tier := a.router.Select(modelrouter.SelectionInput{
		Complexity:      c.Complexity,
		EvidenceQuality: bundle.OverallQuality,
		PrivacyFlag:     c.Hints.Privacy,
	})

	parsed, usedTier, modelErr := a.completeAndParse(ctx, c, bundle, tier, "")

	if modelErr != nil {
		if ctx.Err() != nil {
			return a.cancelledVerdict(c, start)
		}
		kind, _ := consensuserr.KindOf(modelErr)
		degraded := kind == consensuserr.ModelUnavailable
		return Verdict{
			ClaimID:         c.ID,
			AgentID:         a.ID,
			Label:           LabelUncertain,
			Confidence:      0,
			Reasoning:       fmt.Sprintf("model unavailable: %v (degraded=%v)", modelErr, degraded),
			EvidenceQuality: bundle.OverallQuality,
			ModelTierUsed:   usedTier,
			Timestamp:       a.clock.Now(),
			Latency:         a.clock.Now().Sub(start),
		}
	}

	// A cheap-tier run with low confidence escalates once (spec §4.4); this
	// is the "previous_tier_if_retry" branch of tier selection.
	if usedTier == modelrouter.TierCheap && parsed.Confidence < a.lowConfidenceThreshold {
		escalated := a.router.Select(modelrouter.SelectionInput{
			Complexity:         c.Complexity,
			EvidenceQuality:    bundle.OverallQuality,
			PrivacyFlag:        c.Hints.Privacy,
			PreviousTier:       usedTier,
			PreviousConfidence: parsed.Confidence,
		})
		if escalated != usedTier {
			reparsed, reTier, reErr := a.completeAndParse(ctx, c, bundle, escalated, "")
			if reErr == nil {
				parsed, usedTier = reparsed, reTier
			}
		}
	}

	finalConfidence := clamp01(0.6*parsed.Confidence + 0.4*bundle.OverallQuality)
	label := parsed.Label
	if closeCounts(len(bundle.Supporting), len(bundle.Contradicting)) {
		label = LabelUncertain
	}

	return Verdict{
		ClaimID:         c.ID,
		AgentID:         a.ID,
		Label:           label,
		Confidence:      finalConfidence,
		Reasoning:       parsed.Reasoning,
		Sources:         sourceIDs(bundle),
		SourceTiers:     sourceTiers(bundle),
		EvidenceQuality: bundle.OverallQuality,
		ModelTierUsed:   usedTier,
		Timestamp:       a.clock.Now(),
		Latency:         a.clock.Now().Sub(start),
	}
}

// completeAndParse calls the model router and parses its output, retrying
// once with a stricter reformat instruction if the first response does not
// parse (spec §4.5 step 4). On a second parse failure it returns an
// UNCERTAIN-confidence-0.0 output carrying the parse error in Reasoning,
// rather than an error — only a model-backend failure (not a parse
// failure) propagates as an error here.
func (a *Agent) completeAndParse(ctx context.Context, c claim.Claim, bundle evidence.Bundle, tier modelrouter.Tier, _ string) (ParsedOutput, modelrouter.Tier, error) {
	prompt := a.prompts.Build(c, bundle, false)
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = a.clock.Now().Add(10 * time.Second)
	}

	completion, usedTier, err := a.router.Complete(ctx, tier, prompt, deadline)
	if err != nil {
		return ParsedOutput{}, usedTier, err
	}

	parsed, parseErr := a.parser.Parse(completion.Text)
	if parseErr == nil {
		return parsed, usedTier, nil
	}

	a.logger.WithFields(logrus.Fields{"agent_id": a.ID, "claim": c.ID}).Warnf("unparsable model output, retrying with stricter instruction: %v", parseErr)

	strictPrompt := a.prompts.Build(c, bundle, true)
	completion2, usedTier2, err2 := a.router.Complete(ctx, usedTier, strictPrompt, deadline)
	if err2 != nil {
		return ParsedOutput{}, usedTier2, err2
	}

	parsed2, parseErr2 := a.parser.Parse(completion2.Text)
	if parseErr2 != nil {
		return ParsedOutput{
			Label:      LabelUncertain,
			Confidence: 0,
			Reasoning:  fmt.Sprintf("unparsable model output after retry: %v", parseErr2),
		}, usedTier2, nil
	}
	return parsed2, usedTier2, nil
}

func (a *Agent) cancelledVerdict(c claim.Claim, start time.Time) Verdict {
	return Verdict{
		ClaimID:    c.ID,
		AgentID:    a.ID,
		Label:      LabelUncertain,
		Confidence: 0,
		Reasoning:  "cancelled",
		Timestamp:  a.clock.Now(),
		Latency:    a.clock.Now().Sub(start),
	}
}

// closeCounts floors the label to UNCERTAIN when supporting and
// contradicting evidence are both present and roughly balanced (spec §4.5
// step 5). "Close" is defined as neither side outnumbering the other by
// more than one item once both are non-zero.
func closeCounts(supporting, contradicting int) bool {
	if supporting == 0 || contradicting == 0 {
		return false
	}
	diff := supporting - contradicting
	if diff < 0 {
		diff = -diff
	}
	return diff <= 1
}

func sourceIDs(b evidence.Bundle) []string {
	var ids []string
	for _, it := range b.Supporting {
		ids = append(ids, it.SourceID)
	}
	for _, it := range b.Contradicting {
		ids = append(ids, it.SourceID)
	}
	for _, it := range b.Neutral {
		ids = append(ids, it.SourceID)
	}
	return ids
}

func sourceTiers(b evidence.Bundle) map[string]string {
	tiers := make(map[string]string)
	for _, it := range append(append(append([]evidence.Item{}, b.Supporting...), b.Contradicting...), b.Neutral...) {
		tiers[it.SourceID] = it.SourceTier
	}
	return tiers
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
