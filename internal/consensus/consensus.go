// Package consensus implements the Consensus Engine: combining a set of
// agent verdicts into one aggregate judgment by a pluggable rule (spec
// §4.9). Aggregation is pure — the same verdict set and weights always
// produce the same result, with no hidden state or I/O.
package consensus

import (
	"math"

	"github.com/consensusnet/core/internal/agents"
)

// Rule names the aggregation strategy (spec §6 consensus.rule).
type Rule string

const (
	RuleWeightedLabelConfidence Rule = "weighted_label_confidence"
	RuleSimpleMajority          Rule = "simple_majority"
	RuleReputationWeighted      Rule = "reputation_weighted"
	RuleConfidenceWeighted      Rule = "confidence_weighted"
)

// TrustWeights supplies each contributing agent's trust weight
// (reputation.overall in the claim's domain). Verdicts for agents absent
// from the map are treated as weight 1.0.
type TrustWeights map[string]float64

func (w TrustWeights) weightOf(agentID string) float64 {
	if w == nil {
		return 1.0
	}
	if v, ok := w[agentID]; ok {
		return v
	}
	return 1.0
}

// Result is the outcome of aggregating one verdict set (spec §6
// consensus: {rule, quality, agreement}).
type Result struct {
	Rule               Rule
	Label              agents.Label
	ConsensusConfidence float64
	Agreement          float64
	Quality            float64
}

// Aggregate combines verdicts under rule using weights. CANCELLED verdicts
// (zero-confidence, reasoning "cancelled") must already be filtered
// out by the caller — the pool manager treats CANCELLED as non-contributing
// (spec §5). An empty verdict set yields UNCERTAIN with zero confidence and
// zero agreement.
func Aggregate(rule Rule, verdicts []agents.Verdict, weights TrustWeights) Result {
	if len(verdicts) == 0 {
		return Result{Rule: rule, Label: agents.LabelUncertain}
	}

	scores := scoreLabels(rule, verdicts, weights)
	winner, total := winningLabel(scores)

	consensusConfidence := 0.0
	if total > 0 {
		consensusConfidence = scores[winner] / total
	}

	agreement := 1 - normalizedEntropy(scores, total)
	quality := 0.5*consensusConfidence + 0.5*agreement

	return Result{
		Rule:                rule,
		Label:               winner,
		ConsensusConfidence: clamp01(consensusConfidence),
		Agreement:           clamp01(agreement),
		Quality:             clamp01(quality),
	}
}

// scoreLabels computes score(L) = Σ_{vᵢ.label=L} contribution(vᵢ) for each
// rule. All four rules share the same score/winner/agreement/quality shape;
// only the per-verdict contribution differs (spec §4.9: "changing [the
// rule] must not require changing any other component").
func scoreLabels(rule Rule, verdicts []agents.Verdict, weights TrustWeights) map[agents.Label]float64 {
	scores := map[agents.Label]float64{
		agents.LabelTrue:      0,
		agents.LabelFalse:     0,
		agents.LabelUncertain: 0,
	}
	for _, v := range verdicts {
		scores[v.Label] += contribution(rule, v, weights)
	}
	return scores
}

func contribution(rule Rule, v agents.Verdict, weights TrustWeights) float64 {
	switch rule {
	case RuleSimpleMajority:
		return 1.0
	case RuleReputationWeighted:
		return weights.weightOf(v.AgentID)
	case RuleConfidenceWeighted:
		return v.Confidence
	default: // RuleWeightedLabelConfidence
		return weights.weightOf(v.AgentID) * v.Confidence
	}
}

// winningLabel returns argmax score(L), ties broken toward UNCERTAIN (spec
// §4.9), plus the total score mass across all labels.
func winningLabel(scores map[agents.Label]float64) (agents.Label, float64) {
	total := 0.0
	for _, s := range scores {
		total += s
	}

	maxScore := scores[agents.LabelTrue]
	for _, s := range []float64{scores[agents.LabelFalse], scores[agents.LabelUncertain]} {
		if s > maxScore {
			maxScore = s
		}
	}

	var tied []agents.Label
	for _, l := range []agents.Label{agents.LabelTrue, agents.LabelFalse, agents.LabelUncertain} {
		if scores[l] == maxScore {
			tied = append(tied, l)
		}
	}
	if len(tied) != 1 {
		return agents.LabelUncertain, total
	}
	return tied[0], total
}

// normalizedEntropy computes entropy of the score distribution normalized
// to [0,1] by dividing by log(n) for the number of non-empty label buckets;
// a single-label distribution (or zero total) has entropy 0.
func normalizedEntropy(scores map[agents.Label]float64, total float64) float64 {
	if total <= 0 {
		return 0
	}
	n := 0
	h := 0.0
	for _, s := range scores {
		if s <= 0 {
			continue
		}
		n++
		p := s / total
		h -= p * math.Log(p)
	}
	if n <= 1 {
		return 0
	}
	return h / math.Log(float64(n))
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
