package consensus

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/consensusnet/core/internal/agents"
)

func v(agentID string, label agents.Label, confidence float64) agents.Verdict {
	return agents.Verdict{AgentID: agentID, Label: label, Confidence: confidence}
}

func TestAggregate_EmptyVerdictsYieldsUncertain(t *testing.T) {
	r := Aggregate(RuleWeightedLabelConfidence, nil, nil)
	assert.Equal(t, agents.LabelUncertain, r.Label)
	assert.Equal(t, 0.0, r.ConsensusConfidence)
}

func TestAggregate_WeightedLabelConfidence_AgreeingVerdicts(t *testing.T) {
	verdicts := []agents.Verdict{
		v("a1", agents.LabelTrue, 0.9),
		v("a2", agents.LabelTrue, 0.8),
		v("a3", agents.LabelTrue, 0.85),
	}
	r := Aggregate(RuleWeightedLabelConfidence, verdicts, nil)
	assert.Equal(t, agents.LabelTrue, r.Label)
	assert.InDelta(t, 1.0, r.ConsensusConfidence, 1e-9)
	assert.InDelta(t, 1.0, r.Agreement, 1e-9)
	assert.InDelta(t, 1.0, r.Quality, 1e-9)
}

func TestAggregate_TieBreaksTowardUncertain(t *testing.T) {
	verdicts := []agents.Verdict{
		v("a1", agents.LabelTrue, 0.5),
		v("a2", agents.LabelFalse, 0.5),
	}
	r := Aggregate(RuleWeightedLabelConfidence, verdicts, nil)
	assert.Equal(t, agents.LabelUncertain, r.Label)
}

func TestAggregate_AllUncertainYieldsUncertainWithFullConfidence(t *testing.T) {
	verdicts := []agents.Verdict{
		v("a1", agents.LabelUncertain, 0.4),
		v("a2", agents.LabelUncertain, 0.6),
	}
	r := Aggregate(RuleWeightedLabelConfidence, verdicts, nil)
	assert.Equal(t, agents.LabelUncertain, r.Label)
	assert.InDelta(t, 1.0, r.ConsensusConfidence, 1e-9)
}

func TestAggregate_SimpleMajority_IgnoresConfidence(t *testing.T) {
	verdicts := []agents.Verdict{
		v("a1", agents.LabelTrue, 0.1),
		v("a2", agents.LabelTrue, 0.2),
		v("a3", agents.LabelFalse, 0.99),
	}
	r := Aggregate(RuleSimpleMajority, verdicts, nil)
	assert.Equal(t, agents.LabelTrue, r.Label)
}

func TestAggregate_ReputationWeighted_HighTrustAgentDominates(t *testing.T) {
	verdicts := []agents.Verdict{
		v("trusted", agents.LabelTrue, 0.6),
		v("untrusted", agents.LabelFalse, 0.6),
	}
	weights := TrustWeights{"trusted": 0.9, "untrusted": 0.1}
	r := Aggregate(RuleReputationWeighted, verdicts, weights)
	assert.Equal(t, agents.LabelTrue, r.Label)
}

func TestAggregate_ConfidenceWeighted_HighestConfidenceWins(t *testing.T) {
	verdicts := []agents.Verdict{
		v("a1", agents.LabelTrue, 0.95),
		v("a2", agents.LabelFalse, 0.2),
	}
	r := Aggregate(RuleConfidenceWeighted, verdicts, nil)
	assert.Equal(t, agents.LabelTrue, r.Label)
}

func TestAggregate_IsDeterministic(t *testing.T) {
	verdicts := []agents.Verdict{
		v("a1", agents.LabelTrue, 0.7),
		v("a2", agents.LabelFalse, 0.6),
		v("a3", agents.LabelTrue, 0.5),
	}
	r1 := Aggregate(RuleWeightedLabelConfidence, verdicts, nil)
	r2 := Aggregate(RuleWeightedLabelConfidence, verdicts, nil)
	assert.Equal(t, r1, r2)
}

func TestAggregate_DisagreementLowersAgreement(t *testing.T) {
	agreeing := []agents.Verdict{
		v("a1", agents.LabelTrue, 0.8),
		v("a2", agents.LabelTrue, 0.8),
	}
	disagreeing := []agents.Verdict{
		v("a1", agents.LabelTrue, 0.8),
		v("a2", agents.LabelFalse, 0.8),
	}
	agreeResult := Aggregate(RuleWeightedLabelConfidence, agreeing, nil)
	disagreeResult := Aggregate(RuleWeightedLabelConfidence, disagreeing, nil)
	assert.Greater(t, agreeResult.Agreement, disagreeResult.Agreement)
}
