// Package debate implements the adversarial state machine of spec §4.8:
// INITIAL → PROSECUTE → DEFEND → MODERATE → (loop or SYNTHESIZE) → TERMINAL.
// The three roles (Prosecutor, Defender, Moderator) are modeled as small
// model-backed generators in the style of the teacher's Red/Blue Team
// adversarial protocol — a round loop with a deterministic fallback when
// the model fails, and line-based parsing of its structured response.
package debate

import (
	"math"

	"github.com/consensusnet/core/internal/agents"
	"github.com/consensusnet/core/internal/evidence"
)

// ChallengeType is the closed set of challenge categories from spec §3.
type ChallengeType string

const (
	ChallengeSourceCredibility     ChallengeType = "source_credibility"
	ChallengeEvidenceRelevance     ChallengeType = "evidence_relevance"
	ChallengeLogicalFallacy        ChallengeType = "logical_fallacy"
	ChallengeFactualAccuracy       ChallengeType = "factual_accuracy"
	ChallengeBias                  ChallengeType = "bias"
	ChallengeSufficiency           ChallengeType = "sufficiency"
	ChallengeRecency               ChallengeType = "recency"
	ChallengeAlternativeExplanation ChallengeType = "alternative_explanation"
)

// Strength is a challenge's assessed severity.
type Strength string

const (
	StrengthWeak     Strength = "weak"
	StrengthModerate Strength = "moderate"
	StrengthStrong   Strength = "strong"
	StrengthCritical Strength = "critical"
)

// strengthWeight gives each Strength band a base weight in the priority
// score formula. spec §3 names the formula but not these constants; they
// are kept configurable-in-spirit by living in one place here rather than
// inlined at each call site.
func strengthWeight(s Strength) float64 {
	switch s {
	case StrengthWeak:
		return 0.1
	case StrengthModerate:
		return 0.3
	case StrengthStrong:
		return 0.5
	case StrengthCritical:
		return 0.7
	default:
		return 0
	}
}

// Challenge is a single prosecutorial objection to a verdict (spec §3).
type Challenge struct {
	ID              string
	Type            ChallengeType
	Strength        Strength
	Specificity     float64
	Verifiability   float64
	Impact          float64
	TargetVerdictID string
	Text            string
}

// PriorityScore = strength_weight(strength) + 0.2·specificity + 0.3·impact,
// clamped to 1.0 (spec §3).
func (c Challenge) PriorityScore() float64 {
	score := strengthWeight(c.Strength) + 0.2*c.Specificity + 0.3*c.Impact
	return math.Min(score, 1.0)
}

// ResponseStance is the defender's posture toward one challenge.
type ResponseStance string

const (
	StanceRefute           ResponseStance = "refute"
	StancePartiallyConcede ResponseStance = "partially_concede"
	StanceConcede          ResponseStance = "concede"
)

// Response is the defender's reply to a Challenge (spec §3).
type Response struct {
	ChallengeID        string
	Stance             ResponseStance
	Text               string
	SupportingEvidence []evidence.Item
}

// ChallengeOutcome is the moderator's verdict on one (challenge, response)
// pair.
type ChallengeOutcome string

const (
	OutcomeUpheld   ChallengeOutcome = "upheld"
	OutcomeRebutted ChallengeOutcome = "rebutted"
	OutcomeConceded ChallengeOutcome = "conceded"
	OutcomeNeutral  ChallengeOutcome = "neutral" // missed deadline or no response; non-contributing
)

// PairAssessment is the moderator's per-challenge judgment.
type PairAssessment struct {
	ChallengeID     string
	Outcome         ChallengeOutcome
	ConfidenceDelta float64
}

// ModeratorOutput is what the moderator produces for one round.
type ModeratorOutput struct {
	Assessments []PairAssessment
	RoundSummary string
}

// DebateRound is one cycle of challenge → response → moderation (spec §3).
type DebateRound struct {
	RoundIndex   int
	Challenges   []Challenge
	Responses    []Response
	RoundSummary string
}

// DebateOutcome is the result of a complete debate (spec §3).
type DebateOutcome struct {
	InitialVerdict agents.Verdict
	Rounds         []DebateRound
	RefinedVerdict agents.Verdict
	QualityScore   float64
	Degraded       bool
}
