package debate

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Moderator assesses each (challenge, response) pair of a round and produces
// a confidence adjustment. Unlike Prosecutor and Defender, a Moderator
// failure is NOT masked by a deterministic fallback: spec §4.8 requires that
// a moderator failure propagate so the engine can mark the outcome degraded
// and return the verdict unchanged, rather than silently fabricate an
// assessment.
type Moderator struct {
	model  Model
	logger logrus.FieldLogger
}

// NewModerator constructs a Moderator.
func NewModerator(model Model, logger logrus.FieldLogger) *Moderator {
	return &Moderator{model: model, logger: logger}
}

// Assess judges every challenge in round against its matching response. A
// challenge with no response (missed deadline) is treated as neutral,
// non-contributing, without calling the model for it.
func (m *Moderator) Assess(ctx context.Context, round DebateRound) (ModeratorOutput, error) {
	byChallenge := make(map[string]Response, len(round.Responses))
	for _, r := range round.Responses {
		byChallenge[r.ChallengeID] = r
	}

	var needsModel []Challenge
	out := ModeratorOutput{}
	for _, c := range round.Challenges {
		if _, ok := byChallenge[c.ID]; !ok {
			out.Assessments = append(out.Assessments, PairAssessment{ChallengeID: c.ID, Outcome: OutcomeNeutral})
			continue
		}
		if byChallenge[c.ID].Stance == StanceConcede {
			out.Assessments = append(out.Assessments, PairAssessment{
				ChallengeID: c.ID, Outcome: OutcomeConceded, ConfidenceDelta: -confidenceDeltaFor(c, OutcomeConceded),
			})
			continue
		}
		needsModel = append(needsModel, c)
	}

	if len(needsModel) == 0 {
		out.RoundSummary = "all challenges resolved without model assessment"
		return out, nil
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(10 * time.Second)
	}

	text, err := m.model.Complete(ctx, m.buildPrompt(needsModel, byChallenge), deadline)
	if err != nil {
		return ModeratorOutput{}, fmt.Errorf("moderator assessment failed: %w", err)
	}

	assessments, err := parseAssessments(text, needsModel)
	if err != nil {
		return ModeratorOutput{}, fmt.Errorf("moderator output unparsable: %w", err)
	}

	out.Assessments = append(out.Assessments, assessments...)
	out.RoundSummary = fmt.Sprintf("assessed %d challenge/response pairs", len(assessments))
	return out, nil
}

func (m *Moderator) buildPrompt(challenges []Challenge, responses map[string]Response) string {
	var b strings.Builder
	b.WriteString("You are the neutral moderator of an adversarial fact-check debate.\n")
	b.WriteString("For each challenge/response pair, decide whether the challenge was upheld, rebutted, or conceded.\n")
	for _, c := range challenges {
		r := responses[c.ID]
		fmt.Fprintf(&b, "Challenge %s [%s/%s]: %s\nResponse stance=%s: %s\n", c.ID, c.Type, c.Strength, c.Text, r.Stance, r.Text)
	}
	b.WriteString("---\nFor each pair, respond with:\n")
	b.WriteString("CHALLENGE_ID: <id>\nOUTCOME: upheld|rebutted|conceded\nDELTA: <signed confidence adjustment, e.g. -0.2 or 0.05>\n---\n")
	return b.String()
}

func parseAssessments(text string, challenges []Challenge) ([]PairAssessment, error) {
	known := make(map[string]Challenge, len(challenges))
	for _, c := range challenges {
		known[c.ID] = c
	}

	blocks := strings.Split(text, "---")
	var out []PairAssessment
	for _, block := range blocks {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		a, err := parseAssessmentBlock(block)
		if err != nil {
			continue
		}
		if _, ok := known[a.ChallengeID]; !ok {
			continue
		}
		out = append(out, a)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no parseable assessment blocks in moderator output")
	}
	return out, nil
}

func parseAssessmentBlock(block string) (PairAssessment, error) {
	var a PairAssessment
	var sawID, sawOutcome bool
	for _, line := range strings.Split(block, "\n") {
		line = strings.TrimSpace(line)
		upper := strings.ToUpper(line)
		switch {
		case strings.HasPrefix(upper, "CHALLENGE_ID:"):
			a.ChallengeID = strings.TrimSpace(line[len("CHALLENGE_ID:"):])
			sawID = true
		case strings.HasPrefix(upper, "OUTCOME:"):
			a.Outcome = ChallengeOutcome(strings.TrimSpace(strings.ToLower(line[len("OUTCOME:"):])))
			sawOutcome = true
		case strings.HasPrefix(upper, "DELTA:"):
			a.ConfidenceDelta = parseSignedFloat(line[len("DELTA:"):])
		}
	}
	if !sawID || !sawOutcome {
		return PairAssessment{}, fmt.Errorf("assessment block missing CHALLENGE_ID or OUTCOME")
	}
	return a, nil
}

func parseSignedFloat(s string) float64 {
	s = strings.TrimSpace(s)
	var f float64
	if _, err := fmt.Sscanf(s, "%g", &f); err != nil {
		return 0
	}
	return f
}

// confidenceDeltaFor gives the amount an outcome the engine derives without
// a model call subtracts from confidence: 0.2 for an upheld or conceded
// critical challenge, 0.1 for any other upheld or conceded one, and -0.05
// for a rebutted one (so negating it yields -0.2 and +0.05). Callers negate
// the result before storing it as a ConfidenceDelta. A conceded challenge
// carries the same weight as an upheld one since the defender has, in
// effect, upheld it against itself.
func confidenceDeltaFor(c Challenge, outcome ChallengeOutcome) float64 {
	switch outcome {
	case OutcomeUpheld, OutcomeConceded:
		if c.Strength == StrengthCritical {
			return 0.2
		}
		return 0.1
	case OutcomeRebutted:
		return -0.05
	default:
		return 0
	}
}
