package debate

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/consensusnet/core/internal/agents"
	"github.com/consensusnet/core/internal/evidence"
)

// Prosecutor emits up to maxChallenges challenges per round, filtering out
// anything below challengeFilter (spec §4.8: N_c = 5, filter 0.3 default).
type Prosecutor struct {
	model           Model
	logger          logrus.FieldLogger
	maxChallenges   int
	challengeFilter float64
}

// NewProsecutor constructs a Prosecutor.
func NewProsecutor(model Model, logger logrus.FieldLogger, maxChallenges int, challengeFilter float64) *Prosecutor {
	return &Prosecutor{model: model, logger: logger, maxChallenges: maxChallenges, challengeFilter: challengeFilter}
}

// Generate produces this round's challenges against verdict, seeded with
// the challenges that survived the previous round.
func (p *Prosecutor) Generate(ctx context.Context, verdict agents.Verdict, bundle evidence.Bundle, surviving []Challenge, round int) []Challenge {
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(10 * time.Second)
	}

	text, err := p.model.Complete(ctx, p.buildPrompt(verdict, bundle, surviving, round), deadline)
	var challenges []Challenge
	if err != nil {
		p.logger.WithFields(logrus.Fields{"round": round}).Warnf("prosecutor model call failed, using fallback challenges: %v", err)
		challenges = p.fallback(verdict, bundle)
	} else {
		challenges, err = parseChallenges(text, verdict.ClaimID+"/"+verdict.AgentID)
		if err != nil {
			p.logger.WithFields(logrus.Fields{"round": round}).Warnf("prosecutor output unparsable, using fallback challenges: %v", err)
			challenges = p.fallback(verdict, bundle)
		}
	}

	filtered := make([]Challenge, 0, len(challenges))
	for _, c := range challenges {
		if c.PriorityScore() >= p.challengeFilter {
			filtered = append(filtered, c)
		}
	}
	if len(filtered) > p.maxChallenges {
		filtered = filtered[:p.maxChallenges]
	}
	return filtered
}

func (p *Prosecutor) buildPrompt(verdict agents.Verdict, bundle evidence.Bundle, surviving []Challenge, round int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are the prosecutor in round %d of an adversarial fact-check debate.\n", round)
	fmt.Fprintf(&b, "Verdict under challenge: label=%s confidence=%.2f reasoning=%q\n", verdict.Label, verdict.Confidence, verdict.Reasoning)
	fmt.Fprintf(&b, "Evidence quality: %.2f (supporting=%d contradicting=%d neutral=%d)\n",
		bundle.OverallQuality, len(bundle.Supporting), len(bundle.Contradicting), len(bundle.Neutral))
	if len(surviving) > 0 {
		b.WriteString("Surviving challenges from the previous round:\n")
		for _, c := range surviving {
			fmt.Fprintf(&b, "- [%s/%s] %s\n", c.Type, c.Strength, c.Text)
		}
	}
	b.WriteString("---\nEmit up to 5 NEW challenges, one per block, in this exact format:\n")
	b.WriteString("TYPE: source_credibility|evidence_relevance|logical_fallacy|factual_accuracy|bias|sufficiency|recency|alternative_explanation\n")
	b.WriteString("STRENGTH: weak|moderate|strong|critical\n")
	b.WriteString("SPECIFICITY: <0-1>\nVERIFIABILITY: <0-1>\nIMPACT: <0-1>\nTEXT: <one sentence>\n---\n")
	return b.String()
}

// fallback deterministically raises the generic challenges the evidence
// itself supports when the model is unavailable, mirroring the teacher's
// generateFallbackAttack: cheap and conservative. It returns no challenges
// when evidence quality is at least 0.5, verdict confidence is at least 0.6,
// and there is no contradicting evidence.
func (p *Prosecutor) fallback(verdict agents.Verdict, bundle evidence.Bundle) []Challenge {
	var out []Challenge
	if bundle.OverallQuality < 0.5 {
		out = append(out, Challenge{
			ID: fmt.Sprintf("fallback-sufficiency-%s", verdict.ClaimID), Type: ChallengeSufficiency,
			Strength: StrengthStrong, Specificity: 0.6, Verifiability: 0.5, Impact: 0.6,
			TargetVerdictID: verdict.ClaimID, Text: "evidence quality is below a reliable threshold",
		})
	}
	if verdict.Confidence < 0.6 {
		out = append(out, Challenge{
			ID: fmt.Sprintf("fallback-accuracy-%s", verdict.ClaimID), Type: ChallengeFactualAccuracy,
			Strength: StrengthModerate, Specificity: 0.5, Verifiability: 0.4, Impact: 0.5,
			TargetVerdictID: verdict.ClaimID, Text: "verdict confidence is not high enough to be conclusive",
		})
	}
	if len(bundle.Contradicting) > 0 {
		out = append(out, Challenge{
			ID: fmt.Sprintf("fallback-alternative-%s", verdict.ClaimID), Type: ChallengeAlternativeExplanation,
			Strength: StrengthModerate, Specificity: 0.4, Verifiability: 0.4, Impact: 0.4,
			TargetVerdictID: verdict.ClaimID, Text: "contradicting evidence was not fully accounted for",
		})
	}
	return out
}

func parseChallenges(text string, targetVerdictID string) ([]Challenge, error) {
	blocks := strings.Split(text, "---")
	var out []Challenge
	for i, block := range blocks {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		c, err := parseChallengeBlock(block, targetVerdictID, i)
		if err != nil {
			continue // skip malformed blocks rather than failing the whole round
		}
		out = append(out, c)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no parseable challenge blocks in prosecutor output")
	}
	return out, nil
}

func parseChallengeBlock(block string, targetVerdictID string, idx int) (Challenge, error) {
	c := Challenge{ID: fmt.Sprintf("challenge-%d-%s", idx, targetVerdictID), TargetVerdictID: targetVerdictID}
	var sawType, sawStrength bool
	for _, line := range strings.Split(block, "\n") {
		line = strings.TrimSpace(line)
		upper := strings.ToUpper(line)
		switch {
		case strings.HasPrefix(upper, "TYPE:"):
			c.Type = ChallengeType(strings.TrimSpace(line[len("TYPE:"):]))
			sawType = true
		case strings.HasPrefix(upper, "STRENGTH:"):
			c.Strength = Strength(strings.TrimSpace(strings.ToLower(line[len("STRENGTH:"):])))
			sawStrength = true
		case strings.HasPrefix(upper, "SPECIFICITY:"):
			c.Specificity = parseUnitFloat(line[len("SPECIFICITY:"):])
		case strings.HasPrefix(upper, "VERIFIABILITY:"):
			c.Verifiability = parseUnitFloat(line[len("VERIFIABILITY:"):])
		case strings.HasPrefix(upper, "IMPACT:"):
			c.Impact = parseUnitFloat(line[len("IMPACT:"):])
		case strings.HasPrefix(upper, "TEXT:"):
			c.Text = strings.TrimSpace(line[len("TEXT:"):])
		}
	}
	if !sawType || !sawStrength {
		return Challenge{}, fmt.Errorf("challenge block missing TYPE or STRENGTH")
	}
	return c, nil
}

func parseUnitFloat(s string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
