package debate

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/consensusnet/core/internal/agents"
)

// Defender emits one Response per Challenge it is given.
type Defender struct {
	model  Model
	logger logrus.FieldLogger
}

// NewDefender constructs a Defender.
func NewDefender(model Model, logger logrus.FieldLogger) *Defender {
	return &Defender{model: model, logger: logger}
}

// Respond produces responses to challenges. When the model call fails or
// its output has no parseable response block, every challenge gets the
// deterministic fallback response (see fallback). When the output parses,
// only the challenges it answers get a response; the others get none.
func (d *Defender) Respond(ctx context.Context, challenges []Challenge, verdict agents.Verdict) []Response {
	if len(challenges) == 0 {
		return nil
	}
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(10 * time.Second)
	}

	text, err := d.model.Complete(ctx, d.buildPrompt(challenges, verdict), deadline)
	if err != nil {
		d.logger.Warnf("defender model call failed, using fallback responses: %v", err)
		return d.fallback(challenges)
	}

	responses, err := parseResponses(text, challenges)
	if err != nil {
		d.logger.Warnf("defender output unparsable, using fallback responses: %v", err)
		return d.fallback(challenges)
	}
	return responses
}

func (d *Defender) buildPrompt(challenges []Challenge, verdict agents.Verdict) string {
	var b strings.Builder
	b.WriteString("You are the defender in an adversarial fact-check debate.\n")
	fmt.Fprintf(&b, "Verdict being defended: label=%s confidence=%.2f\n", verdict.Label, verdict.Confidence)
	b.WriteString("Respond to each challenge below with exactly one block.\n")
	for _, c := range challenges {
		fmt.Fprintf(&b, "Challenge %s [%s/%s]: %s\n", c.ID, c.Type, c.Strength, c.Text)
	}
	b.WriteString("---\nFor each challenge, respond with:\n")
	b.WriteString("CHALLENGE_ID: <id>\nSTANCE: refute|partially_concede|concede\nTEXT: <one sentence>\n---\n")
	return b.String()
}

// fallback refutes weak/moderate challenges (the evidence likely already
// addresses them) and partially concedes strong/critical ones, never
// outright conceding without model input — a conservative default.
func (d *Defender) fallback(challenges []Challenge) []Response {
	out := make([]Response, 0, len(challenges))
	for _, c := range challenges {
		stance := StanceRefute
		text := "existing evidence addresses this challenge"
		if c.Strength == StrengthStrong || c.Strength == StrengthCritical {
			stance = StancePartiallyConcede
			text = "challenge has merit but does not fully undermine the verdict"
		}
		out = append(out, Response{ChallengeID: c.ID, Stance: stance, Text: text})
	}
	return out
}

func parseResponses(text string, challenges []Challenge) ([]Response, error) {
	known := make(map[string]bool, len(challenges))
	for _, c := range challenges {
		known[c.ID] = true
	}

	blocks := strings.Split(text, "---")
	var out []Response
	for _, block := range blocks {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		r, err := parseResponseBlock(block)
		if err != nil || !known[r.ChallengeID] {
			continue
		}
		out = append(out, r)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no parseable response blocks in defender output")
	}
	return out, nil
}

func parseResponseBlock(block string) (Response, error) {
	var r Response
	var sawID, sawStance bool
	for _, line := range strings.Split(block, "\n") {
		line = strings.TrimSpace(line)
		upper := strings.ToUpper(line)
		switch {
		case strings.HasPrefix(upper, "CHALLENGE_ID:"):
			r.ChallengeID = strings.TrimSpace(line[len("CHALLENGE_ID:"):])
			sawID = true
		case strings.HasPrefix(upper, "STANCE:"):
			r.Stance = ResponseStance(strings.TrimSpace(strings.ToLower(line[len("STANCE:"):])))
			sawStance = true
		case strings.HasPrefix(upper, "TEXT:"):
			r.Text = strings.TrimSpace(line[len("TEXT:"):])
		}
	}
	if !sawID || !sawStance {
		return Response{}, fmt.Errorf("response block missing CHALLENGE_ID or STANCE")
	}
	return r, nil
}
