package debate

import (
	"context"
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/consensusnet/core/internal/agents"
	"github.com/consensusnet/core/internal/evidence"
	"github.com/consensusnet/core/internal/messagebus"
)

const (
	maxRounds                  = 3
	minConfidenceAdjustment    = 0.02
	refinedVerdictClampRadius  = 0.6
	labelFlipThreshold         = 0.5
)

// Bus identities the debate roles address each other by. These are fixed,
// not registry-tracked agents: the debate engine is a closed three-role
// conversation, not a pool-dispatched agent.
const (
	engineAgentID     = "debate-engine"
	prosecutorAgentID = "debate-prosecutor"
	defenderAgentID   = "debate-defender"
	moderatorAgentID  = "debate-moderator"
)

// Engine runs the PROSECUTE -> DEFEND -> MODERATE -> (loop or SYNTHESIZE) ->
// TERMINAL state machine of spec §4.8. Challenge, response, and evidence_share
// traffic between the three roles travels over the Message Bus (spec §9:
// the debate engine never holds a direct reference to another agent, only a
// bus-mediated AgentHandle), not as in-process data hand-off.
type Engine struct {
	prosecutor *Prosecutor
	defender   *Defender
	moderator  *Moderator
	logger     logrus.FieldLogger

	roundDeadline time.Duration

	bus              *messagebus.Bus
	engineHandle     agents.Handle
	prosecutorHandle agents.Handle
	defenderHandle   agents.Handle
}

// NewEngine constructs an Engine. roundDeadline bounds each PROSECUTE/DEFEND/
// MODERATE phase; the caller's ctx still bounds the debate as a whole
// (spec §5: overall debate deadline <= 2x a single verification's deadline).
// bus carries challenge/response/evidence_share traffic between the three
// roles; a nil bus falls back to direct in-process hand-off (used by tests
// that only exercise the state machine, not the transport).
func NewEngine(prosecutor *Prosecutor, defender *Defender, moderator *Moderator, logger logrus.FieldLogger, roundDeadline time.Duration, bus *messagebus.Bus) *Engine {
	e := &Engine{prosecutor: prosecutor, defender: defender, moderator: moderator, logger: logger, roundDeadline: roundDeadline, bus: bus}
	if bus != nil {
		e.engineHandle = agents.NewHandle(engineAgentID, bus)
		e.prosecutorHandle = agents.NewHandle(prosecutorAgentID, bus)
		e.defenderHandle = agents.NewHandle(defenderAgentID, bus)
	}
	return e
}

// Run executes the full debate over initial and returns its outcome. A
// moderator failure at any round returns the initial verdict unchanged with
// Degraded set, never an error (spec §4.8: "moderator failure -> return
// initial verdict unchanged, degraded=true").
func (e *Engine) Run(ctx context.Context, initial agents.Verdict, bundle evidence.Bundle) DebateOutcome {
	outcome := DebateOutcome{InitialVerdict: initial, RefinedVerdict: initial}

	e.shareEvidence(bundle)

	var surviving []Challenge
	totalDelta := 0.0
	refined := initial

	for round := 1; round <= maxRounds; round++ {
		roundCtx, cancel := context.WithTimeout(ctx, e.roundDeadline)
		challenges := e.prosecutor.Generate(roundCtx, refined, bundle, surviving, round)
		cancel()

		if len(challenges) == 0 {
			e.logger.WithFields(logrus.Fields{"round": round}).Info("no challenges raised, terminating debate")
			break
		}
		challenges = e.relayChallenges(challenges)

		respCtx, cancel := context.WithTimeout(ctx, e.roundDeadline)
		responses := e.defender.Respond(respCtx, challenges, refined)
		cancel()
		responses = e.relayResponses(responses)

		dr := DebateRound{RoundIndex: round, Challenges: challenges, Responses: responses}

		modCtx, cancel := context.WithTimeout(ctx, e.roundDeadline)
		modOut, err := e.moderator.Assess(modCtx, dr)
		cancel()
		if err != nil {
			e.logger.WithFields(logrus.Fields{"round": round}).Warnf("moderator failed, returning initial verdict: %v", err)
			outcome.Degraded = true
			outcome.RefinedVerdict = initial
			outcome.Rounds = append(outcome.Rounds, dr)
			outcome.QualityScore = qualityScore(outcome.Rounds)
			return outcome
		}
		dr.RoundSummary = modOut.RoundSummary
		outcome.Rounds = append(outcome.Rounds, dr)

		byChallenge := make(map[string]Challenge, len(challenges))
		for _, c := range challenges {
			byChallenge[c.ID] = c
		}

		roundDelta := 0.0
		surviving = nil
		for _, a := range modOut.Assessments {
			switch a.Outcome {
			case OutcomeUpheld, OutcomeConceded:
				roundDelta += a.ConfidenceDelta
			case OutcomeRebutted:
				roundDelta += a.ConfidenceDelta
				if c, ok := byChallenge[a.ChallengeID]; ok {
					surviving = append(surviving, c) // rebutted but not dropped from future scrutiny
				}
			case OutcomeNeutral:
				if c, ok := byChallenge[a.ChallengeID]; ok {
					surviving = append(surviving, c)
				}
			}
		}

		totalDelta += roundDelta
		refined = applyDelta(initial, totalDelta)

		allWeakOrBelow := true
		for _, c := range surviving {
			if c.Strength != StrengthWeak {
				allWeakOrBelow = false
				break
			}
		}
		if allWeakOrBelow || math.Abs(roundDelta) < minConfidenceAdjustment {
			break
		}
	}

	outcome.RefinedVerdict = refined
	outcome.QualityScore = qualityScore(outcome.Rounds)
	return outcome
}

// shareEvidence broadcasts the evidence bundle a round's challenges and
// responses will be argued over, so any bus subscriber (debate-adjacent
// tooling, audit sinks) sees the same evidence_share traffic the roles do.
func (e *Engine) shareEvidence(bundle evidence.Bundle) {
	if e.bus == nil {
		return
	}
	_ = e.engineHandle.Send(messagebus.Message{
		Broadcast: true,
		Kind:      messagebus.KindEvidenceShare,
		Priority:  messagebus.PriorityNormal,
		Payload:   bundle,
	})
}

// relayChallenges publishes the prosecutor's challenges to the defender's
// bus address and reads them back off a scoped subscription, so the
// PROSECUTE -> DEFEND hand-off is bus traffic rather than a direct call.
func (e *Engine) relayChallenges(challenges []Challenge) []Challenge {
	if e.bus == nil {
		return challenges
	}
	sub := e.bus.Subscribe(defenderAgentID, []messagebus.Kind{messagebus.KindChallenge}, nil)
	defer sub.Close()

	for _, c := range challenges {
		_ = e.prosecutorHandle.Send(messagebus.Message{
			To:       defenderAgentID,
			Kind:     messagebus.KindChallenge,
			Priority: messagebus.PriorityNormal,
			Payload:  c,
		})
	}

	received := make([]Challenge, 0, len(challenges))
	for i := 0; i < len(challenges); i++ {
		msg := <-sub.Channel()
		received = append(received, msg.Payload.(Challenge))
	}
	return received
}

// relayResponses publishes the defender's responses to the moderator's bus
// address and reads them back the same way, for the DEFEND -> MODERATE
// hand-off.
func (e *Engine) relayResponses(responses []Response) []Response {
	if e.bus == nil {
		return responses
	}
	sub := e.bus.Subscribe(moderatorAgentID, []messagebus.Kind{messagebus.KindResponse}, nil)
	defer sub.Close()

	for _, r := range responses {
		_ = e.defenderHandle.Send(messagebus.Message{
			To:       moderatorAgentID,
			Kind:     messagebus.KindResponse,
			Priority: messagebus.PriorityNormal,
			Payload:  r,
		})
	}

	received := make([]Response, 0, len(responses))
	for i := 0; i < len(responses); i++ {
		msg := <-sub.Channel()
		received = append(received, msg.Payload.(Response))
	}
	return received
}

// applyDelta folds the accumulated confidence adjustment into the initial
// verdict, clamped to +/- refinedVerdictClampRadius of the initial confidence
// and to [0,1] overall, and flips the label when the adjusted confidence
// crosses the 0.5 threshold in the opposite direction (spec §8 invariant 6).
func applyDelta(initial agents.Verdict, totalDelta float64) agents.Verdict {
	if totalDelta > refinedVerdictClampRadius {
		totalDelta = refinedVerdictClampRadius
	}
	if totalDelta < -refinedVerdictClampRadius {
		totalDelta = -refinedVerdictClampRadius
	}

	refined := initial
	conf := initial.Confidence + totalDelta
	if conf < 0 {
		conf = 0
	}
	if conf > 1 {
		conf = 1
	}
	refined.Confidence = conf

	if totalDelta < 0 && conf < labelFlipThreshold && initial.Label != agents.LabelUncertain {
		refined.Label = agents.LabelUncertain
	}

	return refined
}

// qualityScore is a coarse signal of how thoroughly the debate exercised the
// verdict: the number of defender responses divided by the number of
// challenges across all rounds, capped at 1.0 (1.0 when no challenge was
// raised).
func qualityScore(rounds []DebateRound) float64 {
	if len(rounds) == 0 {
		return 1.0
	}
	resolved, total := 0, 0
	for _, r := range rounds {
		total += len(r.Challenges)
	}
	if total == 0 {
		return 1.0
	}
	for _, r := range rounds {
		resolved += len(r.Responses)
	}
	return math.Min(1.0, float64(resolved)/float64(total))
}
