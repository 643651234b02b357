package service

import (
	"github.com/sirupsen/logrus"

	"github.com/consensusnet/core/internal/config"
	"github.com/consensusnet/core/internal/debate"
	"github.com/consensusnet/core/internal/messagebus"
	"github.com/consensusnet/core/internal/modelrouter"
)

// debateMaxChallenges is N_c from spec §4.8; not exposed as a config knob
// since the spec fixes it at 5 rather than naming it as tunable.
const debateMaxChallenges = 5

// NewDebateEngine assembles the three debate roles behind router, sharing
// one adapter so all of a round's model calls go through the same router at
// the reasoning tier, with its transient retry and tier fallthrough. bus is
// the same Message Bus the rest of the
// system publishes on: challenge/response/evidence_share traffic between
// the three roles travels over it rather than as direct Go calls.
func NewDebateEngine(cfg *config.Config, router *modelrouter.Router, logger logrus.FieldLogger, bus *messagebus.Bus) *debate.Engine {
	model := newRouterModel(router)
	prosecutor := debate.NewProsecutor(model, logger, debateMaxChallenges, cfg.Adversarial.ChallengeFilter)
	defender := debate.NewDefender(model, logger)
	moderator := debate.NewModerator(model, logger)
	return debate.NewEngine(prosecutor, defender, moderator, logger, cfg.Timeouts.PerAgent, bus)
}
