// Package service wires the Message Bus, Registry, Reputation System, Pool
// Manager, Consensus Engine, and Debate Engine together behind the single
// Submit(claim_text, mode, hints) -> Result operation of spec §6.
package service

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/consensusnet/core/internal/agents"
	"github.com/consensusnet/core/internal/claim"
	"github.com/consensusnet/core/internal/config"
	"github.com/consensusnet/core/internal/consensus"
	"github.com/consensusnet/core/internal/consensuserr"
	"github.com/consensusnet/core/internal/debate"
	"github.com/consensusnet/core/internal/evidence"
	"github.com/consensusnet/core/internal/messagebus"
	"github.com/consensusnet/core/internal/pool"
	"github.com/consensusnet/core/internal/registry"
	"github.com/consensusnet/core/internal/reputation"
	"github.com/consensusnet/core/internal/sink"
)

// VerdictView is the Result.verdict shape of spec §6.
type VerdictView struct {
	Label      agents.Label
	Confidence float64
	Reasoning  string
	Sources    []string
}

// ConsensusView is the Result.consensus shape of spec §6.
type ConsensusView struct {
	Rule      consensus.Rule
	Quality   float64
	Agreement float64
}

// Result is the single Submit() response shape of spec §6.
type Result struct {
	Verdict         VerdictView
	EvidenceQuality float64
	AgentsConsulted []string
	Debate          *debate.DebateOutcome
	Consensus       ConsensusView
	Elapsed         time.Duration
	Partial         bool
	Error           error
}

// Service is the Submit() façade.
type Service struct {
	cfg         *config.Config
	logger      logrus.FieldLogger
	bus         *messagebus.Bus
	registry    *registry.Registry
	reputation  *reputation.Store
	credibility *reputation.CredibilityStore
	poolMgr     *pool.Manager
	debate      *debate.Engine
	sink        sink.PersistenceSink
}

// New constructs a Service. reg, poolMgr, and debateEngine are assembled by
// the caller (typically cmd/consensusnet's wiring) since they depend on
// concrete EvidenceSource/ModelBackend adapters the core is agnostic to.
// credibility is the same store the evidence pipeline's aggregators
// consult for source credibility; it may be nil if no adaptive store is
// wired (credibility then stays static). poolMgr's agents must share this
// same credibility store for Submit's Observe calls to have any effect.
func New(
	cfg *config.Config,
	logger logrus.FieldLogger,
	bus *messagebus.Bus,
	reg *registry.Registry,
	rep *reputation.Store,
	credibility *reputation.CredibilityStore,
	poolMgr *pool.Manager,
	debateEngine *debate.Engine,
	persist sink.PersistenceSink,
) *Service {
	if persist == nil {
		persist = sink.NoopSink{}
	}
	return &Service{
		cfg:         cfg,
		logger:      logger,
		bus:         bus,
		registry:    reg,
		reputation:  rep,
		credibility: credibility,
		poolMgr:     poolMgr,
		debate:      debateEngine,
		sink:        persist,
	}
}

// Submit runs the full control flow of spec §2: decompose and dispatch,
// collect verdicts, aggregate by consensus, escalate to debate if quality or
// agreement is low, and return the Result shape of spec §6.
func (s *Service) Submit(ctx context.Context, claimText string, mode pool.Mode, hints claim.Hints) (Result, error) {
	start := time.Now()

	if err := validateInput(claimText); err != nil {
		return Result{Error: err, Elapsed: time.Since(start)}, err
	}

	requestTimeout := s.cfg.Timeouts.PerRequest
	if mode == pool.ModeAdversarial {
		requestTimeout = s.cfg.Timeouts.PerRequestDebate
	}
	reqCtx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	c := claim.New(claimText, hints)
	required := map[string]bool{"general": true}

	poolResult, err := s.poolMgr.Submit(reqCtx, c, mode, required)
	if err != nil {
		// Only the caller's own context carries a true cancellation signal;
		// reqCtx's deadline naturally expiring is what produces INCOMPLETE/
		// PARTIAL_TIMEOUT from the pool and must not be reclassified here.
		if ctx.Err() != nil {
			cancelledErr := consensuserr.Wrap(consensuserr.Cancelled, ctx.Err(), "request cancelled for claim %s", c.ID)
			return Result{Error: cancelledErr, Elapsed: time.Since(start)}, cancelledErr
		}
		return Result{Error: err, Elapsed: time.Since(start)}, err
	}

	weights := s.trustWeights(poolResult.Verdicts, c.Domain)
	rule := consensus.Rule(s.cfg.Consensus.Rule)
	consensusResult := consensus.Aggregate(rule, poolResult.Verdicts, weights)

	s.publishResult(c, poolResult.Verdicts)
	s.recordVerdicts(poolResult.Verdicts)
	s.observeConsensusAlignment(poolResult.Verdicts, consensusResult.Label, c.Domain)

	result := Result{
		Verdict: VerdictView{
			Label:      consensusResult.Label,
			Confidence: consensusResult.ConsensusConfidence,
			Reasoning:  synthesizeReasoning(poolResult.Verdicts),
			Sources:    unionSources(poolResult.Verdicts),
		},
		EvidenceQuality: averageEvidenceQuality(poolResult.Verdicts),
		AgentsConsulted: agentIDs(poolResult.Verdicts),
		Consensus: ConsensusView{
			Rule:      rule,
			Quality:   consensusResult.Quality,
			Agreement: consensusResult.Agreement,
		},
		Partial: poolResult.Partial,
	}

	disagreement := 1 - consensusResult.Agreement
	needsDebate := mode == pool.ModeAdversarial &&
		(consensusResult.Quality < s.cfg.Consensus.Threshold || disagreement > s.cfg.Adversarial.DisagreementMax)

	if needsDebate && s.debate != nil {
		initial := synthesizeInitialVerdict(c, poolResult.Verdicts, consensusResult)
		bundle := evidence.Bundle{OverallQuality: result.EvidenceQuality}

		outcome := s.debate.Run(reqCtx, initial, bundle)
		result.Debate = &outcome
		result.Verdict = VerdictView{
			Label:      outcome.RefinedVerdict.Label,
			Confidence: outcome.RefinedVerdict.Confidence,
			Reasoning:  outcome.RefinedVerdict.Reasoning,
			Sources:    result.Verdict.Sources,
		}
		s.sink.Record(sink.Record{Kind: sink.RecordDebateOutcome, Debate: &outcome, RecordedAt: time.Now()})
	}

	result.Elapsed = time.Since(start)
	return result, nil
}

func validateInput(text string) error {
	if len(text) == 0 {
		return consensuserr.New(consensuserr.InputInvalid, "claim text must not be empty")
	}
	if len(text) > claim.MaxLength {
		return consensuserr.New(consensuserr.InputInvalid, "claim text exceeds max length %d", claim.MaxLength)
	}
	return nil
}

// trustWeights builds the reputation-weighted view the Consensus Engine
// needs (spec §4.9: wᵢ = reputation.overall in the claim's domain).
func (s *Service) trustWeights(verdicts []agents.Verdict, domain claim.Domain) consensus.TrustWeights {
	weights := make(consensus.TrustWeights, len(verdicts))
	for _, v := range verdicts {
		weights[v.AgentID] = s.reputation.Overall(v.AgentID, domain)
	}
	return weights
}

// observeConsensusAlignment applies a consensus_aligned reputation event to
// every agent whose verdict matched the winning label, and
// verification_incorrect-adjacent signal is deliberately NOT applied here:
// ground truth isn't known at Submit time, only agreement with the group.
// It also feeds the same alignment signal back into the source-credibility
// store (spec §4.7.2): a source cited by a verdict that matched consensus
// nudges that source's credibility up, one that was cited only by
// minority-label verdicts nudges it down.
func (s *Service) observeConsensusAlignment(verdicts []agents.Verdict, winner agents.Label, domain claim.Domain) {
	now := time.Now()
	for _, v := range verdicts {
		aligned := v.Label == winner
		if aligned && s.reputation != nil {
			s.reputation.Apply(reputation.Event{AgentID: v.AgentID, Domain: domain, Kind: reputation.EventConsensusAligned, At: now})
		}
		s.observeSourceCredibility(v, aligned)
	}
}

// observeSourceCredibility is a no-op when no CredibilityStore is wired,
// preserving the static initialCredibility behavior for deployments that
// don't opt into adaptation.
func (s *Service) observeSourceCredibility(v agents.Verdict, aligned bool) {
	if s.credibility == nil {
		return
	}
	performanceScore := 0.0
	if aligned {
		performanceScore = 1.0
	}
	for _, sourceID := range v.Sources {
		tier := v.SourceTiers[sourceID]
		s.credibility.Observe(sourceID, reputation.Tier(tier), 0.5, performanceScore)
	}
}

// publishResult announces each verdict through its own agent's Handle
// rather than publishing on the bus directly, so nothing downstream (the
// debate engine included) ever needs a reference to the Agent itself —
// only the bus-mediated handle (spec §9 "cyclic referencing" redesign).
func (s *Service) publishResult(c claim.Claim, verdicts []agents.Verdict) {
	if s.bus == nil {
		return
	}
	for _, v := range verdicts {
		handle := agents.NewHandle(v.AgentID, s.bus)
		_ = handle.Send(messagebus.Message{
			Broadcast: true,
			Kind:      messagebus.KindVerificationResult,
			Priority:  messagebus.PriorityNormal,
			Payload:   v,
		})
	}
}

func (s *Service) recordVerdicts(verdicts []agents.Verdict) {
	now := time.Now()
	for i := range verdicts {
		s.sink.Record(sink.Record{Kind: sink.RecordVerdict, Verdict: &verdicts[i], RecordedAt: now})
	}
}

func synthesizeReasoning(verdicts []agents.Verdict) string {
	if len(verdicts) == 0 {
		return ""
	}
	return verdicts[0].Reasoning
}

func synthesizeInitialVerdict(c claim.Claim, verdicts []agents.Verdict, cr consensus.Result) agents.Verdict {
	return agents.Verdict{
		ClaimID:         c.ID,
		AgentID:         "consensus",
		Label:           cr.Label,
		Confidence:      cr.ConsensusConfidence,
		Reasoning:       synthesizeReasoning(verdicts),
		Sources:         unionSources(verdicts),
		EvidenceQuality: averageEvidenceQuality(verdicts),
		Timestamp:       time.Now(),
	}
}

func unionSources(verdicts []agents.Verdict) []string {
	seen := make(map[string]bool)
	var out []string
	for _, v := range verdicts {
		for _, src := range v.Sources {
			if !seen[src] {
				seen[src] = true
				out = append(out, src)
			}
		}
	}
	return out
}

func agentIDs(verdicts []agents.Verdict) []string {
	out := make([]string, len(verdicts))
	for i, v := range verdicts {
		out[i] = v.AgentID
	}
	return out
}

func averageEvidenceQuality(verdicts []agents.Verdict) float64 {
	if len(verdicts) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range verdicts {
		sum += v.EvidenceQuality
	}
	return sum / float64(len(verdicts))
}
