// Package reputation implements the event-sourced agent Reputation System
// (spec §4.7.1) and the source-credibility adaptation (spec §4.7.2).
package reputation

import (
	"math"
	"sync"
	"time"

	"github.com/consensusnet/core/internal/claim"
	"github.com/consensusnet/core/internal/clock"
)

// EventKind is a recognized reputation-affecting observation.
type EventKind string

const (
	EventVerificationCorrect    EventKind = "verification_correct"
	EventVerificationIncorrect EventKind = "verification_incorrect"
	EventChallengeUpheld        EventKind = "challenge_upheld"
	EventChallengeRebutted      EventKind = "challenge_rebutted"
	EventConsensusAligned       EventKind = "consensus_aligned"
	EventConsensusOutlierCorrect EventKind = "consensus_outlier_correct"
	EventCollaborationHelpful   EventKind = "collaboration_helpful"
	EventCollaborationHarmful   EventKind = "collaboration_harmful"
)

// Dimension is one of the four reputation axes in spec §3.
type Dimension string

const (
	DimensionAccuracy      Dimension = "accuracy"
	DimensionReliability   Dimension = "reliability"
	DimensionExpertise     Dimension = "expertise"
	DimensionCollaboration Dimension = "collaboration"
)

// dimensionFor and contributionFor together implement the event →
// (dimension, contribution) mapping spec §4.7.1 leaves to the
// implementation.
func dimensionFor(k EventKind) Dimension {
	switch k {
	case EventVerificationCorrect, EventVerificationIncorrect:
		return DimensionAccuracy
	case EventChallengeUpheld, EventChallengeRebutted:
		return DimensionReliability
	case EventConsensusAligned, EventConsensusOutlierCorrect:
		return DimensionExpertise
	case EventCollaborationHelpful, EventCollaborationHarmful:
		return DimensionCollaboration
	default:
		return DimensionAccuracy
	}
}

func contributionFor(k EventKind) float64 {
	switch k {
	case EventVerificationCorrect, EventChallengeRebutted, EventConsensusAligned,
		EventConsensusOutlierCorrect, EventCollaborationHelpful:
		return 1.0
	case EventVerificationIncorrect, EventChallengeUpheld, EventCollaborationHarmful:
		return 0.0
	default:
		return 0.5
	}
}

// Event is one observation about an agent's performance, optionally tagged
// with the domain it occurred in.
type Event struct {
	AgentID string
	Domain  claim.Domain // "" applies to the agent's domain-agnostic record only
	Kind    EventKind
	At      time.Time
}

// Record is the derived current reputation value for one agent in one
// domain (or the domain-agnostic "" record).
type Record struct {
	Accuracy      float64
	Reliability   float64
	Expertise     float64
	Collaboration float64
	Overall       float64
	LastUpdate    time.Time
	EventCount    int
}

func (r Record) recomputeOverall() Record {
	r.Overall = 0.45*r.Accuracy + 0.25*r.Reliability + 0.20*r.Expertise + 0.10*r.Collaboration
	return r
}

func zeroRecord(at time.Time) Record {
	// New agents start at the neutral midpoint on every dimension so an
	// agent with no track record is neither favored nor penalized.
	r := Record{Accuracy: 0.5, Reliability: 0.5, Expertise: 0.5, Collaboration: 0.5, LastUpdate: at}
	return r.recomputeOverall()
}

type agentState struct {
	mu      sync.Mutex
	records map[claim.Domain]Record // includes "" for the domain-agnostic record
}

// Store is the serialized, event-sourced reputation store. Updates to one
// agent never block updates to another (spec §5: "reputation updates
// serialized per agent").
type Store struct {
	clock clock.Clock
	tau   time.Duration // half-life-derived decay constant τ
	alpha float64

	mu     sync.RWMutex
	agents map[string]*agentState
}

// New constructs a Store. halfLifeDays and alpha are reputation.half_life_days
// and the EWMA weight from configuration (defaults 30 and 0.1).
func New(c clock.Clock, halfLifeDays float64, alpha float64) *Store {
	return &Store{
		clock: c,
		tau:   time.Duration(halfLifeDays * 24 * float64(time.Hour)),
		alpha: alpha,
		agents: make(map[string]*agentState),
	}
}

func (s *Store) stateFor(agentID string) *agentState {
	s.mu.RLock()
	st, ok := s.agents[agentID]
	s.mu.RUnlock()
	if ok {
		return st
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok = s.agents[agentID]
	if ok {
		return st
	}
	st = &agentState{records: make(map[claim.Domain]Record)}
	s.agents[agentID] = st
	return st
}

// Apply applies an event to the agent's domain-agnostic record and, if the
// event carries a domain tag, to that domain's record too. Both updates
// happen while holding the same per-agent lock, so concurrent Apply calls
// for the same agent are strictly serialized.
func (s *Store) Apply(e Event) {
	st := s.stateFor(e.AgentID)
	st.mu.Lock()
	defer st.mu.Unlock()

	st.records[""] = s.applyLocked(st.records[""], e)
	if e.Domain != "" {
		st.records[e.Domain] = s.applyLocked(st.records[e.Domain], e)
	}
}

func (s *Store) applyLocked(existing Record, e Event) Record {
	now := e.At
	if now.IsZero() {
		now = s.clock.Now()
	}
	var rec Record
	if existing.LastUpdate.IsZero() {
		rec = zeroRecord(now)
	} else {
		rec = existing
	}

	elapsed := now.Sub(rec.LastUpdate)
	if elapsed < 0 {
		elapsed = 0
	}
	decay := math.Exp(-float64(elapsed) / float64(s.tau))

	dim := dimensionFor(e.Kind)
	contribution := contributionFor(e.Kind)

	switch dim {
	case DimensionAccuracy:
		rec.Accuracy = clamp01((1-s.alpha)*rec.Accuracy*decay + s.alpha*contribution)
	case DimensionReliability:
		rec.Reliability = clamp01((1-s.alpha)*rec.Reliability*decay + s.alpha*contribution)
	case DimensionExpertise:
		rec.Expertise = clamp01((1-s.alpha)*rec.Expertise*decay + s.alpha*contribution)
	case DimensionCollaboration:
		rec.Collaboration = clamp01((1-s.alpha)*rec.Collaboration*decay + s.alpha*contribution)
	}

	rec.LastUpdate = now
	rec.EventCount++
	return rec.recomputeOverall()
}

// Get returns the current reputation snapshot for an agent in a domain,
// falling back to the domain-agnostic record if the agent has no history in
// that domain yet. Readers observe a consistent snapshot, never a
// partially-applied update (spec §9).
func (s *Store) Get(agentID string, domain claim.Domain) Record {
	st := s.stateFor(agentID)
	st.mu.Lock()
	defer st.mu.Unlock()

	if rec, ok := st.records[domain]; ok && domain != "" {
		return rec
	}
	if rec, ok := st.records[""]; ok {
		return rec
	}
	return zeroRecord(s.clock.Now())
}

// Overall implements registry.ReputationView: it returns just the scalar
// trust weight used by the registry's ranking formula.
func (s *Store) Overall(agentID string, domain claim.Domain) float64 {
	return s.Get(agentID, domain).Overall
}

// Settled reports whether an agent's record in a domain has accumulated at
// least minEvents observations (reputation.update_after_uses).
func (s *Store) Settled(agentID string, domain claim.Domain, minEvents int) bool {
	return s.Get(agentID, domain).EventCount >= minEvents
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
