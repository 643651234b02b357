// Package registry maintains the live set of agents, their capabilities,
// and availability, and answers capability-ranked queries for the pool
// manager (spec §4.2).
package registry

import (
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/consensusnet/core/internal/claim"
)

// Availability is an agent's current readiness to accept work.
type Availability string

const (
	AvailabilityIdle     Availability = "idle"
	AvailabilityBusy     Availability = "busy"
	AvailabilityDraining Availability = "draining"
)

// ReputationView is the narrow slice of reputation data the registry needs
// to rank agents; internal/reputation.Store satisfies this.
type ReputationView interface {
	Overall(agentID string, domain claim.Domain) float64
}

// Profile is the registry's view of one agent.
type Profile struct {
	AgentID          string
	Capabilities     map[string]bool
	DomainExpertise  map[claim.Domain]float64
	Availability     Availability
	CurrentLoad      float64 // 0..1 load factor
	MaxParallelTasks int

	lastHeartbeat time.Time
	missedBeats   int
}

// HasCapabilities reports whether the profile's capability set is a
// superset of required.
func (p Profile) HasCapabilities(required map[string]bool) bool {
	for c := range required {
		if !p.Capabilities[c] {
			return false
		}
	}
	return true
}

// Registry tracks AgentProfiles under one registry-wide read/write lock.
type Registry struct {
	logger         logrus.FieldLogger
	reputation     ReputationView
	maxMissedBeats int

	mu     sync.RWMutex
	agents map[string]*Profile
}

// New constructs a Registry. maxMissedBeats is the number of consecutive
// failed heartbeats after which an agent is deregistered (spec §4.2).
func New(logger logrus.FieldLogger, reputation ReputationView, maxMissedBeats int) *Registry {
	return &Registry{
		logger:         logger,
		reputation:     reputation,
		maxMissedBeats: maxMissedBeats,
		agents:         make(map[string]*Profile),
	}
}

// Register adds or replaces an agent's profile.
func (r *Registry) Register(p Profile) {
	p.lastHeartbeat = time.Now()
	r.mu.Lock()
	r.agents[p.AgentID] = &p
	r.mu.Unlock()
	r.logger.WithFields(logrus.Fields{"agent_id": p.AgentID}).Infof("agent registered")
}

// Deregister removes an agent from the live set (graceful shutdown path).
func (r *Registry) Deregister(agentID string) {
	r.mu.Lock()
	delete(r.agents, agentID)
	r.mu.Unlock()
	r.logger.WithFields(logrus.Fields{"agent_id": agentID}).Infof("agent deregistered")
}

// Heartbeat resets an agent's missed-heartbeat count. A failed heartbeat
// round calls RecordMissedHeartbeat instead.
func (r *Registry) Heartbeat(agentID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.agents[agentID]
	if !ok {
		return
	}
	p.lastHeartbeat = time.Now()
	p.missedBeats = 0
}

// RecordMissedHeartbeat increments an agent's consecutive-failure count and
// deregisters it once maxMissedBeats is reached.
func (r *Registry) RecordMissedHeartbeat(agentID string) {
	r.mu.Lock()
	p, ok := r.agents[agentID]
	if !ok {
		r.mu.Unlock()
		return
	}
	p.missedBeats++
	evict := p.missedBeats >= r.maxMissedBeats
	r.mu.Unlock()

	if evict {
		r.Deregister(agentID)
		r.logger.WithFields(logrus.Fields{"agent_id": agentID}).Warnf("agent evicted after %d missed heartbeats", r.maxMissedBeats)
	}
}

// SetAvailability updates an agent's availability and current load.
func (r *Registry) SetAvailability(agentID string, a Availability, load float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.agents[agentID]
	if !ok {
		return
	}
	p.Availability = a
	p.CurrentLoad = load
}

// scored pairs a profile snapshot with its computed ranking.
type scored struct {
	profile Profile
	rank    float64
}

// Query returns agents whose capabilities are a superset of required,
// excluding draining agents, sorted by ranking(agent, domain) =
// 0.6·domain_expertise[d] + 0.3·reputation.overall + 0.1·(1−load_factor),
// ties broken lexicographically by agent_id (spec §4.2).
func (r *Registry) Query(required map[string]bool, domain claim.Domain) []Profile {
	r.mu.RLock()
	candidates := make([]scored, 0, len(r.agents))
	for _, p := range r.agents {
		if p.Availability == AvailabilityDraining {
			continue
		}
		if !p.HasCapabilities(required) {
			continue
		}
		candidates = append(candidates, scored{
			profile: *p,
			rank:    r.rank(*p, domain),
		})
	}
	r.mu.RUnlock()

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].rank != candidates[j].rank {
			return candidates[i].rank > candidates[j].rank
		}
		return candidates[i].profile.AgentID < candidates[j].profile.AgentID
	})

	out := make([]Profile, len(candidates))
	for i, c := range candidates {
		out[i] = c.profile
	}
	return out
}

func (r *Registry) rank(p Profile, domain claim.Domain) float64 {
	expertise := p.DomainExpertise[domain]
	rep := 0.0
	if r.reputation != nil {
		rep = r.reputation.Overall(p.AgentID, domain)
	}
	loadFactor := p.CurrentLoad
	return 0.6*expertise + 0.3*rep + 0.1*(1-loadFactor)
}

// Get returns a single agent's profile.
func (r *Registry) Get(agentID string) (Profile, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.agents[agentID]
	if !ok {
		return Profile{}, false
	}
	return *p, true
}

// Count returns the number of registered agents. The pool manager's
// workerCount reads it, and uses the result only to reject dispatch when no
// agent is registered.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.agents)
}
