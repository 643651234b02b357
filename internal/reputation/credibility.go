package reputation

import "sync"

// Tier is a source's static class, bounding how far its credibility can
// drift via adaptation (spec §4.7.2).
type Tier string

const (
	TierAcademic             Tier = "academic"
	TierPeerReviewed         Tier = "peer_reviewed"
	TierEncyclopedic         Tier = "encyclopedic"
	TierPrimaryDocumentation Tier = "primary_documentation"
	TierNews                 Tier = "news"
	TierWeb                  Tier = "web"
)

// tierBounds are the static floor/ceiling each tier's credibility cannot
// cross under adaptation.
var tierBounds = map[Tier][2]float64{
	TierAcademic:             {0.75, 1.0},
	TierPeerReviewed:         {0.75, 1.0},
	TierEncyclopedic:         {0.4, 0.9},
	TierPrimaryDocumentation: {0.5, 0.95},
	TierNews:                 {0.2, 0.8},
	TierWeb:                  {0.1, 0.7},
}

func bounds(tier Tier) (floor, ceiling float64) {
	b, ok := tierBounds[tier]
	if !ok {
		return 0, 1
	}
	return b[0], b[1]
}

type sourceState struct {
	mu          sync.Mutex
	credibility float64
	tier        Tier
}

// CredibilityStore tracks adaptive source credibility, serialized per
// source (spec §5: "source-credibility updates serialized per source").
type CredibilityStore struct {
	weight float64 // source.credibility_update_weight, β (default 0.3)

	mu      sync.RWMutex
	sources map[string]*sourceState
}

// NewCredibilityStore constructs a store with adaptation weight β.
func NewCredibilityStore(weight float64) *CredibilityStore {
	return &CredibilityStore{weight: weight, sources: make(map[string]*sourceState)}
}

func (c *CredibilityStore) stateFor(sourceID string, tier Tier, initial float64) *sourceState {
	c.mu.RLock()
	st, ok := c.sources[sourceID]
	c.mu.RUnlock()
	if ok {
		return st
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok = c.sources[sourceID]
	if ok {
		return st
	}
	st = &sourceState{credibility: initial, tier: tier}
	c.sources[sourceID] = st
	return st
}

// Credibility returns a source's current credibility, registering it with
// initial/tier on first use.
func (c *CredibilityStore) Credibility(sourceID string, tier Tier, initial float64) float64 {
	st := c.stateFor(sourceID, tier, initial)
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.credibility
}

// Observe applies the adaptation rule credibility_new = (1-β)·credibility_old
// + β·performance_score, clamped to the source's tier floor/ceiling, where
// performance_score reflects whether the source's stance agreed with the
// eventually-observed ground truth (spec §4.7.2).
func (c *CredibilityStore) Observe(sourceID string, tier Tier, initial float64, performanceScore float64) float64 {
	st := c.stateFor(sourceID, tier, initial)
	st.mu.Lock()
	defer st.mu.Unlock()

	updated := (1-c.weight)*st.credibility + c.weight*clamp01(performanceScore)
	floor, ceiling := bounds(st.tier)
	if updated < floor {
		updated = floor
	}
	if updated > ceiling {
		updated = ceiling
	}
	st.credibility = updated
	return st.credibility
}
