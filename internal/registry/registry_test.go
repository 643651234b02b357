package registry

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/consensusnet/core/internal/claim"
)

func silentLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

type stubReputation struct{ overall map[string]float64 }

func (s stubReputation) Overall(agentID string, domain claim.Domain) float64 {
	return s.overall[agentID]
}

func TestQuery_FiltersByCapability(t *testing.T) {
	reg := New(silentLogger(), stubReputation{}, 3)
	reg.Register(Profile{AgentID: "a", Capabilities: map[string]bool{"science": true}, DomainExpertise: map[claim.Domain]float64{}})
	reg.Register(Profile{AgentID: "b", Capabilities: map[string]bool{"news": true}, DomainExpertise: map[claim.Domain]float64{}})

	got := reg.Query(map[string]bool{"science": true}, claim.DomainScience)
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].AgentID)
}

func TestQuery_ExcludesDraining(t *testing.T) {
	reg := New(silentLogger(), stubReputation{}, 3)
	reg.Register(Profile{AgentID: "a", Capabilities: map[string]bool{"general": true}, Availability: AvailabilityDraining})
	reg.Register(Profile{AgentID: "b", Capabilities: map[string]bool{"general": true}, Availability: AvailabilityIdle})

	got := reg.Query(map[string]bool{"general": true}, claim.DomainGeneral)
	require.Len(t, got, 1)
	assert.Equal(t, "b", got[0].AgentID)
}

func TestQuery_RanksByFormula(t *testing.T) {
	rep := stubReputation{overall: map[string]float64{"a": 0.9, "b": 0.2}}
	reg := New(silentLogger(), rep, 3)
	reg.Register(Profile{
		AgentID: "a", Capabilities: map[string]bool{"general": true},
		DomainExpertise: map[claim.Domain]float64{claim.DomainGeneral: 0.5}, CurrentLoad: 0.5,
	})
	reg.Register(Profile{
		AgentID: "b", Capabilities: map[string]bool{"general": true},
		DomainExpertise: map[claim.Domain]float64{claim.DomainGeneral: 0.9}, CurrentLoad: 0.1,
	})

	got := reg.Query(map[string]bool{"general": true}, claim.DomainGeneral)
	require.Len(t, got, 2)
	// b: 0.6*0.9 + 0.3*0.2 + 0.1*0.9 = 0.54+0.06+0.09=0.69
	// a: 0.6*0.5 + 0.3*0.9 + 0.1*0.5 = 0.30+0.27+0.05=0.62
	assert.Equal(t, "b", got[0].AgentID)
	assert.Equal(t, "a", got[1].AgentID)
}

func TestQuery_TieBreaksLexicographically(t *testing.T) {
	reg := New(silentLogger(), stubReputation{}, 3)
	reg.Register(Profile{AgentID: "zeta", Capabilities: map[string]bool{"general": true}})
	reg.Register(Profile{AgentID: "alpha", Capabilities: map[string]bool{"general": true}})

	got := reg.Query(map[string]bool{"general": true}, claim.DomainGeneral)
	require.Len(t, got, 2)
	assert.Equal(t, "alpha", got[0].AgentID)
	assert.Equal(t, "zeta", got[1].AgentID)
}

func TestRecordMissedHeartbeat_EvictsAfterThreshold(t *testing.T) {
	reg := New(silentLogger(), stubReputation{}, 2)
	reg.Register(Profile{AgentID: "a", Capabilities: map[string]bool{"general": true}})

	reg.RecordMissedHeartbeat("a")
	_, ok := reg.Get("a")
	require.True(t, ok)

	reg.RecordMissedHeartbeat("a")
	_, ok = reg.Get("a")
	assert.False(t, ok)
}

func TestHeartbeat_ResetsMissedCount(t *testing.T) {
	reg := New(silentLogger(), stubReputation{}, 2)
	reg.Register(Profile{AgentID: "a", Capabilities: map[string]bool{"general": true}})

	reg.RecordMissedHeartbeat("a")
	reg.Heartbeat("a")
	reg.RecordMissedHeartbeat("a")
	_, ok := reg.Get("a")
	assert.True(t, ok, "heartbeat should have reset the missed count")
}

func TestCount(t *testing.T) {
	reg := New(silentLogger(), stubReputation{}, 3)
	reg.Register(Profile{AgentID: "a"})
	reg.Register(Profile{AgentID: "b"})
	assert.Equal(t, 2, reg.Count())
}
