package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/consensusnet/core/internal/agents"
	"github.com/consensusnet/core/internal/claim"
	"github.com/consensusnet/core/internal/clock"
	"github.com/consensusnet/core/internal/config"
	"github.com/consensusnet/core/internal/consensuserr"
	"github.com/consensusnet/core/internal/debate"
	"github.com/consensusnet/core/internal/evidence"
	"github.com/consensusnet/core/internal/messagebus"
	"github.com/consensusnet/core/internal/modelrouter"
	"github.com/consensusnet/core/internal/pool"
	"github.com/consensusnet/core/internal/registry"
	"github.com/consensusnet/core/internal/reputation"
	"github.com/consensusnet/core/internal/sink"
)

func silentLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

type stubSource struct{ items []evidence.ItemRaw }

func (s stubSource) Name() string { return "stub" }
func (s stubSource) Query(ctx context.Context, normalized string, domain claim.Domain, deadline time.Time) ([]evidence.ItemRaw, error) {
	return s.items, nil
}

type stubClassifier struct{}

func (stubClassifier) Classify(ctx context.Context, claimNormalized, content string) evidence.Stance {
	return evidence.StanceSupports
}

// scriptedBackend always answers the same label/confidence; good enough to
// drive a pool of agents toward a deterministic consensus.
type scriptedBackend struct {
	label      string
	confidence string
}

func (b scriptedBackend) Complete(ctx context.Context, tier modelrouter.Tier, prompt string, deadline time.Time) (modelrouter.Completion, error) {
	text := fmt.Sprintf("LABEL: %s\nCONFIDENCE: %s\nREASONING: scripted\n", b.label, b.confidence)
	return modelrouter.Completion{Text: text}, nil
}

func newTestAgent(id string, backend modelrouter.Backend) *agents.Agent {
	agg := evidence.New(
		silentLogger(),
		map[claim.Domain][]evidence.Source{claim.DomainGeneral: {stubSource{items: []evidence.ItemRaw{
			{Content: "evidence", SourceID: "s1", SourceTier: "encyclopedic", Relevance: 0.9, Timestamp: time.Now()},
		}}}},
		stubClassifier{},
		time.Second, 2*time.Second, nil,
	)
	router := modelrouter.New(silentLogger(), backend, 0.8, 0.65, 0.55)
	return agents.New(id, map[string]bool{"general": true}, "", silentLogger(), clock.Real{}, agg, router, agents.LineParser{}, agents.GeneralPromptBuilder{}, nil, 0.55)
}

type mapProvider map[string]*agents.Agent

func (m mapProvider) Get(agentID string) (*agents.Agent, bool) {
	a, ok := m[agentID]
	return a, ok
}

func buildService(t *testing.T, n int, backend modelrouter.Backend, debateEngine *debate.Engine) *Service {
	t.Helper()
	repStore := reputation.New(clock.Real{}, 30, 0.3)
	reg := registry.New(silentLogger(), repStore, 3)
	provider := mapProvider{}
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("agent-%d", i)
		reg.Register(registry.Profile{AgentID: id, Capabilities: map[string]bool{"general": true}, MaxParallelTasks: 1})
		provider[id] = newTestAgent(id, backend)
	}
	poolMgr := pool.New(silentLogger(), reg, provider, 4, 8, 2*time.Second, 3)

	cfg := config.Default()
	cfg.Timeouts.PerRequest = 5 * time.Second
	cfg.Timeouts.PerRequestDebate = 10 * time.Second

	return New(cfg, silentLogger(), nil, reg, repStore, nil, poolMgr, debateEngine, sink.NoopSink{})
}

func TestSubmit_RejectsEmptyClaim(t *testing.T) {
	svc := buildService(t, 3, scriptedBackend{label: "TRUE", confidence: "0.9"}, nil)
	_, err := svc.Submit(context.Background(), "", pool.ModeSingle, claim.Hints{})
	require.Error(t, err)
	kind, ok := consensuserr.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, consensuserr.InputInvalid, kind)
}

func TestSubmit_RejectsOverlongClaim(t *testing.T) {
	svc := buildService(t, 3, scriptedBackend{label: "TRUE", confidence: "0.9"}, nil)
	huge := make([]byte, claim.MaxLength+1)
	for i := range huge {
		huge[i] = 'a'
	}
	_, err := svc.Submit(context.Background(), string(huge), pool.ModeSingle, claim.Hints{})
	require.Error(t, err)
	kind, ok := consensuserr.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, consensuserr.InputInvalid, kind)
}

func TestSubmit_SingleModeReturnsAgreeingVerdict(t *testing.T) {
	svc := buildService(t, 1, scriptedBackend{label: "TRUE", confidence: "0.9"}, nil)
	res, err := svc.Submit(context.Background(), "The sky is blue during the day.", pool.ModeSingle, claim.Hints{})
	require.NoError(t, err)
	assert.Equal(t, agents.LabelTrue, res.Verdict.Label)
	assert.Len(t, res.AgentsConsulted, 1)
	assert.Nil(t, res.Debate)
}

func TestSubmit_MultiModeAggregatesAgreeingVerdicts(t *testing.T) {
	svc := buildService(t, 5, scriptedBackend{label: "FALSE", confidence: "0.85"}, nil)
	res, err := svc.Submit(context.Background(), "A claim with broad agent agreement.", pool.ModeMulti, claim.Hints{})
	require.NoError(t, err)
	assert.Equal(t, agents.LabelFalse, res.Verdict.Label)
	assert.Len(t, res.AgentsConsulted, 3)
	assert.Greater(t, res.Consensus.Agreement, 0.9)
}

func TestSubmit_NoCapableAgentPropagatesAsError(t *testing.T) {
	svc := buildService(t, 0, scriptedBackend{label: "TRUE", confidence: "0.9"}, nil)
	_, err := svc.Submit(context.Background(), "A claim nobody can verify.", pool.ModeSingle, claim.Hints{})
	require.Error(t, err)
	kind, ok := consensuserr.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, consensuserr.NoCapableAgent, kind)
}

// splitBackend alternates TRUE/FALSE answers across calls to force
// disagreement, driving consensus quality below threshold.
type splitBackend struct{ n int }

func (b *splitBackend) Complete(ctx context.Context, tier modelrouter.Tier, prompt string, deadline time.Time) (modelrouter.Completion, error) {
	b.n++
	label := "TRUE"
	if b.n%2 == 0 {
		label = "FALSE"
	}
	text := fmt.Sprintf("LABEL: %s\nCONFIDENCE: 0.6\nREASONING: split\n", label)
	return modelrouter.Completion{Text: text}, nil
}

// scriptedModel answers every debate role call with a fixed text so the
// engine exercises its full round loop without a live model.
type scriptedModel struct{ responses []string }

func (m *scriptedModel) Complete(ctx context.Context, prompt string, deadline time.Time) (string, error) {
	if len(m.responses) == 0 {
		return "", fmt.Errorf("no more scripted responses")
	}
	r := m.responses[0]
	m.responses = m.responses[1:]
	return r, nil
}

func TestSubmit_AdversarialModeEscalatesToDebateOnDisagreement(t *testing.T) {
	model := &scriptedModel{responses: []string{
		"TYPE: factual_accuracy\nSTRENGTH: critical\nSPECIFICITY: 0.8\nVERIFIABILITY: 0.7\nIMPACT: 0.8\nTEXT: the claim rests on a single disputed source\n",
		"CHALLENGE_ID: challenge-0-consensus\nSTANCE: refute\nTEXT: the evidence still holds\n",
		"CHALLENGE_ID: challenge-0-consensus\nOUTCOME: rebutted\nDELTA: -0.05\nREASONING: weak challenge rebutted\n",
	}}
	prosecutor := debate.NewProsecutor(model, silentLogger(), 5, 0.3)
	defender := debate.NewDefender(model, silentLogger())
	moderator := debate.NewModerator(model, silentLogger())
	debateBus := messagebus.New(silentLogger(), clock.Real{}, 8)
	engine := debate.NewEngine(prosecutor, defender, moderator, silentLogger(), 2*time.Second, debateBus)

	svc := buildService(t, 5, &splitBackend{}, engine)
	res, err := svc.Submit(context.Background(), "A claim the agent pool disagrees about.", pool.ModeAdversarial, claim.Hints{})
	require.NoError(t, err)
	require.NotNil(t, res.Debate)
}

func TestSubmit_SingleModeNeverEscalatesToDebate(t *testing.T) {
	model := &scriptedModel{}
	prosecutor := debate.NewProsecutor(model, silentLogger(), 5, 0.3)
	defender := debate.NewDefender(model, silentLogger())
	moderator := debate.NewModerator(model, silentLogger())
	debateBus := messagebus.New(silentLogger(), clock.Real{}, 8)
	engine := debate.NewEngine(prosecutor, defender, moderator, silentLogger(), 2*time.Second, debateBus)

	svc := buildService(t, 1, scriptedBackend{label: "TRUE", confidence: "0.9"}, engine)
	res, err := svc.Submit(context.Background(), "A simple single-mode claim.", pool.ModeSingle, claim.Hints{})
	require.NoError(t, err)
	assert.Nil(t, res.Debate)
}
