package agents

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/consensusnet/core/internal/claim"
	"github.com/consensusnet/core/internal/clock"
	"github.com/consensusnet/core/internal/evidence"
	"github.com/consensusnet/core/internal/modelrouter"
)

func silentLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

type stubSource struct {
	items []evidence.ItemRaw
}

func (s stubSource) Name() string { return "stub" }
func (s stubSource) Query(ctx context.Context, normalized string, domain claim.Domain, deadline time.Time) ([]evidence.ItemRaw, error) {
	return s.items, nil
}

type stubClassifier struct{ stance evidence.Stance }

func (c stubClassifier) Classify(ctx context.Context, claimNormalized, content string) evidence.Stance {
	return c.stance
}

type scriptedBackend struct {
	responses []string
	calls     int
}

func (b *scriptedBackend) Complete(ctx context.Context, tier modelrouter.Tier, prompt string, deadline time.Time) (modelrouter.Completion, error) {
	idx := b.calls
	b.calls++
	if idx >= len(b.responses) {
		return modelrouter.Completion{}, fmt.Errorf("no scripted response for call %d", idx)
	}
	return modelrouter.Completion{Text: b.responses[idx]}, nil
}

func newTestAgent(t *testing.T, sources []evidence.ItemRaw, stance evidence.Stance, responses []string) (*Agent, *scriptedBackend) {
	t.Helper()
	agg := evidence.New(
		silentLogger(),
		map[claim.Domain][]evidence.Source{claim.DomainGeneral: {stubSource{items: sources}}},
		stubClassifier{stance},
		time.Second, 2*time.Second, nil,
	)
	backend := &scriptedBackend{responses: responses}
	router := modelrouter.New(silentLogger(), backend, 0.8, 0.65, 0.55)
	a := New(
		"agent-1", map[string]bool{"general": true}, "",
		silentLogger(), clock.Real{}, agg, router, LineParser{}, GeneralPromptBuilder{}, nil,
		0.55,
	)
	return a, backend
}

func TestVerify_HappyPath(t *testing.T) {
	sources := []evidence.ItemRaw{
		{Content: "Water boils at 100C at sea level.", SourceID: "enc-1", SourceTier: "encyclopedic", Relevance: 0.9, Timestamp: time.Now()},
		{Content: "At standard atmospheric pressure water boils at 100 degrees Celsius.", SourceID: "enc-2", SourceTier: "encyclopedic", Relevance: 0.9, Timestamp: time.Now()},
		{Content: "The boiling point of water at sea level is 100C.", SourceID: "enc-3", SourceTier: "encyclopedic", Relevance: 0.9, Timestamp: time.Now()},
	}
	a, _ := newTestAgent(t, sources, evidence.StanceSupports, []string{
		"LABEL: TRUE\nCONFIDENCE: 0.95\nREASONING: well established physical fact\n",
	})

	c := claim.New("Water boils at 100C at sea level.", claim.Hints{})
	v := a.Verify(context.Background(), c)

	assert.Equal(t, LabelTrue, v.Label)
	assert.GreaterOrEqual(t, v.Confidence, 0.7)
	assert.LessOrEqual(t, v.Confidence, 1.0)
	assert.Equal(t, modelrouter.TierCheap, v.ModelTierUsed)
}

func TestVerify_EmptyEvidenceYieldsUncertainZeroQuality(t *testing.T) {
	a, _ := newTestAgent(t, nil, evidence.StanceSupports, nil)
	c := claim.New("Some claim with no retrievable evidence.", claim.Hints{})

	v := a.Verify(context.Background(), c)
	assert.Equal(t, LabelUncertain, v.Label)
	assert.Equal(t, 0.0, v.EvidenceQuality)
}

func TestVerify_UnparsableTwiceYieldsUncertainZeroConfidence(t *testing.T) {
	sources := []evidence.ItemRaw{
		{Content: "Some claim.", SourceID: "enc-1", SourceTier: "encyclopedic", Relevance: 0.9, Timestamp: time.Now()},
	}
	a, _ := newTestAgent(t, sources, evidence.StanceSupports, []string{
		"garbage output with no fields",
		"still garbage",
	})

	c := claim.New("Some claim.", claim.Hints{})
	v := a.Verify(context.Background(), c)
	assert.Equal(t, LabelUncertain, v.Label)
	assert.Equal(t, 0.0*0.6+0.4*v.EvidenceQuality, v.Confidence)
}

func TestVerify_RetriesOnceOnUnparsableThenSucceeds(t *testing.T) {
	sources := []evidence.ItemRaw{
		{Content: "Some claim.", SourceID: "enc-1", SourceTier: "encyclopedic", Relevance: 0.9, Timestamp: time.Now()},
	}
	a, backend := newTestAgent(t, sources, evidence.StanceSupports, []string{
		"garbage",
		"LABEL: FALSE\nCONFIDENCE: 0.8\nREASONING: recovered on retry\n",
	})

	c := claim.New("Some claim.", claim.Hints{})
	v := a.Verify(context.Background(), c)
	assert.Equal(t, LabelFalse, v.Label)
	assert.Equal(t, 2, backend.calls)
}

func TestVerify_CloseSupportingContradictingFloorsToUncertain(t *testing.T) {
	sources := []evidence.ItemRaw{
		{Content: "Supports the claim.", SourceID: "s1", SourceTier: "encyclopedic", Relevance: 0.9, Timestamp: time.Now()},
		{Content: "Contradicts the claim.", SourceID: "s2", SourceTier: "encyclopedic", Relevance: 0.9, Timestamp: time.Now()},
	}
	agg := evidence.New(
		silentLogger(),
		map[claim.Domain][]evidence.Source{claim.DomainGeneral: {stubSource{items: sources}}},
		alternatingClassifier{},
		time.Second, 2*time.Second, nil,
	)
	backend := &scriptedBackend{responses: []string{"LABEL: TRUE\nCONFIDENCE: 0.9\nREASONING: x\n"}}
	router := modelrouter.New(silentLogger(), backend, 0.8, 0.65, 0.55)
	a := New("agent-1", map[string]bool{"general": true}, "", silentLogger(), clock.Real{}, agg, router, LineParser{}, GeneralPromptBuilder{}, nil, 0.55)

	c := claim.New("A disputed claim.", claim.Hints{})
	v := a.Verify(context.Background(), c)
	assert.Equal(t, LabelUncertain, v.Label)
}

type alternatingClassifier struct{ n int }

func (a alternatingClassifier) Classify(ctx context.Context, claimNormalized, content string) evidence.Stance {
	if content == "Supports the claim." {
		return evidence.StanceSupports
	}
	return evidence.StanceContradicts
}

func TestVerify_CancelledContextYieldsCancelledVerdict(t *testing.T) {
	a, _ := newTestAgent(t, nil, evidence.StanceSupports, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := claim.New("Some claim.", claim.Hints{})
	v := a.Verify(ctx, c)
	assert.Equal(t, "cancelled", v.Reasoning)
}

func TestLineParser_RejectsUnknownLabel(t *testing.T) {
	_, err := LineParser{}.Parse("LABEL: MAYBE\nCONFIDENCE: 0.5\n")
	require.Error(t, err)
}

func TestLineParser_RejectsOutOfRangeConfidence(t *testing.T) {
	_, err := LineParser{}.Parse("LABEL: TRUE\nCONFIDENCE: 1.5\n")
	require.Error(t, err)
}
