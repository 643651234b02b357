package evidence

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/consensusnet/core/internal/claim"
)

type stubSource struct {
	name  string
	items []ItemRaw
	err   error
	delay time.Duration
}

func (s stubSource) Name() string { return s.name }

func (s stubSource) Query(ctx context.Context, normalized string, domain claim.Domain, deadline time.Time) ([]ItemRaw, error) {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	return s.items, nil
}

type stubClassifier struct{ stance Stance }

func (c stubClassifier) Classify(ctx context.Context, claimNormalized, content string) Stance {
	return c.stance
}

func silentLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func TestGather_EmptyWhenNoSources(t *testing.T) {
	agg := New(silentLogger(), map[claim.Domain][]Source{}, stubClassifier{StanceSupports}, time.Second, 2*time.Second, nil)
	c := claim.New("Capital of Poland is Warsaw.", claim.Hints{})

	bundle := agg.Gather(context.Background(), c)
	assert.True(t, bundle.Empty())
	assert.Equal(t, 0.0, bundle.OverallQuality)
}

func TestGather_AggregatesAndScores(t *testing.T) {
	sources := map[claim.Domain][]Source{
		claim.DomainGeneral: {
			stubSource{name: "enc", items: []ItemRaw{
				{Content: "Warsaw is the capital of Poland.", SourceID: "enc-1", SourceTier: "encyclopedic", Relevance: 0.9, Timestamp: time.Now()},
			}},
		},
	}
	agg := New(silentLogger(), sources, stubClassifier{StanceSupports}, time.Second, 2*time.Second, nil)
	c := claim.New("Capital of Poland is Warsaw.", claim.Hints{})

	bundle := agg.Gather(context.Background(), c)
	require.False(t, bundle.Empty())
	require.Len(t, bundle.Supporting, 1)
	assert.Greater(t, bundle.OverallQuality, 0.0)
	assert.LessOrEqual(t, bundle.OverallQuality, 1.0)
}

func TestGather_DedupKeepsHighestCredibility(t *testing.T) {
	sources := map[claim.Domain][]Source{
		claim.DomainGeneral: {
			stubSource{name: "web", items: []ItemRaw{
				{Content: "  Water   boils at 100C  ", SourceID: "web-1", SourceTier: "web", Relevance: 0.5, Timestamp: time.Now()},
			}},
			stubSource{name: "enc", items: []ItemRaw{
				{Content: "Water boils at 100C", SourceID: "enc-1", SourceTier: "encyclopedic", Relevance: 0.5, Timestamp: time.Now()},
			}},
		},
	}
	agg := New(silentLogger(), sources, stubClassifier{StanceSupports}, time.Second, 2*time.Second, nil)
	c := claim.New("Water boils at 100C", claim.Hints{})

	bundle := agg.Gather(context.Background(), c)
	require.Len(t, bundle.Supporting, 1)
	assert.Equal(t, "enc-1", bundle.Supporting[0].SourceID)
}

func TestGather_SourceErrorIsSkippedNotFatal(t *testing.T) {
	sources := map[claim.Domain][]Source{
		claim.DomainGeneral: {
			stubSource{name: "flaky", err: context.DeadlineExceeded},
		},
	}
	agg := New(silentLogger(), sources, stubClassifier{StanceSupports}, 50*time.Millisecond, time.Second, nil)
	c := claim.New("Capital of Poland is Warsaw.", claim.Hints{})

	bundle := agg.Gather(context.Background(), c)
	assert.True(t, bundle.Empty())
}

func TestApplyRecencyWeight_DecaysOlderItems(t *testing.T) {
	now := time.Now()
	b := Bundle{
		Supporting: []Item{
			{Content: "fresh", Credibility: 0.8, Relevance: 1.0, Timestamp: now},
			{Content: "stale", Credibility: 0.8, Relevance: 1.0, Timestamp: now.Add(-72 * time.Hour)},
		},
	}
	reweighted := ApplyRecencyWeight(b, claim.DomainNews, now)
	require.Len(t, reweighted.Supporting, 2)
	assert.Greater(t, reweighted.Supporting[0].Relevance, reweighted.Supporting[1].Relevance)
}
