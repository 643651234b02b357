package main

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/consensusnet/core/internal/agents"
	"github.com/consensusnet/core/internal/claim"
	"github.com/consensusnet/core/internal/clock"
	"github.com/consensusnet/core/internal/config"
	"github.com/consensusnet/core/internal/evidence"
	"github.com/consensusnet/core/internal/modelrouter"
	"github.com/consensusnet/core/internal/pool"
	"github.com/consensusnet/core/internal/registry"
	"github.com/consensusnet/core/internal/reputation"
)

// demoSource stands in for a real evidence provider (search API, knowledge
// base, fact-check database) this binary does not ship with: it returns one
// neutral-relevance item per query so the pipeline downstream of evidence
// gathering has something to reason over.
type demoSource struct{ name string }

func (s demoSource) Name() string { return s.name }

func (s demoSource) Query(ctx context.Context, normalized string, domain claim.Domain, deadline time.Time) ([]evidence.ItemRaw, error) {
	return []evidence.ItemRaw{
		{
			Content:    fmt.Sprintf("No external evidence source is configured; %s has no corroborating or contradicting material for this claim.", s.name),
			SourceID:   s.name,
			SourceTier: "encyclopedic",
			Relevance:  0.3,
			Timestamp:  time.Now(),
		},
	}, nil
}

// demoClassifier has no real NLP stance detection behind it, so it reports
// every item as neutral rather than fabricating a stance it cannot support.
type demoClassifier struct{}

func (demoClassifier) Classify(ctx context.Context, claimNormalized, content string) evidence.Stance {
	return evidence.StanceNeutral
}

// demoBackend stands in for a real model provider SDK. It returns UNCERTAIN
// at moderate confidence for every tier, which is the honest answer when no
// model is actually behind the call.
type demoBackend struct{}

func (demoBackend) Complete(ctx context.Context, tier modelrouter.Tier, prompt string, deadline time.Time) (modelrouter.Completion, error) {
	text := "LABEL: UNCERTAIN\nCONFIDENCE: 0.5\nREASONING: no model provider is configured; this is a structural placeholder verdict.\n"
	return modelrouter.Completion{Text: text}, nil
}

func newDemoRouter(logger logrus.FieldLogger, cfg *config.Config) *modelrouter.Router {
	return modelrouter.New(logger, demoBackend{}, cfg.Escalation.EvidenceQualityThreshold, 0.0, cfg.Escalation.LowConfidenceThreshold)
}

type demoProvider map[string]*agents.Agent

func (p demoProvider) Get(agentID string) (*agents.Agent, bool) {
	a, ok := p[agentID]
	return a, ok
}

// newDemoAgentProvider registers n general-purpose agents, each with its own
// demo evidence aggregator and model router, and returns the pool.AgentProvider
// the Pool Manager dispatches through. credibility is the adaptive
// source-credibility store shared with the evidence pipeline: every agent's
// aggregator consults the same store, so a credibility update from one
// claim's consensus outcome is visible to the next.
func newDemoAgentProvider(logger logrus.FieldLogger, reg *registry.Registry, n int, credibility *reputation.CredibilityStore) pool.AgentProvider {
	if n < 1 {
		n = 1
	}
	provider := demoProvider{}
	sources := map[claim.Domain][]evidence.Source{
		claim.DomainGeneral: {demoSource{name: "demo-encyclopedia"}},
	}

	for i := 0; i < n; i++ {
		id := fmt.Sprintf("demo-agent-%d", i)
		agg := evidence.New(logger, sources, demoClassifier{}, 2*time.Second, 8*time.Second, credibility)
		router := modelrouter.New(logger, demoBackend{}, 0.65, 0.0, 0.55)
		a := agents.New(id, map[string]bool{"general": true}, claim.DomainGeneral, logger, clock.Real{}, agg, router, agents.LineParser{}, agents.GeneralPromptBuilder{}, nil, 0.55)
		provider[id] = a
		reg.Register(registry.Profile{
			AgentID:          id,
			Capabilities:     map[string]bool{"general": true},
			MaxParallelTasks: 1,
		})
	}
	return provider
}
