// Package pool implements the Agent Pool Manager: request decomposition,
// capability-based dispatch, bounded concurrency, and partial-result
// aggregation (spec §4.6). Its shape is grounded on the teacher's
// internal/concurrency.WorkerPool, with OVERLOADED surfaced as a
// non-blocking failure rather than an indefinite wait. Concurrency is
// bounded per dispatch, not per agent task: at most queueSize dispatches
// run at once, each running all of its target agents concurrently. There
// is no fixed worker set, and parallelism does not limit how many agent
// tasks run.
package pool

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/consensusnet/core/internal/agents"
	"github.com/consensusnet/core/internal/claim"
	"github.com/consensusnet/core/internal/consensuserr"
	"github.com/consensusnet/core/internal/registry"
)

// Mode selects the dispatch strategy (spec §4.6).
type Mode string

const (
	ModeSingle      Mode = "single"
	ModeMulti       Mode = "multi"
	ModeAdversarial Mode = "adversarial"
)

// AgentProvider resolves a registered agent_id to the live Agent the pool
// dispatches work to. The registry only tracks capability/availability
// metadata (spec §4.2); the provider is the pool's bridge to runnable
// agents.
type AgentProvider interface {
	Get(agentID string) (*agents.Agent, bool)
}

// Manager dispatches claims to registered agents under bounded concurrency.
type Manager struct {
	logger       logrus.FieldLogger
	reg          *registry.Registry
	provider     AgentProvider
	parallelism  int
	queueSize    int
	agentTimeout time.Duration
	k            int // default multi-mode agent count

	sem chan struct{}
}

// New constructs a Manager. parallelism comes from pool.parallelism and
// queueSize from pool.queue_depth (falling back to parallelism when not
// positive); queueSize is the number of dispatches that may run at once,
// and parallelism is read only by workerCount; agentTimeout is the per-agent deadline (spec §5 default 10s); k is the
// default multi-mode fan-out width (spec §4.6 default 3).
func New(logger logrus.FieldLogger, reg *registry.Registry, provider AgentProvider, parallelism, queueSize int, agentTimeout time.Duration, k int) *Manager {
	if parallelism <= 0 {
		parallelism = 1
	}
	if queueSize <= 0 {
		queueSize = parallelism
	}
	return &Manager{
		logger:       logger,
		reg:          reg,
		provider:     provider,
		parallelism:  parallelism,
		queueSize:    queueSize,
		agentTimeout: agentTimeout,
		k:            k,
		sem:          make(chan struct{}, queueSize),
	}
}

// Result is the outcome of one Submit dispatch, handed to the consensus and
// debate layers by the service façade.
type Result struct {
	Verdicts []agents.Verdict
	Partial  bool // true when PARTIAL_TIMEOUT (>= ceil(K/2) but not all responded)
}

// workerCount returns min(registered_agents, configured_parallelism) (spec
// §4.6). Submit uses it only to reject dispatch when no agent is registered.
func (m *Manager) workerCount() int {
	n := m.reg.Count()
	if n == 0 {
		return 0
	}
	if n < m.parallelism {
		return n
	}
	return m.parallelism
}

// Submit decomposes and dispatches c according to mode. single picks the
// single best-ranked agent; multi fans out to up to K agents concurrently;
// adversarial only runs multi here — the service façade decides whether to
// hand the result to the Debate Engine (pool stays decoupled from debate per
// spec §4.6's "hand off", which is an outcome of the Consensus Engine's
// quality score, not of the pool itself).
func (m *Manager) Submit(ctx context.Context, c claim.Claim, mode Mode, required map[string]bool) (Result, error) {
	candidates := m.reg.Query(required, c.Domain)
	if len(candidates) == 0 {
		return Result{}, consensuserr.New(consensuserr.NoCapableAgent, "no registered agent satisfies required capabilities for domain %s", c.Domain)
	}

	if m.workerCount() == 0 {
		return Result{}, consensuserr.New(consensuserr.NoCapableAgent, "no agents currently registered")
	}

	switch mode {
	case ModeSingle:
		return m.dispatch(ctx, c, candidates[:1])
	case ModeMulti, ModeAdversarial:
		k := m.k
		if k > len(candidates) {
			k = len(candidates)
		}
		return m.dispatch(ctx, c, selectDiverse(candidates, k))
	default:
		return Result{}, consensuserr.New(consensuserr.InputInvalid, "unknown pool mode %q", mode)
	}
}

// selectDiverse picks up to k candidates, preferring to include at least one
// generalist (domain "" / empty DomainExpertise) and one specialist if any
// is present, then fills remaining slots by the registry's existing rank
// order (spec §4.6: "disjoint strengths").
func selectDiverse(ranked []registry.Profile, k int) []registry.Profile {
	if k >= len(ranked) {
		return ranked
	}

	var generalist, specialist *registry.Profile
	for i := range ranked {
		if generalist == nil && len(ranked[i].DomainExpertise) == 0 {
			generalist = &ranked[i]
		}
		if specialist == nil && len(ranked[i].DomainExpertise) > 0 {
			specialist = &ranked[i]
		}
	}

	chosen := make([]registry.Profile, 0, k)
	seen := make(map[string]bool, k)
	add := func(p *registry.Profile) {
		if p == nil || seen[p.AgentID] || len(chosen) >= k {
			return
		}
		chosen = append(chosen, *p)
		seen[p.AgentID] = true
	}
	add(generalist)
	add(specialist)
	for i := range ranked {
		add(&ranked[i])
	}
	return chosen
}

type agentOutcome struct {
	verdict agents.Verdict
	ok      bool
}

// dispatch runs targets concurrently while holding one of the queueSize
// semaphore slots, each with its own per-agent deadline, and aggregates according to
// the partial-completion threshold ⌈K/2⌉ (spec §4.6).
func (m *Manager) dispatch(ctx context.Context, c claim.Claim, targets []registry.Profile) (Result, error) {
	// Acquiring a slot models placing this dispatch on the bounded work
	// queue; holding it until the targets finish models the queue entry
	// being drained by a worker. A full queue fails fast with OVERLOADED
	// instead of blocking (spec §4.6).
	select {
	case m.sem <- struct{}{}:
		defer func() { <-m.sem }()
	default:
		return Result{}, consensuserr.New(consensuserr.Overloaded, "pool queue is full")
	}

	var wg sync.WaitGroup
	outcomes := make([]agentOutcome, len(targets))

	for i, profile := range targets {
		agent, ok := m.provider.Get(profile.AgentID)
		if !ok {
			outcomes[i] = agentOutcome{ok: false}
			continue
		}
		wg.Add(1)
		go func(i int, agent *agents.Agent) {
			defer wg.Done()
			agentCtx, cancel := context.WithTimeout(ctx, m.agentTimeout)
			defer cancel()

			v := agent.Verify(agentCtx, c)
			if v.Reasoning == "cancelled" {
				outcomes[i] = agentOutcome{ok: false}
				return
			}
			outcomes[i] = agentOutcome{verdict: v, ok: true}
		}(i, agent)
	}
	wg.Wait()

	var verdicts []agents.Verdict
	for _, o := range outcomes {
		if o.ok {
			verdicts = append(verdicts, o.verdict)
		}
	}

	threshold := (len(targets) + 1) / 2 // ceil(K/2)
	if len(verdicts) < threshold {
		return Result{}, consensuserr.New(consensuserr.Incomplete, "only %d/%d agents completed, below threshold %d", len(verdicts), len(targets), threshold)
	}

	m.logger.WithFields(logrus.Fields{"claim": c.ID, "completed": len(verdicts), "targets": len(targets)}).Info("pool dispatch completed")

	return Result{Verdicts: verdicts, Partial: len(verdicts) < len(targets)}, nil
}
