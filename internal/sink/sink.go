// Package sink implements the PersistenceSink consumed interface (spec
// §6): fire-and-forget recording of verdicts, debate outcomes, and
// reputation events that must never block the request path. Each
// implementation enqueues onto a bounded internal channel and drains it
// from a background goroutine; a full channel drops the record rather than
// stalling the caller.
package sink

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/consensusnet/core/internal/agents"
	"github.com/consensusnet/core/internal/debate"
	"github.com/consensusnet/core/internal/reputation"
)

// Record is the union of events a PersistenceSink can be asked to store,
// tagged by Kind so implementations can route each to its own table/stream.
type Record struct {
	Kind      RecordKind
	Verdict   *agents.Verdict
	Debate    *debate.DebateOutcome
	Event     *reputation.Event
	RecordedAt time.Time
}

// RecordKind discriminates the payload carried by a Record.
type RecordKind string

const (
	RecordVerdict         RecordKind = "verdict"
	RecordDebateOutcome   RecordKind = "debate_outcome"
	RecordReputationEvent RecordKind = "reputation_event"
)

// PersistenceSink is the consumed interface of spec §6: Record must never
// block the request path.
type PersistenceSink interface {
	Record(r Record)
	Close()
}

// NoopSink discards every record. It is the default sink so the system
// runs with zero external dependencies until one is configured.
type NoopSink struct{}

// Record discards r.
func (NoopSink) Record(Record) {}

// Close is a no-op.
func (NoopSink) Close() {}

// Multi fans a Record out to every configured sink, so the audit mirror,
// history store, and any future sink all observe the same event stream.
type Multi struct {
	sinks []PersistenceSink
}

// NewMulti constructs a Multi sink over sinks.
func NewMulti(sinks ...PersistenceSink) Multi {
	return Multi{sinks: sinks}
}

// Record forwards r to every underlying sink.
func (m Multi) Record(r Record) {
	for _, s := range m.sinks {
		s.Record(r)
	}
}

// Close closes every underlying sink.
func (m Multi) Close() {
	for _, s := range m.sinks {
		s.Close()
	}
}

// asyncSink is the shared bounded-channel/worker-goroutine shape every
// blocking-backend sink below embeds, grounded on the teacher's
// internal/concurrency.WorkerPool pattern: bounded queue, background
// drain, drop-on-full rather than block.
type asyncSink struct {
	logger logrus.FieldLogger
	queue  chan Record
	done   chan struct{}
}

func newAsyncSink(logger logrus.FieldLogger, queueSize int, handle func(ctx context.Context, r Record)) asyncSink {
	a := asyncSink{logger: logger, queue: make(chan Record, queueSize), done: make(chan struct{})}
	go func() {
		defer close(a.done)
		for r := range a.queue {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			handle(ctx, r)
			cancel()
		}
	}()
	return a
}

// enqueue drops r and logs if the queue is full, never blocking the caller.
func (a asyncSink) enqueue(r Record) {
	select {
	case a.queue <- r:
	default:
		a.logger.WithFields(logrus.Fields{"kind": r.Kind}).Warn("sink queue full, dropping record")
	}
}

func (a asyncSink) close() {
	close(a.queue)
	<-a.done
}
