// Package messagebus implements the in-process Message Bus: typed,
// priority-ordered, TTL-bounded delivery between agents with per-subscriber
// back-pressure (spec §4.1).
package messagebus

import (
	"container/heap"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/consensusnet/core/internal/clock"
)

// Priority orders delivery within one subscriber's queue; higher values are
// delivered first, FIFO within equal priority.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
	PriorityUrgent
)

// Kind identifies the shape of a Message's payload.
type Kind string

const (
	KindVerificationRequest Kind = "verification_request"
	KindVerificationResult  Kind = "verification_result"
	KindChallenge           Kind = "challenge"
	KindResponse            Kind = "response"
	KindEvidenceShare       Kind = "evidence_share"
	KindConsensusVote       Kind = "consensus_vote"
	KindReputationUpdate    Kind = "reputation_update"
)

// Message is the unit of bus traffic.
type Message struct {
	ID         string
	From       string
	To         string // empty when Broadcast is true
	Broadcast  bool
	Kind       Kind
	Priority   Priority
	Payload    any
	EnqueuedAt time.Time
	TTL        time.Duration
}

// expiredAt reports whether the message's TTL has elapsed as of now.
func (m Message) expiredAt(now time.Time) bool {
	if m.TTL <= 0 {
		return false
	}
	return now.After(m.EnqueuedAt.Add(m.TTL))
}

// ErrBusClosed is returned by Publish once the bus has been shut down.
var ErrBusClosed = errors.New("messagebus: bus closed")

// Predicate filters messages a subscriber wants beyond kind matching.
type Predicate func(Message) bool

// Subscription is a bounded stream of messages matching a subscriber's
// interest. Channel() is safe to range over; Close() stops delivery and
// releases resources.
type Subscription struct {
	id       uint64
	agentID  string
	bus      *Bus
	out      chan Message
	kinds    map[Kind]bool
	pred     Predicate
	mu       sync.Mutex
	pending  messageHeap
	wake     chan struct{}
	stop     chan struct{}
	done     chan struct{}
	closed   bool
}

// Channel returns the subscriber's delivery stream.
func (s *Subscription) Channel() <-chan Message { return s.out }

// Close unsubscribes and stops the dispatcher goroutine, then closes the
// delivery channel so a `for range sub.Channel()` reader terminates. Safe to
// call more than once.
func (s *Subscription) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()
	s.bus.removeSubscriber(s.id)
	close(s.stop)
	<-s.done
	close(s.out)
}

// matches reports whether this subscriber should receive m: the kind must
// be one it registered for, a unicast message must name this subscriber's
// agentID (or carry no recipient at all), and any predicate must pass.
func (s *Subscription) matches(m Message) bool {
	if !s.kinds[m.Kind] {
		return false
	}
	if !m.Broadcast && m.To != "" && m.To != s.agentID {
		return false
	}
	if s.pred != nil && !s.pred(m) {
		return false
	}
	return true
}

// enqueue adds a message to the subscriber's internal priority buffer. This
// never blocks the publisher: only the subscriber's own dispatcher goroutine
// may block, isolating back-pressure to that one subscriber.
func (s *Subscription) enqueue(m heapItem) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	heap.Push(&s.pending, m)
	s.mu.Unlock()
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Subscription) run(now func() time.Time, dropped *int64) {
	defer close(s.done)
	for {
		select {
		case <-s.stop:
			return
		case <-s.wake:
		}

		for {
			s.mu.Lock()
			if s.pending.Len() == 0 {
				s.mu.Unlock()
				break
			}
			next := heap.Pop(&s.pending).(heapItem)
			s.mu.Unlock()

			if next.msg.expiredAt(now()) {
				atomic.AddInt64(dropped, 1)
				continue
			}
			select {
			case s.out <- next.msg:
			case <-s.stop:
				return
			}
		}
	}
}

// heapItem wraps a Message with a monotonic sequence number so that
// container/heap orders by (priority desc, seq asc) — priority first,
// publish order as the tiebreak within a priority band.
type heapItem struct {
	msg Message
	seq uint64
}

type messageHeap []heapItem

func (h messageHeap) Len() int { return len(h) }
func (h messageHeap) Less(i, j int) bool {
	if h[i].msg.Priority != h[j].msg.Priority {
		return h[i].msg.Priority > h[j].msg.Priority
	}
	return h[i].seq < h[j].seq
}
func (h messageHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *messageHeap) Push(x any)   { *h = append(*h, x.(heapItem)) }
func (h *messageHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// Bus is the in-process message bus.
type Bus struct {
	logger      logrus.FieldLogger
	clock       clock.Clock
	subChanSize int

	mu          sync.RWMutex
	subscribers map[uint64]*Subscription
	nextSubID   uint64
	closed      bool

	seq          uint64
	droppedTTL   int64
	publishedTot int64
}

// New constructs a Bus. subscriberChannelSize bounds each subscriber's
// delivery channel (the "bounded stream" of spec §4.1).
func New(logger logrus.FieldLogger, c clock.Clock, subscriberChannelSize int) *Bus {
	return &Bus{
		logger:      logger,
		clock:       c,
		subChanSize: subscriberChannelSize,
		subscribers: make(map[uint64]*Subscription),
	}
}

// Subscribe registers interest in the given kinds under agentID, optionally
// filtered by predicate, and returns a bounded stream of matching messages.
// agentID is what unicast Messages address via Message.To; pass "" for a
// subscriber that only ever receives broadcasts.
func (b *Bus) Subscribe(agentID string, kinds []Kind, predicate Predicate) *Subscription {
	kindSet := make(map[Kind]bool, len(kinds))
	for _, k := range kinds {
		kindSet[k] = true
	}

	b.mu.Lock()
	id := b.nextSubID
	b.nextSubID++
	sub := &Subscription{
		id:      id,
		agentID: agentID,
		bus:     b,
		out:     make(chan Message, b.subChanSize),
		kinds:   kindSet,
		pred:    predicate,
		wake:    make(chan struct{}, 1),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	b.subscribers[id] = sub
	b.mu.Unlock()

	go sub.run(b.clock.Now, &b.droppedTTL)
	return sub
}

func (b *Bus) removeSubscriber(id uint64) {
	b.mu.Lock()
	delete(b.subscribers, id)
	b.mu.Unlock()
}

// Publish enqueues msg for every matching subscriber. It assigns ID and
// EnqueuedAt if unset, and never blocks on a slow subscriber: each
// subscriber has its own dispatcher goroutine, so back-pressure on one never
// delays delivery to another (spec §4.1).
func (b *Bus) Publish(m Message) error {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return ErrBusClosed
	}
	subs := make([]*Subscription, 0, len(b.subscribers))
	for _, s := range b.subscribers {
		subs = append(subs, s)
	}
	b.mu.RUnlock()

	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.EnqueuedAt.IsZero() {
		m.EnqueuedAt = b.clock.Now()
	}

	seq := atomic.AddUint64(&b.seq, 1)
	atomic.AddInt64(&b.publishedTot, 1)

	delivered := 0
	for _, s := range subs {
		if !s.matches(m) {
			continue
		}
		s.enqueue(heapItem{msg: m, seq: seq})
		delivered++
	}

	if delivered == 0 {
		b.logger.WithFields(logrus.Fields{"kind": m.Kind, "to": m.To}).Debugf("message %s had no matching subscriber", m.ID)
	}
	return nil
}

// Close shuts the bus down: further Publish calls fail with ErrBusClosed,
// and every subscriber's channel is closed so ranging readers terminate.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	subs := make([]*Subscription, 0, len(b.subscribers))
	for _, s := range b.subscribers {
		subs = append(subs, s)
	}
	b.mu.Unlock()

	for _, s := range subs {
		s.Close()
	}
}

// Stats is a snapshot of bus counters, useful for logging and tests.
type Stats struct {
	Published int64
	DroppedTTL int64
}

// Stats returns a snapshot of the bus's counters.
func (b *Bus) Stats() Stats {
	return Stats{
		Published:  atomic.LoadInt64(&b.publishedTot),
		DroppedTTL: atomic.LoadInt64(&b.droppedTTL),
	}
}
