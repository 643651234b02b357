package sink

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/consensusnet/core/internal/agents"
)

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

type recordingSink struct {
	records []Record
	closed  bool
}

func (r *recordingSink) Record(rec Record) { r.records = append(r.records, rec) }
func (r *recordingSink) Close()            { r.closed = true }

func TestNoopSink_DiscardsSilently(t *testing.T) {
	s := NoopSink{}
	assert.NotPanics(t, func() {
		s.Record(Record{Kind: RecordVerdict, Verdict: &agents.Verdict{ClaimID: "c1"}})
		s.Close()
	})
}

func TestMulti_FansOutToEverySink(t *testing.T) {
	a := &recordingSink{}
	b := &recordingSink{}
	m := NewMulti(a, b)

	rec := Record{Kind: RecordVerdict, Verdict: &agents.Verdict{ClaimID: "c1"}}
	m.Record(rec)
	m.Close()

	require.Len(t, a.records, 1)
	require.Len(t, b.records, 1)
	assert.Equal(t, "c1", a.records[0].Verdict.ClaimID)
	assert.True(t, a.closed)
	assert.True(t, b.closed)
}

func TestAsyncSink_HandlesRecordsInBackground(t *testing.T) {
	handled := make(chan Record, 4)
	a := newAsyncSink(testLogger(), 4, func(ctx context.Context, r Record) {
		handled <- r
	})

	a.enqueue(Record{Kind: RecordVerdict, Verdict: &agents.Verdict{ClaimID: "async-1"}})

	select {
	case r := <-handled:
		assert.Equal(t, "async-1", r.Verdict.ClaimID)
	case <-time.After(time.Second):
		t.Fatal("record was not handled in time")
	}

	a.close()
}

func TestAsyncSink_DropsWhenQueueFull(t *testing.T) {
	block := make(chan struct{})
	a := newAsyncSink(testLogger(), 1, func(ctx context.Context, r Record) {
		<-block
	})

	a.enqueue(Record{Kind: RecordVerdict}) // occupies the single worker
	time.Sleep(20 * time.Millisecond)
	a.enqueue(Record{Kind: RecordVerdict}) // fills the one-slot queue
	a.enqueue(Record{Kind: RecordVerdict}) // dropped, queue full

	close(block)
	a.close()
}
