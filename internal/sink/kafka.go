package sink

import (
	"context"
	"encoding/json"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

// auditRecord is the wire shape mirrored to the audit/replay topic: enough
// to reconstruct what happened for a claim without needing the full
// internal types on the reading side.
type auditRecord struct {
	Kind       RecordKind `json:"kind"`
	ClaimID    string     `json:"claim_id,omitempty"`
	AgentID    string     `json:"agent_id,omitempty"`
	Label      string     `json:"label,omitempty"`
	Confidence float64    `json:"confidence,omitempty"`
	Degraded   bool       `json:"degraded,omitempty"`
	RoundCount int        `json:"round_count,omitempty"`
}

// KafkaSink mirrors verdicts and debate outcomes to an audit/replay topic
// via kafka-go's Writer, one publish per record; never on the request path
// since Record only enqueues.
type KafkaSink struct {
	asyncSink
	writer *kafka.Writer
}

// NewKafkaSink constructs a KafkaSink that writes to topic across brokers.
func NewKafkaSink(brokers []string, topic string, logger logrus.FieldLogger, queueSize int) *KafkaSink {
	writer := &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Topic:    topic,
		Balancer: &kafka.LeastBytes{},
	}
	s := &KafkaSink{writer: writer}
	s.asyncSink = newAsyncSink(logger, queueSize, s.handle)
	return s
}

// Record enqueues r for asynchronous publication.
func (s *KafkaSink) Record(r Record) { s.enqueue(r) }

// Close drains the queue, waits for the background writer, then closes the
// underlying kafka.Writer.
func (s *KafkaSink) Close() {
	s.close()
	if err := s.writer.Close(); err != nil {
		s.logger.Warnf("failed to close kafka writer: %v", err)
	}
}

func (s *KafkaSink) handle(ctx context.Context, r Record) {
	rec := auditRecord{Kind: r.Kind}
	switch r.Kind {
	case RecordVerdict:
		v := r.Verdict
		rec.ClaimID, rec.AgentID, rec.Label, rec.Confidence = v.ClaimID, v.AgentID, string(v.Label), v.Confidence
	case RecordDebateOutcome:
		o := r.Debate
		rec.ClaimID, rec.AgentID, rec.Label, rec.Confidence = o.RefinedVerdict.ClaimID, o.RefinedVerdict.AgentID, string(o.RefinedVerdict.Label), o.RefinedVerdict.Confidence
		rec.Degraded = o.Degraded
		rec.RoundCount = len(o.Rounds)
	case RecordReputationEvent:
		e := r.Event
		rec.AgentID = e.AgentID
	}

	data, err := json.Marshal(rec)
	if err != nil {
		s.logger.Warnf("failed to marshal audit record: %v", err)
		return
	}

	if err := s.writer.WriteMessages(ctx, kafka.Message{Key: []byte(rec.ClaimID), Value: data}); err != nil {
		s.logger.WithFields(logrus.Fields{"kind": r.Kind}).Warnf("failed to publish audit record: %v", err)
	}
}
