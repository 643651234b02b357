package sink

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/google/uuid"
)

// PostgresSink persists verdicts and debate outcomes to a verification
// history table, grounded on the teacher's DebateTurnRepository (prepared
// SQL, pgxpool.Pool, logrus field logging on write).
type PostgresSink struct {
	asyncSink
	pool *pgxpool.Pool
}

// NewPostgresSink constructs a PostgresSink over an already-connected pool.
// CreateSchema should be called once at startup before any Record calls.
func NewPostgresSink(pool *pgxpool.Pool, logger logrus.FieldLogger, queueSize int) *PostgresSink {
	s := &PostgresSink{pool: pool}
	s.asyncSink = newAsyncSink(logger, queueSize, s.handle)
	return s
}

// CreateSchema creates the verification_history table if it doesn't exist.
func (s *PostgresSink) CreateSchema(ctx context.Context) error {
	const ddl = `
		CREATE TABLE IF NOT EXISTS verification_history (
			id               UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			claim_id         VARCHAR(255) NOT NULL,
			agent_id         VARCHAR(255),
			label            VARCHAR(16),
			confidence       DOUBLE PRECISION,
			evidence_quality DOUBLE PRECISION,
			model_tier_used  VARCHAR(32),
			recorded_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_verification_history_claim
			ON verification_history(claim_id);
	`
	if _, err := s.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("failed to create verification_history table: %w", err)
	}
	return nil
}

// Record enqueues r for asynchronous persistence.
func (s *PostgresSink) Record(r Record) { s.enqueue(r) }

// Close drains the queue and waits for the background writer to finish.
func (s *PostgresSink) Close() { s.close() }

func (s *PostgresSink) handle(ctx context.Context, r Record) {
	switch r.Kind {
	case RecordVerdict:
		s.insertVerdict(ctx, r)
	case RecordDebateOutcome:
		s.insertDebateOutcome(ctx, r)
	default:
		// reputation events are served by internal/reputation's own store,
		// not mirrored to this table.
	}
}

func (s *PostgresSink) insertVerdict(ctx context.Context, r Record) {
	v := r.Verdict
	const q = `
		INSERT INTO verification_history
			(id, claim_id, agent_id, label, confidence, evidence_quality, model_tier_used, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := s.pool.Exec(ctx, q, uuid.NewString(), v.ClaimID, v.AgentID, string(v.Label), v.Confidence, v.EvidenceQuality, string(v.ModelTierUsed), v.Timestamp)
	if err != nil {
		s.logger.WithFields(logrus.Fields{"claim_id": v.ClaimID}).Warnf("failed to persist verdict: %v", err)
	}
}

func (s *PostgresSink) insertDebateOutcome(ctx context.Context, r Record) {
	o := r.Debate
	const q = `
		INSERT INTO verification_history
			(id, claim_id, agent_id, label, confidence, evidence_quality, model_tier_used, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	rv := o.RefinedVerdict
	_, err := s.pool.Exec(ctx, q, uuid.NewString(), rv.ClaimID, rv.AgentID, string(rv.Label), rv.Confidence, rv.EvidenceQuality, string(rv.ModelTierUsed), rv.Timestamp)
	if err != nil {
		s.logger.WithFields(logrus.Fields{"claim_id": rv.ClaimID}).Warnf("failed to persist debate outcome: %v", err)
	}
}
