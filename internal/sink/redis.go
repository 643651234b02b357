package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// cachedReputation is what RedisSink writes for each reputation event, so a
// read path elsewhere in the system (or an operator debugging via redis-cli)
// can see the event that last touched an agent without hitting Postgres.
type cachedReputation struct {
	AgentID  string    `json:"agent_id"`
	Domain   string    `json:"domain"`
	Kind     string    `json:"kind"`
	At       time.Time `json:"at"`
}

// RedisSink mirrors reputation events into a short-TTL cache, grounded on
// the teacher's RedisClient.Set (json-marshal then SET with expiration).
// It is a write-through cache for external readers, not the system of
// record — internal/reputation.Store remains that.
type RedisSink struct {
	asyncSink
	client *redis.Client
	ttl    time.Duration
}

// NewRedisSink constructs a RedisSink over an already-connected client.
func NewRedisSink(client *redis.Client, logger logrus.FieldLogger, queueSize int, ttl time.Duration) *RedisSink {
	s := &RedisSink{client: client, ttl: ttl}
	s.asyncSink = newAsyncSink(logger, queueSize, s.handle)
	return s
}

// Record enqueues r for asynchronous caching.
func (s *RedisSink) Record(r Record) { s.enqueue(r) }

// Close drains the queue and waits for the background writer to finish.
func (s *RedisSink) Close() { s.close() }

func (s *RedisSink) handle(ctx context.Context, r Record) {
	if r.Kind != RecordReputationEvent || r.Event == nil {
		return
	}
	entry := cachedReputation{
		AgentID: r.Event.AgentID,
		Domain:  string(r.Event.Domain),
		Kind:    string(r.Event.Kind),
		At:      r.Event.At,
	}
	data, err := json.Marshal(entry)
	if err != nil {
		s.logger.Warnf("failed to marshal reputation cache entry: %v", err)
		return
	}
	key := fmt.Sprintf("consensusnet:reputation:%s:%s", entry.AgentID, entry.Domain)
	if err := s.client.Set(ctx, key, data, s.ttl).Err(); err != nil {
		s.logger.WithFields(logrus.Fields{"agent_id": entry.AgentID}).Warnf("failed to cache reputation event: %v", err)
	}
}
