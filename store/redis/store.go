// Package redis provides a Redis implementation of the rampart
// composite store. The attempt ledger lives in per-identity sorted
// sets scored by attempt time, so window queries and lazy eviction are
// single range operations. Device and decision log records are stored
// as JSON values with secondary indexes.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/xraph/rampart/attempt"
	"github.com/xraph/rampart/store"
)

// Compile-time interface check.
var _ store.Store = (*Store)(nil)

// Record an attempt and evict everything older than the retention
// horizon in one round trip.
// KEYS[1]=zset key, KEYS[2]=key index
// ARGV[1]=score(ms), ARGV[2]=member, ARGV[3]=horizon(ms), ARGV[4]=ttl(ms)
var luaRecordAttempt = redis.NewScript(`
  redis.call('ZADD', KEYS[1], ARGV[1], ARGV[2])
  redis.call('ZREMRANGEBYSCORE', KEYS[1], '-inf', '(' .. ARGV[3])
  redis.call('PEXPIRE', KEYS[1], ARGV[4])
  redis.call('SADD', KEYS[2], KEYS[1])
  return redis.call('ZCARD', KEYS[1])
`)

const defaultRetention = 6 * time.Hour

// Store is a Redis implementation of the composite Rampart store.
type Store struct {
	rdb       *redis.Client
	retention time.Duration
}

// Option configures the Redis store.
type Option func(*Store)

// WithRetention sets how long attempt records are kept. It must be at
// least as long as the escalation window or counters will decay early.
func WithRetention(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.retention = d
		}
	}
}

// New creates a new Redis store.
func New(rdb *redis.Client, opts ...Option) *Store {
	s := &Store{
		rdb:       rdb,
		retention: defaultRetention,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Migrate is a no-op: Redis needs no schema.
func (s *Store) Migrate(ctx context.Context) error { return nil }

// Ping verifies the Redis connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

// Close closes the Redis client.
func (s *Store) Close() error {
	return s.rdb.Close()
}

// ──────────────────────────────────────────────────
// Keys
// ──────────────────────────────────────────────────

const (
	attemptIndexKey = "rampart:attempts"
	deviceIndexKey  = "rampart:devices"
	logIndexKey     = "rampart:dlogs"
)

func attemptBucket(tenantID, identity string) string {
	return tenantID + "|" + identity
}

func attemptKey(tenantID, identity string) string {
	return "rampart:attempts:" + attemptBucket(tenantID, identity)
}

func deviceKey(deviceID string) string {
	return "rampart:device:" + deviceID
}

func fingerprintKey(tenantID, fingerprint string) string {
	return "rampart:device:fp:" + tenantID + ":" + fingerprint
}

func logKey(logID string) string {
	return "rampart:dlog:" + logID
}

// ──────────────────────────────────────────────────
// Attempt ledger
// ──────────────────────────────────────────────────

func (s *Store) RecordAttempt(ctx context.Context, r *attempt.Record) error {
	member, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("rampart: record attempt: %w", err)
	}
	horizon := r.At.Add(-s.retention)
	err = luaRecordAttempt.Run(ctx, s.rdb,
		[]string{attemptKey(r.TenantID, r.Identity), attemptIndexKey},
		r.At.UnixMilli(), string(member), horizon.UnixMilli(), s.retention.Milliseconds(),
	).Err()
	if err != nil {
		return fmt.Errorf("rampart: record attempt: %w", err)
	}
	return nil
}

func (s *Store) ListAttempts(ctx context.Context, tenantID, identity string, since time.Time) ([]*attempt.Record, error) {
	members, err := s.rdb.ZRangeByScore(ctx, attemptKey(tenantID, identity), &redis.ZRangeBy{
		Min: fmt.Sprintf("%d", since.UnixMilli()),
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("rampart: list attempts: %w", err)
	}
	result := make([]*attempt.Record, 0, len(members))
	for _, m := range members {
		r := new(attempt.Record)
		if err := json.Unmarshal([]byte(m), r); err != nil {
			return nil, fmt.Errorf("rampart: list attempts: %w", err)
		}
		result = append(result, r)
	}
	return result, nil
}

func (s *Store) CountAttempts(ctx context.Context, tenantID, identity string, since time.Time) (int64, error) {
	count, err := s.rdb.ZCount(ctx, attemptKey(tenantID, identity),
		fmt.Sprintf("%d", since.UnixMilli()), "+inf").Result()
	if err != nil {
		return 0, fmt.Errorf("rampart: count attempts: %w", err)
	}
	return count, nil
}

func (s *Store) PruneAttempts(ctx context.Context, before time.Time) (int64, error) {
	keys, err := s.rdb.SMembers(ctx, attemptIndexKey).Result()
	if err != nil {
		return 0, fmt.Errorf("rampart: prune attempts: %w", err)
	}
	cutoff := fmt.Sprintf("(%d", before.UnixMilli())
	var total int64
	for _, key := range keys {
		n, err := s.rdb.ZRemRangeByScore(ctx, key, "-inf", cutoff).Result()
		if err != nil {
			return total, fmt.Errorf("rampart: prune attempts: %w", err)
		}
		total += n
		if card, err := s.rdb.ZCard(ctx, key).Result(); err == nil && card == 0 {
			s.rdb.SRem(ctx, attemptIndexKey, key)
		}
	}
	return total, nil
}

func (s *Store) DeleteAttemptsByIdentity(ctx context.Context, tenantID, identity string) error {
	key := attemptKey(tenantID, identity)
	if err := s.rdb.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("rampart: delete attempts by identity: %w", err)
	}
	if err := s.rdb.SRem(ctx, attemptIndexKey, key).Err(); err != nil {
		return fmt.Errorf("rampart: delete attempts by identity: %w", err)
	}
	return nil
}

func (s *Store) DeleteAttemptsByTenant(ctx context.Context, tenantID string) error {
	keys, err := s.rdb.SMembers(ctx, attemptIndexKey).Result()
	if err != nil {
		return fmt.Errorf("rampart: delete attempts by tenant: %w", err)
	}
	prefix := "rampart:attempts:" + tenantID + "|"
	for _, key := range keys {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		if err := s.rdb.Del(ctx, key).Err(); err != nil {
			return fmt.Errorf("rampart: delete attempts by tenant: %w", err)
		}
		if err := s.rdb.SRem(ctx, attemptIndexKey, key).Err(); err != nil {
			return fmt.Errorf("rampart: delete attempts by tenant: %w", err)
		}
	}
	return nil
}
