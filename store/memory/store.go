// Package memory provides an in-memory implementation of the rampart
// composite store. It is intended for testing, development, and
// single-process deployments.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/xraph/rampart/attempt"
	"github.com/xraph/rampart/decisionlog"
	"github.com/xraph/rampart/device"
	"github.com/xraph/rampart/id"
)

// Compile-time interface checks.
var (
	_ attempt.Store     = (*Store)(nil)
	_ device.Store      = (*Store)(nil)
	_ decisionlog.Store = (*Store)(nil)
)

// Store is a thread-safe in-memory store for all rampart entities.
//
// Attempt records are bucketed per (tenant, identity) and pruned lazily
// on write once they fall out of the retention horizon; there is no
// background sweeper. Reads filter without mutating, so they only take
// the read lock.
type Store struct {
	mu sync.RWMutex

	attempts    map[string][]*attempt.Record // tenant|identity -> records, oldest first
	devices     map[string]*device.Trust
	deviceByFp  map[string]string // tenant|fingerprint -> deviceID
	decisionLog map[string]*decisionlog.Entry

	retention time.Duration
}

// Option configures the memory store.
type Option func(*Store)

// WithRetention sets the horizon past which attempt records are lazily
// dropped. It should be at least the limiter's episode window.
func WithRetention(d time.Duration) Option {
	return func(s *Store) { s.retention = d }
}

// New creates a new in-memory store.
func New(opts ...Option) *Store {
	s := &Store{
		attempts:    make(map[string][]*attempt.Record),
		devices:     make(map[string]*device.Trust),
		deviceByFp:  make(map[string]string),
		decisionLog: make(map[string]*decisionlog.Entry),
		retention:   6 * time.Hour,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Migrate is a no-op for the memory store.
func (s *Store) Migrate(_ context.Context) error { return nil }

// Ping is a no-op for the memory store.
func (s *Store) Ping(_ context.Context) error { return nil }

// Close is a no-op for the memory store.
func (s *Store) Close() error { return nil }

func attemptKey(tenantID, identity string) string { return tenantID + "|" + identity }

// ──────────────────────────────────────────────────
// Attempt ledger
// ──────────────────────────────────────────────────

func (s *Store) RecordAttempt(_ context.Context, r *attempt.Record) error {
	key := attemptKey(r.TenantID, r.Identity)
	s.mu.Lock()
	defer s.mu.Unlock()

	bucket := s.attempts[key]
	// Lazy eviction on the write path: drop this identity's expired
	// records before appending.
	horizon := r.At.Add(-s.retention)
	for len(bucket) > 0 && bucket[0].At.Before(horizon) {
		bucket = bucket[1:]
	}
	rc := *r
	s.attempts[key] = append(bucket, &rc)
	return nil
}

func (s *Store) ListAttempts(_ context.Context, tenantID, identity string, since time.Time) ([]*attempt.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []*attempt.Record
	for _, r := range s.attempts[attemptKey(tenantID, identity)] {
		if r.At.Before(since) {
			continue
		}
		rc := *r
		result = append(result, &rc)
	}
	return result, nil
}

func (s *Store) CountAttempts(ctx context.Context, tenantID, identity string, since time.Time) (int64, error) {
	list, err := s.ListAttempts(ctx, tenantID, identity, since)
	if err != nil {
		return 0, err
	}
	return int64(len(list)), nil
}

func (s *Store) PruneAttempts(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var dropped int64
	for key, bucket := range s.attempts {
		kept := bucket[:0]
		for _, r := range bucket {
			if r.At.Before(before) {
				dropped++
				continue
			}
			kept = append(kept, r)
		}
		if len(kept) == 0 {
			delete(s.attempts, key)
			continue
		}
		s.attempts[key] = kept
	}
	return dropped, nil
}

func (s *Store) DeleteAttemptsByIdentity(_ context.Context, tenantID, identity string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.attempts, attemptKey(tenantID, identity))
	return nil
}

func (s *Store) DeleteAttemptsByTenant(_ context.Context, tenantID string) error {
	prefix := tenantID + "|"
	s.mu.Lock()
	defer s.mu.Unlock()
	for key := range s.attempts {
		if len(key) > len(prefix) && key[:len(prefix)] == prefix {
			delete(s.attempts, key)
		}
	}
	return nil
}

// ──────────────────────────────────────────────────
// Device trust store
// ──────────────────────────────────────────────────

func (s *Store) CreateDevice(_ context.Context, t *device.Trust) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.devices[t.ID.String()] = copyDevice(t)
	if t.Fingerprint != "" {
		s.deviceByFp[attemptKey(t.TenantID, t.Fingerprint)] = t.ID.String()
	}
	return nil
}

func (s *Store) GetDevice(_ context.Context, deviceID string) (*device.Trust, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.devices[deviceID]
	if !ok {
		return nil, fmt.Errorf("device %s: %w", deviceID, device.ErrNotFound)
	}
	return copyDevice(t), nil
}

func (s *Store) GetDeviceByFingerprint(_ context.Context, tenantID, fingerprint string) (*device.Trust, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	deviceID, ok := s.deviceByFp[attemptKey(tenantID, fingerprint)]
	if !ok {
		return nil, fmt.Errorf("device fingerprint %q: %w", fingerprint, device.ErrNotFound)
	}
	t, ok := s.devices[deviceID]
	if !ok {
		return nil, fmt.Errorf("device %s: %w", deviceID, device.ErrNotFound)
	}
	return copyDevice(t), nil
}

func (s *Store) ListDevices(_ context.Context, filter *device.ListFilter) ([]*device.Trust, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*device.Trust, 0, len(s.devices))
	for _, t := range s.devices {
		if filter != nil {
			if filter.TenantID != "" && t.TenantID != filter.TenantID {
				continue
			}
			if filter.UserID != "" && t.UserID != filter.UserID {
				continue
			}
			if filter.IsQuarantined != nil && t.IsQuarantined != *filter.IsQuarantined {
				continue
			}
			if filter.IsCompromised != nil && t.IsCompromised != *filter.IsCompromised {
				continue
			}
		}
		result = append(result, copyDevice(t))
	}
	return applyPagination(result, filter), nil
}

func (s *Store) CountDevices(ctx context.Context, filter *device.ListFilter) (int64, error) {
	var unpaged *device.ListFilter
	if filter != nil {
		f := *filter
		f.Limit, f.Offset = 0, 0
		unpaged = &f
	}
	list, err := s.ListDevices(ctx, unpaged)
	if err != nil {
		return 0, err
	}
	return int64(len(list)), nil
}

func (s *Store) TouchDevice(_ context.Context, deviceID string, seenAt time.Time) error {
	return s.mutateDevice(deviceID, func(t *device.Trust) {
		if seenAt.After(t.LastSeen) {
			t.LastSeen = seenAt
		}
	})
}

func (s *Store) RecordVerification(_ context.Context, deviceID string, ev *device.VerificationEvent) error {
	return s.mutateDevice(deviceID, func(t *device.Trust) {
		t.History = append(t.History, *ev)
		if ev.Succeeded {
			t.TrustScore = min(1, t.TrustScore+device.VerificationTrustGain)
		}
	})
}

func (s *Store) QuarantineDevice(_ context.Context, deviceID, reason string) error {
	return s.mutateDevice(deviceID, func(t *device.Trust) {
		t.IsQuarantined = true
		addRiskFactor(t, device.RiskQuarantined, reason)
	})
}

func (s *Store) ReleaseDevice(_ context.Context, deviceID string) error {
	return s.mutateDevice(deviceID, func(t *device.Trust) {
		t.IsQuarantined = false
	})
}

func (s *Store) MarkDeviceCompromised(_ context.Context, deviceID, reason string) error {
	return s.mutateDevice(deviceID, func(t *device.Trust) {
		t.IsCompromised = true
		addRiskFactor(t, device.RiskCompromised, reason)
	})
}

func (s *Store) DeleteDevicesByTenant(_ context.Context, tenantID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, t := range s.devices {
		if t.TenantID == tenantID {
			delete(s.devices, key)
			delete(s.deviceByFp, attemptKey(tenantID, t.Fingerprint))
		}
	}
	return nil
}

// mutateDevice applies fn to a device under the write lock, so all
// transitions on one device are serialized.
func (s *Store) mutateDevice(deviceID string, fn func(*device.Trust)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.devices[deviceID]
	if !ok {
		return fmt.Errorf("device %s: %w", deviceID, device.ErrNotFound)
	}
	fn(t)
	t.UpdatedAt = time.Now().UTC()
	return nil
}

func addRiskFactor(t *device.Trust, code, reason string) {
	if t.HasRiskFactor(code) {
		return
	}
	t.RiskFactors = append(t.RiskFactors, device.RiskFactor{
		Code:   code,
		Reason: reason,
		At:     time.Now().UTC(),
	})
}

// ──────────────────────────────────────────────────
// Decision log
// ──────────────────────────────────────────────────

func (s *Store) CreateDecisionLog(_ context.Context, e *decisionlog.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ec := *e
	s.decisionLog[e.ID.String()] = &ec
	return nil
}

func (s *Store) GetDecisionLog(_ context.Context, logID id.DecisionLogID) (*decisionlog.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.decisionLog[logID.String()]
	if !ok {
		return nil, fmt.Errorf("decision log %s: %w", logID, decisionlog.ErrNotFound)
	}
	ec := *e
	return &ec, nil
}

func (s *Store) ListDecisionLogs(_ context.Context, filter *decisionlog.QueryFilter) ([]*decisionlog.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*decisionlog.Entry, 0, len(s.decisionLog))
	for _, e := range s.decisionLog {
		if filter != nil && !matchDecisionLog(e, filter) {
			continue
		}
		ec := *e
		result = append(result, &ec)
	}
	sortDecisionLogs(result)
	return applyLogPagination(result, filter), nil
}

func (s *Store) CountDecisionLogs(ctx context.Context, filter *decisionlog.QueryFilter) (int64, error) {
	var unpaged *decisionlog.QueryFilter
	if filter != nil {
		f := *filter
		f.Limit, f.Offset = 0, 0
		unpaged = &f
	}
	list, err := s.ListDecisionLogs(ctx, unpaged)
	if err != nil {
		return 0, err
	}
	return int64(len(list)), nil
}

func (s *Store) PurgeDecisionLogs(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var dropped int64
	for key, e := range s.decisionLog {
		if e.CreatedAt.Before(before) {
			delete(s.decisionLog, key)
			dropped++
		}
	}
	return dropped, nil
}

func (s *Store) DeleteDecisionLogsByTenant(_ context.Context, tenantID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, e := range s.decisionLog {
		if e.TenantID == tenantID {
			delete(s.decisionLog, key)
		}
	}
	return nil
}

func matchDecisionLog(e *decisionlog.Entry, f *decisionlog.QueryFilter) bool {
	if f.TenantID != "" && e.TenantID != f.TenantID {
		return false
	}
	if f.Kind != "" && e.Kind != f.Kind {
		return false
	}
	if f.Identity != "" && e.Identity != f.Identity {
		return false
	}
	if f.UserID != "" && e.UserID != f.UserID {
		return false
	}
	if f.DeviceID != "" && e.DeviceID != f.DeviceID {
		return false
	}
	if f.Allowed != nil && e.Allowed != *f.Allowed {
		return false
	}
	if f.Level != "" && e.Level != f.Level {
		return false
	}
	if f.After != nil && !e.CreatedAt.After(*f.After) {
		return false
	}
	if f.Before != nil && !e.CreatedAt.Before(*f.Before) {
		return false
	}
	return true
}
