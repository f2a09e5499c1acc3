// Package postgres provides a PostgreSQL implementation of the rampart
// composite store for multi-node production deployments.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/pgdriver"
	"github.com/xraph/grove/migrate"

	"github.com/xraph/rampart/attempt"
	"github.com/xraph/rampart/decisionlog"
	"github.com/xraph/rampart/device"
	"github.com/xraph/rampart/id"
	"github.com/xraph/rampart/store"
)

// Compile-time interface check.
var _ store.Store = (*Store)(nil)

// Store is a PostgreSQL implementation of the composite Rampart store.
type Store struct {
	db  *grove.DB
	pdb *pgdriver.PgDB
}

// New creates a new PostgreSQL store.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		pdb: pgdriver.Unwrap(db),
	}
}

// Migrate runs programmatic migrations via the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.pdb)
	if err != nil {
		return fmt.Errorf("rampart/postgres: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("rampart/postgres: migration failed: %w", err)
	}
	return nil
}

// Ping verifies the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// ──────────────────────────────────────────────────
// Attempt ledger
// ──────────────────────────────────────────────────

func (s *Store) RecordAttempt(ctx context.Context, r *attempt.Record) error {
	if _, err := s.pdb.NewInsert(attemptToModel(r)).Exec(ctx); err != nil {
		return fmt.Errorf("rampart: record attempt: %w", err)
	}
	return nil
}

func (s *Store) ListAttempts(ctx context.Context, tenantID, identity string, since time.Time) ([]*attempt.Record, error) {
	var models []attemptModel
	err := s.pdb.NewSelect(&models).
		Where("tenant_id = ?", tenantID).
		Where("identity = ?", identity).
		Where("at >= ?", since).
		OrderExpr("at ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("rampart: list attempts: %w", err)
	}
	result := make([]*attempt.Record, len(models))
	for i := range models {
		result[i] = attemptFromModel(&models[i])
	}
	return result, nil
}

func (s *Store) CountAttempts(ctx context.Context, tenantID, identity string, since time.Time) (int64, error) {
	count, err := s.pdb.NewSelect((*attemptModel)(nil)).
		Where("tenant_id = ?", tenantID).
		Where("identity = ?", identity).
		Where("at >= ?", since).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("rampart: count attempts: %w", err)
	}
	return count, nil
}

func (s *Store) PruneAttempts(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.pdb.NewDelete((*attemptModel)(nil)).
		Where("at < ?", before).Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("rampart: prune attempts: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rampart: prune attempts rows: %w", err)
	}
	return n, nil
}

func (s *Store) DeleteAttemptsByIdentity(ctx context.Context, tenantID, identity string) error {
	_, err := s.pdb.NewDelete((*attemptModel)(nil)).
		Where("tenant_id = ?", tenantID).
		Where("identity = ?", identity).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("rampart: delete attempts by identity: %w", err)
	}
	return nil
}

func (s *Store) DeleteAttemptsByTenant(ctx context.Context, tenantID string) error {
	_, err := s.pdb.NewDelete((*attemptModel)(nil)).
		Where("tenant_id = ?", tenantID).Exec(ctx)
	if err != nil {
		return fmt.Errorf("rampart: delete attempts by tenant: %w", err)
	}
	return nil
}

// ──────────────────────────────────────────────────
// Device trust store
// ──────────────────────────────────────────────────

func (s *Store) CreateDevice(ctx context.Context, t *device.Trust) error {
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now
	if _, err := s.pdb.NewInsert(deviceToModel(t)).Exec(ctx); err != nil {
		return fmt.Errorf("rampart: create device: %w", err)
	}
	return nil
}

func (s *Store) GetDevice(ctx context.Context, deviceID string) (*device.Trust, error) {
	m := new(deviceModel)
	err := s.pdb.NewSelect(m).Where("id = ?", deviceID).Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("device %s: %w", deviceID, device.ErrNotFound)
		}
		return nil, fmt.Errorf("rampart: get device: %w", err)
	}
	return deviceFromModel(m), nil
}

func (s *Store) GetDeviceByFingerprint(ctx context.Context, tenantID, fingerprint string) (*device.Trust, error) {
	m := new(deviceModel)
	err := s.pdb.NewSelect(m).
		Where("tenant_id = ?", tenantID).
		Where("fingerprint = ?", fingerprint).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("device fingerprint %q: %w", fingerprint, device.ErrNotFound)
		}
		return nil, fmt.Errorf("rampart: get device by fingerprint: %w", err)
	}
	return deviceFromModel(m), nil
}

func (s *Store) ListDevices(ctx context.Context, filter *device.ListFilter) ([]*device.Trust, error) {
	var models []deviceModel
	q := s.pdb.NewSelect(&models).OrderExpr("created_at ASC")
	if filter != nil {
		if filter.TenantID != "" {
			q = q.Where("tenant_id = ?", filter.TenantID)
		}
		if filter.UserID != "" {
			q = q.Where("user_id = ?", filter.UserID)
		}
		if filter.IsQuarantined != nil {
			q = q.Where("is_quarantined = ?", *filter.IsQuarantined)
		}
		if filter.IsCompromised != nil {
			q = q.Where("is_compromised = ?", *filter.IsCompromised)
		}
		if filter.Limit > 0 {
			q = q.Limit(filter.Limit)
		}
		if filter.Offset > 0 {
			q = q.Offset(filter.Offset)
		}
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("rampart: list devices: %w", err)
	}
	result := make([]*device.Trust, len(models))
	for i := range models {
		result[i] = deviceFromModel(&models[i])
	}
	return result, nil
}

func (s *Store) CountDevices(ctx context.Context, filter *device.ListFilter) (int64, error) {
	q := s.pdb.NewSelect((*deviceModel)(nil))
	if filter != nil {
		if filter.TenantID != "" {
			q = q.Where("tenant_id = ?", filter.TenantID)
		}
		if filter.UserID != "" {
			q = q.Where("user_id = ?", filter.UserID)
		}
		if filter.IsQuarantined != nil {
			q = q.Where("is_quarantined = ?", *filter.IsQuarantined)
		}
		if filter.IsCompromised != nil {
			q = q.Where("is_compromised = ?", *filter.IsCompromised)
		}
	}
	count, err := q.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("rampart: count devices: %w", err)
	}
	return count, nil
}

func (s *Store) TouchDevice(ctx context.Context, deviceID string, seenAt time.Time) error {
	res, err := s.pdb.NewUpdate((*deviceModel)(nil)).
		Set("last_seen = ?", seenAt).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", deviceID).
		Where("last_seen < ?", seenAt).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("rampart: touch device: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		// Either the device is missing or last_seen is already newer.
		return s.requireDevice(ctx, deviceID)
	}
	return nil
}

// RecordVerification appends a verification event inside a transaction
// so concurrent verification events on one device cannot lose updates.
func (s *Store) RecordVerification(ctx context.Context, deviceID string, ev *device.VerificationEvent) error {
	return s.mutateDevice(ctx, deviceID, func(t *device.Trust) {
		t.History = append(t.History, *ev)
		if ev.Succeeded {
			t.TrustScore = min(1, t.TrustScore+device.VerificationTrustGain)
		}
	})
}

func (s *Store) QuarantineDevice(ctx context.Context, deviceID, reason string) error {
	return s.mutateDevice(ctx, deviceID, func(t *device.Trust) {
		t.IsQuarantined = true
		if !t.HasRiskFactor(device.RiskQuarantined) {
			t.RiskFactors = append(t.RiskFactors, device.RiskFactor{
				Code:   device.RiskQuarantined,
				Reason: reason,
				At:     time.Now().UTC(),
			})
		}
	})
}

func (s *Store) ReleaseDevice(ctx context.Context, deviceID string) error {
	return s.mutateDevice(ctx, deviceID, func(t *device.Trust) {
		t.IsQuarantined = false
	})
}

func (s *Store) MarkDeviceCompromised(ctx context.Context, deviceID, reason string) error {
	return s.mutateDevice(ctx, deviceID, func(t *device.Trust) {
		t.IsCompromised = true
		if !t.HasRiskFactor(device.RiskCompromised) {
			t.RiskFactors = append(t.RiskFactors, device.RiskFactor{
				Code:   device.RiskCompromised,
				Reason: reason,
				At:     time.Now().UTC(),
			})
		}
	})
}

func (s *Store) DeleteDevicesByTenant(ctx context.Context, tenantID string) error {
	_, err := s.pdb.NewDelete((*deviceModel)(nil)).
		Where("tenant_id = ?", tenantID).Exec(ctx)
	if err != nil {
		return fmt.Errorf("rampart: delete devices by tenant: %w", err)
	}
	return nil
}

// mutateDevice runs a read-modify-write transition inside a transaction.
func (s *Store) mutateDevice(ctx context.Context, deviceID string, fn func(*device.Trust)) error {
	tx, err := s.pdb.BeginTxQuery(ctx, nil)
	if err != nil {
		return fmt.Errorf("rampart: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback on error is intentional

	m := new(deviceModel)
	if err := tx.NewSelect(m).Where("id = ?", deviceID).Scan(ctx); err != nil {
		if isNoRows(err) {
			return fmt.Errorf("device %s: %w", deviceID, device.ErrNotFound)
		}
		return fmt.Errorf("rampart: load device: %w", err)
	}
	t := deviceFromModel(m)

	fn(t)
	t.UpdatedAt = time.Now().UTC()

	updated := deviceToModel(t)
	_, err = tx.NewUpdate((*deviceModel)(nil)).
		Set("trust_score = ?", updated.TrustScore).
		Set("is_quarantined = ?", updated.IsQuarantined).
		Set("is_compromised = ?", updated.IsCompromised).
		Set("risk_factors = ?", updated.RiskFactors).
		Set("history = ?", updated.History).
		Set("updated_at = ?", updated.UpdatedAt).
		Where("id = ?", deviceID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("rampart: update device: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("rampart: commit tx: %w", err)
	}
	return nil
}

func (s *Store) requireDevice(ctx context.Context, deviceID string) error {
	count, err := s.pdb.NewSelect((*deviceModel)(nil)).
		Where("id = ?", deviceID).Count(ctx)
	if err != nil {
		return fmt.Errorf("rampart: check device: %w", err)
	}
	if count == 0 {
		return fmt.Errorf("device %s: %w", deviceID, device.ErrNotFound)
	}
	return nil
}

// ──────────────────────────────────────────────────
// Decision log
// ──────────────────────────────────────────────────

func (s *Store) CreateDecisionLog(ctx context.Context, e *decisionlog.Entry) error {
	if _, err := s.pdb.NewInsert(decisionLogToModel(e)).Exec(ctx); err != nil {
		return fmt.Errorf("rampart: create decision log: %w", err)
	}
	return nil
}

func (s *Store) GetDecisionLog(ctx context.Context, logID id.DecisionLogID) (*decisionlog.Entry, error) {
	m := new(decisionLogModel)
	err := s.pdb.NewSelect(m).Where("id = ?", logID.String()).Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("decision log %s: %w", logID, decisionlog.ErrNotFound)
		}
		return nil, fmt.Errorf("rampart: get decision log: %w", err)
	}
	return decisionLogFromModel(m), nil
}

func (s *Store) ListDecisionLogs(ctx context.Context, filter *decisionlog.QueryFilter) ([]*decisionlog.Entry, error) {
	var models []decisionLogModel
	q := s.pdb.NewSelect(&models).OrderExpr("created_at DESC")
	if filter != nil {
		if filter.TenantID != "" {
			q = q.Where("tenant_id = ?", filter.TenantID)
		}
		if filter.Kind != "" {
			q = q.Where("kind = ?", string(filter.Kind))
		}
		if filter.Identity != "" {
			q = q.Where("identity = ?", filter.Identity)
		}
		if filter.UserID != "" {
			q = q.Where("user_id = ?", filter.UserID)
		}
		if filter.DeviceID != "" {
			q = q.Where("device_id = ?", filter.DeviceID)
		}
		if filter.Allowed != nil {
			q = q.Where("allowed = ?", *filter.Allowed)
		}
		if filter.Level != "" {
			q = q.Where("level = ?", filter.Level)
		}
		if filter.After != nil {
			q = q.Where("created_at > ?", *filter.After)
		}
		if filter.Before != nil {
			q = q.Where("created_at < ?", *filter.Before)
		}
		if filter.Limit > 0 {
			q = q.Limit(filter.Limit)
		}
		if filter.Offset > 0 {
			q = q.Offset(filter.Offset)
		}
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("rampart: list decision logs: %w", err)
	}
	result := make([]*decisionlog.Entry, len(models))
	for i := range models {
		result[i] = decisionLogFromModel(&models[i])
	}
	return result, nil
}

func (s *Store) CountDecisionLogs(ctx context.Context, filter *decisionlog.QueryFilter) (int64, error) {
	q := s.pdb.NewSelect((*decisionLogModel)(nil))
	if filter != nil {
		if filter.TenantID != "" {
			q = q.Where("tenant_id = ?", filter.TenantID)
		}
		if filter.Kind != "" {
			q = q.Where("kind = ?", string(filter.Kind))
		}
		if filter.Identity != "" {
			q = q.Where("identity = ?", filter.Identity)
		}
		if filter.UserID != "" {
			q = q.Where("user_id = ?", filter.UserID)
		}
		if filter.DeviceID != "" {
			q = q.Where("device_id = ?", filter.DeviceID)
		}
		if filter.Allowed != nil {
			q = q.Where("allowed = ?", *filter.Allowed)
		}
		if filter.Level != "" {
			q = q.Where("level = ?", filter.Level)
		}
		if filter.After != nil {
			q = q.Where("created_at > ?", *filter.After)
		}
		if filter.Before != nil {
			q = q.Where("created_at < ?", *filter.Before)
		}
	}
	count, err := q.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("rampart: count decision logs: %w", err)
	}
	return count, nil
}

func (s *Store) PurgeDecisionLogs(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.pdb.NewDelete((*decisionLogModel)(nil)).
		Where("created_at < ?", before).Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("rampart: purge decision logs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rampart: purge decision logs rows: %w", err)
	}
	return n, nil
}

func (s *Store) DeleteDecisionLogsByTenant(ctx context.Context, tenantID string) error {
	_, err := s.pdb.NewDelete((*decisionLogModel)(nil)).
		Where("tenant_id = ?", tenantID).Exec(ctx)
	if err != nil {
		return fmt.Errorf("rampart: delete decision logs by tenant: %w", err)
	}
	return nil
}
