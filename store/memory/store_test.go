package memory

import (
	"context"
	"testing"
	"time"

	"github.com/xraph/rampart/attempt"
	"github.com/xraph/rampart/decisionlog"
	"github.com/xraph/rampart/device"
	"github.com/xraph/rampart/id"
)

func newAttempt(tenantID, identity string, outcome attempt.Outcome, at time.Time) *attempt.Record {
	return &attempt.Record{
		ID:       id.NewAttemptID(),
		TenantID: tenantID,
		Identity: identity,
		Outcome:  outcome,
		At:       at,
	}
}

func newDevice(tenantID, userID, fingerprint string) *device.Trust {
	now := time.Now().UTC()
	return &device.Trust{
		ID:          id.NewDeviceID(),
		TenantID:    tenantID,
		UserID:      userID,
		Fingerprint: fingerprint,
		TrustScore:  0.5,
		FirstSeen:   now,
		LastSeen:    now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func TestAttemptLedger(t *testing.T) {
	ctx := context.Background()
	s := New()
	now := time.Now().UTC()

	for i := 0; i < 3; i++ {
		at := now.Add(time.Duration(i) * time.Second)
		if err := s.RecordAttempt(ctx, newAttempt("t1", "1.2.3.4|chrome", attempt.OutcomeFailure, at)); err != nil {
			t.Fatalf("RecordAttempt: %v", err)
		}
	}
	if err := s.RecordAttempt(ctx, newAttempt("t1", "other", attempt.OutcomeSuccess, now)); err != nil {
		t.Fatalf("RecordAttempt: %v", err)
	}

	list, err := s.ListAttempts(ctx, "t1", "1.2.3.4|chrome", now)
	if err != nil {
		t.Fatalf("ListAttempts: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("expected 3 attempts, got %d", len(list))
	}
	for i := 1; i < len(list); i++ {
		if list[i].At.Before(list[i-1].At) {
			t.Fatal("expected attempts ordered oldest first")
		}
	}

	// since filters.
	list, err = s.ListAttempts(ctx, "t1", "1.2.3.4|chrome", now.Add(2*time.Second))
	if err != nil {
		t.Fatalf("ListAttempts: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 attempt after since, got %d", len(list))
	}

	count, err := s.CountAttempts(ctx, "t1", "1.2.3.4|chrome", now)
	if err != nil {
		t.Fatalf("CountAttempts: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected count 3, got %d", count)
	}

	// Unknown identity returns an empty list, not an error.
	list, err = s.ListAttempts(ctx, "t1", "missing", now)
	if err != nil {
		t.Fatalf("ListAttempts: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("expected no attempts, got %d", len(list))
	}
}

func TestAttemptLazyEviction(t *testing.T) {
	ctx := context.Background()
	s := New(WithRetention(time.Hour))
	now := time.Now().UTC()

	old := newAttempt("t1", "stale", attempt.OutcomeFailure, now.Add(-2*time.Hour))
	if err := s.RecordAttempt(ctx, old); err != nil {
		t.Fatalf("RecordAttempt: %v", err)
	}
	fresh := newAttempt("t1", "stale", attempt.OutcomeFailure, now)
	if err := s.RecordAttempt(ctx, fresh); err != nil {
		t.Fatalf("RecordAttempt: %v", err)
	}

	// The write evicted the expired record.
	list, err := s.ListAttempts(ctx, "t1", "stale", now.Add(-3*time.Hour))
	if err != nil {
		t.Fatalf("ListAttempts: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected expired record dropped, got %d records", len(list))
	}
}

func TestPruneAttempts(t *testing.T) {
	ctx := context.Background()
	s := New()
	now := time.Now().UTC()

	_ = s.RecordAttempt(ctx, newAttempt("t1", "a", attempt.OutcomeFailure, now.Add(-time.Hour)))
	_ = s.RecordAttempt(ctx, newAttempt("t1", "a", attempt.OutcomeFailure, now))
	_ = s.RecordAttempt(ctx, newAttempt("t1", "b", attempt.OutcomeFailure, now.Add(-time.Hour)))

	dropped, err := s.PruneAttempts(ctx, now.Add(-time.Minute))
	if err != nil {
		t.Fatalf("PruneAttempts: %v", err)
	}
	if dropped != 2 {
		t.Fatalf("expected 2 pruned, got %d", dropped)
	}

	count, _ := s.CountAttempts(ctx, "t1", "a", now.Add(-2*time.Hour))
	if count != 1 {
		t.Fatalf("expected 1 remaining, got %d", count)
	}
	// Identity b had only expired records, its bucket is gone.
	count, _ = s.CountAttempts(ctx, "t1", "b", now.Add(-2*time.Hour))
	if count != 0 {
		t.Fatalf("expected 0 remaining for b, got %d", count)
	}
}

func TestDeleteAttempts(t *testing.T) {
	ctx := context.Background()
	s := New()
	now := time.Now().UTC()

	_ = s.RecordAttempt(ctx, newAttempt("t1", "a", attempt.OutcomeFailure, now))
	_ = s.RecordAttempt(ctx, newAttempt("t1", "b", attempt.OutcomeFailure, now))
	_ = s.RecordAttempt(ctx, newAttempt("t2", "a", attempt.OutcomeFailure, now))

	if err := s.DeleteAttemptsByIdentity(ctx, "t1", "a"); err != nil {
		t.Fatalf("DeleteAttemptsByIdentity: %v", err)
	}
	count, _ := s.CountAttempts(ctx, "t1", "a", now.Add(-time.Hour))
	if count != 0 {
		t.Fatal("expected identity a removed")
	}

	if err := s.DeleteAttemptsByTenant(ctx, "t1"); err != nil {
		t.Fatalf("DeleteAttemptsByTenant: %v", err)
	}
	count, _ = s.CountAttempts(ctx, "t1", "b", now.Add(-time.Hour))
	if count != 0 {
		t.Fatal("expected tenant t1 removed")
	}
	count, _ = s.CountAttempts(ctx, "t2", "a", now.Add(-time.Hour))
	if count != 1 {
		t.Fatal("expected tenant t2 untouched")
	}
}

func TestDeviceLifecycle(t *testing.T) {
	ctx := context.Background()
	s := New()

	d := newDevice("t1", "user-1", "fp-abc")
	if err := s.CreateDevice(ctx, d); err != nil {
		t.Fatalf("CreateDevice: %v", err)
	}

	got, err := s.GetDevice(ctx, d.ID.String())
	if err != nil {
		t.Fatalf("GetDevice: %v", err)
	}
	if got.Fingerprint != "fp-abc" {
		t.Fatalf("expected fingerprint fp-abc, got %q", got.Fingerprint)
	}

	got, err = s.GetDeviceByFingerprint(ctx, "t1", "fp-abc")
	if err != nil {
		t.Fatalf("GetDeviceByFingerprint: %v", err)
	}
	if got.ID != d.ID {
		t.Fatal("fingerprint lookup returned wrong device")
	}

	if _, err := s.GetDevice(ctx, "dev_missing"); err == nil {
		t.Fatal("expected error for missing device")
	}
	if _, err := s.GetDeviceByFingerprint(ctx, "t2", "fp-abc"); err == nil {
		t.Fatal("expected error for wrong tenant")
	}
}

func TestDeviceVerificationRaisesTrust(t *testing.T) {
	ctx := context.Background()
	s := New()

	d := newDevice("t1", "user-1", "fp-1")
	d.TrustScore = 0.95
	_ = s.CreateDevice(ctx, d)

	ev := &device.VerificationEvent{
		ID:        id.NewVerificationID(),
		Kind:      "mfa",
		Succeeded: true,
		At:        time.Now().UTC(),
	}
	if err := s.RecordVerification(ctx, d.ID.String(), ev); err != nil {
		t.Fatalf("RecordVerification: %v", err)
	}

	got, _ := s.GetDevice(ctx, d.ID.String())
	if got.TrustScore != 1 {
		t.Fatalf("expected trust capped at 1, got %v", got.TrustScore)
	}
	if len(got.History) != 1 {
		t.Fatalf("expected 1 history event, got %d", len(got.History))
	}

	// A failed verification records history but does not raise trust.
	ev2 := &device.VerificationEvent{ID: id.NewVerificationID(), Kind: "mfa", At: time.Now().UTC()}
	_ = s.RecordVerification(ctx, d.ID.String(), ev2)
	got, _ = s.GetDevice(ctx, d.ID.String())
	if got.TrustScore != 1 {
		t.Fatalf("expected trust unchanged, got %v", got.TrustScore)
	}
	if len(got.History) != 2 {
		t.Fatalf("expected 2 history events, got %d", len(got.History))
	}
}

func TestDeviceQuarantineAndCompromise(t *testing.T) {
	ctx := context.Background()
	s := New()

	d := newDevice("t1", "user-1", "fp-1")
	_ = s.CreateDevice(ctx, d)

	if err := s.QuarantineDevice(ctx, d.ID.String(), "velocity anomaly"); err != nil {
		t.Fatalf("QuarantineDevice: %v", err)
	}
	got, _ := s.GetDevice(ctx, d.ID.String())
	if !got.IsQuarantined {
		t.Fatal("expected device quarantined")
	}
	if !got.HasRiskFactor(device.RiskQuarantined) {
		t.Fatal("expected quarantined risk factor")
	}

	// Repeated quarantine does not duplicate the risk factor.
	_ = s.QuarantineDevice(ctx, d.ID.String(), "again")
	got, _ = s.GetDevice(ctx, d.ID.String())
	if len(got.RiskFactors) != 1 {
		t.Fatalf("expected 1 risk factor, got %d", len(got.RiskFactors))
	}

	if err := s.MarkDeviceCompromised(ctx, d.ID.String(), "credential stuffing"); err != nil {
		t.Fatalf("MarkDeviceCompromised: %v", err)
	}
	if err := s.ReleaseDevice(ctx, d.ID.String()); err != nil {
		t.Fatalf("ReleaseDevice: %v", err)
	}
	got, _ = s.GetDevice(ctx, d.ID.String())
	if got.IsQuarantined {
		t.Fatal("expected quarantine released")
	}
	if !got.IsCompromised {
		t.Fatal("expected compromise flag sticky across release")
	}
}

func TestListDevicesFilter(t *testing.T) {
	ctx := context.Background()
	s := New()

	d1 := newDevice("t1", "user-1", "fp-1")
	d2 := newDevice("t1", "user-2", "fp-2")
	d3 := newDevice("t2", "user-1", "fp-3")
	for _, d := range []*device.Trust{d1, d2, d3} {
		_ = s.CreateDevice(ctx, d)
	}
	_ = s.QuarantineDevice(ctx, d2.ID.String(), "test")

	list, err := s.ListDevices(ctx, &device.ListFilter{TenantID: "t1"})
	if err != nil {
		t.Fatalf("ListDevices: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 devices for t1, got %d", len(list))
	}

	quarantined := true
	list, _ = s.ListDevices(ctx, &device.ListFilter{TenantID: "t1", IsQuarantined: &quarantined})
	if len(list) != 1 || list[0].ID != d2.ID {
		t.Fatal("expected only the quarantined device")
	}

	count, _ := s.CountDevices(ctx, &device.ListFilter{UserID: "user-1"})
	if count != 2 {
		t.Fatalf("expected count 2 for user-1, got %d", count)
	}

	// Mutating a returned copy must not affect the store.
	list, _ = s.ListDevices(ctx, nil)
	list[0].RiskFactors = append(list[0].RiskFactors, device.RiskFactor{Code: "tampered"})
	fresh, _ := s.GetDevice(ctx, list[0].ID.String())
	if fresh.HasRiskFactor("tampered") {
		t.Fatal("store state shared with caller")
	}
}

func TestDecisionLog(t *testing.T) {
	ctx := context.Background()
	s := New()
	now := time.Now().UTC()

	mk := func(kind decisionlog.Kind, allowed bool, at time.Time) *decisionlog.Entry {
		return &decisionlog.Entry{
			ID:        id.NewDecisionLogID(),
			TenantID:  "t1",
			Kind:      kind,
			Identity:  "1.2.3.4|chrome",
			Allowed:   allowed,
			Level:     "none",
			CreatedAt: at,
		}
	}

	e1 := mk(decisionlog.KindRateLimit, true, now.Add(-2*time.Minute))
	e2 := mk(decisionlog.KindRateLimit, false, now.Add(-time.Minute))
	e3 := mk(decisionlog.KindAccess, true, now)
	for _, e := range []*decisionlog.Entry{e1, e2, e3} {
		if err := s.CreateDecisionLog(ctx, e); err != nil {
			t.Fatalf("CreateDecisionLog: %v", err)
		}
	}

	got, err := s.GetDecisionLog(ctx, e1.ID)
	if err != nil {
		t.Fatalf("GetDecisionLog: %v", err)
	}
	if got.Kind != decisionlog.KindRateLimit {
		t.Fatalf("unexpected kind %q", got.Kind)
	}

	list, err := s.ListDecisionLogs(ctx, &decisionlog.QueryFilter{TenantID: "t1"})
	if err != nil {
		t.Fatalf("ListDecisionLogs: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(list))
	}
	if list[0].ID != e3.ID {
		t.Fatal("expected newest entry first")
	}

	denied := false
	list, _ = s.ListDecisionLogs(ctx, &decisionlog.QueryFilter{Allowed: &denied})
	if len(list) != 1 || list[0].ID != e2.ID {
		t.Fatal("expected only the denied entry")
	}

	dropped, err := s.PurgeDecisionLogs(ctx, now.Add(-90*time.Second))
	if err != nil {
		t.Fatalf("PurgeDecisionLogs: %v", err)
	}
	if dropped != 1 {
		t.Fatalf("expected 1 purged, got %d", dropped)
	}

	if err := s.DeleteDecisionLogsByTenant(ctx, "t1"); err != nil {
		t.Fatalf("DeleteDecisionLogsByTenant: %v", err)
	}
	count, _ := s.CountDecisionLogs(ctx, nil)
	if count != 0 {
		t.Fatalf("expected empty log, got %d", count)
	}
}
