package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/xraph/rampart/device"
)

const deviceMutateRetries = 8

func (s *Store) CreateDevice(ctx context.Context, t *device.Trust) error {
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now
	payload, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("rampart: create device: %w", err)
	}
	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, deviceKey(t.ID.String()), payload, 0)
	pipe.Set(ctx, fingerprintKey(t.TenantID, t.Fingerprint), t.ID.String(), 0)
	pipe.SAdd(ctx, deviceIndexKey, t.ID.String())
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("rampart: create device: %w", err)
	}
	return nil
}

func (s *Store) GetDevice(ctx context.Context, deviceID string) (*device.Trust, error) {
	val, err := s.rdb.Get(ctx, deviceKey(deviceID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("device %s: %w", deviceID, device.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("rampart: get device: %w", err)
	}
	t := new(device.Trust)
	if err := json.Unmarshal([]byte(val), t); err != nil {
		return nil, fmt.Errorf("rampart: get device: %w", err)
	}
	return t, nil
}

func (s *Store) GetDeviceByFingerprint(ctx context.Context, tenantID, fingerprint string) (*device.Trust, error) {
	deviceID, err := s.rdb.Get(ctx, fingerprintKey(tenantID, fingerprint)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("device fingerprint %q: %w", fingerprint, device.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("rampart: get device by fingerprint: %w", err)
	}
	return s.GetDevice(ctx, deviceID)
}

func (s *Store) ListDevices(ctx context.Context, filter *device.ListFilter) ([]*device.Trust, error) {
	matched, err := s.matchDevices(ctx, filter)
	if err != nil {
		return nil, err
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.Before(matched[j].CreatedAt)
	})
	if filter != nil {
		if filter.Offset > 0 {
			if filter.Offset >= len(matched) {
				return []*device.Trust{}, nil
			}
			matched = matched[filter.Offset:]
		}
		if filter.Limit > 0 && filter.Limit < len(matched) {
			matched = matched[:filter.Limit]
		}
	}
	return matched, nil
}

func (s *Store) CountDevices(ctx context.Context, filter *device.ListFilter) (int64, error) {
	matched, err := s.matchDevices(ctx, filter)
	if err != nil {
		return 0, err
	}
	return int64(len(matched)), nil
}

// matchDevices loads every indexed device and applies the filter
// client side. Pagination happens after the caller sorts.
func (s *Store) matchDevices(ctx context.Context, filter *device.ListFilter) ([]*device.Trust, error) {
	ids, err := s.rdb.SMembers(ctx, deviceIndexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("rampart: list devices: %w", err)
	}
	matched := make([]*device.Trust, 0, len(ids))
	for _, deviceID := range ids {
		t, err := s.GetDevice(ctx, deviceID)
		if errors.Is(err, device.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
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
		matched = append(matched, t)
	}
	return matched, nil
}

func (s *Store) TouchDevice(ctx context.Context, deviceID string, seenAt time.Time) error {
	return s.mutateDevice(ctx, deviceID, func(t *device.Trust) {
		if seenAt.After(t.LastSeen) {
			t.LastSeen = seenAt
		}
	})
}

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
	ids, err := s.rdb.SMembers(ctx, deviceIndexKey).Result()
	if err != nil {
		return fmt.Errorf("rampart: delete devices by tenant: %w", err)
	}
	for _, deviceID := range ids {
		t, err := s.GetDevice(ctx, deviceID)
		if errors.Is(err, device.ErrNotFound) {
			continue
		}
		if err != nil {
			return err
		}
		if t.TenantID != tenantID {
			continue
		}
		pipe := s.rdb.TxPipeline()
		pipe.Del(ctx, deviceKey(deviceID))
		pipe.Del(ctx, fingerprintKey(t.TenantID, t.Fingerprint))
		pipe.SRem(ctx, deviceIndexKey, deviceID)
		if _, err := pipe.Exec(ctx); err != nil {
			return fmt.Errorf("rampart: delete devices by tenant: %w", err)
		}
	}
	return nil
}

// mutateDevice runs a read-modify-write transition under WATCH so
// racing transitions on one device retry instead of losing updates.
func (s *Store) mutateDevice(ctx context.Context, deviceID string, fn func(*device.Trust)) error {
	key := deviceKey(deviceID)
	transition := func(tx *redis.Tx) error {
		val, err := tx.Get(ctx, key).Result()
		if errors.Is(err, redis.Nil) {
			return fmt.Errorf("device %s: %w", deviceID, device.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("rampart: load device: %w", err)
		}
		t := new(device.Trust)
		if err := json.Unmarshal([]byte(val), t); err != nil {
			return fmt.Errorf("rampart: load device: %w", err)
		}

		fn(t)
		t.UpdatedAt = time.Now().UTC()

		payload, err := json.Marshal(t)
		if err != nil {
			return fmt.Errorf("rampart: update device: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, 0)
			return nil
		})
		return err
	}

	for i := 0; i < deviceMutateRetries; i++ {
		err := s.rdb.Watch(ctx, transition, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return err
		}
		return nil
	}
	return fmt.Errorf("rampart: update device %s: too many conflicting writes", deviceID)
}
