package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/xraph/rampart/decisionlog"
	"github.com/xraph/rampart/id"
)

func (s *Store) CreateDecisionLog(ctx context.Context, e *decisionlog.Entry) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("rampart: create decision log: %w", err)
	}
	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, logKey(e.ID.String()), payload, 0)
	pipe.ZAdd(ctx, logIndexKey, redis.Z{
		Score:  float64(e.CreatedAt.UnixMilli()),
		Member: e.ID.String(),
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("rampart: create decision log: %w", err)
	}
	return nil
}

func (s *Store) GetDecisionLog(ctx context.Context, logID id.DecisionLogID) (*decisionlog.Entry, error) {
	val, err := s.rdb.Get(ctx, logKey(logID.String())).Result()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("decision log %s: %w", logID, decisionlog.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("rampart: get decision log: %w", err)
	}
	e := new(decisionlog.Entry)
	if err := json.Unmarshal([]byte(val), e); err != nil {
		return nil, fmt.Errorf("rampart: get decision log: %w", err)
	}
	return e, nil
}

func (s *Store) ListDecisionLogs(ctx context.Context, filter *decisionlog.QueryFilter) ([]*decisionlog.Entry, error) {
	matched, err := s.matchDecisionLogs(ctx, filter)
	if err != nil {
		return nil, err
	}
	if filter != nil {
		if filter.Offset > 0 {
			if filter.Offset >= len(matched) {
				return []*decisionlog.Entry{}, nil
			}
			matched = matched[filter.Offset:]
		}
		if filter.Limit > 0 && filter.Limit < len(matched) {
			matched = matched[:filter.Limit]
		}
	}
	return matched, nil
}

func (s *Store) CountDecisionLogs(ctx context.Context, filter *decisionlog.QueryFilter) (int64, error) {
	matched, err := s.matchDecisionLogs(ctx, filter)
	if err != nil {
		return 0, err
	}
	return int64(len(matched)), nil
}

// matchDecisionLogs fetches the index window newest first, then
// narrows by the remaining filter fields client side.
func (s *Store) matchDecisionLogs(ctx context.Context, filter *decisionlog.QueryFilter) ([]*decisionlog.Entry, error) {
	window := &redis.ZRangeBy{Min: "-inf", Max: "+inf"}
	if filter != nil {
		if filter.After != nil {
			window.Min = fmt.Sprintf("(%d", filter.After.UnixMilli())
		}
		if filter.Before != nil {
			window.Max = fmt.Sprintf("(%d", filter.Before.UnixMilli())
		}
	}
	ids, err := s.rdb.ZRevRangeByScore(ctx, logIndexKey, window).Result()
	if err != nil {
		return nil, fmt.Errorf("rampart: list decision logs: %w", err)
	}
	matched := make([]*decisionlog.Entry, 0, len(ids))
	for _, logID := range ids {
		val, err := s.rdb.Get(ctx, logKey(logID)).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("rampart: list decision logs: %w", err)
		}
		e := new(decisionlog.Entry)
		if err := json.Unmarshal([]byte(val), e); err != nil {
			return nil, fmt.Errorf("rampart: list decision logs: %w", err)
		}
		if filter != nil {
			if filter.TenantID != "" && e.TenantID != filter.TenantID {
				continue
			}
			if filter.Kind != "" && e.Kind != filter.Kind {
				continue
			}
			if filter.Identity != "" && e.Identity != filter.Identity {
				continue
			}
			if filter.UserID != "" && e.UserID != filter.UserID {
				continue
			}
			if filter.DeviceID != "" && e.DeviceID != filter.DeviceID {
				continue
			}
			if filter.Allowed != nil && e.Allowed != *filter.Allowed {
				continue
			}
			if filter.Level != "" && e.Level != filter.Level {
				continue
			}
		}
		matched = append(matched, e)
	}
	return matched, nil
}

func (s *Store) PurgeDecisionLogs(ctx context.Context, before time.Time) (int64, error) {
	cutoff := fmt.Sprintf("(%d", before.UnixMilli())
	ids, err := s.rdb.ZRangeByScore(ctx, logIndexKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: cutoff,
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("rampart: purge decision logs: %w", err)
	}
	var total int64
	for _, logID := range ids {
		pipe := s.rdb.TxPipeline()
		pipe.Del(ctx, logKey(logID))
		pipe.ZRem(ctx, logIndexKey, logID)
		if _, err := pipe.Exec(ctx); err != nil {
			return total, fmt.Errorf("rampart: purge decision logs: %w", err)
		}
		total++
	}
	return total, nil
}

func (s *Store) DeleteDecisionLogsByTenant(ctx context.Context, tenantID string) error {
	ids, err := s.rdb.ZRange(ctx, logIndexKey, 0, -1).Result()
	if err != nil {
		return fmt.Errorf("rampart: delete decision logs by tenant: %w", err)
	}
	for _, logID := range ids {
		val, err := s.rdb.Get(ctx, logKey(logID)).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return fmt.Errorf("rampart: delete decision logs by tenant: %w", err)
		}
		e := new(decisionlog.Entry)
		if err := json.Unmarshal([]byte(val), e); err != nil {
			return fmt.Errorf("rampart: delete decision logs by tenant: %w", err)
		}
		if e.TenantID != tenantID {
			continue
		}
		pipe := s.rdb.TxPipeline()
		pipe.Del(ctx, logKey(logID))
		pipe.ZRem(ctx, logIndexKey, logID)
		if _, err := pipe.Exec(ctx); err != nil {
			return fmt.Errorf("rampart: delete decision logs by tenant: %w", err)
		}
	}
	return nil
}
