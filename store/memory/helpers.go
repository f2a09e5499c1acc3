package memory

import (
	"sort"

	"github.com/xraph/rampart/decisionlog"
	"github.com/xraph/rampart/device"
)

// copyDevice deep-copies a device trust record so callers never share
// slices with the store's internal state.
func copyDevice(t *device.Trust) *device.Trust {
	tc := *t
	if len(t.RiskFactors) > 0 {
		tc.RiskFactors = make([]device.RiskFactor, len(t.RiskFactors))
		copy(tc.RiskFactors, t.RiskFactors)
	}
	if len(t.History) > 0 {
		tc.History = make([]device.VerificationEvent, len(t.History))
		copy(tc.History, t.History)
	}
	return &tc
}

func applyPagination(list []*device.Trust, filter *device.ListFilter) []*device.Trust {
	sort.Slice(list, func(i, j int) bool {
		return list[i].CreatedAt.Before(list[j].CreatedAt)
	})
	if filter == nil {
		return list
	}
	if filter.Offset > 0 {
		if filter.Offset >= len(list) {
			return nil
		}
		list = list[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(list) {
		list = list[:filter.Limit]
	}
	return list
}

func sortDecisionLogs(list []*decisionlog.Entry) {
	// Newest first, matching the SQL stores' ORDER BY created_at DESC.
	sort.Slice(list, func(i, j int) bool {
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})
}

func applyLogPagination(list []*decisionlog.Entry, filter *decisionlog.QueryFilter) []*decisionlog.Entry {
	if filter == nil {
		return list
	}
	if filter.Offset > 0 {
		if filter.Offset >= len(list) {
			return nil
		}
		list = list[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(list) {
		list = list[:filter.Limit]
	}
	return list
}
