package api

import (
	"errors"
	"strconv"

	"github.com/xraph/forge"

	"github.com/xraph/rampart"
	"github.com/xraph/rampart/decisionlog"
	"github.com/xraph/rampart/device"
)

// mapError maps domain errors to Forge HTTP errors.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if isNotFound(err) {
		return forge.NotFound(err.Error())
	}
	if errors.Is(err, rampart.ErrInvalidInput) || errors.Is(err, rampart.ErrInvalidConfig) {
		return forge.BadRequest(err.Error())
	}
	if errors.Is(err, rampart.ErrAccessDenied) || errors.Is(err, rampart.ErrRateLimited) {
		return forge.Forbidden(err.Error())
	}
	return err
}

func isNotFound(err error) bool {
	return errors.Is(err, rampart.ErrDeviceNotFound) ||
		errors.Is(err, device.ErrNotFound) ||
		errors.Is(err, decisionlog.ErrNotFound)
}

func retryAfterHeader(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return strconv.Itoa(seconds)
}

// parseBoolFilter interprets an optional true/false query value.
func parseBoolFilter(s string) (*bool, error) {
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func defaultLimit(limit int) int {
	if limit <= 0 {
		return 50
	}
	if limit > 1000 {
		return 1000
	}
	return limit
}
