// Package middleware provides HTTP defense middleware for Rampart.
package middleware

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/xraph/forge"

	"github.com/xraph/rampart"
)

// RequestInfoFunc extracts the transport-level request descriptor the
// limiter derives an identity from. The transport layer owns the
// remote address, so callers supply the extractor.
type RequestInfoFunc func(ctx forge.Context) rampart.RequestInfo

// AccessContextFunc builds the access context for one request.
type AccessContextFunc func(ctx forge.Context) *rampart.AccessContext

// RateLimit throttles authentication endpoints. Identities past the
// lockout threshold get a 429 with a Retry-After header; elevated
// identities pass through after the progressive delay.
func RateLimit(lim *rampart.Limiter, info RequestInfoFunc) forge.Middleware {
	return func(next forge.Handler) forge.Handler {
		return func(ctx forge.Context) error {
			identity, err := rampart.ResolveIdentity(info(ctx))
			if err != nil {
				return rateLimitResponse(ctx, lim.Response("invalid request", 0, rampart.LevelLocked))
			}

			decision, err := lim.Check(ctx.Context(), identity)
			if err != nil || !decision.Allowed {
				return rateLimitResponse(ctx, lim.Response("too many attempts",
					decision.RetryAfterSeconds, decision.Level))
			}

			// Delay runs before the handler so elevated identities pay
			// the same cost on every path through the endpoint.
			if err := lim.ApplyDelay(ctx.Context(), identity); err != nil {
				return err
			}
			return next(ctx)
		}
	}
}

// RequireTrust enforces a zero-trust access decision. Denied requests
// get a 403; allowed requests with outstanding step-up verifications
// carry them in the X-Required-Verifications header for the auth layer
// to act on.
func RequireTrust(eng *rampart.Engine, build AccessContextFunc) forge.Middleware {
	return func(next forge.Handler) forge.Handler {
		return func(ctx forge.Context) error {
			access := build(ctx)
			if access != nil && access.UserID == "" {
				access.UserID = resolveUser(ctx)
			}
			if access != nil && access.Timestamp.IsZero() {
				access.Timestamp = time.Now().UTC()
			}

			decision, err := eng.Evaluate(ctx.Context(), access)
			if err != nil || !decision.Allowed {
				return accessDeniedResponse(ctx, decision)
			}
			if len(decision.RequiredVerifications) > 0 {
				ctx.SetHeader("X-Required-Verifications", joinVerifications(decision.RequiredVerifications))
			}
			return next(ctx)
		}
	}
}

// resolveUser extracts the user from context, falling back to
// "anonymous" when no Forge user ID is set.
func resolveUser(ctx forge.Context) string {
	if userID := forge.UserIDFromContext(ctx.Context()); userID != "" {
		return userID
	}
	return "anonymous"
}

func joinVerifications(kinds []rampart.VerificationKind) string {
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = string(k)
	}
	return strings.Join(names, ",")
}

func rateLimitResponse(ctx forge.Context, resp *rampart.RateLimitResponse) error {
	ctx.SetHeader("Content-Type", "application/json")
	if resp.RetryAfterSeconds > 0 {
		ctx.SetHeader("Retry-After", strconv.Itoa(resp.RetryAfterSeconds))
	}
	ctx.Response().WriteHeader(429)
	return json.NewEncoder(ctx.Response()).Encode(resp)
}

func accessDeniedResponse(ctx forge.Context, decision *rampart.AccessDecision) error {
	ctx.SetHeader("Content-Type", "application/json")
	ctx.Response().WriteHeader(403)
	return json.NewEncoder(ctx.Response()).Encode(map[string]any{
		"error":                  "access denied",
		"risk_level":             decision.RiskLevel,
		"required_verifications": decision.RequiredVerifications,
	})
}
