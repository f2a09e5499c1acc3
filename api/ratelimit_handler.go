package api

import (
	"net/http"
	"time"

	"github.com/xraph/forge"

	"github.com/xraph/rampart"
)

func (a *API) registerRateLimitRoutes(router forge.Router) error {
	g := router.Group("/v1/ratelimit", forge.WithGroupTags("rate-limit"))

	if err := g.POST("/check", a.rateCheck,
		forge.WithSummary("Rate limit check"),
		forge.WithDescription("Evaluates the client's escalation tier without recording an attempt."),
		forge.WithOperationID("rateLimitCheck"),
		forge.WithRequestSchema(RateCheckRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Check result", RateCheckResponse{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.POST("/enforce", a.rateEnforce,
		forge.WithSummary("Enforce rate limit"),
		forge.WithDescription("Returns 200 if the client may proceed, 429 if throttled."),
		forge.WithOperationID("rateLimitEnforce"),
		forge.WithRequestSchema(RateCheckRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Allowed", RateCheckResponse{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.POST("/attempts", a.recordAttempt,
		forge.WithSummary("Record authentication outcome"),
		forge.WithDescription("Records a finished authentication attempt against the client's ledger."),
		forge.WithOperationID("recordAttempt"),
		forge.WithRequestSchema(RecordAttemptRequest{}),
		forge.WithNoContentResponse(),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	return g.POST("/prune", a.pruneAttempts,
		forge.WithSummary("Prune expired attempts"),
		forge.WithDescription("Removes attempt records older than the episode window."),
		forge.WithOperationID("pruneAttempts"),
		forge.WithResponseSchema(http.StatusOK, "Prune result", PruneResponse{}),
		forge.WithErrorResponses(),
	)
}

func (a *API) rateCheck(ctx forge.Context, req *RateCheckRequest) (*RateCheckResponse, error) {
	if req.RemoteAddr == "" {
		return nil, forge.BadRequest("remote_addr is required")
	}

	decision, err := a.lim.CheckRequest(ctx.Context(), toRequestInfo(req.RemoteAddr, req.UserAgent))
	if err != nil {
		return nil, mapError(err)
	}

	resp := toRateCheckResponse(decision)
	return resp, ctx.JSON(http.StatusOK, resp)
}

func (a *API) rateEnforce(ctx forge.Context, req *RateCheckRequest) (*RateCheckResponse, error) {
	if req.RemoteAddr == "" {
		return nil, forge.BadRequest("remote_addr is required")
	}

	decision, err := a.lim.CheckRequest(ctx.Context(), toRequestInfo(req.RemoteAddr, req.UserAgent))
	if err != nil {
		return nil, mapError(err)
	}

	resp := toRateCheckResponse(decision)
	if !decision.Allowed {
		ctx.SetHeader("Retry-After", retryAfterHeader(decision.RetryAfterSeconds))
		return resp, ctx.JSON(http.StatusTooManyRequests, resp)
	}
	return resp, ctx.JSON(http.StatusOK, resp)
}

func (a *API) recordAttempt(ctx forge.Context, req *RecordAttemptRequest) (*struct{}, error) {
	if req.RemoteAddr == "" {
		return nil, forge.BadRequest("remote_addr is required")
	}

	identity, err := rampart.ResolveIdentity(toRequestInfo(req.RemoteAddr, req.UserAgent))
	if err != nil {
		return nil, mapError(err)
	}
	if err := a.lim.RecordResult(ctx.Context(), identity, req.Success); err != nil {
		return nil, mapError(err)
	}
	return nil, ctx.NoContent(http.StatusNoContent)
}

func (a *API) pruneAttempts(ctx forge.Context, _ *struct{}) (*PruneResponse, error) {
	removed, err := a.lim.Prune(ctx.Context())
	if err != nil {
		return nil, mapError(err)
	}

	resp := &PruneResponse{Removed: removed}
	return resp, ctx.JSON(http.StatusOK, resp)
}

func toRequestInfo(remoteAddr, userAgent string) rampart.RequestInfo {
	return rampart.RequestInfo{
		RemoteAddr: remoteAddr,
		UserAgent:  userAgent,
		At:         time.Now().UTC(),
	}
}

func toRateCheckResponse(d *rampart.RateLimitDecision) *RateCheckResponse {
	return &RateCheckResponse{
		Allowed:           d.Allowed,
		RetryAfterSeconds: d.RetryAfterSeconds,
		Level:             d.Level.String(),
		FailureCount:      d.FailureCount,
		EvalTimeNs:        d.EvalTimeNs,
	}
}
