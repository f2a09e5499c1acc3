package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/xraph/forge"

	"github.com/xraph/rampart"
)

func (a *API) registerAccessRoutes(router forge.Router) error {
	g := router.Group("/v1/access", forge.WithGroupTags("access"))

	if err := g.POST("/evaluate", a.evaluate,
		forge.WithSummary("Evaluate access"),
		forge.WithDescription("Runs the zero-trust decision for one access request."),
		forge.WithOperationID("evaluateAccess"),
		forge.WithRequestSchema(EvaluateRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Access decision", EvaluateResponse{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.POST("/enforce", a.enforceAccess,
		forge.WithSummary("Enforce access"),
		forge.WithDescription("Returns 200 if allowed, 403 if denied."),
		forge.WithOperationID("enforceAccess"),
		forge.WithRequestSchema(EvaluateRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Allowed", EvaluateResponse{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	return g.POST("/trust", a.aggregateTrust,
		forge.WithSummary("Aggregate trust signals"),
		forge.WithDescription("Combines raw trust signals into a weighted overall score."),
		forge.WithOperationID("aggregateTrust"),
		forge.WithRequestSchema(AggregateTrustRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Trust score", TrustScoreResponse{}),
		forge.WithErrorResponses(),
	)
}

func (a *API) evaluate(ctx forge.Context, req *EvaluateRequest) (*EvaluateResponse, error) {
	access, err := a.toAccessContext(req)
	if err != nil {
		return nil, err
	}

	decision, err := a.eng.Evaluate(ctx.Context(), access)
	if err != nil && decision == nil {
		return nil, mapError(err)
	}

	resp := toEvaluateResponse(decision)
	return resp, ctx.JSON(http.StatusOK, resp)
}

func (a *API) enforceAccess(ctx forge.Context, req *EvaluateRequest) (*EvaluateResponse, error) {
	access, err := a.toAccessContext(req)
	if err != nil {
		return nil, err
	}

	decision, err := a.eng.Evaluate(ctx.Context(), access)
	if err != nil && decision == nil {
		return nil, mapError(err)
	}

	resp := toEvaluateResponse(decision)
	if !decision.Allowed {
		return resp, ctx.JSON(http.StatusForbidden, resp)
	}
	return resp, ctx.JSON(http.StatusOK, resp)
}

func (a *API) aggregateTrust(ctx forge.Context, req *AggregateTrustRequest) (*TrustScoreResponse, error) {
	score := a.eng.AggregateTrust(toTrustSignals(&req.Signals))

	resp := &TrustScoreResponse{
		Overall:     score.Overall,
		Identity:    score.Identity,
		Device:      score.Device,
		Behavior:    score.Behavior,
		Network:     score.Network,
		Location:    score.Location,
		LastUpdated: score.LastUpdated.Format(time.RFC3339),
	}
	return resp, ctx.JSON(http.StatusOK, resp)
}

func (a *API) toAccessContext(req *EvaluateRequest) (*rampart.AccessContext, error) {
	if req.UserID == "" {
		return nil, forge.BadRequest("user_id is required")
	}
	if req.Resource == "" || req.Action == "" {
		return nil, forge.BadRequest("resource and action are required")
	}
	if req.Trust == nil && req.Signals == nil {
		return nil, forge.BadRequest("trust or signals is required")
	}

	access := &rampart.AccessContext{
		UserID:    req.UserID,
		SessionID: req.SessionID,
		DeviceID:  req.DeviceID,
		Resource:  req.Resource,
		Action:    req.Action,
		Timestamp: time.Now().UTC(),
	}

	if req.RiskLevel != "" {
		risk, err := rampart.ParseRiskLevel(req.RiskLevel)
		if err != nil {
			return nil, forge.BadRequest(fmt.Sprintf("invalid risk_level: %v", err))
		}
		access.RiskLevel = risk
	}

	if req.Trust != nil {
		trust := rampart.TrustScore{
			Overall:  req.Trust.Overall,
			Identity: req.Trust.Identity,
			Device:   req.Trust.Device,
			Behavior: req.Trust.Behavior,
			Network:  req.Trust.Network,
			Location: req.Trust.Location,
		}
		if req.Trust.LastUpdated != "" {
			t, err := time.Parse(time.RFC3339, req.Trust.LastUpdated)
			if err != nil {
				return nil, forge.BadRequest("invalid trust.last_updated timestamp")
			}
			trust.LastUpdated = t
		}
		access.Trust = trust
	} else {
		access.Trust = a.eng.AggregateTrust(toTrustSignals(req.Signals))
	}

	return access, nil
}

func toTrustSignals(s *TrustSignals) rampart.TrustSignals {
	if s == nil {
		return rampart.TrustSignals{}
	}
	return rampart.TrustSignals{
		Identity: s.Identity,
		Device:   s.Device,
		Behavior: s.Behavior,
		Network:  s.Network,
		Location: s.Location,
	}
}

func toEvaluateResponse(d *rampart.AccessDecision) *EvaluateResponse {
	resp := &EvaluateResponse{
		Allowed:    d.Allowed,
		RiskLevel:  d.RiskLevel.String(),
		Reason:     d.Reason,
		EvalTimeNs: d.EvalTimeNs,
	}
	for _, v := range d.RequiredVerifications {
		resp.RequiredVerifications = append(resp.RequiredVerifications, string(v))
	}
	return resp
}
