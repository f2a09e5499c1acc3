package api

import (
	"fmt"
	"net/http"

	"github.com/xraph/forge"

	"github.com/xraph/rampart"
	"github.com/xraph/rampart/device"
	"github.com/xraph/rampart/id"
)

func (a *API) registerDeviceRoutes(router forge.Router) error {
	g := router.Group("/v1", forge.WithGroupTags("devices"))

	if err := g.POST("/devices", a.registerDevice,
		forge.WithSummary("Register device"),
		forge.WithDescription("Registers a device with the neutral initial trust score."),
		forge.WithOperationID("registerDevice"),
		forge.WithRequestSchema(RegisterDeviceRequest{}),
		forge.WithCreatedResponse(&device.Trust{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.GET("/devices/:deviceId", a.getDevice,
		forge.WithSummary("Get device"),
		forge.WithDescription("Returns a device trust record."),
		forge.WithOperationID("getDevice"),
		forge.WithResponseSchema(http.StatusOK, "Device trust record", &device.Trust{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.GET("/devices", a.listDevices,
		forge.WithSummary("List devices"),
		forge.WithDescription("Lists device trust records with optional filters."),
		forge.WithOperationID("listDevices"),
		forge.WithRequestSchema(ListDevicesRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Device list", []*device.Trust{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.POST("/devices/:deviceId/verifications", a.recordVerification,
		forge.WithSummary("Record verification"),
		forge.WithDescription("Records a completed step-up verification for a device."),
		forge.WithOperationID("recordVerification"),
		forge.WithRequestSchema(RecordVerificationRequest{}),
		forge.WithNoContentResponse(),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.POST("/devices/:deviceId/quarantine", a.quarantineDevice,
		forge.WithSummary("Quarantine device"),
		forge.WithDescription("Quarantines a device until it is re-verified and released."),
		forge.WithOperationID("quarantineDevice"),
		forge.WithRequestSchema(DeviceTransitionRequest{}),
		forge.WithNoContentResponse(),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.POST("/devices/:deviceId/release", a.releaseDevice,
		forge.WithSummary("Release device"),
		forge.WithDescription("Clears a device's quarantine flag. The compromise flag stays set."),
		forge.WithOperationID("releaseDevice"),
		forge.WithNoContentResponse(),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	return g.POST("/devices/:deviceId/compromise", a.compromiseDevice,
		forge.WithSummary("Mark device compromised"),
		forge.WithDescription("Sets the sticky compromise flag on a device."),
		forge.WithOperationID("compromiseDevice"),
		forge.WithRequestSchema(DeviceTransitionRequest{}),
		forge.WithNoContentResponse(),
		forge.WithErrorResponses(),
	)
}

func (a *API) registerDevice(ctx forge.Context, req *RegisterDeviceRequest) (*device.Trust, error) {
	if req.Fingerprint == "" {
		return nil, forge.BadRequest("fingerprint is required")
	}

	t, err := a.eng.RegisterDevice(ctx.Context(), req.UserID, req.Fingerprint)
	if err != nil {
		return nil, mapError(err)
	}

	return t, ctx.JSON(http.StatusCreated, t)
}

func (a *API) getDevice(ctx forge.Context, _ *GetDeviceRequest) (*device.Trust, error) {
	deviceID, err := parseDeviceID(ctx)
	if err != nil {
		return nil, err
	}

	t, err := a.eng.Store().GetDevice(ctx.Context(), deviceID)
	if err != nil {
		return nil, mapError(err)
	}

	return t, ctx.JSON(http.StatusOK, t)
}

func (a *API) listDevices(ctx forge.Context, req *ListDevicesRequest) ([]*device.Trust, error) {
	quarantined, err := parseBoolFilter(req.Quarantined)
	if err != nil {
		return nil, forge.BadRequest("invalid quarantined filter")
	}
	compromised, err := parseBoolFilter(req.Compromised)
	if err != nil {
		return nil, forge.BadRequest("invalid compromised filter")
	}

	filter := &device.ListFilter{
		TenantID:      rampart.TenantFromContext(ctx.Context()),
		UserID:        req.UserID,
		IsQuarantined: quarantined,
		IsCompromised: compromised,
		Limit:         defaultLimit(req.Limit),
		Offset:        req.Offset,
	}

	devices, err := a.eng.Store().ListDevices(ctx.Context(), filter)
	if err != nil {
		return nil, mapError(err)
	}

	return devices, ctx.JSON(http.StatusOK, devices)
}

func (a *API) recordVerification(ctx forge.Context, req *RecordVerificationRequest) (*struct{}, error) {
	deviceID, err := parseDeviceID(ctx)
	if err != nil {
		return nil, err
	}
	if req.Kind == "" {
		return nil, forge.BadRequest("kind is required")
	}

	err = a.eng.RecordVerification(ctx.Context(), deviceID, rampart.VerificationKind(req.Kind), req.Succeeded)
	if err != nil {
		return nil, mapError(err)
	}
	return nil, ctx.NoContent(http.StatusNoContent)
}

func (a *API) quarantineDevice(ctx forge.Context, req *DeviceTransitionRequest) (*struct{}, error) {
	deviceID, err := parseDeviceID(ctx)
	if err != nil {
		return nil, err
	}

	if err := a.eng.QuarantineDevice(ctx.Context(), deviceID, req.Reason); err != nil {
		return nil, mapError(err)
	}
	return nil, ctx.NoContent(http.StatusNoContent)
}

func (a *API) releaseDevice(ctx forge.Context, _ *struct{}) (*struct{}, error) {
	deviceID, err := parseDeviceID(ctx)
	if err != nil {
		return nil, err
	}

	if err := a.eng.ReleaseDevice(ctx.Context(), deviceID); err != nil {
		return nil, mapError(err)
	}
	return nil, ctx.NoContent(http.StatusNoContent)
}

func (a *API) compromiseDevice(ctx forge.Context, req *DeviceTransitionRequest) (*struct{}, error) {
	deviceID, err := parseDeviceID(ctx)
	if err != nil {
		return nil, err
	}

	if err := a.eng.MarkDeviceCompromised(ctx.Context(), deviceID, req.Reason); err != nil {
		return nil, mapError(err)
	}
	return nil, ctx.NoContent(http.StatusNoContent)
}

func parseDeviceID(ctx forge.Context) (string, error) {
	did, err := id.ParseDeviceID(ctx.Param("deviceId"))
	if err != nil {
		return "", forge.BadRequest(fmt.Sprintf("invalid device ID: %v", err))
	}
	return did.String(), nil
}
