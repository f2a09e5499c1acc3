// Package api provides HTTP handlers for the Rampart defense engine.
package api

import (
	"net/http"

	"github.com/xraph/forge"

	"github.com/xraph/rampart"
)

// API wires all Rampart HTTP handlers together.
type API struct {
	lim    *rampart.Limiter
	eng    *rampart.Engine
	router forge.Router
}

// New creates an API from a Limiter, an Engine, and a Forge router.
func New(lim *rampart.Limiter, eng *rampart.Engine, router forge.Router) *API {
	return &API{lim: lim, eng: eng, router: router}
}

// Handler returns the fully assembled http.Handler with all routes.
func (a *API) Handler() http.Handler {
	if a.router == nil {
		a.router = forge.NewRouter()
	}
	if err := a.RegisterRoutes(a.router); err != nil {
		panic("rampart: register routes: " + err.Error())
	}
	return a.router.Handler()
}

// RegisterRoutes registers all API routes into the given Forge router.
func (a *API) RegisterRoutes(router forge.Router) error {
	registerers := []func(forge.Router) error{
		a.registerRateLimitRoutes,
		a.registerAccessRoutes,
		a.registerDeviceRoutes,
		a.registerDecisionLogRoutes,
	}
	for _, fn := range registerers {
		if err := fn(router); err != nil {
			return err
		}
	}
	return nil
}
