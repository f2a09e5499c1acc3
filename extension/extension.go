// Package extension provides a Forge extension entry point for Rampart.
package extension

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/xraph/forge"
	"github.com/xraph/vessel"

	"github.com/xraph/rampart"
	"github.com/xraph/rampart/api"
	"github.com/xraph/rampart/plugin"
	"github.com/xraph/rampart/store"
)

// ExtensionName is the name registered with Forge.
const ExtensionName = "rampart"

// ExtensionDescription is the human-readable description.
const ExtensionDescription = "Adaptive authentication defense (rate limiting, lockout escalation, zero-trust access)"

// ExtensionVersion is the semantic version.
const ExtensionVersion = "0.1.0"

// Ensure Extension implements forge.Extension at compile time.
var _ forge.Extension = (*Extension)(nil)

// Extension adapts Rampart as a Forge extension. It builds the rate
// limiter and the access engine from one shared option set so both
// sides see the same store, cache, plugins, and config.
type Extension struct {
	config      Config
	lim         *rampart.Limiter
	eng         *rampart.Engine
	apiHandler  *api.API
	logger      *slog.Logger
	rampartOpts []rampart.Option
	plugins     []plugin.Plugin
}

// New creates a Rampart Forge extension with the given options.
func New(opts ...ExtOption) *Extension {
	e := &Extension{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name returns the extension name.
func (e *Extension) Name() string { return ExtensionName }

// Description returns the extension description.
func (e *Extension) Description() string { return ExtensionDescription }

// Version returns the extension version.
func (e *Extension) Version() string { return ExtensionVersion }

// Dependencies returns the list of extension names this extension depends on.
func (e *Extension) Dependencies() []string { return []string{} }

// Limiter returns the underlying rate limiter.
func (e *Extension) Limiter() *rampart.Limiter { return e.lim }

// Engine returns the underlying access engine.
func (e *Extension) Engine() *rampart.Engine { return e.eng }

// API returns the API handler.
func (e *Extension) API() *api.API { return e.apiHandler }

// Register implements [forge.Extension]. It initializes the limiter and
// engine, registers both in the DI container, and optionally registers
// HTTP routes.
func (e *Extension) Register(fapp forge.App) error {
	if err := e.init(fapp); err != nil {
		return err
	}

	if err := vessel.Provide(fapp.Container(), func() (*rampart.Limiter, error) {
		return e.lim, nil
	}); err != nil {
		return fmt.Errorf("rampart: register limiter in container: %w", err)
	}
	if err := vessel.Provide(fapp.Container(), func() (*rampart.Engine, error) {
		return e.eng, nil
	}); err != nil {
		return fmt.Errorf("rampart: register engine in container: %w", err)
	}

	return nil
}

func (e *Extension) init(fapp forge.App) error {
	logger := e.logger
	if logger == nil {
		logger = slog.Default()
	}

	opts := make([]rampart.Option, 0, len(e.rampartOpts)+len(e.plugins)+2)
	opts = append(opts, rampart.WithLogger(logger))

	// Try to resolve store from DI container, fall back to option-provided store.
	if s, err := forge.Inject[store.Store](fapp.Container()); err == nil {
		opts = append(opts, rampart.WithStore(s))
	}

	// Append user-provided options (may override store).
	opts = append(opts, e.rampartOpts...)

	for _, x := range e.plugins {
		opts = append(opts, rampart.WithPlugin(x))
	}

	lim, err := rampart.NewLimiter(opts...)
	if err != nil {
		return fmt.Errorf("rampart: create limiter: %w", err)
	}
	e.lim = lim

	eng, err := rampart.NewEngine(opts...)
	if err != nil {
		return fmt.Errorf("rampart: create engine: %w", err)
	}
	e.eng = eng

	e.apiHandler = api.New(lim, eng, fapp.Router())

	if !e.config.DisableRoutes {
		if err := e.apiHandler.RegisterRoutes(fapp.Router()); err != nil {
			return fmt.Errorf("rampart: register routes: %w", err)
		}
	}

	return nil
}

// Start runs migrations if enabled and begins the access engine.
func (e *Extension) Start(ctx context.Context) error {
	if e.eng == nil {
		return errors.New("rampart: extension not initialized")
	}

	if !e.config.DisableMigrate {
		s := e.eng.Store()
		if s != nil {
			if err := s.Migrate(ctx); err != nil {
				return fmt.Errorf("rampart: migration failed: %w", err)
			}
		}
	}

	return e.eng.Start(ctx)
}

// Stop gracefully shuts down the access engine and its hooks.
func (e *Extension) Stop(ctx context.Context) error {
	if e.eng == nil {
		return nil
	}
	return e.eng.Stop(ctx)
}

// Health implements [forge.Extension].
func (e *Extension) Health(ctx context.Context) error {
	if e.eng == nil {
		return errors.New("rampart: extension not initialized")
	}
	s := e.eng.Store()
	if s == nil {
		return errors.New("rampart: no store configured")
	}
	return s.Ping(ctx)
}

// Handler returns the HTTP handler for all API routes.
func (e *Extension) Handler() http.Handler {
	if e.apiHandler == nil {
		return http.NotFoundHandler()
	}
	return e.apiHandler.Handler()
}

// RegisterRoutes registers all rampart API routes into a Forge router.
func (e *Extension) RegisterRoutes(router forge.Router) error {
	if e.apiHandler != nil {
		return e.apiHandler.RegisterRoutes(router)
	}
	return nil
}
