package rampart

import (
	"log/slog"
	"time"

	"github.com/xraph/rampart/plugin"
	"github.com/xraph/rampart/store"
)

// settings is the shared construction state for the Limiter and the
// Engine. Both accept the same options so a deployment can configure
// them from one place.
type settings struct {
	store   store.Store
	cache   Cache
	plugins *plugin.Registry
	logger  *slog.Logger
	config  Config
	now     func() time.Time
}

func defaultSettings() settings {
	return settings{
		logger: slog.Default(),
		config: DefaultConfig(),
		now:    time.Now,
	}
}

// Option is a functional option for the Limiter and the Engine.
type Option func(*settings)

// WithStore sets the composite store.
func WithStore(s store.Store) Option { return func(st *settings) { st.store = s } }

// WithCache sets the access decision cache.
func WithCache(c Cache) Option { return func(st *settings) { st.cache = c } }

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option { return func(st *settings) { st.logger = l } }

// WithConfig sets the configuration.
func WithConfig(c Config) Option { return func(st *settings) { st.config = c } }

// WithPlugin registers a plugin.
func WithPlugin(x plugin.Plugin) Option {
	return func(st *settings) {
		if st.plugins == nil {
			st.plugins = plugin.NewRegistry(st.logger)
		}
		st.plugins.Register(x)
	}
}

// WithNow overrides the clock. Intended for tests.
func WithNow(now func() time.Time) Option { return func(st *settings) { st.now = now } }
