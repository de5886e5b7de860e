package glue

import (
	"log/slog"

	"github.com/xingh/glue/internal/schema"
	"github.com/xingh/glue/internal/utils"
)

// Options configure a Provider.
type Options struct {
	// Logger receives generated SQL, cache activity and unit-of-work events at debug
	// level. Defaults to slog.Default().
	Logger *slog.Logger
	// Debug includes the SQL template in Error messages.
	Debug bool
	// Bus, when set, publishes cache invalidations to other processes.
	Bus InvalidationBus
}

// Option mutates Options.
type Option func(*Options)

// WithLogger sets the provider logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Options) { o.Logger = logger }
}

// WithDebug includes SQL text in error messages.
func WithDebug(debug bool) Option {
	return func(o *Options) { o.Debug = debug }
}

// WithBus publishes invalidations through bus.
func WithBus(bus InvalidationBus) Option {
	return func(o *Options) { o.Bus = bus }
}

// EntityOption overrides mapping metadata discovered from a type.
type EntityOption = schema.Option

// WithTable maps an entity to the named table or view.
func WithTable(name string) EntityOption {
	return schema.WithTable(name)
}

// WithCache turns the full-table snapshot cache on or off for an entity.
func WithCache(cached bool) EntityOption {
	return schema.WithCache(cached)
}

// OrderedMap is the insertion-ordered map returned by Map.
type OrderedMap[K comparable, V any] = utils.OrderedMap[K, V]
