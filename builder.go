package sessionkit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/portalkit/sessionkit/store"
)

// Builder assembles a [Manager]. Construction is allocation-only until Build,
// which validates the configuration and attempts a session restore from the
// given store.
//
// Builder instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Builder struct {
	config Config

	api          AuthAPI
	store        store.Store
	auditSink    AuditSink
	clock        func() time.Time
	onSessionEnd func(EndReason)

	built bool
}

// New returns a Builder carrying the default configuration.
//
// New does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the whole configuration.
//
// WithConfig does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithAPI sets the authentication-endpoint client. Required.
//
// WithAPI does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithAPI(api AuthAPI) *Builder {
	b.api = api
	return b
}

// WithStore sets the persistent session store. Required.
//
// WithStore does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithStore(s store.Store) *Builder {
	b.store = s
	return b
}

// WithAuditSink sets the destination for audit events.
//
// WithAuditSink does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithClock overrides the time source. Tests use this to pin expiry math.
//
// WithClock does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithClock(clock func() time.Time) *Builder {
	b.clock = clock
	return b
}

// WithOnSessionEnd registers a callback invoked after any session teardown
// (logout, forced logout, rejected refresh), outside the state lock. UIs use
// it to redirect to a public view.
//
// WithOnSessionEnd does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithOnSessionEnd(fn func(EndReason)) *Builder {
	b.onSessionEnd = fn
	return b
}

// WithMetricsEnabled toggles the counter set.
//
// WithMetricsEnabled does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the refresh-latency histogram.
//
// WithLatencyHistograms does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration, constructs the Manager, and restores
// any persisted session. Restore failures degrade to a logged-out Manager;
// they never fail the build.
//
// Build may return an error when input validation, dependency calls, or security checks fail.
// Build does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) Build() (*Manager, error) {
	if b.built {
		return nil, ErrBuilderUsed
	}
	b.built = true

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if b.api == nil {
		return nil, errors.New("auth api required")
	}
	if b.store == nil {
		return nil, errors.New("session store required")
	}

	clock := b.clock
	if clock == nil {
		clock = time.Now
	}

	m := &Manager{
		config:       cfg,
		api:          b.api,
		store:        b.store,
		audit:        newAuditDispatcher(cfg.Audit, b.auditSink),
		metrics:      NewMetrics(cfg.Metrics),
		now:          clock,
		instanceID:   uuid.NewString(),
		onSessionEnd: b.onSessionEnd,
	}

	m.restore(context.Background())

	return m, nil
}
