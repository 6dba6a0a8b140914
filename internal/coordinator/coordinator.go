// Package coordinator routes commands and events between callers and model
// workers. One Coordinator instance owns the task registry (task id ->
// worker handle); there is no package-level state. Each handle carries at
// most one in-flight generation, a one-slot listener rather than a
// subscriber list, and a dedicated route goroutine that delivers worker
// events to callbacks in arrival order.
package coordinator

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"inferd/internal/engine"
	"inferd/internal/worker"
	"inferd/pkg/types"
)

// Coordinator creates and destroys workers, demultiplexes their event
// streams, and exposes a blocking generation API with progress callbacks.
type Coordinator struct {
	mu      sync.Mutex
	workers map[string]*handle

	registry     []types.Model
	defaultModel string
	drainTimeout time.Duration

	newEngine EngineFactory
	publisher EventPublisher
	log       zerolog.Logger
}

// handle is the registry entry for one worker slot. It is owned exclusively
// by the coordinator; all fields below the worker pointer are guarded by
// Coordinator.mu and written by the route goroutine.
type handle struct {
	id        string
	w         *worker.Worker
	createdAt time.Time

	state   worker.State
	backend engine.Backend

	// Load outcome. readyCh is closed exactly once when the load resolves,
	// letting concurrent InitModel calls join one in-flight outcome.
	readyCh  chan struct{}
	loadDone bool
	loadErr  error

	// One-slot current listener: the single in-flight generation.
	gen *generation

	// pong delivery for Ping.
	pongCh chan worker.Event

	// routeDone is closed when the route goroutine drains the last event.
	routeDone chan struct{}
}

// New constructs a Coordinator from Config, applying package defaults.
func New(cfg Config) *Coordinator {
	c := &Coordinator{
		workers:      make(map[string]*handle),
		registry:     cfg.Registry,
		defaultModel: cfg.DefaultModel,
		drainTimeout: cfg.DrainTimeout,
		newEngine:    cfg.NewEngine,
		publisher:    cfg.Publisher,
		log:          cfg.Logger,
	}
	if c.drainTimeout <= 0 {
		c.drainTimeout = defaultDrainTimeout
	}
	if c.newEngine == nil {
		c.newEngine = func() (engine.Engine, error) { return engine.New(engine.Config{}), nil }
	}
	if c.publisher == nil {
		c.publisher = noopPublisher{}
	}
	return c
}

// DefaultModel returns the model id used when a request omits one.
func (c *Coordinator) DefaultModel() string { return c.defaultModel }

// ListModels returns a copy of the model registry.
func (c *Coordinator) ListModels() []types.Model {
	out := make([]types.Model, len(c.registry))
	copy(out, c.registry)
	return out
}

// IsReady reports whether the task id has a worker in ready or generating
// state (a generating worker is loaded, just busy).
func (c *Coordinator) IsReady(taskID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	h := c.workers[taskID]
	return h != nil && (h.state == worker.StateReady || h.state == worker.StateGenerating)
}

// IsLoading reports whether the task id has a worker still loading.
func (c *Coordinator) IsLoading(taskID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	h := c.workers[taskID]
	return h != nil && h.state.Loading()
}

// getModelByID finds a model in the registry.
func (c *Coordinator) getModelByID(id string) (types.Model, bool) {
	for _, mdl := range c.registry {
		if mdl.ID == id {
			return mdl, true
		}
	}
	return types.Model{}, false
}
