package coordinator

import (
	"time"

	"github.com/rs/zerolog"

	"inferd/internal/engine"
	"inferd/pkg/types"
)

// defaultDrainTimeout bounds how long Unload waits for an in-flight
// generation to reach its terminal event after the abort flag is set.
const defaultDrainTimeout = 10 * time.Second

// EngineFactory constructs one engine binding per worker. A factory error is
// a construction failure: the requesting InitModel call fails and no
// registry entry is left behind.
type EngineFactory func() (engine.Engine, error)

// Config encapsulates all tunables for Coordinator construction.
type Config struct {
	Registry     []types.Model
	DefaultModel string
	DrainTimeout time.Duration
	NewEngine    EngineFactory
	Publisher    EventPublisher
	Logger       zerolog.Logger
}
