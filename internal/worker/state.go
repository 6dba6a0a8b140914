package worker

// State is the lifecycle state of a worker.
type State string

const (
	StateUninitialized State = "uninitialized"
	StateLoadingEngine State = "loading-engine"
	StateLoadingModel  State = "loading-model"
	StateReady         State = "ready"
	StateGenerating    State = "generating"
	StateUnloaded      State = "unloaded"
	StateFailed        State = "failed"
)

// Loading reports whether s is one of the load-phase states.
func (s State) Loading() bool {
	return s == StateUninitialized || s == StateLoadingEngine || s == StateLoadingModel
}

// Terminal reports whether the worker can make no further transitions.
// A failed or unloaded worker must be discarded; retry means a fresh worker.
func (s State) Terminal() bool {
	return s == StateUnloaded || s == StateFailed
}
