//go:build !llama

package engine

// This file provides a no-CGO stub compiled when the 'llama' build tag is
// NOT set, keeping default builds and CI CGO-free. The real binding lives in
// llama.go (tagged 'llama'). The stub refuses to load models rather than
// mocking behavior in production binaries.

import "context"

// llamaBuilt indicates this binary was compiled with real llama support.
var llamaBuilt = false

// Config tunes the llama.cpp binding. Unused by the stub but kept so
// callers construct the engine identically in both builds.
type Config struct {
	CtxSize   int
	Threads   int
	GPULayers int
}

type stubEngine struct{}

// New returns the stub engine; Load fails fast with a typed error.
func New(Config) Engine { return stubEngine{} }

func (stubEngine) Init(ctx context.Context) error { return ctx.Err() }

func (stubEngine) Probe() Backend { return BackendSoftware }

func (stubEngine) Load(context.Context, string, func(string, int)) (Session, error) {
	return nil, ErrUnavailable("llama support not built (missing 'llama' build tag)")
}
