//go:build llama

package engine

import (
	"context"
	"errors"
	"strings"
	"sync"

	llama "github.com/go-skynet/go-llama.cpp"
)

// llamaBuilt indicates this binary was compiled with real llama support.
var llamaBuilt = true

// Config tunes the llama.cpp binding.
type Config struct {
	CtxSize   int
	Threads   int
	GPULayers int
}

// llamaEngine binds to go-llama.cpp. One engine per worker.
type llamaEngine struct {
	cfg      Config
	initOnce sync.Once
}

// New returns the llama.cpp-backed engine.
func New(cfg Config) Engine {
	if cfg.CtxSize <= 0 {
		cfg.CtxSize = 2048
	}
	if cfg.Threads <= 0 {
		cfg.Threads = 4
	}
	return &llamaEngine{cfg: cfg}
}

func (e *llamaEngine) Init(ctx context.Context) error {
	// llama.cpp needs no process-level setup beyond library load; the
	// once guard keeps the call idempotent if that changes.
	e.initOnce.Do(func() {})
	return ctx.Err()
}

func (e *llamaEngine) Probe() Backend {
	if e.cfg.GPULayers > 0 {
		return BackendAccelerated
	}
	return BackendSoftware
}

func (e *llamaEngine) Load(ctx context.Context, modelPath string, progress func(string, int)) (Session, error) {
	if strings.TrimSpace(modelPath) == "" {
		return nil, errors.New("model path is empty")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if progress != nil {
		progress(modelPath, 0)
	}
	opts := []llama.ModelOption{llama.SetContext(e.cfg.CtxSize)}
	if e.cfg.GPULayers > 0 {
		opts = append(opts, llama.SetGPULayers(e.cfg.GPULayers))
	}
	m, err := llama.New(modelPath, opts...)
	if err != nil {
		return nil, err
	}
	if progress != nil {
		progress(modelPath, 100)
	}
	return &llamaSession{model: m, threads: e.cfg.Threads}, nil
}

type llamaSession struct {
	model   *llama.LLama
	threads int
}

func (s *llamaSession) Generate(ctx context.Context, params Params, onToken func(string) error) (Result, error) {
	if s.model == nil {
		return Result{}, errors.New("llama model not initialized")
	}
	var cbErr error
	s.model.SetTokenCallback(func(tok string) bool {
		select {
		case <-ctx.Done():
			cbErr = ctx.Err()
			return false
		default:
		}
		if err := onToken(tok); err != nil {
			cbErr = err
			return false
		}
		return true
	})
	po := []llama.PredictOption{
		llama.SetTokens(params.MaxTokens),
		llama.SetThreads(s.threads),
		llama.SetTemperature(float32(params.Temperature)),
	}
	text, err := s.model.Predict(BuildPrompt(params), po...)
	if cbErr != nil {
		return Result{}, cbErr
	}
	if err != nil {
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		return Result{}, err
	}
	return Result{Content: text}, nil
}

func (s *llamaSession) Close() error {
	if s.model != nil {
		s.model.Free()
		s.model = nil
	}
	return nil
}
