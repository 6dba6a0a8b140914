package coordinator

import (
	"context"
	"sync"
	"testing"
	"time"

	"inferd/internal/engine"
	"inferd/pkg/types"
)

// fakeEngine is a lightweight in-memory engine used for tests.
type fakeEngine struct {
	mu      sync.Mutex
	initErr error
	loadErr error
	backend engine.Backend
	session *fakeSession

	// loadGate, when non-nil, blocks Load until the channel is closed.
	loadGate chan struct{}
}

func (f *fakeEngine) Init(ctx context.Context) error { return f.initErr }

func (f *fakeEngine) Probe() engine.Backend {
	if f.backend == "" {
		return engine.BackendSoftware
	}
	return f.backend
}

func (f *fakeEngine) Load(ctx context.Context, modelPath string, progress func(string, int)) (engine.Session, error) {
	if f.loadGate != nil {
		<-f.loadGate
	}
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	if progress != nil {
		progress(modelPath, 100)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.session == nil {
		f.session = &fakeSession{}
	}
	return f.session, nil
}

// fakeSession streams its configured tokens, or produces tokens until
// aborted when endless is set.
type fakeSession struct {
	mu      sync.Mutex
	tokens  []string
	genErr  error
	final   engine.Result
	endless bool
	started chan struct{}
}

func (s *fakeSession) Generate(ctx context.Context, params engine.Params, onToken func(string) error) (engine.Result, error) {
	s.mu.Lock()
	genErr := s.genErr
	endless := s.endless
	started := s.started
	tokens := s.tokens
	final := s.final
	s.mu.Unlock()

	if genErr != nil {
		return engine.Result{}, genErr
	}
	if endless {
		first := true
		for {
			if err := onToken("tok "); err != nil {
				return engine.Result{}, err
			}
			if first {
				first = false
				if started != nil {
					close(started)
				}
			}
			time.Sleep(time.Millisecond)
		}
	}
	for _, tok := range tokens {
		if err := onToken(tok); err != nil {
			return engine.Result{}, err
		}
	}
	return final, nil
}

func (s *fakeSession) Close() error { return nil }

func (s *fakeSession) set(fn func(*fakeSession)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s)
}

// newTestCoordinator wires a Coordinator around a single fake engine. The
// factory counts constructions so tests can assert worker reuse.
func newTestCoordinator(eng *fakeEngine, models ...types.Model) (*Coordinator, *int) {
	if len(models) == 0 {
		models = []types.Model{{ID: "m1", Name: "M1", Path: "m1.gguf"}}
	}
	var mu sync.Mutex
	constructed := 0
	c := New(Config{
		Registry:     models,
		DefaultModel: models[0].ID,
		DrainTimeout: 2 * time.Second,
		NewEngine: func() (engine.Engine, error) {
			mu.Lock()
			constructed++
			mu.Unlock()
			return eng, nil
		},
		Publisher: NewMemoryPublisher(),
	})
	return c, &constructed
}

func validRequest() types.GenerateRequest {
	return types.GenerateRequest{
		Messages:    []types.ChatMessage{{Role: types.RoleUser, Content: "hi"}},
		Temperature: 0.7,
		MaxTokens:   64,
	}
}

func mustInit(t *testing.T, c *Coordinator, id string) {
	t.Helper()
	if err := c.InitModel(context.Background(), id); err != nil {
		t.Fatalf("InitModel(%s): %v", id, err)
	}
}
