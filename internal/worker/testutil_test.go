package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"inferd/internal/engine"
)

// fakeEngine is a lightweight in-memory engine used for tests.
type fakeEngine struct {
	mu        sync.Mutex
	initErr   error
	loadErr   error
	backend   engine.Backend
	session   *fakeSession
	initCalls int
	loadPath  string
}

func (f *fakeEngine) Init(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.initCalls++
	return f.initErr
}

func (f *fakeEngine) Probe() engine.Backend {
	if f.backend == "" {
		return engine.BackendSoftware
	}
	return f.backend
}

func (f *fakeEngine) Load(ctx context.Context, modelPath string, progress func(string, int)) (engine.Session, error) {
	f.mu.Lock()
	f.loadPath = modelPath
	f.mu.Unlock()
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	if progress != nil {
		progress(modelPath, 0)
		progress(modelPath, 50)
		progress(modelPath, 100)
	}
	if f.session == nil {
		f.session = &fakeSession{}
	}
	return f.session, nil
}

// fakeSession streams its configured tokens through onToken. When endless is
// set it produces tokens until onToken returns an error, signalling started
// after the first one so tests can abort mid-flight.
type fakeSession struct {
	tokens   []string
	genErr   error
	panicMsg string
	final    engine.Result
	endless  bool
	started  chan struct{}

	mu     sync.Mutex
	closed bool
}

func (s *fakeSession) Generate(ctx context.Context, params engine.Params, onToken func(string) error) (engine.Result, error) {
	if s.panicMsg != "" {
		panic(s.panicMsg)
	}
	if s.genErr != nil {
		return engine.Result{}, s.genErr
	}
	if s.endless {
		first := true
		for {
			if err := onToken("tok "); err != nil {
				return engine.Result{}, err
			}
			if first {
				first = false
				if s.started != nil {
					close(s.started)
				}
			}
			time.Sleep(time.Millisecond)
		}
	}
	for _, tok := range s.tokens {
		if err := onToken(tok); err != nil {
			return engine.Result{}, err
		}
	}
	return s.final, nil
}

func (s *fakeSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *fakeSession) wasClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// nextEvent reads one event or fails the test after a timeout.
func nextEvent(t *testing.T, w *Worker) Event {
	t.Helper()
	select {
	case ev, ok := <-w.Events():
		if !ok {
			t.Fatalf("event channel closed unexpectedly")
		}
		return ev
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for event")
	}
	return Event{}
}

// collectUntil reads events up to and including the first event of the given
// type, failing the test if the stream ends or times out first.
func collectUntil(t *testing.T, w *Worker, typ EventType) []Event {
	t.Helper()
	var evs []Event
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev, ok := <-w.Events():
			if !ok {
				t.Fatalf("event channel closed before %s (got %d events)", typ, len(evs))
			}
			evs = append(evs, ev)
			if ev.Type == typ {
				return evs
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s (got %d events)", typ, len(evs))
		}
	}
}

// startReadyWorker boots a worker through init and consumes the lifecycle
// events so tests begin at the ready state.
func startReadyWorker(t *testing.T, sess *fakeSession) *Worker {
	t.Helper()
	eng := &fakeEngine{session: sess}
	w := New("m1", "m1.gguf", eng, zerolog.Nop())
	if err := w.Send(Command{Type: CmdInit}); err != nil {
		t.Fatalf("Send init: %v", err)
	}
	collectUntil(t, w, EventReady)
	return w
}
