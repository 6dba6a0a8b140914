// Package worker runs one isolated model runtime per loaded model. A worker
// owns exactly one engine binding and communicates with the coordinator
// solely through a command channel in and an event channel out; no mutable
// state is shared across the boundary. The single command loop makes the
// one-generation-at-a-time invariant structural: a generation runs to its
// terminal event before the next command is read.
package worker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/rs/zerolog"

	"inferd/internal/engine"
)

// errAbort marks a generation interrupted by the abort flag. It travels
// through the engine's onToken error path and back out of Generate.
var errAbort = errors.New("generation aborted")

// ErrClosed is returned by Send after the worker loop has exited.
var ErrClosed = errors.New("worker closed")

// Worker is one isolated model runtime.
type Worker struct {
	id        string
	modelPath string
	eng       engine.Engine
	log       zerolog.Logger

	cmds   chan Command
	events chan Event
	done   chan struct{}

	// abortFlag is polled once per produced token during a generation, so
	// abort latency is bounded by one token-generation step.
	abortFlag atomic.Bool
}

// New starts a worker loop for the given model. The returned worker has
// already emitted worker-ready on its event channel and is waiting for init.
func New(id, modelPath string, eng engine.Engine, log zerolog.Logger) *Worker {
	w := &Worker{
		id:        id,
		modelPath: modelPath,
		eng:       eng,
		log:       log.With().Str("task_id", id).Logger(),
		cmds:      make(chan Command, 8),
		events:    make(chan Event, 64),
		done:      make(chan struct{}),
	}
	go w.run()
	return w
}

// Events is the worker's ordered event stream. It is closed when the worker
// loop exits; consumers must drain it until then.
func (w *Worker) Events() <-chan Event { return w.events }

// Send queues a command for the worker loop.
func (w *Worker) Send(cmd Command) error {
	select {
	case w.cmds <- cmd:
		return nil
	case <-w.done:
		return ErrClosed
	}
}

// Abort requests cooperative cancellation of the in-flight generation. It is
// a no-op when no generation is running: the flag is cleared when the next
// generation starts. Abort never guarantees an immediate stop, only that the
// worker honors no further tokens once the flag is observed.
func (w *Worker) Abort() { w.abortFlag.Store(true) }

func (w *Worker) emit(ev Event) { w.events <- ev }

func (w *Worker) run() {
	defer close(w.events)
	defer close(w.done)

	w.emit(Event{Type: EventWorkerReady})

	state := StateUninitialized
	var sess engine.Session
	var backend engine.Backend

	for cmd := range w.cmds {
		switch cmd.Type {
		case CmdInit:
			state, sess, backend = w.handleInit(state, sess, backend)
		case CmdGenerate:
			state = w.handleGenerate(state, sess, cmd)
		case CmdAbort:
			// Abort arrives out of band via the flag; the queued form is
			// only observed when the worker is idle, where it is a no-op.
		case CmdPing:
			w.emit(Event{Type: EventPong, Ready: state == StateReady, ModelID: w.id})
		case CmdUnload:
			if sess != nil {
				if err := sess.Close(); err != nil {
					w.log.Warn().Err(err).Msg("session close failed during unload")
				}
			}
			w.emit(Event{Type: EventUnloaded, ModelID: w.id})
			return
		default:
			w.emit(Event{Type: EventError, Message: fmt.Sprintf("unknown command %q", cmd.Type)})
		}
	}
}

// handleInit drives uninitialized -> loading-engine -> loading-model -> ready.
// Re-init of a ready worker is a no-op that re-emits readiness.
func (w *Worker) handleInit(state State, sess engine.Session, backend engine.Backend) (State, engine.Session, engine.Backend) {
	if state == StateReady {
		w.emit(Event{Type: EventReady, ModelID: w.id, Backend: backend})
		return state, sess, backend
	}
	if state.Terminal() {
		w.emit(Event{Type: EventError, ModelID: w.id, Message: "worker is " + string(state) + "; create a new worker to retry"})
		return state, sess, backend
	}

	ctx := context.Background()

	w.emit(Event{Type: EventStatus, ModelID: w.id, Status: StatusLoadingEngine, Message: "loading inference engine"})
	if err := w.eng.Init(ctx); err != nil {
		w.log.Error().Err(err).Msg("engine init failed")
		w.emit(Event{Type: EventError, ModelID: w.id, Message: "engine init: " + err.Error()})
		return StateFailed, nil, backend
	}

	backend = w.eng.Probe()
	w.emit(Event{Type: EventStatus, ModelID: w.id, Status: StatusBackendSelected, Backend: backend,
		Message: "selected " + string(backend) + " backend"})

	w.emit(Event{Type: EventStatus, ModelID: w.id, Status: StatusLoadingModel, Message: "loading model"})
	progress := func(file string, percent int) {
		w.emit(Event{Type: EventProgress, ModelID: w.id, File: file, Percent: percent})
	}
	s, err := w.eng.Load(ctx, w.modelPath, progress)
	if err != nil {
		w.log.Error().Err(err).Msg("model load failed")
		w.emit(Event{Type: EventError, ModelID: w.id, Message: "model load: " + err.Error()})
		return StateFailed, nil, backend
	}

	w.log.Info().Str("backend", string(backend)).Msg("model ready")
	w.emit(Event{Type: EventReady, ModelID: w.id, Backend: backend})
	return StateReady, s, backend
}

// handleGenerate runs one generation to its terminal event. Engine failures
// do not tear down the worker, only the generation: the worker returns to
// ready either way.
func (w *Worker) handleGenerate(state State, sess engine.Session, cmd Command) State {
	if state != StateReady || sess == nil {
		w.emit(Event{Type: EventError, ModelID: w.id, Message: "worker not ready (state " + string(state) + ")"})
		return state
	}

	w.abortFlag.Store(false)
	w.emit(Event{Type: EventGenerating, ModelID: w.id})

	var acc strings.Builder
	onToken := func(tok string) error {
		if w.abortFlag.Load() {
			return errAbort
		}
		acc.WriteString(tok)
		w.emit(Event{Type: EventToken, ModelID: w.id, Token: tok, Accumulated: acc.String()})
		return nil
	}

	res, err := w.generate(sess, cmd, onToken)
	switch {
	case errors.Is(err, errAbort), err == nil && w.abortFlag.Load():
		w.emit(Event{Type: EventAborted, ModelID: w.id})
	case err != nil:
		w.log.Warn().Err(err).Msg("generation failed")
		w.emit(Event{Type: EventError, ModelID: w.id, Message: err.Error()})
	default:
		w.emit(Event{Type: EventComplete, ModelID: w.id, Content: engine.FinalContent(res, acc.String())})
	}
	return StateReady
}

// generate calls into the engine with a panic barrier: worker-internal
// failures are always converted to an error result, never allowed to crash
// the loop silently.
func (w *Worker) generate(sess engine.Session, cmd Command, onToken func(string) error) (res engine.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("engine panic: %v", r)
		}
	}()
	params := engine.Params{
		Messages:     cmd.Messages,
		SystemPrompt: cmd.SystemPrompt,
		Temperature:  cmd.Temperature,
		MaxTokens:    cmd.MaxTokens,
	}
	return sess.Generate(context.Background(), params, onToken)
}
