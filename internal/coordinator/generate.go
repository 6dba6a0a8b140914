package coordinator

import (
	"context"

	"github.com/google/uuid"

	"inferd/internal/worker"
	"inferd/pkg/types"
)

// Callbacks receives generation events in arrival order. All fields are
// optional. OnToken carries the new token and the full accumulated text so
// far; the accumulated text grows monotonically within one generation.
type Callbacks struct {
	OnToken    func(token, accumulated string)
	OnComplete func(content, taskID string)
	OnAborted  func()
	OnError    func(msg string)
}

// Result is the outcome of one generation. Aborted results are not errors:
// Content is empty and Aborted is true.
type Result struct {
	Content string
	Aborted bool
}

// generation is the one-slot listener for a handle's in-flight generation.
type generation struct {
	id   string
	cb   Callbacks
	done chan struct{}
	res  Result
	err  error
}

// Generate runs one generation on the taskID's worker and blocks until its
// terminal event. It fails fast with typed errors, producing no worker
// events, when the handle is missing or loading (ErrNotReady) or already
// generating (ErrBusy). Cancelling ctx sets the abort flag and still waits
// for the terminal event; a few in-flight tokens may arrive after that.
func (c *Coordinator) Generate(ctx context.Context, taskID string, req types.GenerateRequest, cb Callbacks) (Result, error) {
	if err := req.Validate(); err != nil {
		return Result{}, ErrInvalidRequest(err.Error())
	}

	c.mu.Lock()
	h := c.workers[taskID]
	if h == nil || h.state.Loading() || h.state.Terminal() {
		c.mu.Unlock()
		return Result{}, ErrNotReady(taskID)
	}
	if h.gen != nil || h.state == worker.StateGenerating {
		c.mu.Unlock()
		return Result{}, ErrBusy(taskID)
	}
	g := &generation{id: uuid.NewString(), cb: cb, done: make(chan struct{})}
	h.gen = g
	c.mu.Unlock()

	cmd := worker.Command{
		Type:         worker.CmdGenerate,
		Messages:     req.Messages,
		Temperature:  req.Temperature,
		MaxTokens:    req.MaxTokens,
		SystemPrompt: req.SystemPrompt,
	}
	if err := h.w.Send(cmd); err != nil {
		c.mu.Lock()
		h.gen = nil
		c.mu.Unlock()
		return Result{}, ErrGeneration(taskID, err.Error())
	}
	c.log.Debug().Str("task_id", taskID).Str("generation_id", g.id).Msg("generation submitted")

	select {
	case <-g.done:
		return g.res, g.err
	case <-ctx.Done():
		h.w.Abort()
		<-g.done
		return g.res, g.err
	}
}

// Abort requests cooperative cancellation of the in-flight generation on
// taskID. It is a no-op when the slot is idle or unknown, and a no-op for a
// generation that has already completed.
func (c *Coordinator) Abort(taskID string) {
	c.mu.Lock()
	h := c.workers[taskID]
	busy := h != nil && h.gen != nil
	c.mu.Unlock()
	if !busy {
		return
	}
	h.w.Abort()
	c.publisher.Publish(Event{Name: "abort_requested", TaskID: taskID, Fields: map[string]any{}})
}
