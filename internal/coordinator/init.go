package coordinator

import (
	"context"
	"time"

	"inferd/internal/worker"
)

// InitModel creates and loads the worker slot for taskID. It is idempotent:
// an already-ready slot returns immediately, and a call that arrives while a
// load is in flight joins that load's outcome instead of starting a second
// worker. Construction failure (the engine binding cannot be created) is a
// typed error and leaves no registry entry.
func (c *Coordinator) InitModel(ctx context.Context, taskID string) error {
	c.mu.Lock()
	if h := c.workers[taskID]; h != nil {
		if h.state == worker.StateReady || h.state == worker.StateGenerating {
			c.mu.Unlock()
			return nil
		}
		ch := h.readyCh
		c.mu.Unlock()
		return c.awaitLoad(ctx, h, ch)
	}

	mdl, ok := c.getModelByID(taskID)
	if !ok {
		c.mu.Unlock()
		return ErrModelNotFound(taskID)
	}
	eng, err := c.newEngine()
	if err != nil {
		c.mu.Unlock()
		c.publisher.Publish(Event{Name: "construction_failed", TaskID: taskID,
			Fields: map[string]any{"error": err.Error()}})
		return ErrConstruction(taskID, err.Error())
	}

	h := &handle{
		id:        taskID,
		w:         worker.New(taskID, mdl.Path, eng, c.log),
		createdAt: time.Now(),
		state:     worker.StateLoadingEngine,
		readyCh:   make(chan struct{}),
		routeDone: make(chan struct{}),
	}
	c.workers[taskID] = h
	go c.route(h)
	c.mu.Unlock()

	c.publisher.Publish(Event{Name: "init_start", TaskID: taskID, Fields: map[string]any{}})
	if err := h.w.Send(worker.Command{Type: worker.CmdInit, ModelID: taskID}); err != nil {
		c.mu.Lock()
		delete(c.workers, taskID)
		c.mu.Unlock()
		return ErrConstruction(taskID, err.Error())
	}
	return c.awaitLoad(ctx, h, h.readyCh)
}

// awaitLoad blocks until the handle's load resolves or ctx is done.
func (c *Coordinator) awaitLoad(ctx context.Context, h *handle, ch <-chan struct{}) error {
	select {
	case <-ch:
		c.mu.Lock()
		err := h.loadErr
		c.mu.Unlock()
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// resolveLoadLocked records the load outcome and wakes all joined InitModel
// callers. Caller holds c.mu. Safe to call again after resolution: re-init
// of a resident model re-emits readiness without a second close.
func (c *Coordinator) resolveLoadLocked(h *handle, err error) {
	if h.loadDone {
		return
	}
	h.loadDone = true
	h.loadErr = err
	close(h.readyCh)
}
