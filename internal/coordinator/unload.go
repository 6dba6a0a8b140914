package coordinator

import (
	"context"
	"time"

	"inferd/internal/worker"
)

// Unload releases the worker slot for taskID. An in-flight generation is
// implicitly aborted and its terminal event awaited before the worker is
// released. Safe to call on an unknown or already-unloaded identifier.
func (c *Coordinator) Unload(ctx context.Context, taskID string) error {
	c.mu.Lock()
	h := c.workers[taskID]
	if h == nil {
		c.mu.Unlock()
		return nil
	}
	// Remove from the registry first so new generations fail fast while
	// the worker drains.
	delete(c.workers, taskID)
	g := h.gen
	loaded := h.loadDone && h.loadErr == nil
	c.mu.Unlock()

	c.publisher.Publish(Event{Name: "unload_start", TaskID: taskID, Fields: map[string]any{}})

	if g != nil {
		h.w.Abort()
		select {
		case <-g.done:
		case <-time.After(c.drainTimeout):
			c.publisher.Publish(Event{Name: "unload_drain_timeout", TaskID: taskID, Fields: map[string]any{}})
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if err := h.w.Send(worker.Command{Type: worker.CmdUnload}); err == nil {
		select {
		case <-h.routeDone:
		case <-time.After(c.drainTimeout):
			c.publisher.Publish(Event{Name: "unload_timeout", TaskID: taskID, Fields: map[string]any{}})
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if loaded {
		workersGauge.Dec()
	}
	c.publisher.Publish(Event{Name: "unload_done", TaskID: taskID, Fields: map[string]any{}})
	return nil
}

// UnloadAll releases every registered worker slot.
func (c *Coordinator) UnloadAll(ctx context.Context) error {
	c.mu.Lock()
	ids := make([]string, 0, len(c.workers))
	for id := range c.workers {
		ids = append(ids, id)
	}
	c.mu.Unlock()
	for _, id := range ids {
		if err := c.Unload(ctx, id); err != nil {
			return err
		}
	}
	return nil
}
