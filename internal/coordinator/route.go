package coordinator

import (
	"time"

	"inferd/internal/worker"
)

// route is the per-handle demux goroutine. It drains the worker's event
// stream until it closes, delivering events to the handle's one-slot
// listener in arrival order. Events are never reordered or dropped.
func (c *Coordinator) route(h *handle) {
	defer close(h.routeDone)
	for ev := range h.w.Events() {
		c.dispatch(h, ev)
	}
}

func (c *Coordinator) dispatch(h *handle, ev worker.Event) {
	switch ev.Type {
	case worker.EventWorkerReady:
		c.log.Debug().Str("task_id", h.id).Msg("worker loop running")

	case worker.EventStatus:
		c.mu.Lock()
		switch ev.Status {
		case worker.StatusLoadingEngine:
			h.state = worker.StateLoadingEngine
		case worker.StatusLoadingModel:
			h.state = worker.StateLoadingModel
		case worker.StatusBackendSelected:
			h.backend = ev.Backend
		}
		c.mu.Unlock()
		c.publisher.Publish(Event{Name: "status", TaskID: h.id,
			Fields: map[string]any{"status": ev.Status, "message": ev.Message}})

	case worker.EventProgress:
		c.publisher.Publish(Event{Name: "load_progress", TaskID: h.id,
			Fields: map[string]any{"file": ev.File, "percent": ev.Percent}})

	case worker.EventReady:
		c.mu.Lock()
		h.state = worker.StateReady
		if ev.Backend != "" {
			h.backend = ev.Backend
		}
		first := !h.loadDone
		c.resolveLoadLocked(h, nil)
		c.mu.Unlock()
		if first {
			workersGauge.Inc()
			loadDuration.Observe(time.Since(h.createdAt).Seconds())
		}
		c.publisher.Publish(Event{Name: "ready", TaskID: h.id,
			Fields: map[string]any{"backend": string(ev.Backend)}})

	case worker.EventGenerating:
		c.mu.Lock()
		h.state = worker.StateGenerating
		c.mu.Unlock()

	case worker.EventToken:
		c.mu.Lock()
		g := h.gen
		c.mu.Unlock()
		tokensTotal.Inc()
		if g != nil && g.cb.OnToken != nil {
			g.cb.OnToken(ev.Token, ev.Accumulated)
		}

	case worker.EventComplete:
		g := c.takeGeneration(h)
		generationsTotal.WithLabelValues("complete").Inc()
		if g != nil {
			if g.cb.OnComplete != nil {
				g.cb.OnComplete(ev.Content, h.id)
			}
			g.res = Result{Content: ev.Content}
			close(g.done)
		}

	case worker.EventAborted:
		g := c.takeGeneration(h)
		generationsTotal.WithLabelValues("aborted").Inc()
		if g != nil {
			if g.cb.OnAborted != nil {
				g.cb.OnAborted()
			}
			g.res = Result{Aborted: true}
			close(g.done)
		}

	case worker.EventError:
		c.dispatchError(h, ev)

	case worker.EventUnloaded:
		c.mu.Lock()
		h.state = worker.StateUnloaded
		c.mu.Unlock()
		c.publisher.Publish(Event{Name: "worker_unloaded", TaskID: h.id, Fields: map[string]any{}})

	case worker.EventPong:
		c.mu.Lock()
		ch := h.pongCh
		c.mu.Unlock()
		if ch != nil {
			select {
			case ch <- ev:
			default:
			}
		}
	}
}

// dispatchError classifies a worker error by phase. Mid-generation failures
// leave the worker ready and reusable; load-phase failures are fatal to the
// handle, which is removed so the registry cannot wedge in a loading state.
func (c *Coordinator) dispatchError(h *handle, ev worker.Event) {
	c.mu.Lock()
	if g := h.gen; g != nil {
		h.gen = nil
		h.state = worker.StateReady
		c.mu.Unlock()
		generationsTotal.WithLabelValues("error").Inc()
		if g.cb.OnError != nil {
			g.cb.OnError(ev.Message)
		}
		g.err = ErrGeneration(h.id, ev.Message)
		close(g.done)
		return
	}
	if !h.loadDone {
		h.state = worker.StateFailed
		delete(c.workers, h.id)
		c.resolveLoadLocked(h, ErrLoadFailed(h.id, ev.Message))
		w := h.w
		c.mu.Unlock()
		c.publisher.Publish(Event{Name: "load_failed", TaskID: h.id,
			Fields: map[string]any{"error": ev.Message}})
		// Stop the failed worker loop; the handle is already discarded.
		_ = w.Send(worker.Command{Type: worker.CmdUnload})
		return
	}
	c.mu.Unlock()
	c.log.Warn().Str("task_id", h.id).Str("error", ev.Message).Msg("worker error outside generation")
}

// takeGeneration clears the one-slot listener and marks the worker ready.
func (c *Coordinator) takeGeneration(h *handle) *generation {
	c.mu.Lock()
	defer c.mu.Unlock()
	g := h.gen
	h.gen = nil
	h.state = worker.StateReady
	return g
}
