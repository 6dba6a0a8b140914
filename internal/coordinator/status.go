package coordinator

import (
	"context"

	"inferd/internal/worker"
	"inferd/pkg/types"
)

// Status builds the aggregate view for GET /status.
func (c *Coordinator) Status() types.StatusResponse {
	c.mu.Lock()
	defer c.mu.Unlock()
	resp := types.StatusResponse{DefaultModel: c.defaultModel}
	resp.Workers = make([]types.WorkerStatus, 0, len(c.workers))
	for _, h := range c.workers {
		if h.state.Loading() {
			resp.LoadingCount++
		}
		if h.gen != nil {
			resp.GeneratingCount++
		}
		resp.Workers = append(resp.Workers, types.WorkerStatus{
			TaskID:     h.id,
			State:      string(h.state),
			Backend:    string(h.backend),
			Generating: h.gen != nil,
			CreatedAt:  h.createdAt.Unix(),
		})
	}
	return resp
}

// Ping round-trips a ping command through the worker's command loop and
// reports its readiness. A generating worker answers only after the current
// generation finishes; bound the wait with ctx.
func (c *Coordinator) Ping(ctx context.Context, taskID string) (bool, error) {
	c.mu.Lock()
	h := c.workers[taskID]
	if h == nil {
		c.mu.Unlock()
		return false, ErrNotReady(taskID)
	}
	if h.pongCh == nil {
		h.pongCh = make(chan worker.Event, 1)
	}
	ch := h.pongCh
	c.mu.Unlock()

	if err := h.w.Send(worker.Command{Type: worker.CmdPing}); err != nil {
		return false, ErrNotReady(taskID)
	}
	select {
	case ev := <-ch:
		return ev.Ready, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}
