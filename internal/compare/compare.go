// Package compare runs the same conversation through two task identifiers,
// producing two independent output slots for side-by-side model comparison.
package compare

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"inferd/internal/coordinator"
	"inferd/pkg/types"
)

// Runner is the supervised generation call the orchestrator fans out to.
// *supervisor.Supervisor satisfies it.
type Runner interface {
	Generate(ctx context.Context, taskID string, req types.GenerateRequest, cb coordinator.Callbacks) (coordinator.Result, error)
}

// Slot is the outcome of one side of a comparison. Every slot reaches a
// terminal outcome: content, abort, or error.
type Slot struct {
	TaskID  string
	Content string
	Aborted bool
	Err     error
}

// TokenFunc receives streamed tokens tagged with the slot index (0 or 1).
type TokenFunc func(slot int, token, accumulated string)

// Orchestrator coordinates dual generations.
type Orchestrator struct {
	run Runner
	log zerolog.Logger
}

// New constructs an Orchestrator.
func New(run Runner, log zerolog.Logger) *Orchestrator {
	return &Orchestrator{run: run, log: log}
}

// Run produces both slots. When the two task identifiers name the same
// worker the generations run strictly sequentially, because a worker accepts
// only one generation at a time; concurrent submission would be rejected as
// busy. Distinct identifiers run concurrently. A failure in one slot never
// cancels the other; completion is the join of both.
func (o *Orchestrator) Run(ctx context.Context, req types.CompareRequest, onToken TokenFunc) [2]Slot {
	greq := types.GenerateRequest{
		Messages:     req.Messages,
		Temperature:  req.Temperature,
		MaxTokens:    req.MaxTokens,
		SystemPrompt: req.SystemPrompt,
	}
	ids := [2]string{req.ModelA, req.ModelB}
	var slots [2]Slot

	runSlot := func(i int) {
		cb := coordinator.Callbacks{}
		if onToken != nil {
			cb.OnToken = func(tok, acc string) { onToken(i, tok, acc) }
		}
		res, err := o.run.Generate(ctx, ids[i], greq, cb)
		slots[i] = Slot{TaskID: ids[i], Content: res.Content, Aborted: res.Aborted, Err: err}
		if err != nil {
			o.log.Warn().Int("slot", i).Str("task_id", ids[i]).Err(err).Msg("comparison slot failed")
		}
	}

	if req.ModelA == req.ModelB {
		runSlot(0)
		runSlot(1)
		return slots
	}

	var wg sync.WaitGroup
	wg.Add(2)
	for i := 0; i < 2; i++ {
		go func(i int) {
			defer wg.Done()
			runSlot(i)
		}(i)
	}
	wg.Wait()
	return slots
}
