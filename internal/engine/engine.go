// Package engine defines the boundary to the external inference runtime.
// The coordinator and workers treat it as an opaque capability: one-time
// environment initialization, a backend capability probe, model loading with
// progress reporting, and a streaming generation call.
//
// Cancellation contract: Generate must invoke onToken once per produced
// token. When onToken returns a non-nil error the engine must stop promptly
// and return that error. Implementations must not require context
// cancellation to interrupt generation; the per-token callback is the abort
// channel, so abort latency is bounded by one token-generation step.
package engine

import (
	"context"
	"strings"

	"inferd/pkg/types"
)

// Backend is the execution strategy selected for inference.
type Backend string

const (
	// BackendAccelerated uses a hardware-accelerated path (GPU offload).
	BackendAccelerated Backend = "accelerated"
	// BackendSoftware is the universal CPU fallback.
	BackendSoftware Backend = "software"
)

// Engine is a factory for model sessions. One Engine binding is owned by
// exactly one worker.
type Engine interface {
	// Init prepares the engine environment. It is idempotent: calling it
	// on an already-initialized engine is a no-op.
	Init(ctx context.Context) error
	// Probe selects the execution backend in a single capability check,
	// performed once before model load.
	Probe() Backend
	// Load acquires a model session. progress, when non-nil, receives the
	// resource name and an integer percent in [0, 100]; implementations
	// must report non-decreasing percentages per resource.
	Load(ctx context.Context, modelPath string, progress func(file string, percent int)) (Session, error)
}

// Session is a loaded model ready to generate.
type Session interface {
	// Generate streams tokens for the given conversation. See the package
	// comment for the onToken cancellation contract.
	Generate(ctx context.Context, params Params, onToken func(token string) error) (Result, error)
	// Close releases the model handle.
	Close() error
}

// Params captures the sampling parameters of one generation.
type Params struct {
	Messages     []types.ChatMessage
	SystemPrompt string
	Temperature  float64
	MaxTokens    int
}

// Result is the engine's final output. Engines that return conversation-shaped
// output populate Messages; others set Content directly.
type Result struct {
	Messages []types.ChatMessage
	Content  string
}

// FinalContent recovers the answer from a generation result. It scans the
// conversation-shaped output for the most recent assistant entry and falls
// back to the accumulated streamed text.
func FinalContent(res Result, accumulated string) string {
	for i := len(res.Messages) - 1; i >= 0; i-- {
		if res.Messages[i].Role == types.RoleAssistant && res.Messages[i].Content != "" {
			return res.Messages[i].Content
		}
	}
	if res.Content != "" {
		return res.Content
	}
	return accumulated
}

// BuildPrompt flattens a conversation into a single prompt string for
// engines that accept plain text. The system prompt, when present, is
// prepended exactly once.
func BuildPrompt(params Params) string {
	var b strings.Builder
	if params.SystemPrompt != "" {
		b.WriteString(string(types.RoleSystem))
		b.WriteString(": ")
		b.WriteString(params.SystemPrompt)
		b.WriteString("\n")
	}
	for _, m := range params.Messages {
		b.WriteString(string(m.Role))
		b.WriteString(": ")
		b.WriteString(m.Content)
		b.WriteString("\n")
	}
	b.WriteString(string(types.RoleAssistant))
	b.WriteString(": ")
	return b.String()
}
