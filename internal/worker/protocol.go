package worker

import (
	"inferd/internal/engine"
	"inferd/pkg/types"
)

// CommandType enumerates coordinator-to-worker commands.
type CommandType string

const (
	CmdInit     CommandType = "init"
	CmdGenerate CommandType = "generate"
	CmdAbort    CommandType = "abort"
	CmdUnload   CommandType = "unload"
	CmdPing     CommandType = "ping"
)

// Command is a coordinator-to-worker message. Commands carry plain data
// only; the worker shares no mutable state with its callers.
//
// Abort is special-cased: it is delivered out of band as a flag the worker
// polls at each token boundary (see Worker.Abort), not queued behind the
// in-flight generation. The CmdAbort constant exists so the wire protocol
// is fully named.
type Command struct {
	Type CommandType `json:"type"`

	// Init.
	ModelID string `json:"model_id,omitempty"`

	// Generate.
	Messages     []types.ChatMessage `json:"messages,omitempty"`
	Temperature  float64             `json:"temperature,omitempty"`
	MaxTokens    int                 `json:"max_tokens,omitempty"`
	SystemPrompt string              `json:"system_prompt,omitempty"`
}

// EventType enumerates worker-to-coordinator events.
type EventType string

const (
	// EventWorkerReady signals the worker loop is running and may receive init.
	EventWorkerReady EventType = "worker-ready"
	EventStatus      EventType = "status"
	EventProgress    EventType = "progress"
	EventReady       EventType = "ready"
	EventGenerating  EventType = "generating"
	EventToken       EventType = "token"
	EventComplete    EventType = "complete"
	EventAborted     EventType = "aborted"
	EventError       EventType = "error"
	EventUnloaded    EventType = "unloaded"
	EventPong        EventType = "pong"
)

// Status tags carried by EventStatus events.
const (
	StatusLoadingEngine   = "loading-engine"
	StatusBackendSelected = "backend-selected"
	StatusLoadingModel    = "loading-model"
)

// Event is a worker-to-coordinator message.
type Event struct {
	Type    EventType `json:"type"`
	ModelID string    `json:"model_id,omitempty"`

	// Status / error.
	Status  string `json:"status,omitempty"`
	Message string `json:"message,omitempty"`

	// Progress.
	File    string `json:"file,omitempty"`
	Percent int    `json:"percent,omitempty"`

	// Ready / status reporting.
	Backend engine.Backend `json:"backend,omitempty"`

	// Token streaming. Accumulated grows monotonically within one generation.
	Token       string `json:"token,omitempty"`
	Accumulated string `json:"accumulated,omitempty"`

	// Complete.
	Content string `json:"content,omitempty"`

	// Pong.
	Ready bool `json:"ready,omitempty"`
}

// TerminatesGeneration reports whether e ends a generation event stream.
// Exactly one such event terminates every generation.
func (e Event) TerminatesGeneration() bool {
	switch e.Type {
	case EventComplete, EventAborted, EventError:
		return true
	}
	return false
}
