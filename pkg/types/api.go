package types

import "fmt"

// Temperature bounds accepted by GenerateRequest.
const (
	MinTemperature = 0.0
	MaxTemperature = 2.0
)

// GenerateRequest represents one generation request payload. It exists only
// for the duration of one generation and is never persisted.
type GenerateRequest struct {
	// Optional model/task identifier. If empty, the server default is used.
	// example: tinyllama-q4
	Model string `json:"model,omitempty" example:"tinyllama-q4"`
	// Ordered conversation history. Required, at least one message.
	Messages []ChatMessage `json:"messages"`
	// Sampling temperature in [0, 2].
	// example: 0.7
	Temperature float64 `json:"temperature,omitempty" example:"0.7"`
	// Maximum number of new tokens to generate. Must be positive.
	// example: 512
	MaxTokens int `json:"max_tokens,omitempty" example:"512"`
	// Optional system prompt prepended once before the message history.
	// example: You are a concise assistant.
	SystemPrompt string `json:"system_prompt,omitempty" example:"You are a concise assistant."`
}

// Validate checks the request constraints. It does not mutate the request.
func (r GenerateRequest) Validate() error {
	if len(r.Messages) == 0 {
		return fmt.Errorf("messages must not be empty")
	}
	for i, m := range r.Messages {
		if !m.Role.Valid() {
			return fmt.Errorf("messages[%d]: unknown role %q", i, m.Role)
		}
	}
	if r.Temperature < MinTemperature || r.Temperature > MaxTemperature {
		return fmt.Errorf("temperature %v out of range [%v, %v]", r.Temperature, MinTemperature, MaxTemperature)
	}
	if r.MaxTokens <= 0 {
		return fmt.Errorf("max_tokens must be positive, got %d", r.MaxTokens)
	}
	return nil
}

// CompareRequest asks for the same conversation to be generated by two
// task identifiers, producing two independent output slots.
type CompareRequest struct {
	// First task identifier.
	// example: tinyllama-q4
	ModelA string `json:"model_a" example:"tinyllama-q4"`
	// Second task identifier. May equal ModelA, in which case the two
	// generations run sequentially on the same worker.
	// example: phi2-q5
	ModelB string `json:"model_b" example:"phi2-q5"`
	// Shared conversation history.
	Messages []ChatMessage `json:"messages"`
	// Sampling temperature in [0, 2].
	// example: 0.7
	Temperature float64 `json:"temperature,omitempty" example:"0.7"`
	// Maximum number of new tokens per slot.
	// example: 512
	MaxTokens int `json:"max_tokens,omitempty" example:"512"`
	// Optional shared system prompt.
	SystemPrompt string `json:"system_prompt,omitempty"`
}

// ModelsResponse wraps the list of models returned by GET /models.
type ModelsResponse struct {
	// List of available models.
	Models []Model `json:"models"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: invalid JSON body
	Error string `json:"error" example:"invalid JSON body"`
	// HTTP status code.
	// example: 400
	Code int `json:"code" example:"400"`
}

// WorkerStatus summarizes one worker slot for /status.
type WorkerStatus struct {
	// Task identifier of the worker slot.
	// example: tinyllama-q4
	TaskID string `json:"task_id" example:"tinyllama-q4"`
	// Current lifecycle state (uninitialized, loading-engine, loading-model,
	// ready, generating, unloaded, failed).
	// example: ready
	State string `json:"state" example:"ready"`
	// Execution backend chosen at load time (accelerated or software).
	// example: software
	Backend string `json:"backend,omitempty" example:"software"`
	// Whether a generation is currently in flight.
	// example: false
	Generating bool `json:"generating" example:"false"`
	// Worker creation time (unix seconds).
	// example: 1700000000
	CreatedAt int64 `json:"created_at_unix" example:"1700000000"`
}

// StatusResponse is the aggregate view returned by GET /status.
type StatusResponse struct {
	// Workers currently registered with the coordinator.
	Workers []WorkerStatus `json:"workers"`
	// Number of workers still loading.
	// example: 0
	LoadingCount int `json:"loading_count" example:"0"`
	// Number of generations currently in flight.
	// example: 1
	GeneratingCount int `json:"generating_count" example:"1"`
	// Default model id used when a request omits one.
	// example: tinyllama-q4
	DefaultModel string `json:"default_model,omitempty" example:"tinyllama-q4"`
}
