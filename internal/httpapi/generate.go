package httpapi

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"inferd/internal/coordinator"
	"inferd/pkg/types"
)

// streamLine is one NDJSON line of a /generate or /compare response. The
// shape mirrors the worker event protocol.
type streamLine struct {
	Type        string `json:"type"`
	Slot        *int   `json:"slot,omitempty"`
	Token       string `json:"token,omitempty"`
	Accumulated string `json:"accumulated,omitempty"`
	Content     string `json:"content,omitempty"`
	TaskID      string `json:"task_id,omitempty"`
	Message     string `json:"message,omitempty"`
}

// lineWriter serializes NDJSON lines to one response. Callbacks for a single
// generation arrive on one goroutine, but /compare streams two generations
// into the same response concurrently.
type lineWriter struct {
	mu    sync.Mutex
	w     http.ResponseWriter
	flush func()
	wrote bool
}

func newLineWriter(w http.ResponseWriter) *lineWriter {
	lw := &lineWriter{w: w}
	if f, ok := w.(http.Flusher); ok {
		lw.flush = f.Flush
	}
	return lw
}

func (lw *lineWriter) writeLine(line streamLine) {
	b, err := json.Marshal(line)
	if err != nil {
		return
	}
	lw.mu.Lock()
	defer lw.mu.Unlock()
	if !lw.wrote {
		lw.w.Header().Set("Content-Type", "application/x-ndjson")
		lw.wrote = true
	}
	lw.w.Write(append(b, '\n'))
	if lw.flush != nil {
		lw.flush()
	}
}

func (lw *lineWriter) started() bool {
	lw.mu.Lock()
	defer lw.mu.Unlock()
	return lw.wrote
}

// handleGenerate streams one supervised generation as NDJSON. Fail-fast
// rejections surface as JSON errors with mapped status codes; failures after
// streaming has begun surface as an error line, since the status is already
// committed.
func handleGenerate(svc Service, run Runner) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.GenerateRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		taskID := req.Model
		if taskID == "" {
			taskID = svc.DefaultModel()
			if taskID == "" {
				writeJSONError(w, http.StatusNotFound, "no model specified and no default configured")
				return
			}
		}

		joined, cancel := joinContexts(serverBaseCtx, r.Context())
		defer cancel()

		lw := newLineWriter(w)
		cb := coordinator.Callbacks{
			OnToken: func(tok, acc string) {
				lw.writeLine(streamLine{Type: "token", Token: tok, Accumulated: acc})
			},
		}
		start := time.Now()
		res, err := run.Generate(joined, taskID, req, cb)
		if err != nil {
			if r.Context().Err() != nil || serverBaseCtx.Err() != nil {
				return
			}
			if lw.started() {
				lw.writeLine(streamLine{Type: "error", Message: err.Error()})
			} else {
				writeServiceError(w, err)
			}
			logRequest(r).Dur("dur", time.Since(start)).Str("task_id", taskID).Err(err).Msg("generate failed")
			return
		}
		if res.Aborted {
			lw.writeLine(streamLine{Type: "aborted", TaskID: taskID})
		} else {
			lw.writeLine(streamLine{Type: "complete", TaskID: taskID, Content: res.Content})
		}
		logRequest(r).Dur("dur", time.Since(start)).Str("task_id", taskID).Bool("aborted", res.Aborted).Msg("generate done")
	}
}

// handleCompare streams two slots of one conversation as slot-tagged NDJSON
// lines and finishes with one terminal line per slot.
func handleCompare(cmp Comparer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.CompareRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if req.ModelA == "" || req.ModelB == "" {
			writeJSONError(w, http.StatusBadRequest, "model_a and model_b are required")
			return
		}

		joined, cancel := joinContexts(serverBaseCtx, r.Context())
		defer cancel()

		lw := newLineWriter(w)
		slots := cmp.Run(joined, req, func(slot int, tok, acc string) {
			s := slot
			lw.writeLine(streamLine{Type: "token", Slot: &s, Token: tok, Accumulated: acc})
		})
		for i := range slots {
			s := i
			line := streamLine{Slot: &s, TaskID: slots[i].TaskID}
			switch {
			case slots[i].Err != nil:
				line.Type = "error"
				line.Message = slots[i].Err.Error()
			case slots[i].Aborted:
				line.Type = "aborted"
			default:
				line.Type = "complete"
				line.Content = slots[i].Content
			}
			lw.writeLine(line)
		}
	}
}
