package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"inferd/internal/compare"
	"inferd/internal/coordinator"
	"inferd/pkg/types"
)

// Service is the coordinator surface the HTTP layer needs.
type Service interface {
	ListModels() []types.Model
	Status() types.StatusResponse
	DefaultModel() string
	InitModel(ctx context.Context, taskID string) error
	Unload(ctx context.Context, taskID string) error
	Abort(taskID string)
	IsReady(taskID string) bool
}

// Runner is the supervised generation call (watchdog + repetition guard +
// retry wrapped around the coordinator).
type Runner interface {
	Generate(ctx context.Context, taskID string, req types.GenerateRequest, cb coordinator.Callbacks) (coordinator.Result, error)
}

// Comparer produces two output slots for one shared conversation.
type Comparer interface {
	Run(ctx context.Context, req types.CompareRequest, onToken compare.TokenFunc) [2]compare.Slot
}

func NewMux(svc Service, run Runner, cmp Comparer) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(MetricsMiddleware)
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsAllowedOrigins,
			AllowedMethods: corsAllowedMethods,
			AllowedHeaders: corsAllowedHeaders,
		}))
	}
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/models", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, types.ModelsResponse{Models: svc.ListModels()})
	})

	r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, svc.Status())
	})

	// handleLoad godoc
	// @Summary  Load a model worker
	// @Param    id path string true "task identifier"
	// @Success  200 {string} string "ready"
	// @Router   /models/{id}/load [post]
	r.Post("/models/{id}/load", func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		joined, cancel := joinContexts(serverBaseCtx, r.Context())
		defer cancel()
		start := time.Now()
		if err := svc.InitModel(joined, id); err != nil {
			writeServiceError(w, err)
			return
		}
		logRequest(r).Dur("dur", time.Since(start)).Str("task_id", id).Msg("model loaded")
		writeJSON(w, map[string]any{"task_id": id, "state": "ready"})
	})

	r.Post("/models/{id}/abort", func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		svc.Abort(id)
		w.WriteHeader(http.StatusAccepted)
	})

	r.Delete("/models/{id}", func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		joined, cancel := joinContexts(serverBaseCtx, r.Context())
		defer cancel()
		if err := svc.Unload(joined, id); err != nil {
			writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	r.Post("/generate", handleGenerate(svc, run))
	r.Post("/compare", handleCompare(cmp))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		id := r.URL.Query().Get("model")
		if id == "" {
			id = svc.DefaultModel()
		}
		if id != "" && svc.IsReady(id) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("loading"))
	})

	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	MountSwagger(r)
	return r
}

// decodeJSON enforces content type and body limits for JSON endpoints.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	ct := r.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return false
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to encode response")
	}
}
