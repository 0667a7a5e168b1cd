package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"enferd/internal/activity"
	"enferd/internal/serving"
	"enferd/pkg/tensor"
	"enferd/pkg/types"
)

// Service defines the methods required by the HTTP API layer.
type Service interface {
	ListModels() []types.Model
	Status() types.StatusResponse
	Infer(ctx context.Context, modelID string, input tensor.Tensor) (serving.Result, error)
	Register(m types.Model) error
	Unregister(id string) error
	Ready() bool
}

// activityLog is optional; when set, request outcomes are persisted.
var activityLog *activity.Log

// SetActivityLog installs the activity log used by the infer handler.
func SetActivityLog(l *activity.Log) { activityLog = l }

// NewMux builds the router. hub may be nil to disable /events.
func NewMux(svc Service, hub *serving.Hub) http.Handler {
	r := chi.NewRouter()
	// Basic middlewares: request id, real ip, recoverer
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
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/models", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, types.ModelsResponse{Models: svc.ListModels()})
	})

	r.Post("/models", func(w http.ResponseWriter, r *http.Request) {
		if !requireJSON(w, r) {
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		var m types.Model
		if err := json.NewDecoder(r.Body).Decode(&m); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if strings.TrimSpace(m.ID) == "" {
			writeJSONError(w, http.StatusBadRequest, "model id is required")
			return
		}
		if err := svc.Register(m); err != nil {
			writeServingError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, m)
	})

	r.Delete("/models/{id}", func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := svc.Unregister(id); err != nil {
			writeServingError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	r.Post("/infer", func(w http.ResponseWriter, r *http.Request) {
		handleInfer(svc, w, r)
	})

	r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, svc.Status())
	})

	r.Get("/activity", func(w http.ResponseWriter, r *http.Request) {
		if activityLog == nil {
			writeJSONError(w, http.StatusNotFound, "activity log disabled")
			return
		}
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		recs, err := activityLog.Recent(r.Context(), limit)
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"activity": recs})
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if svc.Ready() {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("no models"))
	})

	if hub != nil {
		r.Get("/events", eventsHandler(hub))
	}

	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	return r
}

func handleInfer(svc Service, w http.ResponseWriter, r *http.Request) {
	if !requireJSON(w, r) {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req types.InferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Model) == "" {
		writeJSONError(w, http.StatusBadRequest, "model is required")
		return
	}
	if len(req.Input.Data) == 0 {
		writeJSONError(w, http.StatusBadRequest, "input tensor is required")
		return
	}

	// Join server base context with request context so shutdown cancels work
	// too; the caller deadline propagates into admission and queueing.
	ctx, cancel := joinContexts(serverBaseCtx, r.Context())
	defer cancel()
	if req.DeadlineMS > 0 {
		var dcancel context.CancelFunc
		ctx, dcancel = context.WithTimeout(ctx, time.Duration(req.DeadlineMS)*time.Millisecond)
		defer dcancel()
	}

	start := time.Now()
	res, err := svc.Infer(ctx, req.Model, req.Input)
	if err != nil {
		if r.Context().Err() != nil || serverBaseCtx.Err() != nil {
			recordActivity(req.Model, "canceled", res, start, err)
			return
		}
		recordActivity(req.Model, errLabel(err), res, start, err)
		writeServingError(w, r, err)
		return
	}
	recordActivity(req.Model, "ok", res, start, nil)
	logEvent().
		Str("model", req.Model).
		Int("batch_size", res.BatchSize).
		Dur("dur", time.Since(start)).
		Str("request_id", middleware.GetReqID(r.Context())).
		Msg("infer")
	writeJSON(w, http.StatusOK, types.InferResponse{
		Model:      req.Model,
		Output:     res.Output,
		BatchSize:  res.BatchSize,
		QueueMS:    res.QueueWait.Milliseconds(),
		DurationMS: res.ExecTime.Milliseconds(),
	})
}

// writeServingError maps well-known serving errors to HTTP status codes.
func writeServingError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case serving.IsUnknownModel(err):
		writeJSONError(w, http.StatusNotFound, err.Error())
	case serving.IsShapeMismatch(err):
		writeJSONError(w, http.StatusBadRequest, err.Error())
	case serving.IsBackpressure(err):
		IncrementBackpressure("admission")
		writeJSONError(w, http.StatusTooManyRequests, err.Error())
	case serving.IsOverloaded(err):
		IncrementBackpressure("overloaded")
		writeJSONError(w, http.StatusServiceUnavailable, err.Error())
	case serving.IsBusy(err):
		writeJSONError(w, http.StatusConflict, err.Error())
	case serving.IsDuplicateModel(err):
		writeJSONError(w, http.StatusConflict, err.Error())
	case serving.IsLoadFailure(err):
		writeJSONError(w, http.StatusBadRequest, err.Error())
	case serving.IsExecutionFailure(err):
		writeJSONError(w, http.StatusInternalServerError, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		// The caller's own deadline_ms expired before completion.
		writeJSONError(w, http.StatusGatewayTimeout, err.Error())
	default:
		if he, ok := err.(HTTPError); ok {
			writeJSONError(w, he.StatusCode(), he.Error())
			return
		}
		writeJSONError(w, http.StatusInternalServerError, err.Error())
	}
}

func errLabel(err error) string {
	switch {
	case serving.IsUnknownModel(err):
		return "unknown_model"
	case serving.IsShapeMismatch(err):
		return "shape_mismatch"
	case serving.IsBackpressure(err):
		return "backpressure"
	case serving.IsOverloaded(err):
		return "overloaded"
	case serving.IsExecutionFailure(err):
		return "execution_failure"
	case errors.Is(err, context.DeadlineExceeded):
		return "deadline_exceeded"
	default:
		return "error"
	}
}

func recordActivity(model, status string, res serving.Result, start time.Time, err error) {
	if activityLog == nil {
		return
	}
	rec := activity.Record{
		At:         start,
		Model:      model,
		Status:     status,
		BatchSize:  res.BatchSize,
		QueueMS:    res.QueueWait.Milliseconds(),
		DurationMS: res.ExecTime.Milliseconds(),
	}
	if err != nil {
		rec.Error = err.Error()
	}
	// Best-effort with its own short deadline; serving never waits on the log.
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = activityLog.Add(ctx, rec)
}

func requireJSON(w http.ResponseWriter, r *http.Request) bool {
	ct := r.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil && zlog != nil {
		zlog.Error().Err(err).Msg("encode response")
	}
}
