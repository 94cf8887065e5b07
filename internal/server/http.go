package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/joseph-ayodele/sponsorship-analyzer/internal/common"
	"github.com/joseph-ayodele/sponsorship-analyzer/internal/services/analysis"
)

const maxBodyBytes = 64 << 10

// Analyzer is the part of *analysis.Service the transports need.
type Analyzer interface {
	Submit(ctx context.Context, req analysis.SubmitRequest) (analysis.SubmitResponse, error)
	GetStatus(ctx context.Context, jobID string) (analysis.StatusView, error)
	GetResult(ctx context.Context, jobID string) (*analysis.Result, error)
}

// Exporter is satisfied by *export.Service.
type Exporter interface {
	ExportOffersXLSX(ctx context.Context, ownerID string) ([]byte, error)
}

// HealthFunc reports whether the process can serve requests.
type HealthFunc func(ctx context.Context) error

type HTTPHandler struct {
	svc      Analyzer
	exporter Exporter
	health   HealthFunc
	logger   *slog.Logger
}

// NewHTTPHandler builds the chi router for the REST API.
func NewHTTPHandler(svc Analyzer, exporter Exporter, health HealthFunc, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &HTTPHandler{svc: svc, exporter: exporter, health: health, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(h.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.handleHealth)
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/analyses", h.handleSubmit)
		r.Get("/analyses/{jobID}", h.handleStatus)
		r.Get("/analyses/{jobID}/result", h.handleResult)
		r.Get("/owners/{ownerID}/offers.xlsx", h.handleExport)
	})
	return r
}

func (h *HTTPHandler) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rid := middleware.GetReqID(r.Context())
		ctx := common.WithRequestID(r.Context(), rid)
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r.WithContext(ctx))

		h.logger.Info("http.request",
			"req_id", rid,
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
	})
}

func (h *HTTPHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if h.health != nil {
		if err := h.health(r.Context()); err != nil {
			h.logger.Warn("http.health.failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// POST /api/v1/analyses
func (h *HTTPHandler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req analysis.SubmitRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp, err := h.svc.Submit(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, resp)
}

// GET /api/v1/analyses/{jobID}
func (h *HTTPHandler) handleStatus(w http.ResponseWriter, r *http.Request) {
	view, err := h.svc.GetStatus(r.Context(), chi.URLParam(r, "jobID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// GET /api/v1/analyses/{jobID}/result
func (h *HTTPHandler) handleResult(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.GetResult(r.Context(), chi.URLParam(r, "jobID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// GET /api/v1/owners/{ownerID}/offers.xlsx
func (h *HTTPHandler) handleExport(w http.ResponseWriter, r *http.Request) {
	if h.exporter == nil {
		writeError(w, http.StatusNotImplemented, "export is not configured")
		return
	}
	data, err := h.exporter.ExportOffersXLSX(r.Context(), chi.URLParam(r, "ownerID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="offers.xlsx"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// fail maps service errors to HTTP statuses. Internal detail is logged, not returned.
func (h *HTTPHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	code := httpStatus(err)
	if code >= http.StatusInternalServerError {
		h.logger.Error("http.request.failed",
			"req_id", middleware.GetReqID(r.Context()),
			"path", r.URL.Path,
			"error", err,
		)
		writeError(w, code, "internal error")
		return
	}
	writeError(w, code, err.Error())
}

func httpStatus(err error) int {
	switch {
	case errors.Is(err, common.ErrInvalidInput), errors.Is(err, common.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, common.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, common.ErrAlreadySubmitted), errors.Is(err, common.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
