// Package server exposes runs, health and metrics over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"DemandSentinel/internal/anomaly"
	"DemandSentinel/internal/logger"
	"DemandSentinel/internal/metrics"
	"DemandSentinel/internal/model"
	"DemandSentinel/internal/optimizer"
	"DemandSentinel/internal/recorder"
	"DemandSentinel/internal/worker"
)

// maxBodyBytes bounds an /analyze upload.
const maxBodyBytes = 32 << 20

// Backend is the service behind the API.
type Backend interface {
	Analyze(ctx context.Context) (*model.RunResult, error)
	DefaultParams() model.RunParams
	RunDatasetWith(ctx context.Context, ds model.Dataset, params model.RunParams) *model.RunResult
	Run(ctx context.Context, id string) (*model.RunResult, error)
	History(ctx context.Context, limit int) ([]recorder.RunSummary, error)
	Health() []worker.HealthReport
	Optimize(ctx context.Context) (optimizer.Report, error)
	AnomalyStats() anomaly.HistoryStats
}

// Server holds the HTTP handlers.
type Server struct {
	backend  Backend
	metrics  *metrics.Metrics
	gatherer prometheus.Gatherer
	log      logger.Logger
}

// New creates a server. m and gatherer may be nil.
func New(b Backend, m *metrics.Metrics, gatherer prometheus.Gatherer, log logger.Logger) *Server {
	return &Server{backend: b, metrics: m, gatherer: gatherer, log: log}
}

// Router builds the mux router.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.instrument)
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/runs", s.handleListRuns).Methods(http.MethodGet)
	r.HandleFunc("/runs/{id}", s.handleGetRun).Methods(http.MethodGet)
	r.HandleFunc("/analyze", s.handleAnalyze).Methods(http.MethodPost)
	r.HandleFunc("/optimize", s.handleOptimize).Methods(http.MethodGet)
	r.HandleFunc("/anomalies/stats", s.handleAnomalyStats).Methods(http.MethodGet)
	if s.gatherer != nil {
		r.Path("/metrics").Handler(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	return r
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	s.log.Infof(ctx, "http server listening on %s", addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.metrics == nil {
			next.ServeHTTP(w, r)
			return
		}
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := r.URL.Path
		if cur := mux.CurrentRoute(r); cur != nil {
			if tpl, err := cur.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		s.metrics.ObserveRequest(r.Method, route, rec.status, time.Since(start).Seconds())
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	reports := s.backend.Health()
	status := "ok"
	for _, h := range reports {
		if h.Status == worker.StatusError {
			status = "degraded"
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  status,
		"time":    time.Now().UTC(),
		"workers": reports,
	})
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	runs, err := s.backend.History(r.Context(), limit)
	if err != nil {
		s.log.Errorf(r.Context(), "list runs: %v", err)
		writeError(w, http.StatusInternalServerError, "list runs failed")
		return
	}
	if runs == nil {
		runs = []recorder.RunSummary{}
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	run, err := s.backend.Run(r.Context(), id)
	if errors.Is(err, recorder.ErrNotFound) {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	if err != nil {
		s.log.Errorf(r.Context(), "load run %s: %v", id, err)
		writeError(w, http.StatusInternalServerError, "load run failed")
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// analyzeRequest is the /analyze body. An empty body runs against the
// configured source.
type analyzeRequest struct {
	Dataset *model.Dataset  `json:"dataset"`
	Params  json.RawMessage `json:"params"`
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "read body failed")
		return
	}

	if len(body) == 0 {
		run, err := s.backend.Analyze(r.Context())
		if err != nil {
			s.log.Errorf(r.Context(), "analyze: %v", err)
			writeError(w, http.StatusBadGateway, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, run)
		return
	}

	var req analyzeRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON format")
		return
	}
	if req.Dataset == nil {
		writeError(w, http.StatusBadRequest, "dataset is required")
		return
	}
	for i, a := range req.Dataset.SupplierAlerts {
		if err := anomaly.ValidateSupplierAlert(a); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("supplier_alerts[%d]: %v", i, err))
			return
		}
	}

	// Params overlay the service defaults field by field.
	params := s.backend.DefaultParams()
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			writeError(w, http.StatusBadRequest, "params: "+err.Error())
			return
		}
	}
	if err := params.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "params: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.backend.RunDatasetWith(r.Context(), *req.Dataset, params))
}

func (s *Server) handleOptimize(w http.ResponseWriter, r *http.Request) {
	rep, err := s.backend.Optimize(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (s *Server) handleAnomalyStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.backend.AnomalyStats())
}
