// Package api serves log queries over HTTP.
package api

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

	"fwlog/internal/logger"
	"fwlog/internal/metrics"
	"fwlog/internal/orchestrator"
	vendor "fwlog/internal/firewall"
	"fwlog/pkg/models"
)

const maxBodyBytes = 1 << 20

// Directory is what the API needs from the device directory.
type Directory interface {
	orchestrator.Resolver
	ListAll() []models.FirewallEndpoint
}

// Server routes API requests to the orchestrator.
type Server struct {
	orch    *orchestrator.Orchestrator
	dir     Directory
	metrics *metrics.Metrics
	router  chi.Router
	started time.Time
}

// HealthResponse is returned by /api/health.
type HealthResponse struct {
	Status  string   `json:"status"`
	Uptime  string   `json:"uptime"`
	Devices int      `json:"devices"`
	Vendors []string `json:"vendors"`
}

type errorResponse struct {
	Error     string           `json:"error"`
	ErrorKind models.ErrorKind `json:"error_kind,omitempty"`
}

// New builds the router. m may be nil, in which case /metrics is not mounted.
func New(orch *orchestrator.Orchestrator, dir Directory, m *metrics.Metrics, corsOrigins []string) *Server {
	s := &Server{orch: orch, dir: dir, metrics: m, started: time.Now()}
	if len(corsOrigins) == 0 {
		corsOrigins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: corsOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/devices", s.handleDevices)
		r.Get("/devices/{name}/traffic", s.handleDeviceTraffic)
		r.Get("/devices/{name}/system", s.handleDeviceSystem)
		r.Post("/query", s.handleQuery)
	})
	if m != nil {
		r.Handle("/metrics", m.Handler())
	}
	s.router = r
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Infof("API listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:  "ok",
		Uptime:  time.Since(s.started).Round(time.Second).String(),
		Devices: len(s.dir.ListAll()),
		Vendors: vendorNames(),
	})
}

func (s *Server) handleDevices(w http.ResponseWriter, r *http.Request) {
	devices := s.dir.ListAll()
	if devices == nil {
		devices = []models.FirewallEndpoint{}
	}
	writeJSON(w, http.StatusOK, devices)
}

func (s *Server) handleDeviceTraffic(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	s.serveDevice(w, r, models.QueryRequest{
		Kind:   models.KindTraffic,
		Device: chi.URLParam(r, "name"),
		Src:    q.Get("src"),
		Dst:    q.Get("dst"),
		Limit:  limit,
	})
}

func (s *Server) handleDeviceSystem(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}
	s.serveDevice(w, r, models.QueryRequest{
		Kind:     models.KindSystem,
		Device:   chi.URLParam(r, "name"),
		Severity: r.URL.Query().Get("severity"),
		Limit:    limit,
	})
}

func (s *Server) serveDevice(w http.ResponseWriter, r *http.Request, req models.QueryRequest) {
	req.ID = middleware.GetReqID(r.Context())
	results, err := s.orch.Execute(r.Context(), s.dir, req)
	if err != nil {
		s.metrics.ObserveRequest("http", "invalid")
		writeError(w, statusFor(err), err)
		return
	}
	if len(results) == 0 {
		s.metrics.ObserveRequest("http", "not_found")
		writeError(w, http.StatusNotFound, models.ErrDeviceNotFound)
		return
	}
	res := results[0]
	if errors.Is(res.Err, models.ErrDeviceNotFound) {
		s.metrics.ObserveRequest("http", "not_found")
		writeError(w, http.StatusNotFound, res.Err)
		return
	}
	s.metrics.ObserveRequest("http", "ok")
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req models.QueryRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		s.metrics.ObserveRequest("http", "invalid")
		writeError(w, http.StatusBadRequest, errors.Join(models.ErrInvalidRequest, err))
		return
	}
	if req.ID == "" {
		req.ID = middleware.GetReqID(r.Context())
	}

	results, err := s.orch.Execute(r.Context(), s.dir, req)
	resp := models.NewQueryResponse(req.ID, results, err)
	if err != nil {
		status := statusFor(err)
		s.metrics.ObserveRequest("http", outcomeFor(status))
		writeJSON(w, status, resp)
		return
	}
	s.metrics.ObserveRequest("http", "ok")
	writeJSON(w, http.StatusOK, resp)
}

func vendorNames() []string {
	out := []string{}
	for _, v := range vendor.Vendors() {
		out = append(out, string(v))
	}
	return out
}

func parseLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get("limit"))
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		writeError(w, http.StatusBadRequest, errors.Join(models.ErrInvalidRequest, errors.New("limit must be a non-negative integer")))
		return 0, false
	}
	return n, true
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrNoCandidateDevices), errors.Is(err, models.ErrDeviceNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func outcomeFor(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "invalid"
	case http.StatusNotFound:
		return "not_found"
	default:
		return "error"
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warnf("API: encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error(), ErrorKind: models.KindOf(err)})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		logger.Debugf("API %s %s -> %d (%s) [%s]", r.Method, r.URL.Path, ww.Status(), time.Since(start).Round(time.Millisecond), middleware.GetReqID(r.Context()))
	})
}
