package http

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/couchcryptid/aqi-cluster/internal/adapter/dashboard"
	"github.com/couchcryptid/aqi-cluster/internal/domain"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ReportSource returns the most recent cluster report, if any.
type ReportSource interface {
	Latest() (domain.ClusterReport, bool)
}

// Server exposes health, metrics, and cluster report HTTP endpoints.
type Server struct {
	httpServer *http.Server
	reports    ReportSource
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz, /metrics,
// /api/report and /dashboard routes.
func NewServer(addr string, ready sharedobs.ReadinessChecker, reports ReportSource, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		reports: reports,
		logger:  logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(ready))
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /api/report", s.handleReport)
	mux.HandleFunc("GET /api/clusters/{index}", s.handleCluster)
	mux.HandleFunc("GET /dashboard", s.handleDashboard)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleReport(w http.ResponseWriter, _ *http.Request) {
	report, ok := s.reports.Latest()
	if !ok {
		writeNoReport(w)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// clusterResponse lists the counties of one cluster with its ranking.
type clusterResponse struct {
	RunID     string             `json:"run_id"`
	Index     int                `json:"index"`
	Rank      int                `json:"rank"`
	MeanScore float64            `json:"mean_score"`
	Counties  []domain.CountyKey `json:"counties"`
}

func (s *Server) handleCluster(w http.ResponseWriter, r *http.Request) {
	report, ok := s.reports.Latest()
	if !ok {
		writeNoReport(w)
		return
	}

	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil || index < 0 || index >= report.K {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown cluster " + r.PathValue("index")})
		return
	}

	resp := clusterResponse{RunID: report.RunID, Index: index, Counties: []domain.CountyKey{}}
	for i, score := range report.Rankings {
		if score.Index == index {
			resp.Rank = i + 1
			resp.MeanScore = score.MeanScore
		}
	}
	for _, a := range report.Assignments {
		if a.Cluster == index {
			resp.Counties = append(resp.Counties, a.County)
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDashboard(w http.ResponseWriter, _ *http.Request) {
	report, ok := s.reports.Latest()
	if !ok {
		http.Error(w, "no cluster report available yet", http.StatusServiceUnavailable)
		return
	}

	var buf bytes.Buffer
	if err := dashboard.Render(&buf, report); err != nil {
		s.logger.Error("dashboard render failed", "run_id", report.RunID, "error", err)
		http.Error(w, "dashboard unavailable", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	buf.WriteTo(w) //nolint:errcheck // client may have gone away
}

func writeNoReport(w http.ResponseWriter) {
	writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "no cluster report available yet"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}
