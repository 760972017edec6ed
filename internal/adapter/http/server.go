// Package http exposes the chart reader API plus the operational
// health, readiness, and metrics routes.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/geowatch/chartreader/internal/analysis"
	"github.com/geowatch/chartreader/internal/chart"
	"github.com/geowatch/chartreader/internal/domain"
	"github.com/geowatch/chartreader/internal/preview"
	"github.com/geowatch/chartreader/internal/session"
	"github.com/geowatch/chartreader/internal/store"
)

// maxUploadBytes caps chart image uploads at 16 MiB.
const maxUploadBytes = 16 << 20

// Server exposes the chart reader HTTP API.
type Server struct {
	httpServer *http.Server
	analyses   *analysis.Service
	stations   domain.StationFetcher
	renderer   *chart.Renderer
	session    *session.State
	uploads    *store.Uploads
	logger     *slog.Logger
}

// NewServer wires the API routes onto a mux with permissive CORS.
func NewServer(addr string, analyses *analysis.Service, stations domain.StationFetcher, renderer *chart.Renderer, sess *session.State, uploads *store.Uploads, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      allowCORS(mux),
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 15 * time.Minute, // analysis requests wait on model inference
			IdleTimeout:  60 * time.Second,
		},
		analyses: analyses,
		stations: stations,
		renderer: renderer,
		session:  sess,
		uploads:  uploads,
		logger:   logger,
	}

	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/models/status", s.handleModelStatus)
	mux.HandleFunc("POST /api/analyze", s.handleAnalyzeChart)
	mux.HandleFunc("GET /api/charts/{filename}", s.handleGetChart)
	mux.HandleFunc("GET /api/station/data", s.handleStationData)
	mux.HandleFunc("GET /api/station/chart", s.handleStationChart)
	mux.HandleFunc("POST /api/station/analyze", s.handleAnalyzeStation)

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

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// handleReady reports ready once the model server answers a probe.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := s.analyses.Status(ctx)
	if status.OllamaStatus != "connected" {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"error":  "model server unreachable",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

func (s *Server) handleModelStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.analyses.Status(r.Context()))
}

// handleAnalyzeChart accepts a multipart image upload and runs the vision
// analysis flow.
func (s *Server) handleAnalyzeChart(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form: "+err.Error())
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file upload")
		return
	}
	defer file.Close()

	if ct := header.Header.Get("Content-Type"); !strings.HasPrefix(ct, "image/") {
		writeError(w, http.StatusBadRequest, "Only image files are accepted.")
		return
	}

	content, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "reading upload: "+err.Error())
		return
	}

	result, err := s.analyses.AnalyzeChart(r.Context(), analysis.ChartRequest{
		Content:  content,
		Filename: header.Filename,
		Language: s.language(r.FormValue("language")),
		ModeKey:  s.modelMode(r.FormValue("model_mode")),
	})
	if err != nil {
		s.writeAnalysisError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleGetChart(w http.ResponseWriter, r *http.Request) {
	path, err := s.uploads.Path(r.PathValue("filename"))
	if err != nil {
		writeError(w, http.StatusNotFound, "Chart not found")
		return
	}
	http.ServeFile(w, r, path)
}

// stationDataResponse carries the canonical sequence plus the preview table.
type stationDataResponse struct {
	StatCode string             `json:"stat_code"`
	Records  domain.Series      `json:"records"`
	Count    int                `json:"count"`
	Preview  string             `json:"preview"`
	Stale    bool               `json:"stale"`
	Raw      []domain.RawRecord `json:"raw_records"`
}

// handleStationData fetches, normalizes, and caches one station's records.
// A response that lost the last-write-wins race still returns its data but
// is marked stale and not cached.
func (s *Server) handleStationData(w http.ResponseWriter, r *http.Request) {
	statCode := r.URL.Query().Get("stat_code")
	startDate := r.URL.Query().Get("start_date")
	endDate := r.URL.Query().Get("end_date")

	ticket := s.session.BeginFetch()
	payload, err := s.stations.FetchData(r.Context(), statCode, startDate, endDate)
	if err != nil {
		s.writeFetchError(w, err)
		return
	}

	series, raw := domain.NormalizePayload(payload)
	applied := s.session.ApplyFetch(ticket, statCode, series, raw)
	if !applied {
		s.logger.Info("discarding stale fetch result", "stat_code", statCode, "ticket", ticket)
	}

	previewText, err := preview.Build(raw)
	if err != nil {
		s.logger.Error("preview table build failed", "stat_code", statCode, "error", err)
	}

	writeJSON(w, http.StatusOK, stationDataResponse{
		StatCode: statCode,
		Records:  series,
		Count:    len(series),
		Preview:  previewText,
		Stale:    !applied,
		Raw:      raw,
	})
}

// handleStationChart re-renders the cached series. Theme, window, and pixel
// density come from query params; nothing is refetched.
func (s *Server) handleStationChart(w http.ResponseWriter, r *http.Request) {
	snapshot, ok := s.session.Cached()
	if !ok {
		writeError(w, http.StatusNotFound, "no station data fetched yet")
		return
	}

	q := r.URL.Query()
	if theme := q.Get("theme"); theme != "" {
		s.session.SetTheme(theme)
	}

	density := 1.0
	if raw := q.Get("density"); raw != "" {
		var err error
		density, err = strconv.ParseFloat(raw, 64)
		if err != nil || density <= 0 {
			writeError(w, http.StatusBadRequest, "invalid density: must be a positive number")
			return
		}
	}

	png, err := s.renderer.Render(snapshot.Series, snapshot.StationCode, chart.Options{
		Theme:        chart.Theme(s.session.Theme()),
		From:         q.Get("from"),
		To:           q.Get("to"),
		PixelDensity: density,
	})
	if err != nil {
		if errors.Is(err, chart.ErrEmptySeries) || errors.Is(err, chart.ErrNoSamples) {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		s.logger.Error("chart render failed", "stat_code", snapshot.StationCode, "error", err)
		writeError(w, http.StatusInternalServerError, "chart render failed")
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	w.Write(png) //nolint:errcheck // client gone, nothing to do
}

func (s *Server) handleAnalyzeStation(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form: "+err.Error())
		return
	}

	result, err := s.analyses.AnalyzeStation(r.Context(), analysis.StationRequest{
		StatCode:  r.FormValue("stat_code"),
		StartDate: r.FormValue("start_date"),
		EndDate:   r.FormValue("end_date"),
		Language:  s.language(r.FormValue("language")),
		ModeKey:   s.modelMode(r.FormValue("model_mode")),
	})
	if err != nil {
		s.writeAnalysisError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// language resolves the request language, updating the session preference
// when the request names one.
func (s *Server) language(v string) string {
	if v != "" {
		s.session.SetLanguage(v)
	}
	return s.session.Language()
}

func (s *Server) modelMode(v string) string {
	if v != "" {
		s.session.SetModelMode(v)
	}
	return s.session.ModelMode()
}

// writeFetchError maps station fetch failures onto upstream-style statuses.
func (s *Server) writeFetchError(w http.ResponseWriter, err error) {
	var validation *domain.ValidationError
	if errors.As(err, &validation) {
		writeError(w, http.StatusBadRequest, validation.Error())
		return
	}
	var fetch *domain.FetchError
	if errors.As(err, &fetch) {
		switch {
		case fetch.StatusCode != 0:
			writeError(w, fetch.StatusCode, "station API error: "+fetch.Detail)
		case isTimeout(fetch.Cause):
			writeError(w, http.StatusGatewayTimeout, "station API request timed out")
		default:
			writeError(w, http.StatusBadGateway, "cannot connect to station API server")
		}
		return
	}
	s.logger.Error("station data fetch failed", "error", err)
	writeError(w, http.StatusInternalServerError, err.Error())
}

// writeAnalysisError maps analysis failures. Upstream fetch errors collapse
// to 502/504 here, not the upstream status passthrough used by the raw data
// endpoint.
func (s *Server) writeAnalysisError(w http.ResponseWriter, err error) {
	var validation *domain.ValidationError
	if errors.As(err, &validation) {
		writeError(w, http.StatusBadRequest, validation.Error())
		return
	}
	var unavailable *domain.AnalysisUnavailableError
	if errors.As(err, &unavailable) {
		writeError(w, http.StatusServiceUnavailable, unavailable.Detail)
		return
	}
	var fetch *domain.FetchError
	if errors.As(err, &fetch) {
		switch {
		case isTimeout(fetch.Cause):
			writeError(w, http.StatusGatewayTimeout, "station API request timed out")
		case fetch.StatusCode != 0:
			writeError(w, http.StatusBadGateway, "station API error: "+fetch.Detail)
		default:
			writeError(w, http.StatusBadGateway, "cannot connect to station API server")
		}
		return
	}
	s.logger.Error("analysis failed", "error", err)
	writeError(w, http.StatusInternalServerError, err.Error())
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// allowCORS applies the permissive CORS policy and answers preflights.
func allowCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}

// writeError mirrors the upstream {"detail": ...} error body shape.
func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
