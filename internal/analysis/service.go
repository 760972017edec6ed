// Package analysis orchestrates model-backed analysis of displacement
// charts and raw station data. It owns prompt construction, model mode
// resolution, and the two-step describe-then-summarize flow.
package analysis

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/geowatch/chartreader/internal/domain"
	"github.com/geowatch/chartreader/internal/observability"
	"github.com/geowatch/chartreader/internal/store"
)

// Publisher emits completed station analyses to downstream consumers.
type Publisher interface {
	PublishAnalysis(ctx context.Context, a StationAnalysis) error
}

// ChartRequest is an uploaded chart image to analyze.
type ChartRequest struct {
	Content  []byte
	Filename string // original upload filename, may be empty
	Language string // "en" or "th"
	ModeKey  string
}

// ChartAnalysis is the result of a chart image analysis.
type ChartAnalysis struct {
	ID          string         `json:"id"`
	Filename    string         `json:"filename"`
	Description string         `json:"description"`
	Summary     string         `json:"summary"`
	Details     map[string]any `json:"details"`
	Timestamp   string         `json:"timestamp"`
	ChartURL    string         `json:"chart_url"`
}

// StationRequest identifies station records to fetch and analyze.
type StationRequest struct {
	StatCode  string
	StartDate string
	EndDate   string
	Language  string
	ModeKey   string
}

// StationAnalysis is the result of a station data analysis.
type StationAnalysis struct {
	ID          string         `json:"id"`
	StatCode    string         `json:"stat_code"`
	Description string         `json:"description"`
	Summary     string         `json:"summary"`
	Details     map[string]any `json:"details"`
	StationData map[string]any `json:"station_data"`
	Timestamp   string         `json:"timestamp"`
}

// ModeStatus reports readiness of one model mode.
type ModeStatus struct {
	Name          string `json:"name"`
	Description   string `json:"description"`
	DescriptionTH string `json:"description_th"`
	Icon          string `json:"icon"`
	VisionModel   string `json:"vision_model"`
	TextModel     string `json:"text_model"`
	VisionReady   bool   `json:"vision_ready"`
	TextReady     bool   `json:"text_ready"`
	Ready         bool   `json:"ready"`
}

// ModelStatus reports model server connectivity and per-model readiness.
type ModelStatus struct {
	OllamaStatus     string                `json:"ollama_status"`
	VisionModel      string                `json:"vision_model"`
	TextModel        string                `json:"text_model"`
	VisionModelReady bool                  `json:"vision_model_ready"`
	TextModelReady   bool                  `json:"text_model_ready"`
	AvailableModes   map[string]ModeStatus `json:"available_modes"`
}

// Service runs chart and station analyses against the model server.
type Service struct {
	models      domain.ModelClient
	stations    domain.StationFetcher
	uploads     *store.Uploads
	publisher   Publisher // nil when publishing is disabled
	metrics     *observability.Metrics
	logger      *slog.Logger
	visionModel string // default vision model, reported by Status
	textModel   string // default text model, reported by Status
}

// New creates a Service. publisher may be nil.
func New(models domain.ModelClient, stations domain.StationFetcher, uploads *store.Uploads, publisher Publisher, metrics *observability.Metrics, logger *slog.Logger, visionModel, textModel string) *Service {
	return &Service{
		models:      models,
		stations:    stations,
		uploads:     uploads,
		publisher:   publisher,
		metrics:     metrics,
		logger:      logger,
		visionModel: visionModel,
		textModel:   textModel,
	}
}

// AnalyzeChart stores the uploaded image and runs the two-step
// describe-then-summarize flow against the mode's vision and text models.
// The text summary is best effort: if it fails, a truncated description
// stands in.
func (s *Service) AnalyzeChart(ctx context.Context, req ChartRequest) (ChartAnalysis, error) {
	start := time.Now()
	mode := ResolveMode(req.ModeKey)

	if !s.ensureModel(ctx, mode.VisionModel) {
		s.metrics.AnalysisRequests.WithLabelValues("chart", "unavailable").Inc()
		return ChartAnalysis{}, &domain.AnalysisUnavailableError{
			Model: mode.VisionModel,
			Detail: fmt.Sprintf("vision model %q is not available and could not be pulled; "+
				"check that Ollama is running and has enough resources", mode.VisionModel),
		}
	}
	if !s.ensureModel(ctx, mode.TextModel) {
		s.logger.Warn("text model not available, will attempt anyway", "model", mode.TextModel)
	}

	id := uuid.NewString()[:8]
	filename, err := s.uploads.SaveChart(id, req.Filename, req.Content)
	if err != nil {
		s.metrics.AnalysisRequests.WithLabelValues("chart", "error").Inc()
		return ChartAnalysis{}, fmt.Errorf("saving chart upload: %w", err)
	}

	encoded := base64.StdEncoding.EncodeToString(req.Content)
	description, err := s.models.Generate(ctx, domain.Generation{
		Model:       mode.VisionModel,
		Prompt:      visionPrompt(req.Language),
		Images:      []string{encoded},
		Temperature: 0.3,
		NumPredict:  1024,
	})
	if err != nil {
		s.metrics.AnalysisRequests.WithLabelValues("chart", "unavailable").Inc()
		return ChartAnalysis{}, &domain.AnalysisUnavailableError{Model: mode.VisionModel, Detail: err.Error()}
	}

	summary := s.summarize(ctx, mode.TextModel, chartSummaryPrompt(req.Language, description), description, 0)

	s.metrics.AnalysisRequests.WithLabelValues("chart", "success").Inc()
	s.metrics.AnalysisSeconds.WithLabelValues("chart").Observe(time.Since(start).Seconds())

	return ChartAnalysis{
		ID:          id,
		Filename:    filename,
		Description: description,
		Summary:     summary,
		Details: map[string]any{
			"vision_model":      mode.VisionModel,
			"text_model":        mode.TextModel,
			"model_mode":        mode.Key,
			"original_filename": req.Filename,
			"file_size_kb":      math.Round(float64(len(req.Content))/1024*10) / 10,
			"language":          req.Language,
		},
		Timestamp: clock.Now().Format(time.RFC3339),
		ChartURL:  "/api/charts/" + filename,
	}, nil
}

// AnalyzeStation fetches a station's records, condenses them into a numeric
// summary, and asks the mode's text model to interpret them. Fetch errors
// propagate unchanged so the API boundary can map them to upstream statuses.
func (s *Service) AnalyzeStation(ctx context.Context, req StationRequest) (StationAnalysis, error) {
	start := time.Now()
	mode := ResolveMode(req.ModeKey)

	if !s.ensureModel(ctx, mode.TextModel) {
		s.metrics.AnalysisRequests.WithLabelValues("station", "unavailable").Inc()
		return StationAnalysis{}, &domain.AnalysisUnavailableError{
			Model:  mode.TextModel,
			Detail: fmt.Sprintf("text model %q is not available; check that Ollama is running", mode.TextModel),
		}
	}

	payload, err := s.stations.FetchData(ctx, req.StatCode, req.StartDate, req.EndDate)
	if err != nil {
		s.metrics.AnalysisRequests.WithLabelValues("station", "error").Inc()
		return StationAnalysis{}, err
	}

	_, records := domain.NormalizePayload(payload)
	s.metrics.RecordsNormalized.Observe(float64(len(records)))
	dataSummary := domain.SummarizeStationData(records, req.StatCode)

	description, err := s.models.Generate(ctx, domain.Generation{
		Model:       mode.TextModel,
		Prompt:      stationAnalysisPrompt(req.StatCode, req.Language, dataSummary),
		Temperature: 0.3,
		NumPredict:  1024,
		NumCtx:      4096,
	})
	if err != nil {
		s.metrics.AnalysisRequests.WithLabelValues("station", "unavailable").Inc()
		return StationAnalysis{}, &domain.AnalysisUnavailableError{Model: mode.TextModel, Detail: err.Error()}
	}

	summary := s.summarize(ctx, mode.TextModel, stationSummaryPrompt(req.StatCode, req.Language, description), description, 4096)

	result := StationAnalysis{
		ID:          uuid.NewString()[:8],
		StatCode:    req.StatCode,
		Description: description,
		Summary:     summary,
		Details: map[string]any{
			"text_model":  mode.TextModel,
			"model_mode":  mode.Key,
			"language":    req.Language,
			"start_date":  req.StartDate,
			"end_date":    req.EndDate,
			"data_points": dataPoints(payload),
		},
		StationData: stationData(payload),
		Timestamp:   clock.Now().Format(time.RFC3339),
	}

	s.metrics.AnalysisRequests.WithLabelValues("station", "success").Inc()
	s.metrics.AnalysisSeconds.WithLabelValues("station").Observe(time.Since(start).Seconds())

	s.publish(ctx, result)
	return result, nil
}

// Status probes the model server and reports readiness of the configured
// models and every mode.
func (s *Service) Status(ctx context.Context) ModelStatus {
	status := ModelStatus{
		OllamaStatus:   "disconnected",
		VisionModel:    s.visionModel,
		TextModel:      s.textModel,
		AvailableModes: make(map[string]ModeStatus, len(Modes)),
	}
	connected := s.models.Ping(ctx) == nil
	if connected {
		status.OllamaStatus = "connected"
		status.VisionModelReady = s.hasModel(ctx, s.visionModel)
		status.TextModelReady = s.hasModel(ctx, s.textModel)
	}
	for _, m := range Modes {
		ms := ModeStatus{
			Name:          m.Name,
			Description:   m.Description,
			DescriptionTH: m.DescriptionTH,
			Icon:          m.Icon,
			VisionModel:   m.VisionModel,
			TextModel:     m.TextModel,
		}
		if connected {
			ms.VisionReady = s.hasModel(ctx, m.VisionModel)
			ms.TextReady = s.hasModel(ctx, m.TextModel)
			ms.Ready = ms.VisionReady && ms.TextReady
		}
		status.AvailableModes[m.Key] = ms
	}
	return status
}

// summarize runs the summary generation, falling back to a truncated
// description when the text model fails. numCtx of 0 keeps the server default.
func (s *Service) summarize(ctx context.Context, model, prompt, description string, numCtx int) string {
	summary, err := s.models.Generate(ctx, domain.Generation{
		Model:       model,
		Prompt:      prompt,
		Temperature: 0.3,
		NumPredict:  1024,
		NumCtx:      numCtx,
	})
	if err != nil {
		s.logger.Warn("summary generation failed, falling back to description", "model", model, "error", err)
		if len(description) > 300 {
			return description[:300] + "..."
		}
		return description
	}
	return summary
}

// ensureModel reports whether a model is installed, pulling it first if not.
func (s *Service) ensureModel(ctx context.Context, name string) bool {
	if s.hasModel(ctx, name) {
		return true
	}
	s.logger.Info("model not found, attempting to pull", "model", name)
	if err := s.models.Pull(ctx, name); err != nil {
		s.logger.Error("model pull failed", "model", name, "error", err)
		return false
	}
	return true
}

func (s *Service) hasModel(ctx context.Context, name string) bool {
	ok, err := s.models.HasModel(ctx, name)
	if err != nil {
		s.logger.Error("model check failed", "model", name, "error", err)
		return false
	}
	return ok
}

// publish sends the analysis downstream. Failures are logged, never
// surfaced: publishing is strictly best effort.
func (s *Service) publish(ctx context.Context, a StationAnalysis) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishAnalysis(ctx, a); err != nil {
		s.logger.Error("failed to publish analysis", "stat_code", a.StatCode, "error", err)
		return
	}
	s.metrics.AnalysesPublished.Inc()
}

// stationData reshapes the raw payload for the response body. Arrays are
// wrapped under a "records" key; objects pass through.
func stationData(payload []byte) map[string]any {
	var v any
	if err := json.Unmarshal(payload, &v); err != nil {
		return map[string]any{}
	}
	switch t := v.(type) {
	case map[string]any:
		return t
	default:
		return map[string]any{"records": v}
	}
}

// dataPoints reports the record count for bare-array payloads, "N/A" otherwise.
func dataPoints(payload []byte) any {
	var arr []any
	if err := json.Unmarshal(payload, &arr); err != nil {
		return "N/A"
	}
	return len(arr)
}
