package analysis_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geowatch/chartreader/internal/analysis"
	"github.com/geowatch/chartreader/internal/domain"
	"github.com/geowatch/chartreader/internal/observability"
	"github.com/geowatch/chartreader/internal/store"
)

// --- mocks ---

type mockModels struct {
	installed   map[string]bool
	pulled      []string
	pullErr     error
	pingErr     error
	generations []domain.Generation
	responses   []string // popped per Generate call
	generateErr []error  // aligned with responses, nil entries succeed
}

func (m *mockModels) Generate(_ context.Context, gen domain.Generation) (string, error) {
	i := len(m.generations)
	m.generations = append(m.generations, gen)
	if i < len(m.generateErr) && m.generateErr[i] != nil {
		return "", m.generateErr[i]
	}
	if i < len(m.responses) {
		return m.responses[i], nil
	}
	return "ok", nil
}

func (m *mockModels) HasModel(_ context.Context, name string) (bool, error) {
	return m.installed[name], nil
}

func (m *mockModels) Pull(_ context.Context, name string) error {
	if m.pullErr != nil {
		return m.pullErr
	}
	m.pulled = append(m.pulled, name)
	if m.installed == nil {
		m.installed = map[string]bool{}
	}
	m.installed[name] = true
	return nil
}

func (m *mockModels) Ping(_ context.Context) error { return m.pingErr }

type mockStations struct {
	payload []byte
	err     error

	statCode, startDate, endDate string
}

func (m *mockStations) FetchData(_ context.Context, statCode, startDate, endDate string) ([]byte, error) {
	m.statCode, m.startDate, m.endDate = statCode, startDate, endDate
	if m.err != nil {
		return nil, m.err
	}
	return m.payload, nil
}

type mockPublisher struct {
	published []analysis.StationAnalysis
	err       error
}

func (m *mockPublisher) PublishAnalysis(_ context.Context, a analysis.StationAnalysis) error {
	if m.err != nil {
		return m.err
	}
	m.published = append(m.published, a)
	return nil
}

func allModelsInstalled() map[string]bool {
	installed := map[string]bool{}
	for _, mode := range analysis.Modes {
		installed[mode.VisionModel] = true
		installed[mode.TextModel] = true
	}
	return installed
}

func newService(t *testing.T, models *mockModels, stations *mockStations, pub analysis.Publisher) *analysis.Service {
	t.Helper()
	uploads, err := store.NewUploads(t.TempDir())
	require.NoError(t, err)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return analysis.New(models, stations, uploads, pub, observability.NewMetricsForTesting(), logger, "moondream", "llama3.2:1b")
}

// --- mode resolution ---

func TestResolveMode(t *testing.T) {
	assert.Equal(t, "llava:7b", analysis.ResolveMode("llava").VisionModel)
	assert.Equal(t, "moondream", analysis.ResolveMode("moondream").Key)
	assert.Equal(t, analysis.DefaultModeKey, analysis.ResolveMode("nope").Key)
	assert.Equal(t, analysis.DefaultModeKey, analysis.ResolveMode("").Key)
}

// --- chart analysis ---

func TestAnalyzeChart(t *testing.T) {
	frozen := clockwork.NewFakeClockAt(time.Date(2026, 2, 3, 12, 0, 0, 0, time.UTC))
	analysis.SetClock(frozen)
	defer analysis.SetClock(nil)

	models := &mockModels{
		installed: allModelsInstalled(),
		responses: []string{"detailed description", "plain summary"},
	}
	svc := newService(t, models, &mockStations{}, nil)

	got, err := svc.AnalyzeChart(context.Background(), analysis.ChartRequest{
		Content:  []byte("imagebytes"),
		Filename: "plot.jpeg",
		Language: "en",
		ModeKey:  "llava",
	})
	require.NoError(t, err)

	assert.Len(t, got.ID, 8)
	assert.Equal(t, "chart_"+got.ID+".jpeg", got.Filename)
	assert.Equal(t, "detailed description", got.Description)
	assert.Equal(t, "plain summary", got.Summary)
	assert.Equal(t, "/api/charts/"+got.Filename, got.ChartURL)
	assert.Equal(t, frozen.Now().Format(time.RFC3339), got.Timestamp)
	assert.Equal(t, "llava:7b", got.Details["vision_model"])
	assert.Equal(t, "llava", got.Details["model_mode"])

	require.Len(t, models.generations, 2)
	vision := models.generations[0]
	assert.Equal(t, "llava:7b", vision.Model)
	require.Len(t, vision.Images, 1)
	assert.Contains(t, vision.Prompt, "geodetic engineer")
	text := models.generations[1]
	assert.Equal(t, "llama3.2:3b", text.Model)
	assert.Contains(t, text.Prompt, "detailed description")
}

func TestAnalyzeChartThaiPrompt(t *testing.T) {
	models := &mockModels{installed: allModelsInstalled()}
	svc := newService(t, models, &mockStations{}, nil)

	_, err := svc.AnalyzeChart(context.Background(), analysis.ChartRequest{
		Content: []byte("x"), Language: "th",
	})
	require.NoError(t, err)
	assert.Contains(t, models.generations[0].Prompt, "Thai language")
}

func TestAnalyzeChartPullsMissingVisionModel(t *testing.T) {
	models := &mockModels{installed: map[string]bool{"llama3.2:1b": true}}
	svc := newService(t, models, &mockStations{}, nil)

	_, err := svc.AnalyzeChart(context.Background(), analysis.ChartRequest{Content: []byte("x")})
	require.NoError(t, err)
	assert.Contains(t, models.pulled, "moondream")
}

func TestAnalyzeChartVisionModelUnavailable(t *testing.T) {
	models := &mockModels{pullErr: errors.New("no space")}
	svc := newService(t, models, &mockStations{}, nil)

	_, err := svc.AnalyzeChart(context.Background(), analysis.ChartRequest{Content: []byte("x")})
	var unavailable *domain.AnalysisUnavailableError
	require.ErrorAs(t, err, &unavailable)
	assert.Equal(t, "moondream", unavailable.Model)
	assert.Empty(t, models.generations)
}

func TestAnalyzeChartSummaryFallback(t *testing.T) {
	long := strings.Repeat("d", 400)
	models := &mockModels{
		installed:   allModelsInstalled(),
		responses:   []string{long, ""},
		generateErr: []error{nil, errors.New("text model crashed")},
	}
	svc := newService(t, models, &mockStations{}, nil)

	got, err := svc.AnalyzeChart(context.Background(), analysis.ChartRequest{Content: []byte("x")})
	require.NoError(t, err)
	assert.Equal(t, long[:300]+"...", got.Summary)
}

// --- station analysis ---

const stationPayload = `[
	{"timestamp":"2024-01-01T00:00:00","de":0.01,"dn":0.02,"dh":-0.03},
	{"timestamp":"2024-01-02T00:00:00","de":0.02,"dn":0.03,"dh":-0.05}
]`

func TestAnalyzeStation(t *testing.T) {
	models := &mockModels{
		installed: allModelsInstalled(),
		responses: []string{"trend analysis", "short summary"},
	}
	stations := &mockStations{payload: []byte(stationPayload)}
	pub := &mockPublisher{}
	svc := newService(t, models, stations, pub)

	got, err := svc.AnalyzeStation(context.Background(), analysis.StationRequest{
		StatCode:  "BKK1",
		StartDate: "2024-01-01",
		EndDate:   "2024-01-31",
		Language:  "en",
		ModeKey:   "moondream",
	})
	require.NoError(t, err)

	assert.Equal(t, "BKK1", got.StatCode)
	assert.Equal(t, "trend analysis", got.Description)
	assert.Equal(t, "short summary", got.Summary)
	assert.Equal(t, 2, got.Details["data_points"])
	assert.Equal(t, "BKK1", stations.statCode)
	assert.Equal(t, "2024-01-01", stations.startDate)

	// Bare-array payloads get wrapped for the response body.
	records, ok := got.StationData["records"].([]any)
	require.True(t, ok)
	assert.Len(t, records, 2)

	require.Len(t, models.generations, 2)
	assert.Equal(t, 4096, models.generations[0].NumCtx)
	assert.Contains(t, models.generations[0].Prompt, "station BKK1")
	assert.Contains(t, models.generations[0].Prompt, "Total data points: 2")

	require.Len(t, pub.published, 1)
	assert.Equal(t, got.ID, pub.published[0].ID)
}

func TestAnalyzeStationFetchErrorPropagates(t *testing.T) {
	fetchErr := &domain.FetchError{StatusCode: 502, Detail: "upstream down"}
	models := &mockModels{installed: allModelsInstalled()}
	svc := newService(t, models, &mockStations{err: fetchErr}, nil)

	_, err := svc.AnalyzeStation(context.Background(), analysis.StationRequest{StatCode: "BKK1"})
	var got *domain.FetchError
	require.ErrorAs(t, err, &got)
	assert.Equal(t, 502, got.StatusCode)
}

func TestAnalyzeStationTextModelUnavailable(t *testing.T) {
	models := &mockModels{pullErr: errors.New("ollama down")}
	svc := newService(t, models, &mockStations{}, nil)

	_, err := svc.AnalyzeStation(context.Background(), analysis.StationRequest{StatCode: "BKK1"})
	var unavailable *domain.AnalysisUnavailableError
	require.ErrorAs(t, err, &unavailable)
	assert.Equal(t, "llama3.2:1b", unavailable.Model)
}

func TestAnalyzeStationPublishFailureIsBestEffort(t *testing.T) {
	models := &mockModels{installed: allModelsInstalled()}
	svc := newService(t, models, &mockStations{payload: []byte(stationPayload)}, &mockPublisher{err: errors.New("broker down")})

	_, err := svc.AnalyzeStation(context.Background(), analysis.StationRequest{StatCode: "BKK1"})
	assert.NoError(t, err)
}

func TestAnalyzeStationObjectPayloadPassesThrough(t *testing.T) {
	models := &mockModels{installed: allModelsInstalled()}
	payload := `{"data":[{"timestamp":"2024-01-01","de":0.01}],"station":"BKK1"}`
	svc := newService(t, models, &mockStations{payload: []byte(payload)}, nil)

	got, err := svc.AnalyzeStation(context.Background(), analysis.StationRequest{StatCode: "BKK1"})
	require.NoError(t, err)
	assert.Equal(t, "BKK1", got.StationData["station"])
	assert.Equal(t, "N/A", got.Details["data_points"])
}

// --- status ---

func TestStatusConnected(t *testing.T) {
	models := &mockModels{installed: map[string]bool{
		"moondream":   true,
		"llama3.2:1b": true,
	}}
	svc := newService(t, models, &mockStations{}, nil)

	got := svc.Status(context.Background())
	assert.Equal(t, "connected", got.OllamaStatus)
	assert.True(t, got.VisionModelReady)
	assert.True(t, got.TextModelReady)

	moondream := got.AvailableModes["moondream"]
	assert.True(t, moondream.Ready)
	llava := got.AvailableModes["llava"]
	assert.False(t, llava.Ready)
	assert.False(t, llava.VisionReady)
}

func TestStatusDisconnected(t *testing.T) {
	models := &mockModels{pingErr: errors.New("refused"), installed: allModelsInstalled()}
	svc := newService(t, models, &mockStations{}, nil)

	got := svc.Status(context.Background())
	assert.Equal(t, "disconnected", got.OllamaStatus)
	assert.False(t, got.VisionModelReady)
	for _, mode := range got.AvailableModes {
		assert.False(t, mode.Ready)
	}
}
