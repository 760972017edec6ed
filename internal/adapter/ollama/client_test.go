package ollama

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geowatch/chartreader/internal/domain"
	"github.com/geowatch/chartreader/internal/observability"
)

func testClient(baseURL string) *Client {
	return NewClient(baseURL, 5*time.Second, 5*time.Second,
		observability.NewMetricsForTesting(),
		slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestClient_Generate_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)

		var payload map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "moondream", payload["model"])
		assert.Equal(t, false, payload["stream"])
		images, ok := payload["images"].([]any)
		require.True(t, ok)
		assert.Len(t, images, 1)

		opts, ok := payload["options"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, 0.3, opts["temperature"])
		assert.Equal(t, float64(2048), opts["num_predict"])

		_ = json.NewEncoder(w).Encode(map[string]string{"response": "The chart shows subsidence."})
	}))
	defer srv.Close()

	got, err := testClient(srv.URL).Generate(context.Background(), domain.Generation{
		Model:       "moondream",
		Prompt:      "Describe this chart.",
		Images:      []string{"aGVsbG8="},
		Temperature: 0.3,
		NumPredict:  2048,
	})
	require.NoError(t, err)
	assert.Equal(t, "The chart shows subsidence.", got)
}

func TestClient_Generate_EmptyResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{})
	}))
	defer srv.Close()

	got, err := testClient(srv.URL).Generate(context.Background(), domain.Generation{Model: "m", Prompt: "p"})
	require.NoError(t, err)
	assert.Equal(t, "No response generated.", got)
}

func TestClient_Generate_APIErrorDetail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"model 'moondream' not found"}`))
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).Generate(context.Background(), domain.Generation{Model: "moondream", Prompt: "p"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model 'moondream' not found")
}

func TestClient_Generate_ConnectError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close()

	_, err := testClient(srv.URL).Generate(context.Background(), domain.Generation{Model: "m", Prompt: "p"})
	require.ErrorIs(t, err, ErrNotReachable)
}

func TestClient_HasModel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/tags", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"models": []map[string]string{
				{"name": "moondream:latest"},
				{"name": "llama3.2:1b"},
			},
		})
	}))
	defer srv.Close()

	c := testClient(srv.URL)

	tests := []struct {
		model string
		want  bool
	}{
		{"llama3.2:1b", true},       // exact tag
		{"moondream", true},         // base name matches installed tag
		{"moondream:latest", true},  // exact tag
		{"llava:7b", false},         // not installed
	}
	for _, tt := range tests {
		got, err := c.HasModel(context.Background(), tt.model)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "model %s", tt.model)
	}
}

func TestClient_Ping(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"models": []any{}})
	}))
	defer srv.Close()

	assert.NoError(t, testClient(srv.URL).Ping(context.Background()))

	srv.Close()
	assert.ErrorIs(t, testClient(srv.URL).Ping(context.Background()), ErrNotReachable)
}

func TestClient_Pull(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/pull", r.URL.Path)
		var payload map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "moondream", payload["name"])
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	require.NoError(t, testClient(srv.URL).Pull(context.Background(), "moondream"))
}

func TestClient_Pull_Failure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"no space left"}`))
	}))
	defer srv.Close()

	err := testClient(srv.URL).Pull(context.Background(), "llava:7b")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no space left")
}
