// Package ollama is the HTTP client for the local Ollama model server.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/geowatch/chartreader/internal/domain"
	"github.com/geowatch/chartreader/internal/observability"
)

// ErrNotReachable reports that the Ollama server did not answer at all, as
// opposed to answering with an API error.
var ErrNotReachable = errors.New("cannot connect to Ollama")

// Client talks to the Ollama HTTP API. Safe for concurrent use.
type Client struct {
	baseURL     string
	httpClient  *http.Client // generate requests
	quickClient *http.Client // tags / status probes
	pullClient  *http.Client // model pulls, much longer timeout
	metrics     *observability.Metrics
	logger      *slog.Logger
}

// NewClient creates an Ollama client. timeout bounds generate requests,
// pullTimeout bounds model pulls; status probes use a short fixed timeout.
func NewClient(baseURL string, timeout, pullTimeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		httpClient:  &http.Client{Timeout: timeout},
		quickClient: &http.Client{Timeout: 10 * time.Second},
		pullClient:  &http.Client{Timeout: pullTimeout},
		metrics:     metrics,
		logger:      logger,
	}
}

type generatePayload struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	Images  []string        `json:"images,omitempty"`
	Stream  bool            `json:"stream"`
	Options generateOptions `json:"options"`
}

type generateOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict"`
	NumCtx      int     `json:"num_ctx,omitempty"`
}

// Generate runs a non-streaming completion and returns the response text.
// Implements domain.ModelClient.
func (c *Client) Generate(ctx context.Context, gen domain.Generation) (string, error) {
	payload := generatePayload{
		Model:  gen.Model,
		Prompt: gen.Prompt,
		Images: gen.Images,
		Options: generateOptions{
			Temperature: gen.Temperature,
			NumPredict:  gen.NumPredict,
			NumCtx:      gen.NumCtx,
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode generate request: %w", err)
	}

	start := time.Now()
	resp, err := c.do(ctx, c.httpClient, http.MethodPost, "/api/generate", body)
	c.metrics.ModelRequestSeconds.WithLabelValues("generate").Observe(time.Since(start).Seconds())
	if err != nil {
		return "", classifyTransport(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read generate response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		detail := apiErrorDetail(raw, resp.StatusCode)
		c.logger.Error("ollama generate error", "model", gen.Model, "status", resp.StatusCode, "detail", detail)
		return "", fmt.Errorf("ollama: %s", detail)
	}

	var decoded struct {
		Response string `json:"response"`
	}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", fmt.Errorf("decode generate response: %w", err)
	}
	if decoded.Response == "" {
		return "No response generated.", nil
	}
	return decoded.Response, nil
}

// HasModel reports whether a model is present on the server. A model counts
// as present on an exact tag match or when its base name (before the ":")
// appears in an installed tag.
func (c *Client) HasModel(ctx context.Context, name string) (bool, error) {
	models, err := c.listModels(ctx)
	if err != nil {
		return false, err
	}

	base := strings.SplitN(name, ":", 2)[0]
	for _, m := range models {
		if m == name || strings.Contains(m, base) {
			return true, nil
		}
	}
	return false, nil
}

// Ping probes server connectivity via the tags endpoint.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.listModels(ctx)
	return err
}

// Pull downloads a model onto the server. Blocking; bounded by the pull
// timeout.
func (c *Client) Pull(ctx context.Context, name string) error {
	body, err := json.Marshal(map[string]any{"name": name, "stream": false})
	if err != nil {
		return fmt.Errorf("encode pull request: %w", err)
	}

	start := time.Now()
	resp, err := c.do(ctx, c.pullClient, http.MethodPost, "/api/pull", body)
	c.metrics.ModelRequestSeconds.WithLabelValues("pull").Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.ModelPulls.WithLabelValues("error").Inc()
		return classifyTransport(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		c.metrics.ModelPulls.WithLabelValues("error").Inc()
		return fmt.Errorf("ollama: pull %s: %s", name, apiErrorDetail(raw, resp.StatusCode))
	}

	c.metrics.ModelPulls.WithLabelValues("success").Inc()
	c.logger.Info("model pulled", "model", name)
	return nil
}

func (c *Client) listModels(ctx context.Context) ([]string, error) {
	start := time.Now()
	resp, err := c.do(ctx, c.quickClient, http.MethodGet, "/api/tags", nil)
	c.metrics.ModelRequestSeconds.WithLabelValues("tags").Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, classifyTransport(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("ollama: tags: %s", apiErrorDetail(raw, resp.StatusCode))
	}

	var decoded struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode tags response: %w", err)
	}

	names := make([]string, len(decoded.Models))
	for i, m := range decoded.Models {
		names[i] = m.Name
	}
	return names, nil
}

func (c *Client) do(ctx context.Context, client *http.Client, method, path string, body []byte) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return client.Do(req)
}

// classifyTransport distinguishes "server not there" from "request timed out"
// so callers can surface the right user-facing message.
func classifyTransport(err error) error {
	if os.IsTimeout(err) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("ollama request timed out, the model may still be loading: %w", err)
	}
	return fmt.Errorf("%w: %s", ErrNotReachable, err)
}

// apiErrorDetail extracts the "error" field from an Ollama error body,
// falling back to the truncated raw body, then to the status code.
func apiErrorDetail(body []byte, status int) string {
	var parsed struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error != "" {
		return parsed.Error
	}
	text := strings.TrimSpace(string(body))
	if text == "" {
		return fmt.Sprintf("status %d", status)
	}
	if len(text) > 300 {
		text = text[:300]
	}
	return text
}
