package domain

import "context"

// Generation describes one model completion request. Images are
// base64-encoded and route the request through the model's vision path.
type Generation struct {
	Model       string
	Prompt      string
	Images      []string
	Temperature float64
	NumPredict  int
	NumCtx      int
}

// ModelClient is the port to the local model server.
type ModelClient interface {
	// Generate runs a non-streaming completion and returns the response text.
	Generate(ctx context.Context, gen Generation) (string, error)

	// HasModel reports whether a model is installed on the server.
	HasModel(ctx context.Context, name string) (bool, error)

	// Pull downloads a model onto the server.
	Pull(ctx context.Context, name string) error

	// Ping probes server connectivity.
	Ping(ctx context.Context) error
}

// StationFetcher retrieves raw station data payloads.
type StationFetcher interface {
	FetchData(ctx context.Context, statCode, startDate, endDate string) ([]byte, error)
}
