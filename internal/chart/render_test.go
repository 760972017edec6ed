package chart

import (
	"io"
	"log/slog"
	"testing"

	gochart "github.com/wcharczuk/go-chart/v2"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geowatch/chartreader/internal/domain"
	"github.com/geowatch/chartreader/internal/observability"
)

func testRenderer() *Renderer {
	return NewRenderer(640, 320,
		observability.NewMetricsForTesting(),
		slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func sampleSeries(t *testing.T) domain.Series {
	t.Helper()
	series := domain.Normalize([]domain.RawRecord{
		{"timestamp": "2024-01-01", "de": 0.010, "dn": 0.002, "dh": -0.004},
		{"timestamp": "2024-01-02", "de": 0.012, "dn": 0.003, "dh": -0.006},
		{"timestamp": "2024-01-03", "de": "bad", "dn": 0.004, "dh": -0.008},
		{"timestamp": "2024-01-04", "de": 0.015, "dn": 0.004, "dh": -0.009},
	})
	require.Len(t, series, 4)
	return series
}

func TestRender_ProducesPNG(t *testing.T) {
	png, err := testRenderer().Render(sampleSeries(t), "CMUA", Options{})
	require.NoError(t, err)
	require.NotEmpty(t, png)
	// PNG magic bytes.
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, png[:4])
}

func TestRender_PixelDensityScalesOutput(t *testing.T) {
	r := testRenderer()
	series := sampleSeries(t)

	base, err := r.Render(series, "CMUA", Options{PixelDensity: 1.0})
	require.NoError(t, err)
	scaled, err := r.Render(series, "CMUA", Options{PixelDensity: 1.5})
	require.NoError(t, err)

	assert.NotEmpty(t, scaled)
	// A 1.5x raster carries more pixels, hence more bytes.
	assert.Greater(t, len(scaled), len(base))
}

func TestRender_EmptySeriesIsPreconditionViolation(t *testing.T) {
	_, err := testRenderer().Render(domain.Series{}, "CMUA", Options{})
	assert.ErrorIs(t, err, ErrEmptySeries)
}

func TestRender_AllMissingSamples(t *testing.T) {
	series := domain.Normalize([]domain.RawRecord{
		{"timestamp": "2024-01-01", "de": "x"},
		{"timestamp": "2024-01-02"},
	})
	_, err := testRenderer().Render(series, "CMUA", Options{})
	assert.ErrorIs(t, err, ErrNoSamples)
}

func TestRender_ThemesBothRender(t *testing.T) {
	r := testRenderer()
	series := sampleSeries(t)

	for _, theme := range []Theme{ThemeLight, ThemeDark, Theme("unknown")} {
		png, err := r.Render(series, "CMUA", Options{Theme: theme})
		require.NoError(t, err, "theme %s", theme)
		assert.NotEmpty(t, png)
	}
}

func TestRender_WindowOutsideDataIsEmpty(t *testing.T) {
	_, err := testRenderer().Render(sampleSeries(t), "CMUA", Options{From: "2030-01-01"})
	assert.ErrorIs(t, err, ErrEmptySeries)
}

func TestApplyWindow(t *testing.T) {
	series := sampleSeries(t)

	tests := []struct {
		name     string
		from, to string
		want     []string
	}{
		{"unbounded", "", "", []string{"2024-01-01", "2024-01-02", "2024-01-03", "2024-01-04"}},
		{"from only", "2024-01-03", "", []string{"2024-01-03", "2024-01-04"}},
		{"to only", "", "2024-01-02", []string{"2024-01-01", "2024-01-02"}},
		{"both inclusive", "2024-01-02", "2024-01-03", []string{"2024-01-02", "2024-01-03"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := applyWindow(series, tt.from, tt.to)
			assert.Equal(t, tt.want, got.Timestamps())
		})
	}
}

func TestComponentSegments_GapsSplitSegments(t *testing.T) {
	v := func(f float64) *float64 { return &f }
	values := []*float64{v(1), v(2), nil, v(4), v(5), nil, nil, v(8)}

	segs := componentSegments(values, "East", paletteFor(ThemeLight).series[0])
	require.Len(t, segs, 3)

	first, ok := segs[0].(gochart.ContinuousSeries)
	require.True(t, ok)
	assert.Equal(t, "East", first.Name)
	assert.Equal(t, []float64{0, 1}, first.XValues)

	second := segs[1].(gochart.ContinuousSeries)
	assert.Empty(t, second.Name) // legend lists the component once
	assert.Equal(t, []float64{3, 4}, second.XValues)

	third := segs[2].(gochart.ContinuousSeries)
	assert.Equal(t, 7.0, third.XValues[0])
	// Isolated point gets a nudged twin so it still renders.
	require.Len(t, third.XValues, 2)
	assert.Equal(t, third.YValues[0], third.YValues[1])
}

func TestComponentSegments_AllMissing(t *testing.T) {
	assert.Empty(t, componentSegments([]*float64{nil, nil}, "East", paletteFor(ThemeLight).series[0]))
}

func TestIndexTicks_ThinsAndLabelsDates(t *testing.T) {
	timestamps := make([]string, 40)
	for i := range timestamps {
		timestamps[i] = "2024-02-01T12:00:00"
	}
	ticks := indexTicks(timestamps)

	assert.LessOrEqual(t, len(ticks), maxTicks+1)
	assert.Equal(t, "2024-02-01", ticks[0].Label)
	// Final point always labeled.
	assert.Equal(t, 39.0, ticks[len(ticks)-1].Value)
}

func TestIndexTicks_SmallSeriesKeepsAllLabels(t *testing.T) {
	ticks := indexTicks([]string{"2024-01-01", "2024-01-02 06:00", "2024-01-03"})
	require.Len(t, ticks, 3)
	assert.Equal(t, "2024-01-02", ticks[1].Label)
}
