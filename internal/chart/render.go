// Package chart renders canonical displacement series as multi-series time
// charts and exports them as PNG rasters for vision-model analysis.
package chart

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	gochart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/geowatch/chartreader/internal/domain"
	"github.com/geowatch/chartreader/internal/observability"
)

// labelRotateThreshold is the point count beyond which x-axis labels are
// rotated and thinned to stay readable.
const labelRotateThreshold = 30

// maxTicks caps the number of x-axis tick labels regardless of point count.
const maxTicks = 12

var (
	// ErrEmptySeries reports a violated precondition: callers must check
	// series length before invoking Render.
	ErrEmptySeries = errors.New("chart: empty series")

	// ErrNoSamples reports a series whose records all lack plottable values.
	ErrNoSamples = errors.New("chart: no plottable samples")
)

// Options control one render pass.
type Options struct {
	// Theme selects the color palette; unknown values fall back to light.
	Theme Theme

	// From and To bound the rendered window by timestamp string
	// (lexicographic, inclusive). Empty means unbounded. Windowing re-renders
	// from the cached series; it never refetches.
	From, To string

	// PixelDensity scales the raster dimensions for export. Values <= 0
	// mean 1.0.
	PixelDensity float64
}

// Renderer projects canonical series into themed PNG charts.
type Renderer struct {
	width   int
	height  int
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewRenderer creates a Renderer with base raster dimensions; PixelDensity
// scales them per render.
func NewRenderer(width, height int, metrics *observability.Metrics, logger *slog.Logger) *Renderer {
	return &Renderer{width: width, height: height, metrics: metrics, logger: logger}
}

// Render draws East, North, and Height series over a shared index axis and
// returns the encoded PNG. Missing samples split a component into segments so
// gaps stay visible; index alignment across the three components is
// preserved by construction.
func (r *Renderer) Render(series domain.Series, statCode string, opts Options) ([]byte, error) {
	if len(series) == 0 {
		return nil, ErrEmptySeries
	}

	start := time.Now()
	png, err := r.render(applyWindow(series, opts.From, opts.To), statCode, opts)
	r.metrics.ChartRenderSeconds.Observe(time.Since(start).Seconds())
	if err != nil {
		r.metrics.ChartRenders.WithLabelValues("error").Inc()
		return nil, err
	}
	r.metrics.ChartRenders.WithLabelValues("success").Inc()
	return png, nil
}

func (r *Renderer) render(series domain.Series, statCode string, opts Options) ([]byte, error) {
	if len(series) == 0 {
		return nil, ErrEmptySeries
	}

	pal := paletteFor(opts.Theme)

	var plotted []gochart.Series
	for i, component := range domain.Components {
		plotted = append(plotted, componentSegments(series.Values(component), string(component), pal.series[i])...)
	}
	if len(plotted) == 0 {
		return nil, ErrNoSamples
	}

	density := opts.PixelDensity
	if density <= 0 {
		density = 1.0
	}

	n := len(series)
	rotate := n > labelRotateThreshold

	tickStyle := gochart.Style{FontColor: pal.text}
	if rotate {
		tickStyle.TextRotationDegrees = 45
	}

	ch := gochart.Chart{
		Title:      fmt.Sprintf("%s displacement (m)", statCode),
		TitleStyle: gochart.Style{FontColor: pal.text},
		Width:      int(float64(r.width) * density),
		Height:     int(float64(r.height) * density),
		Background: gochart.Style{
			FillColor: pal.background,
			Padding:   gochart.Box{Top: 20, Left: 20, Right: 20, Bottom: 20},
		},
		Canvas: gochart.Style{FillColor: pal.canvas},
		XAxis: gochart.XAxis{
			Style:     gochart.Style{FontColor: pal.text, StrokeColor: pal.axis},
			TickStyle: tickStyle,
			Ticks:     indexTicks(series.Timestamps()),
			Range:     indexRange(n),
			GridMajorStyle: gochart.Style{
				StrokeColor: pal.grid,
				StrokeWidth: 1.0,
			},
		},
		YAxis: gochart.YAxis{
			Name:      "meters",
			NameStyle: gochart.Style{FontColor: pal.text},
			Style:     gochart.Style{FontColor: pal.text, StrokeColor: pal.axis},
			GridMajorStyle: gochart.Style{
				StrokeColor: pal.grid,
				StrokeWidth: 1.0,
			},
		},
		Series: plotted,
	}
	ch.Elements = []gochart.Renderable{
		gochart.Legend(&ch, gochart.Style{FillColor: pal.background, FontColor: pal.text}),
	}

	var buf bytes.Buffer
	if err := ch.Render(gochart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("render chart: %w", err)
	}
	return buf.Bytes(), nil
}

// applyWindow selects the inclusive timestamp sub-range. Lexicographic
// comparison matches the canonical ordering model.
func applyWindow(series domain.Series, from, to string) domain.Series {
	if from == "" && to == "" {
		return series
	}
	out := make(domain.Series, 0, len(series))
	for _, rec := range series {
		if from != "" && rec.Timestamp < from {
			continue
		}
		if to != "" && rec.Timestamp > to {
			continue
		}
		out = append(out, rec)
	}
	return out
}

// componentSegments splits one component's index-aligned sample column into
// contiguous non-missing runs, one chart series per run. Gaps between runs
// stay unconnected, which is what makes missing samples visible. Only the
// first segment carries the component name so the legend lists each
// component once.
func componentSegments(values []*float64, name string, color drawing.Color) []gochart.Series {
	style := gochart.Style{
		StrokeColor: color,
		StrokeWidth: 1.8,
		DotColor:    color,
		DotWidth:    2.2,
	}

	var out []gochart.Series
	var xs, ys []float64
	flush := func() {
		if len(xs) == 0 {
			return
		}
		segName := ""
		if len(out) == 0 {
			segName = name
		}
		if len(xs) == 1 {
			// go-chart cannot draw a zero-width range; nudge a twin point so
			// isolated samples still render as a dot.
			xs = append(xs, xs[0]+0.001)
			ys = append(ys, ys[0])
		}
		out = append(out, gochart.ContinuousSeries{Name: segName, XValues: xs, YValues: ys, Style: style})
		xs, ys = nil, nil
	}

	for i, v := range values {
		if v == nil {
			flush()
			continue
		}
		xs = append(xs, float64(i))
		ys = append(ys, *v)
	}
	flush()
	return out
}

// indexTicks builds x-axis ticks from timestamp strings, thinned to at most
// maxTicks labels and reduced to the date portion when a time-of-day is
// present.
func indexTicks(timestamps []string) []gochart.Tick {
	n := len(timestamps)
	step := 1
	if n > maxTicks {
		step = (n + maxTicks - 1) / maxTicks
	}

	var ticks []gochart.Tick
	for i := 0; i < n; i += step {
		ticks = append(ticks, gochart.Tick{Value: float64(i), Label: dateLabel(timestamps[i])})
	}
	// Always label the final point so the window end is visible.
	if last := n - 1; last%step != 0 {
		ticks = append(ticks, gochart.Tick{Value: float64(last), Label: dateLabel(timestamps[last])})
	}
	return ticks
}

// dateLabel reduces a timestamp to its date portion when it carries a
// time-of-day separator.
func dateLabel(ts string) string {
	if i := strings.IndexAny(ts, "T "); i > 0 {
		return ts[:i]
	}
	return ts
}

func indexRange(n int) gochart.Range {
	max := float64(n - 1)
	if n == 1 {
		max = 1
	}
	return &gochart.ContinuousRange{Min: -0.5, Max: max + 0.5}
}
