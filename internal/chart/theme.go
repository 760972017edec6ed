package chart

import "github.com/wcharczuk/go-chart/v2/drawing"

// Theme selects the chart color palette. Re-rendering with a different theme
// reuses the cached canonical sequence; no refetch happens.
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

type palette struct {
	background drawing.Color
	canvas     drawing.Color
	text       drawing.Color
	axis       drawing.Color
	grid       drawing.Color

	// Series colors in component order: East, North, Height.
	series [3]drawing.Color
}

var palettes = map[Theme]palette{
	ThemeLight: {
		background: drawing.ColorFromHex("ffffff"),
		canvas:     drawing.ColorFromHex("fafafa"),
		text:       drawing.ColorFromHex("333333"),
		axis:       drawing.ColorFromHex("999999"),
		grid:       drawing.ColorFromHex("e0e0e0"),
		series: [3]drawing.Color{
			drawing.ColorFromHex("1f77b4"), // East
			drawing.ColorFromHex("2ca02c"), // North
			drawing.ColorFromHex("d62728"), // Height
		},
	},
	ThemeDark: {
		background: drawing.ColorFromHex("1e1e2e"),
		canvas:     drawing.ColorFromHex("27273a"),
		text:       drawing.ColorFromHex("d0d0d8"),
		axis:       drawing.ColorFromHex("6a6a7a"),
		grid:       drawing.ColorFromHex("3a3a4e"),
		series: [3]drawing.Color{
			drawing.ColorFromHex("58a6ff"), // East
			drawing.ColorFromHex("56d364"), // North
			drawing.ColorFromHex("ff7b72"), // Height
		},
	},
}

// paletteFor resolves a theme, defaulting to light for unknown values.
func paletteFor(t Theme) palette {
	if p, ok := palettes[t]; ok {
		return p
	}
	return palettes[ThemeLight]
}
