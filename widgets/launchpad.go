// Package widgets renders small reusable TUI pieces: the big timecode
// readout and a preview of a pad controller.
package widgets

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

const padGlyph = "■"

// Pad is one lit cell of a grid preview
type Pad struct {
	Row, Col int
	Color    [3]uint8
}

// RenderPad draws one pad in its colour
func RenderPad(color [3]uint8) string {
	return lipgloss.NewStyle().Foreground(hexColor(color)).Render(padGlyph)
}

// RenderPadGrid renders a size x size grid with row 0 at the bottom, the way
// the hardware is laid out. Pads outside the grid are ignored; unlit pads are
// drawn black.
func RenderPadGrid(size int, pads []Pad) string {
	if size <= 0 {
		return ""
	}
	lit := make(map[[2]int][3]uint8, len(pads))
	for _, p := range pads {
		if p.Row >= 0 && p.Row < size && p.Col >= 0 && p.Col < size {
			lit[[2]int{p.Row, p.Col}] = p.Color
		}
	}

	lines := make([]string, 0, size)
	for row := size - 1; row >= 0; row-- {
		cells := make([]string, size)
		for col := range cells {
			cells[col] = RenderPad(lit[[2]int{row, col}])
		}
		lines = append(lines, strings.Join(cells, " "))
	}
	return strings.Join(lines, "\n")
}

// Legend is a named colour shown beside a grid
type Legend struct {
	Name  string
	Desc  string
	Color [3]uint8
}

// RenderLegendItem renders a single legend item: "■ Name - description"
func RenderLegendItem(l Legend) string {
	return fmt.Sprintf("%s %s - %s", RenderPad(l.Color), l.Name, l.Desc)
}

// RenderPadPreview puts a legend to the right of the grid.
func RenderPadPreview(size int, pads []Pad, legend []Legend) string {
	items := make([]string, len(legend))
	for i, l := range legend {
		items[i] = RenderLegendItem(l)
	}
	return lipgloss.JoinHorizontal(lipgloss.Top,
		RenderPadGrid(size, pads),
		"   ",
		strings.Join(items, "\n"),
	)
}

func hexColor(c [3]uint8) lipgloss.Color {
	return lipgloss.Color(fmt.Sprintf("#%02x%02x%02x", c[0], c[1], c[2]))
}
