package widgets

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Placeholder shown when no mapping drives output
const NoTimecode = "--:--:--:--"

// three-row segment glyphs
var bigGlyphs = map[rune][3]string{
	'0': {" _ ", "| |", "|_|"},
	'1': {"   ", "  |", "  |"},
	'2': {" _ ", " _|", "|_ "},
	'3': {" _ ", " _|", " _|"},
	'4': {"   ", "|_|", "  |"},
	'5': {" _ ", "|_ ", " _|"},
	'6': {" _ ", "|_ ", "|_|"},
	'7': {" _ ", "  |", "  |"},
	'8': {" _ ", "|_|", "|_|"},
	'9': {" _ ", "|_|", " _|"},
	':': {" ", ".", "."},
	'-': {"   ", " _ ", "   "},
}

// RenderTimecode draws tc in large segment digits. Characters without a glyph
// are skipped; an empty tc renders the placeholder.
func RenderTimecode(tc string, color lipgloss.Color) string {
	if tc == "" {
		tc = NoTimecode
	}

	var rows [3]strings.Builder
	for _, r := range tc {
		g, ok := bigGlyphs[r]
		if !ok {
			continue
		}
		for i := range rows {
			rows[i].WriteString(g[i])
		}
	}

	style := lipgloss.NewStyle().Foreground(color).Bold(true)
	lines := make([]string, len(rows))
	for i := range rows {
		lines[i] = style.Render(rows[i].String())
	}
	return strings.Join(lines, "\n")
}
