// Package theme maps a palette onto the colour roles and glyphs used by the TUI.
package theme

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

type Theme struct {
	Palette *Palette
	Symbols Symbols
}

// Symbols are the glyphs for mapping states in the table and pad preview
type Symbols struct {
	Pad     rune // ■ lit pad
	Idle    rune // · never triggered
	Armed   rune // ● trigger held
	Open    rune // ◐ start only
	Closed  rune // ■ start and end
	Driving rune // ▶ drives output now
}

func New(palette *Palette) *Theme {
	if palette == nil || len(palette.Colors) == 0 {
		palette = DefaultPalette()
	}
	return &Theme{
		Palette: palette,
		Symbols: Symbols{
			Pad:     '■',
			Idle:    '·',
			Armed:   '●',
			Open:    '◐',
			Closed:  '■',
			Driving: '▶',
		},
	}
}

// Color roles mapped to palette positions (0-1)
const (
	RoleBG      = 0.0
	RoleSurface = 0.1
	RoleMuted   = 0.3
	RoleFG      = 0.6
	RoleAccent  = 0.5
	RoleCursor  = 0.7
	RoleActive  = 0.8
	RoleWarning = 0.65
	RoleSuccess = 1.0
)

func (t *Theme) BG() lipgloss.Color {
	return rgbToLipgloss(t.Palette.Lookup(RoleBG))
}

func (t *Theme) FG() lipgloss.Color {
	return rgbToLipgloss(t.Palette.Lookup(RoleFG))
}

func (t *Theme) Accent() lipgloss.Color {
	return rgbToLipgloss(t.Palette.Lookup(RoleAccent))
}

func (t *Theme) Muted() lipgloss.Color {
	return rgbToLipgloss(t.Palette.Lookup(RoleMuted))
}

func (t *Theme) Active() lipgloss.Color {
	return rgbToLipgloss(t.Palette.Lookup(RoleActive))
}

func (t *Theme) Cursor() lipgloss.Color {
	return rgbToLipgloss(t.Palette.Lookup(RoleCursor))
}

func (t *Theme) Warning() lipgloss.Color {
	return rgbToLipgloss(t.Palette.Lookup(RoleWarning))
}

func (t *Theme) Success() lipgloss.Color {
	return rgbToLipgloss(t.Palette.Lookup(RoleSuccess))
}

// Color returns lipgloss color for any normalized value 0-1
func (t *Theme) Color(norm float64) lipgloss.Color {
	return rgbToLipgloss(t.Palette.Lookup(norm))
}

// RGB returns raw RGB for any normalized value
func (t *Theme) RGB(norm float64) RGB {
	return t.Palette.Lookup(norm)
}

// StateSymbol returns the glyph for a mapping state name as printed by
// engine.Phase, or the driving glyph when driving is set.
func (t *Theme) StateSymbol(state string, driving bool) rune {
	if driving {
		return t.Symbols.Driving
	}
	switch state {
	case "armed":
		return t.Symbols.Armed
	case "open":
		return t.Symbols.Open
	case "closed":
		return t.Symbols.Closed
	default:
		return t.Symbols.Idle
	}
}

func rgbToLipgloss(c RGB) lipgloss.Color {
	return lipgloss.Color(fmt.Sprintf("#%02x%02x%02x", c[0], c[1], c[2]))
}
