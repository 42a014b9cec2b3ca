package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"go-mtcgen/theme"
)

type pickerKind int

const (
	pickOutputs pickerKind = iota
	pickProject
)

// picker is a popup list. Output pickers are multi-select.
type picker struct {
	kind    pickerKind
	title   string
	options []string
	checked map[string]bool
	cursor  int
}

func (p *picker) multi() bool { return p.kind == pickOutputs }

func (p *picker) move(delta int) {
	p.cursor += delta
	if p.cursor < 0 {
		p.cursor = 0
	}
	if p.cursor > len(p.options)-1 {
		p.cursor = max(0, len(p.options)-1)
	}
}

func (p *picker) toggle() {
	if !p.multi() || len(p.options) == 0 {
		return
	}
	name := p.options[p.cursor]
	p.checked[name] = !p.checked[name]
}

func (p *picker) current() (string, bool) {
	if p.cursor < 0 || p.cursor >= len(p.options) {
		return "", false
	}
	return p.options[p.cursor], true
}

// selection returns the checked options in list order
func (p *picker) selection() []string {
	var out []string
	for _, o := range p.options {
		if p.checked[o] {
			out = append(out, o)
		}
	}
	return out
}

func (p *picker) view(th *theme.Theme) string {
	var out strings.Builder
	out.WriteString(lipgloss.NewStyle().Foreground(th.Accent()).Bold(true).Render(p.title))
	out.WriteString("\n")

	if len(p.options) == 0 {
		out.WriteString("  (nothing found)")
	}
	for i, o := range p.options {
		prefix := "  "
		if i == p.cursor {
			prefix = "> "
		}
		if p.multi() {
			box := "[ ] "
			if p.checked[o] {
				box = "[x] "
			}
			prefix += box
		}
		line := prefix + o
		if i == p.cursor {
			line = lipgloss.NewStyle().Foreground(th.Cursor()).Render(line)
		}
		out.WriteString(line)
		if i < len(p.options)-1 {
			out.WriteString("\n")
		}
	}

	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(th.Muted()).
		Padding(0, 1).
		Render(out.String())
}
