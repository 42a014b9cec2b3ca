package tui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"

	"go-mtcgen/engine"
	"go-mtcgen/midi"
	"go-mtcgen/theme"
	"go-mtcgen/timecode"
)

var mappingColumns = []table.Column{
	{Title: "Note", Width: 8},
	{Title: "Label", Width: 20},
	{Title: "Timecode", Width: 11},
	{Title: "Start", Width: 11},
	{Title: "End", Width: 11},
	{Title: "State", Width: 10},
}

func newTable(th *theme.Theme) table.Model {
	t := table.New(
		table.WithColumns(mappingColumns),
		table.WithFocused(true),
		table.WithHeight(10),
		table.WithKeyMap(tableKeyMap()),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(th.Muted()).
		BorderBottom(true).
		Foreground(th.Accent()).
		Bold(true)
	s.Selected = s.Selected.
		Foreground(th.BG()).
		Background(th.Cursor()).
		Bold(false)
	t.SetStyles(s)
	return t
}

// mappingRows renders the table in store order. Start and End are shown as
// timecodes of the raw transport seconds.
func mappingRows(ms []engine.Mapping, active int, rate timecode.Rate, th *theme.Theme) []table.Row {
	rows := make([]table.Row, len(ms))
	for i, m := range ms {
		state := m.Phase().String()
		driving := i == active
		if driving {
			state = "driving"
		}
		rows[i] = table.Row{
			fmt.Sprintf("%3d %s", m.Note, midi.NoteName(m.Note)),
			m.Label,
			m.Timecode,
			formatSeconds(m.Start, rate),
			formatSeconds(m.End, rate),
			fmt.Sprintf("%c %s", th.StateSymbol(m.Phase().String(), driving), state),
		}
	}
	return rows
}

func formatSeconds(s float64, rate timecode.Rate) string {
	if s < 0 {
		return "--"
	}
	return timecode.FromSeconds(s, float64(rate)).String()
}
