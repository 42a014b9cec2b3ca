package tui

import (
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
)

type keyMap struct {
	Up, Down      key.Binding
	Add, Delete   key.Binding
	Label, TC     key.Binding
	Note          key.Binding
	Start, End    key.Binding
	Rate, Format  key.Binding
	Outputs       key.Binding
	Load, Save    key.Binding
	Export, Copy  key.Binding
	Debug         key.Binding
	Help, Quit    key.Binding
	Toggle        key.Binding
	Confirm, Back key.Binding
}

func binding(help string, keys ...string) key.Binding {
	return key.NewBinding(key.WithKeys(keys...), key.WithHelp(keys[0], help))
}

func defaultKeyMap() keyMap {
	return keyMap{
		Up:      binding("up", "up", "k"),
		Down:    binding("down", "down", "j"),
		Add:     binding("add mapping", "a"),
		Delete:  binding("delete", "x", "delete"),
		Label:   binding("edit label", "enter"),
		TC:      binding("edit timecode", "t"),
		Note:    binding("edit note", "n"),
		Start:   binding("set start", "s"),
		End:     binding("set end", "e"),
		Rate:    binding("frame rate", "r"),
		Format:  binding("mtc format", "m"),
		Outputs: binding("outputs", "o"),
		Load:    binding("load project", "p"),
		Save:    binding("save project", "ctrl+s"),
		Export:  binding("export .mid", "w"),
		Copy:    binding("copy timecode", "y"),
		Debug:   binding("event log", "v"),
		Help:    binding("help", "?"),
		Quit:    binding("quit", "q", "ctrl+c"),
		Toggle:  binding("toggle", " ", "space"),
		Confirm: binding("confirm", "enter"),
		Back:    binding("cancel", "esc"),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Add, k.Label, k.Start, k.End, k.Rate, k.Format, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Add, k.Delete},
		{k.Label, k.TC, k.Note, k.Start, k.End},
		{k.Rate, k.Format, k.Outputs, k.Copy},
		{k.Load, k.Save, k.Export, k.Debug},
		{k.Help, k.Quit},
	}
}

// tableKeyMap keeps the table to plain navigation so single letters stay free
// for editor commands.
func tableKeyMap() table.KeyMap {
	km := table.DefaultKeyMap()
	km.LineUp = key.NewBinding(key.WithKeys("up", "k"))
	km.LineDown = key.NewBinding(key.WithKeys("down", "j"))
	km.PageUp = key.NewBinding(key.WithKeys("pgup"))
	km.PageDown = key.NewBinding(key.WithKeys("pgdown"))
	km.HalfPageUp = key.NewBinding(key.WithKeys("ctrl+u"))
	km.HalfPageDown = key.NewBinding(key.WithKeys("ctrl+d"))
	km.GotoTop = key.NewBinding(key.WithKeys("home"))
	km.GotoBottom = key.NewBinding(key.WithKeys("end"))
	return km
}
