// Package tui is the terminal editor for the mapping table.
package tui

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/pkg/errors"

	"go-mtcgen/debug"
	"go-mtcgen/engine"
	"go-mtcgen/midi"
	"go-mtcgen/theme"
	"go-mtcgen/timecode"
	"go-mtcgen/widgets"
)

type mode int

const (
	modeTable mode = iota
	modeEdit
	modePicker
)

type editField int

const (
	editLabel editField = iota
	editTimecode
	editNote
	editProjectName
	editExportPath
)

func (f editField) prompt() string {
	switch f {
	case editTimecode:
		return "Timecode (HH:MM:SS:FF): "
	case editNote:
		return "Trigger note (0-127): "
	case editProjectName:
		return "Save as project: "
	case editExportPath:
		return "Export to: "
	default:
		return "Label: "
	}
}

type Model struct {
	Engine  *engine.Engine
	Outputs *midi.Outputs
	Devices *midi.DeviceManager // may be nil
	Theme   *theme.Theme

	// Project is the name saves go to and loads came from
	Project string

	// OutPorts lists the MIDI outputs offered by the output picker
	OutPorts func() []string

	keys    keyMap
	table   table.Model
	input   textinput.Model
	help    help.Model
	picker  *picker
	mode    mode
	field   editField
	editRow int

	status    string
	statusErr bool
	showDebug bool
	quitting  bool
}

type UpdateMsg struct{}

type DeviceEventMsg midi.DeviceEvent

func NewModel(eng *engine.Engine, outputs *midi.Outputs, devices *midi.DeviceManager, th *theme.Theme) Model {
	if th == nil {
		th = theme.New(nil)
	}
	ti := textinput.New()
	ti.CharLimit = 128
	ti.Width = 40
	ti.PromptStyle = lipgloss.NewStyle().Foreground(th.Accent())

	m := Model{
		Engine:   eng,
		Outputs:  outputs,
		Devices:  devices,
		Theme:    th,
		OutPorts: midi.OutPortNames,
		keys:     defaultKeyMap(),
		table:    newTable(th),
		input:    ti,
		help:     help.New(),
		editRow:  -1,
	}
	m.syncRows()
	return m
}

func ListenForUpdates(eng *engine.Engine) tea.Cmd {
	return func() tea.Msg {
		<-eng.UpdateChan
		return UpdateMsg{}
	}
}

func ListenForDevices(dm *midi.DeviceManager) tea.Cmd {
	return func() tea.Msg {
		event, ok := <-dm.Events()
		if !ok {
			return nil
		}
		return DeviceEventMsg(event)
	}
}

func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{ListenForUpdates(m.Engine)}
	if m.Devices != nil {
		cmds = append(cmds, ListenForDevices(m.Devices))
	}
	return tea.Batch(cmds...)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.help.Width = msg.Width
		if h := msg.Height - 16; h > 3 {
			m.table.SetHeight(h)
		}
		return m, nil

	case UpdateMsg:
		m.syncRows()
		return m, ListenForUpdates(m.Engine)

	case DeviceEventMsg:
		event := midi.DeviceEvent(msg)
		m.Engine.HandleDeviceEvent(event)
		if event.Type == midi.DeviceConnected {
			m.setStatus(false, "connected %s", event.ID)
		} else {
			m.setStatus(false, "disconnected %s", event.ID)
		}
		return m, ListenForDevices(m.Devices)

	case tea.KeyMsg:
		switch m.mode {
		case modeEdit:
			return m.updateEdit(msg)
		case modePicker:
			return m.updatePicker(msg)
		}
		return m.updateTable(msg)
	}

	return m, nil
}

func (m Model) updateTable(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	k := m.keys
	switch {
	case key.Matches(msg, k.Quit):
		m.quitting = true
		return m, tea.Quit

	case key.Matches(msg, k.Help):
		m.help.ShowAll = !m.help.ShowAll

	case key.Matches(msg, k.Add):
		i := m.Engine.AddMapping()
		m.syncRows()
		m.table.SetCursor(i)

	case key.Matches(msg, k.Delete):
		if i, ok := m.selected(); ok {
			m.Engine.RemoveMapping(i)
			m.syncRows()
		}

	case key.Matches(msg, k.Label):
		return m.startEdit(editLabel)
	case key.Matches(msg, k.TC):
		return m.startEdit(editTimecode)
	case key.Matches(msg, k.Note):
		return m.startEdit(editNote)

	case key.Matches(msg, k.Start):
		if i, ok := m.selected(); ok {
			m.Engine.SetStart(i)
			m.syncRows()
		}
	case key.Matches(msg, k.End):
		if i, ok := m.selected(); ok {
			m.Engine.SetEnd(i)
			m.syncRows()
		}

	case key.Matches(msg, k.Rate):
		m.Engine.SetFrameRate(m.Engine.FrameRate().Next())
		m.setStatus(false, "frame rate %s fps", m.Engine.FrameRate())
		m.syncRows()
	case key.Matches(msg, k.Format):
		m.Engine.SetFormat(m.Engine.Format().Next())
		m.setStatus(false, "format %s", m.Engine.Format())

	case key.Matches(msg, k.Outputs):
		m.openOutputPicker()
	case key.Matches(msg, k.Load):
		m.openProjectPicker()
	case key.Matches(msg, k.Save):
		return m.startEdit(editProjectName)
	case key.Matches(msg, k.Export):
		return m.startEdit(editExportPath)

	case key.Matches(msg, k.Copy):
		m.copyTimecode()
	case key.Matches(msg, k.Debug):
		m.showDebug = !m.showDebug

	default:
		var cmd tea.Cmd
		m.table, cmd = m.table.Update(msg)
		return m, cmd
	}
	return m, nil
}

// selected is the mapping index under the table cursor
func (m Model) selected() (int, bool) {
	i := m.table.Cursor()
	if i < 0 || i >= len(m.table.Rows()) {
		return -1, false
	}
	return i, true
}

func (m *Model) syncRows() {
	rows := mappingRows(m.Engine.Mappings(), m.Engine.ActiveIndex(), m.Engine.FrameRate(), m.Theme)
	m.table.SetRows(rows)
	if c := m.table.Cursor(); c >= len(rows) || c < 0 {
		m.table.SetCursor(max(0, len(rows)-1))
	}
}

func (m *Model) setStatus(isErr bool, format string, args ...any) {
	m.status = fmt.Sprintf(format, args...)
	m.statusErr = isErr
	if isErr {
		debug.Log("tui", "%s", m.status)
	}
}

// Editing

func (m Model) startEdit(f editField) (tea.Model, tea.Cmd) {
	value := ""
	row := -1
	switch f {
	case editLabel, editTimecode, editNote:
		i, ok := m.selected()
		ms := m.Engine.Mappings()
		if !ok || i >= len(ms) {
			return m, nil
		}
		row = i
		mapping := ms[i]
		switch f {
		case editLabel:
			value = mapping.Label
		case editTimecode:
			value = mapping.Timecode
		case editNote:
			value = strconv.Itoa(mapping.Note)
		}
	case editProjectName:
		value = m.Project
	case editExportPath:
		name := m.Project
		if name == "" {
			name = "mtcgen"
		}
		value = name + ".mid"
	}

	m.mode = modeEdit
	m.field = f
	m.editRow = row
	m.input.Prompt = f.prompt()
	m.input.SetValue(value)
	m.input.CursorEnd()
	cmd := m.input.Focus()
	return m, cmd
}

func (m Model) updateEdit(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Back):
		m.endEdit()
		return m, nil
	case key.Matches(msg, m.keys.Confirm):
		if err := m.commitEdit(strings.TrimSpace(m.input.Value())); err != nil {
			m.setStatus(true, "%v", err)
			return m, nil
		}
		m.endEdit()
		m.syncRows()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) endEdit() {
	m.mode = modeTable
	m.editRow = -1
	m.input.Blur()
	m.input.SetValue("")
}

func (m *Model) commitEdit(v string) error {
	row := m.editRow
	switch m.field {
	case editLabel:
		m.Engine.UpdateMapping(row, func(mp *engine.Mapping) { mp.Label = v })

	case editTimecode:
		if !timecode.Valid(v) {
			return errors.Errorf("invalid timecode %q, want HH:MM:SS:FF", v)
		}
		m.Engine.UpdateMapping(row, func(mp *engine.Mapping) { mp.Timecode = v })

	case editNote:
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 || n > 127 {
			return errors.Errorf("invalid note %q, want 0-127", v)
		}
		m.Engine.UpdateMapping(row, func(mp *engine.Mapping) { mp.Note = n })

	case editProjectName:
		if v == "" {
			return errors.New("project name required")
		}
		file, err := m.Engine.SaveProject(v, "")
		if err != nil {
			return errors.Wrap(err, "save")
		}
		m.Project = v
		m.setStatus(false, "saved %s", filepath.Join(v, file))

	case editExportPath:
		if v == "" {
			return errors.New("export path required")
		}
		if err := m.Engine.ExportSMF(v); err != nil {
			return err
		}
		m.setStatus(false, "exported %s", v)
	}
	return nil
}

// Pickers

func (m *Model) openOutputPicker() {
	var ports []string
	if m.OutPorts != nil {
		ports = m.OutPorts()
	}
	p := &picker{kind: pickOutputs, title: "MIDI Outputs", options: ports, checked: make(map[string]bool)}
	for _, name := range ports {
		p.checked[name] = m.Outputs.Has(name)
	}
	m.picker = p
	m.mode = modePicker
}

func (m *Model) openProjectPicker() {
	projects, err := engine.ListProjects()
	if err != nil {
		m.setStatus(true, "list projects: %v", err)
		return
	}
	if len(projects) == 0 {
		m.setStatus(false, "no saved projects")
		return
	}
	p := &picker{kind: pickProject, title: "Load Project", options: projects}
	for i, name := range projects {
		if name == m.Project {
			p.cursor = i
		}
	}
	m.picker = p
	m.mode = modePicker
}

func (m Model) updatePicker(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	p := m.picker
	switch {
	case key.Matches(msg, m.keys.Back):
		m.closePicker()
	case key.Matches(msg, m.keys.Up):
		p.move(-1)
	case key.Matches(msg, m.keys.Down):
		p.move(1)
	case key.Matches(msg, m.keys.Toggle):
		p.toggle()
	case key.Matches(msg, m.keys.Delete):
		if p.kind == pickProject {
			m.deleteProject()
		}
	case key.Matches(msg, m.keys.Confirm):
		m.applyPicker()
		m.closePicker()
		m.syncRows()
	}
	return m, nil
}

// deleteProject removes the project under the cursor with all its saves.
func (m *Model) deleteProject() {
	p := m.picker
	name, ok := p.current()
	if !ok {
		return
	}
	if err := engine.DeleteProject(name); err != nil {
		m.setStatus(true, "delete %s: %v", name, err)
		return
	}
	p.options = append(p.options[:p.cursor], p.options[p.cursor+1:]...)
	p.move(0)
	if name == m.Project {
		m.Project = ""
	}
	m.setStatus(false, "deleted %s", name)
}

func (m *Model) closePicker() {
	m.picker = nil
	m.mode = modeTable
}

func (m *Model) applyPicker() {
	p := m.picker
	switch p.kind {
	case pickOutputs:
		var keep []string
		for _, name := range m.Outputs.Names() {
			if midi.IsSerial(name) {
				keep = append(keep, name)
			}
		}
		err := m.Outputs.Select(p.selection(), keep...)
		m.Engine.SetSinks(m.Outputs.Sinks())
		if err != nil {
			m.setStatus(true, "outputs: %v", err)
			return
		}
		m.setStatus(false, "%d output(s) open", len(m.Outputs.Names()))

	case pickProject:
		name, ok := p.current()
		if !ok {
			return
		}
		if err := m.Engine.LoadProject(name, ""); err != nil {
			m.setStatus(true, "load %s: %v", name, err)
			return
		}
		m.Project = name
		m.setStatus(false, "loaded %s", name)
	}
}

func (m *Model) copyTimecode() {
	tc := m.Engine.CurrentTimecode()
	if tc == "" {
		i, ok := m.selected()
		ms := m.Engine.Mappings()
		if !ok || i >= len(ms) {
			return
		}
		tc = ms[i].Timecode
	}
	if err := clipboard.WriteAll(tc); err != nil {
		m.setStatus(true, "clipboard: %v", err)
		return
	}
	m.setStatus(false, "copied %s", tc)
}

// View

func (m Model) View() string {
	if m.quitting {
		return ""
	}
	th := m.Theme

	headerStyle := lipgloss.NewStyle().Foreground(th.Accent()).Bold(true)
	dimStyle := lipgloss.NewStyle().Foreground(th.Muted())

	project := "(unsaved)"
	if m.Project != "" {
		project = m.Project
	}
	header := headerStyle.Render(fmt.Sprintf("go-mtcgen  %s fps  %s  project: %s",
		m.Engine.FrameRate(), m.Engine.Format(), project))

	outputs := "(none)"
	if names := m.Outputs.Names(); len(names) > 0 {
		outputs = strings.Join(names, ", ")
	}

	tc := m.Engine.CurrentTimecode()
	tcColor := th.Muted()
	driving := "nothing driving"
	if idx := m.Engine.ActiveIndex(); tc != "" && idx >= 0 {
		tcColor = th.Success()
		if ms := m.Engine.Mappings(); idx < len(ms) {
			driving = fmt.Sprintf("driving: %s (note %d)", ms[idx].Label, ms[idx].Note)
		}
	}

	var out strings.Builder
	out.WriteString("\n")
	out.WriteString(header)
	out.WriteString("\n")
	out.WriteString(dimStyle.Render("out: " + outputs))
	out.WriteString("\n\n")
	out.WriteString(widgets.RenderTimecode(tc, tcColor))
	out.WriteString("\n")
	out.WriteString(dimStyle.Render(fmt.Sprintf("playhead %.3fs  %s", m.Engine.PlayheadTime(), driving)))
	out.WriteString("\n\n")
	out.WriteString(m.table.View())
	out.WriteString("\n")

	switch m.mode {
	case modeEdit:
		out.WriteString("\n")
		out.WriteString(m.input.View())
		out.WriteString("\n")
	case modePicker:
		out.WriteString("\n")
		out.WriteString(m.picker.view(th))
		out.WriteString("\n")
	}

	if m.showDebug {
		out.WriteString("\n")
		out.WriteString(m.debugView())
		out.WriteString("\n")
	}

	if pads := m.padPreview(); pads != "" {
		out.WriteString("\n")
		out.WriteString(pads)
		out.WriteString("\n")
	}

	if m.status != "" {
		style := dimStyle
		if m.statusErr {
			style = lipgloss.NewStyle().Foreground(th.Warning())
		}
		out.WriteString("\n")
		out.WriteString(style.Render(m.status))
	}

	out.WriteString("\n")
	out.WriteString(m.help.View(m.keys))
	return out.String()
}

func (m Model) debugView() string {
	var out strings.Builder
	out.WriteString(lipgloss.NewStyle().Foreground(m.Theme.Accent()).Render("Recent events"))
	events := m.Engine.DebugEvents()
	if len(events) == 0 {
		out.WriteString("\n  (none)")
	}
	for _, ev := range events {
		out.WriteString(fmt.Sprintf("\n  %10.3fs  %s", ev.Time, ev.Desc))
	}
	return out.String()
}

// padPreview mirrors the first connected Launchpad
func (m Model) padPreview() string {
	if m.Devices == nil {
		return ""
	}
	lcs := m.Devices.LEDControllers()
	if len(lcs) == 0 {
		return ""
	}
	leds := m.Engine.RenderLEDs(lcs[0])
	pads := make([]widgets.Pad, len(leds))
	for i, l := range leds {
		pads[i] = widgets.Pad{Row: l.Row, Col: l.Col, Color: l.Color}
	}
	return widgets.RenderPadPreview(midi.GridSize, pads, padLegend)
}

var padLegend = []widgets.Legend{
	{Name: "idle", Desc: "never triggered", Color: engine.PadColor(engine.PhaseIdle, false)},
	{Name: "armed", Desc: "trigger held", Color: engine.PadColor(engine.PhaseArmed, false)},
	{Name: "open", Desc: "start set by hand", Color: engine.PadColor(engine.PhaseOpen, false)},
	{Name: "closed", Desc: "window recorded", Color: engine.PadColor(engine.PhaseClosed, false)},
	{Name: "driving", Desc: "sending timecode", Color: engine.PadColor(engine.PhaseClosed, true)},
}
