package midi

import (
	"errors"
	"reflect"
	"sync"
	"testing"

	gomidi "gitlab.com/gomidi/midi/v2"
)

func TestNoteName(t *testing.T) {
	tests := []struct {
		note int
		want string
	}{
		{60, "C4"},
		{61, "C#4"},
		{0, "C-1"},
		{69, "A4"},
		{127, "G9"},
	}
	for _, tt := range tests {
		if got := NoteName(tt.note); got != tt.want {
			t.Errorf("NoteName(%d) = %q, want %q", tt.note, got, tt.want)
		}
	}
}

func TestDescribe(t *testing.T) {
	on := NoteEvent{Note: 60, Velocity: 100, On: true}
	if got := on.Describe(); got != "NoteOn  C4" {
		t.Errorf("got %q, want %q", got, "NoteOn  C4")
	}
	off := NoteEvent{Note: 60}
	if got := off.Describe(); got != "NoteOff C4" {
		t.Errorf("got %q, want %q", got, "NoteOff C4")
	}
}

func TestNoteEventFrom(t *testing.T) {
	tests := []struct {
		name   string
		msg    gomidi.Message
		want   NoteEvent
		wantOK bool
	}{
		{"note on", gomidi.NoteOn(2, 64, 90), NoteEvent{Note: 64, Velocity: 90, Channel: 2, On: true}, true},
		{"note off", gomidi.NoteOff(0, 64), NoteEvent{Note: 64}, true},
		{"note on zero velocity", gomidi.NoteOn(0, 64, 0), NoteEvent{Note: 64}, true},
		{"control change", gomidi.ControlChange(0, 7, 100), NoteEvent{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := noteEventFrom(tt.msg)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("got %+v (%v), want %+v (%v)", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestPadNotes(t *testing.T) {
	if got := PadNote(36, 0, 0); got != 36 {
		t.Errorf("PadNote(36,0,0) = %d, want 36", got)
	}
	if got := PadNote(36, 2, 3); got != 36+19 {
		t.Errorf("PadNote(36,2,3) = %d, want %d", got, 36+19)
	}
	if got := PadNote(100, 7, 7); got != 127 {
		t.Errorf("PadNote clamps to 127, got %d", got)
	}

	for row := 0; row < GridSize; row++ {
		for col := 0; col < GridSize; col++ {
			r, c, ok := PadForNote(36, PadNote(36, row, col))
			if !ok || r != row || c != col {
				t.Fatalf("PadForNote(PadNote(%d,%d)) = %d,%d,%v", row, col, r, c, ok)
			}
		}
	}

	if _, _, ok := PadForNote(36, 35); ok {
		t.Error("note below base mapped to a pad")
	}
	if _, _, ok := PadForNote(36, 36+64); ok {
		t.Error("note past grid mapped to a pad")
	}
}

func TestLaunchpadHardwareNotes(t *testing.T) {
	if got := rowColToNote(0, 0); got != 11 {
		t.Errorf("rowColToNote(0,0) = %d, want 11", got)
	}
	if row, col := noteToRowCol(88); row != 7 || col != 7 {
		t.Errorf("noteToRowCol(88) = %d,%d, want 7,7", row, col)
	}
	if row, _ := noteToRowCol(5); row != -1 {
		t.Errorf("noteToRowCol(5) row = %d, want -1", row)
	}
}

func TestMapRGBToLaunchpad(t *testing.T) {
	if got := mapRGBToLaunchpad([3]uint8{0, 0, 0}); got != 0 {
		t.Errorf("black = %d, want 0", got)
	}
	if got := mapRGBToLaunchpad([3]uint8{250, 250, 250}); got != 119 {
		t.Errorf("white = %d, want 119", got)
	}
	if got := mapRGBToLaunchpad([3]uint8{0, 250, 0}); got != 21 {
		t.Errorf("green = %d, want 21", got)
	}
}

func TestClassify(t *testing.T) {
	opts := ManagerOptions{Exclude: []string{"through"}, Keyboards: true}
	tests := []struct {
		name string
		want ControllerType
	}{
		{"Launchpad X LPX MIDI", ControllerLaunchpad},
		{"Midi Through Port-0", ControllerUnknown},
		{"Arturia KeyStep 37", ControllerKeyboard},
	}
	for _, tt := range tests {
		if got := classify(tt.name, opts); got != tt.want {
			t.Errorf("classify(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}

	opts.Keyboards = false
	if got := classify("Arturia KeyStep 37", opts); got != ControllerUnknown {
		t.Errorf("keyboards disabled, got %v", got)
	}
}

type fakeSink struct {
	name   string
	mu     sync.Mutex
	sent   [][]byte
	closed bool
}

func (f *fakeSink) Name() string { return f.name }

func (f *fakeSink) Send(msg []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, append([]byte(nil), msg...))
	return nil
}

func (f *fakeSink) Close() error {
	f.closed = true
	return nil
}

func TestOutputs(t *testing.T) {
	opened := map[string]*fakeSink{}
	o := NewOutputs()
	o.open = func(name string) (Sink, error) {
		if name == "missing" {
			return nil, errors.New("not found")
		}
		s := &fakeSink{name: name}
		opened[name] = s
		return s, nil
	}

	if err := o.Select([]string{"b", "a"}); err != nil {
		t.Fatalf("Select: %v", err)
	}
	if got, want := o.Names(), []string{"a", "b"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Names() = %v, want %v", got, want)
	}

	serial := &fakeSink{name: "serial:/dev/ttyUSB0"}
	o.Add(serial)

	t.Run("select closes dropped ports and keeps listed extras", func(t *testing.T) {
		err := o.Select([]string{"a", "missing"}, serial.Name())
		if err == nil {
			t.Error("expected error for missing port")
		}
		if !opened["b"].closed {
			t.Error("b was not closed")
		}
		if !o.Has("a") || !o.Has(serial.Name()) || o.Has("b") {
			t.Errorf("unexpected set %v", o.Names())
		}
	})

	t.Run("close empties the set", func(t *testing.T) {
		o.Close()
		if len(o.Sinks()) != 0 {
			t.Errorf("sinks left after Close: %v", o.Names())
		}
		if !serial.closed || !opened["a"].closed {
			t.Error("sinks not closed")
		}
	})
}
