package midi

import "fmt"

// MIDI status bytes
const (
	NoteOn  uint8 = 0x90
	NoteOff uint8 = 0x80
	CC      uint8 = 0xB0
)

// NoteEvent is a trigger from any input. Offset is the sample position
// inside the audio block the event belongs to; live device events use 0.
type NoteEvent struct {
	Note     uint8
	Velocity uint8
	Channel  uint8
	On       bool
	Offset   int
}

var noteNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// NoteName spells a MIDI note with sharps, middle C (60) being C4.
func NoteName(note int) string {
	if note < 0 {
		return fmt.Sprintf("?%d", note)
	}
	return fmt.Sprintf("%s%d", noteNames[note%12], note/12-1)
}

// Describe is the short form used in the debug event panel.
func (e NoteEvent) Describe() string {
	if e.On {
		return "NoteOn  " + NoteName(int(e.Note))
	}
	return "NoteOff " + NoteName(int(e.Note))
}
