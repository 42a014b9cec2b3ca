package midi

import (
	"github.com/pkg/errors"

	"go-mtcgen/debug"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
)

// KeyboardController handles any plain MIDI input used for triggers
type KeyboardController struct {
	id       string
	inPort   drivers.In
	stopFunc func()

	noteChan chan NoteEvent
}

// NewKeyboardController opens inPort and forwards note starts and ends.
// A note-on with velocity 0 counts as an end.
func NewKeyboardController(id string, inPort drivers.In) (*KeyboardController, error) {
	kb := &KeyboardController{
		id:       id,
		inPort:   inPort,
		noteChan: make(chan NoteEvent, 64),
	}

	if inPort != nil {
		stop, err := gomidi.ListenTo(inPort, func(msg gomidi.Message, timestampms int32) {
			if ev, ok := noteEventFrom(msg); ok {
				kb.emit(ev)
			}
		}, gomidi.HandleError(func(err error) {
			debug.Log("midi", "%s: listen error: %v", id, err)
		}))
		if err != nil {
			return nil, errors.Wrapf(err, "listen on %s", id)
		}
		kb.stopFunc = stop
	}

	return kb, nil
}

// noteEventFrom converts a raw message into a trigger, if it is one.
func noteEventFrom(msg gomidi.Message) (NoteEvent, bool) {
	var channel, note, velocity uint8
	switch {
	case msg.GetNoteStart(&channel, &note, &velocity):
		return NoteEvent{Note: note, Velocity: velocity, Channel: channel, On: true}, true
	case msg.GetNoteEnd(&channel, &note):
		return NoteEvent{Note: note, Channel: channel}, true
	}
	return NoteEvent{}, false
}

func (kb *KeyboardController) emit(ev NoteEvent) {
	select {
	case kb.noteChan <- ev:
	default:
		debug.Log("midi", "%s: note channel full, dropped %s", kb.id, ev.Describe())
	}
}

func (kb *KeyboardController) ID() string {
	return kb.id
}

func (kb *KeyboardController) Type() ControllerType {
	return ControllerKeyboard
}

func (kb *KeyboardController) NoteEvents() <-chan NoteEvent {
	return kb.noteChan
}

func (kb *KeyboardController) Close() error {
	if kb.stopFunc != nil {
		kb.stopFunc()
	}
	close(kb.noteChan)
	return nil
}
