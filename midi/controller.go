package midi

// ControllerType identifies the kind of controller
type ControllerType int

const (
	ControllerUnknown ControllerType = iota
	ControllerLaunchpad
	ControllerKeyboard
)

func (t ControllerType) String() string {
	switch t {
	case ControllerLaunchpad:
		return "launchpad"
	case ControllerKeyboard:
		return "keyboard"
	default:
		return "unknown"
	}
}

// Controller is a trigger input. Every controller reports presses as note
// events, grids included.
type Controller interface {
	ID() string
	Type() ControllerType
	NoteEvents() <-chan NoteEvent
	Close() error
}

// LEDUpdate is one pad colour change
type LEDUpdate struct {
	Row, Col int
	Color    [3]uint8
	Channel  uint8
}

// LEDController is a controller with a pad grid that can show state.
type LEDController interface {
	Controller
	SetLEDBatch(updates []LEDUpdate) error
	// PadForNote locates the pad that sends note, if any.
	PadForNote(note uint8) (row, col int, ok bool)
}

// Launchpad X LED channel modes
const (
	ChannelStatic uint8 = 0 // solid color
	ChannelFlash  uint8 = 1 // flashing A/B alternating
	ChannelPulse  uint8 = 2 // pulsing (fades)
)
