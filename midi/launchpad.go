package midi

import (
	"sync/atomic"

	"github.com/pkg/errors"

	"go-mtcgen/debug"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
)

// GridSize is the playable pad grid of a Launchpad X (side and top rows excluded).
const GridSize = 8

var ledSendCount uint64

// LaunchpadController turns a Novation Launchpad X into a trigger grid.
// Pad (row, col) plays note base + row*8 + col; press arms, release disarms.
type LaunchpadController struct {
	id       string
	base     uint8
	outPort  drivers.Out
	inPort   drivers.In
	send     func(msg gomidi.Message) error
	stopFunc func()

	noteChan chan NoteEvent
}

// NewLaunchpadController puts the device in Programmer mode and starts listening.
func NewLaunchpadController(id string, inPort drivers.In, outPort drivers.Out, base uint8) (*LaunchpadController, error) {
	lp := &LaunchpadController{
		id:       id,
		base:     base,
		inPort:   inPort,
		outPort:  outPort,
		noteChan: make(chan NoteEvent, 64),
	}

	if outPort != nil {
		send, err := gomidi.SendTo(outPort)
		if err != nil {
			return nil, errors.Wrapf(err, "open %s output", id)
		}
		lp.send = send

		// Programmer mode: F0 00 20 29 02 0C 00 7F F7
		lp.send(gomidi.SysEx([]byte{0x00, 0x20, 0x29, 0x02, 0x0C, 0x00, 0x7F}))
		// Brightness: F0 00 20 29 02 0C 08 <brightness> F7
		lp.send(gomidi.SysEx([]byte{0x00, 0x20, 0x29, 0x02, 0x0C, 0x08, 0x7F}))
	}

	if inPort != nil {
		stop, err := gomidi.ListenTo(inPort, func(msg gomidi.Message, timestampms int32) {
			var channel, note, velocity uint8
			switch {
			case msg.GetNoteStart(&channel, &note, &velocity):
				lp.pad(note, velocity, true)
			case msg.GetNoteEnd(&channel, &note):
				lp.pad(note, 0, false)
			}
		}, gomidi.HandleError(func(err error) {
			debug.Log("midi", "%s: listen error: %v", id, err)
		}))
		if err != nil {
			return nil, errors.Wrapf(err, "listen on %s", id)
		}
		lp.stopFunc = stop
	}

	return lp, nil
}

func (lp *LaunchpadController) pad(hwNote, velocity uint8, on bool) {
	row, col := noteToRowCol(hwNote)
	if row < 0 || row >= GridSize || col >= GridSize {
		return
	}
	ev := NoteEvent{Note: lp.PadNote(row, col), Velocity: velocity, On: on}
	select {
	case lp.noteChan <- ev:
	default:
	}
}

// PadNote is the trigger note for a grid pad.
func (lp *LaunchpadController) PadNote(row, col int) uint8 {
	return PadNote(lp.base, row, col)
}

// PadNote is base + row*8 + col, clamped into the MIDI range.
func PadNote(base uint8, row, col int) uint8 {
	n := int(base) + row*GridSize + col
	if n > 127 {
		n = 127
	}
	return uint8(n)
}

// PadForNote is the inverse of PadNote.
func (lp *LaunchpadController) PadForNote(note uint8) (row, col int, ok bool) {
	return PadForNote(lp.base, note)
}

// PadForNote locates note on a grid starting at base.
func PadForNote(base, note uint8) (row, col int, ok bool) {
	if note < base {
		return 0, 0, false
	}
	i := int(note - base)
	if i >= GridSize*GridSize {
		return 0, 0, false
	}
	return i / GridSize, i % GridSize, true
}

func (lp *LaunchpadController) ID() string {
	return lp.id
}

func (lp *LaunchpadController) Type() ControllerType {
	return ControllerLaunchpad
}

func (lp *LaunchpadController) NoteEvents() <-chan NoteEvent {
	return lp.noteChan
}

// SetLEDBatch sends one NoteOn per update; the caller only passes pads that changed.
func (lp *LaunchpadController) SetLEDBatch(updates []LEDUpdate) error {
	if lp.send == nil || len(updates) == 0 {
		return nil
	}

	var firstErr error
	for _, u := range updates {
		note := rowColToNote(u.Row, u.Col)
		color := mapRGBToLaunchpad(u.Color)
		if err := lp.send(gomidi.NoteOn(u.Channel, note, color)); err != nil && firstErr == nil {
			firstErr = errors.Wrapf(err, "set led %d,%d", u.Row, u.Col)
		}
	}

	count := atomic.AddUint64(&ledSendCount, uint64(len(updates)))
	if count%100 < uint64(len(updates)) {
		debug.Log("lp-send", "batch count=%d (this batch=%d)", count, len(updates))
	}

	return firstErr
}

// launchpadPalette holds approximate RGB values for the Launchpad X velocity palette.
// Format: {velocity, R, G, B}
var launchpadPalette = [][4]uint8{
	{0, 0, 0, 0},         // off
	{5, 255, 0, 0},       // red
	{7, 180, 60, 60},     // dim red
	{9, 255, 100, 0},     // orange
	{13, 255, 200, 0},    // yellow
	{17, 0, 180, 0},      // green
	{19, 0, 100, 0},      // dim green
	{21, 0, 255, 0},      // bright green
	{37, 0, 200, 200},    // cyan
	{43, 40, 60, 120},    // dim blue
	{45, 0, 100, 255},    // blue
	{1, 30, 30, 30},      // dark grey
	{2, 120, 120, 120},   // grey
	{119, 255, 255, 255}, // white
}

// mapRGBToLaunchpad finds the nearest palette entry
func mapRGBToLaunchpad(rgb [3]uint8) uint8 {
	bestMatch := uint8(0)
	bestDist := 1 << 30

	r, g, b := int(rgb[0]), int(rgb[1]), int(rgb[2])
	for _, p := range launchpadPalette {
		pr, pg, pb := int(p[1]), int(p[2]), int(p[3])
		dist := (r-pr)*(r-pr) + (g-pg)*(g-pg) + (b-pb)*(b-pb)
		if dist < bestDist {
			bestDist = dist
			bestMatch = p[0]
		}
	}
	return bestMatch
}

func (lp *LaunchpadController) Close() error {
	if lp.send != nil {
		var updates []LEDUpdate
		for row := 0; row < GridSize; row++ {
			for col := 0; col < GridSize; col++ {
				updates = append(updates, LEDUpdate{Row: row, Col: col})
			}
		}
		lp.SetLEDBatch(updates)
	}
	if lp.stopFunc != nil {
		lp.stopFunc()
	}
	close(lp.noteChan)
	return nil
}

// Launchpad X hardware layout in Programmer mode:
// row 0 (bottom) = notes 11-18, row 7 = notes 81-88, side column = x9.

func rowColToNote(row, col int) uint8 {
	return uint8((row+1)*10 + col + 1)
}

func noteToRowCol(note uint8) (row, col int) {
	row = int(note/10) - 1
	col = int(note%10) - 1
	if row < 0 || row > 7 || col < 0 || col > 8 {
		return -1, -1
	}
	return row, col
}
