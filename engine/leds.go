package engine

import (
	"context"
	"time"

	"go-mtcgen/debug"
	"go-mtcgen/midi"
)

// LED refresh rate
const ledFPS = 30

// LEDState is one lit pad
type LEDState struct {
	Row, Col int
	Color    [3]uint8
	Channel  uint8
}

// Pad colours per mapping phase
var (
	colorIdle    = [3]uint8{30, 30, 30}
	colorOpen    = [3]uint8{255, 200, 0}
	colorClosed  = [3]uint8{0, 100, 255}
	colorArmed   = [3]uint8{0, 255, 0}
	colorDriving = [3]uint8{255, 255, 255}
)

// PadColor is the pad colour for a mapping in phase p. The driving mapping
// is always white.
func PadColor(p Phase, driving bool) [3]uint8 {
	if driving {
		return colorDriving
	}
	switch p {
	case PhaseArmed:
		return colorArmed
	case PhaseOpen:
		return colorOpen
	case PhaseClosed:
		return colorClosed
	default:
		return colorIdle
	}
}

// AttachLEDs starts mirroring mapping state on c's pads.
func (e *Engine) AttachLEDs(c midi.LEDController) {
	e.ledMu.Lock()
	e.controllers[c.ID()] = c
	e.prevLEDs[c.ID()] = make(map[[2]int]LEDState) // diff will handle clearing
	e.ledDirty = true
	e.ledMu.Unlock()
	debug.Log("led", "attached %s", c.ID())
}

// DetachLEDs forgets the controller with id.
func (e *Engine) DetachLEDs(id string) {
	e.ledMu.Lock()
	delete(e.controllers, id)
	delete(e.prevLEDs, id)
	e.ledMu.Unlock()
}

// HandleDeviceEvent attaches connecting controllers that have LEDs and
// detaches disconnecting ones.
func (e *Engine) HandleDeviceEvent(ev midi.DeviceEvent) {
	switch ev.Type {
	case midi.DeviceConnected:
		if c, ok := ev.Controller.(midi.LEDController); ok {
			e.AttachLEDs(c)
		}
	case midi.DeviceDisconnected:
		e.DetachLEDs(ev.ID)
	}
}

// markLEDsDirty flags that LEDs need refresh (called from various places)
func (e *Engine) markLEDsDirty() {
	e.ledMu.Lock()
	e.ledDirty = true
	e.ledMu.Unlock()
}

// RenderLEDs lays the mapping table out on c's grid. A pad shows the first
// mapping for its note, matching which mapping a press would trigger.
func (e *Engine) RenderLEDs(c midi.LEDController) []LEDState {
	e.mu.RLock()
	mappings := e.store.All()
	active := e.activeIdx
	e.mu.RUnlock()

	seen := make(map[int]bool)
	var out []LEDState
	for i, m := range mappings {
		if seen[m.Note] || m.Note < 0 || m.Note > 127 {
			continue
		}
		seen[m.Note] = true
		row, col, ok := c.PadForNote(uint8(m.Note))
		if !ok {
			continue
		}

		led := LEDState{Row: row, Col: col, Color: PadColor(m.Phase(), i == active), Channel: midi.ChannelStatic}
		if i != active && m.Phase() == PhaseArmed {
			led.Channel = midi.ChannelPulse
		}
		out = append(out, led)
	}
	return out
}

// ledLoop runs at fixed FPS and flushes LED updates
func (e *Engine) ledLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Second / ledFPS)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.flushLEDs()
		}
	}
}

// flushLEDs sends only changed LEDs to each controller (diffing + batching)
func (e *Engine) flushLEDs() {
	e.ledMu.Lock()
	if !e.ledDirty {
		e.ledMu.Unlock()
		return
	}
	e.ledDirty = false
	controllers := make([]midi.LEDController, 0, len(e.controllers))
	for _, c := range e.controllers {
		controllers = append(controllers, c)
	}
	e.ledMu.Unlock()

	for _, c := range controllers {
		e.flushController(c)
	}
}

func (e *Engine) flushController(c midi.LEDController) {
	newLEDs := e.RenderLEDs(c)

	e.ledMu.Lock()
	prev, ok := e.prevLEDs[c.ID()]
	e.ledMu.Unlock()
	if !ok {
		return // detached meanwhile
	}

	updates, newMap := diffLEDs(prev, newLEDs)
	if len(updates) > 0 {
		debug.Log("led", "flush %s: batch=%d prev=%d", c.ID(), len(updates), len(prev))
		if err := c.SetLEDBatch(updates); err != nil {
			debug.Log("led", "%s: %v", c.ID(), err)
		}
	}

	e.ledMu.Lock()
	if _, ok := e.prevLEDs[c.ID()]; ok {
		e.prevLEDs[c.ID()] = newMap
	}
	e.ledMu.Unlock()
}

// diffLEDs returns the updates that turn prev into next, clearing pads that
// are no longer lit.
func diffLEDs(prev map[[2]int]LEDState, next []LEDState) ([]midi.LEDUpdate, map[[2]int]LEDState) {
	newMap := make(map[[2]int]LEDState, len(next))
	var updates []midi.LEDUpdate

	for _, led := range next {
		key := [2]int{led.Row, led.Col}
		newMap[key] = led
		if old, ok := prev[key]; !ok || old != led {
			updates = append(updates, midi.LEDUpdate{
				Row:     led.Row,
				Col:     led.Col,
				Color:   led.Color,
				Channel: led.Channel,
			})
		}
	}

	for key := range prev {
		if _, ok := newMap[key]; !ok {
			updates = append(updates, midi.LEDUpdate{Row: key[0], Col: key[1]})
		}
	}
	return updates, newMap
}
