package midi

import (
	"context"
	"strings"
	"sync"
	"time"

	"go-mtcgen/debug"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv" // Register MIDI driver
)

// DeviceEvent is emitted when controllers connect/disconnect
type DeviceEvent struct {
	Type       DeviceEventType
	Controller Controller
	ID         string
}

type DeviceEventType int

const (
	DeviceConnected DeviceEventType = iota
	DeviceDisconnected
)

// ManagerOptions controls which inputs become trigger controllers.
type ManagerOptions struct {
	// Exclude lists case-insensitive substrings of port names to ignore.
	Exclude       []string
	LaunchpadBase uint8
	// Keyboards enables plain MIDI inputs; Launchpads are always picked up.
	Keyboards bool
}

// DeviceManager handles hot-plug detection of trigger inputs and merges
// their note events into one stream.
type DeviceManager struct {
	opts        ManagerOptions
	controllers map[string]Controller
	mu          sync.RWMutex
	events      chan DeviceEvent
	notes       chan NoteEvent
	pollRate    time.Duration
}

// NewDeviceManager creates a new device manager
func NewDeviceManager(opts ManagerOptions) *DeviceManager {
	return &DeviceManager{
		opts:        opts,
		controllers: make(map[string]Controller),
		events:      make(chan DeviceEvent, 16),
		notes:       make(chan NoteEvent, 256),
		pollRate:    time.Second,
	}
}

// Events returns a channel of device connect/disconnect events
func (dm *DeviceManager) Events() <-chan DeviceEvent {
	return dm.events
}

// Notes returns trigger events from every connected controller.
func (dm *DeviceManager) Notes() <-chan NoteEvent {
	return dm.notes
}

// LEDControllers returns connected controllers that can show pad state.
func (dm *DeviceManager) LEDControllers() []LEDController {
	dm.mu.RLock()
	defer dm.mu.RUnlock()
	var out []LEDController
	for _, c := range dm.controllers {
		if lc, ok := c.(LEDController); ok {
			out = append(out, lc)
		}
	}
	return out
}

// Run starts the polling loop (blocking - run in goroutine)
func (dm *DeviceManager) Run(ctx context.Context) {
	ticker := time.NewTicker(dm.pollRate)
	defer ticker.Stop()

	dm.scan()

	for {
		select {
		case <-ctx.Done():
			dm.closeAll()
			close(dm.events)
			return
		case <-ticker.C:
			dm.scan()
		}
	}
}

func (dm *DeviceManager) scan() {
	// Port enumeration can hang on some drivers, so it gets a deadline.
	type portsResult struct {
		inPorts  []drivers.In
		outPorts []drivers.Out
	}

	ch := make(chan portsResult, 1)
	go func() {
		ch <- portsResult{inPorts: gomidi.GetInPorts(), outPorts: gomidi.GetOutPorts()}
	}()

	var result portsResult
	select {
	case result = <-ch:
	case <-time.After(3 * time.Second):
		debug.Log("devices", "port scan timed out")
		return
	}

	seenIDs := make(map[string]bool)

	for _, inPort := range result.inPorts {
		id := inPort.String()
		kind := classify(id, dm.opts)
		if kind == ControllerUnknown {
			continue
		}
		seenIDs[id] = true

		dm.mu.RLock()
		_, exists := dm.controllers[id]
		dm.mu.RUnlock()
		if exists {
			continue
		}

		c, err := dm.open(kind, inPort, result.outPorts)
		if err != nil {
			debug.Log("devices", "open %s: %v", id, err)
			continue
		}

		dm.mu.Lock()
		dm.controllers[id] = c
		dm.mu.Unlock()

		go dm.forward(c)
		debug.Log("devices", "connected %s (%s)", id, kind)
		dm.emit(DeviceEvent{Type: DeviceConnected, Controller: c, ID: id})
	}

	dm.mu.Lock()
	var gone []string
	for id, c := range dm.controllers {
		if !seenIDs[id] {
			c.Close()
			delete(dm.controllers, id)
			gone = append(gone, id)
		}
	}
	dm.mu.Unlock()

	for _, id := range gone {
		debug.Log("devices", "disconnected %s", id)
		dm.emit(DeviceEvent{Type: DeviceDisconnected, ID: id})
	}
}

func (dm *DeviceManager) open(kind ControllerType, in drivers.In, outs []drivers.Out) (Controller, error) {
	id := in.String()
	if kind == ControllerLaunchpad {
		var out drivers.Out
		for _, op := range outs {
			if strings.EqualFold(op.String(), id) {
				out = op
				break
			}
		}
		return NewLaunchpadController(id, in, out, dm.opts.LaunchpadBase)
	}
	return NewKeyboardController(id, in)
}

// forward copies a controller's notes into the merged stream until it closes.
func (dm *DeviceManager) forward(c Controller) {
	for ev := range c.NoteEvents() {
		select {
		case dm.notes <- ev:
		default:
		}
	}
}

func (dm *DeviceManager) emit(ev DeviceEvent) {
	select {
	case dm.events <- ev:
	default:
	}
}

func (dm *DeviceManager) closeAll() {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	for _, c := range dm.controllers {
		c.Close()
	}
	dm.controllers = make(map[string]Controller)
}

// classify decides what an input port becomes.
func classify(name string, opts ManagerOptions) ControllerType {
	lower := strings.ToLower(name)
	for _, ex := range opts.Exclude {
		if ex != "" && strings.Contains(lower, strings.ToLower(ex)) {
			return ControllerUnknown
		}
	}
	if isLaunchpad(lower) {
		return ControllerLaunchpad
	}
	if opts.Keyboards {
		return ControllerKeyboard
	}
	return ControllerUnknown
}

func isLaunchpad(name string) bool {
	name = strings.ToLower(name)
	return strings.Contains(name, "launchpad") && strings.Contains(name, "midi")
}
