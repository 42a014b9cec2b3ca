package midi

import (
	"io"
	"sort"
	"sync"

	"github.com/pkg/errors"

	"go-mtcgen/debug"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
)

// Sink receives encoded timecode messages. Implementations must be safe
// for concurrent Send calls.
type Sink interface {
	Name() string
	Send(msg []byte) error
}

// PortSink writes to a MIDI output port
type PortSink struct {
	name string
	port drivers.Out
	mu   sync.Mutex
	send func(gomidi.Message) error
}

// OpenPort opens the output port with the given name.
func OpenPort(name string) (*PortSink, error) {
	for _, port := range gomidi.GetOutPorts() {
		if port.String() != name {
			continue
		}
		send, err := gomidi.SendTo(port)
		if err != nil {
			return nil, errors.Wrapf(err, "open output %q", name)
		}
		return &PortSink{name: name, port: port, send: send}, nil
	}
	return nil, errors.Errorf("output %q not found", name)
}

func (p *PortSink) Name() string {
	return p.name
}

func (p *PortSink) Send(msg []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.send(gomidi.Message(msg))
}

func (p *PortSink) Close() error {
	return p.port.Close()
}

// OutPortNames lists the MIDI output ports currently available.
func OutPortNames() []string {
	var names []string
	for _, port := range gomidi.GetOutPorts() {
		names = append(names, port.String())
	}
	return names
}

// Outputs is the set of sinks the engine broadcasts to. It is the only
// place sinks are opened and closed.
type Outputs struct {
	mu    sync.RWMutex
	sinks map[string]Sink
	open  func(name string) (Sink, error)
}

// NewOutputs returns an empty set that opens MIDI ports by name.
func NewOutputs() *Outputs {
	return &Outputs{
		sinks: make(map[string]Sink),
		open: func(name string) (Sink, error) {
			return OpenPort(name)
		},
	}
}

// Add puts an already opened sink in the set, replacing one with the same name.
func (o *Outputs) Add(s Sink) {
	o.mu.Lock()
	old := o.sinks[s.Name()]
	o.sinks[s.Name()] = s
	o.mu.Unlock()
	if old != nil && old != s {
		closeSink(old)
	}
}

// Select makes names the set of open MIDI port sinks: missing ones are
// opened, others closed. Sinks added with Add under other names (serial)
// are left alone only if listed in keep.
func (o *Outputs) Select(names []string, keep ...string) error {
	want := make(map[string]bool, len(names)+len(keep))
	for _, n := range names {
		want[n] = true
	}
	for _, n := range keep {
		want[n] = true
	}

	o.mu.RLock()
	var stale []string
	for name := range o.sinks {
		if !want[name] {
			stale = append(stale, name)
		}
	}
	o.mu.RUnlock()
	for _, name := range stale {
		o.Remove(name)
	}

	var firstErr error
	for _, name := range names {
		o.mu.RLock()
		_, ok := o.sinks[name]
		o.mu.RUnlock()
		if ok {
			continue
		}
		s, err := o.open(name)
		if err != nil {
			debug.Log("output", "open %s: %v", name, err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		o.Add(s)
		debug.Log("output", "opened %s", name)
	}
	return firstErr
}

// Sinks returns the open sinks sorted by name.
func (o *Outputs) Sinks() []Sink {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make([]Sink, 0, len(o.sinks))
	for _, s := range o.sinks {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// Names returns the names of the open sinks, sorted.
func (o *Outputs) Names() []string {
	sinks := o.Sinks()
	names := make([]string, len(sinks))
	for i, s := range sinks {
		names[i] = s.Name()
	}
	return names
}

// Has reports whether a sink with name is open.
func (o *Outputs) Has(name string) bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	_, ok := o.sinks[name]
	return ok
}

// Close closes every sink and empties the set.
func (o *Outputs) Close() {
	o.mu.Lock()
	sinks := o.sinks
	o.sinks = make(map[string]Sink)
	o.mu.Unlock()
	for _, s := range sinks {
		closeSink(s)
	}
}

func closeSink(s Sink) {
	if c, ok := s.(io.Closer); ok {
		if err := c.Close(); err != nil {
			debug.Log("output", "close %s: %v", s.Name(), err)
		}
	}
}
