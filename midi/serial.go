package midi

import (
	"strings"
	"sync"

	"github.com/pkg/errors"
	"go.bug.st/serial"
)

// DINBaud is the MIDI 1.0 DIN baud rate.
const DINBaud = 31250

// SerialPrefix starts the name of every serial sink
const SerialPrefix = "serial:"

// IsSerial reports whether a sink name belongs to a serial device.
func IsSerial(name string) bool {
	return strings.HasPrefix(name, SerialPrefix)
}

// SerialSink writes raw MIDI bytes to a serial device, for DIN MIDI
// through a USB-serial adapter or a microcontroller bridge.
type SerialSink struct {
	name string
	port serial.Port
	mu   sync.Mutex
}

// OpenSerial opens the named device. baud <= 0 means DINBaud.
func OpenSerial(name string, baud int) (*SerialSink, error) {
	if baud <= 0 {
		baud = DINBaud
	}
	p, err := serial.Open(name, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, errors.Wrapf(err, "open serial %s at %d baud", name, baud)
	}
	return &SerialSink{name: name, port: p}, nil
}

// Name is the device path prefixed so it never collides with a MIDI port name.
func (s *SerialSink) Name() string {
	return SerialPrefix + s.name
}

func (s *SerialSink) Send(msg []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.port.Write(msg); err != nil {
		return errors.Wrapf(err, "write %s", s.name)
	}
	return nil
}

func (s *SerialSink) Close() error {
	return s.port.Close()
}

// SerialPorts lists serial devices on this machine.
func SerialPorts() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, errors.Wrap(err, "list serial ports")
	}
	return ports, nil
}
