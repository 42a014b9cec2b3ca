package transport

import (
	"context"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/hypebeast/go-osc/osc"
	"github.com/pkg/errors"

	"go-mtcgen/debug"
)

// OSC addresses understood by the OSC playhead
const (
	AddrTime   = "/transport/time"   // f: position in seconds, transport rolling
	AddrLocate = "/transport/locate" // f: position in seconds, play state unchanged
	AddrPlay   = "/transport/play"
	AddrStop   = "/transport/stop"
)

// DefaultOSCAddr is where the OSC playhead listens unless configured.
const DefaultOSCAddr = "127.0.0.1:9001"

// DefaultStaleAfter is how long a rolling transport may go without an update
// before the position is considered lost.
const DefaultStaleAfter = 500 * time.Millisecond

// OSC is a playhead fed by a DAW over OSC. Between updates a rolling
// transport is extrapolated with the wall clock.
type OSC struct {
	addr       string
	staleAfter time.Duration
	now        func() time.Time

	dispatcher *osc.StandardDispatcher

	mu      sync.RWMutex
	pos     float64
	at      time.Time
	have    bool
	playing bool
}

// OSCOption configures an OSC playhead
type OSCOption func(*OSC)

// WithStaleAfter overrides DefaultStaleAfter
func WithStaleAfter(d time.Duration) OSCOption {
	return func(o *OSC) { o.staleAfter = d }
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) OSCOption {
	return func(o *OSC) { o.now = now }
}

// NewOSC creates an OSC playhead listening on addr (empty means DefaultOSCAddr).
// It does not listen until Run is called.
func NewOSC(addr string, opts ...OSCOption) *OSC {
	if addr == "" {
		addr = DefaultOSCAddr
	}
	o := &OSC{
		addr:       addr,
		staleAfter: DefaultStaleAfter,
		now:        time.Now,
		dispatcher: osc.NewStandardDispatcher(),
	}
	for _, opt := range opts {
		opt(o)
	}

	o.dispatcher.AddMsgHandler(AddrTime, func(msg *osc.Message) {
		if t, ok := argSeconds(msg); ok {
			o.update(t, true, true)
		}
	})
	o.dispatcher.AddMsgHandler(AddrLocate, func(msg *osc.Message) {
		if t, ok := argSeconds(msg); ok {
			o.update(t, false, false)
		}
	})
	o.dispatcher.AddMsgHandler(AddrPlay, func(msg *osc.Message) {
		o.setPlaying(true)
	})
	o.dispatcher.AddMsgHandler(AddrStop, func(msg *osc.Message) {
		o.setPlaying(false)
	})
	return o
}

// Addr is the listen address
func (o *OSC) Addr() string {
	return o.addr
}

// Run serves OSC until ctx is done.
func (o *OSC) Run(ctx context.Context) error {
	conn, err := net.ListenPacket("udp", o.addr)
	if err != nil {
		return errors.Wrapf(err, "listen osc on %s", o.addr)
	}
	return o.Serve(ctx, conn)
}

// Serve reads OSC packets from conn until ctx is done, then closes conn.
func (o *OSC) Serve(ctx context.Context, conn net.PacketConn) error {
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	debug.Log("osc", "listening on %s", conn.LocalAddr())
	server := &osc.Server{Addr: o.addr, Dispatcher: o.dispatcher}
	err := server.Serve(conn)
	if ctx.Err() != nil {
		return nil
	}
	return errors.Wrap(err, "serve osc")
}

// Handle dispatches a message as if it had arrived on the socket.
func (o *OSC) Handle(msg *osc.Message) {
	o.dispatcher.Dispatch(msg)
}

func (o *OSC) update(t float64, setPlaying, playing bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.pos = t
	o.at = o.now()
	o.have = true
	if setPlaying {
		o.playing = playing
	}
}

func (o *OSC) setPlaying(playing bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.have {
		o.pos = o.extrapolateLocked()
	}
	o.at = o.now()
	o.playing = playing
}

func (o *OSC) extrapolateLocked() float64 {
	if !o.playing {
		return o.pos
	}
	return o.pos + o.now().Sub(o.at).Seconds()
}

// Position is the last received position, advanced by wall time while the
// transport rolls. It is unavailable before the first update and when a
// rolling transport has gone quiet for longer than the stale window.
func (o *OSC) Position() (float64, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if !o.have {
		return 0, false
	}
	if o.playing && o.now().Sub(o.at) > o.staleAfter {
		return 0, false
	}
	return o.extrapolateLocked(), true
}

// Playing reports the last known play state.
func (o *OSC) Playing() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.playing
}

func argSeconds(msg *osc.Message) (float64, bool) {
	if len(msg.Arguments) == 0 {
		return 0, false
	}
	switch v := msg.Arguments[0].(type) {
	case float32:
		return float64(v), true
	case float64:
		return v, true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}

// Client sends transport messages, the DAW side of the protocol.
type Client struct {
	c *osc.Client
}

// NewClient targets host:port
func NewClient(addr string) (*Client, error) {
	host, port, err := splitHostPort(addr)
	if err != nil {
		return nil, err
	}
	return &Client{c: osc.NewClient(host, port)}, nil
}

// SendTime reports a rolling position.
func (c *Client) SendTime(seconds float64) error {
	return c.c.Send(osc.NewMessage(AddrTime, float32(seconds)))
}

// SendLocate moves the position without changing play state.
func (c *Client) SendLocate(seconds float64) error {
	return c.c.Send(osc.NewMessage(AddrLocate, float32(seconds)))
}

// SendStop stops the transport.
func (c *Client) SendStop() error {
	return c.c.Send(osc.NewMessage(AddrStop))
}

func splitHostPort(addr string) (string, int, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return "", 0, errors.Wrapf(err, "bad osc address %q", addr)
	}
	port, err := net.LookupPort("udp", portStr)
	if err != nil {
		return "", 0, errors.Wrapf(err, "bad osc port in %q", addr)
	}
	if strings.TrimSpace(host) == "" {
		host = "127.0.0.1"
	}
	return host, port, nil
}
