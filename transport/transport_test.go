package transport

import (
	"context"
	"math"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/hypebeast/go-osc/osc"
)

func TestManual(t *testing.T) {
	m := NewManual()
	if _, ok := m.Position(); ok {
		t.Error("new Manual reports a position")
	}
	m.Set(12.5)
	if pos, ok := m.Position(); !ok || pos != 12.5 {
		t.Errorf("got %v, %v, want 12.5, true", pos, ok)
	}
	m.Clear()
	if _, ok := m.Position(); ok {
		t.Error("cleared Manual reports a position")
	}
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func near(a, b float64) bool {
	return math.Abs(a-b) < 1e-6
}

func TestOSCPlayhead(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	p := NewOSC("", WithClock(clock.Now), WithStaleAfter(time.Second))

	if p.Addr() != DefaultOSCAddr {
		t.Errorf("Addr() = %q, want %q", p.Addr(), DefaultOSCAddr)
	}

	t.Run("nothing received", func(t *testing.T) {
		if _, ok := p.Position(); ok {
			t.Error("position available before any message")
		}
	})

	t.Run("rolling transport extrapolates", func(t *testing.T) {
		p.Handle(osc.NewMessage(AddrTime, float32(10)))
		clock.Advance(250 * time.Millisecond)
		pos, ok := p.Position()
		if !ok || !near(pos, 10.25) {
			t.Errorf("got %v, %v, want 10.25, true", pos, ok)
		}
		if !p.Playing() {
			t.Error("time message should mark the transport playing")
		}
	})

	t.Run("stale rolling transport is unavailable", func(t *testing.T) {
		clock.Advance(2 * time.Second)
		if _, ok := p.Position(); ok {
			t.Error("stale position reported")
		}
	})

	t.Run("stop freezes position", func(t *testing.T) {
		p.Handle(osc.NewMessage(AddrTime, float64(20)))
		clock.Advance(500 * time.Millisecond)
		p.Handle(osc.NewMessage(AddrStop))
		clock.Advance(5 * time.Second)
		pos, ok := p.Position()
		if !ok || !near(pos, 20.5) {
			t.Errorf("got %v, %v, want 20.5, true", pos, ok)
		}
	})

	t.Run("locate keeps play state", func(t *testing.T) {
		p.Handle(osc.NewMessage(AddrLocate, int32(3)))
		clock.Advance(time.Second)
		pos, ok := p.Position()
		if !ok || !near(pos, 3) {
			t.Errorf("got %v, %v, want 3, true", pos, ok)
		}
	})

	t.Run("bad arguments are ignored", func(t *testing.T) {
		p.Handle(osc.NewMessage(AddrLocate, "soon"))
		p.Handle(osc.NewMessage(AddrTime))
		if pos, _ := p.Position(); !near(pos, 3) {
			t.Errorf("position moved to %v", pos)
		}
	})
}

func TestOSCServeOverUDP(t *testing.T) {
	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Skipf("no udp: %v", err)
	}
	p := NewOSC(conn.LocalAddr().String())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Serve(ctx, conn) }()

	client, err := NewClient(conn.LocalAddr().String())
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if err := client.SendLocate(42); err != nil {
		t.Fatalf("SendLocate: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		if pos, ok := p.Position(); ok && near(pos, 42) {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("position never arrived")
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve returned %v after cancel", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not stop")
	}
}

func TestNewClientBadAddr(t *testing.T) {
	if _, err := NewClient("no-port"); err == nil {
		t.Error("expected error")
	}
}
