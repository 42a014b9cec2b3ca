package engine

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"go-mtcgen/debug"
	"go-mtcgen/midi"
	"go-mtcgen/timecode"
	"go-mtcgen/transport"
)

type recordingSink struct {
	mu   sync.Mutex
	msgs [][]byte
}

func (r *recordingSink) Name() string { return "recorder" }

func (r *recordingSink) Send(msg []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, append([]byte(nil), msg...))
	return nil
}

func (r *recordingSink) all() [][]byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]byte(nil), r.msgs...)
}

func (r *recordingSink) last() []byte {
	msgs := r.all()
	if len(msgs) == 0 {
		return nil
	}
	return msgs[len(msgs)-1]
}

func (r *recordingSink) reset() {
	r.mu.Lock()
	r.msgs = nil
	r.mu.Unlock()
}

func noteOn(n uint8) midi.NoteEvent  { return midi.NoteEvent{Note: n, Velocity: 100, On: true} }
func noteOff(n uint8) midi.NoteEvent { return midi.NoteEvent{Note: n} }

func newTestEngine(opts ...Option) (*Engine, *transport.Manual, *recordingSink) {
	ph := transport.NewManual()
	sink := &recordingSink{}
	opts = append([]Option{WithPlayHead(ph), WithSinks(sink)}, opts...)
	return New(opts...), ph, sink
}

func TestNewDefaults(t *testing.T) {
	e := New()
	ms := e.Mappings()
	if len(ms) != 1 {
		t.Fatalf("got %d mappings, want 1", len(ms))
	}
	want := NewMapping("00:10:00:00", 60, "Default Mapping")
	if ms[0] != want {
		t.Errorf("got %+v, want %+v", ms[0], want)
	}
	if e.FrameRate() != timecode.Rate30 || e.Format() != FullFrame {
		t.Errorf("rate %v format %v", e.FrameRate(), e.Format())
	}
	if e.ActiveIndex() != -1 || e.CurrentTimecode() != "" {
		t.Error("fresh engine has an active mapping")
	}
}

func TestProcessBlockFullFrame(t *testing.T) {
	e, ph, sink := newTestEngine()

	ph.Set(5)
	e.ProcessBlock(Block{Samples: 512, Notes: []midi.NoteEvent{noteOn(60)}})

	ph.Set(7.5)
	e.ProcessBlock(Block{Samples: 512})

	want := timecode.FullFrame(timecode.Timecode{Minutes: 10, Seconds: 2, Frames: 15})
	if got := sink.last(); !bytes.Equal(got, want[:]) {
		t.Errorf("last message % X, want % X", got, want)
	}
	if e.ActiveIndex() != 0 {
		t.Errorf("ActiveIndex = %d, want 0", e.ActiveIndex())
	}

	e.Refresh()
	if got := e.CurrentTimecode(); got != "00:10:02:15" {
		t.Errorf("CurrentTimecode = %q, want 00:10:02:15", got)
	}

	t.Run("window end is exclusive", func(t *testing.T) {
		ph.Set(8)
		e.ProcessBlock(Block{Samples: 512, Notes: []midi.NoteEvent{noteOff(60)}})
		sink.reset()
		e.ProcessBlock(Block{Samples: 512})
		if n := len(sink.all()); n != 0 {
			t.Errorf("sent %d messages at the window end", n)
		}
		e.Refresh()
		if e.CurrentTimecode() != "" || e.ActiveIndex() != -1 {
			t.Errorf("still active: %q %d", e.CurrentTimecode(), e.ActiveIndex())
		}
	})
}

func TestProcessBlockInternalClock(t *testing.T) {
	e, _, _ := newTestEngine(WithSampleRate(48000))
	e.SetPlayHead(nil)

	e.ProcessBlock(Block{Samples: 48000})
	if got := e.Now(); got != 1 {
		t.Errorf("Now = %v, want 1", got)
	}

	t.Run("note offsets are stamped inside the block", func(t *testing.T) {
		e.ProcessBlock(Block{Samples: 48000, Notes: []midi.NoteEvent{
			{Note: 60, Velocity: 100, On: true, Offset: 24000},
		}})
		m := e.Mappings()[0]
		if m.Start != 2.5 {
			t.Errorf("Start = %v, want 2.5", m.Start)
		}
	})
}

func TestHandleNoteQueuesUntilNextBlock(t *testing.T) {
	e, ph, _ := newTestEngine()
	ph.Set(3)

	if !e.HandleNote(noteOn(60)) {
		t.Fatal("HandleNote dropped the note")
	}
	if e.Mappings()[0].Active {
		t.Fatal("note applied before a cycle ran")
	}

	e.ProcessBlock(Block{Samples: 64, Notes: []midi.NoteEvent{noteOff(60)}})
	m := e.Mappings()[0]
	if m.Active || m.Start != 3 || m.End != 3 {
		t.Errorf("queued on then block off: got %+v", m)
	}

	events := e.DebugEvents()
	if len(events) != 2 || events[0].Desc != "NoteOn  C4" || events[1].Desc != "NoteOff C4" {
		t.Errorf("debug events = %+v", events)
	}
}

func TestListenNotes(t *testing.T) {
	e, ph, _ := newTestEngine()
	ph.Set(2)

	notes := make(chan midi.NoteEvent, 2)
	notes <- noteOn(60)
	close(notes)

	done := make(chan struct{})
	go func() {
		e.ListenNotes(context.Background(), notes)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("ListenNotes did not return after the channel closed")
	}

	e.ProcessBlock(Block{Samples: 64})
	if m := e.Mappings()[0]; !m.Active || m.Start != 2 {
		t.Errorf("device note not applied: %+v", m)
	}

	t.Run("stops on cancel", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		e.ListenNotes(ctx, make(chan midi.NoteEvent))
	})
}

func TestProcessBlockKeepsNewestEvents(t *testing.T) {
	e, ph, _ := newTestEngine()
	ph.Set(1)

	var notes []midi.NoteEvent
	for n := uint8(60); n < 60+EventLogSize+3; n++ {
		ev := noteOn(n)
		ev.Offset = int(n - 60)
		notes = append(notes, ev)
	}
	e.ProcessBlock(Block{Samples: 64, Notes: notes})

	events := e.DebugEvents()
	if len(events) != EventLogSize {
		t.Fatalf("got %d events, want %d", len(events), EventLogSize)
	}
	if got, want := events[0].Desc, notes[3].Describe(); got != want {
		t.Errorf("oldest kept = %q, want %q", got, want)
	}
	if got, want := events[EventLogSize-1].Desc, notes[len(notes)-1].Describe(); got != want {
		t.Errorf("newest kept = %q, want %q", got, want)
	}
}

func TestLogEvents(t *testing.T) {
	var buf bytes.Buffer
	debug.EnableTo(&buf)
	defer debug.Disable()

	e, ph, _ := newTestEngine()
	ph.Set(1)
	e.ProcessBlock(Block{Samples: 64, Notes: []midi.NoteEvent{noteOn(60)}})
	if strings.Contains(buf.String(), "cat=event") {
		t.Fatal("host cycle wrote to the debug log")
	}

	seq := e.logEvents(0)
	if !strings.Contains(buf.String(), "NoteOn  C4") {
		t.Errorf("event missing from log: %q", buf.String())
	}

	buf.Reset()
	if next := e.logEvents(seq); next != seq || buf.Len() != 0 {
		t.Errorf("second pass logged %q", buf.String())
	}
}

func TestHandleNoteDropsWhenFull(t *testing.T) {
	e := New()
	for i := 0; i < pendingSize; i++ {
		e.HandleNote(noteOn(60))
	}
	if e.HandleNote(noteOn(60)) {
		t.Error("HandleNote accepted past capacity")
	}
}

func TestRefreshJumpClosesArmedMappings(t *testing.T) {
	e, ph, _ := newTestEngine()

	ph.Set(10)
	e.ProcessBlock(Block{Notes: []midi.NoteEvent{noteOn(60)}})
	ph.Set(12)
	e.Refresh()
	if e.CurrentTimecode() != "00:10:02:00" {
		t.Fatalf("before jump: %q", e.CurrentTimecode())
	}

	ph.Set(3)
	e.Refresh()

	m := e.Mappings()[0]
	if m.Active || m.End != 12 {
		t.Errorf("after jump got %+v, want closed at 12", m)
	}
	if e.CurrentTimecode() != "" || e.ActiveIndex() != -1 {
		t.Errorf("display %q index %d after jump", e.CurrentTimecode(), e.ActiveIndex())
	}
	if e.Now() != 3 {
		t.Errorf("internal clock = %v, want 3", e.Now())
	}

	t.Run("closed window still drives when played again", func(t *testing.T) {
		ph.Set(11)
		e.Refresh()
		if e.CurrentTimecode() != "00:10:01:00" {
			t.Errorf("got %q, want 00:10:01:00", e.CurrentTimecode())
		}
	})
}

func TestRefreshWithoutPlayheadUsesInternalClock(t *testing.T) {
	e := New()
	e.ProcessBlock(Block{Samples: DefaultSampleRate * 2, Notes: []midi.NoteEvent{noteOn(60)}})
	e.ProcessBlock(Block{Samples: DefaultSampleRate})
	e.Refresh()
	if got := e.CurrentTimecode(); got != "00:10:01:00" {
		t.Errorf("got %q, want 00:10:01:00", got)
	}
	select {
	case <-e.UpdateChan:
	default:
		t.Error("Refresh did not notify UpdateChan")
	}
}

func TestQuarterFrameTick(t *testing.T) {
	e, ph, sink := newTestEngine(WithFormat(QuarterFrame))

	t.Run("silent without a driving mapping", func(t *testing.T) {
		e.QuarterFrameTick()
		if len(sink.all()) != 0 {
			t.Error("sent with nothing active")
		}
	})

	ph.Set(5)
	e.ProcessBlock(Block{Notes: []midi.NoteEvent{noteOn(60)}})
	ph.Set(7.5)
	e.ProcessBlock(Block{})
	if len(sink.all()) != 0 {
		t.Fatal("full frames sent in quarter-frame mode")
	}

	for i := 0; i < 8; i++ {
		e.QuarterFrameTick()
	}
	msgs := sink.all()
	if len(msgs) != 8 {
		t.Fatalf("got %d messages, want 8", len(msgs))
	}

	var d timecode.Decoder
	var got timecode.Timecode
	var rate timecode.Rate
	for _, m := range msgs {
		got, rate, _ = d.Feed(m)
	}
	want := timecode.Timecode{Minutes: 10, Seconds: 2, Frames: 15}
	if got != want || rate != timecode.Rate30 {
		t.Errorf("decoded %v @ %v, want %v @ 30", got, rate, want)
	}

	t.Run("rate change restarts the cycle", func(t *testing.T) {
		sink.reset()
		e.QuarterFrameTick()
		e.QuarterFrameTick()
		e.SetFrameRate(timecode.Rate25)
		e.QuarterFrameTick()
		msgs := sink.all()
		if piece := msgs[2][1] >> 4; piece != 0 {
			t.Errorf("piece after SetFrameRate = %d, want 0", piece)
		}
	})

	t.Run("full-frame mode ignores ticks", func(t *testing.T) {
		e.SetFormat(FullFrame)
		sink.reset()
		e.QuarterFrameTick()
		if len(sink.all()) != 0 {
			t.Error("tick sent in full-frame mode")
		}
	})
}

func TestQuarterInterval(t *testing.T) {
	got := QuarterInterval(25)
	if got != 5*time.Millisecond {
		t.Errorf("QuarterInterval(25) = %v, want 5ms", got)
	}
	if QuarterInterval(0) != QuarterInterval(30) {
		t.Error("non-positive fps should fall back to 30")
	}
}

func TestSetFrameRateIgnoresNonPositive(t *testing.T) {
	e := New()
	e.SetFrameRate(0)
	e.SetFrameRate(-25)
	if e.FrameRate() != timecode.Rate30 {
		t.Errorf("rate = %v", e.FrameRate())
	}
}

func TestMappingEdits(t *testing.T) {
	e, ph, _ := newTestEngine(WithMappings())

	if i := e.AddMapping(); i != 0 {
		t.Fatalf("AddMapping on empty table returned %d", i)
	}
	e.AddMapping()
	ms := e.Mappings()
	if ms[0].Note != 60 || ms[1].Note != 61 || ms[1].Timecode != "00:00:00:00" || ms[1].Label != "New Mapping" {
		t.Errorf("added mappings %+v", ms)
	}

	t.Run("update keeps window", func(t *testing.T) {
		ph.Set(4)
		e.SetStart(1)
		e.UpdateMapping(1, func(m *Mapping) {
			m.Label = "Verse"
			m.Start = 99
			m.Active = true
		})
		m := e.Mappings()[1]
		if m.Label != "Verse" || m.Start != 4 || m.Active {
			t.Errorf("got %+v", m)
		}
	})

	t.Run("set end stamps playhead", func(t *testing.T) {
		ph.Set(6)
		e.SetEnd(1)
		if m := e.Mappings()[1]; m.End != 6 {
			t.Errorf("End = %v, want 6", m.End)
		}
	})

	t.Run("remove shifts active index", func(t *testing.T) {
		ph.Set(5)
		e.Refresh()
		if e.ActiveIndex() != 1 {
			t.Fatalf("ActiveIndex = %d, want 1", e.ActiveIndex())
		}
		e.RemoveMapping(0)
		if e.ActiveIndex() != 0 {
			t.Errorf("ActiveIndex = %d, want 0", e.ActiveIndex())
		}
		e.RemoveMapping(0)
		if e.ActiveIndex() != -1 {
			t.Errorf("ActiveIndex = %d, want -1", e.ActiveIndex())
		}
		e.RemoveMapping(10)
	})

	t.Run("note clamps at 127", func(t *testing.T) {
		e.AppendMapping(NewMapping("00:00:00:00", 127, "top"))
		i := e.AddMapping()
		if n := e.Mappings()[i].Note; n != 127 {
			t.Errorf("note = %d, want 127", n)
		}
	})
}

func TestPrepare(t *testing.T) {
	e := New()
	e.ProcessBlock(Block{Samples: 1000})
	e.Prepare(44100)
	if e.Now() != 0 {
		t.Errorf("Now = %v after Prepare", e.Now())
	}
	e.ProcessBlock(Block{Samples: 44100})
	if e.Now() != 1 {
		t.Errorf("Now = %v, want 1 at 44.1k", e.Now())
	}
}
