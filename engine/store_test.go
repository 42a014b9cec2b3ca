package engine

import (
	"testing"
)

func TestResolve(t *testing.T) {
	armed := NewMapping("00:10:00:00", 60, "armed")
	armed.Start, armed.Active = 5, true

	closed := NewMapping("00:20:00:00", 61, "closed")
	closed.Start, closed.End = 5, 8

	tests := []struct {
		name     string
		now      float64
		mappings []Mapping
		want     int
	}{
		{"empty table", 1, nil, -1},
		{"idle mapping never drives", 1, []Mapping{NewMapping("00:00:00:00", 60, "")}, -1},
		{"inside closed window", 7.5, []Mapping{closed}, 0},
		{"end is exclusive", 8.0, []Mapping{closed}, -1},
		{"start is exclusive", 5.0, []Mapping{closed}, -1},
		{"armed wins before its own start", 1, []Mapping{armed}, 0},
		{"armed wins over an earlier closed window", 7.5, []Mapping{closed, armed}, 1},
		{"first window in store order", 7.5, []Mapping{closed, closed}, 0},
		{"open window has no end", 1000, []Mapping{{Start: 5, End: Unset}}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Resolve(tt.now, tt.mappings); got != tt.want {
				t.Errorf("Resolve(%v) = %d, want %d", tt.now, got, tt.want)
			}
		})
	}

	t.Run("first armed in store order", func(t *testing.T) {
		a := armed
		a.Note = 62
		if got := Resolve(0, []Mapping{closed, a, armed}); got != 1 {
			t.Errorf("got %d, want 1", got)
		}
	})
}

func TestMappingPhase(t *testing.T) {
	m := NewMapping("00:00:00:00", 60, "")
	if m.Phase() != PhaseIdle {
		t.Errorf("new mapping phase = %v", m.Phase())
	}
	m.Start, m.Active = 1, true
	if m.Phase() != PhaseArmed {
		t.Errorf("armed phase = %v", m.Phase())
	}
	m.Active = false
	if m.Phase() != PhaseOpen {
		t.Errorf("open phase = %v", m.Phase())
	}
	m.End = 2
	if m.Phase() != PhaseClosed {
		t.Errorf("closed phase = %v", m.Phase())
	}
}

func TestStoreTriggers(t *testing.T) {
	s := NewStore(
		NewMapping("00:10:00:00", 60, "first"),
		NewMapping("00:20:00:00", 60, "duplicate note"),
		NewMapping("00:30:00:00", 62, "other"),
	)

	t.Run("arm addresses the first match", func(t *testing.T) {
		if i := s.Arm(60, 5); i != 0 {
			t.Fatalf("Arm returned %d, want 0", i)
		}
		m, _ := s.At(0)
		if !m.Active || m.Start != 5 || m.End != Unset {
			t.Errorf("after Arm got %+v", m)
		}
		if dup, _ := s.At(1); dup.Active {
			t.Error("second mapping with the same note was armed")
		}
	})

	t.Run("disarm closes", func(t *testing.T) {
		if i := s.Disarm(60, 8); i != 0 {
			t.Fatalf("Disarm returned %d, want 0", i)
		}
		m, _ := s.At(0)
		if m.Active || m.Start != 5 || m.End != 8 {
			t.Errorf("after Disarm got %+v", m)
		}
	})

	t.Run("stray note-off is ignored", func(t *testing.T) {
		if i := s.Disarm(60, 20); i != -1 {
			t.Errorf("Disarm returned %d, want -1", i)
		}
		if m, _ := s.At(0); m.End != 8 {
			t.Errorf("End changed to %v", m.End)
		}
	})

	t.Run("rearm overwrites the window", func(t *testing.T) {
		s.Arm(60, 30)
		m, _ := s.At(0)
		if m.Start != 30 || m.End != Unset || !m.Active {
			t.Errorf("after rearm got %+v", m)
		}
	})

	t.Run("disarm before start clamps", func(t *testing.T) {
		s.Disarm(60, 29.5)
		if m, _ := s.At(0); m.End != 30 {
			t.Errorf("End = %v, want 30", m.End)
		}
	})

	t.Run("unknown note", func(t *testing.T) {
		if s.Arm(100, 1) != -1 || s.Disarm(100, 1) != -1 {
			t.Error("unknown note touched the table")
		}
	})
}

func TestStoreCloseOpen(t *testing.T) {
	s := NewStore(
		NewMapping("00:00:00:00", 60, ""),
		NewMapping("00:00:00:00", 61, ""),
		NewMapping("00:00:00:00", 62, ""),
	)
	s.Arm(60, 1)
	s.Arm(61, 2)

	if n := s.CloseOpen(4); n != 2 {
		t.Errorf("closed %d, want 2", n)
	}
	for i, want := range []float64{4, 4, Unset} {
		m, _ := s.At(i)
		if m.End != want || m.Active {
			t.Errorf("mapping %d: got %+v, want end %v", i, m, want)
		}
	}
}

func TestStoreManualEdits(t *testing.T) {
	s := NewStore(NewMapping("00:00:00:00", 60, ""))
	s.Arm(60, 10)

	s.SetStart(0, 3)
	m, _ := s.At(0)
	if m.Start != 3 || m.End != Unset || m.Active {
		t.Errorf("after SetStart got %+v", m)
	}

	s.SetEnd(0, 1)
	if m, _ := s.At(0); m.End != 3 {
		t.Errorf("SetEnd before start: End = %v, want 3", m.End)
	}

	s.SetEnd(0, 9)
	if m, _ := s.At(0); m.End != 9 {
		t.Errorf("End = %v, want 9", m.End)
	}

	if s.SetStart(5, 1) || s.SetEnd(-1, 1) {
		t.Error("out of range edit reported success")
	}
}

func TestStoreRemoveAt(t *testing.T) {
	s := NewStore(NewMapping("a", 1, ""), NewMapping("b", 2, ""))
	if s.RemoveAt(2) || s.RemoveAt(-1) {
		t.Error("out of range remove reported success")
	}
	if !s.RemoveAt(0) || s.Len() != 1 {
		t.Fatalf("Len = %d after remove", s.Len())
	}
	if m, _ := s.At(0); m.Timecode != "b" {
		t.Errorf("remaining mapping = %+v", m)
	}
	if s.FindByNote(1) != -1 || s.FindByNote(2) != 0 {
		t.Error("FindByNote after remove")
	}
}

func TestStoreAllIsACopy(t *testing.T) {
	s := NewStore(NewMapping("00:00:00:00", 60, "x"))
	all := s.All()
	all[0].Label = "changed"
	if m, _ := s.At(0); m.Label != "x" {
		t.Error("All() exposed the backing slice")
	}
}

func TestTracker(t *testing.T) {
	var tr Tracker

	if got := tr.Sample(0, false, 0.5); got != 0.5 {
		t.Errorf("accumulated %v, want 0.5", got)
	}
	if got := tr.Sample(10, true, 0.5); got != 10 {
		t.Errorf("host time %v, want 10", got)
	}
	if got := tr.Sample(0, false, 0.25); got != 10.25 {
		t.Errorf("continues from host time: %v, want 10.25", got)
	}

	if tr.DetectJump(5) {
		t.Error("forward move reported as jump")
	}
	if tr.DetectJump(5) {
		t.Error("equal time reported as jump")
	}
	if !tr.DetectJump(4.9) {
		t.Error("backward move not detected")
	}
	if tr.Last() != 4.9 {
		t.Errorf("Last = %v, want 4.9", tr.Last())
	}

	tr.Reset()
	if tr.Now() != 0 || tr.Last() != 0 {
		t.Error("Reset left state behind")
	}
}

func TestEventLog(t *testing.T) {
	var l EventLog
	for i := 0; i < 6; i++ {
		l.Append("e", float64(i))
	}
	got := l.Snapshot()
	if len(got) != EventLogSize {
		t.Fatalf("len = %d, want %d", len(got), EventLogSize)
	}
	for i, ev := range got {
		if ev.Time != float64(i+1) {
			t.Errorf("event %d time = %v, want %v", i, ev.Time, i+1)
		}
	}
}

func TestEventLogSince(t *testing.T) {
	var l EventLog
	got, seq := l.Since(0)
	if len(got) != 0 || seq != 0 {
		t.Fatalf("empty log: %v, %d", got, seq)
	}

	l.Append("a", 1)
	l.Append("b", 2)
	got, seq = l.Since(0)
	if len(got) != 2 || got[0].Desc != "a" || seq != 2 {
		t.Errorf("got %v, seq %d", got, seq)
	}

	for i := 0; i < 7; i++ {
		l.Append("c", float64(3+i))
	}
	got, seq = l.Since(seq)
	if len(got) != EventLogSize || got[EventLogSize-1].Time != 9 || seq != 9 {
		t.Errorf("after overflow got %v, seq %d", got, seq)
	}
	if got, _ := l.Since(seq); len(got) != 0 {
		t.Errorf("nothing new, got %v", got)
	}
}
