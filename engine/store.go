package engine

// Store is the ordered table of mappings. Order matters: triggers address
// the first mapping with a note, and resolution breaks ties by position.
// Store is not safe for concurrent use; the Engine guards it.
type Store struct {
	entries []Mapping
}

func NewStore(entries ...Mapping) *Store {
	s := &Store{}
	s.Replace(entries)
	return s
}

func (s *Store) Len() int {
	return len(s.entries)
}

// All returns a copy of the entries in store order.
func (s *Store) All() []Mapping {
	out := make([]Mapping, len(s.entries))
	copy(out, s.entries)
	return out
}

// At returns entry i; ok is false out of bounds.
func (s *Store) At(i int) (Mapping, bool) {
	if i < 0 || i >= len(s.entries) {
		return Mapping{}, false
	}
	return s.entries[i], true
}

func (s *Store) Add(m Mapping) {
	s.entries = append(s.entries, m)
}

// RemoveAt deletes entry i. Out of range indices are ignored.
func (s *Store) RemoveAt(i int) bool {
	if i < 0 || i >= len(s.entries) {
		return false
	}
	s.entries = append(s.entries[:i], s.entries[i+1:]...)
	return true
}

// Update applies fn to entry i in place. Out of range indices are ignored.
func (s *Store) Update(i int, fn func(*Mapping)) bool {
	if i < 0 || i >= len(s.entries) {
		return false
	}
	fn(&s.entries[i])
	return true
}

// Replace swaps the whole table for a copy of entries.
func (s *Store) Replace(entries []Mapping) {
	s.entries = make([]Mapping, len(entries))
	copy(s.entries, entries)
}

// FindByNote returns the index of the first mapping for note, or -1.
func (s *Store) FindByNote(note int) int {
	for i, m := range s.entries {
		if m.Note == note {
			return i
		}
	}
	return -1
}

// Arm starts a window on the first mapping for note at t, overwriting any
// previous window. Returns the index touched or -1.
func (s *Store) Arm(note int, t float64) int {
	i := s.FindByNote(note)
	if i < 0 {
		return -1
	}
	e := &s.entries[i]
	e.Start = t
	e.End = Unset
	e.Active = true
	return i
}

// Disarm closes the window of the first mapping for note at t. Only an
// armed mapping is closed; a stray note-off leaves the table alone.
func (s *Store) Disarm(note int, t float64) int {
	i := s.FindByNote(note)
	if i < 0 || !s.entries[i].Active {
		return -1
	}
	e := &s.entries[i]
	e.End = clampEnd(e.Start, t)
	e.Active = false
	return i
}

// CloseOpen closes every armed mapping at t, the last time seen before a
// transport jump. Returns how many were closed.
func (s *Store) CloseOpen(t float64) int {
	n := 0
	for i := range s.entries {
		e := &s.entries[i]
		if e.Active && e.End < 0 {
			e.End = clampEnd(e.Start, t)
			e.Active = false
			n++
		}
	}
	return n
}

// SetStart stamps a start by hand, dropping any end and live state.
func (s *Store) SetStart(i int, t float64) bool {
	return s.Update(i, func(m *Mapping) {
		m.Start = t
		m.End = Unset
		m.Active = false
	})
}

// SetEnd stamps an end by hand and releases the mapping.
func (s *Store) SetEnd(i int, t float64) bool {
	return s.Update(i, func(m *Mapping) {
		m.End = clampEnd(m.Start, t)
		m.Active = false
	})
}

// clampEnd keeps a window from inverting when an end is stamped before its start.
func clampEnd(start, end float64) float64 {
	if start >= 0 && end < start {
		return start
	}
	return end
}
