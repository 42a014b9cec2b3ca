package engine

// Tracker keeps the engine's notion of transport time. With a host
// playhead it follows the host; without one it accumulates block durations.
// Not safe for concurrent use; the Engine guards it.
type Tracker struct {
	last     float64 // last time passed to DetectJump
	internal float64 // internal clock
}

// Sample returns the current time for one host cycle. A host time, when
// present, also resets the internal clock so a lost host continues from it.
func (t *Tracker) Sample(hostTime float64, ok bool, elapsed float64) float64 {
	if ok {
		t.internal = hostTime
		return hostTime
	}
	t.internal += elapsed
	return t.internal
}

// DetectJump reports whether now is earlier than the previous call's time.
// Equal times are not a jump. The new time is always remembered.
func (t *Tracker) DetectJump(now float64) bool {
	jumped := now < t.last
	t.last = now
	return jumped
}

// Adopt makes now the internal clock's position.
func (t *Tracker) Adopt(now float64) {
	t.internal = now
}

func (t *Tracker) Now() float64  { return t.internal }
func (t *Tracker) Last() float64 { return t.last }

// Reset zeroes both clocks
func (t *Tracker) Reset() {
	t.last = 0
	t.internal = 0
}
