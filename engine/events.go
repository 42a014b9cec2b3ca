package engine

import "sync"

// EventLogSize is how many recent trigger events are kept for display.
const EventLogSize = 5

// Event is one received trigger
type Event struct {
	Desc string
	Time float64
}

// EventLog is a fixed size FIFO of recent events, safe for concurrent use.
type EventLog struct {
	mu     sync.Mutex
	events [EventLogSize]Event
	head   int // index of the oldest event
	n      int
	seq    uint64 // events ever appended
}

// Append records an event, evicting the oldest when full.
func (l *EventLog) Append(desc string, t float64) {
	l.mu.Lock()
	if l.n < EventLogSize {
		l.events[(l.head+l.n)%EventLogSize] = Event{Desc: desc, Time: t}
		l.n++
	} else {
		l.events[l.head] = Event{Desc: desc, Time: t}
		l.head = (l.head + 1) % EventLogSize
	}
	l.seq++
	l.mu.Unlock()
}

// Snapshot returns the events oldest first.
func (l *EventLog) Snapshot() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Event, l.n)
	for i := range out {
		out[i] = l.events[(l.head+i)%EventLogSize]
	}
	return out
}


// Since returns the retained events appended after seq, oldest first, and
// the sequence number to pass next time.
func (l *EventLog) Since(seq uint64) ([]Event, uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	newer := l.seq - seq
	if seq > l.seq {
		newer = 0
	}
	if newer > uint64(l.n) {
		newer = uint64(l.n)
	}
	out := make([]Event, newer)
	skip := l.n - int(newer)
	for i := range out {
		out[i] = l.events[(l.head+skip+i)%EventLogSize]
	}
	return out, l.seq
}
