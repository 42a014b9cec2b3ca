// Package engine turns note triggers and host transport time into MIDI
// Timecode. The Engine owns the mapping table and all timing state; it is
// driven by a host cycle (ProcessBlock), a UI refresh (Refresh) and, in
// quarter-frame mode, its own quarter-frame ticker.
package engine

import (
	"context"
	"sync"
	"time"

	"go-mtcgen/debug"
	"go-mtcgen/midi"
	"go-mtcgen/timecode"
	"go-mtcgen/transport"
)

// Format selects the MTC message type sent to sinks
type Format int

const (
	FullFrame Format = iota
	QuarterFrame
)

// ParseFormat maps a persisted id to a Format. Unknown ids mean FullFrame.
func ParseFormat(id int) Format {
	if id == int(QuarterFrame) {
		return QuarterFrame
	}
	return FullFrame
}

func (f Format) String() string {
	if f == QuarterFrame {
		return "Quarter Frame"
	}
	return "Full Frame"
}

// Next toggles between the two formats
func (f Format) Next() Format {
	if f == QuarterFrame {
		return FullFrame
	}
	return QuarterFrame
}

// Block is one host cycle: its length in samples and the notes that arrived
// during it, each with a sample offset from the start of the block.
type Block struct {
	Samples int
	Notes   []midi.NoteEvent
}

const (
	DefaultSampleRate = 48000
	DefaultRefreshHz  = 10
	pendingSize       = 256
)

// Engine orchestrates timecode generation. All methods are safe for
// concurrent use.
type Engine struct {
	mu         sync.RWMutex
	store      *Store
	tracker    Tracker
	activeIdx  int
	display    string
	rate       timecode.Rate
	format     Format
	phase      int               // next quarter-frame piece
	latch      timecode.Timecode // position carried by the current 8-piece cycle
	sampleRate float64
	refreshHz  int
	playhead   transport.PlayHead
	sinks      []midi.Sink

	events  EventLog
	pending chan midi.NoteEvent
	retime  chan struct{}

	// LED feedback
	ledMu       sync.Mutex
	ledDirty    bool
	controllers map[string]midi.LEDController
	prevLEDs    map[string]map[[2]int]LEDState

	// Notify TUI of updates
	UpdateChan chan struct{}
}

// Option configures an Engine
type Option func(*Engine)

func WithSampleRate(sr float64) Option {
	return func(e *Engine) {
		if sr > 0 {
			e.sampleRate = sr
		}
	}
}

func WithFrameRate(r timecode.Rate) Option {
	return func(e *Engine) {
		if r > 0 {
			e.rate = r
		}
	}
}

func WithFormat(f Format) Option {
	return func(e *Engine) { e.format = f }
}

func WithPlayHead(p transport.PlayHead) Option {
	return func(e *Engine) { e.playhead = p }
}

func WithSinks(sinks ...midi.Sink) Option {
	return func(e *Engine) { e.sinks = append([]midi.Sink(nil), sinks...) }
}

// WithMappings replaces the default mapping table
func WithMappings(ms ...Mapping) Option {
	return func(e *Engine) { e.store.Replace(ms) }
}

// WithRefreshRate sets how often Run refreshes the display
func WithRefreshRate(hz int) Option {
	return func(e *Engine) {
		if hz > 0 {
			e.refreshHz = hz
		}
	}
}

// New creates an engine with one default mapping, 30 fps full-frame output
// and no sinks.
func New(opts ...Option) *Engine {
	e := &Engine{
		store:       NewStore(NewMapping("00:10:00:00", 60, "Default Mapping")),
		activeIdx:   -1,
		rate:        timecode.Rate30,
		format:      FullFrame,
		sampleRate:  DefaultSampleRate,
		refreshHz:   DefaultRefreshHz,
		pending:     make(chan midi.NoteEvent, pendingSize),
		retime:      make(chan struct{}, 1),
		controllers: make(map[string]midi.LEDController),
		prevLEDs:    make(map[string]map[[2]int]LEDState),
		UpdateChan:  make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Prepare is called before a host starts cycling: it sets the sample rate
// and rewinds the transport clocks.
func (e *Engine) Prepare(sampleRate float64) {
	e.mu.Lock()
	if sampleRate > 0 {
		e.sampleRate = sampleRate
	}
	e.tracker.Reset()
	e.phase = 0
	e.mu.Unlock()
}

// SetPlayHead swaps the host playhead; nil means internal clock only.
func (e *Engine) SetPlayHead(p transport.PlayHead) {
	e.mu.Lock()
	e.playhead = p
	e.mu.Unlock()
}

// SetSinks replaces the output set.
func (e *Engine) SetSinks(sinks []midi.Sink) {
	cp := append([]midi.Sink(nil), sinks...)
	e.mu.Lock()
	e.sinks = cp
	e.mu.Unlock()
}

// hostTime asks the playhead for the position without holding the lock.
func (e *Engine) hostTime() (float64, bool) {
	e.mu.RLock()
	p := e.playhead
	e.mu.RUnlock()
	if p == nil {
		return 0, false
	}
	return p.Position()
}

// HandleNote queues a trigger for the next host cycle. It never blocks;
// false means the queue was full and the note was dropped.
func (e *Engine) HandleNote(ev midi.NoteEvent) bool {
	select {
	case e.pending <- ev:
		return true
	default:
		debug.Warn("engine", "pending queue full, dropped %s", ev.Describe())
		return false
	}
}

// ListenNotes feeds trigger notes from a device channel into the pending
// queue until ctx is done or notes is closed.
func (e *Engine) ListenNotes(ctx context.Context, notes <-chan midi.NoteEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-notes:
			if !ok {
				return
			}
			e.HandleNote(ev)
		}
	}
}

// applied is a trigger stamped with the transport time it took effect.
type applied struct {
	ev midi.NoteEvent
	t  float64
}

// ProcessBlock runs one host cycle: advance time, apply triggers, and in
// full-frame mode send the driving mapping's position to every sink.
func (e *Engine) ProcessBlock(b Block) {
	host, ok := e.hostTime()

	// only the newest EventLogSize triggers can survive in the log
	var recent [EventLogSize]applied
	n := 0

	e.mu.Lock()
	sr := e.sampleRate
	now := e.tracker.Sample(host, ok, float64(b.Samples)/sr)

drain:
	for {
		select {
		case ev := <-e.pending:
			recent[n%EventLogSize] = applied{ev, e.applyNoteLocked(ev, now, sr)}
			n++
		default:
			break drain
		}
	}
	for _, ev := range b.Notes {
		recent[n%EventLogSize] = applied{ev, e.applyNoteLocked(ev, now, sr)}
		n++
	}

	idx := Resolve(now, e.store.entries)
	e.activeIdx = idx
	var m Mapping
	if idx >= 0 {
		m = e.store.entries[idx]
	}
	send := idx >= 0 && e.format == FullFrame
	rate := e.rate
	sinks := e.sinks
	e.mu.Unlock()

	for i := max(0, n-EventLogSize); i < n; i++ {
		a := recent[i%EventLogSize]
		e.events.Append(a.ev.Describe(), a.t)
	}
	if n > 0 {
		e.markLEDsDirty()
	}

	if send {
		tc := timecode.Compute(m.Timecode, m.Start, now, float64(rate))
		msg := timecode.FullFrame(tc)
		broadcast(sinks, msg[:])
	}
}

// applyNoteLocked arms or disarms the first mapping for ev and returns the
// transport time it was stamped with.
func (e *Engine) applyNoteLocked(ev midi.NoteEvent, now, sr float64) float64 {
	t := now + float64(ev.Offset)/sr
	if ev.On {
		e.store.Arm(int(ev.Note), t)
	} else {
		e.store.Disarm(int(ev.Note), t)
	}
	return t
}

// Refresh is the UI-rate update: follow the host playhead, close armed
// mappings when the transport jumps backwards, and recompute the display.
func (e *Engine) Refresh() {
	host, ok := e.hostTime()

	e.mu.Lock()
	now := host
	if !ok {
		now = e.tracker.Now()
	}
	prev := e.tracker.Last()
	closed := 0
	jumped := e.tracker.DetectJump(now)
	if jumped {
		closed = e.store.CloseOpen(prev)
		e.activeIdx = -1
		e.display = ""
	}
	e.tracker.Adopt(now)

	idx := Resolve(now, e.store.entries)
	e.activeIdx = idx
	var m Mapping
	if idx >= 0 {
		m = e.store.entries[idx]
	}
	rate := e.rate
	e.mu.Unlock()

	if jumped {
		debug.Log("engine", "transport jump %.3f -> %.3f, closed %d", prev, now, closed)
	}

	text := ""
	if idx >= 0 {
		text = timecode.Compute(m.Timecode, m.Start, now, float64(rate)).String()
	}

	e.mu.Lock()
	e.display = text
	e.mu.Unlock()

	e.markLEDsDirty()
	select {
	case e.UpdateChan <- struct{}{}:
	default:
	}
}

// QuarterFrameTick sends the next quarter-frame piece. A new position is
// latched at piece 0 so all eight pieces describe the same frame. With
// nothing to drive, nothing is sent and the cycle restarts.
func (e *Engine) QuarterFrameTick() {
	e.mu.Lock()
	if e.format != QuarterFrame {
		e.mu.Unlock()
		return
	}
	now := e.tracker.Now()
	idx := Resolve(now, e.store.entries)
	if idx < 0 {
		e.phase = 0
		e.mu.Unlock()
		return
	}
	m := e.store.entries[idx]
	phase := e.phase
	e.phase = (phase + 1) % 8
	rate := e.rate
	latch := e.latch
	sinks := e.sinks
	e.mu.Unlock()

	if phase == 0 {
		latch = timecode.Compute(m.Timecode, m.Start, now, float64(rate))
		e.mu.Lock()
		e.latch = latch
		e.mu.Unlock()
	}

	msg := timecode.QuarterFrame(latch, rate, phase)
	broadcast(sinks, msg[:])
}

func broadcast(sinks []midi.Sink, msg []byte) {
	for _, s := range sinks {
		if err := s.Send(msg); err != nil {
			debug.LogEvery(100, "output", "send failed: %v", err)
		}
	}
}

// Run drives the refresh, quarter-frame and LED loops until ctx is done.
func (e *Engine) Run(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(3)
	go func() { defer wg.Done(); e.refreshLoop(ctx) }()
	go func() { defer wg.Done(); e.quarterFrameLoop(ctx) }()
	go func() { defer wg.Done(); e.ledLoop(ctx) }()
	wg.Wait()
}

func (e *Engine) refreshLoop(ctx context.Context) {
	e.mu.RLock()
	hz := e.refreshHz
	e.mu.RUnlock()

	ticker := time.NewTicker(time.Second / time.Duration(hz))
	defer ticker.Stop()
	var seen uint64
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.Refresh()
			seen = e.logEvents(seen)
		}
	}
}

// logEvents writes triggers appended since seq to the debug log and returns
// the new position. Events evicted from the ring between two refreshes
// never reach the file.
func (e *Engine) logEvents(seq uint64) uint64 {
	events, next := e.events.Since(seq)
	for _, ev := range events {
		debug.Log("event", "%s @ %.3f", ev.Desc, ev.Time)
	}
	return next
}

func (e *Engine) quarterFrameLoop(ctx context.Context) {
	ticker := time.NewTicker(e.quarterInterval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-e.retime:
			ticker.Reset(e.quarterInterval())
		case <-ticker.C:
			e.QuarterFrameTick()
		}
	}
}

// quarterInterval is one eighth of a frame
func (e *Engine) quarterInterval() time.Duration {
	e.mu.RLock()
	fps := float64(e.rate)
	e.mu.RUnlock()
	return QuarterInterval(fps)
}

// QuarterInterval is the time between quarter-frame messages at fps.
func QuarterInterval(fps float64) time.Duration {
	if fps <= 0 {
		fps = float64(timecode.Rate30)
	}
	return time.Duration(float64(time.Second) / (fps * 8))
}

// SetFrameRate changes the output rate and restarts the quarter-frame cycle.
// Non-positive rates are ignored.
func (e *Engine) SetFrameRate(r timecode.Rate) {
	if r <= 0 {
		return
	}
	e.mu.Lock()
	e.rate = r
	e.phase = 0
	e.mu.Unlock()
	debug.Log("engine", "frame rate %s", r)
	e.kickRetime()
}

// SetFormat switches between full-frame and quarter-frame output.
func (e *Engine) SetFormat(f Format) {
	e.mu.Lock()
	e.format = f
	e.phase = 0
	e.mu.Unlock()
	debug.Log("engine", "format %s", f)
	e.kickRetime()
}

func (e *Engine) kickRetime() {
	select {
	case e.retime <- struct{}{}:
	default:
	}
}

// CurrentTimecode is the display string from the last Refresh, empty when
// no mapping drives output.
func (e *Engine) CurrentTimecode() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.display
}

// ActiveIndex is the driving mapping from the last resolve, or -1.
func (e *Engine) ActiveIndex() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.activeIdx
}

func (e *Engine) FrameRate() timecode.Rate {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.rate
}

func (e *Engine) Format() Format {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.format
}

// Now is the engine's transport time as of the last cycle or refresh.
func (e *Engine) Now() float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.tracker.Now()
}

// PlayheadTime is the host position if available, else the internal clock.
func (e *Engine) PlayheadTime() float64 {
	if t, ok := e.hostTime(); ok {
		return t
	}
	return e.Now()
}

// DebugEvents returns the recent trigger events, oldest first.
func (e *Engine) DebugEvents() []Event {
	return e.events.Snapshot()
}

// Mappings returns a copy of the mapping table
func (e *Engine) Mappings() []Mapping {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.store.All()
}

// AddMapping appends a blank mapping on the note after the last one and
// returns its index.
func (e *Engine) AddMapping() int {
	e.mu.Lock()
	note := 60
	if n := e.store.Len(); n > 0 {
		last, _ := e.store.At(n - 1)
		note = last.Note + 1
		if note > 127 {
			note = 127
		}
	}
	e.store.Add(NewMapping("00:00:00:00", note, "New Mapping"))
	idx := e.store.Len() - 1
	e.mu.Unlock()
	e.markLEDsDirty()
	return idx
}

// AppendMapping adds m as given and returns its index.
func (e *Engine) AppendMapping(m Mapping) int {
	m.Active = false
	e.mu.Lock()
	e.store.Add(m)
	idx := e.store.Len() - 1
	e.mu.Unlock()
	e.markLEDsDirty()
	return idx
}

// RemoveMapping deletes mapping i. Out of range indices are ignored.
func (e *Engine) RemoveMapping(i int) {
	e.mu.Lock()
	if e.store.RemoveAt(i) {
		switch {
		case e.activeIdx == i:
			e.activeIdx = -1
		case e.activeIdx > i:
			e.activeIdx--
		}
	}
	e.mu.Unlock()
	e.markLEDsDirty()
}

// UpdateMapping edits mapping i in place. The live flag and window are
// owned by triggers and survive the edit.
func (e *Engine) UpdateMapping(i int, fn func(*Mapping)) {
	e.mu.Lock()
	e.store.Update(i, func(m *Mapping) {
		active, start, end := m.Active, m.Start, m.End
		fn(m)
		m.Active, m.Start, m.End = active, start, end
	})
	e.mu.Unlock()
	e.markLEDsDirty()
}

// SetStart stamps mapping i's start at the current playhead time.
func (e *Engine) SetStart(i int) {
	t := e.PlayheadTime()
	e.mu.Lock()
	e.store.SetStart(i, t)
	e.mu.Unlock()
	e.markLEDsDirty()
}

// SetEnd stamps mapping i's end at the current playhead time.
func (e *Engine) SetEnd(i int) {
	t := e.PlayheadTime()
	e.mu.Lock()
	e.store.SetEnd(i, t)
	e.mu.Unlock()
	e.markLEDsDirty()
}
