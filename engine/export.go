package engine

import (
	"math"
	"sort"

	"github.com/pkg/errors"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

// Export timing: 120 BPM at 960 PPQ is 1920 ticks per second.
const (
	exportPPQ   = 960
	exportBPM   = 120
	ticksPerSec = exportPPQ * exportBPM / 60
)

type exportEvent struct {
	tick  uint32
	order int // markers before note-offs before note-ons on the same tick
	msg   []byte
}

// BuildSMF lays out every mapping with a detected start as a marker named by
// its label and a note spanning its window. A window without an end runs to
// the last event in the file.
func BuildSMF(mappings []Mapping) (*smf.SMF, error) {
	var fileEnd uint32
	for _, m := range mappings {
		for _, t := range []float64{m.Start, m.End} {
			if tick := secondsToTicks(t); t >= 0 && tick > fileEnd {
				fileEnd = tick
			}
		}
	}

	var events []exportEvent
	for _, m := range mappings {
		if m.Start < 0 || m.Note < 0 || m.Note > 127 {
			continue
		}
		start := secondsToTicks(m.Start)
		end := secondsToTicks(m.End)
		if m.End < m.Start {
			end = fileEnd
		}
		if end <= start {
			end = start + 1
		}

		marker := m.Timecode
		if m.Label != "" {
			marker = m.Label + " " + m.Timecode
		}
		note := uint8(m.Note)
		events = append(events,
			exportEvent{tick: start, order: 0, msg: smf.MetaMarker(marker)},
			exportEvent{tick: start, order: 2, msg: gomidi.NoteOn(0, note, 100)},
			exportEvent{tick: end, order: 1, msg: gomidi.NoteOff(0, note)},
		)
	}

	sort.SliceStable(events, func(i, j int) bool {
		if events[i].tick != events[j].tick {
			return events[i].tick < events[j].tick
		}
		return events[i].order < events[j].order
	})

	sm := smf.New()
	sm.TimeFormat = smf.MetricTicks(exportPPQ)

	var track smf.Track
	track.Add(0, smf.MetaTrackSequenceName("go-mtcgen"))
	track.Add(0, smf.MetaTempo(exportBPM))

	var last uint32
	for _, ev := range events {
		track.Add(ev.tick-last, ev.msg)
		last = ev.tick
	}
	track.Close(0)

	if err := sm.Add(track); err != nil {
		return nil, errors.Wrap(err, "add track")
	}
	return sm, nil
}

func secondsToTicks(s float64) uint32 {
	if s <= 0 {
		return 0
	}
	return uint32(math.Round(s * ticksPerSec))
}

// ExportSMF writes the detected windows to a Standard MIDI File at path.
func (e *Engine) ExportSMF(path string) error {
	sm, err := BuildSMF(e.Mappings())
	if err != nil {
		return err
	}
	return errors.Wrapf(sm.WriteFile(path), "write %s", path)
}
