package engine

import (
	"encoding/json"

	"github.com/pkg/errors"

	"go-mtcgen/timecode"
)

// State is the persisted form of an engine: settings plus the mapping
// table. Live trigger state is never saved.
type State struct {
	FrameRate float64         `json:"frameRate"`
	MTCFormat int             `json:"mtcFormat"`
	Mappings  []MappingRecord `json:"mappings"`
}

// StateStore can hand out and take back its persisted state.
type StateStore interface {
	Snapshot() State
	Restore(State)
}

var _ StateStore = (*Engine)(nil)

// MappingRecord is one persisted mapping
type MappingRecord struct {
	Timecode          string  `json:"timecode"`
	MidiNote          int     `json:"midiNote"`
	Label             string  `json:"label"`
	DetectedStartTime float64 `json:"detectedStartTime"`
	DetectedEndTime   float64 `json:"detectedEndTime"`
}

// UnmarshalJSON fills fields missing from older files with defaults.
func (r *MappingRecord) UnmarshalJSON(data []byte) error {
	type plain MappingRecord
	p := plain{
		Timecode:          "00:10:00:00",
		MidiNote:          60,
		DetectedStartTime: Unset,
		DetectedEndTime:   Unset,
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*r = MappingRecord(p)
	return nil
}

func recordOf(m Mapping) MappingRecord {
	return MappingRecord{
		Timecode:          m.Timecode,
		MidiNote:          m.Note,
		Label:             m.Label,
		DetectedStartTime: m.Start,
		DetectedEndTime:   m.End,
	}
}

// Mapping converts a record back, repairing a window that ends before it starts.
func (r MappingRecord) Mapping() Mapping {
	m := Mapping{
		Timecode: r.Timecode,
		Note:     r.MidiNote,
		Label:    r.Label,
		Start:    r.DetectedStartTime,
		End:      r.DetectedEndTime,
	}
	if m.Start < 0 {
		m.Start = Unset
	}
	if m.End < 0 {
		m.End = Unset
	}
	m.End = clampEnd(m.Start, m.End)
	return m
}

// Snapshot captures the persistable state.
func (e *Engine) Snapshot() State {
	e.mu.RLock()
	defer e.mu.RUnlock()

	s := State{
		FrameRate: float64(e.rate),
		MTCFormat: int(e.format),
		Mappings:  make([]MappingRecord, 0, e.store.Len()),
	}
	for _, m := range e.store.entries {
		s.Mappings = append(s.Mappings, recordOf(m))
	}
	return s
}

// Restore loads s. Mappings come back released, never armed; a zero frame
// rate keeps the current one and a nil mapping list keeps the table.
func (e *Engine) Restore(s State) {
	var ms []Mapping
	if s.Mappings != nil {
		ms = make([]Mapping, len(s.Mappings))
		for i, r := range s.Mappings {
			ms[i] = r.Mapping()
		}
	}

	e.mu.Lock()
	if s.FrameRate > 0 {
		e.rate = timecode.Rate(s.FrameRate)
	}
	e.format = ParseFormat(s.MTCFormat)
	if ms != nil {
		e.store.Replace(ms)
	}
	e.activeIdx = -1
	e.display = ""
	e.phase = 0
	e.mu.Unlock()

	e.markLEDsDirty()
	e.kickRetime()
}

// MarshalState encodes s as indented JSON.
func MarshalState(s State) ([]byte, error) {
	data, err := json.MarshalIndent(s, "", "  ")
	return data, errors.Wrap(err, "encode state")
}

// UnmarshalState decodes a blob written by MarshalState.
func UnmarshalState(data []byte) (State, error) {
	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return State{}, errors.Wrap(err, "decode state")
	}
	return s, nil
}
