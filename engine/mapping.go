package engine

// Unset marks a start or end time that has not been detected.
const Unset = -1.0

// Mapping binds a trigger note to a base timecode. Start and End are the
// last detected activation window in transport seconds.
type Mapping struct {
	Timecode string
	Note     int
	Label    string
	Start    float64
	End      float64

	// Active is true while the trigger note is held. Never persisted.
	Active bool
}

// NewMapping returns an idle mapping.
func NewMapping(tc string, note int, label string) Mapping {
	return Mapping{
		Timecode: tc,
		Note:     note,
		Label:    label,
		Start:    Unset,
		End:      Unset,
	}
}

// Phase is where a mapping sits in its trigger lifecycle
type Phase int

const (
	PhaseIdle   Phase = iota // never started
	PhaseArmed               // trigger held
	PhaseOpen                // start stamped by hand, no end yet
	PhaseClosed              // start and end known
)

func (p Phase) String() string {
	switch p {
	case PhaseArmed:
		return "armed"
	case PhaseOpen:
		return "open"
	case PhaseClosed:
		return "closed"
	default:
		return "idle"
	}
}

func (m Mapping) Phase() Phase {
	switch {
	case m.Active:
		return PhaseArmed
	case m.Start < 0:
		return PhaseIdle
	case m.End < 0:
		return PhaseOpen
	default:
		return PhaseClosed
	}
}

// Covers reports whether now lies strictly inside the recorded window.
// An unset end leaves the window open.
func (m Mapping) Covers(now float64) bool {
	return m.Start >= 0 && now > m.Start && (m.End < 0 || now < m.End)
}
