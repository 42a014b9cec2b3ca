// Package timecode converts between HH:MM:SS:FF positions, seconds and the
// MIDI Timecode wire formats (full-frame SysEx and quarter-frame messages).
package timecode

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Timecode is an HH:MM:SS:FF position. Fields are plain ints so hour counts
// past one byte survive until they are packed for the wire.
type Timecode struct {
	Hours   int
	Minutes int
	Seconds int
	Frames  int
}

func (t Timecode) String() string {
	return fmt.Sprintf("%02d:%02d:%02d:%02d", t.Hours, t.Minutes, t.Seconds, t.Frames)
}

// Seconds parses "HH:MM:SS:FF" into seconds at the given frame rate.
// A string that does not split into exactly four fields yields 0.
func Seconds(tc string, fps float64) float64 {
	parts := strings.Split(tc, ":")
	if len(parts) != 4 {
		return 0
	}

	h := leadingInt(parts[0])
	m := leadingInt(parts[1])
	s := leadingInt(parts[2])
	f := leadingInt(parts[3])

	secs := float64(h*3600 + m*60 + s)
	if fps > 0 {
		secs += float64(f) / fps
	}
	return secs
}

// Valid reports whether tc is four colon separated unsigned integers.
func Valid(tc string) bool {
	parts := strings.Split(tc, ":")
	if len(parts) != 4 {
		return false
	}
	for _, p := range parts {
		if _, err := strconv.ParseUint(p, 10, 32); err != nil {
			return false
		}
	}
	return true
}

// leadingInt parses an optional sign and the leading digits of s, ignoring
// surrounding whitespace and anything after the digits. "12ab" is 12, "x" is 0.
func leadingInt(s string) int {
	s = strings.TrimSpace(s)
	neg := false
	if s != "" && (s[0] == '-' || s[0] == '+') {
		neg = s[0] == '-'
		s = s[1:]
	}
	n := 0
	for i := 0; i < len(s) && s[i] >= '0' && s[i] <= '9'; i++ {
		n = n*10 + int(s[i]-'0')
		if n > math.MaxInt32 {
			break
		}
	}
	if neg {
		return -n
	}
	return n
}

// maxSeconds keeps the whole-second count inside an int on every platform.
const maxSeconds = math.MaxInt32

// FromSeconds splits an absolute position into HH:MM:SS:FF. Frames are the
// floor of the fractional second times fps. Hours are not wrapped at 24.
// Negative or NaN positions clamp to zero, huge or infinite ones to
// maxSeconds.
func FromSeconds(secs, fps float64) Timecode {
	switch {
	case secs < 0 || math.IsNaN(secs):
		secs = 0
	case secs > maxSeconds:
		secs = maxSeconds
	}
	whole := math.Floor(secs)
	total := int(whole)

	frames := 0
	if fps > 0 {
		frames = int(math.Floor((secs - whole) * fps))
	}

	return Timecode{
		Hours:   total / 3600,
		Minutes: (total % 3600) / 60,
		Seconds: total % 60,
		Frames:  frames,
	}
}

// Compute returns the timecode a mapping produces at transport time now:
// its base timecode plus the time elapsed since it was armed at start.
func Compute(base string, start, now, fps float64) Timecode {
	out := Seconds(base, fps) + (now - start)
	return FromSeconds(out, fps)
}
