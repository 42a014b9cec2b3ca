package timecode

import (
	"strconv"

	"github.com/pkg/errors"
)

// Rate is a timecode frame rate in frames per second.
type Rate float64

const (
	Rate24   Rate = 24
	Rate25   Rate = 25
	Rate2997 Rate = 29.97
	Rate30   Rate = 30
)

// Rates lists the standard MTC rates in picker order
var Rates = []Rate{Rate24, Rate25, Rate2997, Rate30}

// Code returns the 2-bit MTC rate code carried in the last quarter-frame
// piece. Non-standard rates report as 30 fps.
func (r Rate) Code() uint8 {
	switch r {
	case Rate24:
		return 0
	case Rate25:
		return 1
	case Rate2997:
		return 2
	default:
		return 3
	}
}

// RateFromCode is the inverse of Code
func RateFromCode(code uint8) Rate {
	switch code & 0x03 {
	case 0:
		return Rate24
	case 1:
		return Rate25
	case 2:
		return Rate2997
	default:
		return Rate30
	}
}

func (r Rate) String() string {
	return strconv.FormatFloat(float64(r), 'f', -1, 64)
}

// Next returns the following standard rate, wrapping around. A non-standard
// rate steps to the first entry.
func (r Rate) Next() Rate {
	for i, s := range Rates {
		if s == r {
			return Rates[(i+1)%len(Rates)]
		}
	}
	return Rates[0]
}

// ParseRate accepts any positive number ("25", "29.97", "23.976").
func ParseRate(s string) (Rate, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "parse frame rate %q", s)
	}
	if f <= 0 {
		return 0, errors.Errorf("frame rate must be positive, got %v", f)
	}
	return Rate(f), nil
}
