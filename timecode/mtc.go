package timecode

// MTC status bytes
const (
	SysExStart         = 0xF0
	SysExEnd           = 0xF7
	QuarterFrameStatus = 0xF1
)

// fullFrameHeader is the universal real-time MTC full message header:
// F0 7F <device 7F = all> 01 <MTC> 01 <full message>
var fullFrameHeader = [5]byte{SysExStart, 0x7F, 0x7F, 0x01, 0x01}

// FullFrame packs tc into the 10-byte SysEx frame
//
//	F0 7F 7F 01 01 HH MM SS FF F7
//
// Each field is cast to a byte as is, so values past 255 wrap silently.
func FullFrame(tc Timecode) [10]byte {
	return [10]byte{
		fullFrameHeader[0], fullFrameHeader[1], fullFrameHeader[2],
		fullFrameHeader[3], fullFrameHeader[4],
		byte(tc.Hours), byte(tc.Minutes), byte(tc.Seconds), byte(tc.Frames),
		SysExEnd,
	}
}

// QuarterFramePiece returns the data byte of quarter-frame piece 0-7:
// the piece number in the high nibble and one nibble of tc in the low one.
//
//	0 frames lo    1 frames hi (1 bit)
//	2 seconds lo   3 seconds hi (2 bits)
//	4 minutes lo   5 minutes hi (2 bits)
//	6 hours lo     7 hours hi (1 bit) | rate code << 1
func QuarterFramePiece(tc Timecode, rate Rate, piece int) byte {
	piece &= 0x07
	var v int
	switch piece {
	case 0:
		v = tc.Frames & 0x0F
	case 1:
		v = (tc.Frames >> 4) & 0x01
	case 2:
		v = tc.Seconds & 0x0F
	case 3:
		v = (tc.Seconds >> 4) & 0x03
	case 4:
		v = tc.Minutes & 0x0F
	case 5:
		v = (tc.Minutes >> 4) & 0x03
	case 6:
		v = tc.Hours & 0x0F
	case 7:
		v = (tc.Hours>>4)&0x01 | int(rate.Code())<<1
	}
	return byte(piece<<4 | v)
}

// QuarterFrame is the two byte F1 message for one piece.
func QuarterFrame(tc Timecode, rate Rate, piece int) [2]byte {
	return [2]byte{QuarterFrameStatus, QuarterFramePiece(tc, rate, piece)}
}

// QuarterFrames returns the full 8-message cycle for tc.
func QuarterFrames(tc Timecode, rate Rate) [8][2]byte {
	var out [8][2]byte
	for i := range out {
		out[i] = QuarterFrame(tc, rate, i)
	}
	return out
}

// Decoder reassembles timecode from an incoming MTC stream. It accepts both
// full frames and quarter-frame messages; a quarter-frame position is
// reported once all eight pieces of a cycle have arrived, ending on piece 7.
type Decoder struct {
	nibbles [8]byte
	seen    uint8
}

// Feed consumes one MIDI message. ok is true when msg completed a position.
func (d *Decoder) Feed(msg []byte) (tc Timecode, rate Rate, ok bool) {
	switch {
	case len(msg) == 10 && [5]byte(msg[:5]) == fullFrameHeader && msg[9] == SysExEnd:
		d.seen = 0
		tc = Timecode{
			Hours:   int(msg[5]),
			Minutes: int(msg[6]),
			Seconds: int(msg[7]),
			Frames:  int(msg[8]),
		}
		return tc, 0, true

	case len(msg) == 2 && msg[0] == QuarterFrameStatus:
		piece := int(msg[1]>>4) & 0x07
		if piece == 0 {
			d.seen = 0
		}
		d.nibbles[piece] = msg[1] & 0x0F
		d.seen |= 1 << piece

		if piece != 7 || d.seen != 0xFF {
			return Timecode{}, 0, false
		}
		d.seen = 0
		n := d.nibbles
		tc = Timecode{
			Frames:  int(n[0]) | int(n[1]&0x01)<<4,
			Seconds: int(n[2]) | int(n[3]&0x03)<<4,
			Minutes: int(n[4]) | int(n[5]&0x03)<<4,
			Hours:   int(n[6]) | int(n[7]&0x01)<<4,
		}
		return tc, RateFromCode(n[7] >> 1), true
	}
	return Timecode{}, 0, false
}

// Reset drops any partially received quarter-frame cycle.
func (d *Decoder) Reset() {
	d.seen = 0
}
