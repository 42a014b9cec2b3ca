package theme

import (
	"bufio"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

type RGB [3]uint8

// Palette is an ordered colour ramp
type Palette struct {
	Name   string
	Colors []RGB
}

// DefaultPalette is a dark-to-bright plasma ramp used when no .gpl file is
// configured.
func DefaultPalette() *Palette {
	return &Palette{
		Name: "plasma",
		Colors: []RGB{
			{13, 8, 135},
			{75, 3, 161},
			{125, 3, 168},
			{168, 34, 150},
			{203, 70, 121},
			{229, 107, 93},
			{248, 148, 65},
			{253, 195, 40},
			{240, 249, 33},
		},
	}
}

// Load reads a GIMP palette, or returns the built-in one for an empty path.
func Load(path string) (*Palette, error) {
	if path == "" {
		return DefaultPalette(), nil
	}
	return LoadGPL(path)
}

// LoadGPL reads a GIMP .gpl palette file.
func LoadGPL(path string) (*Palette, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open palette")
	}
	defer f.Close()

	p, err := ParseGPL(f)
	if err != nil {
		return nil, errors.Wrapf(err, "palette %s", path)
	}
	return p, nil
}

// ParseGPL decodes GIMP palette text. Header, comment and malformed lines
// are skipped; a palette without any colour is an error.
func ParseGPL(r io.Reader) (*Palette, error) {
	p := &Palette{}
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		switch {
		case line == "", strings.HasPrefix(line, "#"),
			strings.HasPrefix(line, "GIMP"), strings.HasPrefix(line, "Columns"):
		case strings.HasPrefix(line, "Name:"):
			p.Name = strings.TrimSpace(line[len("Name:"):])
		default:
			if c, ok := parseRGB(strings.Fields(line)); ok {
				p.Colors = append(p.Colors, c)
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrap(err, "read")
	}
	if len(p.Colors) == 0 {
		return nil, errors.New("no colors found")
	}
	return p, nil
}

// parseRGB reads "R G B [name]" with each channel in 0-255.
func parseRGB(fields []string) (RGB, bool) {
	var c RGB
	if len(fields) < 3 {
		return c, false
	}
	for i := range c {
		v, err := strconv.ParseUint(fields[i], 10, 8)
		if err != nil {
			return c, false
		}
		c[i] = uint8(v)
	}
	return c, true
}

// Lookup returns interpolated color for normalized value 0-1
func (p *Palette) Lookup(norm float64) RGB {
	last := len(p.Colors) - 1
	switch {
	case norm <= 0 || last == 0:
		return p.Colors[0]
	case norm >= 1:
		return p.Colors[last]
	}

	pos := norm * float64(last)
	i := int(pos)
	t := pos - float64(i)
	a, b := p.Colors[i], p.Colors[i+1]

	var out RGB
	for ch := range out {
		out[ch] = uint8(float64(a[ch])*(1-t) + float64(b[ch])*t)
	}
	return out
}
