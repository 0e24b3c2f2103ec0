// Package colormap maps escape-time values to RGB colors through a
// linearly interpolated lookup table built from hex color stops.
package colormap

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"
)

// LUTSize is the number of entries in a lookup table.
const LUTSize = 256

// DefaultStops is the palette used for the fractal renders: dark violet
// through teal and yellow into red, with a gray cap for points that
// never escape.
var DefaultStops = []string{
	"#10001F", "#1A0E36", "#001E71", "#007D7D", "#006C7F",
	"#00B129", "#F2FF00", "#FF6600", "#D60000", "#757575FF",
}

// LUT is a 256-entry RGB lookup table.
type LUT [LUTSize]color.NRGBA

// ParseHex parses a #RRGGBB or #RRGGBBAA color string. The alpha
// component, if present, is ignored; table colors are always opaque.
func ParseHex(s string) (color.NRGBA, error) {
	h := strings.TrimPrefix(s, "#")
	if len(h) != 6 && len(h) != 8 {
		return color.NRGBA{}, fmt.Errorf("invalid hex color %q", s)
	}
	v, err := strconv.ParseUint(h[:6], 16, 32)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("invalid hex color %q: %v", s, err)
	}
	return color.NRGBA{
		R: uint8(v >> 16),
		G: uint8(v >> 8),
		B: uint8(v),
		A: 255,
	}, nil
}

// New builds a lookup table by placing the stops at evenly spaced
// positions along [0,1] and linearly interpolating between them.
func New(stops []string) (*LUT, error) {
	if len(stops) < 2 {
		return nil, fmt.Errorf("need at least 2 color stops, got %d", len(stops))
	}

	parsed := make([]color.NRGBA, len(stops))
	for i, s := range stops {
		c, err := ParseHex(s)
		if err != nil {
			return nil, err
		}
		parsed[i] = c
	}

	var lut LUT
	segments := len(parsed) - 1
	for i := 0; i < LUTSize; i++ {
		t := float64(i) / float64(LUTSize-1) * float64(segments)
		seg := int(t)
		if seg >= segments {
			seg = segments - 1
		}
		f := t - float64(seg)
		a, b := parsed[seg], parsed[seg+1]
		lut[i] = color.NRGBA{
			R: lerp(a.R, b.R, f),
			G: lerp(a.G, b.G, f),
			B: lerp(a.B, b.B, f),
			A: 255,
		}
	}
	return &lut, nil
}

// Default returns the table for DefaultStops.
func Default() *LUT {
	lut, err := New(DefaultStops)
	if err != nil {
		panic(err) // DefaultStops is a valid palette
	}
	return lut
}

// Map converts an escape-time value to a color. Values are normalized
// against reference, so reference plays the role of "value that maps to
// the end of the table"; anything at or above it clamps to the last
// entry.
func (l *LUT) Map(value, reference float64) color.NRGBA {
	idx := int(value / reference * float64(LUTSize-1))
	if idx < 0 {
		idx = 0
	}
	if idx > LUTSize-1 {
		idx = LUTSize - 1
	}
	return l[idx]
}

func lerp(a, b uint8, f float64) uint8 {
	return uint8(float64(a) + (float64(b)-float64(a))*f + 0.5)
}
