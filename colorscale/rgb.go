// Package colorscale assigns packed RGB colors to chunk rows, layering
// per-layer scales over a plot-wide scale over a palette fallback.
package colorscale

import (
	"fmt"
	"strconv"
	"strings"
)

// RGB is a color packed as 0xRRGGBB.
type RGB uint32

// Pack builds an RGB from its channels.
func Pack(r, g, b uint8) RGB {
	return RGB(uint32(r)<<16 | uint32(g)<<8 | uint32(b))
}

// R returns the red channel.
func (c RGB) R() uint8 { return uint8(c >> 16) }

// G returns the green channel.
func (c RGB) G() uint8 { return uint8(c >> 8) }

// B returns the blue channel.
func (c RGB) B() uint8 { return uint8(c) }

// String returns the color in #rrggbb notation.
func (c RGB) String() string { return fmt.Sprintf("#%06x", uint32(c)&0xFFFFFF) }

// Lerp interpolates between two colors per channel, rounding to the nearest
// step. t is clamped to [0, 1].
func Lerp(a, b RGB, t float64) RGB {
	if t <= 0 {
		return a
	}
	if t >= 1 {
		return b
	}
	lerp8 := func(x, y uint8) uint8 {
		return uint8(float64(x) + t*(float64(y)-float64(x)) + 0.5)
	}
	return Pack(lerp8(a.R(), b.R()), lerp8(a.G(), b.G()), lerp8(a.B(), b.B()))
}

// ParseHex parses a #rrggbb or rrggbb color.
func ParseHex(s string) (RGB, error) {
	h := strings.TrimPrefix(s, "#")
	if len(h) != 6 {
		return 0, fmt.Errorf("colorscale: invalid hex color %q", s)
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("colorscale: invalid hex color %q", s)
	}
	return RGB(v), nil
}
