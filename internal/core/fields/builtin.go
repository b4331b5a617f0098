package fields

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/zeusync/enginekit/internal/core/document"
)

// Color is an RGBA color with 8 bits per channel.
type Color struct {
	R, G, B, A uint8
}

func (c Color) String() string {
	return fmt.Sprintf("#%02x%02x%02x%02x", c.R, c.G, c.B, c.A)
}

// ParseColor accepts "#RRGGBB", "#RRGGBBAA" and "0xAARRGGBB".
func ParseColor(s string) (Color, bool) {
	s = strings.TrimSpace(s)
	switch {
	case strings.HasPrefix(s, "#"):
		hex := s[1:]
		if len(hex) != 6 && len(hex) != 8 {
			return Color{}, false
		}
		v, err := strconv.ParseUint(hex, 16, 32)
		if err != nil {
			return Color{}, false
		}
		if len(hex) == 6 {
			return Color{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}, true
		}
		return Color{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: uint8(v)}, true
	case strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X"):
		hex := s[2:]
		if len(hex) != 8 {
			return Color{}, false
		}
		v, err := strconv.ParseUint(hex, 16, 32)
		if err != nil {
			return Color{}, false
		}
		return Color{A: uint8(v >> 24), R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v)}, true
	}
	return Color{}, false
}

// Vector3 is a plain triple. It carries no math.
type Vector3 struct {
	X, Y, Z float64
}

func (v Vector3) String() string {
	return strings.Join([]string{
		strconv.FormatFloat(v.X, 'g', -1, 64),
		strconv.FormatFloat(v.Y, 'g', -1, 64),
		strconv.FormatFloat(v.Z, 'g', -1, 64),
	}, ",")
}

// ParseVector3 accepts "x,y,z" with optional spaces.
func ParseVector3(s string) (Vector3, bool) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return Vector3{}, false
	}
	var out [3]float64
	for i, part := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return Vector3{}, false
		}
		out[i] = f
	}
	return Vector3{X: out[0], Y: out[1], Z: out[2]}, true
}

// Degree is an angle in degrees.
type Degree float64

// Radians converts d to radians.
func (d Degree) Radians() float64 {
	return float64(d) * math.Pi / 180
}

// ParseDegree accepts "90" and "90deg".
func ParseDegree(s string) (Degree, bool) {
	s = strings.TrimSuffix(strings.TrimSpace(s), "deg")
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return Degree(f), true
}

func init() {
	RegisterCaster[string, Color](CasterFuncs[string, Color]{
		ToFunc:   ParseColor,
		FromFunc: Color.String,
	})

	RegisterCaster[string, Vector3](CasterFuncs[string, Vector3]{
		ToFunc:   ParseVector3,
		FromFunc: Vector3.String,
	})
	RegisterCaster[*document.Node, Vector3](CasterFuncs[*document.Node, Vector3]{
		ToFunc: func(n *document.Node) (Vector3, bool) {
			if !n.IsArray() || n.Len() != 3 {
				return Vector3{}, false
			}
			var out [3]float64
			for i := range out {
				f, ok := n.Index(i).AsFloat()
				if !ok {
					return Vector3{}, false
				}
				out[i] = f
			}
			return Vector3{X: out[0], Y: out[1], Z: out[2]}, true
		},
		FromFunc: func(v Vector3) *document.Node {
			return document.NewArray(document.NewFloat(v.X), document.NewFloat(v.Y), document.NewFloat(v.Z))
		},
	})

	RegisterCaster[float64, Degree](CasterFuncs[float64, Degree]{
		ToFunc:   func(f float64) (Degree, bool) { return Degree(f), true },
		FromFunc: func(d Degree) float64 { return float64(d) },
	})
	RegisterCaster[string, Degree](CasterFuncs[string, Degree]{
		ToFunc:   ParseDegree,
		FromFunc: func(d Degree) string { return strconv.FormatFloat(float64(d), 'g', -1, 64) },
	})

	RegisterCaster[string, time.Duration](CasterFuncs[string, time.Duration]{
		ToFunc: func(s string) (time.Duration, bool) {
			d, err := time.ParseDuration(strings.TrimSpace(s))
			return d, err == nil
		},
		FromFunc: time.Duration.String,
	})
}
