// Package color converts the color representations a Hue light can hold
// (hue/saturation, color temperature, CIE xy) to and from packed RGB.
package color

import (
	"math"

	"github.com/lucasb-eyer/go-colorful"
)

// DefaultMireds is used to render a color temperature of 0 (unset).
const DefaultMireds = 500

// RGB is a 24-bit color with 0-255 channels.
type RGB struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
}

// Pack returns the color as 0xRRGGBB.
func (c RGB) Pack() uint32 {
	return uint32(c.R)<<16 | uint32(c.G)<<8 | uint32(c.B)
}

// Unpack splits a 0xRRGGBB value into channels.
func Unpack(v uint32) RGB {
	return RGB{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v)}
}

// Hex returns the color as "#rrggbb".
func (c RGB) Hex() string {
	return c.Colorful().Hex()
}

// Colorful returns the color as a go-colorful value.
func (c RGB) Colorful() colorful.Color {
	return colorful.Color{R: float64(c.R) / 255, G: float64(c.G) / 255, B: float64(c.B) / 255}
}

// HueSatToRGB renders a Hue hue (0-65535) and saturation (0-255) at full value.
// Brightness is applied separately by the consumer.
func HueSatToRGB(hue uint16, sat uint8) RGB {
	h6 := float64(hue) * 6 / 65535
	s := float64(sat) / 255

	i := math.Floor(h6)
	f := h6 - i

	p := 255 * (1 - s)
	q := 255 * (1 - f*s)
	t := 255 * (1 - (1-f)*s)

	switch int(i) % 6 {
	case 0:
		return channels(255, t, p)
	case 1:
		return channels(q, 255, p)
	case 2:
		return channels(p, 255, t)
	case 3:
		return channels(p, q, 255)
	case 4:
		return channels(t, p, 255)
	default:
		return channels(255, p, q)
	}
}

// ColorTempToRGB approximates the black-body color of a temperature given in mireds.
// A value of 0 renders as DefaultMireds.
func ColorTempToRGB(ct uint16) RGB {
	if ct == 0 {
		ct = DefaultMireds
	}
	temp := 10000 / float64(ct)

	var r, g, b float64
	if temp <= 66 {
		r = 255
		g = 99.470802*math.Log(temp) - 161.119568
		if temp <= 19 {
			b = 0
		} else {
			b = 138.517731*math.Log(temp-10) - 305.044793
		}
	} else {
		r = 329.698727 * math.Pow(temp-60, -0.13320476)
		g = 288.12217 * math.Pow(temp-60, -0.07551485)
		b = 255
	}

	return channels(clampTemp(r), clampTemp(g), clampTemp(b))
}

func clampTemp(v float64) float64 {
	return math.Max(math.Min(v, 255.1), 0.1)
}

// XYToRGB renders CIE 1931 chromaticity at luminance val.
func XYToRGB(x, y float64, val uint8) RGB {
	if y == 0 {
		return RGB{}
	}

	Y := float64(val)
	X := (Y / y) * x
	Z := (Y / y) * (1 - x - y)

	r := X*1.656492 - Y*0.354851 - Z*0.255038
	g := -X*0.707196 + Y*1.655397 + Z*0.036152
	b := X*0.051713 - Y*0.121364 + Z*1.011530

	r = math.Max(0, gammaEncode(r))
	g = math.Max(0, gammaEncode(g))
	b = math.Max(0, gammaEncode(b))

	if m := math.Max(r, math.Max(g, b)); m > 1 {
		r, g, b = r/m, g/m, b/m
	}

	return channels(r*255, g*255, b*255)
}

// RGBToXY returns the chromaticity of an sRGB color. Black has no
// chromaticity and returns (0, 0).
func RGBToXY(c RGB) (x, y float64) {
	r := gammaDecode(float64(c.R) / 255)
	g := gammaDecode(float64(c.G) / 255)
	b := gammaDecode(float64(c.B) / 255)

	X := r*0.664511 + g*0.154324 + b*0.162028
	Y := r*0.283881 + g*0.668433 + b*0.047685
	Z := r*0.000088 + g*0.072310 + b*0.986039

	sum := X + Y + Z
	if sum == 0 {
		return 0, 0
	}
	return X / sum, Y / sum
}

// MiredsToKelvin converts a color temperature; 0 mireds is treated as DefaultMireds.
func MiredsToKelvin(ct uint16) int {
	if ct == 0 {
		ct = DefaultMireds
	}
	return 1000000 / int(ct)
}

// KelvinToMireds converts a Kelvin temperature to mireds, saturating at the uint16 range.
func KelvinToMireds(kelvin int) uint16 {
	if kelvin <= 0 {
		return 0
	}
	m := 1000000 / kelvin
	if m > math.MaxUint16 {
		return math.MaxUint16
	}
	return uint16(m)
}

func gammaEncode(v float64) float64 {
	if v <= 0.0031308 {
		return 12.92 * v
	}
	return 1.055*math.Pow(v, 1/2.4) - 0.055
}

func gammaDecode(v float64) float64 {
	if v > 0.04045 {
		return math.Pow((v+0.055)/1.055, 2.4)
	}
	return v / 12.92
}

// channels truncates float channels to 0-255.
func channels(r, g, b float64) RGB {
	return RGB{R: toByte(r), G: toByte(g), B: toByte(b)}
}

func toByte(v float64) uint8 {
	switch {
	case v <= 0:
		return 0
	case v >= 255:
		return 255
	default:
		return uint8(v)
	}
}
