package dispatch

import (
	"encoding/json"
	"math"

	"github.com/dokzlo13/huebridge/internal/color"
)

// Command is a parsed Hue "state" body. Nil fields were absent or malformed.
type Command struct {
	On  *bool
	Bri *int
	Hue *int
	Sat *int
	XY  *[2]float64
	CT  *int

	// Not Hue wire keys; accepted from scripts and MQTT. "kelvin" is folded
	// into CT, "rgb" is either [r,g,b] or a packed 0xRRGGBB number.
	Percent *int
	RGB     *color.RGB
}

// Empty reports whether no recognised key is present.
func (c Command) Empty() bool {
	return c.On == nil && c.Bri == nil && c.Hue == nil && c.Sat == nil &&
		c.XY == nil && c.CT == nil && c.RGB == nil && c.Percent == nil
}

// ParseCommand decodes a state body. Keys that are missing, of the wrong
// type or out of their domain are left nil; a body that is not a JSON object
// yields an empty Command.
func ParseCommand(body []byte) Command {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return Command{}
	}

	var cmd Command

	if v, ok := raw["on"]; ok {
		var on bool
		if json.Unmarshal(v, &on) == nil {
			cmd.On = &on
		}
	}

	if n, ok := number(raw, "bri"); ok && n >= 0 {
		bri := clampInt(n, 0, 255)
		cmd.Bri = &bri
	}

	if n, ok := number(raw, "hue"); ok {
		hue := clampInt(n, 0, math.MaxUint16)
		cmd.Hue = &hue
	}

	if n, ok := number(raw, "sat"); ok {
		sat := clampInt(n, 0, 255)
		cmd.Sat = &sat
	}

	if n, ok := number(raw, "ct"); ok {
		ct := clampInt(n, 0, math.MaxUint16)
		cmd.CT = &ct
	} else if n, ok := number(raw, "kelvin"); ok && n > 0 {
		ct := int(color.KelvinToMireds(clampInt(n, 1, math.MaxInt32)))
		cmd.CT = &ct
	}

	if n, ok := number(raw, "percent"); ok {
		p := clampInt(n, 0, 100)
		cmd.Percent = &p
	}

	if v, ok := raw["xy"]; ok {
		var xy []float64
		if json.Unmarshal(v, &xy) == nil && len(xy) == 2 && finite(xy[0]) && finite(xy[1]) {
			pair := [2]float64{clampFloat(xy[0]), clampFloat(xy[1])}
			cmd.XY = &pair
		}
	}

	if n, ok := number(raw, "rgb"); ok {
		c := color.Unpack(uint32(clampInt(n, 0, 0xFFFFFF)))
		cmd.RGB = &c
	} else if v, ok := raw["rgb"]; ok {
		var rgb []float64
		if json.Unmarshal(v, &rgb) == nil && len(rgb) == 3 {
			c := color.RGB{
				R: uint8(clampInt(rgb[0], 0, 255)),
				G: uint8(clampInt(rgb[1], 0, 255)),
				B: uint8(clampInt(rgb[2], 0, 255)),
			}
			cmd.RGB = &c
		}
	}

	return cmd
}

// number decodes a JSON number field.
func number(raw map[string]json.RawMessage, key string) (float64, bool) {
	v, ok := raw[key]
	if !ok {
		return 0, false
	}
	var n float64
	if err := json.Unmarshal(v, &n); err != nil || !finite(n) {
		return 0, false
	}
	return n, true
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func clampInt(f float64, lo, hi int) int {
	switch {
	case f <= float64(lo):
		return lo
	case f >= float64(hi):
		return hi
	default:
		return int(f)
	}
}

func clampFloat(f float64) float64 {
	return math.Max(0, math.Min(1, f))
}

// Bool returns a pointer to b, for building commands in code.
func Bool(b bool) *bool { return &b }

// Int returns a pointer to n, for building commands in code.
func Int(n int) *int { return &n }
