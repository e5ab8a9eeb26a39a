// Package device holds the state model of the emulated lights and the
// registry that owns them.
package device

import (
	"github.com/dokzlo13/huebridge/internal/color"
)

// Device is one emulated light.
// Mutators are only safe while the owning Registry holds its lock,
// i.e. inside Registry.Update.
type Device struct {
	id         int
	name       string
	capability Capability

	value     uint8
	lastValue uint8 // most recent nonzero value, 0 until one was set

	mode    ColorMode
	hue     uint16
	sat     uint8
	ct      uint16
	x, y    float64
	changed ChangedProperty

	seq uint64 // bumped by Registry.Update
}

func newDevice(id int, name string, capability Capability, initial uint8) *Device {
	d := &Device{
		id:         id,
		name:       name,
		capability: capability,
		changed:    ChangedInitial,
	}
	d.SetValue(initial)
	return d
}

// ID returns the 1-based registry id.
func (d *Device) ID() int { return d.id }

// Name returns the display name.
func (d *Device) Name() string { return d.name }


// Capability returns the capability class fixed at registration.
func (d *Device) Capability() Capability { return d.capability }

// Value returns the current level, 0 meaning off.
func (d *Device) Value() uint8 { return d.value }

// LastValue returns the most recent nonzero level, 255 if there never was one.
func (d *Device) LastValue() uint8 {
	if d.lastValue == 0 {
		return 255
	}
	return d.lastValue
}

// SetValue sets the level and keeps track of the last nonzero one.
func (d *Device) SetValue(v uint8) {
	if d.value != 0 {
		d.lastValue = d.value
	}
	if v != 0 {
		d.lastValue = v
	}
	d.value = v
}

// Percent returns the level as 0-100.
func (d *Device) Percent() int {
	return int(d.value) * 100 / 255
}

// SetPercent sets the level from 0-100.
func (d *Device) SetPercent(p int) {
	v := p * 255 / 100
	switch {
	case v > 255:
		v = 255
	case v < 0:
		v = 0
	}
	d.SetValue(uint8(v))
	d.changed = ChangedBrightness
}

// SetOn restores the last nonzero level.
func (d *Device) SetOn() {
	d.SetValue(d.LastValue())
	d.changed = ChangedOn
}

// SetOff switches the light off, remembering its level.
func (d *Device) SetOff() {
	d.SetValue(0)
	d.changed = ChangedOff
}

// SetBrightness applies a Hue "bri" (0-254). The stored level is bri+1 so that
// 0 stays reserved for off; 254 and the out-of-range 255 both store 255.
func (d *Device) SetBrightness(bri uint8) {
	if bri >= 254 {
		d.SetValue(255)
	} else {
		d.SetValue(bri + 1)
	}
	d.changed = ChangedBrightness
}

// Bri returns the Hue "bri" reported for the light.
func (d *Device) Bri() uint8 {
	return d.LastValue() - 1
}

// SetColorHueSat selects hue/saturation mode. The stored color temperature is cleared.
func (d *Device) SetColorHueSat(hue uint16, sat uint8) {
	d.hue = hue
	d.sat = sat
	d.ct = 0
	d.mode = ColorModeHueSat
	d.changed = ChangedColor
}

// SetColorTemp selects color temperature mode.
func (d *Device) SetColorTemp(ct uint16) {
	d.ct = ct
	d.mode = ColorModeColorTemp
	d.changed = ChangedColorTemp
}

// SetColorXY selects xy mode.
func (d *Device) SetColorXY(x, y float64) {
	d.x = x
	d.y = y
	d.mode = ColorModeXY
	d.changed = ChangedXY
}

// SetColorRGB stores the chromaticity of an RGB color and selects xy mode.
func (d *Device) SetColorRGB(c color.RGB) {
	x, y := color.RGBToXY(c)
	d.SetColorXY(x, y)
}

// ColorMode returns the mode that currently has authority.
func (d *Device) ColorMode() ColorMode { return d.mode }

// Hue returns the raw hue, 0-65535.
func (d *Device) Hue() uint16 { return d.hue }

// Sat returns the raw saturation, 0-255.
func (d *Device) Sat() uint8 { return d.sat }

// RawCT returns the stored color temperature, 0 when unset.
func (d *Device) RawCT() uint16 { return d.ct }

// CT returns the reported color temperature in mireds.
func (d *Device) CT() uint16 {
	if d.ct == 0 {
		return color.DefaultMireds
	}
	return d.ct
}

// Kelvin returns the color temperature in Kelvin.
func (d *Device) Kelvin() int {
	return color.MiredsToKelvin(d.ct)
}

// XY returns the stored chromaticity.
func (d *Device) XY() (float64, float64) { return d.x, d.y }

// LastChanged returns the kind of the most recent mutation.
func (d *Device) LastChanged() ChangedProperty { return d.changed }

// RGB renders the active color mode. A light without a color mode renders black.
func (d *Device) RGB() color.RGB {
	switch d.mode {
	case ColorModeHueSat:
		return color.HueSatToRGB(d.hue, d.sat)
	case ColorModeColorTemp:
		return color.ColorTempToRGB(d.ct)
	case ColorModeXY:
		return color.XYToRGB(d.x, d.y, d.value)
	default:
		return color.RGB{}
	}
}

// Snapshot returns an immutable copy of the device state.
func (d *Device) Snapshot() Snapshot {
	return Snapshot{
		ID:         d.id,
		Name:       d.name,
		Capability: d.capability,
		Value:      d.value,
		LastValue:  d.LastValue(),
		Bri:        d.Bri(),
		ColorMode:  d.mode,
		Hue:        d.hue,
		Sat:        d.sat,
		CT:         d.CT(),
		X:          d.x,
		Y:          d.y,
		RGB:        d.RGB(),
		Changed:    d.changed,
		Seq:        d.seq,
	}
}

// Snapshot is a point-in-time copy of a device used for rendering and
// notifications outside the registry lock.
type Snapshot struct {
	ID         int
	Name       string
	Capability Capability
	Value      uint8
	LastValue  uint8
	Bri        uint8
	ColorMode  ColorMode
	Hue        uint16
	Sat        uint8
	CT         uint16
	X, Y       float64
	RGB        color.RGB
	Changed    ChangedProperty

	// Seq increases with every update of the device, so notifications
	// built from snapshots can be ordered.
	Seq uint64
}

// On reports whether the light is lit.
func (s Snapshot) On() bool { return s.Value != 0 }

// Percent returns the level as 0-100.
func (s Snapshot) Percent() int { return int(s.Value) * 100 / 255 }
