package device

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Capability is the class of an emulated light. It decides which state keys
// the light reports and how it identifies itself to Hue clients.
type Capability int

const (
	OnOff Capability = iota
	Dimmable
	ColorTemperature
	Color
	ExtendedColor
)

// profile is the static description of a capability class.
type profile struct {
	key         string
	typeName    string
	modelID     string
	brightness  bool
	color       bool
	temperature bool
}

var profiles = [...]profile{
	OnOff:            {key: "onoff", typeName: "On/Off plug-in unit", modelID: "Plug 01"},
	Dimmable:         {key: "dimmable", typeName: "Dimmable light", modelID: "LWB010", brightness: true},
	ColorTemperature: {key: "whitespectrum", typeName: "Color temperature light", modelID: "LWT010", brightness: true, temperature: true},
	Color:            {key: "color", typeName: "Color light", modelID: "LST001", brightness: true, color: true},
	ExtendedColor:    {key: "extendedcolor", typeName: "Extended color light", modelID: "LCT015", brightness: true, color: true, temperature: true},
}

func (c Capability) profile() profile {
	if c < OnOff || c > ExtendedColor {
		return profiles[OnOff]
	}
	return profiles[c]
}

// String returns the configuration key of the capability.
func (c Capability) String() string { return c.profile().key }

// TypeName is the human readable Hue "type" of the light.
func (c Capability) TypeName() string { return c.profile().typeName }

// ModelID is the Hue model code the light impersonates.
func (c Capability) ModelID() string { return c.profile().modelID }

// ProductName is the Hue "productname", E followed by the capability index.
func (c Capability) ProductName() string { return fmt.Sprintf("E%d", int(c)) }

// HasBrightness reports whether the light reports "bri".
func (c Capability) HasBrightness() bool { return c.profile().brightness }

// HasColor reports whether the light reports hue, sat and xy.
func (c Capability) HasColor() bool { return c.profile().color }

// HasColorTemp reports whether the light reports "ct".
func (c Capability) HasColorTemp() bool { return c.profile().temperature }

// HasColorMode reports whether the light reports "colormode".
func (c Capability) HasColorMode() bool { return c.HasColor() || c.HasColorTemp() }

// ParseCapability resolves a configuration key such as "extendedcolor".
func ParseCapability(s string) (Capability, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	for i, p := range profiles {
		if p.key == key {
			return Capability(i), nil
		}
	}
	return OnOff, fmt.Errorf("unknown device type %q", s)
}

// UnmarshalYAML implements yaml.Unmarshaler for Capability
func (c *Capability) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := ParseCapability(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// ColorMode is the color representation that currently has authority.
type ColorMode int

const (
	ColorModeNone ColorMode = iota
	ColorModeHueSat
	ColorModeColorTemp
	ColorModeXY
)

var colorModeNames = [...]string{"none", "hs", "ct", "xy"}

// String returns the Hue wire name of the mode.
func (m ColorMode) String() string {
	if m < ColorModeNone || m > ColorModeXY {
		return colorModeNames[ColorModeNone]
	}
	return colorModeNames[m]
}

// ChangedProperty records the kind of the most recent mutation.
type ChangedProperty int

const (
	ChangedInitial ChangedProperty = iota
	ChangedOn
	ChangedOff
	ChangedBrightness
	ChangedColor
	ChangedColorTemp
	ChangedXY
)

var changedNames = [...]string{"initial", "on", "off", "brightness", "color", "colortemp", "xy"}

func (p ChangedProperty) String() string {
	if p < ChangedInitial || p > ChangedXY {
		return changedNames[ChangedInitial]
	}
	return changedNames[p]
}
