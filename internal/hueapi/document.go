package hueapi

import (
	"math"

	"github.com/dokzlo13/huebridge/internal/device"
	"github.com/dokzlo13/huebridge/internal/netinfo"
)

// SWVersion is reported for every light.
const SWVersion = "1.46.13_r26312"

// Document is the Hue light resource. Field order is the wire order.
type Document struct {
	State            State  `json:"state"`
	Type             string `json:"type"`
	Name             string `json:"name"`
	ModelID          string `json:"modelid"`
	ManufacturerName string `json:"manufacturername"`
	ProductName      string `json:"productname"`
	UniqueID         string `json:"uniqueid"`
	SWVersion        string `json:"swversion"`
}

// State is the "state" object of a light. Nil fields are not supported by
// the light's capability and are omitted.
type State struct {
	On        bool        `json:"on"`
	Bri       *int        `json:"bri,omitempty"`
	Hue       *int        `json:"hue,omitempty"`
	Sat       *int        `json:"sat,omitempty"`
	Effect    string      `json:"effect"`
	XY        *[2]float64 `json:"xy,omitempty"`
	CT        *int        `json:"ct,omitempty"`
	Alert     string      `json:"alert"`
	ColorMode string      `json:"colormode,omitempty"`
	Mode      string      `json:"mode"`
	Reachable bool        `json:"reachable"`
}

// legacyDocument is the older flat shape where every light poses as an
// extended color light.
type legacyDocument struct {
	Type             string      `json:"type"`
	ManufacturerName string      `json:"manufacturername"`
	SWVersion        string      `json:"swversion"`
	Name             string      `json:"name"`
	UniqueID         string      `json:"uniqueid"`
	ModelID          string      `json:"modelid"`
	State            legacyState `json:"state"`
}

type legacyState struct {
	On        bool       `json:"on"`
	Bri       int        `json:"bri"`
	XY        [2]float64 `json:"xy"`
	ColorMode string     `json:"colormode"`
	Effect    string     `json:"effect"`
	CT        int        `json:"ct"`
	Hue       int        `json:"hue"`
	Sat       int        `json:"sat"`
	Alert     string     `json:"alert"`
	Reachable bool       `json:"reachable"`
}

// Render builds the document for one light.
func Render(s device.Snapshot, id netinfo.Identity) Document {
	c := s.Capability
	st := State{
		On:        s.On(),
		Effect:    "none",
		Alert:     "none",
		Mode:      "homeautomation",
		Reachable: true,
	}

	if c.HasBrightness() {
		st.Bri = intPtr(int(s.Bri))
	}
	if c.HasColor() {
		st.Hue = intPtr(int(s.Hue))
		st.Sat = intPtr(int(s.Sat))
		st.XY = &[2]float64{round4(s.X), round4(s.Y)}
	}
	if c.HasColorTemp() {
		st.CT = intPtr(int(s.CT))
	}
	if c.HasColorMode() {
		st.ColorMode = colorMode(s)
	}

	return Document{
		State:            st,
		Type:             c.TypeName(),
		Name:             s.Name,
		ModelID:          c.ModelID(),
		ManufacturerName: "Philips",
		ProductName:      c.ProductName(),
		UniqueID:         id.UniqueID(s.ID),
		SWVersion:        SWVersion,
	}
}

func renderLegacy(s device.Snapshot, id netinfo.Identity) legacyDocument {
	return legacyDocument{
		Type:             device.ExtendedColor.TypeName(),
		ManufacturerName: "Philips",
		SWVersion:        SWVersion,
		Name:             s.Name,
		UniqueID:         id.UniqueID(s.ID),
		ModelID:          device.ExtendedColor.ModelID(),
		State: legacyState{
			On:        s.On(),
			Bri:       int(s.Bri),
			XY:        [2]float64{round4(s.X), round4(s.Y)},
			ColorMode: colorMode(s),
			Effect:    "none",
			CT:        int(s.CT),
			Hue:       int(s.Hue),
			Sat:       int(s.Sat),
			Alert:     "none",
			Reachable: true,
		},
	}
}

// colorMode names the active mode. Lights that were never colored report
// the mode their capability defaults to.
func colorMode(s device.Snapshot) string {
	if s.ColorMode != device.ColorModeNone {
		return s.ColorMode.String()
	}
	if s.Capability.HasColor() {
		return device.ColorModeHueSat.String()
	}
	return device.ColorModeColorTemp.String()
}

func intPtr(n int) *int { return &n }

func round4(f float64) float64 {
	return math.Round(f*10000) / 10000
}
