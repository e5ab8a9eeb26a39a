// Package dispatch applies Hue state commands to registered devices and
// announces the result on the event bus.
package dispatch

import (
	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/huebridge/internal/device"
	"github.com/dokzlo13/huebridge/internal/eventbus"
)

// Sources recorded on published events.
const (
	SourceAPI    = "api"
	SourceMQTT   = "mqtt"
	SourceScript = "script"
)

// Publisher is the part of the event bus the dispatcher needs.
type Publisher interface {
	Publish(eventbus.Event) int
}

// LightIDFunc maps a registry id to its wire light id.
type LightIDFunc func(id int) uint32

// Dispatcher is the only writer of device state.
type Dispatcher struct {
	registry *device.Registry
	bus      Publisher
	lightID  LightIDFunc
}

// New creates a dispatcher. lightID may be nil, in which case events carry
// the registry id as the wire id.
func New(registry *device.Registry, bus Publisher, lightID LightIDFunc) *Dispatcher {
	if lightID == nil {
		lightID = func(id int) uint32 { return uint32(id) }
	}
	return &Dispatcher{
		registry: registry,
		bus:      bus,
		lightID:  lightID,
	}
}

// Apply runs cmd against device id as one indivisible change and publishes
// a single light.changed event afterwards. Keys are evaluated in a fixed
// order: on=false (which ends processing), on=true, bri, percent, xy, rgb,
// hue/sat, ct.
// It returns false when the id is unknown or nothing applied.
func (d *Dispatcher) Apply(id int, cmd Command, source string) bool {
	applied := false
	snap, ok := d.registry.Update(id, func(dev *device.Device) {
		applied = apply(dev, cmd)
	})
	if !ok {
		log.Debug().Int("device", id).Str("source", source).Msg("Command for unknown device ignored")
		return false
	}
	if !applied {
		return false
	}

	log.Debug().
		Int("device", id).
		Str("source", source).
		Str("changed", snap.Changed.String()).
		Int("value", int(snap.Value)).
		Msg("Light state changed")

	if d.bus != nil {
		d.bus.Publish(eventbus.Event{
			Type: eventbus.EventTypeLightChanged,
			Data: EventData(snap, d.lightID(snap.ID), source),
		})
	}
	return true
}

func apply(dev *device.Device, cmd Command) bool {
	if cmd.On != nil && !*cmd.On {
		dev.SetOff()
		return true
	}

	applied := false
	if cmd.On != nil {
		dev.SetOn()
		applied = true
	}
	if cmd.Bri != nil {
		dev.SetBrightness(uint8(*cmd.Bri))
		applied = true
	}
	if cmd.Percent != nil {
		dev.SetPercent(*cmd.Percent)
		applied = true
	}
	if cmd.XY != nil {
		dev.SetColorXY(cmd.XY[0], cmd.XY[1])
		applied = true
	}
	if cmd.RGB != nil {
		dev.SetColorRGB(*cmd.RGB)
		applied = true
	}
	if cmd.Hue != nil || cmd.Sat != nil {
		hue, sat := dev.Hue(), dev.Sat()
		if cmd.Hue != nil {
			hue = uint16(*cmd.Hue)
		}
		if cmd.Sat != nil {
			sat = uint8(*cmd.Sat)
		}
		dev.SetColorHueSat(hue, sat)
		applied = true
	}
	if cmd.CT != nil {
		dev.SetColorTemp(uint16(*cmd.CT))
		applied = true
	}
	return applied
}

// EventData builds the payload of a light.changed event. The color is only
// included for lights that support a color mode.
func EventData(s device.Snapshot, lightID uint32, source string) map[string]any {
	data := map[string]any{
		"device_id":  s.ID,
		"light_id":   lightID,
		"name":       s.Name,
		"type":       s.Capability.String(),
		"on":         s.On(),
		"value":      int(s.Value),
		"bri":        int(s.Bri),
		"changed":    s.Changed.String(),
		"color_mode": s.ColorMode.String(),
		"source":     source,
		"seq":        s.Seq,
	}
	if s.Capability.HasColorMode() {
		data["rgb"] = s.RGB.Pack()
		data["rgb_hex"] = s.RGB.Hex()
	}
	return data
}
