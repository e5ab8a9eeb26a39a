package dispatch

import (
	"sync"
	"testing"

	"github.com/dokzlo13/huebridge/internal/color"
	"github.com/dokzlo13/huebridge/internal/device"
	"github.com/dokzlo13/huebridge/internal/eventbus"
)

// recorder captures published events synchronously.
type recorder struct {
	mu     sync.Mutex
	events []eventbus.Event
}

func (r *recorder) Publish(e eventbus.Event) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return 1
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func newTestDispatcher(t *testing.T, capability device.Capability) (*Dispatcher, *device.Registry, *recorder) {
	t.Helper()
	reg := device.NewRegistry(3)
	if _, err := reg.Register("lamp", capability, 0); err != nil {
		t.Fatal(err)
	}
	rec := &recorder{}
	return New(reg, rec, nil), reg, rec
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		check func(t *testing.T, c Command)
	}{
		{"not_json", `on=true`, func(t *testing.T, c Command) {
			if !c.Empty() {
				t.Errorf("expected empty command, got %+v", c)
			}
		}},
		{"array_body", `[1,2]`, func(t *testing.T, c Command) {
			if !c.Empty() {
				t.Errorf("expected empty command, got %+v", c)
			}
		}},
		{"all_keys", `{"on":true,"bri":100,"hue":1000,"sat":200,"ct":300,"xy":[0.3,0.4]}`, func(t *testing.T, c Command) {
			if c.On == nil || !*c.On || c.Bri == nil || *c.Bri != 100 || c.Hue == nil || *c.Hue != 1000 ||
				c.Sat == nil || *c.Sat != 200 || c.CT == nil || *c.CT != 300 || c.XY == nil || c.XY[1] != 0.4 {
				t.Errorf("unexpected parse %+v", c)
			}
		}},
		{"wrong_types", `{"on":"yes","bri":"high","hue":[1],"xy":[0.1],"ct":null}`, func(t *testing.T, c Command) {
			if !c.Empty() {
				t.Errorf("malformed keys must be absent, got %+v", c)
			}
		}},
		{"negative_bri_absent", `{"bri":-4}`, func(t *testing.T, c Command) {
			if c.Bri != nil {
				t.Errorf("negative bri parsed as %d", *c.Bri)
			}
		}},
		{"clamped", `{"bri":999,"hue":70000,"sat":300,"xy":[1.5,-0.2]}`, func(t *testing.T, c Command) {
			if *c.Bri != 255 || *c.Hue != 65535 || *c.Sat != 255 || c.XY[0] != 1 || c.XY[1] != 0 {
				t.Errorf("unexpected clamping %+v", c)
			}
		}},
		{"fractional", `{"bri":12.9}`, func(t *testing.T, c Command) {
			if *c.Bri != 12 {
				t.Errorf("bri = %d, want 12", *c.Bri)
			}
		}},
		{"rgb", `{"rgb":[255,10,0]}`, func(t *testing.T, c Command) {
			if c.RGB == nil || *c.RGB != (color.RGB{R: 255, G: 10}) {
				t.Errorf("rgb = %+v", c.RGB)
			}
		}},
		{"packed_rgb", `{"rgb":16714240}`, func(t *testing.T, c Command) {
			if c.RGB == nil || *c.RGB != (color.RGB{R: 255, G: 10}) {
				t.Errorf("rgb = %+v", c.RGB)
			}
		}},
		{"kelvin", `{"kelvin":4000}`, func(t *testing.T, c Command) {
			if c.CT == nil || *c.CT != 250 {
				t.Errorf("ct = %v, want 250", c.CT)
			}
		}},
		{"ct_wins_over_kelvin", `{"ct":300,"kelvin":4000}`, func(t *testing.T, c Command) {
			if c.CT == nil || *c.CT != 300 {
				t.Errorf("ct = %v, want 300", c.CT)
			}
		}},
		{"percent", `{"percent":150}`, func(t *testing.T, c Command) {
			if c.Percent == nil || *c.Percent != 100 || c.Empty() {
				t.Errorf("percent = %v, want 100", c.Percent)
			}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, ParseCommand([]byte(tt.body)))
		})
	}
}

func TestApplyOffShortCircuits(t *testing.T) {
	d, reg, rec := newTestDispatcher(t, device.ExtendedColor)

	d.Apply(1, ParseCommand([]byte(`{"bri":99,"hue":100,"sat":50}`)), SourceAPI)
	before, _ := reg.Snapshot(1)

	ok := d.Apply(1, ParseCommand([]byte(`{"hue":9000,"sat":10,"on":false,"bri":3,"ct":200,"xy":[0.1,0.1]}`)), SourceAPI)
	if !ok {
		t.Fatal("Apply returned false")
	}

	after, _ := reg.Snapshot(1)
	if after.Value != 0 {
		t.Errorf("value = %d, want 0", after.Value)
	}
	if after.Hue != before.Hue || after.Sat != before.Sat || after.ColorMode != before.ColorMode ||
		after.LastValue != before.LastValue || after.CT != before.CT {
		t.Errorf("on=false touched other fields: before %+v after %+v", before, after)
	}
	if after.Changed != device.ChangedOff {
		t.Errorf("changed = %v, want off", after.Changed)
	}
	if rec.count() != 2 {
		t.Errorf("events = %d, want 2", rec.count())
	}
}

func TestApplyOrder(t *testing.T) {
	d, reg, _ := newTestDispatcher(t, device.ExtendedColor)

	d.Apply(1, ParseCommand([]byte(`{"bri":50}`)), SourceAPI)
	d.Apply(1, ParseCommand([]byte(`{"on":false}`)), SourceAPI)

	// on=true restores 51, then bri overrides it; ct runs after hue/sat.
	d.Apply(1, ParseCommand([]byte(`{"ct":250,"hue":100,"sat":5,"bri":10,"on":true}`)), SourceAPI)

	s, _ := reg.Snapshot(1)
	if s.Value != 11 {
		t.Errorf("value = %d, want 11", s.Value)
	}
	if s.ColorMode != device.ColorModeColorTemp || s.CT != 250 {
		t.Errorf("mode = %v ct = %d, want ct/250", s.ColorMode, s.CT)
	}
	if s.Hue != 100 || s.Sat != 5 {
		t.Errorf("hue/sat = %d/%d, want 100/5", s.Hue, s.Sat)
	}
	if s.Changed != device.ChangedColorTemp {
		t.Errorf("changed = %v, want colortemp", s.Changed)
	}
}

func TestApplyHueWithoutSatKeepsSat(t *testing.T) {
	d, reg, _ := newTestDispatcher(t, device.Color)
	d.Apply(1, ParseCommand([]byte(`{"hue":10,"sat":77}`)), SourceAPI)
	d.Apply(1, ParseCommand([]byte(`{"hue":20}`)), SourceAPI)

	s, _ := reg.Snapshot(1)
	if s.Hue != 20 || s.Sat != 77 {
		t.Errorf("hue/sat = %d/%d, want 20/77", s.Hue, s.Sat)
	}
}

func TestApplyOnRestores(t *testing.T) {
	d, reg, _ := newTestDispatcher(t, device.Dimmable)
	d.Apply(1, Command{Bri: Int(120)}, SourceAPI)
	d.Apply(1, Command{On: Bool(false)}, SourceAPI)
	d.Apply(1, Command{On: Bool(true)}, SourceAPI)

	s, _ := reg.Snapshot(1)
	if s.Value != 121 || s.Bri != 120 {
		t.Errorf("value/bri = %d/%d, want 121/120", s.Value, s.Bri)
	}
}

func TestApplyOneEventPerCommand(t *testing.T) {
	d, _, rec := newTestDispatcher(t, device.ExtendedColor)

	d.Apply(1, ParseCommand([]byte(`{"on":true,"bri":200,"xy":[0.3,0.3],"hue":1,"sat":2,"ct":300}`)), SourceAPI)
	if rec.count() != 1 {
		t.Fatalf("events = %d, want 1", rec.count())
	}

	e := rec.events[0]
	if e.Type != eventbus.EventTypeLightChanged {
		t.Errorf("event type = %q", e.Type)
	}
	if e.Data["value"] != 201 || e.Data["source"] != SourceAPI {
		t.Errorf("unexpected payload %v", e.Data)
	}
	if _, ok := e.Data["rgb"]; !ok {
		t.Error("color capable light event has no rgb")
	}
}

func TestApplyEventWithoutColor(t *testing.T) {
	d, _, rec := newTestDispatcher(t, device.Dimmable)
	d.Apply(1, Command{Bri: Int(1)}, SourceAPI)

	if _, ok := rec.events[0].Data["rgb"]; ok {
		t.Error("dimmable light event carries rgb")
	}
}

func TestApplyUnknownOrEmpty(t *testing.T) {
	d, _, rec := newTestDispatcher(t, device.Dimmable)

	if d.Apply(7, Command{On: Bool(true)}, SourceAPI) {
		t.Error("Apply on unknown id returned true")
	}
	if d.Apply(1, ParseCommand([]byte(`{"bri":"x"}`)), SourceAPI) {
		t.Error("Apply with nothing to do returned true")
	}
	if rec.count() != 0 {
		t.Errorf("events = %d, want 0", rec.count())
	}
}

func TestApplyRGB(t *testing.T) {
	d, reg, _ := newTestDispatcher(t, device.ExtendedColor)
	d.Apply(1, Command{RGB: &color.RGB{B: 255}}, SourceScript)

	s, _ := reg.Snapshot(1)
	if s.ColorMode != device.ColorModeXY {
		t.Errorf("mode = %v, want xy", s.ColorMode)
	}
	if s.X == s.Y {
		t.Errorf("x == y == %v", s.X)
	}
}

func TestApplyEventUsesWireID(t *testing.T) {
	reg := device.NewRegistry(2)
	reg.Register("a", device.Dimmable, 0)
	rec := &recorder{}
	d := New(reg, rec, func(id int) uint32 { return 0x100 | uint32(id) })

	d.Apply(1, Command{On: Bool(true)}, SourceAPI)
	if got := rec.events[0].Data["light_id"]; got != uint32(0x101) {
		t.Errorf("light_id = %v, want 0x101", got)
	}
}

func TestApplyPercentAndKelvin(t *testing.T) {
	d, reg, _ := newTestDispatcher(t, device.ExtendedColor)

	d.Apply(1, ParseCommand([]byte(`{"percent":50,"kelvin":4000}`)), SourceMQTT)

	s, _ := reg.Snapshot(1)
	if s.Value != 127 {
		t.Errorf("value = %d, want 127", s.Value)
	}
	if s.ColorMode != device.ColorModeColorTemp || s.CT != 250 {
		t.Errorf("mode = %v ct = %d, want ct/250", s.ColorMode, s.CT)
	}

	// bri is applied before percent.
	d.Apply(1, ParseCommand([]byte(`{"bri":10,"percent":100}`)), SourceMQTT)
	if s, _ := reg.Snapshot(1); s.Value != 255 {
		t.Errorf("value = %d, want 255", s.Value)
	}
}

func TestApplyEventCarriesSeq(t *testing.T) {
	d, _, rec := newTestDispatcher(t, device.Dimmable)
	d.Apply(1, Command{On: Bool(true)}, SourceAPI)
	d.Apply(1, Command{On: Bool(false)}, SourceAPI)

	first, _ := rec.events[0].Data["seq"].(uint64)
	second, _ := rec.events[1].Data["seq"].(uint64)
	if second <= first {
		t.Errorf("seq %d then %d, want increasing", first, second)
	}
}
