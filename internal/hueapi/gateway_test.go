package hueapi

import (
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"strings"
	"testing"

	"github.com/dokzlo13/huebridge/internal/device"
	"github.com/dokzlo13/huebridge/internal/dispatch"
	"github.com/dokzlo13/huebridge/internal/netinfo"
)

var testIdentity = netinfo.NewIdentity(net.HardwareAddr{0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0xff})

func newTestGateway(t *testing.T, opts ...Option) (*Gateway, *device.Registry) {
	t.Helper()
	reg := device.NewRegistry(4)
	for _, d := range []struct {
		name string
		cap  device.Capability
	}{
		{"Kitchen", device.ExtendedColor},
		{"Hall", device.Dimmable},
		{"Plug", device.OnOff},
	} {
		if _, err := reg.Register(d.name, d.cap, 0); err != nil {
			t.Fatal(err)
		}
	}
	disp := dispatch.New(reg, nil, testIdentity.LightID)
	return NewGateway(reg, disp, testIdentity, opts...), reg
}

func TestHandlePairing(t *testing.T) {
	g, _ := newTestGateway(t)
	want := `[{"success":{"username":"2WLEDHardQrI3WHYTHoMcXHgEspsM8ZZRpSKtBQr"}}]`

	tests := []struct {
		name   string
		method string
		path   string
		body   string
	}{
		{"post_devicetype", http.MethodPost, "/api", `{"devicetype":"Echo#1"}`},
		{"put_devicetype_anywhere", http.MethodPut, "/api/x/lights/1/state", `{"devicetype":"x","on":false}`},
		{"get_api", http.MethodGet, "/api", ""},
		{"get_api_slash", http.MethodGet, "/api/", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := g.Handle(tt.method, tt.path, []byte(tt.body))
			if string(resp.Body) != want {
				t.Errorf("body = %s, want %s", resp.Body, want)
			}
			if resp.Status != http.StatusOK || resp.ContentType != "application/json" {
				t.Errorf("status/content type = %d %q", resp.Status, resp.ContentType)
			}
		})
	}
}

func TestHandlePairingCustomUsername(t *testing.T) {
	g, _ := newTestGateway(t, WithUsername("abc"))
	resp := g.Handle(http.MethodPost, "/api", []byte(`{"devicetype":"app"}`))
	if string(resp.Body) != `[{"success":{"username":"abc"}}]` {
		t.Errorf("body = %s", resp.Body)
	}
}

func TestHandleStateChange(t *testing.T) {
	g, reg := newTestGateway(t)

	wire := strconv.FormatUint(uint64(testIdentity.LightID(1)), 10)
	resp := g.Handle(http.MethodPut, "/api/token/lights/"+wire+"/state", []byte(`{"on":true,"bri":100}`))
	if string(resp.Body) != `[{"success":true}]` {
		t.Fatalf("body = %s", resp.Body)
	}
	s, _ := reg.Snapshot(1)
	if s.Value != 101 {
		t.Errorf("value = %d, want 101", s.Value)
	}

	// Plain indices resolve as well.
	g.Handle(http.MethodPost, "/api/token/lights/2/state", []byte(`{"bri":9}`))
	if s, _ := reg.Snapshot(2); s.Value != 10 {
		t.Errorf("value = %d, want 10", s.Value)
	}
}

func TestHandleStateChangeUnknownAndMalformed(t *testing.T) {
	g, reg := newTestGateway(t)
	before := reg.Snapshots()

	for _, tc := range []struct{ path, body string }{
		{"/api/token/lights/9/state", `{"on":true}`},
		{"/api/token/lights/0/state", `{"on":true}`},
		{"/api/token/lights/1/state", `not json`},
		{"/api/token/lights/1/state", `{"bri":"high","xy":"a"}`},
		{"/api/token/lights/1/state", ``},
	} {
		resp := g.Handle(http.MethodPut, tc.path, []byte(tc.body))
		if string(resp.Body) != `[{"success":true}]` {
			t.Errorf("%s %s: body = %s", tc.path, tc.body, resp.Body)
		}
	}

	after := reg.Snapshots()
	for i := range before {
		if before[i] != after[i] {
			t.Errorf("device %d mutated: %+v -> %+v", i+1, before[i], after[i])
		}
	}
}

func TestHandleAllLights(t *testing.T) {
	g, _ := newTestGateway(t)

	for _, path := range []string{"/api/token/lights", "/api/token/lights/", "/api/token/lights/0"} {
		resp := g.Handle(http.MethodGet, path, nil)

		var m map[string]map[string]any
		if err := json.Unmarshal(resp.Body, &m); err != nil {
			t.Fatalf("%s: invalid JSON %s: %v", path, resp.Body, err)
		}
		if len(m) != 3 {
			t.Fatalf("%s: %d lights, want 3", path, len(m))
		}
		for idx := 1; idx <= 3; idx++ {
			key := strconv.FormatUint(uint64(testIdentity.LightID(idx)), 10)
			if _, ok := m[key]; !ok {
				t.Errorf("%s: missing key %s", path, key)
			}
		}
	}
}

func TestHandleAllLightsKeepsRegistryOrder(t *testing.T) {
	g, _ := newTestGateway(t)
	body := string(g.Handle(http.MethodGet, "/api/token/lights", nil).Body)

	k1 := strings.Index(body, `"Kitchen"`)
	k2 := strings.Index(body, `"Hall"`)
	k3 := strings.Index(body, `"Plug"`)
	if !(k1 < k2 && k2 < k3) {
		t.Errorf("lights not in registry order: %s", body)
	}
}

func TestHandleSingleLight(t *testing.T) {
	g, _ := newTestGateway(t)

	resp := g.Handle(http.MethodGet, "/api/token/lights/2", nil)
	want := `{"state":{"on":false,"bri":254,"effect":"none","alert":"none","mode":"homeautomation","reachable":true},` +
		`"type":"Dimmable light","name":"Hall","modelid":"LWB010","manufacturername":"Philips","productname":"E1",` +
		`"uniqueid":"AA:BB:CC:DD:EE:FF:00:11-02","swversion":"` + SWVersion + `"}`
	if string(resp.Body) != want {
		t.Errorf("body =\n%s\nwant\n%s", resp.Body, want)
	}

	for _, path := range []string{"/api/token/lights/7", "/api/token/lights/abc", "/api/token/lights/1/state"} {
		if resp := g.Handle(http.MethodGet, path, nil); string(resp.Body) != "{}" {
			t.Errorf("GET %s = %s, want {}", path, resp.Body)
		}
	}
}

func TestHandleUnknownPaths(t *testing.T) {
	g, _ := newTestGateway(t)

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/api/token/config"},
		{http.MethodGet, "/api/token/groups"},
		{http.MethodDelete, "/api/token"},
		{http.MethodGet, "/other"},
	} {
		resp := g.Handle(tc.method, tc.path, nil)
		if string(resp.Body) != "{}" || resp.Status != http.StatusOK {
			t.Errorf("%s %s = %d %s", tc.method, tc.path, resp.Status, resp.Body)
		}
	}
}

func TestRenderPerCapability(t *testing.T) {
	reg := device.NewRegistry(5)
	caps := []device.Capability{device.OnOff, device.Dimmable, device.ColorTemperature, device.Color, device.ExtendedColor}
	for _, c := range caps {
		reg.Register(c.String(), c, 0)
	}

	tests := []struct {
		cap               device.Capability
		bri, hue, xy, ct bool
		wantMode          string
	}{
		{device.OnOff, false, false, false, false, ""},
		{device.Dimmable, true, false, false, false, ""},
		{device.ColorTemperature, true, false, false, true, "ct"},
		{device.Color, true, true, true, false, "hs"},
		{device.ExtendedColor, true, true, true, true, "hs"},
	}
	for i, tt := range tests {
		t.Run(tt.cap.String(), func(t *testing.T) {
			s, _ := reg.Snapshot(i + 1)
			d := Render(s, testIdentity)

			if (d.State.Bri != nil) != tt.bri || (d.State.Hue != nil) != tt.hue || (d.State.Sat != nil) != tt.hue ||
				(d.State.XY != nil) != tt.xy || (d.State.CT != nil) != tt.ct {
				t.Errorf("unexpected fields %+v", d.State)
			}
			if d.State.ColorMode != tt.wantMode {
				t.Errorf("colormode = %q, want %q", d.State.ColorMode, tt.wantMode)
			}
			if d.ModelID != tt.cap.ModelID() || d.Type != tt.cap.TypeName() || d.ProductName != "E"+strconv.Itoa(int(tt.cap)) {
				t.Errorf("identity fields %q %q %q", d.ModelID, d.Type, d.ProductName)
			}
			if tt.ct && *d.State.CT != 500 {
				t.Errorf("default ct = %d, want 500", *d.State.CT)
			}
		})
	}
}

func TestRenderFollowsColorMode(t *testing.T) {
	g, reg := newTestGateway(t)
	g.Handle(http.MethodPut, "/api/t/lights/1/state", []byte(`{"xy":[0.25,0.5]}`))

	s, _ := reg.Snapshot(1)
	d := Render(s, testIdentity)
	if d.State.ColorMode != "xy" || d.State.XY[0] != 0.25 || d.State.XY[1] != 0.5 {
		t.Errorf("state = %+v xy = %v", d.State, *d.State.XY)
	}

	g.Handle(http.MethodPut, "/api/t/lights/1/state", []byte(`{"ct":300}`))
	s, _ = reg.Snapshot(1)
	if d := Render(s, testIdentity); d.State.ColorMode != "ct" || *d.State.CT != 300 {
		t.Errorf("state = %+v", d.State)
	}
}

func TestLegacySchema(t *testing.T) {
	g, _ := newTestGateway(t, WithLegacySchema(true))
	resp := g.Handle(http.MethodGet, "/api/token/lights/3", nil)

	var doc map[string]any
	if err := json.Unmarshal(resp.Body, &doc); err != nil {
		t.Fatal(err)
	}
	if doc["type"] != "Extended color light" {
		t.Errorf("type = %v", doc["type"])
	}
	state := doc["state"].(map[string]any)
	for _, key := range []string{"on", "bri", "xy", "colormode", "effect", "ct", "hue", "sat", "alert", "reachable"} {
		if _, ok := state[key]; !ok {
			t.Errorf("legacy state misses %q", key)
		}
	}
}
