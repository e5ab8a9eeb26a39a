package netinfo

import (
	"net"
	"testing"
)

var testMAC = net.HardwareAddr{0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0xff}

func TestIdentity(t *testing.T) {
	id := NewIdentity(testMAC)

	if got := id.MACHex(); got != "aabbccddeeff" {
		t.Errorf("MACHex() = %q", got)
	}
	if got := id.BridgeID(); got != "AABBCCFFFEDDEEFF" {
		t.Errorf("BridgeID() = %q", got)
	}
	if got := id.UUID().String(); got != "2f402f80-da50-11e1-9b23-aabbccddeeff" {
		t.Errorf("UUID() = %q", got)
	}
	if got := id.UniqueID(3); got != "AA:BB:CC:DD:EE:FF:00:11-03" {
		t.Errorf("UniqueID(3) = %q", got)
	}
}

func TestLightIDRoundTrip(t *testing.T) {
	id := NewIdentity(testMAC)

	want := uint32(0xdd)<<20 | uint32(0xee)<<12 | uint32(0xff)<<4 | 5
	if got := id.LightID(5); got != want {
		t.Errorf("LightID(5) = %d, want %d", got, want)
	}

	for idx := 1; idx <= 15; idx++ {
		if got := DecodeLightID(id.LightID(idx)); got != idx {
			t.Errorf("DecodeLightID(LightID(%d)) = %d", idx, got)
		}
	}

	tests := []struct {
		in   uint32
		want int
	}{
		{0, 0},
		{1, 1},
		{15, 15},
		{16, 0},
		{id.LightID(0), 0},
	}
	for _, tt := range tests {
		if got := DecodeLightID(tt.in); got != tt.want {
			t.Errorf("DecodeLightID(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestIdentityCopiesMAC(t *testing.T) {
	mac := net.HardwareAddr{1, 2, 3, 4, 5, 6}
	id := NewIdentity(mac)
	mac[0] = 0xff

	if id.MAC()[0] != 1 {
		t.Error("identity shares the caller's slice")
	}
}

func TestDetectOverrides(t *testing.T) {
	s, err := Detect("10.0.0.7", "aa:bb:cc:dd:ee:ff")
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if !s.LocalIP().Equal(net.IPv4(10, 0, 0, 7)) {
		t.Errorf("LocalIP() = %v", s.LocalIP())
	}
	if s.HardwareAddr().String() != "aa:bb:cc:dd:ee:ff" {
		t.Errorf("HardwareAddr() = %v", s.HardwareAddr())
	}
}

func TestDetectRejectsBadOverrides(t *testing.T) {
	tests := []struct {
		name string
		ip   string
		mac  string
	}{
		{"bad_ip", "not-an-ip", "aa:bb:cc:dd:ee:ff"},
		{"ipv6", "::1", "aa:bb:cc:dd:ee:ff"},
		{"bad_mac", "10.0.0.1", "zz"},
		{"long_mac", "10.0.0.1", "00:00:00:00:fe:80:00:00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Detect(tt.ip, tt.mac); err == nil {
				t.Error("expected error")
			}
		})
	}
}
