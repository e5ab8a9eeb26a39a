package netinfo

import (
	"fmt"
	"net"
	"strings"

	"github.com/google/uuid"
)

// uuidPrefix is the fixed head of the UPnP UUID; the node part is the MAC.
const uuidPrefix = "2f402f80-da50-11e1-9b23-"

// Identity derives every MAC based identifier the bridge exposes.
type Identity struct {
	mac net.HardwareAddr
}

// NewIdentity wraps a 48-bit hardware address.
func NewIdentity(mac net.HardwareAddr) Identity {
	m := make(net.HardwareAddr, 6)
	copy(m, mac)
	return Identity{mac: m}
}

// MAC returns a copy of the hardware address.
func (i Identity) MAC() net.HardwareAddr {
	m := make(net.HardwareAddr, len(i.mac))
	copy(m, i.mac)
	return m
}

// MACHex is the lower-case MAC without separators, e.g. "aabbccddeeff".
func (i Identity) MACHex() string {
	return fmt.Sprintf("%02x%02x%02x%02x%02x%02x", i.mac[0], i.mac[1], i.mac[2], i.mac[3], i.mac[4], i.mac[5])
}

// BridgeID is the EUI-64 style id, e.g. "AABBCCFFFEDDEEFF".
func (i Identity) BridgeID() string {
	return fmt.Sprintf("%02X%02X%02XFFFE%02X%02X%02X", i.mac[0], i.mac[1], i.mac[2], i.mac[3], i.mac[4], i.mac[5])
}

// UUID is the UPnP device UUID.
func (i Identity) UUID() uuid.UUID {
	// The prefix and a 12 hex digit node always form a valid UUID.
	return uuid.MustParse(uuidPrefix + i.MACHex())
}

// LightID encodes a 1-based device index into the wire light id.
func (i Identity) LightID(index int) uint32 {
	return uint32(i.mac[3])<<20 | uint32(i.mac[4])<<12 | uint32(i.mac[5])<<4 | uint32(index&0xF)
}

// DecodeLightID returns the device index carried by a wire light id. Plain
// indices decode to themselves; 0 is the "all lights" sentinel.
func DecodeLightID(id uint32) int {
	return int(id & 0xF)
}

// UniqueID is the stable per-light id, e.g. "AA:BB:CC:DD:EE:FF:00:11-01".
func (i Identity) UniqueID(index int) string {
	return fmt.Sprintf("%s:00:11-%02X", strings.ToUpper(i.mac.String()), index&0xFF)
}
