// Package ssdp answers SSDP M-SEARCH requests so that clients can find the
// bridge description document.
package ssdp

import (
	"bytes"
	"fmt"
	"strings"
)

// Search targets the bridge answers to.
const (
	TargetRootDevice  = "upnp:rootdevice"
	TargetBasicDevice = "urn:schemas-upnp-org:device:basic:1"
)

// DefaultGroup is the SSDP multicast group.
const DefaultGroup = "239.255.255.250:1900"

// ServerHeader impersonates the bridge firmware.
const ServerHeader = "FreeRTOS/6.0.5, UPnP/1.0, IpBridge/1.17.0"

// Match reports whether datagram is an M-SEARCH for a target the bridge
// serves, and returns the target to echo back.
func Match(datagram []byte) (string, bool) {
	if !bytes.Contains(datagram, []byte("M-SEARCH")) {
		return "", false
	}

	if st, ok := header(datagram, "ST"); ok && served(st) {
		return st, true
	}

	// Some clients put the target elsewhere or mangle the header line.
	lower := bytes.ToLower(datagram)
	switch {
	case bytes.Contains(lower, []byte(TargetRootDevice)):
		return TargetRootDevice, true
	case bytes.Contains(lower, []byte("asic:1")):
		return TargetBasicDevice, true
	}
	return "", false
}

func served(st string) bool {
	st = strings.ToLower(st)
	return strings.Contains(st, TargetRootDevice) || strings.Contains(st, "asic:1")
}

// header returns the value of the first header line named name.
func header(datagram []byte, name string) (string, bool) {
	for _, line := range strings.Split(string(datagram), "\n") {
		k, v, ok := strings.Cut(line, ":")
		if !ok || !strings.EqualFold(strings.TrimSpace(k), name) {
			continue
		}
		if v = strings.TrimSpace(v); v != "" {
			return v, true
		}
	}
	return "", false
}

// Response builds the unicast reply for the matched search target st.
func Response(location, bridgeID, uuid, st string) []byte {
	var b strings.Builder
	b.WriteString("HTTP/1.1 200 OK\r\n")
	b.WriteString("EXT:\r\n")
	b.WriteString("CACHE-CONTROL: max-age=100\r\n")
	fmt.Fprintf(&b, "LOCATION: %s\r\n", location)
	fmt.Fprintf(&b, "SERVER: %s\r\n", ServerHeader)
	fmt.Fprintf(&b, "hue-bridgeid: %s\r\n", bridgeID)
	fmt.Fprintf(&b, "ST: %s\r\n", st)
	fmt.Fprintf(&b, "USN: uuid:%s::%s\r\n", uuid, st)
	b.WriteString("\r\n")
	return []byte(b.String())
}
