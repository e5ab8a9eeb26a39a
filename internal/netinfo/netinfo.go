// Package netinfo resolves the local address and hardware identity the
// bridge advertises.
package netinfo

import (
	"errors"
	"fmt"
	"net"

	"github.com/rs/zerolog/log"
)

// Host gives the local IPv4 address and hardware address of the machine.
type Host interface {
	LocalIP() net.IP
	HardwareAddr() net.HardwareAddr
}

// Static is a Host with fixed values.
type Static struct {
	IP  net.IP
	MAC net.HardwareAddr
}

// LocalIP implements Host.
func (s Static) LocalIP() net.IP { return s.IP }

// HardwareAddr implements Host.
func (s Static) HardwareAddr() net.HardwareAddr { return s.MAC }

// ErrNoHardwareAddr is returned when no usable interface has a MAC address.
var ErrNoHardwareAddr = errors.New("no hardware address found")

// Detect resolves the host identity. Non-empty overrides win over discovery.
func Detect(advertiseIP, mac string) (Static, error) {
	var s Static

	if advertiseIP != "" {
		ip := net.ParseIP(advertiseIP).To4()
		if ip == nil {
			return s, fmt.Errorf("invalid advertise ip %q", advertiseIP)
		}
		s.IP = ip
	} else {
		s.IP = outboundIP()
	}

	if mac != "" {
		hw, err := net.ParseMAC(mac)
		if err != nil {
			return s, fmt.Errorf("invalid mac %q: %w", mac, err)
		}
		if len(hw) != 6 {
			return s, fmt.Errorf("mac %q is not 48 bits", mac)
		}
		s.MAC = hw
	} else {
		hw, err := firstHardwareAddr()
		if err != nil {
			return s, err
		}
		s.MAC = hw
	}

	log.Debug().Str("ip", s.IP.String()).Str("mac", s.MAC.String()).Msg("Resolved host identity")
	return s, nil
}

// outboundIP returns the address the kernel would route external traffic
// from. Connecting a UDP socket sends nothing.
func outboundIP() net.IP {
	conn, err := net.Dial("udp4", "192.0.2.1:9")
	if err != nil {
		log.Warn().Err(err).Msg("Could not determine local IP, falling back to loopback")
		return net.IPv4(127, 0, 0, 1).To4()
	}
	defer conn.Close()

	if addr, ok := conn.LocalAddr().(*net.UDPAddr); ok {
		if ip := addr.IP.To4(); ip != nil {
			return ip
		}
	}
	return net.IPv4(127, 0, 0, 1).To4()
}

func firstHardwareAddr() (net.HardwareAddr, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("list interfaces: %w", err)
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		if len(iface.HardwareAddr) == 6 {
			return iface.HardwareAddr, nil
		}
	}
	return nil, ErrNoHardwareAddr
}
