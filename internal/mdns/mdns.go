// Package mdns advertises the bridge as a _hue._tcp service so that Hue apps
// browsing DNS-SD find it.
package mdns

import (
	"context"
	"fmt"
	"strings"

	"github.com/grandcat/zeroconf"
	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/huebridge/internal/netinfo"
)

const (
	ServiceType = "_hue._tcp"
	Domain      = "local."

	// ModelID is the model of a square second generation bridge.
	ModelID = "BSB002"
)

// Instance is the advertised instance name, e.g. "Philips Hue - DDEEFF".
func Instance(id netinfo.Identity) string {
	bid := id.BridgeID()
	return "Philips Hue - " + bid[len(bid)-6:]
}

// TXT returns the TXT records of the service.
func TXT(id netinfo.Identity) []string {
	return []string{
		"bridgeid=" + strings.ToLower(id.BridgeID()),
		"modelid=" + ModelID,
	}
}

// Run registers the service and keeps it announced until ctx is done.
func Run(ctx context.Context, port int, id netinfo.Identity) error {
	server, err := zeroconf.Register(Instance(id), ServiceType, Domain, port, TXT(id), nil)
	if err != nil {
		return fmt.Errorf("register %s: %w", ServiceType, err)
	}

	log.Info().
		Str("instance", Instance(id)).
		Str("service", ServiceType).
		Int("port", port).
		Msg("mDNS advertisement started")

	<-ctx.Done()
	server.Shutdown()
	log.Info().Msg("mDNS advertisement stopped")
	return nil
}
