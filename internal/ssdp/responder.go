package ssdp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync/atomic"

	"github.com/rs/zerolog/log"
	"golang.org/x/net/ipv4"

	"github.com/dokzlo13/huebridge/internal/netinfo"
)

// State of a Responder.
type State int32

const (
	StateStopped State = iota
	StateListening
)

func (s State) String() string {
	if s == StateListening {
		return "listening"
	}
	return "stopped"
}

const maxDatagram = 2048

// Responder runs the discovery receive loop.
type Responder struct {
	location string
	bridgeID string
	uuid     string

	state   atomic.Int32
	replies atomic.Uint64
}

// NewResponder creates a responder pointing clients at http://ip:port/description.xml.
func NewResponder(ip net.IP, port int, id netinfo.Identity) *Responder {
	return &Responder{
		location: "http://" + net.JoinHostPort(ip.String(), strconv.Itoa(port)) + "/description.xml",
		bridgeID: id.BridgeID(),
		uuid:     id.UUID().String(),
	}
}

// State returns the current state.
func (r *Responder) State() State { return State(r.state.Load()) }

// Replies returns the number of replies sent.
func (r *Responder) Replies() uint64 { return r.replies.Load() }

// Serve handles datagrams from conn one at a time until ctx is done, then
// closes conn. It returns nil on cancellation and the read error otherwise.
func (r *Responder) Serve(ctx context.Context, conn net.PacketConn) error {
	r.state.Store(int32(StateListening))
	defer r.state.Store(int32(StateStopped))

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
		case <-stop:
		}
		conn.Close()
	}()

	log.Info().Str("addr", conn.LocalAddr().String()).Msg("SSDP responder listening")

	buf := make([]byte, maxDatagram)
	for {
		n, addr, err := conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				log.Info().Msg("SSDP responder stopped")
				return nil
			}
			return fmt.Errorf("ssdp read: %w", err)
		}
		r.handle(conn, buf[:n], addr)
	}
}

func (r *Responder) handle(conn net.PacketConn, datagram []byte, addr net.Addr) {
	st, ok := Match(datagram)
	if !ok {
		return
	}

	if _, err := conn.WriteTo(Response(r.location, r.bridgeID, r.uuid, st), addr); err != nil {
		log.Warn().Err(err).Str("to", addr.String()).Msg("Failed to send SSDP reply")
		return
	}
	r.replies.Add(1)
	log.Debug().Str("to", addr.String()).Str("st", st).Msg("Answered M-SEARCH")
}

// Listen joins the multicast group on the named interface (all interfaces
// when empty). Multicast TTL is 32 and loopback is enabled so local clients
// see the bridge.
func Listen(group, ifaceName string) (net.PacketConn, error) {
	addr, err := net.ResolveUDPAddr("udp4", group)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", group, err)
	}

	var iface *net.Interface
	if ifaceName != "" {
		if iface, err = net.InterfaceByName(ifaceName); err != nil {
			return nil, fmt.Errorf("interface %s: %w", ifaceName, err)
		}
	}

	conn, err := net.ListenMulticastUDP("udp4", iface, addr)
	if err != nil {
		return nil, fmt.Errorf("join %s: %w", group, err)
	}

	pc := ipv4.NewPacketConn(conn)
	if err := pc.SetMulticastTTL(32); err != nil {
		log.Warn().Err(err).Msg("Failed to set multicast TTL")
	}
	if err := pc.SetMulticastLoopback(true); err != nil {
		log.Warn().Err(err).Msg("Failed to enable multicast loopback")
	}
	return conn, nil
}
