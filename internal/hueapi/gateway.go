// Package hueapi implements the Hue REST surface of the bridge: request
// classification, light documents and the HTTP server.
package hueapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/huebridge/internal/device"
	"github.com/dokzlo13/huebridge/internal/dispatch"
	"github.com/dokzlo13/huebridge/internal/netinfo"
)

// DefaultUsername is handed out to every pairing client.
const DefaultUsername = "2WLEDHardQrI3WHYTHoMcXHgEspsM8ZZRpSKtBQr"

const contentTypeJSON = "application/json"

var (
	emptyObject    = []byte("{}")
	successEnvelop = []byte(`[{"success":true}]`)
)

// Response is a transport independent reply.
type Response struct {
	Status      int
	ContentType string
	Body        []byte
}

func jsonResponse(body []byte) Response {
	return Response{Status: http.StatusOK, ContentType: contentTypeJSON, Body: body}
}

// Applier applies a parsed state command to a device.
type Applier interface {
	Apply(id int, cmd dispatch.Command, source string) bool
}

// Gateway classifies Hue API requests and renders their replies.
type Gateway struct {
	registry *device.Registry
	applier  Applier
	identity netinfo.Identity
	username string
	legacy   bool
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithUsername sets the token returned on pairing.
func WithUsername(u string) Option {
	return func(g *Gateway) {
		if u != "" {
			g.username = u
		}
	}
}

// WithLegacySchema renders every light in the older flat document shape.
func WithLegacySchema(enabled bool) Option {
	return func(g *Gateway) { g.legacy = enabled }
}

// NewGateway creates a gateway reading from registry and writing through applier.
func NewGateway(registry *device.Registry, applier Applier, identity netinfo.Identity, opts ...Option) *Gateway {
	g := &Gateway{
		registry: registry,
		applier:  applier,
		identity: identity,
		username: DefaultUsername,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Handle answers one request. The status is always 200; failures show up
// only as an empty document.
func (g *Gateway) Handle(method, path string, body []byte) Response {
	segs := strings.Split(strings.Trim(path, "/"), "/")
	if len(segs) == 0 || segs[0] != "api" {
		return jsonResponse(emptyObject)
	}

	if hasDeviceType(body) || (method == http.MethodGet && len(segs) == 1) {
		log.Debug().Str("method", method).Str("path", path).Msg("Pairing request")
		return jsonResponse(g.pairing())
	}

	lights := -1
	for i, s := range segs[1:] {
		if s == "lights" {
			lights = i + 1
			break
		}
	}
	if lights < 0 {
		return jsonResponse(emptyObject)
	}
	rest := segs[lights+1:]

	if len(rest) == 0 {
		return jsonResponse(g.allLights())
	}

	wireID, err := strconv.ParseUint(rest[0], 10, 32)
	if err != nil {
		return jsonResponse(emptyObject)
	}
	index := netinfo.DecodeLightID(uint32(wireID))

	switch {
	case len(rest) == 2 && rest[1] == "state" && (method == http.MethodPut || method == http.MethodPost):
		// Clients expect success even for unknown lights.
		g.applier.Apply(index, dispatch.ParseCommand(body), dispatch.SourceAPI)
		return jsonResponse(successEnvelop)
	case len(rest) == 1 && index == 0:
		return jsonResponse(g.allLights())
	case len(rest) == 1:
		return jsonResponse(g.light(index))
	default:
		return jsonResponse(emptyObject)
	}
}

func (g *Gateway) pairing() []byte {
	b, _ := json.Marshal([]map[string]map[string]string{
		{"success": {"username": g.username}},
	})
	return b
}

// allLights renders every device in registry order. Keys are wire light ids
// (Identity.LightID), not the 1-based registry ids.
func (g *Gateway) allLights() []byte {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, s := range g.registry.Snapshots() {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(strconv.Quote(strconv.FormatUint(uint64(g.identity.LightID(s.ID)), 10)))
		buf.WriteByte(':')
		buf.Write(g.document(s))
	}
	buf.WriteByte('}')
	return buf.Bytes()
}

func (g *Gateway) light(index int) []byte {
	s, ok := g.registry.Snapshot(index)
	if !ok {
		return emptyObject
	}
	return g.document(s)
}

func (g *Gateway) document(s device.Snapshot) []byte {
	var v any
	if g.legacy {
		v = renderLegacy(s, g.identity)
	} else {
		v = Render(s, g.identity)
	}
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Int("device", s.ID).Msg("Failed to render light document")
		return emptyObject
	}
	return b
}

// hasDeviceType reports whether body is a JSON object with a "devicetype" key.
func hasDeviceType(body []byte) bool {
	if len(body) == 0 {
		return false
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(body, &m); err != nil {
		return false
	}
	_, ok := m["devicetype"]
	return ok
}
