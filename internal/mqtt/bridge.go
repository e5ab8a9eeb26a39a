package mqtt

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/huebridge/internal/dispatch"
	"github.com/dokzlo13/huebridge/internal/eventbus"
	"github.com/dokzlo13/huebridge/internal/netinfo"
)

// Publisher publishes retained messages.
type Publisher interface {
	PublishRetained(topic string, payload []byte) error
}

// Applier applies light commands.
type Applier interface {
	Apply(id int, cmd dispatch.Command, source string) bool
}

// Bridge connects light events and commands to MQTT topics.
type Bridge struct {
	topics  Topics
	pub     Publisher
	applier Applier

	// mu serialises state publishes; published holds the newest sequence
	// number sent per light.
	mu        sync.Mutex
	published map[uint32]uint64
}

// NewBridge creates a bridge publishing through pub and applying commands
// through applier.
func NewBridge(topics Topics, pub Publisher, applier Applier) *Bridge {
	return &Bridge{
		topics:    topics,
		pub:       pub,
		applier:   applier,
		published: make(map[uint32]uint64),
	}
}

// HandleEvent publishes the state carried by a light.changed event. Events
// arrive from several bus workers; one older than the last state published
// for the light is dropped so the retained message never goes backwards.
func (b *Bridge) HandleEvent(e eventbus.Event) {
	lightID, ok := e.Data["light_id"].(uint32)
	if !ok {
		return
	}
	seq, _ := e.Data["seq"].(uint64)

	b.mu.Lock()
	defer b.mu.Unlock()

	if last, seen := b.published[lightID]; seen && seq <= last {
		log.Debug().Uint32("light_id", lightID).Uint64("seq", seq).Msg("Dropping stale light state")
		return
	}
	b.published[lightID] = seq

	payload, err := StatePayload(e)
	if err != nil {
		log.Error().Err(err).Msg("Failed to encode light state")
		return
	}
	if err := b.pub.PublishRetained(b.topics.LightState(lightID), payload); err != nil {
		log.Warn().Err(err).Uint32("light_id", lightID).Msg("Failed to publish light state")
	}
}

// HandleSet applies a command received on a light's set topic.
func (b *Bridge) HandleSet(topic string, payload []byte) error {
	lightID, err := b.topics.ParseLightSet(topic)
	if err != nil {
		return fmt.Errorf("%s: %w", topic, err)
	}

	cmd := dispatch.ParseCommand(payload)
	if cmd.Empty() {
		return fmt.Errorf("%s: no recognised keys in payload", topic)
	}

	index := netinfo.DecodeLightID(lightID)
	if !b.applier.Apply(index, cmd, dispatch.SourceMQTT) {
		log.Debug().Str("topic", topic).Msg("MQTT command changed nothing")
	}
	return nil
}

// StatePayload encodes an event as the retained state message.
func StatePayload(e eventbus.Event) ([]byte, error) {
	msg := make(map[string]any, len(e.Data)+1)
	for k, v := range e.Data {
		msg[k] = v
	}
	msg["timestamp"] = e.Time.UTC().Format("2006-01-02T15:04:05.000Z07:00")
	return json.Marshal(msg)
}
