package mqtt

import (
	"strconv"
	"strings"
)

// Topics builds the topic names under a prefix.
//
//	<prefix>/status                  online/offline, retained, LWT
//	<prefix>/lights/<lightid>/state  retained light state
//	<prefix>/lights/<lightid>/set    commands
type Topics struct {
	Prefix string
}

// Status is the bridge availability topic.
func (t Topics) Status() string {
	return t.Prefix + "/status"
}

// LightState is the retained state topic of one light.
func (t Topics) LightState(lightID uint32) string {
	return t.Prefix + "/lights/" + strconv.FormatUint(uint64(lightID), 10) + "/state"
}

// AllLightSets matches the command topic of every light.
func (t Topics) AllLightSets() string {
	return t.Prefix + "/lights/+/set"
}

// ParseLightSet extracts the light id from a command topic.
func (t Topics) ParseLightSet(topic string) (uint32, error) {
	rest, ok := strings.CutPrefix(topic, t.Prefix+"/lights/")
	if !ok {
		return 0, ErrInvalidTopic
	}
	id, ok := strings.CutSuffix(rest, "/set")
	if !ok || id == "" || strings.Contains(id, "/") {
		return 0, ErrInvalidTopic
	}
	n, err := strconv.ParseUint(id, 10, 32)
	if err != nil {
		return 0, ErrInvalidTopic
	}
	return uint32(n), nil
}
