package main

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"

	"github.com/dokzlo13/huebridge/internal/app"
	"github.com/dokzlo13/huebridge/internal/config"
)

func TestLogIdentity(t *testing.T) {
	cfg, err := config.Parse([]byte(`
bridge:
  port: 8080
  advertise_ip: 10.1.2.3
  mac: aa:bb:cc:dd:ee:ff
discovery:
  enabled: false
devices:
  - {name: Kitchen, type: dimmable}
`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	a, err := app.New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	var buf bytes.Buffer
	logIdentity(zerolog.New(&buf), cfg, a.Services())

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log line %q: %v", buf.String(), err)
	}

	tests := []struct {
		field string
		want  any
	}{
		{"advertise_ip", "10.1.2.3"},
		{"mac", "aa:bb:cc:dd:ee:ff"},
		{"bridge_id", "AABBCCFFFEDDEEFF"},
		{"uuid", "2f402f80-da50-11e1-9b23-aabbccddeeff"},
		{"http", "0.0.0.0:8080"},
		{"lights", float64(1)},
		{"ssdp", false},
	}
	for _, tt := range tests {
		if entry[tt.field] != tt.want {
			t.Errorf("%s = %v, want %v", tt.field, entry[tt.field], tt.want)
		}
	}
}

func TestSetupLoggingLevel(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	tests := []struct {
		level string
		want  zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"warn", zerolog.WarnLevel},
		{"bogus", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		setupLogging(tt.level, true, false)
		if got := zerolog.GlobalLevel(); got != tt.want {
			t.Errorf("setupLogging(%q) level = %v, want %v", tt.level, got, tt.want)
		}
	}
}
