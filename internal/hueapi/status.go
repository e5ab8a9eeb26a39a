package hueapi

import (
	"fmt"
	"strings"
	"time"

	"github.com/dokzlo13/huebridge/internal/device"
)

// StatusPage renders the plain text diagnostics page.
func StatusPage(lights []device.Snapshot, uptime time.Duration) string {
	var b strings.Builder
	b.WriteString("huebridge\r\n\r\n")

	for _, s := range lights {
		fmt.Fprintf(&b, "Value of device %d (%s): %d (%s", s.ID, s.Name, s.Value, s.Capability.TypeName())
		if s.Capability.HasColorMode() {
			fmt.Fprintf(&b, ", colormode=%s, r=%d, g=%d, b=%d, ct=%d, hue=%d, sat=%d, x=%.4f, y=%.4f",
				colorMode(s), s.RGB.R, s.RGB.G, s.RGB.B, s.CT, s.Hue, s.Sat, s.X, s.Y)
		}
		b.WriteString(")\r\n")
	}

	total := int64(uptime.Seconds())
	days := total / 86400
	hours := total % 86400 / 3600
	minutes := total % 3600 / 60
	seconds := total % 60
	fmt.Fprintf(&b, "\r\nUptime: %d days, %d hours, %d minutes and %d seconds\r\n", days, hours, minutes, seconds)
	return b.String()
}
