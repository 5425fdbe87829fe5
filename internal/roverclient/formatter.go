package roverclient

import (
	"fmt"
	"strings"
	"time"
)

// Summary returns a one-line summary of the rover.
func (s *Status) Summary() string {
	state := "offline"
	if s.Connected {
		state = "online"
	}
	return fmt.Sprintf("Rover @ %s (FW: %s, %s, up %s)", s.LocalIP, s.FirmwareVersion, state, s.Uptime())
}

// Uptime returns the uptime rounded to seconds.
func (s *Status) Uptime() time.Duration {
	return (time.Duration(s.UptimeMS) * time.Millisecond).Round(time.Second)
}

// FormatStatus returns system and actuator state.
func (s *Status) FormatStatus() string {
	var b strings.Builder

	b.WriteString("=== System ===\n")
	b.WriteString(fmt.Sprintf("Firmware:   %s\n", s.FirmwareVersion))
	b.WriteString(fmt.Sprintf("Address:    %s\n", s.LocalIP))
	b.WriteString(fmt.Sprintf("Connected:  %v\n", s.Connected))
	b.WriteString(fmt.Sprintf("Uptime:     %s\n", s.Uptime()))
	b.WriteString(fmt.Sprintf("Memory:     %d / %d KiB free\n", s.FreeMemory/1024, s.TotalMemory/1024))
	b.WriteString("\n")

	b.WriteString("=== Control ===\n")
	session := s.SessionID
	if session == "" {
		session = "(none)"
	}
	b.WriteString(fmt.Sprintf("Session:    %s\n", session))
	b.WriteString(fmt.Sprintf("Timeout:    %dms\n", s.TimeoutMS))
	b.WriteString(fmt.Sprintf("Speed:      %d\n", s.Setpoints.Speed))
	b.WriteString(fmt.Sprintf("Steering:   %d°\n", s.Setpoints.Steering))
	b.WriteString(fmt.Sprintf("Aux:        %d°\n", s.Setpoints.Aux))
	b.WriteString("\n")

	b.WriteString("=== Calibration ===\n")
	for _, name := range []string{ServoSteering, ServoAux} {
		l, ok := s.Limits[name]
		if !ok {
			continue
		}
		b.WriteString(fmt.Sprintf("%-10s  %d-%dus over %d..%d°\n", name+":", l.MinPW, l.MaxPW, l.MinDeg, l.MaxDeg))
	}
	return b.String()
}

// FormatConnectivity returns the stored Wi-Fi settings with passwords masked.
func (c *Connectivity) FormatConnectivity() string {
	var b strings.Builder

	b.WriteString("=== WiFi ===\n")
	b.WriteString(fmt.Sprintf("SSID:        %s\n", orNone(c.SSID)))
	b.WriteString(fmt.Sprintf("Password:    %s\n", mask(c.Password)))
	if c.UseStaticIP {
		b.WriteString(fmt.Sprintf("Addressing:  static %s\n", c.StaticIP))
	} else {
		b.WriteString("Addressing:  DHCP\n")
	}
	b.WriteString("\n")

	b.WriteString("=== Setup Access Point ===\n")
	b.WriteString(fmt.Sprintf("SSID:        %s\n", c.APSSID))
	b.WriteString(fmt.Sprintf("Password:    %s\n", mask(c.APPassword)))
	b.WriteString("\n")

	b.WriteString("=== mDNS ===\n")
	if c.UseMDNS {
		b.WriteString(fmt.Sprintf("Hostname:    %s.local\n", c.MDNSHostname))
		b.WriteString(fmt.Sprintf("Service:     %s\n", c.ServiceName))
	} else {
		b.WriteString("Disabled\n")
	}
	return b.String()
}

// FormatDetailed returns status and connectivity together.
func FormatDetailed(s *Status, c *Connectivity) string {
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString("╔════════════════════════════════════════════════════════════════╗\n")
	b.WriteString("║                      ROVER CONFIGURATION                       ║\n")
	b.WriteString("╚════════════════════════════════════════════════════════════════╝\n")
	b.WriteString("\n")
	if s != nil {
		b.WriteString(s.FormatStatus())
		b.WriteString("\n")
	}
	if c != nil {
		b.WriteString(c.FormatConnectivity())
	}
	return b.String()
}

// FormatSignal renders an RSSI as a 4-step bar.
func FormatSignal(rssi int) string {
	bars := 0
	switch {
	case rssi >= -55:
		bars = 4
	case rssi >= -67:
		bars = 3
	case rssi >= -75:
		bars = 2
	case rssi >= -85:
		bars = 1
	}
	return strings.Repeat("▮", bars) + strings.Repeat("▯", 4-bars)
}

func mask(secret string) string {
	if secret == "" {
		return "(none)"
	}
	return strings.Repeat("*", len(secret))
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}
