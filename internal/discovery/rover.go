package discovery

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

// Rover is a rover found on the local network.
type Rover struct {
	// Name is the advertised service instance (the configured service name).
	Name string

	// Hostname is the mDNS hostname (e.g. "rover.local.")
	Hostname string

	// IP is the IPv4 address when one was advertised, IPv6 otherwise.
	IP string

	// Port is the HTTP port (typically 80)
	Port int

	// Firmware is the "fw" TXT value.
	Firmware string

	// Metadata holds every TXT record ("path=/", "model=rover", ...)
	Metadata map[string]string

	DiscoveredAt time.Time
}

// String returns a human-readable description.
func (r *Rover) String() string {
	return fmt.Sprintf("Rover %q (%s) at %s", r.Name, r.Hostname, r.Addr())
}

// Addr returns host:port, bracketing IPv6 addresses.
func (r *Rover) Addr() string {
	return net.JoinHostPort(r.IP, strconv.Itoa(r.Port))
}

// BaseURL returns the HTTP base URL.
func (r *Rover) BaseURL() string {
	return "http://" + r.Addr()
}

// GetMetadata returns a TXT value, or "" if absent.
func (r *Rover) GetMetadata(key string) string {
	if r.Metadata == nil {
		return ""
	}
	return r.Metadata[key]
}
