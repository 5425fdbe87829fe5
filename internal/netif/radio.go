package netif

import (
	"context"
	"encoding/binary"
	"fmt"
	"net"
)

// EventKind identifies a network-stack event.
type EventKind int

const (
	StationConnected EventKind = iota + 1
	StationDisconnected
	GotIP
	APStarted
	APClientJoined
)

// String returns the event name used in logs.
func (k EventKind) String() string {
	switch k {
	case StationConnected:
		return "station_connected"
	case StationDisconnected:
		return "station_disconnected"
	case GotIP:
		return "got_ip"
	case APStarted:
		return "ap_started"
	case APClientJoined:
		return "ap_client_joined"
	default:
		return fmt.Sprintf("event(%d)", int(k))
	}
}

// Event is delivered to subscribers from the radio's own callback context.
type Event struct {
	Kind   EventKind
	SSID   string
	IP     net.IP
	Reason string
}

// StationConfig is the client-side association configuration.
type StationConfig struct {
	SSID     string
	Password string
}

// APConfig describes the soft access point.
type APConfig struct {
	SSID           string
	Password       string
	Channel        int
	MaxConnections int
}

// NewAPConfig returns an AP configuration with the daemon defaults
// (channel 1, up to four stations).
func NewAPConfig(ssid, password string) APConfig {
	return APConfig{
		SSID:           ssid,
		Password:       password,
		Channel:        1,
		MaxConnections: 4,
	}
}

// Open reports whether the access point runs without authentication.
func (c APConfig) Open() bool {
	return c.Password == ""
}

// AuthMode returns the authentication label for logs.
func (c APConfig) AuthMode() string {
	if c.Open() {
		return "open"
	}
	return "wpa2_psk"
}

// Addressing is the station IPv4 policy.
type Addressing struct {
	Static  bool
	IP      net.IP
	Gateway net.IP
	Netmask net.IPMask
}

// DHCP returns a dynamic addressing policy.
func DHCP() Addressing {
	return Addressing{}
}

// StaticAddressing derives a /24 policy from ip: the gateway is the network
// base plus one.
func StaticAddressing(ip net.IP) Addressing {
	v4 := ip.To4()
	gw := make(net.IP, net.IPv4len)
	copy(gw, v4)
	gw[3] = 1
	return Addressing{
		Static:  true,
		IP:      v4,
		Gateway: gw,
		Netmask: net.IPv4Mask(255, 255, 255, 0),
	}
}

// String renders the policy for logs.
func (a Addressing) String() string {
	if !a.Static {
		return "dhcp"
	}
	return fmt.Sprintf("static %s gw %s mask %s", a.IP, a.Gateway, net.IP(a.Netmask))
}

// AccessPoint is one scan result.
type AccessPoint struct {
	SSID    string
	RSSI    int
	Channel int
	Secure  bool
}

// Radio is the wireless interface driver. Implementations deliver events to
// subscribers asynchronously; subscribers must not block.
type Radio interface {
	ConfigureStation(StationConfig) error
	ConfigureAP(APConfig) error
	SetAddressing(Addressing) error

	// StartStation starts the radio as a client and begins associating.
	StartStation() error
	// StartAPStation starts the access point with the station interface enabled.
	StartAPStation() error
	Stop() error

	// Disconnect drops the current association.
	Disconnect() error
	// Connect starts an association attempt and returns immediately.
	Connect() error

	// Scan performs a blocking active scan, hidden networks included.
	Scan(ctx context.Context) ([]AccessPoint, error)

	SetPowerSave(enabled bool) error
	Subscribe(func(Event))
	LocalIP() net.IP
}

// IPv4ToUint32 packs an IPv4 address in network byte order.
func IPv4ToUint32(ip net.IP) uint32 {
	v4 := ip.To4()
	if v4 == nil {
		return 0
	}
	return binary.BigEndian.Uint32(v4)
}

// Uint32ToIPv4 is the inverse of IPv4ToUint32.
func Uint32ToIPv4(n uint32) net.IP {
	ip := make(net.IP, net.IPv4len)
	binary.BigEndian.PutUint32(ip, n)
	return ip
}
