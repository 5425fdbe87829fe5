package connectivity

import (
	"fmt"
	"net"

	"github.com/muurk/rover/internal/netif"
	"github.com/muurk/rover/internal/store"
)

// Namespace is the store namespace holding the connectivity settings.
const Namespace = "wifi_settings"

// Store keys.
const (
	KeySSID         = "ssid"
	KeyPassword     = "password"
	KeyAPSSID       = "ap_ssid"
	KeyAPPassword   = "ap_password"
	KeyUseStaticIP  = "use_static_ip"
	KeyUseMDNS      = "use_mDNS"
	KeyStaticIP     = "static_ip"
	KeyMDNSHostname = "mDNS_hostname"
	KeyServiceName  = "service_name"
)

// Config is the connectivity configuration. The manager owns the live copy;
// everyone else works on snapshots.
type Config struct {
	SSID     string
	Password string

	APSSID     string
	APPassword string

	UseStaticIP bool
	StaticIP    net.IP

	UseMDNS      bool
	MDNSHostname string
	ServiceName  string
}

// DefaultConfig returns the configuration used before anything is stored.
func DefaultConfig() Config {
	return Config{
		APSSID:       "rover-setup",
		UseMDNS:      true,
		MDNSHostname: "rover",
		ServiceName:  "Rover Control",
		StaticIP:     net.IPv4(192, 168, 1, 200).To4(),
	}
}

// clone returns a deep copy.
func (c Config) clone() Config {
	out := c
	if c.StaticIP != nil {
		out.StaticIP = append(net.IP(nil), c.StaticIP.To4()...)
	}
	return out
}

// Station returns the station association settings.
func (c Config) Station() netif.StationConfig {
	return netif.StationConfig{SSID: c.SSID, Password: c.Password}
}

// AP returns the soft access point settings.
func (c Config) AP() netif.APConfig {
	return netif.NewAPConfig(c.APSSID, c.APPassword)
}

// Addressing returns the station IPv4 policy.
func (c Config) Addressing() netif.Addressing {
	if c.UseStaticIP && c.StaticIP.To4() != nil {
		return netif.StaticAddressing(c.StaticIP)
	}
	return netif.DHCP()
}

// StaticIPString renders the static address in dotted-decimal.
func (c Config) StaticIPString() string {
	if c.StaticIP.To4() == nil {
		return "0.0.0.0"
	}
	return c.StaticIP.To4().String()
}

// LoadConfig overlays the values committed in h onto def.
func LoadConfig(h *store.Handle, def Config) Config {
	c := def.clone()
	c.SSID = h.GetString(KeySSID, c.SSID)
	c.Password = h.GetString(KeyPassword, c.Password)
	c.APSSID = h.GetString(KeyAPSSID, c.APSSID)
	c.APPassword = h.GetString(KeyAPPassword, c.APPassword)
	c.UseStaticIP = h.GetBool(KeyUseStaticIP, c.UseStaticIP)
	c.UseMDNS = h.GetBool(KeyUseMDNS, c.UseMDNS)
	c.StaticIP = netif.Uint32ToIPv4(h.GetUint32(KeyStaticIP, netif.IPv4ToUint32(c.StaticIP)))
	c.MDNSHostname = h.GetString(KeyMDNSHostname, c.MDNSHostname)
	c.ServiceName = h.GetString(KeyServiceName, c.ServiceName)
	return c
}

// PersistConfig writes every field of c whose value differs from the value
// committed in h, then commits. It returns the number of fields written;
// persisting an unchanged configuration writes nothing.
func PersistConfig(h *store.Handle, c Config) (int, error) {
	n := 0

	putString := func(key, v string) {
		if h.Has(key) && h.GetString(key, "") == v {
			return
		}
		h.SetString(key, v)
		n++
	}
	putBool := func(key string, v bool) {
		if h.Has(key) && h.GetBool(key, !v) == v {
			return
		}
		h.SetBool(key, v)
		n++
	}
	putUint32 := func(key string, v uint32) {
		if h.Has(key) && h.GetUint32(key, ^v) == v {
			return
		}
		h.SetUint32(key, v)
		n++
	}

	putString(KeySSID, c.SSID)
	putString(KeyPassword, c.Password)
	putString(KeyAPSSID, c.APSSID)
	putString(KeyAPPassword, c.APPassword)
	putBool(KeyUseStaticIP, c.UseStaticIP)
	putBool(KeyUseMDNS, c.UseMDNS)
	putUint32(KeyStaticIP, netif.IPv4ToUint32(c.StaticIP))
	putString(KeyMDNSHostname, c.MDNSHostname)
	putString(KeyServiceName, c.ServiceName)

	if n == 0 {
		return 0, nil
	}
	if err := h.Commit(); err != nil {
		return 0, fmt.Errorf("failed to persist connectivity config: %w", err)
	}
	return n, nil
}
