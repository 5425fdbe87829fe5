package settings

import (
	"fmt"
	"net"
	"time"
	"unicode/utf8"
)

// CurrentVersion is the only file version this package reads.
const CurrentVersion = 1

// Store backends accepted in StoreSettings.Backend.
const (
	BackendYAML   = "yaml"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// Settings is the whole daemon configuration file.
type Settings struct {
	Version   int               `yaml:"version"`
	HTTP      HTTPSettings      `yaml:"http"`
	AP        APSettings        `yaml:"ap"`
	Reconnect ReconnectSettings `yaml:"reconnect"`
	Control   ControlSettings   `yaml:"control"`
	Store     StoreSettings     `yaml:"store"`
	Log       LogSettings       `yaml:"log"`
	Simulate  bool              `yaml:"simulate"` // Drive a simulated radio and actuators
}

// HTTPSettings holds the listener addresses.
type HTTPSettings struct {
	Listen    string `yaml:"listen"`     // Station and provisioning HTTP server
	DNSListen string `yaml:"dns_listen"` // Captive DNS, CaptiveAP mode only
}

// APSettings is the soft access point used for provisioning.
type APSettings struct {
	IP       string `yaml:"ip"` // Answer for every captive DNS query
	SSID     string `yaml:"ssid"`
	Password string `yaml:"password,omitempty"` // Empty means open auth
}

// ReconnectSettings tunes the station reconnect policy.
type ReconnectSettings struct {
	Threshold      int           `yaml:"threshold"`       // Disconnects before falling back to the AP
	Backoff        time.Duration `yaml:"backoff"`         // Wait before each retry
	ConfirmTimeout time.Duration `yaml:"confirm_timeout"` // Wait for the disconnect to be confirmed
}

// ControlSettings tunes the control channel.
type ControlSettings struct {
	TimeoutMS    int           `yaml:"timeout_ms"`    // Default watchdog period
	RestartDelay time.Duration `yaml:"restart_delay"` // Between the /restart response and the restart
}

// StoreSettings selects the configuration store backend.
type StoreSettings struct {
	Backend string `yaml:"backend"`
	Path    string `yaml:"path,omitempty"` // Empty uses DefaultStorePath
}

// LogSettings configures logging.
type LogSettings struct {
	Level string `yaml:"level"`
	File  string `yaml:"file,omitempty"`
}

// NewSettings returns the defaults.
func NewSettings() *Settings {
	return &Settings{
		Version: CurrentVersion,
		HTTP: HTTPSettings{
			Listen:    ":80",
			DNSListen: ":53",
		},
		AP: APSettings{
			IP:   "192.168.4.1",
			SSID: "rover-setup",
		},
		Reconnect: ReconnectSettings{
			Threshold:      5,
			ConfirmTimeout: 5 * time.Second,
		},
		Control: ControlSettings{
			TimeoutMS:    1000,
			RestartDelay: time.Second,
		},
		Store: StoreSettings{
			Backend: BackendYAML,
		},
		Log: LogSettings{
			Level: "info",
		},
	}
}

// ControlTimeout returns the control timeout as a duration.
func (s *Settings) ControlTimeout() time.Duration {
	return time.Duration(s.Control.TimeoutMS) * time.Millisecond
}

// Validate returns an error naming the first invalid field.
func (s *Settings) Validate() error {
	if s.Version != CurrentVersion {
		return fmt.Errorf("version: unsupported %d (expected %d)", s.Version, CurrentVersion)
	}
	if _, _, err := net.SplitHostPort(s.HTTP.Listen); err != nil {
		return fmt.Errorf("http.listen: %w", err)
	}
	if _, _, err := net.SplitHostPort(s.HTTP.DNSListen); err != nil {
		return fmt.Errorf("http.dns_listen: %w", err)
	}
	if ip := net.ParseIP(s.AP.IP); ip == nil || ip.To4() == nil {
		return fmt.Errorf("ap.ip: %q is not an IPv4 address", s.AP.IP)
	}
	if n := len(s.AP.SSID); n == 0 || n > 32 {
		return fmt.Errorf("ap.ssid: must be 1-32 bytes, got %d", n)
	}
	if n := utf8.RuneCountInString(s.AP.Password); n != 0 && (n < 8 || n > 63) {
		return fmt.Errorf("ap.password: must be empty or 8-63 characters, got %d", n)
	}
	if s.Reconnect.Threshold < 1 {
		return fmt.Errorf("reconnect.threshold: must be at least 1, got %d", s.Reconnect.Threshold)
	}
	if s.Reconnect.Backoff < 0 {
		return fmt.Errorf("reconnect.backoff: must not be negative")
	}
	if s.Reconnect.ConfirmTimeout <= 0 {
		return fmt.Errorf("reconnect.confirm_timeout: must be positive")
	}
	if s.Control.TimeoutMS < 1 || s.Control.TimeoutMS > 32767 {
		return fmt.Errorf("control.timeout_ms: must be 1-32767, got %d", s.Control.TimeoutMS)
	}
	if s.Control.RestartDelay < 0 {
		return fmt.Errorf("control.restart_delay: must not be negative")
	}
	switch s.Store.Backend {
	case BackendYAML, BackendSQLite, BackendMemory:
	default:
		return fmt.Errorf("store.backend: unknown %q", s.Store.Backend)
	}
	switch s.Log.Level {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("log.level: unknown %q", s.Log.Level)
	}
	return nil
}
