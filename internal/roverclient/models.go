package roverclient

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
)

// Servo names used as keys in Status.Limits.
const (
	ServoSteering = "steering"
	ServoAux      = "aux"
)

// Status is the rover's /data.json report.
type Status struct {
	UptimeMS        int64                  `json:"uptime_ms"`
	FreeMemory      uint64                 `json:"free_memory"`
	TotalMemory     uint64                 `json:"total_memory"`
	FirmwareVersion string                 `json:"firmware_version"`
	LocalIP         string                 `json:"local_ip"`
	Connected       bool                   `json:"connected"`
	SessionID       string                 `json:"session_id"`
	TimeoutMS       int64                  `json:"timeout_ms"`
	Setpoints       Setpoints              `json:"setpoints"`
	Limits          map[string]ServoLimits `json:"limits"`
}

// Setpoints are the last commanded actuator values.
type Setpoints struct {
	Speed    int `json:"speed"`
	Steering int `json:"steering"`
	Aux      int `json:"aux"`
}

// ServoLimits is one servo's calibration.
type ServoLimits struct {
	MinPW  int `json:"min_pw"`
	MaxPW  int `json:"max_pw"`
	MinDeg int `json:"min_deg"`
	MaxDeg int `json:"max_deg"`
}

// Connectivity is the rover's /captive.json report.
type Connectivity struct {
	SSID         string `json:"ssid"`
	Password     string `json:"password"`
	APSSID       string `json:"ap_ssid"`
	APPassword   string `json:"ap_password"`
	UseStaticIP  bool   `json:"use_static_ip"`
	UseMDNS      bool   `json:"use_mDNS"`
	StaticIP     string `json:"static_ip"`
	MDNSHostname string `json:"mDNS_hostname"`
	ServiceName  string `json:"service_name"`
}

// Network is one /scan.json entry. Hidden networks have an empty SSID.
type Network struct {
	SSID           string `json:"ssid"`
	SignalStrength int    `json:"signal_strength"`
}

// WiFiSettings is a provisioning submission. It is sent in full: unchecked
// booleans are omitted from the form, which the rover reads as false.
type WiFiSettings struct {
	SSID         string
	Password     string // Empty keeps the stored password
	UseStaticIP  bool
	StaticIP     string
	UseMDNS      bool
	MDNSHostname string
	ServiceName  string
}

// WiFiSettingsFrom returns the settings currently reported by the rover, so
// callers can change single fields.
func WiFiSettingsFrom(c *Connectivity) WiFiSettings {
	return WiFiSettings{
		SSID:         c.SSID,
		UseStaticIP:  c.UseStaticIP,
		StaticIP:     c.StaticIP,
		UseMDNS:      c.UseMDNS,
		MDNSHostname: c.MDNSHostname,
		ServiceName:  c.ServiceName,
	}
}

// ToFormData encodes the settings as the provisioning form.
func (w *WiFiSettings) ToFormData() url.Values {
	form := url.Values{}
	form.Set("ssid", w.SSID)
	form.Set("password", w.Password)
	if w.StaticIP != "" {
		form.Set("static_ip", w.StaticIP)
	}
	if w.UseStaticIP {
		form.Set("use_static_ip", "on")
	}
	if w.UseMDNS {
		form.Set("use_mDNS", "on")
	}
	if w.MDNSHostname != "" {
		form.Set("mDNS_hostname", w.MDNSHostname)
	}
	if w.ServiceName != "" {
		form.Set("service_name", w.ServiceName)
	}
	return form
}

// Range is an inclusive min,max pair.
type Range struct {
	Min int
	Max int
}

func (r Range) String() string {
	return strconv.Itoa(r.Min) + "," + strconv.Itoa(r.Max)
}

// ParseRange parses "min,max".
func ParseRange(s string) (Range, error) {
	var r Range
	if _, err := fmt.Sscanf(s, "%d,%d", &r.Min, &r.Max); err != nil {
		return Range{}, NewValidationError(fmt.Sprintf("invalid range %q (want min,max)", s))
	}
	return r, nil
}

// ServoCalibration changes one servo. Nil ranges are left unchanged.
type ServoCalibration struct {
	PulseWidth *Range
	Degrees    *Range
}

// Calibration is a calibration form submission, keyed by servo name.
type Calibration map[string]ServoCalibration

// ToFormData encodes the calibration form fields ("steering_pw", ...).
func (c Calibration) ToFormData() url.Values {
	form := url.Values{}
	names := make([]string, 0, len(c))
	for name := range c {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		sc := c[name]
		if sc.PulseWidth != nil {
			form.Set(name+"_pw", sc.PulseWidth.String())
		}
		if sc.Degrees != nil {
			form.Set(name+"_deg", sc.Degrees.String())
		}
	}
	return form
}
