package connectivity

import (
	"net"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/muurk/rover/internal/events"
	"github.com/muurk/rover/internal/logging"
)

// Provisioning form field names. They match the store keys.
const (
	FieldSSID         = KeySSID
	FieldPassword     = KeyPassword
	FieldAPSSID       = KeyAPSSID
	FieldAPPassword   = KeyAPPassword
	FieldUseStaticIP  = KeyUseStaticIP
	FieldStaticIP     = KeyStaticIP
	FieldUseMDNS      = KeyUseMDNS
	FieldMDNSHostname = KeyMDNSHostname
	FieldServiceName  = KeyServiceName
)

const (
	maxSSIDLen       = 32
	maxPassphraseLen = 63
	maxNameLen       = 63
)

// Changes describes what a provisioning submission changed.
type Changes struct {
	// Fields lists the changed fields in form order.
	Fields []string

	// Reconnect is set when a station association or addressing field changed.
	Reconnect bool

	// MDNS is set when the responder must be restarted or stopped.
	MDNS bool

	// Requested are the transition bits raised for the Run loop.
	Requested events.Bits
}

// checked reports checkbox state. Browsers omit unchecked boxes entirely.
func checked(form url.Values, field string) bool {
	if _, ok := form[field]; !ok {
		return false
	}
	switch strings.ToLower(form.Get(field)) {
	case "true", "on", "1", "yes":
		return true
	}
	return false
}

// text returns the submitted value of field when present and within limit.
func text(form url.Values, field string, limit int) (string, bool) {
	if _, ok := form[field]; !ok {
		return "", false
	}
	v := form.Get(field)
	if len(v) > limit {
		logging.Warn("Ignoring oversized provisioning field",
			zap.String("field", field),
			zap.Int("length", len(v)),
		)
		return "", false
	}
	return v, true
}

// diffForm applies form to c and reports the changed categories.
func diffForm(c *Config, form url.Values) Changes {
	var ch Changes
	if len(form) == 0 {
		return ch
	}
	changed := func(field string) { ch.Fields = append(ch.Fields, field) }

	if v, ok := text(form, FieldSSID, maxSSIDLen); ok && v != c.SSID {
		c.SSID = v
		ch.Reconnect = true
		changed(FieldSSID)
	}
	if v, ok := text(form, FieldPassword, maxPassphraseLen); ok && v != "" && v != c.Password {
		c.Password = v
		ch.Reconnect = true
		changed(FieldPassword)
	}
	if v, ok := text(form, FieldAPSSID, maxSSIDLen); ok && v != "" && v != c.APSSID {
		c.APSSID = v
		changed(FieldAPSSID)
	}
	if v, ok := text(form, FieldAPPassword, maxPassphraseLen); ok && v != c.APPassword {
		c.APPassword = v
		changed(FieldAPPassword)
	}

	if v := checked(form, FieldUseStaticIP); v != c.UseStaticIP {
		c.UseStaticIP = v
		ch.Reconnect = true
		changed(FieldUseStaticIP)
	}
	if v, ok := text(form, FieldStaticIP, len("255.255.255.255")); ok {
		if ip := net.ParseIP(strings.TrimSpace(v)).To4(); ip != nil && !ip.Equal(c.StaticIP) {
			c.StaticIP = ip
			if c.UseStaticIP {
				ch.Reconnect = true
			}
			changed(FieldStaticIP)
		}
	}

	if v := checked(form, FieldUseMDNS); v != c.UseMDNS {
		c.UseMDNS = v
		ch.MDNS = true
		changed(FieldUseMDNS)
	}
	if v, ok := text(form, FieldMDNSHostname, maxNameLen); ok && v != "" && v != c.MDNSHostname {
		c.MDNSHostname = v
		if c.UseMDNS {
			ch.MDNS = true
		}
		changed(FieldMDNSHostname)
	}
	if v, ok := text(form, FieldServiceName, maxNameLen); ok && v != "" && v != c.ServiceName {
		c.ServiceName = v
		if c.UseMDNS {
			ch.MDNS = true
		}
		changed(FieldServiceName)
	}
	return ch
}

// ApplyProvisioning merges a submitted provisioning form into the live
// configuration, persists it and requests the transitions the change needs.
// In Station mode that is Reconnect and/or MdnsChanged; in CaptiveAP mode a
// configured SSID requests SwitchToStation. A store failure is returned but
// the new configuration stays in effect.
func (m *Manager) ApplyProvisioning(form url.Values) (Changes, error) {
	var ch Changes
	cfg := m.Update(func(c *Config) {
		ch = diffForm(c, form)
	})

	_, err := m.Persist()

	switch m.Mode() {
	case Station:
		if ch.Reconnect {
			ch.Requested |= events.Reconnect
		}
		if ch.MDNS {
			ch.Requested |= events.MdnsChanged
		}
	case CaptiveAP:
		if cfg.SSID != "" {
			ch.Requested |= events.SwitchToStation
		}
	}
	if ch.Requested != 0 {
		m.RequestTransition(ch.Requested)
	}

	logging.Info("Provisioning applied",
		zap.Strings("changed", ch.Fields),
		zap.Stringer("requested", ch.Requested),
	)
	return ch, err
}
