package roverclient

import (
	"fmt"
	"net"
	"strings"
	"unicode/utf8"
)

// ValidateSSID checks the 1-32 byte SSID limit.
func ValidateSSID(ssid string) error {
	if ssid == "" {
		return NewValidationError("WiFi SSID cannot be empty")
	}
	if len(ssid) > 32 {
		return NewValidationError(fmt.Sprintf("WiFi SSID too long (max 32 bytes): %d bytes", len(ssid)))
	}
	return nil
}

// ValidatePassphrase accepts an empty passphrase (open network, or keep the
// stored one) or 8-63 characters.
func ValidatePassphrase(password string) error {
	n := utf8.RuneCountInString(password)
	if n == 0 {
		return nil
	}
	if n < 8 {
		return NewValidationError(fmt.Sprintf("WPA2 passphrase too short (min 8 chars): %d chars", n))
	}
	if n > 63 {
		return NewValidationError(fmt.Sprintf("WPA2 passphrase too long (max 63 chars): %d chars", n))
	}
	return nil
}

// ValidateIPv4 checks a dotted-decimal IPv4 address.
func ValidateIPv4(ip string) error {
	parsed := net.ParseIP(strings.TrimSpace(ip))
	if parsed == nil || parsed.To4() == nil || strings.Contains(ip, ":") {
		return NewValidationError(fmt.Sprintf("invalid IPv4 address: %q", ip))
	}
	return nil
}

// ValidateHostname checks a single mDNS host label: 1-63 letters, digits or
// hyphens, not starting or ending with a hyphen.
func ValidateHostname(name string) error {
	name = strings.TrimSuffix(name, ".local")
	if name == "" || len(name) > 63 {
		return NewValidationError(fmt.Sprintf("hostname must be 1-63 characters: %q", name))
	}
	if name[0] == '-' || name[len(name)-1] == '-' {
		return NewValidationError(fmt.Sprintf("hostname cannot start or end with '-': %q", name))
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-':
		default:
			return NewValidationError(fmt.Sprintf("hostname contains invalid character %q: %q", r, name))
		}
	}
	return nil
}

// ValidateWiFiSettings returns every problem found.
func ValidateWiFiSettings(w *WiFiSettings) []error {
	var errs []error
	if err := ValidateSSID(w.SSID); err != nil {
		errs = append(errs, err)
	}
	if err := ValidatePassphrase(w.Password); err != nil {
		errs = append(errs, err)
	}
	if w.UseStaticIP || w.StaticIP != "" {
		if err := ValidateIPv4(w.StaticIP); err != nil {
			errs = append(errs, fmt.Errorf("static IP: %w", err))
		}
	}
	if w.UseMDNS || w.MDNSHostname != "" {
		if err := ValidateHostname(w.MDNSHostname); err != nil {
			errs = append(errs, fmt.Errorf("mDNS hostname: %w", err))
		}
	}
	if n := len(w.ServiceName); n > 63 {
		errs = append(errs, NewValidationError(fmt.Sprintf("service name too long (max 63 bytes): %d bytes", n)))
	}
	return errs
}

// ValidateCalibration checks that every given range is ordered and within
// servo limits.
func ValidateCalibration(c Calibration) []error {
	var errs []error
	for name, sc := range c {
		if name != ServoSteering && name != ServoAux {
			errs = append(errs, NewValidationError(fmt.Sprintf("unknown servo %q", name)))
			continue
		}
		if r := sc.PulseWidth; r != nil {
			if r.Min <= 0 || r.Min >= r.Max {
				errs = append(errs, NewValidationError(fmt.Sprintf("%s pulse width %s: need 0 < min < max", name, r)))
			}
		}
		if r := sc.Degrees; r != nil {
			if r.Min < -90 || r.Max > 90 || r.Min >= r.Max {
				errs = append(errs, NewValidationError(fmt.Sprintf("%s degrees %s: need -90 <= min < max <= 90", name, r)))
			}
		}
	}
	return errs
}
