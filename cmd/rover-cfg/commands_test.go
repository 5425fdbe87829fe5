package main

import (
	"testing"

	"github.com/muurk/rover/internal/roverclient"
)

func TestBuildCalibration(t *testing.T) {
	cal, err := buildCalibration("1000,2000", "", "", "-45,45")
	if err != nil {
		t.Fatalf("buildCalibration() unexpected error: %v", err)
	}
	if len(cal) != 2 {
		t.Fatalf("len(cal) = %d, want 2", len(cal))
	}

	steering := cal[roverclient.ServoSteering]
	if steering.PulseWidth == nil || *steering.PulseWidth != (roverclient.Range{Min: 1000, Max: 2000}) {
		t.Errorf("steering pulse width = %v, want 1000,2000", steering.PulseWidth)
	}
	if steering.Degrees != nil {
		t.Errorf("steering degrees = %v, want nil", steering.Degrees)
	}

	aux := cal[roverclient.ServoAux]
	if aux.Degrees == nil || *aux.Degrees != (roverclient.Range{Min: -45, Max: 45}) {
		t.Errorf("aux degrees = %v, want -45,45", aux.Degrees)
	}
}

func TestBuildCalibrationErrors(t *testing.T) {
	if _, err := buildCalibration("", "", "", ""); !roverclient.IsValidationError(err) {
		t.Errorf("empty flags: error = %v, want validation error", err)
	}
	if _, err := buildCalibration("1000-2000", "", "", ""); !roverclient.IsValidationError(err) {
		t.Errorf("bad range: error = %v, want validation error", err)
	}
}

func TestOverlayWiFiFlags(t *testing.T) {
	defer func() {
		wifiSSID, wifiPassword, wifiStaticIP = "", "", ""
	}()
	if err := setWiFiCmd.Flags().Parse([]string{"--ssid", "home", "--static-ip", "192.168.1.50"}); err != nil {
		t.Fatalf("Parse() error: %v", err)
	}

	w := roverclient.WiFiSettings{
		SSID:         "old",
		UseMDNS:      true,
		MDNSHostname: "rover",
		ServiceName:  "Rover Control",
	}
	overlayWiFiFlags(setWiFiCmd, &w)

	if w.SSID != "home" {
		t.Errorf("SSID = %q, want home", w.SSID)
	}
	if !w.UseStaticIP || w.StaticIP != "192.168.1.50" {
		t.Errorf("static = %v %q, want true 192.168.1.50", w.UseStaticIP, w.StaticIP)
	}
	// Flags not given keep the rover's values.
	if !w.UseMDNS || w.MDNSHostname != "rover" || w.ServiceName != "Rover Control" {
		t.Errorf("mDNS settings changed: %+v", w)
	}
}
