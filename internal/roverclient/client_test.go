package roverclient

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

const mockStatus = `{"uptime_ms":61500,"free_memory":204800,"total_memory":409600,"firmware_version":"1.2.0","local_ip":"192.168.1.42","connected":true,"session_id":"","timeout_ms":1000,"setpoints":{"speed":0,"steering":10,"aux":0},"limits":{"steering":{"min_pw":1200,"max_pw":1700,"min_deg":-90,"max_deg":90},"aux":{"min_pw":500,"max_pw":2400,"min_deg":-90,"max_deg":90}}}`

const mockConnectivity = `{"ssid":"Home","password":"Secret123","ap_ssid":"rover-setup","ap_password":"","use_static_ip":false,"use_mDNS":true,"static_ip":"192.168.1.10","mDNS_hostname":"rover","service_name":"Rover"}`

func fastClient(url string) *Client {
	c := NewClientWithURL(url)
	c.SetRetry(2, time.Millisecond)
	return c
}

func TestNewClient(t *testing.T) {
	c := NewClient("192.168.1.42", 80)
	if c.BaseURL != "http://192.168.1.42:80" {
		t.Errorf("BaseURL = %s, want http://192.168.1.42:80", c.BaseURL)
	}
	if c.ControlURL() != "ws://192.168.1.42:80/ws" {
		t.Errorf("ControlURL() = %s, want ws://192.168.1.42:80/ws", c.ControlURL())
	}

	v6 := NewClient("fe80::1", 8080)
	if v6.BaseURL != "http://[fe80::1]:8080" {
		t.Errorf("BaseURL = %s, want http://[fe80::1]:8080", v6.BaseURL)
	}
}

func TestSetTimeoutAndRetry(t *testing.T) {
	c := NewClient("192.168.1.42", 80)
	c.SetTimeout(5 * time.Second)
	c.SetRetry(5, 2*time.Second)

	if c.HTTPClient.Timeout != 5*time.Second {
		t.Errorf("Timeout = %v, want 5s", c.HTTPClient.Timeout)
	}
	if c.MaxRetries != 5 || c.RetryDelay != 2*time.Second {
		t.Errorf("retry = (%d, %v), want (5, 2s)", c.MaxRetries, c.RetryDelay)
	}
}

func TestStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != PathStatus {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(mockStatus))
	}))
	defer server.Close()

	s, err := fastClient(server.URL).Status()
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if s.FirmwareVersion != "1.2.0" {
		t.Errorf("FirmwareVersion = %s, want 1.2.0", s.FirmwareVersion)
	}
	if !s.Connected {
		t.Error("Connected = false, want true")
	}
	if s.Limits[ServoAux].MaxPW != 2400 {
		t.Errorf("aux MaxPW = %d, want 2400", s.Limits[ServoAux].MaxPW)
	}
	if s.Uptime() != 62*time.Second {
		t.Errorf("Uptime() = %v, want 1m2s", s.Uptime())
	}
}

func TestConnectivityAndScan(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case PathConnectivity:
			_, _ = w.Write([]byte(mockConnectivity))
		case PathScan:
			_, _ = w.Write([]byte(`[{"ssid":"Home","signal_strength":-48},{"ssid":"","signal_strength":-80}]`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	c := fastClient(server.URL)
	conn, err := c.Connectivity()
	if err != nil {
		t.Fatalf("Connectivity() error = %v", err)
	}
	if conn.SSID != "Home" || !conn.UseMDNS || conn.StaticIP != "192.168.1.10" {
		t.Errorf("Connectivity() = %+v", conn)
	}

	nets, err := c.Scan()
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if len(nets) != 2 || nets[0].SSID != "Home" || nets[1].SSID != "" {
		t.Errorf("Scan() = %+v, want Home then a hidden network", nets)
	}
}

func TestRetryOnServerError(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(mockStatus))
	}))
	defer server.Close()

	if _, err := fastClient(server.URL).Status(); err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
}

func TestNoRetryOnParseOrUnavailable(t *testing.T) {
	tests := []struct {
		name     string
		handler  http.HandlerFunc
		wantType ErrorType
	}{
		{
			name: "bad json",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"uptime_ms":`))
			},
			wantType: ErrTypeParse,
		},
		{
			name: "scan unavailable",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "scan failed", http.StatusServiceUnavailable)
			},
			wantType: ErrTypeUnavailable,
		},
		{
			name: "not found",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.NotFound(w, r)
			},
			wantType: ErrTypeHTTP,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				tt.handler(w, r)
			}))
			defer server.Close()

			_, err := fastClient(server.URL).Status()
			if err == nil {
				t.Fatal("Status() error = nil, want error")
			}
			if got, _ := typeOf(err); got != tt.wantType {
				t.Errorf("error type = %v, want %v", got, tt.wantType)
			}
			if calls.Load() != 1 {
				t.Errorf("calls = %d, want 1", calls.Load())
			}
		})
	}
}

func TestSetWiFi(t *testing.T) {
	var got map[string][]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != PathProvision {
			http.NotFound(w, r)
			return
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("ParseForm() error = %v", err)
		}
		got = r.PostForm
		http.Redirect(w, r, PathProvision, http.StatusFound)
	}))
	defer server.Close()

	w := &WiFiSettings{SSID: "My Net", Password: "hunter22", UseMDNS: true, MDNSHostname: "rover"}
	if err := fastClient(server.URL).SetWiFi(w); err != nil {
		t.Fatalf("SetWiFi() error = %v", err)
	}

	if got["ssid"][0] != "My Net" {
		t.Errorf("ssid = %q, want %q", got["ssid"][0], "My Net")
	}
	if got["use_mDNS"][0] != "on" {
		t.Errorf("use_mDNS = %q, want on", got["use_mDNS"][0])
	}
	if _, ok := got["use_static_ip"]; ok {
		t.Error("use_static_ip should be omitted when false")
	}
}

func TestSetWiFiValidatesBeforeSending(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer server.Close()

	err := fastClient(server.URL).SetWiFi(&WiFiSettings{SSID: "Home", Password: "short"})
	if !IsValidationError(err) {
		t.Errorf("SetWiFi() error = %v, want validation error", err)
	}
	if calls.Load() != 0 {
		t.Errorf("calls = %d, want 0", calls.Load())
	}
}

func TestCalibrate(t *testing.T) {
	var body string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		body = r.PostForm.Encode()
		http.Redirect(w, r, PathCalibrate, http.StatusFound)
	}))
	defer server.Close()

	cal := Calibration{
		ServoSteering: {PulseWidth: &Range{1100, 1800}},
		ServoAux:      {Degrees: &Range{-45, 45}},
	}
	if err := fastClient(server.URL).Calibrate(cal); err != nil {
		t.Fatalf("Calibrate() error = %v", err)
	}
	if body != "aux_deg=-45%2C45&steering_pw=1100%2C1800" {
		t.Errorf("form = %s", body)
	}

	if err := fastClient(server.URL).Calibrate(Calibration{}); !IsValidationError(err) {
		t.Errorf("Calibrate(empty) error = %v, want validation error", err)
	}
}

func TestRestartIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if !strings.HasSuffix(r.URL.Path, PathRestart) {
			http.NotFound(w, r)
			return
		}
		http.Redirect(w, r, "/", http.StatusFound)
	}))
	defer server.Close()

	if err := fastClient(server.URL).Restart(); err != nil {
		t.Fatalf("Restart() error = %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}

func TestConnectionRefused(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	c := NewClientWithURL(url)
	c.SetRetry(0, 0)
	_, err := c.Status()
	if !IsNetworkError(err) {
		t.Fatalf("Status() error = %v, want network error", err)
	}
	if got, _ := typeOf(err); got != ErrTypeConnectionRefused {
		t.Errorf("error type = %v, want %v", got, ErrTypeConnectionRefused)
	}
}
