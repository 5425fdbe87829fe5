package provisioning

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muurk/rover/internal/connectivity"
	"github.com/muurk/rover/internal/events"
	"github.com/muurk/rover/internal/mdns"
	"github.com/muurk/rover/internal/netif"
	"github.com/muurk/rover/internal/registry"
	"github.com/muurk/rover/internal/restart"
	"github.com/muurk/rover/internal/store"
)

type fakeBackend struct {
	mu    sync.Mutex
	cfg   connectivity.Config
	forms []url.Values
	err   error
}

func (b *fakeBackend) Config() connectivity.Config {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cfg
}

func (b *fakeBackend) ApplyProvisioning(form url.Values) (connectivity.Changes, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.forms = append(b.forms, form)
	return connectivity.Changes{}, b.err
}

func (b *fakeBackend) submitted() []url.Values {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]url.Values(nil), b.forms...)
}

type fakeScanner struct {
	aps []netif.AccessPoint
	err error
}

func (s fakeScanner) Scan(context.Context) ([]netif.AccessPoint, error) {
	return s.aps, s.err
}

func serve(t *testing.T, p *Portal) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for _, reg := range p.Routes() {
			if reg.Path == r.URL.Path && reg.Method == r.Method {
				reg.Handler(w, r)
				return
			}
		}
		p.NotFound(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func client() *http.Client {
	return &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}}
}

func TestFormServed(t *testing.T) {
	srv := serve(t, New(&fakeBackend{}, fakeScanner{}))

	resp, err := client().Get(srv.URL + PathPortal)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
	assert.Contains(t, string(portalHTML), `name="ssid"`)
}

func TestUnknownPathRedirects(t *testing.T) {
	srv := serve(t, New(&fakeBackend{}, fakeScanner{}))

	for _, path := range []string{"/", "/generate_204", "/hotspot-detect.html"} {
		resp, err := client().Get(srv.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusFound, resp.StatusCode, path)
		assert.Equal(t, PathPortal, resp.Header.Get("Location"), path)
	}
}

func TestSubmitDecodesFormAndRedirects(t *testing.T) {
	backend := &fakeBackend{err: errors.New("flash worn out")}
	srv := serve(t, New(backend, fakeScanner{}))

	body := "ssid=Home&password=Secret1&service_name=Rover+Two&use_mDNS=true"
	resp, err := client().Post(srv.URL+PathPortal+"?ssid=ignored", "application/x-www-form-urlencoded", strings.NewReader(body))
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusFound, resp.StatusCode, "store failures still redirect")
	assert.Equal(t, PathPortal, resp.Header.Get("Location"))

	forms := backend.submitted()
	require.Len(t, forms, 1)
	form := forms[0]
	assert.Equal(t, "Home", form.Get("ssid"))
	assert.Equal(t, "Rover Two", form.Get("service_name"))
	assert.Equal(t, []string{"Home"}, form["ssid"])
}

func TestConfigJSON(t *testing.T) {
	cfg := connectivity.DefaultConfig()
	cfg.SSID = "Home"
	cfg.UseStaticIP = true
	srv := serve(t, New(&fakeBackend{cfg: cfg}, fakeScanner{}))

	resp, err := client().Get(srv.URL + PathConfig)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var got map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, "Home", got["ssid"])
	assert.Equal(t, true, got["use_static_ip"])
	assert.Equal(t, true, got["use_mDNS"])
	assert.Equal(t, "192.168.1.200", got["static_ip"])
	assert.Equal(t, "rover-setup", got["ap_ssid"])
	assert.Equal(t, "Rover Control", got["service_name"])
}

func TestScanJSONKeepsOrderAndHidden(t *testing.T) {
	scanner := fakeScanner{aps: []netif.AccessPoint{
		{SSID: "Weak", RSSI: -80},
		{SSID: "", RSSI: -60},
		{SSID: "Strong", RSSI: -40},
	}}
	srv := serve(t, New(&fakeBackend{}, scanner))

	resp, err := client().Get(srv.URL + PathScan)
	require.NoError(t, err)
	defer resp.Body.Close()

	var got []scanJSON
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, []scanJSON{
		{SSID: "Weak", SignalStrength: -80},
		{SSID: "", SignalStrength: -60},
		{SSID: "Strong", SignalStrength: -40},
	}, got)
}

func TestScanEmptyAndFailure(t *testing.T) {
	srv := serve(t, New(&fakeBackend{}, fakeScanner{}))
	resp, err := client().Get(srv.URL + PathScan)
	require.NoError(t, err)
	var got []scanJSON
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	resp.Body.Close()
	assert.NotNil(t, got)
	assert.Empty(t, got)

	srv = serve(t, New(&fakeBackend{}, fakeScanner{err: netif.ErrNotStarted}))
	resp, err = client().Get(srv.URL + PathScan)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestStationRoutesDispatchByMethod(t *testing.T) {
	backend := &fakeBackend{}
	p := New(backend, fakeScanner{})
	reg := registry.New(registry.DefaultCapacity)
	require.NoError(t, p.Register(reg))
	assert.Equal(t, 3, reg.Len())

	var form http.HandlerFunc
	for _, r := range reg.Registrations() {
		if r.Path == PathPortal {
			form = r.Handler
		}
	}
	require.NotNil(t, form)

	rec := httptest.NewRecorder()
	form(rec, httptest.NewRequest(http.MethodGet, PathPortal, nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, PathPortal, strings.NewReader("ssid=Home"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	form(rec, req)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Len(t, backend.submitted(), 1)

	rec = httptest.NewRecorder()
	form(rec, httptest.NewRequest(http.MethodDelete, PathPortal, nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

// TestProvisioningSwitchesToStation drives a real manager from the captive
// portal into station mode.
func TestProvisioningSwitchesToStation(t *testing.T) {
	radio := netif.NewSimRadio()
	defer radio.Close()
	radio.AddNetwork("Home", "Secret1", -50)
	radio.AddHidden(-70)

	backend := store.NewMemory()
	h, err := store.OpenNamespace(backend, connectivity.Namespace)
	require.NoError(t, err)

	opts := connectivity.DefaultOptions()
	opts.ListenAddr = "127.0.0.1:0"
	reg := registry.New(registry.DefaultCapacity)
	m := connectivity.New(opts, connectivity.Deps{
		Radio:     radio,
		Store:     h,
		Registry:  reg,
		MDNS:      &mdns.Recorder{},
		Restarter: restart.Func(func(string) {}),
	})
	portal := New(m, radio)
	m.SetPortal(portal)
	require.NoError(t, portal.Register(reg))

	require.NoError(t, m.Initialize(context.Background()))
	require.Equal(t, connectivity.CaptiveAP, m.Mode())

	base := "http://" + m.ServerAddr()
	resp, err := client().Get(base + PathScan)
	require.NoError(t, err)
	var aps []scanJSON
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&aps))
	resp.Body.Close()
	require.Len(t, aps, 2)
	assert.Equal(t, "Home", aps[0].SSID)
	assert.Empty(t, aps[1].SSID)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = m.Run(ctx)
	}()
	defer func() {
		cancel()
		<-done
		m.Shutdown(context.Background())
	}()

	form := url.Values{"ssid": {"Home"}, "password": {"Secret1"}, "use_mDNS": {"true"}}
	resp, err = client().PostForm(base+PathPortal, form)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusFound, resp.StatusCode)

	require.Eventually(t, func() bool {
		return m.Mode() == connectivity.Station && m.Signal().Get().Has(events.Connected)
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "Home", h.GetString(connectivity.KeySSID, ""))

	resp, err = client().Get("http://" + m.ServerAddr() + PathPortal)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode, "portal stays reachable in station mode")
}
