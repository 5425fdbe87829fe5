package provisioning

import (
	"context"
	_ "embed"
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/rover/internal/connectivity"
	"github.com/muurk/rover/internal/logging"
	"github.com/muurk/rover/internal/netif"
	"github.com/muurk/rover/internal/registry"
)

// Paths served by the portal.
const (
	PathPortal = "/captive_portal"
	PathConfig = "/captive.json"
	PathScan   = "/scan.json"
)

const (
	maxFormBytes = 4 << 10
	scanTimeout  = 15 * time.Second
)

//go:embed assets/captive_portal.html
var portalHTML []byte

// Backend is the connectivity state the portal reads and edits.
type Backend interface {
	Config() connectivity.Config
	ApplyProvisioning(form url.Values) (connectivity.Changes, error)
}

// Scanner runs a blocking access point scan.
type Scanner interface {
	Scan(ctx context.Context) ([]netif.AccessPoint, error)
}

// Portal serves the provisioning form and its JSON helpers.
type Portal struct {
	backend Backend
	scanner Scanner
}

// New returns a portal editing backend and scanning with scanner.
func New(backend Backend, scanner Scanner) *Portal {
	return &Portal{backend: backend, scanner: scanner}
}

// Routes returns the fixed captive AP registrations.
func (p *Portal) Routes() []registry.Registration {
	return []registry.Registration{
		{Path: PathPortal, Method: http.MethodGet, Handler: p.HandleForm},
		{Path: PathPortal, Method: http.MethodPost, Handler: p.HandleSubmit},
		{Path: PathConfig, Method: http.MethodGet, Handler: p.HandleConfig},
		{Path: PathScan, Method: http.MethodGet, Handler: p.HandleScan},
	}
}

// StationRoutes returns the registrations that keep the portal reachable in
// station mode. The form path dispatches on method itself so it uses one
// registry slot.
func (p *Portal) StationRoutes() []registry.Registration {
	return []registry.Registration{
		{Path: PathPortal, Handler: p.handlePortal},
		{Path: PathConfig, Method: http.MethodGet, Handler: p.HandleConfig},
		{Path: PathScan, Method: http.MethodGet, Handler: p.HandleScan},
	}
}

// Register adds StationRoutes to reg.
func (p *Portal) Register(reg *registry.Registry) error {
	for _, r := range p.StationRoutes() {
		if err := reg.Register(r.Path, r.Method, r.Handler); err != nil {
			return err
		}
	}
	return nil
}

// NotFound sends every unknown captive AP request to the form.
func (p *Portal) NotFound(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, PathPortal, http.StatusFound)
}

func (p *Portal) handlePortal(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet, http.MethodHead:
		p.HandleForm(w, r)
	case http.MethodPost:
		p.HandleSubmit(w, r)
	default:
		w.Header().Set("Allow", "GET, POST")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// HandleForm serves the embedded form.
func (p *Portal) HandleForm(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(portalHTML)
}

// HandleSubmit applies a form submission and redirects back to the form.
func (p *Portal) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	if err := r.ParseForm(); err != nil {
		logging.Warn("Malformed provisioning form", zap.Error(err))
		http.Error(w, "malformed form", http.StatusBadRequest)
		return
	}

	// Query parameters are not part of the submission.
	if _, err := p.backend.ApplyProvisioning(r.PostForm); err != nil {
		logging.Warn("Provisioning not persisted", zap.Error(err))
	}
	http.Redirect(w, r, PathPortal, http.StatusFound)
}

type configJSON struct {
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

// HandleConfig serves the current configuration as flat JSON.
func (p *Portal) HandleConfig(w http.ResponseWriter, r *http.Request) {
	c := p.backend.Config()
	writeJSON(w, configJSON{
		SSID:         c.SSID,
		Password:     c.Password,
		APSSID:       c.APSSID,
		APPassword:   c.APPassword,
		UseStaticIP:  c.UseStaticIP,
		UseMDNS:      c.UseMDNS,
		StaticIP:     c.StaticIPString(),
		MDNSHostname: c.MDNSHostname,
		ServiceName:  c.ServiceName,
	})
}

type scanJSON struct {
	SSID           string `json:"ssid"`
	SignalStrength int    `json:"signal_strength"`
}

// HandleScan runs a blocking scan and lists results in scan order. Hidden
// networks appear with an empty SSID.
func (p *Portal) HandleScan(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), scanTimeout)
	defer cancel()

	aps, err := p.scanner.Scan(ctx)
	if err != nil {
		logging.Warn("Scan failed", zap.Error(err))
		http.Error(w, "scan failed", http.StatusServiceUnavailable)
		return
	}

	out := make([]scanJSON, 0, len(aps))
	for _, ap := range aps {
		out = append(out, scanJSON{SSID: ap.SSID, SignalStrength: ap.RSSI})
	}
	logging.Debug("Scan complete", zap.Int("count", len(out)))
	writeJSON(w, out)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Warn("Failed to write JSON response", zap.Error(err))
	}
}
