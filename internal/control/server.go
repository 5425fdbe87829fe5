package control

import (
	"embed"
	"encoding/json"
	"net"
	"net/http"
	"path"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/rover/internal/actuator"
	"github.com/muurk/rover/internal/clock"
	"github.com/muurk/rover/internal/logging"
	"github.com/muurk/rover/internal/protocol"
	"github.com/muurk/rover/internal/registry"
	"github.com/muurk/rover/internal/restart"
	"github.com/muurk/rover/internal/store"
)

// Routes served on the station server.
const (
	PathPages     = "/{page:(?:status|control|calibrate)?}"
	PathAssets    = `/{asset:(?:style\.css|script\.js|nav\.html)}`
	PathCalibrate = "/calibrate"
	PathData      = "/data.json"
	PathRestart   = "/restart"
	PathWebSocket = "/ws"
)

const (
	DefaultTimeout      = 1000 * time.Millisecond
	DefaultRestartDelay = time.Second

	maxFormBytes = 4 << 10
)

//go:embed assets
var assets embed.FS

// Radio is the part of the wireless driver the control server needs.
type Radio interface {
	PowerSaver
	LocalIP() net.IP
}

// Options tunes the control server.
type Options struct {
	// DefaultTimeout is the watchdog period until a client sets its own.
	DefaultTimeout time.Duration
	// RestartDelay separates the /restart response from the restart.
	RestartDelay    time.Duration
	FirmwareVersion string
}

// Deps are the collaborators the control server drives.
type Deps struct {
	Motor       actuator.Motor
	Steering    actuator.Servo
	Aux         actuator.Servo
	Calibration *store.Handle
	Radio       Radio
	Clock       clock.Clock
	Restarter   restart.Restarter
	// Connected reports station connectivity for /data.json.
	Connected func() bool
}

// Server owns the live control channel and the station-mode pages.
type Server struct {
	opts     Options
	deps     Deps
	started  time.Time
	watchdog *Watchdog

	mu      sync.Mutex
	client  *client
	timeout time.Duration
	steerPW protocol.LimitAssembler
	auxPW   protocol.LimitAssembler
}

// New builds a control server and applies the persisted servo calibration.
func New(opts Options, deps Deps) *Server {
	if opts.DefaultTimeout <= 0 {
		opts.DefaultTimeout = DefaultTimeout
	}
	if opts.RestartDelay <= 0 {
		opts.RestartDelay = DefaultRestartDelay
	}
	if deps.Clock == nil {
		deps.Clock = clock.Real()
	}
	if deps.Connected == nil {
		deps.Connected = func() bool { return false }
	}

	s := &Server{
		opts:    opts,
		deps:    deps,
		started: deps.Clock.Now(),
		timeout: opts.DefaultTimeout,
	}
	s.watchdog = NewWatchdog(deps.Clock, deps.Radio, s.onWatchdog)
	s.applyPersisted()
	return s
}

// Watchdog exposes the control watchdog.
func (s *Server) Watchdog() *Watchdog {
	return s.watchdog
}

// Timeout returns the current watchdog period.
func (s *Server) Timeout() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timeout
}

// SessionID returns the id of the current control client, or "".
func (s *Server) SessionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client == nil {
		return ""
	}
	return s.client.id
}

// Routes returns the station-mode registrations.
func (s *Server) Routes() []registry.Registration {
	return []registry.Registration{
		{Path: PathPages, Method: http.MethodGet, Handler: s.HandlePage},
		{Path: PathAssets, Method: http.MethodGet, Handler: s.HandleAsset},
		{Path: PathCalibrate, Method: http.MethodPost, Handler: s.HandleCalibrate},
		{Path: PathData, Method: http.MethodGet, Handler: s.HandleData},
		{Path: PathRestart, Method: "", Handler: s.HandleRestart},
		{Path: PathWebSocket, Method: http.MethodGet, Handler: s.HandleWebSocket},
	}
}

// Register adds the control routes to reg.
func (s *Server) Register(reg *registry.Registry) error {
	for _, rt := range s.Routes() {
		if err := reg.Register(rt.Path, rt.Method, rt.Handler); err != nil {
			return err
		}
	}
	return nil
}

// HandlePage serves the index, status, control and calibration pages.
func (s *Server) HandlePage(w http.ResponseWriter, r *http.Request) {
	page := strings.Trim(r.URL.Path, "/")
	if page == "" {
		page = "index"
	}
	s.serveAsset(w, r, page+".html")
}

// HandleAsset serves the shared stylesheet, script and navigation fragment.
func (s *Server) HandleAsset(w http.ResponseWriter, r *http.Request) {
	s.serveAsset(w, r, path.Base(r.URL.Path))
}

func (s *Server) serveAsset(w http.ResponseWriter, r *http.Request, name string) {
	body, err := assets.ReadFile("assets/" + name)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	switch path.Ext(name) {
	case ".css":
		w.Header().Set("Content-Type", "text/css; charset=utf-8")
	case ".js":
		w.Header().Set("Content-Type", "application/javascript")
	default:
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
	}
	_, _ = w.Write(body)
}

// HandleCalibrate applies "min,max" pairs from the calibration form to the
// servos and persists them. Malformed pairs are ignored.
func (s *Server) HandleCalibrate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	if err := r.ParseForm(); err != nil {
		http.Error(w, "malformed form", http.StatusBadRequest)
		return
	}

	s.calibrate(s.deps.Steering, actuator.KeySteering, r.PostForm.Get("steering_pw"), r.PostForm.Get("steering_deg"))
	s.calibrate(s.deps.Aux, actuator.KeyAux, r.PostForm.Get("aux_pw"), r.PostForm.Get("aux_deg"))

	http.Redirect(w, r, PathCalibrate, http.StatusFound)
}

func (s *Server) calibrate(servo actuator.Servo, key, pw, deg string) {
	if servo == nil {
		return
	}
	cur := servo.Limits()
	next := cur
	if lo, hi, ok := parsePair(pw); ok {
		next = next.WithPulseWidth(lo, hi)
	}
	if lo, hi, ok := parsePair(deg); ok {
		next = next.WithDegrees(lo, hi)
	}
	if next == cur {
		return
	}
	if err := next.Validate(); err != nil {
		logging.Warn("Rejected calibration", zap.String("servo", key), zap.Error(err))
		return
	}

	servo.SetLimits(next)
	if err := actuator.SaveLimits(s.deps.Calibration, key, next); err != nil {
		logging.Error("Failed to persist calibration", zap.String("servo", key), zap.Error(err))
		return
	}
	logging.Info("Servo calibrated",
		zap.String("servo", key),
		zap.Int("min_pw", next.MinPulseWidthUS),
		zap.Int("max_pw", next.MaxPulseWidthUS),
		zap.Int("min_deg", next.MinDegree),
		zap.Int("max_deg", next.MaxDegree),
	)
}

func parsePair(v string) (int, int, bool) {
	lo, hi, found := strings.Cut(v, ",")
	if !found {
		return 0, 0, false
	}
	a, err := strconv.Atoi(strings.TrimSpace(lo))
	if err != nil {
		return 0, 0, false
	}
	b, err := strconv.Atoi(strings.TrimSpace(hi))
	if err != nil {
		return 0, 0, false
	}
	return a, b, true
}

type setpointsJSON struct {
	Speed    int8 `json:"speed"`
	Steering int  `json:"steering"`
	Aux      int  `json:"aux"`
}

type limitsJSON struct {
	MinPW  int `json:"min_pw"`
	MaxPW  int `json:"max_pw"`
	MinDeg int `json:"min_deg"`
	MaxDeg int `json:"max_deg"`
}

type statusJSON struct {
	UptimeMS        int64                 `json:"uptime_ms"`
	FreeMemory      uint64                `json:"free_memory"`
	TotalMemory     uint64                `json:"total_memory"`
	FirmwareVersion string                `json:"firmware_version"`
	LocalIP         string                `json:"local_ip"`
	Connected       bool                  `json:"connected"`
	SessionID       string                `json:"session_id"`
	TimeoutMS       int64                 `json:"timeout_ms"`
	Setpoints       setpointsJSON         `json:"setpoints"`
	Limits          map[string]limitsJSON `json:"limits"`
}

func toLimitsJSON(l actuator.Limits) limitsJSON {
	return limitsJSON{
		MinPW:  l.MinPulseWidthUS,
		MaxPW:  l.MaxPulseWidthUS,
		MinDeg: l.MinDegree,
		MaxDeg: l.MaxDegree,
	}
}

// HandleData reports uptime, memory, addressing and actuator state.
func (s *Server) HandleData(w http.ResponseWriter, r *http.Request) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	st := statusJSON{
		UptimeMS:        s.deps.Clock.Since(s.started).Milliseconds(),
		FreeMemory:      mem.Sys - mem.HeapAlloc,
		TotalMemory:     mem.Sys,
		FirmwareVersion: s.opts.FirmwareVersion,
		Connected:       s.deps.Connected(),
		SessionID:       s.SessionID(),
		TimeoutMS:       s.Timeout().Milliseconds(),
		Limits:          map[string]limitsJSON{},
	}
	if s.deps.Radio != nil {
		if ip := s.deps.Radio.LocalIP(); ip != nil {
			st.LocalIP = ip.String()
		}
	}
	if s.deps.Motor != nil {
		st.Setpoints.Speed = s.deps.Motor.Speed()
	}
	if s.deps.Steering != nil {
		st.Setpoints.Steering = s.deps.Steering.Angle()
		st.Limits[actuator.KeySteering] = toLimitsJSON(s.deps.Steering.Limits())
	}
	if s.deps.Aux != nil {
		st.Setpoints.Aux = s.deps.Aux.Angle()
		st.Limits[actuator.KeyAux] = toLimitsJSON(s.deps.Aux.Limits())
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(st); err != nil {
		logging.Warn("Failed to write status", zap.Error(err))
	}
}

// HandleRestart redirects to the index and restarts after RestartDelay.
func (s *Server) HandleRestart(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/", http.StatusFound)
	if s.deps.Restarter == nil {
		return
	}
	logging.Warn("Restart requested", zap.String("remote_addr", r.RemoteAddr))
	s.deps.Clock.AfterFunc(s.opts.RestartDelay, func() {
		s.deps.Restarter.Restart("restart requested over http")
	})
}

// applyPersisted reloads both servos from stored calibration. The pulse
// width halves received so far are kept.
func (s *Server) applyPersisted() {
	if s.deps.Steering != nil {
		s.deps.Steering.SetLimits(actuator.LoadLimits(s.deps.Calibration, actuator.KeySteering, actuator.DefaultSteeringLimits()))
	}
	if s.deps.Aux != nil {
		s.deps.Aux.SetLimits(actuator.LoadLimits(s.deps.Calibration, actuator.KeyAux, actuator.DefaultAuxLimits()))
	}
}

func (s *Server) onWatchdog() {
	s.applyPersisted()
	s.sendTimeout()
}
