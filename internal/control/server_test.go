package control

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muurk/rover/internal/actuator"
	"github.com/muurk/rover/internal/clock"
	"github.com/muurk/rover/internal/httpserver"
	"github.com/muurk/rover/internal/protocol"
	"github.com/muurk/rover/internal/registry"
	"github.com/muurk/rover/internal/restart"
	"github.com/muurk/rover/internal/store"
)

type fakeRadio struct {
	mu        sync.Mutex
	powerSave []bool
}

func (r *fakeRadio) SetPowerSave(enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.powerSave = append(r.powerSave, enabled)
	return nil
}

func (r *fakeRadio) LocalIP() net.IP { return net.IPv4(192, 168, 1, 42) }

func (r *fakeRadio) history() []bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]bool(nil), r.powerSave...)
}

type rig struct {
	srv     *Server
	clk     *clock.Manual
	radio   *fakeRadio
	motor   *actuator.SimMotor
	steer   *actuator.SimServo
	aux     *actuator.SimServo
	backend *store.Memory
	cal     *store.Handle

	mu       sync.Mutex
	restarts []string
}

func (r *rig) restartCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.restarts)
}

func newRig(t *testing.T) *rig {
	t.Helper()
	backend := store.NewMemory()
	cal, err := store.OpenNamespace(backend, actuator.CalibrationNamespace)
	require.NoError(t, err)

	r := &rig{
		clk:     clock.NewManual(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)),
		radio:   &fakeRadio{},
		motor:   &actuator.SimMotor{},
		steer:   actuator.NewSimServo("steering", actuator.DefaultSteeringLimits()),
		aux:     actuator.NewSimServo("aux", actuator.DefaultAuxLimits()),
		backend: backend,
		cal:     cal,
	}
	r.srv = New(Options{FirmwareVersion: "test"}, Deps{
		Motor:       r.motor,
		Steering:    r.steer,
		Aux:         r.aux,
		Calibration: cal,
		Radio:       r.radio,
		Clock:       r.clk,
		Restarter: restart.Func(func(reason string) {
			r.mu.Lock()
			r.restarts = append(r.restarts, reason)
			r.mu.Unlock()
		}),
		Connected: func() bool { return true },
	})
	return r
}

// serve starts a station server carrying the control routes.
func (r *rig) serve(t *testing.T) string {
	t.Helper()
	reg := registry.New(registry.DefaultCapacity)
	require.NoError(t, r.srv.Register(reg))

	hs := httpserver.New("station", "127.0.0.1:0")
	reg.ApplyAll(hs)
	require.NoError(t, hs.Start())
	t.Cleanup(func() { _ = hs.Shutdown(context.Background()) })
	return hs.Addr()
}

func (r *rig) dial(t *testing.T, addr string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial("ws://"+addr+PathWebSocket, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	require.Eventually(t, r.srv.Watchdog().Armed, time.Second, 5*time.Millisecond)
	return conn
}

func send(t *testing.T, conn *websocket.Conn, frame []byte) {
	t.Helper()
	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, frame))
}

func TestEmergencyStop(t *testing.T) {
	r := newRig(t)
	conn := r.dial(t, r.serve(t))

	send(t, conn, protocol.EncodeControl(protocol.ControlSpeed, -50))
	send(t, conn, protocol.EncodeControl(protocol.ControlSteering, 30))
	require.Eventually(t, func() bool { return r.steer.Angle() == 30 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int8(-50), r.motor.Speed())

	send(t, conn, protocol.EncodeEvent(protocol.EventEmergencyStop))
	require.Eventually(t, func() bool { return r.motor.Speed() == 0 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, r.steer.Angle())
	assert.Equal(t, 0, r.aux.Angle())
}

func TestMalformedFramesKeepSession(t *testing.T) {
	r := newRig(t)
	conn := r.dial(t, r.serve(t))

	send(t, conn, []byte{0x01, 0x10})
	send(t, conn, []byte{0x09, 0x00, 0x00})
	send(t, conn, protocol.EncodeControl(protocol.ControlSpeed, 120))
	require.Eventually(t, func() bool { return r.motor.Speed() == 100 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, r.srv.Watchdog().Fires())
}

func TestWatchdogRestoresPersistedLimits(t *testing.T) {
	r := newRig(t)
	saved := actuator.DefaultSteeringLimits().WithPulseWidth(1250, 1650)
	require.NoError(t, actuator.SaveLimits(r.cal, actuator.KeySteering, saved))

	conn := r.dial(t, r.serve(t))
	assert.Equal(t, []bool{false}, r.radio.history(), "power save disabled on connect")

	send(t, conn, protocol.EncodeControl(protocol.ControlSteeringMaxPW, 1800))
	send(t, conn, protocol.EncodeControl(protocol.ControlSteeringMinPW, 1100))
	require.Eventually(t, func() bool {
		return r.steer.Limits().MinPulseWidthUS == 1100
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1800, r.steer.Limits().MaxPulseWidthUS)

	r.clk.Advance(DefaultTimeout)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	mt, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.BinaryMessage, mt)
	assert.Equal(t, protocol.EncodeEvent(protocol.EventTimeout), data)

	assert.Equal(t, saved, r.steer.Limits())
	assert.Equal(t, actuator.DefaultAuxLimits(), r.aux.Limits())
	assert.Equal(t, []bool{false, true}, r.radio.history())
	assert.Equal(t, 1, r.srv.Watchdog().Fires())
	assert.Equal(t, 1, r.backend.Saves(), "live limits are never persisted")
}

func TestChannelTimeoutFrame(t *testing.T) {
	r := newRig(t)
	conn := r.dial(t, r.serve(t))

	send(t, conn, protocol.EncodeControl(protocol.ControlTimeout, 0))
	send(t, conn, protocol.EncodeControl(protocol.ControlTimeout, 250))
	require.Eventually(t, func() bool {
		return r.srv.Watchdog().Period() == 250*time.Millisecond
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 250*time.Millisecond, r.srv.Timeout())

	r.clk.Advance(200 * time.Millisecond)
	assert.Equal(t, 0, r.srv.Watchdog().Fires())
	r.clk.Advance(50 * time.Millisecond)
	assert.Equal(t, 1, r.srv.Watchdog().Fires())
}

func TestClientCloseFiresWatchdog(t *testing.T) {
	r := newRig(t)
	conn := r.dial(t, r.serve(t))

	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye")
	require.NoError(t, conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second)))

	require.Eventually(t, func() bool { return r.srv.Watchdog().Fires() == 1 }, time.Second, 5*time.Millisecond)
	assert.False(t, r.srv.Watchdog().Armed())
	assert.Empty(t, r.srv.SessionID())
	assert.Equal(t, []bool{false, true}, r.radio.history())
}

func TestLatestClientWins(t *testing.T) {
	r := newRig(t)
	addr := r.serve(t)

	first := r.dial(t, addr)
	firstID := r.srv.SessionID()
	require.NotEmpty(t, firstID)

	second := r.dial(t, addr)
	require.Eventually(t, func() bool {
		id := r.srv.SessionID()
		return id != "" && id != firstID
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, first.SetReadDeadline(time.Now().Add(time.Second)))
	_, _, err := first.ReadMessage()
	assert.Error(t, err, "replaced client is disconnected")
	assert.Equal(t, 0, r.srv.Watchdog().Fires(), "replacing a client does not fire the watchdog")

	send(t, second, protocol.EncodeControl(protocol.ControlAux, -20))
	require.Eventually(t, func() bool { return r.aux.Angle() == -20 }, time.Second, 5*time.Millisecond)
}

func TestCalibrateForm(t *testing.T) {
	r := newRig(t)

	form := url.Values{
		"steering_pw":  {"1100, 1800"},
		"steering_deg": {"-45,45"},
		"aux_pw":       {"garbage"},
		"aux_deg":      {"60,-60"},
	}
	req := httptest.NewRequest(http.MethodPost, PathCalibrate, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	r.srv.HandleCalibrate(rec, req)

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, PathCalibrate, rec.Header().Get("Location"))

	want := actuator.Limits{MinPulseWidthUS: 1100, MaxPulseWidthUS: 1800, MinDegree: -45, MaxDegree: 45}
	assert.Equal(t, want, r.steer.Limits())
	assert.Equal(t, want, actuator.LoadLimits(r.cal, actuator.KeySteering, actuator.Limits{}))
	assert.Equal(t, actuator.DefaultAuxLimits(), r.aux.Limits(), "inverted degree range rejected")
	assert.Equal(t, 1, r.backend.Saves())
}

func TestDataJSON(t *testing.T) {
	r := newRig(t)
	r.motor.SetSpeed(25)
	r.clk.Advance(1500 * time.Millisecond)

	rec := httptest.NewRecorder()
	r.srv.HandleData(rec, httptest.NewRequest(http.MethodGet, PathData, nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var got statusJSON
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, int64(1500), got.UptimeMS)
	assert.Equal(t, "192.168.1.42", got.LocalIP)
	assert.Equal(t, "test", got.FirmwareVersion)
	assert.True(t, got.Connected)
	assert.Positive(t, got.TotalMemory)
	assert.Equal(t, int8(25), got.Setpoints.Speed)
	assert.Equal(t, int64(1000), got.TimeoutMS)
	assert.Equal(t, 1200, got.Limits[actuator.KeySteering].MinPW)
	assert.Equal(t, 2400, got.Limits[actuator.KeyAux].MaxPW)
}

func TestRestartIsDelayed(t *testing.T) {
	r := newRig(t)

	rec := httptest.NewRecorder()
	r.srv.HandleRestart(rec, httptest.NewRequest(http.MethodGet, PathRestart, nil))
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, 0, r.restartCount())

	r.clk.Advance(DefaultRestartDelay)
	assert.Equal(t, 1, r.restartCount())
}

func TestPagesAndAssets(t *testing.T) {
	r := newRig(t)
	base := "http://" + r.serve(t)

	tests := []struct {
		path        string
		status      int
		contentType string
		contains    string
	}{
		{"/", http.StatusOK, "text/html", "<title>Rover</title>"},
		{"/status", http.StatusOK, "text/html", `data-field="local_ip"`},
		{"/control", http.StatusOK, "text/html", "EVENT_ESTOP"},
		{"/calibrate", http.StatusOK, "text/html", `action="/calibrate"`},
		{"/style.css", http.StatusOK, "text/css", "button.danger"},
		{"/script.js", http.StatusOK, "application/javascript", "setupWebSocket"},
		{"/nav.html", http.StatusOK, "text/html", `href="/control"`},
		{"/missing", http.StatusNotFound, "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp, err := http.Get(base + tt.path)
			require.NoError(t, err)
			defer resp.Body.Close()
			body, _ := io.ReadAll(resp.Body)

			assert.Equal(t, tt.status, resp.StatusCode)
			if tt.status != http.StatusOK {
				return
			}
			assert.Contains(t, resp.Header.Get("Content-Type"), tt.contentType)
			assert.Contains(t, string(body), tt.contains)
		})
	}
}

func TestRevertSettings(t *testing.T) {
	r := newRig(t)
	conn := r.dial(t, r.serve(t))

	send(t, conn, protocol.EncodeControl(protocol.ControlAuxMinPW, 800))
	send(t, conn, protocol.EncodeControl(protocol.ControlAuxMaxPW, 2000))
	require.Eventually(t, func() bool {
		return r.aux.Limits().MaxPulseWidthUS == 2000
	}, time.Second, 5*time.Millisecond)

	send(t, conn, protocol.EncodeEvent(protocol.EventRevertSettings))
	require.Eventually(t, func() bool {
		return r.aux.Limits() == actuator.DefaultAuxLimits()
	}, time.Second, 5*time.Millisecond)

	// The pair is remembered, so one half re-applies with the other's last value.
	send(t, conn, protocol.EncodeControl(protocol.ControlAuxMaxPW, 2100))
	require.Eventually(t, func() bool {
		return r.aux.Limits().MaxPulseWidthUS == 2100
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 800, r.aux.Limits().MinPulseWidthUS)
}

func TestLimitHalvesSurviveWatchdog(t *testing.T) {
	r := newRig(t)
	conn := r.dial(t, r.serve(t))

	send(t, conn, protocol.EncodeControl(protocol.ControlSteeringMinPW, 1100))
	send(t, conn, protocol.EncodeControl(protocol.ControlSteeringMaxPW, 1800))
	require.Eventually(t, func() bool {
		return r.steer.Limits().MaxPulseWidthUS == 1800
	}, time.Second, 5*time.Millisecond)

	r.clk.Advance(2 * time.Second)
	require.Equal(t, 1, r.srv.Watchdog().Fires())
	require.Equal(t, actuator.DefaultSteeringLimits(), r.steer.Limits())

	send(t, conn, protocol.EncodeControl(protocol.ControlSteeringMaxPW, 1900))
	require.Eventually(t, func() bool {
		return r.steer.Limits().MaxPulseWidthUS == 1900
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1100, r.steer.Limits().MinPulseWidthUS)
}

func TestLimitHalvesSurviveNewClient(t *testing.T) {
	r := newRig(t)
	addr := r.serve(t)

	first := r.dial(t, addr)
	send(t, first, protocol.EncodeControl(protocol.ControlAuxMinPW, 900))
	send(t, first, protocol.EncodeControl(protocol.ControlAuxMaxPW, 2050))
	require.Eventually(t, func() bool {
		return r.aux.Limits().MaxPulseWidthUS == 2050
	}, time.Second, 5*time.Millisecond)
	firstID := r.srv.SessionID()

	second := r.dial(t, addr)
	require.Eventually(t, func() bool {
		id := r.srv.SessionID()
		return id != "" && id != firstID
	}, time.Second, 5*time.Millisecond)

	send(t, second, protocol.EncodeControl(protocol.ControlAuxMinPW, 950))
	require.Eventually(t, func() bool {
		return r.aux.Limits().MinPulseWidthUS == 950
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 2050, r.aux.Limits().MaxPulseWidthUS)
}

func TestTextFrameRearmsWatchdog(t *testing.T) {
	r := newRig(t)
	conn := r.dial(t, r.serve(t))

	r.clk.Advance(DefaultTimeout)
	require.Equal(t, 1, r.srv.Watchdog().Fires())
	require.False(t, r.srv.Watchdog().Armed())

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("ping")))
	require.Eventually(t, r.srv.Watchdog().Armed, time.Second, 5*time.Millisecond)
	assert.Equal(t, []bool{false, true, false}, r.radio.history(), "text frame starts a new session")

	r.clk.Advance(DefaultTimeout - time.Millisecond)
	assert.Equal(t, 1, r.srv.Watchdog().Fires())
	r.clk.Advance(time.Millisecond)
	assert.Equal(t, 2, r.srv.Watchdog().Fires())
}
