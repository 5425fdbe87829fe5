package connectivity

import (
	"go.uber.org/zap"

	"github.com/muurk/rover/internal/events"
	"github.com/muurk/rover/internal/logging"
	"github.com/muurk/rover/internal/netif"
)

// HandleNetworkEvent is the radio callback. It only touches the event signal
// and the disconnect counter; transitions are left to Run.
func (m *Manager) HandleNetworkEvent(ev netif.Event) {
	switch ev.Kind {
	case netif.StationConnected:
		logging.Info("Station associated", zap.String("ssid", ev.SSID))
		m.signal.Set(events.Connected)

	case netif.GotIP:
		m.mu.Lock()
		m.failures = 0
		m.mu.Unlock()
		logging.Info("Station got address", zap.Stringer("ip", ev.IP))
		m.signal.Set(events.Connected)

	case netif.StationDisconnected:
		m.signal.Clear(events.Connected)
		m.onDisconnect(ev)

	case netif.APStarted:
		logging.Info("Access point started", zap.String("ssid", ev.SSID))

	case netif.APClientJoined:
		logging.Info("Client joined access point")
	}
}

func (m *Manager) onDisconnect(ev netif.Event) {
	pending := m.signal.Get()

	m.mu.Lock()
	if m.radioMode != Station || pending&(events.Reconnect|events.SwitchToCaptiveAP) != 0 {
		m.mu.Unlock()
		logging.Debug("Station disconnect during transition",
			zap.String("reason", ev.Reason),
			zap.Stringer("pending", pending),
		)
		return
	}

	m.failures++
	failures := m.failures
	threshold := m.opts.ReconnectThreshold
	if failures >= threshold {
		m.failures = 0
	}
	m.mu.Unlock()

	if failures >= threshold {
		logging.Warn("Station connection failed repeatedly, falling back to captive portal",
			zap.Int("failures", failures),
			zap.String("reason", ev.Reason),
		)
		m.signal.Set(events.SwitchToCaptiveAP)
		return
	}

	logging.Info("Station disconnected, retrying",
		zap.Int("failures", failures),
		zap.Int("threshold", threshold),
		zap.String("reason", ev.Reason),
	)

	if m.opts.ReconnectBackoff > 0 {
		m.deps.Clock.AfterFunc(m.opts.ReconnectBackoff, m.retryConnect)
		return
	}
	m.retryConnect()
}

func (m *Manager) retryConnect() {
	// The manager may have left station mode while a backoff was pending.
	m.mu.Lock()
	stillStation := m.radioMode == Station
	m.mu.Unlock()
	if !stillStation || m.signal.Get()&(events.Reconnect|events.SwitchToCaptiveAP) != 0 {
		return
	}
	if err := m.deps.Radio.Connect(); err != nil {
		logging.Warn("Reconnect attempt failed to start", zap.Error(err))
	}
}
