package netif

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"go.uber.org/zap"

	"github.com/muurk/rover/internal/logging"
)

// ErrNotStarted is returned by Scan while the radio is stopped.
var ErrNotStarted = errors.New("radio not started")

type simMode int

const (
	simOff simMode = iota
	simStation
	simAPStation
)

// SimRadio is an in-process radio. Networks are declared with AddNetwork;
// association succeeds only when the configured station credentials match.
// Events are delivered from a single dispatcher goroutine, in order.
type SimRadio struct {
	mu        sync.Mutex
	mode      simMode
	station   StationConfig
	ap        APConfig
	addr      Addressing
	connected bool
	powerSave bool
	networks  map[string]string
	scan      []AccessPoint
	failures  map[string]error
	calls     []string
	subs      []func(Event)
	dhcpIP    net.IP

	queue chan Event
	done  chan struct{}
	wg    sync.WaitGroup
}

// NewSimRadio starts the dispatcher. Call Close when finished.
func NewSimRadio() *SimRadio {
	r := &SimRadio{
		networks: make(map[string]string),
		failures: make(map[string]error),
		dhcpIP:   net.IPv4(192, 168, 1, 100).To4(),
		queue:    make(chan Event, 64),
		done:     make(chan struct{}),
	}
	r.wg.Add(1)
	go r.dispatch()
	return r
}

func (r *SimRadio) dispatch() {
	defer r.wg.Done()
	for {
		select {
		case ev := <-r.queue:
			r.mu.Lock()
			subs := append([]func(Event){}, r.subs...)
			r.mu.Unlock()
			for _, fn := range subs {
				fn(ev)
			}
		case <-r.done:
			return
		}
	}
}

// Close stops the dispatcher. Pending events are dropped.
func (r *SimRadio) Close() {
	close(r.done)
	r.wg.Wait()
}

func (r *SimRadio) emit(ev Event) {
	select {
	case r.queue <- ev:
	case <-r.done:
	}
}

// AddNetwork makes ssid reachable with password and lists it in scans.
func (r *SimRadio) AddNetwork(ssid, password string, rssi int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.networks[ssid] = password
	r.scan = append(r.scan, AccessPoint{SSID: ssid, RSSI: rssi, Channel: 6, Secure: password != ""})
}

// AddHidden lists a network with an empty SSID in scan results.
func (r *SimRadio) AddHidden(rssi int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scan = append(r.scan, AccessPoint{RSSI: rssi, Channel: 11, Secure: true})
}

// RemoveNetwork makes ssid unreachable.
func (r *SimRadio) RemoveNetwork(ssid string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.networks, ssid)
}

// FailNext makes the next call to op return err. op is the method name,
// e.g. "StartStation".
func (r *SimRadio) FailNext(op string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures[op] = err
}

// Calls returns the method call log.
func (r *SimRadio) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

// ResetCalls clears the call log.
func (r *SimRadio) ResetCalls() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = nil
}

// PowerSave reports the power-save setting.
func (r *SimRadio) PowerSave() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.powerSave
}

// Connected reports whether the station is associated.
func (r *SimRadio) Connected() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.connected
}

// Station returns the active station configuration.
func (r *SimRadio) Station() StationConfig {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.station
}

// AP returns the active access point configuration.
func (r *SimRadio) AP() APConfig {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ap
}

// Addressing returns the active addressing policy.
func (r *SimRadio) Addressing() Addressing {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.addr
}

// Drop simulates a link loss on an associated station.
func (r *SimRadio) Drop(reason string) {
	r.mu.Lock()
	was := r.connected
	r.connected = false
	ssid := r.station.SSID
	r.mu.Unlock()
	if was {
		r.emit(Event{Kind: StationDisconnected, SSID: ssid, Reason: reason})
	}
}

// callLocked records op and returns an injected failure, if any. Caller holds mu.
func (r *SimRadio) callLocked(op string) error {
	r.calls = append(r.calls, op)
	if err, ok := r.failures[op]; ok {
		delete(r.failures, op)
		return err
	}
	return nil
}

func (r *SimRadio) ConfigureStation(c StationConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.callLocked("ConfigureStation"); err != nil {
		return err
	}
	r.station = c
	return nil
}

func (r *SimRadio) ConfigureAP(c APConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.callLocked("ConfigureAP"); err != nil {
		return err
	}
	r.ap = c
	return nil
}

func (r *SimRadio) SetAddressing(a Addressing) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.callLocked("SetAddressing"); err != nil {
		return err
	}
	r.addr = a
	return nil
}

func (r *SimRadio) StartStation() error {
	r.mu.Lock()
	if err := r.callLocked("StartStation"); err != nil {
		r.mu.Unlock()
		return err
	}
	r.mode = simStation
	r.mu.Unlock()

	logging.Debug("Sim radio started", zap.String("mode", "station"))
	return r.Connect()
}

func (r *SimRadio) StartAPStation() error {
	r.mu.Lock()
	if err := r.callLocked("StartAPStation"); err != nil {
		r.mu.Unlock()
		return err
	}
	r.mode = simAPStation
	ssid := r.ap.SSID
	r.mu.Unlock()

	logging.Debug("Sim radio started", zap.String("mode", "ap+station"), zap.String("ap_ssid", ssid))
	r.emit(Event{Kind: APStarted, SSID: ssid})
	return nil
}

func (r *SimRadio) Stop() error {
	r.mu.Lock()
	if err := r.callLocked("Stop"); err != nil {
		r.mu.Unlock()
		return err
	}
	was := r.connected
	r.connected = false
	r.mode = simOff
	ssid := r.station.SSID
	r.mu.Unlock()

	if was {
		r.emit(Event{Kind: StationDisconnected, SSID: ssid, Reason: "radio_stopped"})
	}
	return nil
}

func (r *SimRadio) Disconnect() error {
	r.mu.Lock()
	if err := r.callLocked("Disconnect"); err != nil {
		r.mu.Unlock()
		return err
	}
	was := r.connected
	r.connected = false
	ssid := r.station.SSID
	r.mu.Unlock()

	if was {
		r.emit(Event{Kind: StationDisconnected, SSID: ssid, Reason: "assoc_leave"})
	}
	return nil
}

func (r *SimRadio) Connect() error {
	r.mu.Lock()
	if err := r.callLocked("Connect"); err != nil {
		r.mu.Unlock()
		return err
	}
	if r.mode == simOff {
		r.mu.Unlock()
		return ErrNotStarted
	}
	ssid := r.station.SSID
	password, known := r.networks[ssid]
	ok := known && password == r.station.Password && ssid != ""
	ip := r.dhcpIP
	if r.addr.Static {
		ip = r.addr.IP
	}
	r.connected = ok
	r.mu.Unlock()

	if !ok {
		reason := "no_ap_found"
		if known {
			reason = "auth_fail"
		}
		r.emit(Event{Kind: StationDisconnected, SSID: ssid, Reason: reason})
		return nil
	}
	r.emit(Event{Kind: StationConnected, SSID: ssid})
	r.emit(Event{Kind: GotIP, SSID: ssid, IP: ip})
	return nil
}

func (r *SimRadio) Scan(ctx context.Context) ([]AccessPoint, error) {
	r.mu.Lock()
	if err := r.callLocked("Scan"); err != nil {
		r.mu.Unlock()
		return nil, err
	}
	if r.mode == simOff {
		r.mu.Unlock()
		return nil, ErrNotStarted
	}
	out := append([]AccessPoint(nil), r.scan...)
	r.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("scan aborted: %w", err)
	}
	return out, nil
}

func (r *SimRadio) SetPowerSave(enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.callLocked("SetPowerSave"); err != nil {
		return err
	}
	r.powerSave = enabled
	return nil
}

func (r *SimRadio) Subscribe(fn func(Event)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subs = append(r.subs, fn)
}

func (r *SimRadio) LocalIP() net.IP {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch {
	case r.mode == simAPStation:
		return net.IPv4(192, 168, 4, 1).To4()
	case r.connected && r.addr.Static:
		return r.addr.IP
	case r.connected:
		return r.dhcpIP
	default:
		return nil
	}
}
