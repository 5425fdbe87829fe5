// Package captivedns answers every address query with the access point's own
// address while the rover is in provisioning mode, so any hostname a joining
// client looks up lands on the captive portal.
package captivedns

import (
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/miekg/dns"
	"go.uber.org/zap"

	"github.com/muurk/rover/internal/logging"
)

// DefaultTTL is the TTL of hijacked answers.
const DefaultTTL = 60

// Server is a UDP DNS responder.
type Server struct {
	Addr     string
	AnswerIP net.IP

	mu     sync.Mutex
	server *dns.Server
	conn   net.PacketConn
}

// New returns a stopped server that will listen on addr.
func New(addr string, answer net.IP) *Server {
	return &Server{Addr: addr, AnswerIP: answer.To4()}
}

// Start binds the socket and serves in the background.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server != nil {
		return nil
	}
	if s.AnswerIP == nil {
		return errors.New("captive dns: answer address must be IPv4")
	}

	pc, err := net.ListenPacket("udp", s.Addr)
	if err != nil {
		return fmt.Errorf("failed to bind captive dns on %s: %w", s.Addr, err)
	}

	started := make(chan struct{})
	srv := &dns.Server{
		PacketConn:        pc,
		Handler:           dns.HandlerFunc(s.serveDNS),
		NotifyStartedFunc: func() { close(started) },
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ActivateAndServe()
	}()

	// Shutdown fails on a server that has not started yet.
	select {
	case <-started:
	case err := <-errCh:
		_ = pc.Close()
		return fmt.Errorf("failed to start captive dns: %w", err)
	}

	s.server = srv
	s.conn = pc

	logging.Info("Captive DNS started",
		zap.String("addr", pc.LocalAddr().String()),
		zap.Stringer("answer", s.AnswerIP),
	)
	return nil
}

// LocalAddr returns the bound address, or nil when stopped.
func (s *Server) LocalAddr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	return s.conn.LocalAddr()
}

// Stop shuts the responder down. Stopping a stopped server is a no-op.
func (s *Server) Stop() error {
	s.mu.Lock()
	srv := s.server
	s.server = nil
	s.conn = nil
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	if err := srv.Shutdown(); err != nil {
		return fmt.Errorf("failed to stop captive dns: %w", err)
	}
	logging.Info("Captive DNS stopped")
	return nil
}

func (s *Server) serveDNS(w dns.ResponseWriter, r *dns.Msg) {
	m := new(dns.Msg)
	m.SetReply(r)
	m.Authoritative = true

	for _, q := range r.Question {
		switch q.Qtype {
		case dns.TypeA, dns.TypeANY:
			m.Answer = append(m.Answer, &dns.A{
				Hdr: dns.RR_Header{Name: q.Name, Rrtype: dns.TypeA, Class: dns.ClassINET, Ttl: DefaultTTL},
				A:   s.AnswerIP,
			})
		case dns.TypeAAAA:
			// No IPv6 on the access point; NOERROR with no answers.
		default:
			m.SetRcode(r, dns.RcodeNotImplemented)
		}
	}

	logging.Debug("Captive DNS query",
		zap.String("remote_addr", w.RemoteAddr().String()),
		zap.Int("questions", len(r.Question)),
		zap.Int("answers", len(m.Answer)),
	)

	if err := w.WriteMsg(m); err != nil {
		logging.Debug("Captive DNS write failed", zap.Error(err))
	}
}
