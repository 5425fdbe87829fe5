package captivedns

import (
	"net"
	"testing"

	"github.com/miekg/dns"
)

func startServer(t *testing.T) (*Server, string) {
	t.Helper()
	s := New("127.0.0.1:0", net.IPv4(192, 168, 4, 1))
	if err := s.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Stop() })
	return s, s.LocalAddr().String()
}

func TestAnswersEveryAQuery(t *testing.T) {
	_, addr := startServer(t)
	c := &dns.Client{Net: "udp"}

	for _, name := range []string{"example.com.", "connectivitycheck.gstatic.com.", "rover.local."} {
		m := new(dns.Msg)
		m.SetQuestion(name, dns.TypeA)

		resp, _, err := c.Exchange(m, addr)
		if err != nil {
			t.Fatalf("Exchange(%s) error = %v", name, err)
		}
		if len(resp.Answer) != 1 {
			t.Fatalf("Exchange(%s) answers = %d, want 1", name, len(resp.Answer))
		}
		a, ok := resp.Answer[0].(*dns.A)
		if !ok {
			t.Fatalf("answer type = %T, want *dns.A", resp.Answer[0])
		}
		if !a.A.Equal(net.IPv4(192, 168, 4, 1)) {
			t.Errorf("Exchange(%s) = %s, want 192.168.4.1", name, a.A)
		}
		if a.Hdr.Ttl != DefaultTTL {
			t.Errorf("TTL = %d, want %d", a.Hdr.Ttl, DefaultTTL)
		}
	}
}

func TestAAAAHasNoAnswer(t *testing.T) {
	_, addr := startServer(t)
	c := &dns.Client{Net: "udp"}

	m := new(dns.Msg)
	m.SetQuestion("example.com.", dns.TypeAAAA)
	resp, _, err := c.Exchange(m, addr)
	if err != nil {
		t.Fatalf("Exchange() error = %v", err)
	}
	if resp.Rcode != dns.RcodeSuccess || len(resp.Answer) != 0 {
		t.Errorf("AAAA rcode = %d answers = %d, want NOERROR and none", resp.Rcode, len(resp.Answer))
	}
}

func TestMXNotImplemented(t *testing.T) {
	_, addr := startServer(t)
	c := &dns.Client{Net: "udp"}

	m := new(dns.Msg)
	m.SetQuestion("example.com.", dns.TypeMX)
	resp, _, err := c.Exchange(m, addr)
	if err != nil {
		t.Fatalf("Exchange() error = %v", err)
	}
	if resp.Rcode != dns.RcodeNotImplemented {
		t.Errorf("MX rcode = %d, want NOTIMP", resp.Rcode)
	}
}

func TestStopIdempotent(t *testing.T) {
	s := New("127.0.0.1:0", net.IPv4(10, 0, 0, 1))
	if err := s.Stop(); err != nil {
		t.Errorf("Stop() on stopped server error = %v", err)
	}
	if err := s.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := s.Stop(); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
	if s.LocalAddr() != nil {
		t.Error("LocalAddr() should be nil after Stop")
	}
}
