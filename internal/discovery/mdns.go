package discovery

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/grandcat/zeroconf"
	"go.uber.org/zap"

	"github.com/muurk/rover/internal/logging"
)

const (
	// ServiceType is the mDNS service type rovers advertise.
	ServiceType = "_http._tcp"

	// ServiceDomain is the mDNS domain.
	ServiceDomain = "local."

	// DefaultScanTimeout is the default browse duration.
	DefaultScanTimeout = 5 * time.Second

	// DefaultPort is used when an entry carries no port.
	DefaultPort = 80

	modelKey   = "model"
	modelRover = "rover"
)

// Scanner browses for rovers.
type Scanner struct {
	// Timeout is the maximum time to browse.
	Timeout time.Duration
}

// NewScanner returns a scanner with the default timeout.
func NewScanner() *Scanner {
	return &Scanner{
		Timeout: DefaultScanTimeout,
	}
}

// Scan browses for Timeout and returns every rover seen, deduplicated by
// address.
func (s *Scanner) Scan(ctx context.Context) ([]*Rover, error) {
	var (
		mu     sync.Mutex
		rovers []*Rover
		seen   = map[string]bool{}
	)
	err := s.browse(ctx, func(r *Rover) bool {
		mu.Lock()
		defer mu.Unlock()
		if !seen[r.Addr()] {
			seen[r.Addr()] = true
			rovers = append(rovers, r)
		}
		return false
	})
	if err != nil {
		return nil, err
	}

	mu.Lock()
	defer mu.Unlock()
	return rovers, nil
}

// Find returns the first rover whose service name or hostname equals name.
func (s *Scanner) Find(ctx context.Context, name string) (*Rover, error) {
	var found *Rover
	err := s.browse(ctx, func(r *Rover) bool {
		if matches(r, name) {
			found = r
			return true
		}
		return false
	})
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, fmt.Errorf("rover %q not found within %v", name, s.Timeout)
	}
	return found, nil
}

// browse delivers rovers to fn until fn returns true or the timeout ends.
// fn is called from a single goroutine; browse returns after it has
// finished.
func (s *Scanner) browse(ctx context.Context, fn func(*Rover) bool) error {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return fmt.Errorf("failed to create mDNS resolver: %w", err)
	}

	entries := make(chan *zeroconf.ServiceEntry)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for entry := range entries {
			r := parseServiceEntry(entry)
			if r == nil {
				continue
			}
			logging.Debug("Rover discovered", zap.String("rover", r.String()))
			if fn(r) {
				cancel()
			}
		}
	}()

	if err := resolver.Browse(ctx, ServiceType, ServiceDomain, entries); err != nil {
		cancel()
		return fmt.Errorf("failed to browse for mDNS services: %w", err)
	}

	<-ctx.Done()
	// The resolver closes entries once it sees the cancellation.
	<-done
	return nil
}

func matches(r *Rover, name string) bool {
	name = strings.TrimSuffix(name, ".")
	host := strings.TrimSuffix(r.Hostname, ".")
	return r.Name == name || host == name || strings.TrimSuffix(host, ".local") == name
}

// parseServiceEntry converts a service entry to a Rover, or nil if it is not
// a rover.
func parseServiceEntry(entry *zeroconf.ServiceEntry) *Rover {
	metadata := make(map[string]string, len(entry.Text))
	for _, txt := range entry.Text {
		k, v, _ := strings.Cut(txt, "=")
		metadata[k] = v
	}
	if metadata[modelKey] != modelRover {
		return nil
	}

	var ip string
	if len(entry.AddrIPv4) > 0 {
		ip = entry.AddrIPv4[0].String()
	} else if len(entry.AddrIPv6) > 0 {
		ip = entry.AddrIPv6[0].String()
	}
	if ip == "" {
		return nil
	}

	port := entry.Port
	if port == 0 {
		port = DefaultPort
	}

	return &Rover{
		Name:         entry.Instance,
		Hostname:     entry.HostName,
		IP:           ip,
		Port:         port,
		Firmware:     metadata["fw"],
		Metadata:     metadata,
		DiscoveredAt: time.Now(),
	}
}
