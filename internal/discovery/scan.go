package discovery

import (
	"context"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/soundbridge/soundbridge/internal/logging"
	"go.uber.org/zap"
)

const (
	// scanWorkers caps concurrent outbound probes. A /24 sweep fans
	// out 254 connects; unbounded goroutines risk file-descriptor
	// exhaustion.
	scanWorkers = 50

	// scanProbeTimeout bounds a single TCP connect attempt
	scanProbeTimeout = 1 * time.Second
)

// Scanner sweeps the local /24 for hosts listening on the device port.
type Scanner struct {
	// Prefix is the dotted /24 prefix to sweep (e.g., "192.168.1").
	// Empty means derive it from the default route at scan time.
	Prefix string

	// Port to probe; defaults to DevicePort
	Port int

	// ProbeTimeout bounds each TCP connect
	ProbeTimeout time.Duration

	// Workers caps concurrent probes
	Workers int

	fetch infoFetcher
}

// NewScanner creates a scanner with production defaults
func NewScanner() *Scanner {
	return &Scanner{
		Port:         DevicePort,
		ProbeTimeout: scanProbeTimeout,
		Workers:      scanWorkers,
		fetch:        FetchInfo,
	}
}

// Scan probes all 254 host addresses in the prefix and returns the
// devices that answered both the TCP connect and the descriptor fetch,
// keyed by IP. Scatter/gather: every probe has completed or timed out
// by the time Scan returns.
func (s *Scanner) Scan(ctx context.Context) map[string]*Device {
	prefix := s.Prefix
	if prefix == "" {
		prefix = LocalSubnetPrefix()
	}
	logging.Info("scanning subnet", zap.String("prefix", prefix+".0/24"), zap.Int("port", s.Port))

	var (
		mu      sync.Mutex
		devices = make(map[string]*Device)
	)

	pool := newPool(s.Workers)
	for i := 1; i <= 254; i++ {
		ip := fmt.Sprintf("%s.%d", prefix, i)
		pool.add(func() {
			device := s.probeHost(ctx, ip)
			if device == nil {
				return
			}
			mu.Lock()
			devices[device.IP] = device
			mu.Unlock()
		})
	}
	pool.wait()

	return devices
}

// probeHost connects to ip on the device port and, on success, fetches
// the descriptor. A closed port is silence, not an error.
func (s *Scanner) probeHost(ctx context.Context, ip string) *Device {
	if ctx.Err() != nil {
		return nil
	}

	addr := net.JoinHostPort(ip, fmt.Sprint(s.Port))
	conn, err := net.DialTimeout("tcp", addr, s.ProbeTimeout)
	if err != nil {
		return nil
	}
	_ = conn.Close()

	device := s.fetch(ctx, ip)
	if device != nil {
		logging.LogDeviceFound("scan", device.IP, device.Name)
	}
	return device
}

// LocalSubnetPrefix derives the local /24 prefix from the default
// route: dialing an outbound UDP socket binds a local address via a
// route-table lookup without sending any packet. Falls back to
// "192.168.1" when the host has no route.
func LocalSubnetPrefix() string {
	conn, err := net.Dial("udp4", "8.8.8.8:80")
	if err != nil {
		return "192.168.1"
	}
	defer func() { _ = conn.Close() }()

	local, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok || local.IP.To4() == nil {
		return "192.168.1"
	}
	return PrefixOf(local.IP.String())
}

// PrefixOf returns the /24 prefix of a dotted IPv4 address
func PrefixOf(ip string) string {
	parts := strings.Split(ip, ".")
	if len(parts) != 4 {
		return "192.168.1"
	}
	return strings.Join(parts[:3], ".")
}

// pool is a bounded worker pool: jobs queue onto a channel drained by
// a fixed number of workers, and wait blocks until every queued job
// has finished.
type pool struct {
	jobs chan func()
	wg   sync.WaitGroup
}

func newPool(workers int) *pool {
	p := &pool{jobs: make(chan func())}
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer p.wg.Done()
			for job := range p.jobs {
				job()
			}
		}()
	}
	return p
}

func (p *pool) add(job func()) {
	p.jobs <- job
}

func (p *pool) wait() {
	close(p.jobs)
	p.wg.Wait()
}
