package discovery

import (
	"context"
	"sync"
	"time"

	"github.com/soundbridge/soundbridge/internal/logging"
	"go.uber.org/zap"
)

// DefaultTimeout is the default budget for the multicast phase of a
// discovery run
const DefaultTimeout = 3 * time.Second

// Publisher receives the result set of a completed discovery run.
// Implementations must replace any previous set atomically with
// respect to concurrent readers.
type Publisher interface {
	PublishDevices(devices map[string]*Device)
}

// proberFunc is one strategy of the multicast phase
type proberFunc func(ctx context.Context, timeout time.Duration, fetch infoFetcher) map[string]*Device

// Orchestrator runs the discovery strategies and publishes the result.
// Multicast probing (SSDP, plus mDNS unless disabled) runs first; the
// port scanner is the fallback if and only if the multicast phase
// found nothing.
type Orchestrator struct {
	publisher Publisher

	// strategy hooks, swappable in tests
	probers []proberFunc
	scan    func(ctx context.Context) map[string]*Device
	fetch   infoFetcher
}

// NewOrchestrator wires the production strategies. mDNS can be turned
// off for networks where Bonjour traffic is filtered; SSDP always runs.
func NewOrchestrator(publisher Publisher, enableMDNS bool) *Orchestrator {
	probers := []proberFunc{ProbeSSDP}
	if enableMDNS {
		probers = append(probers, ProbeMDNS)
	}
	return &Orchestrator{
		publisher: publisher,
		probers:   probers,
		scan:      func(ctx context.Context) map[string]*Device { return NewScanner().Scan(ctx) },
		fetch:     FetchInfo,
	}
}

// Discover executes one discovery run and returns the fresh result
// set. The set is published to the Publisher before returning, so a
// caller's response and concurrent state reads agree on the same run.
// No retries: a caller that wants another attempt re-invokes.
func (o *Orchestrator) Discover(ctx context.Context, timeout time.Duration) map[string]*Device {
	start := time.Now()

	// Multicast phase. Strategies run in parallel so the phase is
	// bounded by one timeout, then merge in declaration order: the
	// first strategy's record wins on IP collisions.
	results := make([]map[string]*Device, len(o.probers))
	var wg sync.WaitGroup
	for i, probe := range o.probers {
		wg.Add(1)
		go func(i int, probe proberFunc) {
			defer wg.Done()
			results[i] = probe(ctx, timeout, o.fetch)
		}(i, probe)
	}
	wg.Wait()

	devices := make(map[string]*Device)
	for _, result := range results {
		for ip, device := range result {
			if _, known := devices[ip]; !known {
				devices[ip] = device
			}
		}
	}

	// Scan fallback, only when multicast heard nothing at all.
	if len(devices) == 0 {
		devices = o.scan(ctx)
	}

	o.publisher.PublishDevices(devices)

	logging.Info("discovery run complete",
		zap.Int("devices", len(devices)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return devices
}
