package discovery

import (
	"context"
	"time"

	"github.com/grandcat/zeroconf"
	"github.com/soundbridge/soundbridge/internal/logging"
	"go.uber.org/zap"
)

const (
	// serviceType is the mDNS service SoundTouch speakers advertise
	serviceType = "_soundtouch._tcp"

	// serviceDomain is the mDNS domain (typically "local.")
	serviceDomain = "local."
)

// ProbeMDNS browses for _soundtouch._tcp services until timeout
// elapses. Entries resolve to their first IPv4 address and are
// confirmed through the descriptor fetcher, so the returned records
// carry the same identity fields as SSDP and scan results.
//
// mDNS runs alongside SSDP in the multicast phase; failures here are
// absorbed like any other probe failure.
func ProbeMDNS(ctx context.Context, timeout time.Duration, fetch infoFetcher) map[string]*Device {
	devices := make(map[string]*Device)

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		logging.Warn("mdns resolver unavailable", zap.Error(err))
		return devices
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)
	done := make(chan struct{})

	go func() {
		defer close(done)
		for entry := range entries {
			ip := entryIPv4(entry)
			if ip == "" {
				continue
			}
			if _, known := devices[ip]; known {
				continue
			}
			if device := fetch(ctx, ip); device != nil {
				devices[ip] = device
				logging.LogDeviceFound("mdns", device.IP, device.Name)
			}
		}
	}()

	if err := resolver.Browse(ctx, serviceType, serviceDomain, entries); err != nil {
		logging.Warn("mdns browse failed", zap.Error(err))
		return devices
	}

	<-ctx.Done()
	// Browse closes the entries channel when ctx is done; wait for the
	// collector so no write races the return.
	<-done

	return devices
}

func entryIPv4(entry *zeroconf.ServiceEntry) string {
	for _, addr := range entry.AddrIPv4 {
		return addr.String()
	}
	return ""
}
