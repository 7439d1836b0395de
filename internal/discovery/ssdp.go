package discovery

import (
	"context"
	"net"
	"strings"
	"time"

	"github.com/soundbridge/soundbridge/internal/logging"
	"go.uber.org/zap"
)

const (
	// ssdpAddr is the well-known SSDP multicast group and port
	ssdpAddr = "239.255.255.250:1900"

	// ssdpReadWait bounds a single datagram read so the receive loop
	// can re-check the outer probe deadline even when the network is
	// quiet. Independent of the overall probe timeout.
	ssdpReadWait = 500 * time.Millisecond
)

// ssdpSearchRequest is the M-SEARCH datagram sent to the multicast
// group. The format must stay byte-exact: real renderers validate the
// request line, header order is conventional, and the blank line
// terminator is mandatory.
const ssdpSearchRequest = "M-SEARCH * HTTP/1.1\r\n" +
	"HOST: 239.255.255.250:1900\r\n" +
	"MAN: \"ssdp:discover\"\r\n" +
	"MX: 2\r\n" +
	"ST: urn:schemas-upnp-org:device:MediaRenderer:1\r\n" +
	"\r\n"

// vendorMarkers identify a SoundTouch speaker in a free-form SSDP
// response. Responses are scanned textually, not parsed.
var vendorMarkers = []string{"Bose", "SoundTouch"}

// infoFetcher resolves an IP to a Device record. Probers take it as a
// parameter so tests can substitute a fake; production callers pass
// FetchInfo.
type infoFetcher func(ctx context.Context, ip string) *Device

// ProbeSSDP sends one M-SEARCH to the SSDP multicast group and
// collects matching responders until timeout elapses.
//
// Duplicate responses from an IP already in the result set never
// re-invoke the fetcher. All socket and probe errors are absorbed:
// the worst case is an empty result set.
func ProbeSSDP(ctx context.Context, timeout time.Duration, fetch infoFetcher) map[string]*Device {
	devices := make(map[string]*Device)

	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4zero, Port: 0})
	if err != nil {
		logging.Warn("ssdp socket unavailable", zap.Error(err))
		return devices
	}
	defer func() { _ = conn.Close() }()

	group, err := net.ResolveUDPAddr("udp4", ssdpAddr)
	if err != nil {
		logging.Warn("ssdp address invalid", zap.Error(err))
		return devices
	}

	if _, err := conn.WriteToUDP([]byte(ssdpSearchRequest), group); err != nil {
		logging.Warn("ssdp search send failed", zap.Error(err))
		return devices
	}
	logging.Debug("ssdp search sent", zap.String("group", ssdpAddr))

	deadline := time.Now().Add(timeout)
	buf := make([]byte, 4096)

	for time.Now().Before(deadline) {
		if ctx.Err() != nil {
			break
		}

		// Wake up at least every ssdpReadWait so the outer deadline
		// bounds total wall time regardless of datagram arrival.
		readWait := ssdpReadWait
		if remaining := time.Until(deadline); remaining < readWait {
			readWait = remaining
		}
		_ = conn.SetReadDeadline(time.Now().Add(readWait))

		n, addr, err := conn.ReadFromUDP(buf)
		if err != nil {
			if nerr, ok := err.(net.Error); ok && nerr.Timeout() {
				continue
			}
			logging.Debug("ssdp read failed", zap.Error(err))
			break
		}

		response := string(buf[:n])
		if !matchesVendor(response) {
			continue
		}

		ip := addr.IP.String()
		if _, known := devices[ip]; known {
			continue
		}
		if device := fetch(ctx, ip); device != nil {
			devices[ip] = device
			logging.LogDeviceFound("ssdp", device.IP, device.Name)
		}
	}

	return devices
}

func matchesVendor(response string) bool {
	for _, marker := range vendorMarkers {
		if strings.Contains(response, marker) {
			return true
		}
	}
	return false
}
