package discovery

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"time"

	"github.com/soundbridge/soundbridge/internal/logging"
	"go.uber.org/zap"
)

const (
	// DevicePort is the fixed TCP port of the SoundTouch control API
	DevicePort = 8090

	// infoTimeout bounds a single /info probe. Probes run inside a
	// fan-out scan, so they must fail fast.
	infoTimeout = 2 * time.Second

	// maxInfoBody caps how much of a descriptor we read. Real
	// descriptors are a few hundred bytes.
	maxInfoBody = 64 << 10
)

// The /info descriptor is an XML-ish fragment; real devices emit
// payloads that strict XML parsers reject, so identity fields are
// extracted by marker regexes instead.
var (
	namePattern     = regexp.MustCompile(`<name>([^<]+)</name>`)
	typePattern     = regexp.MustCompile(`<type>([^<]+)</type>`)
	deviceIDPattern = regexp.MustCompile(`deviceID="([^"]+)"`)
)

// infoClient is shared across probes; per-request timeouts come from
// its Timeout rather than per-call contexts so a hung read cannot
// outlive the probe budget.
var infoClient = &http.Client{Timeout: infoTimeout}

// FetchInfo queries the descriptor endpoint of the device at ip and
// returns its identity record.
//
// This is a best-effort probe: any network error, timeout, non-200
// status, or descriptor without a <name> element returns nil rather
// than an error. Type and DeviceID default to "Unknown" when absent.
func FetchInfo(ctx context.Context, ip string) *Device {
	url := fmt.Sprintf("http://%s:%d/info", ip, DevicePort)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		logging.Debug("probe failed", zap.String("ip", ip), zap.Error(err))
		return nil
	}

	resp, err := infoClient.Do(req)
	if err != nil {
		logging.Debug("probe failed", zap.String("ip", ip), zap.Error(err))
		return nil
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		logging.Debug("no descriptor", zap.String("ip", ip), zap.Int("status", resp.StatusCode))
		return nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxInfoBody))
	if err != nil {
		logging.Debug("probe failed", zap.String("ip", ip), zap.Error(err))
		return nil
	}

	return ParseInfo(ip, body)
}

// ParseInfo extracts a Device from a raw /info descriptor body.
// A body without a name is not a SoundTouch descriptor and yields nil.
func ParseInfo(ip string, body []byte) *Device {
	name := namePattern.FindSubmatch(body)
	if name == nil {
		logging.Debug("no descriptor", zap.String("ip", ip))
		return nil
	}

	device := &Device{
		IP:       ip,
		Name:     string(name[1]),
		Type:     "Unknown",
		DeviceID: "Unknown",
	}
	if m := typePattern.FindSubmatch(body); m != nil {
		device.Type = string(m[1])
	}
	if m := deviceIDPattern.FindSubmatch(body); m != nil {
		device.DeviceID = string(m[1])
	}
	return device
}
