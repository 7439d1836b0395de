package proxy

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/soundbridge/soundbridge/internal/logging"
	"go.uber.org/zap"
)

const (
	// PathPrefix is stripped from inbound paths before forwarding
	PathPrefix = "/api"

	// forwardTimeout bounds a forwarded call. Longer than discovery
	// probes: some device operations (source switching, presets) are
	// slow.
	forwardTimeout = 10 * time.Second

	// deviceContentType is the SoundTouch wire format
	deviceContentType = "application/xml"

	// overrideMarker selects an explicit per-request target
	overrideMarker = "?device="

	// devicePort is the fixed TCP port of the SoundTouch control API
	devicePort = 8090
)

// TargetSource supplies the currently selected device IP. Empty means
// no selection.
type TargetSource interface {
	CurrentIP() string
}

// Forwarder relays /api calls to the selected (or overridden) device
type Forwarder struct {
	targets    TargetSource
	client     *http.Client
	devicePort int
}

// NewForwarder creates a Forwarder reading its default target from targets
func NewForwarder(targets TargetSource) *Forwarder {
	return &Forwarder{
		targets:    targets,
		client:     &http.Client{Timeout: forwardTimeout},
		devicePort: devicePort,
	}
}

// ResolveTarget strips the /api prefix from rawPath and picks the
// target device. An inline "?device=" override beats the current
// selection.
//
// The override value is taken by literal string splitting up to the
// next "&": it is not URL-decoded and not validated as an IP. That
// looseness is inherited behavior the UI depends on; do not harden it
// here without a product decision.
func (f *Forwarder) ResolveTarget(rawPath string) (target string, rest string, perr *Error) {
	rest = strings.TrimPrefix(rawPath, PathPrefix)

	target = f.targets.CurrentIP()
	if idx := strings.Index(rest, overrideMarker); idx >= 0 {
		override := rest[idx+len(overrideMarker):]
		rest = rest[:idx]
		if amp := strings.Index(override, "&"); amp >= 0 {
			override = override[:amp]
		}
		target = override
	}

	if target == "" {
		return "", "", NewNoTargetError()
	}
	return target, rest, nil
}

// Forward relays one inbound request to the device and streams the
// response back. The request body is forwarded unchanged for POST and
// omitted for GET; status code, content type, and body come back
// verbatim from the device.
func (f *Forwarder) Forward(w http.ResponseWriter, r *http.Request) {
	target, rest, perr := f.ResolveTarget(r.URL.RequestURI())
	if perr != nil {
		WriteError(w, perr)
		return
	}

	url := fmt.Sprintf("http://%s:%d%s", target, f.devicePort, rest)
	logging.LogProxyRequest(r.Method, rest, target)

	var body io.Reader
	if r.Method == http.MethodPost {
		body = r.Body
	}

	req, err := http.NewRequestWithContext(r.Context(), r.Method, url, body)
	if err != nil {
		WriteError(w, newInternalError("failed to build forwarded request", err))
		return
	}
	req.Header.Set("Content-Type", deviceContentType)

	resp, err := f.client.Do(req)
	if err != nil {
		WriteError(w, newUpstreamError(target, err))
		return
	}
	defer func() { _ = resp.Body.Close() }()

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = deviceContentType
	}

	SetCORSHeaders(w)
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil {
		// Headers are gone; all we can do is log the truncated relay.
		logging.Warn("relay interrupted", zap.String("target", target), zap.Error(err))
	}
}

// WriteError writes a proxy error as the client-visible HTTP response
func WriteError(w http.ResponseWriter, perr *Error) {
	logging.Warn("proxy request failed",
		zap.String("kind", perr.Kind.String()),
		zap.Error(perr),
	)
	SetCORSHeaders(w)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(perr.Kind.HTTPStatus())
	fmt.Fprintln(w, perr.Message)
}

// SetCORSHeaders marks a response as same-origin-unrestricted. Every
// response from the bridge carries this, proxied and JSON alike, so a
// controller page served from anywhere can talk to it.
func SetCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
}
