package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/soundbridge/soundbridge/internal/discovery"
	"github.com/soundbridge/soundbridge/internal/state"
)

type fakeDiscoverer struct {
	devices map[string]*discovery.Device
	runs    int
	publish func(map[string]*discovery.Device)
}

func (f *fakeDiscoverer) Discover(ctx context.Context, timeout time.Duration) map[string]*discovery.Device {
	f.runs++
	if f.publish != nil {
		f.publish(f.devices)
	}
	return f.devices
}

func newTestServer(initialIP string, disc *fakeDiscoverer) (*Server, *state.State) {
	st := state.New(initialIP)
	if disc == nil {
		disc = &fakeDiscoverer{devices: map[string]*discovery.Device{}}
	}
	// The real orchestrator publishes into state before returning.
	disc.publish = st.PublishDevices
	srv := New(&Config{Port: 0, DiscoveryTimeout: time.Second}, st, disc)
	return srv, st
}

func do(t *testing.T, srv *Server, method, path string, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestDiscoverEndpoint(t *testing.T) {
	disc := &fakeDiscoverer{devices: map[string]*discovery.Device{
		"192.168.1.42": {IP: "192.168.1.42", Name: "Living Room", Type: "SoundTouch 20", DeviceID: "AABB"},
	}}
	srv, st := newTestServer("", disc)

	rec := do(t, srv, http.MethodGet, "/discover", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("GET /discover = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("response missing open CORS header")
	}

	var got map[string]*discovery.Device
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("response is not valid JSON: %v", err)
	}
	if len(got) != 1 || got["192.168.1.42"] == nil || got["192.168.1.42"].Name != "Living Room" {
		t.Errorf("GET /discover = %v, want the discovered mapping", got)
	}

	// The run's set must be visible to subsequent state reads.
	_, devices := st.Snapshot()
	if len(devices) != 1 {
		t.Errorf("state holds %d devices after /discover, want 1", len(devices))
	}
}

func TestCurrentDeviceIdempotent(t *testing.T) {
	srv, st := newTestServer("10.0.0.5", nil)
	st.PublishDevices(map[string]*discovery.Device{
		"10.0.0.5": {IP: "10.0.0.5", Name: "Office"},
	})

	first := do(t, srv, http.MethodGet, "/current-device", "")
	second := do(t, srv, http.MethodGet, "/current-device", "")

	if first.Code != http.StatusOK || second.Code != http.StatusOK {
		t.Fatalf("GET /current-device = %d/%d, want 200/200", first.Code, second.Code)
	}
	if first.Body.String() != second.Body.String() {
		t.Errorf("repeated reads differ:\n%s\n%s", first.Body.String(), second.Body.String())
	}

	var got struct {
		IP      string                       `json:"ip"`
		Devices map[string]*discovery.Device `json:"devices"`
	}
	if err := json.Unmarshal(first.Body.Bytes(), &got); err != nil {
		t.Fatalf("response is not valid JSON: %v", err)
	}
	if got.IP != "10.0.0.5" {
		t.Errorf("ip = %q, want %q", got.IP, "10.0.0.5")
	}
	if len(got.Devices) != 1 {
		t.Errorf("devices = %v, want the published set", got.Devices)
	}
}

func TestSetDeviceRoundTrip(t *testing.T) {
	srv, st := newTestServer("", nil)

	rec := do(t, srv, http.MethodPost, "/set-device", `{"ip":"10.0.0.5"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("POST /set-device = %d, want 200", rec.Code)
	}

	var resp struct {
		Success bool   `json:"success"`
		IP      string `json:"ip"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("response is not valid JSON: %v", err)
	}
	if !resp.Success || resp.IP != "10.0.0.5" {
		t.Errorf("response = %+v, want success with the new ip", resp)
	}

	read := do(t, srv, http.MethodGet, "/current-device", "")
	var got struct {
		IP string `json:"ip"`
	}
	if err := json.Unmarshal(read.Body.Bytes(), &got); err != nil {
		t.Fatalf("response is not valid JSON: %v", err)
	}
	if got.IP != "10.0.0.5" {
		t.Errorf("GET /current-device after set = %q, want %q", got.IP, "10.0.0.5")
	}
	if st.CurrentIP() != "10.0.0.5" {
		t.Errorf("state.CurrentIP() = %q, want %q", st.CurrentIP(), "10.0.0.5")
	}
}

func TestSetDeviceRejectsMalformedJSON(t *testing.T) {
	srv, _ := newTestServer("", nil)
	rec := do(t, srv, http.MethodPost, "/set-device", `{"ip": `)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("POST /set-device with bad JSON = %d, want 400", rec.Code)
	}
}

func TestProxyWithNoSelectionIsPreconditionFailed(t *testing.T) {
	srv, _ := newTestServer("", nil)
	rec := do(t, srv, http.MethodGet, "/api/now_playing", "")
	if rec.Code != http.StatusPreconditionFailed {
		t.Errorf("GET /api/now_playing with no selection = %d, want %d",
			rec.Code, http.StatusPreconditionFailed)
	}
}

func TestOptionsPreflight(t *testing.T) {
	srv, _ := newTestServer("", nil)

	for _, path := range []string{"/", "/api/now_playing", "/set-device", "/anything"} {
		rec := do(t, srv, http.MethodOptions, path, "")
		if rec.Code != http.StatusOK {
			t.Errorf("OPTIONS %s = %d, want 200", path, rec.Code)
		}
		if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
			t.Errorf("OPTIONS %s missing allow-origin header", path)
		}
		if got := rec.Header().Get("Access-Control-Allow-Methods"); !strings.Contains(got, "POST") {
			t.Errorf("OPTIONS %s allow-methods = %q, want GET/POST/OPTIONS", path, got)
		}
	}
}

func TestUnmatchedRoutesAreNotFound(t *testing.T) {
	srv, _ := newTestServer("", nil)

	tests := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/"},
		{http.MethodGet, "/unknown"},
		{http.MethodPost, "/discover"},       // wrong method
		{http.MethodGet, "/set-device"},      // wrong method
		{http.MethodDelete, "/api/presets"},  // unsupported proxy method
		{http.MethodGet, "/api"},             // prefix without rest
	}

	for _, tt := range tests {
		rec := do(t, srv, tt.method, tt.path, "")
		if rec.Code != http.StatusNotFound {
			t.Errorf("%s %s = %d, want 404", tt.method, tt.path, rec.Code)
		}
	}
}

func TestDiscoverRunsOncePerRequest(t *testing.T) {
	disc := &fakeDiscoverer{devices: map[string]*discovery.Device{}}
	srv, _ := newTestServer("", disc)

	do(t, srv, http.MethodGet, "/discover", "")
	do(t, srv, http.MethodGet, "/discover", "")

	if disc.runs != 2 {
		t.Errorf("discoverer invoked %d times for 2 requests, want 2 (no caching, no retries)", disc.runs)
	}
}
