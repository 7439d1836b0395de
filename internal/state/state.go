// Package state holds the process-wide selection record: which speaker
// proxied requests go to, and the result set of the last discovery run.
package state

import (
	"sync"

	"github.com/soundbridge/soundbridge/internal/discovery"
	"github.com/soundbridge/soundbridge/internal/logging"
	"go.uber.org/zap"
)

// State is the only shared mutable structure in the process. The
// orchestrator writes the device set from discovery runs while request
// handlers read concurrently, so every access goes through the mutex.
// It is constructed once in main and passed by handle, never reached
// through a package global.
type State struct {
	mu        sync.RWMutex
	currentIP string
	devices   map[string]*discovery.Device
}

// New creates a State. initialIP may be empty; when set (startup flag
// or environment) it seeds the current selection.
func New(initialIP string) *State {
	return &State{
		currentIP: initialIP,
		devices:   make(map[string]*discovery.Device),
	}
}

// Snapshot returns the current selection and a copy of the last
// discovery result set. The copy means callers can never observe a
// set mid-publish.
func (s *State) Snapshot() (ip string, devices map[string]*discovery.Device) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	devices = make(map[string]*discovery.Device, len(s.devices))
	for k, v := range s.devices {
		devices[k] = v
	}
	return s.currentIP, devices
}

// CurrentIP returns the currently selected device IP, or empty when
// none is selected.
func (s *State) CurrentIP() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentIP
}

// SetDevice records ip as the proxy target. This is a trusted client
// directive: no reachability or membership validation is performed.
// Concurrent calls race benignly; last write wins.
func (s *State) SetDevice(ip string) {
	s.mu.Lock()
	s.currentIP = ip
	s.mu.Unlock()
	logging.Info("device selected", zap.String("ip", ip))
}

// PublishDevices replaces the stored result set wholesale. Readers see
// either the previous complete set or the new complete set, never a
// mixture.
func (s *State) PublishDevices(devices map[string]*discovery.Device) {
	set := make(map[string]*discovery.Device, len(devices))
	for k, v := range devices {
		set[k] = v
	}
	s.mu.Lock()
	s.devices = set
	s.mu.Unlock()
}
