// Package proxy relays application-layer requests to a SoundTouch
// device, decoupling clients from the speaker's ephemeral IP address.
//
// The target is resolved per request: an inline "?device=" override
// wins, otherwise the current selection is used, and with neither the
// call fails as a precondition error before any connection attempt.
// Failures map to fixed HTTP statuses (412 no target, 502 unreachable
// device, 500 anything else); device responses relay verbatim.
package proxy
