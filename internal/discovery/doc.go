// Package discovery locates SoundTouch speakers on the local network.
//
// Two strategies feed one result set:
//
//   - Multicast probing: an SSDP M-SEARCH for MediaRenderer devices
//     (responses scanned for the Bose vendor marker), merged with an
//     mDNS browse for _soundtouch._tcp services.
//   - Port scanning: a bounded-concurrency TCP sweep of the local /24
//     on the device control port, used only when multicast probing
//     finds nothing.
//
// Every candidate IP is confirmed through the /info descriptor
// endpoint before it becomes a Device. All probe failures are
// absorbed: discovery returns partial or empty sets, never errors.
package discovery
