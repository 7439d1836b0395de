// Package server implements the local control endpoint of the bridge.
//
// Surface:
//
//	GET  /discover        run discovery, return ip -> device JSON
//	GET  /current-device  selection state snapshot {ip, devices}
//	POST /set-device      select the proxy target {"ip": "..."}
//	GET|POST /api/...     relay to the selected or overridden device
//	GET  /events          WebSocket relay of device notifications
//	OPTIONS *             CORS preflight
//
// Every response carries an open cross-origin-allow header so a
// controller page served from anywhere can use the bridge. Requests
// are handled concurrently by net/http; the shared selection state is
// the only cross-request structure and is internally synchronized.
package server
