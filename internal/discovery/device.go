package discovery

import "fmt"

// Device represents a discovered SoundTouch speaker on the network
type Device struct {
	// IP is the IPv4 address (e.g., "192.168.1.42"). Devices are keyed
	// by IP within a single discovery run; DHCP may reassign addresses
	// between runs.
	IP string `json:"ip"`

	// Name is the user-assigned speaker name from the /info descriptor
	Name string `json:"name"`

	// Type is the hardware model (e.g., "SoundTouch 20"), or "Unknown"
	Type string `json:"type"`

	// DeviceID is the deviceID attribute from the descriptor, or "Unknown"
	DeviceID string `json:"deviceId"`
}

// String returns a human-readable string representation of the device
func (d *Device) String() string {
	return fmt.Sprintf("SoundTouch %q (%s) at %s", d.Name, d.Type, d.IP)
}

// BaseURL returns the HTTP base URL for the device's control API
func (d *Device) BaseURL() string {
	return fmt.Sprintf("http://%s:%d", d.IP, DevicePort)
}
