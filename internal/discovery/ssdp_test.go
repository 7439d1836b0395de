package discovery

import (
	"strings"
	"testing"
)

func TestSSDPSearchRequestFormat(t *testing.T) {
	// Interoperability depends on the exact bytes: request line,
	// colon-delimited headers, CRLF line endings, blank terminator.
	want := "M-SEARCH * HTTP/1.1\r\n" +
		"HOST: 239.255.255.250:1900\r\n" +
		"MAN: \"ssdp:discover\"\r\n" +
		"MX: 2\r\n" +
		"ST: urn:schemas-upnp-org:device:MediaRenderer:1\r\n" +
		"\r\n"

	if ssdpSearchRequest != want {
		t.Errorf("ssdpSearchRequest = %q, want %q", ssdpSearchRequest, want)
	}

	if !strings.HasSuffix(ssdpSearchRequest, "\r\n\r\n") {
		t.Error("ssdpSearchRequest must end with a blank line terminator")
	}
}

func TestMatchesVendor(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     bool
	}{
		{
			name: "Bose server header",
			response: "HTTP/1.1 200 OK\r\n" +
				"SERVER: Linux UPnP/1.0 Bose/1.0\r\n" +
				"ST: urn:schemas-upnp-org:device:MediaRenderer:1\r\n\r\n",
			want: true,
		},
		{
			name: "SoundTouch in USN",
			response: "HTTP/1.1 200 OK\r\n" +
				"USN: uuid:SoundTouch-689E19653E96\r\n\r\n",
			want: true,
		},
		{
			name: "unrelated renderer",
			response: "HTTP/1.1 200 OK\r\n" +
				"SERVER: Sonos/57.3\r\n\r\n",
			want: false,
		},
		{
			name:     "empty response",
			response: "",
			want:     false,
		},
		{
			name:     "case matters for the marker",
			response: "SERVER: bose soundtouch\r\n",
			want:     false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := matchesVendor(tt.response); got != tt.want {
				t.Errorf("matchesVendor(%q) = %v, want %v", tt.response, got, tt.want)
			}
		})
	}
}
