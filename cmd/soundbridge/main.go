// Soundbridge is a local proxy for Bose SoundTouch speakers.
//
// It discovers speakers on the local subnet (SSDP and mDNS, with a
// port-scan fallback) and relays control API requests to the selected
// device through one stable endpoint, so controller UIs never need to
// track the speaker's IP address.
//
// Usage:
//
//	soundbridge serve [flags]
//
// See 'soundbridge serve --help' for available options.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/soundbridge/soundbridge/internal/config"
	"github.com/soundbridge/soundbridge/internal/discovery"
	"github.com/soundbridge/soundbridge/internal/logging"
	"github.com/soundbridge/soundbridge/internal/server"
	"github.com/soundbridge/soundbridge/internal/state"
	"github.com/soundbridge/soundbridge/internal/version"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "soundbridge",
	Short: "SoundTouch proxy bridge",
	Long: `A local bridge for Bose SoundTouch speakers.

The bridge finds speakers on your network and forwards controller
requests to whichever one is selected, so the controller only ever
talks to one stable local address.`,
	Version: version.Version,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

// Serve command and flags
var (
	host     string
	port     int
	deviceIP string
	logLevel string
	noMDNS   bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the bridge server",
	Long: `Start the bridge's local control endpoint.

With no initial device the bridge starts unselected: hit /discover to
find speakers and POST /set-device to pick one. Settings come from
` + "`~/.config/soundbridge/config.yaml`" + ` when present, overridden by the
SOUNDTOUCH_DEVICE_IP and SOUNDTOUCH_PORT environment variables and
then by flags.`,
	Example: `  # Start on the default port 8000
  soundbridge serve

  # Start pre-selected on a known speaker
  soundbridge serve --device 192.168.1.42

  # Custom port with verbose logging
  soundbridge serve --port 9000 --log-level debug`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&host, "host", "", "Listen hostname (empty = all interfaces)")
	serveCmd.Flags().IntVar(&port, "port", 0, "Listen port (default 8000, env: SOUNDTOUCH_PORT)")
	serveCmd.Flags().StringVar(&deviceIP, "device", "", "Initial SoundTouch device IP (env: SOUNDTOUCH_DEVICE_IP)")
	serveCmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	serveCmd.Flags().BoolVar(&noMDNS, "no-mdns", false, "Disable mDNS discovery (SSDP and scan fallback only)")
}

func runServe(cmd *cobra.Command, args []string) error {
	if err := logging.Initialize(logLevel); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if port != 0 {
		cfg.ListenPort = port
	}
	if deviceIP != "" {
		cfg.DeviceIP = deviceIP
	}
	if noMDNS {
		cfg.DisableMDNS = true
	}

	st := state.New(cfg.DeviceIP)
	orchestrator := discovery.NewOrchestrator(st, !cfg.DisableMDNS)

	srv := server.New(&server.Config{
		Host:             host,
		Port:             cfg.ListenPort,
		DiscoveryTimeout: cfg.DiscoveryTimeout(),
	}, st, orchestrator)

	return srv.Start()
}

// Version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("soundbridge %s\n", version.Full())
	},
}
