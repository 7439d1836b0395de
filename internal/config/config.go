// Package config loads bridge settings from an optional YAML file with
// environment-variable and flag overrides layered on top.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	appName    = "soundbridge"
	configFile = "config.yaml"

	// DeviceIPEnvVar holds the initial device selection. The name
	// predates this implementation; existing deployments set it.
	DeviceIPEnvVar = "SOUNDTOUCH_DEVICE_IP"

	// ListenPortEnvVar overrides the local listen port
	ListenPortEnvVar = "SOUNDTOUCH_PORT"
)

// Config is the resolved bridge configuration. Precedence, lowest to
// highest: built-in defaults, config file, environment, flags.
type Config struct {
	// ListenPort is the local control endpoint port (default 8000)
	ListenPort int `yaml:"listen_port"`

	// DeviceIP optionally seeds the selected device at startup
	DeviceIP string `yaml:"device_ip"`

	// DiscoveryTimeoutSeconds bounds the multicast phase of a
	// discovery run (default 3)
	DiscoveryTimeoutSeconds int `yaml:"discovery_timeout_seconds"`

	// DisableMDNS turns off the mDNS half of the multicast phase on
	// networks that filter Bonjour traffic
	DisableMDNS bool `yaml:"disable_mdns"`
}

// Default returns the documented defaults
func Default() *Config {
	return &Config{
		ListenPort:              8000,
		DiscoveryTimeoutSeconds: 3,
	}
}

// DiscoveryTimeout returns the multicast phase budget as a Duration
func (c *Config) DiscoveryTimeout() time.Duration {
	return time.Duration(c.DiscoveryTimeoutSeconds) * time.Second
}

// GetConfigDir returns the OS-appropriate configuration directory:
//   - Linux: $XDG_CONFIG_HOME/soundbridge or $HOME/.config/soundbridge
//   - macOS: $HOME/.config/soundbridge
//   - Windows: %LOCALAPPDATA%\soundbridge
func GetConfigDir() (string, error) {
	var baseDir string

	switch runtime.GOOS {
	case "windows":
		localAppData := os.Getenv("LOCALAPPDATA")
		if localAppData == "" {
			userProfile := os.Getenv("USERPROFILE")
			if userProfile == "" {
				return "", fmt.Errorf("cannot determine user profile directory (LOCALAPPDATA and USERPROFILE not set)")
			}
			baseDir = filepath.Join(userProfile, "AppData", "Local", appName)
		} else {
			baseDir = filepath.Join(localAppData, appName)
		}

	default:
		xdgConfigHome := os.Getenv("XDG_CONFIG_HOME")
		if xdgConfigHome != "" {
			baseDir = filepath.Join(xdgConfigHome, appName)
		} else {
			homeDir, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("cannot determine home directory: %w", err)
			}
			baseDir = filepath.Join(homeDir, ".config", appName)
		}
	}

	return baseDir, nil
}

// GetConfigPath returns the full path to the configuration file
func GetConfigPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, configFile), nil
}

// Load resolves the configuration: defaults, then the config file if
// present, then environment variables. A missing file is not an error;
// a malformed file is.
func Load() (*Config, error) {
	cfg := Default()

	path, err := GetConfigPath()
	if err == nil {
		if err := loadFile(cfg, path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

func loadFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	if ip := os.Getenv(DeviceIPEnvVar); ip != "" {
		c.DeviceIP = ip
	}
	if port := os.Getenv(ListenPortEnvVar); port != "" {
		if n, err := strconv.Atoi(port); err == nil && n > 0 {
			c.ListenPort = n
		}
	}
}
