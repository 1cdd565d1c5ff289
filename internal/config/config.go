// Package config provides configuration management for the dmxnet node.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/bbernstein/dmxnet-go/pkg/artnet"
)

// Config holds all configuration values for the node host.
type Config struct {
	// HTTP monitor configuration
	Port        string
	Env         string
	HTTPEnabled bool
	CORSOrigin  string

	// Controller history
	HistoryEnabled   bool
	DatabaseURL      string
	HistoryRetention time.Duration

	// Art-Net node identity
	ArtNetOEM        uint16
	ArtNetListenPort int
	ArtNetShortName  string
	ArtNetLongName   string
	ArtNetHosts      []string
	ArtNetDebug      bool

	// Endpoints created at startup
	ArtNetSenders         string
	ArtNetReceivers       string
	ArtNetRefreshInterval time.Duration
}

// SenderEntry is one entry of ARTNET_SENDERS.
type SenderEntry struct {
	Address artnet.PortAddress
	IP      string
	Port    int
}

// Load loads configuration from environment variables with sensible defaults.
// Malformed values fall back to the default, except ARTNET_LISTEN_PORT, which
// is reported as an error.
func Load() (*Config, error) {
	listenPort, err := getEnvIntStrict("ARTNET_LISTEN_PORT", artnet.DefaultPort)
	if err != nil {
		return nil, err
	}

	return &Config{
		// HTTP
		Port:        getEnv("PORT", "4000"),
		Env:         getEnv("ENV", "development"),
		HTTPEnabled: getEnvBool("HTTP_ENABLED", true),
		CORSOrigin:  getEnv("CORS_ORIGIN", "http://localhost:3000"),

		// History
		HistoryEnabled: getEnvBool("HISTORY_ENABLED", false),
		DatabaseURL:    getEnv("DATABASE_URL", "file:./dmxnet.db"),

		// Zero keeps history forever
		HistoryRetention: time.Duration(getEnvInt("HISTORY_RETENTION_DAYS", 30)) * 24 * time.Hour,

		// Art-Net
		ArtNetOEM:        getEnvUint16("ARTNET_OEM", artnet.DefaultOEM),
		ArtNetListenPort: listenPort,
		ArtNetShortName:  getEnv("ARTNET_SHORT_NAME", ""),
		ArtNetLongName:   getEnv("ARTNET_LONG_NAME", ""),
		ArtNetHosts:      getEnvList("ARTNET_HOSTS"),
		ArtNetDebug:      getEnvBool("ARTNET_DEBUG", false),

		ArtNetSenders:         getEnv("ARTNET_SENDERS", ""),
		ArtNetReceivers:       getEnv("ARTNET_RECEIVERS", ""),
		ArtNetRefreshInterval: time.Duration(getEnvInt("ARTNET_REFRESH_INTERVAL", 1000)) * time.Millisecond,
	}, nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Senders parses ARTNET_SENDERS, a comma separated list of
// "net:subnet:universe[@ip[:port]]" entries.
func (c *Config) Senders() ([]SenderEntry, error) {
	var entries []SenderEntry
	for _, entry := range splitList(c.ArtNetSenders) {
		addrPart, destPart, hasDest := strings.Cut(entry, "@")

		addr, err := artnet.ParsePortAddress(addrPart)
		if err != nil {
			return nil, fmt.Errorf("ARTNET_SENDERS entry %q: %w", entry, err)
		}
		se := SenderEntry{Address: addr}

		if hasDest {
			ip, portStr, hasPort := strings.Cut(destPart, ":")
			se.IP = ip
			if hasPort {
				port, err := strconv.Atoi(portStr)
				if err != nil {
					return nil, fmt.Errorf("ARTNET_SENDERS entry %q: %w: bad port %q", entry, artnet.ErrInvalidArgument, portStr)
				}
				se.Port = port
			}
		}
		entries = append(entries, se)
	}
	return entries, nil
}

// Receivers parses ARTNET_RECEIVERS, a comma separated list of
// "net:subnet:universe" entries.
func (c *Config) Receivers() ([]artnet.PortAddress, error) {
	var addrs []artnet.PortAddress
	for _, entry := range splitList(c.ArtNetReceivers) {
		addr, err := artnet.ParsePortAddress(entry)
		if err != nil {
			return nil, fmt.Errorf("ARTNET_RECEIVERS entry %q: %w", entry, err)
		}
		addrs = append(addrs, addr)
	}
	return addrs, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// getEnv returns the value of an environment variable or a default value.
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvInt returns the integer value of an environment variable or a default value.
func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvIntStrict is getEnvInt for values that must not silently fall back.
func getEnvIntStrict(key string, defaultValue int) (int, error) {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue, nil
	}
	intVal, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("%s: %w: %q is not an integer", key, artnet.ErrInvalidArgument, value)
	}
	return intVal, nil
}

// getEnvUint16 accepts decimal or 0x-prefixed hex.
func getEnvUint16(key string, defaultValue uint16) uint16 {
	if value, exists := os.LookupEnv(key); exists {
		if v, err := strconv.ParseUint(strings.TrimSpace(value), 0, 16); err == nil {
			return uint16(v)
		}
	}
	return defaultValue
}

// getEnvBool returns the boolean value of an environment variable or a default value.
func getEnvBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

// getEnvList splits a comma separated variable, dropping empty entries.
func getEnvList(key string) []string {
	return splitList(os.Getenv(key))
}
