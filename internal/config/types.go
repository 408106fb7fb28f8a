package config

import (
	"os"
	"strconv"
)

// Config is the top-level blenderbridge configuration.
type Config struct {
	Bridge       BridgeConfig       `toml:"bridge"`
	Cache        CacheConfig        `toml:"cache"`
	Log          LogConfig          `toml:"log"`
	Host         HostConfig         `toml:"host"`
	Integrations IntegrationsConfig `toml:"integrations"`
	Hyper3D      Hyper3DConfig      `toml:"hyper3d"`
}

// BridgeConfig describes how the gateway reaches the host application.
type BridgeConfig struct {
	Host        string `toml:"host"`
	Port        int    `toml:"port"`
	Timeout     string `toml:"timeout"`
	DialTimeout string `toml:"dial_timeout"`
	IdleTimeout string `toml:"idle_timeout"`
}

// CacheConfig controls the on-disk cache for asset catalog queries.
type CacheConfig struct {
	DefaultTTL string `toml:"default_ttl"`
}

// LogConfig selects the stderr log level.
type LogConfig struct {
	Level string `toml:"level"`
}

// HostConfig configures the development host (cmd/bridgehost).
type HostConfig struct {
	Listen    string `toml:"listen"`
	Tick      string `toml:"tick"`
	QueueSize int    `toml:"queue_size"`
}

// IntegrationsConfig toggles the optional asset integrations.
type IntegrationsConfig struct {
	PolyHaven bool `toml:"polyhaven"`
	Sketchfab bool `toml:"sketchfab"`
	Hyper3D   bool `toml:"hyper3d"`
}

// Hyper3DConfig configures the Rodin generation service.
type Hyper3DConfig struct {
	Mode   string `toml:"mode"`
	APIKey string `toml:"api_key"`
}

// Rodin generation modes.
const (
	Hyper3DModeMainSite = "MAIN_SITE"
	Hyper3DModeFalAI    = "FAL_AI"
)

// Endpoint resolves the bridge host and port. The BLENDER_HOST and
// BLENDER_PORT environment variables override the file, matching how the
// product has always been pointed at a non-default endpoint.
func (b BridgeConfig) Endpoint() (string, int) {
	host := b.Host
	if v := os.Getenv("BLENDER_HOST"); v != "" {
		host = v
	}
	if host == "" {
		host = "127.0.0.1"
	}

	port := b.Port
	if v := os.Getenv("BLENDER_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			port = p
		}
	}
	if port == 0 {
		port = 9876
	}

	return host, port
}
