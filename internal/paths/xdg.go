package paths

import (
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

func homeDir() string {
	if h := os.Getenv("HOME"); h != "" {
		return h
	}
	h, _ := os.UserHomeDir()
	return h
}

func xdgDir(envVar, fallbackSuffix string) string {
	if v := os.Getenv(envVar); v != "" {
		return filepath.Join(v, "blenderbridge")
	}
	return filepath.Join(homeDir(), fallbackSuffix, "blenderbridge")
}

// ConfigDir returns the blenderbridge config directory ($XDG_CONFIG_HOME/blenderbridge).
func ConfigDir() string {
	return xdgDir("XDG_CONFIG_HOME", ".config")
}

// CacheDir returns the blenderbridge cache directory ($XDG_CACHE_HOME/blenderbridge).
func CacheDir() string {
	return xdgDir("XDG_CACHE_HOME", ".cache")
}

// ConfigFile returns the path to config.toml.
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.toml")
}

// ScreenshotFile returns a fresh path in the system temp directory for one
// viewport capture. Both ends of the bridge run on the same machine, so the
// host can write the image there and the gateway reads and removes it.
func ScreenshotFile() string {
	return filepath.Join(os.TempDir(), "blenderbridge_screenshot_"+uuid.NewString()+".png")
}

// EnsureDir creates a directory and parents if needed.
func EnsureDir(dir string) error {
	return os.MkdirAll(dir, 0700)
}
