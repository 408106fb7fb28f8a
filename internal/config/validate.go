package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"
)

// Validate checks configuration invariants and returns actionable errors.
func Validate(cfg *Config) error {
	if cfg == nil {
		return nil
	}

	var errs []error

	checkDuration := func(field, value string, zeroDisables bool) {
		if value == "" {
			return
		}
		d, err := time.ParseDuration(value)
		switch {
		case err != nil:
			errs = append(errs, fmt.Errorf("%s: invalid duration %q: %w", field, value, err))
		case d < 0:
			errs = append(errs, fmt.Errorf("%s: must not be negative, got %q", field, value))
		case d == 0 && !zeroDisables:
			errs = append(errs, fmt.Errorf("%s: must be > 0, got %q", field, value))
		}
	}

	checkDuration("bridge.timeout", cfg.Bridge.Timeout, false)
	checkDuration("bridge.dial_timeout", cfg.Bridge.DialTimeout, false)
	checkDuration("bridge.idle_timeout", cfg.Bridge.IdleTimeout, true)
	checkDuration("cache.default_ttl", cfg.Cache.DefaultTTL, true)
	checkDuration("host.tick", cfg.Host.Tick, false)

	if p := cfg.Bridge.Port; p < 0 || p > 65535 {
		errs = append(errs, fmt.Errorf("bridge.port: out of range %d", p))
	}
	if cfg.Host.QueueSize < 0 {
		errs = append(errs, fmt.Errorf("host.queue_size: must not be negative, got %d", cfg.Host.QueueSize))
	}
	if l := cfg.Host.Listen; l != "" {
		if _, _, err := net.SplitHostPort(l); err != nil {
			errs = append(errs, fmt.Errorf("host.listen: invalid address %q: %w", l, err))
		}
	}

	if l := cfg.Log.Level; l != "" {
		switch strings.ToLower(l) {
		case "debug", "info", "warn", "error":
		default:
			errs = append(errs, fmt.Errorf("log.level: unknown level %q, use debug|info|warn|error", l))
		}
	}

	if m := cfg.Hyper3D.Mode; m != "" && m != Hyper3DModeMainSite && m != Hyper3DModeFalAI {
		errs = append(errs, fmt.Errorf("hyper3d.mode: unknown mode %q, use %s or %s", m, Hyper3DModeMainSite, Hyper3DModeFalAI))
	}

	return errors.Join(errs...)
}
