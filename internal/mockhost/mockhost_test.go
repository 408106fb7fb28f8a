package mockhost

import (
	"io"
	"log/slog"
	"testing"

	"github.com/lydakis/blenderbridge/internal/catalog"
	"github.com/lydakis/blenderbridge/internal/config"
	"github.com/lydakis/blenderbridge/internal/host"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testHost(t *testing.T, mutate func(*config.Config)) *Host {
	t.Helper()

	cfg := &config.Config{}
	if mutate != nil {
		mutate(cfg)
	}
	h, err := New(cfg, "127.0.0.1:0", discardLogger())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return h
}

// callOK invokes a handler directly and asserts a map result.
func callOK(t *testing.T, fn host.HandlerFunc, params map[string]any) map[string]any {
	t.Helper()

	result, err := fn(params)
	if err != nil {
		t.Fatalf("handler error = %v", err)
	}
	m, ok := result.(map[string]any)
	if !ok {
		t.Fatalf("result type = %T, want map[string]any", result)
	}
	return m
}

func callErr(t *testing.T, fn host.HandlerFunc, params map[string]any) error {
	t.Helper()

	result, err := fn(params)
	if err == nil {
		t.Fatalf("handler succeeded with %v, want error", result)
	}
	return err
}

func TestEveryCatalogCommandHasHandler(t *testing.T) {
	h := testHost(t, func(cfg *config.Config) {
		cfg.Integrations.PolyHaven = true
		cfg.Integrations.Sketchfab = true
		cfg.Integrations.Hyper3D = true
	})

	for _, tool := range catalog.All() {
		if _, ok := h.reg.Lookup(tool.Command); !ok {
			t.Errorf("no handler registered for %q", tool.Command)
		}
	}
}

func TestDisabledIntegrationsNotRegistered(t *testing.T) {
	h := testHost(t, nil)

	for _, command := range []string{
		"get_polyhaven_categories",
		"search_sketchfab_models",
		"create_rodin_job",
	} {
		if _, ok := h.reg.Lookup(command); ok {
			t.Errorf("%q registered with its integration disabled", command)
		}
	}

	// Status probes stay available so clients can report why the rest
	// of an integration is missing.
	for _, command := range []string{
		"get_polyhaven_status",
		"get_sketchfab_status",
		"get_hyper3d_status",
		"get_scene_info",
	} {
		if _, ok := h.reg.Lookup(command); !ok {
			t.Errorf("%q not registered", command)
		}
	}
}

func TestSharedRodinCommandRegistersOnce(t *testing.T) {
	// Both generate tools map onto create_rodin_job; registration must
	// collapse them instead of failing on the duplicate.
	h := testHost(t, func(cfg *config.Config) {
		cfg.Integrations.Hyper3D = true
	})
	if _, ok := h.reg.Lookup("create_rodin_job"); !ok {
		t.Fatal("create_rodin_job not registered")
	}
}

func TestNewDefaultsNilConfig(t *testing.T) {
	h, err := New(nil, "127.0.0.1:0", nil)
	if err != nil {
		t.Fatalf("New(nil) error = %v", err)
	}
	if _, ok := h.reg.Lookup("get_scene_info"); !ok {
		t.Fatal("core command missing with nil config")
	}
}
