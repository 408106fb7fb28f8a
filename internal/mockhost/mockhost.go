// Package mockhost is a stand-in for the GUI application: a bridge host
// serving the full command surface against an in-memory scene, so the
// gateway and its tools can be exercised without Blender running. It is
// also the reference embedding of the host package.
package mockhost

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-viper/mapstructure/v2"

	"github.com/lydakis/blenderbridge/internal/catalog"
	"github.com/lydakis/blenderbridge/internal/config"
	"github.com/lydakis/blenderbridge/internal/host"
)

// Host bundles a seeded scene, the command registry, the main-thread
// executor, and the TCP server into one runnable unit.
type Host struct {
	cfg   *config.Config
	log   *slog.Logger
	scene *Scene
	jobs  *rodinJobs
	reg   *host.Registry
	exec  *host.Executor
	srv   *host.Server
}

// New assembles a mock host listening on addr. Which commands it
// registers follows the enabled integrations in cfg; everything else
// about the host comes from the [host] section.
func New(cfg *config.Config, addr string, log *slog.Logger) (*Host, error) {
	if cfg == nil {
		cfg = &config.Config{}
	}
	if log == nil {
		log = slog.Default()
	}

	h := &Host{
		cfg:   cfg,
		log:   log,
		scene: newScene(),
		jobs:  newRodinJobs(),
		reg:   host.NewRegistry(),
	}
	h.exec = host.NewExecutor(cfg.Host.QueueSize, log)
	if err := h.register(); err != nil {
		return nil, err
	}
	h.srv = host.NewServer(addr, h.reg, h.exec)
	h.srv.Log = log
	return h, nil
}

// register installs a handler for every command the catalog exposes
// under the configured integrations. Tools sharing a command (the two
// Hyper3D generate tools) collapse onto one registration.
func (h *Host) register() error {
	handlers := h.handlers()
	enabled := map[string]bool{
		catalog.IntegrationPolyHaven: h.cfg.Integrations.PolyHaven,
		catalog.IntegrationSketchfab: h.cfg.Integrations.Sketchfab,
		catalog.IntegrationHyper3D:   h.cfg.Integrations.Hyper3D,
	}

	seen := make(map[string]bool)
	var regs []host.Registration
	for _, tool := range catalog.Enabled(enabled) {
		if seen[tool.Command] {
			continue
		}
		seen[tool.Command] = true
		reg, ok := handlers[tool.Command]
		if !ok {
			return fmt.Errorf("no handler for command %q", tool.Command)
		}
		regs = append(regs, reg)
	}
	return h.reg.RegisterAll(regs...)
}

// handlers maps every command the mock can serve to its registration.
// Status queries only read configuration, so they run directly on the
// connection goroutine; everything touching the scene is main-thread.
func (h *Host) handlers() map[string]host.Registration {
	main := func(name string, fn host.HandlerFunc) host.Registration {
		return host.Registration{Name: name, Handler: fn, RequiresMainThread: true}
	}
	direct := func(name string, fn host.HandlerFunc) host.Registration {
		return host.Registration{Name: name, Handler: fn}
	}

	regs := []host.Registration{
		main("get_scene_info", h.scene.getSceneInfo),
		main("get_object_info", h.scene.getObjectInfo),
		main("get_viewport_screenshot", h.scene.getViewportScreenshot),
		main("execute_code", executeCode),
		main("get_selection", h.scene.getSelection),
		main("set_selection", h.scene.setSelection),
		main("batch_rename", h.scene.batchRename),
		main("list_materials", h.scene.listMaterials),
		main("get_material_nodes", h.scene.getMaterialNodes),
		main("get_modifier_details", h.scene.getModifierDetails),
		main("get_geometry_stats", h.scene.getGeometryStats),
		main("list_node_trees", h.scene.listNodeTrees),

		main("get_node_details", h.scene.getNodeDetails),
		main("get_node_links", h.scene.getNodeLinks),
		main("get_node_connections", h.scene.getNodeConnections),
		main("trace_node_dataflow", h.scene.traceNodeDataflow),
		main("set_geonode_parameter", h.scene.setGeonodeParameter),
		main("find_orphan_nodes", h.scene.findOrphanNodes),
		main("inspect_node_type", inspectNodeType),
		main("create_geonode_node", h.scene.createGeonodeNode),
		main("create_geonode_link", h.scene.createGeonodeLink),
		main("delete_geonode_node", h.scene.deleteGeonodeNode),
		main("delete_geonode_link", h.scene.deleteGeonodeLink),
		main("set_node_socket_default", h.scene.setNodeSocketDefault),
		main("validate_geonode_network", h.scene.validateGeonodeNetwork),
		main("get_node_tree_interface", h.scene.getNodeTreeInterface),
		main("insert_node_between", h.scene.insertNodeBetween),

		direct("get_polyhaven_status", h.polyhavenStatus),
		direct("get_sketchfab_status", h.sketchfabStatus),
		direct("get_hyper3d_status", h.hyper3dStatus),
		main("get_polyhaven_categories", h.scene.polyhavenCategories),
		main("search_polyhaven_assets", h.scene.searchPolyhavenAssets),
		main("download_polyhaven_asset", h.scene.downloadPolyhavenAsset),
		main("set_texture", h.scene.setTexture),
		main("search_sketchfab_models", searchSketchfabModels),
		main("download_sketchfab_model", h.scene.downloadSketchfabModel),
		main("create_rodin_job", h.createRodinJob),
		main("poll_rodin_job_status", h.pollRodinJobStatus),
		main("import_generated_asset", h.importGeneratedAsset),
	}

	out := make(map[string]host.Registration, len(regs))
	for _, reg := range regs {
		out[reg.Name] = reg
	}
	return out
}

// Start begins accepting connections.
func (h *Host) Start() error {
	if err := h.srv.Start(); err != nil {
		return err
	}
	h.log.Info("mock host listening",
		"addr", h.srv.Addr(),
		"commands", len(h.reg.Names()),
		"polyhaven", h.cfg.Integrations.PolyHaven,
		"sketchfab", h.cfg.Integrations.Sketchfab,
		"hyper3d", h.cfg.Integrations.Hyper3D)
	return nil
}

// Addr returns the bound listen address.
func (h *Host) Addr() string {
	return h.srv.Addr()
}

// Serve drives the main-thread drain until ctx ends. The tick interval
// stands in for the recurring timer the real host registers with its UI
// loop.
func (h *Host) Serve(ctx context.Context) {
	h.exec.RunTicker(ctx, config.Duration(h.cfg.Host.Tick, host.DefaultTick))
}

// Stop tears the host down and deactivates the registry so nothing
// queued can reach a torn-down scene. The executor stops first so
// dispatches blocked on a drain unblock before the server waits for
// its connections.
func (h *Host) Stop() {
	h.exec.Stop()
	h.srv.Stop()
	h.reg.Deactivate()
}

// decode maps wire parameters onto a typed parameter struct. Fields the
// command was sent without keep their zero value.
func decode(params map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{Result: out})
	if err != nil {
		return err
	}
	if err := dec.Decode(params); err != nil {
		return fmt.Errorf("invalid parameters: %v", err)
	}
	return nil
}
