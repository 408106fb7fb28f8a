// Package gateway serves the tool catalog to MCP clients over stdio and
// relays each call to the host over the bridge socket.
package gateway

import (
	"context"
	"log/slog"
	"time"

	"github.com/mark3labs/mcp-go/server"

	"github.com/lydakis/blenderbridge/internal/bridge"
	"github.com/lydakis/blenderbridge/internal/config"
)

const (
	// DefaultIdleTimeout is how long the host connection stays open
	// with no tool activity before the gateway drops it.
	DefaultIdleTimeout = 60 * time.Second

	// DefaultCacheTTL bounds how long cacheable asset-catalog results
	// are served from disk.
	DefaultCacheTTL = 5 * time.Minute
)

const serverInstructions = `This server drives a running Blender instance over a local socket.
Start with get_scene_info to see what is loaded, and read the
asset_creation_strategy prompt before creating assets. Tool calls fail
with "Unknown command type" when the matching integration is disabled
in the Blender addon; use the status tools to check what is enabled.`

// Gateway owns the bridge connection and the MCP server built around it.
type Gateway struct {
	cfg      *config.Config
	log      *slog.Logger
	client   *bridge.Client
	cacheTTL time.Duration
	idle     *idleTimer
}

// New wires a gateway for the given host endpoint. The endpoint is
// resolved by the caller so flag overrides can win over the config file.
func New(cfg *config.Config, host string, port int, log *slog.Logger) *Gateway {
	if cfg == nil {
		cfg = &config.Config{}
	}
	if log == nil {
		log = slog.Default()
	}

	conn := bridge.NewConn(host, port)
	conn.DialTimeout = config.Duration(cfg.Bridge.DialTimeout, bridge.DefaultDialTimeout)
	conn.CallTimeout = config.Duration(cfg.Bridge.Timeout, bridge.DefaultCallTimeout)
	conn.Log = log

	g := &Gateway{
		cfg:      cfg,
		log:      log,
		client:   bridge.NewClient(conn),
		cacheTTL: config.Duration(cfg.Cache.DefaultTTL, DefaultCacheTTL),
	}
	g.idle = newIdleTimer(config.Duration(cfg.Bridge.IdleTimeout, DefaultIdleTimeout), g.dropIdleConn)
	return g
}

func (g *Gateway) dropIdleConn() {
	g.log.Info("closing idle host connection", "addr", g.client.Addr())
	if err := g.client.Close(); err != nil {
		g.log.Warn("closing idle host connection failed", "err", err)
	}
}

// serveStdio is swapped out in tests.
var serveStdio = func(s *server.MCPServer) error {
	return server.ServeStdio(s)
}

// Serve connects to the host and answers MCP requests on stdin/stdout
// until the client hangs up. A host that is not up yet is only a
// warning; the first tool call redials.
func (g *Gateway) Serve(ctx context.Context) error {
	g.log.Info("gateway starting", "addr", g.client.Addr(), "version", buildVersion)
	if err := g.client.Connect(ctx); err != nil {
		g.log.Warn("host not reachable, start the addon before calling tools",
			"addr", g.client.Addr(), "err", err)
	} else {
		g.log.Info("connected to host", "addr", g.client.Addr())
	}
	defer g.client.Close()
	defer g.idle.Stop()
	g.idle.Touch()

	return serveStdio(g.buildServer())
}

// buildServer assembles the MCP server with every catalog tool and the
// strategy prompt registered. The catalog is served in full; a host
// with an integration disabled answers those tools with an error, so
// there is nothing to filter here.
func (g *Gateway) buildServer() *server.MCPServer {
	s := server.NewMCPServer("blenderbridge", buildVersion,
		server.WithToolCapabilities(false),
		server.WithPromptCapabilities(false),
		server.WithInstructions(serverInstructions),
		server.WithRecovery(),
	)
	g.registerTools(s)
	g.registerPrompts(s)
	return s
}
