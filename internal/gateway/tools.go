package gateway

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/lydakis/blenderbridge/internal/cache"
	"github.com/lydakis/blenderbridge/internal/catalog"
	"github.com/lydakis/blenderbridge/internal/paths"
)

func (g *Gateway) registerTools(s *server.MCPServer) {
	for _, tool := range catalog.All() {
		s.AddTool(mcp.NewToolWithRawSchema(tool.Name, tool.Description, tool.InputSchema), g.toolHandler(tool))
	}
}

func (g *Gateway) toolHandler(tool catalog.Tool) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return g.callTool(ctx, tool, request.GetArguments())
	}
}

// callTool answers one tool invocation. Argument problems and host
// errors both come back as tool errors, never as protocol errors, so
// the assistant can read them and retry.
func (g *Gateway) callTool(ctx context.Context, tool catalog.Tool, args map[string]any) (*mcp.CallToolResult, error) {
	g.idle.Begin()
	defer g.idle.End()

	args, err := catalog.CoerceArgs(args, tool.InputSchema)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	switch tool.Name {
	case "get_viewport_screenshot":
		return g.viewportScreenshot(ctx, args)
	case "execute_blender_code":
		return g.executeCode(ctx, args)
	case "generate_hyper3d_model_via_text", "generate_hyper3d_model_via_images":
		return g.generateRodin(ctx, tool, args)
	case "poll_rodin_job_status":
		return g.pollRodin(ctx, args)
	case "import_generated_asset":
		return g.importRodin(ctx, args)
	}

	// Bridge errors already name the command, so they go out as-is.
	result, err := g.command(ctx, tool, tool.CommandParams(args))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return textResult(result), nil
}

// command sends one command over the bridge, consulting the response
// cache for tools marked cacheable.
func (g *Gateway) command(ctx context.Context, tool catalog.Tool, params map[string]any) (json.RawMessage, error) {
	cacheable := tool.Cacheable && g.cacheTTL > 0
	if cacheable {
		if result, age, ok := cache.Get(tool.Command, params); ok {
			g.log.Debug("serving cached result", "command", tool.Command, "age", age)
			return result, nil
		}
	}

	result, err := g.client.Call(ctx, tool.Command, params)
	if err != nil {
		return nil, err
	}
	if cacheable {
		if cerr := cache.Put(tool.Command, params, result, g.cacheTTL); cerr != nil {
			g.log.Warn("caching result failed", "command", tool.Command, "err", cerr)
		}
	}
	return result, nil
}

func (g *Gateway) viewportScreenshot(ctx context.Context, args map[string]any) (*mcp.CallToolResult, error) {
	maxSize := 800
	if v, ok := args["max_size"].(int64); ok && v > 0 {
		maxSize = int(v)
	}

	path := paths.ScreenshotFile()
	shot, err := g.client.ViewportScreenshot(ctx, path, maxSize)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Screenshot failed: %v", err)), nil
	}
	if shot.Filepath == "" {
		shot.Filepath = path
	}

	data, err := os.ReadFile(shot.Filepath)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Screenshot failed: %v", err)), nil
	}
	os.Remove(shot.Filepath)

	caption := fmt.Sprintf("Viewport screenshot (%dx%d)", shot.Width, shot.Height)
	return mcp.NewToolResultImage(caption, base64.StdEncoding.EncodeToString(data), "image/png"), nil
}

func (g *Gateway) executeCode(ctx context.Context, args map[string]any) (*mcp.CallToolResult, error) {
	code, _ := args["code"].(string)
	out, err := g.client.ExecuteCode(ctx, code)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Error executing code: %v", err)), nil
	}
	return mcp.NewToolResultText("Code executed successfully: " + out), nil
}

func textResult(result json.RawMessage) *mcp.CallToolResult {
	return mcp.NewToolResultText(renderJSON(result))
}

// renderJSON pretty-prints a host result for the assistant. Anything
// that does not indent cleanly is passed through as-is.
func renderJSON(result json.RawMessage) string {
	if len(result) == 0 {
		return "null"
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, result, "", "  "); err != nil {
		return string(result)
	}
	return buf.String()
}
