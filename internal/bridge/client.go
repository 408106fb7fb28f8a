package bridge

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/lydakis/blenderbridge/internal/catalog"
)

// Client wraps a Conn with typed calls for the common operations and
// schema validation for everything else.
type Client struct {
	conn *Conn
}

func NewClient(conn *Conn) *Client {
	return &Client{conn: conn}
}

func (c *Client) Connect(ctx context.Context) error {
	return c.conn.Connect(ctx)
}

func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) Addr() string {
	return c.conn.Addr()
}

// Call validates the parameters against the catalog schema for the
// command and sends it. Validation failures surface as CommandError
// before anything touches the socket.
func (c *Client) Call(ctx context.Context, command string, params map[string]any) (json.RawMessage, error) {
	coerced, err := catalog.ValidateCommand(command, params)
	if err != nil {
		return nil, &CommandError{Command: command, Message: err.Error()}
	}
	return c.conn.Call(ctx, command, coerced)
}

// Ping confirms the host answers commands. The status query is
// registered even when every integration is disabled.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.conn.Call(ctx, "get_polyhaven_status", nil)
	return err
}

// SceneObject is one entry of a scene summary.
type SceneObject struct {
	Name     string    `json:"name"`
	Type     string    `json:"type"`
	Location []float64 `json:"location"`
}

// SceneInfo summarizes the host's current scene.
type SceneInfo struct {
	Name           string        `json:"name"`
	ObjectCount    int           `json:"object_count"`
	Objects        []SceneObject `json:"objects"`
	MaterialsCount int           `json:"materials_count"`
}

func (c *Client) SceneInfo(ctx context.Context) (*SceneInfo, error) {
	raw, err := c.Call(ctx, "get_scene_info", nil)
	if err != nil {
		return nil, err
	}
	var info SceneInfo
	if err := json.Unmarshal(raw, &info); err != nil {
		return nil, fmt.Errorf("decoding scene info: %w", err)
	}
	return &info, nil
}

// ObjectInfo returns the host's detail document for one object. The
// shape varies by object type, so the raw result is handed through.
func (c *Client) ObjectInfo(ctx context.Context, name string) (json.RawMessage, error) {
	return c.Call(ctx, "get_object_info", map[string]any{"name": name})
}

// Screenshot reports where the host wrote a viewport capture.
type Screenshot struct {
	Success  bool   `json:"success"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	Filepath string `json:"filepath"`
}

// ViewportScreenshot asks the host to write a capture of the active
// viewport to path, scaled down to maxSize pixels on the longest edge.
func (c *Client) ViewportScreenshot(ctx context.Context, path string, maxSize int) (*Screenshot, error) {
	raw, err := c.Call(ctx, "get_viewport_screenshot", map[string]any{
		"max_size": maxSize,
		"filepath": path,
		"format":   "png",
	})
	if err != nil {
		return nil, err
	}
	var shot Screenshot
	if err := json.Unmarshal(raw, &shot); err != nil {
		return nil, fmt.Errorf("decoding screenshot result: %w", err)
	}
	return &shot, nil
}

// ExecuteCode runs a script on the host and returns its captured output.
func (c *Client) ExecuteCode(ctx context.Context, code string) (string, error) {
	raw, err := c.Call(ctx, "execute_code", map[string]any{"code": code})
	if err != nil {
		return "", err
	}
	var out struct {
		Executed bool   `json:"executed"`
		Result   string `json:"result"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("decoding execution result: %w", err)
	}
	return out.Result, nil
}

// IntegrationStatus reports whether an optional integration is enabled
// on the host, with a human-readable explanation.
type IntegrationStatus struct {
	Enabled bool   `json:"enabled"`
	Message string `json:"message"`
}

func (c *Client) PolyHavenStatus(ctx context.Context) (*IntegrationStatus, error) {
	return c.integrationStatus(ctx, "get_polyhaven_status")
}

func (c *Client) Hyper3DStatus(ctx context.Context) (*IntegrationStatus, error) {
	return c.integrationStatus(ctx, "get_hyper3d_status")
}

func (c *Client) SketchfabStatus(ctx context.Context) (*IntegrationStatus, error) {
	return c.integrationStatus(ctx, "get_sketchfab_status")
}

func (c *Client) integrationStatus(ctx context.Context, command string) (*IntegrationStatus, error) {
	raw, err := c.Call(ctx, command, nil)
	if err != nil {
		return nil, err
	}
	var status IntegrationStatus
	if err := json.Unmarshal(raw, &status); err != nil {
		return nil, fmt.Errorf("decoding %s result: %w", command, err)
	}
	return &status, nil
}
