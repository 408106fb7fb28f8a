package gateway

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/url"
	"os"
	"path/filepath"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/lydakis/blenderbridge/internal/catalog"
)

// The Rodin messages below are part of the product surface; assistants
// match on them, so they keep their historical wording.
const (
	msgBboxRange     = "Incorrect number range: bbox must be bigger than zero!"
	msgImageConflict = "Error: Conflict parameters given!"
	msgNoImage       = "Error: No image given!"
	msgBadImagePaths = "Error: not all image paths are valid!"
	msgBadImageURLs  = "Error: not all image URLs are valid!"
)

// generateRodin submits a create_rodin_job for either generate tool.
// Both tools share the job parameter shape; only the prompt or image
// source differs.
func (g *Gateway) generateRodin(ctx context.Context, tool catalog.Tool, args map[string]any) (*mcp.CallToolResult, error) {
	bbox, err := processBbox(args["bbox_condition"])
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Error generating Hyper3D task: %v", err)), nil
	}

	params := map[string]any{}
	if bbox != nil {
		params["bbox_condition"] = bbox
	}

	if tool.Name == "generate_hyper3d_model_via_text" {
		params["text_prompt"] = args["text_prompt"]
	} else {
		images, ierr := rodinImages(args)
		if ierr != nil {
			return mcp.NewToolResultError(ierr.Error()), nil
		}
		params["images"] = images
	}

	result, err := g.client.Call(ctx, tool.Command, params)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Error generating Hyper3D task: %v", err)), nil
	}
	return textResult(rodinSubmitSummary(result)), nil
}

func (g *Gateway) pollRodin(ctx context.Context, args map[string]any) (*mcp.CallToolResult, error) {
	params := map[string]any{}
	if key, ok := args["subscription_key"].(string); ok && key != "" {
		params["subscription_key"] = key
	} else if id, ok := args["request_id"].(string); ok && id != "" {
		params["request_id"] = id
	}

	result, err := g.client.Call(ctx, "poll_rodin_job_status", params)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Error polling Hyper3D task: %v", err)), nil
	}
	return textResult(result), nil
}

func (g *Gateway) importRodin(ctx context.Context, args map[string]any) (*mcp.CallToolResult, error) {
	params := map[string]any{}
	if name, ok := args["name"].(string); ok {
		params["name"] = name
	}
	if uuid, ok := args["task_uuid"].(string); ok && uuid != "" {
		params["task_uuid"] = uuid
	} else if id, ok := args["request_id"].(string); ok && id != "" {
		params["request_id"] = id
	}

	result, err := g.client.Call(ctx, "import_generated_asset", params)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Error importing generated asset: %v", err)), nil
	}
	return textResult(result), nil
}

// processBbox normalizes a bbox_condition argument into the integer
// ratio the Rodin API takes. Whole-number ratios pass through
// unchanged; fractional ones are scaled so the largest side is 100.
func processBbox(raw any) ([]any, error) {
	if raw == nil {
		return nil, nil
	}
	list, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("bbox_condition must be an array of numbers, got %T", raw)
	}
	if len(list) == 0 {
		return nil, nil
	}

	values := make([]float64, len(list))
	whole := true
	for i, item := range list {
		f, ok := item.(float64)
		if !ok {
			return nil, fmt.Errorf("bbox_condition[%d] must be a number, got %T", i, item)
		}
		values[i] = f
		if math.Trunc(f) != f {
			whole = false
		}
	}

	out := make([]any, len(values))
	if whole {
		for i, f := range values {
			out[i] = int64(f)
		}
		return out, nil
	}

	for _, f := range values {
		if f <= 0 {
			return nil, errors.New(msgBboxRange)
		}
	}
	largest := values[0]
	for _, f := range values[1:] {
		if f > largest {
			largest = f
		}
	}
	for i, f := range values {
		out[i] = int64(f / largest * 100)
	}
	return out, nil
}

// rodinImages builds the images parameter for an image-conditioned job.
// Local paths are read and sent as (suffix, base64) pairs for MAIN_SITE
// mode; URLs are passed through for FAL_AI mode. Exactly one source
// must be given.
func rodinImages(args map[string]any) ([]any, error) {
	rawPaths, hasPaths := args["input_image_paths"]
	rawURLs, hasURLs := args["input_image_urls"]
	if hasPaths && rawPaths == nil {
		hasPaths = false
	}
	if hasURLs && rawURLs == nil {
		hasURLs = false
	}

	if hasPaths && hasURLs {
		return nil, errors.New(msgImageConflict)
	}
	if !hasPaths && !hasURLs {
		return nil, errors.New(msgNoImage)
	}

	if hasPaths {
		list, ok := rawPaths.([]any)
		if !ok {
			return nil, errors.New(msgBadImagePaths)
		}
		images := make([]any, 0, len(list))
		for _, item := range list {
			path, ok := item.(string)
			if !ok {
				return nil, errors.New(msgBadImagePaths)
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return nil, errors.New(msgBadImagePaths)
			}
			images = append(images, []any{filepath.Ext(path), base64.StdEncoding.EncodeToString(data)})
		}
		return images, nil
	}

	list, ok := rawURLs.([]any)
	if !ok {
		return nil, errors.New(msgBadImageURLs)
	}
	images := make([]any, 0, len(list))
	for _, item := range list {
		u, ok := item.(string)
		if !ok {
			return nil, errors.New(msgBadImageURLs)
		}
		if _, err := url.ParseRequestURI(u); err != nil {
			return nil, errors.New(msgBadImageURLs)
		}
		images = append(images, u)
	}
	return images, nil
}

// rodinSubmitSummary reduces a successful MAIN_SITE submission to the
// two fields the later poll and import steps need. Anything without a
// submit_time, including every FAL_AI response, renders whole.
func rodinSubmitSummary(result json.RawMessage) json.RawMessage {
	var full struct {
		SubmitTime any    `json:"submit_time"`
		UUID       string `json:"uuid"`
		Jobs       struct {
			SubscriptionKey string `json:"subscription_key"`
		} `json:"jobs"`
	}
	if err := json.Unmarshal(result, &full); err != nil || full.SubmitTime == nil {
		return result
	}

	out, err := json.Marshal(map[string]string{
		"task_uuid":        full.UUID,
		"subscription_key": full.Jobs.SubscriptionKey,
	})
	if err != nil {
		return result
	}
	return out
}
