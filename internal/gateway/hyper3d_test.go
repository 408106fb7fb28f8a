package gateway

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/lydakis/blenderbridge/internal/config"
	"github.com/lydakis/blenderbridge/internal/host"
)

func TestProcessBbox(t *testing.T) {
	tests := []struct {
		name    string
		raw     any
		want    []any
		wantErr string
	}{
		{
			name: "nil stays nil",
			raw:  nil,
			want: nil,
		},
		{
			name: "empty list stays nil",
			raw:  []any{},
			want: nil,
		},
		{
			name: "whole numbers pass through",
			raw:  []any{float64(1), float64(2), float64(3)},
			want: []any{int64(1), int64(2), int64(3)},
		},
		{
			name: "whole numbers skip the range check",
			raw:  []any{float64(0), float64(5)},
			want: []any{int64(0), int64(5)},
		},
		{
			name: "fractions scale largest to 100",
			raw:  []any{1.5, 3.0, 0.75},
			want: []any{int64(50), int64(100), int64(25)},
		},
		{
			name:    "fraction at or below zero rejected",
			raw:     []any{-1.5, 3.0},
			wantErr: msgBboxRange,
		},
		{
			name:    "non-number element rejected",
			raw:     []any{"wide"},
			wantErr: "must be a number",
		},
		{
			name:    "non-list rejected",
			raw:     "1,2,3",
			wantErr: "must be an array",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := processBbox(tt.raw)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("processBbox() error = %v, want %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("processBbox() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("processBbox() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestRodinImagesRequiresExactlyOneSource(t *testing.T) {
	_, err := rodinImages(map[string]any{
		"input_image_paths": []any{"/tmp/a.png"},
		"input_image_urls":  []any{"https://example.com/a.png"},
	})
	if err == nil || err.Error() != msgImageConflict {
		t.Fatalf("error = %v, want %q", err, msgImageConflict)
	}

	_, err = rodinImages(map[string]any{})
	if err == nil || err.Error() != msgNoImage {
		t.Fatalf("error = %v, want %q", err, msgNoImage)
	}
}

func TestRodinImagesReadsLocalFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ref.png")
	if err := os.WriteFile(path, []byte("fake png bytes"), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	images, err := rodinImages(map[string]any{"input_image_paths": []any{path}})
	if err != nil {
		t.Fatalf("rodinImages() error = %v", err)
	}
	if len(images) != 1 {
		t.Fatalf("len(images) = %d, want 1", len(images))
	}

	pair, ok := images[0].([]any)
	if !ok || len(pair) != 2 {
		t.Fatalf("images[0] = %#v, want [suffix, data] pair", images[0])
	}
	if pair[0] != ".png" {
		t.Fatalf("suffix = %v, want .png", pair[0])
	}
	decoded, err := base64.StdEncoding.DecodeString(pair[1].(string))
	if err != nil {
		t.Fatalf("DecodeString() error = %v", err)
	}
	if string(decoded) != "fake png bytes" {
		t.Fatalf("decoded = %q, want file contents", decoded)
	}
}

func TestRodinImagesRejectsMissingFile(t *testing.T) {
	_, err := rodinImages(map[string]any{
		"input_image_paths": []any{filepath.Join(t.TempDir(), "absent.png")},
	})
	if err == nil || err.Error() != msgBadImagePaths {
		t.Fatalf("error = %v, want %q", err, msgBadImagePaths)
	}
}

func TestRodinImagesPassesURLsThrough(t *testing.T) {
	urls := []any{"https://example.com/a.png", "https://example.com/b.png"}
	images, err := rodinImages(map[string]any{"input_image_urls": urls})
	if err != nil {
		t.Fatalf("rodinImages() error = %v", err)
	}
	if !reflect.DeepEqual(images, urls) {
		t.Fatalf("images = %#v, want %#v", images, urls)
	}

	_, err = rodinImages(map[string]any{"input_image_urls": []any{"not a url"}})
	if err == nil || err.Error() != msgBadImageURLs {
		t.Fatalf("error = %v, want %q", err, msgBadImageURLs)
	}
}

func TestRodinSubmitSummaryExtractsTaskFields(t *testing.T) {
	full := []byte(`{
		"submit_time": "2026-01-01T00:00:00Z",
		"uuid": "u-1",
		"jobs": {"subscription_key": "sk-9"},
		"noise": true
	}`)
	out := string(rodinSubmitSummary(full))
	if !strings.Contains(out, `"task_uuid":"u-1"`) {
		t.Fatalf("summary = %s, want task_uuid", out)
	}
	if !strings.Contains(out, `"subscription_key":"sk-9"`) {
		t.Fatalf("summary = %s, want subscription_key", out)
	}
	if strings.Contains(out, "noise") {
		t.Fatalf("summary = %s, want noise dropped", out)
	}
}

func TestRodinSubmitSummaryLeavesOtherResponsesAlone(t *testing.T) {
	falAI := []byte(`{"request_id": "r-7", "status": "IN_QUEUE"}`)
	if got := string(rodinSubmitSummary(falAI)); got != string(falAI) {
		t.Fatalf("summary = %s, want unchanged", got)
	}
}

func TestGenerateViaTextSubmitsAndSummarizes(t *testing.T) {
	var seen capture
	srv := startHost(t, host.Registration{
		Name: "create_rodin_job",
		Handler: func(params map[string]any) (any, error) {
			seen.record(params)
			return map[string]any{
				"submit_time": "2026-01-01T00:00:00Z",
				"uuid":        "u-1",
				"jobs":        map[string]any{"subscription_key": "sk-9"},
			}, nil
		},
	})
	g := newTestGateway(t, &config.Config{}, srv.Addr())

	result := callNamedTool(t, g, "generate_hyper3d_model_via_text", map[string]any{
		"text_prompt":    "a shiny teapot",
		"bbox_condition": []any{float64(1), float64(1), float64(2)},
	})
	if result.IsError {
		t.Fatalf("IsError = true, text %q", resultText(t, result))
	}

	params, calls := seen.snapshot()
	if calls != 1 {
		t.Fatalf("host calls = %d, want 1", calls)
	}
	if params["text_prompt"] != "a shiny teapot" {
		t.Fatalf("text_prompt = %v, want prompt", params["text_prompt"])
	}
	if _, ok := params["images"]; ok {
		t.Fatal("params carry images on the text path")
	}

	text := resultText(t, result)
	if !strings.Contains(text, `"task_uuid": "u-1"`) {
		t.Fatalf("text = %q, want task_uuid", text)
	}
	if strings.Contains(text, "submit_time") {
		t.Fatalf("text = %q, want summary without submit_time", text)
	}
}

func TestGenerateViaImagesConflictNeverDials(t *testing.T) {
	g := newTestGateway(t, &config.Config{}, "127.0.0.1:1")

	result := callNamedTool(t, g, "generate_hyper3d_model_via_images", map[string]any{
		"input_image_paths": []any{"/tmp/a.png"},
		"input_image_urls":  []any{"https://example.com/a.png"},
	})
	if !result.IsError {
		t.Fatal("IsError = false, want conflict error")
	}
	if got := resultText(t, result); got != msgImageConflict {
		t.Fatalf("text = %q, want %q", got, msgImageConflict)
	}
}

func TestGenerateViaImagesBadBbox(t *testing.T) {
	g := newTestGateway(t, &config.Config{}, "127.0.0.1:1")

	result := callNamedTool(t, g, "generate_hyper3d_model_via_images", map[string]any{
		"input_image_urls": []any{"https://example.com/a.png"},
		"bbox_condition":   []any{0.5, -0.5},
	})
	if !result.IsError {
		t.Fatal("IsError = false, want bbox error")
	}
	if got := resultText(t, result); !strings.Contains(got, msgBboxRange) {
		t.Fatalf("text = %q, want %q", got, msgBboxRange)
	}
}

func TestPollRodinPrefersSubscriptionKey(t *testing.T) {
	var seen capture
	srv := startHost(t, host.Registration{
		Name: "poll_rodin_job_status",
		Handler: func(params map[string]any) (any, error) {
			seen.record(params)
			return map[string]any{"status": []any{"Done"}}, nil
		},
	})
	g := newTestGateway(t, &config.Config{}, srv.Addr())

	result := callNamedTool(t, g, "poll_rodin_job_status", map[string]any{
		"subscription_key": "sk-9",
		"request_id":       "r-7",
	})
	if result.IsError {
		t.Fatalf("IsError = true, text %q", resultText(t, result))
	}

	params, _ := seen.snapshot()
	if params["subscription_key"] != "sk-9" {
		t.Fatalf("subscription_key = %v, want sk-9", params["subscription_key"])
	}
	if _, ok := params["request_id"]; ok {
		t.Fatal("params carry request_id alongside subscription_key")
	}
}

func TestImportGeneratedAssetSendsNameAndTask(t *testing.T) {
	var seen capture
	srv := startHost(t, host.Registration{
		Name:               "import_generated_asset",
		RequiresMainThread: true,
		Handler: func(params map[string]any) (any, error) {
			seen.record(params)
			return map[string]any{"succeed": true, "name": params["name"]}, nil
		},
	})
	g := newTestGateway(t, &config.Config{}, srv.Addr())

	result := callNamedTool(t, g, "import_generated_asset", map[string]any{
		"name":      "Teapot",
		"task_uuid": "u-1",
	})
	if result.IsError {
		t.Fatalf("IsError = true, text %q", resultText(t, result))
	}

	params, _ := seen.snapshot()
	if params["name"] != "Teapot" || params["task_uuid"] != "u-1" {
		t.Fatalf("params = %v, want name and task_uuid", params)
	}
}
