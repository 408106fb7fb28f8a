// Package catalog declares every tool the gateway exposes: the host
// command behind each tool, its argument schema, and which optional
// integration must be enabled for it to appear. The schemas are used on
// both sides of the bridge, by the gateway before dispatch and by the
// client façade before sending.
package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Integration labels gating the optional tool groups.
const (
	IntegrationPolyHaven = "polyhaven"
	IntegrationSketchfab = "sketchfab"
	IntegrationHyper3D   = "hyper3d"
)

// Tool describes one exposed tool.
type Tool struct {
	Name        string
	Command     string // host command the tool issues
	Description string
	Integration string            // empty for tools that are always exposed
	Cacheable   bool              // results may be served from the short-lived cache
	Rename      map[string]string // tool argument name -> command parameter name
	InputSchema json.RawMessage

	// CommandSchema describes the command's wire parameters when they
	// differ from the tool's arguments by more than the renames, for
	// example when the gateway injects parameters of its own.
	CommandSchema json.RawMessage
}

// CommandParams maps validated tool arguments onto the command's
// parameter names.
func (t Tool) CommandParams(args map[string]any) map[string]any {
	if len(t.Rename) == 0 {
		return args
	}
	out := make(map[string]any, len(args))
	for key, value := range args {
		if to, ok := t.Rename[key]; ok {
			key = to
		}
		out[key] = value
	}
	return out
}

// rodinJobSchema is the wire parameter shape of create_rodin_job. Both
// generate tools assemble these parameters in the gateway, so the shape
// never matches either tool's own arguments.
var rodinJobSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"text_prompt": {"type": "string", "description": "Prompt describing the desired model"},
		"images": {"type": "array", "description": "Reference images: suffix and base64 pairs in MAIN_SITE mode, URLs in FAL_AI mode"},
		"bbox_condition": {"type": "array", "items": {"type": "integer"}, "description": "Normalized [length, width, height] ratio"}
	}
}`)

var tools = []Tool{
	{
		Name:        "get_scene_info",
		Command:     "get_scene_info",
		Description: "Get a summary of the current scene: its name, object and material counts, and the first objects with their type and location.",
		InputSchema: json.RawMessage(`{"type": "object", "properties": {}}`),
	},
	{
		Name:        "get_object_info",
		Command:     "get_object_info",
		Description: "Get detailed information about a named object: transform, visibility, materials, mesh statistics, and world-space bounding box.",
		Rename:      map[string]string{"object_name": "name"},
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"object_name": {"type": "string", "description": "Name of the object to inspect"}
			},
			"required": ["object_name"]
		}`),
	},
	{
		Name:        "get_viewport_screenshot",
		Command:     "get_viewport_screenshot",
		Description: "Capture a screenshot of the active 3D viewport as a PNG image, scaled down so the longest edge is at most max_size pixels.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"max_size": {"type": "integer", "description": "Maximum size of the longest image edge in pixels", "default": 800}
			}
		}`),
		CommandSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"max_size": {"type": "integer", "description": "Maximum size of the longest image edge in pixels", "default": 800},
				"filepath": {"type": "string", "description": "Path the host writes the image to"},
				"format": {"type": "string", "description": "Image format", "default": "png"}
			},
			"required": ["filepath"]
		}`),
	},
	{
		Name:        "execute_blender_code",
		Command:     "execute_code",
		Description: "Run arbitrary Python code inside the host and return its captured output. Prefer small, verifiable chunks over one long script.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"code": {"type": "string", "description": "The Python code to execute"}
			},
			"required": ["code"]
		}`),
	},
	{
		Name:        "get_node_details",
		Command:     "get_node_details",
		Description: "List the nodes of a node tree with their types, properties, and socket values. Pass node_name to inspect a single node.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"node_tree_name": {"type": "string", "description": "Name of the node tree"},
				"node_name": {"type": "string", "description": "Restrict the listing to this node"}
			},
			"required": ["node_tree_name"]
		}`),
	},
	{
		Name:        "get_node_links",
		Command:     "get_node_links",
		Description: "List every link in a node tree with its from and to node names and socket indices.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"node_tree_name": {"type": "string", "description": "Name of the node tree"}
			},
			"required": ["node_tree_name"]
		}`),
	},
	{
		Name:        "get_node_connections",
		Command:     "get_node_connections",
		Description: "Show all inbound and outbound connections of one node, including unconnected sockets and their current defaults.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"node_tree_name": {"type": "string", "description": "Name of the node tree"},
				"node_name": {"type": "string", "description": "Name of the node to inspect"}
			},
			"required": ["node_tree_name", "node_name"]
		}`),
	},
	{
		Name:        "get_geometry_stats",
		Command:     "get_geometry_stats",
		Description: "Report vertex, edge, face, and triangle counts for a mesh object, evaluated with or without its modifiers.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"object_name": {"type": "string", "description": "Name of the mesh object"},
				"apply_modifiers": {"type": "boolean", "description": "Evaluate the mesh with modifiers applied", "default": true}
			},
			"required": ["object_name"]
		}`),
	},
	{
		Name:        "trace_node_dataflow",
		Command:     "trace_node_dataflow",
		Description: "Find every path data can take between two sockets in a node tree, listing the chain of nodes along each path.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"node_tree_name": {"type": "string", "description": "Name of the node tree"},
				"from_node": {"type": "string", "description": "Name of the source node"},
				"from_socket": {"type": "string", "description": "Socket name on the source node"},
				"to_node": {"type": "string", "description": "Name of the destination node"},
				"to_socket": {"type": "string", "description": "Socket name on the destination node"}
			},
			"required": ["node_tree_name", "from_node", "from_socket", "to_node", "to_socket"]
		}`),
	},
	{
		Name:        "set_geonode_parameter",
		Command:     "set_geonode_parameter",
		Description: "Set a geometry nodes modifier input by name or socket identifier and force a dependency graph refresh so the change takes effect.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"object_name": {"type": "string", "description": "Object carrying the modifier"},
				"modifier_name": {"type": "string", "description": "Name of the geometry nodes modifier"},
				"parameter_name": {"type": "string", "description": "Input name or Socket_N identifier"},
				"value": {"description": "New value: number, integer, boolean, string, or list"}
			},
			"required": ["object_name", "modifier_name", "parameter_name", "value"]
		}`),
	},
	{
		Name:        "find_orphan_nodes",
		Command:     "find_orphan_nodes",
		Description: "Find nodes with no outgoing links and groups of nodes disconnected from the tree output.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"node_tree_name": {"type": "string", "description": "Name of the node tree"}
			},
			"required": ["node_tree_name"]
		}`),
	},
	{
		Name:        "get_modifier_details",
		Command:     "get_modifier_details",
		Description: "List an object's modifiers with their settings. For geometry nodes modifiers this includes the exposed inputs and their current values.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"object_name": {"type": "string", "description": "Name of the object"},
				"modifier_name": {"type": "string", "description": "Restrict the listing to this modifier"}
			},
			"required": ["object_name"]
		}`),
	},
	{
		Name:        "list_node_trees",
		Command:     "list_node_trees",
		Description: "List every geometry node group with its users, node count, and interface summary.",
		InputSchema: json.RawMessage(`{"type": "object", "properties": {}}`),
	},
	{
		Name:        "list_materials",
		Command:     "list_materials",
		Description: "List every material with its users and whether it uses shader nodes.",
		InputSchema: json.RawMessage(`{"type": "object", "properties": {}}`),
	},
	{
		Name:        "get_material_nodes",
		Command:     "get_material_nodes",
		Description: "List the shader nodes of a material with their properties and socket values. Pass node_name to inspect a single node.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"material_name": {"type": "string", "description": "Name of the material"},
				"node_name": {"type": "string", "description": "Restrict the listing to this node"}
			},
			"required": ["material_name"]
		}`),
	},
	{
		Name:        "get_selection",
		Command:     "get_selection",
		Description: "Get the currently selected objects and the active object.",
		InputSchema: json.RawMessage(`{"type": "object", "properties": {}}`),
	},
	{
		Name:        "set_selection",
		Command:     "set_selection",
		Description: "Select objects by name. Mode replace resets the selection, add and remove adjust it. Optionally set the active object.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"object_names": {"type": "array", "items": {"type": "string"}, "description": "Names of the objects to select"},
				"mode": {"type": "string", "enum": ["replace", "add", "remove"], "description": "How to combine with the current selection", "default": "replace"},
				"active": {"type": "string", "description": "Name of the object to make active"}
			},
			"required": ["object_names"]
		}`),
	},
	{
		Name:        "batch_rename",
		Command:     "batch_rename",
		Description: "Rename several objects at once: give explicit names or use the selection, then apply a numbered base name, find and replace, a prefix, or a suffix.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"object_names": {"type": "array", "items": {"type": "string"}, "description": "Objects to rename; omit to use the selection"},
				"use_selection": {"type": "boolean", "description": "Rename the currently selected objects", "default": false},
				"new_base_name": {"type": "string", "description": "Base name; objects become base.NN"},
				"find": {"type": "string", "description": "Substring to replace in each name"},
				"replace": {"type": "string", "description": "Replacement for the find substring"},
				"prefix": {"type": "string", "description": "Prefix to prepend to each name"},
				"suffix": {"type": "string", "description": "Suffix to append to each name"},
				"number_start": {"type": "integer", "description": "First number used with new_base_name", "default": 1},
				"number_padding": {"type": "integer", "description": "Zero padding of the numbers", "default": 2}
			}
		}`),
	},
	{
		Name:        "inspect_node_type",
		Command:     "inspect_node_type",
		Description: "Describe a node type before creating it: its inputs, outputs, and configurable properties.",
		Cacheable:   true,
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"node_type": {"type": "string", "description": "Node class name, for example GeometryNodeMeshGrid"}
			},
			"required": ["node_type"]
		}`),
	},
	{
		Name:        "create_geonode_node",
		Command:     "create_geonode_node",
		Description: "Create a node in a geometry node tree, optionally setting its name, editor location, properties, and socket defaults. Inputs are validated, which makes this safer than executing code.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"node_tree_name": {"type": "string", "description": "Name of the node tree"},
				"node_type": {"type": "string", "description": "Node class name, for example GeometryNodeMeshGrid"},
				"name": {"type": "string", "description": "Custom name for the node"},
				"location": {"type": "array", "items": {"type": "number"}, "description": "Editor position as [x, y]"},
				"properties": {"type": "object", "description": "Node properties to set, for example {\"operation\": \"ADD\"}"},
				"defaults": {"type": "object", "description": "Socket defaults keyed by socket name or index"}
			},
			"required": ["node_tree_name", "node_type"]
		}`),
	},
	{
		Name:        "create_geonode_link",
		Command:     "create_geonode_link",
		Description: "Link two sockets in a geometry node tree. Sockets may be given by name or index.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"node_tree_name": {"type": "string", "description": "Name of the node tree"},
				"from_node": {"type": "string", "description": "Name of the source node"},
				"from_socket": {"description": "Socket name or index on the source node"},
				"to_node": {"type": "string", "description": "Name of the destination node"},
				"to_socket": {"description": "Socket name or index on the destination node"}
			},
			"required": ["node_tree_name", "from_node", "from_socket", "to_node", "to_socket"]
		}`),
	},
	{
		Name:        "delete_geonode_node",
		Command:     "delete_geonode_node",
		Description: "Delete a node from a geometry node tree.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"node_tree_name": {"type": "string", "description": "Name of the node tree"},
				"node_name": {"type": "string", "description": "Name of the node to delete"}
			},
			"required": ["node_tree_name", "node_name"]
		}`),
	},
	{
		Name:        "delete_geonode_link",
		Command:     "delete_geonode_link",
		Description: "Remove the link between two sockets in a geometry node tree.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"node_tree_name": {"type": "string", "description": "Name of the node tree"},
				"from_node": {"type": "string", "description": "Name of the source node"},
				"from_socket": {"description": "Socket name or index on the source node"},
				"to_node": {"type": "string", "description": "Name of the destination node"},
				"to_socket": {"description": "Socket name or index on the destination node"}
			},
			"required": ["node_tree_name", "from_node", "from_socket", "to_node", "to_socket"]
		}`),
	},
	{
		Name:        "set_node_socket_default",
		Command:     "set_node_socket_default",
		Description: "Set the default value of an unconnected node socket.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"node_tree_name": {"type": "string", "description": "Name of the node tree"},
				"node_name": {"type": "string", "description": "Name of the node"},
				"socket_name": {"description": "Socket name or index"},
				"value": {"description": "New default: number, integer, boolean, string, or list"},
				"is_output": {"type": "boolean", "description": "Target an output socket instead of an input", "default": false}
			},
			"required": ["node_tree_name", "node_name", "socket_name", "value"]
		}`),
	},
	{
		Name:        "validate_geonode_network",
		Command:     "validate_geonode_network",
		Description: "Check a geometry node tree for problems: missing links, type mismatches, orphan nodes, and a missing output.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"node_tree_name": {"type": "string", "description": "Name of the node tree"}
			},
			"required": ["node_tree_name"]
		}`),
	},
	{
		Name:        "get_node_tree_interface",
		Command:     "get_node_tree_interface",
		Description: "List the exposed inputs and outputs of a node tree with the Socket_N identifiers used by modifier parameters.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"node_tree_name": {"type": "string", "description": "Name of the node tree"}
			},
			"required": ["node_tree_name"]
		}`),
	},
	{
		Name:        "insert_node_between",
		Command:     "insert_node_between",
		Description: "Insert a new node into an existing link, rewiring from_node through the new node to to_node in one step.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"node_tree_name": {"type": "string", "description": "Name of the node tree"},
				"from_node": {"type": "string", "description": "Name of the upstream node"},
				"from_socket": {"description": "Socket name or index on the upstream node"},
				"to_node": {"type": "string", "description": "Name of the downstream node"},
				"to_socket": {"description": "Socket name or index on the downstream node"},
				"new_node_type": {"type": "string", "description": "Node class to insert, for example ShaderNodeMath"},
				"new_node_name": {"type": "string", "description": "Custom name for the inserted node"},
				"input_socket": {"description": "Socket on the new node that receives input", "default": 0},
				"output_socket": {"description": "Socket on the new node that sends output", "default": 0},
				"properties": {"type": "object", "description": "Properties to set on the new node"}
			},
			"required": ["node_tree_name", "from_node", "from_socket", "to_node", "to_socket", "new_node_type"]
		}`),
	},
	{
		Name:        "get_polyhaven_status",
		Command:     "get_polyhaven_status",
		Description: "Check whether the Poly Haven integration is enabled on the host.",
		InputSchema: json.RawMessage(`{"type": "object", "properties": {}}`),
	},
	{
		Name:        "get_hyper3d_status",
		Command:     "get_hyper3d_status",
		Description: "Check whether the Hyper3D Rodin integration is enabled on the host and which mode it runs in.",
		InputSchema: json.RawMessage(`{"type": "object", "properties": {}}`),
	},
	{
		Name:        "get_sketchfab_status",
		Command:     "get_sketchfab_status",
		Description: "Check whether the Sketchfab integration is enabled on the host.",
		InputSchema: json.RawMessage(`{"type": "object", "properties": {}}`),
	},
	{
		Name:        "get_polyhaven_categories",
		Command:     "get_polyhaven_categories",
		Description: "List the Poly Haven categories available for an asset type.",
		Integration: IntegrationPolyHaven,
		Cacheable:   true,
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"asset_type": {"type": "string", "enum": ["hdris", "textures", "models", "all"], "description": "Asset type to list categories for", "default": "hdris"}
			}
		}`),
	},
	{
		Name:        "search_polyhaven_assets",
		Command:     "search_polyhaven_assets",
		Description: "Search Poly Haven assets, optionally filtered by type and a comma-separated category list.",
		Integration: IntegrationPolyHaven,
		Cacheable:   true,
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"asset_type": {"type": "string", "enum": ["hdris", "textures", "models", "all"], "description": "Asset type to search", "default": "all"},
				"categories": {"type": "string", "description": "Comma-separated category filter"}
			}
		}`),
	},
	{
		Name:        "download_polyhaven_asset",
		Command:     "download_polyhaven_asset",
		Description: "Download a Poly Haven asset and import it into the scene: HDRIs become the world environment, textures become materials, models are appended.",
		Integration: IntegrationPolyHaven,
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"asset_id": {"type": "string", "description": "Poly Haven asset id"},
				"asset_type": {"type": "string", "enum": ["hdris", "textures", "models"], "description": "Type of the asset"},
				"resolution": {"type": "string", "description": "Resolution to download, for example 1k or 2k", "default": "1k"},
				"file_format": {"type": "string", "description": "File format, for example hdr, exr, jpg, png, gltf"}
			},
			"required": ["asset_id", "asset_type"]
		}`),
	},
	{
		Name:        "set_texture",
		Command:     "set_texture",
		Description: "Apply a previously downloaded Poly Haven texture to an object by building a material from its maps.",
		Integration: IntegrationPolyHaven,
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"object_name": {"type": "string", "description": "Object to apply the texture to"},
				"texture_id": {"type": "string", "description": "Id of the downloaded Poly Haven texture"}
			},
			"required": ["object_name", "texture_id"]
		}`),
	},
	{
		Name:        "search_sketchfab_models",
		Command:     "search_sketchfab_models",
		Description: "Search Sketchfab for models, optionally filtered by category and restricted to downloadable results.",
		Integration: IntegrationSketchfab,
		Cacheable:   true,
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"query": {"type": "string", "description": "Search text"},
				"categories": {"type": "string", "description": "Comma-separated category filter"},
				"count": {"type": "integer", "description": "Maximum number of results", "default": 20},
				"downloadable": {"type": "boolean", "description": "Only return downloadable models", "default": true}
			},
			"required": ["query"]
		}`),
	},
	{
		Name:        "download_sketchfab_model",
		Command:     "download_sketchfab_model",
		Description: "Download a Sketchfab model by its uid and import it into the scene. The model must be downloadable.",
		Integration: IntegrationSketchfab,
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"uid": {"type": "string", "description": "Unique id of the model"}
			},
			"required": ["uid"]
		}`),
	},
	{
		Name:        "generate_hyper3d_model_via_text",
		Command:     "create_rodin_job",
		Description: "Generate a 3D asset from an English text prompt via Hyper3D Rodin. The asset has built-in materials and a normalized size. Poll the job and import it once complete.",
		Integration: IntegrationHyper3D,
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"text_prompt": {"type": "string", "description": "Short English description of the desired model"},
				"bbox_condition": {"type": "array", "items": {"type": "number"}, "description": "Optional [length, width, height] ratio of the model"}
			},
			"required": ["text_prompt"]
		}`),
		CommandSchema: rodinJobSchema,
	},
	{
		Name:        "generate_hyper3d_model_via_images",
		Command:     "create_rodin_job",
		Description: "Generate a 3D asset from reference images via Hyper3D Rodin. Give absolute file paths in MAIN_SITE mode or image URLs in FAL_AI mode, never both.",
		Integration: IntegrationHyper3D,
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"input_image_paths": {"type": "array", "items": {"type": "string"}, "description": "Absolute paths of the input images"},
				"input_image_urls": {"type": "array", "items": {"type": "string"}, "description": "URLs of the input images"},
				"bbox_condition": {"type": "array", "items": {"type": "number"}, "description": "Optional [length, width, height] ratio of the model"}
			}
		}`),
		CommandSchema: rodinJobSchema,
	},
	{
		Name:        "poll_rodin_job_status",
		Command:     "poll_rodin_job_status",
		Description: "Check whether a Hyper3D Rodin generation job has finished. Pass subscription_key in MAIN_SITE mode or request_id in FAL_AI mode.",
		Integration: IntegrationHyper3D,
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"subscription_key": {"type": "string", "description": "Subscription key returned by the generate step"},
				"request_id": {"type": "string", "description": "Request id returned by the generate step"}
			}
		}`),
	},
	{
		Name:        "import_generated_asset",
		Command:     "import_generated_asset",
		Description: "Import a completed Hyper3D Rodin job into the scene under the given object name.",
		Integration: IntegrationHyper3D,
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"name": {"type": "string", "description": "Name for the imported object"},
				"task_uuid": {"type": "string", "description": "Task uuid from the generate step, MAIN_SITE mode"},
				"request_id": {"type": "string", "description": "Request id from the generate step, FAL_AI mode"}
			},
			"required": ["name"]
		}`),
	},
}

var (
	byName    = make(map[string]int, len(tools))
	byCommand = make(map[string]json.RawMessage, len(tools))
)

func init() {
	ambiguous := map[string]bool{}
	for i, tool := range tools {
		if _, dup := byName[tool.Name]; dup {
			panic(fmt.Sprintf("catalog: duplicate tool %q", tool.Name))
		}
		byName[tool.Name] = i

		schema, err := commandSchema(tool)
		if err != nil {
			panic(fmt.Sprintf("catalog: bad schema for %q: %v", tool.Name, err))
		}
		if prev, seen := byCommand[tool.Command]; seen {
			if !bytes.Equal(prev, schema) {
				ambiguous[tool.Command] = true
			}
			continue
		}
		byCommand[tool.Command] = schema
	}
	// Commands reachable from tools with different schemas cannot be
	// validated client-side; the host stays the authority for those.
	for command := range ambiguous {
		delete(byCommand, command)
	}
}

// commandSchema rewrites a tool's schema so its property names match the
// command's wire parameters.
func commandSchema(tool Tool) (json.RawMessage, error) {
	if len(tool.CommandSchema) > 0 {
		return tool.CommandSchema, nil
	}
	if len(tool.Rename) == 0 {
		return tool.InputSchema, nil
	}

	var schema map[string]any
	if err := json.Unmarshal(tool.InputSchema, &schema); err != nil {
		return nil, err
	}
	if props, ok := schema["properties"].(map[string]any); ok {
		for from, to := range tool.Rename {
			if p, exists := props[from]; exists {
				delete(props, from)
				props[to] = p
			}
		}
	}
	if required, ok := schema["required"].([]any); ok {
		for i, item := range required {
			name, ok := item.(string)
			if !ok {
				continue
			}
			if to, renamed := tool.Rename[name]; renamed {
				required[i] = to
			}
		}
	}
	return json.Marshal(schema)
}

// All returns every tool in declaration order.
func All() []Tool {
	out := make([]Tool, len(tools))
	copy(out, tools)
	return out
}

// Enabled returns the tools exposed for the given set of enabled
// integrations. Tools without an integration label are always included.
func Enabled(integrations map[string]bool) []Tool {
	out := make([]Tool, 0, len(tools))
	for _, tool := range tools {
		if tool.Integration != "" && !integrations[tool.Integration] {
			continue
		}
		out = append(out, tool)
	}
	return out
}

// Lookup finds a tool by its exposed name.
func Lookup(name string) (Tool, bool) {
	i, ok := byName[name]
	if !ok {
		return Tool{}, false
	}
	return tools[i], true
}

// SchemaForCommand returns the wire parameter schema for a host command,
// when the catalog can state one unambiguously.
func SchemaForCommand(command string) (json.RawMessage, bool) {
	schema, ok := byCommand[command]
	return schema, ok
}

// ValidateCommand checks command parameters against the catalog schema
// for that command, returning the coerced parameters. Commands the
// catalog has no schema for pass through unchanged.
func ValidateCommand(command string, params map[string]any) (map[string]any, error) {
	schema, ok := byCommand[command]
	if !ok {
		return params, nil
	}
	return CoerceArgs(params, schema)
}
