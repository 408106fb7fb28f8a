package mockhost

import (
	"testing"
)

func TestNodeDetailsSeedTree(t *testing.T) {
	s := newScene()
	result := callOK(t, s.getNodeDetails, map[string]any{"node_tree_name": "Geometry Nodes"})

	if result["node_tree_type"] != "GeometryNodeTree" {
		t.Fatalf("node_tree_type = %v", result["node_tree_type"])
	}
	if result["node_count"] != 3 || result["link_count"] != 3 {
		t.Fatalf("counts = %v/%v, want 3/3", result["node_count"], result["link_count"])
	}

	doc := callOK(t, s.getNodeDetails, map[string]any{
		"node_tree_name": "Geometry Nodes",
		"node_name":      "Subdivide Mesh",
	})
	if doc["bl_idname"] != "GeometryNodeSubdivideMesh" {
		t.Fatalf("bl_idname = %v", doc["bl_idname"])
	}
	loc := doc["location"].([]float64)
	if loc[0] != -60 || loc[1] != 0 {
		t.Fatalf("location = %v", loc)
	}
	inputs := doc["inputs"].([]map[string]any)
	if len(inputs) != 2 || inputs[1]["name"] != "Level" || inputs[1]["is_linked"] != true {
		t.Fatalf("inputs = %v", inputs)
	}
}

func TestNodeDetailsErrors(t *testing.T) {
	s := newScene()

	err := callErr(t, s.getNodeDetails, map[string]any{"node_tree_name": "Marble"})
	if err.Error() != `Node tree not found: Marble. Available: ["Geometry Nodes"]` {
		t.Fatalf("error = %q", err)
	}

	err = callErr(t, s.getNodeDetails, map[string]any{
		"node_tree_name": "Geometry Nodes",
		"node_name":      "Blur",
	})
	if err.Error() != `Node not found: Blur. Available: ["Group Input", "Subdivide Mesh", "Group Output"]` {
		t.Fatalf("error = %q", err)
	}
}

func TestNodeLinks(t *testing.T) {
	s := newScene()
	result := callOK(t, s.getNodeLinks, map[string]any{"node_tree_name": "Geometry Nodes"})

	if result["link_count"] != 3 {
		t.Fatalf("link_count = %v, want 3", result["link_count"])
	}
	links := result["links"].([]map[string]any)
	first := links[0]
	if first["from_node"] != "Group Input" || first["to_node"] != "Subdivide Mesh" {
		t.Fatalf("links[0] = %v", first)
	}
	fromSock := first["from_socket"].(map[string]any)
	if fromSock["name"] != "Geometry" || fromSock["index"] != 0 || fromSock["type"] != "GEOMETRY" {
		t.Fatalf("from_socket = %v", fromSock)
	}
}

func TestNodeConnections(t *testing.T) {
	s := newScene()
	result := callOK(t, s.getNodeConnections, map[string]any{
		"node_tree_name": "Geometry Nodes",
		"node_name":      "Subdivide Mesh",
	})

	if result["incoming_count"] != 2 || result["outgoing_count"] != 1 {
		t.Fatalf("counts = %v/%v, want 2/1", result["incoming_count"], result["outgoing_count"])
	}
	incoming := result["incoming"].([]map[string]any)
	if incoming[1]["from_socket"] != "Level" || incoming[1]["to_socket_index"] != 1 {
		t.Fatalf("incoming[1] = %v", incoming[1])
	}
	if len(result["unconnected_inputs"].([]map[string]any)) != 0 {
		t.Fatalf("unconnected_inputs = %v", result["unconnected_inputs"])
	}
}

func TestCreateNode(t *testing.T) {
	s := newScene()
	result := callOK(t, s.createGeonodeNode, map[string]any{
		"node_tree_name": "Geometry Nodes",
		"node_type":      "ShaderNodeMath",
		"location":       []any{float64(400), float64(-200)},
		"properties":     map[string]any{"operation": "MULTIPLY"},
		"defaults":       map[string]any{"0": float64(2.5)},
	})

	if result["success"] != true || result["name"] != "Math" {
		t.Fatalf("result = %v", result)
	}
	loc := result["location"].([]float64)
	if loc[0] != 400 || loc[1] != -200 {
		t.Fatalf("location = %v", loc)
	}

	doc := callOK(t, s.getNodeDetails, map[string]any{
		"node_tree_name": "Geometry Nodes",
		"node_name":      "Math",
	})
	props := doc["properties"].(map[string]any)
	if props["operation"] != "MULTIPLY" {
		t.Fatalf("operation = %v", props["operation"])
	}
	inputs := doc["inputs"].([]map[string]any)
	if inputs[0]["default_value"] != 2.5 {
		t.Fatalf("inputs[0].default_value = %v", inputs[0]["default_value"])
	}

	// A second unnamed node of the same class gets a suffixed name.
	result = callOK(t, s.createGeonodeNode, map[string]any{
		"node_tree_name": "Geometry Nodes",
		"node_type":      "ShaderNodeMath",
	})
	if result["name"] != "Math.001" {
		t.Fatalf("name = %v, want Math.001", result["name"])
	}
}

func TestCreateNodeErrors(t *testing.T) {
	s := newScene()

	err := callErr(t, s.createGeonodeNode, map[string]any{
		"node_tree_name": "Marble",
		"node_type":      "ShaderNodeMath",
	})
	if err.Error() != "Node tree not found: Marble" {
		t.Fatalf("error = %q", err)
	}

	err = callErr(t, s.createGeonodeNode, map[string]any{
		"node_tree_name": "Geometry Nodes",
		"node_type":      "GeometryNodeWarp",
	})
	if err.Error() != "Failed to create node of type 'GeometryNodeWarp': not a registered node type" {
		t.Fatalf("error = %q", err)
	}
}

func TestCreateLink(t *testing.T) {
	s := newScene()
	callOK(t, s.createGeonodeNode, map[string]any{
		"node_tree_name": "Geometry Nodes",
		"node_type":      "ShaderNodeMath",
	})

	result := callOK(t, s.createGeonodeLink, map[string]any{
		"node_tree_name": "Geometry Nodes",
		"from_node":      "Group Input",
		"from_socket":    "Level",
		"to_node":        "Math",
		"to_socket":      float64(0),
	})
	if result["from_socket"] != "Level" || result["from_socket_index"] != 1 {
		t.Fatalf("from = %v/%v", result["from_socket"], result["from_socket_index"])
	}
	if result["to_socket"] != "Value" || result["to_socket_index"] != 0 {
		t.Fatalf("to = %v/%v", result["to_socket"], result["to_socket_index"])
	}

	links := callOK(t, s.getNodeLinks, map[string]any{"node_tree_name": "Geometry Nodes"})
	if links["link_count"] != 4 {
		t.Fatalf("link_count = %v, want 4", links["link_count"])
	}
}

func TestSocketResolutionErrors(t *testing.T) {
	s := newScene()

	err := callErr(t, s.createGeonodeLink, map[string]any{
		"node_tree_name": "Geometry Nodes",
		"from_node":      "Group Input",
		"from_socket":    float64(5),
		"to_node":        "Subdivide Mesh",
		"to_socket":      "Mesh",
	})
	if err.Error() != "Output socket index 5 out of range. Node has 2 outputs." {
		t.Fatalf("error = %q", err)
	}

	err = callErr(t, s.createGeonodeLink, map[string]any{
		"node_tree_name": "Geometry Nodes",
		"from_node":      "Group Input",
		"from_socket":    "Geometry",
		"to_node":        "Subdivide Mesh",
		"to_socket":      "Nope",
	})
	if err.Error() != "Input socket not found: Nope. Available: [[0] Mesh, [1] Level]" {
		t.Fatalf("error = %q", err)
	}
}

func TestDeleteLink(t *testing.T) {
	s := newScene()
	result := callOK(t, s.deleteGeonodeLink, map[string]any{
		"node_tree_name": "Geometry Nodes",
		"from_node":      "Group Input",
		"from_socket":    "Level",
		"to_node":        "Subdivide Mesh",
		"to_socket":      "Level",
	})
	if result["success"] != true {
		t.Fatalf("result = %v", result)
	}

	err := callErr(t, s.deleteGeonodeLink, map[string]any{
		"node_tree_name": "Geometry Nodes",
		"from_node":      "Group Input",
		"from_socket":    "Level",
		"to_node":        "Subdivide Mesh",
		"to_socket":      "Level",
	})
	if err.Error() != "Link not found from Group Input.Level to Subdivide Mesh.Level" {
		t.Fatalf("error = %q", err)
	}
}

func TestDeleteNode(t *testing.T) {
	s := newScene()
	result := callOK(t, s.deleteGeonodeNode, map[string]any{
		"node_tree_name": "Geometry Nodes",
		"node_name":      "Subdivide Mesh",
	})

	if result["removed_node"] != "Subdivide Mesh" || result["removed_links"] != 3 {
		t.Fatalf("result = %v", result)
	}
	details := callOK(t, s.getNodeDetails, map[string]any{"node_tree_name": "Geometry Nodes"})
	if details["node_count"] != 2 || details["link_count"] != 0 {
		t.Fatalf("counts after delete = %v/%v", details["node_count"], details["link_count"])
	}
}

func TestSetSocketDefault(t *testing.T) {
	s := newScene()
	result := callOK(t, s.setNodeSocketDefault, map[string]any{
		"node_tree_name": "Geometry Nodes",
		"node_name":      "Subdivide Mesh",
		"socket_name":    "Level",
		"value":          float64(3),
	})

	if result["old_value"] != 1 || result["new_value"] != 3.0 {
		t.Fatalf("values = %v -> %v, want 1 -> 3", result["old_value"], result["new_value"])
	}

	err := callErr(t, s.setNodeSocketDefault, map[string]any{
		"node_tree_name": "Geometry Nodes",
		"node_name":      "Subdivide Mesh",
		"socket_name":    "Mesh",
		"value":          float64(1),
	})
	if err.Error() != "Socket Mesh does not have a default_value property" {
		t.Fatalf("error = %q", err)
	}
}

func TestTraceDataflow(t *testing.T) {
	s := newScene()
	result := callOK(t, s.traceNodeDataflow, map[string]any{
		"node_tree_name": "Geometry Nodes",
		"from_node":      "Group Input",
		"from_socket":    "Geometry",
		"to_node":        "Group Output",
		"to_socket":      "Geometry",
	})

	if result["direct_connection"] != false {
		t.Fatal("reported a direct connection through the subdivide node")
	}
	if result["path_count"] != 1 {
		t.Fatalf("path_count = %v, want 1", result["path_count"])
	}
	paths := result["paths"].([][]map[string]any)
	path := paths[0]
	if len(path) != 3 {
		t.Fatalf("path length = %d, want 3", len(path))
	}
	if path[1]["node"] != "Subdivide Mesh" || path[1]["socket"] != "Mesh" {
		t.Fatalf("path[1] = %v", path[1])
	}
}

func TestTraceDataflowDirect(t *testing.T) {
	s := newScene()
	result := callOK(t, s.traceNodeDataflow, map[string]any{
		"node_tree_name": "Geometry Nodes",
		"from_node":      "Subdivide Mesh",
		"from_socket":    "Mesh",
		"to_node":        "Group Output",
		"to_socket":      "Geometry",
	})

	if result["direct_connection"] != true {
		t.Fatal("direct link not reported")
	}
	paths := result["paths"].([][]map[string]any)
	if len(paths) != 1 || len(paths[0]) != 2 {
		t.Fatalf("paths = %v", paths)
	}

	err := callErr(t, s.traceNodeDataflow, map[string]any{
		"node_tree_name": "Geometry Nodes",
		"from_node":      "Warp",
		"from_socket":    "Geometry",
		"to_node":        "Group Output",
		"to_socket":      "Geometry",
	})
	if err.Error() != `Source node not found: Warp. Available: ["Group Input", "Subdivide Mesh", "Group Output"]` {
		t.Fatalf("error = %q", err)
	}
}

func TestValidateNetworkSeedTree(t *testing.T) {
	s := newScene()
	result := callOK(t, s.validateGeonodeNetwork, map[string]any{"node_tree_name": "Geometry Nodes"})

	if result["is_valid"] != true || result["issue_count"] != 0 {
		t.Fatalf("result = %v", result)
	}
	stats := result["statistics"].(map[string]any)
	if stats["total_nodes"] != 3 || stats["total_links"] != 3 {
		t.Fatalf("statistics = %v", stats)
	}
}

// breakSeedTree adds an orphan math node, then reroutes the group output
// through a set position node whose geometry input is left dangling.
func breakSeedTree(t *testing.T, s *Scene) {
	t.Helper()

	callOK(t, s.createGeonodeNode, map[string]any{
		"node_tree_name": "Geometry Nodes",
		"node_type":      "ShaderNodeMath",
	})
	callOK(t, s.createGeonodeNode, map[string]any{
		"node_tree_name": "Geometry Nodes",
		"node_type":      "GeometryNodeSetPosition",
	})
	callOK(t, s.createGeonodeLink, map[string]any{
		"node_tree_name": "Geometry Nodes",
		"from_node":      "Set Position",
		"from_socket":    "Geometry",
		"to_node":        "Group Output",
		"to_socket":      "Geometry",
	})
}

func TestValidateNetworkIssues(t *testing.T) {
	s := newScene()
	breakSeedTree(t, s)

	result := callOK(t, s.validateGeonodeNetwork, map[string]any{"node_tree_name": "Geometry Nodes"})
	if result["is_valid"] != false {
		t.Fatal("broken network reported valid")
	}
	issues := result["issues"].([]string)
	want := []string{
		"Node 'Math' has no connections",
		"Required input 'Geometry' on 'Set Position' is not connected",
	}
	if len(issues) != len(want) {
		t.Fatalf("issues = %v", issues)
	}
	for i := range want {
		if issues[i] != want[i] {
			t.Fatalf("issues[%d] = %q, want %q", i, issues[i], want[i])
		}
	}

	suggestions := result["suggestions"].([]map[string]any)
	if len(suggestions) != 2 {
		t.Fatalf("suggestions = %v", suggestions)
	}
	if suggestions[0]["priority"] != 0 || suggestions[0]["suggestion"] != "Connect required geometry inputs" {
		t.Fatalf("suggestions[0] = %v", suggestions[0])
	}
	if suggestions[1]["suggestion"] != "Delete 1 orphan nodes that have no effect" {
		t.Fatalf("suggestions[1] = %v", suggestions[1])
	}
}

func TestFindOrphanNodes(t *testing.T) {
	s := newScene()

	result := callOK(t, s.findOrphanNodes, map[string]any{"node_tree_name": "Geometry Nodes"})
	if result["orphan_count"] != 0 || result["partial_count"] != 0 {
		t.Fatalf("seed tree reported orphans: %v", result)
	}

	breakSeedTree(t, s)
	result = callOK(t, s.findOrphanNodes, map[string]any{"node_tree_name": "Geometry Nodes"})

	orphans := result["orphan_nodes"].([]map[string]any)
	if len(orphans) != 1 || orphans[0]["name"] != "Math" {
		t.Fatalf("orphan_nodes = %v", orphans)
	}
	if result["partial_count"] != 2 {
		t.Fatalf("partial_count = %v, want 2", result["partial_count"])
	}
	required := result["unconnected_required"].([]map[string]any)
	if len(required) != 1 || required[0]["node"] != "Set Position" || required[0]["input"] != "Geometry" {
		t.Fatalf("unconnected_required = %v", required)
	}
}

func TestInsertNodeBetween(t *testing.T) {
	s := newScene()
	result := callOK(t, s.insertNodeBetween, map[string]any{
		"node_tree_name": "Geometry Nodes",
		"from_node":      "Subdivide Mesh",
		"from_socket":    "Mesh",
		"to_node":        "Group Output",
		"to_socket":      "Geometry",
		"new_node_type":  "GeometryNodeTransform",
	})

	if result["new_node"] != "Transform Geometry" {
		t.Fatalf("new_node = %v", result["new_node"])
	}
	loc := result["location"].([]float64)
	if loc[0] != 80 || loc[1] != 0 {
		t.Fatalf("location = %v, want midpoint [80 0]", loc)
	}
	created := result["links_created"].([]map[string]any)
	if created[0]["from"] != "Subdivide Mesh:Mesh" || created[0]["to"] != "Transform Geometry:Geometry" {
		t.Fatalf("links_created[0] = %v", created[0])
	}
	if created[1]["to"] != "Group Output:Geometry" {
		t.Fatalf("links_created[1] = %v", created[1])
	}
	if result["link_removed"] != "Subdivide Mesh:Mesh -> Group Output:Geometry" {
		t.Fatalf("link_removed = %v", result["link_removed"])
	}

	links := callOK(t, s.getNodeLinks, map[string]any{"node_tree_name": "Geometry Nodes"})
	if links["link_count"] != 4 {
		t.Fatalf("link_count = %v, want 4", links["link_count"])
	}
}

func TestInsertNodeBetweenRestoresLinkOnFailure(t *testing.T) {
	s := newScene()
	err := callErr(t, s.insertNodeBetween, map[string]any{
		"node_tree_name": "Geometry Nodes",
		"from_node":      "Group Input",
		"from_socket":    "Geometry",
		"to_node":        "Subdivide Mesh",
		"to_socket":      "Mesh",
		"new_node_type":  "GeometryNodeWarp",
	})
	if err.Error() != "Failed to create node of type 'GeometryNodeWarp': not a registered node type" {
		t.Fatalf("error = %q", err)
	}

	// The displaced link must be back in place.
	links := callOK(t, s.getNodeLinks, map[string]any{"node_tree_name": "Geometry Nodes"})
	if links["link_count"] != 3 {
		t.Fatalf("link_count = %v, want 3", links["link_count"])
	}
	result := callOK(t, s.traceNodeDataflow, map[string]any{
		"node_tree_name": "Geometry Nodes",
		"from_node":      "Group Input",
		"from_socket":    "Geometry",
		"to_node":        "Subdivide Mesh",
		"to_socket":      "Mesh",
	})
	if result["direct_connection"] != true {
		t.Fatal("displaced link was not restored")
	}
}

func TestNodeTreeInterface(t *testing.T) {
	s := newScene()
	result := callOK(t, s.getNodeTreeInterface, map[string]any{"node_tree_name": "Geometry Nodes"})

	inputs := result["inputs"].([]map[string]any)
	if len(inputs) != 2 {
		t.Fatalf("inputs = %v", inputs)
	}
	if inputs[0]["identifier"] != "Socket_0" || inputs[0]["socket_type"] != "NodeSocketGeometry" {
		t.Fatalf("inputs[0] = %v", inputs[0])
	}
	if inputs[1]["identifier"] != "Socket_2" || inputs[1]["default_value"] != 1 {
		t.Fatalf("inputs[1] = %v", inputs[1])
	}
	outputs := result["outputs"].([]map[string]any)
	if len(outputs) != 1 || outputs[0]["identifier"] != "Socket_1" {
		t.Fatalf("outputs = %v", outputs)
	}
}

func TestInspectNodeType(t *testing.T) {
	result, err := inspectNodeType(map[string]any{"node_type": "GeometryNodeSubdivideMesh"})
	if err != nil {
		t.Fatalf("inspectNodeType() error = %v", err)
	}
	m := result.(map[string]any)
	if m["bl_label"] != "Subdivide Mesh" {
		t.Fatalf("bl_label = %v", m["bl_label"])
	}
	inputs := m["inputs"].([]map[string]any)
	if inputs[1]["name"] != "Level" || inputs[1]["default_value"] != 1 {
		t.Fatalf("inputs[1] = %v", inputs[1])
	}

	_, err = inspectNodeType(map[string]any{"node_type": "GeometryNodeWarp"})
	if err == nil {
		t.Fatal("unknown node type succeeded")
	}
	if err.Error() != "Invalid node type: GeometryNodeWarp. Error: not a registered node type" {
		t.Fatalf("error = %q", err)
	}
}

func TestSetGeonodeParameterByIdentifier(t *testing.T) {
	s := newScene()
	result := callOK(t, s.setGeonodeParameter, map[string]any{
		"object_name":    "Cube",
		"modifier_name":  "GeometryNodes",
		"parameter_name": "Socket_2",
		"value":          float64(4),
	})

	param := result["parameter"].(map[string]any)
	if param["name"] != "Level" || param["socket_type"] != "NodeSocketInt" {
		t.Fatalf("parameter = %v", param)
	}
	if result["old_value"] != 2 || result["new_value"] != 4.0 {
		t.Fatalf("values = %v -> %v, want 2 -> 4", result["old_value"], result["new_value"])
	}
}

func TestSetGeonodeParameterErrors(t *testing.T) {
	s := newScene()

	err := callErr(t, s.setGeonodeParameter, map[string]any{
		"object_name":    "Cube",
		"modifier_name":  "GeometryNodes",
		"parameter_name": "Nope",
		"value":          float64(1),
	})
	if err.Error() != "Parameter not found: Nope. Available: [Geometry (Socket_0), Level (Socket_2)]" {
		t.Fatalf("error = %q", err)
	}

	err = callErr(t, s.setGeonodeParameter, map[string]any{
		"object_name":    "Camera",
		"modifier_name":  "GeometryNodes",
		"parameter_name": "Level",
		"value":          float64(1),
	})
	if err.Error() != "Modifier not found: GeometryNodes" {
		t.Fatalf("error = %q", err)
	}
}
