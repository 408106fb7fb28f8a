package mockhost

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Object is one scene object.
type Object struct {
	Name      string
	Type      string // MESH, CAMERA, LIGHT
	Location  [3]float64
	Rotation  [3]float64
	Scale     [3]float64
	Visible   bool
	Selected  bool
	Materials []string
	Mesh      *Mesh
	Modifiers []*Modifier
}

// Mesh carries the counts and local bounds the inspection commands
// report. HalfExtents is the local-space half size; world bounds come
// from scaling it around the object location.
type Mesh struct {
	Vertices    int
	Edges       int
	Polygons    int
	HalfExtents [3]float64
}

// Modifier is one stack entry. NODES modifiers carry their group name
// and the per-modifier input values keyed by interface identifier.
type Modifier struct {
	Name         string
	Type         string
	ShowViewport bool
	ShowRender   bool

	NodeGroup string
	Values    map[string]any

	Levels       int
	RenderLevels int
}

// Material is a material slot target, optionally with a shader tree.
type Material struct {
	Name     string
	UseNodes bool
	Tree     *Tree
}

// Scene is the in-memory document every main-thread command works on.
// The executor drain serializes all access, mirroring how the real host
// owns its data from the UI thread, so handlers reading or writing the
// scene must register with RequiresMainThread.
type Scene struct {
	Name      string
	Objects   []*Object
	Materials []*Material
	Trees     []*Tree
	Active    string
	Mode      string
	World     string // HDRI environment, set by asset downloads

	// texture id -> map names, recorded by download_polyhaven_asset so
	// set_texture can refuse textures that were never fetched.
	downloadedTextures map[string][]string
}

// newScene seeds the default startup document: cube, camera and light,
// one material, and a geometry node group on the cube so every node
// command has something to chew on from the first call.
func newScene() *Scene {
	geo := newGeometryTree()
	s := &Scene{
		Name: "Scene",
		Objects: []*Object{
			{
				Name:      "Cube",
				Type:      "MESH",
				Scale:     [3]float64{1, 1, 1},
				Visible:   true,
				Selected:  true,
				Materials: []string{"Material"},
				Mesh:      &Mesh{Vertices: 8, Edges: 12, Polygons: 6, HalfExtents: [3]float64{1, 1, 1}},
				Modifiers: []*Modifier{{
					Name:         "GeometryNodes",
					Type:         "NODES",
					ShowViewport: true,
					ShowRender:   true,
					NodeGroup:    geo.Name,
					Values:       map[string]any{"Socket_2": 2},
				}},
			},
			{
				Name:     "Camera",
				Type:     "CAMERA",
				Location: [3]float64{7.3589, -6.9258, 4.9583},
				Rotation: [3]float64{1.1093, 0, 0.8149},
				Scale:    [3]float64{1, 1, 1},
				Visible:  true,
			},
			{
				Name:     "Light",
				Type:     "LIGHT",
				Location: [3]float64{4.0762, 1.0055, 5.9039},
				Rotation: [3]float64{0.6503, 0.0552, 1.8664},
				Scale:    [3]float64{1, 1, 1},
				Visible:  true,
			},
		},
		Materials:          []*Material{{Name: "Material", UseNodes: true, Tree: newPrincipledTree("Material")}},
		Trees:              []*Tree{geo},
		Active:             "Cube",
		Mode:               "OBJECT",
		downloadedTextures: make(map[string][]string),
	}
	return s
}

func (s *Scene) find(name string) *Object {
	for _, obj := range s.Objects {
		if obj.Name == name {
			return obj
		}
	}
	return nil
}

func (s *Scene) objectNames() []string {
	names := make([]string, len(s.Objects))
	for i, obj := range s.Objects {
		names[i] = obj.Name
	}
	return names
}

func (s *Scene) material(name string) *Material {
	for _, mat := range s.Materials {
		if mat.Name == name {
			return mat
		}
	}
	return nil
}

func (s *Scene) materialNames() []string {
	names := make([]string, len(s.Materials))
	for i, mat := range s.Materials {
		names[i] = mat.Name
	}
	return names
}

// uniqueName resolves name collisions the way the host application
// does: the first taken name gets a numeric suffix, Cube -> Cube.001.
func (s *Scene) uniqueName(base string) string {
	if s.find(base) == nil {
		return base
	}
	for i := 1; ; i++ {
		name := fmt.Sprintf("%s.%03d", base, i)
		if s.find(name) == nil {
			return name
		}
	}
}

// addObject appends obj under a collision-free name and returns the
// name it ended up with.
func (s *Scene) addObject(obj *Object) string {
	obj.Name = s.uniqueName(obj.Name)
	s.Objects = append(s.Objects, obj)
	return obj.Name
}

// worldBounds is the axis-aligned bounding box: [[min x y z], [max x y z]].
func (obj *Object) worldBounds() [2][3]float64 {
	var bounds [2][3]float64
	for i := 0; i < 3; i++ {
		half := obj.Mesh.HalfExtents[i] * obj.Scale[i]
		bounds[0][i] = obj.Location[i] - half
		bounds[1][i] = obj.Location[i] + half
	}
	return bounds
}

func round(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(v*scale) / scale
}

func roundedVec(v [3]float64, places int) []float64 {
	return []float64{round(v[0], places), round(v[1], places), round(v[2], places)}
}

// nameList renders names for error messages: ["Cube", "Camera"].
func nameList(names []string) string {
	quoted := make([]string, len(names))
	for i, name := range names {
		quoted[i] = strconv.Quote(name)
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}

func (s *Scene) getSceneInfo(map[string]any) (any, error) {
	objects := make([]map[string]any, 0, 10)
	for i, obj := range s.Objects {
		if i >= 10 {
			break
		}
		objects = append(objects, map[string]any{
			"name":     obj.Name,
			"type":     obj.Type,
			"location": roundedVec(obj.Location, 2),
		})
	}
	return map[string]any{
		"name":            s.Name,
		"object_count":    len(s.Objects),
		"objects":         objects,
		"materials_count": len(s.Materials),
	}, nil
}

func (s *Scene) getObjectInfo(params map[string]any) (any, error) {
	var p struct {
		Name string `mapstructure:"name"`
	}
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	obj := s.find(p.Name)
	if obj == nil {
		return nil, fmt.Errorf("Object not found: %s", p.Name)
	}

	materials := make([]string, 0, len(obj.Materials))
	materials = append(materials, obj.Materials...)

	info := map[string]any{
		"name":      obj.Name,
		"type":      obj.Type,
		"location":  obj.Location[:],
		"rotation":  obj.Rotation[:],
		"scale":     obj.Scale[:],
		"visible":   obj.Visible,
		"materials": materials,
	}
	if obj.Type == "MESH" && obj.Mesh != nil {
		bounds := obj.worldBounds()
		info["world_bounding_box"] = [][]float64{bounds[0][:], bounds[1][:]}
		info["mesh"] = map[string]any{
			"vertices": obj.Mesh.Vertices,
			"edges":    obj.Mesh.Edges,
			"polygons": obj.Mesh.Polygons,
		}
	}
	return info, nil
}

func executeCode(map[string]any) (any, error) {
	return nil, errors.New("code execution is not available: the mock host has no Python interpreter")
}

func (s *Scene) getSelection(map[string]any) (any, error) {
	result := map[string]any{
		"active_object":    nil,
		"selected_objects": []map[string]any{},
		"selection_count":  0,
		"mode":             s.Mode,
	}

	if active := s.find(s.Active); active != nil {
		result["active_object"] = map[string]any{
			"name":     active.Name,
			"type":     active.Type,
			"location": roundedVec(active.Location, 4),
		}
	}

	selected := make([]map[string]any, 0)
	for _, obj := range s.Objects {
		if !obj.Selected {
			continue
		}
		selected = append(selected, map[string]any{
			"name":      obj.Name,
			"type":      obj.Type,
			"is_active": obj.Name == s.Active,
		})
	}
	result["selected_objects"] = selected
	result["selection_count"] = len(selected)
	return result, nil
}

func (s *Scene) setSelection(params map[string]any) (any, error) {
	var p struct {
		ObjectNames []string `mapstructure:"object_names"`
		Mode        string   `mapstructure:"mode"`
		Active      string   `mapstructure:"active"`
	}
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	if p.Mode == "" {
		p.Mode = "replace"
	}
	if p.Mode != "replace" && p.Mode != "add" && p.Mode != "remove" {
		return nil, fmt.Errorf("Invalid mode: %s. Must be 'replace', 'add', or 'remove'", p.Mode)
	}

	var targets []*Object
	var missing []string
	for _, name := range p.ObjectNames {
		if obj := s.find(name); obj != nil {
			targets = append(targets, obj)
		} else {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("Objects not found: %s. Available: %s", nameList(missing), nameList(s.objectNames()))
	}

	switch p.Mode {
	case "replace":
		for _, obj := range s.Objects {
			obj.Selected = false
		}
		for _, obj := range targets {
			obj.Selected = true
		}
	case "add":
		for _, obj := range targets {
			obj.Selected = true
		}
	case "remove":
		for _, obj := range targets {
			obj.Selected = false
		}
	}

	if p.Active != "" {
		active := s.find(p.Active)
		if active == nil {
			return nil, fmt.Errorf("Active object not found: %s", p.Active)
		}
		if !active.Selected {
			return nil, fmt.Errorf("Active object must be selected: %s", p.Active)
		}
		s.Active = active.Name
	} else if p.Mode == "replace" && len(targets) > 0 {
		s.Active = targets[0].Name
	}

	return s.getSelection(nil)
}

func (s *Scene) batchRename(params map[string]any) (any, error) {
	var p struct {
		ObjectNames   []string `mapstructure:"object_names"`
		UseSelection  bool     `mapstructure:"use_selection"`
		NewBaseName   string   `mapstructure:"new_base_name"`
		Find          *string  `mapstructure:"find"`
		Replace       *string  `mapstructure:"replace"`
		Prefix        string   `mapstructure:"prefix"`
		Suffix        string   `mapstructure:"suffix"`
		NumberStart   *int     `mapstructure:"number_start"`
		NumberPadding *int     `mapstructure:"number_padding"`
	}
	if err := decode(params, &p); err != nil {
		return nil, err
	}

	var targets []*Object
	switch {
	case p.UseSelection:
		for _, obj := range s.Objects {
			if obj.Selected {
				targets = append(targets, obj)
			}
		}
	case len(p.ObjectNames) > 0:
		var missing []string
		for _, name := range p.ObjectNames {
			if obj := s.find(name); obj != nil {
				targets = append(targets, obj)
			} else {
				missing = append(missing, name)
			}
		}
		if len(missing) > 0 {
			return nil, fmt.Errorf("Objects not found: %s", nameList(missing))
		}
	default:
		return nil, errors.New("Must provide object_names or use_selection=True")
	}
	if len(targets) == 0 {
		return nil, errors.New("No objects to rename")
	}

	start, padding := 1, 2
	if p.NumberStart != nil {
		start = *p.NumberStart
	}
	if p.NumberPadding != nil {
		padding = *p.NumberPadding
	}

	rename := func(obj *Object, name string) map[string]any {
		old := obj.Name
		if name != old {
			obj.Name = s.renameTo(obj, name)
		}
		if s.Active == old {
			s.Active = obj.Name
		}
		return map[string]any{"old": old, "new": obj.Name}
	}

	var renames []map[string]any
	switch {
	case p.NewBaseName != "":
		for i, obj := range targets {
			name := fmt.Sprintf("%s.%0*d", p.NewBaseName, padding, start+i)
			renames = append(renames, rename(obj, name))
		}
	case p.Find != nil && p.Replace != nil:
		for _, obj := range targets {
			if !strings.Contains(obj.Name, *p.Find) {
				renames = append(renames, map[string]any{
					"old": obj.Name, "new": obj.Name, "skipped": "pattern not found",
				})
				continue
			}
			renames = append(renames, rename(obj, strings.ReplaceAll(obj.Name, *p.Find, *p.Replace)))
		}
	case p.Prefix != "":
		for _, obj := range targets {
			renames = append(renames, rename(obj, p.Prefix+obj.Name))
		}
	case p.Suffix != "":
		for _, obj := range targets {
			renames = append(renames, rename(obj, obj.Name+p.Suffix))
		}
	default:
		return nil, errors.New("Must specify a rename mode: new_base_name, find/replace, prefix, or suffix")
	}

	renamed := 0
	for _, r := range renames {
		if r["old"] != r["new"] {
			renamed++
		}
	}
	return map[string]any{
		"renamed_count":   renamed,
		"total_processed": len(renames),
		"renames":         renames,
	}, nil
}

// renameTo resolves name for obj, suffixing it when another object
// already holds the name.
func (s *Scene) renameTo(obj *Object, name string) string {
	taken := func(candidate string) bool {
		other := s.find(candidate)
		return other != nil && other != obj
	}
	if !taken(name) {
		return name
	}
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s.%03d", name, i)
		if !taken(candidate) {
			return candidate
		}
	}
}

func (s *Scene) listMaterials(map[string]any) (any, error) {
	materials := make([]map[string]any, 0, len(s.Materials))
	for _, mat := range s.Materials {
		usedBy := make([]string, 0)
		for _, obj := range s.Objects {
			if obj.Type != "MESH" {
				continue
			}
			for _, slot := range obj.Materials {
				if slot == mat.Name {
					usedBy = append(usedBy, obj.Name)
					break
				}
			}
		}

		info := map[string]any{
			"name":      mat.Name,
			"use_nodes": mat.UseNodes,
			"users":     len(usedBy),
			"used_by":   usedBy,
		}
		if mat.UseNodes && mat.Tree != nil {
			info["node_count"] = len(mat.Tree.Nodes)
			info["link_count"] = len(mat.Tree.Links)
			for _, node := range mat.Tree.Nodes {
				switch node.Type {
				case "ShaderNodeBsdfPrincipled", "ShaderNodeEmission",
					"ShaderNodeBsdfDiffuse", "ShaderNodeBsdfGlossy",
					"ShaderNodeMixShader", "ShaderNodeBsdfGlass":
					info["main_shader"] = strings.TrimPrefix(node.Type, "ShaderNode")
				}
				if _, ok := info["main_shader"]; ok {
					break
				}
			}
		}
		materials = append(materials, info)
	}
	return map[string]any{
		"material_count": len(materials),
		"materials":      materials,
	}, nil
}

func (s *Scene) getMaterialNodes(params map[string]any) (any, error) {
	var p struct {
		MaterialName string `mapstructure:"material_name"`
		NodeName     string `mapstructure:"node_name"`
	}
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	mat := s.material(p.MaterialName)
	if mat == nil {
		return nil, fmt.Errorf("Material not found: %s. Available: %s", p.MaterialName, nameList(s.materialNames()))
	}
	if !mat.UseNodes || mat.Tree == nil {
		return map[string]any{
			"material_name": p.MaterialName,
			"use_nodes":     false,
			"message":       "Material does not use nodes",
		}, nil
	}
	tree := mat.Tree

	nodeInfo := func(node *Node) map[string]any {
		info := map[string]any{
			"name":      node.Name,
			"bl_idname": node.Type,
			"label":     nilIfEmpty(node.Label),
			"location":  []float64{round(node.Location[0], 2), round(node.Location[1], 2)},
			"inputs":    tree.socketDocs(node.Inputs, true),
			"outputs":   tree.socketDocs(node.Outputs, false),
		}
		for _, key := range []string{"image", "blend_type", "operation"} {
			if v, ok := node.Props[key]; ok {
				info[key] = v
			}
		}
		if _, ok := node.Props["color_ramp"]; ok {
			info["has_color_ramp"] = true
		}
		return info
	}

	if p.NodeName != "" {
		node, ok := tree.node(p.NodeName)
		if !ok {
			return nil, fmt.Errorf("Node not found: %s. Available: %s", p.NodeName, nameList(tree.nodeNames()))
		}
		return nodeInfo(node), nil
	}

	links := make([]map[string]any, 0, len(tree.Links))
	for _, link := range tree.Links {
		links = append(links, map[string]any{
			"from_node":   link.FromNode.Name,
			"from_socket": link.FromSock.Name,
			"to_node":     link.ToNode.Name,
			"to_socket":   link.ToSock.Name,
		})
	}
	nodes := make([]map[string]any, 0, len(tree.Nodes))
	for _, node := range tree.Nodes {
		nodes = append(nodes, nodeInfo(node))
	}
	return map[string]any{
		"material_name": mat.Name,
		"node_count":    len(tree.Nodes),
		"link_count":    len(tree.Links),
		"nodes":         nodes,
		"links":         links,
	}, nil
}

func (s *Scene) getModifierDetails(params map[string]any) (any, error) {
	var p struct {
		ObjectName   string `mapstructure:"object_name"`
		ModifierName string `mapstructure:"modifier_name"`
	}
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	obj := s.find(p.ObjectName)
	if obj == nil {
		return nil, fmt.Errorf("Object not found: %s. Available: %s", p.ObjectName, nameList(s.objectNames()))
	}

	if p.ModifierName != "" {
		for _, mod := range obj.Modifiers {
			if mod.Name == p.ModifierName {
				return s.modifierInfo(mod), nil
			}
		}
		names := make([]string, len(obj.Modifiers))
		for i, mod := range obj.Modifiers {
			names[i] = mod.Name
		}
		return nil, fmt.Errorf("Modifier not found: %s. Available: %s", p.ModifierName, nameList(names))
	}

	mods := make([]map[string]any, 0, len(obj.Modifiers))
	for _, mod := range obj.Modifiers {
		mods = append(mods, s.modifierInfo(mod))
	}
	return map[string]any{
		"object_name":    obj.Name,
		"modifier_count": len(obj.Modifiers),
		"modifiers":      mods,
	}, nil
}

func (s *Scene) modifierInfo(mod *Modifier) map[string]any {
	info := map[string]any{
		"name":          mod.Name,
		"type":          mod.Type,
		"show_viewport": mod.ShowViewport,
		"show_render":   mod.ShowRender,
	}
	switch mod.Type {
	case "NODES":
		tree, ok := s.tree(mod.NodeGroup)
		if !ok {
			info["node_group"] = nil
			break
		}
		info["node_group"] = tree.Name
		inputs := make([]map[string]any, 0, len(tree.Inputs))
		for _, in := range tree.Inputs {
			entry := map[string]any{
				"name":        in.Name,
				"identifier":  in.Identifier,
				"socket_type": in.SocketType,
			}
			if v, ok := mod.Values[in.Identifier]; ok {
				entry["value"] = v
			} else if in.Default != nil {
				entry["value"] = in.Default
			}
			inputs = append(inputs, entry)
		}
		info["inputs"] = inputs
	case "SUBSURF":
		info["levels"] = mod.Levels
		info["render_levels"] = mod.RenderLevels
	}
	return info
}

func (s *Scene) getGeometryStats(params map[string]any) (any, error) {
	var p struct {
		ObjectName     string `mapstructure:"object_name"`
		ApplyModifiers *bool  `mapstructure:"apply_modifiers"`
	}
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	apply := p.ApplyModifiers == nil || *p.ApplyModifiers

	obj := s.find(p.ObjectName)
	if obj == nil {
		return nil, fmt.Errorf("Object not found: %s. Available: %s", p.ObjectName, nameList(s.objectNames()))
	}
	if obj.Type != "MESH" || obj.Mesh == nil {
		if apply {
			return map[string]any{
				"object_name": obj.Name,
				"object_type": obj.Type,
				"error":       fmt.Sprintf("Cannot get mesh data for object type: %s", obj.Type),
			}, nil
		}
		return map[string]any{
			"object_name": obj.Name,
			"object_type": obj.Type,
			"error":       fmt.Sprintf("Object is not a mesh: %s", obj.Type),
		}, nil
	}

	verts, edges, faces := obj.Mesh.Vertices, obj.Mesh.Edges, obj.Mesh.Polygons
	if apply {
		verts, edges, faces = s.evaluatedCounts(obj)
	}

	stats := map[string]any{
		"object_name":       obj.Name,
		"object_type":       obj.Type,
		"modifiers_applied": apply,
		"vertex_count":      verts,
		"edge_count":        edges,
		"face_count":        faces,
	}
	if verts > 0 {
		bounds := obj.worldBounds()
		min, max := bounds[0], bounds[1]
		stats["bounding_box"] = map[string]any{
			"min": roundedVec(min, 4),
			"max": roundedVec(max, 4),
		}
		stats["dimensions"] = map[string]any{
			"x": round(max[0]-min[0], 4),
			"y": round(max[1]-min[1], 4),
			"z": round(max[2]-min[2], 4),
		}
		stats["center"] = map[string]any{
			"x": round((min[0]+max[0])/2, 4),
			"y": round((min[1]+max[1])/2, 4),
			"z": round((min[2]+max[2])/2, 4),
		}
	} else {
		stats["bounding_box"] = nil
		stats["dimensions"] = map[string]any{"x": 0, "y": 0, "z": 0}
		stats["center"] = map[string]any{"x": 0, "y": 0, "z": 0}
	}
	return stats, nil
}

// evaluatedCounts simulates just enough of the modifier stack for
// parameter changes to be observable: every subdivision level rewrites
// the counts with the quad-subdivision formulas V+E+F, 2E+4F, 4F.
func (s *Scene) evaluatedCounts(obj *Object) (verts, edges, faces int) {
	verts, edges, faces = obj.Mesh.Vertices, obj.Mesh.Edges, obj.Mesh.Polygons
	for _, mod := range obj.Modifiers {
		if !mod.ShowViewport {
			continue
		}
		levels := 0
		switch mod.Type {
		case "SUBSURF":
			levels = mod.Levels
		case "NODES":
			if tree, ok := s.tree(mod.NodeGroup); ok {
				levels = tree.subdivisionLevels(mod.Values)
			}
		}
		for i := 0; i < levels; i++ {
			verts, edges, faces = verts+edges+faces, 2*edges+4*faces, 4*faces
		}
	}
	return verts, edges, faces
}

func (s *Scene) listNodeTrees(map[string]any) (any, error) {
	byType := make(map[string][]map[string]any)
	for _, ng := range s.Trees {
		users := make([]map[string]any, 0)
		for _, obj := range s.Objects {
			for _, mod := range obj.Modifiers {
				if mod.Type == "NODES" && mod.NodeGroup == ng.Name {
					users = append(users, map[string]any{
						"type":     "modifier",
						"object":   obj.Name,
						"modifier": mod.Name,
					})
				}
			}
		}
		for _, other := range s.Trees {
			if other == ng {
				continue
			}
			for _, node := range other.Nodes {
				switch node.Type {
				case "GeometryNodeGroup", "ShaderNodeGroup", "CompositorNodeGroup":
					if node.Props["node_tree"] == ng.Name {
						users = append(users, map[string]any{
							"type":        "node_group",
							"parent_tree": other.Name,
							"node_name":   node.Name,
						})
					}
				}
			}
		}
		byType[ng.Type] = append(byType[ng.Type], map[string]any{
			"name":       ng.Name,
			"node_count": len(ng.Nodes),
			"link_count": len(ng.Links),
			"users":      users,
		})
	}

	materialTrees := make([]map[string]any, 0)
	for _, mat := range s.Materials {
		if !mat.UseNodes || mat.Tree == nil {
			continue
		}
		materialTrees = append(materialTrees, map[string]any{
			"name":       mat.Name,
			"node_count": len(mat.Tree.Nodes),
			"link_count": len(mat.Tree.Links),
			"type":       "material",
		})
	}

	return map[string]any{
		"node_groups":                byType,
		"material_node_trees":        materialTrees,
		"total_node_groups":          len(s.Trees),
		"total_materials_with_nodes": len(materialTrees),
	}, nil
}

func nilIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// sortedKeys keeps canned map output stable for logs and tests.
func sortedKeys[M ~map[string]V, V any](m M) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
