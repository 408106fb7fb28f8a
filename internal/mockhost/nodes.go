package mockhost

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
)

// Socket type enums as the host application reports them on nodes.
// Tree interface sockets use the NodeSocket* class names instead.
const (
	sockGeometry = "GEOMETRY"
	sockFloat    = "VALUE"
	sockInt      = "INT"
	sockVector   = "VECTOR"
	sockBool     = "BOOLEAN"
	sockColor    = "RGBA"
	sockShader   = "SHADER"
	sockMaterial = "MATERIAL"
)

// Tree is one node graph: a geometry node group or a material's shader
// tree. Geometry groups expose an interface whose inputs surface as
// modifier parameters under Socket_N identifiers.
type Tree struct {
	Name    string
	Type    string // GeometryNodeTree, ShaderNodeTree
	Nodes   []*Node
	Links   []*Link
	Inputs  []*TreeSocket
	Outputs []*TreeSocket
}

// TreeSocket is one group interface item.
type TreeSocket struct {
	Name       string
	Identifier string
	SocketType string
	Default    any
}

// Node is one node instance. Type holds the class name (bl_idname).
type Node struct {
	Name     string
	Type     string
	Label    string
	Location [2]float64
	Mute     bool
	Inputs   []*Socket
	Outputs  []*Socket
	Props    map[string]any
}

// Socket identity is its pointer: links reference sockets directly, so
// index lookups scan the owning node.
type Socket struct {
	Name    string
	Type    string
	Default any
}

type Link struct {
	FromNode *Node
	FromSock *Socket
	ToNode   *Node
	ToSock   *Socket
}

type socketSpec struct {
	name string
	typ  string
	def  any
}

type nodeSpec struct {
	label   string
	inputs  []socketSpec
	outputs []socketSpec
	props   map[string]any
}

// nodeSpecs registers the node classes the mock host can build. The
// socket layouts match the host application closely enough for link
// and default commands to behave the same way.
var nodeSpecs = map[string]nodeSpec{
	"GeometryNodeSubdivideMesh": {
		label: "Subdivide Mesh",
		inputs: []socketSpec{
			{"Mesh", sockGeometry, nil},
			{"Level", sockInt, 1},
		},
		outputs: []socketSpec{{"Mesh", sockGeometry, nil}},
	},
	"GeometryNodeSetPosition": {
		label: "Set Position",
		inputs: []socketSpec{
			{"Geometry", sockGeometry, nil},
			{"Selection", sockBool, true},
			{"Position", sockVector, nil},
			{"Offset", sockVector, []float64{0, 0, 0}},
		},
		outputs: []socketSpec{{"Geometry", sockGeometry, nil}},
	},
	"GeometryNodeTransform": {
		label: "Transform Geometry",
		inputs: []socketSpec{
			{"Geometry", sockGeometry, nil},
			{"Translation", sockVector, []float64{0, 0, 0}},
			{"Rotation", sockVector, []float64{0, 0, 0}},
			{"Scale", sockVector, []float64{1, 1, 1}},
		},
		outputs: []socketSpec{{"Geometry", sockGeometry, nil}},
	},
	"GeometryNodeMeshCube": {
		label: "Cube",
		inputs: []socketSpec{
			{"Size", sockVector, []float64{1, 1, 1}},
			{"Vertices X", sockInt, 2},
			{"Vertices Y", sockInt, 2},
			{"Vertices Z", sockInt, 2},
		},
		outputs: []socketSpec{
			{"Mesh", sockGeometry, nil},
			{"UV Map", sockVector, nil},
		},
	},
	"GeometryNodeMeshUVSphere": {
		label: "UV Sphere",
		inputs: []socketSpec{
			{"Segments", sockInt, 32},
			{"Rings", sockInt, 16},
			{"Radius", sockFloat, 1.0},
		},
		outputs: []socketSpec{
			{"Mesh", sockGeometry, nil},
			{"UV Map", sockVector, nil},
		},
	},
	"GeometryNodeDistributePointsOnFaces": {
		label: "Distribute Points on Faces",
		inputs: []socketSpec{
			{"Mesh", sockGeometry, nil},
			{"Selection", sockBool, true},
			{"Density", sockFloat, 10.0},
			{"Seed", sockInt, 0},
		},
		outputs: []socketSpec{
			{"Points", sockGeometry, nil},
			{"Normal", sockVector, nil},
			{"Rotation", sockVector, nil},
		},
		props: map[string]any{"distribute_method": "RANDOM"},
	},
	"GeometryNodeInstanceOnPoints": {
		label: "Instance on Points",
		inputs: []socketSpec{
			{"Points", sockGeometry, nil},
			{"Selection", sockBool, true},
			{"Instance", sockGeometry, nil},
			{"Pick Instance", sockBool, false},
			{"Instance Index", sockInt, 0},
			{"Rotation", sockVector, []float64{0, 0, 0}},
			{"Scale", sockVector, []float64{1, 1, 1}},
		},
		outputs: []socketSpec{{"Instances", sockGeometry, nil}},
	},
	"GeometryNodeJoinGeometry": {
		label:   "Join Geometry",
		inputs:  []socketSpec{{"Geometry", sockGeometry, nil}},
		outputs: []socketSpec{{"Geometry", sockGeometry, nil}},
	},
	"GeometryNodeSetMaterial": {
		label: "Set Material",
		inputs: []socketSpec{
			{"Geometry", sockGeometry, nil},
			{"Selection", sockBool, true},
			{"Material", sockMaterial, nil},
		},
		outputs: []socketSpec{{"Geometry", sockGeometry, nil}},
	},
	"ShaderNodeMath": {
		label: "Math",
		inputs: []socketSpec{
			{"Value", sockFloat, 0.5},
			{"Value", sockFloat, 0.5},
			{"Value", sockFloat, 0.5},
		},
		outputs: []socketSpec{{"Value", sockFloat, nil}},
		props:   map[string]any{"operation": "ADD", "use_clamp": false},
	},
	"FunctionNodeRandomValue": {
		label: "Random Value",
		inputs: []socketSpec{
			{"Min", sockFloat, 0.0},
			{"Max", sockFloat, 1.0},
			{"ID", sockInt, 0},
			{"Seed", sockInt, 0},
		},
		outputs: []socketSpec{{"Value", sockFloat, nil}},
		props:   map[string]any{"data_type": "FLOAT"},
	},
	"ShaderNodeBsdfPrincipled": {
		label: "Principled BSDF",
		inputs: []socketSpec{
			{"Base Color", sockColor, []float64{0.8, 0.8, 0.8, 1}},
			{"Metallic", sockFloat, 0.0},
			{"Roughness", sockFloat, 0.5},
			{"IOR", sockFloat, 1.45},
			{"Alpha", sockFloat, 1.0},
			{"Normal", sockVector, nil},
			{"Emission Color", sockColor, []float64{1, 1, 1, 1}},
			{"Emission Strength", sockFloat, 0.0},
		},
		outputs: []socketSpec{{"BSDF", sockShader, nil}},
	},
	"ShaderNodeOutputMaterial": {
		label: "Material Output",
		inputs: []socketSpec{
			{"Surface", sockShader, nil},
			{"Volume", sockShader, nil},
			{"Displacement", sockVector, nil},
		},
	},
	"ShaderNodeTexImage": {
		label:  "Image Texture",
		inputs: []socketSpec{{"Vector", sockVector, nil}},
		outputs: []socketSpec{
			{"Color", sockColor, nil},
			{"Alpha", sockFloat, nil},
		},
	},
}

// Layout-only node classes the orphan and validation commands skip.
var layoutNodeTypes = map[string]bool{
	"NodeGroupInput":  true,
	"NodeGroupOutput": true,
	"NodeFrame":       true,
	"NodeReroute":     true,
}

// Geometry inputs a node cannot work without.
var requiredInputNames = map[string]bool{
	"Geometry":  true,
	"Mesh":      true,
	"Curve":     true,
	"Points":    true,
	"Instances": true,
}

// instantiate builds a fresh node of the given class. Group input and
// output nodes mirror the tree interface instead of a registered spec.
// The node is not added to the tree; callers append it once the rest of
// their edit has gone through.
func instantiate(t *Tree, typ, name string) (*Node, error) {
	node := &Node{Type: typ, Props: map[string]any{}}
	switch typ {
	case "NodeGroupInput":
		node.Name = "Group Input"
		for _, in := range t.Inputs {
			node.Outputs = append(node.Outputs, &Socket{Name: in.Name, Type: socketEnum(in.SocketType)})
		}
	case "NodeGroupOutput":
		node.Name = "Group Output"
		for _, out := range t.Outputs {
			node.Inputs = append(node.Inputs, &Socket{Name: out.Name, Type: socketEnum(out.SocketType)})
		}
	default:
		spec, ok := nodeSpecs[typ]
		if !ok {
			return nil, errors.New("not a registered node type")
		}
		node.Name = spec.label
		for _, in := range spec.inputs {
			node.Inputs = append(node.Inputs, &Socket{Name: in.name, Type: in.typ, Default: in.def})
		}
		for _, out := range spec.outputs {
			node.Outputs = append(node.Outputs, &Socket{Name: out.name, Type: out.typ})
		}
		for k, v := range spec.props {
			node.Props[k] = v
		}
	}
	if name != "" {
		node.Name = name
	}
	node.Name = t.uniqueNodeName(node.Name)
	return node, nil
}

func mustNode(t *Tree, typ string) *Node {
	node, err := instantiate(t, typ, "")
	if err != nil {
		panic(err)
	}
	t.Nodes = append(t.Nodes, node)
	return node
}

// socketEnum maps a NodeSocket* class to the enum nodes report.
func socketEnum(socketType string) string {
	switch socketType {
	case "NodeSocketGeometry":
		return sockGeometry
	case "NodeSocketFloat":
		return sockFloat
	case "NodeSocketInt":
		return sockInt
	case "NodeSocketVector":
		return sockVector
	case "NodeSocketBool":
		return sockBool
	case "NodeSocketColor":
		return sockColor
	case "NodeSocketShader":
		return sockShader
	case "NodeSocketMaterial":
		return sockMaterial
	}
	return sockFloat
}

// newGeometryTree seeds the cube's node group: a subdivide node fed by
// the group input, with the Level interface input exposed as Socket_2.
func newGeometryTree() *Tree {
	t := &Tree{
		Name: "Geometry Nodes",
		Type: "GeometryNodeTree",
		Inputs: []*TreeSocket{
			{Name: "Geometry", Identifier: "Socket_0", SocketType: "NodeSocketGeometry"},
			{Name: "Level", Identifier: "Socket_2", SocketType: "NodeSocketInt", Default: 1},
		},
		Outputs: []*TreeSocket{
			{Name: "Geometry", Identifier: "Socket_1", SocketType: "NodeSocketGeometry"},
		},
	}
	in := mustNode(t, "NodeGroupInput")
	in.Location = [2]float64{-340, 0}
	sub := mustNode(t, "GeometryNodeSubdivideMesh")
	sub.Location = [2]float64{-60, 0}
	out := mustNode(t, "NodeGroupOutput")
	out.Location = [2]float64{220, 0}
	t.connect(in, in.Outputs[0], sub, sub.Inputs[0])
	t.connect(in, in.Outputs[1], sub, sub.Inputs[1])
	t.connect(sub, sub.Outputs[0], out, out.Inputs[0])
	return t
}

// newPrincipledTree seeds the default material shader tree.
func newPrincipledTree(name string) *Tree {
	t := &Tree{Name: name, Type: "ShaderNodeTree"}
	bsdf := mustNode(t, "ShaderNodeBsdfPrincipled")
	bsdf.Location = [2]float64{10, 300}
	out := mustNode(t, "ShaderNodeOutputMaterial")
	out.Location = [2]float64{300, 300}
	t.connect(bsdf, bsdf.Outputs[0], out, out.Inputs[0])
	return t
}

func (s *Scene) tree(name string) (*Tree, bool) {
	for _, t := range s.Trees {
		if t.Name == name {
			return t, true
		}
	}
	return nil, false
}

func (s *Scene) treeNames() []string {
	names := make([]string, len(s.Trees))
	for i, t := range s.Trees {
		names[i] = t.Name
	}
	return names
}

func (s *Scene) lookupTree(name string) (*Tree, error) {
	if t, ok := s.tree(name); ok {
		return t, nil
	}
	return nil, fmt.Errorf("Node tree not found: %s. Available: %s", name, nameList(s.treeNames()))
}

func (t *Tree) node(name string) (*Node, bool) {
	for _, node := range t.Nodes {
		if node.Name == name {
			return node, true
		}
	}
	return nil, false
}

func (t *Tree) nodeNames() []string {
	names := make([]string, len(t.Nodes))
	for i, node := range t.Nodes {
		names[i] = node.Name
	}
	return names
}

func (t *Tree) uniqueNodeName(base string) string {
	if _, ok := t.node(base); !ok {
		return base
	}
	for i := 1; ; i++ {
		name := fmt.Sprintf("%s.%03d", base, i)
		if _, ok := t.node(name); !ok {
			return name
		}
	}
}

func (t *Tree) linkedInput(sock *Socket) bool {
	for _, link := range t.Links {
		if link.ToSock == sock {
			return true
		}
	}
	return false
}

func (t *Tree) linkedOutput(sock *Socket) bool {
	for _, link := range t.Links {
		if link.FromSock == sock {
			return true
		}
	}
	return false
}

// connect links two sockets, displacing any link already feeding the
// input the way the node editor does.
func (t *Tree) connect(fromNode *Node, fromSock *Socket, toNode *Node, toSock *Socket) *Link {
	t.dropInputLink(toSock)
	link := &Link{FromNode: fromNode, FromSock: fromSock, ToNode: toNode, ToSock: toSock}
	t.Links = append(t.Links, link)
	return link
}

func (t *Tree) dropInputLink(toSock *Socket) bool {
	for i, link := range t.Links {
		if link.ToSock == toSock {
			t.Links = append(t.Links[:i], t.Links[i+1:]...)
			return true
		}
	}
	return false
}

// socketIndexKey extracts an index from a name-or-index parameter.
// JSON numbers arrive as float64 and coerced integers as int64.
func socketIndexKey(key any) (int, bool) {
	switch v := key.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	}
	return 0, false
}

// resolveSocket finds a socket by name or index on one side of a node.
func resolveSocket(node *Node, key any, output bool) (*Socket, int, error) {
	sockets := node.Inputs
	if output {
		sockets = node.Outputs
	}
	if idx, ok := socketIndexKey(key); ok {
		if idx < 0 || idx >= len(sockets) {
			if output {
				return nil, 0, fmt.Errorf("Output socket index %d out of range. Node has %d outputs.", idx, len(sockets))
			}
			return nil, 0, fmt.Errorf("Input socket index %d out of range. Node has %d inputs.", idx, len(sockets))
		}
		return sockets[idx], idx, nil
	}
	name := fmt.Sprintf("%v", key)
	for i, sock := range sockets {
		if sock.Name == name {
			return sock, i, nil
		}
	}
	side := "Input"
	if output {
		side = "Output"
	}
	return nil, 0, fmt.Errorf("%s socket not found: %s. Available: %s", side, name, socketChoices(sockets))
}

// socketChoices renders sockets for error messages: [[0] Mesh, [1] Level].
func socketChoices(sockets []*Socket) string {
	out := "["
	for i, sock := range sockets {
		if i > 0 {
			out += ", "
		}
		out += fmt.Sprintf("[%d] %s", i, sock.Name)
	}
	return out + "]"
}

// socketDocs documents one side of a node. Input docs carry the default
// of any unconnected socket that has one.
func (t *Tree) socketDocs(sockets []*Socket, inputs bool) []map[string]any {
	docs := make([]map[string]any, 0, len(sockets))
	for _, sock := range sockets {
		linked := t.linkedOutput(sock)
		if inputs {
			linked = t.linkedInput(sock)
		}
		doc := map[string]any{
			"name":      sock.Name,
			"type":      sock.Type,
			"is_linked": linked,
		}
		if inputs && !linked && sock.Default != nil {
			doc["default_value"] = sock.Default
		}
		docs = append(docs, doc)
	}
	return docs
}

func (t *Tree) nodeDoc(node *Node) map[string]any {
	return map[string]any{
		"name":       node.Name,
		"bl_idname":  node.Type,
		"label":      nilIfEmpty(node.Label),
		"location":   []float64{round(node.Location[0], 2), round(node.Location[1], 2)},
		"mute":       node.Mute,
		"inputs":     t.socketDocs(node.Inputs, true),
		"outputs":    t.socketDocs(node.Outputs, false),
		"properties": node.Props,
	}
}

func (s *Scene) getNodeDetails(params map[string]any) (any, error) {
	var p struct {
		NodeTreeName string `mapstructure:"node_tree_name"`
		NodeName     string `mapstructure:"node_name"`
	}
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	tree, err := s.lookupTree(p.NodeTreeName)
	if err != nil {
		return nil, err
	}

	if p.NodeName != "" {
		node, ok := tree.node(p.NodeName)
		if !ok {
			return nil, fmt.Errorf("Node not found: %s. Available: %s", p.NodeName, nameList(tree.nodeNames()))
		}
		return tree.nodeDoc(node), nil
	}

	nodes := make([]map[string]any, 0, len(tree.Nodes))
	for _, node := range tree.Nodes {
		nodes = append(nodes, tree.nodeDoc(node))
	}
	return map[string]any{
		"node_tree_name": tree.Name,
		"node_tree_type": tree.Type,
		"node_count":     len(tree.Nodes),
		"link_count":     len(tree.Links),
		"nodes":          nodes,
	}, nil
}

func (s *Scene) getNodeLinks(params map[string]any) (any, error) {
	var p struct {
		NodeTreeName string `mapstructure:"node_tree_name"`
	}
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	tree, err := s.lookupTree(p.NodeTreeName)
	if err != nil {
		return nil, err
	}

	links := make([]map[string]any, 0, len(tree.Links))
	for _, link := range tree.Links {
		links = append(links, map[string]any{
			"from_node": link.FromNode.Name,
			"from_socket": map[string]any{
				"name":  link.FromSock.Name,
				"index": socketIndex(link.FromNode.Outputs, link.FromSock),
				"type":  link.FromSock.Type,
			},
			"to_node": link.ToNode.Name,
			"to_socket": map[string]any{
				"name":  link.ToSock.Name,
				"index": socketIndex(link.ToNode.Inputs, link.ToSock),
				"type":  link.ToSock.Type,
			},
		})
	}
	return map[string]any{
		"node_tree_name": tree.Name,
		"link_count":     len(links),
		"links":          links,
	}, nil
}

func socketIndex(sockets []*Socket, sock *Socket) int {
	for i, s := range sockets {
		if s == sock {
			return i
		}
	}
	return -1
}

func (s *Scene) getNodeConnections(params map[string]any) (any, error) {
	var p struct {
		NodeTreeName string `mapstructure:"node_tree_name"`
		NodeName     string `mapstructure:"node_name"`
	}
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	tree, err := s.lookupTree(p.NodeTreeName)
	if err != nil {
		return nil, err
	}
	node, ok := tree.node(p.NodeName)
	if !ok {
		return nil, fmt.Errorf("Node not found: %s. Available: %s", p.NodeName, nameList(tree.nodeNames()))
	}

	incoming := make([]map[string]any, 0)
	outgoing := make([]map[string]any, 0)
	for _, link := range tree.Links {
		if link.ToNode == node {
			incoming = append(incoming, map[string]any{
				"from_node":       link.FromNode.Name,
				"from_socket":     link.FromSock.Name,
				"to_socket":       link.ToSock.Name,
				"to_socket_index": socketIndex(node.Inputs, link.ToSock),
			})
		}
		if link.FromNode == node {
			outgoing = append(outgoing, map[string]any{
				"to_node":           link.ToNode.Name,
				"to_socket":         link.ToSock.Name,
				"from_socket":       link.FromSock.Name,
				"from_socket_index": socketIndex(node.Outputs, link.FromSock),
			})
		}
	}

	unconnectedIn := make([]map[string]any, 0)
	for i, in := range node.Inputs {
		if tree.linkedInput(in) {
			continue
		}
		entry := map[string]any{"index": i, "name": in.Name, "type": in.Type}
		if in.Default != nil {
			entry["default_value"] = in.Default
		}
		unconnectedIn = append(unconnectedIn, entry)
	}
	unconnectedOut := make([]map[string]any, 0)
	for i, out := range node.Outputs {
		if tree.linkedOutput(out) {
			continue
		}
		unconnectedOut = append(unconnectedOut, map[string]any{"index": i, "name": out.Name, "type": out.Type})
	}

	return map[string]any{
		"node_tree_name":      tree.Name,
		"node_name":           node.Name,
		"node_type":           node.Type,
		"incoming":            incoming,
		"outgoing":            outgoing,
		"unconnected_inputs":  unconnectedIn,
		"unconnected_outputs": unconnectedOut,
		"incoming_count":      len(incoming),
		"outgoing_count":      len(outgoing),
	}, nil
}

const (
	maxTracePaths = 10
	maxTraceDepth = 50
)

func (s *Scene) traceNodeDataflow(params map[string]any) (any, error) {
	var p struct {
		NodeTreeName string `mapstructure:"node_tree_name"`
		FromNode     string `mapstructure:"from_node"`
		FromSocket   any    `mapstructure:"from_socket"`
		ToNode       string `mapstructure:"to_node"`
		ToSocket     any    `mapstructure:"to_socket"`
	}
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	tree, err := s.lookupTree(p.NodeTreeName)
	if err != nil {
		return nil, err
	}
	fromNode, ok := tree.node(p.FromNode)
	if !ok {
		return nil, fmt.Errorf("Source node not found: %s. Available: %s", p.FromNode, nameList(tree.nodeNames()))
	}
	toNode, ok := tree.node(p.ToNode)
	if !ok {
		return nil, fmt.Errorf("Destination node not found: %s. Available: %s", p.ToNode, nameList(tree.nodeNames()))
	}
	fromSock, _, err := resolveSocket(fromNode, p.FromSocket, true)
	if err != nil {
		return nil, err
	}
	toSock, _, err := resolveSocket(toNode, p.ToSocket, false)
	if err != nil {
		return nil, err
	}

	direct := false
	for _, link := range tree.Links {
		if link.FromSock == fromSock && link.ToSock == toSock {
			direct = true
			break
		}
	}

	var paths [][]map[string]any
	var walk func(node *Node, sock *Socket, trail []map[string]any, seen map[*Node]bool)
	walk = func(node *Node, sock *Socket, trail []map[string]any, seen map[*Node]bool) {
		if len(paths) >= maxTracePaths || len(trail) >= maxTraceDepth {
			return
		}
		step := map[string]any{"node": node.Name, "socket": sock.Name}
		next := make([]map[string]any, len(trail), len(trail)+2)
		copy(next, trail)
		next = append(next, step)

		for _, link := range tree.Links {
			if link.FromNode != node || link.FromSock != sock {
				continue
			}
			if link.ToNode == toNode && link.ToSock == toSock {
				done := make([]map[string]any, len(next), len(next)+1)
				copy(done, next)
				paths = append(paths, append(done, map[string]any{"node": toNode.Name, "socket": toSock.Name}))
				continue
			}
			if seen[link.ToNode] {
				continue
			}
			seen[link.ToNode] = true
			for _, out := range link.ToNode.Outputs {
				walk(link.ToNode, out, next, seen)
			}
			delete(seen, link.ToNode)
		}
	}
	walk(fromNode, fromSock, nil, map[*Node]bool{fromNode: true})

	if paths == nil {
		paths = [][]map[string]any{}
	}
	return map[string]any{
		"node_tree_name":    tree.Name,
		"from":              map[string]any{"node": fromNode.Name, "socket": fromSock.Name},
		"to":                map[string]any{"node": toNode.Name, "socket": toSock.Name},
		"direct_connection": direct,
		"path_count":        len(paths),
		"paths":             paths,
	}, nil
}

func (s *Scene) setGeonodeParameter(params map[string]any) (any, error) {
	var p struct {
		ObjectName    string `mapstructure:"object_name"`
		ModifierName  string `mapstructure:"modifier_name"`
		ParameterName string `mapstructure:"parameter_name"`
		Value         any    `mapstructure:"value"`
	}
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	obj := s.find(p.ObjectName)
	if obj == nil {
		return nil, fmt.Errorf("Object not found: %s", p.ObjectName)
	}
	var mod *Modifier
	for _, m := range obj.Modifiers {
		if m.Name == p.ModifierName {
			mod = m
			break
		}
	}
	if mod == nil {
		return nil, fmt.Errorf("Modifier not found: %s", p.ModifierName)
	}
	if mod.Type != "NODES" {
		return nil, fmt.Errorf("Modifier is not a geometry nodes modifier: %s", mod.Type)
	}
	tree, ok := s.tree(mod.NodeGroup)
	if !ok {
		return nil, errors.New("Modifier has no node group assigned")
	}

	var target *TreeSocket
	for _, in := range tree.Inputs {
		if in.Name == p.ParameterName || in.Identifier == p.ParameterName {
			target = in
			break
		}
	}
	if target == nil {
		available := "["
		for i, in := range tree.Inputs {
			if i > 0 {
				available += ", "
			}
			available += fmt.Sprintf("%s (%s)", in.Name, in.Identifier)
		}
		available += "]"
		return nil, fmt.Errorf("Parameter not found: %s. Available: %s", p.ParameterName, available)
	}

	old, ok := mod.Values[target.Identifier]
	if !ok {
		old = target.Default
	}
	if mod.Values == nil {
		mod.Values = make(map[string]any)
	}
	mod.Values[target.Identifier] = p.Value

	return map[string]any{
		"success":       true,
		"object_name":   obj.Name,
		"modifier_name": mod.Name,
		"parameter": map[string]any{
			"name":        target.Name,
			"identifier":  target.Identifier,
			"socket_type": target.SocketType,
		},
		"old_value":        old,
		"new_value":        p.Value,
		"geometry_updated": true,
	}, nil
}

func (s *Scene) findOrphanNodes(params map[string]any) (any, error) {
	var p struct {
		NodeTreeName string `mapstructure:"node_tree_name"`
	}
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	tree, err := s.lookupTree(p.NodeTreeName)
	if err != nil {
		return nil, err
	}

	orphans := make([]map[string]any, 0)
	partials := make([]map[string]any, 0)
	required := make([]map[string]any, 0)
	for _, node := range tree.Nodes {
		if layoutNodeTypes[node.Type] {
			continue
		}
		connections := 0
		for _, link := range tree.Links {
			if link.FromNode == node || link.ToNode == node {
				connections++
			}
		}
		if connections == 0 {
			orphans = append(orphans, map[string]any{
				"name":         node.Name,
				"type":         node.Type,
				"label":        node.Label,
				"location":     []float64{round(node.Location[0], 2), round(node.Location[1], 2)},
				"input_count":  len(node.Inputs),
				"output_count": len(node.Outputs),
			})
			continue
		}

		unconnectedIn := make([]map[string]any, 0)
		for i, in := range node.Inputs {
			if tree.linkedInput(in) {
				continue
			}
			unconnectedIn = append(unconnectedIn, map[string]any{"index": i, "name": in.Name, "type": in.Type})
			if requiredInputNames[in.Name] {
				required = append(required, map[string]any{"node": node.Name, "input": in.Name})
			}
		}
		unconnectedOut := make([]map[string]any, 0)
		for i, out := range node.Outputs {
			if tree.linkedOutput(out) {
				continue
			}
			unconnectedOut = append(unconnectedOut, map[string]any{"index": i, "name": out.Name, "type": out.Type})
		}
		if len(unconnectedIn) > 0 || len(unconnectedOut) > 0 {
			partials = append(partials, map[string]any{
				"name":                node.Name,
				"type":                node.Type,
				"unconnected_inputs":  unconnectedIn,
				"unconnected_outputs": unconnectedOut,
			})
		}
	}

	return map[string]any{
		"node_tree_name":       tree.Name,
		"total_nodes":          len(tree.Nodes),
		"orphan_nodes":         orphans,
		"orphan_count":         len(orphans),
		"partial_nodes":        partials,
		"partial_count":        len(partials),
		"unconnected_required": required,
	}, nil
}

func inspectNodeType(params map[string]any) (any, error) {
	var p struct {
		NodeType string `mapstructure:"node_type"`
	}
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	scratch := &Tree{Name: "inspect", Type: "GeometryNodeTree"}
	node, err := instantiate(scratch, p.NodeType, "")
	if err != nil {
		return nil, fmt.Errorf("Invalid node type: %s. Error: %v", p.NodeType, err)
	}

	inputs := make([]map[string]any, 0, len(node.Inputs))
	for i, in := range node.Inputs {
		entry := map[string]any{"index": i, "name": in.Name, "type": in.Type, "is_linked": false}
		if in.Default != nil {
			entry["default_value"] = in.Default
		}
		inputs = append(inputs, entry)
	}
	outputs := make([]map[string]any, 0, len(node.Outputs))
	for i, out := range node.Outputs {
		outputs = append(outputs, map[string]any{"index": i, "name": out.Name, "type": out.Type})
	}
	return map[string]any{
		"node_type":  p.NodeType,
		"bl_label":   node.Name,
		"bl_idname":  node.Type,
		"inputs":     inputs,
		"outputs":    outputs,
		"properties": node.Props,
	}, nil
}

func (s *Scene) createGeonodeNode(params map[string]any) (any, error) {
	var p struct {
		NodeTreeName string         `mapstructure:"node_tree_name"`
		NodeType     string         `mapstructure:"node_type"`
		Name         string         `mapstructure:"name"`
		Location     []float64      `mapstructure:"location"`
		Properties   map[string]any `mapstructure:"properties"`
		Defaults     map[string]any `mapstructure:"defaults"`
	}
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	tree, ok := s.tree(p.NodeTreeName)
	if !ok {
		return nil, fmt.Errorf("Node tree not found: %s", p.NodeTreeName)
	}
	node, err := instantiate(tree, p.NodeType, p.Name)
	if err != nil {
		return nil, fmt.Errorf("Failed to create node of type '%s': %v", p.NodeType, err)
	}
	if len(p.Location) >= 2 {
		node.Location = [2]float64{p.Location[0], p.Location[1]}
	}
	for k, v := range p.Properties {
		node.Props[k] = v
	}
	for _, key := range sortedKeys(p.Defaults) {
		sock, _, err := resolveSocket(node, defaultKey(key), false)
		if err != nil {
			return nil, err
		}
		sock.Default = p.Defaults[key]
	}
	tree.Nodes = append(tree.Nodes, node)

	inputs := make([]map[string]any, 0, len(node.Inputs))
	for i, in := range node.Inputs {
		inputs = append(inputs, map[string]any{"index": i, "name": in.Name})
	}
	outputs := make([]map[string]any, 0, len(node.Outputs))
	for i, out := range node.Outputs {
		outputs = append(outputs, map[string]any{"index": i, "name": out.Name})
	}
	return map[string]any{
		"success":  true,
		"name":     node.Name,
		"type":     node.Type,
		"location": []float64{node.Location[0], node.Location[1]},
		"inputs":   inputs,
		"outputs":  outputs,
	}, nil
}

// defaultKey turns a JSON object key into a socket name or index.
func defaultKey(key string) any {
	if idx, err := strconv.Atoi(key); err == nil {
		return idx
	}
	return key
}

func (s *Scene) createGeonodeLink(params map[string]any) (any, error) {
	var p struct {
		NodeTreeName string `mapstructure:"node_tree_name"`
		FromNode     string `mapstructure:"from_node"`
		FromSocket   any    `mapstructure:"from_socket"`
		ToNode       string `mapstructure:"to_node"`
		ToSocket     any    `mapstructure:"to_socket"`
	}
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	tree, err := s.lookupTree(p.NodeTreeName)
	if err != nil {
		return nil, err
	}
	fromNode, ok := tree.node(p.FromNode)
	if !ok {
		return nil, fmt.Errorf("Source node not found: %s. Available: %s", p.FromNode, nameList(tree.nodeNames()))
	}
	toNode, ok := tree.node(p.ToNode)
	if !ok {
		return nil, fmt.Errorf("Destination node not found: %s. Available: %s", p.ToNode, nameList(tree.nodeNames()))
	}
	fromSock, fromIdx, err := resolveSocket(fromNode, p.FromSocket, true)
	if err != nil {
		return nil, err
	}
	toSock, toIdx, err := resolveSocket(toNode, p.ToSocket, false)
	if err != nil {
		return nil, err
	}
	tree.connect(fromNode, fromSock, toNode, toSock)

	return map[string]any{
		"success":           true,
		"from_node":         fromNode.Name,
		"from_socket":       fromSock.Name,
		"from_socket_index": fromIdx,
		"to_node":           toNode.Name,
		"to_socket":         toSock.Name,
		"to_socket_index":   toIdx,
	}, nil
}

func (s *Scene) deleteGeonodeNode(params map[string]any) (any, error) {
	var p struct {
		NodeTreeName string `mapstructure:"node_tree_name"`
		NodeName     string `mapstructure:"node_name"`
	}
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	tree, err := s.lookupTree(p.NodeTreeName)
	if err != nil {
		return nil, err
	}
	node, ok := tree.node(p.NodeName)
	if !ok {
		return nil, fmt.Errorf("Node not found: %s. Available: %s", p.NodeName, nameList(tree.nodeNames()))
	}

	removed := 0
	kept := tree.Links[:0]
	for _, link := range tree.Links {
		if link.FromNode == node || link.ToNode == node {
			removed++
			continue
		}
		kept = append(kept, link)
	}
	tree.Links = kept
	for i, n := range tree.Nodes {
		if n == node {
			tree.Nodes = append(tree.Nodes[:i], tree.Nodes[i+1:]...)
			break
		}
	}

	return map[string]any{
		"success":       true,
		"removed_node":  node.Name,
		"removed_links": removed,
	}, nil
}

func (s *Scene) deleteGeonodeLink(params map[string]any) (any, error) {
	var p struct {
		NodeTreeName string `mapstructure:"node_tree_name"`
		FromNode     string `mapstructure:"from_node"`
		FromSocket   any    `mapstructure:"from_socket"`
		ToNode       string `mapstructure:"to_node"`
		ToSocket     any    `mapstructure:"to_socket"`
	}
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	tree, err := s.lookupTree(p.NodeTreeName)
	if err != nil {
		return nil, err
	}
	fromNode, ok := tree.node(p.FromNode)
	if !ok {
		return nil, fmt.Errorf("Source node not found: %s. Available: %s", p.FromNode, nameList(tree.nodeNames()))
	}
	toNode, ok := tree.node(p.ToNode)
	if !ok {
		return nil, fmt.Errorf("Destination node not found: %s. Available: %s", p.ToNode, nameList(tree.nodeNames()))
	}
	fromSock, _, err := resolveSocket(fromNode, p.FromSocket, true)
	if err != nil {
		return nil, err
	}
	toSock, _, err := resolveSocket(toNode, p.ToSocket, false)
	if err != nil {
		return nil, err
	}

	for i, link := range tree.Links {
		if link.FromSock == fromSock && link.ToSock == toSock {
			tree.Links = append(tree.Links[:i], tree.Links[i+1:]...)
			return map[string]any{
				"success":     true,
				"from_node":   fromNode.Name,
				"from_socket": fromSock.Name,
				"to_node":     toNode.Name,
				"to_socket":   toSock.Name,
			}, nil
		}
	}
	return nil, fmt.Errorf("Link not found from %s.%s to %s.%s", fromNode.Name, fromSock.Name, toNode.Name, toSock.Name)
}

func (s *Scene) setNodeSocketDefault(params map[string]any) (any, error) {
	var p struct {
		NodeTreeName string `mapstructure:"node_tree_name"`
		NodeName     string `mapstructure:"node_name"`
		SocketName   any    `mapstructure:"socket_name"`
		Value        any    `mapstructure:"value"`
		IsOutput     bool   `mapstructure:"is_output"`
	}
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	tree, err := s.lookupTree(p.NodeTreeName)
	if err != nil {
		return nil, err
	}
	node, ok := tree.node(p.NodeName)
	if !ok {
		return nil, fmt.Errorf("Node not found: %s. Available: %s", p.NodeName, nameList(tree.nodeNames()))
	}
	sock, _, err := resolveSocket(node, p.SocketName, p.IsOutput)
	if err != nil {
		return nil, err
	}
	if sock.Type == sockGeometry || sock.Type == sockShader {
		return nil, fmt.Errorf("Socket %s does not have a default_value property", sock.Name)
	}

	old := sock.Default
	sock.Default = p.Value
	return map[string]any{
		"success":   true,
		"node":      node.Name,
		"socket":    sock.Name,
		"old_value": old,
		"new_value": p.Value,
	}, nil
}

func (s *Scene) validateGeonodeNetwork(params map[string]any) (any, error) {
	var p struct {
		NodeTreeName string `mapstructure:"node_tree_name"`
	}
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	tree, err := s.lookupTree(p.NodeTreeName)
	if err != nil {
		return nil, err
	}

	issues := make([]string, 0)
	orphanCount := 0
	missingRequired := 0
	var groupOutput *Node
	for _, node := range tree.Nodes {
		if node.Type == "NodeGroupOutput" {
			groupOutput = node
		}
		if layoutNodeTypes[node.Type] {
			continue
		}
		connections := 0
		for _, link := range tree.Links {
			if link.FromNode == node || link.ToNode == node {
				connections++
			}
		}
		if connections == 0 {
			issues = append(issues, fmt.Sprintf("Node '%s' has no connections", node.Name))
			orphanCount++
			continue
		}
		for _, in := range node.Inputs {
			if requiredInputNames[in.Name] && !tree.linkedInput(in) {
				issues = append(issues, fmt.Sprintf("Required input '%s' on '%s' is not connected", in.Name, node.Name))
				missingRequired++
			}
		}
	}

	if groupOutput == nil {
		issues = append(issues, "No Group Output node found")
	} else {
		linked := false
		for _, in := range groupOutput.Inputs {
			if tree.linkedInput(in) {
				linked = true
				break
			}
		}
		if !linked {
			issues = append(issues, "Group Output has no connected inputs - nothing will be output")
		}
	}

	suggestions := make([]map[string]any, 0)
	if missingRequired > 0 {
		suggestions = append(suggestions, map[string]any{
			"priority":   0,
			"suggestion": "Connect required geometry inputs",
		})
	}
	if orphanCount > 0 {
		suggestions = append(suggestions, map[string]any{
			"priority":   1,
			"suggestion": fmt.Sprintf("Delete %d orphan nodes that have no effect", orphanCount),
		})
	}
	sort.Slice(suggestions, func(i, j int) bool {
		return suggestions[i]["priority"].(int) < suggestions[j]["priority"].(int)
	})

	return map[string]any{
		"node_tree_name": tree.Name,
		"is_valid":       len(issues) == 0,
		"issues":         issues,
		"issue_count":    len(issues),
		"statistics": map[string]any{
			"total_nodes":            len(tree.Nodes),
			"total_links":            len(tree.Links),
			"orphan_count":           orphanCount,
			"missing_required_count": missingRequired,
		},
		"suggestions": suggestions,
	}, nil
}

func (s *Scene) getNodeTreeInterface(params map[string]any) (any, error) {
	var p struct {
		NodeTreeName string `mapstructure:"node_tree_name"`
	}
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	tree, err := s.lookupTree(p.NodeTreeName)
	if err != nil {
		return nil, err
	}

	inputs := make([]map[string]any, 0, len(tree.Inputs))
	for _, in := range tree.Inputs {
		entry := map[string]any{
			"name":        in.Name,
			"identifier":  in.Identifier,
			"socket_type": in.SocketType,
		}
		if in.Default != nil {
			entry["default_value"] = in.Default
		}
		inputs = append(inputs, entry)
	}
	outputs := make([]map[string]any, 0, len(tree.Outputs))
	for _, out := range tree.Outputs {
		outputs = append(outputs, map[string]any{
			"name":        out.Name,
			"identifier":  out.Identifier,
			"socket_type": out.SocketType,
		})
	}
	return map[string]any{
		"node_tree_name": tree.Name,
		"inputs":         inputs,
		"outputs":        outputs,
	}, nil
}

func (s *Scene) insertNodeBetween(params map[string]any) (any, error) {
	var p struct {
		NodeTreeName string         `mapstructure:"node_tree_name"`
		FromNode     string         `mapstructure:"from_node"`
		FromSocket   any            `mapstructure:"from_socket"`
		ToNode       string         `mapstructure:"to_node"`
		ToSocket     any            `mapstructure:"to_socket"`
		NewNodeType  string         `mapstructure:"new_node_type"`
		NewNodeName  string         `mapstructure:"new_node_name"`
		InputSocket  any            `mapstructure:"input_socket"`
		OutputSocket any            `mapstructure:"output_socket"`
		Properties   map[string]any `mapstructure:"properties"`
	}
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	tree, err := s.lookupTree(p.NodeTreeName)
	if err != nil {
		return nil, err
	}
	fromNode, ok := tree.node(p.FromNode)
	if !ok {
		return nil, fmt.Errorf("Source node not found: %s. Available: %s", p.FromNode, nameList(tree.nodeNames()))
	}
	toNode, ok := tree.node(p.ToNode)
	if !ok {
		return nil, fmt.Errorf("Destination node not found: %s. Available: %s", p.ToNode, nameList(tree.nodeNames()))
	}
	fromSock, _, err := resolveSocket(fromNode, p.FromSocket, true)
	if err != nil {
		return nil, err
	}
	toSock, _, err := resolveSocket(toNode, p.ToSocket, false)
	if err != nil {
		return nil, err
	}
	if !tree.dropInputLink(toSock) {
		return nil, fmt.Errorf("Link not found from %s.%s to %s.%s", fromNode.Name, fromSock.Name, toNode.Name, toSock.Name)
	}
	restore := func() { tree.connect(fromNode, fromSock, toNode, toSock) }

	node, err := instantiate(tree, p.NewNodeType, p.NewNodeName)
	if err != nil {
		restore()
		return nil, fmt.Errorf("Failed to create node of type '%s': %v", p.NewNodeType, err)
	}
	inKey := p.InputSocket
	if inKey == nil {
		inKey = 0
	}
	outKey := p.OutputSocket
	if outKey == nil {
		outKey = 0
	}
	inSock, _, err := resolveSocket(node, inKey, false)
	if err != nil {
		restore()
		return nil, err
	}
	outSock, _, err := resolveSocket(node, outKey, true)
	if err != nil {
		restore()
		return nil, err
	}
	for k, v := range p.Properties {
		node.Props[k] = v
	}
	node.Location = [2]float64{
		(fromNode.Location[0] + toNode.Location[0]) / 2,
		(fromNode.Location[1] + toNode.Location[1]) / 2,
	}
	tree.Nodes = append(tree.Nodes, node)
	tree.connect(fromNode, fromSock, node, inSock)
	tree.connect(node, outSock, toNode, toSock)

	return map[string]any{
		"success":       true,
		"new_node":      node.Name,
		"new_node_type": node.Type,
		"location":      []float64{node.Location[0], node.Location[1]},
		"links_created": []map[string]any{
			{"from": fromNode.Name + ":" + fromSock.Name, "to": node.Name + ":" + inSock.Name},
			{"from": node.Name + ":" + outSock.Name, "to": toNode.Name + ":" + toSock.Name},
		},
		"link_removed": fmt.Sprintf("%s:%s -> %s:%s", fromNode.Name, fromSock.Name, toNode.Name, toSock.Name),
	}, nil
}

// subdivisionLevels resolves how many subdivision levels the tree
// applies with the given modifier values: each unmuted Subdivide Mesh
// node contributes its Level input, following a link back to the group
// interface when the socket is driven from there.
func (t *Tree) subdivisionLevels(values map[string]any) int {
	total := 0
	for _, node := range t.Nodes {
		if node.Type != "GeometryNodeSubdivideMesh" || node.Mute {
			continue
		}
		var level *Socket
		for _, in := range node.Inputs {
			if in.Name == "Level" {
				level = in
				break
			}
		}
		if level == nil {
			continue
		}

		resolved := false
		for _, link := range t.Links {
			if link.ToSock != level || link.FromNode.Type != "NodeGroupInput" {
				continue
			}
			for _, in := range t.Inputs {
				if in.Name != link.FromSock.Name {
					continue
				}
				if v, ok := values[in.Identifier]; ok {
					total += asInt(v)
				} else {
					total += asInt(in.Default)
				}
				resolved = true
			}
		}
		if !resolved {
			total += asInt(level.Default)
		}
	}
	return total
}

func asInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	}
	return 0
}
