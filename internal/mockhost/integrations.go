package mockhost

import (
	"fmt"
	"strings"

	"github.com/lydakis/blenderbridge/internal/config"
)

// Integration handlers mirror the asset provider surface of the real
// host. Provider calls never turn into command failures; problems come
// back inside the result as an "error" key, because that is what the
// host addon does and what assistants are prompted to look for.

func (h *Host) polyhavenStatus(map[string]any) (any, error) {
	if h.cfg.Integrations.PolyHaven {
		return map[string]any{
			"enabled": true,
			"message": "PolyHaven integration is enabled and ready to use.",
		}, nil
	}
	return map[string]any{
		"enabled": false,
		"message": "PolyHaven integration is disabled. Set integrations.polyhaven = true in the bridge config and restart the host.",
	}, nil
}

func (h *Host) sketchfabStatus(map[string]any) (any, error) {
	if h.cfg.Integrations.Sketchfab {
		return map[string]any{
			"enabled": true,
			"message": "Sketchfab integration is enabled and ready to use.",
		}, nil
	}
	return map[string]any{
		"enabled": false,
		"message": "Sketchfab integration is disabled. Set integrations.sketchfab = true in the bridge config and restart the host.",
	}, nil
}

func (h *Host) hyper3dStatus(map[string]any) (any, error) {
	switch {
	case h.cfg.Integrations.Hyper3D && h.cfg.Hyper3D.APIKey != "":
		keyType := "private"
		if h.cfg.Hyper3D.APIKey == rodinFreeTrialKey {
			keyType = "free_trial"
		}
		return map[string]any{
			"enabled": true,
			"message": fmt.Sprintf("Hyper3D Rodin integration is enabled and ready to use. Mode: %s. Key type: %s", h.rodinMode(), keyType),
		}, nil
	case h.cfg.Integrations.Hyper3D:
		return map[string]any{
			"enabled": false,
			"message": "Hyper3D Rodin integration is enabled, but no API key is configured. Set hyper3d.api_key in the bridge config or use the free trial key.",
		}, nil
	default:
		return map[string]any{
			"enabled": false,
			"message": "Hyper3D Rodin integration is disabled. Set integrations.hyper3d = true in the bridge config and restart the host.",
		}, nil
	}
}

func (h *Host) rodinMode() string {
	if h.cfg.Hyper3D.Mode == "" {
		return config.Hyper3DModeMainSite
	}
	return h.cfg.Hyper3D.Mode
}

// Category listings keyed by asset type, category name to asset count.
var polyhavenCategories = map[string]map[string]int{
	"hdris": {
		"indoor":         6,
		"outdoor":        11,
		"skies":          8,
		"studio":         4,
		"sunrise-sunset": 5,
	},
	"textures": {
		"brick":    4,
		"concrete": 6,
		"fabric":   3,
		"floor":    5,
		"metal":    4,
		"wood":     7,
	},
	"models": {
		"furniture":  5,
		"props":      8,
		"rocks":      3,
		"vegetation": 6,
	},
}

const (
	assetTypeHDRI = iota
	assetTypeTexture
	assetTypeModel
)

type polyhavenAsset struct {
	id         string
	name       string
	typ        int
	categories []string
	authors    map[string]string
	maps       []string // texture maps, textures only
	faces      int      // base face count, models only
}

var polyhavenAssets = []polyhavenAsset{
	{
		id:         "kloofendal_48d_partly_cloudy",
		name:       "Kloofendal 48d Partly Cloudy",
		typ:        assetTypeHDRI,
		categories: []string{"outdoor", "skies"},
		authors:    map[string]string{"Greg Zaal": "all"},
	},
	{
		id:         "studio_small_09",
		name:       "Studio Small 09",
		typ:        assetTypeHDRI,
		categories: []string{"indoor", "studio"},
		authors:    map[string]string{"Sergej Majboroda": "all"},
	},
	{
		id:         "red_brick",
		name:       "Red Brick",
		typ:        assetTypeTexture,
		categories: []string{"brick"},
		authors:    map[string]string{"Rob Tuytel": "all"},
		maps:       []string{"Diffuse", "nor_gl", "Rough", "AO", "Displacement"},
	},
	{
		id:         "worn_planks",
		name:       "Worn Planks",
		typ:        assetTypeTexture,
		categories: []string{"wood", "floor"},
		authors:    map[string]string{"Rob Tuytel": "all"},
		maps:       []string{"Diffuse", "nor_gl", "Rough"},
	},
	{
		id:         "wooden_stool_02",
		name:       "Wooden Stool 02",
		typ:        assetTypeModel,
		categories: []string{"furniture", "props"},
		authors:    map[string]string{"James Ray Cock": "all"},
		faces:      8120,
	},
	{
		id:         "boulder_01",
		name:       "Boulder 01",
		typ:        assetTypeModel,
		categories: []string{"rocks"},
		authors:    map[string]string{"Rico Cilliers": "all"},
		faces:      3240,
	},
}

func assetTypeOf(name string) (int, bool) {
	switch name {
	case "hdris":
		return assetTypeHDRI, true
	case "textures":
		return assetTypeTexture, true
	case "models":
		return assetTypeModel, true
	}
	return 0, false
}

func (s *Scene) polyhavenCategories(params map[string]any) (any, error) {
	var p struct {
		AssetType string `mapstructure:"asset_type"`
	}
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	if p.AssetType == "" {
		p.AssetType = "hdris"
	}

	if p.AssetType == "all" {
		merged := make(map[string]int)
		for _, cats := range polyhavenCategories {
			for name, count := range cats {
				merged[name] += count
			}
		}
		return map[string]any{"categories": merged}, nil
	}
	cats, ok := polyhavenCategories[p.AssetType]
	if !ok {
		return map[string]any{
			"error": fmt.Sprintf("Invalid asset type: %s. Must be one of: hdris, textures, models, all", p.AssetType),
		}, nil
	}
	return map[string]any{"categories": cats}, nil
}

func (s *Scene) searchPolyhavenAssets(params map[string]any) (any, error) {
	var p struct {
		AssetType  string `mapstructure:"asset_type"`
		Categories string `mapstructure:"categories"`
	}
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	if p.AssetType == "" {
		p.AssetType = "all"
	}
	wantType := -1
	if p.AssetType != "all" {
		typ, ok := assetTypeOf(p.AssetType)
		if !ok {
			return map[string]any{
				"error": fmt.Sprintf("Invalid asset type: %s. Must be one of: hdris, textures, models, all", p.AssetType),
			}, nil
		}
		wantType = typ
	}
	var wantCats []string
	for _, c := range strings.Split(p.Categories, ",") {
		if c = strings.TrimSpace(c); c != "" {
			wantCats = append(wantCats, c)
		}
	}

	matched := make(map[string]any)
	for _, asset := range polyhavenAssets {
		if wantType >= 0 && asset.typ != wantType {
			continue
		}
		if len(wantCats) > 0 && !hasAnyCategory(asset.categories, wantCats) {
			continue
		}
		matched[asset.id] = map[string]any{
			"name":       asset.name,
			"type":       asset.typ,
			"categories": asset.categories,
			"authors":    asset.authors,
		}
	}

	// The live API can return thousands; mirror the 20-asset cap.
	limited := make(map[string]any, len(matched))
	for i, id := range sortedKeys(matched) {
		if i >= 20 {
			break
		}
		limited[id] = matched[id]
	}
	return map[string]any{
		"assets":         limited,
		"total_count":    len(matched),
		"returned_count": len(limited),
	}, nil
}

func hasAnyCategory(have, want []string) bool {
	for _, w := range want {
		for _, h := range have {
			if strings.EqualFold(h, w) {
				return true
			}
		}
	}
	return false
}

func polyhavenAssetByID(id string) (polyhavenAsset, bool) {
	for _, asset := range polyhavenAssets {
		if asset.id == id {
			return asset, true
		}
	}
	return polyhavenAsset{}, false
}

func (s *Scene) downloadPolyhavenAsset(params map[string]any) (any, error) {
	var p struct {
		AssetID    string `mapstructure:"asset_id"`
		AssetType  string `mapstructure:"asset_type"`
		Resolution string `mapstructure:"resolution"`
		FileFormat string `mapstructure:"file_format"`
	}
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	if p.Resolution == "" {
		p.Resolution = "1k"
	}

	asset, found := polyhavenAssetByID(p.AssetID)
	switch p.AssetType {
	case "hdris":
		format := p.FileFormat
		if format == "" {
			format = "hdr"
		}
		if !found || asset.typ != assetTypeHDRI || !validResolution(p.Resolution) || (format != "hdr" && format != "exr") {
			return map[string]any{"error": "Requested resolution or format not available for this HDRI"}, nil
		}
		imageName := fmt.Sprintf("%s_%s.%s", asset.id, p.Resolution, format)
		s.World = imageName
		return map[string]any{
			"success":    true,
			"message":    fmt.Sprintf("HDRI %s imported successfully", asset.id),
			"image_name": imageName,
		}, nil

	case "textures":
		format := p.FileFormat
		if format == "" {
			format = "jpg"
		}
		if !found || asset.typ != assetTypeTexture || !validResolution(p.Resolution) || (format != "jpg" && format != "png") {
			return map[string]any{"error": "No texture maps found for the requested resolution and format"}, nil
		}
		matName := s.uniqueMaterialName(asset.id)
		s.Materials = append(s.Materials, &Material{
			Name:     matName,
			UseNodes: true,
			Tree:     newTexturedTree(matName, asset.id, asset.maps, p.Resolution, format),
		})
		s.downloadedTextures[asset.id] = asset.maps
		return map[string]any{
			"success":  true,
			"message":  fmt.Sprintf("Texture %s imported as material", asset.id),
			"material": matName,
			"maps":     asset.maps,
		}, nil

	case "models":
		format := p.FileFormat
		if format == "" {
			format = "gltf"
		}
		if !found || asset.typ != assetTypeModel || !validResolution(p.Resolution) || (format != "gltf" && format != "fbx") {
			return map[string]any{"error": "Requested format or resolution not available for this model"}, nil
		}
		name := s.addObject(importedMeshObject(asset.id, asset.faces))
		return map[string]any{
			"success":          true,
			"message":          fmt.Sprintf("Model %s imported successfully", asset.id),
			"imported_objects": []string{name},
		}, nil
	}
	return map[string]any{"error": fmt.Sprintf("Unsupported asset type: %s", p.AssetType)}, nil
}

func validResolution(res string) bool {
	switch res {
	case "1k", "2k", "4k", "8k":
		return true
	}
	return false
}

// importedMeshObject builds a closed triangle mesh stand-in for an
// imported model, with counts consistent under the Euler formula.
func importedMeshObject(name string, faces int) *Object {
	return &Object{
		Name:    name,
		Type:    "MESH",
		Scale:   [3]float64{1, 1, 1},
		Visible: true,
		Mesh: &Mesh{
			Vertices:    faces/2 + 2,
			Edges:       faces * 3 / 2,
			Polygons:    faces,
			HalfExtents: [3]float64{0.5, 0.5, 0.5},
		},
	}
}

// newTexturedTree builds the material created for a downloaded texture:
// one image node per map, with color, roughness, and normal wired into
// the Principled BSDF.
func newTexturedTree(name, textureID string, maps []string, resolution, format string) *Tree {
	t := &Tree{Name: name, Type: "ShaderNodeTree"}
	bsdf := mustNode(t, "ShaderNodeBsdfPrincipled")
	bsdf.Location = [2]float64{100, 300}
	out := mustNode(t, "ShaderNodeOutputMaterial")
	out.Location = [2]float64{400, 300}
	t.connect(bsdf, bsdf.Outputs[0], out, out.Inputs[0])

	for i, mapName := range maps {
		tex := mustNode(t, "ShaderNodeTexImage")
		tex.Location = [2]float64{-300, 300 - float64(i)*280}
		tex.Props["image"] = fmt.Sprintf("%s_%s_%s.%s", textureID, strings.ToLower(mapName), resolution, format)

		var target string
		switch mapName {
		case "Diffuse":
			target = "Base Color"
		case "Rough":
			target = "Roughness"
		case "nor_gl":
			target = "Normal"
		default:
			continue
		}
		if sock, _, err := resolveSocket(bsdf, target, false); err == nil {
			t.connect(tex, tex.Outputs[0], bsdf, sock)
		}
	}
	return t
}

func (s *Scene) uniqueMaterialName(base string) string {
	if s.material(base) == nil {
		return base
	}
	for i := 1; ; i++ {
		name := fmt.Sprintf("%s.%03d", base, i)
		if s.material(name) == nil {
			return name
		}
	}
}

func (s *Scene) setTexture(params map[string]any) (any, error) {
	var p struct {
		ObjectName string `mapstructure:"object_name"`
		TextureID  string `mapstructure:"texture_id"`
	}
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	obj := s.find(p.ObjectName)
	if obj == nil {
		return map[string]any{"error": fmt.Sprintf("Object not found: %s", p.ObjectName)}, nil
	}
	if obj.Type != "MESH" {
		return map[string]any{"error": fmt.Sprintf("Object %s cannot accept materials", p.ObjectName)}, nil
	}
	maps, ok := s.downloadedTextures[p.TextureID]
	if !ok {
		return map[string]any{
			"error": fmt.Sprintf("No texture images found for: %s. Please download the texture first.", p.TextureID),
		}, nil
	}

	matName := s.uniqueMaterialName(p.TextureID + "_material")
	s.Materials = append(s.Materials, &Material{
		Name:     matName,
		UseNodes: true,
		Tree:     newTexturedTree(matName, p.TextureID, maps, "1k", "jpg"),
	})
	obj.Materials = []string{matName}

	return map[string]any{
		"success":  true,
		"message":  fmt.Sprintf("Created new material and applied texture %s to %s", p.TextureID, p.ObjectName),
		"material": matName,
		"maps":     maps,
	}, nil
}

type sketchfabModel struct {
	uid          string
	name         string
	username     string
	downloadable bool
	faces        int
	categories   []string
}

var sketchfabModels = []sketchfabModel{
	{
		uid:          "7e9f3a51c2b84d6fa0e8b21c9d47f3a5",
		name:         "Vintage Wooden Chair",
		username:     "archviz3d",
		downloadable: true,
		faces:        12480,
		categories:   []string{"furniture-home"},
	},
	{
		uid:          "1c4d8b2e6f9a40d3b7c5e8a1f2d6b9c4",
		name:         "Sci-Fi Supply Crate",
		username:     "propforge",
		downloadable: true,
		faces:        4096,
		categories:   []string{"science-technology"},
	},
	{
		uid:          "9b2a6e4c8d1f43a5b0c7d9e2f4a6b8c1",
		name:         "Low Poly Oak Tree",
		username:     "greenfields",
		downloadable: true,
		faces:        1860,
		categories:   []string{"nature-plants"},
	},
	{
		uid:          "3f6c9d1b4e8a42c7d0b5f8a3c6e9d2b4",
		name:         "Weathered Rock Formation",
		username:     "terrainworks",
		downloadable: true,
		faces:        22400,
		categories:   []string{"nature-plants"},
	},
	{
		uid:          "5a8d2f6b9c3e41b6a0d8c5f2b7e4a9d1",
		name:         "Museum Marble Bust",
		username:     "heritage_scans",
		downloadable: false,
		faces:        154000,
		categories:   []string{"cultural-heritage-history"},
	},
}

func searchSketchfabModels(params map[string]any) (any, error) {
	var p struct {
		Query        string `mapstructure:"query"`
		Categories   string `mapstructure:"categories"`
		Count        int    `mapstructure:"count"`
		Downloadable *bool  `mapstructure:"downloadable"`
	}
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	if p.Count <= 0 {
		p.Count = 20
	}
	downloadableOnly := p.Downloadable == nil || *p.Downloadable
	var wantCats []string
	for _, c := range strings.Split(p.Categories, ",") {
		if c = strings.TrimSpace(c); c != "" {
			wantCats = append(wantCats, c)
		}
	}

	results := make([]map[string]any, 0)
	for _, model := range sketchfabModels {
		if len(results) >= p.Count {
			break
		}
		if p.Query != "" && !strings.Contains(strings.ToLower(model.name), strings.ToLower(p.Query)) {
			continue
		}
		if downloadableOnly && !model.downloadable {
			continue
		}
		if len(wantCats) > 0 && !hasAnyCategory(model.categories, wantCats) {
			continue
		}
		cats := make([]map[string]any, 0, len(model.categories))
		for _, c := range model.categories {
			cats = append(cats, map[string]any{"name": c})
		}
		results = append(results, map[string]any{
			"uid":            model.uid,
			"name":           model.name,
			"user":           map[string]any{"username": model.username},
			"isDownloadable": model.downloadable,
			"faceCount":      model.faces,
			"categories":     cats,
		})
	}
	return map[string]any{"results": results}, nil
}

func (s *Scene) downloadSketchfabModel(params map[string]any) (any, error) {
	var p struct {
		UID string `mapstructure:"uid"`
	}
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	for _, model := range sketchfabModels {
		if model.uid != p.UID || !model.downloadable {
			continue
		}
		name := s.addObject(importedMeshObject(model.name, model.faces))
		return map[string]any{
			"success":          true,
			"message":          "Model imported successfully",
			"imported_objects": []string{name},
		}, nil
	}
	return map[string]any{
		"error": "No download URL available for this model. Make sure the model is downloadable and you have access.",
	}, nil
}
