package scene

import "slices"

// Side selects which triangle windings are rendered.
type Side int

const (
	FrontSide  Side = iota // counter-clockwise faces only
	BackSide               // clockwise faces only
	DoubleSide             // both windings
)

// MaterialKind identifies the shading model of a material and with it the
// texture slots it can bind.
type MaterialKind int

const (
	StandardMaterial MaterialKind = iota // metallic/roughness PBR
	PhongMaterial                        // specular/shininess (OBJ, FBX)
	LambertMaterial
	ToonMaterial
	BasicMaterial // unlit
)

func (k MaterialKind) String() string {
	switch k {
	case StandardMaterial:
		return "standard"
	case PhongMaterial:
		return "phong"
	case LambertMaterial:
		return "lambert"
	case ToonMaterial:
		return "toon"
	case BasicMaterial:
		return "basic"
	default:
		return "unknown"
	}
}

// TextureSlot names a texture binding point on a material.
type TextureSlot string

const (
	SlotMap          TextureSlot = "map"
	SlotLightMap     TextureSlot = "lightMap"
	SlotBumpMap      TextureSlot = "bumpMap"
	SlotNormalMap    TextureSlot = "normalMap"
	SlotSpecularMap  TextureSlot = "specularMap"
	SlotEnvMap       TextureSlot = "envMap"
	SlotAlphaMap     TextureSlot = "alphaMap"
	SlotAOMap        TextureSlot = "aoMap"
	SlotDisplacement TextureSlot = "displacementMap"
	SlotEmissiveMap  TextureSlot = "emissiveMap"
	SlotGradientMap  TextureSlot = "gradientMap"
	SlotMetalnessMap TextureSlot = "metalnessMap"
	SlotRoughnessMap TextureSlot = "roughnessMap"
)

// SlotManifest lists the texture slots each material kind can bind. Disposal
// and validation iterate this table; adding a slot is a one-line change here.
var SlotManifest = map[MaterialKind][]TextureSlot{
	StandardMaterial: {
		SlotMap, SlotLightMap, SlotAOMap, SlotEmissiveMap, SlotBumpMap, SlotNormalMap,
		SlotDisplacement, SlotRoughnessMap, SlotMetalnessMap, SlotAlphaMap, SlotEnvMap,
	},
	PhongMaterial: {
		SlotMap, SlotLightMap, SlotAOMap, SlotEmissiveMap, SlotBumpMap, SlotNormalMap,
		SlotDisplacement, SlotSpecularMap, SlotAlphaMap, SlotEnvMap,
	},
	LambertMaterial: {
		SlotMap, SlotLightMap, SlotAOMap, SlotEmissiveMap, SlotBumpMap, SlotNormalMap,
		SlotDisplacement, SlotSpecularMap, SlotAlphaMap, SlotEnvMap,
	},
	ToonMaterial: {
		SlotMap, SlotGradientMap, SlotLightMap, SlotAOMap, SlotEmissiveMap, SlotBumpMap,
		SlotNormalMap, SlotDisplacement, SlotAlphaMap,
	},
	BasicMaterial: {
		SlotMap, SlotLightMap, SlotAOMap, SlotSpecularMap, SlotAlphaMap, SlotEnvMap,
	},
}

// Material describes how a mesh surface is shaded.
type Material struct {
	resource

	Name      string
	Kind      MaterialKind
	Color     Color
	Emissive  Color
	Roughness float64
	Metalness float64
	Shininess float64
	Opacity   float64
	Side      Side
	Wireframe bool

	maps map[TextureSlot]*Texture
}

// NewMaterial creates a material of the given kind with neutral defaults.
func NewMaterial(kind MaterialKind, name string) *Material {
	return &Material{
		resource:  newResource(),
		Name:      name,
		Kind:      kind,
		Color:     Color{1, 1, 1},
		Roughness: 1,
		Shininess: 30,
		Opacity:   1,
		Side:      FrontSide,
		maps:      make(map[TextureSlot]*Texture),
	}
}

// Slots returns the manifest entry for the material's kind.
func (m *Material) Slots() []TextureSlot {
	return SlotManifest[m.Kind]
}

// SetMap binds tex to slot. It reports false, leaving the material unchanged,
// when the slot is not part of the kind's manifest. A nil texture clears the
// slot.
func (m *Material) SetMap(slot TextureSlot, tex *Texture) bool {
	if !slices.Contains(m.Slots(), slot) {
		return false
	}
	if tex == nil {
		delete(m.maps, slot)
		return true
	}
	m.maps[slot] = tex
	return true
}

// Map returns the texture bound to slot, or nil.
func (m *Material) Map(slot TextureSlot) *Texture {
	return m.maps[slot]
}

// Textures returns every bound texture in manifest order.
func (m *Material) Textures() []*Texture {
	var out []*Texture
	for _, slot := range m.Slots() {
		if tex := m.maps[slot]; tex != nil {
			out = append(out, tex)
		}
	}
	return out
}

// Dispose releases renderer-side data derived from the material itself.
// Bound textures are separate resources; see DisposeWithTextures.
func (m *Material) Dispose() {
	m.release()
}

// DisposeWithTextures disposes the material and every texture bound in any
// slot of its manifest. seen deduplicates textures shared between materials
// and may be nil.
func (m *Material) DisposeWithTextures(seen map[uint64]bool) {
	m.Dispose()
	for _, tex := range m.Textures() {
		if seen != nil {
			if seen[tex.ID()] {
				continue
			}
			seen[tex.ID()] = true
		}
		tex.Dispose()
	}
}
