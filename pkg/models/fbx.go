package models

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"path/filepath"
	"strings"

	"github.com/taigrr/showroom/pkg/math3d"
	"github.com/taigrr/showroom/pkg/scene"
)

// FBXLoader loads binary FBX files (versions 7.x). Meshes, the model
// hierarchy with local transforms, Phong/Lambert materials and file or
// embedded textures are read. Animation stacks are not.
type FBXLoader struct{}

// NewFBXLoader creates an FBX loader.
func NewFBXLoader() *FBXLoader {
	return &FBXLoader{}
}

// Load parses path.
func (l *FBXLoader) Load(ctx context.Context, path string, progress ProgressFunc) (*Result, error) {
	data, err := readFile(ctx, path, progress)
	if err != nil {
		return nil, err
	}
	if !bytes.HasPrefix(data, fbxMagic) {
		if bytes.Contains(data[:min(len(data), 1024)], []byte("FBXHeaderExtension")) {
			return nil, fmt.Errorf("%w: ASCII FBX is not supported", ErrInvalidFBX)
		}
		return nil, fmt.Errorf("%w: missing binary header", ErrInvalidFBX)
	}
	doc, _, err := parseBinaryFBX(ctx, data)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res := &Result{}
	b := &fbxBuilder{
		res:       res,
		texSet:    newTextureSet(filepath.Dir(path), res),
		models:    make(map[int64]*scene.Node),
		geoms:     make(map[int64]*fbxGeometry),
		materials: make(map[int64]*scene.Material),
		textures:  make(map[int64]*fbxTexture),
		videos:    make(map[int64]*fbxNode),
	}
	root, err := b.build(doc, strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))
	if err != nil {
		return nil, err
	}
	res.Root = root
	return res, nil
}

type fbxGeometry struct {
	node  *fbxNode
	built *scene.Geometry
}

type fbxTexture struct {
	node  *fbxNode
	video *fbxNode
	tex   *scene.Texture
}

type fbxConnection struct {
	kind          string
	child, parent int64
	property      string
}

type fbxBuilder struct {
	res    *Result
	texSet *textureSet

	models    map[int64]*scene.Node
	geoms     map[int64]*fbxGeometry
	materials map[int64]*scene.Material
	textures  map[int64]*fbxTexture
	videos    map[int64]*fbxNode
}

// fbxName strips the class suffix from "Name\x00\x01Class" object names.
func fbxName(s string) string {
	if i := strings.Index(s, "\x00\x01"); i >= 0 {
		return s[:i]
	}
	if i := strings.Index(s, "::"); i >= 0 {
		return s[i+2:]
	}
	return s
}

func (b *fbxBuilder) build(doc *fbxNode, name string) (*scene.Node, error) {
	objects := doc.Child("Objects")
	if objects == nil {
		return nil, fmt.Errorf("%w: no Objects section", ErrInvalidFBX)
	}

	for _, obj := range objects.Children {
		id := obj.propInt(0)
		switch obj.Name {
		case "Geometry":
			if obj.propString(2) == "Mesh" {
				b.geoms[id] = &fbxGeometry{node: obj}
			}
		case "Model":
			n := scene.NewNode(fbxName(obj.propString(1)))
			applyFBXTransform(n, obj.Child("Properties70"))
			b.models[id] = n
		case "Material":
			b.materials[id] = fbxMaterial(obj)
		case "Texture":
			b.textures[id] = &fbxTexture{node: obj}
		case "Video":
			b.videos[id] = obj
		}
	}

	var conns []fbxConnection
	if c := doc.Child("Connections"); c != nil {
		for _, rec := range c.ChildrenNamed("C") {
			conns = append(conns, fbxConnection{
				kind:     rec.propString(0),
				child:    rec.propInt(1),
				parent:   rec.propInt(2),
				property: rec.propString(3),
			})
		}
	}

	// Videos feed textures, textures feed materials.
	for _, c := range conns {
		if v, ok := b.videos[c.child]; ok {
			if t, ok := b.textures[c.parent]; ok {
				t.video = v
			}
		}
	}
	for _, c := range conns {
		t, ok := b.textures[c.child]
		if !ok {
			continue
		}
		m, ok := b.materials[c.parent]
		if !ok {
			continue
		}
		if slot, ok := fbxTextureSlot(c.property); ok {
			m.SetMap(slot, b.texture(c.child, t))
		}
	}

	root := scene.NewNode(name)
	modelMats := make(map[int64][]*scene.Material)
	modelGeom := make(map[int64]*fbxGeometry)
	for _, c := range conns {
		if m, ok := b.materials[c.child]; ok {
			if _, ok := b.models[c.parent]; ok {
				modelMats[c.parent] = append(modelMats[c.parent], m)
			}
			continue
		}
		if g, ok := b.geoms[c.child]; ok {
			if _, ok := b.models[c.parent]; ok {
				modelGeom[c.parent] = g
			}
			continue
		}
		if child, ok := b.models[c.child]; ok {
			if parent, ok := b.models[c.parent]; ok {
				parent.Add(child)
			} else if c.parent == 0 {
				root.Add(child)
			}
		}
	}

	triangles := 0
	for id, g := range modelGeom {
		if g.built == nil {
			geom, err := buildFBXGeometry(g.node)
			if err != nil {
				b.res.warnf("geometry %s: %v", fbxName(g.node.propString(1)), err)
				continue
			}
			g.built = geom
		}
		mats := modelMats[id]
		if len(mats) == 0 {
			mats = []*scene.Material{scene.NewMaterial(scene.PhongMaterial, "default")}
		}
		b.models[id].Mesh = scene.NewMesh(g.built, mats...)
		triangles += g.built.TriangleCount()
	}

	// Models never attached to the hierarchy hang off the root.
	for _, n := range b.models {
		if n.Parent() == nil {
			root.Add(n)
		}
	}

	if triangles == 0 {
		scene.DisposeTree(root)
		return nil, fmt.Errorf("fbx: %w", ErrNoGeometry)
	}
	return root, nil
}

func (b *fbxBuilder) texture(id int64, t *fbxTexture) *scene.Texture {
	if t.tex != nil {
		return t.tex
	}
	file := t.node.Child("RelativeFilename").propString(0)
	if file == "" {
		file = t.node.Child("FileName").propString(0)
	}
	if t.video != nil {
		if content := t.video.Child("Content"); content != nil && len(content.Props) > 0 {
			if raw, ok := content.Props[0].([]byte); ok && len(raw) > 0 {
				name := t.video.Child("RelativeFilename").propString(0)
				if name == "" {
					name = file
				}
				t.tex = b.texSet.bytes(fmt.Sprintf("fbx-video:%d", id), filepath.Base(strings.ReplaceAll(name, `\`, "/")), raw)
				return t.tex
			}
		}
	}
	t.tex = b.texSet.file(file)
	return t.tex
}

func fbxTextureSlot(property string) (scene.TextureSlot, bool) {
	switch property {
	case "DiffuseColor", "Diffuse":
		return scene.SlotMap, true
	case "NormalMap":
		return scene.SlotNormalMap, true
	case "Bump", "BumpFactor":
		return scene.SlotBumpMap, true
	case "SpecularColor", "SpecularFactor":
		return scene.SlotSpecularMap, true
	case "EmissiveColor", "EmissiveFactor":
		return scene.SlotEmissiveMap, true
	case "TransparentColor", "TransparencyFactor":
		return scene.SlotAlphaMap, true
	case "ReflectionColor":
		return scene.SlotEnvMap, true
	case "DisplacementColor":
		return scene.SlotDisplacement, true
	}
	return "", false
}

// fbxProps indexes a Properties70 block by property name.
func fbxProps(p70 *fbxNode) map[string]*fbxNode {
	out := make(map[string]*fbxNode)
	if p70 == nil {
		return out
	}
	for _, p := range p70.ChildrenNamed("P") {
		out[p.propString(0)] = p
	}
	return out
}

// fbxVec3 reads the three values that follow the name, type, label and flags
// fields of a P record.
func fbxVec3(p *fbxNode, def math3d.Vec3) math3d.Vec3 {
	if p == nil || len(p.Props) < 7 {
		return def
	}
	return math3d.V3(p.propFloat(4), p.propFloat(5), p.propFloat(6))
}

func fbxScalar(p *fbxNode, def float64) float64 {
	if p == nil || len(p.Props) < 5 {
		return def
	}
	return p.propFloat(4)
}

func applyFBXTransform(n *scene.Node, p70 *fbxNode) {
	props := fbxProps(p70)
	deg := math.Pi / 180
	n.Position = fbxVec3(props["Lcl Translation"], math3d.Zero3())
	n.Scale = fbxVec3(props["Lcl Scaling"], math3d.One3())
	r := fbxVec3(props["Lcl Rotation"], math3d.Zero3()).Scale(deg)
	pre := fbxVec3(props["PreRotation"], math3d.Zero3()).Scale(deg)
	n.Rotation = math3d.QuatFromEuler(pre.X, pre.Y, pre.Z).
		Mul(math3d.QuatFromEuler(r.X, r.Y, r.Z)).Normalize()
}

func fbxMaterial(obj *fbxNode) *scene.Material {
	kind := scene.PhongMaterial
	if strings.EqualFold(obj.Child("ShadingModel").propString(0), "lambert") {
		kind = scene.LambertMaterial
	}
	m := scene.NewMaterial(kind, fbxName(obj.propString(1)))
	props := fbxProps(obj.Child("Properties70"))

	c := fbxVec3(props["DiffuseColor"], fbxVec3(props["Diffuse"], math3d.V3(1, 1, 1)))
	m.Color = scene.Color{R: c.X, G: c.Y, B: c.Z}
	e := fbxVec3(props["EmissiveColor"], fbxVec3(props["Emissive"], math3d.Zero3()))
	m.Emissive = scene.Color{R: e.X, G: e.Y, B: e.Z}.Scale(fbxScalar(props["EmissiveFactor"], 1))
	m.Shininess = fbxScalar(props["ShininessExponent"], fbxScalar(props["Shininess"], m.Shininess))
	if p, ok := props["Opacity"]; ok {
		m.Opacity = fbxScalar(p, 1)
	} else if p, ok := props["TransparencyFactor"]; ok {
		m.Opacity = 1 - fbxScalar(p, 0)
	}
	return m
}

// fbxLayer is a LayerElement* attribute with its mapping and reference modes.
type fbxLayer struct {
	data      []float64
	index     []int32
	mapping   string
	reference string
	stride    int
}

func newFBXLayer(elem *fbxNode, dataName, indexName string, stride int) *fbxLayer {
	if elem == nil {
		return nil
	}
	l := &fbxLayer{
		data:      elem.Child(dataName).floats(),
		index:     elem.Child(indexName).ints(),
		mapping:   elem.Child("MappingInformationType").propString(0),
		reference: elem.Child("ReferenceInformationType").propString(0),
		stride:    stride,
	}
	if len(l.data) < stride {
		return nil
	}
	return l
}

// at returns the element index for a polygon vertex, or -1.
func (l *fbxLayer) at(polyVertex, controlPoint, polygon int) int {
	var i int
	switch l.mapping {
	case "ByPolygonVertex":
		i = polyVertex
	case "ByVertice", "ByVertex":
		i = controlPoint
	case "ByPolygon":
		i = polygon
	case "AllSame":
		i = 0
	default:
		return -1
	}
	if l.reference == "IndexToDirect" || l.reference == "Index" {
		if i >= len(l.index) {
			return -1
		}
		i = int(l.index[i])
	}
	if i < 0 || (i+1)*l.stride > len(l.data) {
		return -1
	}
	return i
}

func (l *fbxLayer) vec3(i int) math3d.Vec3 {
	return math3d.V3(l.data[i*3], l.data[i*3+1], l.data[i*3+2])
}

// buildFBXGeometry unrolls polygons into non-indexed triangles, splitting
// material runs into groups.
func buildFBXGeometry(g *fbxNode) (*scene.Geometry, error) {
	verts := g.Child("Vertices").floats()
	poly := g.Child("PolygonVertexIndex").ints()
	if len(verts) < 9 || len(poly) < 3 {
		return nil, ErrNoGeometry
	}
	numCtrl := len(verts) / 3

	normals := newFBXLayer(g.Child("LayerElementNormal"), "Normals", "NormalsIndex", 3)
	uvs := newFBXLayer(g.Child("LayerElementUV"), "UV", "UVIndex", 2)
	var matIdx []int32
	matMapping := ""
	if lm := g.Child("LayerElementMaterial"); lm != nil {
		matIdx = lm.Child("Materials").ints()
		matMapping = lm.Child("MappingInformationType").propString(0)
	}

	geom := scene.NewGeometry()
	var (
		polygon int
		curMat  = -1
		ctrl    []int
		pvs     []int
		hasUV   = uvs != nil
		nrm     []math3d.Vec3
		uvOut   []math3d.Vec2
	)

	emit := func() error {
		mat := 0
		if len(matIdx) > 0 {
			if matMapping == "ByPolygon" && polygon < len(matIdx) {
				mat = int(matIdx[polygon])
			} else {
				mat = int(matIdx[0])
			}
		}
		if mat != curMat {
			if n := len(geom.Groups); n > 0 {
				geom.Groups[n-1].Count = len(geom.Positions) - geom.Groups[n-1].Start
			}
			geom.Groups = append(geom.Groups, scene.Group{Start: len(geom.Positions), MaterialIndex: mat})
			curMat = mat
		}
		for i := 1; i+1 < len(ctrl); i++ {
			for _, k := range [3]int{0, i, i + 1} {
				cp := ctrl[k]
				if cp >= numCtrl {
					return fmt.Errorf("control point %d out of range", cp)
				}
				geom.Positions = append(geom.Positions, math3d.V3(verts[cp*3], verts[cp*3+1], verts[cp*3+2]))
				var n math3d.Vec3
				if normals != nil {
					if e := normals.at(pvs[k], cp, polygon); e >= 0 {
						n = normals.vec3(e)
					}
				}
				nrm = append(nrm, n)
				var uv math3d.Vec2
				if hasUV {
					if e := uvs.at(pvs[k], cp, polygon); e >= 0 {
						uv = math3d.V2(uvs.data[e*2], 1-uvs.data[e*2+1])
					}
				}
				uvOut = append(uvOut, uv)
			}
		}
		return nil
	}

	for pv, raw := range poly {
		idx := int(raw)
		last := idx < 0
		if last {
			idx = ^idx
		}
		ctrl = append(ctrl, idx)
		pvs = append(pvs, pv)
		if !last {
			continue
		}
		if err := emit(); err != nil {
			return nil, err
		}
		ctrl, pvs = ctrl[:0], pvs[:0]
		polygon++
	}

	if n := len(geom.Groups); n > 0 {
		geom.Groups[n-1].Count = len(geom.Positions) - geom.Groups[n-1].Start
	}
	if len(geom.Groups) == 1 && geom.Groups[0].MaterialIndex == 0 {
		geom.Groups = nil
	}
	if len(geom.Positions) == 0 {
		return nil, ErrNoGeometry
	}

	if normals != nil {
		geom.Normals = nrm
	} else {
		geom.ComputeNormals()
	}
	if hasUV {
		geom.UVs = uvOut
	}
	return geom, nil
}
