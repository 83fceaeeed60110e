package models

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"

	"github.com/taigrr/showroom/pkg/math3d"
	"github.com/taigrr/showroom/pkg/scene"
)

// GLTFLoader loads glTF 2.0 files, both JSON (.gltf) and binary (.glb).
type GLTFLoader struct {
	// CalculateNormals fills missing normals from face geometry.
	CalculateNormals bool
}

// NewGLTFLoader creates a new glTF loader with default options.
func NewGLTFLoader() *GLTFLoader {
	return &GLTFLoader{CalculateNormals: true}
}

// Load parses path into a node tree that mirrors the glTF default scene.
func (l *GLTFLoader) Load(ctx context.Context, path string, progress ProgressFunc) (*Result, error) {
	data, err := readFile(ctx, path, progress)
	if err != nil {
		return nil, err
	}

	doc := new(gltf.Document)
	if Extension(path) == string(FormatGLB) {
		if err := gltf.NewDecoder(bytes.NewReader(data)).Decode(doc); err != nil {
			return nil, fmt.Errorf("decode glb: %w", err)
		}
	} else {
		// External buffers resolve relative to the file.
		if doc, err = gltf.Open(path); err != nil {
			return nil, fmt.Errorf("open gltf: %w", err)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b := &gltfBuilder{
		loader:    l,
		doc:       doc,
		res:       &Result{},
		nodes:     make(map[int]*scene.Node),
		materials: make(map[int]*scene.Material),
		textures:  make(map[int]*scene.Texture),
	}
	b.texSet = newTextureSet(filepath.Dir(path), b.res)

	root, err := b.buildScene(strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))
	if err != nil {
		b.res.Root = root
		b.res.Dispose()
		return nil, err
	}
	b.res.Root = root
	b.res.Animations = b.buildAnimations()
	return b.res, nil
}

type gltfBuilder struct {
	loader *GLTFLoader
	doc    *gltf.Document
	res    *Result
	texSet *textureSet

	nodes     map[int]*scene.Node
	materials map[int]*scene.Material
	textures  map[int]*scene.Texture
	fallback  *scene.Material
	triangles int
}

func (b *gltfBuilder) buildScene(name string) (*scene.Node, error) {
	root := scene.NewNode(name)

	var roots []int
	switch {
	case b.doc.Scene != nil && *b.doc.Scene < len(b.doc.Scenes):
		roots = b.doc.Scenes[*b.doc.Scene].Nodes
	case len(b.doc.Scenes) > 0:
		roots = b.doc.Scenes[0].Nodes
	default:
		// No scene list: every node without a parent is a root.
		child := make(map[int]bool)
		for _, n := range b.doc.Nodes {
			for _, c := range n.Children {
				child[c] = true
			}
		}
		for i := range b.doc.Nodes {
			if !child[i] {
				roots = append(roots, i)
			}
		}
	}

	for _, idx := range roots {
		n, err := b.buildNode(idx, 0)
		if err != nil {
			return root, err
		}
		root.Add(n)
	}
	if b.triangles == 0 {
		return root, fmt.Errorf("gltf: %w", ErrNoGeometry)
	}
	return root, nil
}

const maxNodeDepth = 256

func (b *gltfBuilder) buildNode(idx, depth int) (*scene.Node, error) {
	if idx < 0 || idx >= len(b.doc.Nodes) {
		return nil, fmt.Errorf("node %d out of range", idx)
	}
	if depth > maxNodeDepth {
		return nil, fmt.Errorf("node %d: hierarchy too deep", idx)
	}
	gn := b.doc.Nodes[idx]

	name := gn.Name
	if name == "" {
		name = fmt.Sprintf("node_%d", idx)
	}
	n := scene.NewNode(name)
	setNodeTransform(n, gn)
	b.nodes[idx] = n

	if gn.Mesh != nil {
		if *gn.Mesh >= len(b.doc.Meshes) {
			return n, fmt.Errorf("node %q: mesh %d out of range", name, *gn.Mesh)
		}
		gm := b.doc.Meshes[*gn.Mesh]
		meshes, err := b.buildMesh(gm)
		if err != nil {
			return n, fmt.Errorf("mesh %q: %w", gm.Name, err)
		}
		if len(meshes) == 1 {
			n.Mesh = meshes[0]
		} else {
			for i, m := range meshes {
				n.Add(scene.NewMeshNode(fmt.Sprintf("%s_%d", gm.Name, i), m))
			}
		}
	}

	for _, c := range gn.Children {
		child, err := b.buildNode(c, depth+1)
		if err != nil {
			return n, err
		}
		n.Add(child)
	}
	return n, nil
}

func setNodeTransform(n *scene.Node, gn *gltf.Node) {
	m := math3d.Mat4(gn.Matrix)
	if m != (math3d.Mat4{}) && m != math3d.Identity() {
		n.Position, n.Rotation, n.Scale = m.Decompose()
		return
	}
	n.Position = math3d.V3(gn.Translation[0], gn.Translation[1], gn.Translation[2])
	if r := gn.Rotation; r != [4]float64{} {
		n.Rotation = math3d.Quat{X: r[0], Y: r[1], Z: r[2], W: r[3]}.Normalize()
	}
	if s := gn.Scale; s != [3]float64{} {
		n.Scale = math3d.V3(s[0], s[1], s[2])
	}
}

// buildMesh converts each triangle primitive into its own scene mesh.
func (b *gltfBuilder) buildMesh(gm *gltf.Mesh) ([]*scene.Mesh, error) {
	var out []*scene.Mesh
	for i, prim := range gm.Primitives {
		if prim.Mode != gltf.PrimitiveTriangles {
			b.res.warnf("mesh %q primitive %d: mode %v skipped", gm.Name, i, prim.Mode)
			continue
		}
		geom, err := b.buildGeometry(prim)
		if err != nil {
			return out, fmt.Errorf("primitive %d: %w", i, err)
		}
		if geom == nil {
			continue
		}
		b.triangles += geom.TriangleCount()
		out = append(out, scene.NewMesh(geom, b.material(prim.Material)))
	}
	return out, nil
}

func (b *gltfBuilder) buildGeometry(prim *gltf.Primitive) (*scene.Geometry, error) {
	posIdx, ok := prim.Attributes[gltf.POSITION]
	if !ok {
		return nil, nil
	}
	acr, err := b.accessor(posIdx)
	if err != nil {
		return nil, err
	}
	positions, err := modeler.ReadPosition(b.doc, acr, nil)
	if err != nil {
		return nil, fmt.Errorf("read positions: %w", err)
	}

	geom := scene.NewGeometry()
	geom.Positions = make([]math3d.Vec3, len(positions))
	for i, p := range positions {
		geom.Positions[i] = math3d.V3(float64(p[0]), float64(p[1]), float64(p[2]))
	}

	if idx, ok := prim.Attributes[gltf.NORMAL]; ok {
		if acr, err := b.accessor(idx); err == nil {
			normals, err := modeler.ReadNormal(b.doc, acr, nil)
			if err != nil {
				return nil, fmt.Errorf("read normals: %w", err)
			}
			if len(normals) == len(positions) {
				geom.Normals = make([]math3d.Vec3, len(normals))
				for i, v := range normals {
					geom.Normals[i] = math3d.V3(float64(v[0]), float64(v[1]), float64(v[2]))
				}
			}
		}
	}

	if idx, ok := prim.Attributes[gltf.TEXCOORD_0]; ok {
		if acr, err := b.accessor(idx); err == nil {
			uvs, err := modeler.ReadTextureCoord(b.doc, acr, nil)
			if err != nil {
				return nil, fmt.Errorf("read uvs: %w", err)
			}
			if len(uvs) == len(positions) {
				geom.UVs = make([]math3d.Vec2, len(uvs))
				for i, v := range uvs {
					geom.UVs[i] = math3d.V2(float64(v[0]), float64(v[1]))
				}
			}
		}
	}

	if prim.Indices != nil {
		acr, err := b.accessor(*prim.Indices)
		if err != nil {
			return nil, err
		}
		indices, err := modeler.ReadIndices(b.doc, acr, nil)
		if err != nil {
			return nil, fmt.Errorf("read indices: %w", err)
		}
		for _, v := range indices {
			if int(v) >= len(positions) {
				return nil, fmt.Errorf("index %d out of range (%d vertices)", v, len(positions))
			}
		}
		geom.Index = indices
	} else if len(positions)%3 != 0 {
		b.res.warnf("non-indexed primitive with %d vertices", len(positions))
	}

	if geom.Normals == nil && b.loader.CalculateNormals {
		geom.ComputeNormals()
	}
	return geom, nil
}

func (b *gltfBuilder) accessor(idx int) (*gltf.Accessor, error) {
	if idx < 0 || idx >= len(b.doc.Accessors) {
		return nil, fmt.Errorf("accessor %d out of range", idx)
	}
	return b.doc.Accessors[idx], nil
}

// material returns the shared scene material for a glTF material index.
// Primitives without a material share one default.
func (b *gltfBuilder) material(idx *int) *scene.Material {
	if idx == nil || *idx < 0 || *idx >= len(b.doc.Materials) {
		if b.fallback == nil {
			b.fallback = scene.NewMaterial(scene.StandardMaterial, "default")
		}
		return b.fallback
	}
	if m, ok := b.materials[*idx]; ok {
		return m
	}

	gm := b.doc.Materials[*idx]
	m := scene.NewMaterial(scene.StandardMaterial, gm.Name)
	m.Metalness = 1
	if pbr := gm.PBRMetallicRoughness; pbr != nil {
		if c := pbr.BaseColorFactor; c != nil {
			m.Color = scene.Color{R: c[0], G: c[1], B: c[2]}
			m.Opacity = c[3]
		}
		if pbr.MetallicFactor != nil {
			m.Metalness = *pbr.MetallicFactor
		}
		if pbr.RoughnessFactor != nil {
			m.Roughness = *pbr.RoughnessFactor
		}
		if t := pbr.BaseColorTexture; t != nil {
			m.SetMap(scene.SlotMap, b.texture(t.Index))
		}
		if t := pbr.MetallicRoughnessTexture; t != nil {
			tex := b.texture(t.Index)
			m.SetMap(scene.SlotRoughnessMap, tex)
			m.SetMap(scene.SlotMetalnessMap, tex)
		}
	}
	if t := gm.NormalTexture; t != nil && t.Index != nil {
		m.SetMap(scene.SlotNormalMap, b.texture(*t.Index))
	}
	if t := gm.OcclusionTexture; t != nil && t.Index != nil {
		m.SetMap(scene.SlotAOMap, b.texture(*t.Index))
	}
	if t := gm.EmissiveTexture; t != nil {
		m.SetMap(scene.SlotEmissiveMap, b.texture(t.Index))
	}
	e := gm.EmissiveFactor
	m.Emissive = scene.Color{R: e[0], G: e[1], B: e[2]}
	if gm.DoubleSided {
		m.Side = scene.DoubleSide
	}

	b.materials[*idx] = m
	return m
}

// texture returns the shared scene texture for a glTF texture index.
func (b *gltfBuilder) texture(idx int) *scene.Texture {
	if tex, ok := b.textures[idx]; ok {
		return tex
	}
	var tex *scene.Texture
	if idx >= 0 && idx < len(b.doc.Textures) && b.doc.Textures[idx].Source != nil {
		tex = b.image(*b.doc.Textures[idx].Source)
	}
	if tex == nil {
		b.res.warnf("texture %d has no image", idx)
		tex = scene.NewTexture(fmt.Sprintf("texture_%d", idx), nil)
	}
	b.textures[idx] = tex
	return tex
}

func (b *gltfBuilder) image(idx int) *scene.Texture {
	if idx < 0 || idx >= len(b.doc.Images) {
		return nil
	}
	img := b.doc.Images[idx]
	name := img.Name
	if name == "" {
		name = fmt.Sprintf("image_%d", idx)
	}
	key := fmt.Sprintf("gltf-image:%d", idx)

	switch {
	case img.BufferView != nil:
		data, err := b.bufferView(*img.BufferView)
		if err != nil {
			b.res.warnf("image %s: %v", name, err)
			return nil
		}
		return b.texSet.bytes(key, name+mimeExt(img.MimeType), data)
	case strings.HasPrefix(img.URI, "data:"):
		data, err := decodeDataURI(img.URI)
		if err != nil {
			b.res.warnf("image %s: %v", name, err)
			return nil
		}
		return b.texSet.bytes(key, name, data)
	case img.URI != "":
		return b.texSet.file(img.URI)
	}
	return nil
}

func (b *gltfBuilder) bufferView(idx int) ([]byte, error) {
	if idx < 0 || idx >= len(b.doc.BufferViews) {
		return nil, fmt.Errorf("buffer view %d out of range", idx)
	}
	bv := b.doc.BufferViews[idx]
	if bv.Buffer < 0 || bv.Buffer >= len(b.doc.Buffers) {
		return nil, fmt.Errorf("buffer %d out of range", bv.Buffer)
	}
	data := b.doc.Buffers[bv.Buffer].Data
	end := bv.ByteOffset + bv.ByteLength
	if data == nil || end > len(data) {
		return nil, fmt.Errorf("buffer view %d exceeds buffer", idx)
	}
	return data[bv.ByteOffset:end], nil
}

func decodeDataURI(uri string) ([]byte, error) {
	_, payload, ok := strings.Cut(uri, ";base64,")
	if !ok {
		return nil, fmt.Errorf("data uri is not base64")
	}
	return base64.StdEncoding.DecodeString(payload)
}

func mimeExt(mime string) string {
	switch mime {
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	}
	return ""
}

func (b *gltfBuilder) buildAnimations() []*scene.AnimationClip {
	var clips []*scene.AnimationClip
	for ai, anim := range b.doc.Animations {
		var tracks []*scene.Track
		for ci, ch := range anim.Channels {
			t, err := b.buildTrack(anim, ch)
			if err != nil {
				b.res.warnf("animation %d channel %d: %v", ai, ci, err)
				continue
			}
			if t != nil {
				tracks = append(tracks, t)
			}
		}
		if len(tracks) == 0 {
			continue
		}
		name := anim.Name
		if name == "" {
			name = fmt.Sprintf("animation_%d", ai)
		}
		clips = append(clips, scene.NewAnimationClip(name, tracks))
	}
	return clips
}

func (b *gltfBuilder) buildTrack(anim *gltf.Animation, ch *gltf.AnimationChannel) (*scene.Track, error) {
	if ch.Target.Node == nil {
		return nil, nil
	}
	target := b.nodes[*ch.Target.Node]
	if target == nil {
		// Node not part of the displayed scene.
		return nil, nil
	}

	t := &scene.Track{NodeName: target.Name, Target: target}
	switch ch.Target.Path {
	case gltf.TRSTranslation:
		t.Property = scene.TrackPosition
	case gltf.TRSRotation:
		t.Property = scene.TrackRotation
	case gltf.TRSScale:
		t.Property = scene.TrackScale
	default:
		return nil, nil
	}

	if ch.Sampler < 0 || ch.Sampler >= len(anim.Samplers) {
		return nil, fmt.Errorf("sampler %d out of range", ch.Sampler)
	}
	s := anim.Samplers[ch.Sampler]
	if s.Interpolation == gltf.InterpolationStep {
		t.Interpolation = scene.InterpolateStep
	}

	in, err := b.accessor(s.Input)
	if err != nil {
		return nil, err
	}
	raw, err := modeler.ReadAccessor(b.doc, in, nil)
	if err != nil {
		return nil, fmt.Errorf("read times: %w", err)
	}
	times, ok := raw.([]float32)
	if !ok {
		return nil, fmt.Errorf("times have type %T", raw)
	}
	t.Times = make([]float64, len(times))
	for i, v := range times {
		t.Times[i] = float64(v)
	}

	out, err := b.accessor(s.Output)
	if err != nil {
		return nil, err
	}
	raw, err = modeler.ReadAccessor(b.doc, out, nil)
	if err != nil {
		return nil, fmt.Errorf("read values: %w", err)
	}
	var values []float64
	switch v := raw.(type) {
	case [][3]float32:
		for _, e := range v {
			values = append(values, float64(e[0]), float64(e[1]), float64(e[2]))
		}
	case [][4]float32:
		for _, e := range v {
			values = append(values, float64(e[0]), float64(e[1]), float64(e[2]), float64(e[3]))
		}
	default:
		return nil, fmt.Errorf("values have type %T", raw)
	}

	// Cubic spline keys store in-tangent, value, out-tangent; keep the value.
	if s.Interpolation == gltf.InterpolationCubicSpline {
		stride := 3
		if t.Property == scene.TrackRotation {
			stride = 4
		}
		keyed := make([]float64, 0, len(values)/3)
		for k := 0; (k*3+1)*stride+stride <= len(values); k++ {
			at := (k*3 + 1) * stride
			keyed = append(keyed, values[at:at+stride]...)
		}
		values = keyed
	}
	t.Values = values
	return t, nil
}
