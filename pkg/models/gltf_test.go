package models

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"path/filepath"
	"testing"

	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"

	"github.com/taigrr/showroom/pkg/math3d"
	"github.com/taigrr/showroom/pkg/scene"
)

// cubeDoc returns a document with count nodes instancing one cube mesh that
// uses a single red material.
func cubeDoc(count int) *gltf.Document {
	pos, idx := cube()
	doc := gltf.NewDocument()
	doc.Materials = []*gltf.Material{{
		Name: "red",
		PBRMetallicRoughness: &gltf.PBRMetallicRoughness{
			BaseColorFactor: &[4]float64{1, 0, 0, 1},
			MetallicFactor:  gltf.Float(0.25),
		},
	}}
	doc.Meshes = []*gltf.Mesh{{
		Name: "Cube",
		Primitives: []*gltf.Primitive{{
			Indices:    gltf.Index(modeler.WriteIndices(doc, idx)),
			Attributes: map[string]int{gltf.POSITION: modeler.WritePosition(doc, pos)},
			Material:   gltf.Index(0),
		}},
	}}
	for i := range count {
		doc.Nodes = append(doc.Nodes, &gltf.Node{
			Name:        "Cube" + string(rune('A'+i)),
			Mesh:        gltf.Index(0),
			Translation: [3]float64{float64(i) * 3, 0, 0},
			Rotation:    [4]float64{0, 0, 0, 1},
			Scale:       [3]float64{1, 1, 1},
		})
		doc.Scenes[0].Nodes = append(doc.Scenes[0].Nodes, i)
	}
	return doc
}

func saveGLB(t *testing.T, doc *gltf.Document, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := gltf.SaveBinary(doc, path); err != nil {
		t.Fatalf("save glb: %v", err)
	}
	return path
}

func saveCubeGLB(t *testing.T, count int) string {
	t.Helper()
	return saveGLB(t, cubeDoc(count), "cubes.glb")
}

func TestGLTFLoaderSharedMaterial(t *testing.T) {
	path := saveCubeGLB(t, 5)
	var progressed bool
	res, err := Load(context.Background(), path, func(loaded, total int64) { progressed = true })
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !progressed {
		t.Error("progress callback never ran")
	}
	if res.Format != FormatGLB {
		t.Errorf("Format = %q", res.Format)
	}

	mats := map[*scene.Material]bool{}
	triangles := 0
	res.Root.Traverse(func(n *scene.Node) {
		if n.Mesh == nil {
			return
		}
		triangles += n.Mesh.Geometry.TriangleCount()
		for _, m := range n.Mesh.Materials {
			mats[m] = true
		}
	})
	if triangles != 60 {
		t.Errorf("triangles = %d, want 60", triangles)
	}
	if len(mats) != 1 {
		t.Fatalf("distinct materials = %d, want 1", len(mats))
	}
	for m := range mats {
		if m.Color != (scene.Color{R: 1}) || m.Metalness != 0.25 || m.Kind != scene.StandardMaterial {
			t.Errorf("material = %v metal %v kind %s", m.Color, m.Metalness, m.Kind)
		}
	}

	last := res.Root.FindByName("CubeE")
	if last == nil || last.Position != math3d.V3(12, 0, 0) {
		t.Fatalf("CubeE = %+v", last)
	}
	if n := last.Mesh.Geometry; len(n.Normals) != n.VertexCount() {
		t.Error("missing normals should be computed")
	}
	box := res.Root.WorldBox()
	if !box.Min.ApproxEqual(math3d.V3(-0.5, -0.5, -0.5), 1e-6) || !box.Max.ApproxEqual(math3d.V3(12.5, 0.5, 0.5), 1e-6) {
		t.Errorf("world box = %v", box)
	}
}

func TestGLTFLoaderNoGeometry(t *testing.T) {
	doc := gltf.NewDocument()
	doc.Nodes = []*gltf.Node{{Name: "Empty"}}
	doc.Scenes[0].Nodes = []int{0}
	path := filepath.Join(t.TempDir(), "empty.glb")
	if err := gltf.SaveBinary(doc, path); err != nil {
		t.Fatalf("save glb: %v", err)
	}

	_, err := NewGLTFLoader().Load(context.Background(), path, nil)
	if !errors.Is(err, ErrNoGeometry) {
		t.Errorf("err = %v, want ErrNoGeometry", err)
	}
}

func TestGLTFLoaderCorrupt(t *testing.T) {
	path := writeTemp(t, "broken.glb", []byte("glTF\x02\x00\x00\x00garbage"))
	if _, err := NewGLTFLoader().Load(context.Background(), path, nil); err == nil {
		t.Error("expected error for corrupt glb")
	}
}

func TestSetNodeTransformMatrix(t *testing.T) {
	want := math3d.Compose(math3d.V3(1, 2, 3), math3d.QuatFromAxisAngle(math3d.Up(), 0.5), math3d.V3(2, 2, 2))
	n := scene.NewNode("m")
	setNodeTransform(n, &gltf.Node{Matrix: [16]float64(want)})

	p := math3d.V3(0.5, -1, 2)
	if !n.LocalMatrix().MulVec3(p).ApproxEqual(want.MulVec3(p), 1e-9) {
		t.Errorf("decomposed transform differs: %v vs %v", n.LocalMatrix().MulVec3(p), want.MulVec3(p))
	}
}

func TestDecodeDataURI(t *testing.T) {
	data, err := decodeDataURI("data:application/octet-stream;base64,AQID")
	if err != nil || len(data) != 3 || data[2] != 3 {
		t.Errorf("decodeDataURI = %v, %v", data, err)
	}
	if _, err := decodeDataURI("data:text/plain,hello"); err == nil {
		t.Error("non-base64 data uri should fail")
	}
}

// addSlide animates node 0 along X with one sampler of the given
// interpolation. Cubic spline output carries in-tangent, value and out-tangent
// per key.
func addSlide(doc *gltf.Document, interp gltf.Interpolation) {
	times := []float32{0, 1, 2}
	values := [][3]float32{{0, 0, 0}, {1, 0, 0}, {2, 0, 0}}
	if interp == gltf.InterpolationCubicSpline {
		values = [][3]float32{
			{9, 9, 9}, {0, 0, 0}, {9, 9, 9},
			{9, 9, 9}, {1, 0, 0}, {9, 9, 9},
			{9, 9, 9}, {2, 0, 0}, {9, 9, 9},
		}
	}
	doc.Animations = append(doc.Animations, &gltf.Animation{
		Name: "slide",
		Samplers: []*gltf.AnimationSampler{{
			Input:         modeler.WriteAccessor(doc, gltf.TargetNone, times),
			Output:        modeler.WriteAccessor(doc, gltf.TargetNone, values),
			Interpolation: interp,
		}},
		Channels: []*gltf.AnimationChannel{{
			Sampler: 0,
			Target:  gltf.AnimationChannelTarget{Node: gltf.Index(0), Path: gltf.TRSTranslation},
		}},
	})
}

func TestGLTFLoaderAnimation(t *testing.T) {
	tests := []struct {
		name   string
		interp gltf.Interpolation
		want   scene.Interpolation
	}{
		{"linear", gltf.InterpolationLinear, scene.InterpolateLinear},
		{"step", gltf.InterpolationStep, scene.InterpolateStep},
		{"cubic spline", gltf.InterpolationCubicSpline, scene.InterpolateLinear},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			doc := cubeDoc(1)
			addSlide(doc, tc.interp)
			res, err := NewGLTFLoader().Load(context.Background(), saveGLB(t, doc, "slide.glb"), nil)
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			defer res.Dispose()

			if len(res.Animations) != 1 {
				t.Fatalf("clips = %d, want 1", len(res.Animations))
			}
			clip := res.Animations[0]
			if clip.Name != "slide" || clip.Duration != 2 || len(clip.Tracks) != 1 {
				t.Fatalf("clip = %s duration %v tracks %d", clip.Name, clip.Duration, len(clip.Tracks))
			}
			track := clip.Tracks[0]
			if track.Property != scene.TrackPosition || track.Interpolation != tc.want {
				t.Errorf("track property %v interpolation %v", track.Property, track.Interpolation)
			}
			if track.Target != res.Root.FindByName("CubeA") {
				t.Error("track should target CubeA")
			}
			wantValues := []float64{0, 0, 0, 1, 0, 0, 2, 0, 0}
			if len(track.Values) != len(wantValues) {
				t.Fatalf("values = %v", track.Values)
			}
			for i, v := range wantValues {
				if track.Values[i] != v {
					t.Fatalf("values = %v, want %v", track.Values, wantValues)
				}
			}
		})
	}
}

func TestGLTFLoaderEmbeddedTexture(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(1, 1, color.RGBA{0, 255, 0, 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}

	doc := cubeDoc(1)
	src, err := modeler.WriteImage(doc, "albedo", "image/png", &buf)
	if err != nil {
		t.Fatal(err)
	}
	doc.Textures = []*gltf.Texture{{Source: gltf.Index(src)}}
	doc.Materials[0].PBRMetallicRoughness.BaseColorTexture = &gltf.TextureInfo{Index: 0}

	res, err := NewGLTFLoader().Load(context.Background(), saveGLB(t, doc, "textured.glb"), nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	defer res.Dispose()
	if len(res.Warnings) != 0 {
		t.Errorf("warnings = %v", res.Warnings)
	}

	mesh := res.Root.FindByName("CubeA").Mesh
	tex := mesh.Materials[0].Map(scene.SlotMap)
	if tex == nil || tex.Image() == nil {
		t.Fatal("base color map should be decoded")
	}
	if got := tex.Image().Bounds().Dx(); got != 2 {
		t.Errorf("texture width = %d", got)
	}
}
