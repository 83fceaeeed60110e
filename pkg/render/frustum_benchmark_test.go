package render

import (
	"math"
	"testing"

	"github.com/taigrr/showroom/pkg/math3d"
	"github.com/taigrr/showroom/pkg/scene"
)

// BenchmarkFrustumExtract benchmarks frustum plane extraction from view-projection matrix.
func BenchmarkFrustumExtract(b *testing.B) {
	viewProj := math3d.Perspective(math.Pi/3, 16.0/9.0, 0.1, 100)

	for b.Loop() {
		_ = ExtractFrustum(viewProj)
	}
}

// BenchmarkBoxIntersection benchmarks box vs frustum intersection.
func BenchmarkBoxIntersection(b *testing.B) {
	frustum := ExtractFrustum(math3d.Perspective(math.Pi/3, 16.0/9.0, 0.1, 100))
	visible := math3d.NewBox3(math3d.V3(-1, -1, -15), math3d.V3(1, 1, -5))
	behind := math3d.NewBox3(math3d.V3(-1, -1, 5), math3d.V3(1, 1, 15))

	b.Run("visible", func(b *testing.B) {
		for b.Loop() {
			_ = frustum.IntersectsBox(visible)
		}
	})

	b.Run("culled", func(b *testing.B) {
		for b.Loop() {
			_ = frustum.IntersectsBox(behind)
		}
	})
}

// BenchmarkRenderCubes measures a full frame of many small meshes, most of
// which fall outside the view.
func BenchmarkRenderCubes(b *testing.B) {
	s := testScene()
	geom := cubeGeometry(0.5)
	mat := scene.NewMaterial(scene.StandardMaterial, "bench")
	for x := -10; x <= 10; x++ {
		for z := -10; z <= 10; z++ {
			n := scene.NewMeshNode("cube", scene.NewMesh(geom, mat))
			n.Position = math3d.V3(float64(x)*3, 0, float64(z)*3)
			s.Add(n)
		}
	}

	fb := NewFramebuffer(160, 90)
	cam := NewCamera()
	cam.SetPosition(math3d.V3(0, 3, 8))
	cam.LookAt(math3d.Zero3())
	r := NewRenderer(fb, cam, nil)

	for b.Loop() {
		r.Render(s)
	}
}
