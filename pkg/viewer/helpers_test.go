package viewer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/taigrr/showroom/pkg/math3d"
	"github.com/taigrr/showroom/pkg/models"
	"github.com/taigrr/showroom/pkg/scene"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.LoadDelay = 0
	return cfg
}

// cubeGeometry is an axis-aligned cube of edge size centered on center,
// with 24 vertices (four per face) and 12 indexed triangles.
func cubeGeometry(size float64, center math3d.Vec3) *scene.Geometry {
	h := size / 2
	g := scene.NewGeometry()
	faces := []struct{ n, u, v math3d.Vec3 }{
		{math3d.V3(1, 0, 0), math3d.V3(0, 0, -1), math3d.V3(0, 1, 0)},
		{math3d.V3(-1, 0, 0), math3d.V3(0, 0, 1), math3d.V3(0, 1, 0)},
		{math3d.V3(0, 1, 0), math3d.V3(1, 0, 0), math3d.V3(0, 0, -1)},
		{math3d.V3(0, -1, 0), math3d.V3(1, 0, 0), math3d.V3(0, 0, 1)},
		{math3d.V3(0, 0, 1), math3d.V3(1, 0, 0), math3d.V3(0, 1, 0)},
		{math3d.V3(0, 0, -1), math3d.V3(-1, 0, 0), math3d.V3(0, 1, 0)},
	}
	for _, f := range faces {
		base := uint32(len(g.Positions))
		c := center.Add(f.n.Scale(h))
		for _, s := range [4][2]float64{{-1, -1}, {1, -1}, {1, 1}, {-1, 1}} {
			g.Positions = append(g.Positions, c.Add(f.u.Scale(s[0]*h)).Add(f.v.Scale(s[1]*h)))
			g.Normals = append(g.Normals, f.n)
		}
		g.Index = append(g.Index, base, base+1, base+2, base, base+2, base+3)
	}
	return g
}

// unindexed expands g into a triangle soup.
func unindexed(g *scene.Geometry) *scene.Geometry {
	out := scene.NewGeometry()
	for i := range g.TriangleCount() {
		for _, v := range g.Triangle(i) {
			out.Positions = append(out.Positions, g.Positions[v])
		}
	}
	return out
}

// cubeModel returns a result holding one cube mesh under a group.
func cubeModel(size float64, center math3d.Vec3) *models.Result {
	root := scene.NewNode("cube-root")
	mat := scene.NewMaterial(scene.StandardMaterial, "cube")
	root.Add(scene.NewMeshNode("cube", scene.NewMesh(cubeGeometry(size, center), mat)))
	return &models.Result{Format: models.FormatGLB, Root: root}
}

type countedResource interface {
	ID() uint64
	DisposeCount() int
}

// resources collects every geometry, material and texture under root.
func resources(root *scene.Node) []countedResource {
	var out []countedResource
	seen := make(map[uint64]bool)
	add := func(r countedResource) {
		if !seen[r.ID()] {
			seen[r.ID()] = true
			out = append(out, r)
		}
	}
	root.Traverse(func(n *scene.Node) {
		if n.Mesh == nil {
			return
		}
		if n.Mesh.Geometry != nil {
			add(n.Mesh.Geometry)
		}
		for _, m := range n.Mesh.Materials {
			add(m)
			for _, tex := range m.Textures() {
				add(tex)
			}
		}
	})
	return out
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

const asciiSTL = `solid tri
facet normal 0 0 1
  outer loop
    vertex 10 10 10
    vertex 12 10 10
    vertex 10 14 10
  endloop
endfacet
facet normal 0 0 1
  outer loop
    vertex 12 10 10
    vertex 12 14 10
    vertex 10 14 10
  endloop
endfacet
endsolid tri
`
