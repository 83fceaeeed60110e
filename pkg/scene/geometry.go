package scene

import (
	"github.com/taigrr/showroom/pkg/math3d"
)

// Group is a range of the draw order rendered with one material of a
// multi-material mesh.
type Group struct {
	Start         int // first index (or vertex when non-indexed)
	Count         int
	MaterialIndex int
}

// Geometry holds vertex attributes and an optional index buffer.
//
// Non-indexed geometry draws Positions as consecutive triangles.
type Geometry struct {
	resource

	Positions []math3d.Vec3
	Normals   []math3d.Vec3 // optional, same length as Positions
	UVs       []math3d.Vec2 // optional, same length as Positions; (0,0) is the image top-left
	Index     []uint32      // nil for non-indexed geometry
	Groups    []Group
}

// NewGeometry creates an empty geometry.
func NewGeometry() *Geometry {
	return &Geometry{resource: newResource()}
}

// VertexCount returns the number of entries in the position attribute.
func (g *Geometry) VertexCount() int {
	return len(g.Positions)
}

// Indexed reports whether the geometry has an index buffer.
func (g *Geometry) Indexed() bool {
	return g.Index != nil
}

// TriangleCount returns index count / 3 for indexed geometry, and vertex
// count / 3 otherwise.
func (g *Geometry) TriangleCount() int {
	if g.Indexed() {
		return len(g.Index) / 3
	}
	return len(g.Positions) / 3
}

// Triangle returns the three vertex indices of triangle i.
func (g *Geometry) Triangle(i int) [3]int {
	if g.Indexed() {
		return [3]int{int(g.Index[i*3]), int(g.Index[i*3+1]), int(g.Index[i*3+2])}
	}
	return [3]int{i * 3, i*3 + 1, i*3 + 2}
}

// BoundingBox returns the box around all positions.
func (g *Geometry) BoundingBox() math3d.Box3 {
	box := math3d.EmptyBox()
	for _, p := range g.Positions {
		box = box.ExpandByPoint(p)
	}
	return box
}

// Center translates the positions so the bounding box is centered on the
// origin and returns the applied offset.
func (g *Geometry) Center() math3d.Vec3 {
	offset := g.BoundingBox().Center().Negate()
	for i := range g.Positions {
		g.Positions[i] = g.Positions[i].Add(offset)
	}
	return offset
}

// ComputeNormals fills Normals with area-weighted averaged face normals.
func (g *Geometry) ComputeNormals() {
	g.Normals = make([]math3d.Vec3, len(g.Positions))
	for i := range g.TriangleCount() {
		tri := g.Triangle(i)
		p0, p1, p2 := g.Positions[tri[0]], g.Positions[tri[1]], g.Positions[tri[2]]
		n := p1.Sub(p0).Cross(p2.Sub(p0))
		for _, v := range tri {
			g.Normals[v] = g.Normals[v].Add(n)
		}
	}
	for i := range g.Normals {
		g.Normals[i] = g.Normals[i].Normalize()
	}
}

// MaterialFor returns the material index used by triangle i.
func (g *Geometry) MaterialFor(tri int) int {
	if len(g.Groups) == 0 {
		return 0
	}
	at := tri * 3
	for _, grp := range g.Groups {
		if at >= grp.Start && at < grp.Start+grp.Count {
			return grp.MaterialIndex
		}
	}
	return -1
}

// Dispose releases renderer-side data derived from this geometry.
func (g *Geometry) Dispose() {
	g.release()
}
