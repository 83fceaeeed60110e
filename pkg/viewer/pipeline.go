package viewer

import (
	"math"

	"github.com/taigrr/showroom/pkg/math3d"
	"github.com/taigrr/showroom/pkg/models"
	"github.com/taigrr/showroom/pkg/scene"
)

// Stats summarizes a loaded model for display.
type Stats struct {
	Vertices  int `json:"vertices"`
	Triangles int `json:"triangles"`
	Materials int `json:"materials"`
	Textures  int `json:"textures"`
}

// statSlots are the texture slots counted by ComputeStats.
var statSlots = []scene.TextureSlot{
	scene.SlotMap,
	scene.SlotNormalMap,
	scene.SlotRoughnessMap,
	scene.SlotMetalnessMap,
}

// ComputeStats walks every mesh under root. Materials and textures are
// counted by identity, so shared ones count once.
func ComputeStats(root *scene.Node) Stats {
	var st Stats
	if root == nil {
		return st
	}
	materials := make(map[uint64]struct{})
	textures := make(map[uint64]struct{})

	root.Traverse(func(n *scene.Node) {
		if n.Mesh == nil {
			return
		}
		if g := n.Mesh.Geometry; g != nil {
			st.Vertices += g.VertexCount()
			st.Triangles += g.TriangleCount()
		}
		for _, m := range n.Mesh.Materials {
			if m == nil {
				continue
			}
			materials[m.ID()] = struct{}{}
			for _, slot := range statSlots {
				if tex := m.Map(slot); tex != nil {
					textures[tex.ID()] = struct{}{}
				}
			}
		}
	})
	st.Materials = len(materials)
	st.Textures = len(textures)
	return st
}

// Frame is where the camera sits after auto-framing a model.
type Frame struct {
	Position math3d.Vec3 `json:"position"`
	Target   math3d.Vec3 `json:"target"`
	Distance float64     `json:"distance"`
	FogNear  float64     `json:"fogNear"`
	FogFar   float64     `json:"fogFar"`
}

// FrameBox frames a model whose grounded bounding box has the given size.
// The distance fits the largest dimension in the vertical field of view,
// times FrameMargin. Empty or zero-size boxes use MinFrameDistance.
func (c Config) FrameBox(box math3d.Box3) Frame {
	var size math3d.Vec3
	if !box.IsEmpty() {
		size = box.Size()
	}
	maxDim := size.MaxComponent()
	fov := c.FOV * math.Pi / 180

	dist := math.Abs(maxDim/2/math.Tan(fov/2)) * c.FrameMargin
	if maxDim <= 0 || math.IsNaN(dist) || math.IsInf(dist, 0) {
		dist = c.MinFrameDistance
	}
	return Frame{
		Position: c.frameDirection().Scale(dist),
		Target:   math3d.V3(0, size.Y/2, 0),
		Distance: dist,
		FogNear:  dist * c.FogNearFactor,
		FogFar:   dist * c.FogFarFactor,
	}
}

// modelRoot returns the node the pipeline attaches for res. Bare STL
// geometry is centered and wrapped in a group holding one mesh with the
// configured material.
func (c Config) modelRoot(res *models.Result) *scene.Node {
	if res.Root != nil {
		return res.Root
	}
	res.Geometry.Center()
	mat := scene.NewMaterial(scene.StandardMaterial, "stl")
	mat.Color = c.STLMaterial.Color
	mat.Roughness = c.STLMaterial.Roughness
	mat.Metalness = c.STLMaterial.Metalness

	group := scene.NewNode("")
	group.Add(scene.NewMeshNode("mesh", scene.NewMesh(res.Geometry, mat)))
	return group
}

// normalizeMaterials makes every material double sided and solid. With
// UntexturedDefaults, standard materials without a diffuse map get the
// configured roughness and metalness.
func (c Config) normalizeMaterials(root *scene.Node) {
	seen := make(map[uint64]bool)
	root.Traverse(func(n *scene.Node) {
		if n.Mesh == nil {
			return
		}
		for _, m := range n.Mesh.Materials {
			if m == nil || seen[m.ID()] {
				continue
			}
			seen[m.ID()] = true
			m.Side = scene.DoubleSide
			m.Wireframe = false
			if c.UntexturedDefaults && m.Kind == scene.StandardMaterial && m.Map(scene.SlotMap) == nil {
				m.Roughness = c.UntexturedRoughness
				m.Metalness = c.UntexturedMetalness
			}
		}
	})
}

// place centers root on its bounding box and hangs it from a new pivot
// lifted by half the box height, so the model rests on y = 0 with its
// center above the origin. It returns the pivot and the box in the pivot
// frame.
func place(root *scene.Node) (*scene.Node, math3d.Box3) {
	box := root.WorldBox()
	pivot := scene.NewNode(PivotName)
	if box.IsEmpty() {
		pivot.Add(root)
		return pivot, box
	}
	center, size := box.Center(), box.Size()
	root.Position = root.Position.Sub(center)
	pivot.Position = math3d.V3(0, size.Y/2, 0)
	pivot.Add(root)
	return pivot, math3d.NewBox3(
		math3d.V3(-size.X/2, 0, -size.Z/2),
		math3d.V3(size.X/2, size.Y, size.Z/2),
	)
}

// setWireframe toggles wireframe on every material under root.
func setWireframe(root *scene.Node, on bool) {
	root.Traverse(func(n *scene.Node) {
		if n.Mesh == nil {
			return
		}
		for _, m := range n.Mesh.Materials {
			if m != nil {
				m.Wireframe = on
			}
		}
	})
}
