package scene

import (
	"slices"

	"github.com/taigrr/showroom/pkg/math3d"
)

// Mesh is the renderable payload of a leaf node.
type Mesh struct {
	Geometry  *Geometry
	Materials []*Material // indexed by Geometry group material index
}

// NewMesh creates a mesh with one or more materials.
func NewMesh(geom *Geometry, materials ...*Material) *Mesh {
	return &Mesh{Geometry: geom, Materials: materials}
}

// Material returns material i, falling back to the first material.
func (m *Mesh) Material(i int) *Material {
	if i >= 0 && i < len(m.Materials) {
		return m.Materials[i]
	}
	if len(m.Materials) > 0 {
		return m.Materials[0]
	}
	return nil
}

// Node is a transform in the scene graph. Nodes with a Mesh are drawable.
type Node struct {
	ID       uint64
	Name     string
	Position math3d.Vec3
	Rotation math3d.Quat
	Scale    math3d.Vec3
	Visible  bool

	Mesh       *Mesh
	Animations []*AnimationClip

	parent   *Node
	children []*Node
}

// NewNode creates an empty transform node.
func NewNode(name string) *Node {
	return &Node{
		ID:       NewID(),
		Name:     name,
		Rotation: math3d.IdentityQuat(),
		Scale:    math3d.One3(),
		Visible:  true,
	}
}

// NewMeshNode creates a node holding mesh.
func NewMeshNode(name string, mesh *Mesh) *Node {
	n := NewNode(name)
	n.Mesh = mesh
	return n
}

// Parent returns the parent node, or nil for a root.
func (n *Node) Parent() *Node {
	return n.parent
}

// Children returns the direct children. The slice must not be modified.
func (n *Node) Children() []*Node {
	return n.children
}

// Add attaches child to n, detaching it from any previous parent.
func (n *Node) Add(child *Node) {
	if child == nil || child == n {
		return
	}
	if child.parent != nil {
		child.parent.Remove(child)
	}
	child.parent = n
	n.children = append(n.children, child)
}

// Remove detaches child from n. It reports whether child was attached.
func (n *Node) Remove(child *Node) bool {
	i := slices.Index(n.children, child)
	if i < 0 {
		return false
	}
	n.children = slices.Delete(n.children, i, i+1)
	child.parent = nil
	return true
}

// Traverse calls fn for n and every descendant, depth first.
func (n *Node) Traverse(fn func(*Node)) {
	fn(n)
	for _, c := range n.children {
		c.Traverse(fn)
	}
}

// TraverseVisible is Traverse restricted to visible subtrees.
func (n *Node) TraverseVisible(fn func(*Node)) {
	if !n.Visible {
		return
	}
	fn(n)
	for _, c := range n.children {
		c.TraverseVisible(fn)
	}
}

// FindByName returns the first node named name in depth-first order.
func (n *Node) FindByName(name string) *Node {
	if n.Name == name {
		return n
	}
	for _, c := range n.children {
		if found := c.FindByName(name); found != nil {
			return found
		}
	}
	return nil
}

// LocalMatrix composes position, rotation and scale.
func (n *Node) LocalMatrix() math3d.Mat4 {
	return math3d.Compose(n.Position, n.Rotation, n.Scale)
}

// WorldMatrix composes the local matrices from the root down to n.
func (n *Node) WorldMatrix() math3d.Mat4 {
	if n.parent == nil {
		return n.LocalMatrix()
	}
	return n.parent.WorldMatrix().Mul(n.LocalMatrix())
}

// WorldBox returns the world-space bounding box of every mesh under n,
// including n's own transform and those of its ancestors.
func (n *Node) WorldBox() math3d.Box3 {
	var parent math3d.Mat4
	if n.parent != nil {
		parent = n.parent.WorldMatrix()
	} else {
		parent = math3d.Identity()
	}
	return n.boxUnder(parent)
}

func (n *Node) boxUnder(parent math3d.Mat4) math3d.Box3 {
	world := parent.Mul(n.LocalMatrix())
	box := math3d.EmptyBox()
	if n.Mesh != nil && n.Mesh.Geometry != nil {
		for _, p := range n.Mesh.Geometry.Positions {
			box = box.ExpandByPoint(world.MulVec3(p))
		}
	}
	for _, c := range n.children {
		box = box.Union(c.boxUnder(world))
	}
	return box
}
