package scene

import "github.com/taigrr/showroom/pkg/math3d"

// HemisphereLight blends a sky color and a ground color by surface normal.
type HemisphereLight struct {
	Sky       Color
	Ground    Color
	Intensity float64
}

// DirectionalLight shines from Position toward the origin.
type DirectionalLight struct {
	Name      string
	Color     Color
	Intensity float64
	Position  math3d.Vec3
}

// Direction returns the unit vector pointing from the surface toward the light.
func (l *DirectionalLight) Direction() math3d.Vec3 {
	return l.Position.Normalize()
}

// Fog is linear depth fog between Near and Far.
type Fog struct {
	Color Color
	Near  float64
	Far   float64
}

// Factor returns the fog blend amount at depth d, in 0-1.
func (f *Fog) Factor(d float64) float64 {
	if f == nil || f.Far <= f.Near {
		return 0
	}
	return clamp01((d - f.Near) / (f.Far - f.Near))
}

// Grid is the ground reference grid drawn on the XZ plane.
type Grid struct {
	Size        float64
	Divisions   int
	CenterColor Color
	LineColor   Color
	Y           float64
	Visible     bool
}

// Scene is the root of everything drawn.
type Scene struct {
	Root       *Node
	Background Color
	Fog        *Fog
	Hemisphere *HemisphereLight
	Lights     []*DirectionalLight
	Grid       *Grid
}

// New creates an empty scene with a root node named "Scene".
func New() *Scene {
	return &Scene{Root: NewNode("Scene")}
}

// Add attaches n under the scene root.
func (s *Scene) Add(n *Node) {
	s.Root.Add(n)
}

// Remove detaches n from the scene root.
func (s *Scene) Remove(n *Node) bool {
	return s.Root.Remove(n)
}

// Light returns the directional light with the given name.
func (s *Scene) Light(name string) *DirectionalLight {
	for _, l := range s.Lights {
		if l.Name == name {
			return l
		}
	}
	return nil
}
