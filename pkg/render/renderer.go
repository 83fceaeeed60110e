package render

import (
	"math"

	"github.com/taigrr/showroom/pkg/math3d"
	"github.com/taigrr/showroom/pkg/scene"
)

// FrameStats counts what the last Render call drew.
type FrameStats struct {
	MeshesTested int // Meshes tested against the frustum
	MeshesCulled int // Meshes outside the frustum
	Triangles    int // Triangles submitted for rasterization
}

// Renderer draws a scene.Scene with per-vertex hemisphere and directional
// lighting, diffuse texture maps, linear fog, material sides, wireframe and
// the ground grid.
type Renderer struct {
	Camera   *Camera
	fb       *Framebuffer
	raster   *Rasterizer
	textures *TextureCache
	fallback *scene.Material

	Stats FrameStats
}

// NewRenderer creates a renderer drawing into fb from cam. textures may be
// shared between renderers; nil creates a private cache without a size limit.
func NewRenderer(fb *Framebuffer, cam *Camera, textures *TextureCache) *Renderer {
	if textures == nil {
		textures = NewTextureCache(0)
	}
	raster := NewRasterizer(cam, fb)
	// Facing is resolved per material before rasterization.
	raster.Cull = CullNone
	return &Renderer{
		Camera:   cam,
		fb:       fb,
		raster:   raster,
		textures: textures,
		fallback: scene.NewMaterial(scene.StandardMaterial, "fallback"),
	}
}

// Framebuffer returns the target framebuffer.
func (r *Renderer) Framebuffer() *Framebuffer {
	return r.fb
}

// Resize changes the framebuffer size and the camera aspect ratio.
// pixelAspect is the width/height of one framebuffer pixel on screen.
func (r *Renderer) Resize(width, height int, pixelAspect float64) {
	r.fb.Resize(width, height)
	r.raster.Resize()
	if pixelAspect <= 0 {
		pixelAspect = 1
	}
	r.Camera.SetAspectRatio(float64(r.fb.Width) * pixelAspect / float64(r.fb.Height))
}

// Render clears the framebuffer to the scene background and draws the grid
// and every visible mesh.
func (r *Renderer) Render(s *scene.Scene) {
	r.Stats = FrameStats{}
	r.fb.Clear(FromScene(s.Background))
	r.raster.ClearDepth()
	r.raster.FogColor = FromScene(s.Background)
	if s.Fog != nil {
		r.raster.FogColor = FromScene(s.Fog.Color)
	}

	r.raster.DrawGrid(s.Grid, s.Fog)

	lights := newLighting(s, r.Camera.Position)
	frustum := r.Camera.Frustum()
	maps := make(map[*scene.Material]*Texture)

	s.Root.TraverseVisible(func(n *scene.Node) {
		if n.Mesh == nil || n.Mesh.Geometry == nil {
			return
		}
		world := n.WorldMatrix()
		r.Stats.MeshesTested++
		if !frustum.IntersectsBox(n.Mesh.Geometry.BoundingBox().Transform(world)) {
			r.Stats.MeshesCulled++
			return
		}
		r.drawMesh(n.Mesh, world, s.Fog, lights, maps)
	})
}

func (r *Renderer) drawMesh(mesh *scene.Mesh, world math3d.Mat4, fog *scene.Fog, lights *lighting, maps map[*scene.Material]*Texture) {
	geom := mesh.Geometry
	hasNormals := len(geom.Normals) == len(geom.Positions)
	hasUVs := len(geom.UVs) == len(geom.Positions)
	eye := r.Camera.Position

	for i := range geom.TriangleCount() {
		idx := geom.Triangle(i)
		if idx[0] >= len(geom.Positions) || idx[1] >= len(geom.Positions) || idx[2] >= len(geom.Positions) {
			continue
		}
		mat := mesh.Material(geom.MaterialFor(i))
		if mat == nil {
			mat = r.fallback
		}

		var p [3]math3d.Vec3
		for k := range 3 {
			p[k] = world.MulVec3(geom.Positions[idx[k]])
		}
		face := p[1].Sub(p[0]).Cross(p[2].Sub(p[0]))
		front := face.Dot(eye.Sub(p[0])) >= 0
		switch mat.Side {
		case scene.FrontSide:
			if !front {
				continue
			}
		case scene.BackSide:
			if front {
				continue
			}
		}

		faceNormal := face.Normalize()
		var tri Triangle
		var fogs [3]float64
		for k := range 3 {
			n := faceNormal
			if hasNormals {
				n = world.MulVec3Dir(geom.Normals[idx[k]]).Normalize()
			}
			if !front {
				n = n.Negate()
			}
			fogs[k] = fog.Factor(r.Camera.ViewDepth(p[k]))
			tri.V[k] = Vertex{
				Position: p[k],
				Color:    FromScene(lights.shade(p[k], n, mat)),
				Fog:      fogs[k],
			}
			if hasUVs {
				tri.V[k].UV = geom.UVs[idx[k]]
			}
		}
		r.Stats.Triangles++

		if mat.Wireframe {
			for k := range 3 {
				j := (k + 1) % 3
				r.raster.DrawLine3D(p[k], p[j], tri.V[k].Color, fogs[k], fogs[j])
			}
			continue
		}
		var tex *Texture
		if hasUVs {
			tex = r.diffuseMap(mat, maps)
		}
		r.raster.DrawTriangle(tri, tex)
	}
}

func (r *Renderer) diffuseMap(mat *scene.Material, maps map[*scene.Material]*Texture) *Texture {
	if tex, ok := maps[mat]; ok {
		return tex
	}
	tex := r.textures.Get(mat.Map(scene.SlotMap))
	maps[mat] = tex
	return tex
}

// lighting holds the scene lights resolved for one frame.
type lighting struct {
	eye        math3d.Vec3
	hemisphere *scene.HemisphereLight
	dirs       []resolvedLight
}

type resolvedLight struct {
	dir      math3d.Vec3
	radiance scene.Color
}

func newLighting(s *scene.Scene, eye math3d.Vec3) *lighting {
	l := &lighting{eye: eye, hemisphere: s.Hemisphere}
	for _, d := range s.Lights {
		if d == nil || d.Intensity <= 0 {
			continue
		}
		l.dirs = append(l.dirs, resolvedLight{dir: d.Direction(), radiance: d.Color.Scale(d.Intensity)})
	}
	return l
}

var dielectricSpecular = scene.Color{R: 0.04, G: 0.04, B: 0.04}

// shade returns the lit color of material m at world point p with unit
// normal n: hemisphere ambient plus Lambert diffuse and Blinn-Phong specular
// per directional light, plus emission.
func (l *lighting) shade(p, n math3d.Vec3, m *scene.Material) scene.Color {
	if m.Kind == scene.BasicMaterial {
		return m.Color
	}

	var diffuse, specular scene.Color
	var shininess float64
	switch m.Kind {
	case scene.PhongMaterial:
		diffuse = m.Color
		specular = scene.Color{R: 0.07, G: 0.07, B: 0.07}
		shininess = math.Max(m.Shininess, 1)
	default:
		diffuse = m.Color.Scale(1 - 0.5*m.Metalness)
		specular = dielectricSpecular.Lerp(m.Color, m.Metalness)
		rough := math.Max(m.Roughness, 0.05)
		shininess = 2/(rough*rough*rough*rough) - 2
	}

	var ambient scene.Color
	if h := l.hemisphere; h != nil {
		ambient = h.Ground.Lerp(h.Sky, n.Y*0.5+0.5).Scale(h.Intensity)
	}

	view := l.eye.Sub(p).Normalize()
	out := diffuse.Mul(ambient)
	for _, d := range l.dirs {
		ndl := n.Dot(d.dir)
		if ndl <= 0 {
			continue
		}
		out = out.Add(diffuse.Mul(d.radiance).Scale(ndl))
		half := d.dir.Add(view).Normalize()
		if ndh := n.Dot(half); ndh > 0 {
			out = out.Add(specular.Mul(d.radiance).Scale(math.Pow(ndh, shininess) * ndl))
		}
	}
	return out.Add(m.Emissive)
}
