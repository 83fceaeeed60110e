package render

import (
	"math"

	"github.com/taigrr/showroom/pkg/math3d"
)

// Vertex represents a vertex with all attributes needed for rasterization.
type Vertex struct {
	Position math3d.Vec3 // World position
	UV       math3d.Vec2 // Texture coordinates
	Color    Color       // Lit vertex color
	Fog      float64     // Fog blend amount, 0-1
}

// Triangle represents a triangle to be rasterized.
type Triangle struct {
	V [3]Vertex
}

// CullMode selects which screen-space winding is discarded.
type CullMode int

const (
	CullNone  CullMode = iota // Draw both windings
	CullBack                  // Discard clockwise (back-facing) triangles
	CullFront                 // Discard counter-clockwise triangles
)

// Rasterizer handles software triangle and line rasterization with a
// depth buffer.
type Rasterizer struct {
	camera   *Camera
	fb       *Framebuffer
	zbuffer  []float64 // Depth buffer (1D array, row-major)
	Cull     CullMode
	FogColor Color
}

// NewRasterizer creates a new rasterizer.
func NewRasterizer(camera *Camera, fb *Framebuffer) *Rasterizer {
	r := &Rasterizer{
		camera: camera,
		fb:     fb,
		Cull:   CullBack,
	}
	r.Resize()
	return r
}

// Resize resizes the depth buffer to match the framebuffer.
func (r *Rasterizer) Resize() {
	if r.fb == nil {
		r.zbuffer = nil
		return
	}
	n := r.fb.Width * r.fb.Height
	if cap(r.zbuffer) >= n {
		r.zbuffer = r.zbuffer[:n]
		return
	}
	r.zbuffer = make([]float64, n)
}

// Width returns the framebuffer width.
func (r *Rasterizer) Width() int {
	if r.fb == nil {
		return 0
	}
	return r.fb.Width
}

// Height returns the framebuffer height.
func (r *Rasterizer) Height() int {
	if r.fb == nil {
		return 0
	}
	return r.fb.Height
}

// ClearDepth clears the Z-buffer (call before each frame).
func (r *Rasterizer) ClearDepth() {
	// Use copy-doubling for faster clearing
	n := len(r.zbuffer)
	if n == 0 {
		return
	}
	r.zbuffer[0] = math.MaxFloat64
	for i := 1; i < n; i *= 2 {
		copy(r.zbuffer[i:], r.zbuffer[:i])
	}
}

// getDepth returns the depth at (x, y).
func (r *Rasterizer) getDepth(x, y int) float64 {
	if x < 0 || x >= r.Width() || y < 0 || y >= r.Height() {
		return math.MaxFloat64
	}
	return r.zbuffer[y*r.Width()+x]
}

// clipVertex is a vertex in homogeneous clip space with its attributes.
type clipVertex struct {
	pos     math3d.Vec4
	uv      math3d.Vec2
	r, g, b float64
	fog     float64
}

func (a clipVertex) lerp(b clipVertex, t float64) clipVertex {
	l := func(x, y float64) float64 { return x + (y-x)*t }
	return clipVertex{
		pos: math3d.Vec4{X: l(a.pos.X, b.pos.X), Y: l(a.pos.Y, b.pos.Y), Z: l(a.pos.Z, b.pos.Z), W: l(a.pos.W, b.pos.W)},
		uv:  math3d.V2(l(a.uv.X, b.uv.X), l(a.uv.Y, b.uv.Y)),
		r:   l(a.r, b.r),
		g:   l(a.g, b.g),
		b:   l(a.b, b.b),
		fog: l(a.fog, b.fog),
	}
}

// nearDist is the signed distance to the near plane in clip space (z >= -w).
func (a clipVertex) nearDist() float64 {
	return a.pos.Z + a.pos.W
}

// screenVertex holds a vertex transformed to screen space.
type screenVertex struct {
	X, Y    float64 // Screen coordinates
	Z       float64 // NDC depth
	InvW    float64 // 1/w for perspective-correct interpolation
	U, V    float64 // UV divided by w
	R, G, B float64 // Color divided by w
	Fog     float64 // Fog divided by w
}

// clipNear clips a polygon against the near plane (Sutherland-Hodgman).
func clipNear(in []clipVertex, out []clipVertex) []clipVertex {
	out = out[:0]
	for i := range in {
		a, b := in[i], in[(i+1)%len(in)]
		da, db := a.nearDist(), b.nearDist()
		if da >= 0 {
			out = append(out, a)
		}
		if (da >= 0) != (db >= 0) {
			out = append(out, a.lerp(b, da/(da-db)))
		}
	}
	return out
}

// DrawTriangle rasterizes a Gouraud-shaded triangle, modulated by tex when
// tex is non-nil. Triangles crossing the near plane are clipped.
func (r *Rasterizer) DrawTriangle(tri Triangle, tex *Texture) {
	if r.fb == nil {
		return
	}
	viewProj := r.camera.ViewProjectionMatrix()

	var poly [3]clipVertex
	inside := 0
	for i := range 3 {
		v := tri.V[i]
		poly[i] = clipVertex{
			pos: viewProj.MulVec4(math3d.V4FromV3(v.Position, 1)),
			uv:  v.UV,
			r:   float64(v.Color.R),
			g:   float64(v.Color.G),
			b:   float64(v.Color.B),
			fog: v.Fog,
		}
		if poly[i].nearDist() >= 0 {
			inside++
		}
	}

	switch inside {
	case 0:
		return
	case 3:
		r.rasterize(poly[0], poly[1], poly[2], tex)
	default:
		var buf [4]clipVertex
		clipped := clipNear(poly[:], buf[:0])
		for i := 1; i+1 < len(clipped); i++ {
			r.rasterize(clipped[0], clipped[i], clipped[i+1], tex)
		}
	}
}

func (r *Rasterizer) toScreen(c clipVertex) screenVertex {
	w := c.pos.W
	if w <= 1e-9 {
		w = 1e-9
	}
	invW := 1 / w
	return screenVertex{
		X:    (c.pos.X*invW + 1) * 0.5 * float64(r.Width()),
		Y:    (1 - c.pos.Y*invW) * 0.5 * float64(r.Height()), // Y is flipped
		Z:    c.pos.Z * invW,
		InvW: invW,
		U:    c.uv.X * invW,
		V:    c.uv.Y * invW,
		R:    c.r * invW,
		G:    c.g * invW,
		B:    c.b * invW,
		Fog:  c.fog * invW,
	}
}

// edgeCoeffs returns A, B, C for the edge function A*x + B*y + C, which is
// positive to the left of the edge from (x0, y0) to (x1, y1).
func edgeCoeffs(x0, y0, x1, y1 float64) (A, B, C float64) {
	A = y0 - y1
	B = x1 - x0
	C = x0*y1 - x1*y0
	return
}

// rasterize fills one clipped triangle using edge functions with
// incremental updates.
func (r *Rasterizer) rasterize(c0, c1, c2 clipVertex, tex *Texture) {
	sv := [3]screenVertex{r.toScreen(c0), r.toScreen(c1), r.toScreen(c2)}

	// Screen Y points down, so counter-clockwise world faces have a
	// negative signed area here.
	area2 := (sv[1].X-sv[0].X)*(sv[2].Y-sv[0].Y) - (sv[1].Y-sv[0].Y)*(sv[2].X-sv[0].X)
	if area2 == 0 || math.IsNaN(area2) {
		return
	}
	switch r.Cull {
	case CullBack:
		if area2 > 0 {
			return
		}
	case CullFront:
		if area2 < 0 {
			return
		}
	}
	if area2 < 0 {
		sv[1], sv[2] = sv[2], sv[1]
		area2 = -area2
	}

	width, height := r.Width(), r.Height()
	minX := int(math.Max(0, math.Floor(min3(sv[0].X, sv[1].X, sv[2].X))))
	maxX := int(math.Min(float64(width-1), math.Ceil(max3(sv[0].X, sv[1].X, sv[2].X))))
	minY := int(math.Max(0, math.Floor(min3(sv[0].Y, sv[1].Y, sv[2].Y))))
	maxY := int(math.Min(float64(height-1), math.Ceil(max3(sv[0].Y, sv[1].Y, sv[2].Y))))
	if minX > maxX || minY > maxY {
		return
	}

	// Edge 0: v1 -> v2, Edge 1: v2 -> v0, Edge 2: v0 -> v1
	A0, B0, C0 := edgeCoeffs(sv[1].X, sv[1].Y, sv[2].X, sv[2].Y)
	A1, B1, C1 := edgeCoeffs(sv[2].X, sv[2].Y, sv[0].X, sv[0].Y)
	A2, B2, C2 := edgeCoeffs(sv[0].X, sv[0].Y, sv[1].X, sv[1].Y)
	invArea := 1.0 / area2

	px := float64(minX) + 0.5
	py := float64(minY) + 0.5
	w0Row := A0*px + B0*py + C0
	w1Row := A1*px + B1*py + C1
	w2Row := A2*px + B2*py + C2

	fogR, fogG, fogB := float64(r.FogColor.R), float64(r.FogColor.G), float64(r.FogColor.B)
	zbuffer := r.zbuffer
	pixels := r.fb.Pixels

	for y := minY; y <= maxY; y++ {
		w0, w1, w2 := w0Row, w1Row, w2Row
		rowOffset := y * width

		for x := minX; x <= maxX; x++ {
			if w0 >= 0 && w1 >= 0 && w2 >= 0 {
				bc0, bc1, bc2 := w0*invArea, w1*invArea, w2*invArea
				z := bc0*sv[0].Z + bc1*sv[1].Z + bc2*sv[2].Z

				idx := rowOffset + x
				if z < zbuffer[idx] && z <= 1 {
					// Perspective-correct weights
					norm := 1 / (bc0*sv[0].InvW + bc1*sv[1].InvW + bc2*sv[2].InvW)
					q0, q1, q2 := bc0*norm, bc1*norm, bc2*norm

					cr := q0*sv[0].R + q1*sv[1].R + q2*sv[2].R
					cg := q0*sv[0].G + q1*sv[1].G + q2*sv[2].G
					cb := q0*sv[0].B + q1*sv[1].B + q2*sv[2].B

					visible := true
					if tex != nil {
						u := q0*sv[0].U + q1*sv[1].U + q2*sv[2].U
						v := q0*sv[0].V + q1*sv[1].V + q2*sv[2].V
						texel := tex.Sample(u, v)
						// Fully transparent texels are cut out.
						visible = texel.A >= 8
						cr = cr * float64(texel.R) / 255
						cg = cg * float64(texel.G) / 255
						cb = cb * float64(texel.B) / 255
					}

					if fog := q0*sv[0].Fog + q1*sv[1].Fog + q2*sv[2].Fog; fog > 0 {
						cr += (fogR - cr) * fog
						cg += (fogG - cg) * fog
						cb += (fogB - cb) * fog
					}

					if visible {
						zbuffer[idx] = z
						pixels[idx] = Color{R: clamp8(cr), G: clamp8(cg), B: clamp8(cb), A: 255}
					}
				}
			}
			w0 += A0
			w1 += A1
			w2 += A2
		}

		w0Row += B0
		w1Row += B1
		w2Row += B2
	}
}

func clamp8(v float64) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v + 0.5)
}

func min3(a, b, c float64) float64 {
	return math.Min(a, math.Min(b, c))
}

func max3(a, b, c float64) float64 {
	return math.Max(a, math.Max(b, c))
}
