package render

import (
	"math"

	"github.com/taigrr/showroom/pkg/math3d"
	"github.com/taigrr/showroom/pkg/scene"
)

// lineDepthBias lets lines drawn over coplanar faces win the depth test.
const lineDepthBias = 1e-5

// DrawLine3D draws a depth-tested line between two world points. Segments
// crossing the near plane are clipped. fog0 and fog1 are the fog amounts at
// each end.
func (r *Rasterizer) DrawLine3D(p0, p1 math3d.Vec3, c Color, fog0, fog1 float64) {
	if r.fb == nil {
		return
	}
	viewProj := r.camera.ViewProjectionMatrix()
	a := clipVertex{pos: viewProj.MulVec4(math3d.V4FromV3(p0, 1)), fog: fog0}
	b := clipVertex{pos: viewProj.MulVec4(math3d.V4FromV3(p1, 1)), fog: fog1}

	da, db := a.nearDist(), b.nearDist()
	switch {
	case da < 0 && db < 0:
		return
	case da < 0:
		a = a.lerp(b, da/(da-db))
	case db < 0:
		b = b.lerp(a, db/(db-da))
	}

	sa, sb := r.toScreen(a), r.toScreen(b)
	dx, dy := sb.X-sa.X, sb.Y-sa.Y
	t0, t1, ok := clipSegment(sa.X, sa.Y, dx, dy, float64(r.Width()), float64(r.Height()))
	if !ok {
		return
	}
	steps := max(int(math.Ceil(math.Max(math.Abs(dx), math.Abs(dy))*(t1-t0))), 1)

	fogR, fogG, fogB := float64(r.FogColor.R), float64(r.FogColor.G), float64(r.FogColor.B)
	for i := 0; i <= steps; i++ {
		t := t0 + (t1-t0)*float64(i)/float64(steps)
		x := int(math.Floor(sa.X + dx*t))
		y := int(math.Floor(sa.Y + dy*t))
		if x < 0 || x >= r.Width() || y < 0 || y >= r.Height() {
			continue
		}
		z := sa.Z + (sb.Z-sa.Z)*t
		if z > 1 || z-lineDepthBias >= r.getDepth(x, y) {
			continue
		}
		fog := (sa.Fog + (sb.Fog-sa.Fog)*t) / (sa.InvW + (sb.InvW-sa.InvW)*t)
		out := c
		if fog > 0 {
			out = Color{
				R: clamp8(float64(c.R) + (fogR-float64(c.R))*fog),
				G: clamp8(float64(c.G) + (fogG-float64(c.G))*fog),
				B: clamp8(float64(c.B) + (fogB-float64(c.B))*fog),
				A: 255,
			}
		}
		idx := y*r.Width() + x
		r.zbuffer[idx] = z
		r.fb.Pixels[idx] = out
	}
}

// clipSegment clips the screen segment p + t*d, t in [0,1], to the
// rectangle [0,w]x[0,h] (Liang-Barsky).
func clipSegment(px, py, dx, dy, w, h float64) (t0, t1 float64, ok bool) {
	t0, t1 = 0, 1
	for _, e := range [4][2]float64{{-dx, px}, {dx, w - px}, {-dy, py}, {dy, h - py}} {
		p, q := e[0], e[1]
		if p == 0 {
			if q < 0 {
				return 0, 0, false
			}
			continue
		}
		t := q / p
		if p < 0 {
			t0 = math.Max(t0, t)
		} else {
			t1 = math.Min(t1, t)
		}
		if t0 > t1 {
			return 0, 0, false
		}
	}
	return t0, t1, true
}

// DrawGrid draws a ground grid on the XZ plane centered at the origin.
// The two center lines use the grid's center color.
func (r *Rasterizer) DrawGrid(g *scene.Grid, fog *scene.Fog) {
	if g == nil || !g.Visible || g.Divisions <= 0 || g.Size <= 0 {
		return
	}
	half := g.Size / 2
	step := g.Size / float64(g.Divisions)
	center := FromScene(g.CenterColor)
	line := FromScene(g.LineColor)

	// Long lines are split so fog follows the view depth along them.
	const segments = 8
	for i := 0; i <= g.Divisions; i++ {
		k := -half + float64(i)*step
		c := line
		if i*2 == g.Divisions {
			c = center
		}
		for s := range segments {
			t0 := -half + g.Size*float64(s)/segments
			t1 := -half + g.Size*float64(s+1)/segments
			r.drawFogLine(math3d.V3(k, g.Y, t0), math3d.V3(k, g.Y, t1), c, fog)
			r.drawFogLine(math3d.V3(t0, g.Y, k), math3d.V3(t1, g.Y, k), c, fog)
		}
	}
}

func (r *Rasterizer) drawFogLine(p0, p1 math3d.Vec3, c Color, fog *scene.Fog) {
	r.DrawLine3D(p0, p1, c, fog.Factor(r.camera.ViewDepth(p0)), fog.Factor(r.camera.ViewDepth(p1)))
}
