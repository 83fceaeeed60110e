package viewer

import (
	"math"
	"testing"

	"github.com/taigrr/showroom/pkg/math3d"
	"github.com/taigrr/showroom/pkg/render"
)

func TestControlsHomeRoundTrip(t *testing.T) {
	tests := []struct {
		name             string
		position, target math3d.Vec3
	}{
		{"oblique", math3d.V3(8, 5, 8), math3d.Zero3()},
		{"offset target", math3d.V3(3, 4, -6), math3d.V3(0, 2, 0)},
		{"behind", math3d.V3(0, 1, -10), math3d.V3(0, 1, 0)},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := NewControls(30, 0.5, 0.01, 1000)
			c.SetHome(tc.position, tc.target)
			if got := c.Position(); !got.ApproxEqual(tc.position, 1e-9) {
				t.Errorf("Position = %v, want %v", got, tc.position)
			}

			cam := render.NewCamera()
			c.Apply(cam)
			if !cam.Target.ApproxEqual(tc.target, 1e-12) {
				t.Errorf("camera target = %v", cam.Target)
			}
		})
	}
}

func TestControlsRotateSettles(t *testing.T) {
	c := NewControls(30, 0.5, 0.01, 1000)
	c.SetHome(math3d.V3(0, 0, 10), math3d.Zero3())

	c.Rotate(0.05, 0)
	if !c.Update() {
		t.Fatal("first update after impulse reported no motion")
	}
	for range 300 {
		c.Update()
	}
	if c.Update() {
		t.Error("controls still moving long after the impulse")
	}
	yaw := c.Yaw()
	if yaw <= 0.05 {
		t.Errorf("yaw = %v, want the impulse to carry past one frame", yaw)
	}
	if d := c.Distance(); math.Abs(d-10) > 1e-9 {
		t.Errorf("distance = %v, want 10", d)
	}
}

func TestControlsClamps(t *testing.T) {
	c := NewControls(30, 0.5, 1, 20)
	c.SetHome(math3d.V3(0, 0, 10), math3d.Zero3())

	c.Rotate(0, 10)
	c.Zoom(50)
	for range 60 {
		c.Update()
	}
	if p := c.Position(); p.Y <= 0 || math.Abs(p.X) > 1 || math.Abs(p.Z) > 1 {
		t.Errorf("position = %v, want near the top of the orbit", p)
	}
	if d := c.Distance(); math.Abs(d-20) > 1e-9 {
		t.Errorf("distance = %v, want clamped to 20", d)
	}

	c.Zoom(-100)
	for range 60 {
		c.Update()
	}
	if d := c.Distance(); math.Abs(d-1) > 1e-9 {
		t.Errorf("distance = %v, want clamped to 1", d)
	}

	c.Reset()
	if !c.Position().ApproxEqual(math3d.V3(0, 0, 10), 1e-9) {
		t.Errorf("reset position = %v", c.Position())
	}
}

func TestControlsStayAtLimit(t *testing.T) {
	tests := []struct {
		name  string
		push  func(c *Controls)
		limit func(c *Controls) float64
		want  float64
	}{
		{"zoom out", func(c *Controls) { c.Zoom(3) }, (*Controls).Distance, 20},
		{"zoom in", func(c *Controls) { c.Zoom(-3) }, (*Controls).Distance, 1},
		{"pitch up", func(c *Controls) { c.Rotate(0, 2) }, func(c *Controls) float64 { return c.pitch.Position }, maxPitch},
		{"pitch down", func(c *Controls) { c.Rotate(0, -2) }, func(c *Controls) float64 { return c.pitch.Position }, -maxPitch},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := NewControls(30, 0.5, 1, 20)
			c.SetHome(math3d.V3(0, 0, 10), math3d.Zero3())
			tc.push(c)

			reached := false
			for i := range 300 {
				c.Update()
				got := tc.limit(c)
				if math.Abs(got-tc.want) < 1e-9 {
					reached = true
				} else if reached {
					t.Fatalf("frame %d: left the limit, now %v", i, got)
				}
			}
			if !reached {
				t.Fatalf("never reached %v, at %v", tc.want, tc.limit(c))
			}
			if c.Update() {
				t.Error("controls still moving at the limit")
			}
		})
	}
}

func TestControlsAutoRotate(t *testing.T) {
	c := NewControls(10, 1, 0, 0)
	c.SetHome(math3d.V3(0, 0, 5), math3d.Zero3())
	c.AutoRotate = true
	for range 10 {
		c.Update()
	}
	// One second at one radian per second.
	if math.Abs(c.Yaw()-1) > 1e-9 {
		t.Errorf("yaw = %v, want 1", c.Yaw())
	}
}

func TestControlsPan(t *testing.T) {
	c := NewControls(30, 0, 0, 0)
	c.SetHome(math3d.V3(0, 0, 10), math3d.Zero3())
	c.Pan(0.1, 0)
	if !c.Target.ApproxEqual(math3d.V3(1, 0, 0), 1e-9) {
		t.Errorf("target = %v, want shifted right by one unit", c.Target)
	}
	if d := c.Distance(); math.Abs(d-10) > 1e-9 {
		t.Errorf("distance = %v", d)
	}
}

func BenchmarkControlsUpdate(b *testing.B) {
	c := NewControls(60, 0.5, 0.1, 1000)
	c.SetHome(math3d.V3(8, 5, 8), math3d.Zero3())
	c.AutoRotate = true
	cam := render.NewCamera()
	for b.Loop() {
		c.Update()
		c.Apply(cam)
	}
}
