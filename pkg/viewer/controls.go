package viewer

import (
	"math"

	"github.com/charmbracelet/harmonica"

	"github.com/taigrr/showroom/pkg/math3d"
	"github.com/taigrr/showroom/pkg/render"
)

const (
	maxPitch = math.Pi/2 - 0.01
	// Velocities below this are treated as settled.
	restVelocity = 1e-5
)

// orbitAxis is one degree of freedom of the orbit with spring-damped
// velocity: impulses add velocity, which the spring pulls back to zero.
type orbitAxis struct {
	Position  float64
	Velocity  float64
	velSpring harmonica.Spring
	velAccel  float64
}

func newOrbitAxis(fps int, pos float64) orbitAxis {
	return orbitAxis{
		Position: pos,
		// Critically damped so motion glides to a stop without overshoot.
		velSpring: harmonica.NewSpring(harmonica.FPS(fps), 4.0, 1.0),
	}
}

func (a *orbitAxis) update() {
	a.Position += a.Velocity
	a.Velocity, a.velAccel = a.velSpring.Update(a.Velocity, a.velAccel, 0)
}

// stop halts the axis where it is, dropping the spring state too.
func (a *orbitAxis) stop() {
	a.Velocity, a.velAccel = 0, 0
}

func (a *orbitAxis) moving() bool {
	return math.Abs(a.Velocity) > restVelocity
}

// Controls orbits a camera around a target with damped rotation and zoom.
// Yaw is measured around +Y from +Z, pitch up from the XZ plane, and zoom
// is the log of the distance to the target.
type Controls struct {
	Target     math3d.Vec3
	AutoRotate bool

	fps       int
	autoSpeed float64
	minDist   float64
	maxDist   float64

	yaw   orbitAxis
	pitch orbitAxis
	zoom  orbitAxis

	homePosition math3d.Vec3
	homeTarget   math3d.Vec3
}

// NewControls creates controls stepped at fps frames per second, keeping
// the camera between minDist and maxDist from the target.
func NewControls(fps int, autoSpeed, minDist, maxDist float64) *Controls {
	if fps <= 0 {
		fps = 30
	}
	c := &Controls{fps: fps, autoSpeed: autoSpeed, minDist: minDist, maxDist: maxDist}
	c.SetHome(math3d.V3(0, 0, 10), math3d.Zero3())
	return c
}

// SetHome stores the position ResetHome returns to and moves there.
func (c *Controls) SetHome(position, target math3d.Vec3) {
	c.homePosition, c.homeTarget = position, target
	c.Reset()
}

// Reset moves the camera back to the home position and stops all motion.
func (c *Controls) Reset() {
	c.Target = c.homeTarget
	offset := c.homePosition.Sub(c.homeTarget)
	dist := offset.Len()
	var yaw, pitch float64
	if dist > 0 {
		yaw = math.Atan2(offset.X, offset.Z)
		pitch = math.Asin(math.Max(-1, math.Min(1, offset.Y/dist)))
	} else {
		dist = math.Max(c.minDist, 1)
	}
	c.yaw = newOrbitAxis(c.fps, yaw)
	c.pitch = newOrbitAxis(c.fps, math.Max(-maxPitch, math.Min(maxPitch, pitch)))
	c.zoom = newOrbitAxis(c.fps, math.Log(c.clampDist(dist)))
}

// Rotate adds angular velocity in radians per frame.
func (c *Controls) Rotate(yaw, pitch float64) {
	c.yaw.Velocity += yaw
	c.pitch.Velocity += pitch
}

// Zoom adds zoom velocity. Positive amounts move the camera away; an amount
// of ln(2) spread over the glide roughly doubles the distance.
func (c *Controls) Zoom(amount float64) {
	c.zoom.Velocity += amount
}

// Pan moves the target in the camera's view plane by dx, dy world units
// scaled by the distance.
func (c *Controls) Pan(dx, dy float64) {
	forward := c.Target.Sub(c.Position()).Normalize()
	right := forward.Cross(math3d.Up()).Normalize()
	up := right.Cross(forward)
	d := c.Distance()
	c.Target = c.Target.Add(right.Scale(dx * d)).Add(up.Scale(dy * d))
}

// Update advances one frame. It reports whether the camera moved.
func (c *Controls) Update() bool {
	moving := c.yaw.moving() || c.pitch.moving() || c.zoom.moving()
	c.yaw.update()
	c.pitch.update()
	c.zoom.update()
	if c.AutoRotate {
		c.yaw.Position += c.autoSpeed / float64(c.fps)
		moving = true
	}
	if c.pitch.Position > maxPitch || c.pitch.Position < -maxPitch {
		c.pitch.Position = math.Max(-maxPitch, math.Min(maxPitch, c.pitch.Position))
		c.pitch.stop()
	}
	if d := math.Exp(c.zoom.Position); d != c.clampDist(d) {
		c.zoom.Position = math.Log(c.clampDist(d))
		c.zoom.stop()
	}
	return moving
}

// Distance returns the camera distance from the target.
func (c *Controls) Distance() float64 {
	return math.Exp(c.zoom.Position)
}

// Yaw returns the current yaw in radians.
func (c *Controls) Yaw() float64 {
	return c.yaw.Position
}

// Position returns the camera position on the orbit.
func (c *Controls) Position() math3d.Vec3 {
	d := c.Distance()
	cp := math.Cos(c.pitch.Position)
	return c.Target.Add(math3d.V3(
		d*cp*math.Sin(c.yaw.Position),
		d*math.Sin(c.pitch.Position),
		d*cp*math.Cos(c.yaw.Position),
	))
}

// Apply points cam from the orbit position at the target.
func (c *Controls) Apply(cam *render.Camera) {
	cam.SetPosition(c.Position())
	cam.LookAt(c.Target)
}

func (c *Controls) clampDist(d float64) float64 {
	if c.minDist > 0 && d < c.minDist {
		return c.minDist
	}
	if c.maxDist > 0 && d > c.maxDist {
		return c.maxDist
	}
	return d
}
