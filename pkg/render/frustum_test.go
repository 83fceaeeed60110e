package render

import (
	"math"
	"testing"

	"github.com/taigrr/showroom/pkg/math3d"
)

func TestPlaneDistanceToPoint(t *testing.T) {
	// Plane at Z=0, normal pointing +Z
	plane := Plane{Normal: math3d.V3(0, 0, 1), D: 0}

	tests := []struct {
		name     string
		point    math3d.Vec3
		expected float64
	}{
		{"origin", math3d.V3(0, 0, 0), 0},
		{"in front", math3d.V3(0, 0, 5), 5},
		{"behind", math3d.V3(0, 0, -3), -3},
		{"offset XY", math3d.V3(10, -5, 2), 2},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			dist := plane.DistanceToPoint(tc.point)
			if math.Abs(dist-tc.expected) > 1e-9 {
				t.Errorf("got %v, want %v", dist, tc.expected)
			}
		})
	}
}

func TestPlaneNormalize(t *testing.T) {
	plane := Plane{Normal: math3d.V3(0, 3, 4), D: 10}
	plane.Normalize()

	if length := plane.Normal.Len(); math.Abs(length-1.0) > 1e-9 {
		t.Errorf("normalized normal length = %v, want 1.0", length)
	}
	if math.Abs(plane.Normal.Y-0.6) > 1e-9 || math.Abs(plane.Normal.Z-0.8) > 1e-9 {
		t.Errorf("normal = %v, want (0, 0.6, 0.8)", plane.Normal)
	}
	// D should be scaled too (10/5 = 2)
	if math.Abs(plane.D-2.0) > 1e-9 {
		t.Errorf("D = %v, want 2.0", plane.D)
	}
}

func testFrustum(near, far float64) Frustum {
	proj := math3d.Perspective(math.Pi/3, 16.0/9.0, near, far)
	// Camera at origin looking down -Z
	return ExtractFrustum(proj.Mul(math3d.Identity()))
}

func TestFrustumPlanesNormalized(t *testing.T) {
	frustum := testFrustum(0.1, 100)
	for i, plane := range frustum.Planes {
		if length := plane.Normal.Len(); math.Abs(length-1.0) > 1e-6 {
			t.Errorf("plane %d normal length = %v, want 1.0", i, length)
		}
	}
}

func TestFrustumContainsPoint(t *testing.T) {
	frustum := testFrustum(0.1, 100)

	tests := []struct {
		name     string
		point    math3d.Vec3
		expected bool
	}{
		{"center near", math3d.V3(0, 0, -1), true},
		{"center mid", math3d.V3(0, 0, -50), true},
		{"center far", math3d.V3(0, 0, -99), true},
		{"behind camera", math3d.V3(0, 0, 1), false},
		{"too far", math3d.V3(0, 0, -200), false},
		{"too close", math3d.V3(0, 0, -0.01), false},
		{"far left", math3d.V3(-100, 0, -10), false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := frustum.ContainsPoint(tc.point); got != tc.expected {
				t.Errorf("ContainsPoint(%v) = %v, want %v", tc.point, got, tc.expected)
			}
		})
	}
}

func TestFrustumIntersectsBox(t *testing.T) {
	frustum := testFrustum(1, 100)

	tests := []struct {
		name     string
		box      math3d.Box3
		expected bool
	}{
		{"fully inside", math3d.NewBox3(math3d.V3(-1, -1, -20), math3d.V3(1, 1, -10)), true},
		{"straddles near plane", math3d.NewBox3(math3d.V3(-1, -1, -2), math3d.V3(1, 1, 2)), true},
		{"behind camera", math3d.NewBox3(math3d.V3(-1, -1, 5), math3d.V3(1, 1, 10)), false},
		{"beyond far plane", math3d.NewBox3(math3d.V3(-1, -1, -300), math3d.V3(1, 1, -200)), false},
		{"off to the right", math3d.NewBox3(math3d.V3(500, -1, -20), math3d.V3(501, 1, -10)), false},
		{"empty", math3d.EmptyBox(), false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := frustum.IntersectsBox(tc.box); got != tc.expected {
				t.Errorf("IntersectsBox = %v, want %v", got, tc.expected)
			}
		})
	}
}

func TestFrustumContainsBox(t *testing.T) {
	frustum := testFrustum(1, 100)

	inside := math3d.NewBox3(math3d.V3(-1, -1, -20), math3d.V3(1, 1, -10))
	if !frustum.ContainsBox(inside) {
		t.Error("box well inside the frustum should be contained")
	}
	straddle := math3d.NewBox3(math3d.V3(-1, -1, -2), math3d.V3(1, 1, 2))
	if frustum.ContainsBox(straddle) {
		t.Error("box crossing the near plane should not be contained")
	}
}

func TestFrustumIntersectsSphere(t *testing.T) {
	frustum := testFrustum(1, 100)

	if !frustum.IntersectsSphere(math3d.V3(0, 0, -10), 1) {
		t.Error("sphere in front of camera should intersect")
	}
	if frustum.IntersectsSphere(math3d.V3(0, 0, 10), 1) {
		t.Error("sphere behind camera should not intersect")
	}
	if !frustum.IntersectsSphere(math3d.V3(0, 0, 1), 2.5) {
		t.Error("sphere reaching past the near plane should intersect")
	}
}

func TestCameraFrustumFollowsLookAt(t *testing.T) {
	cam := NewCamera()
	cam.SetPosition(math3d.V3(0, 0, 10))
	cam.LookAt(math3d.Zero3())

	if !cam.Frustum().ContainsPoint(math3d.Zero3()) {
		t.Fatal("origin should be visible when looking at it")
	}

	cam.LookAt(math3d.V3(0, 0, 20))
	if cam.Frustum().ContainsPoint(math3d.Zero3()) {
		t.Error("origin should be behind the camera after turning around")
	}
}
