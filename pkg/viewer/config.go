package viewer

import (
	"time"

	"github.com/taigrr/showroom/pkg/math3d"
	"github.com/taigrr/showroom/pkg/scene"
)

const (
	// ModelName tags the root of the currently loaded model.
	ModelName = "LoadedModel"
	// PivotName tags the node the loaded model hangs from.
	PivotName = "ModelPivot"

	LightMain = "main"
	LightFill = "fill"
	LightRim  = "rim"
)

// LightConfig is a directional light.
type LightConfig struct {
	Color     scene.Color
	Intensity float64
	Position  math3d.Vec3
}

// MaterialConfig is the surface given to geometry that arrives without one.
type MaterialConfig struct {
	Color     scene.Color
	Roughness float64
	Metalness float64
}

// GridConfig describes the ground grid.
type GridConfig struct {
	Size        float64
	Divisions   int
	CenterColor scene.Color
	LineColor   scene.Color
	Y           float64
	Visible     bool
}

// Config parameterizes a Session.
type Config struct {
	// Camera
	FOV           float64 // vertical, degrees
	Near          float64
	Far           float64
	StartPosition math3d.Vec3

	// Auto-framing
	FrameMargin      float64
	FrameDirection   math3d.Vec3
	MinFrameDistance float64
	FogNearFactor    float64
	FogFarFactor     float64

	// Environment
	Background scene.Color
	FogNear    float64
	FogFar     float64
	Grid       GridConfig

	// Lights
	HemisphereSky       scene.Color
	HemisphereGround    scene.Color
	HemisphereIntensity float64
	Main                LightConfig
	Fill                LightConfig
	Rim                 LightConfig

	// Materials
	STLMaterial         MaterialConfig
	UntexturedDefaults  bool
	UntexturedRoughness float64
	UntexturedMetalness float64

	// Loading
	LoadDelay time.Duration

	// Controls
	FPS             int
	AutoRotate      bool
	AutoRotateSpeed float64 // radians per second
}

// DefaultConfig returns the stock viewer setup.
func DefaultConfig() Config {
	return Config{
		FOV:           45,
		Near:          0.1,
		Far:           10000,
		StartPosition: math3d.V3(8, 5, 8),

		FrameMargin:      1.8,
		FrameDirection:   math3d.V3(1, 0.6, 1),
		MinFrameDistance: 1,
		FogNearFactor:    2,
		FogFarFactor:     5,

		Background: scene.ColorHex(0x0a0a0d),
		FogNear:    10,
		FogFar:     100,
		Grid: GridConfig{
			Size:        100,
			Divisions:   100,
			CenterColor: scene.ColorHex(0x333333),
			LineColor:   scene.ColorHex(0x1a1a1a),
			Y:           -0.01,
			Visible:     true,
		},

		HemisphereSky:       scene.ColorHex(0xffffff),
		HemisphereGround:    scene.ColorHex(0x444444),
		HemisphereIntensity: 0.6,
		Main:                LightConfig{scene.ColorHex(0xffffff), 1.2, math3d.V3(5, 10, 7)},
		Fill:                LightConfig{scene.ColorHex(0xddeeff), 0.5, math3d.V3(-5, 5, 5)},
		Rim:                 LightConfig{scene.ColorHex(0xffaa00), 0.5, math3d.V3(0, 5, -10)},

		STLMaterial:         MaterialConfig{scene.ColorHex(0x888888), 0.4, 0.2},
		UntexturedRoughness: 0.6,
		UntexturedMetalness: 0.1,

		LoadDelay: 100 * time.Millisecond,

		FPS:             30,
		AutoRotateSpeed: 0.5,
	}
}

// frameDirection returns the unit framing direction, falling back to the
// stock oblique direction when unset.
func (c Config) frameDirection() math3d.Vec3 {
	if c.FrameDirection.Len() == 0 {
		return math3d.V3(1, 0.6, 1).Normalize()
	}
	return c.FrameDirection.Normalize()
}
