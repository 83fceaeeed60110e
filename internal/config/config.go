// Package config handles showroom configuration loading and management.
package config

import (
	"time"

	"github.com/taigrr/showroom/internal/logger"
	"github.com/taigrr/showroom/pkg/math3d"
	"github.com/taigrr/showroom/pkg/scene"
	"github.com/taigrr/showroom/pkg/viewer"
)

// Config holds all showroom settings.
type Config struct {
	View    ViewerConfig  `yaml:"viewer"`
	Render  RenderConfig  `yaml:"render"`
	Server  ServerConfig  `yaml:"server"`
	Logging LoggingConfig `yaml:"logging"`
}

// Vec is a YAML-friendly [x, y, z].
type Vec [3]float64

func (v Vec) vec3() math3d.Vec3 {
	return math3d.V3(v[0], v[1], v[2])
}

// LightConfig is a directional light.
type LightConfig struct {
	Color     scene.Color `yaml:"color"`
	Intensity float64     `yaml:"intensity"`
	Position  Vec         `yaml:"position,flow"`
}

// MaterialConfig is a flat standard material.
type MaterialConfig struct {
	Color     scene.Color `yaml:"color"`
	Roughness float64     `yaml:"roughness"`
	Metalness float64     `yaml:"metalness"`
}

// GridConfig holds ground grid settings.
type GridConfig struct {
	Size        float64     `yaml:"size"`
	Divisions   int         `yaml:"divisions"`
	CenterColor scene.Color `yaml:"center_color"`
	LineColor   scene.Color `yaml:"line_color"`
	Visible     bool        `yaml:"visible"`
}

// ViewerConfig holds scene, camera and loading settings.
type ViewerConfig struct {
	FOV              float64 `yaml:"fov"`
	Near             float64 `yaml:"near"`
	Far              float64 `yaml:"far"`
	StartPosition    Vec     `yaml:"start_position,flow"`
	FrameMargin      float64 `yaml:"frame_margin"`
	FrameDirection   Vec     `yaml:"frame_direction,flow"`
	MinFrameDistance float64 `yaml:"min_frame_distance"`
	FogNearFactor    float64 `yaml:"fog_near_factor"`
	FogFarFactor     float64 `yaml:"fog_far_factor"`

	Background scene.Color `yaml:"background"`
	FogNear    float64     `yaml:"fog_near"`
	FogFar     float64     `yaml:"fog_far"`
	Grid       GridConfig  `yaml:"grid"`

	HemisphereSky       scene.Color `yaml:"hemisphere_sky"`
	HemisphereGround    scene.Color `yaml:"hemisphere_ground"`
	HemisphereIntensity float64     `yaml:"hemisphere_intensity"`
	MainLight           LightConfig `yaml:"main_light"`
	FillLight           LightConfig `yaml:"fill_light"`
	RimLight            LightConfig `yaml:"rim_light"`

	STLMaterial         MaterialConfig `yaml:"stl_material"`
	UntexturedDefaults  bool           `yaml:"untextured_defaults"`
	UntexturedRoughness float64        `yaml:"untextured_roughness"`
	UntexturedMetalness float64        `yaml:"untextured_metalness"`

	LoadDelay       time.Duration `yaml:"load_delay"`
	AutoRotate      bool          `yaml:"auto_rotate"`
	AutoRotateSpeed float64       `yaml:"auto_rotate_speed"`
}

// RenderConfig holds software renderer settings.
type RenderConfig struct {
	FPS            int `yaml:"fps"`
	TextureMaxSize int `yaml:"texture_max_size"`
}

// ServerConfig holds browser shell settings.
type ServerConfig struct {
	Addr        string `yaml:"addr"`
	MaxUploadMB int64  `yaml:"max_upload_mb"`
	FrameWidth  int    `yaml:"frame_width"`
	FrameHeight int    `yaml:"frame_height"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string            `yaml:"level"`
	File  logger.FileConfig `yaml:"file"`
}

// Default returns a Config with the stock viewer setup.
func Default() *Config {
	v := viewer.DefaultConfig()
	return &Config{
		View: ViewerConfig{
			FOV:              v.FOV,
			Near:             v.Near,
			Far:              v.Far,
			StartPosition:    vec(v.StartPosition),
			FrameMargin:      v.FrameMargin,
			FrameDirection:   vec(v.FrameDirection),
			MinFrameDistance: v.MinFrameDistance,
			FogNearFactor:    v.FogNearFactor,
			FogFarFactor:     v.FogFarFactor,

			Background: v.Background,
			FogNear:    v.FogNear,
			FogFar:     v.FogFar,
			Grid: GridConfig{
				Size:        v.Grid.Size,
				Divisions:   v.Grid.Divisions,
				CenterColor: v.Grid.CenterColor,
				LineColor:   v.Grid.LineColor,
				Visible:     v.Grid.Visible,
			},

			HemisphereSky:       v.HemisphereSky,
			HemisphereGround:    v.HemisphereGround,
			HemisphereIntensity: v.HemisphereIntensity,
			MainLight:           light(v.Main),
			FillLight:           light(v.Fill),
			RimLight:            light(v.Rim),

			STLMaterial:         MaterialConfig(v.STLMaterial),
			UntexturedDefaults:  v.UntexturedDefaults,
			UntexturedRoughness: v.UntexturedRoughness,
			UntexturedMetalness: v.UntexturedMetalness,

			LoadDelay:       v.LoadDelay,
			AutoRotate:      v.AutoRotate,
			AutoRotateSpeed: v.AutoRotateSpeed,
		},
		Render: RenderConfig{
			FPS:            v.FPS,
			TextureMaxSize: 256,
		},
		Server: ServerConfig{
			Addr:        "127.0.0.1:8080",
			MaxUploadMB: 512,
			FrameWidth:  640,
			FrameHeight: 480,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

func vec(v math3d.Vec3) Vec {
	return Vec{v.X, v.Y, v.Z}
}

func light(l viewer.LightConfig) LightConfig {
	return LightConfig{Color: l.Color, Intensity: l.Intensity, Position: vec(l.Position)}
}

func (l LightConfig) toViewer() viewer.LightConfig {
	return viewer.LightConfig{Color: l.Color, Intensity: l.Intensity, Position: l.Position.vec3()}
}

// Viewer converts the settings to a viewer.Config.
func (c *Config) Viewer() viewer.Config {
	v := c.View
	base := viewer.DefaultConfig()
	return viewer.Config{
		FOV:           v.FOV,
		Near:          v.Near,
		Far:           v.Far,
		StartPosition: v.StartPosition.vec3(),

		FrameMargin:      v.FrameMargin,
		FrameDirection:   v.FrameDirection.vec3(),
		MinFrameDistance: v.MinFrameDistance,
		FogNearFactor:    v.FogNearFactor,
		FogFarFactor:     v.FogFarFactor,

		Background: v.Background,
		FogNear:    v.FogNear,
		FogFar:     v.FogFar,
		Grid: viewer.GridConfig{
			Size:        v.Grid.Size,
			Divisions:   v.Grid.Divisions,
			CenterColor: v.Grid.CenterColor,
			LineColor:   v.Grid.LineColor,
			Y:           base.Grid.Y,
			Visible:     v.Grid.Visible,
		},

		HemisphereSky:       v.HemisphereSky,
		HemisphereGround:    v.HemisphereGround,
		HemisphereIntensity: v.HemisphereIntensity,
		Main:                v.MainLight.toViewer(),
		Fill:                v.FillLight.toViewer(),
		Rim:                 v.RimLight.toViewer(),

		STLMaterial:         viewer.MaterialConfig(v.STLMaterial),
		UntexturedDefaults:  v.UntexturedDefaults,
		UntexturedRoughness: v.UntexturedRoughness,
		UntexturedMetalness: v.UntexturedMetalness,

		LoadDelay: v.LoadDelay,

		FPS:             c.Render.FPS,
		AutoRotate:      v.AutoRotate,
		AutoRotateSpeed: v.AutoRotateSpeed,
	}
}

// Logger returns the logger options for the settings. Console output is
// left to the caller.
func (c *Config) Logger() logger.Options {
	return logger.Options{Level: c.Logging.Level, File: c.Logging.File}
}
