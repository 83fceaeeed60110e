package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"

	"github.com/taigrr/showroom/pkg/math3d"
	"github.com/taigrr/showroom/pkg/scene"
	"github.com/taigrr/showroom/pkg/viewer"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.View.FOV != 45 {
		t.Errorf("expected fov 45, got %v", cfg.View.FOV)
	}
	if cfg.View.FrameMargin != 1.8 {
		t.Errorf("expected margin 1.8, got %v", cfg.View.FrameMargin)
	}
	if cfg.View.Background != scene.ColorHex(0x0a0a0d) {
		t.Errorf("expected background #0a0a0d, got %v", cfg.View.Background)
	}
	if cfg.View.LoadDelay != 100*time.Millisecond {
		t.Errorf("expected load delay 100ms, got %v", cfg.View.LoadDelay)
	}
	if cfg.Server.Addr != "127.0.0.1:8080" {
		t.Errorf("expected addr 127.0.0.1:8080, got %s", cfg.Server.Addr)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.File.Path != "" {
		t.Errorf("expected info level without file, got %+v", cfg.Logging)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults do not validate: %v", err)
	}
}

func TestDefaultRoundTripsToViewer(t *testing.T) {
	got := Default().Viewer()
	want := viewer.DefaultConfig()
	if got != want {
		t.Errorf("Default().Viewer() = %+v\nwant %+v", got, want)
	}
}

func TestLoadFromFile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	yamlContent := `
viewer:
  fov: 60
  frame_margin: 1.5
  background: "#f3f4f6"
  load_delay: 250ms
  main_light:
    color: "#ffffff"
    intensity: 2
    position: [1, 2, 3]
  grid:
    visible: false
render:
  fps: 60
server:
  addr: ":9000"
logging:
  level: debug
  file:
    path: /tmp/showroom.log
    max_size_mb: 5
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(configPath, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.View.FOV != 60 || cfg.View.FrameMargin != 1.5 {
		t.Errorf("fov/margin = %v/%v", cfg.View.FOV, cfg.View.FrameMargin)
	}
	if cfg.View.Background != scene.ColorHex(0xf3f4f6) {
		t.Errorf("background = %v", cfg.View.Background)
	}
	if cfg.View.LoadDelay != 250*time.Millisecond {
		t.Errorf("load delay = %v", cfg.View.LoadDelay)
	}
	if cfg.View.Grid.Visible {
		t.Error("grid should be hidden")
	}
	// Unset fields keep their defaults.
	if cfg.View.Near != 0.1 || cfg.View.FillLight.Intensity != 0.5 {
		t.Errorf("defaults lost: near %v fill %v", cfg.View.Near, cfg.View.FillLight.Intensity)
	}
	if cfg.Render.FPS != 60 || cfg.Server.Addr != ":9000" {
		t.Errorf("render/server = %+v %+v", cfg.Render, cfg.Server)
	}
	if cfg.Logging.File.Path != "/tmp/showroom.log" || cfg.Logging.File.MaxSizeMB != 5 {
		t.Errorf("logging = %+v", cfg.Logging)
	}

	v := cfg.Viewer()
	if v.Main.Position != math3d.V3(1, 2, 3) || v.Main.Intensity != 2 {
		t.Errorf("main light = %+v", v.Main)
	}
	if v.FPS != 60 || v.Grid.Y != -0.01 {
		t.Errorf("viewer fps %d grid y %v", v.FPS, v.Grid.Y)
	}
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) string {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
		return path
	}

	tests := []struct {
		name string
		path string
		want string
	}{
		{"missing explicit file", filepath.Join(dir, "nope.yaml"), "loading config"},
		{"bad yaml", write("bad.yaml", "viewer: [1, 2"), "loading config"},
		{"bad color", write("color.yaml", "viewer:\n  background: purple\n"), "loading config"},
		{"bad fov", write("fov.yaml", "viewer:\n  fov: 0\n"), "viewer.fov"},
		{"bad clip planes", write("clip.yaml", "viewer:\n  near: 10\n  far: 1\n"), "viewer.near"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(tc.path, nil)
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Errorf("err = %v, want mention of %q", err, tc.want)
			}
		})
	}
}

func TestFlagsOverrideFile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	content := "render:\n  fps: 60\nserver:\n  addr: \":9000\"\n"
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags := BindFlags(fs)
	if err := fs.Parse([]string{"--fps", "15", "--bg", "#112233", "--debug", "--margin", "2.5"}); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(configPath, flags)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Render.FPS != 15 {
		t.Errorf("fps = %d, want flag value 15", cfg.Render.FPS)
	}
	if cfg.Server.Addr != ":9000" {
		t.Errorf("addr = %q, want file value", cfg.Server.Addr)
	}
	if cfg.View.Background != scene.ColorHex(0x112233) {
		t.Errorf("background = %v", cfg.View.Background)
	}
	if cfg.Logging.Level != "debug" || cfg.View.FrameMargin != 2.5 {
		t.Errorf("level %q margin %v", cfg.Logging.Level, cfg.View.FrameMargin)
	}

	bad := pflag.NewFlagSet("bad", pflag.ContinueOnError)
	badFlags := BindFlags(bad)
	if err := bad.Parse([]string{"--bg", "nope"}); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(configPath, badFlags); err == nil {
		t.Error("expected error for invalid --bg")
	}
}

func TestConfigDirXDG(t *testing.T) {
	if filepath.Separator != '/' || os.Getenv("APPDATA") != "" {
		t.Skip("XDG lookup applies to unix-like systems")
	}
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")
	if got := ConfigDir(); got != "/tmp/xdg/showroom" && !strings.Contains(got, "Library") {
		t.Errorf("ConfigDir = %q", got)
	}
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := Default()
	cfg.View.FOV = 70
	cfg.View.Background = scene.ColorHex(0x204060)
	cfg.View.LoadDelay = 2 * time.Second
	cfg.View.RimLight.Position = Vec{1, -2, 3}
	if err := cfg.SaveTo(path); err != nil {
		t.Fatalf("SaveTo: %v", err)
	}

	loaded, err := Load(path, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.View.FOV != 70 || loaded.View.Background != cfg.View.Background {
		t.Errorf("fov %v background %v", loaded.View.FOV, loaded.View.Background)
	}
	if loaded.View.LoadDelay != 2*time.Second {
		t.Errorf("load delay = %v", loaded.View.LoadDelay)
	}
	if loaded.View.RimLight.Position != (Vec{1, -2, 3}) {
		t.Errorf("rim position = %v", loaded.View.RimLight.Position)
	}
}
