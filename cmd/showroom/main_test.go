package main

import (
	"bytes"
	"context"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const quadSTL = `solid quad
facet normal 0 0 1
  outer loop
    vertex 0 0 0
    vertex 4 0 0
    vertex 0 2 0
  endloop
endfacet
facet normal 0 0 1
  outer loop
    vertex 4 0 0
    vertex 4 2 0
    vertex 0 2 0
  endloop
endfacet
endsolid quad
`

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func writeModel(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestInfo(t *testing.T) {
	path := writeModel(t, "quad.stl", quadSTL)

	out, err := execute(t, "info", path)
	if err != nil {
		t.Fatalf("info: %v", err)
	}
	for _, want := range []string{
		"File:       quad.stl",
		"Format:     STL",
		"Size:       0.00 MB",
		"Triangles:  2",
		"Animated:   no",
		"Dimensions: 4.000 x 2.000 x 0.000",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestInfoErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"unsupported", []string{"info", writeModel(t, "notes.txt", "x")}},
		{"missing file", []string{"info", filepath.Join(t.TempDir(), "gone.stl")}},
		{"no args", []string{"info"}},
		{"bad flag value", []string{"--bg", "nope", "info", writeModel(t, "a.stl", quadSTL)}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := execute(t, tc.args...); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestSnapshot(t *testing.T) {
	path := writeModel(t, "quad.stl", quadSTL)
	out := filepath.Join(t.TempDir(), "quad.png")

	if _, err := execute(t, "snapshot", path, "-o", out, "--width", "40", "--height", "30", "--wireframe"); err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	f, err := os.Open(out)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	cfg, err := png.DecodeConfig(f)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if cfg.Width != 40 || cfg.Height != 30 {
		t.Errorf("expected 40x30, got %dx%d", cfg.Width, cfg.Height)
	}
}

func TestSnapshotWebP(t *testing.T) {
	path := writeModel(t, "quad.stl", quadSTL)
	out := filepath.Join(t.TempDir(), "quad.webp")

	if _, err := execute(t, "snapshot", path, "-o", out, "--width", "16", "--height", "16", "--yaw", "0.2"); err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if len(data) < 12 || string(data[:4]) != "RIFF" || string(data[8:12]) != "WEBP" {
		t.Error("output is not WebP")
	}
}

func TestSnapshotRejectsFormat(t *testing.T) {
	path := writeModel(t, "quad.stl", quadSTL)
	if _, err := execute(t, "snapshot", path, "-o", filepath.Join(t.TempDir(), "x.gif")); err == nil {
		t.Error("expected error for .gif output")
	}
	if _, err := execute(t, "snapshot", path); err == nil {
		t.Error("expected error without --output")
	}
}
