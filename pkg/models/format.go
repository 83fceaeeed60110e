// Package models loads 3D model files into scene graphs.
//
// Supported formats are glTF (.gltf, .glb), Wavefront OBJ with MTL materials,
// STL (binary and ASCII) and binary FBX. Format selection is by file
// extension only; see DetectFormat.
package models

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/taigrr/showroom/pkg/scene"
)

var (
	// ErrUnsupportedFormat is returned for file extensions no loader handles.
	ErrUnsupportedFormat = errors.New("unsupported format")
	// ErrNoGeometry is returned when a file parses but contains no triangles.
	ErrNoGeometry = errors.New("no geometry")
	// ErrInvalidFBX is returned for FBX files that are not binary FBX.
	ErrInvalidFBX = errors.New("invalid fbx")
)

// Format identifies a model file format.
type Format string

const (
	FormatFBX  Format = "fbx"
	FormatGLTF Format = "gltf"
	FormatGLB  Format = "glb"
	FormatOBJ  Format = "obj"
	FormatSTL  Format = "stl"
)

// Formats lists every supported format in display order.
var Formats = []Format{FormatFBX, FormatGLTF, FormatGLB, FormatOBJ, FormatSTL}

// DetectFormat derives the format from the lowercased text after the last
// '.' in name. Names without a supported extension return
// ErrUnsupportedFormat.
func DetectFormat(name string) (Format, error) {
	ext := Extension(name)
	for _, f := range Formats {
		if string(f) == ext {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
}

// Extension returns the lowercased text after the last '.' in name, or "".
func Extension(name string) string {
	i := strings.LastIndexByte(name, '.')
	if i < 0 || i == len(name)-1 {
		return ""
	}
	return strings.ToLower(name[i+1:])
}

// Result is the output of a loader.
//
// Scene-producing formats set Root (and possibly Animations). STL produces a
// bare Geometry that the caller wraps in a mesh with its own material.
type Result struct {
	Format     Format
	Root       *scene.Node
	Animations []*scene.AnimationClip
	Geometry   *scene.Geometry
	Warnings   []string
}

// Dispose releases every resource held by the result. It is used for results
// that are discarded without being displayed.
func (r *Result) Dispose() {
	if r == nil {
		return
	}
	if r.Root != nil {
		scene.DisposeTree(r.Root)
	}
	if r.Geometry != nil {
		r.Geometry.Dispose()
	}
}

func (r *Result) warnf(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// ProgressFunc receives the number of bytes read so far and the total file
// size. total is zero when unknown.
type ProgressFunc func(loaded, total int64)

// Loader parses a model file.
type Loader interface {
	Load(ctx context.Context, path string, progress ProgressFunc) (*Result, error)
}

// LoaderFor returns the loader for format f.
func LoaderFor(f Format) (Loader, error) {
	switch f {
	case FormatGLTF, FormatGLB:
		return NewGLTFLoader(), nil
	case FormatOBJ:
		return NewOBJLoader(), nil
	case FormatSTL:
		return NewSTLLoader(), nil
	case FormatFBX:
		return NewFBXLoader(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, f)
	}
}

// Load detects the format of path and parses it.
func Load(ctx context.Context, path string, progress ProgressFunc) (*Result, error) {
	f, err := DetectFormat(path)
	if err != nil {
		return nil, err
	}
	l, err := LoaderFor(f)
	if err != nil {
		return nil, err
	}
	res, err := l.Load(ctx, path, progress)
	if err != nil {
		return nil, err
	}
	res.Format = f
	return res, nil
}

const readChunk = 64 << 10

// readFile reads path in chunks, reporting progress and honoring ctx between
// chunks.
func readFile(ctx context.Context, path string, progress ProgressFunc) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	var total int64
	if st, err := f.Stat(); err == nil {
		total = st.Size()
	}

	buf := make([]byte, 0, total)
	chunk := make([]byte, readChunk)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n, err := f.Read(chunk)
		buf = append(buf, chunk[:n]...)
		if progress != nil && n > 0 {
			progress(int64(len(buf)), total)
		}
		if errors.Is(err, io.EOF) {
			return buf, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", filepath.Base(path), err)
		}
	}
}
