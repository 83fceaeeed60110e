package models

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"strings"

	"github.com/taigrr/showroom/pkg/math3d"
	"github.com/taigrr/showroom/pkg/scene"
)

const (
	stlHeaderSize   = 80
	stlTriangleSize = 50 // normal, 3 vertices, attribute word
)

// STLLoader loads binary and ASCII STL files. The result is a bare,
// non-indexed Geometry with per-face normals.
type STLLoader struct{}

// NewSTLLoader creates an STL loader.
func NewSTLLoader() *STLLoader {
	return &STLLoader{}
}

// Load parses path.
func (l *STLLoader) Load(ctx context.Context, path string, progress ProgressFunc) (*Result, error) {
	data, err := readFile(ctx, path, progress)
	if err != nil {
		return nil, err
	}
	geom, err := ParseSTL(data)
	if err != nil {
		return nil, err
	}
	return &Result{Geometry: geom}, nil
}

// ParseSTL decodes STL bytes. The file is binary when its size matches the
// triangle count in the header; otherwise it is ASCII when it starts with
// "solid".
func ParseSTL(data []byte) (*scene.Geometry, error) {
	var geom *scene.Geometry
	var err error
	if isBinarySTL(data) {
		geom, err = parseBinarySTL(data)
	} else {
		geom, err = parseASCIISTL(data)
	}
	if err != nil {
		return nil, err
	}
	if geom.TriangleCount() == 0 {
		return nil, fmt.Errorf("stl: %w", ErrNoGeometry)
	}
	return geom, nil
}

func isBinarySTL(data []byte) bool {
	if len(data) >= stlHeaderSize+4 {
		n := binary.LittleEndian.Uint32(data[stlHeaderSize:])
		if int64(stlHeaderSize+4)+int64(n)*stlTriangleSize == int64(len(data)) {
			return true
		}
	}
	head := bytes.TrimLeft(data[:min(len(data), 512)], " \t\r\n")
	return !bytes.HasPrefix(head, []byte("solid"))
}

func parseBinarySTL(data []byte) (*scene.Geometry, error) {
	if len(data) < stlHeaderSize+4 {
		return nil, fmt.Errorf("stl: truncated header")
	}
	n := int(binary.LittleEndian.Uint32(data[stlHeaderSize:]))
	body := data[stlHeaderSize+4:]
	if len(body) < n*stlTriangleSize {
		return nil, fmt.Errorf("stl: %d triangles declared, %d bytes present", n, len(body))
	}

	geom := scene.NewGeometry()
	geom.Positions = make([]math3d.Vec3, 0, n*3)
	geom.Normals = make([]math3d.Vec3, 0, n*3)
	vec := func(b []byte) math3d.Vec3 {
		return math3d.V3(
			float64(math.Float32frombits(binary.LittleEndian.Uint32(b[0:]))),
			float64(math.Float32frombits(binary.LittleEndian.Uint32(b[4:]))),
			float64(math.Float32frombits(binary.LittleEndian.Uint32(b[8:]))),
		)
	}
	for i := range n {
		tri := body[i*stlTriangleSize:]
		normal := vec(tri)
		a, b, c := vec(tri[12:]), vec(tri[24:]), vec(tri[36:])
		appendFacet(geom, normal, a, b, c)
	}
	return geom, nil
}

func parseASCIISTL(data []byte) (*scene.Geometry, error) {
	geom := scene.NewGeometry()
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64<<10), 1<<20)

	var (
		normal math3d.Vec3
		verts  []math3d.Vec3
		line   int
	)
	for sc.Scan() {
		line++
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		switch strings.ToLower(fields[0]) {
		case "facet":
			verts = verts[:0]
			normal = math3d.Vec3{}
			if len(fields) >= 5 && strings.EqualFold(fields[1], "normal") {
				v, err := parseFloats(fields[2:], 3)
				if err != nil {
					return nil, fmt.Errorf("stl line %d: %w", line, err)
				}
				normal = math3d.V3(v[0], v[1], v[2])
			}
		case "vertex":
			v, err := parseFloats(fields[1:], 3)
			if err != nil {
				return nil, fmt.Errorf("stl line %d: %w", line, err)
			}
			verts = append(verts, math3d.V3(v[0], v[1], v[2]))
		case "endfacet":
			if len(verts) != 3 {
				return nil, fmt.Errorf("stl line %d: facet has %d vertices", line, len(verts))
			}
			appendFacet(geom, normal, verts[0], verts[1], verts[2])
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan stl: %w", err)
	}
	return geom, nil
}

// appendFacet adds one triangle. Zero normals are recomputed from the winding.
func appendFacet(geom *scene.Geometry, normal, a, b, c math3d.Vec3) {
	if normal.Len() < 1e-12 {
		normal = b.Sub(a).Cross(c.Sub(a))
	}
	normal = normal.Normalize()
	geom.Positions = append(geom.Positions, a, b, c)
	geom.Normals = append(geom.Normals, normal, normal, normal)
}
