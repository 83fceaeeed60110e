package models

import (
	"bytes"
	"compress/zlib"
	"context"
	"encoding/binary"
	"errors"
	"testing"
	"time"

	"github.com/taigrr/showroom/pkg/math3d"
	"github.com/taigrr/showroom/pkg/scene"
)

type fbxRec struct {
	name     string
	props    []any
	children []*fbxRec
}

func rec(name string, props []any, children ...*fbxRec) *fbxRec {
	return &fbxRec{name: name, props: props, children: children}
}

// encodeFBX writes a 7.4 binary FBX document. Float64 arrays are zlib
// compressed so both array encodings are exercised.
func encodeFBX(t *testing.T, nodes ...*fbxRec) []byte {
	t.Helper()
	var buf bytes.Buffer
	buf.Write(fbxMagic)
	buf.Write([]byte{0x1a, 0x00})
	binary.Write(&buf, binary.LittleEndian, uint32(7400))
	for _, n := range nodes {
		writeFBXRec(t, &buf, n)
	}
	buf.Write(make([]byte, 13))
	return buf.Bytes()
}

func writeFBXRec(t *testing.T, buf *bytes.Buffer, r *fbxRec) {
	start := buf.Len()
	buf.Write(make([]byte, 12))
	buf.WriteByte(byte(len(r.name)))
	buf.WriteString(r.name)

	propStart := buf.Len()
	le := binary.LittleEndian
	for _, p := range r.props {
		switch v := p.(type) {
		case string:
			buf.WriteByte('S')
			binary.Write(buf, le, uint32(len(v)))
			buf.WriteString(v)
		case []byte:
			buf.WriteByte('R')
			binary.Write(buf, le, uint32(len(v)))
			buf.Write(v)
		case int64:
			buf.WriteByte('L')
			binary.Write(buf, le, v)
		case int32:
			buf.WriteByte('I')
			binary.Write(buf, le, v)
		case float64:
			buf.WriteByte('D')
			binary.Write(buf, le, v)
		case []int32:
			buf.WriteByte('i')
			binary.Write(buf, le, uint32(len(v)))
			binary.Write(buf, le, uint32(0))
			binary.Write(buf, le, uint32(len(v)*4))
			binary.Write(buf, le, v)
		case []float64:
			var raw bytes.Buffer
			binary.Write(&raw, le, v)
			var z bytes.Buffer
			zw := zlib.NewWriter(&z)
			zw.Write(raw.Bytes())
			zw.Close()
			buf.WriteByte('d')
			binary.Write(buf, le, uint32(len(v)))
			binary.Write(buf, le, uint32(1))
			binary.Write(buf, le, uint32(z.Len()))
			buf.Write(z.Bytes())
		default:
			t.Fatalf("unsupported property %T", p)
		}
	}
	propLen := buf.Len() - propStart

	for _, c := range r.children {
		writeFBXRec(t, buf, c)
	}
	if len(r.children) > 0 {
		buf.Write(make([]byte, 13))
	}

	hdr := buf.Bytes()[start:]
	le.PutUint32(hdr[0:], uint32(buf.Len()))
	le.PutUint32(hdr[4:], uint32(len(r.props)))
	le.PutUint32(hdr[8:], uint32(propLen))
}

func p70(name string, values ...float64) *fbxRec {
	props := []any{name, "Vector3D", "", "A"}
	for _, v := range values {
		props = append(props, v)
	}
	return rec("P", props)
}

func cubeFBX(t *testing.T) []byte {
	pos, _ := cube()
	var verts []float64
	for _, p := range pos {
		verts = append(verts, float64(p[0]), float64(p[1]), float64(p[2]))
	}
	quads := [][4]int32{{0, 3, 2, 1}, {4, 5, 6, 7}, {0, 1, 5, 4}, {3, 7, 6, 2}, {0, 4, 7, 3}, {1, 2, 6, 5}}
	var poly []int32
	for _, q := range quads {
		poly = append(poly, q[0], q[1], q[2], ^q[3])
	}

	return encodeFBX(t,
		rec("FBXHeaderExtension", nil, rec("FBXVersion", []any{int32(7400)})),
		rec("Objects", nil,
			rec("Geometry", []any{int64(100), "Cube\x00\x01Geometry", "Mesh"},
				rec("Vertices", []any{verts}),
				rec("PolygonVertexIndex", []any{poly}),
				rec("LayerElementMaterial", []any{int32(0)},
					rec("MappingInformationType", []any{"AllSame"}),
					rec("Materials", []any{[]int32{0}}),
				),
			),
			rec("Model", []any{int64(200), "Cube\x00\x01Model", "Mesh"},
				rec("Properties70", nil,
					p70("Lcl Translation", 1, 2, 3),
					p70("Lcl Rotation", 0, 90, 0),
				),
			),
			rec("Material", []any{int64(300), "Red\x00\x01Material", ""},
				rec("ShadingModel", []any{"lambert"}),
				rec("Properties70", nil, p70("DiffuseColor", 1, 0, 0)),
			),
			rec("Texture", []any{int64(400), "Skin\x00\x01Texture", ""},
				rec("RelativeFilename", []any{`textures\missing.png`}),
			),
		),
		rec("Connections", nil,
			rec("C", []any{"OO", int64(200), int64(0)}),
			rec("C", []any{"OO", int64(100), int64(200)}),
			rec("C", []any{"OO", int64(300), int64(200)}),
			rec("C", []any{"OP", int64(400), int64(300), "DiffuseColor"}),
		),
	)
}

func TestFBXLoaderCube(t *testing.T) {
	path := writeTemp(t, "cube.fbx", cubeFBX(t))
	res, err := NewFBXLoader().Load(context.Background(), path, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	model := res.Root.FindByName("Cube")
	if model == nil || model.Mesh == nil {
		t.Fatal("Cube model with mesh not found")
	}
	if model.Position != math3d.V3(1, 2, 3) {
		t.Errorf("position = %v", model.Position)
	}
	turned := model.Rotation.Rotate(math3d.V3(1, 0, 0))
	if !turned.ApproxEqual(math3d.V3(0, 0, -1), 1e-9) {
		t.Errorf("90 degree Y rotation maps +X to %v", turned)
	}

	geom := model.Mesh.Geometry
	if geom.TriangleCount() != 12 {
		t.Errorf("TriangleCount = %d, want 12", geom.TriangleCount())
	}
	mat := model.Mesh.Material(0)
	if mat.Kind != scene.LambertMaterial || mat.Name != "Red" || mat.Color != (scene.Color{R: 1}) {
		t.Errorf("material = %s %q %v", mat.Kind, mat.Name, mat.Color)
	}

	tex := mat.Map(scene.SlotMap)
	if tex == nil || tex.Name != "missing.png" || tex.Image() != nil {
		t.Errorf("missing texture should still be bound without an image: %+v", tex)
	}
	if len(res.Warnings) == 0 {
		t.Error("missing texture should produce a warning")
	}
}

func TestFBXLoaderRejectsNonBinary(t *testing.T) {
	tests := map[string][]byte{
		"ascii":     []byte("; FBX 7.4.0 project file\nFBXHeaderExtension:  {\n}\n"),
		"garbage":   []byte("not a model"),
		"truncated": cubeFBX(t)[:200],
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := NewFBXLoader().Load(context.Background(), writeTemp(t, name+".fbx", data), nil)
			if !errors.Is(err, ErrInvalidFBX) {
				t.Errorf("err = %v, want ErrInvalidFBX", err)
			}
		})
	}
}

// rawFBXRecord builds a 7.4 record header followed by a one-letter name.
func rawFBXRecord(end, numProps, propLen uint32, name byte) []byte {
	b := binary.LittleEndian.AppendUint32(nil, end)
	b = binary.LittleEndian.AppendUint32(b, numProps)
	b = binary.LittleEndian.AppendUint32(b, propLen)
	return append(b, 1, name)
}

func TestParseBinaryFBXMalformedRecords(t *testing.T) {
	header := append(append([]byte{}, fbxMagic...), 0x1a, 0x00)
	header = binary.LittleEndian.AppendUint32(header, 7400)

	bomb := []byte{'d'}
	bomb = binary.LittleEndian.AppendUint32(bomb, 1<<20)
	bomb = binary.LittleEndian.AppendUint32(bomb, 1)
	bomb = binary.LittleEndian.AppendUint32(bomb, 4)
	bomb = append(bomb, 0x78, 0x9c, 0x03, 0x00)

	tests := []struct {
		name string
		body [][]byte
	}{
		{"ends at its own start", [][]byte{rawFBXRecord(27, 0, 0, 'A')}},
		{"ends inside its name", [][]byte{rawFBXRecord(39, 0, 0, 'A'), make([]byte, 13)}},
		{"child overruns parent", [][]byte{
			rawFBXRecord(42, 0, 0, 'P'),
			rawFBXRecord(55, 0, 0, 'C'),
			make([]byte, 13),
		}},
		{"compressed array too large", [][]byte{
			rawFBXRecord(uint32(27+14+len(bomb)), 1, uint32(len(bomb)), 'V'),
			bomb,
			make([]byte, 13),
		}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			data := bytes.Join(append([][]byte{header}, tc.body...), nil)
			done := make(chan error, 1)
			go func() {
				_, _, err := parseBinaryFBX(context.Background(), data)
				done <- err
			}()
			select {
			case err := <-done:
				if !errors.Is(err, ErrInvalidFBX) {
					t.Errorf("err = %v, want ErrInvalidFBX", err)
				}
			case <-time.After(2 * time.Second):
				t.Fatal("parse did not finish")
			}
		})
	}
}

func TestParseBinaryFBXCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, _, err := parseBinaryFBX(ctx, cubeFBX(t)); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestFBXLayerMapping(t *testing.T) {
	l := &fbxLayer{
		data:      []float64{0, 0, 1, 0, 1, 0},
		index:     []int32{1, 0, 1},
		mapping:   "ByPolygonVertex",
		reference: "IndexToDirect",
		stride:    3,
	}
	if got := l.at(0, 7, 0); got != 1 {
		t.Errorf("at(0) = %d, want 1", got)
	}
	if got := l.at(5, 7, 0); got != -1 {
		t.Errorf("out of range polygon vertex = %d, want -1", got)
	}
	l.mapping, l.reference = "ByVertice", "Direct"
	if got := l.vec3(l.at(9, 1, 0)); got != math3d.V3(0, 1, 0) {
		t.Errorf("by vertex = %v", got)
	}
}
