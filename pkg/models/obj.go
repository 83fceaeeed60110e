package models

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/taigrr/showroom/pkg/math3d"
	"github.com/taigrr/showroom/pkg/scene"
)

// OBJLoader loads Wavefront OBJ files and their MTL material libraries.
type OBJLoader struct {
	// LoadMaterials reads mtllib references next to the OBJ file.
	LoadMaterials bool
}

// NewOBJLoader creates an OBJ loader that resolves material libraries.
func NewOBJLoader() *OBJLoader {
	return &OBJLoader{LoadMaterials: true}
}

type objVertex struct {
	v, vt, vn int // resolved zero-based, -1 when absent
}

// objObject accumulates one "o" block as non-indexed triangles with a
// material group per usemtl run.
type objObject struct {
	name      string
	positions []math3d.Vec3
	normals   []math3d.Vec3
	uvs       []math3d.Vec2
	hasNormal bool
	hasUV     bool
	groups    []scene.Group
	materials []string
}

func (o *objObject) useMaterial(name string) {
	start := len(o.positions)
	if n := len(o.groups); n > 0 {
		last := &o.groups[n-1]
		last.Count = start - last.Start
		if last.Count == 0 {
			o.groups = o.groups[:n-1]
			o.materials = o.materials[:n-1]
		}
	}
	o.groups = append(o.groups, scene.Group{Start: start, MaterialIndex: len(o.materials)})
	o.materials = append(o.materials, name)
}

func (o *objObject) finish() {
	if n := len(o.groups); n > 0 {
		o.groups[n-1].Count = len(o.positions) - o.groups[n-1].Start
	}
}

// Load parses path. Each "o" statement starts a new mesh node under the root.
func (l *OBJLoader) Load(ctx context.Context, path string, progress ProgressFunc) (*Result, error) {
	data, err := readFile(ctx, path, progress)
	if err != nil {
		return nil, err
	}

	res := &Result{}
	dir := filepath.Dir(path)
	var (
		positions []math3d.Vec3
		normals   []math3d.Vec3
		uvs       []math3d.Vec2
		libs      []string
		objects   []*objObject
	)
	cur := &objObject{name: "default"}
	objects = append(objects, cur)
	cur.useMaterial("")

	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64<<10), 16<<20)
	line := 0
	for sc.Scan() {
		line++
		if line%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
			continue
		}

		switch fields[0] {
		case "v":
			p, err := parseFloats(fields[1:], 3)
			if err != nil {
				return nil, fmt.Errorf("obj line %d: %w", line, err)
			}
			positions = append(positions, math3d.V3(p[0], p[1], p[2]))
		case "vn":
			n, err := parseFloats(fields[1:], 3)
			if err != nil {
				return nil, fmt.Errorf("obj line %d: %w", line, err)
			}
			normals = append(normals, math3d.V3(n[0], n[1], n[2]))
		case "vt":
			t, err := parseFloats(fields[1:], 2)
			if err != nil {
				return nil, fmt.Errorf("obj line %d: %w", line, err)
			}
			uvs = append(uvs, math3d.V2(t[0], 1-t[1]))
		case "f":
			if len(fields) < 4 {
				return nil, fmt.Errorf("obj line %d: face needs 3 vertices", line)
			}
			verts := make([]objVertex, 0, len(fields)-1)
			for _, f := range fields[1:] {
				v, err := parseFaceVertex(f, len(positions), len(uvs), len(normals))
				if err != nil {
					return nil, fmt.Errorf("obj line %d: %w", line, err)
				}
				verts = append(verts, v)
			}
			// Triangle fan.
			for i := 1; i+1 < len(verts); i++ {
				for _, v := range [3]objVertex{verts[0], verts[i], verts[i+1]} {
					cur.positions = append(cur.positions, positions[v.v])
					if v.vn >= 0 {
						cur.normals = append(cur.normals, normals[v.vn])
						cur.hasNormal = true
					} else {
						cur.normals = append(cur.normals, math3d.Vec3{})
					}
					if v.vt >= 0 {
						cur.uvs = append(cur.uvs, uvs[v.vt])
						cur.hasUV = true
					} else {
						cur.uvs = append(cur.uvs, math3d.Vec2{})
					}
				}
			}
		case "o", "g":
			name := strings.Join(fields[1:], " ")
			if len(cur.positions) == 0 {
				cur.name = name
				continue
			}
			mtl := cur.materials[len(cur.materials)-1]
			cur.finish()
			cur = &objObject{name: name}
			objects = append(objects, cur)
			cur.useMaterial(mtl)
		case "usemtl":
			cur.useMaterial(strings.Join(fields[1:], " "))
		case "mtllib":
			libs = append(libs, strings.Join(fields[1:], " "))
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan obj: %w", err)
	}
	cur.finish()

	mats := map[string]*scene.Material{}
	if l.LoadMaterials {
		texSet := newTextureSet(dir, res)
		for _, lib := range libs {
			parsed, err := loadMTL(filepath.Join(dir, lib), texSet)
			if err != nil {
				res.warnf("mtllib %s: %v", lib, err)
				continue
			}
			for k, v := range parsed {
				mats[k] = v
			}
		}
	}

	root := scene.NewNode(strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))
	for _, obj := range objects {
		if len(obj.positions) < 3 {
			continue
		}
		geom := scene.NewGeometry()
		geom.Positions = obj.positions
		if obj.hasNormal {
			geom.Normals = obj.normals
		} else {
			geom.ComputeNormals()
		}
		if obj.hasUV {
			geom.UVs = obj.uvs
		}

		mesh := scene.NewMesh(geom)
		for i, g := range obj.groups {
			if g.Count == 0 {
				continue
			}
			m := objMaterial(mats, obj.materials[i])
			mi := slices.Index(mesh.Materials, m)
			if mi < 0 {
				mi = len(mesh.Materials)
				mesh.Materials = append(mesh.Materials, m)
			}
			if n := len(geom.Groups); n > 0 {
				if last := &geom.Groups[n-1]; last.MaterialIndex == mi && last.Start+last.Count == g.Start {
					last.Count += g.Count
					continue
				}
			}
			g.MaterialIndex = mi
			geom.Groups = append(geom.Groups, g)
		}
		if len(geom.Groups) == 1 {
			geom.Groups = nil
		}
		root.Add(scene.NewMeshNode(obj.name, mesh))
	}

	if len(root.Children()) == 0 {
		scene.DisposeTree(root)
		for _, m := range mats {
			m.DisposeWithTextures(nil)
		}
		return nil, fmt.Errorf("obj: %w", ErrNoGeometry)
	}
	res.Root = root
	return res, nil
}

func objMaterial(mats map[string]*scene.Material, name string) *scene.Material {
	if m, ok := mats[name]; ok {
		return m
	}
	label := name
	if label == "" {
		label = "default"
	}
	m := scene.NewMaterial(scene.PhongMaterial, label)
	mats[name] = m
	return m
}

func parseFloats(fields []string, n int) ([]float64, error) {
	if len(fields) < n {
		return nil, fmt.Errorf("want %d values, got %d", n, len(fields))
	}
	out := make([]float64, n)
	for i := range n {
		v, err := strconv.ParseFloat(fields[i], 64)
		if err != nil {
			return nil, fmt.Errorf("parse %q: %w", fields[i], err)
		}
		out[i] = v
	}
	return out, nil
}

// parseFaceVertex parses v, v/vt, v//vn or v/vt/vn with 1-based or negative
// (relative) indices.
func parseFaceVertex(s string, nv, nt, nn int) (objVertex, error) {
	out := objVertex{-1, -1, -1}
	parts := strings.Split(s, "/")
	resolve := func(p string, count int) (int, error) {
		if p == "" {
			return -1, nil
		}
		i, err := strconv.Atoi(p)
		if err != nil {
			return 0, fmt.Errorf("face index %q: %w", p, err)
		}
		if i < 0 {
			i = count + i
		} else {
			i--
		}
		if i < 0 || i >= count {
			return 0, fmt.Errorf("face index %s out of range", p)
		}
		return i, nil
	}

	var err error
	if out.v, err = resolve(parts[0], nv); err != nil {
		return out, err
	}
	if out.v < 0 {
		return out, fmt.Errorf("face vertex %q has no position", s)
	}
	if len(parts) > 1 {
		if out.vt, err = resolve(parts[1], nt); err != nil {
			return out, err
		}
	}
	if len(parts) > 2 {
		if out.vn, err = resolve(parts[2], nn); err != nil {
			return out, err
		}
	}
	return out, nil
}

// loadMTL parses a material library into Phong materials keyed by name.
func loadMTL(path string, texSet *textureSet) (map[string]*scene.Material, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return parseMTL(data, texSet), nil
}

func parseMTL(data []byte, texSet *textureSet) map[string]*scene.Material {
	mats := make(map[string]*scene.Material)
	var cur *scene.Material

	color := func(fields []string) (scene.Color, bool) {
		v, err := parseFloats(fields, 3)
		if err != nil {
			return scene.Color{}, false
		}
		return scene.Color{R: v[0], G: v[1], B: v[2]}, true
	}
	scalar := func(fields []string) (float64, bool) {
		v, err := parseFloats(fields, 1)
		if err != nil {
			return 0, false
		}
		return v[0], true
	}

	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
			continue
		}
		key := strings.ToLower(fields[0])
		if key == "newmtl" {
			name := strings.Join(fields[1:], " ")
			cur = scene.NewMaterial(scene.PhongMaterial, name)
			mats[name] = cur
			continue
		}
		if cur == nil {
			continue
		}
		args := fields[1:]
		switch key {
		case "kd":
			if c, ok := color(args); ok {
				cur.Color = c
			}
		case "ke":
			if c, ok := color(args); ok {
				cur.Emissive = c
			}
		case "ns":
			if v, ok := scalar(args); ok {
				cur.Shininess = v
			}
		case "d":
			if v, ok := scalar(args); ok {
				cur.Opacity = v
			}
		case "tr":
			if v, ok := scalar(args); ok {
				cur.Opacity = 1 - v
			}
		case "map_kd":
			cur.SetMap(scene.SlotMap, texSet.file(mapFile(args)))
		case "map_ks":
			cur.SetMap(scene.SlotSpecularMap, texSet.file(mapFile(args)))
		case "map_ke":
			cur.SetMap(scene.SlotEmissiveMap, texSet.file(mapFile(args)))
		case "norm":
			cur.SetMap(scene.SlotNormalMap, texSet.file(mapFile(args)))
		case "map_bump", "bump":
			cur.SetMap(scene.SlotBumpMap, texSet.file(mapFile(args)))
		case "map_d":
			cur.SetMap(scene.SlotAlphaMap, texSet.file(mapFile(args)))
		case "disp":
			cur.SetMap(scene.SlotDisplacement, texSet.file(mapFile(args)))
		}
	}
	return mats
}

// mapFile strips texture options such as "-bm 1.0" from a map statement and
// returns the file name.
func mapFile(args []string) string {
	optArgs := map[string]int{
		"-bm": 1, "-blendu": 1, "-blendv": 1, "-boost": 1, "-cc": 1, "-clamp": 1,
		"-imfchan": 1, "-mm": 2, "-o": 3, "-s": 3, "-t": 3, "-texres": 1,
	}
	for i := 0; i < len(args); i++ {
		if n, ok := optArgs[strings.ToLower(args[i])]; ok {
			i += n
			continue
		}
		return strings.Join(args[i:], " ")
	}
	return ""
}
