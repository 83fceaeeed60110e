package models

import (
	"bytes"
	"compress/zlib"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

var fbxMagic = []byte("Kaydara FBX Binary  \x00")

// fbxNode is one record of the binary FBX node tree.
type fbxNode struct {
	Name     string
	Props    []any
	Children []*fbxNode
}

// Child returns the first child named name.
func (n *fbxNode) Child(name string) *fbxNode {
	if n == nil {
		return nil
	}
	for _, c := range n.Children {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// ChildrenNamed returns every child named name.
func (n *fbxNode) ChildrenNamed(name string) []*fbxNode {
	var out []*fbxNode
	if n == nil {
		return nil
	}
	for _, c := range n.Children {
		if c.Name == name {
			out = append(out, c)
		}
	}
	return out
}

func (n *fbxNode) propString(i int) string {
	if n == nil || i >= len(n.Props) {
		return ""
	}
	switch v := n.Props[i].(type) {
	case string:
		return v
	case []byte:
		return string(v)
	}
	return ""
}

func (n *fbxNode) propInt(i int) int64 {
	if n == nil || i >= len(n.Props) {
		return 0
	}
	switch v := n.Props[i].(type) {
	case int16:
		return int64(v)
	case int32:
		return int64(v)
	case int64:
		return v
	case float32:
		return int64(v)
	case float64:
		return int64(v)
	}
	return 0
}

func (n *fbxNode) propFloat(i int) float64 {
	if n == nil || i >= len(n.Props) {
		return 0
	}
	switch v := n.Props[i].(type) {
	case float32:
		return float64(v)
	case float64:
		return v
	case int16:
		return float64(v)
	case int32:
		return float64(v)
	case int64:
		return float64(v)
	}
	return 0
}

// floats returns the first property as []float64, widening float32 arrays.
func (n *fbxNode) floats() []float64 {
	if n == nil || len(n.Props) == 0 {
		return nil
	}
	switch v := n.Props[0].(type) {
	case []float64:
		return v
	case []float32:
		out := make([]float64, len(v))
		for i, f := range v {
			out[i] = float64(f)
		}
		return out
	}
	return nil
}

// ints returns the first property as []int32, narrowing int64 arrays.
func (n *fbxNode) ints() []int32 {
	if n == nil || len(n.Props) == 0 {
		return nil
	}
	switch v := n.Props[0].(type) {
	case []int32:
		return v
	case []int64:
		out := make([]int32, len(v))
		for i, x := range v {
			out[i] = int32(x)
		}
		return out
	}
	return nil
}

// parseBinaryFBX decodes the top-level node list of a binary FBX document.
func parseBinaryFBX(ctx context.Context, data []byte) (*fbxNode, uint32, error) {
	if len(data) < 27 || !bytes.HasPrefix(data, fbxMagic) {
		return nil, 0, fmt.Errorf("%w: missing binary header", ErrInvalidFBX)
	}
	version := binary.LittleEndian.Uint32(data[23:27])
	p := &fbxParser{data: data, pos: 27, wide: version >= 7500}

	root := &fbxNode{}
	for {
		if err := ctx.Err(); err != nil {
			return nil, version, err
		}
		n, err := p.node(0)
		if err != nil {
			return nil, version, err
		}
		if n == nil {
			break
		}
		root.Children = append(root.Children, n)
	}
	return root, version, nil
}

type fbxParser struct {
	data []byte
	pos  int
	wide bool // 64-bit record headers (7.5+)
}

const fbxMaxDepth = 64

func (p *fbxParser) need(n int) error {
	if n < 0 || p.pos+n > len(p.data) {
		return fmt.Errorf("%w: truncated at offset %d", ErrInvalidFBX, p.pos)
	}
	return nil
}

func (p *fbxParser) u8() (byte, error) {
	if err := p.need(1); err != nil {
		return 0, err
	}
	v := p.data[p.pos]
	p.pos++
	return v, nil
}

func (p *fbxParser) u32() (uint32, error) {
	if err := p.need(4); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(p.data[p.pos:])
	p.pos += 4
	return v, nil
}

func (p *fbxParser) u64() (uint64, error) {
	if err := p.need(8); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint64(p.data[p.pos:])
	p.pos += 8
	return v, nil
}

func (p *fbxParser) header() (uint64, uint64, error) {
	if p.wide {
		end, err := p.u64()
		if err != nil {
			return 0, 0, err
		}
		num, err := p.u64()
		if err != nil {
			return 0, 0, err
		}
		_, err = p.u64()
		return end, num, err
	}
	end, err := p.u32()
	if err != nil {
		return 0, 0, err
	}
	num, err := p.u32()
	if err != nil {
		return 0, 0, err
	}
	_, err = p.u32()
	return uint64(end), uint64(num), err
}

// node reads one record. A nil node with nil error marks the end of a list.
func (p *fbxParser) node(depth int) (*fbxNode, error) {
	if depth > fbxMaxDepth {
		return nil, fmt.Errorf("%w: nesting too deep", ErrInvalidFBX)
	}
	if p.pos >= len(p.data) {
		return nil, nil
	}
	start := p.pos
	end, numProps, err := p.header()
	if err != nil {
		return nil, err
	}
	nameLen, err := p.u8()
	if err != nil {
		return nil, err
	}
	if end == 0 {
		// Null record terminating a child list.
		return nil, nil
	}
	if end > uint64(len(p.data)) {
		return nil, fmt.Errorf("%w: record end %d beyond file", ErrInvalidFBX, end)
	}
	if end <= uint64(start) || end < uint64(p.pos) {
		return nil, fmt.Errorf("%w: record at %d ends at %d", ErrInvalidFBX, start, end)
	}
	if err := p.need(int(nameLen)); err != nil {
		return nil, err
	}
	n := &fbxNode{Name: string(p.data[p.pos : p.pos+int(nameLen)])}
	p.pos += int(nameLen)

	for range numProps {
		v, err := p.prop()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", n.Name, err)
		}
		n.Props = append(n.Props, v)
	}

	for uint64(p.pos) < end {
		child, err := p.node(depth + 1)
		if err != nil {
			return nil, err
		}
		if child == nil {
			break
		}
		n.Children = append(n.Children, child)
	}
	if uint64(p.pos) > end {
		return nil, fmt.Errorf("%w: %s overruns its record end %d", ErrInvalidFBX, n.Name, end)
	}
	p.pos = int(end)
	return n, nil
}

func (p *fbxParser) prop() (any, error) {
	code, err := p.u8()
	if err != nil {
		return nil, err
	}
	le := binary.LittleEndian
	switch code {
	case 'Y':
		if err := p.need(2); err != nil {
			return nil, err
		}
		v := int16(le.Uint16(p.data[p.pos:]))
		p.pos += 2
		return v, nil
	case 'C':
		b, err := p.u8()
		return b != 0, err
	case 'I':
		v, err := p.u32()
		return int32(v), err
	case 'F':
		v, err := p.u32()
		return math.Float32frombits(v), err
	case 'D':
		v, err := p.u64()
		return math.Float64frombits(v), err
	case 'L':
		v, err := p.u64()
		return int64(v), err
	case 'S', 'R':
		n, err := p.u32()
		if err != nil {
			return nil, err
		}
		if err := p.need(int(n)); err != nil {
			return nil, err
		}
		raw := p.data[p.pos : p.pos+int(n)]
		p.pos += int(n)
		if code == 'S' {
			return string(raw), nil
		}
		return raw, nil
	case 'f', 'd', 'l', 'i', 'b':
		return p.array(code)
	}
	return nil, fmt.Errorf("%w: unknown property type %q", ErrInvalidFBX, code)
}

const (
	fbxMaxArray = 1 << 28
	// Deflate cannot expand input by more than about 1032:1.
	fbxMaxInflateRatio = 1032
)

func (p *fbxParser) array(code byte) (any, error) {
	count, err := p.u32()
	if err != nil {
		return nil, err
	}
	encoding, err := p.u32()
	if err != nil {
		return nil, err
	}
	size, err := p.u32()
	if err != nil {
		return nil, err
	}
	if count > fbxMaxArray {
		return nil, fmt.Errorf("%w: array of %d elements", ErrInvalidFBX, count)
	}
	if err := p.need(int(size)); err != nil {
		return nil, err
	}
	raw := p.data[p.pos : p.pos+int(size)]
	p.pos += int(size)

	elem := map[byte]int{'f': 4, 'd': 8, 'l': 8, 'i': 4, 'b': 1}[code]
	want := int(count) * elem
	if encoding == 1 {
		if want > (len(raw)+1)*fbxMaxInflateRatio {
			return nil, fmt.Errorf("%w: %d compressed bytes cannot hold %d elements", ErrInvalidFBX, len(raw), count)
		}
		zr, err := zlib.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidFBX, err)
		}
		buf, err := io.ReadAll(io.LimitReader(zr, int64(want)))
		zr.Close()
		if err != nil {
			return nil, fmt.Errorf("%w: inflate array: %v", ErrInvalidFBX, err)
		}
		if len(buf) < want {
			return nil, fmt.Errorf("%w: inflate array: short by %d bytes", ErrInvalidFBX, want-len(buf))
		}
		raw = buf
	} else if len(raw) < want {
		return nil, fmt.Errorf("%w: short array", ErrInvalidFBX)
	}

	le := binary.LittleEndian
	switch code {
	case 'f':
		out := make([]float32, count)
		for i := range out {
			out[i] = math.Float32frombits(le.Uint32(raw[i*4:]))
		}
		return out, nil
	case 'd':
		out := make([]float64, count)
		for i := range out {
			out[i] = math.Float64frombits(le.Uint64(raw[i*8:]))
		}
		return out, nil
	case 'l':
		out := make([]int64, count)
		for i := range out {
			out[i] = int64(le.Uint64(raw[i*8:]))
		}
		return out, nil
	case 'i':
		out := make([]int32, count)
		for i := range out {
			out[i] = int32(le.Uint32(raw[i*4:]))
		}
		return out, nil
	default:
		out := make([]bool, count)
		for i := range out {
			out[i] = raw[i] != 0
		}
		return out, nil
	}
}
