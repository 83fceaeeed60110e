package render

import (
	"image"
	"math"
	"sync"

	"golang.org/x/image/draw"

	"github.com/taigrr/showroom/pkg/scene"
)

// WrapMode determines how texture coordinates outside [0,1] are handled.
type WrapMode int

const (
	WrapRepeat WrapMode = iota // Tile the texture
	WrapClamp                  // Clamp to edge
)

// FilterMode determines how texture sampling is performed.
type FilterMode int

const (
	FilterNearest  FilterMode = iota // Nearest-neighbor (pixelated)
	FilterBilinear                   // Bilinear interpolation (smooth)
)

// Texture holds decoded texels ready for sampling. UV (0,0) is the top-left
// texel, matching scene geometry.
type Texture struct {
	Width      int
	Height     int
	Pixels     []Color    // Row-major pixel data
	WrapU      WrapMode   // Horizontal wrap mode
	WrapV      WrapMode   // Vertical wrap mode
	FilterMode FilterMode // Sampling filter mode
}

// NewTexture creates an empty texture with the given dimensions.
func NewTexture(width, height int) *Texture {
	return &Texture{
		Width:      width,
		Height:     height,
		Pixels:     make([]Color, width*height),
		WrapU:      WrapRepeat,
		WrapV:      WrapRepeat,
		FilterMode: FilterNearest,
	}
}

// TextureFromImage converts img to a texture. Images larger than maxSize on
// either side are downsampled with Catmull-Rom first; maxSize <= 0 keeps the
// original size.
func TextureFromImage(img image.Image, maxSize int) *Texture {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width == 0 || height == 0 {
		return nil
	}

	if maxSize > 0 && (width > maxSize || height > maxSize) {
		longest := max(width, height)
		w := max(1, width*maxSize/longest)
		h := max(1, height*maxSize/longest)
		dst := image.NewRGBA(image.Rect(0, 0, w, h))
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Src, nil)
		img, bounds, width, height = dst, dst.Bounds(), w, h
	}

	tex := NewTexture(width, height)
	tex.FilterMode = FilterBilinear
	if rgba, ok := img.(*image.RGBA); ok {
		for y := range height {
			for x := range width {
				tex.Pixels[y*width+x] = rgba.RGBAAt(bounds.Min.X+x, bounds.Min.Y+y)
			}
		}
		return tex
	}
	for y := range height {
		for x := range width {
			r, g, b, a := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			// RGBA returns 16-bit values, scale to 8-bit
			tex.Pixels[y*width+x] = Color{
				R: uint8(r >> 8),
				G: uint8(g >> 8),
				B: uint8(b >> 8),
				A: uint8(a >> 8),
			}
		}
	}
	return tex
}

// SetPixel sets a pixel in the texture.
func (t *Texture) SetPixel(x, y int, c Color) {
	if x < 0 || x >= t.Width || y < 0 || y >= t.Height {
		return
	}
	t.Pixels[y*t.Width+x] = c
}

// GetPixel returns the pixel at (x, y) with bounds checking.
func (t *Texture) GetPixel(x, y int) Color {
	if x < 0 || x >= t.Width || y < 0 || y >= t.Height {
		return Color{}
	}
	return t.Pixels[y*t.Width+x]
}

// Sample samples the texture at UV coordinates (0-1 range).
func (t *Texture) Sample(u, v float64) Color {
	u = wrapCoord(u, t.WrapU)
	v = wrapCoord(v, t.WrapV)

	switch t.FilterMode {
	case FilterBilinear:
		return t.sampleBilinear(u, v)
	default:
		return t.sampleNearest(u, v)
	}
}

// wrapCoord applies the wrap mode to a coordinate.
func wrapCoord(coord float64, mode WrapMode) float64 {
	switch mode {
	case WrapRepeat:
		coord = coord - math.Floor(coord) // fmod to [0,1)
	case WrapClamp:
		coord = math.Max(0, math.Min(1, coord))
	}
	return coord
}

// sampleNearest returns the nearest pixel.
func (t *Texture) sampleNearest(u, v float64) Color {
	x := min(int(u*float64(t.Width)), t.Width-1)
	y := min(int(v*float64(t.Height)), t.Height-1)
	return t.GetPixel(x, y)
}

// sampleBilinear returns bilinearly interpolated color.
func (t *Texture) sampleBilinear(u, v float64) Color {
	fx := u*float64(t.Width) - 0.5
	fy := v*float64(t.Height) - 0.5

	x0 := int(math.Floor(fx))
	y0 := int(math.Floor(fy))
	tx := fx - float64(x0)
	ty := fy - float64(y0)

	x1 := wrapPixel(x0+1, t.Width, t.WrapU)
	y1 := wrapPixel(y0+1, t.Height, t.WrapV)
	x0 = wrapPixel(x0, t.Width, t.WrapU)
	y0 = wrapPixel(y0, t.Height, t.WrapV)

	top := lerpColor(t.GetPixel(x0, y0), t.GetPixel(x1, y0), tx)
	bot := lerpColor(t.GetPixel(x0, y1), t.GetPixel(x1, y1), tx)
	return lerpColor(top, bot, ty)
}

func wrapPixel(x, size int, mode WrapMode) int {
	switch mode {
	case WrapRepeat:
		x = x % size
		if x < 0 {
			x += size
		}
	case WrapClamp:
		x = max(0, min(x, size-1))
	}
	return x
}

// lerpColor linearly interpolates between two colors.
func lerpColor(a, b Color, t float64) Color {
	return Color{
		R: uint8(float64(a.R) + (float64(b.R)-float64(a.R))*t),
		G: uint8(float64(a.G) + (float64(b.G)-float64(a.G))*t),
		B: uint8(float64(a.B) + (float64(b.B)-float64(a.B))*t),
		A: uint8(float64(a.A) + (float64(b.A)-float64(a.A))*t),
	}
}

// TextureCache converts scene textures to sampling textures once and drops
// them when the scene texture is disposed.
type TextureCache struct {
	mu      sync.Mutex
	maxSize int
	entries map[uint64]*Texture
}

// NewTextureCache creates a cache that downsamples images to at most maxSize
// texels per side.
func NewTextureCache(maxSize int) *TextureCache {
	return &TextureCache{maxSize: maxSize, entries: make(map[uint64]*Texture)}
}

// Get returns the sampling texture for t, or nil when t has no image.
func (c *TextureCache) Get(t *scene.Texture) *Texture {
	if t == nil || t.Disposed() {
		return nil
	}
	id := t.ID()

	c.mu.Lock()
	tex, ok := c.entries[id]
	c.mu.Unlock()
	if ok {
		return tex
	}

	img := t.Image()
	if img != nil {
		tex = TextureFromImage(img, c.maxSize)
	}

	c.mu.Lock()
	if cached, ok := c.entries[id]; ok {
		c.mu.Unlock()
		return cached
	}
	c.entries[id] = tex
	c.mu.Unlock()

	t.OnDispose(func() { c.evict(id) })
	if t.Disposed() {
		// Disposed before the hook was registered.
		c.evict(id)
	}
	return tex
}

func (c *TextureCache) evict(id uint64) {
	c.mu.Lock()
	delete(c.entries, id)
	c.mu.Unlock()
}

// Len returns the number of cached entries.
func (c *TextureCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
