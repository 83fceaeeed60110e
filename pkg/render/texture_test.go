package render

import (
	"image"
	"image/color"
	"testing"

	"github.com/taigrr/showroom/pkg/scene"
)

// quadrants returns a 2x2 image: red, green on top; blue, white below.
func quadrants() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.SetRGBA(0, 0, color.RGBA{255, 0, 0, 255})
	img.SetRGBA(1, 0, color.RGBA{0, 255, 0, 255})
	img.SetRGBA(0, 1, color.RGBA{0, 0, 255, 255})
	img.SetRGBA(1, 1, color.RGBA{255, 255, 255, 255})
	return img
}

func TestTextureSampleImageSpace(t *testing.T) {
	tex := TextureFromImage(quadrants(), 0)
	tex.FilterMode = FilterNearest

	tests := []struct {
		name string
		u, v float64
		want Color
	}{
		{"top left", 0.1, 0.1, RGB(255, 0, 0)},
		{"top right", 0.9, 0.1, RGB(0, 255, 0)},
		{"bottom left", 0.1, 0.9, RGB(0, 0, 255)},
		{"bottom right", 0.9, 0.9, RGB(255, 255, 255)},
		{"wraps u", 1.1, 0.1, RGB(255, 0, 0)},
		{"wraps negative v", 0.1, -0.1, RGB(0, 0, 255)},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tex.Sample(tc.u, tc.v); got != tc.want {
				t.Errorf("Sample(%v, %v) = %v, want %v", tc.u, tc.v, got, tc.want)
			}
		})
	}
}

func TestTextureSampleClamp(t *testing.T) {
	tex := TextureFromImage(quadrants(), 0)
	tex.FilterMode = FilterNearest
	tex.WrapU, tex.WrapV = WrapClamp, WrapClamp

	if got := tex.Sample(5, -5); got != RGB(0, 255, 0) {
		t.Errorf("clamped sample = %v, want top-right texel", got)
	}
}

func TestTextureBilinearCenter(t *testing.T) {
	tex := TextureFromImage(quadrants(), 0)
	tex.WrapU, tex.WrapV = WrapClamp, WrapClamp

	got := tex.Sample(0.5, 0.5)
	// Average of the four quadrants.
	if got.R < 120 || got.R > 135 || got.G < 120 || got.G > 135 || got.B < 120 || got.B > 135 {
		t.Errorf("bilinear center = %v, want mid gray", got)
	}
}

func TestTextureFromImageDownsamples(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 300, 150))
	for i := range img.Pix {
		img.Pix[i] = 200
		if i%4 == 3 {
			img.Pix[i] = 255
		}
	}

	tex := TextureFromImage(img, 64)
	if tex.Width != 64 || tex.Height != 32 {
		t.Fatalf("size = %dx%d, want 64x32", tex.Width, tex.Height)
	}
	if c := tex.GetPixel(10, 10); c.R < 190 || c.R > 210 {
		t.Errorf("downsampled texel = %v", c)
	}

	if tex := TextureFromImage(img, 0); tex.Width != 300 {
		t.Errorf("maxSize 0 should keep width, got %d", tex.Width)
	}
	if tex := TextureFromImage(image.NewRGBA(image.Rect(0, 0, 0, 0)), 0); tex != nil {
		t.Error("empty image should give nil texture")
	}
}

func TestTextureCacheEvictsOnDispose(t *testing.T) {
	cache := NewTextureCache(0)
	st := scene.NewTexture("q", quadrants())

	first := cache.Get(st)
	if first == nil {
		t.Fatal("expected texture")
	}
	if again := cache.Get(st); again != first {
		t.Error("second Get should return the cached texture")
	}
	if cache.Len() != 1 {
		t.Fatalf("Len = %d, want 1", cache.Len())
	}

	st.Dispose()
	if cache.Len() != 0 {
		t.Errorf("Len after dispose = %d, want 0", cache.Len())
	}
	if cache.Get(st) != nil {
		t.Error("disposed texture should not be cached again")
	}
}

func TestTextureCacheMissingImage(t *testing.T) {
	cache := NewTextureCache(0)
	missing := scene.NewTexture("missing.png", nil)

	if cache.Get(missing) != nil {
		t.Error("texture without image should sample as nil")
	}
	if cache.Get(nil) != nil {
		t.Error("nil texture should give nil")
	}
}
