package models

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ftrvxmtrx/tga"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
	"golang.org/x/image/webp"

	"github.com/taigrr/showroom/pkg/scene"
)

// ErrUnknownImage is returned for image bytes no decoder recognizes.
var ErrUnknownImage = errors.New("unknown image format")

type imageDecoder func(io.Reader) (image.Image, error)

// imageFormats are matched by magic prefix. "?" matches any byte.
var imageFormats = []struct {
	magic  string
	decode imageDecoder
}{
	{"\x89PNG\r\n\x1a\n", png.Decode},
	{"\xff\xd8", jpeg.Decode},
	{"GIF8", gif.Decode},
	{"BM", bmp.Decode},
	{"II*\x00", tiff.Decode},
	{"MM\x00*", tiff.Decode},
	{"RIFF????WEBPVP8", webp.Decode},
}

func matchMagic(magic string, data []byte) bool {
	if len(data) < len(magic) {
		return false
	}
	for i := range len(magic) {
		if magic[i] != '?' && magic[i] != data[i] {
			return false
		}
	}
	return true
}

// DecodeImage decodes image bytes. Formats are detected from their magic
// bytes; TGA has none, so it is recognized by the extension of name.
func DecodeImage(name string, data []byte) (image.Image, error) {
	var decode imageDecoder
	if strings.EqualFold(filepath.Ext(name), ".tga") {
		decode = tga.Decode
	} else {
		for _, f := range imageFormats {
			if matchMagic(f.magic, data) {
				decode = f.decode
				break
			}
		}
	}
	if decode == nil {
		return nil, fmt.Errorf("decode %s: %w", name, ErrUnknownImage)
	}
	img, err := decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}
	return img, nil
}

// textureSet loads each referenced image file once per model so materials
// sharing a file share one *scene.Texture.
type textureSet struct {
	dir    string
	byPath map[string]*scene.Texture
	res    *Result
}

func newTextureSet(dir string, res *Result) *textureSet {
	return &textureSet{dir: dir, byPath: make(map[string]*scene.Texture), res: res}
}

// file resolves ref relative to the model directory. Exporters write absolute
// paths from the authoring machine and Windows separators, so the base name is
// tried as a fallback.
func (s *textureSet) file(ref string) *scene.Texture {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil
	}
	if tex, ok := s.byPath[ref]; ok {
		return tex
	}

	norm := strings.ReplaceAll(ref, `\`, "/")
	candidates := []string{
		filepath.Join(s.dir, filepath.FromSlash(norm)),
		filepath.Join(s.dir, filepath.Base(filepath.FromSlash(norm))),
	}
	if filepath.IsAbs(norm) {
		candidates = append([]string{norm}, candidates...)
	}

	var tex *scene.Texture
	for _, p := range candidates {
		data, err := os.ReadFile(p)
		if err != nil {
			continue
		}
		img, err := DecodeImage(p, data)
		if err != nil {
			s.res.warnf("texture %s: %v", ref, err)
			break
		}
		tex = scene.NewTexture(filepath.Base(norm), img)
		tex.Source = p
		break
	}
	if tex == nil {
		s.res.warnf("texture %s: not found", ref)
		tex = scene.NewTexture(filepath.Base(norm), nil)
		tex.Source = ref
	}
	s.byPath[ref] = tex
	return tex
}

// bytes registers an embedded image under key.
func (s *textureSet) bytes(key, name string, data []byte) *scene.Texture {
	if tex, ok := s.byPath[key]; ok {
		return tex
	}
	img, err := DecodeImage(name, data)
	if err != nil {
		s.res.warnf("embedded texture %s: %v", name, err)
	}
	tex := scene.NewTexture(name, img)
	tex.Source = key
	s.byPath[key] = tex
	return tex
}
