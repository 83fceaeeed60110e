package scene

import (
	"image"
	"sync"
)

// Texture wraps a decoded image bound to one or more material slots.
// The image may be nil when the source referenced a file that could not be
// read; the texture still has identity.
type Texture struct {
	resource

	Name   string
	Source string // file name or URI the image came from

	imgMu sync.RWMutex
	img   image.Image
}

// NewTexture creates a texture around img.
func NewTexture(name string, img image.Image) *Texture {
	return &Texture{resource: newResource(), Name: name, img: img}
}

// Image returns the decoded image, or nil after Dispose.
func (t *Texture) Image() image.Image {
	t.imgMu.RLock()
	defer t.imgMu.RUnlock()
	return t.img
}

// Dispose runs release hooks and drops the decoded image.
func (t *Texture) Dispose() {
	t.release()
	t.imgMu.Lock()
	t.img = nil
	t.imgMu.Unlock()
}
