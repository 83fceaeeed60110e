// Package scene provides the scene graph the viewer loads models into: a tree
// of transform nodes, mesh leaves with geometry and materials, textures,
// lights, fog, a ground grid, and keyframe animation.
//
// Geometry, materials and textures are disposable resources. Renderers cache
// derived data for them (converted texture pixels, for instance) and register
// a release hook with OnDispose; Dispose runs those hooks.
package scene

import (
	"sync"
	"sync/atomic"
)

var lastID atomic.Uint64

// NewID returns a process-unique resource identifier.
func NewID() uint64 {
	return lastID.Add(1)
}

// Disposable is implemented by resources that hold renderer-side data.
type Disposable interface {
	ID() uint64
	Dispose()
	Disposed() bool
}

// resource carries identity and disposal bookkeeping shared by Geometry,
// Material and Texture.
type resource struct {
	id        uint64
	disposals atomic.Int32

	mu    sync.Mutex
	hooks []func()
}

func newResource() resource {
	return resource{id: NewID()}
}

// ID returns the resource identifier.
func (r *resource) ID() uint64 {
	return r.id
}

// Disposed reports whether Dispose has been called at least once.
func (r *resource) Disposed() bool {
	return r.disposals.Load() > 0
}

// DisposeCount returns how many times Dispose was called.
func (r *resource) DisposeCount() int {
	return int(r.disposals.Load())
}

// OnDispose registers fn to run when the resource is disposed. Hooks run
// once, on the first Dispose.
func (r *resource) OnDispose(fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hooks = append(r.hooks, fn)
}

func (r *resource) release() {
	if r.disposals.Add(1) > 1 {
		return
	}
	r.mu.Lock()
	hooks := r.hooks
	r.hooks = nil
	r.mu.Unlock()
	for _, fn := range hooks {
		fn()
	}
}
