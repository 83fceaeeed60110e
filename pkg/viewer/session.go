// Package viewer owns the viewer scene and replaces the displayed model.
//
// A Session holds the scene, camera, orbit controls and the one current
// model. Load parses a file and runs it through the replacement pipeline:
// release the previous model, tag the new root, start its first animation,
// count stats, normalize materials, center and ground it under a pivot, and
// frame the camera. Loads may overlap; the most recently started one wins
// and superseded results are disposed without ever being shown.
package viewer

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/taigrr/showroom/pkg/math3d"
	"github.com/taigrr/showroom/pkg/models"
	"github.com/taigrr/showroom/pkg/render"
	"github.com/taigrr/showroom/pkg/scene"
)

var (
	// ErrSuperseded is returned by a load that finished after a newer load
	// started. Its result was discarded.
	ErrSuperseded = errors.New("load superseded")
	// ErrClosed is returned by operations on a closed session.
	ErrClosed = errors.New("session closed")
	// ErrNoModel is returned by operations that need a loaded model.
	ErrNoModel = errors.New("no model loaded")
)

type loadFunc func(ctx context.Context, path string, progress models.ProgressFunc) (*models.Result, error)

// Session is a viewer: one scene, one camera, at most one loaded model.
// All methods are safe for concurrent use.
type Session struct {
	cfg Config
	log *zap.Logger
	hub *hub
	// load parses files; replaced in tests.
	load loadFunc

	mu        sync.Mutex
	scene     *scene.Scene
	camera    *render.Camera
	controls  *Controls
	model     *scene.Node
	pivot     *scene.Node
	mixer     *scene.Mixer
	stats     Stats
	frame     Frame
	wireframe bool
	gen       uint64
	pending   Status // last status published by the current generation
	cancel    context.CancelFunc
	closed    bool
}

// New creates a session with an empty scene set up from cfg. A nil logger
// discards output.
func New(cfg Config, log *zap.Logger) *Session {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Session{
		cfg:  cfg,
		log:  log,
		hub:  newHub(),
		load: models.Load,
	}
	s.scene = newScene(cfg)
	s.camera = render.NewCamera()
	s.camera.SetFOVDegrees(cfg.FOV)
	s.camera.SetClipPlanes(cfg.Near, cfg.Far)
	s.controls = NewControls(cfg.FPS, cfg.AutoRotateSpeed, cfg.Near*2, cfg.Far/2)
	s.controls.AutoRotate = cfg.AutoRotate
	s.controls.SetHome(cfg.StartPosition, math3d.Zero3())
	s.controls.Apply(s.camera)
	return s
}

func newScene(cfg Config) *scene.Scene {
	s := scene.New()
	s.Background = cfg.Background
	s.Fog = &scene.Fog{Color: cfg.Background, Near: cfg.FogNear, Far: cfg.FogFar}
	s.Grid = &scene.Grid{
		Size:        cfg.Grid.Size,
		Divisions:   cfg.Grid.Divisions,
		CenterColor: cfg.Grid.CenterColor,
		LineColor:   cfg.Grid.LineColor,
		Y:           cfg.Grid.Y,
		Visible:     cfg.Grid.Visible,
	}
	s.Hemisphere = &scene.HemisphereLight{
		Sky:       cfg.HemisphereSky,
		Ground:    cfg.HemisphereGround,
		Intensity: cfg.HemisphereIntensity,
	}
	for _, l := range []struct {
		name string
		cfg  LightConfig
	}{{LightMain, cfg.Main}, {LightFill, cfg.Fill}, {LightRim, cfg.Rim}} {
		s.Lights = append(s.Lights, &scene.DirectionalLight{
			Name:      l.name,
			Color:     l.cfg.Color,
			Intensity: l.cfg.Intensity,
			Position:  l.cfg.Position,
		})
	}
	return s
}

// Load reads and displays the model at path, replacing the current one.
//
// The format comes from the file extension; an unsupported extension fails
// before the file is touched. Any failure leaves the current model in
// place. Starting another load cancels this one, which then returns
// ErrSuperseded.
func (s *Session) Load(ctx context.Context, path string) (Stats, error) {
	name := filepath.Base(path)
	format, err := models.DetectFormat(name)
	if err != nil {
		s.hub.publish(Status{State: StateFailed, File: name, Progress: -1, Error: err.Error()})
		s.log.Warn("rejected model", zap.String("file", name), zap.Error(err))
		return Stats{}, err
	}

	ctx, gen, err := s.begin(ctx)
	if err != nil {
		return Stats{}, err
	}
	defer s.finish(gen)

	info, err := os.Stat(path)
	if err != nil {
		return Stats{}, s.fail(gen, name, fmt.Errorf("stat model: %w", err))
	}
	loading := Status{
		Generation: gen,
		State:      StateLoading,
		File:       name,
		Format:     strings.ToUpper(models.Extension(name)),
		Size:       FormatSize(info.Size()),
		Progress:   0,
	}
	s.publish(gen, loading)
	s.log.Info("loading model",
		zap.String("file", name),
		zap.String("format", string(format)),
		zap.Int64("bytes", info.Size()),
		zap.Uint64("generation", gen),
	)

	if s.cfg.LoadDelay > 0 {
		t := time.NewTimer(s.cfg.LoadDelay)
		select {
		case <-ctx.Done():
			t.Stop()
			return Stats{}, s.fail(gen, name, ctx.Err())
		case <-t.C:
		}
	}

	lastPercent := -1
	progress := func(loaded, total int64) {
		if total <= 0 {
			return
		}
		percent := int(math.Round(float64(loaded) * 100 / float64(total)))
		if percent == lastPercent {
			return
		}
		lastPercent = percent
		st := loading
		st.Progress = percent
		s.publish(gen, st)
		s.log.Debug("load progress", zap.String("file", name), zap.Int("percent", percent))
	}

	start := time.Now()
	res, err := s.load(ctx, path, progress)
	if err != nil {
		return Stats{}, s.fail(gen, name, fmt.Errorf("load %s: %w", name, err))
	}
	for _, w := range res.Warnings {
		s.log.Warn("model warning", zap.String("file", name), zap.String("warning", w))
	}

	st, err := s.replace(gen, res)
	if err != nil {
		res.Dispose()
		return Stats{}, err
	}
	s.log.Info("model loaded",
		zap.String("file", name),
		zap.Int("vertices", st.Vertices),
		zap.Int("triangles", st.Triangles),
		zap.Int("materials", st.Materials),
		zap.Int("textures", st.Textures),
		zap.Duration("elapsed", time.Since(start)),
	)
	return st, nil
}

// Replace displays an already parsed result, superseding any load in
// progress. The session takes ownership of res.
func (s *Session) Replace(res *models.Result) (Stats, error) {
	if res == nil || (res.Root == nil && res.Geometry == nil) {
		return Stats{}, fmt.Errorf("replace model: %w", models.ErrNoGeometry)
	}
	_, gen, err := s.begin(context.Background())
	if err != nil {
		return Stats{}, err
	}
	defer s.finish(gen)
	st, err := s.replace(gen, res)
	if err != nil {
		res.Dispose()
	}
	return st, err
}

// begin starts a new generation, cancelling the load in progress.
func (s *Session) begin(parent context.Context) (context.Context, uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, 0, ErrClosed
	}
	if s.cancel != nil {
		s.cancel()
	}
	ctx, cancel := context.WithCancel(parent)
	s.gen++
	s.cancel = cancel
	return ctx, s.gen, nil
}

// finish releases the context of generation gen if it is still current.
func (s *Session) finish(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen == gen && s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

// publish sends st if gen is still the current generation.
func (s *Session) publish(gen uint64, st Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen == gen && !s.closed {
		s.pending = st
		s.hub.publish(st)
	}
}

// fail reports err for generation gen. Failures of superseded loads are
// reported as ErrSuperseded and not published.
func (s *Session) fail(gen uint64, name string, err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if s.gen != gen {
		s.log.Debug("load superseded", zap.String("file", name), zap.Uint64("generation", gen))
		return ErrSuperseded
	}
	s.hub.publish(Status{Generation: gen, State: StateFailed, File: name, Progress: -1, Error: err.Error()})
	s.log.Warn("load failed", zap.String("file", name), zap.Error(err))
	return err
}

// replace runs the pipeline for res if gen is current.
func (s *Session) replace(gen uint64, res *models.Result) (Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Stats{}, ErrClosed
	}
	if s.gen != gen {
		return Stats{}, ErrSuperseded
	}

	root := s.cfg.modelRoot(res)

	// The previous model is gone before the new one becomes current.
	if s.model != nil {
		released := scene.DisposeTree(s.model)
		s.scene.Remove(s.pivot)
		s.log.Debug("released model",
			zap.Int("geometries", released.Geometries),
			zap.Int("materials", released.Materials),
			zap.Int("textures", released.Textures),
		)
		s.model, s.pivot = nil, nil
	}

	root.Name = ModelName
	s.wireframe = false

	clips := res.Animations
	if len(clips) == 0 {
		clips = root.Animations
	}
	root.Animations = clips
	s.mixer = nil
	if len(clips) > 0 {
		s.mixer = scene.NewMixer(root)
		s.mixer.ClipAction(clips[0]).Play()
	}

	s.stats = ComputeStats(root)
	s.cfg.normalizeMaterials(root)

	pivot, box := place(root)
	s.scene.Add(pivot)
	s.model, s.pivot = root, pivot

	s.frame = s.cfg.FrameBox(box)
	s.scene.Fog.Near, s.scene.Fog.Far = s.frame.FogNear, s.frame.FogFar
	s.controls.SetHome(s.frame.Position, s.frame.Target)
	s.controls.Apply(s.camera)

	state := StateReady
	if s.mixer != nil {
		state = StateAnimated
	}
	// Rejected files publish outside any generation, so the hub's latest
	// status may not be this load's.
	done := s.pending
	if done.Generation != gen {
		done = Status{Generation: gen}
	}
	done.State = state
	done.Progress = -1
	done.Error = ""
	stats := s.stats
	done.Stats = &stats
	s.hub.publish(done)
	return s.stats, nil
}

// Status returns the most recent status.
func (s *Session) Status() Status {
	return s.hub.latest()
}

// Subscribe returns a channel receiving status changes, starting with the
// current status, and a function that ends the subscription. Subscribers
// that fall behind miss intermediate events.
func (s *Session) Subscribe(buffer int) (<-chan Status, func()) {
	return s.hub.subscribe(buffer)
}

// Model returns the node tagged as the current model, or nil.
func (s *Session) Model() *scene.Node {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scene.Root.FindByName(ModelName)
}

// Stats returns the statistics of the current model.
func (s *Session) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Frame returns the camera frame computed for the current model.
func (s *Session) Frame() Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frame
}

// Mixer returns the animation mixer of the current model, or nil.
func (s *Session) Mixer() *scene.Mixer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mixer
}

// Camera returns the session camera. Renderers drawing the session share
// it; mutate it only through the session.
func (s *Session) Camera() *render.Camera {
	return s.camera
}

// Config returns the session configuration.
func (s *Session) Config() Config {
	return s.cfg
}

// View calls fn with the scene while holding the session lock.
func (s *Session) View(fn func(*scene.Scene)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.scene)
}

// Update advances animation by dt seconds and the controls by one frame.
// It reports whether anything changed on screen.
func (s *Session) Update(dt float64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	changed := false
	if s.mixer != nil {
		s.mixer.Update(dt)
		changed = true
	}
	if s.controls.Update() {
		changed = true
	}
	s.controls.Apply(s.camera)
	return changed
}

// Render draws the scene with r, whose camera must be the session camera.
func (s *Session) Render(r *render.Renderer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r.Render(s.scene)
}

// Resize resizes r and the session camera aspect ratio.
func (s *Session) Resize(r *render.Renderer, width, height int, pixelAspect float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r.Resize(width, height, pixelAspect)
}

// Close cancels any load in progress, releases the current model and ends
// every status subscription.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.closed = true
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	if s.model != nil {
		scene.DisposeTree(s.model)
		s.scene.Remove(s.pivot)
		s.model, s.pivot, s.mixer = nil, nil, nil
	}
	s.mu.Unlock()
	s.hub.close()
	return nil
}
