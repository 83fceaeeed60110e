package scene

import (
	"math"
	"sort"

	"github.com/taigrr/showroom/pkg/math3d"
)

// TrackProperty is the node property a track animates.
type TrackProperty int

const (
	TrackPosition TrackProperty = iota
	TrackRotation
	TrackScale
)

// Interpolation selects how values between keyframes are computed.
type Interpolation int

const (
	InterpolateLinear Interpolation = iota
	InterpolateStep
)

// Track is a keyframe curve for one property of one node. Values holds three
// floats per key for position and scale, four (x, y, z, w) for rotation.
type Track struct {
	NodeName      string
	Target        *Node // resolved by name under the mixer root when nil
	Property      TrackProperty
	Interpolation Interpolation
	Times         []float64
	Values        []float64
}

func (t *Track) stride() int {
	if t.Property == TrackRotation {
		return 4
	}
	return 3
}

// AnimationClip is a named set of tracks.
type AnimationClip struct {
	Name     string
	Duration float64
	Tracks   []*Track
}

// NewAnimationClip creates a clip and derives Duration from the last keyframe
// of every track.
func NewAnimationClip(name string, tracks []*Track) *AnimationClip {
	c := &AnimationClip{Name: name, Tracks: tracks}
	for _, t := range tracks {
		if n := len(t.Times); n > 0 {
			c.Duration = math.Max(c.Duration, t.Times[n-1])
		}
	}
	return c
}

// Action is the playback state of one clip on a mixer.
type Action struct {
	clip    *AnimationClip
	mixer   *Mixer
	time    float64
	playing bool
	Loop    bool
}

// Play starts or resumes playback.
func (a *Action) Play() *Action {
	a.playing = true
	return a
}

// Stop halts playback and rewinds.
func (a *Action) Stop() {
	a.playing = false
	a.time = 0
}

// Playing reports whether the action is running.
func (a *Action) Playing() bool {
	return a.playing
}

// Time returns the local playback time in seconds.
func (a *Action) Time() float64 {
	return a.time
}

// Clip returns the clip being played.
func (a *Action) Clip() *AnimationClip {
	return a.clip
}

// Mixer drives animation clips on the subtree below its root.
type Mixer struct {
	root    *Node
	actions []*Action
}

// NewMixer binds a mixer to root.
func NewMixer(root *Node) *Mixer {
	return &Mixer{root: root}
}

// Root returns the node the mixer is bound to.
func (m *Mixer) Root() *Node {
	return m.root
}

// ClipAction returns the action for clip, creating it on first use.
func (m *Mixer) ClipAction(clip *AnimationClip) *Action {
	for _, a := range m.actions {
		if a.clip == clip {
			return a
		}
	}
	for _, t := range clip.Tracks {
		if t.Target == nil && t.NodeName != "" {
			t.Target = m.root.FindByName(t.NodeName)
		}
	}
	a := &Action{clip: clip, mixer: m, Loop: true}
	m.actions = append(m.actions, a)
	return a
}

// Actions returns every action created on the mixer.
func (m *Mixer) Actions() []*Action {
	return m.actions
}

// Update advances playing actions by dt seconds and applies their tracks.
func (m *Mixer) Update(dt float64) {
	for _, a := range m.actions {
		if !a.playing {
			continue
		}
		a.time += dt
		if d := a.clip.Duration; d > 0 {
			if a.Loop {
				a.time = math.Mod(a.time, d)
			} else if a.time >= d {
				a.time = d
				a.playing = false
			}
		}
		for _, t := range a.clip.Tracks {
			t.apply(a.time)
		}
	}
}

func (t *Track) apply(at float64) {
	if t.Target == nil || len(t.Times) == 0 {
		return
	}
	s := t.stride()
	if len(t.Values) < len(t.Times)*s {
		return
	}

	i := sort.SearchFloat64s(t.Times, at)
	var lo, hi int
	var f float64
	switch {
	case i == 0:
		lo, hi = 0, 0
	case i >= len(t.Times):
		lo, hi = len(t.Times)-1, len(t.Times)-1
	default:
		lo, hi = i-1, i
		span := t.Times[hi] - t.Times[lo]
		if span > 0 {
			f = (at - t.Times[lo]) / span
		}
		if t.Interpolation == InterpolateStep {
			f = 0
		}
	}

	a := t.Values[lo*s : lo*s+s]
	b := t.Values[hi*s : hi*s+s]
	switch t.Property {
	case TrackPosition:
		t.Target.Position = math3d.V3(a[0], a[1], a[2]).Lerp(math3d.V3(b[0], b[1], b[2]), f)
	case TrackScale:
		t.Target.Scale = math3d.V3(a[0], a[1], a[2]).Lerp(math3d.V3(b[0], b[1], b[2]), f)
	case TrackRotation:
		qa := math3d.Quat{X: a[0], Y: a[1], Z: a[2], W: a[3]}
		qb := math3d.Quat{X: b[0], Y: b[1], Z: b[2], W: b[3]}
		t.Target.Rotation = qa.Slerp(qb, f)
	}
}
