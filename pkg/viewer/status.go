package viewer

import (
	"fmt"
	"sync"
)

// State is the phase a load is in.
type State int

const (
	StateIdle State = iota
	StateLoading
	StateReady
	StateAnimated
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateAnimated:
		return "animated"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// MarshalText lets State encode as its name in JSON.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(text []byte) error {
	for st := StateIdle; st <= StateFailed; st++ {
		if st.String() == string(text) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown state %q", text)
}

// Terminal reports whether no further events follow for the load.
func (s State) Terminal() bool {
	return s == StateReady || s == StateAnimated || s == StateFailed
}

// Status is published on every change of a load's progress.
type Status struct {
	Generation uint64 `json:"generation"`
	State      State  `json:"state"`
	File       string `json:"file,omitempty"`
	Format     string `json:"format,omitempty"` // uppercased extension
	Size       string `json:"size,omitempty"`   // "12.34 MB"
	Progress   int    `json:"progress"`         // percent, -1 when not loading
	Stats      *Stats `json:"stats,omitempty"`
	Error      string `json:"error,omitempty"`
}

// FormatSize renders a byte count in megabytes with two decimals.
func FormatSize(bytes int64) string {
	return fmt.Sprintf("%.2f MB", float64(bytes)/(1024*1024))
}

// Message is the one-line text a shell shows for s.
func (s Status) Message() string {
	switch s.State {
	case StateLoading:
		if s.Progress >= 0 {
			return fmt.Sprintf("Loading %s: %d%%", s.File, s.Progress)
		}
		return "Loading " + s.File
	case StateReady:
		return "Model loaded"
	case StateAnimated:
		return "Model loaded, animation playing"
	case StateFailed:
		return "Load failed: " + s.Error
	default:
		return "No model"
	}
}

// hub fans status out to subscribers. Slow subscribers lose intermediate
// events but a full buffer never blocks the publisher.
type hub struct {
	mu     sync.Mutex
	subs   map[chan Status]struct{}
	last   Status
	closed bool
}

func newHub() *hub {
	return &hub{subs: make(map[chan Status]struct{}), last: Status{Progress: -1}}
}

func (h *hub) publish(st Status) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.last = st
	for ch := range h.subs {
		select {
		case ch <- st:
		default:
			// Drop the oldest queued event to make room.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- st:
			default:
			}
		}
	}
}

// subscribe returns a channel primed with the latest status and a function
// that unsubscribes and closes it.
func (h *hub) subscribe(buffer int) (<-chan Status, func()) {
	ch := make(chan Status, max(buffer, 1))
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(ch)
		return ch, func() {}
	}
	ch <- h.last
	h.subs[ch] = struct{}{}

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if _, ok := h.subs[ch]; ok {
				delete(h.subs, ch)
				close(ch)
			}
		})
	}
}

func (h *hub) latest() Status {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.last
}

func (h *hub) close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for ch := range h.subs {
		delete(h.subs, ch)
		close(ch)
	}
}
