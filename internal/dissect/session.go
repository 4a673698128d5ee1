package dissect

import (
	"sync"
	"sync/atomic"
	"time"
)

// Session holds state that spans the frames of one capture: the
// timestamp of the first frame, used as the baseline for Chain.Relative.
//
// A Session is safe for concurrent use. Independent captures should use
// independent sessions.
type Session struct {
	opts    Options
	once    sync.Once
	started atomic.Bool
	base    time.Time
}

// NewSession creates a session that dissects frames with opts.
func NewSession(opts Options) *Session {
	return &Session{opts: opts}
}

// Dissect dissects f and sets Chain.Relative against the session
// baseline. The first call fixes the baseline to f.Timestamp.
func (s *Session) Dissect(f Frame) (*Chain, error) {
	s.once.Do(func() {
		s.base = f.Timestamp
		s.started.Store(true)
	})

	ch, err := Dissect(f, s.opts)
	ch.Relative = f.Timestamp.Sub(s.base)
	return ch, err
}

// Base returns the first-seen timestamp and whether it has been set.
func (s *Session) Base() (time.Time, bool) {
	if !s.started.Load() {
		return time.Time{}, false
	}
	return s.base, true
}

// Options returns the dissection options of the session.
func (s *Session) Options() Options {
	return s.opts
}
