package detector

import (
	"errors"
	"fmt"
	"sync"

	"gocv.io/x/gocv"
)

// Tracker serializes access to a stateful Detector. At most one Detect call
// runs at a time per Tracker.
type Tracker struct {
	mu  sync.Mutex
	det Detector
}

// NewTracker wraps d.
func NewTracker(d Detector) *Tracker {
	return &Tracker{det: d}
}

// Detect forwards to the wrapped Detector under the tracker lock.
func (t *Tracker) Detect(frame *gocv.Mat) ([]HandLandmarks, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.det.Detect(frame)
}

// Close releases the wrapped Detector.
func (t *Tracker) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.det.Close()
}

// Sessions keeps one Tracker per session so that temporal tracking state of
// one client never leaks into another. Trackers are created on Open and
// evicted on Close.
type Sessions struct {
	factory  Factory
	mu       sync.Mutex
	trackers map[string]*Tracker
}

// NewSessions creates an empty arena that builds trackers with factory.
func NewSessions(factory Factory) *Sessions {
	return &Sessions{
		factory:  factory,
		trackers: make(map[string]*Tracker),
	}
}

// Open returns the tracker for id, creating it on first use.
func (s *Sessions) Open(id string) (*Tracker, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.trackers[id]; ok {
		return t, nil
	}

	d, err := s.factory()
	if err != nil {
		return nil, fmt.Errorf("create tracker for session %s: %w", id, err)
	}
	t := NewTracker(d)
	s.trackers[id] = t
	return t, nil
}

// Close evicts the tracker for id and releases it. Unknown ids are ignored.
func (s *Sessions) Close(id string) error {
	s.mu.Lock()
	t, ok := s.trackers[id]
	delete(s.trackers, id)
	s.mu.Unlock()

	if !ok {
		return nil
	}
	return t.Close()
}

// Len returns the number of live sessions.
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.trackers)
}

// CloseAll releases every session tracker.
func (s *Sessions) CloseAll() error {
	s.mu.Lock()
	trackers := s.trackers
	s.trackers = make(map[string]*Tracker)
	s.mu.Unlock()

	var errs []error
	for id, t := range trackers {
		if err := t.Close(); err != nil {
			errs = append(errs, fmt.Errorf("session %s: %w", id, err))
		}
	}
	return errors.Join(errs...)
}
