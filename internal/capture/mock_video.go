package capture

import (
	"errors"
	"sync"

	"gocv.io/x/gocv"
)

// MockVideo plays back in-memory frames for testing.
type MockVideo struct {
	frames []*gocv.Mat
	index  int
	failAt int
	mu     sync.Mutex
	closed bool
}

// NewMockVideo returns a source yielding clones of frames in order.
func NewMockVideo(frames []*gocv.Mat) *MockVideo {
	return &MockVideo{frames: frames, failAt: -1}
}

// FailAt makes the read of frame index i return an error.
func (v *MockVideo) FailAt(i int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.failAt = i
}

func (v *MockVideo) Read() (*gocv.Mat, bool, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.closed {
		return nil, false, ErrVideoNotOpen
	}
	if v.index == v.failAt {
		return nil, false, errors.New("mock read failure")
	}
	if v.index >= len(v.frames) {
		return nil, false, nil
	}

	// Clone the frame so the original isn't modified
	frame := v.frames[v.index].Clone()
	v.index++

	return &frame, true, nil
}

func (v *MockVideo) FrameCount() int { return len(v.frames) }

func (v *MockVideo) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.closed = true
	return nil
}

// Closed reports whether Close was called.
func (v *MockVideo) Closed() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.closed
}
