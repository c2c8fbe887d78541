package capture

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"gocv.io/x/gocv"
)

// ErrVideoNotOpen is returned when reading from a closed video source.
var ErrVideoNotOpen = errors.New("video is not open")

// AllowedVideoExtensions lists the accepted upload container extensions.
var AllowedVideoExtensions = []string{".avi", ".mkv", ".mov", ".mp4", ".webm"}

// IsAllowedVideo reports whether name has an allowed extension, ignoring case.
func IsAllowedVideo(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, allowed := range AllowedVideoExtensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

// VideoSource yields frames sequentially.
type VideoSource interface {
	// Read returns the next frame, or ok=false at end of stream. The caller
	// is responsible for closing the returned Mat.
	Read() (frame *gocv.Mat, ok bool, err error)
	// FrameCount is the container's advertised frame total, 0 when unknown.
	FrameCount() int
	Close() error
}

// Opener opens a VideoSource from a path.
type Opener func(path string) (VideoSource, error)

// videoFile reads frames from a video file using GoCV.
type videoFile struct {
	path    string
	capture *gocv.VideoCapture
	mu      sync.Mutex
}

// OpenVideoFile opens path for sequential reading. Corrupt files, unsupported
// codecs and a missing decoder backend all fail with ErrDecode.
func OpenVideoFile(path string) (VideoSource, error) {
	capture, err := gocv.VideoCaptureFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open video %s: %v", ErrDecode, filepath.Base(path), err)
	}
	if !capture.IsOpened() {
		capture.Close()
		return nil, fmt.Errorf("%w: unable to open video %s", ErrDecode, filepath.Base(path))
	}

	return &videoFile{path: path, capture: capture}, nil
}

// Read reads the next frame from the file.
func (v *videoFile) Read() (*gocv.Mat, bool, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.capture == nil {
		return nil, false, ErrVideoNotOpen
	}

	mat := gocv.NewMat()
	if ok := v.capture.Read(&mat); !ok || mat.Empty() {
		mat.Close()
		return nil, false, nil
	}

	return &mat, true, nil
}

// FrameCount returns the container's frame count property.
func (v *videoFile) FrameCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.capture == nil {
		return 0
	}
	n := int(v.capture.Get(gocv.VideoCaptureFrameCount))
	if n < 0 {
		return 0
	}
	return n
}

// Close releases the capture. Closing twice is a no-op.
func (v *videoFile) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.capture == nil {
		return nil
	}
	err := v.capture.Close()
	v.capture = nil
	return err
}
