package detector

import "gocv.io/x/gocv"

// Detector defines the interface for hand landmark trackers.
//
// Implementations may keep state between calls to exploit temporal continuity
// of consecutive frames, so a Detector must not be used from more than one
// goroutine at a time unless it says otherwise.
type Detector interface {
	// Detect analyzes an RGB frame and returns detected hand landmarks.
	// Returns an empty slice if no hands are detected.
	Detect(frame *gocv.Mat) ([]HandLandmarks, error)

	// Close releases any resources held by the detector.
	Close() error
}

// Factory creates a fresh, independent Detector.
type Factory func() (Detector, error)

// Config holds configuration options for hand tracking.
type Config struct {
	// MaxHands is the maximum number of hands to track (default: 1).
	MaxHands int

	// MinConfidence is the minimum detection confidence threshold (0.0-1.0).
	MinConfidence float64

	// MinTrackingConf is the minimum tracking confidence threshold (0.0-1.0).
	MinTrackingConf float64

	// StaticImageMode treats every frame as unrelated when true. The default
	// streaming mode tracks the hand across consecutive frames.
	StaticImageMode bool

	// Script is the path of the MediaPipe service script. Empty means search
	// the usual install locations.
	Script string

	// Python is the interpreter used to run Script. Empty means a virtualenv
	// interpreter if one is found, else python3.
	Python string
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		MaxHands:        1,
		MinConfidence:   0.5,
		MinTrackingConf: 0.5,
	}
}

// NoHandDetector never finds a hand. It stands in for the real tracker when
// the MediaPipe service is unavailable so the rest of the pipeline still runs.
type NoHandDetector struct{}

// Detect always reports no hands.
func (NoHandDetector) Detect(*gocv.Mat) ([]HandLandmarks, error) { return nil, nil }

// Close is a no-op.
func (NoHandDetector) Close() error { return nil }
