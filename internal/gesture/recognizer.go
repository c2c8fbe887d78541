// Package gesture turns frames and videos into sign predictions: landmark
// extraction, classification and majority-vote aggregation.
package gesture

import (
	"fmt"
	"sync"

	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"github.com/ayusman/mudra/internal/classifier"
	"github.com/ayusman/mudra/internal/detector"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// FramePrediction is the classification of a single frame.
type FramePrediction struct {
	Label        string  `json:"prediction"`
	Confidence   float64 `json:"confidence"`
	HandDetected bool    `json:"keypoints_detected"`
}

// FramePredictor classifies one BGR frame.
type FramePredictor interface {
	PredictFrame(frame *gocv.Mat) (FramePrediction, error)
}

// Recognizer holds the classifier and the shared hand tracker. It is built
// once at startup and used by every request.
type Recognizer struct {
	classifier *classifier.Classifier
	tracker    *detector.Tracker
	modelMu    sync.Mutex
	logger     logrus.FieldLogger
}

// NewRecognizer creates a Recognizer around c and the shared tracker.
func NewRecognizer(c *classifier.Classifier, tracker *detector.Tracker, logger logrus.FieldLogger) *Recognizer {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Recognizer{
		classifier: c,
		tracker:    tracker,
		logger:     logger,
	}
}

// Classifier returns the underlying classifier.
func (r *Recognizer) Classifier() *classifier.Classifier {
	return r.classifier
}

// Extract returns the landmark vector of the first hand in frame using the
// shared tracker. A frame without a hand yields the zero vector.
func (r *Recognizer) Extract(frame *gocv.Mat) (detector.Vector, error) {
	return extract(r.tracker, frame)
}

// PredictFrame classifies frame using the shared tracker.
func (r *Recognizer) PredictFrame(frame *gocv.Mat) (FramePrediction, error) {
	return r.predict(r.tracker, frame)
}

// Session binds the Recognizer to a per-client tracker so that temporal
// tracking state stays isolated to that client.
func (r *Recognizer) Session(tracker *detector.Tracker) *Session {
	return &Session{recognizer: r, tracker: tracker}
}

// Session is a FramePredictor that shares the Recognizer's classifier but
// owns its tracker.
type Session struct {
	recognizer *Recognizer
	tracker    *detector.Tracker
}

// Extract is Recognizer.Extract on the session tracker.
func (s *Session) Extract(frame *gocv.Mat) (detector.Vector, error) {
	return extract(s.tracker, frame)
}

// PredictFrame is Recognizer.PredictFrame on the session tracker.
func (s *Session) PredictFrame(frame *gocv.Mat) (FramePrediction, error) {
	return s.recognizer.predict(s.tracker, frame)
}

func (r *Recognizer) predict(tracker *detector.Tracker, frame *gocv.Mat) (FramePrediction, error) {
	vector, err := extract(tracker, frame)
	if err != nil {
		return FramePrediction{}, err
	}

	dist, err := r.infer(vector)
	if err != nil {
		return FramePrediction{}, err
	}

	best := argmax(dist)
	return FramePrediction{
		Label:        r.classifier.Label(best),
		Confidence:   dist[best],
		HandDetected: !vector.IsZero(),
	}, nil
}

// infer runs the classifier under the model lock.
func (r *Recognizer) infer(vector detector.Vector) ([]float64, error) {
	r.modelMu.Lock()
	defer r.modelMu.Unlock()

	dist, err := r.classifier.Infer(vector.Float64s())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInference, err)
	}
	return dist, nil
}

func extract(tracker *detector.Tracker, frame *gocv.Mat) (detector.Vector, error) {
	if frame == nil || frame.Empty() {
		return detector.Vector{}, fmt.Errorf("%w: empty frame", ErrDecode)
	}
	if frame.Channels() != 3 {
		return detector.Vector{}, fmt.Errorf("%w: frame has %d channels, want 3", ErrDecode, frame.Channels())
	}

	rgb := gocv.NewMat()
	defer rgb.Close()
	gocv.CvtColor(*frame, &rgb, gocv.ColorBGRToRGB)

	hands, err := tracker.Detect(&rgb)
	if err != nil {
		return detector.Vector{}, fmt.Errorf("%w: hand tracking: %v", ErrInference, err)
	}
	if len(hands) == 0 {
		return detector.Vector{}, nil
	}

	return hands[0].Flatten(), nil
}

// argmax returns the index of the largest value, the lowest index on ties.
func argmax(dist []float64) int {
	best := 0
	for i := 1; i < len(dist); i++ {
		if dist[i] > dist[best] {
			best = i
		}
	}
	return best
}
