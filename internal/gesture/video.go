package gesture

import (
	"fmt"

	"github.com/ayusman/mudra/internal/capture"
)

// DefaultStride samples every fifth frame.
const DefaultStride = 5

// NoGestureLabel is the verdict label when no frame was sampled.
const NoGestureLabel = "No gesture detected"

// VideoOptions controls video aggregation.
type VideoOptions struct {
	// Stride samples frames whose zero-based index is a multiple of Stride.
	// Values <= 0 mean DefaultStride.
	Stride int
	// OnFrame, if set, is called after every frame read with its index.
	OnFrame func(index int)
}

// VideoVerdict is the aggregated classification of a video.
type VideoVerdict struct {
	Label           string  `json:"prediction"`
	Confidence      float64 `json:"confidence"`
	FramesProcessed int     `json:"frames_processed"`
	Votes           *Tally  `json:"vote_breakdown,omitempty"`
}

// PredictVideo aggregates sampled frames of src using the shared tracker. The
// source is closed before returning.
func (r *Recognizer) PredictVideo(src capture.VideoSource, opts VideoOptions) (VideoVerdict, error) {
	return Aggregate(r, src, opts)
}

// PredictVideoFile opens path and aggregates it. A file that cannot be opened
// fails with ErrDecode.
func (r *Recognizer) PredictVideoFile(path string, opts VideoOptions) (VideoVerdict, error) {
	return AggregateFile(r, capture.OpenVideoFile, path, opts)
}

// AggregateFile opens path with open and aggregates it with p.
func AggregateFile(p FramePredictor, open capture.Opener, path string, opts VideoOptions) (VideoVerdict, error) {
	src, err := open(path)
	if err != nil {
		return VideoVerdict{}, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	return Aggregate(p, src, opts)
}

// Aggregate reads src sequentially, classifies every stride-th frame and
// returns the majority-vote label with the mean confidence of all sampled
// frames. A frame that fails to classify aborts the aggregation.
func Aggregate(p FramePredictor, src capture.VideoSource, opts VideoOptions) (VideoVerdict, error) {
	defer src.Close()

	stride := opts.Stride
	if stride <= 0 {
		stride = DefaultStride
	}

	tally := NewTally()
	var (
		sum     float64
		sampled int
		index   int
	)

	for ; ; index++ {
		frame, ok, err := src.Read()
		if err != nil {
			return VideoVerdict{}, fmt.Errorf("%w: read frame %d: %v", ErrDecode, index, err)
		}
		if !ok {
			break
		}

		if index%stride == 0 {
			pred, err := p.PredictFrame(frame)
			if err != nil {
				frame.Close()
				return VideoVerdict{}, fmt.Errorf("frame %d: %w", index, err)
			}
			tally.Add(pred.Label)
			sum += pred.Confidence
			sampled++
		}
		frame.Close()

		if opts.OnFrame != nil {
			opts.OnFrame(index)
		}
	}

	if sampled == 0 {
		return VideoVerdict{
			Label:           NoGestureLabel,
			Confidence:      0,
			FramesProcessed: index,
		}, nil
	}

	label, _ := tally.Winner()
	return VideoVerdict{
		Label:           label,
		Confidence:      sum / float64(sampled),
		FramesProcessed: index,
		Votes:           tally,
	}, nil
}
