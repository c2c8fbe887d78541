// Package detector provides hand landmark tracking for gesture recognition.
package detector

// Hand landmark indices following MediaPipe convention.
// See: https://developers.google.com/mediapipe/solutions/vision/hand_landmarker
const (
	Wrist        = 0
	ThumbCMC     = 1
	ThumbMCP     = 2
	ThumbIP      = 3
	ThumbTip     = 4
	IndexMCP     = 5
	IndexPIP     = 6
	IndexDIP     = 7
	IndexTip     = 8
	MiddleMCP    = 9
	MiddlePIP    = 10
	MiddleDIP    = 11
	MiddleTip    = 12
	RingMCP      = 13
	RingPIP      = 14
	RingDIP      = 15
	RingTip      = 16
	PinkyMCP     = 17
	PinkyPIP     = 18
	PinkyDIP     = 19
	PinkyTip     = 20
	NumLandmarks = 21
)

// VectorSize is the length of a flattened landmark vector (21 joints x 3 axes).
const VectorSize = NumLandmarks * 3

// Point3D represents a 3D point in space with x, y, z coordinates.
type Point3D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// HandLandmarks represents the 21 hand landmarks reported by the tracker.
type HandLandmarks struct {
	Points     [NumLandmarks]Point3D `json:"points"`
	Handedness string                `json:"handedness"` // "Left" or "Right"
	Score      float64               `json:"score"`
}

// Vector is a flattened landmark vector laid out as
// [j0.x, j0.y, j0.z, j1.x, ...] in joint order.
// The zero value means no hand was found.
type Vector [VectorSize]float32

// Flatten returns the hand's landmarks as a Vector in joint order.
func (h *HandLandmarks) Flatten() Vector {
	var v Vector
	if h == nil {
		return v
	}
	for i, p := range h.Points {
		v[i*3] = float32(p.X)
		v[i*3+1] = float32(p.Y)
		v[i*3+2] = float32(p.Z)
	}
	return v
}

// IsZero reports whether every element is zero.
func (v *Vector) IsZero() bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}

// Float64s returns a copy of the vector widened to float64.
func (v *Vector) Float64s() []float64 {
	out := make([]float64, VectorSize)
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}
