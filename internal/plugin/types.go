// Package plugin discovers and runs external executables that react to
// recognised signs, such as a transcript writer or a speech synthesiser.
package plugin

import jsoniter "github.com/json-iterator/go"

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Event names a prediction source a plugin can subscribe to.
type Event string

const (
	EventFrame Event = "frame"
	EventVideo Event = "video"
)

// Manifest describes a plugin's metadata and the events it receives.
type Manifest struct {
	Name        string  `json:"name"`
	Version     string  `json:"version"`
	Description string  `json:"description"`
	Executable  string  `json:"executable"`
	Events      []Event `json:"events"`
	// MinConfidence drops predictions below the threshold before the plugin
	// is started.
	MinConfidence float64             `json:"minConfidence,omitempty"`
	Config        jsoniter.RawMessage `json:"config,omitempty"`
}

// Subscribes reports whether the manifest lists ev. An empty list means all
// events.
func (m Manifest) Subscribes(ev Event) bool {
	if len(m.Events) == 0 {
		return true
	}
	for _, e := range m.Events {
		if e == ev {
			return true
		}
	}
	return false
}

// Request is written to the plugin's stdin as one JSON document.
type Request struct {
	Event           Event               `json:"event"`
	ID              string              `json:"id"`
	Prediction      string              `json:"prediction"`
	Confidence      float64             `json:"confidence"`
	HandDetected    *bool               `json:"keypoints_detected,omitempty"`
	FramesProcessed *int                `json:"frames_processed,omitempty"`
	VoteBreakdown   jsoniter.RawMessage `json:"vote_breakdown,omitempty"`
	Source          string              `json:"source,omitempty"`
	Config          jsoniter.RawMessage `json:"config,omitempty"`
}

// Response is read from the plugin's stdout.
type Response struct {
	Success bool                `json:"success"`
	Error   string              `json:"error,omitempty"`
	Data    jsoniter.RawMessage `json:"data,omitempty"`
}

// Plugin represents a discovered plugin with its manifest and location.
type Plugin struct {
	Manifest   Manifest
	Path       string
	Executable string
}
