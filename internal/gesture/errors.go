package gesture

import "errors"

var (
	// ErrDecode marks malformed visual input: an undecodable image or a video
	// that cannot be opened.
	ErrDecode = errors.New("decode error")
	// ErrInference marks a failure inside landmark extraction or the model.
	ErrInference = errors.New("inference error")
)
