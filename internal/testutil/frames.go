// Package testutil builds synthetic frames for tests that need real image
// bytes rather than a mocked detector input.
package testutil

import (
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"
)

// FrameWidth and FrameHeight are the dimensions of generated frames.
const (
	FrameWidth  = 64
	FrameHeight = 48
)

// NewFrame returns a BGR frame with a filled circle at the centre. The caller
// owns the Mat.
func NewFrame(c color.RGBA) gocv.Mat {
	m := gocv.NewMatWithSize(FrameHeight, FrameWidth, gocv.MatTypeCV8UC3)
	gocv.Circle(&m, image.Pt(FrameWidth/2, FrameHeight/2), FrameHeight/4, c, -1)
	return m
}

// EncodeFrame encodes a frame with the given extension, e.g. gocv.PNGFileExt.
func EncodeFrame(m gocv.Mat, ext gocv.FileExt) ([]byte, error) {
	buf, err := gocv.IMEncode(ext, m)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	defer buf.Close()
	return append([]byte(nil), buf.GetBytes()...), nil
}

// PNG returns the PNG encoding of a generated frame.
func PNG(c color.RGBA) ([]byte, error) {
	m := NewFrame(c)
	defer m.Close()
	return EncodeFrame(m, gocv.PNGFileExt)
}

// DataURL returns a generated PNG frame as a browser-style data URL.
func DataURL(c color.RGBA) (string, error) {
	data, err := PNG(c)
	if err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(data), nil
}

// Sequence returns n generated frames whose circle colour shifts per frame.
// The caller closes every Mat.
func Sequence(n int) []*gocv.Mat {
	frames := make([]*gocv.Mat, 0, n)
	for i := 0; i < n; i++ {
		m := NewFrame(color.RGBA{R: uint8(i * 16), G: 255, A: 255})
		frames = append(frames, &m)
	}
	return frames
}

// ErrNoVideoWriter means the OpenCV build cannot write MJPG AVI files.
var ErrNoVideoWriter = errors.New("mjpg video writer unavailable")

// WriteVideo writes an MJPG AVI of n Sequence frames to path at 10 fps.
func WriteVideo(path string, n int) error {
	w, err := gocv.VideoWriterFile(path, "MJPG", 10, FrameWidth, FrameHeight, true)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNoVideoWriter, err)
	}
	if !w.IsOpened() {
		w.Close()
		return ErrNoVideoWriter
	}

	frames := Sequence(n)
	defer func() {
		for _, f := range frames {
			f.Close()
		}
	}()
	for i, f := range frames {
		if err := w.Write(*f); err != nil {
			w.Close()
			return fmt.Errorf("write frame %d: %w", i, err)
		}
	}
	return w.Close()
}
