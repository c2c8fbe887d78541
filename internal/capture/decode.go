// Package capture decodes still images and reads video files into GoCV frames.
package capture

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"gocv.io/x/gocv"
)

// ErrDecode is returned when a payload does not hold a decodable image or a
// video cannot be opened.
var ErrDecode = errors.New("unable to decode frame")

// StripDataURL drops everything up to and including the first comma, so
// "data:image/jpeg;base64,AAAA" becomes "AAAA". Payloads without a comma are
// returned unchanged.
func StripDataURL(payload string) string {
	if i := strings.IndexByte(payload, ','); i >= 0 {
		return payload[i+1:]
	}
	return payload
}

// DecodeFrame turns a base64 image payload, optionally a data URL, into a BGR
// frame. The caller is responsible for closing the returned Mat.
func DecodeFrame(payload string) (*gocv.Mat, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(StripDataURL(payload)))
	if err != nil {
		return nil, fmt.Errorf("%w: invalid base64: %v", ErrDecode, err)
	}
	return DecodeImage(raw)
}

// DecodeImage decodes encoded image bytes (JPEG, PNG, ...) into a BGR frame.
// The caller is responsible for closing the returned Mat.
func DecodeImage(data []byte) (*gocv.Mat, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty image", ErrDecode)
	}

	mat, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil {
		mat.Close()
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if mat.Empty() {
		mat.Close()
		return nil, ErrDecode
	}

	return &mat, nil
}
