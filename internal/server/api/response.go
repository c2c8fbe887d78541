// Package api provides HTTP API handlers for the Mudra sign recognition service.
package api

import (
	"net/http"

	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// errorResponse carries a human readable failure. Browser clients read
// "detail".
type errorResponse struct {
	Detail string `json:"detail"`
}

// encodeFailure is sent when a response body cannot be encoded, e.g. when it
// carries a NaN.
var encodeFailure = []byte(`{"detail":"Failed to encode response"}` + "\n")

// writeJSON writes a JSON response with the given status code. The body is
// encoded before the header goes out so an unencodable value becomes a 500.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if data == nil {
		w.WriteHeader(status)
		return
	}

	body, err := json.Marshal(data)
	if err != nil {
		logrus.WithError(err).WithField("status", status).Error("Failed to encode response")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write(encodeFailure)
		return
	}
	w.WriteHeader(status)
	w.Write(append(body, '\n'))
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Detail: message})
}

// WriteJSON is writeJSON for handlers outside this package.
func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	writeJSON(w, status, data)
}

// WriteError is writeError for handlers outside this package.
func WriteError(w http.ResponseWriter, status int, message string) {
	writeError(w, status, message)
}
