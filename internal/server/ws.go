package server

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"github.com/ayusman/mudra/internal/capture"
	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/gesture"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// defaultStreamReadLimit caps a single websocket message when no upload cap
// is configured.
const defaultStreamReadLimit = 16 << 20

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// StreamHandler classifies frames sent over a websocket. Each connection gets
// its own tracker so consecutive frames of one client are tracked together
// without affecting other clients.
//
// Binary messages are encoded images (JPEG, PNG, ...); text messages are
// base64 payloads or data URLs. Every message is answered with one JSON text
// message holding either a frame prediction or {"detail": "..."}.
type StreamHandler struct {
	recognizer *gesture.Recognizer
	sessions   *detector.Sessions
	readLimit  int64
	logger     logrus.FieldLogger

	mu      sync.Mutex
	conns   map[*websocket.Conn]struct{}
	closing bool
	active  sync.WaitGroup
}

// NewStreamHandler creates a new StreamHandler.
func NewStreamHandler(r *gesture.Recognizer, sessions *detector.Sessions, readLimit int64, logger logrus.FieldLogger) *StreamHandler {
	if readLimit <= 0 {
		readLimit = defaultStreamReadLimit
	}
	return &StreamHandler{
		recognizer: r,
		sessions:   sessions,
		readLimit:  readLimit,
		logger:     logger,
		conns:      make(map[*websocket.Conn]struct{}),
	}
}

// track registers a live connection. It reports false once CloseAll has
// started, in which case the caller must drop the connection.
func (h *StreamHandler) track(conn *websocket.Conn) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closing {
		return false
	}
	h.conns[conn] = struct{}{}
	h.active.Add(1)
	return true
}

func (h *StreamHandler) untrack(conn *websocket.Conn) {
	h.mu.Lock()
	delete(h.conns, conn)
	h.mu.Unlock()
	h.active.Done()
}

// CloseAll closes every live connection, refuses new ones and waits until
// each handler has released its session tracker.
func (h *StreamHandler) CloseAll() {
	h.mu.Lock()
	h.closing = true
	for conn := range h.conns {
		conn.Close()
	}
	h.mu.Unlock()
	h.active.Wait()
}

// ServeHTTP handles WebSocket upgrade requests.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Warn("websocket upgrade failed")
		return
	}
	defer conn.Close()

	if !h.track(conn) {
		return
	}
	defer h.untrack(conn)

	sessionID := newRequestID()
	logger := h.logger.WithFields(logrus.Fields{
		"session":    sessionID,
		"request_id": RequestID(r.Context()),
	})

	tracker, err := h.sessions.Open(sessionID)
	if err != nil {
		logger.WithError(err).Error("Failed to open session tracker")
		h.writeMessage(conn, streamError{Detail: fmt.Sprintf("Session failed: %v", err)})
		return
	}
	defer func() {
		if err := h.sessions.Close(sessionID); err != nil {
			logger.WithError(err).Warn("Failed to close session tracker")
		}
	}()

	session := h.recognizer.Session(tracker)
	conn.SetReadLimit(h.readLimit)
	logger.Info("Stream session opened")

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.WithError(err).Warn("Stream session ended unexpectedly")
			}
			break
		}

		var frame *gocv.Mat
		switch messageType {
		case websocket.BinaryMessage:
			frame, err = capture.DecodeImage(data)
		case websocket.TextMessage:
			frame, err = capture.DecodeFrame(string(data))
		default:
			continue
		}
		if err != nil {
			if !h.writeMessage(conn, streamError{Detail: fmt.Sprintf("Frame prediction failed: %v", err)}) {
				break
			}
			continue
		}

		pred, err := session.PredictFrame(frame)
		frame.Close()

		var reply interface{} = pred
		if err != nil {
			reply = streamError{Detail: fmt.Sprintf("Frame prediction failed: %v", err)}
		}
		if !h.writeMessage(conn, reply) {
			break
		}
	}

	logger.Info("Stream session closed")
}

type streamError struct {
	Detail string `json:"detail"`
}

// writeMessage sends v as a JSON text message and reports whether the
// connection is still usable.
func (h *StreamHandler) writeMessage(conn *websocket.Conn, v interface{}) bool {
	msg, err := json.Marshal(v)
	if err != nil {
		h.logger.WithError(err).Error("Failed to encode stream message")
		return true
	}
	return conn.WriteMessage(websocket.TextMessage, msg) == nil
}
