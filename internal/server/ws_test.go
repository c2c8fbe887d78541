package server

import (
	"encoding/base64"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/gesture"
)

// mockFactory hands out MockDetectors and remembers them.
type mockFactory struct {
	mu    sync.Mutex
	made  []*detector.MockDetector
	hands []detector.HandLandmarks
}

func (f *mockFactory) New() (detector.Detector, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m := detector.NewMockDetector()
	m.SetHands(f.hands)
	f.made = append(f.made, m)
	return m, nil
}

func (f *mockFactory) detectors() []*detector.MockDetector {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*detector.MockDetector(nil), f.made...)
}

func dialStream(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	return conn
}

func readReply(t *testing.T, conn *websocket.Conn) map[string]interface{} {
	t.Helper()

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	mt, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage() error = %v", err)
	}
	if mt != websocket.TextMessage {
		t.Fatalf("message type = %d, want text", mt)
	}

	var reply map[string]interface{}
	if err := json.Unmarshal(data, &reply); err != nil {
		t.Fatalf("invalid reply %s: %v", data, err)
	}
	return reply
}

func TestStreamHandler(t *testing.T) {
	r, shared := newTestRecognizer(t)
	factory := &mockFactory{hands: []detector.HandLandmarks{detector.FistLandmarks()}}
	sessions := detector.NewSessions(factory.New)

	ts := httptest.NewServer(New(Config{Recognizer: r, Sessions: sessions, Logger: quietLogger()}))
	defer ts.Close()

	png := encodedPNG(t)

	t.Run("binary image yields prediction", func(t *testing.T) {
		conn := dialStream(t, ts)
		defer conn.Close()

		if err := conn.WriteMessage(websocket.BinaryMessage, png); err != nil {
			t.Fatalf("WriteMessage() error = %v", err)
		}
		reply := readReply(t, conn)

		if _, ok := reply["prediction"].(string); !ok {
			t.Errorf("reply missing prediction: %v", reply)
		}
		if reply["keypoints_detected"] != true {
			t.Errorf("keypoints_detected = %v, want true", reply["keypoints_detected"])
		}
	})

	t.Run("text data url yields prediction", func(t *testing.T) {
		conn := dialStream(t, ts)
		defer conn.Close()

		payload := "data:image/png;base64," + base64.StdEncoding.EncodeToString(png)
		if err := conn.WriteMessage(websocket.TextMessage, []byte(payload)); err != nil {
			t.Fatalf("WriteMessage() error = %v", err)
		}
		if reply := readReply(t, conn); reply["prediction"] == nil {
			t.Errorf("reply missing prediction: %v", reply)
		}
	})

	t.Run("garbage is reported and the session continues", func(t *testing.T) {
		conn := dialStream(t, ts)
		defer conn.Close()

		conn.WriteMessage(websocket.BinaryMessage, []byte("not an image"))
		reply := readReply(t, conn)
		detail, _ := reply["detail"].(string)
		if !strings.HasPrefix(detail, "Frame prediction failed: ") {
			t.Errorf("detail = %q", detail)
		}

		conn.WriteMessage(websocket.BinaryMessage, png)
		if reply := readReply(t, conn); reply["prediction"] == nil {
			t.Errorf("expected prediction after error, got %v", reply)
		}
	})

	if shared.Calls() != 0 {
		t.Errorf("shared tracker used %d times by stream sessions", shared.Calls())
	}

	made := factory.detectors()
	if len(made) != 3 {
		t.Fatalf("expected one tracker per connection (3), got %d", len(made))
	}

	// Session trackers are released once their connection goes away
	deadline := time.Now().Add(2 * time.Second)
	for sessions.Len() > 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if sessions.Len() != 0 {
		t.Errorf("expected no live sessions, got %d", sessions.Len())
	}
	for i, d := range made {
		if !d.Closed() {
			t.Errorf("tracker %d not closed", i)
		}
	}
}

func TestStreamHandler_Disabled(t *testing.T) {
	r, _ := newTestRecognizer(t)
	ts := httptest.NewServer(New(Config{Recognizer: r, Logger: quietLogger()}))
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/stream"
	if _, _, err := websocket.DefaultDialer.Dial(url, nil); err == nil {
		t.Error("expected dial to fail without sessions")
	}
}

var _ gesture.FramePredictor = (*gesture.Session)(nil)

func TestServer_CloseStreams(t *testing.T) {
	r, _ := newTestRecognizer(t)
	factory := &mockFactory{hands: []detector.HandLandmarks{detector.OpenPalmLandmarks()}}
	sessions := detector.NewSessions(factory.New)

	s := New(Config{Recognizer: r, Sessions: sessions, Logger: quietLogger()})
	ts := httptest.NewServer(s)
	defer ts.Close()

	png := encodedPNG(t)
	conns := []*websocket.Conn{dialStream(t, ts), dialStream(t, ts)}
	for _, conn := range conns {
		defer conn.Close()
		if err := conn.WriteMessage(websocket.BinaryMessage, png); err != nil {
			t.Fatalf("WriteMessage() error = %v", err)
		}
		readReply(t, conn)
	}
	if sessions.Len() != 2 {
		t.Fatalf("expected 2 live sessions, got %d", sessions.Len())
	}

	done := make(chan struct{})
	go func() {
		s.CloseStreams()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("CloseStreams() did not return")
	}

	// Every handler has released its tracker by the time CloseStreams returns
	if sessions.Len() != 0 {
		t.Errorf("expected no live sessions after CloseStreams, got %d", sessions.Len())
	}
	for i, d := range factory.detectors() {
		if !d.Closed() {
			t.Errorf("tracker %d not closed", i)
		}
	}

	for i, conn := range conns {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		if _, _, err := conn.ReadMessage(); err == nil {
			t.Errorf("connection %d still open", i)
		}
	}

	// New connections are dropped before a session is opened
	late := dialStream(t, ts)
	defer late.Close()
	late.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := late.ReadMessage(); err == nil {
		t.Error("connection after CloseStreams was served")
	}
	if n := len(factory.detectors()); n != 2 {
		t.Errorf("factory made %d trackers, want 2", n)
	}
}
