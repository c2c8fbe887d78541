package plugin

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/ayusman/mudra/internal/store"
)

func TestRequestFor(t *testing.T) {
	t.Run("frame", func(t *testing.T) {
		req := RequestFor(&store.Prediction{
			ID: "f1", Kind: store.KindFrame, Label: "A", Confidence: 0.4, HandDetected: true,
		})
		if req.Event != EventFrame || req.ID != "f1" || req.Prediction != "A" {
			t.Errorf("request = %+v", req)
		}
		if req.HandDetected == nil || !*req.HandDetected || req.FramesProcessed != nil {
			t.Errorf("frame fields = %v/%v", req.HandDetected, req.FramesProcessed)
		}
	})

	t.Run("video", func(t *testing.T) {
		req := RequestFor(&store.Prediction{
			ID: "v1", Kind: store.KindVideo, Label: "Hello", Confidence: 0.7,
			FramesProcessed: 4, Votes: []byte(`{"Hello":3,"A":1}`), Source: "clip.mp4",
		})
		if req.Event != EventVideo || req.Source != "clip.mp4" {
			t.Errorf("request = %+v", req)
		}
		if req.FramesProcessed == nil || *req.FramesProcessed != 4 || req.HandDetected != nil {
			t.Errorf("video fields = %v/%v", req.FramesProcessed, req.HandDetected)
		}
		if string(req.VoteBreakdown) != `{"Hello":3,"A":1}` {
			t.Errorf("VoteBreakdown = %s", req.VoteBreakdown)
		}
	})
}

func TestDispatcher_Notify(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("skipping test on Windows")
	}

	dir := t.TempDir()
	out := filepath.Join(t.TempDir(), "transcript.txt")

	pluginDir := writeManifest(t, dir, "transcript",
		`{"name":"transcript","executable":"run.sh","events":["frame"],"minConfidence":0.5}`)
	script := "#!/bin/sh\ncat >> '" + out + "'\necho >> '" + out + "'\necho '{\"success\":true}'\n"
	if err := os.WriteFile(filepath.Join(pluginDir, "run.sh"), []byte(script), 0755); err != nil {
		t.Fatal(err)
	}

	m := NewManager(dir, quietLogger())
	if err := m.Discover(); err != nil {
		t.Fatal(err)
	}
	d := NewDispatcher(m, NewExecutor(5*time.Second), quietLogger())

	d.Notify(&store.Prediction{ID: "1", Kind: store.KindFrame, Label: "Hello", Confidence: 0.9, HandDetected: true})
	d.Notify(&store.Prediction{ID: "2", Kind: store.KindFrame, Label: "Maybe", Confidence: 0.1})
	d.Notify(&store.Prediction{ID: "3", Kind: store.KindVideo, Label: "Yes", Confidence: 0.9, FramesProcessed: 2})
	d.Wait()

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("plugin did not run: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 1 {
		t.Fatalf("plugin ran %d times, want 1: %q", len(lines), data)
	}

	var got Request
	if err := json.Unmarshal([]byte(lines[0]), &got); err != nil {
		t.Fatalf("invalid request line: %v", err)
	}
	if got.ID != "1" || got.Prediction != "Hello" {
		t.Errorf("plugin received %+v", got)
	}
}

func TestDispatcher_FailingPlugin(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("skipping test on Windows")
	}

	dir := t.TempDir()
	pluginDir := writeManifest(t, dir, "broken", `{"name":"broken","executable":"run.sh"}`)
	if err := os.WriteFile(filepath.Join(pluginDir, "run.sh"), []byte("#!/bin/sh\nexit 1\n"), 0755); err != nil {
		t.Fatal(err)
	}

	m := NewManager(dir, quietLogger())
	if err := m.Discover(); err != nil {
		t.Fatal(err)
	}
	d := NewDispatcher(m, NewExecutor(time.Second), quietLogger())

	d.Notify(&store.Prediction{Kind: store.KindFrame, Label: "A", Confidence: 1})
	d.Wait()
}

func TestDispatcher_Close(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("skipping test on Windows")
	}

	dir := t.TempDir()
	out := filepath.Join(t.TempDir(), "calls.txt")
	pluginDir := writeManifest(t, dir, "counter", `{"name":"counter","executable":"run.sh"}`)
	script := "#!/bin/sh\ncat > /dev/null\necho x >> '" + out + "'\necho '{\"success\":true}'\n"
	if err := os.WriteFile(filepath.Join(pluginDir, "run.sh"), []byte(script), 0755); err != nil {
		t.Fatal(err)
	}

	m := NewManager(dir, quietLogger())
	if err := m.Discover(); err != nil {
		t.Fatal(err)
	}
	d := NewDispatcher(m, NewExecutor(5*time.Second), quietLogger())

	d.Notify(&store.Prediction{ID: "1", Kind: store.KindFrame, Label: "A", Confidence: 1})
	d.Close()
	d.Notify(&store.Prediction{ID: "2", Kind: store.KindFrame, Label: "B", Confidence: 1})
	d.Wait()

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("plugin did not run: %v", err)
	}
	if n := strings.Count(string(data), "x"); n != 1 {
		t.Errorf("plugin ran %d times, want 1 (Notify after Close must be ignored)", n)
	}
}
