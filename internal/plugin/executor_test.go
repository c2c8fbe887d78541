package plugin

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

// writeScript creates an executable shell plugin in a temporary directory.
func writeScript(t *testing.T, name, body string) *Plugin {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("skipping test on Windows")
	}

	dir := t.TempDir()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0755); err != nil {
		t.Fatalf("failed to write script: %v", err)
	}
	return &Plugin{
		Manifest: Manifest{
			Name:       name,
			Version:    "1.0.0",
			Executable: name,
			Config:     []byte(`{"file":"signs.txt"}`),
		},
		Path:       dir,
		Executable: path,
	}
}

func TestExecutor_Execute(t *testing.T) {
	p := writeScript(t, "ok-plugin", `echo '{"success":true,"data":{"message":"hello world"}}'
`)

	resp, err := NewExecutor(5*time.Second).Execute(context.Background(), p, &Request{Event: EventFrame, Prediction: "Hello"})
	if err != nil {
		t.Fatalf("Execute() failed: %v", err)
	}
	if !resp.Success || resp.Error != "" {
		t.Errorf("response = %+v, want success", resp)
	}

	var data map[string]string
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		t.Fatalf("failed to unmarshal response data: %v", err)
	}
	if data["message"] != "hello world" {
		t.Errorf("message = %q, want hello world", data["message"])
	}
}

func TestExecutor_Execute_ReadsStdin(t *testing.T) {
	p := writeScript(t, "echo-plugin", `INPUT=$(cat)
echo "{\"success\":true,\"data\":$INPUT}"
`)

	hand := true
	req := &Request{
		Event:        EventFrame,
		ID:           "abc",
		Prediction:   "Thank You",
		Confidence:   0.75,
		HandDetected: &hand,
	}

	resp, err := NewExecutor(5*time.Second).Execute(context.Background(), p, req)
	if err != nil {
		t.Fatalf("Execute() failed: %v", err)
	}

	var received struct {
		Event      string            `json:"event"`
		ID         string            `json:"id"`
		Prediction string            `json:"prediction"`
		Confidence float64           `json:"confidence"`
		Keypoints  *bool             `json:"keypoints_detected"`
		Frames     *int              `json:"frames_processed"`
		Config     map[string]string `json:"config"`
	}
	if err := json.Unmarshal(resp.Data, &received); err != nil {
		t.Fatalf("failed to unmarshal echoed request: %v", err)
	}

	if received.Event != "frame" || received.ID != "abc" || received.Prediction != "Thank You" || received.Confidence != 0.75 {
		t.Errorf("echoed request = %+v", received)
	}
	if received.Keypoints == nil || !*received.Keypoints {
		t.Error("keypoints_detected should be true")
	}
	if received.Frames != nil {
		t.Error("frames_processed should be omitted for frame events")
	}
	if received.Config["file"] != "signs.txt" {
		t.Errorf("config = %v, want manifest config", received.Config)
	}
	if req.Config != nil {
		t.Error("Execute must not modify the caller's request")
	}
}

func TestExecutor_Timeout(t *testing.T) {
	p := writeScript(t, "slow-plugin", `sleep 10
echo '{"success":true}'
`)

	_, err := NewExecutor(100*time.Millisecond).Execute(context.Background(), p, &Request{Event: EventVideo})
	if err == nil {
		t.Fatal("expected timeout error, got nil")
	}
	if !strings.Contains(err.Error(), "timed out") {
		t.Errorf("expected timeout error, got: %v", err)
	}
}

func TestExecutor_Failures(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{
			name:    "non-zero exit with stderr",
			body:    "echo 'boom' >&2\nexit 3\n",
			wantErr: "boom",
		},
		{
			name:    "invalid json output",
			body:    "echo 'not json'\n",
			wantErr: "parse plugin",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := writeScript(t, "bad-plugin", tt.body)
			_, err := NewExecutor(5*time.Second).Execute(context.Background(), p, &Request{Event: EventFrame})
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestExecutor_ErrorResponse(t *testing.T) {
	p := writeScript(t, "refusing-plugin", `echo '{"success":false,"error":"speaker busy"}'
`)

	resp, err := NewExecutor(0).Execute(context.Background(), p, &Request{Event: EventFrame})
	if err != nil {
		t.Fatalf("Execute() failed: %v", err)
	}
	if resp.Success || resp.Error != "speaker busy" {
		t.Errorf("response = %+v, want failure with error", resp)
	}
}

func TestExecutor_MissingExecutable(t *testing.T) {
	p := &Plugin{
		Manifest:   Manifest{Name: "ghost"},
		Path:       t.TempDir(),
		Executable: filepath.Join(t.TempDir(), "does-not-exist"),
	}
	if _, err := NewExecutor(time.Second).Execute(context.Background(), p, &Request{}); err == nil {
		t.Error("expected error for missing executable")
	}
}
