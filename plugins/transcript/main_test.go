package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestHandle(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		request  string
		wantOK   bool
		wantLine string
	}{
		{
			name:     "frame",
			request:  `{"event":"frame","prediction":"Hello","confidence":0.912,"keypoints_detected":true,"config":{"file":"%s"}}`,
			wantOK:   true,
			wantLine: "2024-03-01T12:00:00Z\tframe\tHello\t0.912\n",
		},
		{
			name:     "video",
			request:  `{"event":"video","prediction":"Yes","confidence":0.5,"frames_processed":4,"source":"clip.mp4","config":{"file":"%s"}}`,
			wantOK:   true,
			wantLine: "2024-03-01T12:00:00Z\tvideo\tYes\t0.500\tframes=4\tclip.mp4\n",
		},
		{
			name:    "no hand skipped",
			request: `{"event":"frame","prediction":"A","confidence":0.9,"keypoints_detected":false,"config":{"file":"%s","skipNoHand":true}}`,
			wantOK:  true,
		},
		{
			name:    "bad request",
			request: `{"event":`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "out", "transcript.txt")
			body := tt.request
			if strings.Contains(body, "%s") {
				body = strings.Replace(body, "%s", path, 1)
			}

			resp := handle(strings.NewReader(body), now)
			if resp.Success != tt.wantOK {
				t.Fatalf("Success = %v, want %v (error %q)", resp.Success, tt.wantOK, resp.Error)
			}

			data, err := os.ReadFile(path)
			if tt.wantLine == "" {
				if err == nil {
					t.Errorf("transcript written: %q", data)
				}
				return
			}
			if err != nil {
				t.Fatalf("read transcript: %v", err)
			}
			if string(data) != tt.wantLine {
				t.Errorf("transcript = %q, want %q", data, tt.wantLine)
			}
		})
	}
}
