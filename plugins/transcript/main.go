// Package main provides a transcript plugin. It appends every recognised sign
// to a text file, one line per prediction.
package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Request represents the input from the plugin executor.
type Request struct {
	Event           string              `json:"event"`
	ID              string              `json:"id"`
	Prediction      string              `json:"prediction"`
	Confidence      float64             `json:"confidence"`
	HandDetected    *bool               `json:"keypoints_detected"`
	FramesProcessed *int                `json:"frames_processed"`
	Source          string              `json:"source"`
	Config          jsoniter.RawMessage `json:"config"`
}

// Response represents the output to the plugin executor.
type Response struct {
	Success bool                `json:"success"`
	Error   string              `json:"error,omitempty"`
	Data    jsoniter.RawMessage `json:"data,omitempty"`
}

// Config is the plugin section of plugin.json.
type Config struct {
	File       string `json:"file"`
	SkipNoHand bool   `json:"skipNoHand"`
}

func main() {
	resp := handle(os.Stdin, time.Now())
	json.NewEncoder(os.Stdout).Encode(resp)
}

func handle(r io.Reader, now time.Time) Response {
	var req Request
	if err := json.NewDecoder(r).Decode(&req); err != nil {
		return Response{Error: fmt.Sprintf("failed to decode request: %v", err)}
	}

	cfg := Config{File: "transcript.txt"}
	if len(req.Config) > 0 {
		if err := json.Unmarshal(req.Config, &cfg); err != nil {
			return Response{Error: fmt.Sprintf("failed to parse config: %v", err)}
		}
	}

	if cfg.SkipNoHand && req.HandDetected != nil && !*req.HandDetected {
		return Response{Success: true, Data: jsoniter.RawMessage(`{"skipped":true}`)}
	}

	line := formatLine(req, now)
	if err := appendLine(cfg.File, line); err != nil {
		return Response{Error: err.Error()}
	}
	return Response{Success: true}
}

// formatLine renders one transcript entry.
func formatLine(req Request, now time.Time) string {
	line := fmt.Sprintf("%s\t%s\t%s\t%.3f", now.UTC().Format(time.RFC3339), req.Event, req.Prediction, req.Confidence)
	if req.FramesProcessed != nil {
		line += fmt.Sprintf("\tframes=%d", *req.FramesProcessed)
	}
	if req.Source != "" {
		line += "\t" + req.Source
	}
	return line + "\n"
}

func appendLine(path, line string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create transcript dir: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open transcript: %w", err)
	}
	if _, err := f.WriteString(line); err != nil {
		f.Close()
		return fmt.Errorf("write transcript: %w", err)
	}
	return f.Close()
}
