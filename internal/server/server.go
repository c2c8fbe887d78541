// Package server provides the HTTP server for the Mudra sign recognition service.
package server

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/gesture"
	"github.com/ayusman/mudra/internal/server/api"
	"github.com/ayusman/mudra/internal/store"
)

// ShutdownTimeout bounds how long in-flight requests may run after shutdown
// begins.
const ShutdownTimeout = 10 * time.Second

// Config holds the server configuration.
type Config struct {
	StaticDir  string
	Store      *store.Store
	Recognizer *gesture.Recognizer
	// Sessions provides one tracker per websocket connection. The stream
	// endpoint is disabled when nil.
	Sessions *detector.Sessions
	// Notifier receives every successful HTTP prediction. Optional.
	Notifier api.Notifier
	Logger   logrus.FieldLogger

	UploadDir      string
	SampleStride   int
	MaxUploadBytes int64

	// RateLimit is the per-client request rate on prediction endpoints.
	// 0 disables limiting.
	RateLimit   float64
	RateBurst   int
	CORSOrigins []string

	// FFmpeg reports whether ffmpeg was found on PATH at startup.
	FFmpeg bool
}

// Server represents the HTTP server for the Mudra application.
type Server struct {
	config  Config
	mux     *http.ServeMux
	handler http.Handler
	logger  logrus.FieldLogger
	start   time.Time
	stream  *StreamHandler
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	logger := config.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	s := &Server{
		config: config,
		mux:    http.NewServeMux(),
		logger: logger,
		start:  time.Now(),
	}
	s.setupRoutes()

	var h http.Handler = s.mux
	h = corsMiddleware(config.CORSOrigins)(h)
	h = loggingMiddleware(logger)(h)
	h = requestIDMiddleware(h)
	s.handler = h

	return s
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/test", s.handleTest)
	s.mux.HandleFunc("/api/health", s.handleHealth)

	if s.config.Recognizer != nil {
		s.mux.HandleFunc("/api/labels", s.handleLabels)

		predict := api.PredictConfig{
			Predictor:      s.config.Recognizer,
			Notifier:       s.config.Notifier,
			UploadDir:      s.config.UploadDir,
			Stride:         s.config.SampleStride,
			MaxUploadBytes: s.config.MaxUploadBytes,
			Logger:         s.logger,
		}
		if s.config.Store != nil {
			predict.History = s.config.Store.Predictions()
		}
		predictHandler := api.NewPredictHandler(predict)

		limit := rateLimitMiddleware(s.config.RateLimit, s.config.RateBurst, s.logger)
		s.mux.Handle("/predict-frame", limit(http.HandlerFunc(predictHandler.Frame)))
		s.mux.Handle("/upload-video", limit(http.HandlerFunc(predictHandler.Video)))
	}

	// Register prediction history API if Store is configured
	if s.config.Store != nil {
		historyHandler := api.NewHistoryHandler(s.config.Store)
		s.mux.Handle("/api/predictions", historyHandler)
		s.mux.Handle("/api/predictions/", historyHandler)
	}

	// Register session stream if Recognizer and Sessions are configured
	if s.config.Recognizer != nil && s.config.Sessions != nil {
		s.stream = NewStreamHandler(s.config.Recognizer, s.config.Sessions, s.config.MaxUploadBytes, s.logger)
		s.mux.Handle("/api/stream", s.stream)
	}

	// Serve the web client if StaticDir is configured
	if s.config.StaticDir != "" {
		fs := http.FileServer(http.Dir(s.config.StaticDir))
		s.mux.Handle("/static/", http.StripPrefix("/static/", fs))
		s.mux.HandleFunc("/", s.handleIndex)
	}
}

// CloseStreams drops every open websocket session and waits for their
// trackers to be released. New stream connections are refused afterwards.
func (s *Server) CloseStreams() {
	if s.stream != nil {
		s.stream.CloseAll()
	}
}

// handleIndex serves the client page at the root path only.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	http.ServeFile(w, r, filepath.Join(s.config.StaticDir, "index.html"))
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// handleTest handles GET requests to /test.
func (s *Server) handleTest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	api.WriteJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"message": "ISL Web Detector API is healthy",
	})
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	uptime := time.Since(s.start)

	response := map[string]interface{}{
		"status": "ok",
		"uptime": uptime.String(),
		"ffmpeg": s.config.FFmpeg,
	}
	if s.config.Recognizer != nil {
		response["fallback_model"] = s.config.Recognizer.Classifier().IsFallback()
	}

	api.WriteJSON(w, http.StatusOK, response)
}

// handleLabels handles GET requests to /api/labels.
func (s *Server) handleLabels(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	api.WriteJSON(w, http.StatusOK, map[string][]string{
		"labels": s.config.Recognizer.Classifier().Labels(),
	})
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
