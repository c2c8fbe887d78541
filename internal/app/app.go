// Package app wires configuration, the recognizer, storage and the HTTP
// server into the Mudra service.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/exec"

	"github.com/sirupsen/logrus"

	"github.com/ayusman/mudra/internal/classifier"
	"github.com/ayusman/mudra/internal/config"
	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/gesture"
	"github.com/ayusman/mudra/internal/plugin"
	"github.com/ayusman/mudra/internal/server"
	"github.com/ayusman/mudra/internal/store"
)

// Option customises App construction.
type Option func(*options)

type options struct {
	factory detector.Factory
}

// WithDetectorFactory replaces the MediaPipe tracker, mainly for tests.
func WithDetectorFactory(f detector.Factory) Option {
	return func(o *options) {
		o.factory = f
	}
}

// App is the assembled service.
type App struct {
	config     *config.Config
	logger     *logrus.Logger
	recognizer *gesture.Recognizer
	tracker    *detector.Tracker
	sessions   *detector.Sessions
	store      *store.Store
	plugins    *plugin.Dispatcher
	server     *server.Server
	ffmpeg     bool
}

// New builds the service from cfg. It fails when the model cannot be loaded;
// a missing hand tracker only degrades to "no hand" predictions.
func New(cfg *config.Config, logger *logrus.Logger, opts ...Option) (*App, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	factory := o.factory
	if factory == nil {
		factory = TrackerFactory(cfg, logger)
	}

	recognizer, tracker, err := NewRecognizer(cfg, factory, logger)
	if err != nil {
		return nil, err
	}

	a := &App{
		config:     cfg,
		logger:     logger,
		recognizer: recognizer,
		tracker:    tracker,
		sessions:   detector.NewSessions(factory),
		ffmpeg:     FFmpegAvailable(logger),
	}

	if cfg.DBPath != "" {
		st, err := store.New(cfg.DBPath)
		if err != nil {
			tracker.Close()
			return nil, fmt.Errorf("open store: %w", err)
		}
		a.store = st
		logger.WithField("path", cfg.DBPath).Info("Prediction history enabled")
	}

	staticDir := cfg.StaticDir
	if info, err := os.Stat(staticDir); staticDir != "" && (err != nil || !info.IsDir()) {
		logger.WithField("dir", staticDir).Warn("Static directory not found; UI disabled")
		staticDir = ""
	}

	srvCfg := server.Config{
		StaticDir:      staticDir,
		Store:          a.store,
		Recognizer:     recognizer,
		Sessions:       a.sessions,
		Logger:         logger,
		UploadDir:      cfg.UploadDir,
		SampleStride:   cfg.SampleStride,
		MaxUploadBytes: cfg.MaxUploadBytes,
		RateLimit:      cfg.RateLimit,
		RateBurst:      cfg.RateBurst,
		CORSOrigins:    cfg.CORSOrigins,
		FFmpeg:         a.ffmpeg,
	}

	if cfg.PluginDir != "" {
		d, err := NewPluginDispatcher(cfg, logger)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.plugins = d
		srvCfg.Notifier = d
	}

	a.server = server.New(srvCfg)

	return a, nil
}

// NewRecognizer loads the classifier and opens the shared tracker.
func NewRecognizer(cfg *config.Config, factory detector.Factory, logger *logrus.Logger) (*gesture.Recognizer, *detector.Tracker, error) {
	c, err := classifier.Load(classifier.Options{
		Path:          cfg.ModelPath,
		Labels:        cfg.Labels,
		AllowFallback: cfg.AllowFallbackModel,
		InputSize:     detector.VectorSize,
		Logger:        logger,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("load classifier: %w", err)
	}

	det, err := factory()
	if err != nil {
		return nil, nil, fmt.Errorf("create tracker: %w", err)
	}
	tracker := detector.NewTracker(det)

	logger.WithFields(logrus.Fields{
		"labels":   len(c.Labels()),
		"fallback": c.IsFallback(),
	}).Info("Recognizer ready")

	return gesture.NewRecognizer(c, tracker, logger), tracker, nil
}

// TrackerFactory returns a factory for MediaPipe trackers configured from cfg.
// When the MediaPipe service script is unavailable it logs a warning and
// returns a factory for trackers that never see a hand.
func TrackerFactory(cfg *config.Config, logger *logrus.Logger) detector.Factory {
	dc := detector.DefaultConfig()
	dc.MinConfidence = cfg.MinDetectionConf
	dc.MinTrackingConf = cfg.MinTrackingConf
	dc.Script = cfg.TrackerScript
	dc.Python = cfg.TrackerPython

	probe, err := detector.NewMediaPipeDetector(dc)
	if err != nil {
		logger.WithError(err).Warn("MediaPipe not available, every frame will report no hand")
		return func() (detector.Detector, error) {
			return detector.NoHandDetector{}, nil
		}
	}
	probe.Close()

	logger.Info("Using MediaPipe hand tracking")
	return detector.MediaPipeFactory(dc)
}

// NewPluginDispatcher discovers the plugins under cfg.PluginDir.
func NewPluginDispatcher(cfg *config.Config, logger *logrus.Logger) (*plugin.Dispatcher, error) {
	manager := plugin.NewManager(cfg.PluginDir, logger)
	if err := manager.Discover(); err != nil {
		return nil, fmt.Errorf("discover plugins: %w", err)
	}

	names := make([]string, 0)
	for _, p := range manager.List() {
		names = append(names, p.Manifest.Name)
	}
	logger.WithFields(logrus.Fields{
		"dir":     cfg.PluginDir,
		"plugins": names,
	}).Info("Plugins loaded")

	return plugin.NewDispatcher(manager, plugin.NewExecutor(cfg.PluginTimeout), logger), nil
}

// FFmpegAvailable reports whether ffmpeg is on PATH. Video decoding may still
// work through other backends, so a miss is only a warning.
func FFmpegAvailable(logger logrus.FieldLogger) bool {
	path, err := exec.LookPath("ffmpeg")
	if err != nil {
		logger.Warn("FFmpeg not found in PATH. Some video codecs may fail to decode.")
		return false
	}
	logger.WithField("path", path).Info("FFmpeg detected")
	return true
}

// Run serves HTTP until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	a.logger.WithField("addr", a.config.Addr).Info("Starting server")
	return a.server.ListenAndServe(ctx, a.config.Addr)
}

// Handler returns the HTTP handler of the service.
func (a *App) Handler() http.Handler {
	return a.server
}

// Recognizer returns the shared recognizer.
func (a *App) Recognizer() *gesture.Recognizer {
	return a.recognizer
}

// Store returns the prediction history store, nil when disabled.
func (a *App) Store() *store.Store {
	return a.store
}

// Sessions returns the per-connection tracker arena.
func (a *App) Sessions() *detector.Sessions {
	return a.sessions
}

// Close drops live stream connections, stops plugin dispatch and waits for
// running plugins, then releases trackers and the store.
func (a *App) Close() error {
	if a.server != nil {
		a.server.CloseStreams()
	}
	if a.plugins != nil {
		a.plugins.Close()
	}

	var errs []error
	if err := a.sessions.CloseAll(); err != nil {
		errs = append(errs, fmt.Errorf("close sessions: %w", err))
	}
	if err := a.tracker.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close tracker: %w", err))
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close store: %w", err))
		}
	}
	return errors.Join(errs...)
}
