// Package config loads service configuration from the environment and an
// optional .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Default values.
const (
	DefaultAddr          = ":8000"
	DefaultModelPath     = "models/isl_model.json"
	DefaultUploadDir     = "uploads"
	DefaultStaticDir     = "static"
	DefaultSampleStride  = 5
	DefaultMinConfidence = 0.5
	DefaultRateLimit     = 10.0
	DefaultRateBurst     = 20
	DefaultMaxUploadMB   = 100
	DefaultPluginTimeout = 5 * time.Second
)

// DefaultCORSOrigins are the browser origins allowed when none are configured.
var DefaultCORSOrigins = []string{
	"http://localhost",
	"http://localhost:8000",
	"http://127.0.0.1:8000",
}

// Config holds every tunable of the service.
type Config struct {
	Addr               string
	ModelPath          string
	AllowFallbackModel bool
	Labels             []string // nil means classifier.DefaultLabels
	UploadDir          string
	StaticDir          string
	DBPath             string
	SampleStride       int
	MinDetectionConf   float64
	MinTrackingConf    float64
	TrackerScript      string
	TrackerPython      string
	RateLimit          float64 // requests per second per client IP; 0 disables
	RateBurst          int
	MaxUploadBytes     int64
	CORSOrigins        []string
	PluginDir          string // empty disables plugins
	PluginTimeout      time.Duration
	LogFile            string
	LogLevel           string
}

// Load reads .env (when present) and then the process environment.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}
	return FromEnv()
}

// FromEnv builds a Config from environment variables only.
func FromEnv() (*Config, error) {
	cfg := &Config{
		Addr:          getString("MUDRA_ADDR", DefaultAddr),
		ModelPath:     getString("MUDRA_MODEL_PATH", DefaultModelPath),
		UploadDir:     getString("MUDRA_UPLOAD_DIR", DefaultUploadDir),
		StaticDir:     getString("MUDRA_STATIC_DIR", DefaultStaticDir),
		DBPath:        getString("MUDRA_DB_PATH", defaultDBPath()),
		TrackerScript: os.Getenv("MUDRA_TRACKER_SCRIPT"),
		TrackerPython: os.Getenv("MUDRA_TRACKER_PYTHON"),
		PluginDir:     os.Getenv("MUDRA_PLUGIN_DIR"),
		LogFile:       os.Getenv("MUDRA_LOG_FILE"),
		LogLevel:      getString("MUDRA_LOG_LEVEL", "info"),
		Labels:        splitList(os.Getenv("MUDRA_LABELS")),
		CORSOrigins:   splitList(os.Getenv("MUDRA_CORS_ORIGINS")),
	}
	if cfg.CORSOrigins == nil {
		cfg.CORSOrigins = DefaultCORSOrigins
	}

	var err error
	if cfg.AllowFallbackModel, err = getBool("MUDRA_ALLOW_FALLBACK_MODEL", true); err != nil {
		return nil, err
	}
	if cfg.SampleStride, err = getInt("MUDRA_SAMPLE_STRIDE", DefaultSampleStride); err != nil {
		return nil, err
	}
	if cfg.MinDetectionConf, err = getFloat("MUDRA_MIN_DETECTION_CONFIDENCE", DefaultMinConfidence); err != nil {
		return nil, err
	}
	if cfg.MinTrackingConf, err = getFloat("MUDRA_MIN_TRACKING_CONFIDENCE", DefaultMinConfidence); err != nil {
		return nil, err
	}
	if cfg.RateLimit, err = getFloat("MUDRA_RATE_LIMIT", DefaultRateLimit); err != nil {
		return nil, err
	}
	if cfg.RateBurst, err = getInt("MUDRA_RATE_BURST", DefaultRateBurst); err != nil {
		return nil, err
	}
	maxMB, err := getInt("MUDRA_MAX_UPLOAD_MB", DefaultMaxUploadMB)
	if err != nil {
		return nil, err
	}
	cfg.MaxUploadBytes = int64(maxMB) << 20

	timeoutMs, err := getInt("MUDRA_PLUGIN_TIMEOUT_MS", int(DefaultPluginTimeout/time.Millisecond))
	if err != nil {
		return nil, err
	}
	cfg.PluginTimeout = time.Duration(timeoutMs) * time.Millisecond

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.SampleStride < 1 {
		return fmt.Errorf("MUDRA_SAMPLE_STRIDE must be >= 1, got %d", c.SampleStride)
	}
	if c.MinDetectionConf < 0 || c.MinDetectionConf > 1 {
		return fmt.Errorf("MUDRA_MIN_DETECTION_CONFIDENCE must be within [0,1], got %v", c.MinDetectionConf)
	}
	if c.MinTrackingConf < 0 || c.MinTrackingConf > 1 {
		return fmt.Errorf("MUDRA_MIN_TRACKING_CONFIDENCE must be within [0,1], got %v", c.MinTrackingConf)
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("MUDRA_RATE_LIMIT must be >= 0, got %v", c.RateLimit)
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("MUDRA_MAX_UPLOAD_MB must be > 0")
	}
	if c.PluginTimeout < 0 {
		return fmt.Errorf("MUDRA_PLUGIN_TIMEOUT_MS must be >= 0, got %d", c.PluginTimeout.Milliseconds())
	}
	return nil
}

func defaultDBPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "mudra.db"
	}
	return filepath.Join(homeDir, ".mudra", "mudra.db")
}

func getString(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q", key, v)
	}
	return n, nil
}

func getFloat(key string, def float64) (float64, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid number %q", key, v)
	}
	return f, nil
}

func getBool(key string, def bool) (bool, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: invalid boolean %q", key, v)
	}
	return b, nil
}

// splitList splits a comma separated list, trimming blanks. Empty input
// yields nil.
func splitList(v string) []string {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
