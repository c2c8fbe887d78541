// Package classifier maps landmark feature vectors to a probability
// distribution over a fixed label set.
package classifier

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var (
	// ErrModelNotFound is returned by Load when the artifact is missing and the
	// fallback model is not allowed.
	ErrModelNotFound = errors.New("model artifact not found")
	// ErrShape reports mismatched input, output or layer dimensions.
	ErrShape = errors.New("shape mismatch")
)

// Model is a trained (or fallback) network. Predict must be deterministic for
// fixed weights.
type Model interface {
	Predict(x []float64) ([]float64, error)
	InputSize() int
	OutputSize() int
}

// Classifier pairs a Model with its ordered label set.
type Classifier struct {
	model    Model
	labels   []string
	fallback bool
}

// New wraps model with labels. Labels are copied.
func New(model Model, labels []string) *Classifier {
	return &Classifier{
		model:  model,
		labels: append([]string(nil), labels...),
	}
}

// Options controls Load.
type Options struct {
	// Path is the model artifact location.
	Path string
	// Labels is the ordered label set; nil means DefaultLabels.
	Labels []string
	// AllowFallback permits a randomly initialised model when Path is absent.
	AllowFallback bool
	// Seed seeds the fallback weights; 0 means time-based.
	Seed int64
	// InputSize is the feature width; 0 means 63.
	InputSize int
	Logger    logrus.FieldLogger
}

// Load reads the model artifact at opts.Path. When the artifact does not exist
// it builds the fallback model if allowed, else returns ErrModelNotFound. An
// artifact that exists but cannot be decoded is always an error.
func Load(opts Options) (*Classifier, error) {
	labels := opts.Labels
	if len(labels) == 0 {
		labels = DefaultLabels()
	}
	inputSize := opts.InputSize
	if inputSize == 0 {
		inputSize = 63
	}
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	_, err := os.Stat(opts.Path)
	switch {
	case opts.Path != "" && err == nil:
		logger.WithField("path", opts.Path).Info("Loading model")
		m, err := ReadModel(opts.Path)
		if err != nil {
			return nil, err
		}
		if m.InputSize() != inputSize {
			return nil, fmt.Errorf("%w: model %s takes %d features, want %d", ErrShape, opts.Path, m.InputSize(), inputSize)
		}
		if m.OutputSize() != len(labels) {
			logger.WithFields(logrus.Fields{
				"outputs": m.OutputSize(),
				"labels":  len(labels),
			}).Warn("Model output width differs from label count; unmatched indices map to Unknown")
		}
		return New(m, labels), nil

	case opts.Path != "" && !errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("stat model %s: %w", opts.Path, err)

	case !opts.AllowFallback:
		return nil, fmt.Errorf("%w: %q", ErrModelNotFound, opts.Path)
	}

	logger.WithField("path", opts.Path).Warn("Model file not found. Creating a fallback random-initialized model.")

	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	m, err := NewFallbackMLP(inputSize, len(labels), rand.New(rand.NewSource(seed)))
	if err != nil {
		return nil, err
	}
	c := New(m, labels)
	c.fallback = true
	return c, nil
}

// Infer returns the model's distribution for a single feature vector.
func (c *Classifier) Infer(x []float64) ([]float64, error) {
	dist, err := c.model.Predict(x)
	if err != nil {
		return nil, err
	}
	if len(dist) == 0 {
		return nil, fmt.Errorf("%w: empty model output", ErrShape)
	}
	for i, p := range dist {
		if math.IsNaN(p) || math.IsInf(p, 0) {
			return nil, fmt.Errorf("%w: model output %d is %v", ErrShape, i, p)
		}
	}
	return dist, nil
}

// Label returns the label at index i, or UnknownLabel when out of range.
func (c *Classifier) Label(i int) string {
	if i < 0 || i >= len(c.labels) {
		return UnknownLabel
	}
	return c.labels[i]
}

// Labels returns a copy of the label set.
func (c *Classifier) Labels() []string {
	return append([]string(nil), c.labels...)
}

// IsFallback reports whether the classifier runs the untrained fallback model.
func (c *Classifier) IsFallback() bool {
	return c.fallback
}

// Model returns the underlying model.
func (c *Classifier) Model() Model {
	return c.model
}

// artifact is the on-disk model format. Weights are out x in, row-major.
type artifact struct {
	InputSize int             `json:"input_size"`
	Layers    []artifactLayer `json:"layers"`
}

type artifactLayer struct {
	Weights    [][]float64 `json:"weights"`
	Bias       []float64   `json:"bias"`
	Activation Activation  `json:"activation"`
}

// ReadModel decodes a model artifact.
func ReadModel(path string) (*MLP, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model %s: %w", path, err)
	}

	var a artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("decode model %s: %w", path, err)
	}

	layers := make([]Layer, 0, len(a.Layers))
	for i, al := range a.Layers {
		rows := len(al.Weights)
		if rows == 0 {
			return nil, fmt.Errorf("%w: model %s layer %d has no weights", ErrShape, path, i)
		}
		cols := len(al.Weights[0])
		flat := make([]float64, 0, rows*cols)
		for r, row := range al.Weights {
			if len(row) != cols {
				return nil, fmt.Errorf("%w: model %s layer %d row %d has %d weights, want %d", ErrShape, path, i, r, len(row), cols)
			}
			flat = append(flat, row...)
		}
		if len(al.Bias) != rows {
			return nil, fmt.Errorf("%w: model %s layer %d has %d biases, want %d", ErrShape, path, i, len(al.Bias), rows)
		}
		layers = append(layers, Layer{
			W:   mat.NewDense(rows, cols, flat),
			B:   mat.NewVecDense(rows, append([]float64(nil), al.Bias...)),
			Act: al.Activation,
		})
	}

	m, err := NewMLP(a.InputSize, layers)
	if err != nil {
		return nil, fmt.Errorf("model %s: %w", path, err)
	}
	return m, nil
}

// Save writes m to path in the artifact format, creating parent directories.
func Save(path string, m *MLP) error {
	a := artifact{InputSize: m.inputSize}
	for _, l := range m.layers {
		rows, _ := l.W.Dims()
		weights := make([][]float64, rows)
		for r := 0; r < rows; r++ {
			weights[r] = mat.Row(nil, r, l.W)
		}
		a.Layers = append(a.Layers, artifactLayer{
			Weights:    weights,
			Bias:       append([]float64(nil), l.B.RawVector().Data...),
			Activation: l.Act,
		})
	}

	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("encode model: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create model dir: %w", err)
		}
	}
	return os.WriteFile(path, data, 0644)
}
