package classifier

import (
	"errors"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"
)

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetLevel(logrus.ErrorLevel)
	return l
}

func TestDefaultLabels(t *testing.T) {
	labels := DefaultLabels()

	if len(labels) != 56 {
		t.Fatalf("expected 56 labels, got %d", len(labels))
	}
	checks := map[int]string{0: "A", 25: "Z", 26: "0", 35: "9", 36: "Hello", 37: "Thank You", 55: "Finish"}
	for i, want := range checks {
		if labels[i] != want {
			t.Errorf("labels[%d] = %q, want %q", i, labels[i], want)
		}
	}
}

func TestLoad_Fallback(t *testing.T) {
	dir := t.TempDir()
	missing := filepath.Join(dir, "missing.json")

	t.Run("allowed fallback builds a well-formed model", func(t *testing.T) {
		c, err := Load(Options{Path: missing, AllowFallback: true, Seed: 42, Logger: quietLogger()})
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if !c.IsFallback() {
			t.Error("expected fallback classifier")
		}
		if c.Model().InputSize() != 63 {
			t.Errorf("InputSize() = %d, want 63", c.Model().InputSize())
		}
		if c.Model().OutputSize() != len(DefaultLabels()) {
			t.Errorf("OutputSize() = %d, want %d", c.Model().OutputSize(), len(DefaultLabels()))
		}

		dist, err := c.Infer(make([]float64, 63))
		if err != nil {
			t.Fatalf("Infer() error = %v", err)
		}
		var sum float64
		for _, p := range dist {
			if p < 0 {
				t.Fatalf("negative probability %v", p)
			}
			sum += p
		}
		if math.Abs(sum-1) > 1e-9 {
			t.Errorf("softmax output sums to %v, want 1", sum)
		}
	})

	t.Run("fallback output sized to custom labels", func(t *testing.T) {
		labels := []string{"A", "B", "C"}
		c, err := Load(Options{Path: missing, Labels: labels, AllowFallback: true, Seed: 1, Logger: quietLogger()})
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if c.Model().OutputSize() != 3 {
			t.Errorf("OutputSize() = %d, want 3", c.Model().OutputSize())
		}
	})

	t.Run("disallowed fallback fails loudly", func(t *testing.T) {
		_, err := Load(Options{Path: missing, AllowFallback: false, Logger: quietLogger()})
		if !errors.Is(err, ErrModelNotFound) {
			t.Errorf("expected ErrModelNotFound, got %v", err)
		}
	})
}

func TestLoad_Artifact(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "models", "isl_model.json")

	m, err := NewFallbackMLP(63, 4, rand.New(rand.NewSource(7)))
	if err != nil {
		t.Fatalf("NewFallbackMLP() error = %v", err)
	}
	if err := Save(path, m); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	c, err := Load(Options{Path: path, Labels: []string{"A", "B", "C", "D"}, Logger: quietLogger()})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if c.IsFallback() {
		t.Error("classifier loaded from artifact should not be a fallback")
	}

	x := make([]float64, 63)
	for i := range x {
		x[i] = float64(i%7) / 7
	}

	want, _ := m.Predict(x)
	got1, err := c.Infer(x)
	if err != nil {
		t.Fatalf("Infer() error = %v", err)
	}
	got2, _ := c.Infer(x)

	for i := range want {
		if math.Abs(got1[i]-want[i]) > 1e-12 {
			t.Errorf("output[%d] = %v, want %v", i, got1[i], want[i])
		}
		if got1[i] != got2[i] {
			t.Errorf("output[%d] not deterministic: %v vs %v", i, got1[i], got2[i])
		}
	}
}

func TestLoad_CorruptArtifact(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(Options{Path: path, AllowFallback: true, Logger: quietLogger()}); err == nil {
		t.Error("expected error for corrupt artifact even with fallback allowed")
	}
}

func TestLoad_WrongInputWidth(t *testing.T) {
	path := filepath.Join(t.TempDir(), "narrow.json")
	m, _ := NewFallbackMLP(10, 2, rand.New(rand.NewSource(3)))
	if err := Save(path, m); err != nil {
		t.Fatal(err)
	}

	_, err := Load(Options{Path: path, Labels: []string{"A", "B"}, Logger: quietLogger()})
	if !errors.Is(err, ErrShape) {
		t.Errorf("expected ErrShape, got %v", err)
	}
}

func TestClassifier_Infer_ShapeMismatch(t *testing.T) {
	m, _ := NewFallbackMLP(63, 2, rand.New(rand.NewSource(3)))
	c := New(m, []string{"A", "B"})

	if _, err := c.Infer(make([]float64, 10)); !errors.Is(err, ErrShape) {
		t.Errorf("expected ErrShape, got %v", err)
	}
}

// fixedModel returns out for every input.
type fixedModel struct{ out []float64 }

func (m fixedModel) Predict([]float64) ([]float64, error) { return m.out, nil }
func (m fixedModel) InputSize() int                       { return 3 }
func (m fixedModel) OutputSize() int                      { return len(m.out) }

func TestClassifier_Infer_NonFinite(t *testing.T) {
	tests := []struct {
		name string
		out  []float64
	}{
		{name: "NaN", out: []float64{0.5, math.NaN()}},
		{name: "positive infinity", out: []float64{math.Inf(1), 0}},
		{name: "negative infinity", out: []float64{0.1, math.Inf(-1)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(fixedModel{out: tt.out}, []string{"A", "B"})
			if _, err := c.Infer(make([]float64, 3)); !errors.Is(err, ErrShape) {
				t.Errorf("expected ErrShape, got %v", err)
			}
		})
	}

	c := New(fixedModel{out: []float64{0.25, 0.75}}, []string{"A", "B"})
	if _, err := c.Infer(make([]float64, 3)); err != nil {
		t.Errorf("finite output rejected: %v", err)
	}
}

func TestClassifier_Label(t *testing.T) {
	c := New(nil, []string{"A", "B"})

	tests := []struct {
		index int
		want  string
	}{
		{index: 0, want: "A"},
		{index: 1, want: "B"},
		{index: 2, want: UnknownLabel},
		{index: -1, want: UnknownLabel},
	}

	for _, tt := range tests {
		if got := c.Label(tt.index); got != tt.want {
			t.Errorf("Label(%d) = %q, want %q", tt.index, got, tt.want)
		}
	}
}

func TestMLP_Predict(t *testing.T) {
	// 2 inputs -> 2 relu units -> 2 linear outputs, hand-computed.
	m, err := NewMLP(2, []Layer{
		{
			W:   mat.NewDense(2, 2, []float64{1, -1, 2, 0}),
			B:   mat.NewVecDense(2, []float64{0, -5}),
			Act: ReLU,
		},
		{
			W:   mat.NewDense(2, 2, []float64{1, 1, 0, 1}),
			B:   mat.NewVecDense(2, []float64{0.5, 0}),
			Act: Linear,
		},
	})
	if err != nil {
		t.Fatalf("NewMLP() error = %v", err)
	}

	// hidden = relu([3-1, 6-5]) = [2, 1]; out = [2+1+0.5, 1] = [3.5, 1]
	out, err := m.Predict([]float64{3, 1})
	if err != nil {
		t.Fatalf("Predict() error = %v", err)
	}
	if out[0] != 3.5 || out[1] != 1 {
		t.Errorf("Predict() = %v, want [3.5 1]", out)
	}
}

func TestNewMLP_Validation(t *testing.T) {
	tests := []struct {
		name   string
		input  int
		layers []Layer
	}{
		{name: "no layers", input: 2, layers: nil},
		{name: "bad input size", input: 0, layers: []Layer{{W: mat.NewDense(1, 1, nil), B: mat.NewVecDense(1, nil), Act: Linear}}},
		{name: "column mismatch", input: 3, layers: []Layer{{W: mat.NewDense(1, 2, nil), B: mat.NewVecDense(1, nil), Act: Linear}}},
		{name: "bias mismatch", input: 2, layers: []Layer{{W: mat.NewDense(2, 2, nil), B: mat.NewVecDense(1, nil), Act: Linear}}},
		{name: "unknown activation", input: 2, layers: []Layer{{W: mat.NewDense(1, 2, nil), B: mat.NewVecDense(1, nil), Act: "gelu"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewMLP(tt.input, tt.layers); err == nil {
				t.Error("expected error")
			}
		})
	}
}
