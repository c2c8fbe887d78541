package classifier

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// Activation names a layer's output non-linearity.
type Activation string

const (
	Linear  Activation = "linear"
	ReLU    Activation = "relu"
	Sigmoid Activation = "sigmoid"
	Tanh    Activation = "tanh"
	Softmax Activation = "softmax"
)

func (a Activation) valid() bool {
	switch a {
	case Linear, ReLU, Sigmoid, Tanh, Softmax:
		return true
	}
	return false
}

// Layer is a fully connected layer computing act(W·x + b).
type Layer struct {
	W   *mat.Dense    // out x in
	B   *mat.VecDense // out
	Act Activation
}

// MLP is a feed-forward network of dense layers. It is safe for concurrent
// use once built since Predict never mutates the weights.
type MLP struct {
	inputSize int
	layers    []Layer
}

// NewMLP validates that layer shapes chain from inputSize and builds the network.
func NewMLP(inputSize int, layers []Layer) (*MLP, error) {
	if inputSize <= 0 {
		return nil, fmt.Errorf("%w: input size %d", ErrShape, inputSize)
	}
	if len(layers) == 0 {
		return nil, fmt.Errorf("%w: no layers", ErrShape)
	}

	in := inputSize
	for i, l := range layers {
		if l.W == nil || l.B == nil {
			return nil, fmt.Errorf("%w: layer %d missing weights", ErrShape, i)
		}
		rows, cols := l.W.Dims()
		if cols != in {
			return nil, fmt.Errorf("%w: layer %d expects %d inputs, previous layer gives %d", ErrShape, i, cols, in)
		}
		if l.B.Len() != rows {
			return nil, fmt.Errorf("%w: layer %d has %d units but %d biases", ErrShape, i, rows, l.B.Len())
		}
		if !l.Act.valid() {
			return nil, fmt.Errorf("layer %d: unknown activation %q", i, l.Act)
		}
		in = rows
	}

	return &MLP{inputSize: inputSize, layers: layers}, nil
}

// InputSize returns the expected input width.
func (m *MLP) InputSize() int { return m.inputSize }

// OutputSize returns the width of the final layer.
func (m *MLP) OutputSize() int {
	rows, _ := m.layers[len(m.layers)-1].W.Dims()
	return rows
}

// Predict runs a forward pass for a single sample.
func (m *MLP) Predict(x []float64) ([]float64, error) {
	if len(x) != m.inputSize {
		return nil, fmt.Errorf("%w: got %d features, want %d", ErrShape, len(x), m.inputSize)
	}

	h := mat.NewVecDense(len(x), append([]float64(nil), x...))
	for _, l := range m.layers {
		rows, _ := l.W.Dims()
		out := mat.NewVecDense(rows, nil)
		out.MulVec(l.W, h)
		out.AddVec(out, l.B)
		activate(l.Act, out.RawVector().Data)
		h = out
	}

	return h.RawVector().Data, nil
}

func activate(act Activation, v []float64) {
	switch act {
	case ReLU:
		for i, x := range v {
			if x < 0 {
				v[i] = 0
			}
		}
	case Sigmoid:
		for i, x := range v {
			v[i] = 1 / (1 + math.Exp(-x))
		}
	case Tanh:
		for i, x := range v {
			v[i] = math.Tanh(x)
		}
	case Softmax:
		softmax(v)
	}
}

// softmax normalizes v in place, shifted by its max for numerical stability.
func softmax(v []float64) {
	if len(v) == 0 {
		return
	}
	maxV := v[0]
	for _, x := range v[1:] {
		if x > maxV {
			maxV = x
		}
	}
	var sum float64
	for i, x := range v {
		v[i] = math.Exp(x - maxV)
		sum += v[i]
	}
	for i := range v {
		v[i] /= sum
	}
}

// FallbackHiddenUnits is the width of the fallback model's hidden layer.
const FallbackHiddenUnits = 128

// NewFallbackMLP builds an untrained inputSize -> 128 relu -> numClasses
// softmax network with Glorot-uniform weights and zero biases.
func NewFallbackMLP(inputSize, numClasses int, rng *rand.Rand) (*MLP, error) {
	if numClasses <= 0 {
		return nil, fmt.Errorf("%w: fallback model needs at least one class", ErrShape)
	}
	return NewMLP(inputSize, []Layer{
		glorotLayer(inputSize, FallbackHiddenUnits, ReLU, rng),
		glorotLayer(FallbackHiddenUnits, numClasses, Softmax, rng),
	})
}

func glorotLayer(in, out int, act Activation, rng *rand.Rand) Layer {
	limit := math.Sqrt(6 / float64(in+out))
	data := make([]float64, in*out)
	for i := range data {
		data[i] = (rng.Float64()*2 - 1) * limit
	}
	return Layer{
		W:   mat.NewDense(out, in, data),
		B:   mat.NewVecDense(out, nil),
		Act: act,
	}
}
