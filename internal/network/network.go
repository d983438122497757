// Package network models the feed-forward layer layout shown next to the
// editor and sent along with a training request. Nothing here trains; the
// remote service owns that.
//
// The input layer always has one neuron per grid cell and the output layer
// one neuron per selected category. Both are fixed: only hidden layers can be
// added, removed or resized.
package network

import (
	"errors"
	"fmt"
	"math"

	"github.com/banshee-data/pixelset/internal/dataset"
	"github.com/banshee-data/pixelset/internal/grid"
)

const (
	// MaxHiddenLayers bounds the number of hidden layers.
	MaxHiddenLayers = 3

	DefaultLearningRate = 1e-3
	MinLearningRateExp  = -6
	MaxLearningRateExp  = 0

	InputLayerName  = "Input Layer"
	OutputLayerName = "Output Layer"
)

var (
	ErrTooManyLayers  = errors.New("hidden layer limit reached")
	ErrNoHiddenLayers = errors.New("no hidden layers")
	ErrLayerNotFound  = errors.New("layer not found")
	ErrFixedLayer     = errors.New("layer is fixed")
)

// Activation is a per-layer activation function name.
type Activation string

const (
	Sigmoid Activation = "sigmoid"
	Tanh    Activation = "tanh"
	ReLU    Activation = "relu"
	Softmax Activation = "softmax"

	DefaultActivation = ReLU
)

// Activations lists the accepted activation functions.
var Activations = []Activation{Sigmoid, Tanh, ReLU, Softmax}

// Valid reports whether a is one of Activations.
func (a Activation) Valid() bool {
	for _, v := range Activations {
		if v == a {
			return true
		}
	}
	return false
}

// Layer is one column of neurons.
type Layer struct {
	Name    string `json:"name"`
	Neurons int    `json:"neurons"`
	Fixed   bool   `json:"fixed,omitempty"`
}

// Parameters are the training hyper-parameters chosen in the editor.
type Parameters struct {
	Activations  map[string]Activation `json:"activationFunctions"`
	LearningRate float64               `json:"learningRate"`
}

// Network is the editable layer layout.
type Network struct {
	layers       []Layer
	activations  map[string]Activation
	learningRate float64
}

// New returns a network with only the fixed input and output layers.
func New(inputSize, outputSize int) *Network {
	return &Network{
		layers: []Layer{
			{Name: InputLayerName, Neurons: inputSize, Fixed: true},
			{Name: OutputLayerName, Neurons: outputSize, Fixed: true},
		},
		activations:  make(map[string]Activation),
		learningRate: DefaultLearningRate,
	}
}

// Layers returns a copy of the layout, input first.
func (n *Network) Layers() []Layer {
	return append([]Layer(nil), n.layers...)
}

// HiddenLayers returns the number of hidden layers.
func (n *Network) HiddenLayers() int { return len(n.layers) - 2 }

// SetInputSize follows a grid resize.
func (n *Network) SetInputSize(size int) { n.layers[0].Neurons = size }

// SetOutputSize follows a selection change.
func (n *Network) SetOutputSize(size int) { n.layers[len(n.layers)-1].Neurons = size }

// InputSize returns the input layer width.
func (n *Network) InputSize() int { return n.layers[0].Neurons }

// OutputSize returns the output layer width.
func (n *Network) OutputSize() int { return n.layers[len(n.layers)-1].Neurons }

// AddLayer inserts a one-neuron hidden layer just before the output layer and
// returns its name.
func (n *Network) AddLayer() (string, error) {
	if n.HiddenLayers() >= MaxHiddenLayers {
		return "", fmt.Errorf("%w (max %d)", ErrTooManyLayers, MaxHiddenLayers)
	}
	name := fmt.Sprintf("Layer %d", len(n.layers))
	out := n.layers[len(n.layers)-1]
	n.layers = append(n.layers[:len(n.layers)-1], Layer{Name: name, Neurons: 1}, out)
	return name, nil
}

// RemoveLayer drops the last hidden layer.
func (n *Network) RemoveLayer() error {
	if n.HiddenLayers() == 0 {
		return ErrNoHiddenLayers
	}
	return n.removeAt(len(n.layers) - 2)
}

// AddNeuron grows a hidden layer by one.
func (n *Network) AddNeuron(layer string) error {
	i, err := n.hidden(layer)
	if err != nil {
		return err
	}
	n.layers[i].Neurons++
	return nil
}

// RemoveNeuron shrinks a hidden layer by one; a layer left empty is removed.
func (n *Network) RemoveNeuron(layer string) error {
	i, err := n.hidden(layer)
	if err != nil {
		return err
	}
	n.layers[i].Neurons--
	if n.layers[i].Neurons <= 0 {
		return n.removeAt(i)
	}
	return nil
}

func (n *Network) removeAt(i int) error {
	delete(n.activations, n.layers[i].Name)
	n.layers = append(n.layers[:i], n.layers[i+1:]...)
	return nil
}

func (n *Network) hidden(name string) (int, error) {
	for i, l := range n.layers {
		if l.Name != name {
			continue
		}
		if l.Fixed {
			return 0, fmt.Errorf("%w: %q", ErrFixedLayer, name)
		}
		return i, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrLayerNotFound, name)
}

// SetActivation picks the activation function of a layer.
func (n *Network) SetActivation(layer string, a Activation) error {
	if !a.Valid() {
		return fmt.Errorf("%w: activation %q", dataset.ErrValidationFailed, a)
	}
	for _, l := range n.layers {
		if l.Name == layer {
			n.activations[layer] = a
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrLayerNotFound, layer)
}

// Activation returns the activation of a layer, DefaultActivation when unset.
func (n *Network) Activation(layer string) Activation {
	if a, ok := n.activations[layer]; ok {
		return a
	}
	return DefaultActivation
}

// SetLearningRateExponent sets the learning rate to 10^exp.
func (n *Network) SetLearningRateExponent(exp int) error {
	if exp < MinLearningRateExp || exp > MaxLearningRateExp {
		return fmt.Errorf("%w: learning rate exponent %d outside [%d, %d]",
			dataset.ErrValidationFailed, exp, MinLearningRateExp, MaxLearningRateExp)
	}
	n.learningRate = math.Pow(10, float64(exp))
	return nil
}

// LearningRate returns the current learning rate.
func (n *Network) LearningRate() float64 { return n.learningRate }

// Parameters returns the hyper-parameters with an activation for every layer.
func (n *Network) Parameters() Parameters {
	p := Parameters{
		Activations:  make(map[string]Activation, len(n.layers)),
		LearningRate: n.learningRate,
	}
	for _, l := range n.layers {
		p.Activations[l.Name] = n.Activation(l.Name)
	}
	return p
}

// ParameterCount is the number of weights and biases of a dense network with
// this layout.
func (n *Network) ParameterCount() int {
	total := 0
	for i := 1; i < len(n.layers); i++ {
		total += n.layers[i-1].Neurons*n.layers[i].Neurons + n.layers[i].Neurons
	}
	return total
}

// Encode flattens a matrix into network input, 1 for a painted cell and 0
// for a blank one, row by row.
func Encode(m grid.Matrix) []float64 {
	rows, cols := m.Dims()
	out := make([]float64, 0, rows*cols)
	for _, row := range m {
		for _, c := range row {
			if c != grid.Blank {
				out = append(out, 1)
			} else {
				out = append(out, 0)
			}
		}
	}
	return out
}
