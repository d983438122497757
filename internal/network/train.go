package network

import (
	"fmt"

	"github.com/banshee-data/pixelset/internal/dataset"
)

// TrainRequest is the body of POST /api/train_network/.
type TrainRequest struct {
	Name       string     `json:"name"`
	Layers     []Layer    `json:"layers"`
	Parameters Parameters `json:"parameters"`
	Categories []string   `json:"categories"`
}

// TrainResult is the reply of the training service.
type TrainResult struct {
	Accuracy float64 `json:"accuracy"`
	Loss     float64 `json:"loss"`
	Status   string  `json:"status"`
}

// Model is one entry of GET /api/models/.
type Model struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Accuracy float64 `json:"accuracy"`
}

// NewTrainRequest builds a request for the given selection. The output layer
// is sized from categories so the payload is consistent even if the caller
// did not resize it first.
func (n *Network) NewTrainRequest(name string, categories []string) (TrainRequest, error) {
	if name == "" {
		return TrainRequest{}, fmt.Errorf("%w: model name is empty", dataset.ErrValidationFailed)
	}
	if len(categories) == 0 {
		return TrainRequest{}, fmt.Errorf("%w: no categories selected", dataset.ErrValidationFailed)
	}
	layers := n.Layers()
	layers[len(layers)-1].Neurons = len(categories)
	return TrainRequest{
		Name:       name,
		Layers:     layers,
		Parameters: n.Parameters(),
		Categories: append([]string(nil), categories...),
	}, nil
}

// Validate checks a request received by the training service.
func (r TrainRequest) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("%w: model name is empty", dataset.ErrValidationFailed)
	}
	if len(r.Categories) == 0 {
		return fmt.Errorf("%w: no categories", dataset.ErrValidationFailed)
	}
	if len(r.Layers) < 2 || len(r.Layers) > MaxHiddenLayers+2 {
		return fmt.Errorf("%w: %d layers", dataset.ErrValidationFailed, len(r.Layers))
	}
	for _, l := range r.Layers {
		if l.Neurons < 1 {
			return fmt.Errorf("%w: layer %q has %d neurons", dataset.ErrValidationFailed, l.Name, l.Neurons)
		}
	}
	for layer, a := range r.Parameters.Activations {
		if !a.Valid() {
			return fmt.Errorf("%w: layer %q activation %q", dataset.ErrValidationFailed, layer, a)
		}
	}
	return nil
}
