package segmask

import (
	"go.viam.com/segmask/converter"
)

// Config configures a Router. It is read once when the router is created and
// never consulted again; activation and origin are given as strings so the
// struct can come straight out of a JSON attribute map.
type Config struct {
	// Activation is the transfer function the model's output expects:
	// "none", "sigmoid" or "softmax". Empty means none.
	Activation string `json:"activation"`
	// OutputLayerIndex selects which channel holds the foreground layer.
	// Consumed only by the converter backends.
	OutputLayerIndex int `json:"output_layer_index"`
	// GPUOrigin is "conventional" (bottom-left, rows flipped on the GPU
	// path) or "top_left". Consumed only by the GPU backend.
	GPUOrigin string `json:"gpu_origin"`
}

// Validate checks the config and resolves it into converter options.
func (conf *Config) Validate() (converter.Options, error) {
	activation, err := converter.ParseActivation(conf.Activation)
	if err != nil {
		return converter.Options{}, err
	}
	origin, err := converter.ParseGPUOrigin(conf.GPUOrigin)
	if err != nil {
		return converter.Options{}, err
	}
	return converter.Options{
		Activation:       activation,
		OutputLayerIndex: conf.OutputLayerIndex,
		GPUOrigin:        origin,
	}, nil
}
