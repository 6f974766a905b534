// Package converter holds the backends that turn segmentation activation
// tensors into mask images. The CPU backend is always available; the GPU
// backend is compiled in unless the no_gpu build tag is set.
package converter

import (
	"strings"

	"github.com/pkg/errors"

	"go.viam.com/segmask/mask"
	"go.viam.com/segmask/ml"
)

// Activation is the transfer function the segmentation model expects to be
// applied to its raw output.
type Activation int

const (
	// ActivationNone copies the raw values through.
	ActivationNone Activation = iota
	// ActivationSigmoid applies a sigmoid to a single-channel tensor.
	ActivationSigmoid
	// ActivationSoftmax normalizes a two-channel tensor and keeps the
	// foreground layer.
	ActivationSoftmax
)

func (a Activation) String() string {
	switch a {
	case ActivationNone:
		return "none"
	case ActivationSigmoid:
		return "sigmoid"
	case ActivationSoftmax:
		return "softmax"
	default:
		return "unknown"
	}
}

// Channels returns the channel count the activation requires of the input
// tensor.
func (a Activation) Channels() int {
	if a == ActivationSoftmax {
		return 2
	}
	return 1
}

// ParseActivation maps a config string to an Activation. The empty string
// means none.
func ParseActivation(s string) (Activation, error) {
	switch strings.ToLower(s) {
	case "", "none":
		return ActivationNone, nil
	case "sigmoid":
		return ActivationSigmoid, nil
	case "softmax":
		return ActivationSoftmax, nil
	default:
		return 0, errors.Errorf("unknown activation %q", s)
	}
}

// GPUOrigin says which vertical orientation the GPU backend writes masks in.
type GPUOrigin int

const (
	// GPUOriginConventional is the bottom-left origin used by OpenGL style
	// pipelines; the GPU backend flips rows when producing the mask.
	GPUOriginConventional GPUOrigin = iota
	// GPUOriginTopLeft writes rows top to bottom as-is.
	GPUOriginTopLeft
)

func (o GPUOrigin) String() string {
	if o == GPUOriginTopLeft {
		return "top_left"
	}
	return "conventional"
}

// ParseGPUOrigin maps a config string to a GPUOrigin. The empty string means
// conventional.
func ParseGPUOrigin(s string) (GPUOrigin, error) {
	switch strings.ToLower(s) {
	case "", "conventional":
		return GPUOriginConventional, nil
	case "top_left":
		return GPUOriginTopLeft, nil
	default:
		return 0, errors.Errorf("unknown gpu origin %q", s)
	}
}

// Options configure a converter backend. They are fixed when the router is
// created and shared read-only by both backends; GPUOrigin is ignored on the
// CPU path.
type Options struct {
	Activation       Activation
	OutputLayerIndex int
	GPUOrigin        GPUOrigin
}

// layerIndex clamps the configured output layer into the tensor's channel
// range.
func (o Options) layerIndex(channels int) int {
	idx := o.OutputLayerIndex
	if idx < 0 {
		return 0
	}
	if idx >= channels {
		return channels - 1
	}
	return idx
}

// Converter turns a tensor batch into a mask at the requested output size.
// Convert blocks until the mask is ready for handoff; ownership of the
// returned mask transfers to the caller.
type Converter interface {
	Convert(batch ml.TensorBatch, outputWidth, outputHeight int) (*mask.Mask, error)
	Close() error
}
