package converter

import (
	"math"

	"github.com/edaniels/golog"
	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"
	"golang.org/x/exp/constraints"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"go.viam.com/segmask/mask"
	"go.viam.com/segmask/ml"
)

// cpuConverter reads the first tensor of the batch from host memory, applies
// the configured activation, and resamples the result to the requested
// output size.
type cpuConverter struct {
	opts   Options
	logger golog.Logger
}

// NewCPU returns the host-memory converter.
func NewCPU(opts Options, logger golog.Logger) (Converter, error) {
	return &cpuConverter{opts: opts, logger: logger}, nil
}

func (c *cpuConverter) Convert(batch ml.TensorBatch, outputWidth, outputHeight int) (*mask.Mask, error) {
	if len(batch) == 0 {
		return nil, status.Error(codes.InvalidArgument, "empty tensor batch")
	}
	if outputWidth <= 0 || outputHeight <= 0 {
		return nil, status.Errorf(codes.InvalidArgument, "invalid output size %dx%d", outputWidth, outputHeight)
	}
	dims, err := ml.HWCFromShape(batch[0].Shape())
	if err != nil {
		return nil, err
	}
	data, err := batch[0].Float32Data()
	if err != nil {
		return nil, err
	}

	plane, err := c.activate(data, dims)
	if err != nil {
		return nil, err
	}
	if outputWidth != dims.Width || outputHeight != dims.Height {
		plane = resampleBilinear(plane, dims.Width, dims.Height, outputWidth, outputHeight)
	}
	for i, v := range plane {
		plane[i] = clampUnit(v)
	}
	return mask.FromData(plane, outputWidth, outputHeight, 1)
}

// activate collapses the interleaved tensor data into a single float plane
// of per-pixel mask values.
func (c *cpuConverter) activate(data []float32, dims ml.Dims) ([]float32, error) {
	n := dims.Height * dims.Width
	layer := c.opts.layerIndex(dims.Channels)

	switch c.opts.Activation {
	case ActivationSigmoid:
		raw := make([]float64, n)
		for i := 0; i < n; i++ {
			raw[i] = float64(data[i*dims.Channels+layer])
		}
		sig, err := stats.Sigmoid(raw)
		if err != nil {
			return nil, errors.Wrap(err, "sigmoid activation failed")
		}
		return convertNumberSlice[float64, float32](sig), nil
	case ActivationSoftmax:
		out := make([]float32, n)
		for i := 0; i < n; i++ {
			base := i * dims.Channels
			a := float64(data[base])
			b := float64(data[base+1])
			// subtract the max before exponentiating for stability
			m := math.Max(a, b)
			ea := math.Exp(a - m)
			eb := math.Exp(b - m)
			fg := eb
			if layer == 0 {
				fg = ea
			}
			out[i] = float32(fg / (ea + eb))
		}
		return out, nil
	case ActivationNone:
		fallthrough
	default:
		out := make([]float32, n)
		for i := 0; i < n; i++ {
			out[i] = data[i*dims.Channels+layer]
		}
		return out, nil
	}
}

func (c *cpuConverter) Close() error {
	return nil
}

// number interface for converting between numbers.
type number interface {
	constraints.Integer | constraints.Float
}

// convertNumberSlice converts any number slice into another number slice.
func convertNumberSlice[T1, T2 number](t1 []T1) []T2 {
	t2 := make([]T2, len(t1))
	for i := range t1 {
		t2[i] = T2(t1[i])
	}
	return t2
}

func clampUnit(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
