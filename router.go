// Package segmask converts raw per-pixel activation tensors from a
// segmentation model into normalized mask images.
//
// A Router validates each incoming tensor batch, picks a GPU or CPU
// converter based on where the tensor data already resides, constructs the
// selected converter on first use, and delegates the pixel work to it. If at
// least one tensor in a batch is already staged on the GPU (and GPU support
// is compiled in), conversion happens on the GPU and the mask comes back as
// a 4-channel image with the mask in the R and A channels; otherwise it
// happens on the CPU and the mask is a single-channel float image. Either
// way values are scaled 0-1, and an optional per-invocation output size
// upscales the mask.
package segmask

import (
	"context"

	"github.com/edaniels/golog"
	"go.opencensus.io/trace"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"gorgonia.org/tensor"

	"go.viam.com/segmask/converter"
	"go.viam.com/segmask/mask"
	"go.viam.com/segmask/ml"
)

// OutputSize is the per-invocation mask size request. When absent, the mask
// keeps the input tensor's own width and height.
type OutputSize struct {
	Width  int
	Height int
}

// Input is one invocation's worth of data. A nil Tensors field means the
// upstream stage produced nothing this tick, which is not an error. Sequence
// is an opaque ordering marker the caller wants echoed on the output.
type Input struct {
	Tensors    ml.TensorBatch
	OutputSize *OutputSize
	Sequence   int64
}

// Output carries the produced mask, tagged with the input's sequence marker.
type Output struct {
	Mask     *mask.Mask
	Sequence int64
}

// Router is the per-invocation entry point. The host is expected to run at
// most one Process call at a time per router; the router holds no locks of
// its own. A failed invocation leaves the router usable for the next one.
type Router struct {
	opts         converter.Options
	logger       golog.Logger
	gpuSupported bool
	converters   *converterCache
}

// NewRouter validates the config and returns a router. No converter is
// constructed until an invocation first needs it.
func NewRouter(conf *Config, logger golog.Logger) (*Router, error) {
	opts, err := conf.Validate()
	if err != nil {
		return nil, err
	}
	return &Router{
		opts:         opts,
		logger:       logger,
		gpuSupported: converter.GPUSupported(),
		converters:   newConverterCache(opts, logger),
	}, nil
}

// Process runs one invocation: validate, select a backend, lazily acquire
// the converter, and delegate. A nil input or nil tensor batch is a no-op
// tick and returns (nil, nil).
func (r *Router) Process(ctx context.Context, in *Input) (*Output, error) {
	_, span := trace.StartSpan(ctx, "segmask::Router::Process")
	defer span.End()

	if in == nil || in.Tensors == nil {
		return nil, nil
	}
	if err := r.validate(in.Tensors); err != nil {
		return nil, err
	}

	backend := SelectBackend(in.Tensors, r.gpuSupported)
	conv, err := r.converters.acquire(backend)
	if err != nil {
		return nil, err
	}

	// validate already proved the first tensor's shape is well formed
	dims, err := ml.HWCFromShape(in.Tensors[0].Shape())
	if err != nil {
		return nil, err
	}
	outputWidth, outputHeight := dims.Width, dims.Height
	if in.OutputSize != nil {
		outputWidth, outputHeight = in.OutputSize.Width, in.OutputSize.Height
	}

	m, err := conv.Convert(in.Tensors, outputWidth, outputHeight)
	if err != nil {
		return nil, err
	}
	return &Output{Mask: m, Sequence: in.Sequence}, nil
}

// validate enforces the shape and activation contract on the first tensor
// before any backend is touched. Residency is deliberately not checked here;
// it is a whole-batch property read by SelectBackend.
func (r *Router) validate(batch ml.TensorBatch) error {
	if len(batch) == 0 {
		return status.Error(codes.InvalidArgument, "empty tensor batch")
	}
	first := batch[0]
	if first.Dtype() != tensor.Float32 {
		return status.Errorf(codes.InvalidArgument, "unsupported element type %v", first.Dtype())
	}
	dims, err := ml.HWCFromShape(first.Shape())
	if err != nil {
		return err
	}
	if want := r.opts.Activation.Channels(); dims.Channels != want {
		return status.Errorf(codes.InvalidArgument,
			"channel count mismatch: activation %s requires %d channels, tensor has %d",
			r.opts.Activation, want, dims.Channels)
	}
	return nil
}

// Close releases any converters that were constructed.
func (r *Router) Close() error {
	return r.converters.close()
}
