// Package ml provides the tensor primitives consumed by the segmentation
// mask router: dense activation tensors with a residency flag, batches of
// them, and shape interpretation helpers.
package ml

import (
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"gorgonia.org/tensor"
)

// Residency says where a tensor's data currently lives.
type Residency int

const (
	// ResidencyHost means the tensor data lives in host memory.
	ResidencyHost Residency = iota
	// ResidencyDevice means the tensor data has already been staged on the
	// GPU by an upstream stage.
	ResidencyDevice
)

// Tensor is a dense activation tensor together with a record of where its
// data resides. Callers of the router retain ownership; the router and the
// converters only borrow tensors for the duration of one invocation and
// never mutate them.
type Tensor struct {
	dense     *tensor.Dense
	residency Residency
}

// NewHostTensor wraps a dense tensor whose data lives in host memory.
func NewHostTensor(d *tensor.Dense) *Tensor {
	return &Tensor{dense: d, residency: ResidencyHost}
}

// NewDeviceTensor wraps a dense tensor that is already staged on the GPU.
// The host backing is retained so a converter can still read it.
func NewDeviceTensor(d *tensor.Dense) *Tensor {
	return &Tensor{dense: d, residency: ResidencyDevice}
}

// Shape returns the tensor's dimension sizes.
func (t *Tensor) Shape() tensor.Shape {
	return t.dense.Shape()
}

// Dtype returns the tensor's element type.
func (t *Tensor) Dtype() tensor.Dtype {
	return t.dense.Dtype()
}

// Residency returns where the tensor's data resides.
func (t *Tensor) Residency() Residency {
	return t.residency
}

// ReadyOnGPU reports whether the tensor is device resident.
func (t *Tensor) ReadyOnGPU() bool {
	return t.residency == ResidencyDevice
}

// Float32Data returns the tensor's backing slice. The slice is shared with
// the tensor, not copied.
func (t *Tensor) Float32Data() ([]float32, error) {
	data, ok := t.dense.Data().([]float32)
	if !ok {
		return nil, status.Errorf(codes.InvalidArgument, "unsupported element type %v", t.dense.Dtype())
	}
	return data, nil
}

// TensorBatch is the ordered tensor sequence handed to the router for one
// invocation. Converters only consult the first entry for pixel data, but
// residency is a property of the whole batch.
type TensorBatch []*Tensor

// AnyReadyOnGPU reports whether at least one tensor in the batch is device
// resident. This scans the entire batch, not just the first tensor.
func (b TensorBatch) AnyReadyOnGPU() bool {
	for _, t := range b {
		if t.ReadyOnGPU() {
			return true
		}
	}
	return false
}
