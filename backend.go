package segmask

import (
	"go.viam.com/segmask/ml"
)

// Backend identifies which converter variant an invocation runs on.
type Backend int

const (
	// BackendCPU converts in host memory.
	BackendCPU Backend = iota
	// BackendGPU converts on the device.
	BackendGPU
)

func (b Backend) String() string {
	if b == BackendGPU {
		return "gpu"
	}
	return "cpu"
}

// SelectBackend picks the execution path for one invocation: GPU if and only
// if GPU support is compiled in and at least one tensor in the batch is
// already device resident, CPU otherwise. Residency can differ call to call,
// so this runs on every invocation.
func SelectBackend(batch ml.TensorBatch, gpuSupported bool) Backend {
	if gpuSupported && batch.AnyReadyOnGPU() {
		return BackendGPU
	}
	return BackendCPU
}
