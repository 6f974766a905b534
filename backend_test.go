package segmask

import (
	"testing"

	"go.viam.com/test"

	"go.viam.com/segmask/ml"
)

func TestSelectBackend(t *testing.T) {
	host := ml.TensorBatch{hostTensor(4, 4, 1)}
	mixed := ml.TensorBatch{hostTensor(4, 4, 1), deviceTensor(4, 4, 1)}

	// GPU iff support is compiled in and some tensor is device resident
	test.That(t, SelectBackend(host, false), test.ShouldEqual, BackendCPU)
	test.That(t, SelectBackend(host, true), test.ShouldEqual, BackendCPU)
	test.That(t, SelectBackend(mixed, false), test.ShouldEqual, BackendCPU)
	test.That(t, SelectBackend(mixed, true), test.ShouldEqual, BackendGPU)
}

func TestBackendString(t *testing.T) {
	test.That(t, BackendCPU.String(), test.ShouldEqual, "cpu")
	test.That(t, BackendGPU.String(), test.ShouldEqual, "gpu")
}
