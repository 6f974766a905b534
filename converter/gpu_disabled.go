//go:build no_gpu

package converter

import (
	"github.com/edaniels/golog"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// GPUSupported reports whether the GPU backend was compiled into this
// binary.
func GPUSupported() bool {
	return false
}

// NewGPU always fails under the no_gpu build tag.
func NewGPU(opts Options, logger golog.Logger) (Converter, error) {
	return nil, status.Error(codes.FailedPrecondition, "backend not compiled in")
}
