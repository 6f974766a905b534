package ml

import (
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"gorgonia.org/tensor"
)

// Dims is the (height, width, channels) reading of a tensor shape.
type Dims struct {
	Height   int
	Width    int
	Channels int
}

// HWCFromShape interprets a tensor shape as (height, width, channels).
// Rank-3 shapes are read directly. Rank-4 shapes must carry a leading batch
// dimension of exactly 1, which is stripped. Anything else is rejected.
func HWCFromShape(shape tensor.Shape) (Dims, error) {
	switch len(shape) {
	case 3:
		return Dims{Height: shape[0], Width: shape[1], Channels: shape[2]}, nil
	case 4:
		if shape[0] != 1 {
			return Dims{}, status.Errorf(codes.InvalidArgument, "unsupported batch size %d", shape[0])
		}
		return Dims{Height: shape[1], Width: shape[2], Channels: shape[3]}, nil
	default:
		return Dims{}, status.Errorf(codes.InvalidArgument, "unsupported tensor rank %d", len(shape))
	}
}
