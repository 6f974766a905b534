package ml

import (
	"testing"

	"go.viam.com/test"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"gorgonia.org/tensor"
)

func TestHWCFromShape(t *testing.T) {
	for _, tc := range []struct {
		name    string
		shape   tensor.Shape
		want    Dims
		code    codes.Code
		errPart string
	}{
		{name: "rank 3", shape: tensor.Shape{256, 192, 1}, want: Dims{256, 192, 1}},
		{name: "rank 4 with unit batch", shape: tensor.Shape{1, 128, 64, 2}, want: Dims{128, 64, 2}},
		{name: "rank 4 with batch of 2", shape: tensor.Shape{2, 128, 64, 2}, code: codes.InvalidArgument, errPart: "unsupported batch size"},
		{name: "rank 2", shape: tensor.Shape{128, 64}, code: codes.InvalidArgument, errPart: "unsupported tensor rank"},
		{name: "rank 5", shape: tensor.Shape{1, 1, 128, 64, 2}, code: codes.InvalidArgument, errPart: "unsupported tensor rank"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			got, err := HWCFromShape(tc.shape)
			if tc.errPart != "" {
				test.That(t, err, test.ShouldNotBeNil)
				test.That(t, status.Code(err), test.ShouldEqual, tc.code)
				test.That(t, err.Error(), test.ShouldContainSubstring, tc.errPart)
				return
			}
			test.That(t, err, test.ShouldBeNil)
			test.That(t, got, test.ShouldResemble, tc.want)
		})
	}
}
