package converter

import (
	"math"
	"testing"

	"github.com/edaniels/golog"
	"go.viam.com/test"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"gorgonia.org/tensor"

	"go.viam.com/segmask/ml"
)

func hostBatch(backing []float32, shape ...int) ml.TensorBatch {
	d := tensor.New(tensor.WithShape(shape...), tensor.WithBacking(backing))
	return ml.TensorBatch{ml.NewHostTensor(d)}
}

func TestCPUSigmoid(t *testing.T) {
	logger := golog.NewTestLogger(t)
	conv, err := NewCPU(Options{Activation: ActivationSigmoid}, logger)
	test.That(t, err, test.ShouldBeNil)

	backing := []float32{0, 2, -2, 4}
	m, err := conv.Convert(hostBatch(backing, 2, 2, 1), 2, 2)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, m.Width(), test.ShouldEqual, 2)
	test.That(t, m.Height(), test.ShouldEqual, 2)
	test.That(t, m.Channels(), test.ShouldEqual, 1)
	for i, raw := range backing {
		want := 1 / (1 + math.Exp(-float64(raw)))
		got := float64(m.FloatAt(i%2, i/2, 0))
		test.That(t, got, test.ShouldAlmostEqual, want, 1e-6)
	}
}

func TestCPUSoftmax(t *testing.T) {
	logger := golog.NewTestLogger(t)

	// layer 1 is the foreground layer
	conv, err := NewCPU(Options{Activation: ActivationSoftmax, OutputLayerIndex: 1}, logger)
	test.That(t, err, test.ShouldBeNil)
	m, err := conv.Convert(hostBatch([]float32{1, 3}, 1, 1, 2), 1, 1)
	test.That(t, err, test.ShouldBeNil)
	want := math.Exp(3) / (math.Exp(1) + math.Exp(3))
	test.That(t, float64(m.FloatAt(0, 0, 0)), test.ShouldAlmostEqual, want, 1e-6)

	// selecting layer 0 yields the complement
	conv0, err := NewCPU(Options{Activation: ActivationSoftmax, OutputLayerIndex: 0}, logger)
	test.That(t, err, test.ShouldBeNil)
	m0, err := conv0.Convert(hostBatch([]float32{1, 3}, 1, 1, 2), 1, 1)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, float64(m0.FloatAt(0, 0, 0)), test.ShouldAlmostEqual, 1-want, 1e-6)
}

func TestCPUSoftmaxStability(t *testing.T) {
	logger := golog.NewTestLogger(t)
	conv, err := NewCPU(Options{Activation: ActivationSoftmax, OutputLayerIndex: 1}, logger)
	test.That(t, err, test.ShouldBeNil)

	// logits large enough to overflow a naive exp
	m, err := conv.Convert(hostBatch([]float32{1000, 1004}, 1, 1, 2), 1, 1)
	test.That(t, err, test.ShouldBeNil)
	want := 1 / (1 + math.Exp(-4))
	test.That(t, float64(m.FloatAt(0, 0, 0)), test.ShouldAlmostEqual, want, 1e-6)
}

func TestCPUNoneClamps(t *testing.T) {
	logger := golog.NewTestLogger(t)
	conv, err := NewCPU(Options{Activation: ActivationNone}, logger)
	test.That(t, err, test.ShouldBeNil)

	m, err := conv.Convert(hostBatch([]float32{-0.5, 0.25, 1.5, 1}, 2, 2, 1), 2, 2)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, m.FloatAt(0, 0, 0), test.ShouldEqual, 0)
	test.That(t, m.FloatAt(1, 0, 0), test.ShouldEqual, 0.25)
	test.That(t, m.FloatAt(0, 1, 0), test.ShouldEqual, 1)
	test.That(t, m.FloatAt(1, 1, 0), test.ShouldEqual, 1)
}

func TestCPUResample(t *testing.T) {
	logger := golog.NewTestLogger(t)
	conv, err := NewCPU(Options{Activation: ActivationNone}, logger)
	test.That(t, err, test.ShouldBeNil)

	backing := []float32{0.6, 0.6, 0.6, 0.6}
	m, err := conv.Convert(hostBatch(backing, 2, 2, 1), 4, 4)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, m.Width(), test.ShouldEqual, 4)
	test.That(t, m.Height(), test.ShouldEqual, 4)
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			test.That(t, float64(m.FloatAt(x, y, 0)), test.ShouldAlmostEqual, 0.6, 1e-6)
		}
	}

	// downscale keeps the requested size exactly, no aspect correction
	wide, err := conv.Convert(hostBatch(make([]float32, 8*4), 4, 8, 1), 2, 6)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, wide.Width(), test.ShouldEqual, 2)
	test.That(t, wide.Height(), test.ShouldEqual, 6)
}

func TestCPURejectsBadInput(t *testing.T) {
	logger := golog.NewTestLogger(t)
	conv, err := NewCPU(Options{Activation: ActivationNone}, logger)
	test.That(t, err, test.ShouldBeNil)

	_, err = conv.Convert(ml.TensorBatch{}, 2, 2)
	test.That(t, status.Code(err), test.ShouldEqual, codes.InvalidArgument)
	test.That(t, err.Error(), test.ShouldContainSubstring, "empty tensor batch")

	_, err = conv.Convert(hostBatch(make([]float32, 4), 2, 2, 1), 0, 2)
	test.That(t, status.Code(err), test.ShouldEqual, codes.InvalidArgument)
}

func TestResampleBilinearValues(t *testing.T) {
	// a horizontal ramp stays monotonic and keeps its endpoints when
	// resampled
	src := []float32{0, 1}
	dst := resampleBilinear(src, 2, 1, 4, 1)
	test.That(t, len(dst), test.ShouldEqual, 4)
	test.That(t, dst[0], test.ShouldEqual, float32(0))
	test.That(t, dst[3], test.ShouldEqual, float32(1))
	for i := 1; i < 4; i++ {
		test.That(t, dst[i], test.ShouldBeGreaterThanOrEqualTo, dst[i-1])
	}

	// identity size returns the plane untouched
	same := resampleBilinear(src, 2, 1, 2, 1)
	test.That(t, same, test.ShouldResemble, src)
}
