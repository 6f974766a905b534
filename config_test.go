package segmask

import (
	"testing"

	"go.viam.com/test"

	"go.viam.com/segmask/converter"
)

func TestConfigValidate(t *testing.T) {
	conf := Config{Activation: "softmax", OutputLayerIndex: 1, GPUOrigin: "top_left"}
	opts, err := conf.Validate()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, opts.Activation, test.ShouldEqual, converter.ActivationSoftmax)
	test.That(t, opts.OutputLayerIndex, test.ShouldEqual, 1)
	test.That(t, opts.GPUOrigin, test.ShouldEqual, converter.GPUOriginTopLeft)

	// zero config means raw single-channel values, conventional origin
	opts, err = (&Config{}).Validate()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, opts.Activation, test.ShouldEqual, converter.ActivationNone)
	test.That(t, opts.GPUOrigin, test.ShouldEqual, converter.GPUOriginConventional)

	_, err = (&Config{Activation: "relu"}).Validate()
	test.That(t, err, test.ShouldNotBeNil)
	_, err = (&Config{GPUOrigin: "sideways"}).Validate()
	test.That(t, err, test.ShouldNotBeNil)
}
