// Package main contains a command to convert a raw segmentation activation
// tensor dump into a mask image file.
package main

import (
	"context"
	"encoding/binary"
	"math"
	"os"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.viam.com/utils"
	"gorgonia.org/tensor"

	"go.viam.com/segmask"
	"go.viam.com/segmask/ml"
)

var logger = golog.NewDevelopmentLogger("segmask")

func main() {
	utils.ContextualMain(mainWithArgs, logger)
}

// Arguments for the command.
type Arguments struct {
	TensorPath string `flag:"tensor,usage=path to raw little-endian float32 tensor data"`
	Height     int    `flag:"height,usage=tensor height"`
	Width      int    `flag:"width,usage=tensor width"`
	Channels   int    `flag:"channels,default=1,usage=tensor channel count"`
	Activation string `flag:"activation,default=none,usage=activation to apply (none|sigmoid|softmax)"`
	Layer      int    `flag:"layer,usage=output layer index"`
	OutWidth   int    `flag:"out-width,usage=mask width (defaults to tensor width)"`
	OutHeight  int    `flag:"out-height,usage=mask height (defaults to tensor height)"`
	OutPath    string `flag:"out,default=mask.png,usage=where to write the mask image"`
}

func mainWithArgs(ctx context.Context, args []string, logger golog.Logger) error {
	var argsParsed Arguments
	if err := utils.ParseFlags(args, &argsParsed); err != nil {
		return err
	}
	if argsParsed.TensorPath == "" || argsParsed.Height <= 0 || argsParsed.Width <= 0 {
		return errors.New("tensor, height and width are required")
	}
	return writeMask(ctx, argsParsed, logger)
}

func writeMask(ctx context.Context, args Arguments, logger golog.Logger) (err error) {
	backing, err := readFloat32File(args.TensorPath)
	if err != nil {
		return err
	}
	want := args.Height * args.Width * args.Channels
	if len(backing) != want {
		return errors.Errorf("tensor file has %d values, want %d for %dx%dx%d",
			len(backing), want, args.Height, args.Width, args.Channels)
	}
	d := tensor.New(tensor.WithShape(args.Height, args.Width, args.Channels), tensor.WithBacking(backing))

	router, err := segmask.NewRouter(&segmask.Config{
		Activation:       args.Activation,
		OutputLayerIndex: args.Layer,
	}, logger)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, router.Close())
	}()

	var outSize *segmask.OutputSize
	if args.OutWidth > 0 && args.OutHeight > 0 {
		outSize = &segmask.OutputSize{Width: args.OutWidth, Height: args.OutHeight}
	}
	out, err := router.Process(ctx, &segmask.Input{
		Tensors:    ml.TensorBatch{ml.NewHostTensor(d)},
		OutputSize: outSize,
	})
	if err != nil {
		return err
	}
	if err := out.Mask.WriteTo(args.OutPath); err != nil {
		return err
	}
	logger.Infow("wrote mask", "path", args.OutPath, "width", out.Mask.Width(), "height", out.Mask.Height())
	return nil
}

func readFloat32File(path string) ([]float32, error) {
	//nolint:gosec
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(raw)%4 != 0 {
		return nil, errors.Errorf("tensor file size %d is not a multiple of 4", len(raw))
	}
	out := make([]float32, len(raw)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
	}
	return out, nil
}
