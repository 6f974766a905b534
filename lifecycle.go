package segmask

import (
	"github.com/edaniels/golog"
	"go.uber.org/multierr"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"go.viam.com/segmask/converter"
)

type converterConstructor func(converter.Options, golog.Logger) (converter.Converter, error)

// converterCache lazily constructs at most one converter per backend variant
// and hands back the cached instance thereafter. A slot whose construction
// failed stays empty, so a later invocation that selects the same variant
// retries construction. Invocations are sequential per router, so the cache
// needs no locking.
type converterCache struct {
	opts         converter.Options
	logger       golog.Logger
	gpuSupported bool

	newCPU converterConstructor
	newGPU converterConstructor

	cpu converter.Converter
	gpu converter.Converter
}

func newConverterCache(opts converter.Options, logger golog.Logger) *converterCache {
	return &converterCache{
		opts:         opts,
		logger:       logger,
		gpuSupported: converter.GPUSupported(),
		newCPU:       converter.NewCPU,
		newGPU:       converter.NewGPU,
	}
}

func (c *converterCache) acquire(backend Backend) (converter.Converter, error) {
	switch backend {
	case BackendGPU:
		if !c.gpuSupported {
			return nil, status.Error(codes.FailedPrecondition, "backend not compiled in")
		}
		if c.gpu == nil {
			conv, err := c.newGPU(c.opts, c.logger)
			if err != nil {
				return nil, err
			}
			c.logger.Debugw("constructed converter", "backend", BackendGPU.String())
			c.gpu = conv
		}
		return c.gpu, nil
	case BackendCPU:
		if c.cpu == nil {
			conv, err := c.newCPU(c.opts, c.logger)
			if err != nil {
				return nil, err
			}
			c.logger.Debugw("constructed converter", "backend", BackendCPU.String())
			c.cpu = conv
		}
		return c.cpu, nil
	default:
		return nil, status.Errorf(codes.InvalidArgument, "unknown backend %d", backend)
	}
}

func (c *converterCache) close() error {
	var err error
	if c.cpu != nil {
		err = multierr.Combine(err, c.cpu.Close())
		c.cpu = nil
	}
	if c.gpu != nil {
		err = multierr.Combine(err, c.gpu.Close())
		c.gpu = nil
	}
	return err
}
