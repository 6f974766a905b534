//go:build !no_gpu

package converter

import (
	"sync"
	"time"

	"github.com/edaniels/golog"
	"github.com/openfluke/webgpu/wgpu"
	"github.com/pkg/errors"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"go.viam.com/segmask/mask"
	"go.viam.com/segmask/ml"
)

// workgroupSize is the block size of the compute kernel in each dimension.
const workgroupSize = 8

const readBackTimeout = 2 * time.Second

// gpuContext is the process-wide WebGPU context shared by all GPU
// converters. It is created on the first converter construction.
type gpuContext struct {
	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue
}

var (
	gpuCtx     *gpuContext
	gpuCtxErr  error
	gpuCtxOnce sync.Once
)

func getGPUContext() (*gpuContext, error) {
	gpuCtxOnce.Do(func() {
		c := &gpuContext{}
		c.instance = wgpu.CreateInstance(nil)
		if c.instance == nil {
			gpuCtxErr = errors.New("failed to create WebGPU instance")
			return
		}
		var err error
		c.adapter, err = c.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
			PowerPreference: wgpu.PowerPreferenceHighPerformance,
		})
		if err != nil || c.adapter == nil {
			c.adapter, err = c.instance.RequestAdapter(nil)
		}
		if err != nil {
			gpuCtxErr = errors.Wrap(err, "no usable GPU adapter")
			return
		}
		if c.adapter == nil {
			gpuCtxErr = errors.New("no usable GPU adapter")
			return
		}
		c.device, err = c.adapter.RequestDevice(nil)
		if err != nil {
			gpuCtxErr = errors.Wrap(err, "failed to request GPU device")
			return
		}
		c.queue = c.device.GetQueue()
		gpuCtx = c
	})
	if gpuCtxErr != nil {
		return nil, gpuCtxErr
	}
	return gpuCtx, nil
}

// GPUSupported reports whether the GPU backend was compiled into this
// binary.
func GPUSupported() bool {
	return true
}

// gpuConverter runs a compute kernel that applies the activation, resamples
// to the output size, and duplicates the mask value into the R and A
// channels of a 4-channel image.
type gpuConverter struct {
	opts     Options
	logger   golog.Logger
	ctx      *gpuContext
	pipeline *wgpu.ComputePipeline
}

// NewGPU returns the device converter, initializing the shared GPU context
// and compiling the kernel on first use.
func NewGPU(opts Options, logger golog.Logger) (Converter, error) {
	ctx, err := getGPUContext()
	if err != nil {
		return nil, status.Errorf(codes.Unavailable, "backend construction failed: %v", err)
	}
	module, err := ctx.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          "segmask_shader",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: maskShader},
	})
	if err != nil {
		return nil, status.Errorf(codes.Unavailable, "backend construction failed: %v", err)
	}
	pipeline, err := ctx.device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label:   "segmask_pipeline",
		Compute: wgpu.ProgrammableStageDescriptor{Module: module, EntryPoint: "main"},
	})
	if err != nil {
		return nil, status.Errorf(codes.Unavailable, "backend construction failed: %v", err)
	}
	logger.Debugw("gpu converter ready", "activation", opts.Activation.String(), "origin", opts.GPUOrigin.String())
	return &gpuConverter{opts: opts, logger: logger, ctx: ctx, pipeline: pipeline}, nil
}

func (g *gpuConverter) Convert(batch ml.TensorBatch, outputWidth, outputHeight int) (*mask.Mask, error) {
	if len(batch) == 0 {
		return nil, status.Error(codes.InvalidArgument, "empty tensor batch")
	}
	if outputWidth <= 0 || outputHeight <= 0 {
		return nil, status.Errorf(codes.InvalidArgument, "invalid output size %dx%d", outputWidth, outputHeight)
	}
	dims, err := ml.HWCFromShape(batch[0].Shape())
	if err != nil {
		return nil, err
	}
	data, err := batch[0].Float32Data()
	if err != nil {
		return nil, err
	}

	flipY := uint32(0)
	if g.opts.GPUOrigin == GPUOriginConventional {
		flipY = 1
	}
	params := []uint32{
		uint32(dims.Width),
		uint32(dims.Height),
		uint32(dims.Channels),
		uint32(g.opts.layerIndex(dims.Channels)),
		uint32(outputWidth),
		uint32(outputHeight),
		uint32(g.opts.Activation),
		flipY,
	}

	device := g.ctx.device
	paramBuf, err := device.CreateBufferInit(&wgpu.BufferInitDescriptor{
		Contents: wgpu.ToBytes(params),
		Usage:    wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create uniform buffer")
	}
	defer paramBuf.Destroy()

	inputBuf, err := device.CreateBufferInit(&wgpu.BufferInitDescriptor{
		Contents: wgpu.ToBytes(data),
		Usage:    wgpu.BufferUsageStorage | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to upload tensor")
	}
	defer inputBuf.Destroy()

	outCount := outputWidth * outputHeight * 4
	outBytes := uint64(outCount * 4)
	outputBuf, err := device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "segmask_out",
		Size:  outBytes,
		Usage: wgpu.BufferUsageStorage | wgpu.BufferUsageCopySrc,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create output buffer")
	}
	defer outputBuf.Destroy()

	stagingBuf, err := device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "segmask_staging",
		Size:  outBytes,
		Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create staging buffer")
	}
	defer stagingBuf.Destroy()

	bindGroup, err := device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  "segmask_bind",
		Layout: g.pipeline.GetBindGroupLayout(0),
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, Buffer: paramBuf, Size: paramBuf.GetSize()},
			{Binding: 1, Buffer: inputBuf, Size: inputBuf.GetSize()},
			{Binding: 2, Buffer: outputBuf, Size: outputBuf.GetSize()},
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create bind group")
	}

	encoder, err := device.CreateCommandEncoder(nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create command encoder")
	}
	pass := encoder.BeginComputePass(nil)
	pass.SetPipeline(g.pipeline)
	pass.SetBindGroup(0, bindGroup, nil)
	groupsX := (outputWidth + workgroupSize - 1) / workgroupSize
	groupsY := (outputHeight + workgroupSize - 1) / workgroupSize
	pass.DispatchWorkgroups(uint32(groupsX), uint32(groupsY), 1)
	pass.End()
	encoder.CopyBufferToBuffer(outputBuf, 0, stagingBuf, 0, outBytes)
	cmd, err := encoder.Finish(nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to finish command encoding")
	}
	g.ctx.queue.Submit(cmd)

	result, err := g.readBack(stagingBuf, outCount, outBytes)
	if err != nil {
		return nil, err
	}
	return mask.FromData(result, outputWidth, outputHeight, 4)
}

func (g *gpuConverter) readBack(stagingBuf *wgpu.Buffer, count int, sizeBytes uint64) ([]float32, error) {
	done := make(chan struct{})
	var mapErr error
	err := stagingBuf.MapAsync(wgpu.MapModeRead, 0, sizeBytes, func(s wgpu.BufferMapAsyncStatus) {
		if s != wgpu.BufferMapAsyncStatusSuccess {
			mapErr = errors.Errorf("buffer map failed: %v", s)
		}
		close(done)
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to map staging buffer")
	}

	timeout := time.After(readBackTimeout)
poll:
	for {
		g.ctx.device.Poll(false, nil)
		select {
		case <-done:
			break poll
		case <-timeout:
			return nil, errors.New("timed out reading mask back from GPU")
		default:
			time.Sleep(time.Millisecond)
		}
	}
	if mapErr != nil {
		return nil, mapErr
	}

	raw := stagingBuf.GetMappedRange(0, uint(sizeBytes))
	if raw == nil {
		return nil, errors.New("failed to get mapped range")
	}
	result := make([]float32, count)
	copy(result, wgpu.FromBytes[float32](raw))
	stagingBuf.Unmap()
	return result, nil
}

func (g *gpuConverter) Close() error {
	// the GPU context is shared process-wide and outlives any one converter
	return nil
}

// maskShader samples the activation tensor bilinearly at the output
// resolution, applies the activation per source pixel, and writes the mask
// value into the R and A channels of the RGBA output.
const maskShader = `
struct Params {
    in_width: u32,
    in_height: u32,
    channels: u32,
    layer: u32,
    out_width: u32,
    out_height: u32,
    activation: u32,
    flip_y: u32,
}

@group(0) @binding(0) var<uniform> params: Params;
@group(0) @binding(1) var<storage, read> input: array<f32>;
@group(0) @binding(2) var<storage, read_write> output: array<f32>;

fn mask_at(px: u32, py: u32) -> f32 {
    let base = (py * params.in_width + px) * params.channels;
    switch params.activation {
        case 1u: {
            return 1.0 / (1.0 + exp(-input[base + params.layer]));
        }
        case 2u: {
            let a = input[base];
            let b = input[base + 1u];
            let m = max(a, b);
            let ea = exp(a - m);
            let eb = exp(b - m);
            var fg = eb;
            if (params.layer == 0u) {
                fg = ea;
            }
            return fg / (ea + eb);
        }
        default: {
            return clamp(input[base + params.layer], 0.0, 1.0);
        }
    }
}

@compute @workgroup_size(8, 8)
fn main(@builtin(global_invocation_id) gid: vec3<u32>) {
    if (gid.x >= params.out_width || gid.y >= params.out_height) {
        return;
    }
    let scale_x = f32(params.in_width) / f32(params.out_width);
    let scale_y = f32(params.in_height) / f32(params.out_height);
    let fx = (f32(gid.x) + 0.5) * scale_x - 0.5;
    let fy = (f32(gid.y) + 0.5) * scale_y - 0.5;
    let max_x = f32(params.in_width - 1u);
    let max_y = f32(params.in_height - 1u);
    let cx = clamp(fx, 0.0, max_x);
    let cy = clamp(fy, 0.0, max_y);
    let x0 = u32(floor(cx));
    let y0 = u32(floor(cy));
    let x1 = min(x0 + 1u, params.in_width - 1u);
    let y1 = min(y0 + 1u, params.in_height - 1u);
    let tx = cx - f32(x0);
    let ty = cy - f32(y0);
    let top = mix(mask_at(x0, y0), mask_at(x1, y0), tx);
    let bottom = mix(mask_at(x0, y1), mask_at(x1, y1), tx);
    let v = clamp(mix(top, bottom, ty), 0.0, 1.0);
    var row = gid.y;
    if (params.flip_y == 1u) {
        row = params.out_height - 1u - gid.y;
    }
    let o = (row * params.out_width + gid.x) * 4u;
    output[o] = v;
    output[o + 1u] = 0.0;
    output[o + 2u] = 0.0;
    output[o + 3u] = v;
}
`
