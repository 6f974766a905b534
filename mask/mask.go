// Package mask defines the image produced by the segmentation converters: a
// float-valued pixel plane in [0,1] with a single channel on the CPU path
// and four channels (mask duplicated into R and A) on the GPU path.
package mask

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
)

// Mask is a float32 pixel plane. It implements image.Image so masks can be
// handed straight to encoders and resizers that speak the standard image
// interfaces, at 8-bit precision; FloatAt is the lossless accessor.
type Mask struct {
	data          []float32
	width, height int
	channels      int
}

// New returns a zero-valued mask. Channels must be 1 or 4.
func New(width, height, channels int) (*Mask, error) {
	return FromData(make([]float32, width*height*channels), width, height, channels)
}

// FromData wraps an interleaved float32 plane as a mask. The slice is
// adopted, not copied.
func FromData(data []float32, width, height, channels int) (*Mask, error) {
	if channels != 1 && channels != 4 {
		return nil, errors.Errorf("mask must have 1 or 4 channels, got %d", channels)
	}
	if width <= 0 || height <= 0 {
		return nil, errors.Errorf("invalid mask dimensions %dx%d", width, height)
	}
	if len(data) != width*height*channels {
		return nil, errors.Errorf("mask data has %d values, want %d", len(data), width*height*channels)
	}
	return &Mask{data: data, width: width, height: height, channels: channels}, nil
}

// Width returns the mask width in pixels.
func (m *Mask) Width() int {
	return m.width
}

// Height returns the mask height in pixels.
func (m *Mask) Height() int {
	return m.height
}

// Channels returns the number of channels per pixel.
func (m *Mask) Channels() int {
	return m.channels
}

func (m *Mask) k(x, y, c int) int {
	return (y*m.width+x)*m.channels + c
}

// FloatAt returns the value of channel c at (x, y).
func (m *Mask) FloatAt(x, y, c int) float32 {
	return m.data[m.k(x, y, c)]
}

// SetFloat sets channel c at (x, y).
func (m *Mask) SetFloat(x, y, c int, v float32) {
	m.data[m.k(x, y, c)] = v
}

// Bounds implements image.Image.
func (m *Mask) Bounds() image.Rectangle {
	return image.Rect(0, 0, m.width, m.height)
}

// ColorModel implements image.Image.
func (m *Mask) ColorModel() color.Model {
	if m.channels == 1 {
		return color.Gray16Model
	}
	return color.NRGBA64Model
}

// At implements image.Image, quantizing the float values to 16 bits.
func (m *Mask) At(x, y int) color.Color {
	if m.channels == 1 {
		return color.Gray16{Y: quantize16(m.FloatAt(x, y, 0))}
	}
	return color.NRGBA64{
		R: quantize16(m.FloatAt(x, y, 0)),
		G: quantize16(m.FloatAt(x, y, 1)),
		B: quantize16(m.FloatAt(x, y, 2)),
		A: quantize16(m.FloatAt(x, y, 3)),
	}
}

// ToNRGBA renders the mask as an 8-bit image. Single-channel masks come out
// as opaque grayscale.
func (m *Mask) ToNRGBA() *image.NRGBA {
	out := image.NewNRGBA(m.Bounds())
	for y := 0; y < m.height; y++ {
		for x := 0; x < m.width; x++ {
			if m.channels == 1 {
				v := quantize8(m.FloatAt(x, y, 0))
				out.SetNRGBA(x, y, color.NRGBA{R: v, G: v, B: v, A: 0xff})
				continue
			}
			out.SetNRGBA(x, y, color.NRGBA{
				R: quantize8(m.FloatAt(x, y, 0)),
				G: quantize8(m.FloatAt(x, y, 1)),
				B: quantize8(m.FloatAt(x, y, 2)),
				A: quantize8(m.FloatAt(x, y, 3)),
			})
		}
	}
	return out
}

// WriteTo saves the mask as an 8-bit image file; the format is inferred from
// the extension.
func (m *Mask) WriteTo(fn string) error {
	return imaging.Save(m.ToNRGBA(), fn)
}

func quantize8(v float32) uint8 {
	return uint8(clamp01(v)*255 + 0.5)
}

func quantize16(v float32) uint16 {
	return uint16(clamp01(v)*65535 + 0.5)
}

func clamp01(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
