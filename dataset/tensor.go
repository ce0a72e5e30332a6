// Package dataset assembles decoded frame bytes and unified metadata into
// labeled multi-dimensional arrays with physical coordinates.
package dataset

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"example.com/spedec/spe"
)

// ErrShape reports raw data whose length disagrees with the declared
// geometry.
var ErrShape = errors.New("tensor shape mismatch")

// Tensor is one region's pixel data across all frames, stored row-major as
// (frame, row, column) in the file's little-endian element encoding.
type Tensor struct {
	Pixel  spe.PixelType
	Frames int
	Height int
	Width  int
	Raw    []byte
}

func newTensor(pixel spe.PixelType, frames, height, width int, raw []byte) (Tensor, error) {
	t := Tensor{Pixel: pixel, Frames: frames, Height: height, Width: width, Raw: raw}
	want := frames * height * width * pixel.Width()
	if len(raw) != want {
		return Tensor{}, fmt.Errorf("%w: %d raw bytes for %dx%dx%d %s",
			ErrShape, len(raw), frames, height, width, pixel)
	}
	return t, nil
}

// At returns the pixel at (frame, row, col) widened to float64.
func (t *Tensor) At(frame, row, col int) float64 {
	i := ((frame*t.Height+row)*t.Width + col) * t.Pixel.Width()
	return decodePixel(t.Pixel, t.Raw[i:])
}

// Float64s converts the whole tensor, in storage order.
func (t *Tensor) Float64s() []float64 {
	w := t.Pixel.Width()
	out := make([]float64, len(t.Raw)/w)
	for i := range out {
		out[i] = decodePixel(t.Pixel, t.Raw[i*w:])
	}
	return out
}

// FrameSlice returns the raw bytes of one frame without copying.
func (t *Tensor) FrameSlice(frame int) []byte {
	n := t.Height * t.Width * t.Pixel.Width()
	return t.Raw[frame*n : (frame+1)*n]
}

func decodePixel(p spe.PixelType, b []byte) float64 {
	switch p {
	case spe.PixelUint8:
		return float64(b[0])
	case spe.PixelInt16:
		return float64(int16(binary.LittleEndian.Uint16(b)))
	case spe.PixelUint16:
		return float64(binary.LittleEndian.Uint16(b))
	case spe.PixelInt32:
		return float64(int32(binary.LittleEndian.Uint32(b)))
	case spe.PixelUint32:
		return float64(binary.LittleEndian.Uint32(b))
	case spe.PixelFloat32:
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(b)))
	case spe.PixelFloat64:
		return math.Float64frombits(binary.LittleEndian.Uint64(b))
	default:
		return math.NaN()
	}
}
