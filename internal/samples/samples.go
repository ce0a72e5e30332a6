// Package samples builds synthetic camera files for tests and the bundled
// example generator. The builder mirrors the on-disk layout the decoder
// expects: 4100-byte header, frame blocks, and for modern files a trailing
// XML footer.
package samples

import (
	"encoding/binary"
	"math"
	"os"

	"example.com/spedec/spe"
)

// Config describes one synthetic file. Zero values fall back to a minimal
// valid modern file with a single full-frame region.
type Config struct {
	HeaderVer    float32
	Frames       int
	XDim, YDim   int
	SensorW      int
	SensorH      int
	Datatype     spe.PixelType
	Orientation  uint16
	ROIs         []spe.RawROI
	Date         string
	TimeLocal    string
	TimeUTC      string
	NoMagic      bool

	// Legacy calibration block.
	CalibValid  bool
	CalibOrder  int
	CalibCoeffs []float64

	// Modern footer, appended after the frame region. The header footer
	// offset is computed from the frame layout.
	FooterXML string

	// TrackBlock reserves extra bytes per frame after the region data.
	TrackBlock int

	// FrameData supplies explicit frame blocks (stride bytes each). When
	// nil, frames are filled with a deterministic byte pattern.
	FrameData [][]byte
}

func (c *Config) normalize() {
	if c.HeaderVer == 0 {
		if c.FooterXML != "" {
			c.HeaderVer = 3.0
		} else {
			c.HeaderVer = 2.5
		}
	}
	if c.XDim == 0 {
		c.XDim = 4
	}
	if c.YDim == 0 {
		c.YDim = 3
	}
	if c.Frames == 0 {
		c.Frames = 1
	}
	if len(c.ROIs) == 0 {
		c.ROIs = []spe.RawROI{{
			StartX: 1, EndX: uint16(c.XDim), GroupX: 1,
			StartY: 1, EndY: uint16(c.YDim), GroupY: 1,
		}}
	}
}

// ROIBytes sums the stored byte size of every region for one frame.
func (c *Config) ROIBytes() int {
	elem := c.Datatype.Width()
	total := 0
	for _, r := range c.ROIs {
		w := int(r.EndX-r.StartX+1) / max(int(r.GroupX), 1)
		h := int(r.EndY-r.StartY+1) / max(int(r.GroupY), 1)
		total += w * h * elem
	}
	return total
}

// Stride is the byte distance between consecutive frame blocks.
func (c *Config) Stride() int { return c.ROIBytes() + c.TrackBlock }

// Header renders the 4100-byte header region.
func (c *Config) Header() []byte {
	c.normalize()
	h := make([]byte, spe.HeaderSize)

	putU16(h, 6, uint16(c.SensorW))
	putU16(h, 18, uint16(c.SensorH))
	putText(h, 20, 10, c.Date)
	putU16(h, 42, uint16(c.XDim))
	putI16(h, 108, int16(c.Datatype))
	putText(h, 172, 7, c.TimeLocal)
	putText(h, 179, 7, c.TimeUTC)
	putU16(h, 600, c.Orientation)
	putU16(h, 656, uint16(c.YDim))
	putI32(h, 1446, int32(c.Frames))
	putI16(h, 1510, int16(len(c.ROIs)))
	putF32(h, 1992, c.HeaderVer)

	if !c.NoMagic {
		putI32(h, 664, -1)
		putI32(h, 2996, 19088743)
		putI16(h, 4098, 21845)
	}

	for i, r := range c.ROIs {
		off := 1512 + i*12
		putU16(h, off, r.StartX)
		putU16(h, off+2, r.EndX)
		putU16(h, off+4, r.GroupX)
		putU16(h, off+6, r.StartY)
		putU16(h, off+8, r.EndY)
		putU16(h, off+10, r.GroupY)
	}

	if c.HeaderVer >= 3.0 {
		footerOff := spe.HeaderSize + c.Frames*c.Stride()
		binary.LittleEndian.PutUint64(h[678:], uint64(footerOff))
	} else if c.CalibValid {
		h[3098] = 1
		h[3101] = byte(int8(c.CalibOrder))
		for i, v := range c.CalibCoeffs {
			if i >= 6 {
				break
			}
			binary.LittleEndian.PutUint64(h[3263+8*i:], math.Float64bits(v))
		}
	}
	return h
}

// Bytes renders the complete file.
func (c *Config) Bytes() []byte {
	out := c.Header()
	stride := c.Stride()
	for i := 0; i < c.Frames; i++ {
		if i < len(c.FrameData) {
			block := c.FrameData[i]
			out = append(out, block...)
			if pad := stride - len(block); pad > 0 {
				out = append(out, make([]byte, pad)...)
			}
			continue
		}
		out = append(out, frameFill(i, stride)...)
	}
	if c.HeaderVer >= 3.0 {
		out = append(out, []byte(c.FooterXML)...)
	}
	return out
}

// WriteFile renders the file to path.
func (c *Config) WriteFile(path string) error {
	return os.WriteFile(path, c.Bytes(), 0o644)
}

// frameFill produces the deterministic pattern used when no explicit frame
// payload is configured.
func frameFill(frame, n int) []byte {
	out := make([]byte, n)
	for j := range out {
		out[j] = byte((frame*31 + j) % 251)
	}
	return out
}

func putU16(b []byte, off int, v uint16)  { binary.LittleEndian.PutUint16(b[off:], v) }
func putI16(b []byte, off int, v int16)   { binary.LittleEndian.PutUint16(b[off:], uint16(v)) }
func putI32(b []byte, off int, v int32)   { binary.LittleEndian.PutUint32(b[off:], uint32(v)) }
func putF32(b []byte, off int, v float32) { binary.LittleEndian.PutUint32(b[off:], math.Float32bits(v)) }

func putText(b []byte, off, n int, s string) {
	copy(b[off:off+n], s)
}
