// Package footer parses the trailing XML metadata document of modern-format
// files. Each recognized top-level section maps to an explicit present/absent
// value on Document; sections this schema revision does not know are recorded
// and skipped, never rejected.
package footer

import (
	"errors"

	"example.com/spedec/spe"
)

// ErrMalformed reports a document that violates basic XML well-formedness.
// It is the only fatal condition the parser produces.
var ErrMalformed = errors.New("xml footer is not well-formed")

// Document is the parsed footer. Nil subtree pointers mean "section not
// present", which is valid for every section.
type Document struct {
	Version string

	General map[string]string
	Frame   *FrameFormat
	Meta    *MetaBlock
	Calib   *Calibrations

	// Unknown lists top-level section names that were skipped for forward
	// compatibility; Warnings records recognized-but-unsupported details.
	Unknown  []string
	Warnings []string
}

// FrameFormat mirrors the DataFormat frame block: the producer's view of
// the binary frame region. The binary header stays authoritative for byte
// layout; these values are used for cross-checking and naming.
type FrameFormat struct {
	Count       int
	PixelFormat string
	Size        int64
	Stride      int
	Regions     []Region
}

// Region is one ROI descriptor nested in the frame block.
type Region struct {
	Width  int
	Height int
	Size   int
	Stride int
}

// MetaBlock is the per-frame tracking block layout. Field byte offsets
// accumulate in document order.
type MetaBlock struct {
	Fields    []spe.TrackField
	BlockSize int
}

// Calibrations groups the calibration subtree.
type Calibrations struct {
	Wavelength []Polynomial
	Sensor     *SensorInfo
	Mappings   []SensorMapping
}

// Polynomial is a wavelength calibration: value(px) = Σ Coeffs[i]·px^i.
// ROI is the region index it applies to, or -1 when shared by all regions.
type Polynomial struct {
	ROI         int
	Orientation string
	RefPixel    int
	Coeffs      []float64
}

// SensorInfo describes the full sensor and its mounting orientation.
type SensorInfo struct {
	Width       int
	Height      int
	Orientation string
}

// SensorMapping places one stored region on the un-binned sensor grid.
type SensorMapping struct {
	X, Y          int
	Width, Height int
	XBin, YBin    int
}
