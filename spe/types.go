package spe

import "fmt"

// FileVersion distinguishes the two on-disk SPE revisions.
type FileVersion int

const (
	VersionUnknown FileVersion = iota
	// VersionLegacy covers 2.x files whose metadata lives entirely in the
	// fixed binary header.
	VersionLegacy
	// VersionModern covers 3.0 files that carry an XML footer with the
	// authoritative descriptive metadata.
	VersionModern
)

func (v FileVersion) String() string {
	switch v {
	case VersionLegacy:
		return "legacy-2.x"
	case VersionModern:
		return "modern-3.0"
	default:
		return "unknown"
	}
}

// PixelType is the numeric element type of stored pixel data, using the
// datatype codes from the binary header.
type PixelType int16

const (
	PixelFloat32 PixelType = 0
	PixelInt32   PixelType = 1
	PixelInt16   PixelType = 2
	PixelUint16  PixelType = 3
	PixelFloat64 PixelType = 5
	PixelUint8   PixelType = 6
	PixelUint32  PixelType = 8
)

// Width returns the element size in bytes, or 0 for an unrecognized code.
func (p PixelType) Width() int {
	switch p {
	case PixelUint8:
		return 1
	case PixelInt16, PixelUint16:
		return 2
	case PixelFloat32, PixelInt32, PixelUint32:
		return 4
	case PixelFloat64:
		return 8
	default:
		return 0
	}
}

func (p PixelType) String() string {
	switch p {
	case PixelFloat32:
		return "float32"
	case PixelInt32:
		return "int32"
	case PixelInt16:
		return "int16"
	case PixelUint16:
		return "uint16"
	case PixelFloat64:
		return "float64"
	case PixelUint8:
		return "uint8"
	case PixelUint32:
		return "uint32"
	default:
		return fmt.Sprintf("datatype(%d)", int16(p))
	}
}

// PixelTypeFromFormat maps a footer pixelFormat attribute onto the header
// datatype codes.
func PixelTypeFromFormat(s string) (PixelType, error) {
	switch s {
	case "MonochromeUnsigned16":
		return PixelUint16, nil
	case "MonochromeUnsigned32":
		return PixelUint32, nil
	case "MonochromeFloating32":
		return PixelFloat32, nil
	}
	return 0, fmt.Errorf("%w: pixel format %q", ErrBadPixelType, s)
}

// RawROI is one entry of the header ROI table. Start coordinates are
// one-based sensor pixels; Group* are the hardware binning factors.
type RawROI struct {
	StartX, EndX, GroupX uint16
	StartY, EndY, GroupY uint16
}

// ResolvedROI is the pixel geometry and byte placement of one region within
// a frame block.
type ResolvedROI struct {
	Name    string
	Width   int // post-binning pixels
	Height  int
	OriginX int // zero-based un-binned sensor pixel
	OriginY int
	XBin    int
	YBin    int
	// ByteSize is Width*Height*elementWidth; FrameOffset is the byte offset
	// of this region inside every frame block, assigned in declaration
	// order.
	ByteSize    int
	FrameOffset int
}

// LegacyCalibration is the polynomial wavelength calibration stored in the
// 2.x header.
type LegacyCalibration struct {
	Order  int
	Coeffs []float64
}

// HeaderFields is the version-tagged result of decoding the fixed header
// region. It is computed once per open and never mutated afterwards.
type HeaderFields struct {
	Version      FileVersion
	HeaderVer    float32
	FrameCount   int
	XDim         int // stored (post-binning) frame width
	YDim         int
	SensorWidth  int // full sensor dimensions, 0 when the file leaves them unset
	SensorHeight int
	Pixel        PixelType
	Orientation  uint16
	ROIs         []RawROI
	FooterOffset int64              // modern only
	LegacyCalib  *LegacyCalibration // legacy only, nil when absent

	ControllerVersion int16
	Date              string
	TimeLocal         string
	TimeUTC           string
}

// FieldType enumerates the numeric types a per-frame tracking field may
// carry.
type FieldType int

const (
	FieldInt64 FieldType = iota
	FieldInt32
	FieldInt16
	FieldUint64
	FieldUint32
	FieldUint16
	FieldFloat32
	FieldFloat64
)

func (t FieldType) Width() int {
	switch t {
	case FieldInt16, FieldUint16:
		return 2
	case FieldInt32, FieldUint32, FieldFloat32:
		return 4
	default:
		return 8
	}
}

func (t FieldType) String() string {
	switch t {
	case FieldInt64:
		return "Int64"
	case FieldInt32:
		return "Int32"
	case FieldInt16:
		return "Int16"
	case FieldUint64:
		return "UInt64"
	case FieldUint32:
		return "UInt32"
	case FieldUint16:
		return "UInt16"
	case FieldFloat32:
		return "Float32"
	case FieldFloat64:
		return "Float64"
	default:
		return fmt.Sprintf("FieldType(%d)", int(t))
	}
}

// ParseFieldType resolves a footer type attribute. The boolean reports
// whether the name was recognized.
func ParseFieldType(s string) (FieldType, bool) {
	switch s {
	case "Int64":
		return FieldInt64, true
	case "Int32":
		return FieldInt32, true
	case "Int16":
		return FieldInt16, true
	case "UInt64", "Uint64":
		return FieldUint64, true
	case "UInt32", "Uint32":
		return FieldUint32, true
	case "UInt16", "Uint16":
		return FieldUint16, true
	case "Float32", "Single":
		return FieldFloat32, true
	case "Float64", "Double":
		return FieldFloat64, true
	}
	return 0, false
}

// TrackField describes one named value inside the per-frame tracking block.
// Offset and Size are scoped to the block, not the frame.
type TrackField struct {
	Name       string
	Offset     int
	Size       int
	Type       FieldType
	Resolution float64 // raw values are divided by this; 1 when unset
}
