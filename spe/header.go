package spe

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"
)

// HeaderSize is the fixed byte length of the header region shared by every
// file revision. Frame data starts immediately after it.
const HeaderSize = 4100

const maxROICount = 10 // capacity of the header ROI table

// Magic values the acquisition software writes into every header. Strict
// parsing rejects files where they do not match.
const (
	magicNoscan  = -1
	magicID      = 19088743
	magicTrailer = 21845
)

type fieldKind int

const (
	kindI8 fieldKind = iota
	kindI16
	kindU16
	kindI32
	kindU64
	kindF32
	kindF64
	kindText
)

// fieldSpec locates one logical field inside the header region.
type fieldSpec struct {
	offset int
	length int // kindText: byte count, kindF64: array length
	kind   fieldKind
}

// Header layouts are data, not code: one decoding engine serves both
// revisions, and the table selected by the version field decides which
// extra fields exist.
var commonFields = map[string]fieldSpec{
	"controller_version": {offset: 0, kind: kindI16},
	"sensor_width":       {offset: 6, kind: kindU16},
	"sensor_height":      {offset: 18, kind: kindU16},
	"date":               {offset: 20, length: 10, kind: kindText},
	"noscan":             {offset: 34, kind: kindI16},
	"xdim":               {offset: 42, kind: kindU16},
	"datatype":           {offset: 108, kind: kindI16},
	"time_local":         {offset: 172, length: 7, kind: kindText},
	"time_utc":           {offset: 179, length: 7, kind: kindText},
	"orientation":        {offset: 600, kind: kindU16},
	"ydim":               {offset: 656, kind: kindU16},
	"lnoscan":            {offset: 664, kind: kindI32},
	"frame_count":        {offset: 1446, kind: kindI32},
	"roi_count":          {offset: 1510, kind: kindI16},
	"header_ver":         {offset: 1992, kind: kindF32},
	"magic_id":           {offset: 2996, kind: kindI32},
	"trailer":            {offset: 4098, kind: kindI16},
}

var versionFields = map[FileVersion]map[string]fieldSpec{
	VersionLegacy: {
		"calib_valid": {offset: 3098, kind: kindI8},
		"calib_order": {offset: 3101, kind: kindI8},
		"calib_coeff": {offset: 3263, length: 6, kind: kindF64},
	},
	VersionModern: {
		"footer_offset": {offset: 678, kind: kindU64},
	},
}

const (
	offROITable  = 1512
	roiEntrySize = 12
)

type headerBytes []byte

func (h headerBytes) spec(version FileVersion, name string) fieldSpec {
	if s, ok := versionFields[version][name]; ok {
		return s
	}
	return commonFields[name]
}

func (h headerBytes) int(version FileVersion, name string) int64 {
	s := h.spec(version, name)
	switch s.kind {
	case kindI8:
		return int64(int8(h[s.offset]))
	case kindI16:
		return int64(int16(binary.LittleEndian.Uint16(h[s.offset:])))
	case kindU16:
		return int64(binary.LittleEndian.Uint16(h[s.offset:]))
	case kindI32:
		return int64(int32(binary.LittleEndian.Uint32(h[s.offset:])))
	case kindU64:
		return int64(binary.LittleEndian.Uint64(h[s.offset:]))
	default:
		return 0
	}
}

func (h headerBytes) float(version FileVersion, name string) float64 {
	s := h.spec(version, name)
	switch s.kind {
	case kindF32:
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(h[s.offset:])))
	case kindF64:
		return math.Float64frombits(binary.LittleEndian.Uint64(h[s.offset:]))
	default:
		return 0
	}
}

func (h headerBytes) floats(version FileVersion, name string) []float64 {
	s := h.spec(version, name)
	out := make([]float64, s.length)
	for i := range out {
		out[i] = math.Float64frombits(binary.LittleEndian.Uint64(h[s.offset+8*i:]))
	}
	return out
}

func (h headerBytes) text(version FileVersion, name string) string {
	s := h.spec(version, name)
	raw := h[s.offset : s.offset+s.length]
	return strings.TrimRight(string(raw), "\x00 ")
}

func detectVersion(ver float32) FileVersion {
	switch {
	case ver >= 3.0:
		return VersionModern
	case ver >= 2.0:
		return VersionLegacy
	default:
		return VersionUnknown
	}
}

// ParseHeader decodes the fixed header region into version-tagged fields.
// With strict set, the three magic fields the acquisition software always
// writes are required to match.
func ParseHeader(buf []byte, strict bool) (HeaderFields, error) {
	var out HeaderFields
	if len(buf) < HeaderSize {
		return out, fmt.Errorf("header region is %d bytes: %w", len(buf), ErrTruncated)
	}
	h := headerBytes(buf[:HeaderSize])

	ver := float32(h.float(VersionUnknown, "header_ver"))
	version := detectVersion(ver)
	if version == VersionUnknown {
		return out, fmt.Errorf("header version %g: %w", ver, ErrUnknownVersion)
	}
	if strict {
		if got := h.int(version, "lnoscan"); got != magicNoscan {
			return out, fmt.Errorf("lnoscan field is %d: %w", got, ErrBadMagic)
		}
		if got := h.int(version, "magic_id"); got != magicID {
			return out, fmt.Errorf("id field is %d: %w", got, ErrBadMagic)
		}
		if got := h.int(version, "trailer"); got != magicTrailer {
			return out, fmt.Errorf("trailer field is %d: %w", got, ErrBadMagic)
		}
	}

	out.Version = version
	out.HeaderVer = ver
	out.ControllerVersion = int16(h.int(version, "controller_version"))
	out.XDim = int(h.int(version, "xdim"))
	out.YDim = int(h.int(version, "ydim"))
	out.SensorWidth = int(h.int(version, "sensor_width"))
	out.SensorHeight = int(h.int(version, "sensor_height"))
	out.Pixel = PixelType(h.int(version, "datatype"))
	out.Orientation = uint16(h.int(version, "orientation"))
	out.FrameCount = int(h.int(version, "frame_count"))
	out.Date = h.text(version, "date")
	out.TimeLocal = h.text(version, "time_local")
	out.TimeUTC = h.text(version, "time_utc")

	if out.XDim <= 0 || out.YDim <= 0 {
		return out, fmt.Errorf("frame dimensions %dx%d: %w", out.XDim, out.YDim, ErrBadDimensions)
	}
	if out.FrameCount < 0 {
		return out, fmt.Errorf("frame count %d: %w", out.FrameCount, ErrBadDimensions)
	}
	if out.Pixel.Width() == 0 {
		return out, fmt.Errorf("datatype code %d: %w", int16(out.Pixel), ErrBadPixelType)
	}

	roiCount := int(h.int(version, "roi_count"))
	if roiCount < 1 || roiCount > maxROICount {
		return out, fmt.Errorf("roi count %d: %w", roiCount, ErrBadROITable)
	}
	out.ROIs = make([]RawROI, roiCount)
	for i := range out.ROIs {
		entry := h[offROITable+i*roiEntrySize:]
		out.ROIs[i] = RawROI{
			StartX: binary.LittleEndian.Uint16(entry[0:2]),
			EndX:   binary.LittleEndian.Uint16(entry[2:4]),
			GroupX: binary.LittleEndian.Uint16(entry[4:6]),
			StartY: binary.LittleEndian.Uint16(entry[6:8]),
			EndY:   binary.LittleEndian.Uint16(entry[8:10]),
			GroupY: binary.LittleEndian.Uint16(entry[10:12]),
		}
	}

	switch version {
	case VersionLegacy:
		if h.int(version, "calib_valid") != 0 {
			out.LegacyCalib = &LegacyCalibration{
				Order:  int(h.int(version, "calib_order")),
				Coeffs: h.floats(version, "calib_coeff"),
			}
		}
	case VersionModern:
		out.FooterOffset = int64(h.int(version, "footer_offset"))
		if out.FooterOffset < HeaderSize {
			return out, fmt.Errorf("xml footer offset %d: %w", out.FooterOffset, ErrBadFooterOffset)
		}
	}
	return out, nil
}
