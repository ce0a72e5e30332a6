package spe_test

import (
	"encoding/binary"
	"errors"
	"testing"

	"example.com/spedec/internal/samples"
	"example.com/spedec/spe"
)

func TestParseHeaderLegacy(t *testing.T) {
	cfg := samples.Config{
		HeaderVer:   2.5,
		Frames:      3,
		XDim:        16,
		YDim:        8,
		SensorW:     16,
		SensorH:     8,
		Datatype:    spe.PixelUint16,
		Orientation: 0x02,
		Date:        "14May2024",
		TimeLocal:   "100233",
		TimeUTC:     "080233",
		CalibValid:  true,
		CalibOrder:  2,
		CalibCoeffs: []float64{500, 0.1, 0.001},
	}
	h, err := spe.ParseHeader(cfg.Header(), true)
	if err != nil {
		t.Fatalf("ParseHeader: %v", err)
	}
	if h.Version != spe.VersionLegacy {
		t.Errorf("version = %v", h.Version)
	}
	if h.FrameCount != 3 || h.XDim != 16 || h.YDim != 8 {
		t.Errorf("geometry = %+v", h)
	}
	if h.Pixel != spe.PixelUint16 || h.Orientation != 0x02 {
		t.Errorf("pixel/orientation = %v/%#x", h.Pixel, h.Orientation)
	}
	if h.Date != "14May2024" || h.TimeLocal != "100233" || h.TimeUTC != "080233" {
		t.Errorf("timestamps = %q %q %q", h.Date, h.TimeLocal, h.TimeUTC)
	}
	if h.LegacyCalib == nil {
		t.Fatal("calibration missing")
	}
	if h.LegacyCalib.Order != 2 || h.LegacyCalib.Coeffs[0] != 500 {
		t.Errorf("calibration = %+v", h.LegacyCalib)
	}
	if len(h.ROIs) != 1 {
		t.Fatalf("rois = %d", len(h.ROIs))
	}
	if h.ROIs[0] != (spe.RawROI{StartX: 1, EndX: 16, GroupX: 1, StartY: 1, EndY: 8, GroupY: 1}) {
		t.Errorf("roi = %+v", h.ROIs[0])
	}
}

func TestParseHeaderLegacyNoCalibration(t *testing.T) {
	cfg := samples.Config{HeaderVer: 2.5, XDim: 4, YDim: 4, Datatype: spe.PixelUint16}
	h, err := spe.ParseHeader(cfg.Header(), true)
	if err != nil {
		t.Fatalf("ParseHeader: %v", err)
	}
	if h.LegacyCalib != nil {
		t.Errorf("calibration = %+v, want nil", h.LegacyCalib)
	}
}

func TestParseHeaderModern(t *testing.T) {
	cfg := samples.Config{
		HeaderVer: 3.0,
		Frames:    2,
		XDim:      4,
		YDim:      3,
		Datatype:  spe.PixelUint16,
		FooterXML: "<SpeFormat/>",
	}
	h, err := spe.ParseHeader(cfg.Header(), true)
	if err != nil {
		t.Fatalf("ParseHeader: %v", err)
	}
	if h.Version != spe.VersionModern {
		t.Errorf("version = %v", h.Version)
	}
	wantOff := int64(spe.HeaderSize + 2*4*3*2)
	if h.FooterOffset != wantOff {
		t.Errorf("footer offset = %d, want %d", h.FooterOffset, wantOff)
	}
	if h.LegacyCalib != nil {
		t.Error("modern header decoded a legacy calibration")
	}
}

func TestParseHeaderMagic(t *testing.T) {
	cfg := samples.Config{HeaderVer: 2.5, XDim: 4, YDim: 4, Datatype: spe.PixelUint16, NoMagic: true}
	buf := cfg.Header()
	if _, err := spe.ParseHeader(buf, true); !errors.Is(err, spe.ErrBadMagic) {
		t.Fatalf("strict err = %v, want ErrBadMagic", err)
	}
	if _, err := spe.ParseHeader(buf, false); err != nil {
		t.Fatalf("lenient err = %v", err)
	}
}

func TestParseHeaderErrors(t *testing.T) {
	valid := samples.Config{HeaderVer: 3.0, XDim: 4, YDim: 4, Datatype: spe.PixelUint16, FooterXML: "<SpeFormat/>"}
	cases := []struct {
		name   string
		mutate func(buf []byte)
		want   error
	}{
		{"short buffer", func(buf []byte) {}, spe.ErrTruncated},
		{"unknown version", func(buf []byte) {
			binary.LittleEndian.PutUint32(buf[1992:], 0x3F800000) // 1.0
		}, spe.ErrUnknownVersion},
		{"zero xdim", func(buf []byte) { binary.LittleEndian.PutUint16(buf[42:], 0) }, spe.ErrBadDimensions},
		{"negative frames", func(buf []byte) { binary.LittleEndian.PutUint32(buf[1446:], 0xFFFFFFFF) }, spe.ErrBadDimensions},
		{"bad datatype", func(buf []byte) { binary.LittleEndian.PutUint16(buf[108:], 7) }, spe.ErrBadPixelType},
		{"zero rois", func(buf []byte) { binary.LittleEndian.PutUint16(buf[1510:], 0) }, spe.ErrBadROITable},
		{"too many rois", func(buf []byte) { binary.LittleEndian.PutUint16(buf[1510:], 11) }, spe.ErrBadROITable},
		{"footer inside header", func(buf []byte) { binary.LittleEndian.PutUint64(buf[678:], 100) }, spe.ErrBadFooterOffset},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			buf := valid.Header()
			if tc.name == "short buffer" {
				buf = buf[:100]
			} else {
				tc.mutate(buf)
			}
			if _, err := spe.ParseHeader(buf, true); !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestPixelTypeFromFormat(t *testing.T) {
	cases := []struct {
		in   string
		want spe.PixelType
	}{
		{"MonochromeUnsigned16", spe.PixelUint16},
		{"MonochromeUnsigned32", spe.PixelUint32},
		{"MonochromeFloating32", spe.PixelFloat32},
	}
	for _, tc := range cases {
		got, err := spe.PixelTypeFromFormat(tc.in)
		if err != nil {
			t.Errorf("%s: %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("%s = %v, want %v", tc.in, got, tc.want)
		}
	}
	if _, err := spe.PixelTypeFromFormat("Bayer16"); !errors.Is(err, spe.ErrBadPixelType) {
		t.Errorf("unknown format err = %v", err)
	}
}
