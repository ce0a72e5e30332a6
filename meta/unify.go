package meta

import (
	"errors"

	"example.com/spedec/footer"
	"example.com/spedec/orient"
	"example.com/spedec/spe"
)

// Calibration is a wavelength polynomial attached to a region. ROI is -1
// when the polynomial is shared by all regions.
type Calibration struct {
	ROI         int
	Orientation orient.Flags
	RefPixel    int
	Coeffs      []float64
}

// Metadata is the version-independent description of a file, assembled
// from the binary header and (for modern files) the XML footer.
type Metadata struct {
	Version       spe.FileVersion
	HeaderVersion float32
	FrameCount    int
	Pixel         spe.PixelType

	SensorWidth       int
	SensorHeight      int
	SensorOrientation orient.Flags

	ROIs           []spe.ResolvedROI
	FrameStride    int // bytes per frame block including tracking
	TrackBlockSize int
	TrackFields    []spe.TrackField

	Calibrations []Calibration
	Mappings     []footer.SensorMapping

	General map[string]string

	// Warnings carries parser-level notes (skipped footer sections and
	// fields); schema findings live in the Report instead.
	Warnings []string
}

// CalibrationFor returns the polynomial for region index i, falling back to
// a shared polynomial when no region-specific one exists.
func (m *Metadata) CalibrationFor(i int) *Calibration {
	var shared *Calibration
	for j := range m.Calibrations {
		c := &m.Calibrations[j]
		if c.ROI == i {
			return c
		}
		if c.ROI == -1 && shared == nil {
			shared = c
		}
	}
	return shared
}

// Legacy orientation bits of the header geometric field.
const (
	geomRotate = 0x01
	geomFlipH  = 0x02
	geomFlipV  = 0x04
)

func legacyOrientation(geometric uint16) orient.Flags {
	return orient.Flags{
		FlipH:  geometric&geomFlipH != 0,
		FlipV:  geometric&geomFlipV != 0,
		Rotate: geometric&geomRotate != 0,
	}
}

// Unify merges header and footer metadata for one file, validating the
// footer against the header. doc is nil for legacy files. Schema problems
// become Report violations; the returned error is reserved for impossible
// inputs.
func Unify(file string, h *spe.HeaderFields, rois []spe.ResolvedROI, roiBytes int, doc *footer.Document) (*Metadata, *Report, error) {
	if h == nil {
		return nil, nil, errors.New("nil header")
	}
	rep := &Report{File: file}
	m := &Metadata{
		Version:       h.Version,
		HeaderVersion: h.HeaderVer,
		FrameCount:    h.FrameCount,
		Pixel:         h.Pixel,
		SensorWidth:   h.SensorWidth,
		SensorHeight:  h.SensorHeight,
		ROIs:          rois,
		FrameStride:   roiBytes,
		General:       make(map[string]string),
	}
	if h.Date != "" {
		m.General["date"] = h.Date
	}
	if h.TimeLocal != "" {
		m.General["time_local"] = h.TimeLocal
	}
	if h.TimeUTC != "" {
		m.General["time_utc"] = h.TimeUTC
	}

	if doc == nil {
		unifyLegacy(m, h, rep)
	} else {
		unifyModern(m, h, doc, rep)
	}
	m.FrameStride = roiBytes + m.TrackBlockSize
	return m, rep, nil
}

func unifyLegacy(m *Metadata, h *spe.HeaderFields, rep *Report) {
	m.SensorOrientation = legacyOrientation(h.Orientation)
	if h.LegacyCalib == nil {
		return
	}
	if len(h.LegacyCalib.Coeffs) == 0 {
		rep.add(WARN, "legacy-calib-empty", "Calibrations",
			"calibration marked valid but has no coefficients")
		return
	}
	m.Calibrations = []Calibration{{
		ROI:    -1,
		Coeffs: h.LegacyCalib.Coeffs,
	}}
}

func unifyModern(m *Metadata, h *spe.HeaderFields, doc *footer.Document, rep *Report) {
	for k, v := range doc.General {
		m.General[k] = v
	}
	m.Warnings = append(m.Warnings, doc.Warnings...)
	for _, s := range doc.Unknown {
		rep.add(INFO, "footer-unknown-section", s, "unrecognized footer section skipped")
	}

	unifyFrameFormat(m, h, doc.Frame, rep)

	if doc.Meta != nil {
		unifyTrackFields(m, doc.Meta, rep)
	}

	if doc.Calib == nil {
		return
	}
	if s := doc.Calib.Sensor; s != nil {
		m.SensorOrientation = orient.Parse(s.Orientation)
		if m.SensorWidth != 0 && s.Width != 0 && s.Width != m.SensorWidth {
			rep.add(WARN, "sensor-width-mismatch", "Calibrations",
				"footer sensor width %d, header %d", s.Width, m.SensorWidth)
		}
		if m.SensorHeight != 0 && s.Height != 0 && s.Height != m.SensorHeight {
			rep.add(WARN, "sensor-height-mismatch", "Calibrations",
				"footer sensor height %d, header %d", s.Height, m.SensorHeight)
		}
	}
	for _, p := range doc.Calib.Wavelength {
		if len(p.Coeffs) == 0 {
			rep.add(WARN, "calib-empty", "Calibrations",
				"wavelength polynomial for roi %d has no coefficients", p.ROI)
			continue
		}
		if p.ROI >= len(m.ROIs) {
			rep.add(WARN, "calib-roi-range", "Calibrations",
				"wavelength polynomial targets roi %d of %d", p.ROI, len(m.ROIs))
			continue
		}
		m.Calibrations = append(m.Calibrations, Calibration{
			ROI:         p.ROI,
			Orientation: orient.Parse(p.Orientation),
			RefPixel:    p.RefPixel,
			Coeffs:      p.Coeffs,
		})
	}
	if n := len(doc.Calib.Mappings); n > 0 {
		if n != len(m.ROIs) {
			rep.add(WARN, "mapping-count-mismatch", "Calibrations",
				"%d sensor mappings for %d regions", n, len(m.ROIs))
		}
		m.Mappings = doc.Calib.Mappings
	}
}

func unifyFrameFormat(m *Metadata, h *spe.HeaderFields, f *footer.FrameFormat, rep *Report) {
	if f == nil {
		rep.add(WARN, "frame-format-absent", "DataFormat",
			"footer carries no frame block; header layout used alone")
		return
	}
	if f.Count != h.FrameCount {
		rep.add(ERROR, "frame-count-mismatch", "DataFormat",
			"footer frame count %d, header %d", f.Count, h.FrameCount)
	}
	if f.PixelFormat != "" {
		pt, err := spe.PixelTypeFromFormat(f.PixelFormat)
		if err != nil {
			rep.add(WARN, "pixel-format-unknown", "DataFormat",
				"pixel format %q not recognized", f.PixelFormat)
		} else if pt != h.Pixel {
			rep.add(ERROR, "pixel-format-mismatch", "DataFormat",
				"footer pixel format %s, header %s", pt, h.Pixel)
		}
	}
	if len(f.Regions) != len(m.ROIs) {
		rep.add(WARN, "region-count-mismatch", "DataFormat",
			"footer lists %d regions, header table %d", len(f.Regions), len(m.ROIs))
	}
	for i, r := range f.Regions {
		if i >= len(m.ROIs) {
			break
		}
		roi := m.ROIs[i]
		if r.Width != roi.Width || r.Height != roi.Height {
			rep.add(WARN, "region-shape-mismatch", "DataFormat",
				"region %d footer %dx%d, header %dx%d", i, r.Width, r.Height, roi.Width, roi.Height)
		}
	}
}

func unifyTrackFields(m *Metadata, mb *footer.MetaBlock, rep *Report) {
	seen := make(map[string]bool, len(mb.Fields))
	for _, f := range mb.Fields {
		if seen[f.Name] {
			rep.add(WARN, "track-field-duplicate", "MetaFormat",
				"tracking field %q declared more than once", f.Name)
		}
		seen[f.Name] = true
	}
	m.TrackFields = mb.Fields
	m.TrackBlockSize = mb.BlockSize
}
