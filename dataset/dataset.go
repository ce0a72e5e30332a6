package dataset

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/floats"

	"example.com/spedec/footer"
	"example.com/spedec/meta"
	"example.com/spedec/orient"
	"example.com/spedec/spe"
)

// Array is one region as a labeled tensor. Dims names the three storage
// axes in order; Coords holds one vector per dim plus, when a wavelength
// calibration applies, a "wavelength" vector aligned with WavelengthDim.
type Array struct {
	Name          string
	Tensor        Tensor
	Dims          [3]string
	Coords        map[string][]float64
	WavelengthDim string
}

// Dataset is the fully decoded file: one array per region, per-frame
// tracking series, and pass-through file attributes.
type Dataset struct {
	Arrays []Array
	Track  map[string][]float64
	Attrs  map[string]string
}

// Assemble builds the dataset from unified metadata and decoded frame
// bytes. Tracking series may be nil when the file carries no tracking
// block.
func Assemble(md *meta.Metadata, raw *spe.RawFrames, track map[string][]float64) (*Dataset, error) {
	if md == nil || raw == nil {
		return nil, errors.New("nil metadata or frames")
	}
	if len(raw.Tensors) != len(md.ROIs) {
		return nil, fmt.Errorf("%w: %d tensors for %d regions", ErrShape, len(raw.Tensors), len(md.ROIs))
	}
	ds := &Dataset{
		Arrays: make([]Array, 0, len(md.ROIs)),
		Track:  track,
		Attrs:  md.General,
	}
	for i, roi := range md.ROIs {
		t, err := newTensor(md.Pixel, md.FrameCount, roi.Height, roi.Width, raw.Tensors[i])
		if err != nil {
			return nil, fmt.Errorf("region %q: %w", roi.Name, err)
		}
		arr := buildArray(md, i, roi, t)
		ds.Arrays = append(ds.Arrays, arr)
	}
	return ds, nil
}

func buildArray(md *meta.Metadata, i int, roi spe.ResolvedROI, t Tensor) Array {
	rowCoord, colCoord := regionCoords(md, i, roi)

	calib := md.CalibrationFor(i)
	var calibOrient orient.Flags
	if calib != nil {
		calibOrient = calib.Orientation
	}
	tr := orient.Mapping(calibOrient, md.SensorOrientation)

	// The pixels stay in storage order; the transform relabels the axes
	// and reorders their coordinates.
	rowName, colName := "y", "x"
	if tr.FlipH {
		floats.Reverse(colCoord)
	}
	if tr.FlipV {
		floats.Reverse(rowCoord)
	}
	if tr.Rotate {
		floats.Reverse(rowCoord)
		rowName, colName = colName, rowName
	}

	arr := Array{
		Name:   roi.Name,
		Tensor: t,
		Dims:   [3]string{"frame", rowName, colName},
		Coords: map[string][]float64{
			"frame": frameIndices(md.FrameCount),
			rowName: rowCoord,
			colName: colCoord,
		},
	}

	if calib != nil {
		// The calibrated axis is "x" in the calibration's own frame; a
		// rotated calibration therefore targets our "y".
		dim := "x"
		if calibOrient.Rotate {
			dim = "y"
		}
		arr.WavelengthDim = dim
		arr.Coords["wavelength"] = evalPolynomial(calib.Coeffs, arr.Coords[dim])
	}
	return arr
}

// regionCoords returns row (y) and column (x) coordinate vectors. With a
// sensor mapping the coordinates are un-binned sensor pixel centers,
// origin + i·bin + bin/2; otherwise plain indices.
func regionCoords(md *meta.Metadata, i int, roi spe.ResolvedROI) (row, col []float64) {
	var m *footer.SensorMapping
	if i < len(md.Mappings) {
		m = &md.Mappings[i]
	}
	if m != nil && m.XBin > 0 && m.YBin > 0 {
		col = pixelCenters(float64(m.X), float64(m.XBin), roi.Width)
		row = pixelCenters(float64(m.Y), float64(m.YBin), roi.Height)
		return row, col
	}
	if roi.XBin > 0 && roi.YBin > 0 && (roi.OriginX != 0 || roi.OriginY != 0 || roi.XBin > 1 || roi.YBin > 1) {
		col = pixelCenters(float64(roi.OriginX), float64(roi.XBin), roi.Width)
		row = pixelCenters(float64(roi.OriginY), float64(roi.YBin), roi.Height)
		return row, col
	}
	return indexCoords(roi.Height), indexCoords(roi.Width)
}

func pixelCenters(origin, bin float64, n int) []float64 {
	out := make([]float64, n)
	if n == 1 {
		out[0] = origin + bin/2
		return out
	}
	floats.Span(out, origin+bin/2, origin+float64(n-1)*bin+bin/2)
	return out
}

func indexCoords(n int) []float64 {
	out := make([]float64, n)
	if n < 2 {
		return out
	}
	floats.Span(out, 0, float64(n-1))
	return out
}

func frameIndices(n int) []float64 {
	return indexCoords(n)
}

// evalPolynomial evaluates Σ coeffs[i]·px^i at each position, Horner form.
func evalPolynomial(coeffs []float64, px []float64) []float64 {
	out := make([]float64, len(px))
	for i, x := range px {
		v := 0.0
		for j := len(coeffs) - 1; j >= 0; j-- {
			v = v*x + coeffs[j]
		}
		out[i] = v
	}
	return out
}
