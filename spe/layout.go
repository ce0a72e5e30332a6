package spe

import "fmt"

// ResolveLayout turns the raw ROI table into per-region pixel geometry and
// byte offsets. Regions are laid out in declaration order: storage order is
// the concatenation order inside a frame, not spatial order. The returned
// total is the summed byte size of all regions (the frame stride minus any
// tracking block).
func ResolveLayout(h HeaderFields) ([]ResolvedROI, int, error) {
	elem := h.Pixel.Width()
	if elem == 0 {
		return nil, 0, fmt.Errorf("datatype code %d: %w", int16(h.Pixel), ErrBadPixelType)
	}
	out := make([]ResolvedROI, len(h.ROIs))
	offset := 0
	for i, raw := range h.ROIs {
		r, err := resolveROI(i, raw, elem, h.SensorWidth, h.SensorHeight)
		if err != nil {
			return nil, 0, err
		}
		r.FrameOffset = offset
		offset += r.ByteSize
		out[i] = r
	}
	return out, offset, nil
}

func resolveROI(index int, raw RawROI, elem, sensorW, sensorH int) (ResolvedROI, error) {
	var r ResolvedROI
	if raw.EndX < raw.StartX || raw.EndY < raw.StartY {
		return r, fmt.Errorf("roi %d extent %d..%d x %d..%d: %w",
			index, raw.StartX, raw.EndX, raw.StartY, raw.EndY, ErrBadROITable)
	}
	if raw.GroupX == 0 || raw.GroupY == 0 {
		return r, fmt.Errorf("roi %d has zero binning: %w", index, ErrBadROITable)
	}

	width := int(raw.EndX) - int(raw.StartX) + 1
	height := int(raw.EndY) - int(raw.StartY) + 1
	// Hardware binning floors: remainder pixels fall off the edge of the
	// last bin and are simply not stored.
	r = ResolvedROI{
		Name:    fmt.Sprintf("ROI %d", index),
		Width:   width / int(raw.GroupX),
		Height:  height / int(raw.GroupY),
		OriginX: originPixel(raw.StartX),
		OriginY: originPixel(raw.StartY),
		XBin:    int(raw.GroupX),
		YBin:    int(raw.GroupY),
	}
	if r.Width <= 0 || r.Height <= 0 {
		return r, fmt.Errorf("roi %d resolves to %dx%d pixels: %w", index, r.Width, r.Height, ErrBadROITable)
	}
	if sensorW > 0 && r.OriginX+width > sensorW {
		return r, fmt.Errorf("roi %d exceeds sensor width %d: %w", index, sensorW, ErrBadROITable)
	}
	if sensorH > 0 && r.OriginY+height > sensorH {
		return r, fmt.Errorf("roi %d exceeds sensor height %d: %w", index, sensorH, ErrBadROITable)
	}
	r.ByteSize = r.Width * r.Height * elem
	return r, nil
}

// ROI table coordinates are one-based; a zero start (seen in some producer
// quirks) is treated as the first pixel.
func originPixel(start uint16) int {
	if start == 0 {
		return 0
	}
	return int(start) - 1
}
