package spe

import (
	"encoding/binary"
	"fmt"
	"math"
)

// DecodeTracking decodes one frame's tracking block into per-field values,
// in field order. Integer raw values are divided by the field's resolution.
func DecodeTracking(fields []TrackField, block []byte) ([]float64, error) {
	out := make([]float64, len(fields))
	for i, f := range fields {
		if f.Offset < 0 || f.Offset+f.Size > len(block) {
			return nil, fmt.Errorf("tracking field %q spans %d..%d in a %d-byte block: %w",
				f.Name, f.Offset, f.Offset+f.Size, len(block), ErrStrideMismatch)
		}
		raw := block[f.Offset : f.Offset+f.Size]
		v, err := decodeFieldValue(f.Type, raw)
		if err != nil {
			return nil, fmt.Errorf("tracking field %q: %w", f.Name, err)
		}
		if f.Resolution > 0 && f.Resolution != 1 {
			v /= f.Resolution
		}
		out[i] = v
	}
	return out, nil
}

func decodeFieldValue(t FieldType, raw []byte) (float64, error) {
	if len(raw) < t.Width() {
		return 0, fmt.Errorf("%d bytes for %s value: %w", len(raw), t, ErrTruncated)
	}
	switch t {
	case FieldInt64:
		return float64(int64(binary.LittleEndian.Uint64(raw))), nil
	case FieldInt32:
		return float64(int32(binary.LittleEndian.Uint32(raw))), nil
	case FieldInt16:
		return float64(int16(binary.LittleEndian.Uint16(raw))), nil
	case FieldUint64:
		return float64(binary.LittleEndian.Uint64(raw)), nil
	case FieldUint32:
		return float64(binary.LittleEndian.Uint32(raw)), nil
	case FieldUint16:
		return float64(binary.LittleEndian.Uint16(raw)), nil
	case FieldFloat32:
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(raw))), nil
	case FieldFloat64:
		return math.Float64frombits(binary.LittleEndian.Uint64(raw)), nil
	default:
		return 0, fmt.Errorf("field type %s: %w", t, ErrBadPixelType)
	}
}

// TrackingSeries accumulates per-frame tracking values into frame-aligned
// series keyed by field name. It is a no-op (nil map) when no field layout
// is present.
func TrackingSeries(fields []TrackField, frames *RawFrames, frameCount int) (map[string][]float64, error) {
	if len(fields) == 0 || frames.TrackSize == 0 {
		return nil, nil
	}
	series := make(map[string][]float64, len(fields))
	for _, f := range fields {
		series[f.Name] = make([]float64, frameCount)
	}
	for i := 0; i < frameCount; i++ {
		values, err := DecodeTracking(fields, frames.TrackingBlock(i))
		if err != nil {
			return nil, fmt.Errorf("frame %d: %w", i, err)
		}
		for k, f := range fields {
			series[f.Name][i] = values[k]
		}
	}
	return series, nil
}
