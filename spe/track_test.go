package spe_test

import (
	"encoding/binary"
	"errors"
	"math"
	"testing"

	"example.com/spedec/spe"
)

func TestDecodeTracking(t *testing.T) {
	fields := []spe.TrackField{
		{Name: "exposure_started", Offset: 0, Size: 8, Type: spe.FieldInt64, Resolution: 1000},
		{Name: "frame_tracking_number", Offset: 8, Size: 4, Type: spe.FieldUint32, Resolution: 1},
		{Name: "gate_width", Offset: 12, Size: 8, Type: spe.FieldFloat64, Resolution: 1},
	}
	block := make([]byte, 20)
	binary.LittleEndian.PutUint64(block[0:], uint64(2500))
	binary.LittleEndian.PutUint32(block[8:], 42)
	binary.LittleEndian.PutUint64(block[12:], math.Float64bits(1.25))

	values, err := spe.DecodeTracking(fields, block)
	if err != nil {
		t.Fatalf("DecodeTracking: %v", err)
	}
	want := []float64{2.5, 42, 1.25}
	for i, v := range values {
		if v != want[i] {
			t.Errorf("value %d = %v, want %v", i, v, want[i])
		}
	}
}

func TestDecodeTrackingNegative(t *testing.T) {
	fields := []spe.TrackField{
		{Name: "delta", Offset: 0, Size: 2, Type: spe.FieldInt16, Resolution: 1},
	}
	block := []byte{0xFE, 0xFF}
	values, err := spe.DecodeTracking(fields, block)
	if err != nil {
		t.Fatalf("DecodeTracking: %v", err)
	}
	if values[0] != -2 {
		t.Errorf("value = %v, want -2", values[0])
	}
}

func TestDecodeTrackingOutOfBounds(t *testing.T) {
	fields := []spe.TrackField{
		{Name: "exposure_started", Offset: 4, Size: 8, Type: spe.FieldInt64, Resolution: 1},
	}
	if _, err := spe.DecodeTracking(fields, make([]byte, 8)); !errors.Is(err, spe.ErrStrideMismatch) {
		t.Fatalf("err = %v, want ErrStrideMismatch", err)
	}
}

func TestTrackingSeries(t *testing.T) {
	fields := []spe.TrackField{
		{Name: "exposure_started", Offset: 0, Size: 8, Type: spe.FieldInt64, Resolution: 1},
	}
	frames := &spe.RawFrames{TrackSize: 8, Tracking: make([]byte, 24)}
	for i := 0; i < 3; i++ {
		binary.LittleEndian.PutUint64(frames.Tracking[8*i:], uint64(100+i))
	}
	series, err := spe.TrackingSeries(fields, frames, 3)
	if err != nil {
		t.Fatalf("TrackingSeries: %v", err)
	}
	got := series["exposure_started"]
	if len(got) != 3 || got[0] != 100 || got[2] != 102 {
		t.Errorf("series = %v", got)
	}
}

func TestTrackingSeriesNoLayout(t *testing.T) {
	series, err := spe.TrackingSeries(nil, &spe.RawFrames{}, 2)
	if err != nil || series != nil {
		t.Errorf("series = %v, err = %v", series, err)
	}
}
