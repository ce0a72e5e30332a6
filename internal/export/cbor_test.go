package export

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/fxamacker/cbor/v2"

	"example.com/spedec/dataset"
	"example.com/spedec/meta"
	"example.com/spedec/spe"
)

func sampleDataset(t *testing.T) *dataset.Dataset {
	t.Helper()
	raw := make([]byte, 2*2*3*2)
	for i := 0; i < len(raw)/2; i++ {
		binary.LittleEndian.PutUint16(raw[2*i:], uint16(i))
	}
	md := &meta.Metadata{
		FrameCount: 2,
		Pixel:      spe.PixelUint16,
		ROIs: []spe.ResolvedROI{
			{Name: "ROI 0", Width: 3, Height: 2, XBin: 1, YBin: 1, ByteSize: 12},
		},
		General: map[string]string{"creator": "LightField"},
	}
	ds, err := dataset.Assemble(md, &spe.RawFrames{Tensors: [][]byte{raw}},
		map[string][]float64{"frame_tracking_number": {1, 2}})
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	return ds
}

func TestMarshalRoundTrip(t *testing.T) {
	b, err := Marshal(sampleDataset(t))
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var env struct {
		Format string            `cbor:"format"`
		Attrs  map[string]string `cbor:"attrs"`
		Arrays []struct {
			Name string   `cbor:"name"`
			Dims []string `cbor:"dims"`
			Data cbor.Tag `cbor:"data"`
		} `cbor:"arrays"`
	}
	if err := cbor.Unmarshal(b, &env); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if env.Format != "spedec/1" {
		t.Errorf("format = %q", env.Format)
	}
	if env.Attrs["creator"] != "LightField" {
		t.Errorf("attrs = %v", env.Attrs)
	}
	if len(env.Arrays) != 1 {
		t.Fatalf("arrays = %d", len(env.Arrays))
	}
	arr := env.Arrays[0]
	if arr.Name != "ROI 0" || len(arr.Dims) != 3 {
		t.Errorf("array = %+v", arr)
	}
	if arr.Data.Number != tagMultiDimArray {
		t.Errorf("outer tag = %d, want %d", arr.Data.Number, tagMultiDimArray)
	}
	items, ok := arr.Data.Content.([]interface{})
	if !ok || len(items) != 2 {
		t.Fatalf("multidim content = %T", arr.Data.Content)
	}
	inner, ok := items[1].(cbor.Tag)
	if !ok || inner.Number != tagUint16LE {
		t.Fatalf("inner tag = %+v", items[1])
	}
	raw, ok := inner.Content.([]byte)
	if !ok || len(raw) != 24 {
		t.Fatalf("payload = %T len %d", inner.Content, len(raw))
	}
	if binary.LittleEndian.Uint16(raw[2:]) != 1 {
		t.Errorf("payload[1] = %d", binary.LittleEndian.Uint16(raw[2:]))
	}
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.cbor")
	if err := WriteFile(path, sampleDataset(t)); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	var env map[string]interface{}
	if err := cbor.Unmarshal(b, &env); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if env["format"] != "spedec/1" {
		t.Errorf("format = %v", env["format"])
	}
}

func TestTypedArrayTags(t *testing.T) {
	cases := []struct {
		pixel spe.PixelType
		tag   uint64
	}{
		{spe.PixelUint8, tagUint8},
		{spe.PixelUint16, tagUint16LE},
		{spe.PixelUint32, tagUint32LE},
		{spe.PixelInt16, tagInt16LE},
		{spe.PixelInt32, tagInt32LE},
		{spe.PixelFloat32, tagFloat32LE},
		{spe.PixelFloat64, tagFloat64LE},
	}
	for _, tc := range cases {
		got, err := typedArrayTag(tc.pixel)
		if err != nil {
			t.Errorf("%s: %v", tc.pixel, err)
			continue
		}
		if got != tc.tag {
			t.Errorf("%s: tag = %d, want %d", tc.pixel, got, tc.tag)
		}
	}
	if _, err := typedArrayTag(spe.PixelType(99)); err == nil {
		t.Error("unknown pixel type should fail")
	}
}
