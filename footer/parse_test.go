package footer

import (
	"errors"
	"strings"
	"testing"

	"example.com/spedec/spe"
)

const sampleFooter = `<SpeFormat version="3.0" xmlns="http://www.princetoninstruments.com/spe/2009">
  <GeneralInformation>
    <FileInformation created="2024-05-14T10:02:33" creator="LightField">
      <Notes>night run</Notes>
    </FileInformation>
  </GeneralInformation>
  <DataFormat>
    <DataBlock type="Frame" count="4" pixelFormat="MonochromeUnsigned16" size="1600" stride="1616">
      <DataBlock type="Region" width="20" height="20" size="800" stride="800"/>
      <DataBlock type="Region" width="40" height="10" size="800" stride="800"/>
    </DataBlock>
  </DataFormat>
  <MetaFormat>
    <MetaBlock id="0">
      <TimeStamp event="ExposureStarted" type="Int64" bitDepth="64" resolution="1000000"/>
      <TimeStamp event="ExposureEnded" type="Int64" bitDepth="64" resolution="1000000"/>
    </MetaBlock>
  </MetaFormat>
  <Calibrations>
    <WavelengthMapping orientation="Normal">
      <Polynomial roi="0" referencePixel="512">500.5,0.1,0.0001</Polynomial>
    </WavelengthMapping>
    <SensorInformation width="1340" height="400" orientation="Normal"/>
    <SensorMapping x="1" y="1" width="1340" height="400" xBinning="1" yBinning="1"/>
  </Calibrations>
</SpeFormat>`

func TestParseSampleFooter(t *testing.T) {
	doc, err := Parse([]byte(sampleFooter))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if doc.Version != "3.0" {
		t.Errorf("version = %q, want 3.0", doc.Version)
	}
	if got := doc.General["FileInformation.creator"]; got != "LightField" {
		t.Errorf("creator = %q, want LightField", got)
	}
	if got := doc.General["FileInformation.Notes"]; got != "night run" {
		t.Errorf("notes = %q, want %q", got, "night run")
	}
	if doc.Frame == nil {
		t.Fatal("frame format missing")
	}
	if doc.Frame.Count != 4 || doc.Frame.PixelFormat != "MonochromeUnsigned16" || doc.Frame.Stride != 1616 {
		t.Errorf("frame = %+v", doc.Frame)
	}
	if len(doc.Frame.Regions) != 2 {
		t.Fatalf("regions = %d, want 2", len(doc.Frame.Regions))
	}
	if r := doc.Frame.Regions[1]; r.Width != 40 || r.Height != 10 || r.Size != 800 {
		t.Errorf("region[1] = %+v", r)
	}
	if len(doc.Warnings) != 0 {
		t.Errorf("unexpected warnings: %v", doc.Warnings)
	}
}

func TestParseMetaBlockOffsets(t *testing.T) {
	doc, err := Parse([]byte(sampleFooter))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if doc.Meta == nil {
		t.Fatal("meta block missing")
	}
	want := []spe.TrackField{
		{Name: "exposure_started", Offset: 0, Size: 8, Type: spe.FieldInt64, Resolution: 1e6},
		{Name: "exposure_ended", Offset: 8, Size: 8, Type: spe.FieldInt64, Resolution: 1e6},
	}
	if len(doc.Meta.Fields) != len(want) {
		t.Fatalf("fields = %d, want %d", len(doc.Meta.Fields), len(want))
	}
	for i, f := range doc.Meta.Fields {
		if f != want[i] {
			t.Errorf("field %d = %+v, want %+v", i, f, want[i])
		}
	}
	if doc.Meta.BlockSize != 16 {
		t.Errorf("block size = %d, want 16", doc.Meta.BlockSize)
	}
}

func TestParseCalibrations(t *testing.T) {
	doc, err := Parse([]byte(sampleFooter))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if doc.Calib == nil {
		t.Fatal("calibrations missing")
	}
	if len(doc.Calib.Wavelength) != 1 {
		t.Fatalf("polynomials = %d, want 1", len(doc.Calib.Wavelength))
	}
	p := doc.Calib.Wavelength[0]
	if p.ROI != 0 || p.RefPixel != 512 || p.Orientation != "Normal" {
		t.Errorf("polynomial = %+v", p)
	}
	if len(p.Coeffs) != 3 || p.Coeffs[0] != 500.5 || p.Coeffs[2] != 0.0001 {
		t.Errorf("coeffs = %v", p.Coeffs)
	}
	if doc.Calib.Sensor == nil || doc.Calib.Sensor.Width != 1340 {
		t.Errorf("sensor = %+v", doc.Calib.Sensor)
	}
	if len(doc.Calib.Mappings) != 1 || doc.Calib.Mappings[0].Height != 400 {
		t.Errorf("mappings = %+v", doc.Calib.Mappings)
	}
}

func TestParseUnknownSectionSkipped(t *testing.T) {
	const xml = `<SpeFormat version="3.0">
  <FutureSection><Nested attr="1"/></FutureSection>
  <DataFormat>
    <DataBlock type="Frame" count="1" pixelFormat="MonochromeUnsigned16" size="8" stride="8">
      <DataBlock type="Region" width="2" height="2" size="8" stride="8"/>
    </DataBlock>
  </DataFormat>
</SpeFormat>`
	doc, err := Parse([]byte(xml))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(doc.Unknown) != 1 || doc.Unknown[0] != "FutureSection" {
		t.Errorf("unknown = %v", doc.Unknown)
	}
	if doc.Frame == nil || doc.Frame.Count != 1 {
		t.Errorf("frame after skip = %+v", doc.Frame)
	}
}

func TestParseUnsupportedFieldType(t *testing.T) {
	const xml = `<SpeFormat version="3.0">
  <MetaFormat>
    <MetaBlock>
      <FrameTrackingNumber type="Complex128" bitDepth="128"/>
      <TimeStamp event="ExposureStarted" type="Int64"/>
    </MetaBlock>
  </MetaFormat>
</SpeFormat>`
	doc, err := Parse([]byte(xml))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(doc.Warnings) != 1 || !strings.Contains(doc.Warnings[0], "Complex128") {
		t.Errorf("warnings = %v", doc.Warnings)
	}
	if len(doc.Meta.Fields) != 1 {
		t.Fatalf("fields = %+v", doc.Meta.Fields)
	}
	// The skipped 16-byte field still occupies its offsets.
	if f := doc.Meta.Fields[0]; f.Offset != 16 || f.Name != "exposure_started" {
		t.Errorf("field = %+v", f)
	}
	if doc.Meta.BlockSize != 24 {
		t.Errorf("block size = %d, want 24", doc.Meta.BlockSize)
	}
}

func TestParseErrors(t *testing.T) {
	cases := []struct {
		name string
		xml  string
	}{
		{"empty", ""},
		{"wrong root", `<NotSpe version="3.0"></NotSpe>`},
		{"truncated", `<SpeFormat version="3.0"><DataFormat>`},
		{"broken markup", `<SpeFormat version="3.0"><DataFormat></SpeFormat>`},
		{"unsizable field", `<SpeFormat version="3.0"><MetaFormat><MetaBlock><X type="Mystery"/></MetaBlock></MetaFormat></SpeFormat>`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Parse([]byte(tc.xml)); !errors.Is(err, ErrMalformed) {
				t.Fatalf("err = %v, want ErrMalformed", err)
			}
		})
	}
}

func TestParseSharedPolynomial(t *testing.T) {
	const xml = `<SpeFormat version="3.0">
  <Calibrations>
    <WavelengthMapping>
      <Polynomial referencePixel="0">1,2</Polynomial>
    </WavelengthMapping>
  </Calibrations>
</SpeFormat>`
	doc, err := Parse([]byte(xml))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(doc.Calib.Wavelength) != 1 || doc.Calib.Wavelength[0].ROI != -1 {
		t.Errorf("polynomials = %+v", doc.Calib.Wavelength)
	}
}
