package samples

import (
	"encoding/binary"
	"path/filepath"

	"example.com/spedec/spe"
)

// Canonical demo file names written by WriteFiles.
const (
	LegacyFileName = "legacy_demo.spe"
	ModernFileName = "modern_demo.spe"
)

// LegacyDemo is a 2.x file: two frames, one binned region, header
// wavelength calibration.
func LegacyDemo() Config {
	return Config{
		HeaderVer: 2.5,
		Frames:    2,
		XDim:      8,
		YDim:      4,
		SensorW:   16,
		SensorH:   8,
		Datatype:  spe.PixelUint16,
		Date:      "14May2024",
		TimeLocal: "100233",
		TimeUTC:   "080233",
		ROIs: []spe.RawROI{
			{StartX: 1, EndX: 16, GroupX: 2, StartY: 1, EndY: 8, GroupY: 2},
		},
		CalibValid:  true,
		CalibOrder:  2,
		CalibCoeffs: []float64{500, 0.25, 0.001},
		FrameData:   rampFrames(2, 8*4),
	}
}

const modernDemoFooter = `<SpeFormat version="3.0">
  <GeneralInformation>
    <FileInformation creator="LightField" created="2024-05-14T10:02:33"/>
  </GeneralInformation>
  <DataFormat>
    <DataBlock type="Frame" count="3" pixelFormat="MonochromeUnsigned16" size="80" stride="96">
      <DataBlock type="Region" width="6" height="2" size="24" stride="24"/>
      <DataBlock type="Region" width="4" height="7" size="56" stride="56"/>
    </DataBlock>
  </DataFormat>
  <MetaFormat>
    <MetaBlock id="0">
      <TimeStamp event="ExposureStarted" type="Int64" bitDepth="64" resolution="1000000"/>
      <FrameTrackingNumber type="Int64" bitDepth="64"/>
    </MetaBlock>
  </MetaFormat>
  <Calibrations>
    <WavelengthMapping orientation="Normal">
      <Polynomial roi="0" referencePixel="0">520,0.5</Polynomial>
    </WavelengthMapping>
    <SensorInformation width="16" height="16" orientation="Normal"/>
    <SensorMapping x="0" y="0" width="12" height="2" xBinning="2" yBinning="1"/>
    <SensorMapping x="0" y="4" width="4" height="7" xBinning="1" yBinning="1"/>
  </Calibrations>
</SpeFormat>`

// ModernDemo is a 3.0 file: three frames, two regions, a two-field
// tracking block, and a full calibration subtree.
func ModernDemo() Config {
	cfg := Config{
		HeaderVer: 3.0,
		Frames:    3,
		XDim:      6,
		YDim:      2,
		SensorW:   16,
		SensorH:   16,
		Datatype:  spe.PixelUint16,
		ROIs: []spe.RawROI{
			{StartX: 1, EndX: 12, GroupX: 2, StartY: 1, EndY: 2, GroupY: 1}, // 6x2
			{StartX: 1, EndX: 4, GroupX: 1, StartY: 5, EndY: 11, GroupY: 1}, // 4x7
		},
		TrackBlock: 16,
		FooterXML:  modernDemoFooter,
	}
	pixels := rampFrames(cfg.Frames, 6*2+4*7)
	for i := range pixels {
		track := make([]byte, 16)
		binary.LittleEndian.PutUint64(track[0:], uint64((i+1)*1_000_000))
		binary.LittleEndian.PutUint64(track[8:], uint64(i+1))
		pixels[i] = append(pixels[i], track...)
	}
	cfg.FrameData = pixels
	return cfg
}

// WriteFiles renders both demo files into dir.
func WriteFiles(dir string) error {
	legacy := LegacyDemo()
	if err := legacy.WriteFile(filepath.Join(dir, LegacyFileName)); err != nil {
		return err
	}
	modern := ModernDemo()
	return modern.WriteFile(filepath.Join(dir, ModernFileName))
}

// rampFrames builds uint16 pixel blocks where frame f pixel i holds
// f*1000+i, which makes decoded values easy to assert on.
func rampFrames(frames, pixels int) [][]byte {
	out := make([][]byte, frames)
	for f := range out {
		block := make([]byte, 2*pixels)
		for i := 0; i < pixels; i++ {
			binary.LittleEndian.PutUint16(block[2*i:], uint16(f*1000+i))
		}
		out[f] = block
	}
	return out
}
