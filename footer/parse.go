package footer

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode"

	"example.com/spedec/spe"
)

// Parse decodes the footer byte range. Absent sections are not errors; only
// a structurally broken document is.
func Parse(data []byte) (*Document, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	root, err := findRoot(dec)
	if err != nil {
		return nil, err
	}
	if root.Name.Local != "SpeFormat" {
		return nil, fmt.Errorf("root element %q: %w", root.Name.Local, ErrMalformed)
	}
	doc := &Document{Version: attrValue(root, "version")}
	for {
		tok, err := dec.Token()
		if err != nil {
			if err == io.EOF {
				return nil, fmt.Errorf("document ends inside root element: %w", ErrMalformed)
			}
			return nil, fmt.Errorf("%v: %w", err, ErrMalformed)
		}
		switch t := tok.(type) {
		case xml.EndElement:
			if t.Name == root.Name {
				return doc, nil
			}
		case xml.StartElement:
			if err := doc.parseSection(dec, t); err != nil {
				return nil, err
			}
		}
	}
}

func findRoot(dec *xml.Decoder) (xml.StartElement, error) {
	for {
		tok, err := dec.Token()
		if err != nil {
			if err == io.EOF {
				return xml.StartElement{}, fmt.Errorf("no root element: %w", ErrMalformed)
			}
			return xml.StartElement{}, fmt.Errorf("%v: %w", err, ErrMalformed)
		}
		if se, ok := tok.(xml.StartElement); ok {
			return se, nil
		}
	}
}

func (doc *Document) parseSection(dec *xml.Decoder, start xml.StartElement) error {
	var err error
	switch start.Name.Local {
	case "GeneralInformation":
		doc.General = make(map[string]string)
		err = collectKV(dec, "", doc.General)
	case "DataFormat":
		err = doc.parseDataFormat(dec, start)
	case "MetaFormat":
		err = doc.parseMetaFormat(dec, start)
	case "Calibrations":
		err = doc.parseCalibrations(dec, start)
	default:
		doc.Unknown = append(doc.Unknown, start.Name.Local)
		err = dec.Skip()
	}
	if err != nil {
		if xmlSyntaxError(err) {
			return fmt.Errorf("section %s: %v: %w", start.Name.Local, err, ErrMalformed)
		}
		return err
	}
	return nil
}

func xmlSyntaxError(err error) bool {
	var syn *xml.SyntaxError
	return errors.As(err, &syn) || err == io.EOF
}

// collectKV flattens an element subtree into dotted key/value pairs. There
// is no fixed schema for general info; everything passes through.
func collectKV(dec *xml.Decoder, prefix string, out map[string]string) error {
	for {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			name := t.Name.Local
			if prefix != "" {
				name = prefix + "." + name
			}
			for _, a := range t.Attr {
				out[name+"."+a.Name.Local] = a.Value
			}
			if err := collectKV(dec, name, out); err != nil {
				return err
			}
		case xml.CharData:
			if s := strings.TrimSpace(string(t)); s != "" && prefix != "" {
				out[prefix] = s
			}
		case xml.EndElement:
			return nil
		}
	}
}

type xmlDataBlock struct {
	Type        string         `xml:"type,attr"`
	Count       int            `xml:"count,attr"`
	PixelFormat string         `xml:"pixelFormat,attr"`
	Size        int64          `xml:"size,attr"`
	Stride      int            `xml:"stride,attr"`
	Width       int            `xml:"width,attr"`
	Height      int            `xml:"height,attr"`
	Blocks      []xmlDataBlock `xml:"DataBlock"`
}

type xmlDataFormat struct {
	Blocks []xmlDataBlock `xml:"DataBlock"`
}

func (doc *Document) parseDataFormat(dec *xml.Decoder, start xml.StartElement) error {
	var df xmlDataFormat
	if err := dec.DecodeElement(&df, &start); err != nil {
		return err
	}
	for _, b := range df.Blocks {
		if b.Type != "Frame" {
			doc.Warnings = append(doc.Warnings, fmt.Sprintf("DataFormat block type %q ignored", b.Type))
			continue
		}
		frame := &FrameFormat{
			Count:       b.Count,
			PixelFormat: b.PixelFormat,
			Size:        b.Size,
			Stride:      b.Stride,
		}
		for _, r := range b.Blocks {
			if r.Type != "Region" {
				doc.Warnings = append(doc.Warnings, fmt.Sprintf("frame block child type %q ignored", r.Type))
				continue
			}
			frame.Regions = append(frame.Regions, Region{
				Width:  r.Width,
				Height: r.Height,
				Size:   int(r.Size),
				Stride: r.Stride,
			})
		}
		doc.Frame = frame
		return nil
	}
	doc.Warnings = append(doc.Warnings, "DataFormat has no Frame block")
	return nil
}

type xmlMetaFormat struct {
	Blocks []xmlMetaBlock `xml:"MetaBlock"`
}

type xmlMetaBlock struct {
	Entries []xmlMetaEntry `xml:",any"`
}

type xmlMetaEntry struct {
	XMLName    xml.Name
	Event      string  `xml:"event,attr"`
	Component  string  `xml:"component,attr"`
	Type       string  `xml:"type,attr"`
	BitDepth   int     `xml:"bitDepth,attr"`
	Resolution float64 `xml:"resolution,attr"`
}

func (doc *Document) parseMetaFormat(dec *xml.Decoder, start xml.StartElement) error {
	var mf xmlMetaFormat
	if err := dec.DecodeElement(&mf, &start); err != nil {
		return err
	}
	if len(mf.Blocks) == 0 {
		doc.Warnings = append(doc.Warnings, "MetaFormat has no MetaBlock")
		return nil
	}
	// Only the first MetaBlock describes the tracking layout; producers
	// write exactly one.
	block := &MetaBlock{}
	offset := 0
	for _, e := range mf.Blocks[0].Entries {
		name := fieldName(e)
		typ, known := spe.ParseFieldType(e.Type)
		size := e.BitDepth / 8
		if size == 0 {
			if !known {
				return fmt.Errorf("tracking field %q has unknown type %q and no bitDepth: %w",
					name, e.Type, ErrMalformed)
			}
			size = typ.Width()
		}
		if !known {
			// The field still occupies its bytes; only decoding is skipped.
			doc.Warnings = append(doc.Warnings,
				fmt.Sprintf("tracking field %q: unsupported type %q omitted", name, e.Type))
			offset += size
			continue
		}
		resolution := e.Resolution
		if resolution == 0 {
			resolution = 1
		}
		block.Fields = append(block.Fields, spe.TrackField{
			Name:       name,
			Offset:     offset,
			Size:       size,
			Type:       typ,
			Resolution: resolution,
		})
		offset += size
	}
	block.BlockSize = offset
	doc.Meta = block
	return nil
}

func fieldName(e xmlMetaEntry) string {
	if e.Event != "" {
		return snakeCase(e.Event)
	}
	return snakeCase(e.XMLName.Local + e.Component)
}

func snakeCase(s string) string {
	var b strings.Builder
	for i, r := range s {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

type xmlCalibrations struct {
	Wavelength []xmlWavelengthMapping `xml:"WavelengthMapping"`
	Sensor     *xmlSensorInfo         `xml:"SensorInformation"`
	Mappings   []xmlSensorMapping     `xml:"SensorMapping"`
}

type xmlWavelengthMapping struct {
	Orientation string          `xml:"orientation,attr"`
	Polynomials []xmlPolynomial `xml:"Polynomial"`
}

type xmlPolynomial struct {
	ROI      string `xml:"roi,attr"`
	RefPixel int    `xml:"referencePixel,attr"`
	Text     string `xml:",chardata"`
}

type xmlSensorInfo struct {
	Width       int    `xml:"width,attr"`
	Height      int    `xml:"height,attr"`
	Orientation string `xml:"orientation,attr"`
}

type xmlSensorMapping struct {
	X      int `xml:"x,attr"`
	Y      int `xml:"y,attr"`
	Width  int `xml:"width,attr"`
	Height int `xml:"height,attr"`
	XBin   int `xml:"xBinning,attr"`
	YBin   int `xml:"yBinning,attr"`
}

func (doc *Document) parseCalibrations(dec *xml.Decoder, start xml.StartElement) error {
	var xc xmlCalibrations
	if err := dec.DecodeElement(&xc, &start); err != nil {
		return err
	}
	calib := &Calibrations{}
	for _, wm := range xc.Wavelength {
		for _, p := range wm.Polynomials {
			poly := Polynomial{
				ROI:         -1,
				Orientation: wm.Orientation,
				RefPixel:    p.RefPixel,
				Coeffs:      parseCoeffs(p.Text, doc),
			}
			if p.ROI != "" {
				idx, err := strconv.Atoi(strings.TrimSpace(p.ROI))
				if err != nil {
					doc.Warnings = append(doc.Warnings,
						fmt.Sprintf("polynomial roi attribute %q: treated as shared", p.ROI))
				} else {
					poly.ROI = idx
				}
			}
			calib.Wavelength = append(calib.Wavelength, poly)
		}
	}
	if xc.Sensor != nil {
		calib.Sensor = &SensorInfo{
			Width:       xc.Sensor.Width,
			Height:      xc.Sensor.Height,
			Orientation: xc.Sensor.Orientation,
		}
	}
	for _, m := range xc.Mappings {
		calib.Mappings = append(calib.Mappings, SensorMapping{
			X: m.X, Y: m.Y,
			Width: m.Width, Height: m.Height,
			XBin: m.XBin, YBin: m.YBin,
		})
	}
	doc.Calib = calib
	return nil
}

func parseCoeffs(text string, doc *Document) []float64 {
	var out []float64
	for _, part := range strings.Split(text, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		v, err := strconv.ParseFloat(part, 64)
		if err != nil {
			doc.Warnings = append(doc.Warnings, fmt.Sprintf("polynomial coefficient %q skipped", part))
			continue
		}
		out = append(out, v)
	}
	return out
}

func attrValue(e xml.StartElement, name string) string {
	for _, a := range e.Attr {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}
