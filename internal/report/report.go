// Package report renders decode results as JSON and PDF documents.
package report

import (
	"encoding/json"
	"os"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"example.com/spedec/dataset"
	"example.com/spedec/meta"
)

type DecodeReport struct {
	Summary struct {
		File        string `json:"file"`
		Digest      string `json:"digest,omitempty"`
		Version     string `json:"version"`
		Frames      int    `json:"frames"`
		Regions     int    `json:"regions"`
		PixelFormat string `json:"pixelFormat"`
		Errors      int    `json:"errors"`
		Warnings    int    `json:"warnings"`
		Pass        bool   `json:"pass"`
	} `json:"summary"`
	Regions     []RegionSummary     `json:"regions"`
	TrackFields []TrackFieldSummary `json:"trackFields,omitempty"`
	Findings    []meta.Violation    `json:"findings,omitempty"`
}

// RegionSummary is one region's geometry plus pixel statistics across all
// frames.
type RegionSummary struct {
	Name   string  `json:"name"`
	Width  int     `json:"width"`
	Height int     `json:"height"`
	XBin   int     `json:"xBinning"`
	YBin   int     `json:"yBinning"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"stdDev"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

type TrackFieldSummary struct {
	Name       string  `json:"name"`
	Type       string  `json:"type"`
	Size       int     `json:"size"`
	Resolution float64 `json:"resolution"`
}

// Build assembles the report from unification output and the decoded
// dataset. ds may be nil when only metadata was inspected.
func Build(file, digest string, md *meta.Metadata, rep *meta.Report, ds *dataset.Dataset) DecodeReport {
	var out DecodeReport
	out.Summary.File = file
	out.Summary.Digest = digest
	out.Summary.Version = md.Version.String()
	out.Summary.Frames = md.FrameCount
	out.Summary.Regions = len(md.ROIs)
	out.Summary.PixelFormat = md.Pixel.String()
	if rep != nil {
		out.Summary.Errors = rep.Errors()
		out.Summary.Warnings = rep.Warnings()
		out.Findings = rep.Violations
	}
	out.Summary.Pass = out.Summary.Errors == 0

	for i, roi := range md.ROIs {
		rs := RegionSummary{
			Name:   roi.Name,
			Width:  roi.Width,
			Height: roi.Height,
			XBin:   roi.XBin,
			YBin:   roi.YBin,
		}
		if ds != nil && i < len(ds.Arrays) {
			if vals := ds.Arrays[i].Tensor.Float64s(); len(vals) > 0 {
				rs.Mean = stat.Mean(vals, nil)
				rs.StdDev = stat.StdDev(vals, nil)
				rs.Min = floats.Min(vals)
				rs.Max = floats.Max(vals)
			}
		}
		out.Regions = append(out.Regions, rs)
	}
	for _, f := range md.TrackFields {
		out.TrackFields = append(out.TrackFields, TrackFieldSummary{
			Name:       f.Name,
			Type:       f.Type.String(),
			Size:       f.Size,
			Resolution: f.Resolution,
		})
	}
	return out
}

func SaveJSON(rep DecodeReport, out string) error {
	b, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(out, b, 0644)
}

func LoadJSON(path string) (DecodeReport, error) {
	var rep DecodeReport
	b, err := os.ReadFile(path)
	if err != nil {
		return rep, err
	}
	err = json.Unmarshal(b, &rep)
	return rep, err
}
