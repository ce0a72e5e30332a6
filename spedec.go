// Package spedec decodes Princeton Instruments SPE camera files, both the
// legacy 2.x revision whose metadata lives entirely in the fixed binary
// header and the modern 3.0 revision that appends an XML footer. Either way
// the result is the same version-independent dataset: one labeled array per
// region of interest, per-frame tracking series, and a schema report.
package spedec

import (
	"fmt"
	"runtime"

	"example.com/spedec/dataset"
	"example.com/spedec/footer"
	"example.com/spedec/meta"
	"example.com/spedec/spe"
)

// Options controls decoding.
type Options struct {
	// Strict rejects files whose header magic fields do not match. On by
	// default via Open.
	Strict bool
	// Workers bounds frame-decode parallelism. Zero means one worker per
	// CPU.
	Workers int
}

// File is a fully decoded file.
type File struct {
	Header   spe.HeaderFields
	Metadata *meta.Metadata
	Report   *meta.Report
	Dataset  *dataset.Dataset
}

// Open decodes the file at path with strict header validation and default
// parallelism.
func Open(path string) (*File, error) {
	return OpenOptions(path, Options{Strict: true})
}

// OpenOptions decodes the file at path.
func OpenOptions(path string, opts Options) (*File, error) {
	r, err := spe.NewReaderOptions(path, spe.Options{Strict: opts.Strict})
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return Decode(r, opts.Workers)
}

// Inspect unifies metadata without decoding any frame data. The returned
// File has a nil Dataset.
func Inspect(path string, opts Options) (*File, error) {
	r, err := spe.NewReaderOptions(path, spe.Options{Strict: opts.Strict})
	if err != nil {
		return nil, err
	}
	defer r.Close()
	md, rep, err := unify(r)
	if err != nil {
		return nil, err
	}
	return &File{Header: r.Header(), Metadata: md, Report: rep}, nil
}

// Decode runs the full pipeline on an already opened reader: footer parse,
// metadata unification, frame decode, tracking extraction, and dataset
// assembly. The caller keeps ownership of the reader.
func Decode(r *spe.Reader, workers int) (*File, error) {
	md, rep, err := unify(r)
	if err != nil {
		return nil, err
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	raw, err := r.DecodeAll(workers)
	if err != nil {
		return nil, err
	}
	track, err := spe.TrackingSeries(md.TrackFields, raw, r.Header().FrameCount)
	if err != nil {
		return nil, err
	}
	ds, err := dataset.Assemble(md, raw, track)
	if err != nil {
		return nil, err
	}
	return &File{Header: r.Header(), Metadata: md, Report: rep, Dataset: ds}, nil
}

// unify parses the footer when present, reconciles the frame stride, and
// merges both metadata sources.
func unify(r *spe.Reader) (*meta.Metadata, *meta.Report, error) {
	h := r.Header()

	var doc *footer.Document
	if h.Version == spe.VersionModern {
		raw, err := r.FooterBytes()
		if err != nil {
			return nil, nil, err
		}
		doc, err = footer.Parse(raw)
		if err != nil {
			return nil, nil, err
		}
		if stride := declaredStride(r, doc); stride > 0 {
			if err := r.ApplyFrameStride(stride); err != nil {
				return nil, nil, err
			}
		}
		// A tracking layout that does not fill the reserved block exactly
		// means the two footer sections contradict each other.
		if doc.Meta != nil && r.TrackingSize() != doc.Meta.BlockSize {
			return nil, nil, fmt.Errorf("tracking layout is %d bytes inside a %d-byte block: %w",
				doc.Meta.BlockSize, r.TrackingSize(), spe.ErrStrideMismatch)
		}
	}

	md, rep, err := meta.Unify(r.Path(), &h, r.ROIs(), r.ROIBytes(), doc)
	if err != nil {
		return nil, nil, err
	}
	return md, rep, nil
}

// declaredStride picks the footer's frame stride: an explicit DataFormat
// stride wins, otherwise the tracking block size extends the region bytes.
func declaredStride(r *spe.Reader, doc *footer.Document) int {
	if doc.Frame != nil && doc.Frame.Stride > 0 {
		return doc.Frame.Stride
	}
	if doc.Meta != nil && doc.Meta.BlockSize > 0 {
		return r.ROIBytes() + doc.Meta.BlockSize
	}
	return 0
}
