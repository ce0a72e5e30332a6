package spe

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"example.com/spedec/internal/common"
)

// Options controls header validation on open.
type Options struct {
	// Strict requires the header magic fields to match. Disable it for
	// files from producers known to leave them unset.
	Strict bool
}

// Frame is one decoded acquisition snapshot: a raw buffer per region plus
// the trailing tracking block when one exists.
type Frame struct {
	Index    int
	ROIData  [][]byte
	Tracking []byte
}

// RawFrames holds the fully decoded frame region. Tensors are per-ROI
// contiguous buffers of frameCount*ByteSize bytes, frame-major; Tracking is
// the concatenation of every frame's tracking block.
type RawFrames struct {
	Tensors   [][]byte
	Tracking  []byte
	TrackSize int
}

// TrackingBlock returns frame i's tracking block, or nil when the file has
// none.
func (rf *RawFrames) TrackingBlock(i int) []byte {
	if rf.TrackSize == 0 {
		return nil
	}
	return rf.Tracking[i*rf.TrackSize : (i+1)*rf.TrackSize]
}

// Reader decodes one file. Header fields and the resolved layout are
// computed on open and immutable afterwards; the tracking block size is
// fixed once the footer stride is applied.
type Reader struct {
	path      string
	source    *fileSource
	header    HeaderFields
	rois      []ResolvedROI
	roiBytes  int
	trackSize int

	metrics *common.Metrics
}

// NewReader opens path and decodes its header with strict magic checks.
func NewReader(path string) (*Reader, error) {
	return NewReaderOptions(path, Options{Strict: true})
}

func NewReaderOptions(path string, opts Options) (*Reader, error) {
	src, err := openFileSource(path)
	if err != nil {
		return nil, err
	}
	view, err := sliceExact(src, 0, HeaderSize)
	if err != nil {
		src.Close()
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("header region: %w", ErrTruncated)
		}
		return nil, err
	}
	header, err := ParseHeader(view, opts.Strict)
	if err != nil {
		src.Close()
		return nil, err
	}
	rois, total, err := ResolveLayout(header)
	if err != nil {
		src.Close()
		return nil, err
	}
	r := &Reader{
		path:     path,
		source:   src,
		header:   header,
		rois:     rois,
		roiBytes: total,
	}
	if header.Version == VersionModern && header.FooterOffset > src.Size() {
		src.Close()
		return nil, fmt.Errorf("xml footer offset %d beyond %d-byte file: %w",
			header.FooterOffset, src.Size(), ErrBadFooterOffset)
	}
	if err := r.checkFits(); err != nil {
		src.Close()
		return nil, err
	}
	return r, nil
}

// Close releases the underlying file handle.
func (r *Reader) Close() error {
	if r.source == nil {
		return nil
	}
	err := r.source.Close()
	r.source = nil
	return err
}

// SetMetrics attaches a progress recorder to the reader.
func (r *Reader) SetMetrics(m *common.Metrics) {
	r.metrics = m
	if m != nil {
		m.SetTotalBytes(int64(r.header.FrameCount) * int64(r.FrameStride()))
	}
}

func (r *Reader) Header() HeaderFields { return r.header }

// Path returns the file path the reader was opened with.
func (r *Reader) Path() string { return r.path }

// ROIs returns a copy of the resolved layout.
func (r *Reader) ROIs() []ResolvedROI {
	out := make([]ResolvedROI, len(r.rois))
	copy(out, r.rois)
	return out
}

// ROIBytes is the summed byte size of all regions within one frame.
func (r *Reader) ROIBytes() int { return r.roiBytes }

// FrameStride is the byte distance between consecutive frame blocks.
func (r *Reader) FrameStride() int { return r.roiBytes + r.trackSize }

// TrackingSize is the byte length of the per-frame tracking block.
func (r *Reader) TrackingSize() int { return r.trackSize }

// ApplyFrameStride reconciles the footer-declared frame stride with the
// resolved region layout. Whatever the stride reserves beyond the region
// bytes is the tracking block; a stride smaller than the regions is a
// structural error.
func (r *Reader) ApplyFrameStride(stride int) error {
	if stride < r.roiBytes {
		return fmt.Errorf("declared stride %d < %d region bytes: %w", stride, r.roiBytes, ErrStrideMismatch)
	}
	r.trackSize = stride - r.roiBytes
	if err := r.checkFits(); err != nil {
		r.trackSize = 0
		return err
	}
	return nil
}

func (r *Reader) checkFits() error {
	need := int64(HeaderSize) + int64(r.header.FrameCount)*int64(r.FrameStride())
	if need > r.source.Size() {
		return fmt.Errorf("need %d bytes for %d frames, file has %d: %w",
			need, r.header.FrameCount, r.source.Size(), ErrTruncated)
	}
	return nil
}

// FooterBytes reads the XML footer region (footer offset to end of file).
func (r *Reader) FooterBytes() ([]byte, error) {
	if r.header.Version != VersionModern {
		return nil, nil
	}
	length := r.source.Size() - r.header.FooterOffset
	if length <= 0 {
		return nil, fmt.Errorf("empty xml footer region: %w", ErrBadFooterOffset)
	}
	out := make([]byte, length)
	if _, err := r.source.ReadAt(out, r.header.FooterOffset); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return out, nil
}

func (r *Reader) frameOffset(i int) int64 {
	return int64(HeaderSize) + int64(i)*int64(r.FrameStride())
}

// Frame decodes a single frame block. Frames are independently addressable,
// so this supports both sequential and random access.
func (r *Reader) Frame(i int) (Frame, error) {
	if r.source == nil {
		return Frame{}, errors.New("reader is closed")
	}
	if i < 0 || i >= r.header.FrameCount {
		return Frame{}, fmt.Errorf("frame %d out of range 0..%d", i, r.header.FrameCount-1)
	}
	stride := r.FrameStride()
	view, err := sliceExact(r.source, r.frameOffset(i), stride)
	if err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			return Frame{}, fmt.Errorf("frame %d short read: %w", i, ErrTruncated)
		}
		return Frame{}, err
	}
	f := Frame{Index: i, ROIData: make([][]byte, len(r.rois))}
	for k, roi := range r.rois {
		buf := make([]byte, roi.ByteSize)
		copy(buf, view[roi.FrameOffset:roi.FrameOffset+roi.ByteSize])
		f.ROIData[k] = buf
	}
	if r.trackSize > 0 {
		f.Tracking = make([]byte, r.trackSize)
		copy(f.Tracking, view[r.roiBytes:stride])
	}
	if r.metrics != nil {
		r.metrics.AddFrame(int64(stride))
	}
	return f, nil
}

// DecodeAll reads every frame into per-ROI tensors. With workers > 1 the
// frame index range is split across goroutines, each holding its own read
// handle; the resolved layout is immutable, so the only shared writes are
// to disjoint tensor ranges.
func (r *Reader) DecodeAll(workers int) (*RawFrames, error) {
	if r.source == nil {
		return nil, errors.New("reader is closed")
	}
	count := r.header.FrameCount
	out := &RawFrames{Tensors: make([][]byte, len(r.rois)), TrackSize: r.trackSize}
	for k, roi := range r.rois {
		out.Tensors[k] = make([]byte, count*roi.ByteSize)
	}
	if r.trackSize > 0 {
		out.Tracking = make([]byte, count*r.trackSize)
	}
	if count == 0 {
		return out, nil
	}

	if workers > count {
		workers = count
	}
	if workers <= 1 {
		if err := r.decodeRange(r.source, out, 0, count); err != nil {
			return nil, err
		}
		return out, nil
	}

	var wg sync.WaitGroup
	errs := make([]error, workers)
	chunk := (count + workers - 1) / workers
	for w := 0; w < workers; w++ {
		lo := w * chunk
		hi := lo + chunk
		if hi > count {
			hi = count
		}
		if lo >= hi {
			break
		}
		wg.Add(1)
		go func(w, lo, hi int) {
			defer wg.Done()
			src, err := openFileSource(r.path)
			if err != nil {
				errs[w] = err
				return
			}
			defer src.Close()
			errs[w] = r.decodeRange(src, out, lo, hi)
		}(w, lo, hi)
	}
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (r *Reader) decodeRange(src byteSource, out *RawFrames, lo, hi int) error {
	stride := r.FrameStride()
	for i := lo; i < hi; i++ {
		view, err := sliceExact(src, r.frameOffset(i), stride)
		if err != nil {
			if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
				return fmt.Errorf("frame %d short read: %w", i, ErrTruncated)
			}
			return err
		}
		for k, roi := range r.rois {
			dst := out.Tensors[k][i*roi.ByteSize : (i+1)*roi.ByteSize]
			copy(dst, view[roi.FrameOffset:roi.FrameOffset+roi.ByteSize])
		}
		if r.trackSize > 0 {
			dst := out.Tracking[i*r.trackSize : (i+1)*r.trackSize]
			copy(dst, view[r.roiBytes:stride])
		}
		if r.metrics != nil {
			r.metrics.AddFrame(int64(stride))
		}
	}
	return nil
}
