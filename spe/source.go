package spe

import (
	"errors"
	"io"
	"os"
)

const minReadBlock = 4 << 20

// byteSource is a seekable, read-only byte range over the file. Frame
// decoding is forward and strided, so the file-backed implementation keeps a
// single sliding read buffer; the two backward reads (header, footer) simply
// repoint it.
type byteSource interface {
	Size() int64
	Slice(offset int64, length int) ([]byte, error)
	ReadAt(p []byte, offset int64) (int, error)
	Close() error
}

type fileSource struct {
	file     *os.File
	size     int64
	block    int
	buf      []byte
	bufStart int64
	bufLen   int
}

func openFileSource(path string) (*fileSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	return &fileSource{file: f, size: info.Size(), block: minReadBlock}, nil
}

func (fs *fileSource) Size() int64 { return fs.size }

func (fs *fileSource) Close() error {
	if fs.file == nil {
		return nil
	}
	err := fs.file.Close()
	fs.file = nil
	fs.buf = nil
	fs.bufLen = 0
	return err
}

func (fs *fileSource) fill(offset int64, length int) error {
	if fs.file == nil {
		return io.EOF
	}
	if length > fs.block {
		next := fs.block
		for next < length {
			next *= 2
		}
		fs.block = next
		fs.buf = nil
	}
	if fs.buf == nil {
		fs.buf = make([]byte, fs.block)
		fs.bufLen = 0
	}
	if offset >= fs.bufStart && offset+int64(length) <= fs.bufStart+int64(fs.bufLen) {
		return nil
	}
	if offset >= fs.size {
		fs.bufLen = 0
		return io.EOF
	}
	want := fs.block
	if remain := fs.size - offset; int64(want) > remain {
		want = int(remain)
	}
	n, err := fs.file.ReadAt(fs.buf[:want], offset)
	fs.bufStart = offset
	fs.bufLen = n
	if err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	if n == 0 {
		return io.EOF
	}
	if n < want {
		return io.EOF
	}
	return nil
}

// Slice returns a view of length bytes at offset. The view is valid until
// the next Slice or ReadAt call. A view shorter than requested is returned
// together with io.EOF.
func (fs *fileSource) Slice(offset int64, length int) ([]byte, error) {
	if length <= 0 {
		return []byte{}, nil
	}
	if offset < 0 {
		return nil, io.ErrUnexpectedEOF
	}
	if offset >= fs.size {
		return nil, io.EOF
	}
	err := fs.fill(offset, length)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	if fs.bufLen == 0 {
		return nil, io.EOF
	}
	start := int(offset - fs.bufStart)
	if start < 0 || start >= fs.bufLen {
		return nil, io.ErrUnexpectedEOF
	}
	end := start + length
	if end > fs.bufLen {
		end = fs.bufLen
	}
	view := fs.buf[start:end]
	if len(view) < length {
		return view, io.EOF
	}
	return view, nil
}

func (fs *fileSource) ReadAt(p []byte, offset int64) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	view, err := fs.Slice(offset, len(p))
	n := copy(p, view)
	if err != nil && !errors.Is(err, io.EOF) {
		return n, err
	}
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// sliceExact is Slice with an all-or-nothing contract: fewer bytes than
// requested is reported as io.ErrUnexpectedEOF.
func sliceExact(src byteSource, offset int64, length int) ([]byte, error) {
	view, err := src.Slice(offset, length)
	if len(view) < length {
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, err
		}
		return nil, io.ErrUnexpectedEOF
	}
	return view[:length], nil
}
