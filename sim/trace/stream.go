package trace

import (
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"
)

// recordStream is the forward-only byte source behind compressed readers.
// The decompressor pulls further compressed blocks lazily as more decoded
// bytes are requested; its sliding buffers are mutable per-reader state and
// are never shared between clones.
type recordStream struct {
	path        string
	compression Compression

	f   *os.File
	zr  *zstd.Decoder
	gz  *gzip.Reader
	src io.Reader

	buf      []byte // reused record scratch
	consumed int64  // records handed out since the last rewind
}

func newRecordStream(path string, c Compression) (*recordStream, error) {
	s := &recordStream{path: path, compression: c}
	if err := s.open(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *recordStream) open() error {
	f, err := os.Open(s.path)
	if err != nil {
		return errors.Wrap(err, "open trace")
	}
	switch s.compression {
	case CompressionZstd:
		zr, err := zstd.NewReader(f)
		if err != nil {
			f.Close()
			return fmt.Errorf("%w: %v", ErrDecompression, err)
		}
		s.f, s.zr, s.src = f, zr, zr
	case CompressionGzip:
		gz, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return fmt.Errorf("%w: %v", ErrDecompression, err)
		}
		s.f, s.gz, s.src = f, gz, gz
	default:
		f.Close()
		return errors.Errorf("recordStream: unsupported compression %d", s.compression)
	}
	return nil
}

func (s *recordStream) recordBuf(n int) []byte {
	if cap(s.buf) < n {
		s.buf = make([]byte, n)
	}
	return s.buf[:n]
}

// readFull fills b from the decompressed stream. A clean end exactly at a
// record boundary is io.EOF. Anything else — a record cut short, a truncated
// frame, a checksum failure — is a decompression error: truncated compressed
// data must never pass for a finished trace.
func (s *recordStream) readFull(b []byte) error {
	if _, err := io.ReadFull(s.src, b); err != nil {
		if err == io.EOF {
			return io.EOF
		}
		return fmt.Errorf("%w: %v", ErrDecompression, err)
	}
	return nil
}

// rewind reopens the stream from the start with a fresh decompression
// context.
func (s *recordStream) rewind() error {
	if err := s.close(); err != nil {
		return err
	}
	s.consumed = 0
	return s.open()
}

func (s *recordStream) close() error {
	if s.zr != nil {
		s.zr.Close()
		s.zr = nil
	}
	if s.gz != nil {
		s.gz.Close()
		s.gz = nil
	}
	if s.f != nil {
		err := s.f.Close()
		s.f = nil
		return err
	}
	return nil
}
