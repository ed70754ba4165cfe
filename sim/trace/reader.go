package trace

import (
	"io"
	"os"
	"path/filepath"
	"sync/atomic"

	mmap "github.com/edsrzf/mmap-go"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Format selects the record layout family at open time. There is no content
// sniffing: a caller who opens an oracle trace as a container gets a header
// error, not a guess.
type Format int

const (
	// FormatContainer is the versioned binary container with a fixed
	// statistics header. The record layout is selected by the header version.
	FormatContainer Format = iota
	// FormatOracle is the headerless legacy format: fixed 24-byte records
	// with no statistics block.
	FormatOracle
	// FormatObjectID is the bare format of one 8-byte object id per record.
	FormatObjectID
)

func (f Format) String() string {
	switch f {
	case FormatContainer:
		return "container"
	case FormatOracle:
		return "oracle"
	case FormatObjectID:
		return "objid"
	default:
		return "unknown"
	}
}

// ParseFormat maps a config string to a Format.
func ParseFormat(s string) (Format, error) {
	switch s {
	case "", "container":
		return FormatContainer, nil
	case "oracle":
		return FormatOracle, nil
	case "objid":
		return FormatObjectID, nil
	default:
		return 0, errors.Errorf("unknown trace format %q", s)
	}
}

// Compression selects how the underlying byte source is decoded.
type Compression int

const (
	// CompressionAuto infers compression from the file extension
	// (.zst/.zstd, .gz); anything else is read as raw bytes.
	CompressionAuto Compression = iota
	CompressionNone
	CompressionZstd
	CompressionGzip
)

type options struct {
	format       Format
	compression  Compression
	skipZeroSize bool
}

// Option configures Open.
type Option func(*options)

// WithFormat selects the record layout family. Default is FormatContainer.
func WithFormat(f Format) Option {
	return func(o *options) { o.format = f }
}

// WithCompression overrides extension-based compression detection.
func WithCompression(c Compression) Option {
	return func(o *options) { o.compression = c }
}

// WithSkipZeroSize makes forward reads silently drop zero-size requests.
// Backward reads never skip, so a reverse scan stays the exact mirror of the
// forward one.
func WithSkipZeroSize() Option {
	return func(o *options) { o.skipZeroSize = true }
}

func detectCompression(path string, c Compression) Compression {
	if c != CompressionAuto {
		return c
	}
	switch filepath.Ext(path) {
	case ".zst", ".zstd":
		return CompressionZstd
	case ".gz":
		return CompressionGzip
	default:
		return CompressionNone
	}
}

// sharedMapping is a reference-counted read-only mapping of an uncompressed
// trace file. Reader clones reference the same mapping and hold only their
// own cursors; nobody mutates the mapped bytes.
type sharedMapping struct {
	f    *os.File
	data mmap.MMap
	refs atomic.Int32
}

func mapFile(path string) (*sharedMapping, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open trace")
	}
	data, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, errors.Wrapf(err, "mmap trace %s", path)
	}
	m := &sharedMapping{f: f, data: data}
	m.refs.Store(1)
	return m, nil
}

func (m *sharedMapping) retain() {
	m.refs.Add(1)
}

func (m *sharedMapping) release() error {
	if m.refs.Add(-1) != 0 {
		return nil
	}
	err := m.data.Unmap()
	if cerr := m.f.Close(); err == nil {
		err = cerr
	}
	return err
}

// Reader decodes a request stream from a trace file. Uncompressed traces are
// memory-mapped and support forward iteration, backward iteration, and cheap
// clones over the shared mapping. Compressed traces stream through a
// decompressor and are strictly forward-only.
type Reader struct {
	path string
	opts options

	codec   codec
	header  *Header // nil for headerless formats
	version uint64

	mapping *sharedMapping // uncompressed sources
	stream  *recordStream  // compressed sources

	dataOff int64 // byte offset of the first record
	pos     int64 // record cursor (mapped sources only)
	closed  bool
}

// Open opens a trace for reading. For container traces it validates the
// header magics and version before exposing a single record; a trace that
// fails validation is never partially readable.
func Open(path string, opts ...Option) (*Reader, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return openWithOptions(path, o)
}

func openWithOptions(path string, o options) (*Reader, error) {
	r := &Reader{path: path, opts: o}

	switch o.format {
	case FormatOracle:
		r.codec = v1Codec{}
	case FormatObjectID:
		r.codec = objIDCodec{}
	}

	if detectCompression(path, o.compression) == CompressionNone {
		m, err := mapFile(path)
		if err != nil {
			return nil, err
		}
		r.mapping = m
		if o.format == FormatContainer {
			h, err := decodeHeader(m.data)
			if err != nil {
				m.release()
				return nil, err
			}
			codec, err := codecForVersion(h.Version)
			if err != nil {
				m.release()
				return nil, err
			}
			r.header, r.codec, r.version = h, codec, h.Version
			r.dataOff = HeaderSize
		}
	} else {
		s, err := newRecordStream(path, detectCompression(path, o.compression))
		if err != nil {
			return nil, err
		}
		r.stream = s
		if o.format == FormatContainer {
			buf := make([]byte, HeaderSize)
			if err := s.readFull(buf); err != nil {
				s.close()
				if err == io.EOF {
					return nil, errors.Wrap(ErrInvalidTrace, "trace shorter than header")
				}
				return nil, err
			}
			h, err := decodeHeader(buf)
			if err != nil {
				s.close()
				return nil, err
			}
			codec, err := codecForVersion(h.Version)
			if err != nil {
				s.close()
				return nil, err
			}
			r.header, r.codec, r.version = h, codec, h.Version
		}
	}

	logrus.Debugf("opened trace %s format=%s version=%d compressed=%t",
		path, o.format, r.version, r.stream != nil)
	return r, nil
}

// Header returns the decoded container header, or nil for headerless formats.
// The header is immutable for the reader's lifetime.
func (r *Reader) Header() *Header { return r.header }

// NumRecords returns the number of whole records in a mapped trace, or -1
// for compressed sources, where the count is unknown until the stream ends.
func (r *Reader) NumRecords() int64 {
	if r.mapping == nil {
		return -1
	}
	return (int64(len(r.mapping.data)) - r.dataOff) / int64(r.codec.size())
}

// Read decodes the next request into req. It returns io.EOF at the end of
// the stream; a trailing partial record also reads as io.EOF, never as a
// garbage request. With WithSkipZeroSize, zero-size requests are dropped
// transparently.
func (r *Reader) Read(req *Request) error {
	for {
		if err := r.readOne(req); err != nil {
			return err
		}
		if r.opts.skipZeroSize && req.Size == 0 {
			continue
		}
		return nil
	}
}

func (r *Reader) readOne(req *Request) error {
	if r.closed {
		return ErrClosed
	}
	size := int64(r.codec.size())
	if r.mapping != nil {
		off := r.dataOff + r.pos*size
		if off+size > int64(len(r.mapping.data)) {
			return io.EOF
		}
		r.codec.decode(r.mapping.data[off:off+size], req)
		r.pos++
		return nil
	}
	buf := r.stream.recordBuf(int(size))
	if err := r.stream.readFull(buf); err != nil {
		return err
	}
	r.codec.decode(buf, req)
	r.stream.consumed++
	return nil
}

// ReadPrev decodes the record immediately before the cursor and moves the
// cursor back, yielding the stream in reverse order. It returns io.EOF at
// the beginning, and ErrBackwardCompressed on compressed sources. Zero-size
// skipping never applies to backward reads.
func (r *Reader) ReadPrev(req *Request) error {
	if r.closed {
		return ErrClosed
	}
	if r.stream != nil {
		return ErrBackwardCompressed
	}
	if r.pos == 0 {
		return io.EOF
	}
	r.pos--
	size := int64(r.codec.size())
	off := r.dataOff + r.pos*size
	r.codec.decode(r.mapping.data[off:off+size], req)
	return nil
}

// Reset rewinds the reader to the first record. On compressed sources this
// reopens the stream with a fresh decompression context and skips past the
// container header, so the cursor lands on record zero, not on header bytes.
func (r *Reader) Reset() error {
	if r.closed {
		return ErrClosed
	}
	if r.mapping != nil {
		r.pos = 0
		return nil
	}
	if err := r.stream.rewind(); err != nil {
		return err
	}
	if r.header != nil {
		if err := r.stream.readFull(make([]byte, HeaderSize)); err != nil {
			return err
		}
	}
	return nil
}

// SeekEnd positions the cursor after the last whole record, so that ReadPrev
// walks the full trace backward. Unsupported on compressed sources.
func (r *Reader) SeekEnd() error {
	if r.closed {
		return ErrClosed
	}
	if r.stream != nil {
		return ErrBackwardCompressed
	}
	r.pos = r.NumRecords()
	return nil
}

// Clone returns an independent reader over the same logical trace. Clones of
// a mapped trace share the read-only mapping and differ only in cursor;
// clones of a compressed trace own a fresh decompression context positioned
// at the same record. Clones must be closed independently.
func (r *Reader) Clone() (*Reader, error) {
	if r.closed {
		return nil, ErrClosed
	}
	if r.mapping != nil {
		r.mapping.retain()
		c := *r
		return &c, nil
	}
	c, err := openWithOptions(r.path, r.opts)
	if err != nil {
		return nil, err
	}
	// Replay to the source position. Forward-only decoders cannot share
	// their mutable buffers, so catching up is the only way to align.
	var req Request
	for i := int64(0); i < r.stream.consumed; i++ {
		if err := c.readOne(&req); err != nil {
			c.Close()
			return nil, errors.Wrap(err, "clone replay")
		}
	}
	return c, nil
}

// Close releases the reader's share of the mapping or its decompression
// context. Closing one clone never disturbs the others.
func (r *Reader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	if r.mapping != nil {
		return r.mapping.release()
	}
	return r.stream.close()
}

// ReadHeader opens a container trace just long enough to decode its header.
// Cost is constant in the trace length, which makes it the cheap triage
// entry point: inspect the stat block, then decide whether a full
// simulation is worth running.
func ReadHeader(path string, opts ...Option) (*Header, error) {
	r, err := Open(path, opts...)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	if r.header == nil {
		return nil, errors.Errorf("trace format %s carries no header", r.opts.format)
	}
	return r.header, nil
}
