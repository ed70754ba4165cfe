package trace

import (
	"bytes"
	"io"
	"os"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat"
)

// WriterOption configures NewWriter.
type WriterOption func(*writerOptions)

type writerOptions struct {
	format      Format
	compression Compression
}

// WithWriterFormat selects the output record layout family. Headerless
// formats skip the container header and its statistics block.
func WithWriterFormat(f Format) WriterOption {
	return func(o *writerOptions) { o.format = f }
}

// WithWriterCompression compresses the output. CompressionAuto infers from
// the file extension, same as the reader.
func WithWriterCompression(c Compression) WriterOption {
	return func(o *writerOptions) { o.compression = c }
}

// Writer builds a trace file. Container writers accumulate the header
// statistics block (totals, op counts, time range, most-common tables,
// popularity skewness) as records arrive and emit it ahead of the records on
// Close. Records are buffered in memory until then: a compressed container
// cannot patch its header in place, so the whole file is written once, in
// order.
type Writer struct {
	path    string
	opts    writerOptions
	version uint64
	codec   codec

	records bytes.Buffer
	scratch []byte

	numRequests  uint64
	requestBytes uint64
	numReads     uint64
	numWrites    uint64
	numDeletes   uint64
	startTime    int64
	endTime      int64
	started      bool

	objSize map[uint64]uint64 // first-seen size per object
	objFreq map[uint64]uint64 // access count per object
	sizes   *topK[uint64]
	tenants *topK[uint64]
	ttls    *topK[uint64]

	closed bool
}

// NewWriter creates a trace writer. version selects the container record
// layout and must be supported; it is ignored for headerless formats.
func NewWriter(path string, version uint64, opts ...WriterOption) (*Writer, error) {
	var o writerOptions
	for _, opt := range opts {
		opt(&o)
	}
	w := &Writer{
		path:    path,
		opts:    o,
		version: version,
		objSize: make(map[uint64]uint64),
		objFreq: make(map[uint64]uint64),
		sizes:   newTopK[uint64](TopKSlots),
		tenants: newTopK[uint64](TopKSlots),
		ttls:    newTopK[uint64](TopKSlots),
	}
	switch o.format {
	case FormatContainer:
		c, err := codecForVersion(version)
		if err != nil {
			return nil, err
		}
		w.codec = c
	case FormatOracle:
		w.codec = v1Codec{}
	case FormatObjectID:
		w.codec = objIDCodec{}
	}
	w.scratch = make([]byte, w.codec.size())
	return w, nil
}

// Write appends one record and folds it into the pending statistics.
func (w *Writer) Write(req *Request) error {
	if w.closed {
		return ErrClosed
	}
	if w.opts.format == FormatContainer && !sizeFits(w.version, req.Size) {
		return errors.Errorf("object size %d does not fit version %d records", req.Size, w.version)
	}
	w.codec.encode(w.scratch, req)
	w.records.Write(w.scratch)

	w.numRequests++
	w.requestBytes += req.Size
	switch req.Op {
	case OpRead:
		w.numReads++
	case OpWrite:
		w.numWrites++
	case OpDelete:
		w.numDeletes++
	}
	clock := int64(req.Clock)
	if !w.started {
		w.startTime, w.endTime = clock, clock
		w.started = true
	} else {
		if clock < w.startTime {
			w.startTime = clock
		}
		if clock > w.endTime {
			w.endTime = clock
		}
	}
	if _, seen := w.objSize[req.ID]; !seen {
		w.objSize[req.ID] = req.Size
	}
	w.objFreq[req.ID]++
	w.sizes.observe(req.Size, 1)
	w.tenants.observe(uint64(req.Tenant), 1)
	w.ttls.observe(uint64(req.TTL), 1)
	return nil
}

func (w *Writer) buildStat() TraceStat {
	s := TraceStat{
		NumRequests:  w.numRequests,
		NumObjects:   uint64(len(w.objSize)),
		RequestBytes: w.requestBytes,
		NumReads:     w.numReads,
		NumWrites:    w.numWrites,
		NumDeletes:   w.numDeletes,
		StartTime:    w.startTime,
		EndTime:      w.endTime,
	}
	for _, sz := range w.objSize {
		s.DistinctBytes += sz
	}

	// Popularity: per-object access counts feed both the most-common
	// frequency table and the skewness estimate.
	freqs := newTopK[uint64](TopKSlots)
	counts := make([]float64, 0, len(w.objFreq))
	for _, n := range w.objFreq {
		freqs.observe(n, 1)
		counts = append(counts, float64(n))
	}
	if len(counts) > 0 {
		s.Skewness = stat.Skew(counts, nil)
	}

	ident := func(v uint64) uint64 { return v }
	s.CommonSizes = w.sizes.table(w.numRequests, ident)
	s.CommonFrequencies = freqs.table(uint64(len(w.objFreq)), ident)
	s.CommonTenants = w.tenants.table(w.numRequests, ident)
	s.CommonTTLs = w.ttls.table(w.numRequests, ident)
	return s
}

// Close writes the file (header first for container traces, then all
// records) through the configured compressor and syncs it to disk.
func (w *Writer) Close() error {
	if w.closed {
		return ErrClosed
	}
	w.closed = true

	f, err := os.Create(w.path)
	if err != nil {
		return errors.Wrap(err, "create trace")
	}

	var out io.Writer = f
	var finish func() error
	switch detectCompression(w.path, w.opts.compression) {
	case CompressionZstd:
		zw, err := zstd.NewWriter(f)
		if err != nil {
			f.Close()
			return errors.Wrap(err, "zstd writer")
		}
		out, finish = zw, zw.Close
	case CompressionGzip:
		gz := gzip.NewWriter(f)
		out, finish = gz, gz.Close
	}

	if w.opts.format == FormatContainer {
		hdr := make([]byte, HeaderSize)
		h := Header{Version: w.version, Stat: w.buildStat()}
		h.encode(hdr)
		if _, err := out.Write(hdr); err != nil {
			f.Close()
			return errors.Wrap(err, "write header")
		}
	}
	if _, err := out.Write(w.records.Bytes()); err != nil {
		f.Close()
		return errors.Wrap(err, "write records")
	}
	if finish != nil {
		if err := finish(); err != nil {
			f.Close()
			return errors.Wrap(err, "finish compression")
		}
	}
	return f.Close()
}
