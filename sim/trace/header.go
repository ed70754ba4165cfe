package trace

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"
)

const (
	// traceMagic is the 64-bit constant written at both ends of the fixed
	// container header. Start and end magic must match each other and this
	// constant, or the trace is rejected at open time.
	traceMagic uint64 = 0x4d52435452414345 // "MRCTRACE"

	// TopKSlots is the fixed width of the header's most-common tables.
	TopKSlots = 16

	// statSize is the embedded TraceStat block size:
	// 9 u64/i64 scalars, four 16-slot tables of (u64 value, f64 fraction),
	// and a trailing f64 skewness.
	statSize = 9*8 + 4*TopKSlots*16 + 8

	// HeaderSize is the fixed container header size: start magic, version,
	// stat block, end magic. Reading it costs the same regardless of how
	// long the trace body is.
	HeaderSize = 8 + 8 + statSize + 8
)

// MostCommon is one slot of a bounded most-common table: a value and its
// fractional share of all requests. Empty slots are zero.
type MostCommon struct {
	Value    uint64
	Fraction float64
}

// TraceStat is the aggregate statistics block embedded in the container
// header. It is computed once at write time and read back without scanning
// the trace body, which is what makes O(1) trace triage possible.
type TraceStat struct {
	NumRequests   uint64
	NumObjects    uint64
	RequestBytes  uint64 // sum of sizes over all requests
	DistinctBytes uint64 // sum of sizes over distinct objects (working set)

	NumReads   uint64
	NumWrites  uint64
	NumDeletes uint64

	StartTime int64
	EndTime   int64

	CommonSizes       [TopKSlots]MostCommon
	CommonFrequencies [TopKSlots]MostCommon
	CommonTenants     [TopKSlots]MostCommon
	CommonTTLs        [TopKSlots]MostCommon

	// Skewness estimates how skewed the popularity distribution is, computed
	// over per-object access counts.
	Skewness float64
}

// Header is the fixed-size leading block of a container trace. It is decoded
// once at open time and immutable for the reader's lifetime.
type Header struct {
	Version uint64
	Stat    TraceStat
}

func decodeHeader(b []byte) (*Header, error) {
	if len(b) < HeaderSize {
		return nil, fmt.Errorf("%w: %d bytes, need %d for header", ErrInvalidTrace, len(b), HeaderSize)
	}
	start := binary.LittleEndian.Uint64(b[0:8])
	end := binary.LittleEndian.Uint64(b[HeaderSize-8 : HeaderSize])
	if start != end || start != traceMagic {
		return nil, fmt.Errorf("%w: start magic %#x, end magic %#x", ErrInvalidTrace, start, end)
	}
	h := &Header{Version: binary.LittleEndian.Uint64(b[8:16])}
	if !SupportedVersion(h.Version) {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, h.Version)
	}
	decodeStat(b[16:16+statSize], &h.Stat)
	return h, nil
}

func (h *Header) encode(b []byte) {
	binary.LittleEndian.PutUint64(b[0:8], traceMagic)
	binary.LittleEndian.PutUint64(b[8:16], h.Version)
	encodeStat(b[16:16+statSize], &h.Stat)
	binary.LittleEndian.PutUint64(b[HeaderSize-8:HeaderSize], traceMagic)
}

func decodeStat(b []byte, s *TraceStat) {
	s.NumRequests = binary.LittleEndian.Uint64(b[0:8])
	s.NumObjects = binary.LittleEndian.Uint64(b[8:16])
	s.RequestBytes = binary.LittleEndian.Uint64(b[16:24])
	s.DistinctBytes = binary.LittleEndian.Uint64(b[24:32])
	s.NumReads = binary.LittleEndian.Uint64(b[32:40])
	s.NumWrites = binary.LittleEndian.Uint64(b[40:48])
	s.NumDeletes = binary.LittleEndian.Uint64(b[48:56])
	s.StartTime = int64(binary.LittleEndian.Uint64(b[56:64]))
	s.EndTime = int64(binary.LittleEndian.Uint64(b[64:72]))
	off := 72
	off = decodeTable(b, off, &s.CommonSizes)
	off = decodeTable(b, off, &s.CommonFrequencies)
	off = decodeTable(b, off, &s.CommonTenants)
	off = decodeTable(b, off, &s.CommonTTLs)
	s.Skewness = math.Float64frombits(binary.LittleEndian.Uint64(b[off : off+8]))
}

func encodeStat(b []byte, s *TraceStat) {
	binary.LittleEndian.PutUint64(b[0:8], s.NumRequests)
	binary.LittleEndian.PutUint64(b[8:16], s.NumObjects)
	binary.LittleEndian.PutUint64(b[16:24], s.RequestBytes)
	binary.LittleEndian.PutUint64(b[24:32], s.DistinctBytes)
	binary.LittleEndian.PutUint64(b[32:40], s.NumReads)
	binary.LittleEndian.PutUint64(b[40:48], s.NumWrites)
	binary.LittleEndian.PutUint64(b[48:56], s.NumDeletes)
	binary.LittleEndian.PutUint64(b[56:64], uint64(s.StartTime))
	binary.LittleEndian.PutUint64(b[64:72], uint64(s.EndTime))
	off := 72
	off = encodeTable(b, off, &s.CommonSizes)
	off = encodeTable(b, off, &s.CommonFrequencies)
	off = encodeTable(b, off, &s.CommonTenants)
	off = encodeTable(b, off, &s.CommonTTLs)
	binary.LittleEndian.PutUint64(b[off:off+8], math.Float64bits(s.Skewness))
}

func decodeTable(b []byte, off int, tbl *[TopKSlots]MostCommon) int {
	for i := range tbl {
		tbl[i].Value = binary.LittleEndian.Uint64(b[off : off+8])
		tbl[i].Fraction = math.Float64frombits(binary.LittleEndian.Uint64(b[off+8 : off+16]))
		off += 16
	}
	return off
}

func encodeTable(b []byte, off int, tbl *[TopKSlots]MostCommon) int {
	for i := range tbl {
		binary.LittleEndian.PutUint64(b[off:off+8], tbl[i].Value)
		binary.LittleEndian.PutUint64(b[off+8:off+16], math.Float64bits(tbl[i].Fraction))
		off += 16
	}
	return off
}

// String renders the stat block as a human-readable report, one field group
// per line. Empty most-common slots are omitted.
func (s *TraceStat) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "requests:       %d\n", s.NumRequests)
	fmt.Fprintf(&sb, "objects:        %d\n", s.NumObjects)
	fmt.Fprintf(&sb, "request bytes:  %d\n", s.RequestBytes)
	fmt.Fprintf(&sb, "distinct bytes: %d\n", s.DistinctBytes)
	fmt.Fprintf(&sb, "ops:            read=%d write=%d delete=%d\n", s.NumReads, s.NumWrites, s.NumDeletes)
	fmt.Fprintf(&sb, "time range:     [%d, %d]\n", s.StartTime, s.EndTime)
	fmt.Fprintf(&sb, "skewness:       %.4f\n", s.Skewness)
	writeTable(&sb, "top sizes", s.CommonSizes)
	writeTable(&sb, "top frequencies", s.CommonFrequencies)
	writeTable(&sb, "top tenants", s.CommonTenants)
	writeTable(&sb, "top TTLs", s.CommonTTLs)
	return sb.String()
}

func writeTable(sb *strings.Builder, name string, tbl [TopKSlots]MostCommon) {
	wrote := false
	for _, e := range tbl {
		if e.Fraction == 0 {
			continue
		}
		if !wrote {
			fmt.Fprintf(sb, "%s:\n", name)
			wrote = true
		}
		fmt.Fprintf(sb, "  %12d  %6.2f%%\n", e.Value, e.Fraction*100)
	}
}
