package trace

import "errors"

// Sentinel errors for trace opening and iteration. End-of-stream is always
// reported as io.EOF so callers can tell a finished trace apart from a
// malformed one.
var (
	// ErrInvalidTrace is returned by Open when the container header's start
	// and end magics disagree or do not match the expected constant.
	ErrInvalidTrace = errors.New("trace: invalid container header")

	// ErrUnsupportedVersion is returned by Open for a header version outside
	// the supported 1..8 range. Unknown versions are rejected outright rather
	// than decoded with a guessed layout.
	ErrUnsupportedVersion = errors.New("trace: unsupported format version")

	// ErrBackwardCompressed is returned by ReadPrev and SeekEnd on compressed
	// sources. Decompression is forward-only; failing loudly beats silently
	// returning wrong records.
	ErrBackwardCompressed = errors.New("trace: backward read on compressed source")

	// ErrDecompression marks a corrupt or truncated compressed stream. It is
	// never folded into io.EOF, so a truncated trace cannot pass for a
	// finished one.
	ErrDecompression = errors.New("trace: decompression failed")

	// ErrClosed is returned by operations on a closed reader or writer.
	ErrClosed = errors.New("trace: closed")
)
