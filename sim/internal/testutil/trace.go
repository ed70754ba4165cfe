// Package testutil provides shared test infrastructure for the simulator:
// synthetic trace construction helpers used across the sim, trace, and
// policy test packages.
package testutil

import (
	"path/filepath"
	"testing"

	"github.com/mrc-sim/mrc-sim/sim/trace"
)

// WriteTrace writes the given requests as a container trace of the given
// version into the test's temp dir and returns its path. name controls the
// file extension, and with it compression ("t.bin", "t.bin.zst", "t.bin.gz").
func WriteTrace(t *testing.T, name string, version uint64, reqs []trace.Request) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	w, err := trace.NewWriter(path, version)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	writeAll(t, w, reqs)
	return path
}

// WriteOracleTrace writes reqs in the headerless 24-byte legacy layout.
func WriteOracleTrace(t *testing.T, name string, reqs []trace.Request) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	w, err := trace.NewWriter(path, 1, trace.WithWriterFormat(trace.FormatOracle))
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	writeAll(t, w, reqs)
	return path
}

func writeAll(t *testing.T, w *trace.Writer, reqs []trace.Request) {
	t.Helper()
	for i := range reqs {
		if err := w.Write(&reqs[i]); err != nil {
			t.Fatalf("Write record %d: %v", i, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close writer: %v", err)
	}
}

// Requests builds n single-access requests with distinct ids and a fixed
// size, clocks increasing one second per request.
func Requests(n int, size uint64) []trace.Request {
	reqs := make([]trace.Request, n)
	for i := range reqs {
		reqs[i] = trace.Request{
			Clock:      uint32(i),
			ID:         uint64(i + 1),
			Size:       size,
			NextAccess: trace.NoNextAccess,
			Op:         trace.OpRead,
		}
	}
	return reqs
}

// CyclicRequests builds n requests cycling over `objects` distinct ids, so
// every object is reused, clocks increasing one second per request.
func CyclicRequests(n, objects int, size uint64) []trace.Request {
	reqs := make([]trace.Request, n)
	for i := range reqs {
		reqs[i] = trace.Request{
			Clock:      uint32(i),
			ID:         uint64(i%objects + 1),
			Size:       size,
			NextAccess: trace.NoNextAccess,
			Op:         trace.OpRead,
		}
	}
	return reqs
}
