package trace

import "math"

// MaxFeatures is the largest number of embedded feature slots any container
// version carries (version 8).
const MaxFeatures = 16

// NoNextAccess is the canonical next-access value for an object that is never
// referenced again. On-disk traces may encode it as either -1 or MaxInt64;
// decoders normalize both to this constant.
const NoNextAccess int64 = math.MaxInt64

// Op is the operation kind of a request. Version 1 traces carry no op field
// and decode as OpInvalid.
type Op uint8

const (
	OpInvalid Op = iota
	OpRead
	OpWrite
	OpDelete
)

func (o Op) String() string {
	switch o {
	case OpRead:
		return "read"
	case OpWrite:
		return "write"
	case OpDelete:
		return "delete"
	default:
		return "invalid"
	}
}

// Request is a single decoded access record. Instances are transient: Read
// overwrites the caller-supplied Request in place, and samplers and policies
// consume it before the next Read call.
type Request struct {
	// Clock is the request wall-clock time in seconds.
	Clock uint32
	// ID is the accessed object's identifier.
	ID uint64
	// Size is the object size in bytes. 32-bit on disk for versions 1-2,
	// 64-bit from version 3 on.
	Size uint64
	// NextAccess is the logical timestamp of this object's next access, or
	// NoNextAccess if the object is never reused.
	NextAccess int64

	Op     Op
	Tenant uint32
	TTL    uint32

	// Features holds the record's embedded feature slots; only the first
	// FeatureCount entries are meaningful.
	Features     [MaxFeatures]uint32
	FeatureCount int
}

// normalizeNextAccess maps both on-disk "never reused" sentinels to the
// single canonical NoNextAccess value.
func normalizeNextAccess(v int64) int64 {
	if v == -1 || v == math.MaxInt64 {
		return NoNextAccess
	}
	return v
}
