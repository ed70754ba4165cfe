package trace

import (
	"encoding/binary"
	"fmt"
	"math"
)

// codec is the fixed-layout record coder for one container version (or one of
// the headerless legacy formats). A reader picks its codec exactly once at
// open time; there is no per-record format sniffing.
type codec interface {
	// size is the fixed on-disk record size in bytes.
	size() int
	// decode fills req from b, which holds at least size() bytes.
	decode(b []byte, req *Request)
	// encode writes req into b, which holds at least size() bytes.
	encode(b []byte, req *Request)
}

// featureSlots maps container versions to their embedded 32-bit feature slot
// counts. Versions absent from this table are rejected at open time.
var featureSlots = map[uint64]int{
	1: 0, 2: 0, 3: 0,
	4: 1, 5: 2, 6: 4, 7: 8, 8: 16,
}

// SupportedVersion reports whether v is a container version this package can
// decode.
func SupportedVersion(v uint64) bool {
	_, ok := featureSlots[v]
	return ok
}

func codecForVersion(v uint64) (codec, error) {
	switch {
	case v == 1:
		return v1Codec{}, nil
	case v == 2:
		return v2Codec{}, nil
	case v >= 3 && v <= 8:
		return extCodec{features: featureSlots[v]}, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, v)
	}
}

// v1Codec is the minimal 24-byte layout: clock u32, id u64, size u32,
// next-access i64. The headerless oracle format shares this layout.
type v1Codec struct{}

func (v1Codec) size() int { return 24 }

func (v1Codec) decode(b []byte, req *Request) {
	*req = Request{
		Clock:      binary.LittleEndian.Uint32(b[0:4]),
		ID:         binary.LittleEndian.Uint64(b[4:12]),
		Size:       uint64(binary.LittleEndian.Uint32(b[12:16])),
		NextAccess: normalizeNextAccess(int64(binary.LittleEndian.Uint64(b[16:24]))),
	}
}

func (v1Codec) encode(b []byte, req *Request) {
	binary.LittleEndian.PutUint32(b[0:4], req.Clock)
	binary.LittleEndian.PutUint64(b[4:12], req.ID)
	binary.LittleEndian.PutUint32(b[12:16], uint32(req.Size))
	binary.LittleEndian.PutUint64(b[16:24], uint64(req.NextAccess))
}

// v2Codec adds a packed op/tenant word: clock u32, id u64, size u32,
// op u8 + tenant u24, next-access i64. 28 bytes.
type v2Codec struct{}

func (v2Codec) size() int { return 28 }

func (v2Codec) decode(b []byte, req *Request) {
	opTenant := binary.LittleEndian.Uint32(b[16:20])
	*req = Request{
		Clock:      binary.LittleEndian.Uint32(b[0:4]),
		ID:         binary.LittleEndian.Uint64(b[4:12]),
		Size:       uint64(binary.LittleEndian.Uint32(b[12:16])),
		Op:         Op(opTenant & 0xff),
		Tenant:     opTenant >> 8,
		NextAccess: normalizeNextAccess(int64(binary.LittleEndian.Uint64(b[20:28]))),
	}
}

func (v2Codec) encode(b []byte, req *Request) {
	binary.LittleEndian.PutUint32(b[0:4], req.Clock)
	binary.LittleEndian.PutUint64(b[4:12], req.ID)
	binary.LittleEndian.PutUint32(b[12:16], uint32(req.Size))
	binary.LittleEndian.PutUint32(b[16:20], uint32(req.Op)|req.Tenant<<8)
	binary.LittleEndian.PutUint64(b[20:28], uint64(req.NextAccess))
}

// extCodec covers versions 3 through 8: clock u32, id u64, size u64,
// op u8 + tenant u24, ttl u32, next-access i64, then `features` embedded
// 32-bit slots. 36 bytes plus 4 per feature slot.
type extCodec struct {
	features int
}

func (c extCodec) size() int { return 36 + 4*c.features }

func (c extCodec) decode(b []byte, req *Request) {
	opTenant := binary.LittleEndian.Uint32(b[20:24])
	*req = Request{
		Clock:        binary.LittleEndian.Uint32(b[0:4]),
		ID:           binary.LittleEndian.Uint64(b[4:12]),
		Size:         binary.LittleEndian.Uint64(b[12:20]),
		Op:           Op(opTenant & 0xff),
		Tenant:       opTenant >> 8,
		TTL:          binary.LittleEndian.Uint32(b[24:28]),
		NextAccess:   normalizeNextAccess(int64(binary.LittleEndian.Uint64(b[28:36]))),
		FeatureCount: c.features,
	}
	for i := 0; i < c.features; i++ {
		req.Features[i] = binary.LittleEndian.Uint32(b[36+4*i : 40+4*i])
	}
}

func (c extCodec) encode(b []byte, req *Request) {
	binary.LittleEndian.PutUint32(b[0:4], req.Clock)
	binary.LittleEndian.PutUint64(b[4:12], req.ID)
	binary.LittleEndian.PutUint64(b[12:20], req.Size)
	binary.LittleEndian.PutUint32(b[20:24], uint32(req.Op)|req.Tenant<<8)
	binary.LittleEndian.PutUint32(b[24:28], req.TTL)
	binary.LittleEndian.PutUint64(b[28:36], uint64(req.NextAccess))
	for i := 0; i < c.features; i++ {
		binary.LittleEndian.PutUint32(b[36+4*i:40+4*i], req.Features[i])
	}
}

// objIDCodec decodes the bare object-identifier format: one u64 per record.
// Size defaults to 1 so object-count simulations still work, and next-access
// is unknown.
type objIDCodec struct{}

func (objIDCodec) size() int { return 8 }

func (objIDCodec) decode(b []byte, req *Request) {
	*req = Request{
		ID:         binary.LittleEndian.Uint64(b[0:8]),
		Size:       1,
		NextAccess: NoNextAccess,
	}
}

func (objIDCodec) encode(b []byte, req *Request) {
	binary.LittleEndian.PutUint64(b[0:8], req.ID)
}

// sizeFits reports whether a request's size survives the version's on-disk
// width. Versions 1 and 2 store sizes as u32.
func sizeFits(version uint64, size uint64) bool {
	if version <= 2 {
		return size <= math.MaxUint32
	}
	return true
}
