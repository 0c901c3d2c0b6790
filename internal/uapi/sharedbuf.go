package uapi

import (
	"encoding/binary"

	"github.com/qcrqa/crqa-accel/internal/constants"
)

// SharedBuffer offsets are relative to constants.SharedBufferOffset
// (spec §4.3.2).
const (
	SharedBufR       = constants.SharedBufROffset
	SharedBufOpcode  = constants.SharedBufOpOffset
	SharedBufID      = constants.SharedBufIDOffset
	SharedBufSig1    = constants.SharedBufSig1Off
	SharedBufSig2    = constants.SharedBufSig2Off
	SharedBufMetrics = constants.SharedBufMetrics

	// SharedBufferSize is the logical size of the shared-buffer region
	// (R + opcode + id + sig1 + sig2 + metrics), padded implicitly by
	// the larger 2 MiB region but logically this many bytes are live.
	SharedBufferSize = SharedBufMetrics + 8*8
)

// EncodeSharedBuffer writes R, opcode, id, sig1, sig2 into buf (which
// must be at least SharedBufferSize bytes) using the shared-buffer
// layout. It is used by both the Client (filling a real mmap'd region)
// and tests (filling an in-memory fake).
func EncodeSharedBuffer(buf []byte, r float64, opcode uint32, id uint64, sig1, sig2 *[constants.N]float64) {
	putf64(buf[SharedBufR:], r)
	putu32(buf[SharedBufOpcode:], opcode)
	putu64(buf[SharedBufID:], id)
	for i, v := range sig1 {
		putf64(buf[SharedBufSig1+i*8:], v)
	}
	for i, v := range sig2 {
		putf64(buf[SharedBufSig2+i*8:], v)
	}
}

// DecodeSharedBufferRequest reads R, opcode, id, sig1, sig2 back out
// of buf.
func DecodeSharedBufferRequest(buf []byte) (r float64, opcode uint32, id uint64, sig1, sig2 [constants.N]float64) {
	r = getf64(buf[SharedBufR:])
	opcode = getu32(buf[SharedBufOpcode:])
	id = getu64(buf[SharedBufID:])
	for i := range sig1 {
		sig1[i] = getf64(buf[SharedBufSig1+i*8:])
	}
	for i := range sig2 {
		sig2[i] = getf64(buf[SharedBufSig2+i*8:])
	}
	return
}

// EncodeSharedBufferMetrics writes the eight metrics into the shared
// buffer's metrics region.
func EncodeSharedBufferMetrics(buf []byte, bundle [8]float64) {
	for i, v := range bundle {
		putf64(buf[SharedBufMetrics+i*8:], v)
	}
}

// DecodeSharedBufferMetrics reads the eight metrics back out.
func DecodeSharedBufferMetrics(buf []byte) (bundle [8]float64) {
	for i := range bundle {
		bundle[i] = getf64(buf[SharedBufMetrics+i*8:])
	}
	return
}

func putf64(b []byte, v float64) { binary.LittleEndian.PutUint64(b, float64bits(v)) }
func getf64(b []byte) float64    { return float64frombits(binary.LittleEndian.Uint64(b)) }
func putu32(b []byte, v uint32)  { binary.LittleEndian.PutUint32(b, v) }
func getu32(b []byte) uint32     { return binary.LittleEndian.Uint32(b) }
func putu64(b []byte, v uint64)  { binary.LittleEndian.PutUint64(b, v) }
func getu64(b []byte) uint64     { return binary.LittleEndian.Uint64(b) }
