package uapi

import (
	"encoding/binary"
	"math"
)

func float64bits(v float64) uint64     { return math.Float64bits(v) }
func float64frombits(b uint64) float64 { return math.Float64frombits(b) }

// MarshalRequest encodes a RequestFrame into its wire representation,
// little-endian, tightly packed, field-by-field — deliberately not
// relying on unsafe struct punning so the encoding is correct
// regardless of host endianness or struct padding.
func MarshalRequest(req *RequestFrame) []byte {
	buf := make([]byte, RequestFrameSize)
	off := 0

	binary.LittleEndian.PutUint64(buf[off:], float64bits(req.R))
	off += 8
	for _, v := range req.Sig1 {
		binary.LittleEndian.PutUint64(buf[off:], float64bits(v))
		off += 8
	}
	for _, v := range req.Sig2 {
		binary.LittleEndian.PutUint64(buf[off:], float64bits(v))
		off += 8
	}
	binary.LittleEndian.PutUint32(buf[off:], req.Opcode)
	off += 4
	binary.LittleEndian.PutUint32(buf[off:], uint32(req.Ready))
	off += 4

	return buf
}

// UnmarshalRequest decodes a wire-format RequestFrame. It returns
// ErrShortFrame if data is shorter than RequestFrameSize.
func UnmarshalRequest(data []byte) (RequestFrame, error) {
	var req RequestFrame
	if len(data) < RequestFrameSize {
		return req, ErrShortFrame
	}

	off := 0
	req.R = float64frombits(binary.LittleEndian.Uint64(data[off:]))
	off += 8
	for i := range req.Sig1 {
		req.Sig1[i] = float64frombits(binary.LittleEndian.Uint64(data[off:]))
		off += 8
	}
	for i := range req.Sig2 {
		req.Sig2[i] = float64frombits(binary.LittleEndian.Uint64(data[off:]))
		off += 8
	}
	req.Opcode = binary.LittleEndian.Uint32(data[off:])
	off += 4
	req.Ready = int32(binary.LittleEndian.Uint32(data[off:]))
	off += 4

	return req, nil
}

// MarshalResponse encodes a ResponseFrame into its wire representation.
func MarshalResponse(resp *ResponseFrame) []byte {
	buf := make([]byte, ResponseFrameSize)
	values := [8]float64{
		resp.Epsilon, resp.RecurrenceRate, resp.Determinism, resp.Laminarity,
		resp.TrappingTime, resp.MaxDiagLine, resp.Divergence, resp.Entropy,
	}
	for i, v := range values {
		binary.LittleEndian.PutUint64(buf[i*8:], float64bits(v))
	}
	return buf
}

// UnmarshalResponse decodes a wire-format ResponseFrame.
func UnmarshalResponse(data []byte) (ResponseFrame, error) {
	var resp ResponseFrame
	if len(data) < ResponseFrameSize {
		return resp, ErrShortFrame
	}
	var values [8]float64
	for i := range values {
		values[i] = float64frombits(binary.LittleEndian.Uint64(data[i*8:]))
	}
	resp.Epsilon = values[0]
	resp.RecurrenceRate = values[1]
	resp.Determinism = values[2]
	resp.Laminarity = values[3]
	resp.TrappingTime = values[4]
	resp.MaxDiagLine = values[5]
	resp.Divergence = values[6]
	resp.Entropy = values[7]
	return resp, nil
}

// FrameError is a marshal/unmarshal error, analogous to the teacher's
// MarshalError string-error type.
type FrameError string

func (e FrameError) Error() string { return string(e) }

// ErrShortFrame indicates a buffer shorter than the expected frame size.
const ErrShortFrame FrameError = "uapi: short frame"
