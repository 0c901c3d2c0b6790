// Package uapi defines the wire-level structures shared across the
// Device Model, the IPC client, and the Compute Server: the
// Request/Response frame layout, the MMIO register offsets, and the
// shared-buffer layout. Everything here must match
// original_source's #pragma pack(1) C structs field-for-field.
package uapi

import "github.com/qcrqa/crqa-accel/internal/constants"

// RequestFrame is the fixed-size frame sent from the Device Model to
// the Compute Server. Field order and widths follow the reference
// SystemC server's Input struct: R, sig1[N], sig2[N], opcode, ready.
type RequestFrame struct {
	R      float64
	Sig1   [constants.N]float64
	Sig2   [constants.N]float64
	Opcode uint32
	Ready  int32
}

// ResponseFrame is the fixed-size frame sent back from the Compute
// Server: the eight metrics in protocol order.
type ResponseFrame struct {
	Epsilon        float64
	RecurrenceRate float64
	Determinism    float64
	Laminarity     float64
	TrappingTime   float64
	MaxDiagLine    float64
	Divergence     float64
	Entropy        float64
}

// Sizes, computed from the actual field layout above rather than from
// the (inconsistent) prose arithmetic in the external spec document;
// see DESIGN.md "Open Questions resolved" #1.
const (
	RequestFrameSize  = constants.RequestFrameSize
	ResponseFrameSize = constants.ResponseFrameSize
)
