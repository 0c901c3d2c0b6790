// Package constants centralizes the accelerator's fixed sizes, offsets,
// identifiers, and timing values so no magic numbers leak into the
// protocol, device-model, or driver packages.
package constants

import "time"

// Signal geometry (spec §3, §4.1).
const (
	// N is the fixed signal length every Signal must carry.
	N = 512

	// EmbedDim is the CRQA embedding dimension (m).
	EmbedDim = 3

	// EmbedDelay is the CRQA embedding delay (tau).
	EmbedDelay = 5

	// EmbedLength is L = N - (EmbedDim-1)*EmbedDelay.
	EmbedLength = N - (EmbedDim-1)*EmbedDelay

	// StdFloor is the minimum standard deviation below which
	// normalization substitutes 1 instead of dividing by a near-zero value.
	StdFloor = 1e-12

	// MinDiagLine and MinVertLine are the minimum run lengths counted
	// as a diagonal/vertical line.
	MinDiagLine = 2
	MinVertLine = 2

	// DefaultR is the canonical recurrence threshold used by the
	// reference client.
	DefaultR = 0.15
)

// Bus identity (spec §6).
const (
	VendorID = 0x1234
	DeviceID = 0xdada

	// CharDeviceName is the node name created for the bound device.
	CharDeviceName = "cpcidev_pci"
)

// MMIO region layout (spec §4.3).
const (
	// RegionSize is the size of the single memory region backing both
	// access modes.
	RegionSize = 2 << 20 // 2 MiB

	// DeviceMagic is the identity word readable at offset 0x00.
	DeviceMagic = 0x11223344

	// Register offsets, per-field programming mode (§4.3.1).
	RegMagicOffset      = 0x00
	RegROffset          = 0x08
	RegSig1IndexOffset  = 0x18
	RegSig1ValueOffset  = 0x20
	RegSig2IndexOffset  = 0x28
	RegSig2ValueOffset  = 0x30
	RegOpcodeOffset     = 0x38
	RegTriggerOffset    = 0x40 // read triggers compute, returns epsilon
	RegMetricsOffset    = 0x48 // 0x48..0x78, 7 remaining metrics

	// Shared-buffer layout, single-shot mode (§4.3.2).
	SharedBufferOffset = 0x10000
	SharedBufROffset   = 0
	SharedBufOpOffset  = 8
	SharedBufIDOffset  = 16
	SharedBufSig1Off   = 24
	SharedBufSig2Off   = SharedBufSig1Off + N*8 // 4120
	SharedBufMetrics   = SharedBufSig2Off + N*8 // 8216

	// SharedBufferTriggerOffset is the 8-byte trigger register for the
	// shared-buffer dispatch path.
	SharedBufferTriggerOffset = 0x1000

	// SharedBufferTriggerMagic is the value that must be written to
	// SharedBufferTriggerOffset (width 8) to dispatch a request.
	SharedBufferTriggerMagic = 0xDEADBEEFDEADBEEF
)

// IPC (spec §4.2, §6).
const (
	// DefaultSocketPath is the Compute Server's default listen address.
	DefaultSocketPath = "/tmp/crqa_socket"

	// RequestFrameSize is the exact wire size of a RequestFrame:
	// R(8) + sig1(4096) + sig2(4096) + opcode(4) + ready(4).
	RequestFrameSize = 8 + N*8 + N*8 + 4 + 4

	// ResponseFrameSize is the exact wire size of a ResponseFrame: 8 f64.
	ResponseFrameSize = 8 * 8
)

// Dispatch retry policy (spec §4.3.2, §5).
const (
	// DispatchMaxAttempts is the total number of Compute Server exchange
	// attempts (the first attempt plus retries) before the shared-buffer
	// dispatch path gives up and bumps the trigger counter unsatisfied.
	DispatchMaxAttempts = 3

	// DispatchRetryDelay is the fixed delay between retry attempts.
	DispatchRetryDelay = 100 * time.Millisecond
)
