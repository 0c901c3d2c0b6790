//go:build linux && giouring

// Package driver implements the real-hardware path for the register
// face's ioctl-style command surface: submitting each register write
// as an IORING_OP_URING_CMD submission queue entry instead of a plain
// positioned write, mirroring the teacher's prepUblkCtrlCmd shape for
// UblksrvCtrlCmd (internal/uring/iouring.go) — one PrepRequest per
// control command, submitted on a dedicated ring and waited for
// synchronously.
package driver

import (
	"fmt"
	"unsafe"

	"github.com/pawelgaczynski/giouring"
)

// regCmd is the fixed payload carried in the SQE's command area for
// one register write: the offset being written, its width, and the
// value, the way the teacher packs a UblksrvCtrlCmd before handing it
// to the ring.
type regCmd struct {
	Offset uint32
	Width  uint32
	Value  uint64
}

// UringTransport submits register writes to the bound control device
// as IORING_OP_URING_CMD SQEs. It does not implement the read/bulk
// sides of bus.Transport: per spec §4.3.1 every readable register and
// the shared buffer are plain loads from the mapped region, so those
// stay on chardev.MappedRegion instead of round-tripping through the
// ring.
type UringTransport struct {
	fd   int
	ring *giouring.Ring
}

// NewUringTransport creates a ring of the given queue depth bound to
// fd, the open control-device file descriptor (e.g. /dev/cpcidev_pci).
func NewUringTransport(fd int, entries uint32) (*UringTransport, error) {
	ring, err := giouring.CreateRing(entries)
	if err != nil {
		return nil, fmt.Errorf("driver: create ring: %w", err)
	}
	return &UringTransport{fd: fd, ring: ring}, nil
}

// Close tears down the ring.
func (t *UringTransport) Close() error {
	t.ring.QueueExit()
	return nil
}

// WriteReg submits the write as a URING_CMD SQE and blocks for its
// completion's result code, returning an error on a negative result
// (the command surface's errno convention).
func (t *UringTransport) WriteReg(offset uint32, width int, val uint64) error {
	cmd := regCmd{Offset: offset, Width: uint32(width), Value: val}

	sqe := t.ring.GetSQE()
	if sqe == nil {
		return fmt.Errorf("driver: submission queue full")
	}
	sqe.PrepRW(giouring.OpUringCmd, int32(t.fd), uintptr(unsafe.Pointer(&cmd)), uint32(unsafe.Sizeof(cmd)), 0)
	sqe.UserData = uint64(offset)

	if _, err := t.ring.SubmitAndWait(1); err != nil {
		return fmt.Errorf("driver: submit: %w", err)
	}

	cqe, err := t.ring.WaitCQE()
	if err != nil {
		return fmt.Errorf("driver: wait cqe: %w", err)
	}
	defer t.ring.CQESeen(cqe)

	if cqe.Res < 0 {
		return fmt.Errorf("driver: register write at offset 0x%x failed: errno %d", offset, -cqe.Res)
	}
	return nil
}
