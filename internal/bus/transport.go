// Package bus defines the narrow interface the Driver programs
// against: raw register and shared-buffer access plus the trigger
// write, independent of whether the backing implementation is an
// in-process Device Model (tests, the local demo binary) or a real
// mmap'd/ioctl'd PCI bar. Grounded on the teacher's
// interfaces.Backend — one small accept-an-interface boundary between
// the transport-agnostic driver logic and its backing store.
package bus

// Transport is the bus-level contract a Driver face needs: register
// reads/writes by offset and width, bulk shared-buffer access, and the
// trigger write. Offsets and widths follow spec §4.3.1/§4.3.2.
type Transport interface {
	// ReadReg reads width bytes (4 or 8) at offset in the per-field
	// register window and returns the value zero-extended into a
	// uint64.
	ReadReg(offset uint32, width int) (uint64, error)

	// WriteReg writes width bytes of val at offset in the per-field
	// register window.
	WriteReg(offset uint32, width int, val uint64) error

	// ReadBuf copies len(out) bytes from the shared buffer starting at
	// offset into out.
	ReadBuf(offset uint32, out []byte) error

	// WriteBuf copies data into the shared buffer starting at offset.
	WriteBuf(offset uint32, data []byte) error

	// Trigger performs the magic trigger write for the shared-buffer
	// dispatch path, given the id the caller believes is current. It
	// returns whether the dispatch was accepted (false on a stale id)
	// and the trigger_counter value afterward.
	Trigger(id uint64) (accepted bool, counter uint64, err error)
}

// LocalBacking is implemented by in-process Transports (the emulated
// Device Model) that can hand back their shared-buffer memory
// directly, the way a real mmap over /dev/cpcidev_pci would. Used by
// chardev.MappingFace's default/test path, which has no device node
// to mmap.
type LocalBacking interface {
	SharedBuffer() []byte
}
