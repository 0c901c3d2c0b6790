//go:build !(linux && giouring)

package driver

import "fmt"

// UringTransport is available when built with -tags giouring on linux.
type UringTransport struct{}

// NewUringTransport reports that the real uring_cmd path was not
// compiled in, the way the teacher's iouring_stub.go reports a missing
// -tags giouring build.
func NewUringTransport(fd int, entries uint32) (*UringTransport, error) {
	return nil, fmt.Errorf("driver: giouring not enabled; build with -tags giouring on linux")
}

func (t *UringTransport) Close() error { return nil }

func (t *UringTransport) WriteReg(offset uint32, width int, val uint64) error {
	return fmt.Errorf("driver: giouring not enabled; build with -tags giouring on linux")
}
