package ipc

import (
	"encoding/binary"
	"fmt"

	"golang.org/x/sys/unix"
)

// NewWakeFD creates a non-blocking, close-on-exec eventfd used as the
// Device Model's wake counter: the Compute Server bumps it by one
// after every completed exchange, and the Device Model's notification
// goroutine polls it for readability before reading it (spec §4.4, §5).
func NewWakeFD() (int, error) {
	fd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		return -1, fmt.Errorf("ipc: eventfd: %w", err)
	}
	return fd, nil
}

// BumpWakeFD increments the eventfd's counter by one, waking anything
// blocked on a read of it.
func BumpWakeFD(fd int) error {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], 1)
	if _, err := unix.Write(fd, b[:]); err != nil {
		return fmt.Errorf("ipc: eventfd write: %w", err)
	}
	return nil
}

// DrainWakeFD reads and resets the eventfd's counter, returning the
// accumulated count since the last drain. The eventfd is non-blocking,
// so a read while the counter is zero fails with EAGAIN instead of
// waiting; callers poll the fd for readability first (spec §5's
// notification-mode loop).
func DrainWakeFD(fd int) (uint64, error) {
	var b [8]byte
	n, err := unix.Read(fd, b[:])
	if err != nil {
		return 0, fmt.Errorf("ipc: eventfd read: %w", err)
	}
	if n != 8 {
		return 0, fmt.Errorf("ipc: eventfd short read: %d bytes", n)
	}
	return binary.LittleEndian.Uint64(b[:]), nil
}

// SendWakeFD transmits fd to the peer connected on sock as SCM_RIGHTS
// ancillary data, exactly once per connection — mirroring the
// reference device model's send_eventfd (original_source psd.c) and
// its SystemC-side counterpart recv_eventfd.
func SendWakeFD(sock, fd int) error {
	rights := unix.UnixRights(fd)
	dummy := []byte{'E'}
	return unix.Sendmsg(sock, dummy, rights, nil, 0)
}

// RecvWakeFD reads a single leading byte off sock and reports whether
// that read carried an SCM_RIGHTS ancillary fd (a notify-mode client's
// one-shot handshake) or not (a non-notify client, whose leading byte
// is live RequestFrame data, not a handshake sentinel). Callers that
// get ok=false MUST splice leadByte back in front of the next frame
// they parse off sock instead of discarding it — RecvWakeFD has
// already consumed it from the stream.
func RecvWakeFD(sock int) (fd int, leadByte byte, ok bool, err error) {
	dummy := make([]byte, 1)
	oob := make([]byte, unix.CmsgSpace(4))

	n, oobn, _, _, rerr := unix.Recvmsg(sock, dummy, oob, 0)
	if rerr != nil {
		return -1, 0, false, fmt.Errorf("ipc: recvmsg: %w", rerr)
	}
	if n != 1 {
		return -1, 0, false, fmt.Errorf("ipc: recvmsg: short read: %d bytes", n)
	}
	leadByte = dummy[0]

	if oobn == 0 {
		// No ancillary data: this connection never sent a wake fd, and
		// leadByte is the first byte of its first RequestFrame.
		return -1, leadByte, false, nil
	}

	cmsgs, err := unix.ParseSocketControlMessage(oob[:oobn])
	if err != nil {
		return -1, leadByte, false, fmt.Errorf("ipc: parse control message: %w", err)
	}
	if len(cmsgs) == 0 {
		return -1, leadByte, false, nil
	}

	fds, err := unix.ParseUnixRights(&cmsgs[0])
	if err != nil {
		return -1, leadByte, false, fmt.Errorf("ipc: parse unix rights: %w", err)
	}
	if len(fds) != 1 {
		return -1, leadByte, false, fmt.Errorf("ipc: expected exactly one fd, got %d", len(fds))
	}
	return fds[0], leadByte, true, nil
}
