// Package ipc implements the Device Model's side of the control-plane
// transport to the Compute Server: a Unix domain socket carrying
// fixed-size binary frames, plus the eventfd-based wake-counter
// notification channel handed over once via SCM_RIGHTS (spec §4.4,
// §5; grounded on original_source/dir-working/mmio/{psd.c,
// systemc_server.cpp}).
package ipc

import (
	"fmt"
	"net"
	"os"
	"sync"

	"github.com/qcrqa/crqa-accel/internal/constants"
	"github.com/qcrqa/crqa-accel/internal/kernel"
	"github.com/qcrqa/crqa-accel/internal/uapi"
)

// Client dials a Compute Server over a Unix domain socket and performs
// request/response exchanges. It is safe for concurrent use; each
// Exchange call takes an internal lock so the connection's request and
// response frames are never interleaved between callers.
type Client struct {
	mu      sync.Mutex
	xmu     sync.Mutex // held across one whole Exchange (send and receive)
	conn    *net.UnixConn
	wakeFD  int
	wakeSet bool
}

// Dial connects to path and, if notify, creates a wake eventfd and
// sends it to the server once over the new connection (mirroring the
// QEMU-side connect_to_systemc / send_eventfd sequence).
func Dial(path string, notify bool) (*Client, error) {
	addr, err := net.ResolveUnixAddr("unix", path)
	if err != nil {
		return nil, fmt.Errorf("ipc: resolve %s: %w", path, err)
	}
	conn, err := net.DialUnix("unix", nil, addr)
	if err != nil {
		return nil, fmt.Errorf("ipc: dial %s: %w", path, err)
	}

	c := &Client{conn: conn, wakeFD: -1}

	if notify {
		fd, err := NewWakeFD()
		if err != nil {
			conn.Close()
			return nil, err
		}
		rawConn, err := conn.SyscallConn()
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("ipc: syscall conn: %w", err)
		}
		var sendErr error
		ctrlErr := rawConn.Control(func(sockFD uintptr) {
			sendErr = SendWakeFD(int(sockFD), fd)
		})
		if ctrlErr != nil {
			conn.Close()
			return nil, fmt.Errorf("ipc: control: %w", ctrlErr)
		}
		if sendErr != nil {
			conn.Close()
			return nil, sendErr
		}
		c.wakeFD = fd
		c.wakeSet = true
	}

	return c, nil
}

// WakeFD returns the eventfd handed to the server, or -1 if this
// client was dialed without notification mode.
func (c *Client) WakeFD() int {
	if !c.wakeSet {
		return -1
	}
	return c.wakeFD
}

// Exchange sends one RequestFrame and blocks for the matching
// ResponseFrame, translating it into a kernel.MetricBundle. It is the
// synchronous-mode caller's entry point; notification-mode callers use
// SendRequest and RecvResponse separately so the response can be
// picked up later from the wake-driven callback instead of inline.
func (c *Client) Exchange(r float64, opcode uint32, sig1, sig2 *[constants.N]float64) (kernel.MetricBundle, error) {
	c.xmu.Lock()
	defer c.xmu.Unlock()
	if err := c.SendRequest(r, opcode, sig1, sig2); err != nil {
		return kernel.MetricBundle{}, err
	}
	return c.RecvResponse()
}

// SendRequest writes one RequestFrame and returns without waiting for
// a response. Used by the Device Model's async/notification dispatch
// path, where the bus write must return immediately (spec §5).
func (c *Client) SendRequest(r float64, opcode uint32, sig1, sig2 *[constants.N]float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	req := uapi.RequestFrame{
		R:      r,
		Sig1:   *sig1,
		Sig2:   *sig2,
		Opcode: opcode,
		Ready:  1,
	}
	if _, err := c.conn.Write(uapi.MarshalRequest(&req)); err != nil {
		return fmt.Errorf("ipc: write request: %w", err)
	}
	return nil
}

// RecvResponse blocks for one ResponseFrame and translates it into a
// kernel.MetricBundle. Used either inline by Exchange, or from the
// wake-driven callback after the wake counter has been observed.
func (c *Client) RecvResponse() (kernel.MetricBundle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	buf := make([]byte, uapi.ResponseFrameSize)
	if _, err := readFull(c.conn, buf); err != nil {
		return kernel.MetricBundle{}, fmt.Errorf("ipc: read response: %w", err)
	}

	resp, err := uapi.UnmarshalResponse(buf)
	if err != nil {
		return kernel.MetricBundle{}, err
	}

	return kernel.BundleFromArray([8]float64{
		resp.Epsilon, resp.RecurrenceRate, resp.Determinism, resp.Laminarity,
		resp.TrappingTime, resp.MaxDiagLine, resp.Divergence, resp.Entropy,
	}), nil
}

// Close closes the underlying connection and, if present, the wake
// eventfd this client created.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var err error
	if c.wakeSet {
		if cerr := os.NewFile(uintptr(c.wakeFD), "wakefd").Close(); cerr != nil {
			err = cerr
		}
		c.wakeSet = false
	}
	if cerr := c.conn.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

func readFull(conn *net.UnixConn, buf []byte) (int, error) {
	n := 0
	for n < len(buf) {
		m, err := conn.Read(buf[n:])
		if err != nil {
			return n, err
		}
		n += m
	}
	return n, nil
}
