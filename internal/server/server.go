// Package server implements the Compute Server side of the
// control-plane protocol: it accepts a single long-lived connection
// from the Device Model's IPC client, reads RequestFrames, runs the
// CRQA kernel, and writes back ResponseFrames — optionally bumping a
// wake eventfd handed over once via SCM_RIGHTS at the start of the
// connection (spec §4.4, §5). Grounded on
// original_source/dir-working/mmio/systemc_server.cpp's server_thread.
package server

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync/atomic"

	"github.com/qcrqa/crqa-accel/internal/ipc"
	"github.com/qcrqa/crqa-accel/internal/kernel"
	"github.com/qcrqa/crqa-accel/internal/logging"
	"github.com/qcrqa/crqa-accel/internal/uapi"
)

// Server accepts connections on a Unix domain socket and services CRQA
// requests one connection at a time, matching the reference
// implementation's single-session model (a new connection simply
// replaces the eventfd and keeps serving).
type Server struct {
	path     string
	log      *logging.Logger
	ln       net.Listener
	requests atomic.Uint64
}

// New removes any stale socket at path, binds and listens.
func New(path string, log *logging.Logger) (*Server, error) {
	if log == nil {
		log = logging.Default()
	}
	_ = os.Remove(path)

	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("server: listen %s: %w", path, err)
	}
	return &Server{path: path, log: log, ln: ln}, nil
}

// Addr returns the bound socket path.
func (s *Server) Addr() string { return s.path }

// RequestCount returns the number of requests processed so far.
func (s *Server) RequestCount() uint64 { return s.requests.Load() }

// Close stops accepting new connections.
func (s *Server) Close() error {
	return s.ln.Close()
}

// Serve accepts connections in a loop until the listener is closed,
// handling each one synchronously — one connection at a time, exactly
// as the reference SystemC server does ("Connection will stay open
// for multiple requests").
func (s *Server) Serve() error {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("server: accept: %w", err)
		}
		s.log.Infof("server: client connected")
		s.handleConn(conn)
		s.log.Infof("server: client disconnected")
	}
}

func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()

	wakeFD := -1
	var leadByte byte
	spliceLead := false
	if unixConn, ok := conn.(*net.UnixConn); ok {
		if rawConn, err := unixConn.SyscallConn(); err == nil {
			var (
				fd      int
				lead    byte
				gotFD   bool
				recvErr error
			)
			ctrlErr := rawConn.Control(func(sockFD uintptr) {
				fd, lead, gotFD, recvErr = ipc.RecvWakeFD(int(sockFD))
			})
			switch {
			case ctrlErr != nil || recvErr != nil:
				s.log.Debugf("server: no wake fd received (%v, %v), continuing without notification", ctrlErr, recvErr)
			case gotFD:
				wakeFD = fd
				s.log.Infof("server: received wake fd %d", wakeFD)
			default:
				// This connection's first byte was never a handshake
				// sentinel — it is live RequestFrame data RecvWakeFD
				// already consumed off the wire, and must be spliced
				// back in front of the first frame this session reads
				// instead of being dropped (a non-notify client, the
				// default/register-mode path, never sends a fd).
				leadByte = lead
				spliceLead = true
			}
		}
	}
	if wakeFD >= 0 {
		defer os.NewFile(uintptr(wakeFD), "wakefd").Close()
	}

	buf := make([]byte, uapi.RequestFrameSize)
	first := true
	for {
		var err error
		if first && spliceLead {
			buf[0] = leadByte
			_, err = io.ReadFull(conn, buf[1:])
		} else {
			_, err = io.ReadFull(conn, buf)
		}
		first = false
		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.log.Debugf("server: read: %v", err)
			}
			return
		}

		req, err := uapi.UnmarshalRequest(buf)
		if err != nil {
			s.log.Errorf("server: malformed request: %v", err)
			return
		}
		if req.Ready == 0 {
			continue
		}

		bundle := kernel.Compute(req.R, &req.Sig1, &req.Sig2)
		s.requests.Add(1)

		resp := uapi.ResponseFrame{
			Epsilon:        bundle.Epsilon,
			RecurrenceRate: bundle.RecurrenceRate,
			Determinism:    bundle.Determinism,
			Laminarity:     bundle.Laminarity,
			TrappingTime:   bundle.TrappingTime,
			MaxDiagLine:    bundle.MaxDiagLine,
			Divergence:     bundle.Divergence,
			Entropy:        bundle.Entropy,
		}
		if _, err := conn.Write(uapi.MarshalResponse(&resp)); err != nil {
			s.log.Errorf("server: write response: %v", err)
			return
		}

		if wakeFD >= 0 {
			if err := ipc.BumpWakeFD(wakeFD); err != nil {
				s.log.Errorf("server: bump wake fd: %v", err)
			}
		}
	}
}
