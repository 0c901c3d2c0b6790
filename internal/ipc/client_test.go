package ipc

import (
	"net"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qcrqa/crqa-accel/internal/constants"
	"github.com/qcrqa/crqa-accel/internal/uapi"
)

func echoServer(t *testing.T, path string) (stop func()) {
	t.Helper()
	ln, err := net.Listen("unix", path)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func() {
				defer conn.Close()
				buf := make([]byte, uapi.RequestFrameSize)
				for {
					n := 0
					for n < len(buf) {
						m, err := conn.Read(buf[n:])
						if err != nil {
							return
						}
						n += m
					}
					req, err := uapi.UnmarshalRequest(buf)
					if err != nil {
						return
					}
					resp := uapi.ResponseFrame{
						Epsilon:        req.R,
						RecurrenceRate: float64(req.Opcode),
						Determinism:    req.Sig1[0],
						Laminarity:     req.Sig2[0],
						TrappingTime:   1,
						MaxDiagLine:    2,
						Divergence:     3,
						Entropy:        4,
					}
					if _, err := conn.Write(uapi.MarshalResponse(&resp)); err != nil {
						return
					}
				}
			}()
		}
	}()

	return func() {
		close(done)
		ln.Close()
	}
}

func TestClientExchange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "crqa_test.sock")
	stop := echoServer(t, path)
	defer stop()

	c, err := Dial(path, false)
	require.NoError(t, err)
	defer c.Close()

	var sig1, sig2 [constants.N]float64
	sig1[0] = 11
	sig2[0] = 22

	bundle, err := c.Exchange(0.15, 9, &sig1, &sig2)
	require.NoError(t, err)

	assert.InDelta(t, 0.15, bundle.Epsilon, 1e-12)
	assert.InDelta(t, 9, bundle.RecurrenceRate, 1e-12)
	assert.InDelta(t, 11, bundle.Determinism, 1e-12)
	assert.InDelta(t, 22, bundle.Laminarity, 1e-12)
}

func TestClientExchangeSerializesCalls(t *testing.T) {
	path := filepath.Join(t.TempDir(), "crqa_test2.sock")
	stop := echoServer(t, path)
	defer stop()

	c, err := Dial(path, false)
	require.NoError(t, err)
	defer c.Close()

	var sig1, sig2 [constants.N]float64
	for i := 0; i < 5; i++ {
		bundle, err := c.Exchange(float64(i)/10, uint32(i), &sig1, &sig2)
		require.NoError(t, err)
		assert.InDelta(t, float64(i)/10, bundle.Epsilon, 1e-9)
	}
}

func TestDialMissingSocket(t *testing.T) {
	_, err := Dial("/tmp/crqa_definitely_not_there.sock", false)
	assert.Error(t, err)
}
