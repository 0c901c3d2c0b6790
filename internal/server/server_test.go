package server

import (
	"math"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/qcrqa/crqa-accel/internal/constants"
	"github.com/qcrqa/crqa-accel/internal/ipc"
	"github.com/qcrqa/crqa-accel/internal/kernel"
)

// nonDegenerateSignals returns a pair of varying, non-constant signals.
// A zero-variance fixture (every sample equal) collapses CRQA's
// std-floor normalization to the same constant regardless of byte
// offset, which would hide a frame-alignment bug instead of catching
// it — these must vary sample to sample.
func nonDegenerateSignals() (sig1, sig2 [constants.N]float64) {
	for i := range sig1 {
		sig1[i] = math.Sin(float64(i) * 0.1)
		sig2[i] = math.Cos(float64(i)*0.1 + 0.4)
	}
	return sig1, sig2
}

func TestServerExchange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "crqa_srv_test.sock")
	s, err := New(path, nil)
	require.NoError(t, err)
	defer s.Close()

	go s.Serve()
	time.Sleep(20 * time.Millisecond)

	client, err := ipc.Dial(path, false)
	require.NoError(t, err)
	defer client.Close()

	sig1, sig2 := nonDegenerateSignals()

	bundle, err := client.Exchange(0.15, 1, &sig1, &sig2)
	require.NoError(t, err)

	want := kernel.Compute(0.15, &sig1, &sig2)
	assert.Equal(t, want, bundle)
	assert.EqualValues(t, 1, s.RequestCount())
}

// TestServerExchangeMultipleRequests sends several requests over one
// connection with distinct, varying payloads, and checks each response
// against an independently computed bundle. A one-byte frame shift
// (the RecvWakeFD/handleConn splice bug) would misalign every field
// after the first and produce garbage R/opcode/signal values that
// this comparison would catch, unlike a constant-signal fixture.
func TestServerExchangeMultipleRequests(t *testing.T) {
	path := filepath.Join(t.TempDir(), "crqa_srv_multi_test.sock")
	s, err := New(path, nil)
	require.NoError(t, err)
	defer s.Close()

	go s.Serve()
	time.Sleep(20 * time.Millisecond)

	client, err := ipc.Dial(path, false)
	require.NoError(t, err)
	defer client.Close()

	for n := 0; n < 3; n++ {
		var sig1, sig2 [constants.N]float64
		for i := range sig1 {
			sig1[i] = math.Sin(float64(i)*0.1 + float64(n))
			sig2[i] = math.Cos(float64(i)*0.1 - float64(n)*0.3)
		}
		r := 0.1 + 0.01*float64(n)

		bundle, err := client.Exchange(r, uint32(n+1), &sig1, &sig2)
		require.NoError(t, err)

		want := kernel.Compute(r, &sig1, &sig2)
		assert.Equal(t, want, bundle)
	}
	assert.EqualValues(t, 3, s.RequestCount())
}

func TestServerNotificationMode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "crqa_srv_notify_test.sock")
	s, err := New(path, nil)
	require.NoError(t, err)
	defer s.Close()

	go s.Serve()
	time.Sleep(20 * time.Millisecond)

	client, err := ipc.Dial(path, true)
	require.NoError(t, err)
	defer client.Close()

	var sig1, sig2 [constants.N]float64
	_, err = client.Exchange(0.15, 0, &sig1, &sig2)
	require.NoError(t, err)

	// The server bumps the wake fd after writing the response, so wait
	// for it to become readable before draining the non-blocking fd.
	pfd := []unix.PollFd{{Fd: int32(client.WakeFD()), Events: unix.POLLIN}}
	_, err = unix.Poll(pfd, 1000)
	require.NoError(t, err)

	count, err := ipc.DrainWakeFD(client.WakeFD())
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)
}

func TestServerRejectsGarbageThenCloses(t *testing.T) {
	path := filepath.Join(t.TempDir(), "crqa_srv_garbage_test.sock")
	s, err := New(path, nil)
	require.NoError(t, err)
	defer s.Close()

	go s.Serve()
	time.Sleep(20 * time.Millisecond)

	conn, err := net.Dial("unix", path)
	require.NoError(t, err)

	_, err = conn.Write([]byte("short garbage"))
	require.NoError(t, err)
	conn.Close()

	time.Sleep(20 * time.Millisecond)

	conn2, err := net.Dial("unix", path)
	require.NoError(t, err)
	defer conn2.Close()
	buf := make([]byte, 1)
	conn2.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	_, err = conn2.Read(buf)
	assert.Error(t, err)
}
