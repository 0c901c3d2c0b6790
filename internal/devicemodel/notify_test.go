package devicemodel

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qcrqa/crqa-accel/internal/constants"
	"github.com/qcrqa/crqa-accel/internal/interfaces"
	"github.com/qcrqa/crqa-accel/internal/ipc"
	"github.com/qcrqa/crqa-accel/internal/server"
	"github.com/qcrqa/crqa-accel/internal/uapi"
)

func TestAsyncDispatchCompletesViaWakeNotifier(t *testing.T) {
	path := filepath.Join(t.TempDir(), "crqa_notify_test.sock")
	srv, err := server.New(path, nil)
	require.NoError(t, err)
	defer srv.Close()
	go srv.Serve()
	time.Sleep(20 * time.Millisecond)

	client, err := ipc.Dial(path, true)
	require.NoError(t, err)
	defer client.Close()

	interrupted := make(chan struct{}, 1)
	m, err := NewModel(
		func() (interfaces.ComputeClient, error) { return client, nil },
		WithPersistentConnection(),
		WithInterruptHandler(func() { interrupted <- struct{}{} }),
	)
	require.NoError(t, err)
	defer m.Close()

	buf := m.SharedBuffer()
	var sig1, sig2 [constants.N]float64
	for i := range sig1 {
		sig1[i] = 1
		sig2[i] = 1
	}
	uapi.EncodeSharedBuffer(buf, 0.15, 1, 1, &sig1, &sig2)
	m.SharedBufferWrite()

	notifier := NewWakeNotifier(m, client)
	go notifier.Run()
	defer notifier.Stop()

	accepted, counter := m.SharedBufferTriggerAsync(1, client)
	require.True(t, accepted)
	assert.Equal(t, uint64(1), counter)

	select {
	case <-interrupted:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for deferred interrupt")
	}

	assert.Equal(t, uint64(2), m.TriggerCounter())
	metrics := uapi.DecodeSharedBufferMetrics(buf)
	assert.InDelta(t, 1.0, metrics[1], 1e-9)
}

func TestAsyncDispatchRejectsStaleID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "crqa_notify_stale_test.sock")
	srv, err := server.New(path, nil)
	require.NoError(t, err)
	defer srv.Close()
	go srv.Serve()
	time.Sleep(20 * time.Millisecond)

	client, err := ipc.Dial(path, true)
	require.NoError(t, err)
	defer client.Close()

	m, err := NewModel(
		func() (interfaces.ComputeClient, error) { return client, nil },
		WithPersistentConnection(),
	)
	require.NoError(t, err)
	defer m.Close()

	accepted, counter := m.SharedBufferTriggerAsync(42, client)
	assert.False(t, accepted)
	assert.Equal(t, uint64(1), counter)
}
