package crqa

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qcrqa/crqa-accel/internal/devicemodel"
	"github.com/qcrqa/crqa-accel/internal/interfaces"
)

// newTestAccelerator builds an Accelerator around a fake Compute
// Server dialer, bypassing StartAccelerator's Unix-socket dial so the
// lifecycle logic can be exercised without a running server.
func newTestAccelerator(t *testing.T) (*Accelerator, *FakeComputeServer) {
	t.Helper()

	fake := NewFakeComputeServer()
	metrics := NewMetrics()
	observer := NewMetricsObserver(metrics)

	model, err := devicemodel.NewModel(func() (interfaces.ComputeClient, error) {
		return fake, nil
	}, devicemodel.WithObserver(observer))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	a := &Accelerator{
		model:    model,
		ctx:      ctx,
		cancel:   cancel,
		metrics:  metrics,
		observer: observer,
		started:  true,
	}
	return a, fake
}

func TestAcceleratorLifecycleState(t *testing.T) {
	a, _ := newTestAccelerator(t)

	assert.Equal(t, AcceleratorStateRunning, a.State())
	assert.True(t, a.IsRunning())

	require.NoError(t, a.Stop())
	assert.Equal(t, AcceleratorStateStopped, a.State())
	assert.False(t, a.IsRunning())
}

func TestAcceleratorNilReceiverIsStopped(t *testing.T) {
	var a *Accelerator
	assert.Equal(t, AcceleratorStateStopped, a.State())
	assert.Nil(t, a.Metrics())
	assert.Equal(t, MetricsSnapshot{}, a.MetricsSnapshot())
}

func TestAcceleratorMetricsStartAtZero(t *testing.T) {
	a, _ := newTestAccelerator(t)
	defer a.Stop()

	buf := a.Model().SharedBuffer()
	_ = buf

	snap := a.MetricsSnapshot()
	assert.Equal(t, uint64(0), snap.ComputeSuccess)
}

func TestDefaultAcceleratorParams(t *testing.T) {
	p := DefaultAcceleratorParams()
	assert.Equal(t, DefaultSocketPath, p.SocketPath)
	assert.False(t, p.Notify)
}

func TestStopNilAccelerator(t *testing.T) {
	var a *Accelerator
	assert.Error(t, a.Stop())
}
