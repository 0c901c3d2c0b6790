package chardev_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qcrqa/crqa-accel/internal/chardev"
	"github.com/qcrqa/crqa-accel/internal/constants"
	"github.com/qcrqa/crqa-accel/internal/devicemodel"
	"github.com/qcrqa/crqa-accel/internal/interfaces"
	"github.com/qcrqa/crqa-accel/internal/kernel"
)

type fakeClient struct{}

func (fakeClient) Exchange(r float64, opcode uint32, sig1, sig2 *[constants.N]float64) (kernel.MetricBundle, error) {
	return kernel.Compute(r, sig1, sig2), nil
}

func (fakeClient) Close() error { return nil }

func newModel(t *testing.T) *devicemodel.Model {
	t.Helper()
	m, err := devicemodel.NewModel(func() (interfaces.ComputeClient, error) {
		return fakeClient{}, nil
	})
	require.NoError(t, err)
	return m
}

func TestRegisterFaceRoundTrip(t *testing.T) {
	m := newModel(t)
	defer m.Close()

	face := chardev.NewRegisterFace(m)

	magic, err := face.ReadMagic()
	require.NoError(t, err)
	assert.Equal(t, uint32(constants.DeviceMagic), magic)

	require.NoError(t, face.WriteR(0.15))

	sig1 := make([]float64, constants.N)
	sig2 := make([]float64, constants.N)
	for i := range sig1 {
		sig1[i] = 1
		sig2[i] = 1
	}
	require.NoError(t, face.LoadSignal1(sig1))
	require.NoError(t, face.LoadSignal2(sig2))
	require.NoError(t, face.WriteOpcode(7))

	eps, err := face.TriggerCompute()
	require.NoError(t, err)
	assert.InDelta(t, 1.0, eps, 1e-9)

	rr, err := face.ReadMetric(0)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, rr, 1e-9)
}

func TestMappingFaceLocalFallback(t *testing.T) {
	m := newModel(t)
	defer m.Close()

	face := chardev.NewMappingFace(m, "")
	region, err := face.Map()
	require.NoError(t, err)
	defer region.Close()

	var sig1, sig2 [constants.N]float64
	for i := range sig1 {
		sig1[i] = 1
		sig2[i] = 1
	}
	triggerID := region.ID()
	region.EncodeRequest(0.15, 7, triggerID, &sig1, &sig2)
	require.NoError(t, region.Flush())

	accepted, _, err := face.Trigger(triggerID)
	require.NoError(t, err)
	assert.True(t, accepted)

	select {
	case <-face.Ready():
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for readiness signal")
	}

	bundle := region.DecodeMetrics()
	assert.InDelta(t, 1.0, bundle[1], 1e-9) // recurrence_rate
}

func TestMappingFaceResetsReadyOnFreshMap(t *testing.T) {
	m := newModel(t)
	defer m.Close()

	face := chardev.NewMappingFace(m, "")

	region1, err := face.Map()
	require.NoError(t, err)
	ready1 := face.Ready()

	region2, err := face.Map()
	require.NoError(t, err)
	defer region2.Close()
	ready2 := face.Ready()

	assert.NotEqual(t, ready1, ready2)
	_ = region1
}

func TestMappingFaceNoBackingErrors(t *testing.T) {
	face := chardev.NewMappingFace(noLocalBacking{}, "")
	_, err := face.Map()
	assert.Error(t, err)
}

// noLocalBacking implements bus.Transport but not bus.LocalBacking, and
// has no device node, so Map must fail.
type noLocalBacking struct{}

func (noLocalBacking) ReadReg(offset uint32, width int) (uint64, error)  { return 0, nil }
func (noLocalBacking) WriteReg(offset uint32, width int, val uint64) error { return nil }
func (noLocalBacking) ReadBuf(offset uint32, out []byte) error            { return nil }
func (noLocalBacking) WriteBuf(offset uint32, data []byte) error          { return nil }
func (noLocalBacking) Trigger(id uint64) (bool, uint64, error)            { return false, 0, nil }
