package uapi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qcrqa/crqa-accel/internal/constants"
)

func TestRequestFrameRoundTrip(t *testing.T) {
	var req RequestFrame
	req.R = 0.15
	req.Opcode = 7
	req.Ready = 1
	for i := range req.Sig1 {
		req.Sig1[i] = float64(i)
		req.Sig2[i] = float64(i) * 2
	}

	data := MarshalRequest(&req)
	require.Len(t, data, RequestFrameSize)

	got, err := UnmarshalRequest(data)
	require.NoError(t, err)
	assert.Equal(t, req, got)
}

func TestRequestFrameShort(t *testing.T) {
	_, err := UnmarshalRequest(make([]byte, 10))
	assert.ErrorIs(t, err, ErrShortFrame)
}

func TestResponseFrameRoundTrip(t *testing.T) {
	resp := ResponseFrame{
		Epsilon: 1, RecurrenceRate: 2, Determinism: 3, Laminarity: 4,
		TrappingTime: 5, MaxDiagLine: 6, Divergence: 7, Entropy: 8,
	}
	data := MarshalResponse(&resp)
	require.Len(t, data, ResponseFrameSize)

	got, err := UnmarshalResponse(data)
	require.NoError(t, err)
	assert.Equal(t, resp, got)
}

func TestSharedBufferRoundTrip(t *testing.T) {
	buf := make([]byte, SharedBufferSize)

	var sig1, sig2 [constants.N]float64
	for i := range sig1 {
		sig1[i] = float64(i)
		sig2[i] = -float64(i)
	}

	EncodeSharedBuffer(buf, 0.15, 42, 7, &sig1, &sig2)
	r, opcode, id, gotSig1, gotSig2 := DecodeSharedBufferRequest(buf)

	assert.InDelta(t, 0.15, r, 1e-12)
	assert.EqualValues(t, 42, opcode)
	assert.EqualValues(t, 7, id)
	assert.Equal(t, sig1, gotSig1)
	assert.Equal(t, sig2, gotSig2)
}

func TestSharedBufferMetricsRoundTrip(t *testing.T) {
	buf := make([]byte, SharedBufferSize)
	bundle := [8]float64{1, 2, 3, 4, 5, 6, 7, 8}

	EncodeSharedBufferMetrics(buf, bundle)
	assert.Equal(t, bundle, DecodeSharedBufferMetrics(buf))
}

func TestRegisterWidths(t *testing.T) {
	assert.Equal(t, 4, RegMagic.Width())
	assert.Equal(t, 8, RegR.Width())
	assert.Equal(t, 4, RegSig1Index.Width())
	assert.Equal(t, 8, RegSig1Value.Width())
	assert.Equal(t, 8, RegTrigger.Width())
	assert.Equal(t, 8, RegMetricOffset(0).Width())
	assert.Equal(t, 8, RegMetricOffset(6).Width())
}
