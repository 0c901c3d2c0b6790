package devicemodel

import (
	"fmt"
	"math"

	"github.com/qcrqa/crqa-accel/internal/constants"
	"github.com/qcrqa/crqa-accel/internal/uapi"
)

// ReadReg implements bus.Transport by dispatching to the typed
// register accessors keyed by offset (spec §4.3.1).
func (m *Model) ReadReg(offset uint32, width int) (uint64, error) {
	switch uapi.RegisterOffset(offset) {
	case uapi.RegMagic:
		return uint64(m.ReadMagic()), nil
	case uapi.RegTrigger:
		return math.Float64bits(m.TriggerRead()), nil
	default:
		if offset >= constants.RegMetricsOffset && offset < constants.RegMetricsOffset+7*8 {
			i := int((offset - constants.RegMetricsOffset) / 8)
			return math.Float64bits(m.ReadMetric(i)), nil
		}
		return 0, fmt.Errorf("devicemodel: no readable register at offset 0x%x", offset)
	}
}

// WriteReg implements bus.Transport by dispatching to the typed
// register mutators keyed by offset.
func (m *Model) WriteReg(offset uint32, width int, val uint64) error {
	switch uapi.RegisterOffset(offset) {
	case uapi.RegR:
		m.WriteR(math.Float64frombits(val))
	case uapi.RegSig1Index:
		m.WriteSig1Index(uint32(val))
	case uapi.RegSig1Value:
		m.WriteSig1Value(math.Float64frombits(val))
	case uapi.RegSig2Index:
		m.WriteSig2Index(uint32(val))
	case uapi.RegSig2Value:
		m.WriteSig2Value(math.Float64frombits(val))
	case uapi.RegOpcode:
		m.WriteOpcode(uint32(val))
	default:
		return fmt.Errorf("devicemodel: no writable register at offset 0x%x", offset)
	}
	return nil
}

// ReadBuf implements bus.Transport by copying out of the Model's own
// shared-buffer backing store (see SharedBuffer).
func (m *Model) ReadBuf(offset uint32, out []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if int(offset)+len(out) > len(m.sharedBuf) {
		return fmt.Errorf("devicemodel: shared buffer read out of range")
	}
	copy(out, m.sharedBuf[offset:])
	return nil
}

// WriteBuf implements bus.Transport by copying into the Model's own
// shared-buffer backing store and latching the decoded fields into the
// owning state via SharedBufferWrite.
func (m *Model) WriteBuf(offset uint32, data []byte) error {
	m.mu.Lock()
	if int(offset)+len(data) > len(m.sharedBuf) {
		m.mu.Unlock()
		return fmt.Errorf("devicemodel: shared buffer write out of range")
	}
	copy(m.sharedBuf[offset:], data)
	m.mu.Unlock()

	m.SharedBufferWrite()
	return nil
}

// Trigger implements bus.Transport by performing the shared-buffer
// dispatch against the Model's own backing store.
func (m *Model) Trigger(id uint64) (accepted bool, counter uint64, err error) {
	accepted, counter = m.SharedBufferTrigger(id)
	return accepted, counter, nil
}
