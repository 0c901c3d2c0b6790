// Package chardev reproduces the two driver-facing surfaces spec §4.4
// describes for the bound character device — a per-field register
// window and a shared-buffer mapping — against the transport-agnostic
// internal/bus.Transport, the way the teacher's ctrl.Controller
// encodes UblksrvCtrlCmd before crossing the ioctl boundary. There is
// no real Linux kernel module here (Go cannot host one); probe order,
// region reservation, and MSI enable are the emulator/kernel's job and
// out of scope.
package chardev

import (
	"math"

	"github.com/qcrqa/crqa-accel/internal/bus"
	"github.com/qcrqa/crqa-accel/internal/uapi"
)

// RegisterFace is the per-field programming surface (spec §4.3.1):
// one method per register offset, each encoding/decoding its argument
// through internal/uapi before crossing bus.Transport.
type RegisterFace struct {
	bus bus.Transport
}

// NewRegisterFace binds a RegisterFace to a transport.
func NewRegisterFace(t bus.Transport) *RegisterFace {
	return &RegisterFace{bus: t}
}

// ReadMagic reads the device identity word at offset 0x00.
func (f *RegisterFace) ReadMagic() (uint32, error) {
	v, err := f.bus.ReadReg(uint32(uapi.RegMagic), uapi.RegMagic.Width())
	if err != nil {
		return 0, err
	}
	return uint32(v), nil
}

// WriteR sets the recurrence-threshold register at offset 0x08.
func (f *RegisterFace) WriteR(r float64) error {
	return f.bus.WriteReg(uint32(uapi.RegR), uapi.RegR.Width(), math.Float64bits(r))
}

// WriteSig1Index sets the sig1 scratch cursor at offset 0x18.
func (f *RegisterFace) WriteSig1Index(idx uint32) error {
	return f.bus.WriteReg(uint32(uapi.RegSig1Index), uapi.RegSig1Index.Width(), uint64(idx))
}

// WriteSig1Value writes sig1[sig1_index] at offset 0x20.
func (f *RegisterFace) WriteSig1Value(v float64) error {
	return f.bus.WriteReg(uint32(uapi.RegSig1Value), uapi.RegSig1Value.Width(), math.Float64bits(v))
}

// WriteSig2Index sets the sig2 scratch cursor at offset 0x28.
func (f *RegisterFace) WriteSig2Index(idx uint32) error {
	return f.bus.WriteReg(uint32(uapi.RegSig2Index), uapi.RegSig2Index.Width(), uint64(idx))
}

// WriteSig2Value writes sig2[sig2_index] at offset 0x30.
func (f *RegisterFace) WriteSig2Value(v float64) error {
	return f.bus.WriteReg(uint32(uapi.RegSig2Value), uapi.RegSig2Value.Width(), math.Float64bits(v))
}

// WriteOpcode sets the opcode register at offset 0x38.
func (f *RegisterFace) WriteOpcode(opcode uint32) error {
	return f.bus.WriteReg(uint32(uapi.RegOpcode), uapi.RegOpcode.Width(), uint64(opcode))
}

// LoadSignal1 programs the first signal array through its index/value
// register pair, in order, the way the real driver streams a loaded
// file into the device one sample at a time.
func (f *RegisterFace) LoadSignal1(samples []float64) error {
	for i, v := range samples {
		if err := f.WriteSig1Index(uint32(i)); err != nil {
			return err
		}
		if err := f.WriteSig1Value(v); err != nil {
			return err
		}
	}
	return nil
}

// LoadSignal2 is LoadSignal1 for the second signal array.
func (f *RegisterFace) LoadSignal2(samples []float64) error {
	for i, v := range samples {
		if err := f.WriteSig2Index(uint32(i)); err != nil {
			return err
		}
		if err := f.WriteSig2Value(v); err != nil {
			return err
		}
	}
	return nil
}

// TriggerCompute performs the register-window compute trigger: reading
// offset 0x40 runs a synchronous exchange and returns epsilon (0 on
// failure, per spec §4.3.1).
func (f *RegisterFace) TriggerCompute() (float64, error) {
	v, err := f.bus.ReadReg(uint32(uapi.RegTrigger), uapi.RegTrigger.Width())
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(v), nil
}

// ReadMetric returns the i'th metric (0-based, following Epsilon) at
// offsets 0x48..0x78: RecurrenceRate through Entropy.
func (f *RegisterFace) ReadMetric(i int) (float64, error) {
	off := uapi.RegMetricOffset(i)
	v, err := f.bus.ReadReg(uint32(off), off.Width())
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(v), nil
}
