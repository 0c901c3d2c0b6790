package crqa

import (
	"errors"
	"sync"

	"github.com/qcrqa/crqa-accel/internal/constants"
	"github.com/qcrqa/crqa-accel/internal/kernel"
)

// FakeComputeServer is a deterministic stand-in for a real Compute
// Server connection, for tests that exercise the Device Model or
// Client without a real Unix socket. It implements
// internal/interfaces.ComputeClient structurally.
type FakeComputeServer struct {
	mu sync.Mutex

	// Fail, if true, makes every Exchange return FailErr (or a default
	// error if FailErr is nil).
	Fail    bool
	FailErr error

	// FailuresBeforeSuccess makes the first N calls fail before
	// succeeding, useful for exercising retry paths.
	FailuresBeforeSuccess int

	calls  int
	closed int
}

// NewFakeComputeServer returns a FakeComputeServer ready to compute.
func NewFakeComputeServer() *FakeComputeServer {
	return &FakeComputeServer{}
}

// Exchange implements internal/interfaces.ComputeClient by running the
// real CRQA kernel against the given inputs, unless configured to fail.
func (f *FakeComputeServer) Exchange(r float64, opcode uint32, sig1, sig2 *[constants.N]float64) (kernel.MetricBundle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls++
	if f.Fail || f.FailuresBeforeSuccess > 0 {
		if f.FailuresBeforeSuccess > 0 {
			f.FailuresBeforeSuccess--
		}
		if f.FailErr != nil {
			return kernel.MetricBundle{}, f.FailErr
		}
		return kernel.MetricBundle{}, errors.New("crqa: fake compute server: exchange failed")
	}
	return kernel.Compute(r, sig1, sig2), nil
}

// Close implements internal/interfaces.ComputeClient.
func (f *FakeComputeServer) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	return nil
}

// Calls returns how many times Exchange has been invoked.
func (f *FakeComputeServer) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// Closed returns how many times Close has been invoked.
func (f *FakeComputeServer) Closed() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// MockBus is an in-memory implementation of internal/bus.Transport for
// tests of the chardev/driver layer that don't need a real Device
// Model: registers live in a plain map and the shared buffer in a
// plain slice, with no compute, retry, or interrupt behavior.
type MockBus struct {
	mu sync.Mutex

	regs   map[uint32]uint64
	shared []byte

	TriggerCounter uint64
	TriggerCalls   int
}

// NewMockBus returns a MockBus with a zeroed shared-buffer region
// sized constants.RegionSize and trigger_counter starting at 1.
func NewMockBus() *MockBus {
	return &MockBus{
		regs:           make(map[uint32]uint64),
		shared:         make([]byte, constants.RegionSize),
		TriggerCounter: 1,
	}
}

func (b *MockBus) ReadReg(offset uint32, width int) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.regs[offset], nil
}

func (b *MockBus) WriteReg(offset uint32, width int, val uint64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.regs[offset] = val
	return nil
}

func (b *MockBus) ReadBuf(offset uint32, out []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if int(offset)+len(out) > len(b.shared) {
		return errors.New("crqa: mock bus: read out of range")
	}
	copy(out, b.shared[offset:])
	return nil
}

func (b *MockBus) WriteBuf(offset uint32, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if int(offset)+len(data) > len(b.shared) {
		return errors.New("crqa: mock bus: write out of range")
	}
	copy(b.shared[offset:], data)
	return nil
}

// Trigger rejects an id that does not match TriggerCounter and
// otherwise bumps TriggerCounter; it never contacts a Kernel or
// Compute Server. Tests that need real
// dispatch semantics should use internal/devicemodel.Model directly.
func (b *MockBus) Trigger(id uint64) (accepted bool, counter uint64, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.TriggerCalls++
	if id != b.TriggerCounter {
		return false, b.TriggerCounter, nil
	}
	b.TriggerCounter++
	return true, b.TriggerCounter, nil
}
