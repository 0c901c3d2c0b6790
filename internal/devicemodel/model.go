// Package devicemodel implements the emulated accelerator's owning
// state and its two bus-facing adapters. One Model instance backs
// both the per-field register window and the shared-buffer trigger —
// "one owning state with two input adapters, not two parallel state
// copies" (spec §9). Grounded on
// original_source/dir-working/{ioctl-calling,mmio}/psd.c, which are
// the two QEMU device-model variants the spec distills into one.
package devicemodel

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/qcrqa/crqa-accel/internal/constants"
	"github.com/qcrqa/crqa-accel/internal/interfaces"
	"github.com/qcrqa/crqa-accel/internal/kernel"
	"github.com/qcrqa/crqa-accel/internal/logging"
	"github.com/qcrqa/crqa-accel/internal/uapi"
)

// Dialer produces a fresh Compute Server connection. The simple
// (synchronous) variant calls it once per request; the notification
// variant calls it once at construction and holds the connection.
type Dialer func() (interfaces.ComputeClient, error)

// Model owns the accelerator's entire mutable state: the last-written
// request fields, the per-field programming cursors, the last
// completed metric bundle, and the shared-buffer dispatch counter.
type Model struct {
	mu sync.Mutex

	dial     Dialer
	client   interfaces.ComputeClient // cached only when persistent
	persistent bool

	r      float64
	opcode uint32
	sig1   [constants.N]float64
	sig2   [constants.N]float64

	sig1Index  uint32
	sig2Index  uint32
	sig1Filled bool
	sig2Filled bool

	// sharedBuf backs the shared-buffer single-shot mode (spec
	// §4.3.2). It is the Model's own copy of that window of the MMIO
	// region; a real-hardware transport would instead point this at
	// mapped guest memory.
	sharedBuf []byte

	metrics     kernel.MetricBundle
	haveMetrics bool

	triggerCounter uint64
	state          State

	kernelVariant KernelVariant

	observer interfaces.Observer
	log      *logging.Logger

	irq      *IRQQueue
	assertIRQ func()
}

// Option configures a Model at construction.
type Option func(*Model)

// WithObserver attaches a metrics observer.
func WithObserver(o interfaces.Observer) Option {
	return func(m *Model) { m.observer = o }
}

// WithLogger attaches a logger; defaults to logging.Default().
func WithLogger(l *logging.Logger) Option {
	return func(m *Model) { m.log = l }
}

// WithPersistentConnection dials once at construction and reuses the
// connection for every request — the notification-mode variant.
func WithPersistentConnection() Option {
	return func(m *Model) { m.persistent = true }
}

// WithInterruptHandler registers the callback invoked (on the IRQ
// queue's worker goroutine, never inline) when a request completes
// and a notification path is wired up.
func WithInterruptHandler(fn func()) Option {
	return func(m *Model) { m.assertIRQ = fn }
}

// KernelVariant selects which epsilon formula a Model's completed
// exchanges report. It is fixed at construction and never changes for
// the life of a Model, so reading it back requires no lock.
type KernelVariant int

const (
	// KernelVariantReference reports epsilon exactly as the Compute
	// Server computed it (aliased to Determinism). This is the default
	// and what every cmd/ binary runs.
	KernelVariantReference KernelVariant = iota
	// KernelVariantAlternateEpsilon overrides the Compute Server's
	// epsilon with kernel.AlternateEpsilon's PSD-mean formula, recomputed
	// locally from the same r/sig1/sig2 the request was built from. No
	// cmd/ binary selects this; it exists for deployments that want the
	// historical formula documented in spec.md §9 (see
	// internal/kernel/altepsilon.go).
	KernelVariantAlternateEpsilon
)

// WithKernelVariant selects the epsilon formula applied to this
// Model's completed exchanges. Defaults to KernelVariantReference.
func WithKernelVariant(v KernelVariant) Option {
	return func(m *Model) { m.kernelVariant = v }
}

// applyKernelVariant overrides bundle.Epsilon when m.kernelVariant
// calls for a formula other than the Compute Server's own. r, sig1,
// sig2 must be the exact values the request that produced bundle was
// built from.
func (m *Model) applyKernelVariant(bundle kernel.MetricBundle, r float64, sig1, sig2 *[constants.N]float64) kernel.MetricBundle {
	if m.kernelVariant == KernelVariantAlternateEpsilon {
		bundle.Epsilon = kernel.AlternateEpsilon(r, sig1, sig2)
	}
	return bundle
}

// NewModel constructs a Model bound to dial for Compute Server
// connections. triggerCounter starts at 1, matching the reference
// device model's boot value.
func NewModel(dial Dialer, opts ...Option) (*Model, error) {
	m := &Model{
		dial:           dial,
		triggerCounter: 1,
		state:          StateIdle,
		log:            logging.Default(),
		irq:            NewIRQQueue(),
		sharedBuf:      make([]byte, uapi.SharedBufferSize),
	}
	// Stamp the boot trigger_counter into the buffer's id field so a
	// fresh Map() immediately reflects the value SharedBufferTrigger
	// expects to see echoed back, instead of the zero value every
	// freshly allocated buffer otherwise starts with.
	binary.LittleEndian.PutUint64(m.sharedBuf[uapi.SharedBufID:], m.triggerCounter)
	for _, opt := range opts {
		opt(m)
	}

	if m.persistent {
		c, err := dial()
		if err != nil {
			return nil, fmt.Errorf("devicemodel: initial dial: %w", err)
		}
		m.client = c
	}

	return m, nil
}

// Close releases the persistent connection (if any) and stops the IRQ
// dispatch worker.
func (m *Model) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.irq.Close()
	if m.client != nil {
		return m.client.Close()
	}
	return nil
}

// TriggerCounter returns the current monotone completion identifier.
func (m *Model) TriggerCounter() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.triggerCounter
}

// State returns the shared-buffer dispatch state machine's current
// state.
func (m *Model) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// SharedBuffer returns the Model's own backing store for the
// shared-buffer single-shot mode (spec §4.3.2). Callers encode a
// request into it and call SharedBufferWrite to latch the fields into
// the owning state, or decode the metrics region after a trigger
// completes. A real-hardware bus.Transport would instead mmap guest
// memory directly here.
func (m *Model) SharedBuffer() []byte {
	return m.sharedBuf
}

// dataReady derives the register-path readiness flag: opcode set and
// both signal arrays fully written (spec §3).
func (m *Model) dataReady() bool {
	return m.opcode != 0 && m.sig1Filled && m.sig2Filled
}

// clientLocked returns the Compute Server connection to use for one
// exchange, dialing fresh when not running in persistent mode. Caller
// must hold m.mu.
func (m *Model) clientLocked() (interfaces.ComputeClient, error) {
	if m.persistent {
		return m.client, nil
	}
	return m.dial()
}

// scheduleInterrupt hands the MSI assertion to the single-worker IRQ
// queue so it never runs on the bus-write thread or the wake-drain
// goroutine (spec §9 "deferred interrupt delivery").
func (m *Model) scheduleInterrupt() {
	if m.assertIRQ == nil {
		return
	}
	fn := m.assertIRQ
	obs := m.observer
	m.irq.Schedule(func() {
		fn()
		if obs != nil {
			obs.ObserveInterrupt()
		}
	})
}
