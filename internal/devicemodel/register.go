package devicemodel

import (
	"math"

	"github.com/qcrqa/crqa-accel/internal/constants"
)

// ReadMagic returns the device identity word at offset 0x00.
func (m *Model) ReadMagic() uint32 {
	return constants.DeviceMagic
}

// WriteR sets the recurrence-threshold register at offset 0x08.
func (m *Model) WriteR(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.r = v
}

// WriteSig1Index sets the sig1 scratch cursor at offset 0x18. An
// out-of-range index is latched as written, so the value writes that
// follow it are silently dropped until an in-range index is written.
func (m *Model) WriteSig1Index(idx uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sig1Index = idx
}

// WriteSig1Value writes sig1[sig1_index] at offset 0x20. Non-finite
// values are silently dropped, as is any write while sig1_index is
// out of range.
func (m *Model) WriteSig1Value(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sig1Index >= constants.N || math.IsNaN(v) || math.IsInf(v, 0) {
		return
	}
	m.sig1[m.sig1Index] = v
	if m.sig1Index == constants.N-1 {
		m.sig1Filled = true
	}
}

// WriteSig2Index sets the sig2 scratch cursor at offset 0x28, with the
// same out-of-range handling as WriteSig1Index.
func (m *Model) WriteSig2Index(idx uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sig2Index = idx
}

// WriteSig2Value writes sig2[sig2_index] at offset 0x30.
func (m *Model) WriteSig2Value(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sig2Index >= constants.N || math.IsNaN(v) || math.IsInf(v, 0) {
		return
	}
	m.sig2[m.sig2Index] = v
	if m.sig2Index == constants.N-1 {
		m.sig2Filled = true
	}
}

// WriteOpcode sets the opcode register at offset 0x38. data_ready is
// not cached: dataReady derives it from the opcode and the two filled
// flags. The opcode is plumbed through uninterpreted (spec §9 open
// question 1).
func (m *Model) WriteOpcode(opcode uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.opcode = opcode
	// data_ready is derived on read, nothing to cache here beyond the
	// fields it is computed from.
}

// TriggerRead is the register-window compute trigger: reading offset
// 0x40 performs a full, synchronous Request/Response exchange with
// the Compute Server. On success it stores the metric bundle and
// returns epsilon; on failure it returns 0 and leaves any previously
// stored metrics untouched (spec §4.3.1). Unlike the shared-buffer
// path, this trigger never retries: a single failed exchange simply
// reports failure to the caller.
func (m *Model) TriggerRead() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	client, err := m.clientLocked()
	if err != nil {
		if m.observer != nil {
			m.observer.ObserveTrigger(false)
		}
		m.log.Debugf("register trigger: dial failed: %v", err)
		return 0
	}

	bundle, err := client.Exchange(m.r, m.opcode, &m.sig1, &m.sig2)
	if !m.persistent {
		client.Close()
	}
	if err != nil {
		if m.observer != nil {
			m.observer.ObserveTrigger(false)
		}
		m.log.Debugf("register trigger: exchange failed: %v", err)
		return 0
	}

	bundle = m.applyKernelVariant(bundle, m.r, &m.sig1, &m.sig2)
	m.metrics = bundle
	m.haveMetrics = true
	if m.observer != nil {
		m.observer.ObserveTrigger(true)
	}
	return bundle.Epsilon
}

// ReadMetric returns the i'th metric (0-based, following Epsilon) at
// offsets 0x48..0x78, i.e. RecurrenceRate through Entropy. It never
// re-triggers a compute; it reads back the last stored bundle, or 0
// before any successful trigger.
func (m *Model) ReadMetric(i int) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.haveMetrics {
		return 0
	}
	a := m.metrics.ToArray()
	if i+1 < 0 || i+1 >= len(a) {
		return 0
	}
	return a[i+1]
}
