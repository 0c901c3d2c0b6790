package devicemodel

import (
	"encoding/binary"
	"time"

	"github.com/qcrqa/crqa-accel/internal/constants"
	"github.com/qcrqa/crqa-accel/internal/ipc"
	"github.com/qcrqa/crqa-accel/internal/kernel"
	"github.com/qcrqa/crqa-accel/internal/uapi"
)

// SharedBufferWrite mirrors an ordinary (non-trigger) write into the
// shared-buffer region, updating R/opcode/sig1/sig2 in place from
// whatever is currently encoded in m.sharedBuf (see SharedBuffer). The
// Client is expected to fill the whole buffer before issuing the
// trigger write.
func (m *Model) SharedBufferWrite() {
	r, opcode, id, sig1, sig2 := uapi.DecodeSharedBufferRequest(m.sharedBuf)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.r = r
	m.opcode = opcode
	m.sig1 = sig1
	m.sig2 = sig2
	_ = id // the buffer's id field is advisory; trigger_counter is authoritative
}

// SharedBufferTrigger handles a write of the dispatch magic to the
// trigger register. id is the value the caller wrote into the
// buffer's id field at the moment of the trigger write. It returns
// true if the buffer's metrics region was updated (success) and the
// trigger_counter value to report back to the caller.
//
// On a stale id (spec §4.3.2 step 1) the write is rejected: no state
// changes, and the returned ok is false with changed=false.
func (m *Model) SharedBufferTrigger(id uint64) (changed bool, newCounter uint64) {
	m.mu.Lock()
	if id != m.triggerCounter {
		counter := m.triggerCounter
		m.mu.Unlock()
		if m.observer != nil {
			m.observer.ObserveStaleTrigger()
		}
		m.log.Debugf("sharedbuf trigger: stale id %d (expected %d)", id, counter)
		return false, counter
	}

	r, opcode, sig1, sig2 := m.r, m.opcode, m.sig1, m.sig2
	m.state = StateArmed
	m.mu.Unlock()
	if m.observer != nil {
		m.observer.ObserveTrigger(true)
	}

	bundle, ok, attempts := m.dispatchWithRetry(r, opcode, &sig1, &sig2)

	m.mu.Lock()
	defer m.mu.Unlock()

	if ok {
		bundle = m.applyKernelVariant(bundle, r, &sig1, &sig2)
		m.metrics = bundle
		m.haveMetrics = true
		uapi.EncodeSharedBufferMetrics(m.sharedBuf[uapi.SharedBufMetrics:], bundle.ToArray())
	}

	// Both terminal substates (SUCCESS, FAIL) return to IDLE and bump
	// the counter (spec §4.3.4); only SUCCESS leaves metrics updated.
	m.triggerCounter++
	m.state = StateIdle
	newCounter = m.triggerCounter

	// Stamp the new id back into the buffer regardless of outcome, so
	// the guest observes the monotone counter advance even on failure
	// (spec §4.3.2 step 2, §7 IpcTransient).
	binary.LittleEndian.PutUint64(m.sharedBuf[uapi.SharedBufID:], newCounter)

	if m.observer != nil {
		m.observer.ObserveCompute(0, ok, attempts-1)
	}
	if ok {
		m.scheduleInterrupt()
	}

	return ok, newCounter
}

// SharedBufferTriggerAsync is the notification-mode counterpart of
// SharedBufferTrigger: it validates id exactly the same way, but
// instead of blocking for the response it only sends the Request
// frame and returns. The bus write this backs must return immediately
// (spec §5); completion is handled later by a WakeNotifier draining
// the wake eventfd. client must be the same persistent connection the
// Model was constructed with.
func (m *Model) SharedBufferTriggerAsync(id uint64, client *ipc.Client) (accepted bool, counter uint64) {
	m.mu.Lock()
	if id != m.triggerCounter {
		counter = m.triggerCounter
		m.mu.Unlock()
		if m.observer != nil {
			m.observer.ObserveStaleTrigger()
		}
		m.log.Debugf("sharedbuf async trigger: stale id %d (expected %d)", id, counter)
		return false, counter
	}

	r, opcode, sig1, sig2 := m.r, m.opcode, m.sig1, m.sig2
	m.state = StateArmed
	counter = m.triggerCounter
	m.mu.Unlock()
	if m.observer != nil {
		m.observer.ObserveTrigger(true)
	}

	if err := client.SendRequest(r, opcode, &sig1, &sig2); err != nil {
		m.log.Debugf("sharedbuf async trigger: send failed: %v", err)
		return false, counter
	}

	m.mu.Lock()
	m.state = StateDispatched
	m.mu.Unlock()

	return true, counter
}

// dispatchWithRetry performs the Compute Server exchange, making up to
// constants.DispatchMaxAttempts attempts in total (the first one plus
// retries) with constants.DispatchRetryDelay between attempts (spec
// §4.3.2 step 2, §5). It returns the number of attempts made. It must be called without
// m.mu held, since each attempt dials and exchanges, which can block
// for the duration of an IPC round trip.
func (m *Model) dispatchWithRetry(r float64, opcode uint32, sig1, sig2 *[constants.N]float64) (bundle kernel.MetricBundle, ok bool, attempts int) {
	for attempt := 1; attempt <= constants.DispatchMaxAttempts; attempt++ {
		attempts = attempt

		m.mu.Lock()
		m.state = StateDispatched
		client, err := m.clientLocked()
		m.mu.Unlock()

		if err != nil {
			m.log.Debugf("sharedbuf dispatch attempt %d/%d: dial failed: %v", attempt, constants.DispatchMaxAttempts, err)
			time.Sleep(constants.DispatchRetryDelay)
			continue
		}

		b, err := client.Exchange(r, opcode, sig1, sig2)
		if !m.persistent {
			client.Close()
		}
		if err == nil {
			return b, true, attempts
		}
		m.log.Debugf("sharedbuf dispatch attempt %d/%d: exchange failed: %v", attempt, constants.DispatchMaxAttempts, err)
		if attempt < constants.DispatchMaxAttempts {
			time.Sleep(constants.DispatchRetryDelay)
		}
	}
	return kernel.MetricBundle{}, false, attempts
}
