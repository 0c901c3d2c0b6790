package devicemodel

import (
	"encoding/binary"
	"sync/atomic"

	"golang.org/x/sys/unix"

	"github.com/qcrqa/crqa-accel/internal/ipc"
	"github.com/qcrqa/crqa-accel/internal/uapi"
)

// WakeNotifier drains a Device Model's wake eventfd and completes the
// in-flight shared-buffer request from the callback, rather than
// inline with the bus write that dispatched it (spec §4.3.3, §5).
// Grounded on original_source/dir-working/mmio/psd.c's
// crqa_event_handler, which reads the eventfd, reads the pending
// result off the socket, and schedules the IRQ bottom half — never
// delivering the interrupt from the handler itself.
type WakeNotifier struct {
	model  *Model
	client *ipc.Client

	stop    chan struct{}
	stopped atomic.Bool
}

// NewWakeNotifier constructs a notifier bound to model's persistent
// client. Completed requests are written into model's own shared
// buffer (model.SharedBuffer()).
func NewWakeNotifier(model *Model, client *ipc.Client) *WakeNotifier {
	return &WakeNotifier{
		model:  model,
		client: client,
		stop:   make(chan struct{}),
	}
}

// Run blocks, draining the wake eventfd one count at a time, until
// Stop is called. It is meant to run in its own goroutine.
func (w *WakeNotifier) Run() error {
	fd := w.client.WakeFD()
	pfd := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}

	for {
		select {
		case <-w.stop:
			return nil
		default:
		}

		n, err := unix.Poll(pfd, 250)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return err
		}
		if n == 0 {
			continue // poll timeout, re-check stop
		}

		count, err := ipc.DrainWakeFD(fd)
		if err != nil {
			return err
		}

		for i := uint64(0); i < count; i++ {
			w.completeOne()
		}
	}
}

// Stop signals Run to return after its current iteration.
func (w *WakeNotifier) Stop() {
	if w.stopped.CompareAndSwap(false, true) {
		close(w.stop)
	}
}

func (w *WakeNotifier) completeOne() {
	bundle, err := w.client.RecvResponse()

	w.model.mu.Lock()
	defer w.model.mu.Unlock()

	ok := err == nil
	if ok {
		bundle = w.model.applyKernelVariant(bundle, w.model.r, &w.model.sig1, &w.model.sig2)
		w.model.metrics = bundle
		w.model.haveMetrics = true
		uapi.EncodeSharedBufferMetrics(w.model.sharedBuf[uapi.SharedBufMetrics:], bundle.ToArray())
	} else {
		w.model.log.Debugf("wake notifier: recv response failed: %v", err)
	}

	w.model.triggerCounter++
	w.model.state = StateIdle
	binary.LittleEndian.PutUint64(w.model.sharedBuf[uapi.SharedBufID:], w.model.triggerCounter)

	if w.model.observer != nil {
		w.model.observer.ObserveCompute(0, ok, 0)
	}
	if ok {
		w.model.scheduleInterrupt()
	}
}
