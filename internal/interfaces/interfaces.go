// Package interfaces provides internal interface definitions for
// crqa-accel. These are separate from the public package to avoid
// circular imports between the root package and internal packages.
package interfaces

import (
	"github.com/qcrqa/crqa-accel/internal/constants"
	"github.com/qcrqa/crqa-accel/internal/kernel"
)

// ComputeClient is the Device Model's view of the Compute Server: one
// request/response exchange per call. Implementations may hold a
// persistent connection (notification mode) or dial fresh per call
// (simple mode).
type ComputeClient interface {
	Exchange(r float64, opcode uint32, sig1, sig2 *[constants.N]float64) (kernel.MetricBundle, error)
	Close() error
}

// Logger interface for optional logging, satisfied by *logging.Logger.
type Logger interface {
	Printf(format string, args ...interface{})
	Debugf(format string, args ...interface{})
}

// Observer interface for metrics collection. Implementations must be
// thread-safe: methods are called from the Device Model's dispatch
// goroutine and, in notification mode, from the wake-drain goroutine.
type Observer interface {
	ObserveTrigger(success bool)
	ObserveStaleTrigger()
	ObserveCompute(latencyNs uint64, success bool, retries int)
	ObserveInterrupt()
}
