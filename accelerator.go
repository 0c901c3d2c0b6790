// Package crqa provides the main API for running an emulated CRQA
// accelerator in-process: a Device Model bound to a Compute Server
// dial function, with start/stop lifecycle and metrics, for use by a
// chardev/driver front end or directly in tests.
package crqa

import (
	"context"
	"fmt"

	"github.com/qcrqa/crqa-accel/internal/devicemodel"
	"github.com/qcrqa/crqa-accel/internal/interfaces"
	"github.com/qcrqa/crqa-accel/internal/ipc"
	"github.com/qcrqa/crqa-accel/internal/logging"
)

// AcceleratorParams contains parameters for creating an Accelerator.
type AcceleratorParams struct {
	// SocketPath is the Compute Server's Unix domain socket path.
	SocketPath string

	// Notify, if true, dials once at construction and holds the
	// connection open, registering a wake eventfd with the server so
	// completions arrive via the notification path instead of being
	// read back inline on the triggering goroutine.
	Notify bool

	// Observer receives trigger/compute/interrupt events. Defaults to
	// a MetricsObserver wrapping a fresh Metrics if nil.
	Observer Observer

	// Logger receives debug/info messages. If nil, devicemodel uses
	// its package default logger.
	Logger *logging.Logger
}

// DefaultAcceleratorParams returns default parameters dialing the
// accelerator's well-known socket path in synchronous (non-notify)
// mode.
func DefaultAcceleratorParams() AcceleratorParams {
	return AcceleratorParams{
		SocketPath: DefaultSocketPath,
		Notify:     false,
	}
}

// AcceleratorState mirrors the Device Model's lifecycle from the
// caller's point of view.
type AcceleratorState string

const (
	AcceleratorStateCreated AcceleratorState = "created"
	AcceleratorStateRunning AcceleratorState = "running"
	AcceleratorStateStopped AcceleratorState = "stopped"
)

// Accelerator is the public handle on a running emulated accelerator:
// a devicemodel.Model, its interrupt wiring, and its metrics.
type Accelerator struct {
	model *devicemodel.Model

	ctx    context.Context
	cancel context.CancelFunc

	notifier *devicemodel.WakeNotifier

	metrics  *Metrics
	observer Observer

	started bool
	stopped bool
}

// StartAccelerator dials the Compute Server at params.SocketPath and
// constructs a running Accelerator bound to it.
//
// Example:
//
//	params := crqa.DefaultAcceleratorParams()
//	accel, err := crqa.StartAccelerator(context.Background(), params)
func StartAccelerator(ctx context.Context, params AcceleratorParams) (*Accelerator, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if params.SocketPath == "" {
		params.SocketPath = DefaultSocketPath
	}

	metrics := NewMetrics()
	observer := params.Observer
	if observer == nil {
		observer = NewMetricsObserver(metrics)
	}

	dial := func() (interfaces.ComputeClient, error) {
		return ipc.Dial(params.SocketPath, false)
	}

	opts := []devicemodel.Option{devicemodel.WithObserver(observer)}
	if params.Logger != nil {
		opts = append(opts, devicemodel.WithLogger(params.Logger))
	}

	a := &Accelerator{
		ctx:      ctx,
		metrics:  metrics,
		observer: observer,
	}
	a.ctx, a.cancel = context.WithCancel(ctx)

	if params.Notify {
		client, err := ipc.Dial(params.SocketPath, true)
		if err != nil {
			a.cancel()
			return nil, fmt.Errorf("crqa: dial notify socket %s: %w", params.SocketPath, err)
		}
		opts = append(opts, devicemodel.WithPersistentConnection())
		model, err := devicemodel.NewModel(func() (interfaces.ComputeClient, error) {
			return client, nil
		}, opts...)
		if err != nil {
			client.Close()
			a.cancel()
			return nil, fmt.Errorf("crqa: new device model: %w", err)
		}
		a.model = model
		a.notifier = devicemodel.NewWakeNotifier(model, client)
		go func() {
			if err := a.notifier.Run(); err != nil {
				model.Close()
			}
		}()
	} else {
		model, err := devicemodel.NewModel(dial, opts...)
		if err != nil {
			a.cancel()
			return nil, fmt.Errorf("crqa: new device model: %w", err)
		}
		a.model = model
	}

	a.started = true
	return a, nil
}

// Model returns the underlying Device Model, for wiring a chardev or
// driver front end to it.
func (a *Accelerator) Model() *devicemodel.Model {
	return a.model
}

// State returns the accelerator's current lifecycle state.
func (a *Accelerator) State() AcceleratorState {
	if a == nil {
		return AcceleratorStateStopped
	}
	if !a.started {
		return AcceleratorStateCreated
	}
	if a.stopped {
		return AcceleratorStateStopped
	}
	select {
	case <-a.ctx.Done():
		return AcceleratorStateStopped
	default:
		return AcceleratorStateRunning
	}
}

// IsRunning reports whether the accelerator is actively serving
// triggers.
func (a *Accelerator) IsRunning() bool {
	return a.State() == AcceleratorStateRunning
}

// Metrics returns the accelerator's live metrics counters.
func (a *Accelerator) Metrics() *Metrics {
	if a == nil {
		return nil
	}
	return a.metrics
}

// MetricsSnapshot returns a point-in-time snapshot of accelerator
// metrics.
func (a *Accelerator) MetricsSnapshot() MetricsSnapshot {
	if a == nil || a.metrics == nil {
		return MetricsSnapshot{}
	}
	return a.metrics.Snapshot()
}

// Stop shuts the accelerator down: it cancels the accelerator's
// context, stops the wake notifier (if running in notify mode), and
// closes the Device Model's connection.
func (a *Accelerator) Stop() error {
	if a == nil {
		return ErrInvalidParameters
	}
	if a.cancel != nil {
		a.cancel()
	}
	if a.metrics != nil {
		a.metrics.Stop()
	}
	if a.notifier != nil {
		a.notifier.Stop()
	}
	var err error
	if a.model != nil {
		err = a.model.Close()
	}
	a.stopped = true
	return err
}
