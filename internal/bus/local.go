package bus

import (
	"github.com/qcrqa/crqa-accel/internal/devicemodel"
	"github.com/qcrqa/crqa-accel/internal/interfaces"
)

// NewLocalTransport returns a Transport backed entirely by an
// in-process Device Model: the portable, non-uring path every test in
// this repository uses, and the one cmd/crqa-client always uses
// (spec §4.4).
// The returned value also satisfies LocalBacking, so
// chardev.MappingFace can map it without a real mmap.
func NewLocalTransport(dial devicemodel.Dialer, opts ...devicemodel.Option) (Transport, error) {
	return devicemodel.NewModel(dial, opts...)
}

// NewLocalTransportFor is NewLocalTransport for a caller that already
// has a single interfaces.ComputeClient to reuse for every request,
// e.g. a test's fake server or a persistent notify-mode connection
// dialed elsewhere.
func NewLocalTransportFor(client interfaces.ComputeClient, opts ...devicemodel.Option) (Transport, error) {
	return devicemodel.NewModel(func() (interfaces.ComputeClient, error) { return client, nil }, opts...)
}
