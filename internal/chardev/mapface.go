package chardev

import (
	"encoding/binary"
	"fmt"
	"os"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/qcrqa/crqa-accel/internal/bus"
	"github.com/qcrqa/crqa-accel/internal/constants"
	"github.com/qcrqa/crqa-accel/internal/uapi"
)

// localReadyPollInterval is how often the in-process fallback checks
// for a changed trigger id when no real fd is available to epoll.
const localReadyPollInterval = 2 * time.Millisecond

// MappedRegion is the shared-buffer single-shot mode's memory window
// (spec §4.3.2): either a real unix.Mmap'd region over the bound
// character device, or an in-process byte slice handed back by a
// local Transport's bus.LocalBacking.
type MappedRegion struct {
	data    []byte
	bus     bus.Transport
	file    *os.File
	mmapped bool
}

// Bytes returns the region's backing memory. Writes through it are
// visible to the Device Model immediately in the local case, and after
// the kernel's mmap semantics in the real-hardware case.
func (r *MappedRegion) Bytes() []byte {
	return r.data
}

// EncodeRequest writes one shared-buffer request into the region.
func (r *MappedRegion) EncodeRequest(req float64, opcode uint32, id uint64, sig1, sig2 *[constants.N]float64) {
	uapi.EncodeSharedBuffer(r.data, req, opcode, id, sig1, sig2)
}

// Flush pushes the region's contents through the transport's WriteBuf,
// latching the encoded fields into the Device Model's owning state
// (spec §4.3.2 step 1). A real mmap already shares the same memory the
// device reads, so a real-hardware Transport's WriteBuf is free to
// treat this as a no-op; the local fallback depends on it to update
// the cached R/opcode/sig1/sig2 fields SharedBufferTrigger reads.
func (r *MappedRegion) Flush() error {
	return r.bus.WriteBuf(0, r.data)
}

// DecodeMetrics reads the metrics region back out.
func (r *MappedRegion) DecodeMetrics() [8]float64 {
	return uapi.DecodeSharedBufferMetrics(r.data)
}

// ID reads the current trigger_counter/id word out of the region.
func (r *MappedRegion) ID() uint64 {
	return binary.LittleEndian.Uint64(r.data[uapi.SharedBufID:])
}

// Close unmaps and closes the backing device node, if this region was
// a real mmap. It is a no-op for the in-process fallback.
func (r *MappedRegion) Close() error {
	if !r.mmapped {
		return nil
	}
	var err error
	if merr := unix.Munmap(r.data); merr != nil {
		err = merr
	}
	if cerr := r.file.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

// MappingFace is the shared-buffer mapping surface: Map() hands back
// the region, Ready() signals when the in-flight request's result has
// landed. Grounded on the teacher's readiness-wait pattern
// (interruptible via context, never a busy spin on the caller's
// goroutine).
type MappingFace struct {
	bus        bus.Transport
	devicePath string

	mu   sync.Mutex
	ready chan struct{}
	stop  chan struct{} // closed to end the previous Map's readiness watcher
}

// NewMappingFace binds a MappingFace to a transport and, optionally, a
// real character device node path (e.g. "/dev/cpcidev_pci"). When
// devicePath is empty, or opening/mmapping it fails, Map falls back to
// the transport's bus.LocalBacking.
func NewMappingFace(t bus.Transport, devicePath string) *MappingFace {
	return &MappingFace{bus: t, devicePath: devicePath}
}

// Map returns the shared-buffer region, preferring a real mmap over
// the device node and falling back to the in-process backing a local
// Transport exposes. Each call resets the Ready() channel (spec
// §4.4/§8): a stale readiness signal from a previous mapping must
// never leak into a fresh one.
func (f *MappingFace) Map() (*MappedRegion, error) {
	f.mu.Lock()
	if f.stop != nil {
		close(f.stop)
	}
	ready := make(chan struct{})
	stop := make(chan struct{})
	f.ready = ready
	f.stop = stop
	f.mu.Unlock()

	if f.devicePath != "" {
		if region, err := f.mmapDevice(ready, stop); err == nil {
			return region, nil
		}
	}

	lb, ok := f.bus.(bus.LocalBacking)
	if !ok {
		return nil, fmt.Errorf("chardev: no device node at %q and transport has no local backing", f.devicePath)
	}
	region := &MappedRegion{data: lb.SharedBuffer(), bus: f.bus}
	go f.pollLocalReady(region, ready, stop)
	return region, nil
}

// Ready returns the channel that closes once after the region most
// recently returned by Map receives a result.
func (f *MappingFace) Ready() <-chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ready
}

// Trigger performs the shared-buffer dispatch trigger write, given the
// id the caller observed in the region at the moment of the write.
func (f *MappingFace) Trigger(id uint64) (accepted bool, counter uint64, err error) {
	return f.bus.Trigger(id)
}

func (f *MappingFace) mmapDevice(ready, stop chan struct{}) (*MappedRegion, error) {
	file, err := os.OpenFile(f.devicePath, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("chardev: open %s: %w", f.devicePath, err)
	}

	data, err := unix.Mmap(int(file.Fd()), 0, constants.RegionSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("chardev: mmap %s: %w", f.devicePath, err)
	}

	region := &MappedRegion{data: data, bus: f.bus, file: file, mmapped: true}
	go pollDeviceReady(file, ready, stop)
	return region, nil
}

// pollDeviceReady blocks on epoll for the bound device's MSI-driven
// POLLIN notification, then closes ready exactly once. It abandons the
// wait early if stop closes first (a fresh Map superseded this one).
func pollDeviceReady(file *os.File, ready, stop chan struct{}) {
	epfd, err := unix.EpollCreate1(0)
	if err != nil {
		return
	}
	defer unix.Close(epfd)

	fd := int(file.Fd())
	ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(fd)}
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		return
	}

	events := make([]unix.EpollEvent, 1)
	for {
		select {
		case <-stop:
			return
		default:
		}
		n, err := unix.EpollWait(epfd, events, 50)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return
		}
		if n > 0 {
			close(ready)
			return
		}
	}
}

// pollLocalReady simulates readiness for the in-process fallback,
// where there is no fd to epoll: it watches the region's id word for
// a change from its value at Map time.
func (f *MappingFace) pollLocalReady(region *MappedRegion, ready, stop chan struct{}) {
	startID := region.ID()
	ticker := time.NewTicker(localReadyPollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if region.ID() != startID {
				close(ready)
				return
			}
		}
	}
}
