// Package instrument decorates allocators with Prometheus metrics.
package instrument

import (
	"reflect"
	"sync/atomic"

	"github.com/cockroachdb/errors"
	"github.com/ltd-go/ltd/memory"
	"github.com/ltd-go/ltd/memutils"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespace = "ltd"
	subsystem = "allocator"
)

// Allocator forwards every call to an inner allocator and counts operations, failures, and the
// bytes currently handed out. Several Allocators may share one registry as long as their names
// differ.
type Allocator struct {
	inner memory.Allocator
	name  string

	operations *prometheus.CounterVec
	failures   *prometheus.CounterVec
	bytesInUse prometheus.Gauge
	inUse      atomic.Int64
}

var _ memory.TypedAllocator = &Allocator{}

// New wraps inner and registers its metrics with reg, using name as the allocator label
func New(inner memory.Allocator, reg prometheus.Registerer, name string) (*Allocator, error) {
	if inner == nil {
		return nil, errors.Wrap(memutils.ErrNullPointer, "cannot instrument a nil allocator")
	}
	if reg == nil {
		return nil, errors.Wrap(memutils.ErrNullPointer, "cannot instrument an allocator without a registerer")
	}
	if name == "" {
		return nil, errors.New("instrumented allocators must be named")
	}

	operations, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "operations_total",
		Help:      "Number of allocator operations, by operation.",
	}, []string{"allocator", "op"}))
	if err != nil {
		return nil, err
	}

	failures, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "failures_total",
		Help:      "Number of allocator operations that returned an error, by operation.",
	}, []string{"allocator", "op"}))
	if err != nil {
		return nil, err
	}

	bytesInUse, err := register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "bytes_in_use",
		Help:      "Bytes handed out by the allocator and not yet returned.",
	}, []string{"allocator"}))
	if err != nil {
		return nil, err
	}

	return &Allocator{
		inner:      inner,
		name:       name,
		operations: operations,
		failures:   failures,
		bytesInUse: bytesInUse.WithLabelValues(name),
	}, nil
}

// register adds collector to reg, or returns the equivalent collector that is already registered
func register[C prometheus.Collector](reg prometheus.Registerer, collector C) (C, error) {
	err := reg.Register(collector)
	if err == nil {
		return collector, nil
	}

	var alreadyRegistered prometheus.AlreadyRegisteredError
	if errors.As(err, &alreadyRegistered) {
		existing, ok := alreadyRegistered.ExistingCollector.(C)
		if ok {
			return existing, nil
		}
	}

	return collector, errors.Wrap(err, "failed to register allocator metrics")
}

// Inner returns the allocator being instrumented
func (a *Allocator) Inner() memory.Allocator {
	return a.inner
}

func (a *Allocator) observe(op string, err error) {
	a.operations.WithLabelValues(a.name, op).Inc()
	if err != nil {
		a.failures.WithLabelValues(a.name, op).Inc()
	}
}

func (a *Allocator) adjustInUse(delta int) {
	a.bytesInUse.Set(float64(a.inUse.Add(int64(delta))))
}

func (a *Allocator) allocated(op string, block memory.Block, err error) (memory.Block, error) {
	a.observe(op, err)
	if err == nil {
		a.adjustInUse(block.Size)
	}

	return block, err
}

func (a *Allocator) Allocate(size int) (memory.Block, error) {
	block, err := a.inner.Allocate(size)
	return a.allocated("allocate", block, err)
}

// AllocateType asks the inner allocator for typed memory if it supports it, and for untyped memory
// when the type holds no Go pointers
func (a *Allocator) AllocateType(typ reflect.Type) (memory.Block, error) {
	block, err := memory.AllocateFor(a.inner, typ)
	return a.allocated("allocate_type", block, err)
}

func (a *Allocator) AllocateAll() (memory.Block, error) {
	block, err := a.inner.AllocateAll()
	return a.allocated("allocate_all", block, err)
}

func (a *Allocator) Deallocate(block memory.Block) error {
	err := a.inner.Deallocate(block)
	a.observe("deallocate", err)
	if err == nil {
		a.adjustInUse(-block.Size)
	}

	return err
}

func (a *Allocator) DeallocateAll() error {
	err := a.inner.DeallocateAll()
	a.observe("deallocate_all", err)
	if err == nil {
		a.inUse.Store(0)
		a.bytesInUse.Set(0)
	}

	return err
}

func (a *Allocator) Expand(block *memory.Block, delta int) error {
	err := a.inner.Expand(block, delta)
	a.observe("expand", err)
	if err == nil {
		a.adjustInUse(delta)
	}

	return err
}

func (a *Allocator) Owns(block memory.Block) (bool, error) {
	return a.inner.Owns(block)
}

// Failures returns the failure counter for one of this allocator's operations
func (a *Allocator) Failures(op string) prometheus.Counter {
	return a.failures.WithLabelValues(a.name, op)
}
