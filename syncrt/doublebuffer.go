// Package syncrt implements the lock-free primitives shared by the real-time
// audio thread and the non-real-time control/disk threads: a single-slot
// double-buffered configuration handover and an SPSC ring buffer.
//
// Ported from LinuxSampler's SynchronizedConfig<T> (see
// original_source/src/common/SynchronizedConfig.h): the C++ template's
// Lock/Unlock/GetConfigForUpdate/SwitchConfig map directly onto the generic
// methods below.
package syncrt

import (
	"sync/atomic"
	"time"
)

// DoubleBuffer lets a single non-real-time updater goroutine mutate a value
// of type T without ever blocking the single real-time reader goroutine.
//
// Reader side (audio thread): call Lock to obtain the active instance for
// read-only use, Unlock when done. Neither call blocks or allocates.
//
// Writer side (control thread): call GetForUpdate to obtain the inactive
// instance, mutate it, call Switch to publish it and receive the
// now-inactive instance back; replay the same mutation on it. Switch
// spin-waits (millisecond-scale sleeps) until the reader has released the
// instance being retired, so after two update+switch cycles both instances
// agree, satisfying the byte-identical round-trip property.
type DoubleBuffer[T any] struct {
	lock        atomic.Bool
	activeIndex atomic.Int32
	updateIndex int32
	config      [2]T
}

// NewDoubleBuffer creates a DoubleBuffer with both instances initialized to
// zero. Use Init if T needs non-zero initial state in both slots.
func NewDoubleBuffer[T any]() *DoubleBuffer[T] {
	return &DoubleBuffer[T]{}
}

// Init sets both internal instances to a copy of the given seed value. Must
// be called before the reader or writer goroutines start, if at all.
func (d *DoubleBuffer[T]) Init(seed T) {
	d.config[0] = seed
	d.config[1] = seed
}

// Lock returns a pointer to the currently active instance for the real-time
// reader. Wait-free, no syscalls, never blocks.
func (d *DoubleBuffer[T]) Lock() *T {
	d.lock.Store(true)
	return &d.config[d.activeIndex.Load()]
}

// Unlock releases the instance obtained from Lock. Must be called exactly
// once per Lock before the next Lock call.
func (d *DoubleBuffer[T]) Unlock() {
	d.lock.Store(false)
}

// GetForUpdate returns the instance not currently active, safe for the
// control thread to mutate freely.
func (d *DoubleBuffer[T]) GetForUpdate() *T {
	d.updateIndex = d.activeIndex.Load() ^ 1
	return &d.config[d.updateIndex]
}

// Switch atomically publishes the instance last returned by GetForUpdate as
// the new active instance, then spin-waits until the reader has released the
// instance being retired, and returns that now-inactive instance so the
// caller can replay the same mutation on it.
func (d *DoubleBuffer[T]) Switch() *T {
	d.activeIndex.Store(d.updateIndex)
	for d.lock.Load() {
		time.Sleep(50 * time.Millisecond)
	}
	return &d.config[d.updateIndex^1]
}
