// Package event holds the small pieces of shared state that producers
// (button tasks, interrupt handlers) use to signal consumer tasks.
package event

import "sync/atomic"

// Flag is a one-word boolean shared between a producer and its consumers
// without a lock. Loads and stores are atomic with respect to each other, but
// nothing more: a reader may see a value one scheduling slot old, and
// successive writes overwrite each other, so intermediate transitions can be
// missed. Consumers must treat it as a level, not as a queue of edges.
//
// The zero value is clear.
type Flag struct {
	v atomic.Uint32
}

// Set stores on unconditionally.
func (f *Flag) Set(on bool) {
	if on {
		f.v.Store(1)
	} else {
		f.v.Store(0)
	}
}

// IsSet reports the last stored value.
func (f *Flag) IsSet() bool { return f.v.Load() != 0 }

// Toggle inverts the flag and returns the new value.
func (f *Flag) Toggle() bool {
	for {
		old := f.v.Load()
		if f.v.CompareAndSwap(old, old^1) {
			return old == 0
		}
	}
}
