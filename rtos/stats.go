package rtos

import "sync/atomic"

// Stats holds kernel counters since start or the last DebugReset.
type Stats struct {
	ContextSwitches uint32 // dispatches of a task onto the CPU
	ISRPosts        uint32 // NotifyFromISR calls queued
	ISRDropped      uint32 // NotifyFromISR calls dropped (queue full)
	NotifySent      uint32 // notifications applied to a live task
	NotifyCoalesced uint32 // notifications that landed on an already pending slot
	Deleted         uint32 // tasks deleted
	Reclaimed       uint32 // deleted tasks reclaimed by the idle pass
}

type counters struct {
	contextSwitches atomic.Uint32
	isrPosts        atomic.Uint32
	isrDropped      atomic.Uint32
	notifySent      atomic.Uint32
	notifyCoalesced atomic.Uint32
	deleted         atomic.Uint32
	reclaimed       atomic.Uint32
}

// DebugStats returns a copy of the counters. It is safe to call while the
// scheduler runs.
func (k *Kernel) DebugStats() Stats {
	return Stats{
		ContextSwitches: k.stats.contextSwitches.Load(),
		ISRPosts:        k.stats.isrPosts.Load(),
		ISRDropped:      k.stats.isrDropped.Load(),
		NotifySent:      k.stats.notifySent.Load(),
		NotifyCoalesced: k.stats.notifyCoalesced.Load(),
		Deleted:         k.stats.deleted.Load(),
		Reclaimed:       k.stats.reclaimed.Load(),
	}
}

// DebugReset zeroes the counters, typically between a warm-up run and a
// measured one.
func (k *Kernel) DebugReset() {
	k.stats.contextSwitches.Store(0)
	k.stats.isrPosts.Store(0)
	k.stats.isrDropped.Store(0)
	k.stats.notifySent.Store(0)
	k.stats.notifyCoalesced.Store(0)
	k.stats.deleted.Store(0)
	k.stats.reclaimed.Store(0)
}
