package rtos

import "fmt"

// NotifyAction says how a notification updates the receiver's value.
type NotifyAction uint8

const (
	NoAction                 NotifyAction = iota // mark pending only
	SetBits                                      // value |= v
	Increment                                    // value++
	SetValueWithOverwrite                        // value = v
	SetValueWithoutOverwrite                     // value = v unless one is already pending
)

func (a NotifyAction) String() string {
	switch a {
	case NoAction:
		return "no-action"
	case SetBits:
		return "set-bits"
	case Increment:
		return "increment"
	case SetValueWithOverwrite:
		return "overwrite"
	case SetValueWithoutOverwrite:
		return "no-overwrite"
	}
	return fmt.Sprintf("NotifyAction(%d)", uint8(a))
}

type isrPost struct {
	h      Handle
	value  uint32
	action NotifyAction
}

// Notify updates the notification value of the task named by h and marks it
// pending. A task blocked in NotifyWait or NotifyTake is readied; if it is
// more urgent than the caller, the caller is preempted. Each task has a single
// slot: notifications sent before the receiver waits are combined, not queued.
// The result is false only for SetValueWithoutOverwrite when a notification
// was already pending.
//
// Notify must be called from task context or while the scheduler is stopped;
// interrupt handlers use NotifyFromISR.
func (k *Kernel) Notify(h Handle, value uint32, action NotifyAction) (bool, error) {
	ok, err := k.notify(h, value, action)
	if err != nil {
		return false, err
	}
	if cur := k.current; cur != nil && k.readyAbove(cur.prio) {
		cur.preempt()
	}
	return ok, nil
}

// NotifyFromISR queues a notification from interrupt context. It never blocks;
// the kernel applies queued notifications at its next scheduling point. The
// result is false when the queue is full and the notification was dropped.
func (k *Kernel) NotifyFromISR(h Handle, value uint32, action NotifyAction) bool {
	select {
	case k.isr <- isrPost{h: h, value: value, action: action}:
		k.stats.isrPosts.Add(1)
		return true
	default:
		k.stats.isrDropped.Add(1)
		return false
	}
}

func (k *Kernel) notify(h Handle, value uint32, action NotifyAction) (bool, error) {
	t, ok := k.tasks[h]
	if !ok {
		return false, fmt.Errorf("notify %d: %w", h, ErrInvalidHandle)
	}
	k.stats.notifySent.Add(1)
	if t.notifyPending {
		k.stats.notifyCoalesced.Add(1)
	}
	switch action {
	case SetBits:
		t.notifyValue |= value
	case Increment:
		t.notifyValue++
	case SetValueWithOverwrite:
		t.notifyValue = value
	case SetValueWithoutOverwrite:
		if t.notifyPending {
			return false, nil
		}
		t.notifyValue = value
	case NoAction:
	default:
		return false, fmt.Errorf("notify %d: unknown action %v", h, action)
	}
	t.notifyPending = true
	if t.waiting == waitNotify {
		k.unblock(t)
	}
	return true, nil
}

func (k *Kernel) drainISR() {
	for {
		select {
		case p := <-k.isr:
			k.apply(p)
		default:
			return
		}
	}
}

func (k *Kernel) apply(p isrPost) {
	if _, err := k.notify(p.h, p.value, p.action); err != nil {
		k.log.Warn("ISR notification dropped", "handle", p.h, "action", p.action, "err", err)
	}
}

// NotifyWait waits up to timeout ticks for a notification. If none is pending
// on entry, the bits in clearOnEntry are cleared before blocking. When a
// notification is received the value is returned, the bits in clearOnExit are
// cleared and ok is true. On timeout the current value is returned with ok
// false. A zero timeout polls; Forever never times out.
func (t *Task) NotifyWait(clearOnEntry, clearOnExit, timeout uint32) (value uint32, ok bool) {
	if !t.notifyPending {
		t.notifyValue &^= clearOnEntry
		if timeout != 0 {
			t.block(waitNotify, timeout)
		}
	}
	value = t.notifyValue
	if !t.notifyPending {
		return value, false
	}
	t.notifyValue &^= clearOnExit
	t.notifyPending = false
	return value, true
}

// NotifyTake uses the notification value as a counting semaphore. It waits up
// to timeout ticks for a non-zero value, then either clears it or decrements
// it and returns the value it had. Zero means the wait timed out.
func (t *Task) NotifyTake(clearOnExit bool, timeout uint32) uint32 {
	if t.notifyValue == 0 && timeout != 0 {
		t.notifyPending = false
		t.block(waitNotify, timeout)
	}
	v := t.notifyValue
	if v != 0 {
		if clearOnExit {
			t.notifyValue = 0
		} else {
			t.notifyValue--
		}
	}
	t.notifyPending = false
	return v
}
