package rtos

import "runtime"

// Priority orders tasks for scheduling. Higher values are more urgent.
type Priority uint8

// Handle is the opaque identifier the application uses to address a task.
// Handles are never reused, so a handle to a deleted task stays invalid.
type Handle uint32

// NoHandle is the zero Handle; it never names a task.
const NoHandle Handle = 0

// State is the lifecycle state of a task.
type State uint8

const (
	Ready State = iota
	Running
	Blocked
	Deleted
)

func (s State) String() string {
	switch s {
	case Ready:
		return "ready"
	case Running:
		return "running"
	case Blocked:
		return "blocked"
	case Deleted:
		return "deleted"
	}
	return "unknown"
}

// TaskFunc is a task entry point. A task normally loops for ever; returning
// from the entry point deletes the task.
type TaskFunc func(t *Task)

type waitKind uint8

const (
	waitNone waitKind = iota
	waitNotify
	waitMutex
)

// Task is the kernel-owned control block of a task. Its methods may only be
// called from the task's own goroutine, i.e. from inside its TaskFunc.
type Task struct {
	k          *Kernel
	handle     Handle
	name       string
	prio       Priority
	stackWords uint16
	fn         TaskFunc

	state  State
	resume chan struct{} // kernel -> task: you hold the CPU
	kill   chan struct{} // closed when another task deletes this one

	// delayed list membership
	timed  bool
	wakeAt uint32

	spinning  bool
	spinUntil uint32

	waiting waitKind
	mutex   *Mutex   // mutex being waited for
	owned   []*Mutex // mutexes held, released on delete

	notifyValue   uint32
	notifyPending bool

	runs uint64
}

// TaskInfo is a snapshot of a task's control block.
type TaskInfo struct {
	Handle        Handle
	Name          string
	Priority      Priority
	State         State
	StackWords    uint16
	Runs          uint64 // dispatches plus busy-wait ticks
	NotifyValue   uint32
	NotifyPending bool
}

func (t *Task) Handle() Handle      { return t.handle }
func (t *Task) Name() string        { return t.name }
func (t *Task) Priority() Priority  { return t.prio }
func (t *Task) Kernel() *Kernel     { return t.k }
func (t *Task) TickCount() uint32   { return t.k.TickCount() }
func (t *Task) Ms(ms uint32) uint32 { return t.k.Ms(ms) }

func (t *Task) info() TaskInfo {
	return TaskInfo{
		Handle:        t.handle,
		Name:          t.name,
		Priority:      t.prio,
		State:         t.state,
		StackWords:    t.stackWords,
		Runs:          t.runs,
		NotifyValue:   t.notifyValue,
		NotifyPending: t.notifyPending,
	}
}

// Yield gives the CPU to the next ready task of the same priority, if any.
func (t *Task) Yield() {
	t.state = Ready
	t.k.ready[t.prio].PushBack(t)
	t.handBack()
}

// Delay blocks the task for the given number of ticks. A zero delay yields.
// Delays are capped at MaxDelay ticks, except Forever, which blocks until the
// task is deleted. Notifications do not end a delay.
func (t *Task) Delay(ticks uint32) {
	if ticks == 0 {
		t.Yield()
		return
	}
	t.block(waitNone, ticks)
}

// DelayUntil blocks until *last+period and advances *last by period, giving
// a fixed cadence independent of how long the loop body took. If the wake
// time has already passed the task only yields.
func (t *Task) DelayUntil(last *uint32, period uint32) {
	next := *last + period
	*last = next
	if reached(t.k.tick.Load(), next) {
		t.Yield()
		return
	}
	t.state = Blocked
	t.k.addDelayed(t, next)
	t.handBack()
}

// Spin busy-waits for the given number of ticks. Unlike Delay the task stays
// ready and keeps the CPU, so lower-priority tasks get no time while it spins.
// Equal-priority tasks still share the CPU tick by tick.
func (t *Task) Spin(ticks uint32) {
	if ticks == 0 {
		return
	}
	k := t.k
	t.spinning = true
	t.spinUntil = k.tick.Load() + ticks
	t.state = Ready
	k.ready[t.prio].PushFront(t)
	t.handBack()
}

// Delete removes the calling task from the kernel and never returns. Stack and
// control block are reclaimed later, when the kernel next idles.
func (t *Task) Delete() {
	k := t.k
	if k.current != t {
		_ = k.Delete(t.handle)
		return
	}
	k.retire(t)
	select {
	case k.back <- struct{}{}:
	case <-k.halt:
	}
	runtime.Goexit()
}

// block suspends the task until it is made ready again or timeout ticks pass.
func (t *Task) block(w waitKind, timeout uint32) {
	t.state = Blocked
	t.waiting = w
	if timeout != Forever {
		timeout = min(timeout, MaxDelay)
		t.k.addDelayed(t, t.k.tick.Load()+timeout)
	}
	t.handBack()
}

// preempt puts a running task back at the head of its ready queue so that it
// resumes first among its peers once the more urgent task blocks.
func (t *Task) preempt() {
	t.state = Ready
	t.k.ready[t.prio].PushFront(t)
	t.handBack()
}

// expire is called when the task's timeout elapses while it is still blocked.
func (t *Task) expire() {
	if t.waiting == waitMutex && t.mutex != nil {
		t.mutex.drop(t)
	}
	t.waiting = waitNone
	t.mutex = nil
	t.k.makeReady(t)
}

func (t *Task) main() {
	if !t.park() {
		return
	}
	t.fn(t)
	t.Delete()
}

// park waits for the kernel to hand this task the CPU.
func (t *Task) park() bool {
	select {
	case <-t.resume:
		return true
	case <-t.kill:
		return false
	case <-t.k.halt:
		return false
	}
}

// handBack returns the CPU to the kernel and parks until scheduled again.
// The caller has already recorded its new state and queue membership.
func (t *Task) handBack() {
	select {
	case t.k.back <- struct{}{}:
	case <-t.k.halt:
		runtime.Goexit()
	}
	if !t.park() {
		runtime.Goexit()
	}
}
