// Package rtos is a small fixed-priority task kernel in the shape of the
// FreeRTOS task API: tasks are created before the scheduler starts, block on
// delays and notifications, and may delete themselves.
//
// Every task runs on its own goroutine but only one holds the CPU at a time.
// The CPU changes hands at kernel calls (Delay, Spin, Yield, NotifyWait, Notify
// to a more urgent task, Delete, mutex Take/Give), so a task loop must reach
// one of them on every iteration. Time is a tick counter that advances when
// no task is ready, on every tick of a Spin, and after Config.SwitchesPerTick
// context switches within one tick. With slicing disabled a tick still ends
// after maxSwitchesPerTick switches, so tasks that only yield cannot stop the
// clock. With Config.Pace set each tick also waits
// for wall-clock time, which is how the kernel runs on a board.
package rtos

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gammazero/deque"
)

const (
	DefaultTickRateHz      = 1000
	DefaultMaxPriorities   = 5
	DefaultSwitchesPerTick = 8
	defaultISRQueueLen     = 16
	maxSwitchesPerTick     = 1024
)

// Config holds the kernel build options (FreeRTOSConfig.h equivalents).
type Config struct {
	TickRateHz      uint32        // ticks per second; 0 means DefaultTickRateHz
	MaxPriorities   int           // priorities are 0..MaxPriorities-1
	SwitchesPerTick int           // context switches per tick slice; <0 disables slicing
	Pace            time.Duration // wall-clock tick length; 0 runs in virtual time
	ISRQueueLen     int           // capacity of the ISR notification queue

	// TickHook runs in interrupt context after every tick increment. A
	// non-nil error is fatal and stops the scheduler.
	TickHook func(tick uint32) error

	Logger *slog.Logger
}

// Kernel schedules tasks. Apart from TickCount, DebugStats, NotifyFromISR and
// Close, its methods must be called either from task context or while the
// scheduler is not running.
type Kernel struct {
	cfg Config
	log *slog.Logger

	tasks       map[Handle]*Task
	order       []*Task // live tasks in creation order
	ready       []deque.Deque[*Task]
	delayed     []*Task
	terminating []*Task
	current     *Task
	lastHandle  Handle

	tick     atomic.Uint32
	switches int // context switches in the current tick

	back chan struct{} // task -> kernel: CPU returned
	isr  chan isrPost
	halt chan struct{}

	closeOnce sync.Once
	closed    atomic.Bool
	running   atomic.Bool

	stats counters
}

// New returns a kernel with no tasks.
func New(cfg Config) *Kernel {
	if cfg.TickRateHz == 0 {
		cfg.TickRateHz = DefaultTickRateHz
	}
	if cfg.MaxPriorities <= 0 {
		cfg.MaxPriorities = DefaultMaxPriorities
	}
	if cfg.SwitchesPerTick == 0 {
		cfg.SwitchesPerTick = DefaultSwitchesPerTick
	}
	if cfg.ISRQueueLen <= 0 {
		cfg.ISRQueueLen = defaultISRQueueLen
	}
	log := cfg.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Kernel{
		cfg:   cfg,
		log:   log,
		tasks: make(map[Handle]*Task),
		ready: make([]deque.Deque[*Task], cfg.MaxPriorities),
		back:  make(chan struct{}),
		isr:   make(chan isrPost, cfg.ISRQueueLen),
		halt:  make(chan struct{}),
	}
}

// TickRateHz returns the configured tick rate.
func (k *Kernel) TickRateHz() uint32 { return k.cfg.TickRateHz }

// Ms converts milliseconds to ticks at the kernel's tick rate.
func (k *Kernel) Ms(ms uint32) uint32 { return MsToTicks(ms, k.cfg.TickRateHz) }

// TickCount returns the number of ticks since the scheduler first started.
func (k *Kernel) TickCount() uint32 { return k.tick.Load() }

// Create adds a task in the Ready state. Called from a running task, a more
// urgent new task preempts the caller immediately.
func (k *Kernel) Create(fn TaskFunc, name string, stackWords uint16, prio Priority) (Handle, error) {
	if k.closed.Load() {
		return NoHandle, ErrClosed
	}
	if fn == nil {
		return NoHandle, fmt.Errorf("create %q: %w", name, ErrNilFunc)
	}
	if int(prio) >= len(k.ready) {
		return NoHandle, fmt.Errorf("create %q: %w: %d (max %d)", name, ErrPriority, prio, len(k.ready)-1)
	}
	k.lastHandle++
	t := &Task{
		k:          k,
		handle:     k.lastHandle,
		name:       name,
		prio:       prio,
		stackWords: stackWords,
		fn:         fn,
		state:      Ready,
		resume:     make(chan struct{}, 1),
		kill:       make(chan struct{}),
	}
	k.tasks[t.handle] = t
	k.order = append(k.order, t)
	k.ready[prio].PushBack(t)
	go t.main()
	k.log.Debug("task created", "task", name, "handle", t.handle, "priority", prio, "stack_words", stackWords)

	if cur := k.current; cur != nil && prio > cur.prio {
		cur.preempt()
	}
	return t.handle, nil
}

// Delete removes the task named by h. Deleting the calling task does not
// return. The handle is invalid from this point on; memory is reclaimed when
// the kernel next idles. Mutexes the task owns pass to their next waiter, and
// a caller that is less urgent than that waiter is preempted.
func (k *Kernel) Delete(h Handle) error {
	t, ok := k.tasks[h]
	if !ok {
		return fmt.Errorf("delete %d: %w", h, ErrInvalidHandle)
	}
	if t == k.current {
		t.Delete()
	}
	k.retire(t)
	close(t.kill)
	if cur := k.current; cur != nil && k.readyAbove(cur.prio) {
		cur.preempt()
	}
	return nil
}

// Lookup returns a snapshot of the live task named by h.
func (k *Kernel) Lookup(h Handle) (TaskInfo, bool) {
	t, ok := k.tasks[h]
	if !ok {
		return TaskInfo{}, false
	}
	return t.info(), true
}

// Tasks returns snapshots of all live tasks in creation order.
func (k *Kernel) Tasks() []TaskInfo {
	out := make([]TaskInfo, 0, len(k.order))
	for _, t := range k.order {
		out = append(out, t.info())
	}
	return out
}

// Run starts the scheduler. It returns only when ctx is done, the kernel is
// closed, or the tick hook reports a fatal error.
func (k *Kernel) Run(ctx context.Context) error {
	return k.run(ctx, 0, false)
}

// RunFor runs the scheduler for the given number of ticks and then pauses it.
// Task state is kept, so RunFor may be called again to continue.
func (k *Kernel) RunFor(ctx context.Context, ticks uint32) error {
	return k.run(ctx, ticks, true)
}

// Close stops all task goroutines. The kernel cannot be used afterwards.
func (k *Kernel) Close() {
	k.closeOnce.Do(func() {
		k.closed.Store(true)
		close(k.halt)
	})
}

func (k *Kernel) run(ctx context.Context, limit uint32, bounded bool) error {
	if k.closed.Load() {
		return ErrClosed
	}
	if !k.running.CompareAndSwap(false, true) {
		return ErrStarted
	}
	defer k.running.Store(false)
	if k.lastHandle == NoHandle {
		return ErrNoTasks
	}

	var pace <-chan time.Time
	if k.cfg.Pace > 0 {
		tk := time.NewTicker(k.cfg.Pace)
		defer tk.Stop()
		pace = tk.C
	}

	start := k.tick.Load()
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		select {
		case <-k.halt:
			return ErrClosed
		default:
		}
		if bounded && k.tick.Load()-start >= limit {
			return nil
		}

		k.drainISR()
		t := k.pick()
		if t == nil {
			k.idle()
			if err := k.advance(ctx, pace, true); err != nil {
				return err
			}
			continue
		}

		if t.spinning && !reached(k.tick.Load(), t.spinUntil) {
			// The spinning task burns this tick, then rotates behind its peers.
			t.runs++
			err := k.advance(ctx, pace, false)
			if t.state == Ready {
				k.ready[t.prio].PushBack(t)
			}
			if err != nil {
				return err
			}
			continue
		}
		t.spinning = false

		if !k.dispatch(t) {
			return ErrClosed
		}
		k.switches++
		if k.switches >= k.slice() {
			if err := k.advance(ctx, pace, false); err != nil {
				return err
			}
		}
	}
}

// slice is the number of context switches after which the tick advances.
func (k *Kernel) slice() int {
	if k.cfg.SwitchesPerTick > 0 {
		return k.cfg.SwitchesPerTick
	}
	return maxSwitchesPerTick
}

// pick removes and returns the most urgent ready task.
func (k *Kernel) pick() *Task {
	for p := len(k.ready) - 1; p >= 0; p-- {
		if k.ready[p].Len() > 0 {
			return k.ready[p].PopFront()
		}
	}
	return nil
}

// readyAbove reports whether any task more urgent than p is ready.
func (k *Kernel) readyAbove(p Priority) bool {
	for q := len(k.ready) - 1; q > int(p); q-- {
		if k.ready[q].Len() > 0 {
			return true
		}
	}
	return false
}

// dispatch hands the CPU to t and waits for it to come back.
func (k *Kernel) dispatch(t *Task) bool {
	k.current = t
	t.state = Running
	t.runs++
	k.stats.contextSwitches.Add(1)
	t.resume <- struct{}{}
	defer func() { k.current = nil }()
	select {
	case <-k.back:
		return true
	case <-k.halt:
		return false
	}
}

// advance moves time forward by one tick. In paced mode it first waits for
// the wall clock; when idle, an ISR post ends the wait early so the scheduler
// can react before the tick.
func (k *Kernel) advance(ctx context.Context, pace <-chan time.Time, idle bool) error {
	for pace != nil {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-k.halt:
			return ErrClosed
		case p := <-k.isr:
			k.apply(p)
			if idle {
				return nil
			}
			continue
		case <-pace:
		}
		break
	}

	now := k.tick.Add(1)
	k.switches = 0
	if k.cfg.TickHook != nil {
		if err := k.cfg.TickHook(now); err != nil {
			k.log.Error("tick hook failed", "tick", now, "err", err)
			return fmt.Errorf("rtos: tick %d: %w", now, err)
		}
	}
	k.drainISR()
	k.wake(now)
	return nil
}

// wake readies every delayed task whose deadline has been reached.
func (k *Kernel) wake(now uint32) {
	kept := k.delayed[:0]
	var due []*Task
	for _, t := range k.delayed {
		if reached(now, t.wakeAt) {
			due = append(due, t)
			continue
		}
		kept = append(kept, t)
	}
	clear(k.delayed[len(kept):])
	k.delayed = kept
	for _, t := range due {
		t.timed = false
		t.expire()
	}
}

func (k *Kernel) addDelayed(t *Task, deadline uint32) {
	t.wakeAt = deadline
	t.timed = true
	k.delayed = append(k.delayed, t)
}

func (k *Kernel) unlinkDelayed(t *Task) {
	for i, d := range k.delayed {
		if d == t {
			k.delayed = append(k.delayed[:i], k.delayed[i+1:]...)
			break
		}
	}
	t.timed = false
}

func (k *Kernel) makeReady(t *Task) {
	t.state = Ready
	k.ready[t.prio].PushBack(t)
}

// unblock readies a task that is waiting on a notification or mutex.
func (k *Kernel) unblock(t *Task) {
	if t.timed {
		k.unlinkDelayed(t)
	}
	t.waiting = waitNone
	t.mutex = nil
	k.makeReady(t)
}

// retire moves t to the terminating list and drops every reference the
// scheduler holds to it.
func (k *Kernel) retire(t *Task) {
	delete(k.tasks, t.handle)
	for i, o := range k.order {
		if o == t {
			k.order = append(k.order[:i], k.order[i+1:]...)
			break
		}
	}
	if t.timed {
		k.unlinkDelayed(t)
	}
	if t.waiting == waitMutex && t.mutex != nil {
		t.mutex.drop(t)
	}
	t.waiting = waitNone
	t.mutex = nil
	for len(t.owned) > 0 {
		next := t.owned[0].release()
		k.log.Debug("mutex released on delete", "task", t.name, "handed_over", next != nil)
	}
	if t.state == Ready {
		q := &k.ready[t.prio]
		if i := q.Index(func(o *Task) bool { return o == t }); i >= 0 {
			q.Remove(i)
		}
	}
	t.spinning = false
	t.state = Deleted
	k.terminating = append(k.terminating, t)
	k.stats.deleted.Add(1)
	k.log.Debug("task deleted", "task", t.name, "handle", t.handle)
}

// idle does the idle task's housekeeping: reclaiming deleted tasks.
func (k *Kernel) idle() {
	for _, t := range k.terminating {
		k.stats.reclaimed.Add(1)
		k.log.Debug("task reclaimed", "task", t.name, "handle", t.handle, "stack_words", t.stackWords)
	}
	clear(k.terminating)
	k.terminating = k.terminating[:0]
}
