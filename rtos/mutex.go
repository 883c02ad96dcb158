package rtos

import "github.com/gammazero/deque"

// Mutex is a kernel mutex. Waiting tasks block without using CPU and are
// granted ownership in FIFO order. There is no priority inheritance. A mutex
// owned by a deleted task is released as if the task had called Give.
type Mutex struct {
	owner   *Task
	waiters deque.Deque[*Task]
}

// NewMutex returns an unlocked mutex.
func (k *Kernel) NewMutex() *Mutex { return &Mutex{} }

// Take acquires the mutex for t, waiting at most timeout ticks. It reports
// whether t now owns the mutex.
func (m *Mutex) Take(t *Task, timeout uint32) bool {
	if m.owner == nil {
		m.acquire(t)
		return true
	}
	if m.owner == t || timeout == 0 {
		return false
	}
	t.mutex = m
	m.waiters.PushBack(t)
	t.block(waitMutex, timeout)
	return m.owner == t
}

// Give releases the mutex held by t. Ownership passes directly to the longest
// waiting task; if that task is more urgent than t, t is preempted.
func (m *Mutex) Give(t *Task) error {
	if m.owner != t {
		return ErrNotOwner
	}
	if w := m.release(); w != nil && w.prio > t.prio {
		t.preempt()
	}
	return nil
}

// Held reports whether some task owns the mutex.
func (m *Mutex) Held() bool { return m.owner != nil }

func (m *Mutex) acquire(t *Task) {
	m.owner = t
	t.owned = append(t.owned, m)
}

// release takes the mutex from its owner and hands it to the longest waiting
// task, which is made ready and returned. It returns nil if none waits.
func (m *Mutex) release() *Task {
	o := m.owner
	for i, h := range o.owned {
		if h == m {
			o.owned = append(o.owned[:i], o.owned[i+1:]...)
			break
		}
	}
	m.owner = nil
	if m.waiters.Len() == 0 {
		return nil
	}
	w := m.waiters.PopFront()
	m.acquire(w)
	o.k.unblock(w)
	return w
}

func (m *Mutex) drop(t *Task) {
	if i := m.waiters.Index(func(w *Task) bool { return w == t }); i >= 0 {
		m.waiters.Remove(i)
	}
}
