// Package console writes diagnostic text to the board's serial transmitter
// one byte at a time, and arbitrates access to it between tasks.
package console

import (
	"errors"
	"sync/atomic"

	"github.com/jangala-dev/tinygo-rtosdemo/board"
	"github.com/jangala-dev/tinygo-rtosdemo/rtos"
)

var ErrTimeout = errors.New("console: timed out waiting for uart")

// Console writes to a Transmitter. It holds no lock of its own: callers that
// share it between tasks use a Token or a Guarded writer.
type Console struct {
	tx board.Transmitter

	// ByteYield makes PrintFrom give up the CPU after every ByteYield bytes,
	// the points at which a real transmit loop can lose the CPU to a tick.
	// Zero prints a message in one go.
	ByteYield int
}

func New(tx board.Transmitter) *Console { return &Console{tx: tx} }

// Print transmits s byte by byte, blocking on each byte.
func (c *Console) Print(s string) {
	for i := 0; i < len(s); i++ {
		c.tx.TransmitByte(s[i])
	}
}

// PrintFrom prints the parts of one message from task t, yielding every
// ByteYield bytes. It never yields after the last byte.
func (c *Console) PrintFrom(t *rtos.Task, parts ...string) {
	total := 0
	for _, s := range parts {
		total += len(s)
	}
	sent := 0
	for _, s := range parts {
		for i := 0; i < len(s); i++ {
			c.tx.TransmitByte(s[i])
			sent++
			if c.ByteYield > 0 && sent%c.ByteYield == 0 && sent < total {
				t.Yield()
			}
		}
	}
}

// TokenState is the value of a Token.
type TokenState uint32

const (
	Available TokenState = iota
	NotAvailable
)

func (s TokenState) String() string {
	if s == Available {
		return "available"
	}
	return "not-available"
}

// Token is an advisory UART access key shared by cooperating tasks. Checking
// and taking are separate steps, so two tasks that are preempted between them
// can both believe they hold it. It is only sound while the tasks involved
// cannot preempt each other between the check and the take; use Guarded
// otherwise.
type Token struct{ v atomic.Uint32 }

func (t *Token) State() TokenState { return TokenState(t.v.Load()) }
func (t *Token) Available() bool   { return t.State() == Available }
func (t *Token) Take()             { t.v.Store(uint32(NotAvailable)) }
func (t *Token) Release()          { t.v.Store(uint32(Available)) }

// Guarded serialises whole messages through a kernel mutex. Waiting is
// bounded and the mutex is released on every exit path.
type Guarded struct {
	c       *Console
	m       *rtos.Mutex
	timeout uint32
}

// NewGuarded wraps c with m. timeout is in ticks; rtos.Forever waits for ever.
func NewGuarded(c *Console, m *rtos.Mutex, timeout uint32) *Guarded {
	return &Guarded{c: c, m: m, timeout: timeout}
}

// Print prints the parts of one message from task t without interleaving
// with other Guarded writers, or returns ErrTimeout.
func (g *Guarded) Print(t *rtos.Task, parts ...string) error {
	if !g.m.Take(t, g.timeout) {
		return ErrTimeout
	}
	defer func() { _ = g.m.Give(t) }()
	g.c.PrintFrom(t, parts...)
	return nil
}
