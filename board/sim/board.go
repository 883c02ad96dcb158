// Package sim is a simulated board for running the demos on a host. Input
// levels follow a stimulus script applied from the kernel tick hook, output
// changes are traced with their tick, EXTI lines keep a pending bit that the
// handler must clear, and the USART transcript is captured.
package sim

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/jangala-dev/tinygo-rtosdemo/board"
)

var (
	// ErrInterruptStorm means a handler returned with its pending bit still
	// set often enough that real hardware would never leave the ISR.
	ErrInterruptStorm = errors.New("sim: interrupt storm")
	ErrLineInUse      = errors.New("sim: exti line in use")
	ErrBadBaud        = errors.New("sim: bad baud rate")
)

const DefaultStormLimit = 64

type mode uint8

const (
	unconfigured mode = iota
	input
	output
)

type line struct {
	level board.Level
	mode  mode
	pull  board.Pull
	irq   *exti
}

// exti is one external interrupt line. It is the board.IRQ a handler sees.
type exti struct {
	b        *Board
	pin      board.Pin
	edge     board.Edge
	priority uint8
	handler  board.Handler

	pending bool
	edges   int
	entries int
	clears  int
}

func (e *exti) Pin() board.Pin { return e.pin }

func (e *exti) ClearPending() {
	e.b.mu.Lock()
	e.pending = false
	e.clears++
	e.b.mu.Unlock()
}

// Step is one scripted input change.
type Step struct {
	At    uint32
	Pin   board.Pin
	Level board.Level
}

// Sample is one traced output change.
type Sample struct {
	Tick  uint32
	Pin   board.Pin
	Level board.Level
}

// Options tune a Board. The zero value is usable.
type Options struct {
	StormLimit    int // handler entries per edge before ErrInterruptStorm
	TranscriptMax int // USART transcript cap in bytes, 0 for unlimited
	Logger        *slog.Logger
}

// Board implements board.Hardware.
type Board struct {
	mu     sync.Mutex
	log    *slog.Logger
	storm  int
	now    uint32
	clock  bool
	lines  map[board.Pin]*line
	exti   [16]*exti // indexed by pin number, shared across ports
	script []Step
	trace  []Sample

	uart *USART
}

var _ board.Hardware = (*Board)(nil)

func New(o Options) *Board {
	if o.StormLimit <= 0 {
		o.StormLimit = DefaultStormLimit
	}
	log := o.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Board{
		log:   log,
		storm: o.StormLimit,
		lines: make(map[board.Pin]*line),
		uart:  NewUSART(o.TranscriptMax),
	}
}

// USART returns the captured serial port.
func (b *Board) USART() *USART { return b.uart }

// ClockConfigured reports whether ConfigureClock ran.
func (b *Board) ClockConfigured() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.clock
}

// Now is the tick of the most recent Tick call.
func (b *Board) Now() uint32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.now
}

// lineLocked returns the line for p, creating it at the idle level. Inputs
// idle high (the Nucleo button has an external pull-up) unless pulled down.
func (b *Board) lineLocked(p board.Pin) *line {
	l, ok := b.lines[p]
	if !ok {
		l = &line{level: board.High}
		b.lines[p] = l
	}
	return l
}

func (b *Board) ConfigureClock() {
	b.mu.Lock()
	b.clock = true
	b.mu.Unlock()
}

func (b *Board) ConfigureOutput(p board.Pin) {
	b.mu.Lock()
	l := b.lineLocked(p)
	l.mode = output
	l.level = board.Low
	b.mu.Unlock()
}

func (b *Board) ConfigureInput(p board.Pin, pull board.Pull) {
	b.mu.Lock()
	_, existed := b.lines[p]
	l := b.lineLocked(p)
	l.mode = input
	l.pull = pull
	if !existed && pull == board.PullDown {
		l.level = board.Low
	}
	b.mu.Unlock()
}

func (b *Board) ConfigureUART(tx, rx board.Pin, baud uint32) error {
	if baud == 0 {
		return fmt.Errorf("%w: %d", ErrBadBaud, baud)
	}
	b.mu.Lock()
	b.lineLocked(tx).mode = output
	b.lineLocked(rx).mode = input
	b.mu.Unlock()
	b.uart.mu.Lock()
	b.uart.baud = baud
	b.uart.mu.Unlock()
	return nil
}

func (b *Board) ConfigureInterrupt(p board.Pin, edge board.Edge, priority uint8, h board.Handler) error {
	if h == nil {
		return fmt.Errorf("sim: nil handler for %v", p)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if cur := b.exti[p.Num]; cur != nil {
		return fmt.Errorf("%w: line %d routed to %v", ErrLineInUse, p.Num, cur.pin)
	}
	e := &exti{b: b, pin: p, edge: edge, priority: priority, handler: h}
	b.exti[p.Num] = e
	b.lineLocked(p).irq = e
	b.log.Debug("exti configured", "pin", p, "edge", edge, "priority", priority)
	return nil
}

func (b *Board) TransmitByte(c byte) { b.uart.TransmitByte(c) }

func (b *Board) Read(p board.Pin) board.Level {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lineLocked(p).level
}

func (b *Board) Write(p board.Pin, lv board.Level) {
	b.mu.Lock()
	b.driveLocked(p, lv)
	b.mu.Unlock()
}

func (b *Board) Toggle(p board.Pin) {
	b.mu.Lock()
	b.driveLocked(p, b.lineLocked(p).level^1)
	b.mu.Unlock()
}

func (b *Board) driveLocked(p board.Pin, lv board.Level) {
	l := b.lineLocked(p)
	if l.level == lv {
		return
	}
	l.level = lv
	b.trace = append(b.trace, Sample{Tick: b.now, Pin: p, Level: lv})
}

// Trace returns the traced changes of output p in order.
func (b *Board) Trace(p board.Pin) []Sample {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []Sample
	for _, s := range b.trace {
		if s.Pin == p {
			out = append(out, s)
		}
	}
	return out
}

// Edges counts the edges latched on p's EXTI line; Entries counts handler
// entries; Clears counts ClearPending calls.
func (b *Board) Edges(p board.Pin) int   { return b.irqCount(p, func(e *exti) int { return e.edges }) }
func (b *Board) Entries(p board.Pin) int { return b.irqCount(p, func(e *exti) int { return e.entries }) }
func (b *Board) Clears(p board.Pin) int  { return b.irqCount(p, func(e *exti) int { return e.clears }) }

func (b *Board) irqCount(p board.Pin, f func(*exti) int) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if e := b.exti[p.Num]; e != nil && e.pin == p {
		return f(e)
	}
	return 0
}

// Schedule queues an input change for tick at.
func (b *Board) Schedule(at uint32, p board.Pin, lv board.Level) {
	b.mu.Lock()
	b.scheduleLocked(Step{At: at, Pin: p, Level: lv})
	b.mu.Unlock()
}

func (b *Board) scheduleLocked(s Step) {
	i, _ := slices.BinarySearchFunc(b.script, s.At, func(x Step, at uint32) int {
		if x.At <= at {
			return -1
		}
		return 1
	})
	b.script = slices.Insert(b.script, i, s)
}

// Pending returns the scripted steps not yet applied.
func (b *Board) Pending() []Step {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.script)
}

// SetInput drives an input level now and services any interrupt it raises
// on the calling goroutine.
func (b *Board) SetInput(p board.Pin, lv board.Level) error {
	b.mu.Lock()
	b.setLocked(p, lv)
	b.mu.Unlock()
	return b.service()
}

// Tick is the kernel tick hook: it applies every scripted step due at now
// and runs the handlers of the lines that latched an edge.
func (b *Board) Tick(now uint32) error {
	b.mu.Lock()
	b.now = now
	n := 0
	for n < len(b.script) && b.script[n].At <= now {
		s := b.script[n]
		b.setLocked(s.Pin, s.Level)
		n++
	}
	b.script = slices.Delete(b.script, 0, n)
	b.mu.Unlock()
	return b.service()
}

func (b *Board) setLocked(p board.Pin, lv board.Level) {
	l := b.lineLocked(p)
	from := l.level
	l.level = lv
	if e := l.irq; e != nil && e.edge.Matches(from, lv) {
		e.pending = true
		e.edges++
		b.log.Debug("edge latched", "pin", p, "level", lv, "tick", b.now)
	}
}

// service runs pending handlers, most urgent (lowest number) first, until
// no line is pending. Handlers run without the board lock held.
func (b *Board) service() error {
	entries := make(map[*exti]int)
	for {
		b.mu.Lock()
		var next *exti
		for _, e := range b.exti {
			if e == nil || !e.pending {
				continue
			}
			if next == nil || e.priority < next.priority {
				next = e
			}
		}
		if next != nil {
			next.entries++
		}
		b.mu.Unlock()
		if next == nil {
			return nil
		}

		entries[next]++
		if entries[next] > b.storm {
			b.log.Error("interrupt storm", "pin", next.pin, "entries", entries[next])
			return fmt.Errorf("%w: %v re-entered %d times without clearing pending", ErrInterruptStorm, next.pin, entries[next]-1)
		}
		next.handler(next)
	}
}
