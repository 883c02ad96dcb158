// Package board describes the peripherals the demos drive: clock, GPIO,
// external interrupts and a transmit-only serial link. Implementations live
// in sub-packages: sim for host runs and tests, nucleo for the real board.
package board

import "fmt"

// Level is a digital pin level.
type Level uint8

const (
	Low Level = iota
	High
)

func (l Level) String() string {
	if l == High {
		return "high"
	}
	return "low"
}

// Pull selects an input's bias resistor.
type Pull uint8

const (
	PullNone Pull = iota
	PullUp
	PullDown
)

// Edge selects which input transitions raise an interrupt.
type Edge uint8

const (
	EdgeRising Edge = iota
	EdgeFalling
	EdgeBoth
)

func (e Edge) String() string {
	switch e {
	case EdgeRising:
		return "rising"
	case EdgeFalling:
		return "falling"
	case EdgeBoth:
		return "both"
	}
	return fmt.Sprintf("Edge(%d)", uint8(e))
}

// Matches reports whether a transition from -> to is selected by e.
func (e Edge) Matches(from, to Level) bool {
	if from == to {
		return false
	}
	switch e {
	case EdgeRising:
		return to == High
	case EdgeFalling:
		return to == Low
	}
	return e == EdgeBoth
}

// IRQ is what an interrupt handler sees of the line that fired.
type IRQ interface {
	// ClearPending acknowledges the interrupt. It must be the handler's first
	// action: a line left pending re-enters the handler for ever.
	ClearPending()
	Pin() Pin
}

// Handler runs in interrupt context. It must not block.
type Handler func(irq IRQ)

// GPIO reads and drives digital pins.
type GPIO interface {
	Read(p Pin) Level
	Write(p Pin, l Level)
	Toggle(p Pin)
}

// Transmitter sends one byte, blocking until the peripheral can accept it.
type Transmitter interface {
	TransmitByte(b byte)
}

// Hardware is the peripheral surface a demo configures at boot and then
// uses from its tasks and handlers.
type Hardware interface {
	GPIO
	Transmitter

	ConfigureClock()
	ConfigureOutput(p Pin)
	ConfigureInput(p Pin, pull Pull)
	ConfigureUART(tx, rx Pin, baud uint32) error
	// ConfigureInterrupt routes edges on p to h at the given NVIC priority
	// (lower is more urgent). It is called once; priority never changes.
	ConfigureInterrupt(p Pin, edge Edge, priority uint8, h Handler) error
}

// Configure performs the common boot sequence: clock, UART pins and baud,
// LED as push-pull output (driven low) and button as input.
func Configure(hw Hardware, l Layout) error {
	hw.ConfigureClock()
	if err := hw.ConfigureUART(l.UARTTX, l.UARTRX, l.Baud); err != nil {
		return fmt.Errorf("configure uart: %w", err)
	}
	hw.ConfigureOutput(l.LED)
	hw.Write(l.LED, Low)
	hw.ConfigureInput(l.Button, PullNone)
	return nil
}
