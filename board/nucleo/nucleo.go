//go:build nucleof446re

// Package nucleo drives the NUCLEO-F446RE through TinyGo's machine package.
package nucleo

import (
	"device/arm"
	"device/stm32"
	"errors"
	"machine"

	"github.com/jangala-dev/tinygo-rtosdemo/board"
)

var ErrNoUART = errors.New("nucleo: no usart on those pins")

// Board implements board.Hardware on the real target.
type Board struct {
	uart *machine.UART
}

var _ board.Hardware = (*Board)(nil)

func New() *Board { return &Board{} }

func pin(p board.Pin) machine.Pin { return machine.Pin(uint8(p.Port)*16 + p.Num) }

// ConfigureClock is a no-op: the TinyGo runtime brings the core up to
// 180 MHz from HSI through the PLL before main runs.
func (b *Board) ConfigureClock() {}

func (b *Board) ConfigureOutput(p board.Pin) {
	pin(p).Configure(machine.PinConfig{Mode: machine.PinOutput})
}

func (b *Board) ConfigureInput(p board.Pin, pull board.Pull) {
	mode := machine.PinInputFloating
	switch pull {
	case board.PullUp:
		mode = machine.PinInputPullup
	case board.PullDown:
		mode = machine.PinInputPulldown
	}
	pin(p).Configure(machine.PinConfig{Mode: mode})
}

// ConfigureUART only knows USART2 on PA2/PA3 (the ST-LINK virtual COM port).
func (b *Board) ConfigureUART(tx, rx board.Pin, baud uint32) error {
	if pin(tx) != machine.UART_TX_PIN || pin(rx) != machine.UART_RX_PIN {
		return ErrNoUART
	}
	b.uart = machine.DefaultUART
	return b.uart.Configure(machine.UARTConfig{BaudRate: baud, TX: pin(tx), RX: pin(rx)})
}

// TransmitByte spins on TXE inside machine.UART.WriteByte.
func (b *Board) TransmitByte(c byte) { _ = b.uart.WriteByte(c) }

func (b *Board) Read(p board.Pin) board.Level {
	if pin(p).Get() {
		return board.High
	}
	return board.Low
}

func (b *Board) Write(p board.Pin, lv board.Level) { pin(p).Set(lv == board.High) }

func (b *Board) Toggle(p board.Pin) {
	mp := pin(p)
	mp.Set(!mp.Get())
}

type irq struct{ p board.Pin }

// ClearPending is already done: machine's EXTI dispatcher writes EXTI_PR
// before it calls the pin callback.
func (irq) ClearPending()    {}
func (i irq) Pin() board.Pin { return i.p }

func (b *Board) ConfigureInterrupt(p board.Pin, edge board.Edge, priority uint8, h board.Handler) error {
	change := machine.PinFalling
	switch edge {
	case board.EdgeRising:
		change = machine.PinRising
	case board.EdgeBoth:
		change = machine.PinToggle
	}
	if err := pin(p).SetInterrupt(change, func(machine.Pin) { h(irq{p}) }); err != nil {
		return err
	}
	// Four priority bits, left aligned.
	arm.SetPriority(extiIRQ(p.Num), uint32(priority)<<4)
	return nil
}

func extiIRQ(n uint8) uint32 {
	switch {
	case n <= 4:
		return uint32(stm32.IRQ_EXTI0) + uint32(n)
	case n <= 9:
		return stm32.IRQ_EXTI9_5
	}
	return stm32.IRQ_EXTI15_10
}
