package board

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var ErrBadPin = errors.New("board: bad pin name")

// Port is a GPIO port letter, A upwards.
type Port uint8

const (
	PortA Port = iota
	PortB
	PortC
	PortD
	PortE
	PortF
	PortG
	PortH
)

// Pin names one GPIO line, e.g. PA5.
type Pin struct {
	Port Port
	Num  uint8
}

func (p Pin) String() string {
	return "P" + string(rune('A'+p.Port)) + strconv.Itoa(int(p.Num))
}

// ParsePin parses names like "PA5" or "pc13".
func ParsePin(s string) (Pin, error) {
	u := strings.ToUpper(strings.TrimSpace(s))
	if len(u) < 3 || u[0] != 'P' || u[1] < 'A' || u[1] > 'H' {
		return Pin{}, fmt.Errorf("%w: %q", ErrBadPin, s)
	}
	n, err := strconv.ParseUint(u[2:], 10, 8)
	if err != nil || n > 15 {
		return Pin{}, fmt.Errorf("%w: %q", ErrBadPin, s)
	}
	return Pin{Port: Port(u[1] - 'A'), Num: uint8(n)}, nil
}

// MarshalYAML writes a pin as its name.
func (p Pin) MarshalYAML() (interface{}, error) { return p.String(), nil }

// UnmarshalYAML reads a pin name.
func (p *Pin) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	v, err := ParsePin(s)
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// Layout is the wiring of one board: which pins carry the LED, the user
// button and the diagnostic UART, and how the button interrupt is set up.
type Layout struct {
	LED               Pin    `yaml:"led"`
	Button            Pin    `yaml:"button"`
	UARTTX            Pin    `yaml:"uart_tx"`
	UARTRX            Pin    `yaml:"uart_rx"`
	Baud              uint32 `yaml:"baud"`
	ButtonIRQPriority uint8  `yaml:"button_irq_priority"`
}

// NucleoF446RE: user LED LD2 on PA5, user button B1 on PC13 (active low,
// external pull-up), USART2 on PA2/PA3 routed to the ST-LINK virtual COM port.
var NucleoF446RE = Layout{
	LED:               Pin{PortA, 5},
	Button:            Pin{PortC, 13},
	UARTTX:            Pin{PortA, 2},
	UARTRX:            Pin{PortA, 3},
	Baud:              115200,
	ButtonIRQPriority: 5,
}
