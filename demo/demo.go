// Package demo holds the five scheduler demos: cooperative hello-world,
// flag-driven button blink, interrupt-driven button, task deletion on a
// button press and task notification. Each demo boots the board, creates its
// tasks on a kernel and leaves starting the scheduler to the caller.
package demo

import (
	"errors"
	"fmt"
	"sort"

	"github.com/jangala-dev/tinygo-rtosdemo/board"
	"github.com/jangala-dev/tinygo-rtosdemo/console"
	"github.com/jangala-dev/tinygo-rtosdemo/rtos"
)

var ErrUnknownDemo = errors.New("demo: unknown demo")

// Demo is one runnable demo.
type Demo interface {
	Name() string
	// Setup configures hw and creates the demo's tasks on k.
	Setup(k *rtos.Kernel, hw board.Hardware, cfg Config) error
}

var registry = map[string]func() Demo{
	"hello-world":  func() Demo { return &HelloWorld{} },
	"button-blink": func() Demo { return &ButtonBlink{} },
	"button-isr":   func() Demo { return &ButtonISR{} },
	"task-delete":  func() Demo { return &TaskDelete{} },
	"task-notify":  func() Demo { return &TaskNotify{} },
}

// Names lists the registered demos in order.
func Names() []string {
	out := make([]string, 0, len(registry))
	for n := range registry {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// New returns a fresh instance of the named demo.
func New(name string) (Demo, error) {
	mk, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDemo, name)
	}
	return mk(), nil
}

// Setup creates the named demo and sets it up.
func Setup(name string, k *rtos.Kernel, hw board.Hardware, cfg Config) (Demo, error) {
	d, err := New(name)
	if err != nil {
		return nil, err
	}
	if err := d.Setup(k, hw, cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return d, nil
}

// boot runs the shared hardware setup and returns the diagnostic console.
func boot(hw board.Hardware, cfg Config) (*console.Console, error) {
	if err := board.Configure(hw, cfg.Layout); err != nil {
		return nil, err
	}
	con := console.New(hw)
	con.ByteYield = cfg.ByteYield
	return con, nil
}

// pause ends one poll iteration: a delay of ms, or a yield when ms is 0.
func pause(t *rtos.Task, ms uint32) {
	if ms == 0 {
		t.Yield()
		return
	}
	t.Delay(t.Ms(ms))
}

func pressed(hw board.GPIO, l board.Layout) bool {
	// B1 is active low.
	return hw.Read(l.Button) == board.Low
}
