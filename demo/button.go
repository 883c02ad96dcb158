package demo

import (
	"github.com/jangala-dev/tinygo-rtosdemo/board"
	"github.com/jangala-dev/tinygo-rtosdemo/event"
	"github.com/jangala-dev/tinygo-rtosdemo/rtos"
)

// ButtonBlink polls the button from one task and publishes its level in a
// flag; a second task at the same priority blinks the LED while the flag is
// set and holds it off otherwise. Presses shorter than a poll are missed.
type ButtonBlink struct {
	Pressed event.Flag
}

func (*ButtonBlink) Name() string { return "button-blink" }

func (d *ButtonBlink) Setup(k *rtos.Kernel, hw board.Hardware, cfg Config) error {
	if _, err := boot(hw, cfg); err != nil {
		return err
	}
	l := cfg.Layout
	blink := k.Ms(cfg.BlinkMs)

	led := func(t *rtos.Task) {
		for {
			if d.Pressed.IsSet() {
				hw.Toggle(l.LED)
				t.Delay(blink)
				continue
			}
			hw.Write(l.LED, board.Low)
			pause(t, cfg.PollMs)
		}
	}
	button := func(t *rtos.Task) {
		for {
			d.Pressed.Set(pressed(hw, l))
			pause(t, cfg.PollMs)
		}
	}

	if _, err := k.Create(led, "LED-TASK", cfg.MinimalStackWords, cfg.Priorities.Blink); err != nil {
		return err
	}
	_, err := k.Create(button, "BUTTON-TASK", cfg.MinimalStackWords, cfg.Priorities.Blink)
	return err
}

// ButtonISR toggles a flag from the button's falling-edge interrupt; the
// LED task drives the LED on while the flag is set. Each press flips the LED.
type ButtonISR struct {
	Pressed event.Flag
}

func (*ButtonISR) Name() string { return "button-isr" }

// Handle is the EXTI handler. Acknowledging the line comes first: a handler
// that returns with the pending bit set is entered again at once.
func (d *ButtonISR) Handle(irq board.IRQ) {
	irq.ClearPending()
	d.Pressed.Toggle()
}

func (d *ButtonISR) Setup(k *rtos.Kernel, hw board.Hardware, cfg Config) error {
	if _, err := boot(hw, cfg); err != nil {
		return err
	}
	l := cfg.Layout
	if err := hw.ConfigureInterrupt(l.Button, board.EdgeFalling, l.ButtonIRQPriority, d.Handle); err != nil {
		return err
	}

	led := func(t *rtos.Task) {
		for {
			if d.Pressed.IsSet() {
				hw.Write(l.LED, board.High)
			} else {
				hw.Write(l.LED, board.Low)
			}
			pause(t, cfg.PollMs)
		}
	}
	_, err := k.Create(led, "LED-TASK", cfg.MinimalStackWords, cfg.Priorities.ISRLED)
	return err
}
