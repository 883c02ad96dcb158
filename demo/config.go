package demo

import (
	"errors"
	"fmt"

	"github.com/jangala-dev/tinygo-rtosdemo/board"
	"github.com/jangala-dev/tinygo-rtosdemo/rtos"
)

var ErrInvalidConfig = errors.New("demo: invalid config")

// Priorities of the demo tasks. Higher is more urgent.
type Priorities struct {
	Hello    rtos.Priority `yaml:"hello"`    // hello-world Task-1/Task-2
	Blink    rtos.Priority `yaml:"blink"`    // button-blink LED and button tasks
	ISRLED   rtos.Priority `yaml:"isr_led"`  // button-isr LED task
	Delete   rtos.Priority `yaml:"delete"`   // task-delete task that deletes itself
	Survivor rtos.Priority `yaml:"survivor"` // task-delete LED task
	Notify   rtos.Priority `yaml:"notify"`   // task-notify LED and button tasks
}

// Config holds everything the demos take from the build configuration.
type Config struct {
	TickRateHz        uint32       `yaml:"tick_rate_hz"`
	MaxPriorities     int          `yaml:"max_priorities"`
	Layout            board.Layout `yaml:"layout"`
	MinimalStackWords uint16       `yaml:"minimal_stack_words"`
	StackWords        uint16       `yaml:"stack_words"`
	Priorities        Priorities   `yaml:"priorities"`

	BlinkMs         uint32 `yaml:"blink_ms"`          // button-blink toggle period
	PollMs          uint32 `yaml:"poll_ms"`           // input poll period, 0 yields instead
	DebounceMs      uint32 `yaml:"debounce_ms"`       // task-notify settle time
	DeleteBlinkMs   uint32 `yaml:"delete_blink_ms"`   // task-delete busy-wait per toggle
	SurvivorBlinkMs uint32 `yaml:"survivor_blink_ms"` // task-delete LED period after deletion

	// Hardened replaces the advisory UART token with a kernel mutex.
	Hardened      bool   `yaml:"hardened"`
	LockTimeoutMs uint32 `yaml:"lock_timeout_ms"`
	// ByteYield gives up the CPU every ByteYield bytes of a message, 0 never.
	ByteYield int `yaml:"byte_yield"`
}

// DefaultConfig matches the shipped firmware: 1 kHz tick, NUCLEO-F446RE
// wiring, minimal stacks of 130 words, 500 words for tasks using the
// notification API.
func DefaultConfig() Config {
	return Config{
		TickRateHz:        rtos.DefaultTickRateHz,
		MaxPriorities:     rtos.DefaultMaxPriorities,
		Layout:            board.NucleoF446RE,
		MinimalStackWords: 130,
		StackWords:        500,
		Priorities: Priorities{
			Hello:    2,
			Blink:    1,
			ISRLED:   1,
			Delete:   2,
			Survivor: 1,
			Notify:   2,
		},
		BlinkMs:         250,
		DebounceMs:      100,
		DeleteBlinkMs:   1000,
		SurvivorBlinkMs: 200,
		LockTimeoutMs:   50,
	}
}

func (c Config) Validate() error {
	switch {
	case c.TickRateHz == 0:
		return fmt.Errorf("%w: tick_rate_hz must be positive", ErrInvalidConfig)
	case c.MaxPriorities <= 0 || c.MaxPriorities > 32:
		return fmt.Errorf("%w: max_priorities %d out of range", ErrInvalidConfig, c.MaxPriorities)
	case c.MinimalStackWords == 0 || c.StackWords == 0:
		return fmt.Errorf("%w: stack sizes must be positive", ErrInvalidConfig)
	case c.Layout.Baud == 0:
		return fmt.Errorf("%w: layout.baud must be positive", ErrInvalidConfig)
	case c.BlinkMs == 0 || c.DeleteBlinkMs == 0 || c.SurvivorBlinkMs == 0:
		return fmt.Errorf("%w: blink periods must be positive", ErrInvalidConfig)
	case c.ByteYield < 0:
		return fmt.Errorf("%w: byte_yield must not be negative", ErrInvalidConfig)
	}
	p := c.Priorities
	for _, v := range []rtos.Priority{p.Hello, p.Blink, p.ISRLED, p.Delete, p.Survivor, p.Notify} {
		if int(v) >= c.MaxPriorities {
			return fmt.Errorf("%w: priority %d >= max_priorities %d", ErrInvalidConfig, v, c.MaxPriorities)
		}
	}
	// Below one tick a delay rounds to zero and the blink stops being visible.
	if rtos.MsToTicks(c.BlinkMs, c.TickRateHz) == 0 {
		return fmt.Errorf("%w: blink_ms %d is under one tick at %d Hz", ErrInvalidConfig, c.BlinkMs, c.TickRateHz)
	}
	return nil
}

// KernelConfig returns the kernel options for this configuration.
func (c Config) KernelConfig() rtos.Config {
	return rtos.Config{TickRateHz: c.TickRateHz, MaxPriorities: c.MaxPriorities}
}
