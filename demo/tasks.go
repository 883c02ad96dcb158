package demo

import (
	"strconv"

	"github.com/jangala-dev/tinygo-rtosdemo/board"
	"github.com/jangala-dev/tinygo-rtosdemo/event"
	"github.com/jangala-dev/tinygo-rtosdemo/rtos"
)

// TaskDelete blinks the LED slowly from a high-priority task that busy-waits
// between toggles, starving the low-priority LED task. A button press makes
// the high-priority task delete itself, after which the LED task takes over
// with a fast blink.
type TaskDelete struct {
	Deleter, Blinker rtos.Handle
}

func (*TaskDelete) Name() string { return "task-delete" }

func (d *TaskDelete) Setup(k *rtos.Kernel, hw board.Hardware, cfg Config) error {
	con, err := boot(hw, cfg)
	if err != nil {
		return err
	}
	con.Print("Task Deletion API Project")
	l := cfg.Layout

	deleter := func(t *rtos.Task) {
		con.PrintFrom(t, "Delete handler task is running \r\n")
		for {
			if !pressed(hw, l) {
				t.Spin(t.Ms(cfg.DeleteBlinkMs))
				hw.Toggle(l.LED)
				continue
			}
			con.PrintFrom(t, "Deleting task \r\n")
			t.Delete()
		}
	}
	blinker := func(t *rtos.Task) {
		con.PrintFrom(t, "Led task is running \r\n")
		for {
			// Blocking here is what lets the kernel idle and reclaim the
			// deleted task.
			t.Delay(t.Ms(cfg.SurvivorBlinkMs))
			hw.Toggle(l.LED)
		}
	}

	if d.Deleter, err = k.Create(deleter, "Delete Task", cfg.StackWords, cfg.Priorities.Delete); err != nil {
		return err
	}
	d.Blinker, err = k.Create(blinker, "Led Blink Task", cfg.StackWords, cfg.Priorities.Survivor)
	return err
}

// TaskNotify counts button presses with task notifications. The button task
// debounces the input and sends an increment per press; the LED task waits
// for notifications without clearing, so the value it receives is the
// running press count.
type TaskNotify struct {
	LED, Button rtos.Handle
}

func (*TaskNotify) Name() string { return "task-notify" }

func (d *TaskNotify) Setup(k *rtos.Kernel, hw board.Hardware, cfg Config) error {
	con, err := boot(hw, cfg)
	if err != nil {
		return err
	}
	con.Print("Task Notification API Project")
	l := cfg.Layout

	led := func(t *rtos.Task) {
		for {
			count, ok := t.NotifyWait(0, 0, rtos.Forever)
			if !ok {
				continue
			}
			hw.Toggle(l.LED)
			con.PrintFrom(t, "Notification received : Button press count : ", strconv.FormatUint(uint64(count), 10), "\r\n")
		}
	}
	button := func(t *rtos.Task) {
		db := event.Debouncer{Settle: t.Ms(cfg.DebounceMs)}
		for {
			if db.Update(pressed(hw, l), t.TickCount()) {
				_, _ = k.Notify(d.LED, 0, rtos.Increment)
			}
			if w := db.Wait(t.TickCount()); w > 0 {
				t.Delay(w)
				continue
			}
			pause(t, cfg.PollMs)
		}
	}

	if d.LED, err = k.Create(led, "LED-Task", cfg.StackWords, cfg.Priorities.Notify); err != nil {
		return err
	}
	d.Button, err = k.Create(button, "Button-Task", cfg.StackWords, cfg.Priorities.Notify)
	return err
}
