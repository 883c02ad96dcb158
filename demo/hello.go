package demo

import (
	"fmt"

	"github.com/jangala-dev/tinygo-rtosdemo/board"
	"github.com/jangala-dev/tinygo-rtosdemo/console"
	"github.com/jangala-dev/tinygo-rtosdemo/rtos"
)

// HelloWorld runs two equal-priority tasks that take turns printing, each
// yielding after its message. By default they share the UART through an
// advisory token; with Config.Hardened through a kernel mutex.
type HelloWorld struct {
	Token console.Token
}

func (*HelloWorld) Name() string { return "hello-world" }

func (d *HelloWorld) Setup(k *rtos.Kernel, hw board.Hardware, cfg Config) error {
	con, err := boot(hw, cfg)
	if err != nil {
		return err
	}
	con.Print("This is hello world application starting\r\n")

	var guard *console.Guarded
	if cfg.Hardened {
		guard = console.NewGuarded(con, k.NewMutex(), k.Ms(cfg.LockTimeoutMs))
	}
	for i := 1; i <= 2; i++ {
		msg := fmt.Sprintf("Hello world from task-%d\r\n", i)
		fn := d.tokenTask(con, msg)
		if guard != nil {
			fn = guardedTask(guard, msg)
		}
		name := fmt.Sprintf("Task-%d", i)
		if _, err := k.Create(fn, name, cfg.MinimalStackWords, cfg.Priorities.Hello); err != nil {
			return err
		}
	}
	return nil
}

func (d *HelloWorld) tokenTask(con *console.Console, msg string) rtos.TaskFunc {
	return func(t *rtos.Task) {
		for {
			if d.Token.Available() {
				d.Token.Take()
				con.PrintFrom(t, msg)
				d.Token.Release()
			}
			t.Yield()
		}
	}
}

func guardedTask(g *console.Guarded, msg string) rtos.TaskFunc {
	return func(t *rtos.Task) {
		for {
			// On timeout the message is skipped for this turn.
			_ = g.Print(t, msg)
			t.Yield()
		}
	}
}
