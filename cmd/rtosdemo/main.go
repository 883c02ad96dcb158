package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/inhies/go-bytesize"

	"github.com/jangala-dev/tinygo-rtosdemo/board/sim"
	"github.com/jangala-dev/tinygo-rtosdemo/demo"
	"github.com/jangala-dev/tinygo-rtosdemo/rtos"
)

/*
Runs one demo on the simulated NUCLEO-F446RE.

  rtosdemo -demo task-notify -script presses.txt -ticks 5000 -tasks
  rtosdemo -demo hello-world -warmup 1000 -ticks 1000   # counters cover the second second only

The diagnostic UART stream goes to stdout. Button input comes from a
stimulus script (see board/sim ParseScript); with no script the button
stays released.
*/

// ---------- Tunables ----------
const transcriptMax = 1 << 20

func main() {
	var (
		name     = flag.String("demo", "hello-world", "demo to run (see -list)")
		cfgPath  = flag.String("config", "", "YAML file overriding the default config")
		script   = flag.String("script", "", "button stimulus script")
		ticks    = flag.Uint("ticks", 5000, "ticks to simulate, 0 runs until interrupted")
		warmup   = flag.Uint("warmup", 0, "ticks to run before the kernel counters are reset")
		pace     = flag.Bool("pace", false, "advance ticks at wall-clock rate")
		list     = flag.Bool("list", false, "list demos and exit")
		showTask = flag.Bool("tasks", false, "print the task table after the run")
		verbose  = flag.Bool("v", false, "debug logging to stderr")
	)
	flag.Parse()

	if *list {
		fmt.Println(strings.Join(demo.Names(), "\n"))
		return
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	opts := options{demo: *name, config: *cfgPath, script: *script, ticks: uint32(*ticks), warmup: uint32(*warmup), pace: *pace, tasks: *showTask}
	if err := run(ctx, log, opts, os.Stdout); err != nil {
		log.Error("run failed", "demo", *name, "err", err)
		os.Exit(1)
	}
}

type options struct {
	demo, config, script string
	ticks, warmup        uint32
	pace                 bool
	tasks                bool
}

func run(ctx context.Context, log *slog.Logger, o options, out io.Writer) error {
	cfg := demo.DefaultConfig()
	if o.config != "" {
		var err error
		if cfg, err = demo.LoadConfig(o.config); err != nil {
			return err
		}
	}

	b := sim.New(sim.Options{TranscriptMax: transcriptMax, Logger: log.With("component", "board")})
	if o.script != "" {
		f, err := os.Open(o.script)
		if err != nil {
			return err
		}
		err = b.LoadScript(f)
		f.Close()
		if err != nil {
			return err
		}
	}

	kc := cfg.KernelConfig()
	kc.TickHook = b.Tick
	kc.Logger = log.With("component", "kernel")
	if o.pace {
		kc.Pace = time.Second / time.Duration(cfg.TickRateHz)
	}
	k := rtos.New(kc)
	defer k.Close()

	if _, err := demo.Setup(o.demo, k, b, cfg); err != nil {
		return err
	}

	pumped := make(chan error, 1)
	go func() { pumped <- pump(b.USART(), out) }()

	start := time.Now()
	var err error
	if o.warmup > 0 {
		err = k.RunFor(ctx, o.warmup)
		k.DebugReset()
	}
	switch {
	case err != nil:
	case o.ticks == 0:
		err = k.Run(ctx)
	default:
		err = k.RunFor(ctx, o.ticks)
	}
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	b.USART().Close()
	if perr := <-pumped; perr != nil && err == nil {
		err = perr
	}

	st := k.DebugStats()
	log.Info("run finished",
		"ticks", k.TickCount(),
		"elapsed", time.Since(start).Round(time.Millisecond),
		"switches", st.ContextSwitches,
		"deleted", st.Deleted,
		"reclaimed", st.Reclaimed,
		"notify_sent", st.NotifySent,
		"uart_overruns", b.USART().Overruns())

	if o.tasks {
		printTasks(out, k.Tasks())
	}
	return err
}

// pump copies the USART stream to w a line at a time until the port is
// closed and drained.
func pump(u *sim.USART, w io.Writer) error {
	for {
		line, err := u.ReadLine(context.Background())
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if _, err := io.WriteString(w, line); err != nil {
			return err
		}
	}
}

func printTasks(w io.Writer, tasks []rtos.TaskInfo) {
	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
	fmt.Fprintln(tw, "\nHANDLE\tNAME\tPRIO\tSTATE\tSTACK\tRUNS\tNOTIFY")
	for _, t := range tasks {
		notify := fmt.Sprint(t.NotifyValue)
		if t.NotifyPending {
			notify += "*"
		}
		stack := bytesize.New(float64(t.StackWords) * 4)
		fmt.Fprintf(tw, "%d\t%s\t%d\t%s\t%s\t%d\t%s\n", t.Handle, t.Name, t.Priority, t.State, stack, t.Runs, notify)
	}
	tw.Flush()
}
