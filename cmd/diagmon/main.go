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
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/mattn/go-colorable"
	"go.bug.st/serial"
)

/*
Serial monitor for the demos' diagnostic UART (USART2 on the ST-LINK
virtual COM port, 115200 8N1).

  diagmon                 # first ttyACM/usbmodem port found
  diagmon -port /dev/ttyACM1 -no-color
  diagmon -list
*/

// ---------- Tunables ----------
const (
	readTimeout = 200 * time.Millisecond
	maxLine     = 512
)

var errPortBusy = errors.New("port is in use by another monitor")

func main() {
	var (
		port    = flag.String("port", "", "serial port (default: first ACM/usbmodem port)")
		baud    = flag.Int("baud", 115200, "baud rate")
		list    = flag.Bool("list", false, "list serial ports and exit")
		noColor = flag.Bool("no-color", false, "disable highlighting")
		verbose = flag.Bool("v", false, "debug logging to stderr")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if *list {
		ports, err := serial.GetPortsList()
		if err != nil {
			log.Error("list ports", "err", err)
			os.Exit(1)
		}
		fmt.Println(strings.Join(ports, "\n"))
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := monitor(ctx, log, *port, *baud, !*noColor); err != nil {
		log.Error("monitor failed", "err", err)
		os.Exit(1)
	}
}

func pickPort(name string) (string, error) {
	if name != "" {
		return name, nil
	}
	ports, err := serial.GetPortsList()
	if err != nil {
		return "", err
	}
	for _, p := range ports {
		if strings.Contains(p, "ttyACM") || strings.Contains(p, "usbmodem") {
			return p, nil
		}
	}
	return "", fmt.Errorf("no ST-LINK port found among %v", ports)
}

func monitor(ctx context.Context, log *slog.Logger, name string, baud int, color bool) error {
	name, err := pickPort(name)
	if err != nil {
		return err
	}

	lock := flock.New(filepath.Join(os.TempDir(), "diagmon-"+filepath.Base(name)+".lock"))
	ok, err := lock.TryLock()
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%s: %w", name, errPortBusy)
	}
	defer lock.Unlock()

	p, err := serial.Open(name, &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return fmt.Errorf("open %s: %w", name, err)
	}
	defer p.Close()
	if err := p.SetReadTimeout(readTimeout); err != nil {
		return err
	}
	log.Info("monitoring", "port", name, "baud", baud)

	var out io.Writer = os.Stdout
	if color {
		out = colorable.NewColorableStdout()
	}
	return copyLines(ctx, p, out, color)
}

// copyLines reads r until ctx is done or r fails, writing whole lines to w.
// r must return periodically (a read timeout) so that ctx is observed. A
// failed write ends the copy.
func copyLines(ctx context.Context, r io.Reader, w io.Writer, color bool) error {
	lb := lineBuffer{max: maxLine}
	emit := func(line string) error {
		if color {
			line = highlight(line)
		}
		_, err := io.WriteString(w, line)
		return err
	}

	buf := make([]byte, 256)
	for {
		if ctx.Err() != nil {
			return lb.Flush(emit)
		}
		n, err := r.Read(buf)
		if werr := lb.Feed(buf[:n], emit); werr != nil {
			return fmt.Errorf("write: %w", werr)
		}
		if errors.Is(err, io.EOF) {
			return lb.Flush(emit)
		}
		if err != nil {
			return err
		}
	}
}
