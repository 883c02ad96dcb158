package console

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"

	"github.com/jangala-dev/tinygo-rtosdemo/board/sim"
	"github.com/jangala-dev/tinygo-rtosdemo/rtos"
)

func newKernel(t *testing.T) *rtos.Kernel {
	t.Helper()
	k := rtos.New(rtos.Config{})
	t.Cleanup(k.Close)
	return k
}

func create(t *testing.T, k *rtos.Kernel, name string, fn rtos.TaskFunc) {
	t.Helper()
	if _, err := k.Create(fn, name, 128, 1); err != nil {
		t.Fatalf("create %s: %v", name, err)
	}
}

func runFor(t *testing.T, k *rtos.Kernel, ticks uint32) {
	t.Helper()
	if err := k.RunFor(context.Background(), ticks); err != nil {
		t.Fatalf("run: %v", err)
	}
}

func TestPrintWritesBytesInOrder(t *testing.T) {
	u := sim.NewUSART(0)
	c := New(u)
	c.Print("Hello ")
	if got, want := u.Output(), "Hello "; got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestPrintFromJoinsParts(t *testing.T) {
	u := sim.NewUSART(0)
	c := New(u)
	c.ByteYield = 4
	k := newKernel(t)
	var seen []int
	create(t, k, "printer", func(t *rtos.Task) {
		c.PrintFrom(t, "count : ", "4294967295", "\r\n")
		t.Delete()
	})
	// A peer at the same priority records the output length at each yield.
	create(t, k, "watcher", func(t *rtos.Task) {
		for len(seen) < 5 {
			seen = append(seen, len(u.Output()))
			t.Yield()
		}
		t.Delay(rtos.Forever)
	})
	runFor(t, k, 10)

	if got, want := u.Output(), "count : 4294967295\r\n"; got != want {
		t.Fatalf("got %q want %q", got, want)
	}
	if want := []int{4, 8, 12, 16, 20}; !slices.Equal(seen, want) {
		t.Fatalf("watcher saw %v; want %v", seen, want)
	}
}

func TestTokenState(t *testing.T) {
	var tok Token
	if !tok.Available() || tok.State().String() != "available" {
		t.Fatalf("zero token state %v", tok.State())
	}
	tok.Take()
	if tok.Available() || tok.State() != NotAvailable {
		t.Fatalf("taken token state %v", tok.State())
	}
	tok.Release()
	if !tok.Available() {
		t.Fatal("released token not available")
	}
}

// printer returns a task that prints msg n times, yielding between messages.
func printer(n int, print func(t *rtos.Task)) rtos.TaskFunc {
	return func(t *rtos.Task) {
		for i := 0; i < n; i++ {
			print(t)
			t.Yield()
		}
	}
}

func TestPrintFromInterleavesWithoutArbitration(t *testing.T) {
	u := sim.NewUSART(0)
	c := New(u)
	c.ByteYield = 1
	k := newKernel(t)
	create(t, k, "task-1", printer(3, func(t *rtos.Task) { c.PrintFrom(t, "AAAA\r\n") }))
	create(t, k, "task-2", printer(3, func(t *rtos.Task) { c.PrintFrom(t, "BBBB\r\n") }))
	runFor(t, k, 50)

	out := u.Output()
	if len(out) != 36 {
		t.Fatalf("got %d bytes want 36: %q", len(out), out)
	}
	if strings.Contains(out, "AAAA") || strings.Contains(out, "BBBB") {
		t.Fatalf("expected interleaving, got %q", out)
	}
}

func TestTokenPreventsInterleavingAtTiedPriority(t *testing.T) {
	u := sim.NewUSART(0)
	c := New(u)
	c.ByteYield = 1
	var tok Token
	k := newKernel(t)
	for _, msg := range []string{"AAAA\r\n", "BBBB\r\n"} {
		create(t, k, msg[:1], func(t *rtos.Task) {
			for sent := 0; sent < 3; {
				if tok.Available() {
					tok.Take()
					c.PrintFrom(t, msg)
					tok.Release()
					sent++
				}
				t.Yield()
			}
		})
	}
	runFor(t, k, 50)

	if got, want := u.Output(), strings.Repeat("AAAA\r\nBBBB\r\n", 3); got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestGuardedSerialisesMessages(t *testing.T) {
	u := sim.NewUSART(0)
	c := New(u)
	c.ByteYield = 1
	k := newKernel(t)
	g := NewGuarded(c, k.NewMutex(), rtos.Forever)
	for _, msg := range []string{"AAAA\r\n", "BBBB\r\n"} {
		create(t, k, msg[:1], printer(3, func(t *rtos.Task) {
			if err := g.Print(t, msg[:4], msg[4:]); err != nil {
				panic(err)
			}
		}))
	}
	runFor(t, k, 50)

	if got, want := u.Output(), strings.Repeat("AAAA\r\nBBBB\r\n", 3); got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestGuardedTimesOut(t *testing.T) {
	u := sim.NewUSART(0)
	c := New(u)
	k := newKernel(t)
	m := k.NewMutex()
	g := NewGuarded(c, m, 5)

	create(t, k, "holder", func(t *rtos.Task) {
		m.Take(t, rtos.Forever)
		t.Delay(100)
		_ = m.Give(t)
	})
	var err error
	var at uint32
	create(t, k, "waiter", func(t *rtos.Task) {
		err = g.Print(t, "never\r\n")
		at = t.TickCount()
	})
	runFor(t, k, 20)

	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("err=%v; want ErrTimeout", err)
	}
	if at != 5 {
		t.Fatalf("timed out at tick %d; want 5", at)
	}
	if out := u.Output(); out != "" {
		t.Fatalf("unexpected output %q", out)
	}
	if !m.Held() {
		t.Fatal("holder lost the mutex")
	}
}
