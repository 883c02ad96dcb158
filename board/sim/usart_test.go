package sim

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"
)

func transmit(u *USART, s string) {
	for i := 0; i < len(s); i++ {
		u.TransmitByte(s[i])
	}
}

func TestReadLineSplitsOnNewline(t *testing.T) {
	u := NewUSART(0)
	transmit(u, "Hello world from task-1\r\nHello")

	line, err := u.ReadLine(context.Background())
	if err != nil || line != "Hello world from task-1\r\n" {
		t.Fatalf("line %q err=%v", line, err)
	}
	if got := u.Output(); got != "Hello world from task-1\r\nHello" {
		t.Fatalf("transcript %q", got)
	}
}

func TestReadLineWaitsForTerminator(t *testing.T) {
	u := NewUSART(0)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	done := make(chan string, 1)
	go func() {
		line, _ := u.ReadLine(ctx)
		done <- line
	}()

	transmit(u, "Led task ")
	select {
	case line := <-done:
		t.Fatalf("returned %q before the line ended", line)
	case <-time.After(20 * time.Millisecond):
	}
	transmit(u, "is running \r\n")

	select {
	case line := <-done:
		if line != "Led task is running \r\n" {
			t.Fatalf("got %q", line)
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatal("timeout waiting for ReadLine")
	}
}

func TestReadLineAfterClose(t *testing.T) {
	u := NewUSART(0)
	transmit(u, "Task Notification API Project")

	done := make(chan error, 1)
	go func() {
		_, err := u.ReadLine(context.Background())
		done <- err
	}()
	time.Sleep(10 * time.Millisecond)
	u.Close()
	u.Close()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("first read after close: %v", err)
		}
	case <-time.After(200 * time.Millisecond):
		t.Fatal("timeout waiting for ReadLine to return after close")
	}
	if _, err := u.ReadLine(context.Background()); !errors.Is(err, io.EOF) {
		t.Fatalf("err=%v; want io.EOF", err)
	}
}

func TestReadLineRespectsContext(t *testing.T) {
	u := NewUSART(0)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := u.ReadLine(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err=%v; want deadline exceeded", err)
	}
}

func TestReadLineSplitsLongRuns(t *testing.T) {
	u := NewUSART(0)
	transmit(u, strings.Repeat("x", usartLineMax+10)+"\n")

	first, _ := u.ReadLine(context.Background())
	second, _ := u.ReadLine(context.Background())
	if len(first) != usartLineMax || second != strings.Repeat("x", 10)+"\n" {
		t.Fatalf("pieces of %d and %q", len(first), second)
	}
}

func TestOverrunDropsOldest(t *testing.T) {
	u := NewUSART(8)
	for i := 0; i < usartBacklog+10; i++ {
		u.TransmitByte('a' + byte(i%26))
	}
	if got, want := u.Overruns(), 10; got != want {
		t.Fatalf("overruns %d; want %d", got, want)
	}
	line, err := u.ReadLine(context.Background())
	if err != nil || line[0] != 'a'+10 {
		t.Fatalf("oldest byte %q err=%v; want %q", line[0], err, 'a'+10)
	}
	if got := len(u.Output()); got != 8 {
		t.Fatalf("transcript len %d; want capped at 8", got)
	}
}
