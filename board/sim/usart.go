package sim

import (
	"bytes"
	"context"
	"io"
	"sync"
)

const (
	// Bytes the reader can fall behind before the oldest are dropped.
	usartBacklog = 4096
	// Longest line ReadLine returns in one piece.
	usartLineMax = 256
)

// USART captures what the board transmits. The board side calls
// TransmitByte; a host-side reader follows the stream line by line with
// ReadLine, and tests inspect the whole transcript with Output.
type USART struct {
	mu         sync.Mutex
	backlog    []byte // transmitted but not yet read
	transcript []byte
	limit      int
	overruns   int
	baud       uint32
	closed     bool

	wake chan struct{} // coalesced: a byte arrived or the port closed
}

// NewUSART returns a USART that keeps at most limit transcript bytes
// (0 means unlimited).
func NewUSART(limit int) *USART {
	return &USART{limit: limit, wake: make(chan struct{}, 1)}
}

// TransmitByte is the device side. The simulated line is always ready, so
// it never blocks; a reader that falls behind loses the oldest bytes.
func (u *USART) TransmitByte(b byte) {
	u.mu.Lock()
	if len(u.backlog) == usartBacklog {
		u.backlog = append(u.backlog[:0], u.backlog[1:]...)
		u.overruns++
	}
	u.backlog = append(u.backlog, b)
	if u.limit == 0 || len(u.transcript) < u.limit {
		u.transcript = append(u.transcript, b)
	}
	u.mu.Unlock()
	u.signal()
}

// Baud is the configured line rate, 0 before ConfigureUART.
func (u *USART) Baud() uint32 {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.baud
}

// Output returns everything transmitted so far.
func (u *USART) Output() string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return string(u.transcript)
}

// Overruns counts bytes dropped because the reader fell behind.
func (u *USART) Overruns() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.overruns
}

// ReadLine blocks until a whole line, terminator included, is buffered and
// returns it. Runs longer than usartLineMax come back in pieces. After Close
// the unterminated tail is returned, then io.EOF.
func (u *USART) ReadLine(ctx context.Context) (string, error) {
	for {
		u.mu.Lock()
		line, ok := u.cutLine()
		closed := u.closed
		u.mu.Unlock()
		if ok {
			return line, nil
		}
		if closed {
			return "", io.EOF
		}
		select {
		case <-u.wake:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
}

// cutLine removes the next line from the backlog. Called with mu held.
func (u *USART) cutLine() (string, bool) {
	n := bytes.IndexByte(u.backlog, '\n') + 1
	switch {
	case n > 0 && n <= usartLineMax:
	case len(u.backlog) >= usartLineMax:
		n = usartLineMax
	case u.closed && len(u.backlog) > 0:
		n = len(u.backlog)
	default:
		return "", false
	}
	line := string(u.backlog[:n])
	u.backlog = append(u.backlog[:0], u.backlog[n:]...)
	return line, true
}

// Close wakes a blocked reader. Later transmissions still land in the
// transcript.
func (u *USART) Close() {
	u.mu.Lock()
	u.closed = true
	u.mu.Unlock()
	u.signal()
}

func (u *USART) signal() {
	select {
	case u.wake <- struct{}{}:
	default:
	}
}
