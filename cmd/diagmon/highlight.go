package main

import "strings"

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiCyan   = "\x1b[36m"
)

// Lines containing a marker are coloured; the first match wins.
var rules = []struct {
	marker, color string
}{
	{"Deleting task", ansiRed},
	{"Notification received", ansiGreen},
	{"is running", ansiYellow},
	{"Hello world from", ansiCyan},
}

func highlight(line string) string {
	body := strings.TrimRight(line, "\r\n")
	for _, r := range rules {
		if strings.Contains(body, r.marker) {
			return r.color + body + ansiReset + line[len(body):]
		}
	}
	return line
}

// lineBuffer reassembles lines from arbitrary read chunks.
type lineBuffer struct {
	buf []byte
	max int
}

// Feed appends p and calls emit for each complete line, terminator included.
// A partial line longer than max is emitted as is. It stops at the first
// emit error.
func (l *lineBuffer) Feed(p []byte, emit func(string) error) error {
	for _, c := range p {
		l.buf = append(l.buf, c)
		if c == '\n' || (l.max > 0 && len(l.buf) >= l.max) {
			line := string(l.buf)
			l.buf = l.buf[:0]
			if err := emit(line); err != nil {
				return err
			}
		}
	}
	return nil
}

// Flush emits any partial line.
func (l *lineBuffer) Flush(emit func(string) error) error {
	if len(l.buf) == 0 {
		return nil
	}
	line := string(l.buf)
	l.buf = l.buf[:0]
	return emit(line)
}
