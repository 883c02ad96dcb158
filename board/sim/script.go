package sim

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/google/shlex"

	"github.com/jangala-dev/tinygo-rtosdemo/board"
)

var ErrScript = errors.New("sim: bad stimulus script")

// ParseScript reads a stimulus script. One command per line, '#' starts a
// comment, ticks are absolute:
//
//	set    <tick> <pin> high|low
//	press  <tick> <pin> <duration>          pull low, release after duration
//	bounce <tick> <pin> <span> <period>     chatter for span, settle low
//
// Buttons are active low, so press and bounce end in the pressed state
// (press releases it again).
func ParseScript(r io.Reader) ([]Step, error) {
	var steps []Step
	sc := bufio.NewScanner(r)
	n := 0
	for sc.Scan() {
		n++
		text := sc.Text()
		if i := strings.IndexByte(text, '#'); i >= 0 {
			text = text[:i]
		}
		args, err := shlex.Split(text)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrScript, n, err)
		}
		if len(args) == 0 {
			continue
		}
		s, err := parseCommand(args)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrScript, n, err)
		}
		steps = append(steps, s...)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrScript, err)
	}
	return steps, nil
}

// LoadScript parses r and schedules every step on the board.
func (b *Board) LoadScript(r io.Reader) error {
	steps, err := ParseScript(r)
	if err != nil {
		return err
	}
	b.mu.Lock()
	for _, s := range steps {
		b.scheduleLocked(s)
	}
	b.mu.Unlock()
	return nil
}

func parseCommand(args []string) ([]Step, error) {
	want := map[string]int{"set": 4, "press": 4, "bounce": 5}
	n, ok := want[args[0]]
	if !ok {
		return nil, fmt.Errorf("unknown command %q", args[0])
	}
	if len(args) != n {
		return nil, fmt.Errorf("%s takes %d arguments, got %d", args[0], n-1, len(args)-1)
	}
	at, err := parseTick(args[1])
	if err != nil {
		return nil, err
	}
	pin, err := board.ParsePin(args[2])
	if err != nil {
		return nil, err
	}

	switch args[0] {
	case "set":
		lv, err := parseLevel(args[3])
		if err != nil {
			return nil, err
		}
		return []Step{{At: at, Pin: pin, Level: lv}}, nil

	case "press":
		dur, err := parseTick(args[3])
		if err != nil {
			return nil, err
		}
		if dur == 0 {
			return nil, errors.New("press duration must be positive")
		}
		end, err := after(at, dur)
		if err != nil {
			return nil, err
		}
		return []Step{
			{At: at, Pin: pin, Level: board.Low},
			{At: end, Pin: pin, Level: board.High},
		}, nil
	}

	span, err := parseTick(args[3])
	if err != nil {
		return nil, err
	}
	period, err := parseTick(args[4])
	if err != nil {
		return nil, err
	}
	if period == 0 {
		return nil, errors.New("bounce period must be positive")
	}
	end, err := after(at, span)
	if err != nil {
		return nil, err
	}
	var out []Step
	lv := board.Low
	for t := at; t < end; t += period {
		out = append(out, Step{At: t, Pin: pin, Level: lv})
		lv ^= 1
		if end-t < period {
			break
		}
	}
	return append(out, Step{At: end, Pin: pin, Level: board.Low}), nil
}

// after returns at+d, rejecting a sum past the last tick.
func after(at, d uint32) (uint32, error) {
	if d > math.MaxUint32-at {
		return 0, fmt.Errorf("tick %d+%d is past the end of time", at, d)
	}
	return at + d, nil
}

func parseTick(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("bad tick %q", s)
	}
	return uint32(v), nil
}

func parseLevel(s string) (board.Level, error) {
	switch strings.ToLower(s) {
	case "high", "1":
		return board.High, nil
	case "low", "0":
		return board.Low, nil
	}
	return 0, fmt.Errorf("bad level %q", s)
}
