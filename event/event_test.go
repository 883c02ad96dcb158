package event

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFlagLevelSemantics(t *testing.T) {
	var f Flag
	assert.False(t, f.IsSet())

	f.Set(true)
	f.Set(true)
	assert.True(t, f.IsSet())

	f.Set(false)
	assert.False(t, f.IsSet())

	assert.True(t, f.Toggle())
	assert.False(t, f.Toggle())
}

func TestFlagToggleIsAtomic(t *testing.T) {
	var f Flag
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				f.Toggle()
			}
		}()
	}
	wg.Wait()
	// 8000 toggles leave the flag where it started.
	assert.False(t, f.IsSet())
}

// press builds a level sequence: active in [from, to), inactive elsewhere,
// with bounce toggling the level every period ticks for span ticks at both ends.
func press(from, to, span, period uint32) func(tick uint32) bool {
	return func(tick uint32) bool {
		switch {
		case tick < from || tick >= to+span:
			return false
		case tick < from+span:
			return ((tick-from)/period)%2 == 0
		case tick >= to:
			return ((tick-to)/period)%2 == 1
		}
		return true
	}
}

func run(d *Debouncer, level func(uint32) bool, ticks uint32) []uint32 {
	var fired []uint32
	for tick := uint32(0); tick < ticks; tick++ {
		if d.Update(level(tick), tick) {
			fired = append(fired, tick)
		}
	}
	return fired
}

func TestDebouncerOneEventPerBouncingPress(t *testing.T) {
	d := Debouncer{Settle: 100}
	// 40 ticks of bounce on press and release, well under the settle time.
	fired := run(&d, press(50, 600, 40, 5), 1000)
	assert.Equal(t, []uint32{150}, fired)
}

func TestDebouncerRejectsShortGlitch(t *testing.T) {
	d := Debouncer{Settle: 100}
	fired := run(&d, press(50, 80, 0, 1), 400)
	assert.Empty(t, fired)
}

func TestDebouncerLongHoldFiresOnce(t *testing.T) {
	d := Debouncer{Settle: 100}
	fired := run(&d, press(10, 5000, 0, 1), 6000)
	assert.Equal(t, []uint32{110}, fired)
}

func TestDebouncerSeparatePresses(t *testing.T) {
	d := Debouncer{Settle: 100}
	first := press(100, 400, 20, 4)
	second := press(1000, 1300, 20, 4)
	fired := run(&d, func(tick uint32) bool { return first(tick) || second(tick) }, 2000)
	assert.Equal(t, []uint32{200, 1100}, fired)
}

func TestDebouncerZeroSettle(t *testing.T) {
	d := Debouncer{}
	assert.True(t, d.Update(true, 7))
	assert.False(t, d.Update(true, 8))
	assert.False(t, d.Update(false, 9))
	assert.True(t, d.Update(true, 10))
}

func TestDebouncerWait(t *testing.T) {
	d := Debouncer{Settle: 100}
	assert.Zero(t, d.Wait(0))

	assert.False(t, d.Update(true, 20))
	assert.Equal(t, uint32(100), d.Wait(20))
	assert.Equal(t, uint32(30), d.Wait(90))

	// Sleeping the whole window and sampling once is enough.
	assert.True(t, d.Update(true, 120))
	assert.Zero(t, d.Wait(121))
}
