package rtos_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jangala-dev/tinygo-rtosdemo/rtos"
)

type waitResult struct {
	tick  uint32
	value uint32
	ok    bool
}

// waiter records the result of a single NotifyWait call and then parks.
func waiter(out *waitResult, clearOnEntry, clearOnExit, timeout uint32) rtos.TaskFunc {
	return func(t *rtos.Task) {
		v, ok := t.NotifyWait(clearOnEntry, clearOnExit, timeout)
		*out = waitResult{tick: t.TickCount(), value: v, ok: ok}
		parkForever(t)
	}
}

func TestNotifyBeforeWaitCoalesces(t *testing.T) {
	cases := []struct {
		name   string
		action rtos.NotifyAction
		values []uint32
		want   uint32
	}{
		{"overwrite keeps last", rtos.SetValueWithOverwrite, []uint32{5, 9, 3}, 3},
		{"increment counts calls", rtos.Increment, []uint32{0, 0, 0, 0}, 4},
		{"set bits ors", rtos.SetBits, []uint32{0x1, 0x4, 0x10}, 0x15},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			k := newKernel(t, rtos.Config{})
			var got waitResult
			h := mustCreate(t, k, waiter(&got, 0, 0, rtos.Forever), "consumer", 1)
			for _, v := range c.values {
				ok, err := k.Notify(h, v, c.action)
				require.NoError(t, err)
				require.True(t, ok)
			}

			require.NoError(t, k.RunFor(context.Background(), 3))
			assert.Equal(t, waitResult{tick: 0, value: c.want, ok: true}, got)
			assert.Equal(t, uint32(len(c.values)), k.DebugStats().NotifySent)
			assert.Equal(t, uint32(len(c.values)-1), k.DebugStats().NotifyCoalesced)
		})
	}
}

func TestNotifyWithoutOverwriteKeepsPending(t *testing.T) {
	k := newKernel(t, rtos.Config{})
	var got waitResult
	h := mustCreate(t, k, waiter(&got, 0, 0, rtos.Forever), "consumer", 1)

	ok, err := k.Notify(h, 11, rtos.SetValueWithoutOverwrite)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = k.Notify(h, 22, rtos.SetValueWithoutOverwrite)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, k.RunFor(context.Background(), 2))
	assert.Equal(t, uint32(11), got.value)
}

func TestNotifyWaitClearMasks(t *testing.T) {
	k := newKernel(t, rtos.Config{})
	var first, second waitResult
	h := mustCreate(t, k, func(t *rtos.Task) {
		v, ok := t.NotifyWait(0, 0x0F, 0)
		first = waitResult{t.TickCount(), v, ok}
		v, ok = t.NotifyWait(0xF0, 0, 5)
		second = waitResult{t.TickCount(), v, ok}
		parkForever(t)
	}, "consumer", 1)
	_, err := k.Notify(h, 0xFF, rtos.SetValueWithOverwrite)
	require.NoError(t, err)

	require.NoError(t, k.RunFor(context.Background(), 10))
	assert.Equal(t, waitResult{0, 0xFF, true}, first)
	// 0xFF cleared by 0x0F on exit, then 0xF0 on entry; nothing arrives.
	assert.Equal(t, waitResult{5, 0x00, false}, second)
}

func TestNotifyWaitTimesOut(t *testing.T) {
	k := newKernel(t, rtos.Config{})
	var got waitResult
	h := mustCreate(t, k, waiter(&got, 0, 0, 10), "consumer", 1)

	require.NoError(t, k.RunFor(context.Background(), 20))
	assert.Equal(t, waitResult{tick: 10, value: 0, ok: false}, got)

	info, ok := k.Lookup(h)
	require.True(t, ok)
	assert.False(t, info.NotifyPending)
}

func TestNotifyPreemptsForMoreUrgentWaiter(t *testing.T) {
	k := newKernel(t, rtos.Config{})
	var order []string
	consumer := mustCreate(t, k, func(t *rtos.Task) {
		for {
			if _, ok := t.NotifyWait(0, 0, rtos.Forever); ok {
				order = append(order, "consumer")
			}
		}
	}, "consumer", 2)
	mustCreate(t, k, func(t *rtos.Task) {
		order = append(order, "producer:before")
		if _, err := t.Kernel().Notify(consumer, 0, rtos.Increment); err != nil {
			order = append(order, err.Error())
		}
		order = append(order, "producer:after")
		parkForever(t)
	}, "producer", 1)

	require.NoError(t, k.RunFor(context.Background(), 3))
	assert.Equal(t, []string{"producer:before", "consumer", "producer:after"}, order)
}

func TestNotifyFromISRWakesWaiter(t *testing.T) {
	var k *rtos.Kernel
	var consumer rtos.Handle
	k = newKernel(t, rtos.Config{TickHook: func(tick uint32) error {
		if tick == 5 {
			k.NotifyFromISR(consumer, 7, rtos.SetValueWithOverwrite)
		}
		return nil
	}})
	var got waitResult
	consumer = mustCreate(t, k, waiter(&got, 0, ^uint32(0), rtos.Forever), "consumer", 1)

	require.NoError(t, k.RunFor(context.Background(), 10))
	assert.Equal(t, waitResult{tick: 5, value: 7, ok: true}, got)
	assert.Equal(t, uint32(1), k.DebugStats().ISRPosts)

	info, _ := k.Lookup(consumer)
	assert.Equal(t, uint32(0), info.NotifyValue)
}

func TestNotifyFromISRDropsWhenFull(t *testing.T) {
	k := newKernel(t, rtos.Config{ISRQueueLen: 2})
	h := mustCreate(t, k, parkForever, "consumer", 1)

	assert.True(t, k.NotifyFromISR(h, 0, rtos.Increment))
	assert.True(t, k.NotifyFromISR(h, 0, rtos.Increment))
	assert.False(t, k.NotifyFromISR(h, 0, rtos.Increment))
	assert.Equal(t, uint32(1), k.DebugStats().ISRDropped)

	require.NoError(t, k.RunFor(context.Background(), 2))
	info, _ := k.Lookup(h)
	assert.Equal(t, uint32(2), info.NotifyValue)
}

func TestNotifyTakeCountsDown(t *testing.T) {
	k := newKernel(t, rtos.Config{})
	var got []uint32
	h := mustCreate(t, k, func(t *rtos.Task) {
		for i := 0; i < 3; i++ {
			got = append(got, t.NotifyTake(false, rtos.Forever))
		}
		got = append(got, t.NotifyTake(false, 5))
		parkForever(t)
	}, "consumer", 1)
	for i := 0; i < 3; i++ {
		_, err := k.Notify(h, 0, rtos.Increment)
		require.NoError(t, err)
	}

	require.NoError(t, k.RunFor(context.Background(), 10))
	assert.Equal(t, []uint32{3, 2, 1, 0}, got)
}

func TestNotifyActionString(t *testing.T) {
	assert.Equal(t, "increment", rtos.Increment.String())
	assert.Equal(t, "overwrite", rtos.SetValueWithOverwrite.String())
	assert.Equal(t, "NotifyAction(9)", rtos.NotifyAction(9).String())
}
