package rtos

// Forever is the timeout that never expires (portMAX_DELAY).
const Forever = ^uint32(0)

// MaxDelay is the longest finite timeout. Deadlines are compared modulo 2^32,
// so a longer one would look as if it had already passed.
const MaxDelay = uint32(1<<31 - 1)

// MsToTicks converts a millisecond duration to kernel ticks at the given
// tick rate: ticks = ms * hz / 1000, truncating. The product is formed in 64
// bits so long delays at high tick rates do not wrap.
func MsToTicks(ms, hz uint32) uint32 {
	return uint32(uint64(ms) * uint64(hz) / 1000)
}

// reached reports whether now is at or past deadline, tolerating counter wrap.
func reached(now, deadline uint32) bool {
	return int32(now-deadline) >= 0
}
