// Package clock provides the monotonic microsecond clock, a sleep
// primitive, and a small Timer helper the session engine uses for its
// four ISO-15765 timers (N_As, N_Ar, N_Bs, N_Cr).
package clock

// Timer tracks elapsed time against a start point set by Start.
type Timer struct {
	start int64
}

// Start records the current time as the timer's reference point.
func (t *Timer) Start() {
	t.start = NowUs()
}

// ElapsedUs returns microseconds since the last Start.
func (t *Timer) ElapsedUs() int64 {
	return NowUs() - t.start
}

// Expired reports whether limitUs has elapsed since Start. A limit of
// 0 means "never expires" and always reports false.
func (t *Timer) Expired(limitUs int64) bool {
	if limitUs <= 0 {
		return false
	}
	return t.ElapsedUs() >= limitUs
}
