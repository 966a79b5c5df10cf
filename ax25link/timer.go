package ax25link

import "time"

// retryTimer is a single-fire timer primitive with an attempt counter
// that is kept separate from the timer handle's lifetime, per the Design
// Notes in spec.md §9: starting a new handle (e.g. on retransmit) must
// not reset the attempt count, since T1 retry accounting spans
// retransmits.
type retryTimer struct {
	timer   *time.Timer
	attempt int
	active  bool
}

// fire returns a channel that receives when the timer expires, or nil if
// the timer isn't running (a nil channel blocks forever in a select,
// which is exactly the "no-op" behavior wanted here).
func (t *retryTimer) fire() <-chan time.Time {
	if !t.active || t.timer == nil {
		return nil
	}
	return t.timer.C
}

// start arms the timer for d without touching the attempt counter.
func (t *retryTimer) start(d time.Duration) {
	t.stop()
	t.timer = time.NewTimer(d)
	t.active = true
}

// stop disarms the timer. It does not reset the attempt counter; call
// resetAttempts explicitly on genuine forward progress.
func (t *retryTimer) stop() {
	if t.timer != nil {
		t.timer.Stop()
	}
	t.active = false
}

func (t *retryTimer) resetAttempts() { t.attempt = 0 }
func (t *retryTimer) bumpAttempts()  { t.attempt++ }
