package ax25link

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// TestRetryTimerAttemptsSurviveRestart exercises spec.md §9's Design
// Notes requirement: restarting the timer handle (as a retransmit does)
// must not reset the attempt counter, only resetAttempts may.
func TestRetryTimerAttemptsSurviveRestart(t *testing.T) {
	var tm retryTimer
	tm.bumpAttempts()
	tm.bumpAttempts()
	tm.start(10 * time.Millisecond)
	assert.Equal(t, 2, tm.attempt)

	tm.start(10 * time.Millisecond)
	assert.Equal(t, 2, tm.attempt, "restarting the handle must not reset attempts")

	tm.resetAttempts()
	assert.Equal(t, 0, tm.attempt)
}

func TestRetryTimerFiresOnce(t *testing.T) {
	var tm retryTimer
	tm.start(5 * time.Millisecond)
	select {
	case <-tm.fire():
	case <-time.After(time.Second):
		t.Fatal("timer never fired")
	}
}

func TestRetryTimerStopSuppressesFire(t *testing.T) {
	var tm retryTimer
	tm.start(50 * time.Millisecond)
	tm.stop()
	select {
	case <-tm.fire():
		t.Fatal("stopped timer must not fire")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestRetryTimerFireNilWhenInactive(t *testing.T) {
	var tm retryTimer
	assert.Nil(t, tm.fire())
}
