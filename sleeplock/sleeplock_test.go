package sleeplock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestExclusive(t *testing.T) {
	lk := MkSleeplock("lk")
	lk.Acquire()
	acquired := make(chan bool)
	go func() {
		lk.Acquire()
		acquired <- true
		lk.Release()
	}()
	select {
	case <-acquired:
		t.Fatal("second Acquire did not wait")
	case <-time.After(20 * time.Millisecond):
	}
	lk.Release()
	assert.True(t, <-acquired)
}

// Holding does not know who the holder is.
func TestHoldingAnyHolder(t *testing.T) {
	lk := MkSleeplock("lk")
	assert.False(t, lk.Holding())
	lk.Acquire()
	held := make(chan bool)
	go func() { held <- lk.Holding() }()
	assert.True(t, <-held)
	lk.Release()
	assert.False(t, lk.Holding())
}

func TestReleaseUnheldPanics(t *testing.T) {
	lk := MkSleeplock("lk")
	assert.PanicsWithValue(t, "Release lk", func() { lk.Release() })
}
