package venue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoffDelaySequence(t *testing.T) {
	expected := []time.Duration{
		5 * time.Second,
		10 * time.Second,
		20 * time.Second,
		40 * time.Second,
		60 * time.Second,
		60 * time.Second,
		60 * time.Second,
	}
	for attempt, want := range expected {
		assert.Equal(t, want, BackoffDelay(attempt), "attempt %d", attempt)
	}
}

func TestDedupeWindowAdmitsStrictlyIncreasingEventTime(t *testing.T) {
	d := newDedupeWindow()

	assert.True(t, d.admit("nonkyc|XBT/USDT", 100))
	assert.True(t, d.admit("nonkyc|XBT/USDT", 101))
	assert.True(t, d.admit("coinex|XBT/USDT", 50))
}

func TestDedupeWindowRejectsNonIncreasingEventTime(t *testing.T) {
	d := newDedupeWindow()

	assert.True(t, d.admit("nonkyc|XBT/USDT", 100))
	assert.False(t, d.admit("nonkyc|XBT/USDT", 100))
	assert.False(t, d.admit("nonkyc|XBT/USDT", 99))
}
