package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAllowWithinBurst(t *testing.T) {
	l := New(10*time.Minute, 2)

	allowed, _ := l.Allow("1.2.3.4")
	assert.True(t, allowed)
	allowed, _ = l.Allow("1.2.3.4")
	assert.True(t, allowed)

	allowed, retryAfter := l.Allow("1.2.3.4")
	assert.False(t, allowed)
	assert.Greater(t, retryAfter, time.Duration(0))
}

func TestKeysAreIndependent(t *testing.T) {
	l := New(10*time.Minute, 1)

	allowed, _ := l.Allow("1.2.3.4")
	assert.True(t, allowed)
	allowed, _ = l.Allow("1.2.3.4")
	assert.False(t, allowed)

	allowed, _ = l.Allow("5.6.7.8")
	assert.True(t, allowed, "a different key has its own bucket")
}

func TestDeniedReservationDoesNotConsume(t *testing.T) {
	l := New(time.Millisecond, 1)

	allowed, _ := l.Allow("1.2.3.4")
	assert.True(t, allowed)

	// Denials cancel their reservation, so once a token refills the key
	// is allowed again instead of being pushed further back.
	l.Allow("1.2.3.4")
	time.Sleep(5 * time.Millisecond)
	allowed, _ = l.Allow("1.2.3.4")
	assert.True(t, allowed)
}
