package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLimiterAllowsBurstThenDenies(t *testing.T) {
	l := New()

	for i := 0; i < 5; i++ {
		assert.True(t, l.Allow("10.0.0.1", 5, 1), "request %d within burst", i)
	}
	assert.False(t, l.Allow("10.0.0.1", 5, 1))
}

func TestLimiterKeysAreIndependent(t *testing.T) {
	l := New()

	assert.True(t, l.Allow("a", 1, 1))
	assert.False(t, l.Allow("a", 1, 1))
	assert.True(t, l.Allow("b", 1, 1))
}

func TestLimiterRefills(t *testing.T) {
	l := New()

	assert.True(t, l.Allow("c", 1, 1000))
	assert.False(t, l.Allow("c", 1, 1000))
	time.Sleep(5 * time.Millisecond)
	assert.True(t, l.Allow("c", 1, 1000))
}

func TestLimiterRefillCapsAtCapacity(t *testing.T) {
	l := New()

	assert.True(t, l.Allow("d", 2, 50))
	time.Sleep(100 * time.Millisecond)
	// The idle gap would refill five tokens; only capacity are available.
	assert.True(t, l.Allow("d", 2, 50))
	assert.True(t, l.Allow("d", 2, 50))
	assert.False(t, l.Allow("d", 2, 50))
}
