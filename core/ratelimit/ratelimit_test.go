package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAllow(t *testing.T) {
	now := time.Now()
	l := New(time.Minute, 3)
	l.nowFunc = func() time.Time { return now }

	t.Run("allows up to max within a window", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			assert.True(t, l.Allow("1.2.3.4"), "request %d", i+1)
		}
		assert.False(t, l.Allow("1.2.3.4"))
		assert.False(t, l.Allow("1.2.3.4"))
	})

	t.Run("keys are independent", func(t *testing.T) {
		assert.True(t, l.Allow("5.6.7.8"))
	})

	t.Run("window rollover resets the counter", func(t *testing.T) {
		now = now.Add(time.Minute + time.Second)
		for i := 0; i < 3; i++ {
			assert.True(t, l.Allow("1.2.3.4"), "request %d", i+1)
		}
		assert.False(t, l.Allow("1.2.3.4"))
	})
}

func TestEviction(t *testing.T) {
	now := time.Now()
	l := New(time.Minute, 1)
	l.nowFunc = func() time.Time { return now }

	l.Allow("a")
	l.Allow("b")
	assert.Equal(t, 2, l.Len())

	// idle keys are dropped on the next rollover past the ttl
	now = now.Add(3 * time.Minute)
	l.Allow("c")
	assert.Equal(t, 1, l.Len())
}
