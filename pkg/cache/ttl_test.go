package cache

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.t
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.t = f.t.Add(d)
	f.mu.Unlock()
}

func TestTTLExpiry(t *testing.T) {
	clk := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	c := NewTTL[float64](300*time.Second, WithClock(clk.Now))

	c.Set("vix", 18.5)

	clk.Advance(299 * time.Second)
	v, ok := c.Get("vix")
	assert.True(t, ok)
	assert.Equal(t, 18.5, v)

	age, ok := c.Age("vix")
	assert.True(t, ok)
	assert.Equal(t, 299*time.Second, age)

	// now - createdAt == ttl is already stale
	clk.Advance(time.Second)
	_, ok = c.Get("vix")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestTTLZeroIsPermanent(t *testing.T) {
	clk := &fakeClock{t: time.Unix(0, 0)}
	c := NewTTL[bool](0, WithClock(clk.Now))
	c.Set("AAPL", true)

	clk.Advance(24 * 365 * time.Hour)
	v, ok := c.Get("AAPL")
	assert.True(t, ok)
	assert.True(t, v)
}

func TestTTLLastWriteWins(t *testing.T) {
	c := NewTTL[string](time.Minute)
	c.Set("k", "a")
	c.Set("k", "b")
	v, _ := c.Get("k")
	assert.Equal(t, "b", v)

	c.Delete("k")
	_, ok := c.Get("k")
	assert.False(t, ok)

	c.Set("x", "y")
	c.Clear()
	assert.Equal(t, 0, c.Len())
}

func TestTTLConcurrentAccess(t *testing.T) {
	c := NewTTL[int](time.Minute)
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.Set("shared", i)
				c.Get("shared")
			}
		}(i)
	}
	wg.Wait()
	_, ok := c.Get("shared")
	assert.True(t, ok)
}
