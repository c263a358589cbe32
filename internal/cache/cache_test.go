package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestMemory_GetSetDelete(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	defer m.Close()

	_, hit, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, hit)

	require.NoError(t, m.Set(ctx, "k", []byte("v1"), 0))
	data, hit, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, []byte("v1"), data)

	// Returned data is a copy.
	data[0] = 'X'
	again, _, _ := m.Get(ctx, "k")
	assert.Equal(t, []byte("v1"), again)

	require.NoError(t, m.Delete(ctx, "k"))
	_, hit, _ = m.Get(ctx, "k")
	assert.False(t, hit)
}

func TestMemory_TTL(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)}
	m := NewMemoryWithSweep(0)
	m.now = clock.Now

	require.NoError(t, m.Set(ctx, "short", []byte("a"), 30*time.Second))
	require.NoError(t, m.Set(ctx, "long", []byte("b"), time.Hour))
	require.NoError(t, m.Set(ctx, "forever", []byte("c"), 0))

	clock.Advance(29 * time.Second)
	_, hit, _ := m.Get(ctx, "short")
	assert.True(t, hit)

	clock.Advance(time.Second)
	_, hit, _ = m.Get(ctx, "short")
	assert.False(t, hit, "entry expires exactly at its deadline")
	assert.Equal(t, 2, m.Len())

	clock.Advance(2 * time.Hour)
	assert.Equal(t, 1, m.Sweep())
	_, hit, _ = m.Get(ctx, "forever")
	assert.True(t, hit)
}

func TestMemory_BackgroundSweepDropsUnreadEntries(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryWithSweep(5 * time.Millisecond)
	defer m.Close()

	for i := 0; i < 1000; i++ {
		require.NoError(t, m.Set(ctx, Key("layout", i), []byte("v"), time.Millisecond))
	}
	require.NoError(t, m.Set(ctx, "keep", []byte("v"), 0))

	assert.Eventually(t, func() bool { return m.Len() == 1 }, 2*time.Second, 5*time.Millisecond)
	_, hit, _ := m.Get(ctx, "keep")
	assert.True(t, hit)
}

func TestMemory_CloseTwice(t *testing.T) {
	m := NewMemoryWithSweep(time.Millisecond)
	require.NoError(t, m.Set(context.Background(), "k", []byte("v"), 0))
	assert.NoError(t, m.Close())
	assert.NoError(t, m.Close())
	assert.Equal(t, 0, m.Len())
}

func TestMemory_Concurrent(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := Key("layout", i%4)
			for j := 0; j < 100; j++ {
				_ = m.Set(ctx, key, []byte{byte(j)}, time.Minute)
				_, _, _ = m.Get(ctx, key)
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 4, m.Len())
}

func TestNull(t *testing.T) {
	ctx := context.Background()
	c := NewNull()
	defer c.Close()

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Hour))
	data, hit, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Nil(t, data)
	assert.NoError(t, c.Delete(ctx, "k"))
}

func TestKey(t *testing.T) {
	a := Key("layout", "2025-03-10", 200.0, 30.0)
	b := Key("layout", "2025-03-10", 200.0, 30.0)
	c := Key("layout", "2025-03-10", 200.0, 31.0)
	d := Key("week", "2025-03-10", 200.0, 30.0)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.NotEqual(t, a, d)
	assert.Len(t, a, len("layout:")+64)
}

func TestJSONHelpers(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	type payload struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}

	var out payload
	err := GetJSON(ctx, m, "missing", &out)
	assert.True(t, errors.Is(err, ErrCacheMiss))

	require.NoError(t, SetJSON(ctx, m, "p", payload{Name: "week", Count: 7}, time.Minute))
	require.NoError(t, GetJSON(ctx, m, "p", &out))
	assert.Equal(t, payload{Name: "week", Count: 7}, out)

	require.NoError(t, m.Set(ctx, "bad", []byte("{"), 0))
	assert.Error(t, GetJSON(ctx, m, "bad", &out))
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	c, err := Open(ctx, Options{})
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, c)

	c, err = Open(ctx, Options{Backend: "none"})
	require.NoError(t, err)
	assert.IsType(t, &Null{}, c)

	_, err = Open(ctx, Options{Backend: "memcached"})
	assert.ErrorIs(t, err, ErrUnknownBackend)

	_, err = Open(ctx, Options{Backend: "redis"})
	assert.Error(t, err, "redis without an address must fail before dialing")
}
