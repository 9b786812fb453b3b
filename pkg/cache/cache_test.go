package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCacheDeduplicates(t *testing.T) {
	require := require.New(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c := NewCache(ctx)

	c.Touch("1")
	c.Touch("2")
	c.Touch("1")
	require.Equal(2, c.Len())

	id, ok := c.Next()
	require.True(ok)
	require.Equal("1", id)

	// once popped, an id can be queued again
	c.Requeue("1")
	require.Equal([]string{"2", "1"}, c.Drain())
	require.Zero(c.Len())
}

func TestCacheNextBlocks(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c := NewCache(ctx)

	got := make(chan string)
	go func() {
		id, _ := c.Next()
		got <- id
	}()

	select {
	case <-got:
		t.Fatal("Next returned on an empty queue")
	case <-time.After(50 * time.Millisecond):
	}

	c.Touch("7")
	select {
	case id := <-got:
		require.Equal(t, "7", id)
	case <-time.After(5 * time.Second):
		t.Fatal("Next did not wake up")
	}
}

func TestCacheStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	c := NewCache(ctx)

	done := make(chan bool)
	go func() {
		_, ok := c.Next()
		done <- ok
	}()
	cancel()

	select {
	case ok := <-done:
		require.False(t, ok)
	case <-time.After(5 * time.Second):
		t.Fatal("Next did not return after cancel")
	}
}
