package cache

import (
	"context"
	"sync"

	"github.com/authzed/connector-warehouse/pkg/metrics"
)

// Cache queues ids of trips fetched from the WAL that need to be reloaded
// into the warehouse. An id that is already waiting is not queued twice. It
// is safe to use from multiple threads.
type Cache struct {
	sync.Mutex
	sync.Cond
	ctx context.Context

	queue   []string
	pending map[string]struct{}
}

// NewCache returns a new cache tied to the lifetime of the context.
// The cache can be closed by cancelling the context.
// Calling NewCache spawns a goroutine to handle cancellation.
func NewCache(ctx context.Context) *Cache {
	c := Cache{
		pending: make(map[string]struct{}),
		queue:   make([]string, 0),
		ctx:     ctx,
	}
	// the cache's mutex also serves as the sync.Cond locker
	c.L = &c

	// listen for context cancellation and broadcast when context is closed
	// this will unblock anything waiting on the sync.Cond and let them clean up
	go func() {
		<-ctx.Done()
		c.Lock()
		defer c.Unlock()
		c.Broadcast()
	}()
	return &c
}

// Touch queues a trip id unless it is already waiting
func (c *Cache) Touch(id string) {
	c.Lock()
	defer c.Unlock()

	if _, ok := c.pending[id]; ok {
		return
	}
	c.pending[id] = struct{}{}
	c.queue = append(c.queue, id)
	metrics.FollowQueueDepth.Set(float64(len(c.queue)))
	c.Broadcast()
}

// Requeue re-adds an id that failed to load
func (c *Cache) Requeue(id string) {
	c.Touch(id)
}

// Len returns the number of waiting ids
func (c *Cache) Len() int {
	c.Lock()
	defer c.Unlock()
	return len(c.queue)
}

// Next returns the next trip id in the queue.
// It blocks until an id is added if the queue is empty, and returns false
// only when stopped via the context.
func (c *Cache) Next() (string, bool) {
	c.Lock()
	defer c.Unlock()
	for len(c.queue) == 0 && c.ctx.Err() == nil {
		c.Wait()
	}
	// exit if the context has been cancelled
	if c.ctx.Err() != nil {
		return "", false
	}
	id := c.queue[0]
	c.queue = c.queue[1:]
	delete(c.pending, id)
	metrics.FollowQueueDepth.Set(float64(len(c.queue)))
	return id, true
}

// Drain removes and returns every waiting id without blocking
func (c *Cache) Drain() []string {
	c.Lock()
	defer c.Unlock()
	ids := c.queue
	c.queue = make([]string, 0)
	c.pending = make(map[string]struct{})
	metrics.FollowQueueDepth.Set(0)
	return ids
}
