package transport

import (
	"context"
	"sync"
)

// ClientCache keeps at most one Client per Endpoint alive, constructing
// new ones lazily on first use. The collection engine's direct-transfer
// path (§4.5.3) dials a remote location's transport endpoint on every
// chunk access without a cache layer this would mean one TCP handshake
// per collection_read/collection_write; reusing the connection is what
// makes repeated access to the same location cheap.
//
// The default eviction policy is "never": a Client stays cached for the
// life of the process once dialed. OnHit/OnMiss, if set, are invoked
// synchronously under the cache's lock for metrics/logging hooks.
type ClientCache struct {
	mu      sync.Mutex
	clients map[Endpoint]*Client

	OnHit  func(Endpoint)
	OnMiss func(Endpoint)
}

// NewClientCache returns an empty cache.
func NewClientCache() *ClientCache {
	return &ClientCache{clients: make(map[Endpoint]*Client)}
}

// Get returns the cached Client for endpoint, dialing one if this is the
// first request for it.
func (c *ClientCache) Get(ctx context.Context, endpoint Endpoint) (*Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cl, ok := c.clients[endpoint]; ok {
		if c.OnHit != nil {
			c.OnHit(endpoint)
		}
		return cl, nil
	}
	if c.OnMiss != nil {
		c.OnMiss(endpoint)
	}
	cl, err := Dial(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	c.clients[endpoint] = cl
	return cl, nil
}

// Evict closes and forgets the cached Client for endpoint, if any. Used
// when a caller observes a connection has gone bad (e.g. a location's
// provider restarted) and wants the next Get to redial.
func (c *ClientCache) Evict(endpoint Endpoint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cl, ok := c.clients[endpoint]; ok {
		cl.Close()
		delete(c.clients, endpoint)
	}
}

// Close closes every cached Client.
func (c *ClientCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var firstErr error
	for ep, cl := range c.clients {
		if err := cl.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(c.clients, ep)
	}
	return firstErr
}
