// Package ordercache keeps the last-seen order snapshot per service. Stale
// reads are fine; the target service stays the source of truth and cache
// misses fall through to it.
package ordercache

import (
	"sync"

	"github.com/google/uuid"

	"github.com/tinkersphere/bombardier/internal/model"
)

// Cache is a per-service orderID -> snapshot map. Safe for concurrent use.
type Cache struct {
	mu     sync.RWMutex
	orders map[string]map[uuid.UUID]model.Order
}

// New creates an empty cache.
func New() *Cache {
	return &Cache{orders: make(map[string]map[uuid.UUID]model.Order)}
}

// Put stores the latest snapshot of an order.
func (c *Cache) Put(service string, order model.Order) {
	c.mu.Lock()
	defer c.mu.Unlock()
	byID, ok := c.orders[service]
	if !ok {
		byID = make(map[uuid.UUID]model.Order)
		c.orders[service] = byID
	}
	byID[order.ID] = order
}

// Get returns the last-seen snapshot, if any.
func (c *Cache) Get(service string, orderID uuid.UUID) (model.Order, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	order, ok := c.orders[service][orderID]
	return order, ok
}

// Delete drops an order snapshot once a test is done with it.
func (c *Cache) Delete(service string, orderID uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.orders[service], orderID)
}
