// Package cache implements the bounded in-process message cache. It gives
// edit/delete handlers an immediate view of recent messages while the online
// store catches up asynchronously.
package cache

import (
	"container/list"
	"database/sql"
	"sync"

	"github.com/telewatch/telewatch/internal/database"
)

// Cache is a thread-safe LRU cache of message records keyed by
// (owner, chat, message). Eviction is purely capacity-driven: there is no age
// expiry, correctness relies on the online store as the fallback of record.
type Cache struct {
	mu       sync.Mutex
	capacity int
	order    *list.List // front = least recently used
	entries  map[database.MessageKey]*list.Element
}

type entry struct {
	key    database.MessageKey
	record database.Message
}

// New creates a cache bounded to capacity entries.
func New(capacity int) *Cache {
	if capacity <= 0 {
		capacity = 10000
	}
	return &Cache{
		capacity: capacity,
		order:    list.New(),
		entries:  make(map[database.MessageKey]*list.Element, capacity),
	}
}

// Set stores a record, marking it most recently used. When the cache exceeds
// capacity, least-recently-used entries are evicted irrespective of content.
func (c *Cache) Set(record database.Message) {
	key := record.Key()

	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[key]; ok {
		elem.Value.(*entry).record = record
		c.order.MoveToBack(elem)
		return
	}

	c.entries[key] = c.order.PushBack(&entry{key: key, record: record})

	for c.order.Len() > c.capacity {
		oldest := c.order.Front()
		if oldest == nil {
			break
		}
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*entry).key)
	}
}

// Get returns a copy of the record and promotes its recency. Callers get a
// defensive copy and must not expect mutations to be reflected back.
func (c *Cache) Get(key database.MessageKey) (database.Message, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[key]
	if !ok {
		return database.Message{}, false
	}
	c.order.MoveToBack(elem)
	return elem.Value.(*entry).record, true
}

// UpdateContent overwrites the mutable content fields of a cached record and
// promotes its recency. It is a no-op if the key is absent. Identity and
// timestamp are never touched.
func (c *Cache) UpdateContent(key database.MessageKey, text, contentType, fingerprint, extra sql.NullString) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[key]
	if !ok {
		return
	}
	rec := &elem.Value.(*entry).record
	rec.Text = text
	if contentType.Valid {
		rec.ContentType = contentType.String
	}
	rec.Fingerprint = fingerprint
	rec.Extra = extra
	c.order.MoveToBack(elem)
}

// Delete removes a record if present.
func (c *Cache) Delete(key database.MessageKey) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[key]; ok {
		c.order.Remove(elem)
		delete(c.entries, key)
	}
}

// Len returns the current number of cached records.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Keys returns the resident key set, least recently used first.
func (c *Cache) Keys() []database.MessageKey {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := make([]database.MessageKey, 0, c.order.Len())
	for elem := c.order.Front(); elem != nil; elem = elem.Next() {
		keys = append(keys, elem.Value.(*entry).key)
	}
	return keys
}
