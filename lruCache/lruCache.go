package lrucache

import (
	"container/list"
	"sync"
)

type Item[K comparable] struct {
	Key   K
	Value []byte
}

// LRUBufferCache implements a thread-safe Least Recently Used cache of byte buffers.
// The file server keeps recently read chunks in it.
type LRUBufferCache[K comparable] struct {
	capacity int
	items    map[K]*list.Element
	lruList  *list.List
	mutex    sync.RWMutex
}

// NewLRUBufferCache creates a new LRU cache with the given capacity.
// A capacity of zero or less disables the cache and returns nil; a nil cache never hits.
func NewLRUBufferCache[K comparable](capacity int) *LRUBufferCache[K] {
	if capacity <= 0 {
		return nil
	}
	return &LRUBufferCache[K]{
		capacity: capacity,
		items:    make(map[K]*list.Element),
		lruList:  list.New(),
	}
}

// Get retrieves an item from the cache by key
// Returns the value and a boolean indicating if the key was found
func (c *LRUBufferCache[K]) Get(key K) ([]byte, bool) {
	if c == nil {
		return nil, false
	}
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if element, found := c.items[key]; found {
		// Move to front (most recently used)
		c.lruList.MoveToFront(element)
		return element.Value.(*Item[K]).Value, true
	}
	return nil, false
}

// Put adds or updates an item in the cache
func (c *LRUBufferCache[K]) Put(key K, value []byte) {
	if c == nil {
		return
	}
	c.mutex.Lock()
	defer c.mutex.Unlock()

	// If key exists, update value and move to front
	if element, found := c.items[key]; found {
		c.lruList.MoveToFront(element)
		element.Value.(*Item[K]).Value = value
		return
	}

	if c.lruList.Len() >= c.capacity {
		c.evictOldest()
	}

	element := c.lruList.PushFront(&Item[K]{
		Key:   key,
		Value: value,
	})
	c.items[key] = element
}

// Remove explicitly removes an item from the cache
func (c *LRUBufferCache[K]) Remove(key K) bool {
	if c == nil {
		return false
	}
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if element, found := c.items[key]; found {
		c.lruList.Remove(element)
		delete(c.items, key)
		return true
	}
	return false
}

// Peek retrieves an item's value without changing its position in the LRU list
func (c *LRUBufferCache[K]) Peek(key K) ([]byte, bool) {
	if c == nil {
		return nil, false
	}
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	if element, found := c.items[key]; found {
		return element.Value.(*Item[K]).Value, true
	}
	return nil, false
}

// evictOldest removes the least recently used item from the cache
func (c *LRUBufferCache[K]) evictOldest() {
	if element := c.lruList.Back(); element != nil {
		item := element.Value.(*Item[K])
		delete(c.items, item.Key)
		c.lruList.Remove(element)
	}
}

// Clear removes all items from the cache
func (c *LRUBufferCache[K]) Clear() {
	if c == nil {
		return
	}
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.lruList.Init()
	c.items = make(map[K]*list.Element)
}

// Len returns the current number of items in the cache
func (c *LRUBufferCache[K]) Len() int {
	if c == nil {
		return 0
	}
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	return c.lruList.Len()
}

// Capacity returns the maximum capacity of the cache
func (c *LRUBufferCache[K]) Capacity() int {
	if c == nil {
		return 0
	}
	return c.capacity
}

// GetKeys returns all keys in the cache in order of most to least recently used
func (c *LRUBufferCache[K]) GetKeys() []K {
	if c == nil {
		return nil
	}
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	keys := make([]K, 0, c.lruList.Len())
	for element := c.lruList.Front(); element != nil; element = element.Next() {
		keys = append(keys, element.Value.(*Item[K]).Key)
	}
	return keys
}
