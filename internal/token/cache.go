// Package token implements the bounded, time-expiring session token cache used
// for lightweight request authentication.
package token

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"sync"
	"time"
)

type entry struct {
	value   string
	expires time.Time
}

// Cache is a fixed-capacity FIFO buffer of issued tokens. Inserting past
// capacity silently overwrites the oldest entry even if it has not expired,
// which caps the number of concurrently valid sessions by construction.
// Expired entries are not swept; they are treated as invalid at validation
// time and stay in the buffer until FIFO pressure overwrites them.
type Cache struct {
	mu       sync.Mutex
	entries  []entry
	next     int
	capacity int
	ttl      time.Duration
	now      func() time.Time
}

// NewCache builds a Cache holding at most capacity tokens, each valid for ttl.
func NewCache(capacity int, ttl time.Duration) *Cache {
	if capacity <= 0 {
		capacity = 1
	}
	return &Cache{
		entries:  make([]entry, 0, capacity),
		capacity: capacity,
		ttl:      ttl,
		now:      time.Now,
	}
}

// Issue generates a fresh token, records it with its expiry, and returns it.
func (c *Cache) Issue() string {
	tok := newToken()
	c.mu.Lock()
	defer c.mu.Unlock()
	e := entry{value: tok, expires: c.now().Add(c.ttl)}
	if len(c.entries) < c.capacity {
		c.entries = append(c.entries, e)
	} else {
		c.entries[c.next] = e
		c.next = (c.next + 1) % c.capacity
	}
	return tok
}

// Validate reports whether candidate was issued, has not been evicted, and has
// not expired.
func (c *Cache) Validate(candidate string) bool {
	if candidate == "" {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	for _, e := range c.entries {
		if subtle.ConstantTimeCompare([]byte(e.value), []byte(candidate)) == 1 {
			return !now.After(e.expires)
		}
	}
	return false
}

func newToken() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	return base64.RawURLEncoding.EncodeToString(buf)
}
