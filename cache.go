package rdns

import (
	"sync"
	"time"

	"github.com/miekg/dns"
)

// answerCacheCapacity is the maximum number of fingerprints the answer
// cache holds before it starts evicting the least recently used entry.
const answerCacheCapacity = 4096

// answerCacheTTL is the fixed expiry applied to every cached answer.
// cache_expiry = min(message min TTL, answerCacheTTL): the message's own
// TTL is read at insert time and only shortens the fixed cap, documented
// in DESIGN.md as the chosen resolution of the source's open question.
const answerCacheTTL = 60 * time.Second

// questionFingerprint is the normalized cache key: name with a trailing
// dot, class, and type. It deliberately excludes EDNS options.
type questionFingerprint struct {
	name  string
	class uint16
	qtype uint16
}

func fingerprintOf(m *dns.Msg) questionFingerprint {
	q := m.Question[0]
	return questionFingerprint{name: dns.Fqdn(q.Name), class: q.Qclass, qtype: q.Qtype}
}

// answerCache is a TTL LRU keyed by questionFingerprint (§3, §4.E). All
// reads and writes are serialized by a single Mutex, since a read also
// moves its entry to the front of the recency list.
type answerCache struct {
	mu         sync.Mutex
	capacity   int
	items      map[questionFingerprint]*cacheEntry
	head, tail *cacheEntry
}

type cacheEntry struct {
	key        questionFingerprint
	msg        *dns.Msg
	expiresAt  time.Time
	prev, next *cacheEntry
}

func newAnswerCache(capacity int) *answerCache {
	head := new(cacheEntry)
	tail := new(cacheEntry)
	head.next = tail
	tail.prev = head
	return &answerCache{capacity: capacity, items: make(map[questionFingerprint]*cacheEntry), head: head, tail: tail}
}

// get returns a copy of the cached answer for m's question, or nil on a
// miss or expiry. Callers must have already validated m carries exactly
// one question (I1).
func (c *answerCache) get(m *dns.Msg) *dns.Msg {
	key := fingerprintOf(m)

	c.mu.Lock()
	defer c.mu.Unlock()

	item, ok := c.items[key]
	if !ok {
		return nil
	}
	if time.Now().After(item.expiresAt) {
		c.unlink(item)
		delete(c.items, key)
		return nil
	}
	c.moveToFront(item)
	return item.msg.Copy()
}

// put inserts m's answer keyed by its own question, unless the do-not-cache
// rule (I2) applies.
func (c *answerCache) put(m *dns.Msg) {
	if len(m.Question) != 1 || isDoNotCacheTXT(m.Question[0]) {
		return
	}

	key := fingerprintOf(m)
	ttl := answerCacheTTL
	if mt := minTTL(m); mt > 0 && time.Duration(mt)*time.Second < ttl {
		ttl = time.Duration(mt) * time.Second
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.items[key]; ok {
		existing.msg = m.Copy()
		existing.expiresAt = time.Now().Add(ttl)
		c.moveToFront(existing)
		return
	}

	item := &cacheEntry{key: key, msg: m.Copy(), expiresAt: time.Now().Add(ttl)}
	item.next = c.head.next
	item.prev = c.head
	c.head.next.prev = item
	c.head.next = item
	c.items[key] = item
	c.evictOverflow()
}

func (c *answerCache) moveToFront(item *cacheEntry) {
	c.unlink(item)
	item.next = c.head.next
	item.prev = c.head
	c.head.next.prev = item
	c.head.next = item
}

func (c *answerCache) unlink(item *cacheEntry) {
	item.prev.next = item.next
	item.next.prev = item.prev
}

func (c *answerCache) evictOverflow() {
	if c.capacity <= 0 {
		return
	}
	for len(c.items) > c.capacity {
		victim := c.tail.prev
		if victim == c.head {
			return
		}
		c.unlink(victim)
		delete(c.items, victim.key)
	}
}

func (c *answerCache) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}
