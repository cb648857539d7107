package rdns

import (
	"encoding/binary"
	"fmt"
	"net"
	"sync"
)

// FakeIPStore is the persistence interface a fakeIPEngine consults on
// lookup misses before minting a new address, and writes through to after
// minting, so restarts preserve mappings (§4.G, §9).
type FakeIPStore interface {
	Put(host string, ip net.IP)
	Get(host string) (net.IP, bool)
	GetReverse(ip net.IP) (string, bool)
}

// fakeIPEngine synthesizes deterministic IPv4 addresses from a reserved
// CIDR and maps them bidirectionally to hostnames. All operations run
// under a single exclusive lock (§5): the pool is small and contended
// rarely enough that finer-grained locking isn't worth the complexity.
type fakeIPEngine struct {
	mu sync.Mutex

	network   uint32
	broadcast uint32
	firstUse  uint32 // network + 2
	lastUse   uint32 // broadcast - 1
	cursor    uint32

	hostToIP map[string]*fakeIPRecord
	ipToHost map[uint32]*fakeIPRecord
	lru      *fakeIPRecord // least-recently-used end of the recency list
	mru      *fakeIPRecord // most-recently-used end of the recency list

	skip  *StringTrie[bool]
	store FakeIPStore
}

type fakeIPRecord struct {
	host       string
	ip         uint32
	prev, next *fakeIPRecord
}

// NewFakeIPEngine builds an engine over cidr (must be an IPv4 network of
// /30 or wider, which leaves at least one usable address once network,
// network+1 and broadcast are reserved), skipping lookups for any host matching
// skipPatterns, and consulting store for persistence.
func NewFakeIPEngine(cidr string, skipPatterns []string, store FakeIPStore) (*fakeIPEngine, error) {
	_, ipnet, err := net.ParseCIDR(cidr)
	if err != nil {
		return nil, fmt.Errorf("invalid fake_ip_range %q: %w", cidr, err)
	}
	v4 := ipnet.IP.To4()
	if v4 == nil {
		return nil, fmt.Errorf("fake_ip_range %q must be an IPv4 CIDR", cidr)
	}

	network := binary.BigEndian.Uint32(v4)
	ones, bits := ipnet.Mask.Size()
	hostBits := bits - ones
	if hostBits < 2 {
		return nil, fmt.Errorf("fake_ip_range %q is too small, need at least one usable address", cidr)
	}
	broadcast := network | (1<<uint(hostBits) - 1)
	firstUse := network + 2
	lastUse := broadcast - 1
	if firstUse > lastUse {
		return nil, fmt.Errorf("fake_ip_range %q has no usable addresses after reserving network/gateway/broadcast", cidr)
	}

	skip := NewStringTrie[bool]()
	for _, p := range skipPatterns {
		skip.Insert(p, true)
	}

	if store == nil {
		store = NewInMemFakeIPStore(1000)
	}

	return &fakeIPEngine{
		network:   network,
		broadcast: broadcast,
		firstUse:  firstUse,
		lastUse:   lastUse,
		cursor:    firstUse,
		hostToIP:  make(map[string]*fakeIPRecord),
		ipToHost:  make(map[uint32]*fakeIPRecord),
		skip:      skip,
		store:     store,
	}, nil
}

// ShouldSkip reports whether host matches the configured skip patterns
// (fake_ip_filter); matching hosts always get a real lookup.
func (e *fakeIPEngine) ShouldSkip(host string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.skip.Search(host)
	return ok
}

// IsFakeIP reports whether ip lies inside the configured CIDR.
func (e *fakeIPEngine) IsFakeIP(ip net.IP) bool {
	v4 := ip.To4()
	if v4 == nil {
		return false
	}
	i := binary.BigEndian.Uint32(v4)
	return i >= e.network && i <= e.broadcast
}

// Exists reports whether ip currently has a reverse mapping installed.
func (e *fakeIPEngine) Exists(ip net.IP) bool {
	v4 := ip.To4()
	if v4 == nil {
		return false
	}
	i := binary.BigEndian.Uint32(v4)

	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.ipToHost[i]
	return ok
}

// Lookup returns host's mapped IP, allocating one if this is the first time
// host has been seen (P3, P4).
func (e *fakeIPEngine) Lookup(host string) net.IP {
	e.mu.Lock()
	defer e.mu.Unlock()

	if rec, ok := e.hostToIP[host]; ok {
		e.touch(rec)
		return ipFromUint32(rec.ip)
	}

	if ip, ok := e.store.Get(host); ok {
		i := binary.BigEndian.Uint32(ip.To4())
		if existing, taken := e.ipToHost[i]; taken {
			e.evict(existing)
		}
		rec := &fakeIPRecord{host: host, ip: i}
		e.install(rec)
		return ip
	}

	ip := e.allocate(host)
	e.store.Put(host, ip)
	return ip
}

// ReverseLookup returns the hostname mapped to ip, or false if ip is
// outside the CIDR or currently unmapped (I5).
func (e *fakeIPEngine) ReverseLookup(ip net.IP) (string, bool) {
	v4 := ip.To4()
	if v4 == nil || !e.IsFakeIP(ip) {
		return "", false
	}
	i := binary.BigEndian.Uint32(v4)

	e.mu.Lock()
	if rec, ok := e.ipToHost[i]; ok {
		e.touch(rec)
		e.mu.Unlock()
		return rec.host, true
	}
	e.mu.Unlock()

	if host, ok := e.store.GetReverse(ip); ok {
		e.mu.Lock()
		rec := &fakeIPRecord{host: host, ip: i}
		e.install(rec)
		e.mu.Unlock()
		return host, true
	}
	return "", false
}

// allocate must be called with e.mu held. It scans forward from the cursor,
// wrapping at lastUse back to firstUse, for a free address; if the pool is
// full it evicts the least-recently-used entry and reuses its address.
func (e *fakeIPEngine) allocate(host string) net.IP {
	start := e.cursor
	for {
		candidate := e.cursor
		e.advanceCursor()

		if _, taken := e.ipToHost[candidate]; !taken {
			rec := &fakeIPRecord{host: host, ip: candidate}
			e.install(rec)
			return ipFromUint32(candidate)
		}

		if e.cursor == start {
			victim := e.lru
			evictedIP := victim.ip
			e.evict(victim)
			rec := &fakeIPRecord{host: host, ip: evictedIP}
			e.install(rec)
			return ipFromUint32(evictedIP)
		}
	}
}

func (e *fakeIPEngine) advanceCursor() {
	if e.cursor >= e.lastUse {
		e.cursor = e.firstUse
	} else {
		e.cursor++
	}
}

// install must be called with e.mu held; it adds rec to both maps and
// marks it most-recently-used (I3: both directions installed atomically).
func (e *fakeIPEngine) install(rec *fakeIPRecord) {
	e.hostToIP[rec.host] = rec
	e.ipToHost[rec.ip] = rec
	e.pushMRU(rec)
}

// evict must be called with e.mu held; it removes rec from both maps and
// the recency list atomically (I3).
func (e *fakeIPEngine) evict(rec *fakeIPRecord) {
	delete(e.hostToIP, rec.host)
	delete(e.ipToHost, rec.ip)
	e.unlink(rec)
}

func (e *fakeIPEngine) touch(rec *fakeIPRecord) {
	e.unlink(rec)
	e.pushMRU(rec)
}

func (e *fakeIPEngine) pushMRU(rec *fakeIPRecord) {
	rec.prev = e.mru
	rec.next = nil
	if e.mru != nil {
		e.mru.next = rec
	}
	e.mru = rec
	if e.lru == nil {
		e.lru = rec
	}
}

func (e *fakeIPEngine) unlink(rec *fakeIPRecord) {
	if rec.prev != nil {
		rec.prev.next = rec.next
	} else if e.lru == rec {
		e.lru = rec.next
	}
	if rec.next != nil {
		rec.next.prev = rec.prev
	} else if e.mru == rec {
		e.mru = rec.prev
	}
	rec.prev, rec.next = nil, nil
}

func ipFromUint32(i uint32) net.IP {
	ip := make(net.IP, 4)
	binary.BigEndian.PutUint32(ip, i)
	return ip
}
