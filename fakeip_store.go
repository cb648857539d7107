package rdns

import (
	"net"
	"sync"
)

// inMemFakeIPStore is a bounded-capacity LRU backing a fakeIPEngine,
// adapted from the resolver's general-purpose answer-cache linked list
// (cache.go) to key on hostname/IP pairs instead of question fingerprints.
// It is the default store when none is configured (§4.G: "in-memory:
// bounded LRU map, capacity 1000").
type inMemFakeIPStore struct {
	mu         sync.Mutex
	capacity   int
	byHost     map[string]*fakeIPStoreEntry
	byIP       map[string]*fakeIPStoreEntry
	head, tail *fakeIPStoreEntry
}

type fakeIPStoreEntry struct {
	host       string
	ip         net.IP
	prev, next *fakeIPStoreEntry
}

var _ FakeIPStore = &inMemFakeIPStore{}

// NewInMemFakeIPStore returns a bounded in-memory FakeIPStore.
func NewInMemFakeIPStore(capacity int) *inMemFakeIPStore {
	head := new(fakeIPStoreEntry)
	tail := new(fakeIPStoreEntry)
	head.next = tail
	tail.prev = head
	return &inMemFakeIPStore{
		capacity: capacity,
		byHost:   make(map[string]*fakeIPStoreEntry),
		byIP:     make(map[string]*fakeIPStoreEntry),
		head:     head,
		tail:     tail,
	}
}

func (s *inMemFakeIPStore) Put(host string, ip net.IP) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.byHost[host]; ok {
		delete(s.byIP, existing.ip.String())
		s.unlink(existing)
	}

	entry := &fakeIPStoreEntry{host: host, ip: ip}
	s.byHost[host] = entry
	s.byIP[ip.String()] = entry
	s.pushFront(entry)
	s.evictOverflow()
}

func (s *inMemFakeIPStore) Get(host string) (net.IP, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.byHost[host]
	if !ok {
		return nil, false
	}
	s.moveToFront(entry)
	return entry.ip, true
}

func (s *inMemFakeIPStore) GetReverse(ip net.IP) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.byIP[ip.String()]
	if !ok {
		return "", false
	}
	s.moveToFront(entry)
	return entry.host, true
}

func (s *inMemFakeIPStore) pushFront(e *fakeIPStoreEntry) {
	e.next = s.head.next
	e.prev = s.head
	s.head.next.prev = e
	s.head.next = e
}

func (s *inMemFakeIPStore) unlink(e *fakeIPStoreEntry) {
	e.prev.next = e.next
	e.next.prev = e.prev
}

func (s *inMemFakeIPStore) moveToFront(e *fakeIPStoreEntry) {
	s.unlink(e)
	s.pushFront(e)
}

func (s *inMemFakeIPStore) evictOverflow() {
	if s.capacity <= 0 {
		return
	}
	for len(s.byHost) > s.capacity {
		victim := s.tail.prev
		if victim == s.head {
			return
		}
		s.unlink(victim)
		delete(s.byHost, victim.host)
		delete(s.byIP, victim.ip.String())
	}
}

// fileFakeIPStore durably persists mappings via an injected CacheFile.
// Reads fall through to the file on every call: the engine itself keeps
// the hot in-memory bookkeeping, so this store only needs to survive
// restarts, not serve as a cache (§4.G, §9).
type fileFakeIPStore struct {
	file CacheFile
}

var _ FakeIPStore = &fileFakeIPStore{}

func NewFileFakeIPStore(file CacheFile) *fileFakeIPStore {
	return &fileFakeIPStore{file: file}
}

func (s *fileFakeIPStore) Put(host string, ip net.IP) {
	ipStr := ip.String()
	if err := s.file.PutFakeIPHost(host, ipStr); err != nil {
		Log.WithError(err).WithField("host", host).Warn("failed to persist fake-ip mapping")
	}
	if err := s.file.PutFakeIPReverse(ipStr, host); err != nil {
		Log.WithError(err).WithField("ip", ipStr).Warn("failed to persist fake-ip reverse mapping")
	}
}

func (s *fileFakeIPStore) Get(host string) (net.IP, bool) {
	ipStr, ok := s.file.GetFakeIPByHost(host)
	if !ok {
		return nil, false
	}
	ip := net.ParseIP(ipStr)
	if ip == nil {
		return nil, false
	}
	return ip, true
}

func (s *fileFakeIPStore) GetReverse(ip net.IP) (string, bool) {
	return s.file.GetFakeIPByAddr(ip.String())
}
