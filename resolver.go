package rdns

import (
	"context"
	"fmt"
	"math/rand"
	"net"
	"sync/atomic"

	"github.com/miekg/dns"
	"github.com/oschwald/maxminddb-golang"
)

// ResolverKind distinguishes the Clash-style orchestrator from the
// degenerate system resolver returned when DNS handling is disabled.
type ResolverKind string

const (
	KindClash  ResolverKind = "Clash"
	KindSystem ResolverKind = "System"
)

// ClashResolver is the consumer-facing API every external collaborator
// (the outbound dialer, the rule router) programs against (§6).
type ClashResolver interface {
	Resolve(ctx context.Context, host string, enhanced bool) (net.IP, error)
	ResolveV4(ctx context.Context, host string, enhanced bool) (net.IP, error)
	ResolveV6(ctx context.Context, host string, enhanced bool) (net.IP, error)
	Exchange(ctx context.Context, m *dns.Msg) (*dns.Msg, error)

	IsFakeIP(ip net.IP) bool
	FakeIPExists(ip net.IP) bool
	ReverseLookup(ip net.IP) (string, bool)

	Ipv6() bool
	SetIpv6(bool)

	FakeIPEnabled() bool
	Kind() ResolverKind
}

// Resolver is the orchestrator (§4.H). The same shape serves three roles:
// the bootstrap resolver (cache, policy, fallback, fakeIP all nil), the
// full resolver built from the parsed configuration, and (structurally,
// though never constructed this way) a standalone resolver over only a
// main pool. Immutable after construction except ipv6Enabled, the cache,
// and the fake-IP engine's internal maps (§3).
type Resolver struct {
	ipv6Enabled atomic.Bool

	hosts  *StringTrie[net.IP]
	policy *StringTrie[[]Client]

	main     []Client
	fallback []Client

	fallbackFilters *fallbackFilterSet
	fakeIP          *fakeIPEngine

	cache *answerCache
}

var _ ClashResolver = &Resolver{}

// newBootstrapResolver builds the minimal resolver (§4.J) passed into
// client construction: only a main pool resolving the "default
// nameserver" literal-IP servers, no cache, no policy, no fallback, no
// fake-IP. Passing bootstrap=nil to makeClients enforces that every
// default_nameserver entry is already a literal IP.
func newBootstrapResolver(specs []UpstreamSpec) (*Resolver, error) {
	clients, err := makeClients(specs, nil)
	if err != nil {
		return nil, fmt.Errorf("building bootstrap resolver: %w", err)
	}
	if len(clients) == 0 {
		return nil, fmt.Errorf("default_nameserver must configure at least one literal-IP server")
	}
	return &Resolver{main: clients}, nil
}

// NewResolver builds the resolver described by cfg. If cfg.Enable is
// false, it returns a system resolver (§4.I) instead, since no upstream
// pools, cache, or fake-IP engine are needed in that mode.
func NewResolver(cfg *Config, cacheFile CacheFile, mmdb *maxminddb.Reader) (ClashResolver, error) {
	if !cfg.Enable {
		return NewSystemResolver(cfg.Ipv6), nil
	}

	bootstrap, err := newBootstrapResolver(cfg.DefaultNameserver)
	if err != nil {
		return nil, err
	}

	main, err := makeClients(cfg.Nameserver, bootstrap)
	if err != nil {
		return nil, fmt.Errorf("building main nameserver pool: %w", err)
	}
	if len(main) == 0 {
		return nil, fmt.Errorf("nameserver must configure at least one upstream")
	}

	var fallback []Client
	if len(cfg.Fallback) > 0 {
		fallback, err = makeClients(cfg.Fallback, bootstrap)
		if err != nil {
			return nil, fmt.Errorf("building fallback nameserver pool: %w", err)
		}
	}

	var policy *StringTrie[[]Client]
	if len(cfg.NameserverPolicy) > 0 {
		policy = NewStringTrie[[]Client]()
		for pattern, spec := range cfg.NameserverPolicy {
			clients, err := makeClients([]UpstreamSpec{spec}, bootstrap)
			if err != nil {
				return nil, fmt.Errorf("building nameserver_policy client for %q: %w", pattern, err)
			}
			policy.Insert(pattern, clients)
		}
	}

	var hosts *StringTrie[net.IP]
	if len(cfg.Hosts) > 0 {
		hosts = NewStringTrie[net.IP]()
		for pattern, ip := range cfg.Hosts {
			hosts.Insert(pattern, ip)
		}
	}

	filters, err := buildFallbackFilterSet(cfg.FallbackFilter, mmdb)
	if err != nil {
		return nil, err
	}

	var fakeIP *fakeIPEngine
	switch cfg.EnhanceMode {
	case EnhanceFakeIP:
		store := FakeIPStore(nil)
		if cfg.StoreFakeIP && cacheFile != nil {
			store = NewFileFakeIPStore(cacheFile)
		}
		fakeIP, err = NewFakeIPEngine(cfg.FakeIPRange, cfg.FakeIPFilter, store)
		if err != nil {
			return nil, err
		}
	case EnhanceRedirHost:
		Log.Warn("enhance_mode 'redir-host' is accepted but not implemented, behaving as 'off'")
	}

	r := &Resolver{
		hosts:           hosts,
		policy:          policy,
		main:            main,
		fallback:        fallback,
		fallbackFilters: filters,
		fakeIP:          fakeIP,
		cache:           newAnswerCache(answerCacheCapacity),
	}
	r.ipv6Enabled.Store(cfg.Ipv6)
	return r, nil
}

func buildFallbackFilterSet(cfg FallbackFilterConfig, mmdb *maxminddb.Reader) (*fallbackFilterSet, error) {
	set := &fallbackFilterSet{}
	if len(cfg.Domain) > 0 {
		set.domains = append(set.domains, NewDomainFilter(cfg.Domain))
	}
	for _, cidr := range cfg.IPCIDR {
		f, err := NewCIDRFilter(cidr)
		if err != nil {
			return nil, err
		}
		set.ips = append(set.ips, f)
	}
	if cfg.GeoIP {
		if mmdb == nil {
			return nil, fmt.Errorf("fallback_filter.geo_ip is enabled but no GeoIP database was provided")
		}
		set.ips = append(set.ips, NewGeoIPFilter(mmdb, cfg.GeoIPCode))
	}
	return set, nil
}

func (r *Resolver) Kind() ResolverKind { return KindClash }

func (r *Resolver) Ipv6() bool      { return r.ipv6Enabled.Load() }
func (r *Resolver) SetIpv6(v bool)  { r.ipv6Enabled.Store(v) }
func (r *Resolver) FakeIPEnabled() bool { return r.fakeIP != nil }

func (r *Resolver) IsFakeIP(ip net.IP) bool {
	if r.fakeIP == nil {
		return false
	}
	return r.fakeIP.IsFakeIP(ip)
}

func (r *Resolver) FakeIPExists(ip net.IP) bool {
	if r.fakeIP == nil {
		return false
	}
	return r.fakeIP.Exists(ip)
}

func (r *Resolver) ReverseLookup(ip net.IP) (string, bool) {
	if r.fakeIP == nil {
		return "", false
	}
	return r.fakeIP.ReverseLookup(ip)
}

// Resolve implements §4.H's resolve: literal passthrough (P9), hosts
// precedence (P10), fake-IP, then a real lookup racing v4/v6 when IPv6 is
// enabled, v4-only otherwise.
func (r *Resolver) Resolve(ctx context.Context, host string, enhanced bool) (net.IP, error) {
	if ip := net.ParseIP(host); ip != nil {
		return ip, nil
	}
	if enhanced {
		if ip, ok := r.enhancedLookup(host); ok {
			return ip, nil
		}
	}

	if !r.Ipv6() {
		return r.lookupIP(ctx, host, dns.TypeA)
	}
	return r.raceFamilies(ctx, host)
}

func (r *Resolver) ResolveV4(ctx context.Context, host string, enhanced bool) (net.IP, error) {
	if ip := net.ParseIP(host); ip != nil {
		if v4 := ip.To4(); v4 != nil {
			return v4, nil
		}
		return nil, NoRecordError{Host: host}
	}
	if enhanced {
		if ip, ok := r.enhancedLookup(host); ok {
			return ip, nil
		}
	}
	return r.lookupIP(ctx, host, dns.TypeA)
}

func (r *Resolver) ResolveV6(ctx context.Context, host string, enhanced bool) (net.IP, error) {
	if !r.Ipv6() {
		return nil, Ipv6DisabledError{}
	}
	if ip := net.ParseIP(host); ip != nil {
		if v4 := ip.To4(); v4 == nil {
			return ip, nil
		}
		return nil, NoRecordError{Host: host}
	}
	// Fake-IP is IPv4-only; only the hosts trie applies here.
	if enhanced && r.hosts != nil {
		if ip, ok := r.hosts.Search(host); ok && ip.To4() == nil {
			return ip, nil
		}
	}
	return r.lookupIP(ctx, host, dns.TypeAAAA)
}

// enhancedLookup implements steps 2-3 of resolve: hosts trie first, then
// fake-IP unless the host is configured to skip it.
func (r *Resolver) enhancedLookup(host string) (net.IP, bool) {
	if r.hosts != nil {
		if ip, ok := r.hosts.Search(host); ok {
			return ip, true
		}
	}
	if r.fakeIP != nil && !r.fakeIP.ShouldSkip(host) {
		return r.fakeIP.Lookup(host), true
	}
	return nil, false
}

// raceFamilies issues A and AAAA lookups concurrently and returns the
// first non-empty result; if the winner is empty, it waits for the loser
// (§4.H, scenario 6).
func (r *Resolver) raceFamilies(ctx context.Context, host string) (net.IP, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type outcome struct {
		ip  net.IP
		err error
	}
	v4ch := make(chan outcome, 1)
	v6ch := make(chan outcome, 1)

	go func() {
		ip, err := r.lookupIP(ctx, host, dns.TypeA)
		v4ch <- outcome{ip, err}
	}()
	go func() {
		ip, err := r.lookupIP(ctx, host, dns.TypeAAAA)
		v6ch <- outcome{ip, err}
	}()

	first, second := v6ch, v4ch
	select {
	case o := <-v4ch:
		if o.err == nil {
			return o.ip, nil
		}
		first, second = v6ch, nil
	case o := <-v6ch:
		if o.err == nil {
			return o.ip, nil
		}
		first, second = v4ch, nil
	}
	if second == nil {
		o := <-first
		return o.ip, o.err
	}
	o := <-first
	return o.ip, o.err
}

// lookupIP issues an exchange for host/qtype and picks uniformly at random
// from the resulting addresses (§9: "random selection vs first").
func (r *Resolver) lookupIP(ctx context.Context, host string, qtype uint16) (net.IP, error) {
	m := newQuestionMessage(host, qtype)
	resp, err := r.Exchange(ctx, m)
	if err != nil {
		return nil, err
	}
	ips := ipsOfMessage(resp)
	if len(ips) == 0 {
		return nil, NoRecordError{Host: host}
	}
	return ips[rand.Intn(len(ips))], nil
}

// Exchange implements §4.H's exchange: validate, check the cache, else
// fall through to exchange_no_cache and populate the cache on success.
func (r *Resolver) Exchange(ctx context.Context, m *dns.Msg) (*dns.Msg, error) {
	q, ok := singleQuestion(m)
	if !ok {
		return nil, InvalidQueryError{Reason: "message must carry exactly one question"}
	}

	if r.cache != nil {
		if cached := r.cache.get(m); cached != nil {
			return cached, nil
		}
	}

	resp, err := r.exchangeNoCache(ctx, m)
	if err != nil {
		return nil, err
	}

	if r.cache != nil && !isDoNotCacheTXT(q) {
		r.cache.put(resp)
	}
	return resp, nil
}

func (r *Resolver) exchangeNoCache(ctx context.Context, m *dns.Msg) (*dns.Msg, error) {
	q := m.Question[0]
	if isIPRequest(q) {
		return r.ipExchange(ctx, m)
	}
	if r.policy != nil {
		if clients, ok := r.policy.Search(domainName(m)); ok {
			return batchExchange(ctx, clients, m)
		}
	}
	return batchExchange(ctx, r.main, m)
}

// ipExchange implements §4.H's ip_exchange: policy short-circuits
// fallback entirely (P5); a fallback-domain match skips main (P6); with no
// fallback pool main is the only path; otherwise main and fallback race
// and an IP-filter match on main's first address prefers fallback (P7).
func (r *Resolver) ipExchange(ctx context.Context, m *dns.Msg) (*dns.Msg, error) {
	if r.policy != nil {
		if clients, ok := r.policy.Search(domainName(m)); ok {
			return batchExchange(ctx, clients, m)
		}
	}
	if r.fallbackFilters != nil && r.fallbackFilters.matchesDomain(domainName(m)) {
		return batchExchange(ctx, r.fallback, m)
	}
	if len(r.fallback) == 0 {
		return batchExchange(ctx, r.main, m)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type outcome struct {
		msg *dns.Msg
		err error
	}
	mainCh := make(chan outcome, 1)
	fallbackCh := make(chan outcome, 1)

	go func() {
		msg, err := batchExchange(ctx, r.main, m)
		mainCh <- outcome{msg, err}
	}()
	go func() {
		msg, err := batchExchange(ctx, r.fallback, m)
		fallbackCh <- outcome{msg, err}
	}()

	mainResult := <-mainCh
	if mainResult.err != nil {
		fb := <-fallbackCh
		return fb.msg, fb.err
	}

	if r.shouldPreferFallback(mainResult.msg) {
		fb := <-fallbackCh
		if fb.err == nil {
			return fb.msg, nil
		}
		return mainResult.msg, nil
	}
	return mainResult.msg, nil
}

func (r *Resolver) shouldPreferFallback(mainAnswer *dns.Msg) bool {
	if r.fallbackFilters == nil {
		return false
	}
	ips := ipsOfMessage(mainAnswer)
	if len(ips) == 0 {
		return false
	}
	return r.fallbackFilters.matchesIP(ips[0])
}
