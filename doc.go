/*
Package rdns implements the DNS resolution subsystem of a rule-based traffic
routing proxy. It fronts every outbound connection with a policy-aware
recursive client: multi-transport upstream clients (UDP, TCP, DNS-over-TLS,
DNS-over-HTTPS, DHCP-discovered), two-pool racing with filtered fallback, a
per-domain nameserver policy trie, a TTL-bounded answer cache, and a fake-IP
allocator that mints deterministic addresses for use by the outbound dialer
and rule-matching router.

Clients

A Client abstracts one configured upstream nameserver over its transport.
Clients are grouped into pools (main, fallback, per-policy) and raced by the
batch exchanger, which returns the first successful answer within a fixed
deadline.

Resolver

Resolver assembles a string-label trie, an answer cache, fallback filters
and a fake-IP engine into the ClashResolver surface: Resolve, ResolveV4/V6,
Exchange, and the fake-IP introspection calls. The resolver returned by
NewSystemResolver implements the same interface by delegating to the OS resolver when DNS is administratively
disabled.

Fake IP

The fake-IP engine mints IPv4 addresses from a reserved CIDR and maps them
bidirectionally to hostnames, backed by an injectable store (in-memory LRU
or a durable on-disk key-value store) so that mappings survive restarts.

This example builds a resolver from a parsed configuration and resolves a
hostname using the fake-IP enhanced path:

	r, err := rdns.NewResolver(cfg, cacheFile, mmdb)
	ip, err := r.Resolve(context.Background(), "example.com", true)
*/
package rdns
