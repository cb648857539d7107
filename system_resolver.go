package rdns

import (
	"context"
	"net"
	"sync/atomic"

	"github.com/miekg/dns"
)

// systemResolver is the degenerate resolver (§4.I) used when DNS handling
// is disabled. Resolve, ResolveV4 and ResolveV6 delegate to the host
// platform; every other operation is a typed failure or a neutral no-op, since there is no
// cache, policy, or fake-IP state to consult.
type systemResolver struct {
	ipv6 atomic.Bool
}

var _ ClashResolver = &systemResolver{}

// NewSystemResolver returns a resolver that delegates name resolution to
// the OS and refuses every operation specific to the Clash-style pipeline.
func NewSystemResolver(ipv6 bool) *systemResolver {
	r := &systemResolver{}
	r.ipv6.Store(ipv6)
	return r
}

func (r *systemResolver) Kind() ResolverKind { return KindSystem }

func (r *systemResolver) Ipv6() bool     { return r.ipv6.Load() }
func (r *systemResolver) SetIpv6(v bool) { r.ipv6.Store(v) }

func (r *systemResolver) FakeIPEnabled() bool               { return false }
func (r *systemResolver) IsFakeIP(ip net.IP) bool            { return false }
func (r *systemResolver) FakeIPExists(ip net.IP) bool        { return false }
func (r *systemResolver) ReverseLookup(ip net.IP) (string, bool) { return "", false }

func (r *systemResolver) Resolve(ctx context.Context, host string, enhanced bool) (net.IP, error) {
	if ip := net.ParseIP(host); ip != nil {
		return ip, nil
	}
	addrs, err := net.DefaultResolver.LookupIPAddr(ctx, host)
	if err != nil {
		return nil, NoRecordError{Host: host}
	}
	if len(addrs) == 0 {
		return nil, NoRecordError{Host: host}
	}
	return addrs[0].IP, nil
}

func (r *systemResolver) ResolveV4(ctx context.Context, host string, enhanced bool) (net.IP, error) {
	if ip := net.ParseIP(host); ip != nil {
		if v4 := ip.To4(); v4 != nil {
			return v4, nil
		}
		return nil, NoRecordError{Host: host}
	}
	ips, err := net.DefaultResolver.LookupIP(ctx, "ip4", host)
	if err != nil || len(ips) == 0 {
		return nil, NoRecordError{Host: host}
	}
	return ips[0], nil
}

func (r *systemResolver) ResolveV6(ctx context.Context, host string, enhanced bool) (net.IP, error) {
	if !r.Ipv6() {
		return nil, Ipv6DisabledError{}
	}
	if ip := net.ParseIP(host); ip != nil {
		if v4 := ip.To4(); v4 == nil {
			return ip, nil
		}
		return nil, NoRecordError{Host: host}
	}
	ips, err := net.DefaultResolver.LookupIP(ctx, "ip6", host)
	if err != nil || len(ips) == 0 {
		return nil, NoRecordError{Host: host}
	}
	return ips[0], nil
}

func (r *systemResolver) Exchange(ctx context.Context, m *dns.Msg) (*dns.Msg, error) {
	return nil, NotSupportedError{Op: "exchange"}
}
