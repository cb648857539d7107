package rdns

import (
	"context"
	"net"
	"testing"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/require"
)

// countingClient wraps a fakeClient to record how many times it was
// queried, for cache-hit idempotence assertions (P1, P2).
type countingClient struct {
	fakeClient
	calls int
}

func (c *countingClient) Exchange(ctx context.Context, m *dns.Msg) (*dns.Msg, error) {
	c.calls++
	return c.fakeClient.Exchange(ctx, m)
}

func newTestResolver(t *testing.T, main, fallback []Client) *Resolver {
	t.Helper()
	return &Resolver{
		main:     main,
		fallback: fallback,
		cache:    newAnswerCache(answerCacheCapacity),
	}
}

func TestResolveLiteralPassthrough(t *testing.T) {
	r := newTestResolver(t, nil, nil)
	ip, err := r.Resolve(context.Background(), "1.2.3.4", false)
	require.NoError(t, err)
	require.Equal(t, "1.2.3.4", ip.String())
}

func TestResolveHostsPrecedenceOverFakeIP(t *testing.T) {
	r := newTestResolver(t, nil, nil)
	r.hosts = NewStringTrie[net.IP]()
	r.hosts.Insert("h.example", net.ParseIP("10.0.0.1"))

	fakeIP, err := NewFakeIPEngine("198.18.0.0/16", nil, NewInMemFakeIPStore(10))
	require.NoError(t, err)
	r.fakeIP = fakeIP

	ip, err := r.Resolve(context.Background(), "h.example", true)
	require.NoError(t, err)
	require.Equal(t, "10.0.0.1", ip.String())
}

func TestResolveV6DisabledReturnsTypedError(t *testing.T) {
	r := newTestResolver(t, nil, nil)
	_, err := r.ResolveV6(context.Background(), "example.com", false)
	require.Equal(t, Ipv6DisabledError{}, err)
}

func TestExchangeCacheHitIsIdempotent(t *testing.T) {
	client := &countingClient{fakeClient: fakeClient{id: "main", ip: "93.184.216.34"}}
	r := newTestResolver(t, []Client{client}, nil)

	q := newQuestionMessage("example.com", dns.TypeA)
	_, err := r.Exchange(context.Background(), q)
	require.NoError(t, err)
	_, err = r.Exchange(context.Background(), q)
	require.NoError(t, err)

	require.Equal(t, 1, client.calls)
}

func TestExchangeDoesNotCacheAcmeChallengeTXT(t *testing.T) {
	client := &countingClient{fakeClient: fakeClient{id: "main", ip: "93.184.216.34"}}
	r := newTestResolver(t, []Client{client}, nil)

	m := newQuestionMessage("_acme-challenge.example.com", dns.TypeTXT)
	_, err := r.Exchange(context.Background(), m)
	require.NoError(t, err)
	_, err = r.Exchange(context.Background(), m)
	require.NoError(t, err)

	require.Equal(t, 2, client.calls)
}

func TestIPExchangePolicyPrecedence(t *testing.T) {
	policyClient := &countingClient{fakeClient: fakeClient{id: "policy", ip: "1.1.1.1"}}
	mainClient := &countingClient{fakeClient: fakeClient{id: "main", ip: "9.9.9.9"}}
	fallbackClient := &countingClient{fakeClient: fakeClient{id: "fallback", ip: "8.8.8.8"}}

	r := newTestResolver(t, []Client{mainClient}, []Client{fallbackClient})
	r.policy = NewStringTrie[[]Client]()
	r.policy.Insert("dns.google", []Client{policyClient})

	m := newQuestionMessage("dns.google", dns.TypeA)
	resp, err := r.Exchange(context.Background(), m)
	require.NoError(t, err)
	require.Equal(t, "1.1.1.1", resp.Answer[0].(*dns.A).A.String())
	require.Equal(t, 1, policyClient.calls)
	require.Equal(t, 0, mainClient.calls)
	require.Equal(t, 0, fallbackClient.calls)
}

func TestIPExchangeFallbackDomainFilterShortCircuits(t *testing.T) {
	mainClient := &countingClient{fakeClient: fakeClient{id: "main", ip: "9.9.9.9"}}
	fallbackClient := &countingClient{fakeClient: fakeClient{id: "fallback", ip: "8.8.8.8"}}

	r := newTestResolver(t, []Client{mainClient}, []Client{fallbackClient})
	r.fallbackFilters = &fallbackFilterSet{domains: []DomainFilter{NewDomainFilter([]string{"+.cn"})}}

	m := newQuestionMessage("baidu.cn", dns.TypeA)
	resp, err := r.Exchange(context.Background(), m)
	require.NoError(t, err)
	require.Equal(t, "8.8.8.8", resp.Answer[0].(*dns.A).A.String())
	require.Equal(t, 0, mainClient.calls)
	require.Equal(t, 1, fallbackClient.calls)
}

func TestIPExchangeIPFilterPrefersFallback(t *testing.T) {
	mainClient := &fakeClient{id: "main", ip: "1.2.3.4"}
	fallbackClient := &fakeClient{id: "fallback", ip: "93.184.216.34"}

	r := newTestResolver(t, []Client{mainClient}, []Client{fallbackClient})
	cidr, err := NewCIDRFilter("1.2.3.0/24")
	require.NoError(t, err)
	r.fallbackFilters = &fallbackFilterSet{ips: []IPFilter{cidr}}

	m := newQuestionMessage("example.com", dns.TypeA)
	resp, err := r.Exchange(context.Background(), m)
	require.NoError(t, err)
	require.Equal(t, "93.184.216.34", resp.Answer[0].(*dns.A).A.String())
}

func TestIPExchangeNoFilterMatchReturnsMain(t *testing.T) {
	mainClient := &fakeClient{id: "main", ip: "93.184.216.34"}
	fallbackClient := &fakeClient{id: "fallback", ip: "1.2.3.4"}

	r := newTestResolver(t, []Client{mainClient}, []Client{fallbackClient})
	cidr, err := NewCIDRFilter("1.2.3.0/24")
	require.NoError(t, err)
	r.fallbackFilters = &fallbackFilterSet{ips: []IPFilter{cidr}}

	m := newQuestionMessage("example.com", dns.TypeA)
	resp, err := r.Exchange(context.Background(), m)
	require.NoError(t, err)
	require.Equal(t, "93.184.216.34", resp.Answer[0].(*dns.A).A.String())
}

func TestExchangeInvalidQueryMultipleQuestions(t *testing.T) {
	r := newTestResolver(t, nil, nil)
	m := newQuestionMessage("a.example", dns.TypeA)
	m.Question = append(m.Question, dns.Question{Name: "b.example.", Qtype: dns.TypeA, Qclass: dns.ClassINET})

	_, err := r.Exchange(context.Background(), m)
	require.Error(t, err)
	var invalid InvalidQueryError
	require.ErrorAs(t, err, &invalid)
}

func TestFakeIPEnhancedResolveEndToEnd(t *testing.T) {
	fakeIP, err := NewFakeIPEngine("198.18.0.0/16", []string{"+.local"}, NewInMemFakeIPStore(10))
	require.NoError(t, err)
	r := newTestResolver(t, []Client{&fakeClient{id: "main", ip: "93.184.216.34"}}, nil)
	r.fakeIP = fakeIP

	ip, err := r.Resolve(context.Background(), "a.test", true)
	require.NoError(t, err)
	require.True(t, fakeIP.IsFakeIP(ip))

	host, ok := r.ReverseLookup(ip)
	require.True(t, ok)
	require.Equal(t, "a.test", host)

	realIP, err := r.Resolve(context.Background(), "x.local", true)
	require.NoError(t, err)
	require.Equal(t, "93.184.216.34", realIP.String())
}
