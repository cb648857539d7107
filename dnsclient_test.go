package rdns

import (
	"context"
	"net"
	"testing"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/require"
)

// fakeClient is a Client stub used across the resolver/batch tests: it
// answers with a configured response after an optional delay, or fails.
type fakeClient struct {
	id    string
	ip    string
	delay chan struct{}
	err   error
}

var _ Client = &fakeClient{}

func (f *fakeClient) ID() string { return f.id }

func (f *fakeClient) Exchange(ctx context.Context, m *dns.Msg) (*dns.Msg, error) {
	if f.delay != nil {
		select {
		case <-f.delay:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	r := m.Copy()
	r.Response = true
	r.Answer = []dns.RR{&dns.A{
		Hdr: dns.RR_Header{Name: m.Question[0].Name, Rrtype: dns.TypeA, Class: dns.ClassINET, Ttl: 60},
		A:   net.ParseIP(f.ip),
	}}
	return r, nil
}

func TestDNSClientConstructsEndpointFromLiteralIP(t *testing.T) {
	c, err := NewClient("test", UpstreamSpec{Net: UDP, Address: "8.8.8.8:53"}, nil)
	require.NoError(t, err)
	require.Equal(t, "udp(8.8.8.8:53)", c.(*dnsClient).String())
}

func TestDNSClientRejectsHostnameWithoutBootstrap(t *testing.T) {
	_, err := NewClient("test", UpstreamSpec{Net: UDP, Address: "resolver.example.com:53"}, nil)
	require.Error(t, err)
	var bootstrapErr BootstrapError
	require.ErrorAs(t, err, &bootstrapErr)
}
