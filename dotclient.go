package rdns

import (
	"context"
	"crypto/tls"
	"fmt"

	"github.com/miekg/dns"
	"github.com/sirupsen/logrus"
)

// tlsConfig carries the SNI and verification knobs shared by the DoT and
// DoH transports. override, when set, is a fully-built *tls.Config carrying
// mutual-TLS material loaded via clientTLSMaterial; std returns it as-is
// instead of rebuilding from scratch.
type tlsConfig struct {
	serverName         string
	insecureSkipVerify bool
	override           *tls.Config
}

func (c *tlsConfig) std() *tls.Config {
	if c.override != nil {
		return c.override
	}
	return &tls.Config{ServerName: c.serverName, InsecureSkipVerify: c.insecureSkipVerify}
}

// dotClient is a DNS-over-TLS resolver (RFC 7858): TCP over TLS to the
// configured SNI, one message per connection.
type dotClient struct {
	id       string
	endpoint string
	tls      *tlsConfig
	client   *dns.Client
}

var _ Client = &dotClient{}

func newDoTClient(id, endpoint string, tlsOpt *tlsConfig) *dotClient {
	return &dotClient{
		id:       id,
		endpoint: endpoint,
		tls:      tlsOpt,
		client:   &dns.Client{Net: "tcp-tls", TLSConfig: tlsOpt.std(), Timeout: defaultQueryTimeout},
	}
}

func (d *dotClient) ID() string { return d.id }

func (d *dotClient) Exchange(ctx context.Context, m *dns.Msg) (*dns.Msg, error) {
	Log.WithFields(logrus.Fields{
		"client":   d.id,
		"qname":    qName(m),
		"resolver": d.endpoint,
		"protocol": "dot",
	}).Debug("querying upstream resolver")

	r, _, err := d.client.ExchangeContext(ctx, m, d.endpoint)
	if err != nil {
		return nil, UpstreamTransportError{ClientID: d.id, Err: err}
	}
	return r, nil
}

func (d *dotClient) String() string {
	return fmt.Sprintf("DoT(%s)", d.endpoint)
}
