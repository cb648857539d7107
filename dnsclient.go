package rdns

import (
	"context"
	"fmt"
	"time"

	"github.com/miekg/dns"
	"github.com/sirupsen/logrus"
)

// defaultQueryTimeout bounds a single upstream exchange; batchExchange's
// own deadline (batchTimeout) is what actually governs a query end to end.
const defaultQueryTimeout = 5 * time.Second

// dnsClient is a plain DNS resolver for the UDP and TCP transports. UDP
// sends a single datagram with a bounded read and surfaces truncation (TC=1)
// without retrying over TCP itself -- that decision belongs to the caller.
// TCP dials fresh and sends exactly one message per connection.
type dnsClient struct {
	id       string
	endpoint string
	net      string
	client   *dns.Client
}

var _ Client = &dnsClient{}

func newDNSClient(id, endpoint, net string) *dnsClient {
	return &dnsClient{
		id:       id,
		endpoint: endpoint,
		net:      net,
		client:   &dns.Client{Net: net, Timeout: defaultQueryTimeout},
	}
}

func (d *dnsClient) ID() string { return d.id }

func (d *dnsClient) Exchange(ctx context.Context, m *dns.Msg) (*dns.Msg, error) {
	Log.WithFields(logrus.Fields{
		"client":   d.id,
		"qname":    qName(m),
		"resolver": d.endpoint,
		"protocol": d.net,
	}).Debug("querying upstream resolver")

	r, _, err := d.client.ExchangeContext(ctx, m, d.endpoint)
	if err != nil {
		return nil, UpstreamTransportError{ClientID: d.id, Err: err}
	}
	return r, nil
}

func (d *dnsClient) String() string {
	return fmt.Sprintf("%s(%s)", d.net, d.endpoint)
}
