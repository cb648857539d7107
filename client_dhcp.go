package rdns

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/insomniacslk/dhcp/dhcpv4/client4"
	"github.com/miekg/dns"
	"github.com/sirupsen/logrus"
)

// dhcpLeaseTimeout bounds each read and each write of a DORA exchange
// before the discovered nameserver is considered unavailable.
const dhcpLeaseTimeout = 10 * time.Second

// dhcpRefreshInterval re-runs discovery periodically since a lease's
// nameserver option can change between renewals.
const dhcpRefreshInterval = 30 * time.Minute

// dhcpClient discovers its upstream nameserver by running a DHCPv4
// DISCOVER/OFFER/REQUEST/ACK exchange on a local interface and reading the
// Domain Name Server option (6) out of the ACK, then delegates the actual
// query to a plain UDP client pointed at the first server listed in that
// option.
type dhcpClient struct {
	id           string
	iface        string
	mu           sync.Mutex
	delegate     *dnsClient
	discoveredAt time.Time
}

var _ Client = &dhcpClient{}

func newDHCPClient(id, iface string) (*dhcpClient, error) {
	if iface == "" {
		return nil, fmt.Errorf("DHCP upstream requires an interface name")
	}
	c := &dhcpClient{id: id, iface: iface}
	if err := c.refresh(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *dhcpClient) ID() string { return c.id }

func (c *dhcpClient) Exchange(ctx context.Context, m *dns.Msg) (*dns.Msg, error) {
	c.mu.Lock()
	if time.Since(c.discoveredAt) > dhcpRefreshInterval {
		if err := c.refreshLocked(); err != nil {
			Log.WithFields(logrus.Fields{"client": c.id, "interface": c.iface}).
				WithError(err).Warn("DHCP nameserver refresh failed, using stale lease")
		}
	}
	delegate := c.delegate
	c.mu.Unlock()

	if delegate == nil {
		return nil, UpstreamTransportError{ClientID: c.id, Err: fmt.Errorf("no nameserver discovered via DHCP on %s", c.iface)}
	}
	return delegate.Exchange(ctx, m)
}

func (c *dhcpClient) refresh() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.refreshLocked()
}

// refreshLocked must be called with c.mu held.
func (c *dhcpClient) refreshLocked() error {
	cl := client4.NewClient()
	cl.ReadTimeout = dhcpLeaseTimeout
	cl.WriteTimeout = dhcpLeaseTimeout
	conv, err := cl.Exchange(c.iface)
	if err != nil {
		return UpstreamTransportError{ClientID: c.id, Err: err}
	}

	ack := conv[len(conv)-1]
	servers := ack.DNS()
	if len(servers) == 0 {
		return fmt.Errorf("DHCP ACK on %s carried no domain name server option", c.iface)
	}

	endpoint := fmt.Sprintf("%s:53", servers[0].String())
	Log.WithFields(logrus.Fields{
		"client":     c.id,
		"interface":  c.iface,
		"nameserver": endpoint,
	}).Info("discovered nameserver via DHCP")

	c.delegate = newDNSClient(c.id, endpoint, "udp")
	c.discoveredAt = time.Now()
	return nil
}

func (c *dhcpClient) String() string {
	return fmt.Sprintf("DHCP(%s)", c.iface)
}
