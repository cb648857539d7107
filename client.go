package rdns

import (
	"context"
	"fmt"
	"net"

	"github.com/miekg/dns"
	"github.com/pkg/errors"
)

// TransportKind identifies how a Client reaches its upstream nameserver.
type TransportKind string

const (
	UDP  TransportKind = "UDP"
	TCP  TransportKind = "TCP"
	DoT  TransportKind = "DoT"
	DoH  TransportKind = "DoH"
	DHCP TransportKind = "DHCP"
)

// Client is one configured upstream nameserver, abstracted over its
// transport. Implementations do not retry internally; the batch exchanger
// (batch.go) races a pool once and does not retry either.
type Client interface {
	// ID returns a stable identifier for logging.
	ID() string
	// Exchange sends a well-formed message with exactly one question and
	// returns the first valid answer, or a typed transport error.
	Exchange(ctx context.Context, m *dns.Msg) (*dns.Msg, error)
}

// ClientTLSOptions configures certificate verification for DoT clients, and
// (for completeness with the rest of the pack's dependency surface) the
// client certificate/CA material used by mutual-TLS deployments.
type ClientTLSOptions struct {
	// ServerName overrides the SNI sent to the server; defaults to the
	// upstream's configured host.
	ServerName string
	// Insecure disables certificate verification.
	Insecure bool

	// CAFile, ClientKeyFile and ClientCrtFile configure mutual TLS; all
	// are optional. CAFile is used on its own, while ClientKeyFile and
	// ClientCrtFile are only loaded when both are set.
	CAFile        string
	ClientKeyFile string
	ClientCrtFile string
}

func (opt ClientTLSOptions) config(defaultServerName string) (*tlsConfig, error) {
	name := opt.ServerName
	if name == "" {
		name = defaultServerName
	}
	c := &tlsConfig{serverName: name, insecureSkipVerify: opt.Insecure}

	material := clientTLSMaterial{
		CAFile:        opt.CAFile,
		ClientKeyFile: opt.ClientKeyFile,
		ClientCrtFile: opt.ClientCrtFile,
	}
	if material != (clientTLSMaterial{}) {
		base := c.std()
		if err := material.apply(base); err != nil {
			return nil, errors.Wrap(err, "loading client TLS material")
		}
		c.override = base
	}
	return c, nil
}

// UpstreamSpec is the immutable configuration for one upstream nameserver,
// consumed from the parsed DNS configuration (spec.md §6).
type UpstreamSpec struct {
	Net       TransportKind
	Address   string // host:port, host may be a literal IP or a hostname
	Interface string // optional outbound interface; only DHCP uses it, other transports ignore it

	// SNI, verification, and method are transport-specific knobs; zero
	// values mean "use the transport's default".
	TLS    ClientTLSOptions
	Method string // DoH only: GET or POST, default POST
}

// NewClient constructs a Client for spec, resolving its server hostname (if
// any) exactly once through bootstrap. Bootstrap failure is a construction
// error, never a per-query error (spec.md §4.C).
func NewClient(id string, spec UpstreamSpec, bootstrap *Resolver) (Client, error) {
	host, port, err := net.SplitHostPort(spec.Address)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid upstream address %q", spec.Address)
	}

	resolvedHost, err := resolveUpstreamHost(host, bootstrap)
	if err != nil {
		return nil, BootstrapError{Host: host, Err: err}
	}
	endpoint := net.JoinHostPort(resolvedHost, port)

	switch spec.Net {
	case UDP:
		return newDNSClient(id, endpoint, "udp"), nil
	case TCP:
		return newDNSClient(id, endpoint, "tcp"), nil
	case DoT:
		tc, err := spec.TLS.config(host)
		if err != nil {
			return nil, err
		}
		return newDoTClient(id, endpoint, tc), nil
	case DoH:
		tc, err := spec.TLS.config(host)
		if err != nil {
			return nil, err
		}
		// RFC 8484 URI template: POST expands {?dns} to nothing, GET
		// fills it with the base64url-encoded query.
		return newDoHClient(id, "https://"+endpoint+"/dns-query{?dns}", spec.Method, tc)
	case DHCP:
		return newDHCPClient(id, spec.Interface)
	default:
		return nil, fmt.Errorf("unsupported transport %q", spec.Net)
	}
}

// resolveUpstreamHost resolves host through bootstrap exactly once if it
// isn't already a literal IP address, per spec.md §4.C. A nil bootstrap
// (used when building the bootstrap resolver's own clients) requires host
// to already be literal, matching the "default_nameserver must contain
// only literal-IP servers" constraint in spec.md §6.
func resolveUpstreamHost(host string, bootstrap *Resolver) (string, error) {
	if net.ParseIP(host) != nil {
		return host, nil
	}
	if bootstrap == nil {
		return "", fmt.Errorf("nameserver host %q is not a literal IP and no bootstrap resolver is configured", host)
	}
	ip, err := bootstrap.lookupIP(context.Background(), host, dns.TypeA)
	if err != nil {
		return "", err
	}
	return ip.String(), nil
}

func makeClients(specs []UpstreamSpec, bootstrap *Resolver) ([]Client, error) {
	clients := make([]Client, 0, len(specs))
	for i, spec := range specs {
		id := fmt.Sprintf("%s(%s)#%d", spec.Net, spec.Address, i)
		c, err := NewClient(id, spec, bootstrap)
		if err != nil {
			return nil, err
		}
		clients = append(clients, c)
	}
	return clients, nil
}
