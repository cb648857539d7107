package rdns

import (
	"fmt"

	"github.com/miekg/dns"
)

// InvalidQueryError is returned when a message has no question section or
// more than one, or when a host string can't be parsed as a domain name.
type InvalidQueryError struct {
	Reason string
}

func (e InvalidQueryError) Error() string {
	return fmt.Sprintf("invalid query: %s", e.Reason)
}

// BootstrapError is returned when an upstream client's own server hostname
// could not be resolved through the bootstrap resolver at construction time.
type BootstrapError struct {
	Host string
	Err  error
}

func (e BootstrapError) Error() string {
	return fmt.Sprintf("failed to bootstrap nameserver %q: %s", e.Host, e.Err)
}

func (e BootstrapError) Unwrap() error { return e.Err }

// UpstreamTransportError wraps a transport-level failure from a single
// upstream client (timeout, connection refused, TLS failure, bad HTTP
// status). It is logged at debug and only surfaces if every client in a
// batch fails.
type UpstreamTransportError struct {
	ClientID string
	Err      error
}

func (e UpstreamTransportError) Error() string {
	return fmt.Sprintf("upstream %s: %s", e.ClientID, e.Err)
}

func (e UpstreamTransportError) Unwrap() error { return e.Err }

// DNSTimeoutError is returned when a batch exchange's wall-clock deadline
// expires without any client succeeding.
type DNSTimeoutError struct {
	query *dns.Msg
}

func (e DNSTimeoutError) Error() string {
	return fmt.Sprintf("query for '%s' timed out", qName(e.query))
}

// NoRecordError is returned when a query succeeds but carries no A/AAAA
// record for the requested family.
type NoRecordError struct {
	Host string
}

func (e NoRecordError) Error() string {
	return fmt.Sprintf("no record for hostname: %s", e.Host)
}

// Ipv6DisabledError is returned by ResolveV6 while the resolver's ipv6 flag
// is off.
type Ipv6DisabledError struct{}

func (e Ipv6DisabledError) Error() string { return "ipv6 disabled" }

// NotSupportedError is returned by operations the system resolver can't
// perform, such as Exchange.
type NotSupportedError struct {
	Op string
}

func (e NotSupportedError) Error() string {
	return fmt.Sprintf("%s: not supported by system resolver", e.Op)
}
