package rdns

import "net"

// EnhanceMode selects how resolve(..., enhanced=true) augments a plain
// upstream lookup (§6).
type EnhanceMode string

const (
	EnhanceOff       EnhanceMode = "off"
	EnhanceFakeIP    EnhanceMode = "fake-ip"
	EnhanceRedirHost EnhanceMode = "redir-host"
)

// FallbackFilterConfig configures the fallback-filter rules consulted by
// ip_exchange (§4.F, §6).
type FallbackFilterConfig struct {
	Domain    []string
	IPCIDR    []string
	GeoIP     bool
	GeoIPCode string
}

// Config is the parsed DNS configuration the orchestrator is built from
// (§6). Parsing it out of a file is an external collaborator's job
// (cmd/clashdns/config.go); this struct is the core's only contract with
// that collaborator.
type Config struct {
	Enable bool
	Ipv6   bool

	Nameserver        []UpstreamSpec
	Fallback          []UpstreamSpec
	DefaultNameserver []UpstreamSpec

	NameserverPolicy map[string]UpstreamSpec
	Hosts            map[string]net.IP

	FallbackFilter FallbackFilterConfig

	EnhanceMode   EnhanceMode
	FakeIPRange   string
	FakeIPFilter  []string
	StoreFakeIP   bool
}
