package main

import (
	"fmt"
	"net"

	"github.com/BurntSushi/toml"
	rdns "github.com/nullrouted/clashdns"
)

// fileConfig is the on-disk TOML shape; translate turns it into the core
// library's rdns.Config plus the handful of settings (GeoIP database path,
// fake-IP cache file) that only the binary needs to open before handing
// off to rdns.NewResolver.
type fileConfig struct {
	Title string
	DNS   dnsConfig
}

type dnsConfig struct {
	Enable bool
	Ipv6   bool

	DefaultNameserver []upstreamConfig `toml:"default-nameserver"`
	Nameserver        []upstreamConfig
	Fallback          []upstreamConfig
	NameserverPolicy  map[string]upstreamConfig `toml:"nameserver-policy"`
	Hosts             map[string]string

	FallbackFilter fallbackFilterConfig `toml:"fallback-filter"`

	EnhanceMode  string   `toml:"enhance-mode"`
	FakeIPRange  string   `toml:"fake-ip-range"`
	FakeIPFilter []string `toml:"fake-ip-filter"`
	StoreFakeIP  bool     `toml:"store-fake-ip"`

	GeoIPDatabase string `toml:"geoip-database"`
	CacheFile     string `toml:"cache-file"`
}

type upstreamConfig struct {
	Address    string
	Protocol   string
	Interface  string
	Method     string
	ServerName string `toml:"server-name"`
	Insecure   bool
	CA         string
	ClientKey  string `toml:"client-key"`
	ClientCrt  string `toml:"client-crt"`
}

type fallbackFilterConfig struct {
	Domain    []string
	IPCIDR    []string `toml:"ipcidr"`
	GeoIP     bool
	GeoIPCode string `toml:"geoip-code"`
}

func loadConfig(path string) (*fileConfig, error) {
	var cfg fileConfig
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config %q: %w", path, err)
	}
	return &cfg, nil
}

func (c upstreamConfig) toSpec() (rdns.UpstreamSpec, error) {
	var kind rdns.TransportKind
	switch c.Protocol {
	case "udp", "":
		kind = rdns.UDP
	case "tcp":
		kind = rdns.TCP
	case "dot":
		kind = rdns.DoT
	case "doh":
		kind = rdns.DoH
	case "dhcp":
		kind = rdns.DHCP
	default:
		return rdns.UpstreamSpec{}, fmt.Errorf("unsupported protocol %q", c.Protocol)
	}
	return rdns.UpstreamSpec{
		Net:       kind,
		Address:   c.Address,
		Interface: c.Interface,
		Method:    c.Method,
		TLS: rdns.ClientTLSOptions{
			ServerName:    c.ServerName,
			Insecure:      c.Insecure,
			CAFile:        c.CA,
			ClientKeyFile: c.ClientKey,
			ClientCrtFile: c.ClientCrt,
		},
	}, nil
}

func toSpecs(cs []upstreamConfig) ([]rdns.UpstreamSpec, error) {
	specs := make([]rdns.UpstreamSpec, 0, len(cs))
	for i, c := range cs {
		spec, err := c.toSpec()
		if err != nil {
			return nil, fmt.Errorf("entry #%d: %w", i, err)
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

func translate(cfg *dnsConfig) (*rdns.Config, error) {
	defaultNS, err := toSpecs(cfg.DefaultNameserver)
	if err != nil {
		return nil, fmt.Errorf("default-nameserver: %w", err)
	}
	nameserver, err := toSpecs(cfg.Nameserver)
	if err != nil {
		return nil, fmt.Errorf("nameserver: %w", err)
	}
	fallback, err := toSpecs(cfg.Fallback)
	if err != nil {
		return nil, fmt.Errorf("fallback: %w", err)
	}

	var policy map[string]rdns.UpstreamSpec
	if len(cfg.NameserverPolicy) > 0 {
		policy = make(map[string]rdns.UpstreamSpec, len(cfg.NameserverPolicy))
		for pattern, c := range cfg.NameserverPolicy {
			spec, err := c.toSpec()
			if err != nil {
				return nil, fmt.Errorf("nameserver-policy %q: %w", pattern, err)
			}
			policy[pattern] = spec
		}
	}

	var hosts map[string]net.IP
	if len(cfg.Hosts) > 0 {
		hosts = make(map[string]net.IP, len(cfg.Hosts))
		for name, addr := range cfg.Hosts {
			ip := net.ParseIP(addr)
			if ip == nil {
				return nil, fmt.Errorf("hosts %q: invalid IP %q", name, addr)
			}
			hosts[name] = ip
		}
	}

	enhance := rdns.EnhanceOff
	switch cfg.EnhanceMode {
	case "", "off":
		enhance = rdns.EnhanceOff
	case "fake-ip":
		enhance = rdns.EnhanceFakeIP
	case "redir-host":
		enhance = rdns.EnhanceRedirHost
	default:
		return nil, fmt.Errorf("unsupported enhance-mode %q", cfg.EnhanceMode)
	}

	return &rdns.Config{
		Enable:            cfg.Enable,
		Ipv6:              cfg.Ipv6,
		Nameserver:        nameserver,
		Fallback:          fallback,
		DefaultNameserver: defaultNS,
		NameserverPolicy:  policy,
		Hosts:             hosts,
		FallbackFilter: rdns.FallbackFilterConfig{
			Domain:    cfg.FallbackFilter.Domain,
			IPCIDR:    cfg.FallbackFilter.IPCIDR,
			GeoIP:     cfg.FallbackFilter.GeoIP,
			GeoIPCode: cfg.FallbackFilter.GeoIPCode,
		},
		EnhanceMode:  enhance,
		FakeIPRange:  cfg.FakeIPRange,
		FakeIPFilter: cfg.FakeIPFilter,
		StoreFakeIP:  cfg.StoreFakeIP,
	}, nil
}
