package rdns

import (
	"fmt"
	"net"
	"strings"

	"github.com/oschwald/maxminddb-golang"
)

// DomainFilter reports whether a domain name is a member of a configured
// set, used by the fallback-filter's domain rules (§4.F, P6).
type DomainFilter interface {
	Apply(domain string) bool
}

// IPFilter reports whether an IP address matches a configured rule. A true
// verdict from any configured IP filter means prefer the fallback answer
// over main's (§4.F, P7).
type IPFilter interface {
	Apply(ip net.IP) bool
}

// trieDomainFilter matches domain against the nameserver-policy-style trie
// semantics (exact, *.label, +.label), reusing StringTrie[bool].
type trieDomainFilter struct {
	trie *StringTrie[bool]
}

var _ DomainFilter = &trieDomainFilter{}

// NewDomainFilter builds a DomainFilter from a set of domain patterns,
// using the same pattern syntax as the hosts and policy tries (§4.B).
func NewDomainFilter(patterns []string) *trieDomainFilter {
	t := NewStringTrie[bool]()
	for _, p := range patterns {
		t.Insert(p, true)
	}
	return &trieDomainFilter{trie: t}
}

func (f *trieDomainFilter) Apply(domain string) bool {
	_, ok := f.trie.Search(domain)
	return ok
}

// cidrIPFilter matches an IP against a single configured subnet.
type cidrIPFilter struct {
	network *net.IPNet
}

var _ IPFilter = &cidrIPFilter{}

func NewCIDRFilter(cidr string) (*cidrIPFilter, error) {
	_, network, err := net.ParseCIDR(cidr)
	if err != nil {
		return nil, fmt.Errorf("invalid fallback-filter CIDR %q: %w", cidr, err)
	}
	return &cidrIPFilter{network: network}, nil
}

func (f *cidrIPFilter) Apply(ip net.IP) bool {
	return f.network.Contains(ip)
}

// geoIPFilter matches an IP against a configured ISO country code using an
// MMDB handle.
type geoIPFilter struct {
	db          *maxminddb.Reader
	countryCode string
}

var _ IPFilter = &geoIPFilter{}

func NewGeoIPFilter(db *maxminddb.Reader, countryCode string) *geoIPFilter {
	return &geoIPFilter{db: db, countryCode: strings.ToUpper(countryCode)}
}

func (f *geoIPFilter) Apply(ip net.IP) bool {
	var record struct {
		Country struct {
			ISOCode string `maxminddb:"iso_code"`
		} `maxminddb:"country"`
	}
	if err := f.db.Lookup(ip, &record); err != nil {
		Log.WithField("ip", ip).WithError(err).Debug("geoip lookup failed")
		return false
	}
	return strings.EqualFold(record.Country.ISOCode, f.countryCode)
}

// fallbackFilterSet bundles the domain and IP filter lists consulted by
// ip_exchange (§4.H). A question matches the set's domain rules if any
// DomainFilter returns true; an answer's IP matches the set's IP rules if
// any IPFilter returns true.
type fallbackFilterSet struct {
	domains []DomainFilter
	ips     []IPFilter
}

func (s *fallbackFilterSet) matchesDomain(domain string) bool {
	for _, f := range s.domains {
		if f.Apply(domain) {
			return true
		}
	}
	return false
}

func (s *fallbackFilterSet) matchesIP(ip net.IP) bool {
	for _, f := range s.ips {
		if f.Apply(ip) {
			return true
		}
	}
	return false
}
