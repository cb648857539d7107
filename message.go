package rdns

import (
	"net"
	"strings"

	"github.com/miekg/dns"
)

// newQuestionMessage builds a well-formed DNS query for name/qtype with
// RD=1, normalized to an FQDN. name is accepted even with RFC-violating
// labels (e.g. leading underscores) since dns.Fqdn does no label
// validation, which is the "relaxed" parsing the codec needs.
func newQuestionMessage(name string, qtype uint16) *dns.Msg {
	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(name), qtype)
	m.RecursionDesired = true
	return m
}

// singleQuestion returns the lone question of a message, or false if the
// message doesn't carry exactly one.
func singleQuestion(m *dns.Msg) (dns.Question, bool) {
	if m == nil || len(m.Question) != 1 {
		return dns.Question{}, false
	}
	return m.Question[0], true
}

// qName returns the query name from a DNS query, or "" if it has none.
func qName(q *dns.Msg) string {
	if q == nil || len(q.Question) == 0 {
		return ""
	}
	return q.Question[0].Name
}

// domainName returns the first question's name with the trailing dot and
// case normalized away, or "" if there is no question.
func domainName(m *dns.Msg) string {
	name := qName(m)
	if name == "" {
		return ""
	}
	return strings.ToLower(strings.TrimSuffix(name, "."))
}

// isIPRequest reports whether q is a plain IN A/AAAA query, the kind the
// resolver's ip_exchange path and fallback filters apply to.
func isIPRequest(q dns.Question) bool {
	return q.Qclass == dns.ClassINET && (q.Qtype == dns.TypeA || q.Qtype == dns.TypeAAAA)
}

// ipsOfMessage enumerates the A/AAAA addresses carried in a message's
// answer section, in answer order. The codec already filters record types
// upstream of any caller that asserts family consistency, so A and AAAA
// records are never mixed in a way a caller can't already anticipate from
// the query type.
func ipsOfMessage(m *dns.Msg) []net.IP {
	var ips []net.IP
	for _, rr := range m.Answer {
		switch rec := rr.(type) {
		case *dns.A:
			ips = append(ips, rec.A)
		case *dns.AAAA:
			ips = append(ips, rec.AAAA)
		}
	}
	return ips
}

// minTTL returns the minimum TTL across the first non-empty of the answer,
// authority, and additional sections, matching the source's preference
// order. It returns 0 if all three sections are empty.
func minTTL(m *dns.Msg) uint32 {
	sections := [][]dns.RR{m.Answer, m.Ns, m.Extra}
	for _, rrs := range sections {
		if len(rrs) == 0 {
			continue
		}
		min := rrs[0].Header().Ttl
		for _, rr := range rrs[1:] {
			if ttl := rr.Header().Ttl; ttl < min {
				min = ttl
			}
		}
		return min
	}
	return 0
}

// isDoNotCacheTXT implements the do-not-cache rule: TXT questions under
// _acme-challenge. are never cached, regardless of TTL.
func isDoNotCacheTXT(q dns.Question) bool {
	return q.Qtype == dns.TypeTXT && strings.HasPrefix(strings.ToLower(q.Name), "_acme-challenge.")
}
