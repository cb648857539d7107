package rdns

import (
	"net"
	"testing"
	"time"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/require"
)

func aAnswer(name string, ip string, ttl uint32) *dns.Msg {
	m := newQuestionMessage(name, dns.TypeA)
	m.Answer = []dns.RR{&dns.A{
		Hdr: dns.RR_Header{Name: dns.Fqdn(name), Rrtype: dns.TypeA, Class: dns.ClassINET, Ttl: ttl},
		A:   net.ParseIP(ip),
	}}
	return m
}

func TestAnswerCacheHitMiss(t *testing.T) {
	c := newAnswerCache(answerCacheCapacity)
	q := newQuestionMessage("example.com", dns.TypeA)

	require.Nil(t, c.get(q))

	a := aAnswer("example.com", "93.184.216.34", 300)
	c.put(a)

	got := c.get(q)
	require.NotNil(t, got)
	require.Equal(t, a.Answer[0].(*dns.A).A.String(), got.Answer[0].(*dns.A).A.String())
}

func TestAnswerCacheDoesNotCacheAcmeChallengeTXT(t *testing.T) {
	c := newAnswerCache(answerCacheCapacity)
	m := newQuestionMessage("_acme-challenge.example.com", dns.TypeTXT)
	m.Answer = []dns.RR{&dns.TXT{
		Hdr: dns.RR_Header{Name: dns.Fqdn("_acme-challenge.example.com"), Rrtype: dns.TypeTXT, Class: dns.ClassINET, Ttl: 300},
		Txt: []string{"token"},
	}}

	c.put(m)
	require.Nil(t, c.get(m))
}

func TestAnswerCacheExpiry(t *testing.T) {
	c := newAnswerCache(answerCacheCapacity)
	a := aAnswer("example.com", "93.184.216.34", 300)
	c.put(a)

	item := c.items[fingerprintOf(a)]
	item.expiresAt = time.Now().Add(-time.Second)

	require.Nil(t, c.get(newQuestionMessage("example.com", dns.TypeA)))
}

func TestAnswerCacheEvictsLeastRecentlyUsed(t *testing.T) {
	c := newAnswerCache(2)

	c.put(aAnswer("a.com", "1.1.1.1", 300))
	c.put(aAnswer("b.com", "2.2.2.2", 300))
	// touch a.com so b.com becomes the LRU victim
	c.get(newQuestionMessage("a.com", dns.TypeA))
	c.put(aAnswer("c.com", "3.3.3.3", 300))

	require.NotNil(t, c.get(newQuestionMessage("a.com", dns.TypeA)))
	require.Nil(t, c.get(newQuestionMessage("b.com", dns.TypeA)))
	require.NotNil(t, c.get(newQuestionMessage("c.com", dns.TypeA)))
}
