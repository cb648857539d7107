package rdns

import (
	"net"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDomainFilterPlusPrefix(t *testing.T) {
	f := NewDomainFilter([]string{"+.cn"})
	require.True(t, f.Apply("baidu.cn"))
	require.True(t, f.Apply("www.baidu.cn"))
	require.False(t, f.Apply("example.com"))
}

func TestCIDRFilter(t *testing.T) {
	f, err := NewCIDRFilter("1.2.3.0/24")
	require.NoError(t, err)
	require.True(t, f.Apply(net.ParseIP("1.2.3.4")))
	require.False(t, f.Apply(net.ParseIP("93.184.216.34")))
}

func TestFallbackFilterSetMatchesAny(t *testing.T) {
	cidr, err := NewCIDRFilter("1.2.3.0/24")
	require.NoError(t, err)

	set := &fallbackFilterSet{
		domains: []DomainFilter{NewDomainFilter([]string{"+.cn"})},
		ips:     []IPFilter{cidr},
	}

	require.True(t, set.matchesDomain("baidu.cn"))
	require.False(t, set.matchesDomain("example.com"))
	require.True(t, set.matchesIP(net.ParseIP("1.2.3.4")))
	require.False(t, set.matchesIP(net.ParseIP("93.184.216.34")))
}
