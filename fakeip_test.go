package rdns

import (
	"encoding/binary"
	"net"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFakeIPBijection(t *testing.T) {
	e, err := NewFakeIPEngine("198.18.0.0/16", nil, NewInMemFakeIPStore(1000))
	require.NoError(t, err)

	ip := e.Lookup("a.test")
	host, ok := e.ReverseLookup(ip)
	require.True(t, ok)
	require.Equal(t, "a.test", host)

	ip2 := e.Lookup(host)
	require.True(t, ip2.Equal(ip))
}

func TestFakeIPPoolBounds(t *testing.T) {
	e, err := NewFakeIPEngine("198.18.0.0/30", nil, NewInMemFakeIPStore(1000))
	require.NoError(t, err)

	_, ipnet, _ := net.ParseCIDR("198.18.0.0/30")
	network := binary.BigEndian.Uint32(ipnet.IP.To4())
	broadcast := network | 3

	for i := 0; i < 20; i++ {
		host := fakeIPTestHost(i)
		ip := e.Lookup(host)
		v := binary.BigEndian.Uint32(ip.To4())
		require.NotEqual(t, network, v, "network address must never be minted")
		require.NotEqual(t, network+1, v, "first reserved address must never be minted")
		require.NotEqual(t, broadcast, v, "broadcast address must never be minted")
	}
}

func TestFakeIPShouldSkip(t *testing.T) {
	e, err := NewFakeIPEngine("198.18.0.0/16", []string{"+.local"}, NewInMemFakeIPStore(1000))
	require.NoError(t, err)

	require.True(t, e.ShouldSkip("x.local"))
	require.False(t, e.ShouldSkip("example.com"))
}

func TestFakeIPReverseLookupOutsideCIDR(t *testing.T) {
	e, err := NewFakeIPEngine("198.18.0.0/16", nil, NewInMemFakeIPStore(1000))
	require.NoError(t, err)

	_, ok := e.ReverseLookup(net.ParseIP("8.8.8.8"))
	require.False(t, ok)
}

func TestFakeIPEvictsLeastRecentlyUsedWhenPoolFull(t *testing.T) {
	// /30 leaves exactly one usable address (network+2); a second distinct
	// host must evict the first rather than fail.
	e, err := NewFakeIPEngine("198.18.0.0/30", nil, NewInMemFakeIPStore(1000))
	require.NoError(t, err)

	ipA := e.Lookup("a.test")
	ipB := e.Lookup("b.test")
	require.True(t, ipA.Equal(ipB), "the sole usable address must be reused")

	_, stillMapped := e.ReverseLookup(ipA)
	require.True(t, stillMapped)
	host, _ := e.ReverseLookup(ipB)
	require.Equal(t, "b.test", host)
}

func fakeIPTestHost(i int) string {
	return "host" + string(rune('a'+i)) + ".test"
}
