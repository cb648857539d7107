package rdns

import (
	"crypto/tls"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDoTClientUsesConfiguredServerName(t *testing.T) {
	tc := &tlsConfig{serverName: "dns.example.com"}
	d := newDoTClient("test-dot", "10.0.0.1:853", tc)
	require.Equal(t, "DoT(10.0.0.1:853)", d.String())
	require.Equal(t, "dns.example.com", d.client.TLSConfig.ServerName)
}

func TestDoTClientHonorsMutualTLSOverride(t *testing.T) {
	override := &tls.Config{ServerName: "override.example.com", InsecureSkipVerify: true}
	tc := &tlsConfig{serverName: "ignored.example.com", override: override}
	d := newDoTClient("test-dot", "10.0.0.1:853", tc)
	require.Same(t, override, d.client.TLSConfig)
}
