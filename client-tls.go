package rdns

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
)

// clientTLSMaterial holds optional mutual-TLS credentials for a DoT or DoH
// upstream: a custom CA set to trust (defaults to the system store) and a
// client key/certificate pair, only required if the server expects one.
type clientTLSMaterial struct {
	CAFile        string
	ClientKeyFile string
	ClientCrtFile string
}

// apply loads the configured CA/client certificate material into base.
func (m clientTLSMaterial) apply(base *tls.Config) error {
	if m.ClientCrtFile != "" && m.ClientKeyFile != "" {
		cert, err := tls.LoadX509KeyPair(m.ClientCrtFile, m.ClientKeyFile)
		if err != nil {
			return fmt.Errorf("failed to load client certificate from %s: %w", m.ClientCrtFile, err)
		}
		base.Certificates = []tls.Certificate{cert}
	}

	if m.CAFile != "" {
		pool := x509.NewCertPool()
		b, err := os.ReadFile(m.CAFile)
		if err != nil {
			return err
		}
		if ok := pool.AppendCertsFromPEM(b); !ok {
			return fmt.Errorf("no CA certificates found in %s", m.CAFile)
		}
		base.RootCAs = pool
	}
	return nil
}
