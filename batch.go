package rdns

import (
	"context"
	"time"

	"github.com/miekg/dns"
	"github.com/sirupsen/logrus"
)

// batchTimeout bounds an entire batchExchange call, independent of any
// per-client timeout the individual Client implementations apply.
const batchTimeout = 10 * time.Second

// batchExchange races m against every client in clients concurrently and
// returns the first success. Every failure is logged with the client's id;
// if all clients fail, the last error observed is returned. If no client
// answers within batchTimeout, a DNSTimeoutError is returned instead,
// regardless of whether any call would eventually have succeeded.
func batchExchange(ctx context.Context, clients []Client, m *dns.Msg) (*dns.Msg, error) {
	ctx, cancel := context.WithTimeout(ctx, batchTimeout)
	defer cancel()

	type result struct {
		msg *dns.Msg
		err error
	}

	results := make(chan result, len(clients))
	for _, c := range clients {
		c := c
		go func() {
			getVarInt("client", c.ID(), "query-count").Add(1)
			r, err := c.Exchange(ctx, m)
			if err != nil {
				getVarInt("client", c.ID(), "error-count").Add(1)
				Log.WithFields(logrus.Fields{
					"client": c.ID(),
					"qname":  qName(m),
				}).WithError(err).Debug("upstream exchange failed")
			}
			results <- result{r, err}
		}()
	}

	var lastErr error
	for i := 0; i < len(clients); i++ {
		select {
		case r := <-results:
			if r.err == nil {
				return r.msg, nil
			}
			lastErr = r.err
		case <-ctx.Done():
			return nil, DNSTimeoutError{query: m}
		}
	}

	if lastErr == nil {
		lastErr = DNSTimeoutError{query: m}
	}
	return nil, lastErr
}
