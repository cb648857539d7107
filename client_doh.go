package rdns

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jtacoma/uritemplates"
	"github.com/miekg/dns"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/http2"
)

// dohClient is a DNS-over-HTTPS resolver (RFC 8484) over HTTP/2, with
// either GET (base64url query parameter) or POST (raw wire body) framing.
type dohClient struct {
	id       string
	endpoint string
	method   string
	template *uritemplates.UriTemplate
	client   *http.Client
}

var _ Client = &dohClient{}

func newDoHClient(id, endpoint, method string, tlsOpt *tlsConfig) (*dohClient, error) {
	template, err := uritemplates.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid DoH endpoint template %q: %w", endpoint, err)
	}

	if method == "" {
		method = "POST"
	}
	if method != "POST" && method != "GET" {
		return nil, fmt.Errorf("unsupported DoH method %q", method)
	}

	tr := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		TLSClientConfig:       tlsOpt.std(),
		DisableCompression:    true,
		ResponseHeaderTimeout: 10 * time.Second,
		IdleConnTimeout:       30 * time.Second,
	}
	if err := http2.ConfigureTransport(tr); err != nil {
		return nil, err
	}

	return &dohClient{
		id:       id,
		endpoint: endpoint,
		method:   method,
		template: template,
		client:   &http.Client{Transport: tr, Timeout: defaultQueryTimeout},
	}, nil
}

func (d *dohClient) ID() string { return d.id }

func (d *dohClient) Exchange(ctx context.Context, m *dns.Msg) (*dns.Msg, error) {
	Log.WithFields(logrus.Fields{
		"client":   d.id,
		"qname":    qName(m),
		"resolver": d.endpoint,
		"protocol": "doh",
		"method":   d.method,
	}).Debug("querying upstream resolver")

	wire, err := m.Pack()
	if err != nil {
		return nil, UpstreamTransportError{ClientID: d.id, Err: err}
	}

	req, err := d.buildRequest(ctx, wire)
	if err != nil {
		return nil, UpstreamTransportError{ClientID: d.id, Err: err}
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, UpstreamTransportError{ClientID: d.id, Err: err}
	}
	defer resp.Body.Close()

	a, err := d.responseFromHTTP(resp)
	if err != nil {
		return nil, UpstreamTransportError{ClientID: d.id, Err: err}
	}
	return a, nil
}

func (d *dohClient) buildRequest(ctx context.Context, wire []byte) (*http.Request, error) {
	if d.method == "GET" {
		return d.buildGetRequest(ctx, wire)
	}
	return d.buildPostRequest(ctx, wire)
}

func (d *dohClient) buildPostRequest(ctx context.Context, wire []byte) (*http.Request, error) {
	u, err := d.template.Expand(map[string]interface{}{})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(wire))
	if err != nil {
		return nil, err
	}
	req.Header.Set("accept", "application/dns-message")
	req.Header.Set("content-type", "application/dns-message")
	return req, nil
}

func (d *dohClient) buildGetRequest(ctx context.Context, wire []byte) (*http.Request, error) {
	b64 := base64.RawURLEncoding.EncodeToString(wire)
	u, err := d.template.Expand(map[string]interface{}{"dns": b64})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("accept", "application/dns-message")
	return req, nil
}

func (d *dohClient) responseFromHTTP(resp *http.Response) (*dns.Msg, error) {
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("unexpected status code %d from %s", resp.StatusCode, d.endpoint)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	a := new(dns.Msg)
	if err := a.Unpack(body); err != nil {
		return nil, fmt.Errorf("unpacking DoH response: %w", err)
	}
	return a, nil
}

func (d *dohClient) String() string {
	return fmt.Sprintf("DoH(%s)", d.endpoint)
}
