package probe

import (
	"crypto/tls"
	"net/http"
	"sync"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"golang.org/x/net/http2"
)

var (
	sharedTransport     *http.Transport
	sharedTransportOnce sync.Once
)

// probeTransport returns the shared HTTP transport for provider probes.
// Probes are small, infrequent requests; the pool is kept modest.
func probeTransport() *http.Transport {
	sharedTransportOnce.Do(func() {
		transport := cleanhttp.DefaultPooledTransport()

		transport.MaxIdleConns = 20
		transport.MaxIdleConnsPerHost = 5
		transport.IdleConnTimeout = 90 * time.Second
		transport.TLSHandshakeTimeout = 10 * time.Second
		transport.TLSClientConfig = &tls.Config{
			MinVersion: tls.VersionTLS12,
		}
		transport.ForceAttemptHTTP2 = true

		// Best effort; the transport still works as HTTP/1.1 if this fails
		_ = http2.ConfigureTransport(transport)

		sharedTransport = transport
	})
	return sharedTransport
}
