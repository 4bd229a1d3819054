package probe

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/time/rate"

	"github.com/fintra/credvault/logger"
)

// HTTPProber probes a provider by calling a cheap authenticated endpoint
// with the candidate secret and classifying the response. A client-side rate
// limiter keeps probes polite regardless of caller behavior.
type HTTPProber struct {
	provider  string
	method    string
	endpoint  string
	authorize func(req *retryablehttp.Request, rawSecret string)
	checkBody func(status int, body []byte) error
	client    *retryablehttp.Client
	limiter   *rate.Limiter
	logger    logger.Logger
}

// HTTPProberConfig configures an HTTPProber.
type HTTPProberConfig struct {
	Provider string
	Method   string
	Endpoint string

	// Authorize attaches the candidate secret to the request.
	Authorize func(req *retryablehttp.Request, rawSecret string)

	// CheckBody, when set, inspects a 2xx response body for providers that
	// report rejection in-band instead of via status code.
	CheckBody func(status int, body []byte) error

	// ProbesPerSecond bounds outbound probe rate. Zero means 1/s.
	ProbesPerSecond float64
}

// NewHTTPProber creates an HTTP prober from its configuration.
func NewHTTPProber(log logger.Logger, cfg HTTPProberConfig) (*HTTPProber, error) {
	if cfg.Provider == "" || cfg.Endpoint == "" {
		return nil, fmt.Errorf("http prober requires a provider name and endpoint")
	}
	method := cfg.Method
	if method == "" {
		method = http.MethodGet
	}
	rps := cfg.ProbesPerSecond
	if rps <= 0 {
		rps = 1
	}

	plog := log.WithSubsystem(cfg.Provider)
	return &HTTPProber{
		provider:  cfg.Provider,
		method:    method,
		endpoint:  cfg.Endpoint,
		authorize: cfg.Authorize,
		checkBody: cfg.CheckBody,
		client:    newRetryClient(plog),
		limiter:   rate.NewLimiter(rate.Limit(rps), 1),
		logger:    plog,
	}, nil
}

// Probe implements Prober.
func (p *HTTPProber) Probe(ctx context.Context, rawSecret string) error {
	if err := p.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("probe canceled while rate limited: %w", err)
	}

	endpoint := strings.ReplaceAll(p.endpoint, "{secret}", url.QueryEscape(rawSecret))
	req, err := retryablehttp.NewRequestWithContext(ctx, p.method, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to build probe request: %w", err)
	}
	if p.authorize != nil {
		p.authorize(req, rawSecret)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("provider %s unreachable: %w", p.provider, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return fmt.Errorf("failed to read probe response: %w", err)
	}

	p.logger.Debug("probe response",
		logger.Int("status", resp.StatusCode),
		logger.Int("body_bytes", len(body)),
	)

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return &ValidationError{
			Provider: p.provider,
			Message:  fmt.Sprintf("provider %s rejected the credential (status %d)", p.provider, resp.StatusCode),
		}
	case resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("provider %s is rate limiting probes (status 429)", p.provider)
	case resp.StatusCode >= 500:
		return fmt.Errorf("provider %s returned status %d", p.provider, resp.StatusCode)
	case resp.StatusCode >= 400:
		return &ValidationError{
			Provider: p.provider,
			Message:  fmt.Sprintf("provider %s rejected the request (status %d)", p.provider, resp.StatusCode),
		}
	}

	if p.checkBody != nil {
		return p.checkBody(resp.StatusCode, body)
	}
	return nil
}

// NewMonobankProber probes a Monobank-style personal API: the token travels
// in the X-Token header against the client-info endpoint.
func NewMonobankProber(log logger.Logger, baseURL string) (*HTTPProber, error) {
	return NewHTTPProber(log, HTTPProberConfig{
		Provider: "monobank",
		Endpoint: baseURL + "/personal/client-info",
		Authorize: func(req *retryablehttp.Request, rawSecret string) {
			req.Header.Set("X-Token", rawSecret)
		},
	})
}

// NewBinanceProber probes a Binance-style exchange API. Only the API key
// half of the key/secret pair is checked; a bad key already fails here and a
// full signed request is the caller's concern.
func NewBinanceProber(log logger.Logger, baseURL string) (*HTTPProber, error) {
	return NewHTTPProber(log, HTTPProberConfig{
		Provider: "binance",
		Endpoint: baseURL + "/api/v3/account/status",
		Authorize: func(req *retryablehttp.Request, rawSecret string) {
			key := rawSecret
			if idx := strings.IndexByte(rawSecret, ':'); idx >= 0 {
				key = rawSecret[:idx]
			}
			req.Header.Set("X-MBX-APIKEY", key)
		},
	})
}

// NewAlphaVantageProber probes an Alpha Vantage-style market-data API, which
// answers 200 for bad keys and reports rejection in the body.
func NewAlphaVantageProber(log logger.Logger, baseURL string) (*HTTPProber, error) {
	return NewHTTPProber(log, HTTPProberConfig{
		Provider: "alpha_vantage",
		Endpoint: baseURL + "/query?function=GLOBAL_QUOTE&symbol=IBM&apikey={secret}",
		CheckBody: func(status int, body []byte) error {
			text := string(body)
			if strings.Contains(text, "Error Message") || strings.Contains(text, "Invalid API call") {
				return &ValidationError{
					Provider: "alpha_vantage",
					Message:  "provider alpha_vantage rejected the credential",
				}
			}
			if strings.Contains(text, "Note") && strings.Contains(text, "call frequency") {
				return fmt.Errorf("provider alpha_vantage is rate limiting probes")
			}
			return nil
		},
	})
}
