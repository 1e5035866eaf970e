package httpclient

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/GriffinCanCode/ghostview/internal/infrastructure/resilience"
	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ErrHostUnavailable is returned while a host's breaker is open.
var ErrHostUnavailable = errors.New("host unavailable: circuit breaker open")

type Config struct {
	Timeout      time.Duration
	UserAgent    string
	MaxRetries   int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
	// RateLimit is requests per second across all hosts. Zero disables it.
	RateLimit    float64
	MaxRedirects int
	Jar          http.CookieJar
	// TLSExempt lists hosts whose certificates are not verified.
	TLSExempt func(host string) bool
}

func DefaultConfig() Config {
	return Config{
		Timeout:      30 * time.Second,
		UserAgent:    "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) ghostview/1.0 Safari/537.36",
		MaxRetries:   2,
		RetryWaitMin: 200 * time.Millisecond,
		RetryWaitMax: 5 * time.Second,
		MaxRedirects: 10,
	}
}

// Credentials are HTTP basic auth credentials.
type Credentials struct {
	Username string
	Password string
}

type Request struct {
	Method    string
	URL       string
	Headers   map[string]string
	Form      url.Values
	BasicAuth *Credentials
	// NoCache asks intermediaries for a fresh copy.
	NoCache bool
}

type Response struct {
	// URL is the address after redirects.
	URL           string
	Status        int
	Header        http.Header
	Body          []byte
	ContentLength int64
	Duration      time.Duration
}

// StatusError marks a 5xx answer for the breaker.
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d from %s", e.Code, e.URL)
}

type Client struct {
	resty   *resty.Client
	limiter *rate.Limiter
	hosts   *resilience.Group
	logger  *zap.Logger
}

func New(cfg Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	defaults := DefaultConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaults.Timeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaults.UserAgent
	}
	if cfg.MaxRedirects <= 0 {
		cfg.MaxRedirects = defaults.MaxRedirects
	}

	// Pooled transport from retryablehttp; retries are driven by resty below.
	retryClient := retryablehttp.NewClient()
	retryClient.Logger = nil
	if tr, ok := retryClient.HTTPClient.Transport.(*http.Transport); ok && cfg.TLSExempt != nil {
		tr.TLSClientConfig = exemptTLSConfig(cfg.TLSExempt)
	}

	r := resty.New().
		SetTransport(retryClient.HTTPClient.Transport).
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.MaxRetries).
		SetRetryWaitTime(cfg.RetryWaitMin).
		SetRetryMaxWaitTime(cfg.RetryWaitMax).
		SetRedirectPolicy(resty.FlexibleRedirectPolicy(cfg.MaxRedirects)).
		SetHeader("User-Agent", cfg.UserAgent)

	r.AddRetryCondition(func(resp *resty.Response, err error) bool {
		ctx := context.Background()
		var raw *http.Response
		if resp != nil {
			raw = resp.RawResponse
			if resp.Request != nil {
				ctx = resp.Request.Context()
			}
		}
		retry, _ := retryablehttp.DefaultRetryPolicy(ctx, raw, err)
		return retry
	})
	r.SetRetryAfter(func(_ *resty.Client, resp *resty.Response) (time.Duration, error) {
		if resp == nil || resp.Request == nil {
			return 0, nil
		}
		return retryablehttp.DefaultBackoff(cfg.RetryWaitMin, cfg.RetryWaitMax, resp.Request.Attempt, resp.RawResponse), nil
	})

	if cfg.Jar != nil {
		r.SetCookieJar(cfg.Jar)
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), max(1, int(cfg.RateLimit)))
	}

	hosts := resilience.NewGroup(resilience.Settings{
		MaxRequests: 2,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(c resilience.Counts) bool {
			return c.ConsecutiveFailures >= 5 ||
				(c.Requests >= 20 && float64(c.TotalFailures)/float64(c.Requests) > 0.7)
		},
		OnStateChange: func(host string, from, to resilience.State) {
			logger.Info("host breaker changed",
				zap.String("host", host),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})

	return &Client{
		resty:   r,
		limiter: limiter,
		hosts:   hosts,
		logger:  logger,
	}
}

// Do sends req and returns the final response, whatever its status.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	target, err := url.Parse(req.URL)
	if err != nil || target.Host == "" {
		return nil, fmt.Errorf("invalid url %q", req.URL)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}

	r := c.resty.R().SetContext(ctx).SetHeaders(req.Headers)
	if req.NoCache {
		r.SetHeader("Cache-Control", "no-cache")
	}
	if req.BasicAuth != nil {
		r.SetBasicAuth(req.BasicAuth.Username, req.BasicAuth.Password)
	}
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	if len(req.Form) > 0 {
		if method == http.MethodGet {
			r.SetQueryParamsFromValues(req.Form)
		} else {
			r.SetFormDataFromValues(req.Form)
		}
	}

	var resp *resty.Response
	err = c.hosts.Get(target.Host).Execute(func() error {
		var err error
		resp, err = r.Execute(method, req.URL)
		if err != nil {
			return err
		}
		if resp.StatusCode() >= 500 {
			return &StatusError{Code: resp.StatusCode(), URL: req.URL}
		}
		return nil
	}, isContextError)

	var statusErr *StatusError
	switch {
	case errors.Is(err, resilience.ErrCircuitOpen), errors.Is(err, resilience.ErrTooManyRequests):
		return nil, fmt.Errorf("%s: %w", target.Host, ErrHostUnavailable)
	case errors.As(err, &statusErr):
	case err != nil:
		return nil, fmt.Errorf("fetch %s: %w", req.URL, err)
	}

	final := req.URL
	var contentLength int64 = -1
	if raw := resp.RawResponse; raw != nil {
		if raw.Request != nil && raw.Request.URL != nil {
			final = raw.Request.URL.String()
		}
		contentLength = raw.ContentLength
	}

	return &Response{
		URL:           final,
		Status:        resp.StatusCode(),
		Header:        resp.Header(),
		Body:          resp.Body(),
		ContentLength: contentLength,
		Duration:      resp.Time(),
	}, nil
}

// OpenHosts lists hosts whose breaker is not closed.
func (c *Client) OpenHosts() map[string]resilience.State {
	return c.hosts.States()
}

// ResetHosts closes every host breaker.
func (c *Client) ResetHosts() {
	c.hosts.Reset()
}

// exemptTLSConfig verifies certificates itself so that exempt hosts can be
// skipped per connection.
func exemptTLSConfig(exempt func(host string) bool) *tls.Config {
	return &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: true,
		VerifyConnection: func(cs tls.ConnectionState) error {
			if exempt(cs.ServerName) {
				return nil
			}
			if len(cs.PeerCertificates) == 0 {
				return errors.New("no peer certificates")
			}
			opts := x509.VerifyOptions{
				DNSName:       cs.ServerName,
				Intermediates: x509.NewCertPool(),
			}
			for _, cert := range cs.PeerCertificates[1:] {
				opts.Intermediates.AddCert(cert)
			}
			_, err := cs.PeerCertificates[0].Verify(opts)
			return err
		},
	}
}

func isContextError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
