package netutil

import (
	"io"
	"net"
	"net/http"
	"time"
)

// ClientOptions tunes BuildHTTPClient. Zero values fall back to defaults.
type ClientOptions struct {
	Timeout         time.Duration
	ResponseTimeout time.Duration
	Retries         int
	Backoff         time.Duration
	// RetryStatus enables retries on 429 and 5xx gateway responses.
	RetryStatus bool
}

const (
	defaultDialTimeout     = 5 * time.Second
	defaultTLSHandshake    = 5 * time.Second
	defaultIdleConnTimeout = 30 * time.Second
	defaultResponseTimeout = 5 * time.Second
	defaultClientTimeout   = 30 * time.Second
	defaultKeepAlive       = 30 * time.Second
	defaultRetries         = 3
	defaultBackoff         = 2 * time.Second
)

// BuildHTTPClient returns a pooled client whose transport retries transient failures.
func BuildHTTPClient(opts ClientOptions) *http.Client {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultClientTimeout
	}
	if opts.ResponseTimeout <= 0 {
		opts.ResponseTimeout = defaultResponseTimeout
	}
	if opts.Retries < 0 {
		opts.Retries = 0
	} else if opts.Retries == 0 {
		opts.Retries = defaultRetries
	}
	if opts.Backoff <= 0 {
		opts.Backoff = defaultBackoff
	}

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: defaultDialTimeout, KeepAlive: defaultKeepAlive}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       defaultIdleConnTimeout,
		TLSHandshakeTimeout:   defaultTLSHandshake,
		ResponseHeaderTimeout: opts.ResponseTimeout,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &http.Client{
		Timeout: opts.Timeout,
		Transport: &RetryTransport{
			Base:        transport,
			Retries:     opts.Retries,
			Backoff:     opts.Backoff,
			RetryStatus: opts.RetryStatus,
		},
	}
}

// RetryTransport retries idempotent round trips with linear backoff.
type RetryTransport struct {
	Base        http.RoundTripper
	Retries     int
	Backoff     time.Duration
	RetryStatus bool
}

// RoundTrip implements http.RoundTripper.
func (t *RetryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	attempts := t.Retries + 1
	if attempts < 1 || (req.Body != nil && req.Body != http.NoBody && req.GetBody == nil) {
		attempts = 1
	}

	var (
		resp    *http.Response
		lastErr error
	)
	for attempt := 1; attempt <= attempts; attempt++ {
		curr := req
		if attempt > 1 {
			curr = req.Clone(req.Context())
			if req.GetBody != nil {
				body, err := req.GetBody()
				if err != nil {
					return nil, err
				}
				curr.Body = body
			}
		}

		resp, lastErr = base.RoundTrip(curr)
		retry := false
		switch {
		case lastErr != nil:
			retry = ShouldRetry(lastErr)
		case t.RetryStatus && ShouldRetryStatus(resp.StatusCode):
			retry = true
		}
		if !retry || attempt == attempts {
			break
		}
		if resp != nil {
			_, _ = io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			resp = nil
		}

		delay := t.Backoff * time.Duration(attempt)
		if delay <= 0 {
			continue
		}
		timer := time.NewTimer(delay)
		select {
		case <-req.Context().Done():
			timer.Stop()
			return nil, req.Context().Err()
		case <-timer.C:
		}
	}

	if lastErr != nil {
		return nil, lastErr
	}
	return resp, nil
}
