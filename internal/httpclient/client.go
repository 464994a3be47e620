package httpclient

import (
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"
)

// DefaultUserAgent mimics a desktop browser; some origins answer bots with
// different redirects.
const DefaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36"

var defaultHeaders = http.Header{
	"Accept":          []string{"text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"},
	"Accept-Language": []string{"en-US,en;q=0.9"},
	"Cache-Control":   []string{"no-cache"},
}

// Config holds settings for the HTTP client.
type Config struct {
	// Timeout bounds a single request, not the whole chain.
	Timeout   time.Duration
	Proxy     func(*http.Request) (*url.URL, error)
	Headers   http.Header
	Cookie    string
	UserAgent string
	Insecure  bool
	Retries   int
}

// headerRoundTripper wraps a base RoundTripper to inject headers/cookies and
// retry network errors and 5xx responses.
type headerRoundTripper struct {
	base      http.RoundTripper
	headers   http.Header
	userAgent string
	cookie    string
	retries   int
}

func (h *headerRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	if h.base == nil {
		h.base = http.DefaultTransport
	}

	var resp *http.Response
	var err error

	for attempt := 0; ; attempt++ {
		r := req.Clone(req.Context())
		for k, vs := range defaultHeaders {
			if r.Header.Get(k) == "" {
				r.Header[k] = append([]string(nil), vs...)
			}
		}
		for k, vs := range h.headers {
			r.Header.Del(k)
			for _, v := range vs {
				r.Header.Add(k, v)
			}
		}
		if r.Header.Get("User-Agent") == "" {
			r.Header.Set("User-Agent", h.userAgent)
		}
		if h.cookie != "" {
			r.Header.Set("Cookie", h.cookie)
		}

		resp, err = h.base.RoundTrip(r)
		if err == nil && resp.StatusCode < 500 {
			return resp, nil
		}

		if attempt >= h.retries || req.Context().Err() != nil {
			if err != nil {
				return nil, err
			}
			return resp, nil
		}

		if resp != nil {
			_ = resp.Body.Close()
		}
		backoff := time.NewTimer(time.Duration(100*(1<<attempt)) * time.Millisecond)
		select {
		case <-req.Context().Done():
			backoff.Stop()
			return nil, req.Context().Err()
		case <-backoff.C:
		}
	}
}

// New returns a configured HTTP client that never follows redirects.
func New(cfg Config) *http.Client {
	proxy := cfg.Proxy
	if proxy == nil {
		proxy = http.ProxyFromEnvironment
	}
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	transport := &http.Transport{
		Proxy:           proxy,
		TLSClientConfig: &tls.Config{InsecureSkipVerify: cfg.Insecure},
		DialContext: (&net.Dialer{
			Timeout:   cfg.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout: cfg.Timeout,
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     30 * time.Second,
		ForceAttemptHTTP2:   true,
	}

	return &http.Client{
		Transport: &headerRoundTripper{
			base:      transport,
			headers:   cfg.Headers,
			userAgent: userAgent,
			cookie:    cfg.Cookie,
			retries:   cfg.Retries,
		},
		Timeout: cfg.Timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			// every hop is observed by the caller
			return http.ErrUseLastResponse
		},
	}
}

// ParseProxy turns a proxy URL string into a Proxy func. Empty means
// environment proxies.
func ParseProxy(raw string) (func(*http.Request) (*url.URL, error), error) {
	if raw == "" {
		return nil, nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid proxy URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid proxy URL %q: scheme and host required", raw)
	}
	return http.ProxyURL(u), nil
}
