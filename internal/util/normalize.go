package util

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// DefaultScheme is prepended to input that carries no scheme.
const DefaultScheme = "https"

// ErrInvalidURL is returned when input cannot be turned into an http(s) URL.
var ErrInvalidURL = errors.New("invalid url")

var schemePrefixRe = regexp.MustCompile(`(?i)^[a-z][a-z0-9+.-]*://`)

// NormalizeURL trims raw, adds DefaultScheme when no scheme is present, and
// returns the re-serialized absolute URL. Fragments are kept.
func NormalizeURL(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", fmt.Errorf("%w: empty input", ErrInvalidURL)
	}
	if !schemePrefixRe.MatchString(s) {
		s = DefaultScheme + "://" + s
	}
	u, err := url.Parse(s)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if err := validateHTTPURL(u); err != nil {
		return "", err
	}
	return u.String(), nil
}

func validateHTTPURL(u *url.URL) error {
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: unsupported scheme %q", ErrInvalidURL, u.Scheme)
	}
	if u.Opaque != "" {
		return fmt.Errorf("%w: opaque url", ErrInvalidURL)
	}
	host := u.Hostname()
	if host == "" {
		return fmt.Errorf("%w: missing host", ErrInvalidURL)
	}
	if strings.ContainsAny(host, " \t\r\n") || strings.HasPrefix(host, ".") || strings.Contains(host, "..") {
		return fmt.Errorf("%w: malformed host %q", ErrInvalidURL, host)
	}
	return nil
}

// ResolveLocation resolves a Location header value against base following
// RFC 3986 reference resolution. ok is false when the location is unusable:
// empty, unparseable, or resolving to something other than an http(s) URL.
// A location without a fragment inherits the base fragment (RFC 7231 7.1.2).
func ResolveLocation(base, location string) (resolved string, ok bool) {
	location = strings.TrimSpace(location)
	if location == "" {
		return "", false
	}
	b, err := url.Parse(base)
	if err != nil {
		return "", false
	}
	ref, err := url.Parse(location)
	if err != nil {
		return "", false
	}
	next := b.ResolveReference(ref)
	if ref.Fragment == "" && !strings.Contains(location, "#") {
		next.Fragment = b.Fragment
		next.RawFragment = b.RawFragment
	}
	if validateHTTPURL(next) != nil {
		return "", false
	}
	return next.String(), true
}

// StripFragment returns u without its fragment. Unparseable input is
// returned unchanged.
func StripFragment(u string) string {
	parsed, err := url.Parse(u)
	if err != nil {
		return u
	}
	parsed.Fragment = ""
	parsed.RawFragment = ""
	return parsed.String()
}
