package util

import (
	"net"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// ETLDPlusOne returns the registrable domain for the URL host. IP literals,
// single-label hosts and hosts publicsuffix rejects are returned as-is.
func ETLDPlusOne(u *url.URL) string {
	host := strings.TrimSuffix(strings.ToLower(u.Hostname()), ".")
	if host == "" || net.ParseIP(host) != nil || !strings.Contains(host, ".") {
		return host
	}
	site, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host
	}
	return site
}

// SameSite reports whether two absolute URLs share an eTLD+1.
func SameSite(a, b string) bool {
	ua, err := url.Parse(a)
	if err != nil {
		return false
	}
	ub, err := url.Parse(b)
	if err != nil {
		return false
	}
	sa, sb := ETLDPlusOne(ua), ETLDPlusOne(ub)
	return sa != "" && sa == sb
}
