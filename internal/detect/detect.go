package detect

import (
	"net/url"
	"strings"

	"github.com/selimozcann/statuspeek/internal/model"
	"github.com/selimozcann/statuspeek/internal/util"
)

const (
	TypeHTTPSDowngrade = "HTTPS_DOWNGRADE"
	TypeInternalHost   = "INTERNAL_HOST"
	TypeTokenLeak      = "TOKEN_LEAK"
)

// tokenKeys are query or fragment parameter names that carry credentials.
var tokenKeys = map[string]bool{
	"token":        true,
	"access_token": true,
	"id_token":     true,
	"code":         true,
	"session":      true,
	"bearer":       true,
}

// Hop inspects a single redirect from prev to next and returns any findings
// for it. Both URLs are expected to be absolute.
func Hop(prev, next string, hop int) []model.Finding {
	p, err := url.Parse(prev)
	if err != nil {
		return nil
	}
	n, err := url.Parse(next)
	if err != nil {
		return nil
	}
	var out []model.Finding
	if f := HTTPSDowngrade(p, n, hop); f != nil {
		out = append(out, *f)
	}
	if f := InternalHost(p, n, hop); f != nil {
		out = append(out, *f)
	}
	if f := TokenLeak(n, hop); f != nil {
		out = append(out, *f)
	}
	return out
}

// HTTPSDowngrade reports if the scheme changed from https to http.
func HTTPSDowngrade(prev, next *url.URL, hop int) *model.Finding {
	if prev.Scheme == "https" && next.Scheme == "http" {
		return &model.Finding{Type: TypeHTTPSDowngrade, Severity: "medium", AtHop: hop, Detail: prev.String() + " -> " + next.String()}
	}
	return nil
}

// InternalHost reports a redirect from a public host into an internal one.
func InternalHost(prev, next *url.URL, hop int) *model.Finding {
	if util.IsInternalHost(prev.Hostname()) || !util.IsInternalHost(next.Hostname()) {
		return nil
	}
	return &model.Finding{Type: TypeInternalHost, Severity: "high", AtHop: hop, Detail: next.Host}
}

// TokenLeak reports a redirect target that carries a credential in its query
// or fragment. Fragment tokens rank higher: they reach page scripts.
func TokenLeak(next *url.URL, hop int) *model.Finding {
	for k := range next.Query() {
		if tokenKeys[strings.ToLower(k)] {
			return &model.Finding{Type: TypeTokenLeak, Severity: "medium", AtHop: hop, Detail: k + " in query"}
		}
	}
	if next.Fragment == "" {
		return nil
	}
	for _, part := range strings.Split(next.Fragment, "&") {
		key, _, _ := strings.Cut(part, "=")
		if tokenKeys[strings.ToLower(key)] {
			return &model.Finding{Type: TypeTokenLeak, Severity: "high", AtHop: hop, Detail: key + " in fragment"}
		}
	}
	return nil
}
