// Package normalize turns user supplied relay and service addresses into a
// canonical form, so the same relay is always keyed the same way.
package normalize

import (
	"net/url"
	"strconv"
	"strings"

	"zapbox.lol/chk"
	"zapbox.lol/log"
)

func hasScheme(u string) bool {
	for _, p := range []string{"ws://", "wss://", "http://", "https://"} {
		if strings.HasPrefix(u, p) {
			return true
		}
	}
	return false
}

// URL normalizes a relay URL
//
// - Adds wss:// to addresses without a port, or with 443 that have no protocol prefix
//
// - Adds ws:// to addresses with any other port
//
// - Converts http/s to ws/s
//
// An address that cannot be normalized yields the empty string.
func URL(v string) (s string) {
	u := strings.ToLower(strings.TrimSpace(v))
	if u == "" {
		return
	}
	if !hasScheme(u) {
		host, port, found := strings.Cut(u, ":")
		switch {
		case !found:
			u = "wss://" + u
		default:
			portStr, _, _ := strings.Cut(port, "/")
			p, err := strconv.ParseUint(portStr, 10, 16)
			if err != nil {
				log.D.F("invalid port in URL '%s': %v", v, err)
				return
			}
			if p == 443 {
				u = "wss://" + host + strings.TrimPrefix(port, portStr)
			} else {
				u = "ws://" + u
			}
		}
	}
	var err error
	var p *url.URL
	if p, err = url.Parse(u); chk.D(err) {
		return
	}
	switch p.Scheme {
	case "https":
		p.Scheme = "wss"
	case "http":
		p.Scheme = "ws"
	}
	if p.Host == "" {
		return
	}
	p.Path = strings.TrimRight(p.Path, "/")
	return p.String()
}

// IsRelayURL reports whether s normalizes to a websocket URL.
func IsRelayURL(s string) bool {
	n := URL(s)
	return strings.HasPrefix(n, "ws://") || strings.HasPrefix(n, "wss://")
}

// Reason is a machine-readable prefix of OK and CLOSED messages.
type Reason string

var (
	AuthRequired = Reason("auth-required")
	PoW          = Reason("pow")
	Duplicate    = Reason("duplicate")
	Blocked      = Reason("blocked")
	RateLimited  = Reason("rate-limited")
	Invalid      = Reason("invalid")
	Error        = Reason("error")
)

// IsPrefix reports whether a relay message starts with this reason.
func (r Reason) IsPrefix(msg string) bool { return strings.HasPrefix(msg, string(r)+":") }
