package websocket

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/marmos91/bonfire/internal/logger"
)

// originPolicy decides which browser origins may open a session.
type originPolicy struct {
	allowed  map[string]struct{}
	allowAll bool
}

func newOriginPolicy(origins []string) originPolicy {
	p := originPolicy{allowed: make(map[string]struct{})}
	for _, origin := range origins {
		trimmed := strings.TrimSpace(origin)
		switch {
		case trimmed == "":
		case trimmed == "*":
			p.allowAll = true
		default:
			normalized, ok := normalizeOrigin(trimmed)
			if !ok {
				logger.Warn("Ignoring invalid origin in configuration: %q", origin)
				continue
			}
			p.allowed[normalized] = struct{}{}
		}
	}
	return p
}

func normalizeOrigin(origin string) (string, bool) {
	parsed, err := url.Parse(origin)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return "", false
	}
	return strings.ToLower(parsed.Scheme) + "://" + strings.ToLower(parsed.Host), true
}

// check implements websocket.Upgrader.CheckOrigin. Requests without an
// Origin header come from native clients and are accepted. With no origins
// configured only same-host pages are.
func (p originPolicy) check(r *http.Request) bool {
	header := r.Header.Get("Origin")
	if header == "" || p.allowAll {
		return true
	}

	normalized, ok := normalizeOrigin(header)
	if !ok {
		return false
	}

	if len(p.allowed) == 0 {
		u, _ := url.Parse(normalized)
		return strings.EqualFold(u.Host, r.Host)
	}

	_, exists := p.allowed[normalized]
	return exists
}
