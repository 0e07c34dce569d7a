package gate

import (
	"errors"
	"log"
	"net/http"
	"net/url"
)

// ErrInvalidOrigin is returned when an Origin or Referer value cannot be
// reduced to scheme://host.
var ErrInvalidOrigin = errors.New("invalid origin")

// OriginGate validates the calling page's origin against an allow-list.
// An empty allow-list leaves the gate open.
type OriginGate struct {
	allowed      map[string]bool
	allowMissing bool
}

// NewOriginGate builds a gate for the given origins. Entries are reduced to
// scheme://host before comparison; entries that do not parse are dropped.
// allowMissing selects permissive mode: requests carrying neither Origin
// nor Referer pass instead of being rejected.
func NewOriginGate(allowedOrigins []string, allowMissing bool) *OriginGate {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		domain, err := ReduceOrigin(o)
		if err != nil {
			log.Printf("origin gate: skipping unparseable allow-list entry %q", o)
			continue
		}
		allowed[domain] = true
	}
	return &OriginGate{allowed: allowed, allowMissing: allowMissing}
}

// ReduceOrigin parses a raw Origin or Referer value down to scheme://host.
func ReduceOrigin(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", ErrInvalidOrigin
	}
	if u.Scheme == "" || u.Host == "" {
		return "", ErrInvalidOrigin
	}
	return u.Scheme + "://" + u.Host, nil
}

// Middleware rejects requests whose reduced origin is not in the
// allow-list. The Origin header is consulted first, then Referer. Every
// decision is logged with the evaluated domain. A malformed origin is a
// rejection, not a crash.
func (g *OriginGate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(g.allowed) == 0 {
			next.ServeHTTP(w, r)
			return
		}

		raw := r.Header.Get("Origin")
		if raw == "" {
			raw = r.Header.Get("Referer")
		}
		if raw == "" {
			if g.allowMissing {
				log.Printf("origin gate: allowed request without origin")
				next.ServeHTTP(w, r)
				return
			}
			log.Printf("origin gate: denied request without origin")
			writeError(w, http.StatusForbidden, CodeOriginMissing, "access denied: missing origin")
			return
		}

		domain, err := ReduceOrigin(raw)
		if err != nil {
			log.Printf("origin gate: denied malformed origin %q", raw)
			writeError(w, http.StatusForbidden, CodeOriginInvalid, "access denied: invalid origin")
			return
		}

		if !g.allowed[domain] {
			log.Printf("origin gate: denied domain %s", domain)
			writeError(w, http.StatusForbidden, CodeOriginDenied, "access denied: domain not authorized")
			return
		}

		log.Printf("origin gate: allowed domain %s", domain)
		next.ServeHTTP(w, r)
	})
}
