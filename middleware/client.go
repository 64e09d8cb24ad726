package middleware

import (
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strings"

	goAccount "github.com/MrEthical07/goAccount"
)

// ClientIP returns the host part of RemoteAddr. Forwarding headers are
// ignored; use a ProxyResolver when the service sits behind a proxy.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// ProxyResolver derives the client address from X-Forwarded-For or
// X-Real-IP, but only for requests whose direct peer is a trusted proxy.
// A nil *ProxyResolver trusts nobody.
type ProxyResolver struct {
	trusted []netip.Prefix
}

// NewProxyResolver parses trusted proxy addresses. Entries are CIDRs
// ("10.0.0.0/8") or single addresses ("192.0.2.7").
func NewProxyResolver(trusted []string) (*ProxyResolver, error) {
	p := &ProxyResolver{}
	for _, raw := range trusted {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if strings.Contains(raw, "/") {
			prefix, err := netip.ParsePrefix(raw)
			if err != nil {
				return nil, fmt.Errorf("trusted proxy %q: %w", raw, err)
			}
			p.trusted = append(p.trusted, prefix.Masked())
			continue
		}
		addr, err := netip.ParseAddr(raw)
		if err != nil {
			return nil, fmt.Errorf("trusted proxy %q: %w", raw, err)
		}
		addr = addr.Unmap()
		p.trusted = append(p.trusted, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return p, nil
}

func (p *ProxyResolver) isTrusted(ip string) bool {
	if p == nil {
		return false
	}
	addr, err := netip.ParseAddr(strings.TrimSpace(ip))
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, prefix := range p.trusted {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

// ClientIP walks X-Forwarded-For from the right, skipping trusted hops, and
// returns the first untrusted address. Without a trusted peer it returns
// the peer itself.
func (p *ProxyResolver) ClientIP(r *http.Request) string {
	peer := ClientIP(r)
	if !p.isTrusted(peer) {
		return peer
	}

	if xff := r.Header.Values("X-Forwarded-For"); len(xff) > 0 {
		hops := strings.Split(strings.Join(xff, ","), ",")
		for i := len(hops) - 1; i >= 0; i-- {
			hop := strings.TrimSpace(hops[i])
			if hop == "" {
				continue
			}
			if _, err := netip.ParseAddr(hop); err != nil {
				return peer
			}
			if !p.isTrusted(hop) {
				return hop
			}
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		if _, err := netip.ParseAddr(xri); err == nil {
			return xri
		}
	}
	return peer
}

// ClientContext attaches the client IP and User-Agent to the request
// context for engine throttling, audit events and the middleware below it.
func ClientContext(proxies *ProxyResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := goAccount.WithClientIP(r.Context(), proxies.ClientIP(r))
			if ua := r.UserAgent(); ua != "" {
				ctx = goAccount.WithUserAgent(ctx, ua)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// requestIP prefers the address resolved by ClientContext.
func requestIP(r *http.Request) string {
	if ip := goAccount.ClientIPFromContext(r.Context()); ip != "" {
		return ip
	}
	return ClientIP(r)
}
