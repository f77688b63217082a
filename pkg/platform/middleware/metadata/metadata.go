package metadata

import (
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strings"

	"github.com/mssola/useragent"

	"scholar/pkg/requestcontext"
)

// TrustedProxies lists the peers whose forwarding headers are believed.
type TrustedProxies []netip.Prefix

// ParseTrustedProxies accepts bare IPs and CIDR ranges.
func ParseTrustedProxies(entries []string) (TrustedProxies, error) {
	out := make(TrustedProxies, 0, len(entries))
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		if strings.Contains(e, "/") {
			p, err := netip.ParsePrefix(e)
			if err != nil {
				return nil, fmt.Errorf("trusted proxy %q: %w", e, err)
			}
			out = append(out, p.Masked())
			continue
		}
		a, err := netip.ParseAddr(e)
		if err != nil {
			return nil, fmt.Errorf("trusted proxy %q: %w", e, err)
		}
		a = a.Unmap()
		out = append(out, netip.PrefixFrom(a, a.BitLen()))
	}
	return out, nil
}

// Trusts reports whether ip falls inside a trusted range.
func (t TrustedProxies) Trusts(ip string) bool {
	a, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	a = a.Unmap()
	for _, p := range t {
		if p.Contains(a) {
			return true
		}
	}
	return false
}

// ClientMetadata extracts the client IP and User-Agent and stores them in the
// request context. Apply it before anything that keys on the client.
func ClientMetadata(trusted TrustedProxies) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := requestcontext.WithClientMetadata(r.Context(), ClientIPFromRequest(r, trusted), r.Header.Get("User-Agent"))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClientIPFromRequest extracts the originating client IP. Proxy headers are
// honoured only when the direct peer is trusted; X-Forwarded-For is then
// walked right to left and the first untrusted hop is the client.
func ClientIPFromRequest(r *http.Request, trusted TrustedProxies) string {
	peer := remoteIP(r.RemoteAddr)
	if peer == "" || !trusted.Trusts(peer) {
		if peer == "" {
			return "unknown"
		}
		return peer
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		hops := strings.Split(xff, ",")
		for i := len(hops) - 1; i >= 0; i-- {
			hop := strings.TrimSpace(hops[i])
			if hop == "" {
				continue
			}
			if !trusted.Trusts(hop) || i == 0 {
				return hop
			}
		}
	}

	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}
	return peer
}

// remoteIP strips the port from "ip:port" or "[::1]:port".
func remoteIP(addr string) string {
	if addr == "" {
		return ""
	}
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return strings.Trim(addr, "[]")
}

// ClientLabel turns a User-Agent header into a short label such as
// "browser:Firefox", "bot:Googlebot" or "client:curl". Empty headers map to "api".
func ClientLabel(ua string) string {
	ua = strings.TrimSpace(ua)
	if ua == "" {
		return "api"
	}
	parsed := useragent.New(ua)
	name, _ := parsed.Browser()
	if parsed.Bot() {
		return "bot:" + name
	}
	if parsed.Mobile() {
		return "mobile:" + name
	}
	if parsed.OS() == "" {
		// Command-line tools carry no platform section.
		return "client:" + strings.SplitN(ua, "/", 2)[0]
	}
	return "browser:" + name
}
