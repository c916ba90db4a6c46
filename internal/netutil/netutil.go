package netutil

import (
	"net/http"
	"net/netip"
	"strings"
)

// MaxUserAgentLength caps the user agent recorded in request logs.
const MaxUserAgentLength = 512

// NormalizeIP reduces a bare IP or an ip:port pair (IPv6 may be bracketed)
// to the canonical address without zone. ok is false when no address could
// be parsed, in which case the trimmed input is returned.
func NormalizeIP(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	if ap, err := netip.ParseAddrPort(raw); err == nil {
		return canonical(ap.Addr())
	}
	for _, host := range hostCandidates(raw) {
		if addr, err := netip.ParseAddr(host); err == nil {
			return canonical(addr)
		}
	}
	return raw, false
}

// hostCandidates lists the spellings of the host part worth parsing: the
// input itself, the inside of brackets, and everything before the last colon
// (covers non-numeric ports).
func hostCandidates(raw string) []string {
	out := []string{raw}
	if strings.HasPrefix(raw, "[") {
		if end := strings.LastIndex(raw, "]"); end > 0 {
			out = append(out, raw[1:end])
		}
	}
	if idx := strings.LastIndex(raw, ":"); idx > 0 {
		out = append(out, raw[:idx])
	}
	return out
}

func canonical(addr netip.Addr) (string, bool) {
	addr = addr.WithZone("")
	if !addr.IsValid() {
		return "", false
	}
	return addr.String(), true
}

// TruncateUserAgent keeps at most MaxUserAgentLength runes of ua.
func TruncateUserAgent(ua string) string {
	n := 0
	for i := range ua {
		if n == MaxUserAgentLength {
			return ua[:i]
		}
		n++
	}
	return ua
}

// ClientIP returns the address used to identify the caller. X-Forwarded-For
// is only consulted when trustProxy is set, since clients can forge it; the
// leftmost entry is the originating client.
func ClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			ip := strings.TrimSpace(strings.Split(xff, ",")[0])
			if normalized, ok := NormalizeIP(ip); ok {
				return normalized
			}
		}
	}
	if normalized, ok := NormalizeIP(r.RemoteAddr); ok {
		return normalized
	}
	if r.RemoteAddr == "" {
		return "127.0.0.1"
	}
	return r.RemoteAddr
}
