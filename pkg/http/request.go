package http

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// IPConfig holds configuration for IP extraction and validation
type IPConfig struct {
	// TrustForwardedFor enables X-Forwarded-For. With no TrustedProxies the
	// header is honored from any peer, which is only safe when every request
	// arrives through a proxy that overwrites it.
	TrustForwardedFor bool
	TrustedProxies    []string // CIDR ranges or single addresses
}

// ExtractClientIP resolves the client address used for IP blocking and
// per-IP rate limiting.
//
// Flow:
// 1. If forwarded headers are trusted for this peer, the first
// X-Forwarded-For entry, trimmed, when it parses as an IP
// 2. Otherwise the transport peer address without its port
//
// The result is in CanonicalIP form whenever it parses, so it compares
// equal to a stored block however the address was originally spelled.
func ExtractClientIP(r *http.Request, config *IPConfig) string {
	remoteIP := getRemoteAddr(r)

	if config == nil || !config.TrustForwardedFor {
		return remoteIP
	}
	if len(config.TrustedProxies) > 0 && !isTrustedProxy(remoteIP, config.TrustedProxies) {
		return remoteIP
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		first = strings.TrimSpace(first)
		if ip, ok := CanonicalIP(first); ok {
			return ip
		}
	}

	return remoteIP
}

// getRemoteAddr extracts the IP address from RemoteAddr (removing port if present)
func getRemoteAddr(r *http.Request) string {
	if r.RemoteAddr != "" {
		// RemoteAddr may include port: "ip:port"
		host := r.RemoteAddr
		if ip, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
			host = ip
		}
		if ip, ok := CanonicalIP(host); ok {
			return ip
		}
		return host
	}
	return "unknown"
}

// isTrustedProxy checks if an IP address is within any of the trusted proxy ranges
func isTrustedProxy(ip string, trustedProxies []string) bool {
	clientIP := net.ParseIP(ip)
	if clientIP == nil {
		return false
	}

	for _, entry := range trustedProxies {
		if !strings.Contains(entry, "/") {
			if proxyIP := net.ParseIP(entry); proxyIP != nil && proxyIP.Equal(clientIP) {
				return true
			}
			continue
		}
		_, ipNet, err := net.ParseCIDR(entry)
		if err != nil {
			continue // Skip invalid CIDR ranges
		}
		if ipNet.Contains(clientIP) {
			return true
		}
	}

	return false
}

// IsValidIP reports whether ip is an IPv4 or IPv6 literal.
func IsValidIP(ip string) bool {
	_, ok := CanonicalIP(ip)
	return ok
}

// CanonicalIP returns the single textual form of an address: lower-case
// IPv6 with zero runs compressed, IPv4-mapped IPv6 as plain IPv4, and no
// zone. ok is false when s is not an IP literal.
func CanonicalIP(s string) (string, bool) {
	addr, err := netip.ParseAddr(strings.TrimSpace(s))
	if err != nil {
		return "", false
	}
	return addr.WithZone("").Unmap().String(), true
}
