package rampart

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/netip"
	"strings"
)

// ResolveIdentity derives the stable rate-limiting key for a request:
// the client IP joined with a coarse user-agent class. The full IP is
// used rather than a masked prefix so one abusive client behind a NAT
// does not lock out its neighbors.
func ResolveIdentity(req RequestInfo) (Identity, error) {
	ip, err := clientIP(req.RemoteAddr)
	if err != nil {
		return "", err
	}
	return Identity(ip.String() + "|" + uaClass(req.UserAgent)), nil
}

// Fingerprint returns the SHA-256 device fingerprint for a client. The
// IP is masked (IPv4 /24, IPv6 /64) before hashing so the stored
// fingerprint never encodes a full address.
func Fingerprint(remoteAddr, userAgent string) (string, error) {
	ip, err := clientIP(remoteAddr)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256([]byte(maskIP(ip) + "|" + userAgent))
	return hex.EncodeToString(sum[:]), nil
}

func clientIP(remoteAddr string) (netip.Addr, error) {
	if remoteAddr == "" {
		return netip.Addr{}, fmt.Errorf("%w: empty remote address", ErrInvalidInput)
	}
	if ap, err := netip.ParseAddrPort(remoteAddr); err == nil {
		return ap.Addr(), nil
	}
	addr, err := netip.ParseAddr(remoteAddr)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("%w: bad remote address %q", ErrInvalidInput, remoteAddr)
	}
	return addr, nil
}

// maskIP truncates an address to its /24 (IPv4) or /64 (IPv6) prefix.
func maskIP(addr netip.Addr) string {
	bits := 64
	if addr.Is4() || addr.Is4In6() {
		bits = 24
	}
	p, err := addr.Prefix(bits)
	if err != nil {
		return addr.String()
	}
	return p.String()
}

// uaClass buckets a raw user-agent string into a coarse family. The
// classes are deliberately broad: the identity key should survive
// minor version churn within one client.
func uaClass(ua string) string {
	s := strings.ToLower(ua)
	switch {
	case s == "":
		return "unknown"
	case strings.Contains(s, "bot") || strings.Contains(s, "crawler") || strings.Contains(s, "spider"):
		return "bot"
	case strings.Contains(s, "curl") || strings.Contains(s, "wget") || strings.Contains(s, "python") || strings.Contains(s, "go-http-client"):
		return "cli"
	case strings.Contains(s, "edg/") || strings.Contains(s, "edge"):
		return "edge"
	case strings.Contains(s, "firefox"):
		return "firefox"
	case strings.Contains(s, "chrome") || strings.Contains(s, "chromium"):
		return "chrome"
	case strings.Contains(s, "safari"):
		return "safari"
	case strings.Contains(s, "mobile") || strings.Contains(s, "android") || strings.Contains(s, "iphone"):
		return "mobile"
	default:
		return "other"
	}
}
