package governance

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"syscall"
)

// ErrRestrictedAddress is returned when a fetch would reach a host that is
// not on the public internet.
var ErrRestrictedAddress = errors.New("restricted network address")

// cgnat is the shared address space of RFC 6598.
var cgnat = &net.IPNet{IP: net.IPv4(100, 64, 0, 0), Mask: net.CIDRMask(10, 32)}

// IsRestrictedIP reports whether ip is loopback, private, link-local,
// multicast or unspecified.
func IsRestrictedIP(ip net.IP) bool {
	if ip == nil {
		return true
	}
	return ip.IsLoopback() ||
		ip.IsPrivate() ||
		ip.IsUnspecified() ||
		ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() ||
		ip.IsInterfaceLocalMulticast() ||
		ip.IsMulticast() ||
		cgnat.Contains(ip)
}

// RestrictedHost reports whether host names a restricted address without
// resolving it: localhost names, IP literals, and the legacy IPv4 spellings
// ("2130706433", "0x7f.0.0.1", "0177.1") that resolvers still accept.
func RestrictedHost(host string) bool {
	host = strings.TrimSuffix(strings.ToLower(strings.Trim(host, "[]")), ".")
	if host == "" {
		return true
	}
	if host == "localhost" || strings.HasSuffix(host, ".localhost") {
		return true
	}
	if ip := net.ParseIP(host); ip != nil {
		return IsRestrictedIP(ip)
	}
	if ip, ok := parseLegacyIPv4(host); ok {
		return IsRestrictedIP(ip)
	}
	return false
}

// RestrictedURL applies RestrictedHost to the host of rawURL. Userinfo and
// ports are ignored the way the HTTP client ignores them.
func RestrictedURL(rawURL string) bool {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Host == "" {
		return false
	}
	return RestrictedHost(u.Hostname())
}

// parseLegacyIPv4 parses the inet_aton forms: one to four parts, each
// decimal, octal (leading 0) or hex (0x), the last part filling the
// remaining bytes.
func parseLegacyIPv4(s string) (net.IP, bool) {
	parts := strings.Split(s, ".")
	if len(parts) > 4 {
		return nil, false
	}
	vals := make([]uint64, len(parts))
	for i, p := range parts {
		if p == "" {
			return nil, false
		}
		v, err := strconv.ParseUint(p, 0, 32)
		if err != nil {
			return nil, false
		}
		vals[i] = v
	}

	var n uint64
	last := len(vals) - 1
	for i, v := range vals[:last] {
		if v > 0xff {
			return nil, false
		}
		n |= v << (8 * (3 - i))
	}
	if vals[last] >= 1<<(8*(4-last)) {
		return nil, false
	}
	n |= vals[last]
	return net.IPv4(byte(n>>24), byte(n>>16), byte(n>>8), byte(n)), true
}

// DialControl is a net.Dialer Control func refusing connections to
// restricted addresses. It sees the resolved address, so DNS answers and
// redirect targets are checked as well as literals.
func DialControl(network, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrRestrictedAddress, address)
	}
	if ip := net.ParseIP(host); ip == nil || IsRestrictedIP(ip) {
		return fmt.Errorf("%w: %s", ErrRestrictedAddress, host)
	}
	return nil
}
