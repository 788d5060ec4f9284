package codec

import (
	"encoding/base64"
	"fmt"
	"net"
	"strings"
)

// ipv6SmartThreshold is the textual length at or below which a compressed
// IPv6 address is stored as-is rather than packed to base64.
const ipv6SmartThreshold = 24

// EncodeIPv4 always encodes the 4 raw address bytes as base64 (8 chars).
func EncodeIPv4(ip net.IP) (string, error) {
	v4 := ip.To4()
	if v4 == nil {
		return "", fmt.Errorf("%w: %v is not a valid IPv4 address", ErrEncoding, ip)
	}
	return base64.StdEncoding.EncodeToString(v4), nil
}

// DecodeIPv4 is the inverse of EncodeIPv4.
func DecodeIPv4(s string) (net.IP, error) {
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil || len(raw) != 4 {
		return nil, fmt.Errorf("%w: invalid ipv4 encoding %q", ErrEncoding, s)
	}
	return net.IP(raw), nil
}

// EncodeIPv6Smart stores the textual form as-is when it is short enough
// (compressed IPv6 remains short), otherwise packs the 16 raw bytes to
// base64 with a "b:" prefix to disambiguate on decode.
func EncodeIPv6Smart(ip net.IP) (string, error) {
	v6 := ip.To16()
	if v6 == nil || ip.To4() != nil {
		return "", fmt.Errorf("%w: %v is not a valid IPv6 address", ErrEncoding, ip)
	}

	text := ip.String()
	if len(text) <= ipv6SmartThreshold && !strings.HasPrefix(text, "b:") {
		return text, nil
	}
	return "b:" + base64.StdEncoding.EncodeToString(v6), nil
}

// DecodeIPv6Smart is the inverse of EncodeIPv6Smart.
func DecodeIPv6Smart(s string) (net.IP, error) {
	if len(s) >= 2 && s[:2] == "b:" {
		raw, err := base64.StdEncoding.DecodeString(s[2:])
		if err != nil || len(raw) != 16 {
			return nil, fmt.Errorf("%w: invalid packed ipv6 encoding %q", ErrEncoding, s)
		}
		return net.IP(raw), nil
	}

	ip := net.ParseIP(s)
	if ip == nil {
		return nil, fmt.Errorf("%w: invalid ipv6 text encoding %q", ErrEncoding, s)
	}
	return ip, nil
}
