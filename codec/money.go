package codec

import (
	"fmt"
	"strings"
)

// EncodeMoney encodes an integer amount of smallest-denomination units
// (e.g. cents) as Base62, prefixed with the currency marker.
func EncodeMoney(units int64, currency string) (string, error) {
	if currency == "" {
		return "", fmt.Errorf("%w: money encoding requires a currency marker", ErrEncoding)
	}
	sign := ""
	if units < 0 {
		sign = "-"
		units = -units
	}
	encoded, err := EncodeBase62(units)
	if err != nil {
		return "", err
	}
	return currency + ":" + sign + encoded, nil
}

// DecodeMoney is the inverse of EncodeMoney, returning the currency marker
// and the integer amount of smallest-denomination units.
func DecodeMoney(s string) (currency string, units int64, err error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return "", 0, fmt.Errorf("%w: malformed money encoding %q", ErrEncoding, s)
	}
	currency, payload := parts[0], parts[1]

	sign := int64(1)
	if strings.HasPrefix(payload, "-") {
		sign = -1
		payload = payload[1:]
	}

	n, err := DecodeBase62(payload)
	if err != nil {
		return "", 0, err
	}
	return currency, sign * n, nil
}
