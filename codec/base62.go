package codec

import "fmt"

const base62Alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

var base62Index = func() map[byte]int64 {
	m := make(map[byte]int64, len(base62Alphabet))
	for i := 0; i < len(base62Alphabet); i++ {
		m[base62Alphabet[i]] = int64(i)
	}
	return m
}()

// EncodeBase62 encodes a non-negative integer as Base62 (alphabet
// 0-9A-Za-z), roughly 30-40% shorter than decimal for values >= 10^6.
func EncodeBase62(n int64) (string, error) {
	if n < 0 {
		return "", fmt.Errorf("%w: base62 requires a non-negative integer, got %d", ErrEncoding, n)
	}
	if n == 0 {
		return string(base62Alphabet[0]), nil
	}

	buf := make([]byte, 0, 11)
	for n > 0 {
		buf = append(buf, base62Alphabet[n%62])
		n /= 62
	}
	reverse(buf)
	return string(buf), nil
}

// DecodeBase62 decodes a Base62 string back to its integer value.
func DecodeBase62(s string) (int64, error) {
	if s == "" {
		return 0, fmt.Errorf("%w: base62 decode of empty string", ErrEncoding)
	}

	var n int64
	for i := 0; i < len(s); i++ {
		digit, ok := base62Index[s[i]]
		if !ok {
			return 0, fmt.Errorf("%w: invalid base62 character %q", ErrEncoding, s[i])
		}
		n = n*62 + digit
	}
	return n, nil
}

func reverse(b []byte) {
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
}
