package codec

import (
	"fmt"
	"net/url"
	"strings"
	"sync"
	"unicode/utf8"

	lru "github.com/hashicorp/golang-lru/v2"
)

// smartStringCacheSize bounds the LRU of last-seen analysis results, the
// one mutable singleton in this package.
const smartStringCacheSize = 4096

var (
	smartStringCacheOnce sync.Once
	smartStringCache     *lru.Cache[string, string]
)

func cache() *lru.Cache[string, string] {
	smartStringCacheOnce.Do(func() {
		c, err := lru.New[string, string](smartStringCacheSize)
		if err != nil {
			panic(fmt.Sprintf("codec: failed to allocate smart string cache: %v", err))
		}
		smartStringCache = c
	})
	return smartStringCache
}

// EncodeSmartString scans input and picks the cheapest lossless
// representation: dictionary sigil, pass-through, percent-encoded ("u:"),
// or base64 ("b:"). The choice is a pure function of the input; results
// are memoized in a bounded LRU.
func EncodeSmartString(s string) string {
	if encoded, ok := cache().Get(s); ok {
		return encoded
	}

	encoded := encodeSmartString(s)
	cache().Add(s, encoded)
	return encoded
}

func encodeSmartString(s string) string {
	if sigil, ok := dictionary[s]; ok {
		return sigil
	}

	switch classify(s) {
	case classASCII:
		// ASCII that already reads like an encoded form would be misread by
		// DecodeSmartString, so it is base64-packed instead.
		if _, isSigil := reverseDictionary[s]; isSigil || strings.HasPrefix(s, "u:") || strings.HasPrefix(s, "b:") {
			return "b:" + base64StdEncode(s)
		}
		return s
	case classLatin1:
		return "u:" + url.QueryEscape(s)
	default:
		return "b:" + base64StdEncode(s)
	}
}

type stringClass int

const (
	classASCII stringClass = iota
	classLatin1
	classBinary
)

// classify inspects decoded runes, not raw UTF-8 bytes: a multi-byte rune
// like an emoji must land in the binary class even though each of its
// bytes fits in 0x00–0xFF. Invalid UTF-8 is binary as well.
func classify(s string) stringClass {
	allASCII := true
	allLatin1 := true
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		if r == utf8.RuneError && size == 1 {
			return classBinary
		}
		if r < 0x20 || r > 0x7E {
			allASCII = false
		}
		if r > 0xFF {
			allLatin1 = false
		}
		i += size
	}
	if allASCII {
		return classASCII
	}
	if allLatin1 {
		return classLatin1
	}
	return classBinary
}

// DecodeSmartString is the inverse of EncodeSmartString. It peeks at most
// two prefix bytes before dispatching: dictionary sigils are matched
// whole, then "u:"/"b:" prefixes, else the value is returned as-is.
func DecodeSmartString(s string) (string, error) {
	if original, ok := reverseDictionary[s]; ok {
		return original, nil
	}

	if len(s) >= 2 {
		switch s[:2] {
		case "u:":
			decoded, err := url.QueryUnescape(s[2:])
			if err != nil {
				return "", fmt.Errorf("%w: invalid percent-encoding: %v", ErrEncoding, err)
			}
			return decoded, nil
		case "b:":
			decoded, err := base64StdDecode(s[2:])
			if err != nil {
				return "", fmt.Errorf("%w: invalid base64: %v", ErrEncoding, err)
			}
			return decoded, nil
		}
	}

	return s, nil
}
