// Package codec implements the bijective encoders used to pack attribute
// values into compact strings for object-store metadata. Every codec pair
// (encode, decode) satisfies decode(encode(x)) == x for all valid x.
package codec

import "errors"

// ErrEncoding is returned when an input is out of range for its codec
// (e.g. a negative integer for Base62, a latitude outside [-90, 90]).
var ErrEncoding = errors.New("codec: encoding error")
