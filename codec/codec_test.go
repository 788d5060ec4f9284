package codec

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBase62RoundTrip(t *testing.T) {
	for _, n := range []int64{0, 1, 61, 62, 1000000, 9223372036854775807} {
		encoded, err := EncodeBase62(n)
		require.NoError(t, err)

		decoded, err := DecodeBase62(encoded)
		require.NoError(t, err)
		assert.Equal(t, n, decoded)
	}
}

func TestBase62RejectsNegative(t *testing.T) {
	_, err := EncodeBase62(-1)
	assert.ErrorIs(t, err, ErrEncoding)
}

func TestFixedPointRoundTrip(t *testing.T) {
	for _, v := range []float64{0, 1.5, -1.5, 123.456789, -99999.99} {
		encoded, err := EncodeFixedPoint(v, 6)
		require.NoError(t, err)

		decoded, err := DecodeFixedPoint(encoded, 6)
		require.NoError(t, err)
		assert.InDelta(t, v, decoded, 1e-6)
	}
}

func TestMoneyRoundTrip(t *testing.T) {
	encoded, err := EncodeMoney(19999, "USD")
	require.NoError(t, err)

	currency, units, err := DecodeMoney(encoded)
	require.NoError(t, err)
	assert.Equal(t, "USD", currency)
	assert.Equal(t, int64(19999), units)
}

func TestMoneyRoundTripNegative(t *testing.T) {
	encoded, err := EncodeMoney(-500, "EUR")
	require.NoError(t, err)

	currency, units, err := DecodeMoney(encoded)
	require.NoError(t, err)
	assert.Equal(t, "EUR", currency)
	assert.Equal(t, int64(-500), units)
}

func TestGeoRoundTrip(t *testing.T) {
	lat, lon := 48.137154, 11.576124

	encLat, err := EncodeGeoLat(lat)
	require.NoError(t, err)
	decLat, err := DecodeGeoLat(encLat)
	require.NoError(t, err)
	assert.InDelta(t, lat, decLat, 1e-6)

	encLon, err := EncodeGeoLon(lon)
	require.NoError(t, err)
	decLon, err := DecodeGeoLon(encLon)
	require.NoError(t, err)
	assert.InDelta(t, lon, decLon, 1e-6)
}

func TestGeoOutOfRange(t *testing.T) {
	_, err := EncodeGeoLat(91)
	assert.ErrorIs(t, err, ErrEncoding)

	_, err = EncodeGeoLon(181)
	assert.ErrorIs(t, err, ErrEncoding)
}

func TestIPv4RoundTrip(t *testing.T) {
	ip := net.ParseIP("192.168.1.1")
	encoded, err := EncodeIPv4(ip)
	require.NoError(t, err)
	assert.Len(t, encoded, 8)

	decoded, err := DecodeIPv4(encoded)
	require.NoError(t, err)
	assert.True(t, ip.Equal(decoded))
}

func TestIPv6SmartRoundTrip(t *testing.T) {
	short := net.ParseIP("::1")
	encoded, err := EncodeIPv6Smart(short)
	require.NoError(t, err)
	assert.Equal(t, "::1", encoded)

	decoded, err := DecodeIPv6Smart(encoded)
	require.NoError(t, err)
	assert.True(t, short.Equal(decoded))

	long := net.ParseIP("2001:0db8:85a3:0000:0000:8a2e:0370:7334")
	encodedLong, err := EncodeIPv6Smart(long)
	require.NoError(t, err)

	decodedLong, err := DecodeIPv6Smart(encodedLong)
	require.NoError(t, err)
	assert.True(t, long.Equal(decodedLong))
}

func TestEmbeddingRoundTrip(t *testing.T) {
	vec := []float64{0.1, -0.25, 3.14159, 0}
	encoded, err := EncodeEmbedding(vec)
	require.NoError(t, err)

	decoded, err := DecodeEmbedding(encoded)
	require.NoError(t, err)
	require.Len(t, decoded, len(vec))
	for i := range vec {
		assert.InDelta(t, vec[i], decoded[i], 1e-6)
	}
}

func TestSmartStringPassThroughASCII(t *testing.T) {
	s := "hello world 123"
	encoded := EncodeSmartString(s)
	assert.Equal(t, s, encoded)

	decoded, err := DecodeSmartString(encoded)
	require.NoError(t, err)
	assert.Equal(t, s, decoded)
}

func TestSmartStringDictionary(t *testing.T) {
	encoded := EncodeSmartString("application/json")
	assert.Equal(t, "d:20", encoded)

	decoded, err := DecodeSmartString(encoded)
	require.NoError(t, err)
	assert.Equal(t, "application/json", decoded)
}

func TestSmartStringNonASCIIRoundTrip(t *testing.T) {
	s := "café naïve" // Latin-1-range text
	encoded := EncodeSmartString(s)
	assert.Equal(t, byte('u'), encoded[0])

	decoded, err := DecodeSmartString(encoded)
	require.NoError(t, err)
	assert.Equal(t, s, decoded)
}

func TestSmartStringBinaryRoundTrip(t *testing.T) {
	s := "emoji \U0001F600 payload"
	encoded := EncodeSmartString(s)
	assert.Equal(t, byte('b'), encoded[0])

	decoded, err := DecodeSmartString(encoded)
	require.NoError(t, err)
	assert.Equal(t, s, decoded)
}

func TestSmartStringIsIdempotentAndCached(t *testing.T) {
	s := "repeated-lookup-value"
	first := EncodeSmartString(s)
	second := EncodeSmartString(s)
	assert.Equal(t, first, second)
}
