package codec

import "encoding/base64"

func base64StdEncode(s string) string {
	return base64.StdEncoding.EncodeToString([]byte(s))
}

func base64StdDecode(s string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
