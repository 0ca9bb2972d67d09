package vapid

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// ErrDecode is returned for input that is not valid base64url.
var ErrDecode = errors.New("malformed base64url")

var (
	toStd = strings.NewReplacer("-", "+", "_", "/")
	toURL = strings.NewReplacer("+", "-", "/", "_")
)

// Decode decodes unpadded URL-safe base64. Padded input and the standard
// alphabet are accepted too, since browsers and key generators disagree.
func Decode(s string) ([]byte, error) {
	s = toStd.Replace(strings.TrimRight(s, "="))
	if n := len(s) % 4; n != 0 {
		s += strings.Repeat("=", 4-n)
	}
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return b, nil
}

// Encode encodes b as unpadded URL-safe base64.
func Encode(b []byte) string {
	return strings.TrimRight(toURL.Replace(base64.StdEncoding.EncodeToString(b)), "=")
}
