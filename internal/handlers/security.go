package handlers

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
)

// SignatureHeader carries the hex HMAC-SHA256 of the request body.
const SignatureHeader = "X-Push-Signature"

// maxBodySize caps inbound JSON bodies.
const maxBodySize = 64 << 10

// validSignature checks SignatureHeader against HMAC-SHA256(body, secret).
// An empty secret disables the check.
func validSignature(r *http.Request, secret string) bool {
	if secret == "" {
		return true
	}
	sig := r.Header.Get(SignatureHeader)
	if sig == "" {
		return false
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		return false
	}
	r.Body = io.NopCloser(bytes.NewReader(body)) // restore for the decoder

	return hmac.Equal([]byte(sig), []byte(Sign(body, secret)))
}

// Sign returns the SignatureHeader value for body.
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
