package vapid

import (
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/url"
	"time"

	"golang.org/x/crypto/cryptobyte"
	"golang.org/x/crypto/cryptobyte/asn1"
)

// ErrSigningFailed is returned when a VAPID token cannot be signed.
var ErrSigningFailed = errors.New("VAPID token signing failed")

// TokenLifetime is how long a VAPID token stays valid. RFC 8292 caps it at 24h.
const TokenLifetime = 12 * time.Hour

// encoded {"typ":"JWT","alg":"ES256"}
var tokenHeader = Encode([]byte(`{"typ":"JWT","alg":"ES256"}`))

// Claims is the VAPID claim set. Field order is the wire order.
type Claims struct {
	Aud string `json:"aud"`
	Exp int64  `json:"exp"`
	Sub string `json:"sub"`
}

// Audience returns the origin (scheme://host) of a push endpoint.
func Audience(endpoint string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("invalid endpoint: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("invalid endpoint %q: missing scheme or host", endpoint)
	}
	return u.Scheme + "://" + u.Host, nil
}

// Token builds a compact ES256 JWS scoped to the origin of endpoint.
func (s *Signer) Token(endpoint, subject string, now time.Time) (string, error) {
	aud, err := Audience(endpoint)
	if err != nil {
		return "", err
	}
	payload, err := json.Marshal(Claims{
		Aud: aud,
		Exp: now.Add(TokenLifetime).Unix(),
		Sub: subject,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSigningFailed, err)
	}

	signingInput := tokenHeader + "." + Encode(payload)
	sig, err := s.sign([]byte(signingInput))
	if err != nil {
		return "", err
	}
	return signingInput + "." + Encode(sig), nil
}

// sign returns the JOSE form of an ECDSA P-256 signature: r and s, each
// left-padded to 32 bytes.
func (s *Signer) sign(input []byte) ([]byte, error) {
	digest := sha256.Sum256(input)
	der, err := ecdsa.SignASN1(rand.Reader, s.key, digest[:])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSigningFailed, err)
	}

	var (
		r, sv = new(big.Int), new(big.Int)
		inner cryptobyte.String
	)
	in := cryptobyte.String(der)
	if !in.ReadASN1(&inner, asn1.SEQUENCE) || !in.Empty() ||
		!inner.ReadASN1Integer(r) || !inner.ReadASN1Integer(sv) || !inner.Empty() {
		return nil, fmt.Errorf("%w: malformed ASN.1 signature", ErrSigningFailed)
	}

	sig := make([]byte, 2*privateKeySize)
	r.FillBytes(sig[:privateKeySize])
	sv.FillBytes(sig[privateKeySize:])
	return sig, nil
}

// Header formats the Authorization header value for a token.
func Header(token, publicKey string) string {
	return "vapid t=" + token + ", k=" + publicKey
}
