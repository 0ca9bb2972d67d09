package vapid

import (
	"bytes"
	"crypto/ecdh"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/x509"
	"errors"
	"fmt"
	"math/big"

	"github.com/SherClockHolmes/webpush-go"
)

// ErrInvalidKeyMaterial is returned when the VAPID private key cannot be
// turned into a P-256 signing key.
var ErrInvalidKeyMaterial = errors.New("invalid VAPID key material")

// privateKeySize is the length of a raw P-256 scalar.
const privateKeySize = 32

// pkcs8Header is the DER prefix of a PKCS8 PrivateKeyInfo holding a P-256
// ECPrivateKey without the optional public key. The 32-byte scalar follows.
//
//	SEQUENCE {
//	  INTEGER 0
//	  SEQUENCE { OID 1.2.840.10045.2.1, OID 1.2.840.10045.3.1.7 }
//	  OCTET STRING { SEQUENCE { INTEGER 1, OCTET STRING (32 bytes) } }
//	}
const pkcs8Header = "\x30\x41\x02\x01\x00" +
	"\x30\x13" +
	"\x06\x07\x2a\x86\x48\xce\x3d\x02\x01" +
	"\x06\x08\x2a\x86\x48\xce\x3d\x03\x01\x07" +
	"\x04\x27\x30\x25\x02\x01\x01\x04\x20"

// KeyPair is the deployment's VAPID identity. It is loaded once from the
// environment and never mutated.
type KeyPair struct {
	PublicKey  string
	PrivateKey string
	Subject    string
}

// Signer signs VAPID tokens. It never exposes the private scalar.
type Signer struct {
	key *ecdsa.PrivateKey
}

type keyImporter func(raw []byte) (*ecdsa.PrivateKey, error)

// ImportPrivateKey turns a base64url P-256 private key into a Signer. The
// scalar is first wrapped in PKCS8; if that parse fails the raw scalar is
// imported directly.
func ImportPrivateKey(b64 string) (*Signer, error) {
	raw, err := Decode(b64)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKeyMaterial, err)
	}
	return importWith(raw, importPKCS8, importRaw)
}

func importWith(raw []byte, importers ...keyImporter) (*Signer, error) {
	if len(raw) != privateKeySize {
		return nil, fmt.Errorf("%w: private key is %d bytes, want %d", ErrInvalidKeyMaterial, len(raw), privateKeySize)
	}

	var errs []error
	for _, imp := range importers {
		key, err := imp(raw)
		if err == nil {
			return &Signer{key: key}, nil
		}
		errs = append(errs, err)
	}
	return nil, fmt.Errorf("%w: %w", ErrInvalidKeyMaterial, errors.Join(errs...))
}

func importPKCS8(raw []byte) (*ecdsa.PrivateKey, error) {
	der := make([]byte, 0, len(pkcs8Header)+len(raw))
	der = append(der, pkcs8Header...)
	der = append(der, raw...)

	parsed, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, fmt.Errorf("pkcs8 import: %w", err)
	}
	key, ok := parsed.(*ecdsa.PrivateKey)
	if !ok || key.Curve != elliptic.P256() {
		return nil, errors.New("pkcs8 import: not a P-256 ECDSA key")
	}
	// rejects the zero scalar, which the x509 parser lets through
	if _, err := key.ECDH(); err != nil {
		return nil, fmt.Errorf("pkcs8 import: %w", err)
	}
	return key, nil
}

func importRaw(raw []byte) (*ecdsa.PrivateKey, error) {
	priv, err := ecdh.P256().NewPrivateKey(raw)
	if err != nil {
		return nil, fmt.Errorf("raw import: %w", err)
	}
	// uncompressed point: 0x04 || X || Y
	pub := priv.PublicKey().Bytes()
	return &ecdsa.PrivateKey{
		PublicKey: ecdsa.PublicKey{
			Curve: elliptic.P256(),
			X:     new(big.Int).SetBytes(pub[1 : 1+privateKeySize]),
			Y:     new(big.Int).SetBytes(pub[1+privateKeySize:]),
		},
		D: new(big.Int).SetBytes(raw),
	}, nil
}

// PublicKey returns the verification key matching the signer.
func (s *Signer) PublicKey() *ecdsa.PublicKey {
	return &s.key.PublicKey
}

// MatchesPublicKey reports whether b64 is the uncompressed public point of
// the signer's key.
func (s *Signer) MatchesPublicKey(b64 string) bool {
	want, err := Decode(b64)
	if err != nil {
		return false
	}
	pub, err := s.key.PublicKey.ECDH()
	if err != nil {
		return false
	}
	return bytes.Equal(pub.Bytes(), want)
}

// GenerateKeyPair creates a fresh VAPID key pair for the given subject.
func GenerateKeyPair(subject string) (KeyPair, error) {
	privateKey, publicKey, err := webpush.GenerateVAPIDKeys()
	if err != nil {
		return KeyPair{}, fmt.Errorf("failed to generate VAPID keys: %w", err)
	}
	return KeyPair{
		PublicKey:  publicKey,
		PrivateKey: privateKey,
		Subject:    subject,
	}, nil
}
