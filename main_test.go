package main

import (
	"errors"
	"testing"

	"rental-push-go/internal/vapid"
)

func TestCheckVAPIDKeys(t *testing.T) {
	t.Parallel()

	// RFC 8291, Appendix A application server key pair.
	valid := vapid.KeyPair{
		PublicKey:  "BP4z9KsN6nGRTbVYI_c7VJSPQTBtkgcy27mlmlMoZIIgDll6e3vCYLocInmYWAmS6TlzAC8wEqKK6PBru3jl7A8",
		PrivateKey: "yfWPiYE-n46HLnH0KqZOF1fJJU3MYrct3AELtAQ-oRw",
		Subject:    "mailto:ops@rentals.example",
	}
	if err := checkVAPIDKeys(valid); err != nil {
		t.Fatalf("checkVAPIDKeys() error: %v", err)
	}

	short := valid
	short.PrivateKey = vapid.Encode(make([]byte, 16))
	if err := checkVAPIDKeys(short); !errors.Is(err, vapid.ErrInvalidKeyMaterial) {
		t.Errorf("short key: error = %v, want ErrInvalidKeyMaterial", err)
	}

	other, err := vapid.GenerateKeyPair(valid.Subject)
	if err != nil {
		t.Fatal(err)
	}
	mismatched := valid
	mismatched.PublicKey = other.PublicKey
	if err := checkVAPIDKeys(mismatched); err == nil {
		t.Error("mismatched public key accepted")
	}
}
