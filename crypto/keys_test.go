package crypto

import (
	"crypto/sha256"
	"path/filepath"
	"testing"
)

func TestAddressRoundTrip(t *testing.T) {
	key, err := GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	addr := key.PubKey().Address()
	decoded, err := DecodeAddress(addr.String())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Raw() != addr.Raw() {
		t.Fatalf("raw mismatch: %x vs %x", decoded.Raw(), addr.Raw())
	}
	if decoded.Prefix() != AccountPrefix {
		t.Fatalf("unexpected prefix %q", decoded.Prefix())
	}
}

func TestDecodeAddressRejectsGarbage(t *testing.T) {
	if _, err := DecodeAddress(""); err == nil {
		t.Fatalf("expected error for empty address")
	}
	if _, err := DecodeAddress("nstk1notvalid"); err == nil {
		t.Fatalf("expected error for invalid checksum")
	}
}

func TestSignAndRecover(t *testing.T) {
	key, err := GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	digest := sha256.Sum256([]byte("nftstake_stake|payload|1"))
	sig, err := key.Sign(digest[:])
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	recovered, err := RecoverAddress(digest[:], sig)
	if err != nil {
		t.Fatalf("recover: %v", err)
	}
	if recovered.Raw() != key.PubKey().Address().Raw() {
		t.Fatalf("recovered address mismatch")
	}
	if _, err := RecoverAddress(digest[:], sig[:64]); err == nil {
		t.Fatalf("expected short signature to fail")
	}
}

func TestKeystoreRoundTrip(t *testing.T) {
	key, err := GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	path := filepath.Join(t.TempDir(), "keys", "operator.keystore")
	if err := SaveToKeystore(path, key, "secret"); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, err := LoadFromKeystore(path, "secret")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.PubKey().Address().Raw() != key.PubKey().Address().Raw() {
		t.Fatalf("keystore returned a different key")
	}
	if _, err := LoadFromKeystore(path, "wrong"); err == nil {
		t.Fatalf("expected wrong passphrase to fail")
	}
}
