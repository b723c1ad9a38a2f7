package ledger

import (
	"strings"
	"testing"

	"audit-chain/hashutil"
)

func TestHMACSigner(t *testing.T) {
	s := NewHMACSigner("secret")
	hash := hashutil.String("payload")

	sig, err := s.Sign(hash)
	if err != nil {
		t.Fatal(err)
	}
	again, _ := s.Sign(hash)
	if sig != again {
		t.Fatalf("keyed hash is not deterministic")
	}
	if !s.Verify(hash, sig) {
		t.Fatalf("signature did not verify")
	}
	if NewHMACSigner("other").Verify(hash, sig) {
		t.Fatalf("signature verified under another key")
	}
	if s.Verify(hashutil.String("other"), sig) {
		t.Fatalf("signature verified for another hash")
	}
}

func TestSchnorrSigner_FromKey(t *testing.T) {
	key := strings.Repeat("01", 32)
	a, err := NewSchnorrSigner(key)
	if err != nil {
		t.Fatal(err)
	}
	b, err := NewSchnorrSigner(key)
	if err != nil {
		t.Fatal(err)
	}
	if a.PublicKey() != b.PublicKey() {
		t.Fatalf("same private key produced different public keys")
	}
	if len(a.PublicKey()) != 64 {
		t.Fatalf("expected 32 byte x-only key, got %s", a.PublicKey())
	}

	hash := hashutil.String("payload")
	sig, err := a.Sign(hash)
	if err != nil {
		t.Fatal(err)
	}
	if !b.Verify(hash, sig) {
		t.Fatalf("signature did not verify with the same key")
	}

	other, err := NewSchnorrSigner(strings.Repeat("02", 32))
	if err != nil {
		t.Fatal(err)
	}
	if other.Verify(hash, sig) {
		t.Fatalf("signature verified under another key")
	}
}

func TestSchnorrSigner_RejectsBadInput(t *testing.T) {
	if _, err := NewSchnorrSigner("zz"); err == nil {
		t.Fatalf("expected error for non-hex key")
	}
	if _, err := NewSchnorrSigner("0102"); err == nil {
		t.Fatalf("expected error for short key")
	}

	s, err := NewSchnorrSigner("")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Sign("not-a-digest"); err == nil {
		t.Fatalf("expected error signing a non-digest")
	}
	if s.Verify(hashutil.String("x"), "00") {
		t.Fatalf("malformed signature verified")
	}
}
