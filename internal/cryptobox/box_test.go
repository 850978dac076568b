package cryptobox

import (
	"bytes"
	"testing"
)

func TestBoxSealOpenRoundTrip(t *testing.T) {
	aPub, aPriv, err := BoxKeypair()
	if err != nil {
		t.Fatalf("BoxKeypair: %v", err)
	}
	bPub, bPriv, err := BoxKeypair()
	if err != nil {
		t.Fatalf("BoxKeypair: %v", err)
	}

	nonce, err := RandomNonce()
	if err != nil {
		t.Fatalf("RandomNonce: %v", err)
	}

	msg := []byte("a 32-byte access key, roughly--")
	ct := BoxSeal(msg, nonce, bPub, aPriv)

	got, err := BoxOpen(ct, nonce, aPub, bPriv)
	if err != nil {
		t.Fatalf("BoxOpen: %v", err)
	}
	if !bytes.Equal(msg, got) {
		t.Fatal("plaintext mismatch")
	}
}

func TestBoxOpenRejectsTamperedCiphertext(t *testing.T) {
	aPub, aPriv, _ := BoxKeypair()
	bPub, bPriv, _ := BoxKeypair()
	nonce, _ := RandomNonce()

	ct := BoxSeal([]byte("payload"), nonce, bPub, aPriv)
	ct[0] ^= 0xFF

	if _, err := BoxOpen(ct, nonce, aPub, bPriv); err == nil {
		t.Fatal("expected open to fail on tampered ciphertext")
	}
}

func TestBoxOpenRejectsWrongRecipient(t *testing.T) {
	aPub, aPriv, _ := BoxKeypair()
	_, bPriv, _ := BoxKeypair()
	cPub, _, _ := BoxKeypair()
	nonce, _ := RandomNonce()

	ct := BoxSeal([]byte("payload"), nonce, cPub, aPriv)
	if _, err := BoxOpen(ct, nonce, aPub, bPriv); err == nil {
		t.Fatal("expected open to fail for a recipient the message wasn't sealed to")
	}
}
