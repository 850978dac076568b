package cryptobox

import (
	"bytes"
	"testing"
)

func TestSecretBoxSealOpenRoundTrip(t *testing.T) {
	key, err := RandomSecretboxKey()
	if err != nil {
		t.Fatalf("RandomSecretboxKey: %v", err)
	}
	nonce, err := RandomNonce()
	if err != nil {
		t.Fatalf("RandomNonce: %v", err)
	}

	msg := []byte("field plaintext value")
	ct := SecretBoxSeal(msg, nonce, key)

	got, err := SecretBoxOpen(ct, nonce, key)
	if err != nil {
		t.Fatalf("SecretBoxOpen: %v", err)
	}
	if !bytes.Equal(msg, got) {
		t.Fatal("plaintext mismatch")
	}
}

func TestSecretBoxOpenRejectsTamperedTag(t *testing.T) {
	key, _ := RandomSecretboxKey()
	nonce, _ := RandomNonce()
	ct := SecretBoxSeal([]byte("hello"), nonce, key)
	ct[len(ct)-1] ^= 0xFF
	if _, err := SecretBoxOpen(ct, nonce, key); err == nil {
		t.Fatal("expected failure after tag tamper")
	}
}

func TestSecretBoxSealUniqueCiphertextPerNonce(t *testing.T) {
	key, _ := RandomSecretboxKey()
	n1, _ := RandomNonce()
	n2, _ := RandomNonce()
	msg := []byte("same plaintext")

	ct1 := SecretBoxSeal(msg, n1, key)
	ct2 := SecretBoxSeal(msg, n2, key)
	if bytes.Equal(ct1, ct2) {
		t.Fatal("expected distinct ciphertexts for distinct nonces")
	}
}

func FuzzSecretBoxRejectMutations(f *testing.F) {
	f.Add([]byte("hello"))
	f.Add([]byte(""))
	f.Fuzz(func(t *testing.T, pt []byte) {
		key, err := RandomSecretboxKey()
		if err != nil {
			t.Skip()
		}
		nonce, err := RandomNonce()
		if err != nil {
			t.Skip()
		}
		ct := SecretBoxSeal(pt, nonce, key)
		got, err := SecretBoxOpen(ct, nonce, key)
		if err != nil {
			t.Fatalf("baseline open failed: %v", err)
		}
		if !bytes.Equal(pt, got) {
			t.Fatalf("roundtrip mismatch")
		}
		if len(ct) == 0 {
			return
		}
		mut := append([]byte(nil), ct...)
		mut[len(mut)-1] ^= 0xFF
		if _, err := SecretBoxOpen(mut, nonce, key); err == nil {
			t.Fatalf("mutated ciphertext opened successfully")
		}
	})
}
