package platform

import (
	"bytes"
	"testing"
)

func TestFileKeychainStoreLoadRoundTrip(t *testing.T) {
	kc, err := NewKeychain(t.TempDir(), []byte("correct horse battery staple"))
	if err != nil {
		t.Fatalf("NewKeychain: %v", err)
	}

	priv := []byte("super-secret-private-key-bytes-32")
	if err := kc.Store("alice", priv); err != nil {
		t.Fatalf("Store: %v", err)
	}

	got, err := kc.Load("alice")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !bytes.Equal(got, priv) {
		t.Fatalf("got %q, want %q", got, priv)
	}
}

func TestFileKeychainWrongPassphraseFails(t *testing.T) {
	dir := t.TempDir()
	kc, err := NewKeychain(dir, []byte("passphrase-one"))
	if err != nil {
		t.Fatalf("NewKeychain: %v", err)
	}
	if err := kc.Store("bob", []byte("secret")); err != nil {
		t.Fatalf("Store: %v", err)
	}

	wrong, err := NewKeychain(dir, []byte("passphrase-two"))
	if err != nil {
		t.Fatalf("NewKeychain: %v", err)
	}
	if _, err := wrong.Load("bob"); err == nil {
		t.Fatal("expected Load with the wrong passphrase to fail")
	}
}

func TestFileKeychainMissingEntry(t *testing.T) {
	kc, err := NewKeychain(t.TempDir(), []byte("passphrase"))
	if err != nil {
		t.Fatalf("NewKeychain: %v", err)
	}
	if _, err := kc.Load("nobody"); err == nil {
		t.Fatal("expected Load of a missing key id to fail")
	}
}
