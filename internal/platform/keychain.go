// Package platform implements the Local Credential Guard (C10): optional,
// additive hardening for a process that holds a Config's decrypted
// private key material. None of it touches AKs or server state.
package platform

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

// Keychain stores and loads a client's private key material keyed by an
// arbitrary identifier (typically a client id).
type Keychain interface {
	Store(keyID string, priv []byte) error
	Load(keyID string) ([]byte, error)
}

// fileKeychain is a keychain-style Keychain backed by a directory of
// files, each sealed with XChaCha20-Poly1305 under a key expanded from
// passphrase via HKDF-SHA256 — a real OS keychain would replace this
// with a syscall-backed secure store, but this gives the same interface
// an at-rest-encrypted home to write tests against.
type fileKeychain struct {
	dir        string
	passphrase []byte
}

// NewKeychain builds a file-backed Keychain rooted at dir, sealing
// entries under passphrase. dir is created with 0700 permissions if it
// doesn't exist.
func NewKeychain(dir string, passphrase []byte) (Keychain, error) {
	if len(passphrase) == 0 {
		return nil, errors.New("platform: passphrase must not be empty")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	return &fileKeychain{dir: dir, passphrase: passphrase}, nil
}

func (f *fileKeychain) Store(keyID string, priv []byte) error {
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return err
	}
	aead, err := f.seal(salt)
	if err != nil {
		return err
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return err
	}
	ciphertext := aead.Seal(nil, nonce, priv, []byte(keyID))

	blob := make([]byte, 0, len(salt)+len(nonce)+len(ciphertext))
	blob = append(blob, salt...)
	blob = append(blob, nonce...)
	blob = append(blob, ciphertext...)

	return os.WriteFile(f.path(keyID), []byte(base64.StdEncoding.EncodeToString(blob)), 0o600)
}

func (f *fileKeychain) Load(keyID string) ([]byte, error) {
	raw, err := os.ReadFile(f.path(keyID))
	if err != nil {
		return nil, err
	}
	blob, err := base64.StdEncoding.DecodeString(string(raw))
	if err != nil {
		return nil, err
	}
	if len(blob) < 16+chacha20poly1305.NonceSizeX {
		return nil, errors.New("platform: keychain entry truncated")
	}
	salt := blob[:16]
	nonce := blob[16 : 16+chacha20poly1305.NonceSizeX]
	ciphertext := blob[16+chacha20poly1305.NonceSizeX:]

	aead, err := f.seal(salt)
	if err != nil {
		return nil, err
	}
	return aead.Open(nil, nonce, ciphertext, []byte(keyID))
}

func (f *fileKeychain) seal(salt []byte) (cipher.AEAD, error) {
	expander := hkdf.New(sha256.New, f.passphrase, salt, []byte("e3box-keychain"))
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(expander, key); err != nil {
		return nil, err
	}
	return chacha20poly1305.NewX(key)
}

func (f *fileKeychain) path(keyID string) string {
	return filepath.Join(f.dir, keyID+".keychain")
}
