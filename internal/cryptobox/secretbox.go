package cryptobox

import (
	"errors"

	"golang.org/x/crypto/nacl/secretbox"
)

var ErrSecretBoxOpenFailed = errors.New("cryptobox: secretbox open failed (auth tag mismatch)")

// SecretBoxSeal encrypts msg under key with XSalsa20-Poly1305. Used both to
// wrap a field's data key (DK) under an AK, and to wrap a field's plaintext
// under its DK.
func SecretBoxSeal(msg []byte, nonce [24]byte, key [32]byte) []byte {
	return secretbox.Seal(nil, msg, &nonce, &key)
}

// SecretBoxOpen reverses SecretBoxSeal.
func SecretBoxOpen(ct []byte, nonce [24]byte, key [32]byte) ([]byte, error) {
	out, ok := secretbox.Open(nil, ct, &nonce, &key)
	if !ok {
		return nil, ErrSecretBoxOpenFailed
	}
	return out, nil
}
