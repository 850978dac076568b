package cryptobox

import "crypto/rand"

// SecretKeySize is the key size required by SecretBoxSeal/SecretBoxOpen.
const SecretKeySize = 32

// NonceSize is the nonce size required by both BoxSeal and SecretBoxSeal.
const NonceSize = 24

// RandomBytes returns n cryptographically random bytes from crypto/rand.
func RandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	return b, nil
}

// RandomNonce returns a fresh 24-byte nonce suitable for box or secretbox.
func RandomNonce() ([24]byte, error) {
	var nonce [24]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nonce, err
	}
	return nonce, nil
}

// RandomSecretboxKey returns a fresh 32-byte symmetric key (an AK or a DK).
func RandomSecretboxKey() ([32]byte, error) {
	var key [32]byte
	if _, err := rand.Read(key[:]); err != nil {
		return key, err
	}
	return key, nil
}
