package cryptobox

import (
	"crypto/rand"
	"errors"

	"golang.org/x/crypto/nacl/box"
)

// BoxKeySize is the size of an X25519 public or private key as used by
// BoxSeal/BoxOpen.
const BoxKeySize = 32

var ErrBoxOpenFailed = errors.New("cryptobox: box open failed (auth tag mismatch)")

// BoxSeal encrypts msg from senderPriv to recipientPub using X25519 key
// agreement followed by XSalsa20-Poly1305 (crypto_box). This is the
// primitive used to wrap an AK for a specific reader (an EAK).
func BoxSeal(msg []byte, nonce [24]byte, recipientPub, senderPriv *[32]byte) []byte {
	return box.Seal(nil, msg, &nonce, recipientPub, senderPriv)
}

// BoxOpen reverses BoxSeal. Returns ErrBoxOpenFailed if authentication
// fails (tampered ciphertext, wrong keys, or wrong nonce).
func BoxOpen(ct []byte, nonce [24]byte, senderPub, recipientPriv *[32]byte) ([]byte, error) {
	out, ok := box.Open(nil, ct, &nonce, senderPub, recipientPriv)
	if !ok {
		return nil, ErrBoxOpenFailed
	}
	return out, nil
}

// BoxKeypair generates a fresh X25519 keypair.
func BoxKeypair() (pub, priv *[32]byte, err error) {
	return box.GenerateKey(rand.Reader)
}
