package cryptobox

import (
	"crypto/ed25519"
	"crypto/rand"
)

// SignKeypair generates a fresh Ed25519 signing keypair.
func SignKeypair() (ed25519.PublicKey, ed25519.PrivateKey, error) {
	return ed25519.GenerateKey(rand.Reader)
}

// SignDetached returns the Ed25519 signature over msg. The signature is
// detached: it carries no copy of msg, matching the wire format's
// rec_sig field.
func SignDetached(priv ed25519.PrivateKey, msg []byte) []byte {
	return ed25519.Sign(priv, msg)
}

// VerifyDetached reports whether sig is a valid Ed25519 signature over msg
// under pub.
func VerifyDetached(pub ed25519.PublicKey, msg, sig []byte) bool {
	return ed25519.Verify(pub, msg, sig)
}
