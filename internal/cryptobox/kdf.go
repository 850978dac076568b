package cryptobox

import (
	"crypto/ed25519"
	"crypto/sha512"

	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/pbkdf2"
)

// kdfIterations is fixed at 1000 for wire compatibility with every other
// language implementation of this protocol. This is deliberately low by
// modern password-hashing standards: the KDF here derives deterministic
// keypairs and symmetric keys from a password, not an at-rest password
// hash, and the 1000-round figure is load-bearing for interop, not a
// tunable security parameter. Do not "fix" it to a higher count.
const kdfIterations = 1000

// KDF derives outLen bytes from password and salt via PBKDF2-HMAC-SHA512.
func KDF(password, salt []byte, outLen int) []byte {
	return pbkdf2.Key(password, salt, kdfIterations, outLen, sha512.New)
}

// DeriveSymmetricKey derives a 32-byte secretbox key from password and salt.
func DeriveSymmetricKey(password, salt []byte) [32]byte {
	var key [32]byte
	copy(key[:], KDF(password, salt, 32))
	return key
}

// DeriveSignKeypair derives an Ed25519 keypair from a 32-byte PBKDF2 seed.
func DeriveSignKeypair(password, salt []byte) (ed25519.PublicKey, ed25519.PrivateKey) {
	seed := KDF(password, salt, ed25519.SeedSize)
	priv := ed25519.NewKeyFromSeed(seed)
	pub := priv.Public().(ed25519.PublicKey)
	return pub, priv
}

// DeriveCryptoKeypair derives an X25519 keypair from a 32-byte PBKDF2 seed.
func DeriveCryptoKeypair(password, salt []byte) (pub, priv *[32]byte) {
	var sk [32]byte
	copy(sk[:], KDF(password, salt, 32))

	var pk [32]byte
	curve25519.ScalarBaseMult(&pk, &sk)

	priv = &sk
	pub = &pk
	return pub, priv
}
