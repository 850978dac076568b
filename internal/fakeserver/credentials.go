package fakeserver

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// argonParams mirrors the production-grade argon2id tuning a real
// credential store would use for a client's apiSecret.
type argonParams struct {
	memory      uint32
	time        uint32
	parallelism uint8
	saltLen     int
	keyLen      uint32
}

var defaultArgon = argonParams{memory: 64 * 1024, time: 3, parallelism: 1, saltLen: 16, keyLen: 32}

func hashSecret(secret string) (string, error) {
	salt := make([]byte, defaultArgon.saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	key := argon2.IDKey([]byte(secret), salt, defaultArgon.time, defaultArgon.memory, defaultArgon.parallelism, defaultArgon.keyLen)
	return fmt.Sprintf("argon2id$m=%d,t=%d,p=%d$%s$%s",
		defaultArgon.memory, defaultArgon.time, defaultArgon.parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

var errInvalidHash = errors.New("fakeserver: invalid secret hash")

func verifySecret(secret, encoded string) (bool, error) {
	const prefix = "argon2id$"
	if !strings.HasPrefix(encoded, prefix) {
		return false, errInvalidHash
	}
	parts := strings.Split(encoded[len(prefix):], "$")
	if len(parts) != 3 {
		return false, errInvalidHash
	}

	var m, t uint32
	var p uint8
	if _, err := fmt.Sscanf(parts[0], "m=%d,t=%d,p=%d", &m, &t, &p); err != nil {
		return false, errInvalidHash
	}
	salt, err := base64.RawStdEncoding.DecodeString(parts[1])
	if err != nil {
		return false, errInvalidHash
	}
	keyRef, err := base64.RawStdEncoding.DecodeString(parts[2])
	if err != nil {
		return false, errInvalidHash
	}

	key := argon2.IDKey([]byte(secret), salt, t, m, p, uint32(len(keyRef)))
	return subtle.ConstantTimeCompare(key, keyRef) == 1, nil
}
