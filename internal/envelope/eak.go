// Package envelope implements the two dotted-string wire encodings used by
// this protocol: the EAK (one sealed access key) and the field envelope
// (one encrypted record field).
package envelope

import (
	"strings"

	"github.com/tozny/e3db-go/e3errors"
	"github.com/tozny/e3db-go/internal/cryptobox"
)

// EAK is the decoded form of "b64u(ciphertext).b64u(nonce)": an access key
// sealed with crypto_box for a specific reader.
type EAK struct {
	Ciphertext []byte
	Nonce      [24]byte
}

// Encode renders an EAK as "b64u(ct).b64u(nonce)".
func (e EAK) Encode() string {
	return cryptobox.B64Encode(e.Ciphertext) + "." + cryptobox.B64Encode(e.Nonce[:])
}

// DecodeEAK parses the dotted EAK wire form. Returns a MalformedEnvelope
// error on any parse failure.
func DecodeEAK(s string) (EAK, error) {
	parts := strings.Split(s, ".")
	if len(parts) != 2 {
		return EAK{}, e3errors.New(e3errors.MalformedEnvelope, "DecodeEAK", errWrongArity(2, len(parts)))
	}
	ct, err := cryptobox.B64Decode(parts[0])
	if err != nil {
		return EAK{}, e3errors.New(e3errors.MalformedEnvelope, "DecodeEAK", err)
	}
	nonceBytes, err := cryptobox.B64Decode(parts[1])
	if err != nil {
		return EAK{}, e3errors.New(e3errors.MalformedEnvelope, "DecodeEAK", err)
	}
	if len(nonceBytes) != cryptobox.NonceSize {
		return EAK{}, e3errors.New(e3errors.MalformedEnvelope, "DecodeEAK", errBadNonceSize(len(nonceBytes)))
	}
	var nonce [24]byte
	copy(nonce[:], nonceBytes)
	return EAK{Ciphertext: ct, Nonce: nonce}, nil
}
