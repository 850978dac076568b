package envelope

import (
	"strings"

	"github.com/tozny/e3db-go/e3errors"
	"github.com/tozny/e3db-go/internal/cryptobox"
)

// Field is the decoded form of one encrypted record field:
// "b64u(EDK).b64u(EDKnonce).b64u(EF).b64u(EFnonce)".
//
// EDK is the field's one-time data key (DK) sealed under the AK; EF is the
// field's plaintext value sealed under DK.
type Field struct {
	EDK       []byte
	EDKNonce  [24]byte
	EF        []byte
	EFNonce   [24]byte
}

// Encode renders a Field as the four-part dotted wire string.
func (f Field) Encode() string {
	return strings.Join([]string{
		cryptobox.B64Encode(f.EDK),
		cryptobox.B64Encode(f.EDKNonce[:]),
		cryptobox.B64Encode(f.EF),
		cryptobox.B64Encode(f.EFNonce[:]),
	}, ".")
}

// DecodeField parses the dotted field wire form. Returns a
// MalformedEnvelope error on wrong arity or invalid base64.
func DecodeField(s string) (Field, error) {
	parts := strings.Split(s, ".")
	if len(parts) != 4 {
		return Field{}, e3errors.New(e3errors.MalformedEnvelope, "DecodeField", errWrongArity(4, len(parts)))
	}

	edk, err := cryptobox.B64Decode(parts[0])
	if err != nil {
		return Field{}, e3errors.New(e3errors.MalformedEnvelope, "DecodeField", err)
	}
	edkNonceBytes, err := cryptobox.B64Decode(parts[1])
	if err != nil {
		return Field{}, e3errors.New(e3errors.MalformedEnvelope, "DecodeField", err)
	}
	ef, err := cryptobox.B64Decode(parts[2])
	if err != nil {
		return Field{}, e3errors.New(e3errors.MalformedEnvelope, "DecodeField", err)
	}
	efNonceBytes, err := cryptobox.B64Decode(parts[3])
	if err != nil {
		return Field{}, e3errors.New(e3errors.MalformedEnvelope, "DecodeField", err)
	}
	if len(edkNonceBytes) != cryptobox.NonceSize || len(efNonceBytes) != cryptobox.NonceSize {
		return Field{}, e3errors.New(e3errors.MalformedEnvelope, "DecodeField", errBadNonceSize(len(edkNonceBytes)))
	}

	var edkNonce, efNonce [24]byte
	copy(edkNonce[:], edkNonceBytes)
	copy(efNonce[:], efNonceBytes)

	return Field{EDK: edk, EDKNonce: edkNonce, EF: ef, EFNonce: efNonce}, nil
}
