package record

import (
	"github.com/tozny/e3db-go/e3errors"
	"github.com/tozny/e3db-go/internal/cryptobox"
	"github.com/tozny/e3db-go/internal/envelope"
)

// encryptField seals one field value under a fresh per-field DK, which is
// itself sealed under ak. A DK is used exactly once: one field, one write.
func encryptField(plaintext string, ak [32]byte) (string, error) {
	dk, err := cryptobox.RandomSecretboxKey()
	if err != nil {
		return "", e3errors.New(e3errors.TransportError, "record.encryptField", err)
	}
	defer cryptobox.Zero(dk[:])

	efNonce, err := cryptobox.RandomNonce()
	if err != nil {
		return "", e3errors.New(e3errors.TransportError, "record.encryptField", err)
	}
	ef := cryptobox.SecretBoxSeal([]byte(plaintext), efNonce, dk)

	edkNonce, err := cryptobox.RandomNonce()
	if err != nil {
		return "", e3errors.New(e3errors.TransportError, "record.encryptField", err)
	}
	edk := cryptobox.SecretBoxSeal(dk[:], edkNonce, ak)

	f := envelope.Field{EDK: edk, EDKNonce: edkNonce, EF: ef, EFNonce: efNonce}
	return f.Encode(), nil
}

// decryptField reverses encryptField.
func decryptField(wire string, ak [32]byte) (string, error) {
	f, err := envelope.DecodeField(wire)
	if err != nil {
		return "", err
	}

	dk, err := cryptobox.SecretBoxOpen(f.EDK, f.EDKNonce, ak)
	if err != nil {
		return "", e3errors.New(e3errors.DecryptionFailure, "record.decryptField", err)
	}
	defer cryptobox.Zero(dk)
	if len(dk) != 32 {
		return "", e3errors.New(e3errors.MalformedEnvelope, "record.decryptField", errWrongDKSize(len(dk)))
	}
	var dkArr [32]byte
	copy(dkArr[:], dk)

	plain, err := cryptobox.SecretBoxOpen(f.EF, f.EFNonce, dkArr)
	if err != nil {
		return "", e3errors.New(e3errors.DecryptionFailure, "record.decryptField", err)
	}
	return string(plain), nil
}

// EncryptData encrypts every field of d under ak, producing the wire-form
// Data ready to attach to a Record.
func EncryptData(d Data, ak [32]byte) (Data, error) {
	out := make(Data, len(d))
	for k, v := range d {
		enc, err := encryptField(v, ak)
		if err != nil {
			return nil, err
		}
		out[k] = enc
	}
	return out, nil
}

// DecryptData decrypts every field of d under ak. Fields that fail to
// decode are reported via the returned error; partial data maps (a subset
// of a record's fields, as returned by a field-selecting Read) are
// tolerated by construction: only the fields present are decrypted.
func DecryptData(d Data, ak [32]byte) (Data, error) {
	out := make(Data, len(d))
	for k, v := range d {
		dec, err := decryptField(v, ak)
		if err != nil {
			return nil, err
		}
		out[k] = dec
	}
	return out, nil
}
