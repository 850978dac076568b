package record

import (
	"crypto/ed25519"

	"github.com/tozny/e3db-go/e3errors"
	"github.com/tozny/e3db-go/internal/canon"
	"github.com/tozny/e3db-go/internal/cryptobox"
)

// canonicalPayload is canonical(meta_for_signing) || canonical(data) with
// no separator, the exact bytes a signature is computed and verified over.
func canonicalPayload(m Meta, d Data) ([]byte, error) {
	metaBytes, err := canon.Canonicalize(m.forSigning().canonMap())
	if err != nil {
		return nil, err
	}
	dataBytes, err := canon.Canonicalize(d.canonMap())
	if err != nil {
		return nil, err
	}
	return append(metaBytes, dataBytes...), nil
}

// Sign computes the detached Ed25519 signature over (meta, data) and
// returns it base64url-encoded, ready for Record.Signature.
func Sign(m Meta, d Data, privSignKey ed25519.PrivateKey) (string, error) {
	payload, err := canonicalPayload(m, d)
	if err != nil {
		return "", e3errors.New(e3errors.MalformedEnvelope, "record.Sign", err)
	}
	sig := cryptobox.SignDetached(privSignKey, payload)
	return cryptobox.B64Encode(sig), nil
}

// Verify checks a record's signature against the writer's published
// signing key. An empty signature is only valid for a v1 record; callers
// decide whether to call Verify based on config version.
func Verify(m Meta, d Data, signatureB64 string, pubSignKey ed25519.PublicKey) error {
	sig, err := cryptobox.B64Decode(signatureB64)
	if err != nil {
		return e3errors.New(e3errors.SignatureInvalid, "record.Verify", err)
	}
	payload, err := canonicalPayload(m, d)
	if err != nil {
		return e3errors.New(e3errors.MalformedEnvelope, "record.Verify", err)
	}
	if !cryptobox.VerifyDetached(pubSignKey, payload, sig) {
		return e3errors.New(e3errors.SignatureInvalid, "record.Verify", nil)
	}
	return nil
}
