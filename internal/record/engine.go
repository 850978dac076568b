package record

import (
	"context"
	"crypto/ed25519"
	"net/http"
	"net/url"

	"github.com/tozny/e3db-go/e3errors"
	"github.com/tozny/e3db-go/internal/akmanager"
	"github.com/tozny/e3db-go/internal/cryptobox"
	"github.com/tozny/e3db-go/internal/transport"
)

// SigningConfig carries the fields of the bound Config the engine needs to
// sign and verify, so this package doesn't depend on the config package
// (which would be a reverse dependency: config is a leaf type).
type SigningConfig struct {
	ClientID       string
	Version        int // 1 or 2
	PrivateSignKey ed25519.PrivateKey
	PublicSignKey  ed25519.PublicKey
}

// Engine is the Record Engine (C5): it builds, signs, encrypts, decrypts,
// and round-trips records against the server, orchestrating the AK
// Manager for every operation that touches field data.
type Engine struct {
	tr  *transport.Transport
	ak  *akmanager.Manager
	cfg SigningConfig
}

// New builds an Engine bound to tr (for server round trips), ak (for AK
// lifecycle), and cfg (this client's identity and signing keys).
func New(tr *transport.Transport, ak *akmanager.Manager, cfg SigningConfig) *Engine {
	return &Engine{tr: tr, ak: ak, cfg: cfg}
}

// Write builds a fresh record of recType from plaintext data and plain
// meta, ensures an AK exists for (self,self,recType), encrypts, signs (v2
// only), and POSTs it. The returned Record has plaintext data, decrypted
// from the server's echo.
func (e *Engine) Write(ctx context.Context, recType string, data Data, plain map[string]string) (Record, error) {
	meta := Meta{WriterID: e.cfg.ClientID, UserID: e.cfg.ClientID, Type: recType, Plain: plain}

	ak, err := e.ensureSelfAK(ctx, recType)
	if err != nil {
		return Record{}, err
	}

	encData, err := EncryptData(data, ak)
	if err != nil {
		return Record{}, err
	}

	rec := Record{Meta: meta, Data: encData}
	if e.cfg.Version == 2 {
		sig, err := Sign(meta, data, e.cfg.PrivateSignKey)
		if err != nil {
			return Record{}, err
		}
		rec.Signature = sig
	}

	var echoed Record
	resp, err := e.tr.DoJSON(ctx, http.MethodPost, "/v1/storage/records", nil, rec, &echoed, transport.AuthBearer)
	if err != nil {
		return Record{}, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Record{}, e3errors.New(e3errors.TransportError, "Engine.Write", errStatusf(resp.StatusCode))
	}

	return e.decryptEchoed(ctx, echoed)
}

// Read fetches a record by id, optionally restricted to a subset of
// fields, and decrypts it via the AK for its (writerId,userId,type).
func (e *Engine) Read(ctx context.Context, recordID string, fields []string) (Record, error) {
	q := url.Values{}
	for _, f := range fields {
		q.Add("field", f)
	}

	var rec Record
	resp, err := e.tr.DoJSON(ctx, http.MethodGet, "/v1/storage/records/"+recordID, q, nil, &rec, transport.AuthBearer)
	if err != nil {
		return Record{}, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Record{}, e3errors.New(e3errors.TransportError, "Engine.Read", errStatusf(resp.StatusCode))
	}

	return e.decryptEchoed(ctx, rec)
}

// Update re-signs (v2) and re-encrypts record under its existing AK (AKs
// are never rotated by Update) and PUTs it using optimistic concurrency.
// A 409 from the server surfaces as e3errors.Conflict.
func (e *Engine) Update(ctx context.Context, rec Record, plainData Data) (Record, error) {
	if rec.Meta.RecordID == "" {
		return Record{}, e3errors.New(e3errors.MalformedEnvelope, "Engine.Update", errMissingField("meta.record_id"))
	}
	if rec.Meta.Version == "" {
		return Record{}, e3errors.New(e3errors.MalformedEnvelope, "Engine.Update", errMissingField("meta.version"))
	}

	ak, ok, err := e.ak.Get(ctx, rec.Meta.WriterID, rec.Meta.UserID, e.cfg.ClientID, rec.Meta.Type)
	if err != nil {
		return Record{}, err
	}
	if !ok {
		return Record{}, e3errors.New(e3errors.NoAccess, "Engine.Update", nil)
	}

	encData, err := EncryptData(plainData, ak)
	if err != nil {
		return Record{}, err
	}

	toSend := rec
	toSend.Data = encData
	if e.cfg.Version == 2 {
		sig, err := Sign(rec.Meta, plainData, e.cfg.PrivateSignKey)
		if err != nil {
			return Record{}, err
		}
		toSend.Signature = sig
	}

	path := "/v1/storage/records/safe/" + rec.Meta.RecordID + "/" + rec.Meta.Version
	var echoed Record
	resp, err := e.tr.DoJSON(ctx, http.MethodPut, path, nil, toSend, &echoed, transport.AuthBearer)
	if err != nil {
		return Record{}, err
	}
	switch {
	case resp.StatusCode == http.StatusConflict:
		return Record{}, e3errors.New(e3errors.Conflict, "Engine.Update", nil)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return Record{}, e3errors.New(e3errors.TransportError, "Engine.Update", errStatusf(resp.StatusCode))
	}

	return e.decryptEchoed(ctx, echoed)
}

// Delete removes a record. version == "" performs an unsafe delete; a
// non-empty version performs a safe, optimistic-concurrency delete. 204
// and 403 both count as success (idempotent delete); 409 surfaces as
// Conflict.
func (e *Engine) Delete(ctx context.Context, recordID, version string) error {
	path := "/v1/storage/records/" + recordID
	if version != "" {
		path = "/v1/storage/records/safe/" + recordID + "/" + version
	}

	resp, err := e.tr.DoJSON(ctx, http.MethodDelete, path, nil, nil, nil, transport.AuthBearer)
	if err != nil {
		return err
	}
	switch resp.StatusCode {
	case http.StatusNoContent, http.StatusForbidden:
		return nil
	case http.StatusConflict:
		return e3errors.New(e3errors.Conflict, "Engine.Delete", nil)
	default:
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return nil
		}
		return e3errors.New(e3errors.TransportError, "Engine.Delete", errStatusf(resp.StatusCode))
	}
}

// Encrypt is the offline variant of field encryption: given plaintext meta
// and data and a caller-supplied AK, produce the wire-encoded Record
// without any server round trip.
func (e *Engine) Encrypt(meta Meta, data Data, ak [32]byte) (Record, error) {
	encData, err := EncryptData(data, ak)
	if err != nil {
		return Record{}, err
	}
	rec := Record{Meta: meta, Data: encData}
	if e.cfg.Version == 2 {
		sig, err := Sign(meta, data, e.cfg.PrivateSignKey)
		if err != nil {
			return Record{}, err
		}
		rec.Signature = sig
	}
	return rec, nil
}

// Decrypt is the offline variant of field decryption: given a caller
// -supplied AK and (for v2) the signer's public signing key, decrypt every
// field and verify the signature. Signature failure surfaces as
// SignatureInvalid; a v2 record's signature is mandatory, a v1 record's
// absence is not checked here (callers decide whether to call Verify
// based on config version, same as Sign).
func (e *Engine) Decrypt(rec Record, ak [32]byte, signerPub ed25519.PublicKey) (Record, error) {
	plain, err := DecryptData(rec.Data, ak)
	if err != nil {
		return Record{}, err
	}
	out := rec
	out.Data = plain

	if rec.Signature != "" {
		if signerPub == nil {
			return Record{}, e3errors.New(e3errors.SignatureUnavailable, "Engine.Decrypt", nil)
		}
		if err := Verify(rec.Meta, plain, rec.Signature, signerPub); err != nil {
			return Record{}, err
		}
	}
	return out, nil
}

// ensureSelfAK returns the AK for (self,self,recType), creating and
// self-wrapping a fresh one if absent.
func (e *Engine) ensureSelfAK(ctx context.Context, recType string) ([32]byte, error) {
	ak, ok, err := e.ak.Get(ctx, e.cfg.ClientID, e.cfg.ClientID, e.cfg.ClientID, recType)
	if err != nil {
		return [32]byte{}, err
	}
	if ok {
		return ak, nil
	}

	fresh, err := cryptobox.RandomSecretboxKey()
	if err != nil {
		return [32]byte{}, e3errors.New(e3errors.TransportError, "Engine.ensureSelfAK", err)
	}
	if err := e.ak.Put(ctx, e.cfg.ClientID, e.cfg.ClientID, e.cfg.ClientID, recType, akmanager.AK(fresh)); err != nil {
		return [32]byte{}, err
	}
	return fresh, nil
}

// decryptEchoed decrypts a record freshly returned by the server (write,
// read, or update echo), fetching its AK by (writerId,userId,type) and
// verifying the signature when present.
func (e *Engine) decryptEchoed(ctx context.Context, rec Record) (Record, error) {
	ak, ok, err := e.ak.Get(ctx, rec.Meta.WriterID, rec.Meta.UserID, e.cfg.ClientID, rec.Meta.Type)
	if err != nil {
		return Record{}, err
	}
	if !ok {
		return Record{}, e3errors.New(e3errors.NoAccess, "Engine.decryptEchoed", nil)
	}

	var signerPub ed25519.PublicKey
	if rec.Meta.WriterID == e.cfg.ClientID {
		signerPub = e.cfg.PublicSignKey
	}
	return e.Decrypt(rec, ak, signerPub)
}
