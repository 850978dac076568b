// Package akmanager implements the per-(writer,user,type) access-key
// cache and its server-mediated CRUD, the C4 collaborator.
package akmanager

import (
	"context"
	"net/http"
	"sync"

	"github.com/tozny/e3db-go/e3errors"
	"github.com/tozny/e3db-go/internal/clientinfo"
	"github.com/tozny/e3db-go/internal/cryptobox"
	"github.com/tozny/e3db-go/internal/envelope"
	"github.com/tozny/e3db-go/internal/transport"
)

// cacheKey is the (writerId, userId, type) triple the cache is keyed by.
// The readerId is deliberately not part of the key: a client only ever
// caches AKs it can itself unseal, i.e. ones wrapped for it as reader.
type cacheKey struct {
	writerID string
	userID   string
	recType  string
}

// AK is a 32-byte secret-box key shared by every encrypted field of every
// record with a given (writerId, userId, type).
type AK [32]byte

// EAKWire is the wire schema for an EAK, tolerant of the camelCase variant
// occasionally seen from older servers on input; always encoded as the
// snake_case field on output (there is no output path in this package —
// encoding happens in Put). Exported so collaborators that receive a
// per-result EAK embedded in a larger response (the query cursor) can
// decode it without a standalone fetch.
type EAKWire struct {
	EAK                      string                    `json:"eak"`
	AuthorizerPublicKey      clientinfo.Curve25519Key  `json:"authorizer_public_key"`
	AuthorizerPublicKeyCamel *clientinfo.Curve25519Key `json:"authorizerPublicKey,omitempty"`
	SignerSigningKey         *clientinfo.Ed25519Key    `json:"signer_signing_key,omitempty"`
	AuthorizerID             string                    `json:"authorizer_id,omitempty"`
	SignerID                 string                    `json:"signer_id,omitempty"`
}

func (r EAKWire) authorizerKey() string {
	if r.AuthorizerPublicKey.Curve25519 != "" {
		return r.AuthorizerPublicKey.Curve25519
	}
	if r.AuthorizerPublicKeyCamel != nil {
		return r.AuthorizerPublicKeyCamel.Curve25519
	}
	return ""
}

type eakPutRequest struct {
	EAK string `json:"eak"`
}

// Manager owns the in-memory AK cache and its server round trips. It is
// bound to a single client's keypair and is safe for concurrent use.
type Manager struct {
	tr      *transport.Transport
	lookup  *clientinfo.Lookup
	privKey [32]byte // this client's private encryption key

	mu    sync.Mutex
	cache map[cacheKey]AK
}

// New builds a Manager. privKey is the owning client's raw X25519 private
// key, used both to unseal AKs wrapped for this client and to seal AKs
// this client shares with others.
func New(tr *transport.Transport, lookup *clientinfo.Lookup, privKey [32]byte) *Manager {
	return &Manager{
		tr:      tr,
		lookup:  lookup,
		privKey: privKey,
		cache:   make(map[cacheKey]AK),
	}
}

// Get returns the AK for (writerId, userId, type), fetching and unsealing
// it from the server on a cache miss. ok is false (with a nil error) when
// the server reports the key as absent (404).
func (m *Manager) Get(ctx context.Context, writerID, userID, readerID, recType string) (ak AK, ok bool, err error) {
	key := cacheKey{writerID, userID, recType}

	m.mu.Lock()
	if cached, hit := m.cache[key]; hit {
		m.mu.Unlock()
		return cached, true, nil
	}
	m.mu.Unlock()

	path := "/v1/storage/access_keys/" + writerID + "/" + userID + "/" + readerID + "/" + recType
	var resp EAKWire
	r, err := m.tr.DoJSON(ctx, http.MethodGet, path, nil, nil, &resp, transport.AuthBearer)
	if err != nil {
		return AK{}, false, err
	}
	if r.StatusCode == http.StatusNotFound {
		return AK{}, false, nil
	}
	if r.StatusCode < 200 || r.StatusCode >= 300 {
		return AK{}, false, e3errors.New(e3errors.TransportError, "AKManager.Get", statusf(r.StatusCode))
	}

	ak, err = m.unseal(resp)
	if err != nil {
		return AK{}, false, err
	}

	m.mu.Lock()
	m.cache[key] = ak
	m.mu.Unlock()
	return ak, true, nil
}

// GetCached consults the cache for (writerId, userId, type) and, on a
// miss, unseals the caller-supplied EAK (e.g. one embedded in a search
// result) without any network round trip, populating the cache on
// success. This is the collaborator the query cursor uses to decrypt
// results carrying their own per-result EAK.
func (m *Manager) GetCached(writerID, userID, recType string, wire EAKWire) (AK, error) {
	key := cacheKey{writerID, userID, recType}

	m.mu.Lock()
	if cached, hit := m.cache[key]; hit {
		m.mu.Unlock()
		return cached, nil
	}
	m.mu.Unlock()

	ak, err := m.unseal(wire)
	if err != nil {
		return AK{}, err
	}

	m.mu.Lock()
	m.cache[key] = ak
	m.mu.Unlock()
	return ak, nil
}

// unseal decodes and box-opens an EAK response, without touching the
// cache.
func (m *Manager) unseal(resp EAKWire) (AK, error) {
	eak, err := envelope.DecodeEAK(resp.EAK)
	if err != nil {
		return AK{}, err
	}
	authorizerPub, err := decodeKey(resp.authorizerKey())
	if err != nil {
		return AK{}, e3errors.New(e3errors.MalformedEnvelope, "AKManager.unseal", err)
	}

	plain, err := cryptobox.BoxOpen(eak.Ciphertext, eak.Nonce, &authorizerPub, &m.privKey)
	if err != nil {
		return AK{}, e3errors.New(e3errors.DecryptionFailure, "AKManager.unseal", err)
	}
	if len(plain) != 32 {
		return AK{}, e3errors.New(e3errors.MalformedEnvelope, "AKManager.unseal", errWrongAKSize(len(plain)))
	}

	var ak AK
	copy(ak[:], plain)
	cryptobox.Zero(plain)
	return ak, nil
}

// Put wraps ak for readerID (looking up readerID's public key via
// clientinfo) and PUTs the resulting EAK, caching it locally on success.
func (m *Manager) Put(ctx context.Context, writerID, userID, readerID, recType string, ak AK) error {
	info, err := m.lookup.Get(ctx, readerID)
	if err != nil {
		return err
	}
	readerPub, err := decodeKey(info.PublicKey.Curve25519)
	if err != nil {
		return e3errors.New(e3errors.MalformedEnvelope, "AKManager.Put", err)
	}

	nonce, err := cryptobox.RandomNonce()
	if err != nil {
		return e3errors.New(e3errors.TransportError, "AKManager.Put", err)
	}
	ct := cryptobox.BoxSeal(ak[:], nonce, &readerPub, &m.privKey)
	wire := envelope.EAK{Ciphertext: ct, Nonce: nonce}.Encode()

	path := "/v1/storage/access_keys/" + writerID + "/" + userID + "/" + readerID + "/" + recType
	r, err := m.tr.DoJSON(ctx, http.MethodPut, path, nil, eakPutRequest{EAK: wire}, nil, transport.AuthBearer)
	if err != nil {
		return err
	}
	if r.StatusCode < 200 || r.StatusCode >= 300 {
		return e3errors.New(e3errors.TransportError, "AKManager.Put", statusf(r.StatusCode))
	}

	m.mu.Lock()
	m.cache[cacheKey{writerID, userID, recType}] = ak
	m.mu.Unlock()
	return nil
}

// Delete removes the server EAK and, on success, the cache entry for
// (writerId, userId, type).
func (m *Manager) Delete(ctx context.Context, writerID, userID, readerID, recType string) error {
	path := "/v1/storage/access_keys/" + writerID + "/" + userID + "/" + readerID + "/" + recType
	r, err := m.tr.DoJSON(ctx, http.MethodDelete, path, nil, nil, nil, transport.AuthBearer)
	if err != nil {
		return err
	}
	if r.StatusCode != http.StatusNoContent && (r.StatusCode < 200 || r.StatusCode >= 300) {
		return e3errors.New(e3errors.TransportError, "AKManager.Delete", statusf(r.StatusCode))
	}

	m.mu.Lock()
	delete(m.cache, cacheKey{writerID, userID, recType})
	m.mu.Unlock()
	return nil
}

// Invalidate drops every cached AK, used on Client.Close.
func (m *Manager) Invalidate() {
	m.mu.Lock()
	m.cache = make(map[cacheKey]AK)
	m.mu.Unlock()
}

func decodeKey(b64 string) ([32]byte, error) {
	var out [32]byte
	raw, err := cryptobox.B64Decode(b64)
	if err != nil {
		return out, err
	}
	if len(raw) != 32 {
		return out, errWrongKeySize(len(raw))
	}
	copy(out[:], raw)
	return out, nil
}
