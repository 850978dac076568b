package record

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/tozny/e3db-go/e3errors"
	"github.com/tozny/e3db-go/internal/akmanager"
	"github.com/tozny/e3db-go/internal/clientinfo"
	"github.com/tozny/e3db-go/internal/cryptobox"
	"github.com/tozny/e3db-go/internal/transport"
)

// fakeStore is a minimal single-client record store backing the engine
// tests: just enough of §6's surface to exercise Write/Read/Update/Delete
// and the AK endpoints, not a stand-in for the real fake server.
type fakeStore struct {
	t          *testing.T
	clientID   string
	clientPub  [32]byte
	clientPriv [32]byte

	records map[string]Record
	eaks    map[string]string // path -> wire EAK
	nextID  int
}

func newFakeStore(t *testing.T, clientID string, pub, priv [32]byte) *fakeStore {
	return &fakeStore{
		t: t, clientID: clientID, clientPub: pub, clientPriv: priv,
		records: make(map[string]Record),
		eaks:    make(map[string]string),
	}
}

func (s *fakeStore) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/v1/auth/token":
			json.NewEncoder(w).Encode(map[string]interface{}{"access_token": "tok", "expires_at": 9999999999})
		case r.URL.Path == "/v1/storage/clients/"+s.clientID:
			json.NewEncoder(w).Encode(clientinfo.Info{
				ClientID:  s.clientID,
				PublicKey: clientinfo.Curve25519Key{Curve25519: cryptobox.B64Encode(s.clientPub[:])},
			})
		case r.Method == http.MethodPost && r.URL.Path == "/v1/storage/records":
			s.handleCreate(w, r)
		case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/v1/storage/records/"):
			s.handleRead(w, r)
		case r.Method == http.MethodDelete && strings.HasPrefix(r.URL.Path, "/v1/storage/records/safe/"):
			s.handleSafeDelete(w, r)
		case r.Method == http.MethodPut && strings.HasPrefix(r.URL.Path, "/v1/storage/records/safe/"):
			s.handleSafeUpdate(w, r)
		case r.Method == http.MethodDelete && strings.HasPrefix(r.URL.Path, "/v1/storage/records/"):
			s.handleUnsafeDelete(w, r)
		case strings.HasPrefix(r.URL.Path, "/v1/storage/access_keys/"):
			s.handleAK(w, r)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}
}

func (s *fakeStore) handleCreate(w http.ResponseWriter, r *http.Request) {
	var rec Record
	json.NewDecoder(r.Body).Decode(&rec)
	s.nextID++
	rec.Meta.RecordID = strconv.Itoa(s.nextID)
	rec.Meta.Version = "v1"
	s.records[rec.Meta.RecordID] = rec
	json.NewEncoder(w).Encode(rec)
}

func (s *fakeStore) handleRead(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/v1/storage/records/")
	rec, ok := s.records[id]
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	json.NewEncoder(w).Encode(rec)
}

func (s *fakeStore) handleSafeUpdate(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/v1/storage/records/safe/"), "/")
	id, version := parts[0], parts[1]
	existing, ok := s.records[id]
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if existing.Meta.Version != version {
		w.WriteHeader(http.StatusConflict)
		return
	}
	var rec Record
	json.NewDecoder(r.Body).Decode(&rec)
	rec.Meta.RecordID = id
	rec.Meta.Version = version + "+"
	s.records[id] = rec
	json.NewEncoder(w).Encode(rec)
}

func (s *fakeStore) handleSafeDelete(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/v1/storage/records/safe/"), "/")
	id, version := parts[0], parts[1]
	existing, ok := s.records[id]
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if existing.Meta.Version != version {
		w.WriteHeader(http.StatusConflict)
		return
	}
	delete(s.records, id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *fakeStore) handleUnsafeDelete(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/v1/storage/records/")
	delete(s.records, id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *fakeStore) handleAK(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	switch r.Method {
	case http.MethodGet:
		wire, ok := s.eaks[path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(struct {
			EAK                 string                   `json:"eak"`
			AuthorizerPublicKey clientinfo.Curve25519Key `json:"authorizer_public_key"`
		}{
			EAK:                 wire,
			AuthorizerPublicKey: clientinfo.Curve25519Key{Curve25519: cryptobox.B64Encode(s.clientPub[:])},
		})
	case http.MethodPut:
		var body struct {
			EAK string `json:"eak"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		s.eaks[path] = body.EAK
		w.WriteHeader(http.StatusOK)
	case http.MethodDelete:
		delete(s.eaks, path)
		w.WriteHeader(http.StatusNoContent)
	}
}

func newTestEngine(t *testing.T, version int) (*Engine, *fakeStore, func()) {
	t.Helper()
	clientID := "client-1"
	pub, priv, err := cryptobox.BoxKeypair()
	if err != nil {
		t.Fatalf("BoxKeypair: %v", err)
	}
	store := newFakeStore(t, clientID, *pub, *priv)
	srv := httptest.NewServer(store.handler())

	tr := transport.New(srv.URL, "k", "s", transport.WithHTTPClient(srv.Client()))
	ak := akmanager.New(tr, clientinfo.New(tr), *priv)

	cfg := SigningConfig{ClientID: clientID, Version: version}
	if version == 2 {
		signPub, signPriv, err := cryptobox.SignKeypair()
		if err != nil {
			t.Fatalf("SignKeypair: %v", err)
		}
		cfg.PublicSignKey = signPub
		cfg.PrivateSignKey = signPriv
	}

	eng := New(tr, ak, cfg)
	return eng, store, srv.Close
}

func TestWriteThenRead(t *testing.T) {
	eng, _, closeFn := newTestEngine(t, 1)
	defer closeFn()

	written, err := eng.Write(context.Background(), "test_record", Data{"now": "2017-01-02T03:04:05Z"}, nil)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if written.Data["now"] != "2017-01-02T03:04:05Z" {
		t.Fatalf("unexpected write echo data: %+v", written.Data)
	}

	read, err := eng.Read(context.Background(), written.Meta.RecordID, nil)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if read.Data["now"] != "2017-01-02T03:04:05Z" {
		t.Fatalf("unexpected read data: %+v", read.Data)
	}
	if read.Meta.Version != written.Meta.Version {
		t.Fatalf("version mismatch: read=%q write=%q", read.Meta.Version, written.Meta.Version)
	}
}

func TestWriteSignsAndVerifiesV2(t *testing.T) {
	eng, _, closeFn := newTestEngine(t, 2)
	defer closeFn()

	written, err := eng.Write(context.Background(), "test_record", Data{"f": "v"}, nil)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if written.Signature == "" {
		t.Fatal("expected non-empty signature on v2 write echo")
	}
}

func TestUpdateBumpsVersionAndReencrypts(t *testing.T) {
	eng, _, closeFn := newTestEngine(t, 1)
	defer closeFn()

	written, err := eng.Write(context.Background(), "t", Data{"f": "v1"}, nil)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	updated, err := eng.Update(context.Background(), written, Data{"f": "v2"})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Data["f"] != "v2" {
		t.Fatalf("expected updated value v2, got %q", updated.Data["f"])
	}
	if updated.Meta.Version == written.Meta.Version {
		t.Fatal("expected version to change on update")
	}
}

func TestUpdateConflictOnStaleVersion(t *testing.T) {
	eng, _, closeFn := newTestEngine(t, 1)
	defer closeFn()

	written, err := eng.Write(context.Background(), "t", Data{"f": "v1"}, nil)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	stale := written
	stale.Meta.Version = "not-the-real-version"
	_, err = eng.Update(context.Background(), stale, Data{"f": "v2"})
	if !e3errors.AsKind(err, e3errors.Conflict) {
		t.Fatalf("expected Conflict, got %v", err)
	}
}

func TestDeleteIsIdempotent(t *testing.T) {
	eng, _, closeFn := newTestEngine(t, 1)
	defer closeFn()

	written, err := eng.Write(context.Background(), "t", Data{"f": "v"}, nil)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := eng.Delete(context.Background(), written.Meta.RecordID, ""); err != nil {
		t.Fatalf("first Delete: %v", err)
	}
	if err := eng.Delete(context.Background(), written.Meta.RecordID, ""); err != nil {
		t.Fatalf("second Delete (idempotent) should not error: %v", err)
	}
}

func TestEncryptDecryptOfflineRoundTrip(t *testing.T) {
	eng, _, closeFn := newTestEngine(t, 2)
	defer closeFn()

	ak, err := cryptobox.RandomSecretboxKey()
	if err != nil {
		t.Fatalf("RandomSecretboxKey: %v", err)
	}
	meta := Meta{WriterID: "w", UserID: "w", Type: "t"}
	data := Data{"f": "v"}

	enc, err := eng.Encrypt(meta, data, ak)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	dec, err := eng.Decrypt(enc, ak, eng.cfg.PublicSignKey)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if dec.Data["f"] != "v" {
		t.Fatalf("unexpected decrypted data: %+v", dec.Data)
	}
}
