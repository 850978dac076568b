package sharing

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/tozny/e3db-go/e3errors"
	"github.com/tozny/e3db-go/internal/akmanager"
	"github.com/tozny/e3db-go/internal/clientinfo"
	"github.com/tozny/e3db-go/internal/cryptobox"
	"github.com/tozny/e3db-go/internal/transport"
)

type fakePolicyServer struct {
	mu        sync.Mutex
	selfPub   [32]byte
	readerPub [32]byte
	eaks      map[string]string
	policies  map[string]string // path -> "allow" | "deny"
	order     []string
}

func newFakePolicyServer(selfPub, readerPub [32]byte) *fakePolicyServer {
	return &fakePolicyServer{selfPub: selfPub, readerPub: readerPub, eaks: make(map[string]string), policies: make(map[string]string)}
}

func (f *fakePolicyServer) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		switch {
		case r.URL.Path == "/v1/auth/token":
			json.NewEncoder(w).Encode(map[string]interface{}{"access_token": "tok", "expires_at": 9999999999})
		case r.URL.Path == "/v1/storage/clients/self-1":
			json.NewEncoder(w).Encode(clientinfo.Info{ClientID: "self-1", PublicKey: clientinfo.Curve25519Key{Curve25519: cryptobox.B64Encode(f.selfPub[:])}})
		case r.URL.Path == "/v1/storage/clients/reader-1":
			json.NewEncoder(w).Encode(clientinfo.Info{ClientID: "reader-1", PublicKey: clientinfo.Curve25519Key{Curve25519: cryptobox.B64Encode(f.readerPub[:])}})
		case r.Method == http.MethodPut && len(r.URL.Path) > len("/v1/storage/access_keys/") && r.URL.Path[:len("/v1/storage/access_keys/")] == "/v1/storage/access_keys/":
			var body struct {
				EAK string `json:"eak"`
			}
			json.NewDecoder(r.Body).Decode(&body)
			f.eaks[r.URL.Path] = body.EAK
			f.order = append(f.order, "ak_put:"+r.URL.Path)
			w.WriteHeader(http.StatusOK)
		case r.Method == http.MethodDelete && len(r.URL.Path) > len("/v1/storage/access_keys/") && r.URL.Path[:len("/v1/storage/access_keys/")] == "/v1/storage/access_keys/":
			delete(f.eaks, r.URL.Path)
			f.order = append(f.order, "ak_delete:"+r.URL.Path)
			w.WriteHeader(http.StatusNoContent)
		case r.Method == http.MethodPut && len(r.URL.Path) > len("/v1/storage/policy/") && r.URL.Path[:len("/v1/storage/policy/")] == "/v1/storage/policy/":
			var body policyRequest
			json.NewDecoder(r.Body).Decode(&body)
			kind := "deny"
			if len(body.Allow) > 0 {
				kind = "allow"
			}
			f.policies[r.URL.Path] = kind
			f.order = append(f.order, "policy_"+kind+":"+r.URL.Path)
			w.WriteHeader(http.StatusOK)
		case r.URL.Path == "/v1/storage/policy/outgoing":
			json.NewEncoder(w).Encode([]OutgoingEntry{{ReaderID: "reader-1", Type: "t"}})
		case r.URL.Path == "/v1/storage/policy/incoming":
			json.NewEncoder(w).Encode([]IncomingEntry{})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}
}

func newTestController(t *testing.T) (*Controller, *fakePolicyServer, func()) {
	t.Helper()
	selfPub, selfPriv, _ := cryptobox.BoxKeypair()
	readerPub, _, _ := cryptobox.BoxKeypair()
	f := newFakePolicyServer(*selfPub, *readerPub)
	srv := httptest.NewServer(f.handler())

	tr := transport.New(srv.URL, "k", "s", transport.WithHTTPClient(srv.Client()))
	ak := akmanager.New(tr, clientinfo.New(tr), *selfPriv)
	c := New(tr, ak, "self-1", nil)
	return c, f, srv.Close
}

func TestShareOrdersAKPutBeforePolicyPut(t *testing.T) {
	c, f, closeFn := newTestController(t)
	defer closeFn()

	if err := c.Share(context.Background(), "t", "reader-1"); err != nil {
		t.Fatalf("Share: %v", err)
	}

	var akIdx, policyIdx int = -1, -1
	for i, ev := range f.order {
		if akIdx == -1 && len(ev) >= 6 && ev[:6] == "ak_put" {
			akIdx = i
		}
		if policyIdx == -1 && len(ev) >= 10 && ev[:10] == "policy_all" {
			policyIdx = i
		}
	}
	if akIdx == -1 || policyIdx == -1 || akIdx > policyIdx {
		t.Fatalf("expected AK put before policy PUT, got order %v", f.order)
	}
}

func TestRevokeOrdersPolicyBeforeAKDelete(t *testing.T) {
	c, f, closeFn := newTestController(t)
	defer closeFn()

	if err := c.Share(context.Background(), "t", "reader-1"); err != nil {
		t.Fatalf("Share: %v", err)
	}
	f.order = nil

	if err := c.Revoke(context.Background(), "t", "reader-1"); err != nil {
		t.Fatalf("Revoke: %v", err)
	}

	var policyIdx, akDelIdx int = -1, -1
	for i, ev := range f.order {
		if policyIdx == -1 && len(ev) >= 11 && ev[:11] == "policy_deny" {
			policyIdx = i
		}
		if akDelIdx == -1 && len(ev) >= 9 && ev[:9] == "ak_delete" {
			akDelIdx = i
		}
	}
	if policyIdx == -1 || akDelIdx == -1 || policyIdx > akDelIdx {
		t.Fatalf("expected policy deny before AK delete, got order %v", f.order)
	}
}

func TestShareWithSelfIsNoOp(t *testing.T) {
	c, f, closeFn := newTestController(t)
	defer closeFn()

	if err := c.Share(context.Background(), "t", "self-1"); err != nil {
		t.Fatalf("Share(self): %v", err)
	}
	if len(f.order) != 0 {
		t.Fatalf("expected no server calls sharing with self, got %v", f.order)
	}
}

func TestShareRejectsEmailReader(t *testing.T) {
	c, _, closeFn := newTestController(t)
	defer closeFn()

	err := c.Share(context.Background(), "t", "person@example.com")
	if !e3errors.AsKind(err, e3errors.EmailLookupUnsupported) {
		t.Fatalf("expected EmailLookupUnsupported, got %v", err)
	}
}

func TestOutgoingSharingListsGrants(t *testing.T) {
	c, _, closeFn := newTestController(t)
	defer closeFn()

	out, err := c.OutgoingSharing(context.Background())
	if err != nil {
		t.Fatalf("OutgoingSharing: %v", err)
	}
	if len(out) != 1 || out[0].ReaderID != "reader-1" {
		t.Fatalf("unexpected outgoing list: %+v", out)
	}
}
