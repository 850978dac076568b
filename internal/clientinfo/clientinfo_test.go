package clientinfo

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/tozny/e3db-go/e3errors"
	"github.com/tozny/e3db-go/internal/transport"
)

func TestGetDecodesClientInfo(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/auth/token":
			json.NewEncoder(w).Encode(map[string]interface{}{"access_token": "tok", "expires_at": 9999999999})
		case "/v1/storage/clients/abc":
			json.NewEncoder(w).Encode(Info{
				ClientID:  "abc",
				PublicKey: Curve25519Key{Curve25519: "pubkey"},
				Validated: true,
			})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	tr := transport.New(srv.URL, "k", "s", transport.WithHTTPClient(srv.Client()))
	l := New(tr)

	info, err := l.Get(context.Background(), "abc")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if info.ClientID != "abc" || info.PublicKey.Curve25519 != "pubkey" || !info.Validated {
		t.Fatalf("unexpected info: %+v", info)
	}
}

func TestGetRejectsEmailShapedID(t *testing.T) {
	l := New(transport.New("https://example.com", "k", "s"))
	_, err := l.Get(context.Background(), "someone@example.com")
	if !e3errors.AsKind(err, e3errors.EmailLookupUnsupported) {
		t.Fatalf("expected EmailLookupUnsupported, got %v", err)
	}
}
