package fakeserver_test

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/tozny/e3db-go/client"
	"github.com/tozny/e3db-go/internal/config"
	"github.com/tozny/e3db-go/internal/fakeserver"
	"github.com/tozny/e3db-go/internal/query"
)

func newTestServer(t *testing.T) (*fakeserver.Server, *httptest.Server) {
	t.Helper()
	srv, err := fakeserver.NewServer(fakeserver.NewMemoryStore())
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	hs := httptest.NewServer(srv)
	t.Cleanup(hs.Close)
	return srv, hs
}

// seedIdentity registers clientID's credentials with srv and returns the
// config a Client can be built from. Called once per distinct identity;
// called a second time for the same identity it would re-seed the same
// client record, which is why the revoke test below builds its second,
// cache-cold instance straight from the same cfg value rather than
// re-seeding.
func seedIdentity(t *testing.T, srv *fakeserver.Server, hs *httptest.Server, clientID string) config.Config {
	t.Helper()
	pub, priv, err := client.GenerateKeypair()
	if err != nil {
		t.Fatalf("GenerateKeypair: %v", err)
	}
	apiKeyID := clientID + "-key"
	apiSecret := clientID + "-secret"
	if err := srv.SeedClient(clientID, apiKeyID, apiSecret, pub, ""); err != nil {
		t.Fatalf("SeedClient: %v", err)
	}
	return config.Config{
		ClientID: clientID, APIKeyID: apiKeyID, APISecret: apiSecret,
		PublicKey: pub, PrivateKey: priv, APIURL: hs.URL, Version: config.V1,
	}
}

func buildClient(t *testing.T, cfg config.Config) *client.Client {
	t.Helper()
	c, err := client.New(cfg)
	if err != nil {
		t.Fatalf("client.New: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestWriteThenRead(t *testing.T) {
	srv, hs := newTestServer(t)
	alice := buildClient(t, seedIdentity(t, srv, hs, "alice"))

	written, err := alice.Write(context.Background(), "test.note", map[string]string{"body": "hello"}, nil)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if written.Meta.RecordID == "" {
		t.Fatal("expected a record id to be assigned")
	}

	read, err := alice.Read(context.Background(), written.Meta.RecordID)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if read.Data["body"] != "hello" {
		t.Fatalf("got data %v, want body=hello", read.Data)
	}
}

func TestShareThenRevoke(t *testing.T) {
	srv, hs := newTestServer(t)
	aliceCfg := seedIdentity(t, srv, hs, "alice")
	bobCfg := seedIdentity(t, srv, hs, "bob")

	alice := buildClient(t, aliceCfg)
	bob := buildClient(t, bobCfg)

	written, err := alice.Write(context.Background(), "test.secret", map[string]string{"k": "v"}, nil)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	if err := alice.Share(context.Background(), "test.secret", "bob"); err != nil {
		t.Fatalf("Share: %v", err)
	}

	read, err := bob.Read(context.Background(), written.Meta.RecordID)
	if err != nil {
		t.Fatalf("Bob Read after share: %v", err)
	}
	if read.Data["k"] != "v" {
		t.Fatalf("got data %v, want k=v", read.Data)
	}

	if err := alice.Revoke(context.Background(), "test.secret", "bob"); err != nil {
		t.Fatalf("Revoke: %v", err)
	}

	// A fresh Bob instance over the same identity carries no cached AK
	// from the pre-revoke read, so its Read goes straight to the
	// (now revoked) server state.
	bobAfterRevoke := buildClient(t, bobCfg)
	if _, err := bobAfterRevoke.Read(context.Background(), written.Meta.RecordID); err == nil {
		t.Fatal("expected read to fail for a cache-cold client after revoke")
	}
}

func TestQueryReturnsOwnRecords(t *testing.T) {
	srv, hs := newTestServer(t)
	alice := buildClient(t, seedIdentity(t, srv, hs, "alice"))

	for i := 0; i < 3; i++ {
		if _, err := alice.Write(context.Background(), "test.item", map[string]string{"n": "x"}, nil); err != nil {
			t.Fatalf("Write %d: %v", i, err)
		}
	}

	cur := alice.Query(query.Params{IncludeData: true, WriterIDs: []string{"alice"}})
	var total int
	for {
		page, err := cur.Next(context.Background())
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if len(page) == 0 {
			break
		}
		total += len(page)
	}
	if total != 3 {
		t.Fatalf("got %d records, want 3", total)
	}
}

func TestRegisterAndBackup(t *testing.T) {
	srv, hs := newTestServer(t)

	if err := srv.AddRegistrationToken("tok-1"); err != nil {
		t.Fatalf("AddRegistrationToken: %v", err)
	}

	backupTarget := seedIdentity(t, srv, hs, "backup-account")
	srv.SetBackupTarget(backupTarget.ClientID)

	pub, priv, err := client.GenerateKeypair()
	if err != nil {
		t.Fatalf("GenerateKeypair: %v", err)
	}

	details, err := client.Register(context.Background(), hs.URL, "tok-1", "new-client", pub, priv, "", "", backupTarget.ClientID)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if details.ClientID == "" {
		t.Fatal("expected a client id to be assigned")
	}

	if _, err := client.Register(context.Background(), hs.URL, "tok-1", "reused-token", pub, priv, "", "", backupTarget.ClientID); err == nil {
		t.Fatal("expected reusing a consumed registration token to fail")
	}
}
