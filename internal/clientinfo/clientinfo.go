// Package clientinfo looks up another client's public identity: its
// encryption (and, for v2, signing) public key.
package clientinfo

import (
	"context"
	"fmt"
	"net/http"
	"regexp"

	"github.com/tozny/e3db-go/e3errors"
	"github.com/tozny/e3db-go/internal/transport"
)

// looksLikeEmail is a deliberately loose check: anything containing an "@"
// is treated as an email lookup, which this wire version does not support.
var looksLikeEmail = regexp.MustCompile(`@`)

// Info is a client's public identity as returned by the server.
type Info struct {
	ClientID   string        `json:"client_id"`
	PublicKey  Curve25519Key `json:"public_key"`
	SigningKey *Ed25519Key   `json:"signing_key,omitempty"`
	Validated  bool          `json:"validated"`
}

// Curve25519Key wraps the nested {curve25519: "b64u"} key encoding used
// throughout the wire protocol.
type Curve25519Key struct {
	Curve25519 string `json:"curve25519"`
}

// Ed25519Key wraps the nested {ed25519: "b64u"} key encoding.
type Ed25519Key struct {
	Ed25519 string `json:"ed25519"`
}

// Lookup is the client-info collaborator's single operation.
type Lookup struct {
	tr *transport.Transport
}

// New builds a Lookup bound to tr.
func New(tr *transport.Transport) *Lookup {
	return &Lookup{tr: tr}
}

// Get fetches a ClientInfo by clientId. Email-shaped ids are rejected
// before any network call, matching this wire version's lack of
// email-based discovery.
func (l *Lookup) Get(ctx context.Context, clientID string) (Info, error) {
	if looksLikeEmail.MatchString(clientID) {
		return Info{}, e3errors.New(e3errors.EmailLookupUnsupported, "ClientInfo.Get", nil)
	}

	var info Info
	resp, err := l.tr.DoJSON(ctx, http.MethodGet, "/v1/storage/clients/"+clientID, nil, nil, &info, transport.AuthBearer)
	if err != nil {
		return Info{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return Info{}, e3errors.New(e3errors.TransportError, "ClientInfo.Get", fmt.Errorf("unexpected status %d", resp.StatusCode))
	}
	return info, nil
}
