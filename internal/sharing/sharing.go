// Package sharing implements the Sharing Controller (C6): granting and
// revoking per-type read access, and listing outgoing/incoming policy.
package sharing

import (
	"context"
	"net/http"
	"regexp"

	"github.com/tozny/e3db-go/e3errors"
	"github.com/tozny/e3db-go/internal/akmanager"
	"github.com/tozny/e3db-go/internal/cryptobox"
	"github.com/tozny/e3db-go/internal/transport"
)

var looksLikeEmail = regexp.MustCompile(`@`)

// AuditSink receives optional forensic entries for share/revoke events. A
// nil AuditSink on Controller disables auditing entirely, matching the
// "disabled by default" contract of the audit trail.
type AuditSink interface {
	Append(event string, fields map[string]string) error
}

type policyRule struct {
	Read map[string]interface{} `json:"read"`
}

type policyRequest struct {
	Allow []policyRule `json:"allow,omitempty"`
	Deny  []policyRule `json:"deny,omitempty"`
}

// OutgoingEntry describes one (reader, type) grant this client has issued.
type OutgoingEntry struct {
	ReaderID    string `json:"reader_id"`
	Type        string `json:"record_type"`
	DisplayName string `json:"reader_name,omitempty"`
}

// IncomingEntry describes one (writer, type) grant this client has
// received.
type IncomingEntry struct {
	WriterID    string `json:"writer_id"`
	Type        string `json:"record_type"`
	DisplayName string `json:"writer_name,omitempty"`
}

// Controller is the Sharing Controller, bound to one client's identity and
// AK cache.
type Controller struct {
	tr       *transport.Transport
	ak       *akmanager.Manager
	clientID string
	audit    AuditSink
}

// New builds a Controller. audit may be nil to disable the audit trail.
func New(tr *transport.Transport, ak *akmanager.Manager, clientID string, audit AuditSink) *Controller {
	return &Controller{tr: tr, ak: ak, clientID: clientID, audit: audit}
}

// Share grants readerID read access to every record of recType this
// client writes, creating and self-wrapping an AK first if one doesn't
// exist yet. Sharing with self is a no-op success. Sharing with an
// email-shaped id is rejected (this wire version has no email-based
// discovery).
func (c *Controller) Share(ctx context.Context, recType, readerID string) error {
	if readerID == c.clientID {
		return nil
	}
	if looksLikeEmail.MatchString(readerID) {
		return e3errors.New(e3errors.EmailLookupUnsupported, "Controller.Share", nil)
	}

	ak, err := c.ensureSelfAK(ctx, recType)
	if err != nil {
		return err
	}

	// AK put precedes policy PUT: a reader whose EAK already exists but
	// whose policy hasn't landed yet sees no records, never the reverse.
	if err := c.ak.Put(ctx, c.clientID, c.clientID, readerID, recType, ak); err != nil {
		return err
	}

	path := "/v1/storage/policy/" + c.clientID + "/" + c.clientID + "/" + readerID + "/" + recType
	req := policyRequest{Allow: []policyRule{{Read: map[string]interface{}{}}}}
	resp, err := c.tr.DoJSON(ctx, http.MethodPut, path, nil, req, nil, transport.AuthBearer)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return e3errors.New(e3errors.TransportError, "Controller.Share", errStatusf(resp.StatusCode))
	}

	c.appendAudit("share", map[string]string{"reader_id": readerID, "type": recType})
	return nil
}

// Revoke withdraws readerID's access to recType: the policy is withdrawn
// first, then the AK is deleted, so a racing reader cannot acquire new
// records before their EAK is gone.
func (c *Controller) Revoke(ctx context.Context, recType, readerID string) error {
	path := "/v1/storage/policy/" + c.clientID + "/" + c.clientID + "/" + readerID + "/" + recType
	req := policyRequest{Deny: []policyRule{{Read: map[string]interface{}{}}}}
	resp, err := c.tr.DoJSON(ctx, http.MethodPut, path, nil, req, nil, transport.AuthBearer)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return e3errors.New(e3errors.TransportError, "Controller.Revoke", errStatusf(resp.StatusCode))
	}

	if err := c.ak.Delete(ctx, c.clientID, c.clientID, readerID, recType); err != nil {
		return err
	}

	c.appendAudit("revoke", map[string]string{"reader_id": readerID, "type": recType})
	return nil
}

// OutgoingSharing lists every (reader, type) grant this client has issued.
func (c *Controller) OutgoingSharing(ctx context.Context) ([]OutgoingEntry, error) {
	var out []OutgoingEntry
	resp, err := c.tr.DoJSON(ctx, http.MethodGet, "/v1/storage/policy/outgoing", nil, nil, &out, transport.AuthBearer)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, e3errors.New(e3errors.TransportError, "Controller.OutgoingSharing", errStatusf(resp.StatusCode))
	}
	return out, nil
}

// IncomingSharing lists every (writer, type) grant this client has
// received.
func (c *Controller) IncomingSharing(ctx context.Context) ([]IncomingEntry, error) {
	var in []IncomingEntry
	resp, err := c.tr.DoJSON(ctx, http.MethodGet, "/v1/storage/policy/incoming", nil, nil, &in, transport.AuthBearer)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, e3errors.New(e3errors.TransportError, "Controller.IncomingSharing", errStatusf(resp.StatusCode))
	}
	return in, nil
}

func (c *Controller) ensureSelfAK(ctx context.Context, recType string) (akmanager.AK, error) {
	ak, ok, err := c.ak.Get(ctx, c.clientID, c.clientID, c.clientID, recType)
	if err != nil {
		return akmanager.AK{}, err
	}
	if ok {
		return ak, nil
	}

	fresh, err := cryptobox.RandomSecretboxKey()
	if err != nil {
		return akmanager.AK{}, e3errors.New(e3errors.TransportError, "Controller.ensureSelfAK", err)
	}
	if err := c.ak.Put(ctx, c.clientID, c.clientID, c.clientID, recType, akmanager.AK(fresh)); err != nil {
		return akmanager.AK{}, err
	}
	return akmanager.AK(fresh), nil
}

func (c *Controller) appendAudit(event string, fields map[string]string) {
	if c.audit == nil {
		return
	}
	// Audit failures are a local forensic concern, not a protocol failure:
	// a share/revoke that already committed server-side must not be
	// reported as failed just because the local log couldn't be appended.
	_ = c.audit.Append(event, fields)
}
