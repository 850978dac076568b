// Package client implements the Client Facade (C8): the single long-lived
// object an embedder constructs from a Config and uses for every record,
// sharing, and query operation. It owns the AK cache, the bearer-token
// slot, and references to every other collaborator.
package client

import (
	"context"
	"crypto/ed25519"

	"github.com/tozny/e3db-go/e3errors"
	"github.com/tozny/e3db-go/internal/akmanager"
	"github.com/tozny/e3db-go/internal/audit"
	"github.com/tozny/e3db-go/internal/clientinfo"
	"github.com/tozny/e3db-go/internal/config"
	"github.com/tozny/e3db-go/internal/cryptobox"
	"github.com/tozny/e3db-go/internal/query"
	"github.com/tozny/e3db-go/internal/record"
	"github.com/tozny/e3db-go/internal/sharing"
	"github.com/tozny/e3db-go/internal/transport"
)

// Client is the Client Facade: bound to one Config for its lifetime,
// owning the AK cache, the bearer token, and every other collaborator.
type Client struct {
	cfg config.Config

	tr       *transport.Transport
	lookup   *clientinfo.Lookup
	ak       *akmanager.Manager
	engine   *record.Engine
	sharing  *sharing.Controller
	auditLog *audit.Log

	transportOpts []transport.Option

	privKey  [32]byte
	privSign ed25519.PrivateKey
	pubSign  ed25519.PublicKey
}

// Option configures a Client at construction time.
type Option func(*Client)

// WithTransportOptions threads transport.Options through to the underlying
// Transport (rate limit, timeout, HTTP client, logger overrides).
func WithTransportOptions(opts ...transport.Option) Option {
	return func(c *Client) { c.transportOpts = append(c.transportOpts, opts...) }
}

// WithAudit enables the local hash-chained audit trail. Disabled (nil) by
// default, per §4.11.
func WithAudit(log *audit.Log) Option {
	return func(c *Client) { c.auditLog = log }
}

// New validates cfg and builds a Client bound to it.
func New(cfg config.Config, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	privKey, err := decodeKey(cfg.PrivateKey)
	if err != nil {
		return nil, e3errors.New(e3errors.ConfigInvalid, "client.New", err)
	}

	c := &Client{cfg: cfg, privKey: privKey}
	for _, opt := range opts {
		opt(c)
	}

	if cfg.HasSigningKeys() {
		privSign, err := decodeSignPrivate(cfg.PrivateSignKey)
		if err != nil {
			return nil, e3errors.New(e3errors.ConfigInvalid, "client.New", err)
		}
		pubSign, err := decodeSignPublic(cfg.PublicSignKey)
		if err != nil {
			return nil, e3errors.New(e3errors.ConfigInvalid, "client.New", err)
		}
		c.privSign = privSign
		c.pubSign = pubSign
	}

	c.tr = transport.New(cfg.APIURL, cfg.APIKeyID, cfg.APISecret, c.transportOpts...)
	c.lookup = clientinfo.New(c.tr)
	c.ak = akmanager.New(c.tr, c.lookup, c.privKey)
	c.engine = record.New(c.tr, c.ak, record.SigningConfig{
		ClientID:       cfg.ClientID,
		Version:        int(cfg.Version),
		PrivateSignKey: c.privSign,
		PublicSignKey:  c.pubSign,
	})
	c.sharing = sharing.New(c.tr, c.ak, cfg.ClientID, c.auditFacade())
	return c, nil
}

// Close invalidates the bearer token and drops the AK cache. Safe to call
// more than once.
func (c *Client) Close() {
	c.ak.Invalidate()
	c.tr.InvalidateToken()
}

// ClientID returns the bound Config's client id.
func (c *Client) ClientID() string { return c.cfg.ClientID }

// ClientInfo fetches another client's public identity.
func (c *Client) ClientInfo(ctx context.Context, id string) (clientinfo.Info, error) {
	return c.lookup.Get(ctx, id)
}

// Write creates a new record of recType from plaintext data and plain
// (unencrypted, queryable) meta fields.
func (c *Client) Write(ctx context.Context, recType string, data record.Data, plain map[string]string) (record.Record, error) {
	return c.engine.Write(ctx, recType, data, plain)
}

// Read fetches and decrypts a record by id, optionally restricted to a
// subset of fields.
func (c *Client) Read(ctx context.Context, recordID string, fields ...string) (record.Record, error) {
	return c.engine.Read(ctx, recordID, fields)
}

// Update re-encrypts and writes plainData over an existing record using
// optimistic concurrency; rec must carry the RecordID and Version of the
// version being replaced (e.g. as returned by Write or Read).
func (c *Client) Update(ctx context.Context, rec record.Record, plainData record.Data) (record.Record, error) {
	return c.engine.Update(ctx, rec, plainData)
}

// Delete removes a record. version == "" performs an unsafe delete; a
// non-empty version performs a safe, optimistic-concurrency delete.
func (c *Client) Delete(ctx context.Context, recordID, version string) error {
	return c.engine.Delete(ctx, recordID, version)
}

// Query starts a new Query Cursor over params.
func (c *Client) Query(params query.Params) *query.Cursor {
	return query.New(c.tr, c.ak, c.cfg.ClientID, params)
}

// Share grants readerID read access to every record of recType this
// client writes.
func (c *Client) Share(ctx context.Context, recType, readerID string) error {
	return c.sharing.Share(ctx, recType, readerID)
}

// Revoke withdraws readerID's access to recType.
func (c *Client) Revoke(ctx context.Context, recType, readerID string) error {
	return c.sharing.Revoke(ctx, recType, readerID)
}

// OutgoingSharing lists every grant this client has issued.
func (c *Client) OutgoingSharing(ctx context.Context) ([]sharing.OutgoingEntry, error) {
	return c.sharing.OutgoingSharing(ctx)
}

// IncomingSharing lists every grant this client has received.
func (c *Client) IncomingSharing(ctx context.Context) ([]sharing.IncomingEntry, error) {
	return c.sharing.IncomingSharing(ctx)
}

func (c *Client) auditFacade() sharing.AuditSink {
	if c.auditLog == nil {
		return nil
	}
	return auditAdapter{c.auditLog}
}

// auditAdapter satisfies sharing.AuditSink without internal/audit needing
// to know about the sharing package's interface shape.
type auditAdapter struct{ log *audit.Log }

func (a auditAdapter) Append(event string, fields map[string]string) error {
	return a.log.Append(event, fields)
}

func decodeKey(b64 string) ([32]byte, error) {
	var out [32]byte
	raw, err := cryptobox.B64Decode(b64)
	if err != nil {
		return out, err
	}
	if len(raw) != 32 {
		return out, errWrongSize("private encryption key", len(raw), 32)
	}
	copy(out[:], raw)
	return out, nil
}

func decodeSignPrivate(b64 string) (ed25519.PrivateKey, error) {
	raw, err := cryptobox.B64Decode(b64)
	if err != nil {
		return nil, err
	}
	if len(raw) != ed25519.PrivateKeySize {
		return nil, errWrongSize("private signing key", len(raw), ed25519.PrivateKeySize)
	}
	return ed25519.PrivateKey(raw), nil
}

func decodeSignPublic(b64 string) (ed25519.PublicKey, error) {
	raw, err := cryptobox.B64Decode(b64)
	if err != nil {
		return nil, err
	}
	if len(raw) != ed25519.PublicKeySize {
		return nil, errWrongSize("public signing key", len(raw), ed25519.PublicKeySize)
	}
	return ed25519.PublicKey(raw), nil
}
