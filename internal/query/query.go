// Package query implements the Query Cursor (C7): paginated, lazy,
// forward-only iteration over server search results, decrypting each page
// on demand.
package query

import (
	"context"
	"net/http"

	"github.com/tozny/e3db-go/e3errors"
	"github.com/tozny/e3db-go/internal/akmanager"
	"github.com/tozny/e3db-go/internal/record"
	"github.com/tozny/e3db-go/internal/transport"
)

// Params is the query body a caller builds once; the cursor owns mutating
// after_index across pages.
type Params struct {
	Count             int               `json:"count,omitempty"`
	IncludeData       bool              `json:"include_data"`
	WriterIDs         []string          `json:"writer_ids,omitempty"`
	RecordIDs         []string          `json:"record_ids,omitempty"`
	ContentTypes      []string          `json:"content_types,omitempty"`
	Plain             map[string]string `json:"plain,omitempty"`
	UserIDs           []string          `json:"user_ids,omitempty"`
	IncludeAllWriters bool              `json:"include_all_writers,omitempty"`

	// Raw, when true, skips client-side decryption even if IncludeData is
	// set: results carry cipher-encoded data as returned by the server.
	Raw bool `json:"-"`
}

type searchRequestBody struct {
	Params
	AfterIndex int64 `json:"after_index"`
}

type searchResult struct {
	Meta      record.Meta        `json:"meta"`
	Data      record.Data        `json:"data,omitempty"`
	AccessKey *akmanager.EAKWire `json:"access_key,omitempty"`
}

type searchResponse struct {
	Results   []searchResult `json:"results"`
	LastIndex int64          `json:"last_index"`
}

// Cursor is one (client, query) pagination state machine: afterIndex and
// done are mutated only by Next, and only move forward.
type Cursor struct {
	tr     *transport.Transport
	ak     *akmanager.Manager
	selfID string
	params Params

	afterIndex int64
	done       bool
}

// New builds a Cursor bound to tr/ak, starting at after_index = 0. selfID
// is the owning client's id, used as the readerId on a cache-miss AK
// fetch fallback (a result with no embedded per-result EAK, e.g. one
// written by this same client).
func New(tr *transport.Transport, ak *akmanager.Manager, selfID string, params Params) *Cursor {
	return &Cursor{tr: tr, ak: ak, selfID: selfID, params: params}
}

// Done reports whether the cursor has observed an empty page and will
// yield no further results.
func (c *Cursor) Done() bool { return c.done }

// Next fetches and decrypts the next page. A page is empty both when the
// cursor is already done and when the server genuinely has no more
// results (which also marks the cursor done for all future calls).
func (c *Cursor) Next(ctx context.Context) ([]record.Record, error) {
	if c.done {
		return nil, nil
	}

	body := searchRequestBody{Params: c.params, AfterIndex: c.afterIndex}
	var resp searchResponse
	r, err := c.tr.DoJSON(ctx, http.MethodPost, "/v1/storage/search", nil, body, &resp, transport.AuthBearer)
	if err != nil {
		return nil, err
	}
	if r.StatusCode < 200 || r.StatusCode >= 300 {
		return nil, e3errors.New(e3errors.TransportError, "Cursor.Next", errStatusf(r.StatusCode))
	}

	if len(resp.Results) == 0 {
		c.done = true
		return nil, nil
	}

	out := make([]record.Record, 0, len(resp.Results))
	for _, res := range resp.Results {
		rec := record.Record{Meta: res.Meta, Data: res.Data}

		if c.params.IncludeData && !c.params.Raw && len(res.Data) > 0 {
			ak, err := c.resolveAK(ctx, res)
			if err != nil {
				return nil, err
			}
			plain, err := record.DecryptData(res.Data, ak)
			if err != nil {
				return nil, err
			}
			rec.Data = plain
		}
		out = append(out, rec)
	}

	c.afterIndex = resp.LastIndex
	return out, nil
}

// resolveAK consults the AK cache for this result's (writerId, userId,
// type), falling back to unsealing the per-result EAK the search response
// carried when the cache has nothing yet.
func (c *Cursor) resolveAK(ctx context.Context, res searchResult) (akmanager.AK, error) {
	if res.AccessKey == nil {
		ak, ok, err := c.ak.Get(ctx, res.Meta.WriterID, res.Meta.UserID, c.selfID, res.Meta.Type)
		if err != nil {
			return akmanager.AK{}, err
		}
		if !ok {
			return akmanager.AK{}, e3errors.New(e3errors.NoAccess, "Cursor.resolveAK", nil)
		}
		return ak, nil
	}
	return c.ak.GetCached(res.Meta.WriterID, res.Meta.UserID, res.Meta.Type, *res.AccessKey)
}
