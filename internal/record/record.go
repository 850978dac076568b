// Package record defines the Meta/Record/RecordData types and the wire
// schema they serialize to, shared by the engine, the query cursor, and
// the sharing controller.
package record

import "time"

// Meta is a record's server-visible header.
type Meta struct {
	RecordID     string            `json:"record_id,omitempty"`
	WriterID     string            `json:"writer_id"`
	UserID       string            `json:"user_id"`
	Type         string            `json:"type"`
	Plain        map[string]string `json:"plain,omitempty"`
	Created      *time.Time        `json:"created,omitempty"`
	LastModified *time.Time        `json:"last_modified,omitempty"`
	Version      string            `json:"version,omitempty"`
}

// Data is a record's field map: plaintext client-side, cipher-encoded
// on the wire and at rest.
type Data map[string]string

// Record is the (meta, data, signature) triple. Signature is empty for a
// v1 config and always present for v2.
type Record struct {
	Meta      Meta   `json:"meta"`
	Data      Data   `json:"data"`
	Signature string `json:"rec_sig,omitempty"`
}

// metaForSigning is the subset of Meta that participates in the canonical
// signing payload: server-assigned fields (record_id, created,
// last_modified, version) are excluded because they don't exist yet at
// sign time and must not affect the signature.
type metaForSigning struct {
	Plain    map[string]string `json:"plain,omitempty"`
	Type     string            `json:"type"`
	UserID   string            `json:"user_id"`
	WriterID string            `json:"writer_id"`
}

func (m Meta) forSigning() metaForSigning {
	return metaForSigning{Plain: m.Plain, Type: m.Type, UserID: m.UserID, WriterID: m.WriterID}
}

// canonMap renders v as the map[string]interface{} shape internal/canon
// expects, dropping nil/empty fields the same way the JSON tags would.
func (m metaForSigning) canonMap() map[string]interface{} {
	out := map[string]interface{}{
		"type":      m.Type,
		"user_id":   m.UserID,
		"writer_id": m.WriterID,
	}
	if len(m.Plain) > 0 {
		out["plain"] = m.Plain
	}
	return out
}

func (d Data) canonMap() map[string]interface{} {
	out := make(map[string]interface{}, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}
