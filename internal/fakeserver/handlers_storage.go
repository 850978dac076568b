package fakeserver

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
)

type curve25519Key struct {
	Curve25519 string `json:"curve25519"`
}

type ed25519Key struct {
	Ed25519 string `json:"ed25519"`
}

type clientInfoBody struct {
	ClientID   string        `json:"client_id"`
	PublicKey  curve25519Key `json:"public_key"`
	SigningKey *ed25519Key   `json:"signing_key,omitempty"`
	Validated  bool          `json:"validated"`
}

func (s *Server) handleGetClient(w http.ResponseWriter, r *http.Request, extra ...string) {
	clientID := extra[0]
	c, err := s.store.GetClient(clientID)
	if err != nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	body := clientInfoBody{ClientID: c.ClientID, PublicKey: curve25519Key{Curve25519: c.PublicKey}, Validated: true}
	if c.SigningKey != "" {
		body.SigningKey = &ed25519Key{Ed25519: c.SigningKey}
	}
	json.NewEncoder(w).Encode(body)
}

type recordMetaBody struct {
	RecordID     string            `json:"record_id,omitempty"`
	WriterID     string            `json:"writer_id"`
	UserID       string            `json:"user_id"`
	Type         string            `json:"type"`
	Plain        map[string]string `json:"plain,omitempty"`
	Created      *time.Time        `json:"created,omitempty"`
	LastModified *time.Time        `json:"last_modified,omitempty"`
	Version      string            `json:"version,omitempty"`
}

type recordBody struct {
	Meta      recordMetaBody    `json:"meta"`
	Data      map[string]string `json:"data"`
	Signature string            `json:"rec_sig,omitempty"`
}

func toBody(r StoredRecord) recordBody {
	created := time.Unix(r.Created, 0).UTC()
	modified := time.Unix(r.LastModified, 0).UTC()
	return recordBody{
		Meta: recordMetaBody{
			RecordID: r.RecordID, WriterID: r.WriterID, UserID: r.UserID, Type: r.Type,
			Plain: r.Plain, Created: &created, LastModified: &modified, Version: r.Version,
		},
		Data:      r.Data,
		Signature: r.Signature,
	}
}

func (s *Server) handleCreateRecord(w http.ResponseWriter, r *http.Request, extra ...string) {
	var body recordBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	recordID := body.Meta.RecordID
	if recordID == "" {
		recordID = uuid.NewString()
	}

	now := time.Now().Unix()
	rec := StoredRecord{
		RecordID: recordID,
		WriterID: body.Meta.WriterID, UserID: body.Meta.UserID, Type: body.Meta.Type,
		Plain: body.Meta.Plain, Data: body.Data, Signature: body.Signature,
		Version: newVersion(), Created: now, LastModified: now,
	}
	if err := s.store.PutRecord(rec); err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	stored, _ := s.store.GetRecord(rec.RecordID)
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(toBody(stored))
}

func (s *Server) handleReadRecord(w http.ResponseWriter, r *http.Request, extra ...string) {
	recordID := extra[0]
	rec, err := s.store.GetRecord(recordID)
	if err != nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	fields := r.URL.Query()["field"]
	if len(fields) > 0 {
		filtered := make(map[string]string, len(fields))
		for _, f := range fields {
			if v, ok := rec.Data[f]; ok {
				filtered[f] = v
			}
		}
		rec.Data = filtered
	}
	json.NewEncoder(w).Encode(toBody(rec))
}

func (s *Server) handleUnsafeDeleteRecord(w http.ResponseWriter, r *http.Request, extra ...string) {
	if err := s.store.DeleteRecord(extra[0]); err != nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSafeUpdateRecord(w http.ResponseWriter, r *http.Request, extra ...string) {
	recordID, version := extra[0], extra[1]

	existing, err := s.store.GetRecord(recordID)
	if err != nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if existing.Version != version {
		w.WriteHeader(http.StatusConflict)
		return
	}

	var body recordBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	updated := existing
	updated.Plain = body.Meta.Plain
	updated.Data = body.Data
	updated.Signature = body.Signature
	updated.Version = newVersion()
	updated.LastModified = time.Now().Unix()

	if err := s.store.PutRecord(updated); err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	stored, _ := s.store.GetRecord(recordID)
	json.NewEncoder(w).Encode(toBody(stored))
}

func (s *Server) handleSafeDeleteRecord(w http.ResponseWriter, r *http.Request, extra ...string) {
	recordID, version := extra[0], extra[1]
	existing, err := s.store.GetRecord(recordID)
	if err != nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if existing.Version != version {
		w.WriteHeader(http.StatusConflict)
		return
	}
	s.store.DeleteRecord(recordID)
	w.WriteHeader(http.StatusNoContent)
}

type searchRequestBody struct {
	Count             int               `json:"count,omitempty"`
	IncludeData       bool              `json:"include_data"`
	WriterIDs         []string          `json:"writer_ids,omitempty"`
	RecordIDs         []string          `json:"record_ids,omitempty"`
	ContentTypes      []string          `json:"content_types,omitempty"`
	Plain             map[string]string `json:"plain,omitempty"`
	UserIDs           []string          `json:"user_ids,omitempty"`
	IncludeAllWriters bool              `json:"include_all_writers,omitempty"`
	AfterIndex        int64             `json:"after_index"`
}

type searchResultBody struct {
	Meta      recordMetaBody    `json:"meta"`
	Data      map[string]string `json:"data,omitempty"`
	AccessKey *eakWireBody      `json:"access_key,omitempty"`
}

type searchResponseBody struct {
	Results   []searchResultBody `json:"results"`
	LastIndex int64              `json:"last_index"`
}

// handleSearch implements POST /v1/storage/search. The authenticated
// caller is always implicitly allowed as both writer and reader of its own
// records; another writer's record is only returned if this server holds
// an EAK for (writerId, userId, caller, type) — checked
// per result below rather than up front, since each candidate record may
// carry a different type.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request, extra ...string) {
	caller := authClientID(r.Context())

	var body searchRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	writerIDs := body.WriterIDs
	includeAllWriters := body.IncludeAllWriters
	if len(writerIDs) == 0 && !includeAllWriters {
		writerIDs = []string{caller}
	}

	matched, lastIndex, err := s.store.SearchRecords(writerIDs, body.UserIDs, body.RecordIDs, body.ContentTypes, includeAllWriters, body.Plain, body.AfterIndex, body.Count)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	results := make([]searchResultBody, 0, len(matched))
	for _, rec := range matched {
		if rec.WriterID != caller && !s.authorized(rec.WriterID, rec.UserID, caller, rec.Type) {
			continue
		}

		res := searchResultBody{Meta: toBody(rec).Meta}
		if body.IncludeData {
			res.Data = rec.Data
		}
		if eak, err := s.store.GetEAK(PolicyKey{WriterID: rec.WriterID, UserID: rec.UserID, ReaderID: caller, Type: rec.Type}); err == nil {
			res.AccessKey = &eakWireBody{EAK: eak.EAK, AuthorizerPublicKey: curve25519Key{Curve25519: eak.AuthorizerPublicKey}, AuthorizerID: eak.AuthorizerID}
		}
		results = append(results, res)
	}

	json.NewEncoder(w).Encode(searchResponseBody{Results: results, LastIndex: lastIndex})
}

func (s *Server) authorized(writerID, userID, readerID, recType string) bool {
	if writerID == readerID {
		return true
	}
	_, err := s.store.GetEAK(PolicyKey{WriterID: writerID, UserID: userID, ReaderID: readerID, Type: recType})
	return err == nil
}

func newVersion() string {
	return uuid.NewString()
}
