// Package fakeserver implements the §6 external interface end to end,
// purely to give this module's own integration tests something to talk
// to. It is not a shipped server product.
package fakeserver

import (
	"errors"
	"sort"
	"strconv"
	"sync"
)

// ErrNotFound is returned by Store methods for a missing entity.
var ErrNotFound = errors.New("fakeserver: not found")

// StoredClient is one registered client's identity and hashed credential.
type StoredClient struct {
	ClientID      string `bson:"_id"`
	Name          string `bson:"name"`
	APIKeyID      string `bson:"api_key_id"`
	APISecretHash string `bson:"api_secret_hash"`
	PublicKey     string `bson:"public_key"`
	SigningKey    string `bson:"signing_key"` // empty for a v1 client
}

// StoredRecord is one record as the server sees it: opaque encrypted
// data, never inspected beyond routing and version bookkeeping.
type StoredRecord struct {
	RecordID     string            `bson:"_id"`
	WriterID     string            `bson:"writer_id"`
	UserID       string            `bson:"user_id"`
	Type         string            `bson:"type"`
	Plain        map[string]string `bson:"plain"`
	Data         map[string]string `bson:"data"`
	Signature    string            `bson:"signature"`
	Version      string            `bson:"version"`
	Created      int64             `bson:"created"`
	LastModified int64             `bson:"last_modified"`
	SearchIndex  int64             `bson:"search_index"`
}

// PolicyKey identifies one (writer, user, reader, type) access grant.
type PolicyKey struct {
	WriterID string `bson:"writer_id"`
	UserID   string `bson:"user_id"`
	ReaderID string `bson:"reader_id"`
	Type     string `bson:"type"`
}

// StoredEAK is the sealed access key blob for a PolicyKey, plus who
// authorized it (needed to answer the EAK GET response).
type StoredEAK struct {
	EAK                 string `bson:"eak"`
	AuthorizerPublicKey string `bson:"authorizer_public_key"`
	AuthorizerID        string `bson:"authorizer_id"`
}

// Store is the persistence boundary the HTTP handlers talk to. The
// default implementation is in-memory (memoryStore); an optional
// MongoDB-backed implementation is available behind NewMongoStore for
// longer-lived test fixtures.
type Store interface {
	PutClient(c StoredClient) error
	GetClient(clientID string) (StoredClient, error)
	GetClientByAPIKey(apiKeyID string) (StoredClient, error)

	PutRecord(r StoredRecord) error
	GetRecord(recordID string) (StoredRecord, error)
	DeleteRecord(recordID string) error
	SearchRecords(writerIDs, userIDs, recordIDs, contentTypes []string, includeAllWriters bool, plain map[string]string, afterIndex int64, count int) ([]StoredRecord, int64, error)

	PutEAK(key PolicyKey, eak StoredEAK) error
	GetEAK(key PolicyKey) (StoredEAK, error)
	DeleteEAK(key PolicyKey) error

	PutPolicy(key PolicyKey, allow bool) error
	OutgoingPolicies(writerID string) ([]PolicyKey, error)
	IncomingPolicies(readerID string) ([]PolicyKey, error)

	PutRegistrationToken(token string) error
	ConsumeRegistrationToken(token string) (bool, error)
}

type memoryStore struct {
	mu sync.Mutex

	clients map[string]StoredClient
	records map[string]StoredRecord
	eaks    map[PolicyKey]StoredEAK
	allow   map[PolicyKey]bool
	regToks map[string]bool

	nextRecordID  int
	nextSearchIdx int64
}

// NewMemoryStore builds an empty in-memory Store, the default backing for
// a fake server instance.
func NewMemoryStore() Store {
	return &memoryStore{
		clients: make(map[string]StoredClient),
		records: make(map[string]StoredRecord),
		eaks:    make(map[PolicyKey]StoredEAK),
		allow:   make(map[PolicyKey]bool),
		regToks: make(map[string]bool),
	}
}

func (s *memoryStore) PutClient(c StoredClient) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[c.ClientID] = c
	return nil
}

func (s *memoryStore) GetClient(clientID string) (StoredClient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.clients[clientID]
	if !ok {
		return StoredClient{}, ErrNotFound
	}
	return c, nil
}

func (s *memoryStore) GetClientByAPIKey(apiKeyID string) (StoredClient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.clients {
		if c.APIKeyID == apiKeyID {
			return c, nil
		}
	}
	return StoredClient{}, ErrNotFound
}

func (s *memoryStore) PutRecord(r StoredRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.RecordID == "" {
		s.nextRecordID++
		r.RecordID = strconv.Itoa(s.nextRecordID)
	}
	s.nextSearchIdx++
	r.SearchIndex = s.nextSearchIdx
	s.records[r.RecordID] = r
	return nil
}

func (s *memoryStore) GetRecord(recordID string) (StoredRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[recordID]
	if !ok {
		return StoredRecord{}, ErrNotFound
	}
	return r, nil
}

func (s *memoryStore) DeleteRecord(recordID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, recordID)
	return nil
}

func (s *memoryStore) SearchRecords(writerIDs, userIDs, recordIDs, contentTypes []string, includeAllWriters bool, plain map[string]string, afterIndex int64, count int) ([]StoredRecord, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	writerSet := toSet(writerIDs)
	userSet := toSet(userIDs)
	recordSet := toSet(recordIDs)
	typeSet := toSet(contentTypes)

	var matched []StoredRecord
	for _, r := range s.records {
		if r.SearchIndex <= afterIndex {
			continue
		}
		if !includeAllWriters && len(writerSet) > 0 && !writerSet[r.WriterID] {
			continue
		}
		if len(userSet) > 0 && !userSet[r.UserID] {
			continue
		}
		if len(recordSet) > 0 && !recordSet[r.RecordID] {
			continue
		}
		if len(typeSet) > 0 && !typeSet[r.Type] {
			continue
		}
		if !matchesPlain(r.Plain, plain) {
			continue
		}
		matched = append(matched, r)
	}

	sort.Slice(matched, func(i, j int) bool { return matched[i].SearchIndex < matched[j].SearchIndex })

	if count <= 0 || count > len(matched) {
		count = len(matched)
	}
	page := matched[:count]

	lastIndex := afterIndex
	if len(page) > 0 {
		lastIndex = page[len(page)-1].SearchIndex
	}
	return page, lastIndex, nil
}

func matchesPlain(have, want map[string]string) bool {
	for k, v := range want {
		if have[k] != v {
			return false
		}
	}
	return true
}

func toSet(items []string) map[string]bool {
	if len(items) == 0 {
		return nil
	}
	out := make(map[string]bool, len(items))
	for _, it := range items {
		out[it] = true
	}
	return out
}

func (s *memoryStore) PutEAK(key PolicyKey, eak StoredEAK) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.eaks[key] = eak
	return nil
}

func (s *memoryStore) GetEAK(key PolicyKey) (StoredEAK, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.eaks[key]
	if !ok {
		return StoredEAK{}, ErrNotFound
	}
	return e, nil
}

func (s *memoryStore) DeleteEAK(key PolicyKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.eaks, key)
	return nil
}

func (s *memoryStore) PutPolicy(key PolicyKey, allow bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if allow {
		s.allow[key] = true
	} else {
		delete(s.allow, key)
	}
	return nil
}

func (s *memoryStore) OutgoingPolicies(writerID string) ([]PolicyKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []PolicyKey
	for k, allowed := range s.allow {
		if allowed && k.WriterID == writerID {
			out = append(out, k)
		}
	}
	return out, nil
}

func (s *memoryStore) IncomingPolicies(readerID string) ([]PolicyKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var in []PolicyKey
	for k, allowed := range s.allow {
		if allowed && k.ReaderID == readerID {
			in = append(in, k)
		}
	}
	return in, nil
}

func (s *memoryStore) PutRegistrationToken(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.regToks[token] = true
	return nil
}

func (s *memoryStore) ConsumeRegistrationToken(token string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.regToks[token] {
		return false, nil
	}
	delete(s.regToks, token)
	return true, nil
}
