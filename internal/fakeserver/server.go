package fakeserver

import (
	"encoding/json"
	"log"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Server is a from-scratch, in-process implementation of every endpoint
// this module's client speaks to. It exists to drive this repository's
// own integration tests; it is not a shipped server product and makes no
// attempt at the access-control depth a real deployment would need.
type Server struct {
	store  Store
	signer *tokenSigner
	logger *log.Logger

	mu              sync.Mutex
	backupsNotified []string

	// BackupOnRegister, when true, makes every successful registration
	// carry the X-Backup-Client header, and backupTargetClientID names
	// the account the client should back itself up to.
	BackupOnRegister     bool
	backupTargetClientID string

	rlToken *multiLimiter
}

// SetBackupTarget enables the X-Backup-Client response header on future
// registrations, directing the client's automatic Backup call at
// targetClientID.
func (s *Server) SetBackupTarget(targetClientID string) {
	s.BackupOnRegister = true
	s.backupTargetClientID = targetClientID
}

// Option configures optional Server behavior at construction time.
type Option func(*serverOptions)

type serverOptions struct {
	tokenTTL        time.Duration
	rateLimitPerSec float64
	rateLimitBurst  int
}

// WithTokenTTL overrides the bearer token lifetime issued by /v1/auth/token.
func WithTokenTTL(ttl time.Duration) Option {
	return func(o *serverOptions) { o.tokenTTL = ttl }
}

// WithAuthRateLimit overrides the per-key token bucket guarding repeated
// bad /v1/auth/token attempts.
func WithAuthRateLimit(perSec float64, burst int) Option {
	return func(o *serverOptions) { o.rateLimitPerSec = perSec; o.rateLimitBurst = burst }
}

// NewServer builds a Server backed by store (use NewMemoryStore for a
// fresh in-memory instance, or a MongoDB-backed Store for longer-lived
// fixtures).
func NewServer(store Store, opts ...Option) (*Server, error) {
	o := serverOptions{tokenTTL: 1 * time.Hour, rateLimitPerSec: 5, rateLimitBurst: 20}
	for _, opt := range opts {
		opt(&o)
	}
	signer, err := newTokenSigner("e3box-fakeserver", o.tokenTTL)
	if err != nil {
		return nil, err
	}
	return &Server{
		store:   store,
		signer:  signer,
		logger:  log.New(os.Stdout, "[fakeserver] ", log.LstdFlags),
		rlToken: newMultiLimiter(rate.Limit(o.rateLimitPerSec), o.rateLimitBurst, 10*time.Minute),
	}, nil
}

// AddRegistrationToken authorizes token for one /v1/account/e3db/clients/register call.
func (s *Server) AddRegistrationToken(token string) error {
	return s.store.PutRegistrationToken(token)
}

// SeedClient registers clientID directly (bypassing the registration
// flow), for tests that want a client to already exist.
func (s *Server) SeedClient(clientID, apiKeyID, apiSecret, publicKey, signingKey string) error {
	hash, err := hashSecret(apiSecret)
	if err != nil {
		return err
	}
	return s.store.PutClient(StoredClient{
		ClientID:      clientID,
		APIKeyID:      apiKeyID,
		APISecretHash: hash,
		PublicKey:     publicKey,
		SigningKey:    signingKey,
	})
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	defer func() {
		if rec := recover(); rec != nil {
			s.logger.Printf("panic: %v", rec)
			http.Error(w, "internal error", http.StatusInternalServerError)
		}
	}()

	w.Header().Set("Content-Type", "application/json; charset=utf-8")

	path := strings.TrimSuffix(r.URL.Path, "/")
	segs := strings.Split(strings.TrimPrefix(path, "/"), "/")

	switch {
	case path == "/v1/auth/token" && r.Method == http.MethodPost:
		s.handleToken(w, r)

	case matchPrefix(segs, "v1", "storage", "clients") && len(segs) == 4 && r.Method == http.MethodGet:
		s.requireAuth(s.handleGetClient)(w, r, segs[3])

	case path == "/v1/storage/records" && r.Method == http.MethodPost:
		s.requireAuth(s.handleCreateRecord)(w, r)

	case matchPrefix(segs, "v1", "storage", "records") && len(segs) == 4 && r.Method == http.MethodGet:
		s.requireAuth(s.handleReadRecord)(w, r, segs[3])

	case matchPrefix(segs, "v1", "storage", "records") && len(segs) == 4 && r.Method == http.MethodDelete:
		s.requireAuth(s.handleUnsafeDeleteRecord)(w, r, segs[3])

	case matchPrefix(segs, "v1", "storage", "records", "safe") && len(segs) == 6 && r.Method == http.MethodPut:
		s.requireAuth(s.handleSafeUpdateRecord)(w, r, segs[4], segs[5])

	case matchPrefix(segs, "v1", "storage", "records", "safe") && len(segs) == 6 && r.Method == http.MethodDelete:
		s.requireAuth(s.handleSafeDeleteRecord)(w, r, segs[4], segs[5])

	case path == "/v1/storage/search" && r.Method == http.MethodPost:
		s.requireAuth(s.handleSearch)(w, r)

	case matchPrefix(segs, "v1", "storage", "access_keys") && len(segs) == 7:
		switch r.Method {
		case http.MethodGet:
			s.requireAuth(s.handleGetEAK)(w, r, segs[3], segs[4], segs[5], segs[6])
		case http.MethodPut:
			s.requireAuth(s.handlePutEAK)(w, r, segs[3], segs[4], segs[5], segs[6])
		case http.MethodDelete:
			s.requireAuth(s.handleDeleteEAK)(w, r, segs[3], segs[4], segs[5], segs[6])
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}

	case matchPrefix(segs, "v1", "storage", "policy") && len(segs) == 7 && r.Method == http.MethodPut:
		s.requireAuth(s.handlePutPolicy)(w, r, segs[3], segs[4], segs[5], segs[6])

	case path == "/v1/storage/policy/outgoing" && r.Method == http.MethodGet:
		s.requireAuth(s.handleOutgoingPolicy)(w, r)

	case path == "/v1/storage/policy/incoming" && r.Method == http.MethodGet:
		s.requireAuth(s.handleIncomingPolicy)(w, r)

	case path == "/v1/account/e3db/clients/register" && r.Method == http.MethodPost:
		s.handleRegister(w, r)

	case matchPrefix(segs, "v1", "account", "backup") && len(segs) == 5 && r.Method == http.MethodPost:
		s.requireAuth(s.handleBackupNotify)(w, r, segs[3], segs[4])

	default:
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"error": "not found"})
	}
}

func matchPrefix(segs []string, prefix ...string) bool {
	if len(segs) < len(prefix) {
		return false
	}
	for i, p := range prefix {
		if segs[i] != p {
			return false
		}
	}
	return true
}

// requireAuth wraps handlers that need a valid bearer token, resolving it
// to the authenticated client id and stashing it on the request context.
func (s *Server) requireAuth(next func(w http.ResponseWriter, r *http.Request, extra ...string)) func(w http.ResponseWriter, r *http.Request, extra ...string) {
	return func(w http.ResponseWriter, r *http.Request, extra ...string) {
		authz := r.Header.Get("Authorization")
		const prefix = "Bearer "
		if !strings.HasPrefix(authz, prefix) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		clientID, err := s.signer.subject(strings.TrimPrefix(authz, prefix))
		if err != nil {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		r = r.WithContext(withAuthClientID(r.Context(), clientID))
		next(w, r, extra...)
	}
}
