package fakeserver

import (
	"crypto/rand"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/tozny/e3db-go/internal/cryptobox"
)

type registerClientBody struct {
	Name       string `json:"name"`
	PublicKey  string `json:"public_key"`
	SigningKey string `json:"signing_key,omitempty"`
}

type registerRequestBody struct {
	Token  string             `json:"token"`
	Client registerClientBody `json:"client"`
}

type clientDetailsBody struct {
	ClientID  string `json:"client_id"`
	APIKeyID  string `json:"api_key_id"`
	APISecret string `json:"api_secret"`
	PublicKey string `json:"public_key"`
	Name      string `json:"name"`
}

// handleRegister implements POST /v1/account/e3db/clients/register: a
// one-time registration token gates an otherwise anonymous request that
// mints a new client identity and its own api key/secret pair.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var body registerRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	ok, err := s.store.ConsumeRegistrationToken(body.Token)
	if err != nil || !ok {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	clientID := uuid.NewString()
	apiKeyID := uuid.NewString()
	apiSecret := randomSecret()

	hash, err := hashSecret(apiSecret)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	stored := StoredClient{
		ClientID:      clientID,
		Name:          body.Client.Name,
		APIKeyID:      apiKeyID,
		APISecretHash: hash,
		PublicKey:     body.Client.PublicKey,
		SigningKey:    body.Client.SigningKey,
	}
	if err := s.store.PutClient(stored); err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	if s.BackupOnRegister {
		w.Header().Set("X-Backup-Client", s.backupTargetClientID)
	}
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(clientDetailsBody{
		ClientID:  clientID,
		APIKeyID:  apiKeyID,
		APISecret: apiSecret,
		PublicKey: body.Client.PublicKey,
		Name:      body.Client.Name,
	})
}

// handleBackupNotify implements POST /v1/account/backup/{regToken}/{clientId},
// the tail end of the registration backup flow: by the time this fires,
// the client has already written and shared its own key_backup record.
func (s *Server) handleBackupNotify(w http.ResponseWriter, r *http.Request, extra ...string) {
	s.mu.Lock()
	s.backupsNotified = append(s.backupsNotified, extra[1])
	s.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func randomSecret() string {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return uuid.NewString()
	}
	return cryptobox.B64Encode(buf)
}
