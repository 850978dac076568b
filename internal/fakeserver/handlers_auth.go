package fakeserver

import (
	"encoding/json"
	"net/http"
)

type tokenResponseBody struct {
	AccessToken string `json:"access_token"`
	ExpiresAt   int64  `json:"expires_at"`
}

// handleToken implements POST /v1/auth/token: HTTP Basic apiKeyId/apiSecret
// in, a short-lived bearer token out. Matched against the client registered
// under that apiKeyId (not the clientId) since that's the credential pair a
// real caller presents before it knows anything else about itself.
func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	keyID, secret, ok := r.BasicAuth()
	if !ok {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	if !s.rlToken.allow(getClientIP(r) + ":" + keyID) {
		w.WriteHeader(http.StatusTooManyRequests)
		return
	}

	client, err := s.store.GetClientByAPIKey(keyID)
	if err != nil {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	valid, err := verifySecret(secret, client.APISecretHash)
	if err != nil || !valid {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	token, expiresAt, err := s.signer.issue(client.ClientID)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	json.NewEncoder(w).Encode(tokenResponseBody{AccessToken: token, ExpiresAt: expiresAt.Unix()})
}
