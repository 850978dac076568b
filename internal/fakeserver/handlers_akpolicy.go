package fakeserver

import (
	"encoding/json"
	"net/http"
)

type eakWireBody struct {
	EAK                 string        `json:"eak"`
	AuthorizerPublicKey curve25519Key `json:"authorizer_public_key"`
	AuthorizerID        string        `json:"authorizer_id,omitempty"`
}

type eakPutBody struct {
	EAK string `json:"eak"`
}

func (s *Server) handleGetEAK(w http.ResponseWriter, r *http.Request, extra ...string) {
	key := PolicyKey{WriterID: extra[0], UserID: extra[1], ReaderID: extra[2], Type: extra[3]}
	eak, err := s.store.GetEAK(key)
	if err != nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	json.NewEncoder(w).Encode(eakWireBody{
		EAK:                 eak.EAK,
		AuthorizerPublicKey: curve25519Key{Curve25519: eak.AuthorizerPublicKey},
		AuthorizerID:        eak.AuthorizerID,
	})
}

func (s *Server) handlePutEAK(w http.ResponseWriter, r *http.Request, extra ...string) {
	key := PolicyKey{WriterID: extra[0], UserID: extra[1], ReaderID: extra[2], Type: extra[3]}
	var body eakPutBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	authorizer := authClientID(r.Context())
	authorizerClient, err := s.store.GetClient(authorizer)
	if err != nil {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	if err := s.store.PutEAK(key, StoredEAK{EAK: body.EAK, AuthorizerPublicKey: authorizerClient.PublicKey, AuthorizerID: authorizer}); err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (s *Server) handleDeleteEAK(w http.ResponseWriter, r *http.Request, extra ...string) {
	key := PolicyKey{WriterID: extra[0], UserID: extra[1], ReaderID: extra[2], Type: extra[3]}
	if err := s.store.DeleteEAK(key); err != nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type policyRuleBody struct {
	Read map[string]interface{} `json:"read"`
}

type policyRequestBody struct {
	Allow []policyRuleBody `json:"allow,omitempty"`
	Deny  []policyRuleBody `json:"deny,omitempty"`
}

func (s *Server) handlePutPolicy(w http.ResponseWriter, r *http.Request, extra ...string) {
	key := PolicyKey{WriterID: extra[0], UserID: extra[1], ReaderID: extra[2], Type: extra[3]}
	var body policyRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	switch {
	case len(body.Allow) > 0:
		if err := s.store.PutPolicy(key, true); err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
	case len(body.Deny) > 0:
		if err := s.store.PutPolicy(key, false); err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
	default:
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type outgoingEntryBody struct {
	ReaderID string `json:"reader_id"`
	Type     string `json:"record_type"`
}

type incomingEntryBody struct {
	WriterID string `json:"writer_id"`
	Type     string `json:"record_type"`
}

func (s *Server) handleOutgoingPolicy(w http.ResponseWriter, r *http.Request, extra ...string) {
	caller := authClientID(r.Context())
	keys, err := s.store.OutgoingPolicies(caller)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	out := make([]outgoingEntryBody, 0, len(keys))
	for _, k := range keys {
		out = append(out, outgoingEntryBody{ReaderID: k.ReaderID, Type: k.Type})
	}
	json.NewEncoder(w).Encode(out)
}

func (s *Server) handleIncomingPolicy(w http.ResponseWriter, r *http.Request, extra ...string) {
	caller := authClientID(r.Context())
	keys, err := s.store.IncomingPolicies(caller)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	in := make([]incomingEntryBody, 0, len(keys))
	for _, k := range keys {
		in = append(in, incomingEntryBody{WriterID: k.WriterID, Type: k.Type})
	}
	json.NewEncoder(w).Encode(in)
}
