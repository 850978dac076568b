package fakeserver

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// tokenSigner issues and verifies the bearer tokens the server hands back
// from /v1/auth/token: Ed25519-signed JWTs carrying the authenticated
// client's id as subject.
type tokenSigner struct {
	priv ed25519.PrivateKey
	pub  ed25519.PublicKey
	iss  string
	ttl  time.Duration
}

func newTokenSigner(iss string, ttl time.Duration) (*tokenSigner, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	return &tokenSigner{priv: priv, pub: pub, iss: iss, ttl: ttl}, nil
}

func (s *tokenSigner) issue(clientID string) (token string, expiresAt time.Time, err error) {
	now := time.Now()
	exp := now.Add(s.ttl)
	claims := jwt.MapClaims{
		"iss": s.iss,
		"sub": clientID,
		"iat": now.Unix(),
		"exp": exp.Unix(),
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	ss, err := tok.SignedString(s.priv)
	return ss, exp, err
}

func (s *tokenSigner) subject(tokenStr string) (string, error) {
	keyFunc := func(t *jwt.Token) (interface{}, error) {
		if t.Method != jwt.SigningMethodEdDSA {
			return nil, errors.New("fakeserver: unexpected signing method")
		}
		return s.pub, nil
	}
	tok, err := jwt.ParseWithClaims(tokenStr, jwt.MapClaims{}, keyFunc, jwt.WithIssuer(s.iss))
	if err != nil || !tok.Valid {
		return "", errors.New("fakeserver: invalid bearer token")
	}
	claims := tok.Claims.(jwt.MapClaims)
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return "", errors.New("fakeserver: token missing subject")
	}
	return sub, nil
}
