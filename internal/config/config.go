// Package config holds the immutable configuration bundle a Client is
// constructed from.
package config

import (
	"github.com/tozny/e3db-go/e3errors"
)

// Version identifies which wire generation a Config speaks.
type Version int

const (
	// V1 omits signing keys; records of this version carry no signature.
	V1 Version = 1
	// V2 requires both signing keys and signs every record.
	V2 Version = 2
)

// Config is the immutable bundle a Client is bound to for its lifetime.
// All key fields are URL-safe, unpadded base64.
type Config struct {
	ClientID   string
	APIKeyID   string
	APISecret  string

	PublicKey  string
	PrivateKey string

	// PublicSignKey and PrivateSignKey are required when Version == V2 and
	// must be empty when Version == V1.
	PublicSignKey  string
	PrivateSignKey string

	APIURL  string
	Version Version
}

// Validate enforces the invariant: Version == V2 implies both signing keys
// are present and non-empty; Version == V1 implies they are both absent.
func (c Config) Validate() error {
	if c.ClientID == "" {
		return e3errors.New(e3errors.ConfigInvalid, "Config.Validate", errMissing("client_id"))
	}
	if c.APIKeyID == "" || c.APISecret == "" {
		return e3errors.New(e3errors.ConfigInvalid, "Config.Validate", errMissing("api_key_id/api_secret"))
	}
	if c.PublicKey == "" || c.PrivateKey == "" {
		return e3errors.New(e3errors.ConfigInvalid, "Config.Validate", errMissing("public_key/private_key"))
	}
	if c.APIURL == "" {
		return e3errors.New(e3errors.ConfigInvalid, "Config.Validate", errMissing("api_url"))
	}

	switch c.Version {
	case V1:
		if c.PublicSignKey != "" || c.PrivateSignKey != "" {
			return e3errors.New(e3errors.ConfigInvalid, "Config.Validate", errUnexpected("signing keys present on a v1 config"))
		}
	case V2:
		if c.PublicSignKey == "" || c.PrivateSignKey == "" {
			return e3errors.New(e3errors.ConfigInvalid, "Config.Validate", errMissing("public_sign_key/private_sign_key required for v2"))
		}
	default:
		return e3errors.New(e3errors.ConfigInvalid, "Config.Validate", errUnexpected("version must be 1 or 2"))
	}
	return nil
}

// HasSigningKeys reports whether this config carries signing keys (true
// only for v2 configs that have passed Validate).
func (c Config) HasSigningKeys() bool {
	return c.PublicSignKey != "" && c.PrivateSignKey != ""
}
