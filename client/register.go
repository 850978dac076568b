package client

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/tozny/e3db-go/e3errors"
	"github.com/tozny/e3db-go/internal/config"
	"github.com/tozny/e3db-go/internal/cryptobox"
	"github.com/tozny/e3db-go/internal/record"
	"github.com/tozny/e3db-go/internal/transport"
)

const backupRecordType = "tozny.key_backup"

// backupClientHeader is the response header signaling that the server
// wants this registration's credentials backed up to its own account.
const backupClientHeader = "X-Backup-Client"

type registerClientBody struct {
	Name       string `json:"name"`
	PublicKey  string `json:"public_key"`
	SigningKey string `json:"signing_key,omitempty"`
}

type registerRequest struct {
	Token  string              `json:"token"`
	Client registerClientBody `json:"client"`
}

// ClientDetails is the server's response to a successful registration.
type ClientDetails struct {
	ClientID  string `json:"client_id"`
	APIKeyID  string `json:"api_key_id"`
	APISecret string `json:"api_secret"`
	PublicKey string `json:"public_key"`
	Name      string `json:"name"`
}

// Register performs an anonymous, registration-token-gated client
// registration against apiURL. name is the new client's display name;
// pubKey/privKey are its X25519 keypair; signPub/signPriv, if both
// non-empty, register a v2 client and have signPub returned in the
// registration body.
//
// If the server responds with the X-Backup-Client header and privKey is
// non-empty, Register constructs a transient Client from the returned
// details and backs up the new identity to backupTargetID via Backup,
// per §4.8.
func Register(ctx context.Context, apiURL, registrationToken, name, pubKey, privKey string, signPub, signPriv string, backupTargetID string) (ClientDetails, error) {
	tr := transport.New(apiURL, "", "")

	body := registerRequest{
		Token: registrationToken,
		Client: registerClientBody{
			Name:       name,
			PublicKey:  pubKey,
			SigningKey: signPub,
		},
	}

	var details ClientDetails
	resp, err := tr.DoJSON(ctx, http.MethodPost, "/v1/account/e3db/clients/register", nil, body, &details, transport.AuthNone)
	if err != nil {
		return ClientDetails{}, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return ClientDetails{}, e3errors.New(e3errors.RegistrationFailed, "client.Register", errStatusf(resp.StatusCode))
	}

	if resp.Header.Get(backupClientHeader) == "" || privKey == "" {
		return details, nil
	}

	version := config.V1
	if signPub != "" && signPriv != "" {
		version = config.V2
	}
	transientCfg := config.Config{
		ClientID:       details.ClientID,
		APIKeyID:       details.APIKeyID,
		APISecret:      details.APISecret,
		PublicKey:      pubKey,
		PrivateKey:     privKey,
		PublicSignKey:  signPub,
		PrivateSignKey: signPriv,
		APIURL:         apiURL,
		Version:        version,
	}
	transient, err := New(transientCfg)
	if err != nil {
		return details, err
	}
	defer transient.Close()

	if err := transient.Backup(ctx, backupTargetID, registrationToken); err != nil {
		return details, err
	}
	return details, nil
}

// Backup writes this client's own Config as a tozny.key_backup record,
// shares that record type with targetClientID, and notifies the account
// service of the backup.
func (c *Client) Backup(ctx context.Context, targetClientID, registrationToken string) error {
	data := record.Data{
		"client_id":   c.cfg.ClientID,
		"api_key_id":  c.cfg.APIKeyID,
		"api_secret":  c.cfg.APISecret,
		"public_key":  c.cfg.PublicKey,
		"private_key": c.cfg.PrivateKey,
		"api_url":     c.cfg.APIURL,
	}
	if c.cfg.Version == config.V2 {
		data["public_signing_key"] = c.cfg.PublicSignKey
		data["private_signing_key"] = c.cfg.PrivateSignKey
	}
	// Each field is stored as the JSON encoding of its string value.
	for k, v := range data {
		quoted, err := json.Marshal(v)
		if err != nil {
			return err
		}
		data[k] = string(quoted)
	}

	if _, err := c.engine.Write(ctx, backupRecordType, data, nil); err != nil {
		return err
	}
	if err := c.sharing.Share(ctx, backupRecordType, targetClientID); err != nil {
		return err
	}

	path := "/v1/account/backup/" + registrationToken + "/" + c.cfg.ClientID
	resp, err := c.tr.DoJSON(ctx, http.MethodPost, path, nil, nil, nil, transport.AuthBearer)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return e3errors.New(e3errors.RegistrationFailed, "Client.Backup", errStatusf(resp.StatusCode))
	}

	if c.auditLog != nil {
		_ = c.auditLog.Append("backup", map[string]string{"target_client_id": targetClientID})
	}
	return nil
}

// GenerateKeypair returns a fresh X25519 encryption keypair, URL-safe
// unpadded base64 encoded.
func GenerateKeypair() (publicKey, privateKey string, err error) {
	pub, priv, err := cryptobox.BoxKeypair()
	if err != nil {
		return "", "", err
	}
	return cryptobox.B64Encode(pub[:]), cryptobox.B64Encode(priv[:]), nil
}

// GenerateSigningKeypair returns a fresh Ed25519 signing keypair, URL-safe
// unpadded base64 encoded.
func GenerateSigningKeypair() (publicKey, privateKey string, err error) {
	pub, priv, err := cryptobox.SignKeypair()
	if err != nil {
		return "", "", err
	}
	return cryptobox.B64Encode(pub), cryptobox.B64Encode([]byte(priv)), nil
}
