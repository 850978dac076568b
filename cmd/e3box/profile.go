package main

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/tozny/e3db-go/internal/config"
)

// profile is the on-disk JSON shape a client profile is saved as, the CLI
// equivalent of the vault file vaultctl points --vault at.
type profile struct {
	ClientID       string `json:"client_id"`
	APIKeyID       string `json:"api_key_id"`
	APISecret      string `json:"api_secret"`
	PublicKey      string `json:"public_key"`
	PrivateKey     string `json:"private_key"`
	PublicSignKey  string `json:"public_sign_key,omitempty"`
	PrivateSignKey string `json:"private_sign_key,omitempty"`
	APIURL         string `json:"api_url"`
	Version        int    `json:"version"`
}

func defaultProfilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".e3box/profile.json"
	}
	return filepath.Join(home, ".e3box", "profile.json")
}

func loadProfile(path string) (config.Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return config.Config{}, err
	}
	var p profile
	if err := json.Unmarshal(b, &p); err != nil {
		return config.Config{}, err
	}
	return config.Config{
		ClientID: p.ClientID, APIKeyID: p.APIKeyID, APISecret: p.APISecret,
		PublicKey: p.PublicKey, PrivateKey: p.PrivateKey,
		PublicSignKey: p.PublicSignKey, PrivateSignKey: p.PrivateSignKey,
		APIURL: p.APIURL, Version: config.Version(p.Version),
	}, nil
}

func saveProfile(path string, cfg config.Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	p := profile{
		ClientID: cfg.ClientID, APIKeyID: cfg.APIKeyID, APISecret: cfg.APISecret,
		PublicKey: cfg.PublicKey, PrivateKey: cfg.PrivateKey,
		PublicSignKey: cfg.PublicSignKey, PrivateSignKey: cfg.PrivateSignKey,
		APIURL: cfg.APIURL, Version: int(cfg.Version),
	}
	b, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o600)
}
