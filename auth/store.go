package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"golang.org/x/oauth2"
)

// Store persists the OAuth token between runs as a JSON credential file.
type Store struct {
	path string
}

func NewStore(path string) (*Store, error) {
	if path == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			return nil, fmt.Errorf("resolve user config dir: %w", err)
		}
		path = filepath.Join(dir, "cf-zone-provision", "credentials.json")
	}
	return &Store{path: path}, nil
}

type storedCredentials struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	Expiry       time.Time `json:"expiry,omitempty"`
	Scopes       []string  `json:"scopes,omitempty"`
}

// Load reads the stored token. A missing file is reported as fs.ErrNotExist;
// a present but structurally invalid file is an error, not a silent retry.
func (s *Store) Load() (*oauth2.Token, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, err
	}

	var creds storedCredentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("parse credential file %s: %w", s.path, err)
	}
	if creds.AccessToken == "" {
		return nil, fmt.Errorf("credential file %s has no access token", s.path)
	}

	return &oauth2.Token{
		AccessToken:  creds.AccessToken,
		RefreshToken: creds.RefreshToken,
		Expiry:       creds.Expiry,
		TokenType:    "Bearer",
	}, nil
}

func (s *Store) Save(token *oauth2.Token, scopes []string) error {
	if token == nil || token.AccessToken == "" {
		return errors.New("refusing to store empty token")
	}

	creds := storedCredentials{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		Expiry:       token.Expiry,
		Scopes:       scopes,
	}
	data, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create credential dir: %w", err)
	}
	return os.WriteFile(s.path, data, 0o600)
}

// wranglerConfig mirrors the fields of wrangler's default.toml credential
// file, used as a fallback token source when our own store is empty.
type wranglerConfig struct {
	OAuthToken     string   `toml:"oauth_token"`
	RefreshToken   string   `toml:"refresh_token"`
	ExpirationTime string   `toml:"expiration_time"`
	Scopes         []string `toml:"scopes"`
}

func wranglerConfigPaths() []string {
	var paths []string
	if dir, err := os.UserConfigDir(); err == nil {
		paths = append(paths, filepath.Join(dir, ".wrangler", "config", "default.toml"))
	}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".wrangler", "config", "default.toml"))
	}
	return paths
}

func loadWranglerToken(paths []string) *oauth2.Token {
	for _, path := range paths {
		var cfg wranglerConfig
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			continue
		}
		if cfg.OAuthToken == "" {
			continue
		}
		token := &oauth2.Token{
			AccessToken:  cfg.OAuthToken,
			RefreshToken: cfg.RefreshToken,
			TokenType:    "Bearer",
		}
		if expiry, err := time.Parse(time.RFC3339, cfg.ExpirationTime); err == nil {
			token.Expiry = expiry
		}
		return token
	}
	return nil
}
