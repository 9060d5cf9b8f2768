package actions

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// ErrNoAccount is returned when no account can be resolved from any source.
var ErrNoAccount = errors.New("no account: pass --account, set account in the config, KAGGLE_USERNAME, or ~/.kaggle/kaggle.json")

// Credentials identify the platform account used by the CLI.
type Credentials struct {
	Username string `json:"username"`
	Key      string `json:"key"`
}

// CredentialSource locates credentials. Zero values use the process
// environment and the user's home directory.
type CredentialSource struct {
	Getenv func(string) string
	Home   string
}

func (s CredentialSource) getenv(key string) string {
	if s.Getenv != nil {
		return s.Getenv(key)
	}
	return os.Getenv(key)
}

func (s CredentialSource) home() string {
	if s.Home != "" {
		return s.Home
	}
	h, _ := os.UserHomeDir()
	return h
}

// Load reads KAGGLE_USERNAME and KAGGLE_KEY, falling back to
// ~/.kaggle/kaggle.json when either is unset. A missing file yields empty
// credentials without error.
func (s CredentialSource) Load() (Credentials, error) {
	creds := Credentials{
		Username: s.getenv("KAGGLE_USERNAME"),
		Key:      s.getenv("KAGGLE_KEY"),
	}
	if creds.Username != "" && creds.Key != "" {
		return creds, nil
	}

	path := filepath.Join(s.home(), ".kaggle", "kaggle.json")
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return creds, nil
	}
	if err != nil {
		return Credentials{}, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var file Credentials
	if err := json.Unmarshal(data, &file); err != nil {
		return Credentials{}, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if creds.Username == "" {
		creds.Username = file.Username
	}
	if creds.Key == "" {
		creds.Key = file.Key
	}
	return creds, nil
}

// ResolveAccount picks the account by precedence: flag, configured value,
// then the credential source.
func (s CredentialSource) ResolveAccount(flag, configured string) (string, error) {
	if flag != "" {
		return flag, nil
	}
	if configured != "" {
		return configured, nil
	}
	creds, err := s.Load()
	if err != nil {
		return "", err
	}
	if creds.Username == "" {
		return "", ErrNoAccount
	}
	return creds.Username, nil
}
