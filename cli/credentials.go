package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ErrNotLoggedIn is returned when no credentials file exists.
var ErrNotLoggedIn = errors.New("not logged in: run `takeoff login --token <token>` first")

// Credentials is the signed-in state of the CLI.
type Credentials struct {
	Token  string `yaml:"token"`
	UserID string `yaml:"user_id"`
	Email  string `yaml:"email,omitempty"`
	Name   string `yaml:"name,omitempty"`
}

// DefaultCredentialsPath returns ~/.takeoff/credentials.yaml.
func DefaultCredentialsPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".takeoff", "credentials.yaml")
	}
	return filepath.Join(home, ".takeoff", "credentials.yaml")
}

// LoadCredentials reads path. A missing file is ErrNotLoggedIn.
func LoadCredentials(path string) (*Credentials, error) {
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotLoggedIn
	}
	if err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}
	var c Credentials
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("parse credentials %s: %w", path, err)
	}
	if c.Token == "" || c.UserID == "" {
		return nil, ErrNotLoggedIn
	}
	return &c, nil
}

// Save writes c to path, readable by the owner only.
func (c *Credentials) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create credentials dir: %w", err)
	}
	raw, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0o600)
}

// RemoveCredentials deletes path and reports whether it existed.
func RemoveCredentials(path string) (bool, error) {
	err := os.Remove(path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return err == nil, err
}
