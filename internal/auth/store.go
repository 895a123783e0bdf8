package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"

	"golang.org/x/oauth2"
)

// ErrCorruptToken is returned when the token cache exists but does not hold a usable token.
var ErrCorruptToken = errors.New("corrupt token file")

// FileTokenStore caches the OAuth token as JSON on disk (token.json by default).
type FileTokenStore struct {
	Path string
}

// NewFileTokenStore returns a store backed by the file at path.
func NewFileTokenStore(path string) *FileTokenStore {
	return &FileTokenStore{Path: path}
}

// SaveToken writes the token readable only by the owner, creating the
// directory if needed.
func (s *FileTokenStore) SaveToken(token *oauth2.Token) error {
	data, err := json.MarshalIndent(token, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode token: %w", err)
	}

	if dir := filepath.Dir(s.Path); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("failed to create token directory %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(s.Path, data, 0600); err != nil {
		return fmt.Errorf("failed to write token %s: %w", s.Path, err)
	}

	log.Printf("Token stored to %s", s.Path)
	return nil
}

// LoadToken returns the cached token, or nil, nil when nothing has been cached yet.
// A file that is not a token yields ErrCorruptToken.
func (s *FileTokenStore) LoadToken() (*oauth2.Token, error) {
	data, err := os.ReadFile(s.Path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("failed to read token %s: %w", s.Path, err)
	}

	var token oauth2.Token
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, fmt.Errorf("%w %s: %v", ErrCorruptToken, s.Path, err)
	}
	if token.AccessToken == "" && token.RefreshToken == "" {
		return nil, fmt.Errorf("%w %s: no access or refresh token", ErrCorruptToken, s.Path)
	}

	return &token, nil
}
