package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/gofrs/flock"
	"github.com/zalando/go-keyring"
	"golang.org/x/oauth2"
)

const (
	serviceName = "purecloud"

	// sessionEntry names the single persisted session.
	sessionEntry = "session"

	lockTimeout = 2 * time.Second
)

// TokenStore persists the session token across CLI invocations.
type TokenStore interface {
	Load() (*oauth2.Token, error)
	Save(tok *oauth2.Token) error
	Delete() error
}

// StoreError reports a failure in the durable token store.
type StoreError struct {
	Operation string
	Message   string
	Cause     error
}

func (e *StoreError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("token store %s: %s: %v", e.Operation, e.Message, e.Cause)
	}
	return fmt.Sprintf("token store %s: %s", e.Operation, e.Message)
}

func (e *StoreError) Unwrap() error {
	return e.Cause
}

// Store keeps the persisted token copy, preferring the system keychain and
// falling back to a 0600 JSON file guarded by a file lock.
type Store struct {
	useKeyring  bool
	fallbackDir string
}

// NewStore creates a token store. The keyring is probed once; when it is
// unavailable, or PURECLOUD_NO_KEYRING is set, tokens go to fallbackDir.
// A plaintext token left by a keyring-less run is moved into the keyring.
func NewStore(fallbackDir string) *Store {
	if os.Getenv("PURECLOUD_NO_KEYRING") != "" {
		return &Store{useKeyring: false, fallbackDir: fallbackDir}
	}

	testKey := key("test")
	if err := keyring.Set(serviceName, testKey, "test"); err == nil {
		_ = keyring.Delete(serviceName, testKey)
		st := &Store{useKeyring: true, fallbackDir: fallbackDir}
		if err := st.MigrateToKeyring(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: %v\n", err)
		}
		return st
	}
	fmt.Fprintf(os.Stderr, "warning: system keyring unavailable, token stored in plaintext at %s\n",
		filepath.Join(fallbackDir, "credentials.json"))
	return &Store{useKeyring: false, fallbackDir: fallbackDir}
}

// key returns the keyring key for an entry.
func key(name string) string {
	return "purecloud::" + name
}

// Load retrieves the persisted token.
func (s *Store) Load() (*oauth2.Token, error) {
	if s.useKeyring {
		return s.loadFromKeyring(sessionEntry)
	}
	return s.loadFromFile(sessionEntry)
}

// Save persists tok, replacing any previous copy.
func (s *Store) Save(tok *oauth2.Token) error {
	if tok == nil || tok.AccessToken == "" {
		return &StoreError{Operation: "save", Message: "empty token"}
	}
	if s.useKeyring {
		return s.saveToKeyring(sessionEntry, tok)
	}
	return s.saveToFile(sessionEntry, tok)
}

// Delete removes the persisted token. Deleting a missing entry is not an error.
func (s *Store) Delete() error {
	if s.useKeyring {
		if err := keyring.Delete(serviceName, key(sessionEntry)); err != nil && err != keyring.ErrNotFound {
			return &StoreError{Operation: "delete", Message: "keyring delete failed", Cause: err}
		}
		return nil
	}
	return s.deleteFromFile(sessionEntry)
}

// UsingKeyring returns true if the store is using the system keyring.
func (s *Store) UsingKeyring() bool {
	return s.useKeyring
}

// Location describes where tokens are kept, for status output.
func (s *Store) Location() string {
	if s.useKeyring {
		return "system keyring"
	}
	return s.credentialsPath()
}

// Keyring methods

func (s *Store) loadFromKeyring(name string) (*oauth2.Token, error) {
	data, err := keyring.Get(serviceName, key(name))
	if err != nil {
		return nil, &StoreError{Operation: "load", Message: "token not found", Cause: err}
	}

	var tok oauth2.Token
	if err := json.Unmarshal([]byte(data), &tok); err != nil {
		return nil, &StoreError{Operation: "load", Message: "invalid token data", Cause: err}
	}
	return &tok, nil
}

func (s *Store) saveToKeyring(name string, tok *oauth2.Token) error {
	data, err := json.Marshal(tok)
	if err != nil {
		return &StoreError{Operation: "save", Message: "encode token", Cause: err}
	}
	if err := keyring.Set(serviceName, key(name), string(data)); err != nil {
		return &StoreError{Operation: "save", Message: "keyring write failed", Cause: err}
	}
	return nil
}

// File fallback methods

func (s *Store) credentialsPath() string {
	return filepath.Join(s.fallbackDir, "credentials.json")
}

func (s *Store) lockPath() string {
	return filepath.Join(s.fallbackDir, ".credentials.lock")
}

// withLock runs fn while holding an exclusive lock on the credentials file,
// so concurrent CLI processes do not interleave read-modify-write cycles.
func (s *Store) withLock(op string, fn func() error) error {
	if err := os.MkdirAll(s.fallbackDir, 0700); err != nil {
		return &StoreError{Operation: op, Message: "create config dir", Cause: err}
	}

	fl := flock.New(s.lockPath())
	ctx, cancel := context.WithTimeout(context.Background(), lockTimeout)
	defer cancel()

	locked, err := fl.TryLockContext(ctx, 10*time.Millisecond)
	if err != nil || !locked {
		return &StoreError{Operation: op, Message: "credentials file is locked by another process", Cause: err}
	}
	defer func() { _ = fl.Unlock() }()

	return fn()
}

func (s *Store) loadAllFromFile() (map[string]*oauth2.Token, error) {
	data, err := os.ReadFile(s.credentialsPath())
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]*oauth2.Token), nil
		}
		return nil, err
	}

	var all map[string]*oauth2.Token
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, err
	}
	if all == nil {
		all = make(map[string]*oauth2.Token)
	}
	return all, nil
}

func (s *Store) saveAllToFile(all map[string]*oauth2.Token) error {
	data, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return err
	}

	// Atomic write with randomized temp file name
	tmpFile, err := os.CreateTemp(s.fallbackDir, "credentials-*.json.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmpFile.Name()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmpFile.Chmod(0600); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmpFile.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}

	destPath := s.credentialsPath()
	if err := os.Rename(tmpPath, destPath); err != nil {
		// Windows refuses to rename over an existing file.
		if runtime.GOOS == "windows" {
			_ = os.Remove(destPath)
			return os.Rename(tmpPath, destPath)
		}
		os.Remove(tmpPath)
		return err
	}
	return nil
}

func (s *Store) loadFromFile(name string) (*oauth2.Token, error) {
	var tok *oauth2.Token
	err := s.withLock("load", func() error {
		all, err := s.loadAllFromFile()
		if err != nil {
			return &StoreError{Operation: "load", Message: "read credentials file", Cause: err}
		}
		t, ok := all[name]
		if !ok || t == nil {
			return &StoreError{Operation: "load", Message: "token not found"}
		}
		tok = t
		return nil
	})
	return tok, err
}

func (s *Store) saveToFile(name string, tok *oauth2.Token) error {
	return s.withLock("save", func() error {
		all, err := s.loadAllFromFile()
		if err != nil {
			return &StoreError{Operation: "save", Message: "read credentials file", Cause: err}
		}
		all[name] = tok
		if err := s.saveAllToFile(all); err != nil {
			return &StoreError{Operation: "save", Message: "write credentials file", Cause: err}
		}
		return nil
	})
}

func (s *Store) deleteFromFile(name string) error {
	return s.withLock("delete", func() error {
		all, err := s.loadAllFromFile()
		if err != nil {
			return &StoreError{Operation: "delete", Message: "read credentials file", Cause: err}
		}
		if _, ok := all[name]; !ok {
			return nil
		}
		delete(all, name)
		if err := s.saveAllToFile(all); err != nil {
			return &StoreError{Operation: "delete", Message: "write credentials file", Cause: err}
		}
		return nil
	})
}

// MigrateToKeyring moves tokens from the plaintext credentials file into the
// keyring and removes the file. It is a no-op without a keyring or a file.
func (s *Store) MigrateToKeyring() error {
	if !s.useKeyring {
		return nil
	}
	if _, err := os.Stat(s.credentialsPath()); err != nil {
		return nil //nolint:nilerr // No file to migrate is not an error
	}

	return s.withLock("migrate", func() error {
		all, err := s.loadAllFromFile()
		if err != nil {
			return &StoreError{Operation: "migrate", Message: "read credentials file", Cause: err}
		}

		for name, tok := range all {
			if tok == nil || tok.AccessToken == "" {
				continue
			}
			if err := s.saveToKeyring(name, tok); err != nil {
				return err
			}
		}

		if err := os.Remove(s.credentialsPath()); err != nil && !os.IsNotExist(err) {
			return &StoreError{Operation: "migrate", Message: "remove credentials file", Cause: err}
		}
		return nil
	})
}
