// Package credentials stores the server URLs and API tokens the rolesync CLI
// talks to, grouped into named contexts.
package credentials

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"
)

const (
	// ConfigDir is the directory under $XDG_CONFIG_HOME.
	ConfigDir = "rolesync"
	// FileName keeps CLI contexts apart from the server's config.yaml.
	FileName = "contexts.json"

	filePermissions = 0600
	dirPermissions  = 0700

	// DefaultContext is used when login is given no context name.
	DefaultContext = "default"
)

var (
	ErrNoCurrentContext = errors.New("no current context set")
	ErrContextNotFound  = errors.New("context not found")
)

// Context is one API server and the token used against it.
type Context struct {
	ServerURL string    `json:"server_url"`
	Token     string    `json:"token,omitempty"`
	Operator  string    `json:"operator,omitempty"`
	Role      string    `json:"role,omitempty"`
	ExpiresAt time.Time `json:"expires_at,omitzero"`
}

// IsExpired reports whether the token expires within the next minute. A
// zero ExpiresAt means the expiry is unknown and the token is assumed valid.
func (c *Context) IsExpired() bool {
	if c.ExpiresAt.IsZero() {
		return false
	}
	return time.Now().Add(time.Minute).After(c.ExpiresAt)
}

type file struct {
	Current  string              `json:"current_context"`
	Contexts map[string]*Context `json:"contexts"`
}

// Store reads and writes the contexts file.
type Store struct {
	path string
	data file
}

// NewStore opens the contexts file, creating an empty store when it does
// not exist yet.
func NewStore() (*Store, error) {
	path, err := defaultPath()
	if err != nil {
		return nil, err
	}
	return Open(path)
}

// Open opens the contexts file at path.
func Open(path string) (*Store, error) {
	s := &Store{path: path, data: file{Contexts: make(map[string]*Context)}}

	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, &s.data); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if s.data.Contexts == nil {
		s.data.Contexts = make(map[string]*Context)
	}
	return s, nil
}

func defaultPath() (string, error) {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("cannot determine home directory: %w", err)
		}
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, ConfigDir, FileName), nil
}

func (s *Store) save() error {
	if err := os.MkdirAll(filepath.Dir(s.path), dirPermissions); err != nil {
		return fmt.Errorf("cannot create config directory: %w", err)
	}
	raw, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, raw, filePermissions)
}

func (s *Store) Path() string { return s.path }

// Current returns the active context.
func (s *Store) Current() (*Context, error) {
	if s.data.Current == "" {
		return nil, ErrNoCurrentContext
	}
	c, ok := s.data.Contexts[s.data.Current]
	if !ok {
		return nil, ErrContextNotFound
	}
	return c, nil
}

func (s *Store) CurrentName() string { return s.data.Current }

// Names returns the context names in sorted order.
func (s *Store) Names() []string {
	names := make([]string, 0, len(s.data.Contexts))
	for name := range s.data.Contexts {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func (s *Store) Get(name string) (*Context, error) {
	c, ok := s.data.Contexts[name]
	if !ok {
		return nil, ErrContextNotFound
	}
	return c, nil
}

// Set creates or replaces a context and makes it current.
func (s *Store) Set(name string, c *Context) error {
	s.data.Contexts[name] = c
	s.data.Current = name
	return s.save()
}

// Use switches the current context.
func (s *Store) Use(name string) error {
	if _, ok := s.data.Contexts[name]; !ok {
		return ErrContextNotFound
	}
	s.data.Current = name
	return s.save()
}

// Delete removes a context, clearing the current one if it was deleted.
func (s *Store) Delete(name string) error {
	if _, ok := s.data.Contexts[name]; !ok {
		return ErrContextNotFound
	}
	delete(s.data.Contexts, name)
	if s.data.Current == name {
		s.data.Current = ""
	}
	return s.save()
}

// ClearToken forgets the token of the current context but keeps its URL.
func (s *Store) ClearToken() error {
	c, err := s.Current()
	if err != nil {
		return err
	}
	c.Token = ""
	c.Operator = ""
	c.Role = ""
	c.ExpiresAt = time.Time{}
	return s.save()
}
