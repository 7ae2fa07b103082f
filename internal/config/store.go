package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Settings holds the user-configurable connection and timing defaults.
type Settings struct {
	Host         string `yaml:"host,omitempty"`
	Port         int    `yaml:"port,omitempty"`
	GUID         string `yaml:"guid,omitempty"` // client identity; generated on first use
	FriendlyName string `yaml:"friendlyName,omitempty"`

	FocusTimeout      time.Duration `yaml:"focusTimeout"`
	PollInterval      time.Duration `yaml:"pollInterval"`
	RequestTimeout    time.Duration `yaml:"requestTimeout"`
	HeartbeatInterval time.Duration `yaml:"heartbeatInterval"`

	LogLevel  string `yaml:"logLevel"`
	TracePath string `yaml:"tracePath,omitempty"` // empty = no packet trace
}

// DefaultSettings returns the default settings.
func DefaultSettings() Settings {
	return Settings{
		Port:              15740,
		FocusTimeout:      time.Second,
		PollInterval:      100 * time.Millisecond,
		RequestTimeout:    5 * time.Second,
		HeartbeatInterval: 10 * time.Second,
		LogLevel:          "info",
	}
}

// DefaultDir returns the per-user configuration directory.
func DefaultDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".ptpcam"
	}
	return filepath.Join(dir, "ptpcam")
}

// Store provides thread-safe settings persistence backed by a YAML file.
type Store struct {
	mu       sync.RWMutex
	settings Settings
	path     string
}

// NewStore creates a Store that persists settings to dataDir/config.yaml.
// If the file does not exist or is invalid, default settings are used.
func NewStore(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, err
	}
	s := &Store{
		path:     filepath.Join(dataDir, "config.yaml"),
		settings: DefaultSettings(),
	}
	s.load()
	return s, nil
}

// NewMemoryStore creates a Store that keeps settings in memory only (no file persistence).
func NewMemoryStore() *Store {
	return &Store{settings: DefaultSettings()}
}

// Path returns the backing file, or "" for a memory store.
func (s *Store) Path() string { return s.path }

// Get returns a copy of the current settings.
func (s *Store) Get() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

// Update replaces the settings and persists to disk.
func (s *Store) Update(settings Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = settings
	return s.save()
}

// Modify applies fn to the current settings and persists the result.
func (s *Store) Modify(fn func(*Settings)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.settings)
	return s.save()
}

func (s *Store) load() {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return // file missing is OK, use defaults
	}
	// Decode over the defaults so keys absent from the file keep them.
	settings := DefaultSettings()
	if err := yaml.Unmarshal(data, &settings); err != nil {
		slog.Warn("invalid settings file, using defaults", "path", s.path, "err", err)
		return
	}
	s.settings = settings
}

func (s *Store) save() error {
	if s.path == "" {
		return nil // memory-only mode
	}
	data, err := yaml.Marshal(s.settings)
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}
