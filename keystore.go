/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"
)

// keyStore is the process-wide key/value config the engine consumes. Reads
// are lock-free snapshots of a cached value; writes take the config lock and
// refresh the cache. The ANTHROPIC_API_KEY environment variable overrides
// the persisted value for the lifetime of the process.
type keyStore struct {
	mu     sync.RWMutex
	apiKey string
	path   string
}

type persistedConfig struct {
	APIKey string `json:"apiKey,omitempty"`
}

func newKeyStore() *keyStore {
	s := &keyStore{}

	if dir, err := os.UserConfigDir(); err == nil {
		s.path = filepath.Join(dir, "quipbox", "config.json")
	}

	s.reload()

	return s
}

// reload reads the persisted config, then applies the environment override.
func (s *keyStore) reload() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.apiKey = ""

	if s.path != "" {
		if data, err := os.ReadFile(s.path); err == nil {
			var cfg persistedConfig
			if err := json.Unmarshal(data, &cfg); err == nil {
				s.apiKey = cfg.APIKey
			}
		}
	}

	if env := os.Getenv("ANTHROPIC_API_KEY"); env != "" {
		s.apiKey = env
	}
}

func (s *keyStore) APIKey() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.apiKey
}

func (s *keyStore) HasAPIKey() bool {
	return s.APIKey() != ""
}

// SetAPIKey updates the in-memory value and, when persist is set, writes it
// to the platform config path.
func (s *keyStore) SetAPIKey(key string, persist bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.apiKey = key

	if !persist || s.path == "" {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(persistedConfig{APIKey: key}, "", "  ")
	if err != nil {
		return err
	}

	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return err
	}

	log.Info().Str("path", s.path).Msg("api key persisted")

	return nil
}
