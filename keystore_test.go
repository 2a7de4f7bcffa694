/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tempKeyStore(t *testing.T) *keyStore {
	t.Helper()

	return &keyStore{path: filepath.Join(t.TempDir(), "config.json")}
}

func TestKeyStoreInMemoryOnly(t *testing.T) {
	s := tempKeyStore(t)

	require.NoError(t, s.SetAPIKey("sk-ant-test", false))
	assert.True(t, s.HasAPIKey())
	assert.Equal(t, "sk-ant-test", s.APIKey())

	_, err := os.Stat(s.path)
	assert.True(t, os.IsNotExist(err), "persist=false must not write the config file")
}

func TestKeyStorePersistAndReload(t *testing.T) {
	s := tempKeyStore(t)

	require.NoError(t, s.SetAPIKey("sk-ant-persisted", true))

	fresh := &keyStore{path: s.path}
	fresh.reload()

	assert.Equal(t, "sk-ant-persisted", fresh.APIKey())
}

func TestKeyStoreEnvOverride(t *testing.T) {
	s := tempKeyStore(t)
	require.NoError(t, s.SetAPIKey("sk-ant-persisted", true))

	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-env")
	s.reload()

	assert.Equal(t, "sk-ant-env", s.APIKey())
}

func TestKeyStoreEmpty(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")

	s := tempKeyStore(t)
	s.reload()

	assert.False(t, s.HasAPIKey())
	assert.Empty(t, s.APIKey())
}
