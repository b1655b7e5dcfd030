package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCredentials(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"betalist:\n  username: agent\n  password: hunter2\nindiehackers:\n  email: agent@example.com\n"), 0o600))

	creds, err := loadCredentials(path)
	require.NoError(t, err)

	got, ok := creds.CredentialsFor("betalist")
	require.True(t, ok)
	assert.Equal(t, "agent", got.Username)
	assert.Equal(t, "hunter2", got.Password)

	got, ok = creds.CredentialsFor("indiehackers")
	require.True(t, ok)
	assert.Equal(t, "agent@example.com", got.Email)

	_, ok = creds.CredentialsFor("missing")
	assert.False(t, ok)
}

func TestLoadCredentialsEmptyPath(t *testing.T) {
	creds, err := loadCredentials("")
	require.NoError(t, err)
	assert.Empty(t, creds)
}

func TestLoadCredentialsMissingFile(t *testing.T) {
	_, err := loadCredentials(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
