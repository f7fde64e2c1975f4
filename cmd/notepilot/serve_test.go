package main

import (
	"context"
	"net"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mklimuk/notepilot/pkg/config"
	"github.com/mklimuk/notepilot/pkg/db"
)

// useConfig replaces the command configuration for the duration of a test.
func useConfig(t *testing.T, c config.Config) {
	t.Helper()
	saved := cfg
	t.Cleanup(func() { cfg = saved })
	cfg = c
}

func TestServeStartsNothingWhenSetupFails(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	useConfig(t, config.Config{})
	cfg.Auth.Tokens = map[string]string{"token": "alice"}
	cfg.HTTP.Addr = addr
	cfg.Database.Path = db.MemoryPath
	cfg.Database.RetryAttempts = 1
	cfg.Vault.Path = t.TempDir()
	// the Drive backup is the last component built and fails here
	cfg.Drive.FolderID = "folder"
	cfg.Drive.CredentialsFile = filepath.Join(t.TempDir(), "missing.json")

	err = serve(context.Background())
	require.ErrorContains(t, err, "credentials")

	// the HTTP server never started, so the address is still free
	ln, err = net.Listen("tcp", addr)
	require.NoError(t, err)
	require.NoError(t, ln.Close())
}
