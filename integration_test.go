//go:build integration

package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattsolo1/grove-voice/pkg/api"
	"github.com/mattsolo1/grove-voice/pkg/service"
)

// TestIntegration runs against a live backend, e.g.
//
//	EV_INTEGRATION_API=http://localhost:8000/apis/v1 go test -tags integration .
func TestIntegration(t *testing.T) {
	base := os.Getenv("EV_INTEGRATION_API")
	if base == "" {
		t.Skip("Skipping integration test. Set EV_INTEGRATION_API to a backend base URL to run.")
	}

	tmpDir := t.TempDir()
	cfg := &service.Config{
		API:          api.DefaultConfig(),
		DataDir:      filepath.Join(tmpDir, "data"),
		PollInterval: time.Second,
	}
	cfg.API.BaseURL = base

	svc, err := service.New(cfg, nil)
	require.NoError(t, err)
	defer svc.Close()

	ctx := context.Background()
	name := fmt.Sprintf("ev-it-%d", time.Now().UnixNano())

	t.Run("CreateNamespace", func(t *testing.T) {
		ns, err := svc.CreateNamespace(ctx, name)
		require.NoError(t, err)
		assert.Equal(t, name, ns.Name)
		assert.NotEmpty(t, ns.HomePath)
		assert.Equal(t, name, svc.State.Namespace.Current())
	})
	defer func() { _ = svc.API.DeleteNamespace(ctx, name) }()

	t.Run("FolderRoundTrip", func(t *testing.T) {
		ns, err := svc.CurrentNamespace(ctx)
		require.NoError(t, err)

		require.NoError(t, svc.Files.CreateFolder(ctx, ns.HomePath, "voices"))
		voices := filepath.ToSlash(filepath.Join(ns.HomePath, "voices"))
		require.NoError(t, svc.Files.Upload(ctx, voices, "hello.txt", []byte("hello")))

		listing := svc.Files.Refetch(ctx, voices)
		require.Len(t, listing.Files, 1)
		assert.Equal(t, "hello.txt", listing.Files[0].Name)

		data, err := svc.Files.Download(ctx, listing.Files[0].Path)
		require.NoError(t, err)
		assert.Equal(t, "hello", string(data))
	})

	t.Run("Overview", func(t *testing.T) {
		ov, err := svc.Overview(ctx)
		require.NoError(t, err)
		assert.Equal(t, name, ov.Namespace.Name)
	})
}
