package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattsolo1/grove-voice/pkg/api"
	"github.com/mattsolo1/grove-voice/pkg/models"
	"github.com/mattsolo1/grove-voice/pkg/service"
	"github.com/mattsolo1/grove-voice/pkg/state"
)

func testService(t *testing.T) *service.Service {
	t.Helper()
	namespaces := []models.Namespace{
		{Name: "demo", HomePath: "/data/demo"},
		{Name: "other", HomePath: "/data/other"},
	}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /apis/v1/namespaces", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"namespaces": namespaces})
	})
	mux.HandleFunc("GET /apis/v1/namespaces/{name}", func(w http.ResponseWriter, r *http.Request) {
		for _, ns := range namespaces {
			if ns.Name == r.PathValue("name") {
				w.Header().Set("Content-Type", "application/json")
				_ = json.NewEncoder(w).Encode(ns)
				return
			}
		}
		w.WriteHeader(http.StatusNotFound)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	s, err := service.NewWithState(&service.Config{
		API: api.Config{
			BaseURL:      srv.URL + "/apis/v1",
			RetryMax:     1,
			RetryWaitMin: time.Millisecond,
			RetryWaitMax: time.Millisecond,
		},
		DataDir: t.TempDir(),
	}, state.NewInMemory(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.State.Namespace.SetCurrent("demo"))
	return s
}

func execute(t *testing.T, cmd *cobra.Command, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	require.NoError(t, cmd.ExecuteContext(context.Background()))
	return out.String()
}

func TestRemotePath(t *testing.T) {
	s := testService(t)
	ctx := context.Background()

	tests := []struct {
		in   string
		want string
	}{
		{"", "/data/demo"},
		{"voices", "/data/demo/voices"},
		{"voices/../slicer/", "/data/demo/slicer"},
		{"/data/demo/asr", "/data/demo/asr"},
	}
	for _, tt := range tests {
		got, err := remotePath(ctx, s, tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}

	_, err := remotePath(ctx, s, "../other")
	assert.ErrorContains(t, err, "outside namespace demo")
	_, err = remotePath(ctx, s, "/data/demo-evil")
	assert.Error(t, err)
}

func TestNamespaceListMarksCurrent(t *testing.T) {
	s := testService(t)
	out := execute(t, NewNamespaceCmd(&s), "list")
	assert.Contains(t, out, "* ")
	assert.Contains(t, out, "demo")
	assert.Contains(t, out, "/data/other")

	out = execute(t, NewNamespaceCmd(&s), "list", "-o", "json")
	var list []models.Namespace
	require.NoError(t, json.Unmarshal([]byte(out), &list))
	assert.Len(t, list, 2)
}

func TestResultsListAndShortIDRemove(t *testing.T) {
	s := testService(t)
	require.NoError(t, s.State.Audio.AddResult(models.SynthesisResult{
		ID:        "0123456789abcdef",
		Text:      "hello there",
		CreatedAt: time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC),
	}))

	out := execute(t, NewResultsCmd(&s))
	assert.Contains(t, out, "01234567")
	assert.Contains(t, out, "hello there")
	assert.Contains(t, out, "2026-03-01 09:30")

	execute(t, NewResultsCmd(&s), "rm", "01234567")
	assert.Empty(t, s.State.Audio.Results())
}

func TestNeedsService(t *testing.T) {
	root := &cobra.Command{Use: "ev"}
	cfg := NewConfigCmd()
	root.AddCommand(cfg, NewVersionCmd(), NewTuiCmd(nil))

	show, _, err := root.Find([]string{"config", "show"})
	require.NoError(t, err)
	assert.False(t, NeedsService(show))

	version, _, err := root.Find([]string{"version"})
	require.NoError(t, err)
	assert.False(t, NeedsService(version))

	tui, _, err := root.Find([]string{"tui"})
	require.NoError(t, err)
	assert.True(t, NeedsService(tui))
}

func TestSavedReferenceBecomesDefault(t *testing.T) {
	s := testService(t)
	assert.Empty(t, latestReference(s))

	url, err := s.Blobs.Create([]byte("RIFF"), ".wav")
	require.NoError(t, err)
	saved, err := saveReference(s, models.AudioState{URL: url})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(s.Config.DataDir, "references"), filepath.Dir(saved))
	assert.Equal(t, ".wav", filepath.Ext(saved))

	// The take outlives its blob.
	require.NoError(t, s.Blobs.Release(url))
	data, err := os.ReadFile(saved)
	require.NoError(t, err)
	assert.Equal(t, "RIFF", string(data))

	older := filepath.Join(filepath.Dir(saved), "reference-old.wav")
	require.NoError(t, os.WriteFile(older, nil, 0644))
	past := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(older, past, past))
	assert.Equal(t, saved, latestReference(s))
}
