package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattsolo1/grove-voice/pkg/api"
	"github.com/mattsolo1/grove-voice/pkg/models"
	"github.com/mattsolo1/grove-voice/pkg/state"
	"github.com/mattsolo1/grove-voice/pkg/workflow"
)

// backend is an in-memory stand-in for the EaseVoice API.
type backend struct {
	mu         sync.Mutex
	namespaces map[string]models.Namespace
	session    models.Session
	deleted    []string
	clones     int32
}

func newBackend() *backend {
	return &backend{
		namespaces: map[string]models.Namespace{
			"alpha": {Name: "alpha", HomePath: "/data/alpha"},
			"beta":  {Name: "beta", HomePath: "/data/beta"},
		},
		session: models.Session{},
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (b *backend) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /apis/v1/namespaces", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		var out []models.Namespace
		for _, ns := range b.namespaces {
			out = append(out, ns)
		}
		writeJSON(w, http.StatusOK, map[string]any{"namespaces": out})
	})
	mux.HandleFunc("POST /apis/v1/namespaces", func(w http.ResponseWriter, r *http.Request) {
		var body struct{ Name string }
		_ = json.NewDecoder(r.Body).Decode(&body)
		b.mu.Lock()
		defer b.mu.Unlock()
		ns := models.Namespace{Name: body.Name, HomePath: "/data/" + body.Name}
		b.namespaces[body.Name] = ns
		writeJSON(w, http.StatusOK, ns)
	})
	mux.HandleFunc("GET /apis/v1/namespaces/{name}", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		ns, ok := b.namespaces[r.PathValue("name")]
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{"detail": "namespace not found"})
			return
		}
		writeJSON(w, http.StatusOK, ns)
	})
	mux.HandleFunc("DELETE /apis/v1/namespaces/{name}", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.namespaces, r.PathValue("name"))
		b.deleted = append(b.deleted, r.PathValue("name"))
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("GET /apis/v1/session", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		writeJSON(w, http.StatusOK, b.session)
	})
	mux.HandleFunc("POST /apis/v1/voiceclone/clone", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&b.clones, 1)
		var req models.VoiceCloneRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.RefAudio == "" {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"detail": "ref_audio missing"})
			return
		}
		w.Header().Set("Content-Type", "audio/wav")
		_, _ = w.Write([]byte("RIFF-not-really"))
	})
	return mux
}

func newTestService(t *testing.T, b *backend) *Service {
	t.Helper()
	srv := httptest.NewServer(b.handler())
	t.Cleanup(srv.Close)

	cfg := &Config{
		API: api.Config{
			BaseURL:      srv.URL + "/apis/v1",
			RetryMax:     1,
			RetryWaitMin: time.Millisecond,
			RetryWaitMax: time.Millisecond,
		},
		DataDir: t.TempDir(),
	}
	svc, err := NewWithState(cfg, state.NewInMemory(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { svc.Close() })
	return svc
}

func TestCreateNamespaceBecomesCurrent(t *testing.T) {
	svc := newTestService(t, newBackend())
	ctx := context.Background()

	_, err := svc.CreateNamespace(ctx, "gamma")
	require.NoError(t, err)
	assert.Equal(t, "gamma", svc.State.Namespace.Current())

	_, err = svc.CreateNamespace(ctx, "delta")
	require.NoError(t, err)
	assert.Equal(t, "gamma", svc.State.Namespace.Current())

	ns, err := svc.CurrentNamespace(ctx)
	require.NoError(t, err)
	assert.Equal(t, "/data/gamma", ns.HomePath)
}

func TestCurrentNamespaceUnset(t *testing.T) {
	svc := newTestService(t, newBackend())
	_, err := svc.CurrentNamespace(context.Background())
	assert.ErrorIs(t, err, workflow.ErrNoNamespace)
}

func TestSwitchRefusedWhileJobRunning(t *testing.T) {
	b := newBackend()
	b.session["u-1"] = models.Task{UUID: "u-1", TaskName: "sovits", Status: models.TaskRunning}
	svc := newTestService(t, b)
	ctx := context.Background()

	require.NoError(t, svc.State.Namespace.SetCurrent("alpha"))
	require.NoError(t, svc.State.UUIDs.Set(models.StageSovits, "u-1"))

	err := svc.SwitchNamespace(ctx, "beta")
	assert.ErrorIs(t, err, ErrJobRunning)
	assert.Equal(t, "alpha", svc.State.Namespace.Current())

	b.mu.Lock()
	b.session["u-1"] = models.Task{UUID: "u-1", Status: models.TaskCompleted}
	b.mu.Unlock()

	require.NoError(t, svc.State.Paths.Set(models.StageSlicer, models.PathPair{OutputDir: "/data/alpha/slicer"}))
	require.NoError(t, svc.SwitchNamespace(ctx, "beta"))
	assert.Equal(t, "beta", svc.State.Namespace.Current())
	assert.Empty(t, svc.State.UUIDs.All())
	_, ok := svc.State.Paths.Get(models.StageSlicer)
	assert.False(t, ok)
}

func TestSwitchToMissingNamespace(t *testing.T) {
	svc := newTestService(t, newBackend())
	err := svc.SwitchNamespace(context.Background(), "nope")
	assert.ErrorIs(t, err, api.ErrNotFound)
	assert.Equal(t, "", svc.State.Namespace.Current())
}

func TestDeleteActiveNamespace(t *testing.T) {
	b := newBackend()
	svc := newTestService(t, b)
	ctx := context.Background()
	require.NoError(t, svc.State.Namespace.SetCurrent("alpha"))

	assert.ErrorIs(t, svc.DeleteNamespace(ctx, "alpha", ""), ErrActiveNamespace)
	assert.Empty(t, b.deleted)

	require.NoError(t, svc.DeleteNamespace(ctx, "alpha", "beta"))
	assert.Equal(t, "beta", svc.State.Namespace.Current())
	assert.Equal(t, []string{"alpha"}, b.deleted)
}

func TestPrepareFormUsesNamespace(t *testing.T) {
	svc := newTestService(t, newBackend())
	ctx := context.Background()
	require.NoError(t, svc.State.Namespace.SetCurrent("alpha"))

	form, err := svc.PrepareForm(ctx, models.StageDenoise)
	require.NoError(t, err)
	denoise := form.(*workflow.DenoiseForm)
	assert.Equal(t, "/data/alpha/slicer", denoise.SourceDir)

	_, err = svc.PrepareForm(ctx, models.StageVoiceClone)
	assert.Error(t, err)
}

func TestCloneStoresResult(t *testing.T) {
	b := newBackend()
	svc := newTestService(t, b)
	ctx := context.Background()

	ref, err := svc.Blobs.Create([]byte("reference"), ".wav")
	require.NoError(t, err)

	form := workflow.NewVoiceCloneForm()
	form.Text = "hello there"
	form.RefAudio = ref
	form.SovitsPath = "s.pth"
	form.GPTPath = "g.ckpt"

	first, err := svc.Clone(ctx, form)
	require.NoError(t, err)
	data, err := os.ReadFile(first.FilePath)
	require.NoError(t, err)
	assert.Equal(t, "RIFF-not-really", string(data))
	assert.Equal(t, "hello there", svc.State.Audio.Results()[0].Text)

	firstClip := svc.State.Audio.Result()
	_, err = svc.Clone(ctx, form)
	require.NoError(t, err)
	assert.Len(t, svc.State.Audio.Results(), 2)
	assert.NotEqual(t, firstClip.URL, svc.State.Audio.Result().URL)

	// The superseded clip's URL is released but the durable file stays.
	_, err = svc.Blobs.Open(firstClip.URL)
	assert.Error(t, err)
	assert.FileExists(t, first.FilePath)

	require.NoError(t, svc.DeleteResult(first.ID))
	assert.NoFileExists(t, first.FilePath)
	assert.Len(t, svc.State.Audio.Results(), 1)
}

func TestCloneValidatesBeforeRequest(t *testing.T) {
	b := newBackend()
	svc := newTestService(t, b)

	_, err := svc.Clone(context.Background(), workflow.NewVoiceCloneForm())
	var verr *workflow.ValidationError
	assert.ErrorAs(t, err, &verr)
	assert.Zero(t, atomic.LoadInt32(&b.clones))
}

func TestSetReferenceReleasesPrevious(t *testing.T) {
	svc := newTestService(t, newBackend())

	a, err := svc.Blobs.Create([]byte("a"), ".wav")
	require.NoError(t, err)
	bURL, err := svc.Blobs.Create([]byte("b"), ".wav")
	require.NoError(t, err)

	svc.SetReference(models.AudioState{URL: a})
	svc.SetReference(models.AudioState{URL: bURL})

	_, err = svc.Blobs.Open(a)
	assert.Error(t, err)
	_, err = svc.Blobs.Open(bURL)
	assert.NoError(t, err)
}
