package state

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattsolo1/grove-voice/pkg/models"
)

func TestOpenCreatesDatabase(t *testing.T) {
	dataDir := filepath.Join(t.TempDir(), "data")

	st, err := Open(dataDir)
	require.NoError(t, err)
	defer st.Close()

	_, err = os.Stat(filepath.Join(dataDir, "state.db"))
	assert.NoError(t, err)
}

func TestStatePersistsAcrossReopen(t *testing.T) {
	dataDir := t.TempDir()

	st, err := Open(dataDir)
	require.NoError(t, err)

	require.NoError(t, st.Namespace.SetCurrent("demo"))
	require.NoError(t, st.Paths.Set(models.StageASR, models.PathPair{SourceDir: "/d/denoise", OutputDir: "/d/asr"}))
	require.NoError(t, st.UUIDs.Set(models.StageASR, "uuid-asr"))
	require.NoError(t, st.Audio.AddResult(models.SynthesisResult{ID: "r1", Text: "hello", CreatedAt: time.Now()}))
	st.Audio.SetReference(models.AudioState{URL: "blob:1", Name: "ref.wav"})
	require.NoError(t, st.Close())

	reopened, err := Open(dataDir)
	require.NoError(t, err)
	defer reopened.Close()

	assert.Equal(t, "demo", reopened.Namespace.Current())

	pair, ok := reopened.Paths.Get(models.StageASR)
	require.True(t, ok)
	assert.Equal(t, "/d/asr", pair.OutputDir)

	assert.Equal(t, "uuid-asr", reopened.UUIDs.Get(models.StageASR))

	results := reopened.Audio.Results()
	require.Len(t, results, 1)
	assert.Equal(t, "hello", results[0].Text)

	// Clips other than synthesis results are session-only.
	assert.True(t, reopened.Audio.Reference().Empty())
}

func TestLastWriteWins(t *testing.T) {
	st := NewInMemory()

	require.NoError(t, st.Namespace.SetCurrent("a"))
	require.NoError(t, st.Namespace.SetCurrent("b"))
	assert.Equal(t, "b", st.Namespace.Current())

	require.NoError(t, st.UUIDs.Set(models.StageGPT, "1"))
	require.NoError(t, st.UUIDs.Set(models.StageGPT, "2"))
	assert.Equal(t, "2", st.UUIDs.Get(models.StageGPT))

	require.NoError(t, st.UUIDs.Clear(models.StageGPT))
	assert.Equal(t, "", st.UUIDs.Get(models.StageGPT))

	require.NoError(t, st.Namespace.SetCurrent(""))
	assert.Equal(t, "", st.Namespace.Current())
}

func TestWritesVisibleToOtherHolders(t *testing.T) {
	st := NewInMemory()
	view1, view2 := st, st

	require.NoError(t, view1.Paths.Set(models.StageSlicer, models.PathPair{OutputDir: "/out"}))
	pair, ok := view2.Paths.Get(models.StageSlicer)
	require.True(t, ok)
	assert.Equal(t, "/out", pair.OutputDir)
}

func TestSetReferenceReturnsSuperseded(t *testing.T) {
	st := NewInMemory()

	prev := st.Audio.SetReference(models.AudioState{URL: "blob:1"})
	assert.True(t, prev.Empty())

	prev = st.Audio.SetReference(models.AudioState{URL: "blob:2"})
	assert.Equal(t, "blob:1", prev.URL)
	assert.Equal(t, "blob:2", st.Audio.Reference().URL)
}

func TestRemoveResult(t *testing.T) {
	st := NewInMemory()
	require.NoError(t, st.Audio.AddResult(models.SynthesisResult{ID: "a"}))
	require.NoError(t, st.Audio.AddResult(models.SynthesisResult{ID: "b"}))

	results := st.Audio.Results()
	require.Len(t, results, 2)
	assert.Equal(t, "b", results[0].ID)

	removed, ok, err := st.Audio.RemoveResult("a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "a", removed.ID)
	assert.Len(t, st.Audio.Results(), 1)

	_, ok, err = st.Audio.RemoveResult("missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPathReset(t *testing.T) {
	st := NewInMemory()
	require.NoError(t, st.Paths.Set(models.StageUVR5, models.PathPair{OutputDir: "/x"}))
	require.NoError(t, st.Paths.Reset())
	_, ok := st.Paths.Get(models.StageUVR5)
	assert.False(t, ok)
}
