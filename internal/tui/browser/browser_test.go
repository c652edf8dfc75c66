package browser

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattsolo1/grove-voice/pkg/api"
	"github.com/mattsolo1/grove-voice/pkg/audio"
	"github.com/mattsolo1/grove-voice/pkg/files"
	"github.com/mattsolo1/grove-voice/pkg/models"
	"github.com/mattsolo1/grove-voice/pkg/service"
	"github.com/mattsolo1/grove-voice/pkg/state"
)

const root = "/home/ns/demo"

func loaded(t *testing.T) Model {
	t.Helper()
	m := New(nil, root)
	m = step(m, tea.WindowSizeMsg{Width: 120, Height: 30})
	now := time.Now()
	return step(m, listingLoadedMsg{path: root, listing: models.Listing{
		Path: root,
		Directories: []models.FileItem{
			models.NewFolderItem(root, "voices", now),
			models.NewFolderItem(root, "slicer", now),
		},
		Files: []models.FileItem{
			models.NewFileItem(root, "notes.txt", 12, now),
			models.NewFileItem(root, "take.wav", 2048, now),
		},
	}})
}

func step(m Model, msg tea.Msg) Model {
	next, _ := m.Update(msg)
	return next.(Model)
}

func keyRune(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

func TestListingRendersDirectoriesFirst(t *testing.T) {
	m := loaded(t)
	require.Len(t, m.items, 4)
	assert.Equal(t, "voices", m.items[0].Name)
	assert.False(t, m.loading)

	out := m.View()
	assert.Contains(t, out, "1:demo")
	assert.Contains(t, out, "take.wav")
	assert.Contains(t, out, "2.0 KB")
}

func TestStaleListingIgnored(t *testing.T) {
	m := loaded(t)
	m = step(m, listingLoadedMsg{path: "/home/ns/demo/other", listing: models.Listing{Path: "/home/ns/demo/other"}})
	assert.Len(t, m.items, 4)
}

func TestOpenFolderAndBreadcrumbBack(t *testing.T) {
	m := loaded(t)
	m = step(m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, root+"/voices", m.Path())
	assert.True(t, m.loading)
	assert.Empty(t, m.items)

	m = step(m, listingLoadedMsg{path: root + "/voices", listing: models.Listing{Path: root + "/voices"}})
	assert.Contains(t, m.View(), "2:voices")
	assert.Contains(t, m.View(), "empty folder")

	m = step(m, keyRune('1'))
	assert.Equal(t, root, m.Path())
}

func TestBackspaceGoesUpButNotPastRoot(t *testing.T) {
	m := loaded(t)
	m = step(m, tea.KeyMsg{Type: tea.KeyEnter})
	m = step(m, tea.KeyMsg{Type: tea.KeyBackspace})
	assert.Equal(t, root, m.Path())

	m = step(m, tea.KeyMsg{Type: tea.KeyBackspace})
	assert.Equal(t, root, m.Path())
}

func TestCursorClampsAndGridMovesByRow(t *testing.T) {
	m := loaded(t)
	m = step(m, keyRune('G'))
	assert.Equal(t, 3, m.cursor)
	m = step(m, keyRune('j'))
	assert.Equal(t, 3, m.cursor)

	m = step(m, keyRune('g'))
	m = step(m, keyRune('v'))
	assert.Equal(t, gridView, m.viewMode)
	// 120 columns fit five cells, so down stays on the only row.
	m = step(m, keyRune('j'))
	assert.Equal(t, 3, m.cursor)
	m = step(m, keyRune('h'))
	assert.Equal(t, 2, m.cursor)
}

func TestSelectionAndDeleteConfirm(t *testing.T) {
	m := loaded(t)
	m = step(m, keyRune(' '))
	m = step(m, keyRune(' '))
	assert.Equal(t, 2, m.nav.Selection().Len())
	assert.Equal(t, 2, m.cursor)
	assert.Contains(t, m.View(), "[2 selected]")

	m = step(m, keyRune('x'))
	require.True(t, m.confirm.Active)
	assert.Contains(t, m.View(), "Delete 2 item(s)?")
	assert.Contains(t, m.View(), "slicer")

	next, cmd := m.Update(keyRune('y'))
	m = next.(Model)
	require.NotNil(t, cmd)
	assert.True(t, m.confirm.Busy)

	m = step(m, mutationDoneMsg{kind: mutationDelete, path: root, listing: models.Listing{
		Path:  root,
		Files: []models.FileItem{models.NewFileItem(root, "take.wav", 2048, time.Now())},
	}})
	assert.False(t, m.confirm.Active)
	assert.Zero(t, m.nav.Selection().Len())
	assert.Len(t, m.items, 1)
	assert.Equal(t, 0, m.cursor)
}

func TestSelectAllAndNone(t *testing.T) {
	m := loaded(t)
	m = step(m, keyRune('a'))
	assert.Equal(t, 4, m.nav.Selection().Len())
	m = step(m, keyRune('A'))
	assert.Zero(t, m.nav.Selection().Len())
}

func TestNewFolderInputEscapes(t *testing.T) {
	m := loaded(t)
	m = step(m, keyRune('n'))
	require.Equal(t, inputFolder, m.inputMode)
	assert.Contains(t, m.View(), "New folder:")

	// Typed keys go to the input, not navigation.
	m = step(m, keyRune('j'))
	assert.Equal(t, 0, m.cursor)
	assert.Equal(t, "j", m.input.Value())

	m = step(m, tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, inputNone, m.inputMode)
}

func TestToastsAndLocalUploadFailure(t *testing.T) {
	m := loaded(t)
	m = step(m, toastMsg{level: files.LevelInfo, text: "Folder created"})
	assert.Contains(t, m.View(), "Folder created")

	m = step(m, mutationDoneMsg{kind: mutationUpload, path: root, err: errors.New("read ~/x.wav: no such file"), local: true})
	assert.Equal(t, files.LevelError, m.toastLevel)
	assert.Contains(t, m.View(), "no such file")
	// The listing survives a failure that never reached the server.
	assert.Len(t, m.items, 4)
}

func TestTextPreview(t *testing.T) {
	m := loaded(t)
	m = step(m, previewLoadedMsg{preview: files.Preview{
		Name: "notes.txt",
		Path: root + "/notes.txt",
		Kind: files.PreviewText,
		Text: "hello transcript",
	}})
	require.NotNil(t, m.preview)
	assert.Equal(t, 60, m.listWidth())
	assert.Contains(t, m.View(), "hello transcript")

	m = step(m, tea.KeyMsg{Type: tea.KeyEsc})
	assert.Nil(t, m.preview)
	assert.Equal(t, root, m.Path())
}

func TestHelpToggle(t *testing.T) {
	m := loaded(t)
	m = step(m, keyRune('?'))
	assert.True(t, m.help.ShowAll)
	assert.Contains(t, m.View(), "new folder")
	m = step(m, keyRune('?'))
	assert.False(t, m.help.ShowAll)
}

func TestFormatters(t *testing.T) {
	assert.Equal(t, "512 B", formatSize(512))
	assert.Equal(t, "1.5 MB", formatSize(1536*1024))
	assert.Equal(t, "-", formatRelativeTime(time.Time{}))
	assert.Equal(t, "just now", formatRelativeTime(time.Now()))
	assert.Equal(t, "abc…", truncate("abcdef", 4))
}

// listingServer serves /directories for /ns with a sub folder. Every request for /ns
// reports one more file than the last.
func listingServer(t *testing.T) (*service.Service, *int32) {
	t.Helper()
	var rootHits int32
	mux := http.NewServeMux()
	mux.HandleFunc("GET /apis/v1/directories", func(w http.ResponseWriter, r *http.Request) {
		dir := r.URL.Query().Get("directoryPath")
		body := map[string]any{"directoryPath": dir, "files": []any{}, "directories": []any{}}
		if dir == "/ns" {
			n := atomic.AddInt32(&rootHits, 1)
			var fs []map[string]any
			for i := int32(0); i < n; i++ {
				fs = append(fs, map[string]any{"fileName": fmt.Sprintf("clip%d.wav", i), "fileSize": 10})
			}
			body["files"] = fs
			body["directories"] = []map[string]any{{"directoryName": "sub"}}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(body)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	svc, err := service.NewWithState(&service.Config{
		API: api.Config{
			BaseURL:      srv.URL + "/apis/v1",
			RetryMax:     1,
			RetryWaitMin: time.Millisecond,
			RetryWaitMax: time.Millisecond,
		},
		DataDir: t.TempDir(),
	}, state.NewInMemory(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { svc.Close() })
	return svc, &rootHits
}

func TestRevisitShowsCachedThenRefetches(t *testing.T) {
	svc, rootHits := listingServer(t)
	m := New(svc, "/ns")
	m = step(m, tea.WindowSizeMsg{Width: 120, Height: 30})
	m = step(m, fetchListingCmd(svc, "/ns")())
	require.Len(t, m.items, 2)

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(Model)
	require.Equal(t, "/ns/sub", m.Path())
	m = step(m, cmd())

	next, cmd = m.Update(tea.KeyMsg{Type: tea.KeyBackspace})
	m = next.(Model)
	require.Equal(t, "/ns", m.Path())
	// The old listing stays on screen while the new one loads.
	assert.True(t, m.loading)
	assert.Len(t, m.items, 2)

	require.NotNil(t, cmd)
	m = step(m, cmd())
	assert.False(t, m.loading)
	assert.Len(t, m.items, 3)
	assert.Equal(t, int32(2), atomic.LoadInt32(rootHits))
}

type stubEngine struct{}

func (stubEngine) Load(string) (audio.Instance, error) {
	return &stubInstance{events: make(chan audio.Event)}, nil
}

type stubInstance struct{ events chan audio.Event }

func (i *stubInstance) Play() error                { return nil }
func (i *stubInstance) Pause() error               { return nil }
func (i *stubInstance) Events() <-chan audio.Event { return i.events }
func (i *stubInstance) Close() error               { close(i.events); return nil }

func TestPlayerStateReadFromPlayer(t *testing.T) {
	blobs, err := audio.NewBlobStore(t.TempDir())
	require.NoError(t, err)
	clip := filepath.Join(t.TempDir(), "clip.mp3")
	require.NoError(t, os.WriteFile(clip, []byte("id3"), 0644))

	m := loaded(t)
	m.player = audio.NewPlayer(stubEngine{}, blobs)
	t.Cleanup(func() { _ = m.player.Close() })
	require.NoError(t, m.player.Load(blobs.Link(clip)))

	// A stale event left behind after dropped ones must not win over the player.
	m = step(m, playerStateMsg{state: audio.StateLoading})
	assert.Equal(t, audio.StateReady, m.playerState)
}

func TestKeysExtendSharedBase(t *testing.T) {
	assert.True(t, key.Matches(tea.KeyMsg{Type: tea.KeyBackspace}, keys.Back))
	assert.True(t, key.Matches(keyRune('h'), keys.Left))
	assert.False(t, key.Matches(tea.KeyMsg{Type: tea.KeyEsc}, keys.Quit))
	assert.Len(t, keys.FullHelp(), len(keys.Base.FullHelp())+3)
}
