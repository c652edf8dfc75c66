package browser

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/mattsolo1/grove-voice/pkg/audio"
	"github.com/mattsolo1/grove-voice/pkg/files"
	"github.com/mattsolo1/grove-voice/pkg/models"
	"github.com/mattsolo1/grove-voice/pkg/service"
)

type listingLoadedMsg struct {
	path    string
	listing models.Listing
}

type mutationKind int

const (
	mutationCreate mutationKind = iota
	mutationUpload
	mutationDelete
)

// mutationDoneMsg arrives after the mutation and its refetch both finished.
type mutationDoneMsg struct {
	kind    mutationKind
	path    string
	listing models.Listing
	err     error
	// local is set when the mutation failed before any request was made.
	local bool
}

type previewLoadedMsg struct {
	preview files.Preview
}

type playerLoadedMsg struct {
	url string
	err error
}

type playerStateMsg struct {
	state audio.PlayerState
}

type playerTickMsg struct{}

type toastMsg struct {
	level files.Level
	text  string
}

const requestTimeout = 60 * time.Second

func fetchListingCmd(svc *service.Service, dir string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		return listingLoadedMsg{path: dir, listing: svc.Files.List(ctx, dir)}
	}
}

func settled(svc *service.Service, kind mutationKind, dir string, err error) mutationDoneMsg {
	l, ok := svc.Files.Cached(dir)
	if !ok {
		l = models.Listing{Path: dir}
	}
	return mutationDoneMsg{kind: kind, path: dir, listing: l, err: err}
}

func createFolderCmd(svc *service.Service, dir, name string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		return settled(svc, mutationCreate, dir, svc.Files.CreateFolder(ctx, dir, name))
	}
}

func uploadCmd(svc *service.Service, dir, localPath string) tea.Cmd {
	return func() tea.Msg {
		data, err := os.ReadFile(expandHome(localPath))
		if err != nil {
			return mutationDoneMsg{kind: mutationUpload, path: dir, err: fmt.Errorf("read %s: %w", localPath, err), local: true}
		}
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		return settled(svc, mutationUpload, dir, svc.Files.Upload(ctx, dir, filepath.Base(localPath), data))
	}
}

func deleteCmd(svc *service.Service, dir string, paths []string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		return settled(svc, mutationDelete, dir, svc.Files.DeleteMany(ctx, dir, paths))
	}
}

func loadPreviewCmd(svc *service.Service, p string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		return previewLoadedMsg{preview: svc.Previewer.Load(ctx, p)}
	}
}

func loadAudioCmd(player *audio.Player, url string) tea.Cmd {
	return func() tea.Msg {
		return playerLoadedMsg{url: url, err: player.Load(url)}
	}
}

func waitForToast(ch <-chan toastMsg) tea.Cmd {
	return func() tea.Msg {
		return <-ch
	}
}

func waitForPlayer(ch <-chan audio.PlayerState) tea.Cmd {
	return func() tea.Msg {
		return playerStateMsg{state: <-ch}
	}
}

func playerTick() tea.Cmd {
	return tea.Tick(200*time.Millisecond, func(time.Time) tea.Msg { return playerTickMsg{} })
}
