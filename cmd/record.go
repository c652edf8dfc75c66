package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"
	grovelogging "github.com/mattsolo1/grove-core/logging"
	"github.com/spf13/cobra"

	"github.com/mattsolo1/grove-voice/internal/logging"
	"github.com/mattsolo1/grove-voice/internal/tui/recorder"
	"github.com/mattsolo1/grove-voice/pkg/audio"
	"github.com/mattsolo1/grove-voice/pkg/models"
	"github.com/mattsolo1/grove-voice/pkg/service"
)

var recordUlog = grovelogging.NewUnifiedLogger("grove-voice.cmd.record")

func requireTerminal() error {
	if !isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		return fmt.Errorf("this command requires an interactive terminal")
	}
	return nil
}

func NewRecordCmd(svc **service.Service) *cobra.Command {
	var (
		upload bool
		dest   string
		name   string
	)

	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record a reference clip from the microphone",
		Long: `Record a reference clip for voice cloning. Takes are saved under
<data_dir>/references and the newest one is the default reference of 'ev clone'.
With --upload the take is also stored in the namespace (voices/ by default).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireTerminal(); err != nil {
				return err
			}
			ctx := cmd.Context()
			s := *svc

			logging.Silence()
			final, err := tea.NewProgram(recorder.New(s)).Run()
			if err != nil {
				return fmt.Errorf("error running recorder: %w", err)
			}
			clip := final.(recorder.Model).Clip()
			if clip.Empty() {
				return nil
			}
			saved, err := saveReference(s, clip)
			if err != nil {
				return err
			}
			recordUlog.Info("Reference clip kept").
				Field("file", saved).
				Field("duration", clip.Duration).
				Pretty(fmt.Sprintf("Reference clip: %s (%s)", saved, orDash(clip.Duration))).
				PrettyOnly().
				Log(ctx)

			if !upload {
				return nil
			}
			return uploadClip(ctx, filesService(svc), clip, dest, name)
		},
	}

	cmd.Flags().BoolVar(&upload, "upload", false, "Upload the clip to the namespace")
	cmd.Flags().StringVar(&dest, "to", "voices", "Destination directory for --upload")
	cmd.Flags().StringVar(&name, "name", "", "Remote file name (default: reference-<time>.wav)")
	return cmd
}

func referencesDir(s *service.Service) string {
	return filepath.Join(s.Config.DataDir, "references")
}

// saveReference copies the recorded clip out of the blob store so it outlives the process.
func saveReference(s *service.Service, clip models.AudioState) (string, error) {
	src, err := s.Blobs.Open(clip.URL)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(src)
	if err != nil {
		return "", fmt.Errorf("read clip: %w", err)
	}
	dir := referencesDir(s)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create references dir: %w", err)
	}
	dst := filepath.Join(dir, fmt.Sprintf("reference-%s%s", time.Now().Format("20060102-150405"), filepath.Ext(src)))
	if err := os.WriteFile(dst, data, 0644); err != nil {
		return "", fmt.Errorf("save clip: %w", err)
	}
	return dst, nil
}

// latestReference returns the newest saved take, or "" when there is none.
func latestReference(s *service.Service) string {
	entries, err := os.ReadDir(referencesDir(s))
	if err != nil {
		return ""
	}
	var newest string
	var newestMod time.Time
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if newest == "" || info.ModTime().After(newestMod) {
			newest, newestMod = e.Name(), info.ModTime()
		}
	}
	if newest == "" {
		return ""
	}
	return filepath.Join(referencesDir(s), newest)
}

func uploadClip(ctx context.Context, s *service.Service, clip models.AudioState, dest, name string) error {
	home, err := remotePath(ctx, s, "")
	if err != nil {
		return err
	}
	dir, err := remotePath(ctx, s, dest)
	if err != nil {
		return err
	}
	local, err := s.Blobs.Open(clip.URL)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(local)
	if err != nil {
		return fmt.Errorf("read clip: %w", err)
	}
	if name == "" {
		name = fmt.Sprintf("reference-%s%s", time.Now().Format("20060102-150405"), path.Ext(local))
	}
	if dir != home && !hasEntry(s.Files.List(ctx, path.Dir(dir)), dir) {
		if err := s.Files.CreateFolder(ctx, path.Dir(dir), path.Base(dir)); err != nil {
			return err
		}
	}
	return s.Files.Upload(ctx, dir, name, data)
}

func hasEntry(l models.Listing, p string) bool {
	for _, d := range l.Directories {
		if d.Path == p {
			return true
		}
	}
	return false
}

func NewPlayCmd(svc **service.Service) *cobra.Command {
	return &cobra.Command{
		Use:   "play [file]",
		Short: "Play a local clip, or the newest synthesised one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s := *svc
			var url string
			if len(args) == 1 {
				abs, err := filepath.Abs(args[0])
				if err != nil {
					return err
				}
				if _, err := os.Stat(abs); err != nil {
					return err
				}
				url = s.Blobs.Link(abs)
			} else {
				results := s.State.Audio.Results()
				if len(results) == 0 {
					return fmt.Errorf("nothing to play: pass a file or run 'ev clone' first")
				}
				url = s.Blobs.Link(results[0].FilePath)
			}
			defer func() { _ = s.Blobs.Release(url) }()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			return playBlocking(ctx, s, url)
		},
	}
}

// playBlocking plays url to the end, or until ctx is cancelled.
func playBlocking(ctx context.Context, s *service.Service, url string) error {
	states := make(chan audio.PlayerState, 8)
	player := s.NewPlayer(audio.WithStateHandler(func(st audio.PlayerState) {
		select {
		case states <- st:
		default:
		}
	}))
	defer player.Close()

	if err := player.Load(url); err != nil {
		return err
	}
	if err := player.Play(); err != nil {
		return err
	}

	started := false
	for {
		select {
		case <-ctx.Done():
			_ = player.Pause()
			return nil
		case st := <-states:
			switch st {
			case audio.StatePlaying:
				started = true
			case audio.StateReady:
				if started {
					return nil
				}
			case audio.StateUnplayable:
				return fmt.Errorf("%w: %v", audio.ErrUnplayable, player.Err())
			}
		}
	}
}
