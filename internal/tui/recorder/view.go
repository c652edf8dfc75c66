package recorder

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mattsolo1/grove-core/tui/theme"

	"github.com/mattsolo1/grove-voice/internal/tui/styles"
	"github.com/mattsolo1/grove-voice/pkg/audio"
	"github.com/mattsolo1/grove-voice/pkg/models"
)

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(theme.DefaultTheme.Header.Render("Reference clip"))
	b.WriteString("\n\n")

	switch {
	case m.starting:
		b.WriteString(m.spinner.View() + " opening microphone")
	case m.recording:
		b.WriteString(styles.Error.Render("● REC "))
		b.WriteString(models.FormatDuration(m.elapsed))
		b.WriteString("\n")
		b.WriteString(m.renderTip())
	case m.clip.Empty():
		b.WriteString(theme.DefaultTheme.Muted.Render("Press r to start recording."))
	default:
		b.WriteString(m.renderClip())
	}

	if m.err != nil {
		b.WriteString("\n\n")
		b.WriteString(styles.Error.Render(errorText(m.err)))
	}

	b.WriteString("\n\n")
	b.WriteString(m.help.View())
	return styles.Box.Render(b.String())
}

func (m Model) renderTip() string {
	tip := audio.TipFor(m.elapsed)
	if audio.GoodLength(m.elapsed) {
		return styles.Success.Render(tip)
	}
	return styles.Warning.Render(tip)
}

func (m Model) renderClip() string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("%s  %s\n", m.clip.Name, theme.DefaultTheme.Muted.Render(m.clip.Duration)))
	b.WriteString(m.renderTip())
	b.WriteString("\n\n")

	switch m.playerState {
	case audio.StateEmpty, audio.StateLoading:
		b.WriteString(m.spinner.View() + " loading waveform")
		return b.String()
	case audio.StateUnplayable:
		b.WriteString(styles.Error.Render("clip cannot be played"))
		return b.String()
	}

	if w := m.player.Waveform(); w != nil {
		width := m.width - 8
		if width < 16 {
			width = 16
		}
		played, remaining := w.Render(width, m.player.Progress())
		b.WriteString(styles.Warning.Render(played))
		b.WriteString(theme.DefaultTheme.Muted.Render(remaining))
		b.WriteString("\n")
	}
	state := "⏸"
	if m.playerState == audio.StatePlaying {
		state = "▶"
	}
	b.WriteString(fmt.Sprintf("%s %s", state, models.FormatDuration(m.player.Position())))
	return b.String()
}

func errorText(err error) string {
	var perm *audio.PermissionError
	if errors.As(err, &perm) {
		return "Microphone access was denied. Allow it and press r to try again."
	}
	if errors.Is(err, audio.ErrDeviceUnavailable) {
		return "No microphone available: " + err.Error()
	}
	return err.Error()
}
