package cmd

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/mattsolo1/grove-voice/internal/logging"
	"github.com/mattsolo1/grove-voice/internal/tui/browser"
	"github.com/mattsolo1/grove-voice/internal/tui/jobs"
	"github.com/mattsolo1/grove-voice/pkg/models"
	"github.com/mattsolo1/grove-voice/pkg/service"
)

// NewTuiCmd creates the `ev tui` command.
func NewTuiCmd(svc **service.Service) *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Browse the current namespace's files",
		Long: `Launch an interactive file browser rooted at the current namespace's home.
Folders open in place, audio plays in the preview pane and uploads, new folders
and deletes are available from the keyboard (press ? for help).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireTerminal(); err != nil {
				return err
			}
			s := *svc
			ns, err := currentNamespace(cmd.Context(), s)
			if err != nil {
				return err
			}

			logging.Silence()
			model := browser.New(s, ns.HomePath)
			p := tea.NewProgram(model, tea.WithAltScreen())
			if _, err := p.Run(); err != nil {
				return fmt.Errorf("error running TUI: %w", err)
			}
			return nil
		},
	}
}

// NewJobsCmd creates the `ev jobs` command.
func NewJobsCmd(svc **service.Service) *cobra.Command {
	return &cobra.Command{
		Use:   "jobs [stage]",
		Short: "Watch pipeline jobs",
		Long: `Show the task table of the backend session and keep it updated while a job
runs. Press t to filter by stage, enter for the details of a task.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireTerminal(); err != nil {
				return err
			}
			var filter models.Stage
			if len(args) == 1 {
				st, err := models.ParseStage(args[0])
				if err != nil {
					return err
				}
				filter = st
			}

			logging.Silence()
			model := jobs.New(*svc, filter)
			p := tea.NewProgram(model, tea.WithAltScreen())
			if _, err := p.Run(); err != nil {
				return fmt.Errorf("error running TUI: %w", err)
			}
			return nil
		},
	}
}
