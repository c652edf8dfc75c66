package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"text/tabwriter"
	"time"

	grovelogging "github.com/mattsolo1/grove-core/logging"
	"github.com/spf13/cobra"

	"github.com/mattsolo1/grove-voice/pkg/models"
	"github.com/mattsolo1/grove-voice/pkg/service"
	"github.com/mattsolo1/grove-voice/pkg/workflow"
)

var statusUlog = grovelogging.NewUnifiedLogger("grove-voice.cmd.status")

func NewStatusCmd(svc **service.Service) *cobra.Command {
	var (
		format string
		watch  bool
	)

	cmd := &cobra.Command{
		Use:   "status [stage]",
		Short: "Show job status of the current namespace",
		Long: `Show the job status of each stage started from this client, or of a single stage.
With --watch the session is polled until interrupted, or until the stage's job finishes.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateFormat(format); err != nil {
				return err
			}
			s := *svc
			out := cmd.OutOrStdout()

			if len(args) == 1 {
				stage, err := models.ParseStage(args[0])
				if err != nil {
					return err
				}
				if watch {
					_, err := waitForStage(cmd.Context(), s, stage, out)
					return err
				}
				return printStageStatus(cmd.Context(), s, stage, format, out)
			}

			if !watch {
				ov, err := s.Overview(cmd.Context())
				if err != nil {
					return err
				}
				return printOverview(out, format, ov)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			err := s.NewPoller().Run(ctx, func(_ models.Session, err error) {
				if err != nil {
					statusUlog.Info("Poll failed").Field("error", err.Error()).Pretty("error: " + err.Error()).Log(ctx)
					return
				}
				fmt.Fprintf(out, "\n%s\n", time.Now().Format(time.TimeOnly))
				_ = printStatuses(out, format, s)
			})
			if ctx.Err() != nil {
				return nil
			}
			return err
		},
	}

	cmd.Flags().StringVarP(&format, "format", "o", formatTable, "Output format: table, json or yaml")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Keep polling")
	return cmd
}

func printOverview(w io.Writer, format string, ov service.Overview) error {
	return render(w, format, ov, func(tw *tabwriter.Writer) {
		fmt.Fprintf(tw, "Namespace:\t%s (%s)\n", ov.Namespace.Name, ov.Namespace.HomePath)
		fmt.Fprintf(tw, "Running tasks:\t%d\n\n", ov.Running)
		writeStatusRows(tw, ov.Stages)
	})
}

func printStatuses(w io.Writer, format string, s *service.Service) error {
	statuses := s.Feed.Statuses()
	return render(w, format, statuses, func(tw *tabwriter.Writer) {
		writeStatusRows(tw, statuses)
	})
}

func writeStatusRows(tw *tabwriter.Writer, statuses []workflow.StageStatus) {
	if len(statuses) == 0 {
		fmt.Fprintln(tw, "No jobs started from this client yet.")
		return
	}
	fmt.Fprintln(tw, "STAGE\tSTATUS\tUUID\tMESSAGE")
	for _, st := range statuses {
		msg := st.Task.Message
		if st.Task.Status == models.TaskFailed {
			msg = st.Task.Error
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", st.Stage, st.Task.Status, st.Task.UUID, msg)
	}
}

func printStageStatus(ctx context.Context, s *service.Service, stage models.Stage, format string, w io.Writer) error {
	if _, err := s.Feed.Refresh(ctx); err != nil {
		return err
	}
	task, ok := s.Feed.Status(stage)
	if !ok {
		statusUlog.Info("No data").
			Field("stage", stage).
			Pretty(fmt.Sprintf("No data for %s.", stage.Title())).
			PrettyOnly().
			Log(ctx)
		return nil
	}
	return render(w, format, task, func(tw *tabwriter.Writer) {
		fmt.Fprintf(tw, "Stage:\t%s\n", stage.Title())
		fmt.Fprintf(tw, "Status:\t%s\n", task.Status)
		fmt.Fprintf(tw, "UUID:\t%s\n", task.UUID)
		if task.Message != "" {
			fmt.Fprintf(tw, "Message:\t%s\n", task.Message)
		}
		if task.Error != "" {
			fmt.Fprintf(tw, "Error:\t%s\n", task.Error)
		}
		if len(task.Data) > 0 {
			fmt.Fprintf(tw, "Data:\t%v\n", task.Data)
		}
	})
}

// waitForStage polls until stage's job is no longer running and returns its final task.
func waitForStage(ctx context.Context, s *service.Service, stage models.Stage, w io.Writer) (models.Task, error) {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		last    models.Task
		found   bool
		lastMsg string
	)
	err := s.NewPoller().Run(ctx, func(_ models.Session, err error) {
		if err != nil {
			fmt.Fprintf(w, "poll failed: %v\n", err)
			return
		}
		last, found = s.Feed.Status(stage)
		if !found {
			fmt.Fprintf(w, "%s: no data\n", stage.Title())
			cancel()
			return
		}
		if line := fmt.Sprintf("%s: %s %s", stage.Title(), last.Status, last.Message); line != lastMsg {
			fmt.Fprintln(w, line)
			lastMsg = line
		}
		if !last.IsRunning() {
			cancel()
		}
	})
	if found && !last.IsRunning() {
		return last, nil
	}
	if err != nil && ctx.Err() == nil {
		return last, err
	}
	return last, nil
}
