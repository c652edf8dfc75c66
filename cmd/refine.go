package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	grovelogging "github.com/mattsolo1/grove-core/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/mattsolo1/grove-voice/pkg/models"
	"github.com/mattsolo1/grove-voice/pkg/service"
	"github.com/mattsolo1/grove-voice/pkg/workflow"
)

var refineUlog = grovelogging.NewUnifiedLogger("grove-voice.cmd.refine")

type refineDirs struct {
	input  string
	output string
}

func (d *refineDirs) bind(f *pflag.FlagSet) {
	f.StringVar(&d.input, "input", "", "ASR source directory (default: from the last ASR job)")
	f.StringVar(&d.output, "output", "", "ASR output directory (default: from the last ASR job)")
}

// form returns the refinement form for the current namespace with flag overrides applied.
func (d *refineDirs) form(ctx context.Context, s *service.Service) (workflow.RefinementForm, error) {
	f, err := s.PrepareRefinement(ctx)
	if err != nil {
		return workflow.RefinementForm{}, err
	}
	if d.input != "" {
		f.InputDir = d.input
	}
	if d.output != "" {
		f.OutputDir = d.output
	}
	return *f, nil
}

func NewRefineCmd(svc **service.Service) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "refine",
		Short: "Review and correct ASR transcripts",
		Long: `Review and correct the transcripts produced by the ASR stage before training.
Directories default to the last ASR job of the current namespace.`,
	}

	cmd.AddCommand(
		newRefineListCmd(svc, false),
		newRefineListCmd(svc, true),
		newRefineSetCmd(svc),
		newRefineRemoveCmd(svc),
	)
	return cmd
}

func newRefineListCmd(svc **service.Service, reload bool) *cobra.Command {
	var (
		dirs   refineDirs
		format string
	)

	use, short := "list", "List transcripts"
	if reload {
		use, short = "reload", "Reread transcripts from disk and list them"
	}

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateFormat(format); err != nil {
				return err
			}
			ctx := cmd.Context()
			s := *svc
			f, err := dirs.form(ctx, s)
			if err != nil {
				return err
			}
			var items []models.RefinementItem
			if reload {
				items, err = s.Refiner.Reload(ctx, f)
			} else {
				items, err = s.Refiner.List(ctx, f)
			}
			if err != nil {
				return err
			}
			return printRefinements(cmd.OutOrStdout(), format, items)
		},
	}

	dirs.bind(cmd.Flags())
	cmd.Flags().StringVarP(&format, "format", "o", formatTable, "Output format: table, json or yaml")
	return cmd
}

func printRefinements(w io.Writer, format string, items []models.RefinementItem) error {
	return render(w, format, items, func(tw *tabwriter.Writer) {
		fmt.Fprintln(tw, "FILE\tLANG\tTEXT")
		for _, it := range items {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", it.SourceFilePath, it.Language, it.Text)
		}
	})
}

func newRefineSetCmd(svc **service.Service) *cobra.Command {
	var (
		dirs     refineDirs
		language string
	)

	cmd := &cobra.Command{
		Use:   "set <source-file> <text>...",
		Short: "Replace the transcript of one clip",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s := *svc
			f, err := dirs.form(ctx, s)
			if err != nil {
				return err
			}
			item := models.RefinementItem{
				SourceFilePath: args[0],
				Language:       language,
				Text:           strings.Join(args[1:], " "),
			}
			if err := s.Refiner.Update(ctx, f, item); err != nil {
				return err
			}
			refineUlog.Info("Transcript updated").
				Field("file", item.SourceFilePath).
				Pretty(fmt.Sprintf("Updated %s", item.SourceFilePath)).
				PrettyOnly().
				Log(ctx)
			return nil
		},
	}

	dirs.bind(cmd.Flags())
	cmd.Flags().StringVar(&language, "language", "zh", "Transcript language")
	return cmd
}

func newRefineRemoveCmd(svc **service.Service) *cobra.Command {
	var (
		dirs refineDirs
		yes  bool
	)

	cmd := &cobra.Command{
		Use:   "rm <source-file>",
		Short: "Drop one clip from the training set",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s := *svc
			f, err := dirs.form(ctx, s)
			if err != nil {
				return err
			}
			if !yes && !confirm(cmd.InOrStdin(), cmd.OutOrStdout(), fmt.Sprintf("Drop %s from the training set?", args[0])) {
				refineUlog.Info("Delete cancelled").Pretty("Cancelled.").PrettyOnly().Log(ctx)
				return nil
			}
			if err := s.Refiner.Delete(ctx, f, args[0]); err != nil {
				return err
			}
			refineUlog.Info("Transcript deleted").
				Field("file", args[0]).
				Pretty(fmt.Sprintf("Dropped %s", args[0])).
				PrettyOnly().
				Log(ctx)
			return nil
		},
	}

	dirs.bind(cmd.Flags())
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip confirmation prompt")
	return cmd
}
