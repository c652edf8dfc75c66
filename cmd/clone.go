package cmd

import (
	"errors"
	"fmt"
	"text/tabwriter"

	grovelogging "github.com/mattsolo1/grove-core/logging"
	"github.com/spf13/cobra"

	"github.com/mattsolo1/grove-voice/pkg/models"
	"github.com/mattsolo1/grove-voice/pkg/service"
	"github.com/mattsolo1/grove-voice/pkg/workflow"
)

var cloneUlog = grovelogging.NewUnifiedLogger("grove-voice.cmd.clone")

func NewModelsCmd(svc **service.Service) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "models",
		Short: "List trained voice models of the current namespace",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateFormat(format); err != nil {
				return err
			}
			available, err := (*svc).VoiceCloneModels(cmd.Context())
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), format, available, func(tw *tabwriter.Writer) {
				fmt.Fprintln(tw, "KIND\tPATH")
				for _, p := range available.Sovits {
					fmt.Fprintf(tw, "sovits\t%s\n", p)
				}
				for _, p := range available.GPTs {
					fmt.Fprintf(tw, "gpt\t%s\n", p)
				}
			})
		},
	}

	cmd.Flags().StringVarP(&format, "format", "o", formatTable, "Output format: table, json or yaml")
	return cmd
}

func NewCloneCmd(svc **service.Service) *cobra.Command {
	form := workflow.NewVoiceCloneForm()
	var ref string

	cmd := &cobra.Command{
		Use:   "clone <text>",
		Short: "Synthesise text in the cloned voice",
		Long: `Synthesise text with the reference clip and the trained models.

The reference clip is the newest take saved by 'ev record' unless --ref names a
local file. Models default to the newest ones listed by 'ev models'.

Examples:
  ev clone "hello there" --ref ~/take.wav --prompt-text "what the clip says"
  ev clone "你好" --speed 1.2`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s := *svc
			form.Text = args[0]

			if ref == "" {
				ref = latestReference(s)
			}
			if ref != "" {
				clip, err := s.UseReferenceFile(ref)
				if err != nil {
					return err
				}
				form.RefAudio = clip.URL
			}

			if form.SovitsPath == "" || form.GPTPath == "" {
				available, err := s.VoiceCloneModels(ctx)
				if err != nil {
					return err
				}
				form.Prefill(available)
			}

			result, err := s.Clone(ctx, form)
			var verr workflow.ValidationErrors
			if errors.As(err, &verr) {
				return fmt.Errorf("invalid clone settings: %w", err)
			}
			if err != nil {
				return err
			}

			cloneUlog.Info("Voice cloned").
				Field("id", result.ID).
				Field("file", result.FilePath).
				Field("duration", result.Duration).
				Pretty(fmt.Sprintf("Saved %s (%s)", result.FilePath, orDash(result.Duration))).
				PrettyOnly().
				Log(ctx)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&ref, "ref", "", "Local reference clip (default: newest recorded take)")
	f.StringVar(&form.TextLang, "lang", form.TextLang, "Language of the text")
	f.StringVar(&form.PromptText, "prompt-text", "", "Transcript of the reference clip")
	f.StringVar(&form.PromptLang, "prompt-lang", form.PromptLang, "Language of the reference clip")
	f.StringVar(&form.TextSplitMethod, "split", form.TextSplitMethod, "Text split method")
	f.IntVar(&form.BatchSize, "batch-size", form.BatchSize, "Batch size")
	f.Float64Var(&form.SpeedFactor, "speed", form.SpeedFactor, "Speed factor (0-2]")
	f.IntVar(&form.TopK, "top-k", form.TopK, "Top-k sampling")
	f.Float64Var(&form.TopP, "top-p", form.TopP, "Top-p sampling (0-1]")
	f.Float64Var(&form.Temperature, "temperature", form.Temperature, "Sampling temperature (0-1]")
	f.StringVar(&form.SovitsPath, "sovits", "", "SoVITS model path (default: newest)")
	f.StringVar(&form.GPTPath, "gpt", "", "GPT model path (default: newest)")
	return cmd
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func NewResultsCmd(svc **service.Service) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "results",
		Short: "List synthesised clips",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateFormat(format); err != nil {
				return err
			}
			results := (*svc).State.Audio.Results()
			if results == nil {
				results = []models.SynthesisResult{}
			}
			return render(cmd.OutOrStdout(), format, results, func(tw *tabwriter.Writer) {
				fmt.Fprintln(tw, "ID\tCREATED\tDURATION\tTEXT")
				for _, r := range results {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
						shortID(r.ID), r.CreatedAt.Format("2006-01-02 15:04"), orDash(r.Duration), r.Text)
				}
			})
		},
	}
	cmd.Flags().StringVarP(&format, "format", "o", formatTable, "Output format: table, json or yaml")

	rm := &cobra.Command{
		Use:   "rm <id>",
		Short: "Forget a synthesised clip and delete its file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s := *svc
			id := args[0]
			// Accept the short ids shown by the table.
			for _, r := range s.State.Audio.Results() {
				if shortID(r.ID) == id {
					id = r.ID
					break
				}
			}
			if err := s.DeleteResult(id); err != nil {
				return err
			}
			cloneUlog.Success("Result deleted").Field("id", id).Pretty("Deleted " + shortID(id)).PrettyOnly().Log(cmd.Context())
			return nil
		},
	}
	cmd.AddCommand(rm)
	return cmd
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
