package cmd

import (
	"errors"
	"fmt"

	grovelogging "github.com/mattsolo1/grove-core/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/mattsolo1/grove-voice/pkg/models"
	"github.com/mattsolo1/grove-voice/pkg/service"
	"github.com/mattsolo1/grove-voice/pkg/workflow"
)

var startUlog = grovelogging.NewUnifiedLogger("grove-voice.cmd.start")

func NewStartCmd(svc **service.Service) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start a pipeline stage job",
		Long: `Start a pipeline stage job in the current namespace.

Directories default to the previous stage's output inside the namespace, then to
<home>/<stage>. A stage whose last job is still running is not started again.

Examples:
  ev start uvr5
  ev start slicer --threshold -40 --min-length 5000
  ev start asr --language en --wait
  ev start sovits --epochs 12`,
	}

	easevoice := workflow.NewEaseVoiceForm()
	uvr5 := workflow.NewUVR5Form()
	slicer := workflow.NewSlicerForm()
	denoise := workflow.NewDenoiseForm()
	asr := workflow.NewASRForm()
	normalize := workflow.NewNormalizeForm()
	sovits := workflow.NewSovitsForm()
	gpt := workflow.NewGPTForm()

	cmd.AddCommand(
		newStageCmd(svc, easevoice, "Run the whole pipeline in one job", func(f *pflag.FlagSet) {
			f.StringVar(&easevoice.ProjectDir, "project-dir", "", "Project directory (default: namespace home)")
		}),
		newStageCmd(svc, uvr5, "Separate vocals from accompaniment", func(f *pflag.FlagSet) {
			pathFlags(f, &uvr5.SourceDir, &uvr5.OutputDir)
			f.StringVar(&uvr5.ModelName, "model", uvr5.ModelName, "Separation model name")
			f.StringVar(&uvr5.AudioFormat, "format", uvr5.AudioFormat, "Output audio format")
		}),
		newStageCmd(svc, slicer, "Slice recordings into short clips", func(f *pflag.FlagSet) {
			pathFlags(f, &slicer.SourceDir, &slicer.OutputDir)
			f.IntVar(&slicer.Threshold, "threshold", slicer.Threshold, "Silence threshold in dB")
			f.IntVar(&slicer.MinLength, "min-length", slicer.MinLength, "Minimum clip length in ms")
			f.IntVar(&slicer.MinInterval, "min-interval", slicer.MinInterval, "Minimum silence interval in ms")
			f.IntVar(&slicer.HopSize, "hop-size", slicer.HopSize, "Hop size in ms")
			f.IntVar(&slicer.MaxSilentKept, "max-silent-kept", slicer.MaxSilentKept, "Maximum silence kept in ms")
			f.Float64Var(&slicer.NormalizeMax, "normalize-max", slicer.NormalizeMax, "Peak after normalization (0-1]")
			f.Float64Var(&slicer.AlphaMix, "alpha-mix", slicer.AlphaMix, "Normalized audio mix ratio [0-1]")
			f.IntVar(&slicer.NumProcess, "num-process", slicer.NumProcess, "Worker processes")
		}),
		newStageCmd(svc, denoise, "Remove background noise", func(f *pflag.FlagSet) {
			pathFlags(f, &denoise.SourceDir, &denoise.OutputDir)
		}),
		newStageCmd(svc, asr, "Transcribe clips", func(f *pflag.FlagSet) {
			pathFlags(f, &asr.SourceDir, &asr.OutputDir)
			f.StringVar(&asr.ASRModel, "model", asr.ASRModel, "Recognition model")
			f.StringVar(&asr.ModelSize, "model-size", asr.ModelSize, "Model size")
			f.StringVar(&asr.Language, "language", asr.Language, "Spoken language")
			f.StringVar(&asr.Precision, "precision", asr.Precision, "Compute precision")
		}),
		newStageCmd(svc, normalize, "Normalize transcripts into a training set", func(f *pflag.FlagSet) {
			pathFlags(f, &normalize.SourceDir, &normalize.OutputDir)
		}),
		newStageCmd(svc, sovits, "Train the SoVITS model", func(f *pflag.FlagSet) {
			f.StringVar(&sovits.TrainInputDir, "input", "", "Training set directory (default: normalize output)")
			f.StringVar(&sovits.OutputModelName, "name", "", "Output model name (default: namespace name)")
			f.IntVar(&sovits.BatchSize, "batch-size", sovits.BatchSize, "Batch size")
			f.IntVar(&sovits.TotalEpochs, "epochs", sovits.TotalEpochs, "Total epochs")
			f.IntVar(&sovits.SaveEveryEpoch, "save-every", sovits.SaveEveryEpoch, "Save every N epochs")
			f.Float64Var(&sovits.TextLowLRRate, "text-low-lr-rate", sovits.TextLowLRRate, "Text module learning rate ratio [0-1]")
			f.BoolVar(&sovits.IfSaveLatest, "save-latest", sovits.IfSaveLatest, "Keep only the latest checkpoint")
			f.BoolVar(&sovits.IfSaveEveryWeights, "save-every-weights", sovits.IfSaveEveryWeights, "Export weights at every save")
			f.StringVar(&sovits.GPUIDs, "gpus", sovits.GPUIDs, "GPU ids, dash separated")
		}),
		newStageCmd(svc, gpt, "Train the GPT model", func(f *pflag.FlagSet) {
			f.StringVar(&gpt.TrainInputDir, "input", "", "Training set directory (default: normalize output)")
			f.StringVar(&gpt.OutputModelName, "name", "", "Output model name (default: namespace name)")
			f.IntVar(&gpt.BatchSize, "batch-size", gpt.BatchSize, "Batch size")
			f.IntVar(&gpt.TotalEpochs, "epochs", gpt.TotalEpochs, "Total epochs")
			f.IntVar(&gpt.SaveEveryEpoch, "save-every", gpt.SaveEveryEpoch, "Save every N epochs")
			f.BoolVar(&gpt.IfDPO, "dpo", gpt.IfDPO, "Enable DPO training")
			f.BoolVar(&gpt.IfSaveLatest, "save-latest", gpt.IfSaveLatest, "Keep only the latest checkpoint")
			f.BoolVar(&gpt.IfSaveEveryWeights, "save-every-weights", gpt.IfSaveEveryWeights, "Export weights at every save")
			f.StringVar(&gpt.GPUIDs, "gpus", gpt.GPUIDs, "GPU ids, dash separated")
		}),
	)
	return cmd
}

func pathFlags(f *pflag.FlagSet, source, output *string) {
	f.StringVar(source, "source", "", "Source directory (default: previous stage output)")
	f.StringVar(output, "output", "", "Output directory (default: <home>/<stage>)")
}

func newStageCmd(svc **service.Service, form workflow.Form, short string, flags func(*pflag.FlagSet)) *cobra.Command {
	var wait bool
	stage := form.Stage()

	cmd := &cobra.Command{
		Use:   string(stage),
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s := *svc

			ns, err := currentNamespace(ctx, s)
			if err != nil {
				return err
			}
			form.Prefill(*ns, s.State.Paths)

			uuid, err := s.Runner.Submit(ctx, form)
			if err != nil {
				var verrs workflow.ValidationErrors
				if errors.As(err, &verrs) {
					return fmt.Errorf("invalid %s settings: %w", stage, err)
				}
				return err
			}

			startUlog.Info("Job started").
				Field("stage", stage).
				Field("uuid", uuid).
				Field("namespace", ns.Name).
				Pretty(fmt.Sprintf("Started %s job %s", stage.Title(), uuid)).
				PrettyOnly().
				Log(ctx)

			if !wait {
				return nil
			}
			task, err := waitForStage(ctx, s, stage, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			if task.Status == models.TaskFailed {
				return fmt.Errorf("%s failed: %s", stage.Title(), task.Error)
			}
			return nil
		},
	}

	flags(cmd.Flags())
	cmd.Flags().BoolVarP(&wait, "wait", "w", false, "Poll until the job finishes")
	return cmd
}
