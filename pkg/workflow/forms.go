// Package workflow holds the stage forms, the submit guard and the job feed.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/mattsolo1/grove-voice/pkg/models"
)

// ValidationError reports a problem with one form field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors collects every field error of one form.
type ValidationErrors []*ValidationError

func (v ValidationErrors) Error() string {
	msgs := make([]string, len(v))
	for i, e := range v {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "; ")
}

func (v ValidationErrors) Unwrap() []error {
	errs := make([]error, len(v))
	for i, e := range v {
		errs[i] = e
	}
	return errs
}

// Field returns the error for name, if any.
func (v ValidationErrors) Field(name string) *ValidationError {
	for _, e := range v {
		if e.Field == name {
			return e
		}
	}
	return nil
}

type checker struct {
	errs ValidationErrors
}

func (c *checker) add(field, format string, args ...any) {
	c.errs = append(c.errs, &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
}

func (c *checker) dir(field, value string) {
	if strings.TrimSpace(value) == "" {
		c.add(field, "directory is required")
	}
}

func (c *checker) required(field, value string) {
	if strings.TrimSpace(value) == "" {
		c.add(field, "is required")
	}
}

func (c *checker) positive(field string, v int) {
	if v <= 0 {
		c.add(field, "must be positive")
	}
}

func (c *checker) atLeastOne(field string, v int) {
	if v < 1 {
		c.add(field, "must be at least 1")
	}
}

func (c *checker) closed(field string, v, lo, hi float64) {
	if v < lo || v > hi {
		c.add(field, "must be between %g and %g", lo, hi)
	}
}

func (c *checker) halfOpen(field string, v, lo, hi float64) {
	if v <= lo || v > hi {
		c.add(field, "must be greater than %g and at most %g", lo, hi)
	}
}

func (c *checker) err() error {
	if len(c.errs) == 0 {
		return nil
	}
	return c.errs
}

// PathLookup reads the per-stage directory cache.
type PathLookup interface {
	Get(stage models.Stage) (models.PathPair, bool)
}

// Form is a job-starting stage form.
type Form interface {
	Stage() models.Stage
	Validate() error
	Prefill(ns models.Namespace, paths PathLookup)
	// Paths is the directory pair recorded for downstream stages after submit.
	Paths() models.PathPair
	start(ctx context.Context, a StageAPI) (string, error)
}

// ErrNoNamespace is returned when a form needs a namespace and none is current.
var ErrNoNamespace = errors.New("no namespace selected")

// stageDir is the default directory a stage writes into.
func stageDir(ns models.Namespace, stage models.Stage) string {
	return path.Join(ns.HomePath, string(stage))
}

// upstream returns the output directory of the stage feeding s, when it lies inside ns.
func upstream(ns models.Namespace, paths PathLookup, s models.Stage) (string, bool) {
	if paths == nil {
		return "", false
	}
	pair, ok := paths.Get(s)
	if !ok || pair.OutputDir == "" || !inside(ns.HomePath, pair.OutputDir) {
		return "", false
	}
	return pair.OutputDir, true
}

func inside(home, p string) bool {
	if home == "" {
		return true
	}
	home = path.Clean(home)
	p = path.Clean(p)
	return p == home || strings.HasPrefix(p, home+"/")
}

func fill(field *string, value string) {
	if *field == "" {
		*field = value
	}
}

// source picks the upstream output or falls back to def.
func source(ns models.Namespace, paths PathLookup, from models.Stage, def string) string {
	if dir, ok := upstream(ns, paths, from); ok {
		return dir
	}
	return def
}

// EaseVoiceForm runs the whole pipeline in one job.
type EaseVoiceForm struct {
	models.EaseVoiceRequest
}

func NewEaseVoiceForm() *EaseVoiceForm { return &EaseVoiceForm{} }

func (f *EaseVoiceForm) Stage() models.Stage { return models.StageEaseVoice }

func (f *EaseVoiceForm) Validate() error {
	var c checker
	c.dir("project_dir", f.ProjectDir)
	return c.err()
}

func (f *EaseVoiceForm) Prefill(ns models.Namespace, _ PathLookup) {
	fill(&f.ProjectDir, ns.HomePath)
}

func (f *EaseVoiceForm) Paths() models.PathPair {
	return models.PathPair{SourceDir: f.ProjectDir, OutputDir: f.ProjectDir}
}

func (f *EaseVoiceForm) start(ctx context.Context, a StageAPI) (string, error) {
	return a.StartEaseVoice(ctx, f.EaseVoiceRequest)
}

// UVR5Form separates vocals from accompaniment.
type UVR5Form struct {
	models.UVR5Request
}

func NewUVR5Form() *UVR5Form {
	return &UVR5Form{models.UVR5Request{ModelName: "HP5_only_main_vocal", AudioFormat: "wav"}}
}

func (f *UVR5Form) Stage() models.Stage { return models.StageUVR5 }

func (f *UVR5Form) Validate() error {
	var c checker
	c.dir("source_dir", f.SourceDir)
	c.dir("output_dir", f.OutputDir)
	c.required("model_name", f.ModelName)
	c.required("audio_format", f.AudioFormat)
	return c.err()
}

func (f *UVR5Form) Prefill(ns models.Namespace, _ PathLookup) {
	fill(&f.SourceDir, path.Join(ns.HomePath, "voices"))
	fill(&f.OutputDir, stageDir(ns, models.StageUVR5))
}

func (f *UVR5Form) Paths() models.PathPair {
	return models.PathPair{SourceDir: f.SourceDir, OutputDir: f.OutputDir}
}

func (f *UVR5Form) start(ctx context.Context, a StageAPI) (string, error) {
	return a.StartUVR5(ctx, f.UVR5Request)
}

// SlicerForm cuts long recordings into sentence-sized clips.
type SlicerForm struct {
	models.SlicerRequest
}

func NewSlicerForm() *SlicerForm {
	return &SlicerForm{models.SlicerRequest{
		Threshold:     -34,
		MinLength:     4000,
		MinInterval:   300,
		HopSize:       10,
		MaxSilentKept: 500,
		NormalizeMax:  0.9,
		AlphaMix:      0.25,
		NumProcess:    4,
	}}
}

func (f *SlicerForm) Stage() models.Stage { return models.StageSlicer }

func (f *SlicerForm) Validate() error {
	var c checker
	c.dir("source_dir", f.SourceDir)
	c.dir("output_dir", f.OutputDir)
	c.closed("threshold", float64(f.Threshold), -100, 0)
	c.positive("min_length", f.MinLength)
	c.positive("min_interval", f.MinInterval)
	c.positive("hop_size", f.HopSize)
	if f.MaxSilentKept < 0 {
		c.add("max_silent_kept", "must not be negative")
	}
	c.closed("normalize_max", f.NormalizeMax, 0, 1)
	c.closed("alpha_mix", f.AlphaMix, 0, 1)
	c.atLeastOne("num_process", f.NumProcess)
	return c.err()
}

func (f *SlicerForm) Prefill(ns models.Namespace, paths PathLookup) {
	fill(&f.SourceDir, source(ns, paths, models.StageUVR5, stageDir(ns, models.StageUVR5)))
	fill(&f.OutputDir, stageDir(ns, models.StageSlicer))
}

func (f *SlicerForm) Paths() models.PathPair {
	return models.PathPair{SourceDir: f.SourceDir, OutputDir: f.OutputDir}
}

func (f *SlicerForm) start(ctx context.Context, a StageAPI) (string, error) {
	return a.StartSlicer(ctx, f.SlicerRequest)
}

// DenoiseForm removes background noise from sliced clips.
type DenoiseForm struct {
	models.DenoiseRequest
}

func NewDenoiseForm() *DenoiseForm { return &DenoiseForm{} }

func (f *DenoiseForm) Stage() models.Stage { return models.StageDenoise }

func (f *DenoiseForm) Validate() error {
	var c checker
	c.dir("source_dir", f.SourceDir)
	c.dir("output_dir", f.OutputDir)
	return c.err()
}

func (f *DenoiseForm) Prefill(ns models.Namespace, paths PathLookup) {
	fill(&f.SourceDir, source(ns, paths, models.StageSlicer, stageDir(ns, models.StageSlicer)))
	fill(&f.OutputDir, stageDir(ns, models.StageDenoise))
}

func (f *DenoiseForm) Paths() models.PathPair {
	return models.PathPair{SourceDir: f.SourceDir, OutputDir: f.OutputDir}
}

func (f *DenoiseForm) start(ctx context.Context, a StageAPI) (string, error) {
	return a.StartDenoise(ctx, f.DenoiseRequest)
}

// ASRForm transcribes clips.
type ASRForm struct {
	models.ASRRequest
}

func NewASRForm() *ASRForm {
	return &ASRForm{models.ASRRequest{
		ASRModel:  "funasr",
		ModelSize: "large",
		Language:  "zh",
		Precision: "float32",
	}}
}

func (f *ASRForm) Stage() models.Stage { return models.StageASR }

func (f *ASRForm) Validate() error {
	var c checker
	c.dir("source_dir", f.SourceDir)
	c.dir("output_dir", f.OutputDir)
	c.required("asr_model", f.ASRModel)
	c.required("language", f.Language)
	return c.err()
}

func (f *ASRForm) Prefill(ns models.Namespace, paths PathLookup) {
	fill(&f.SourceDir, source(ns, paths, models.StageDenoise, stageDir(ns, models.StageDenoise)))
	fill(&f.OutputDir, stageDir(ns, models.StageASR))
}

func (f *ASRForm) Paths() models.PathPair {
	return models.PathPair{SourceDir: f.SourceDir, OutputDir: f.OutputDir}
}

func (f *ASRForm) start(ctx context.Context, a StageAPI) (string, error) {
	return a.StartASR(ctx, f.ASRRequest)
}

// NormalizeForm builds the training set from refined transcripts.
type NormalizeForm struct {
	models.NormalizeRequest
}

func NewNormalizeForm() *NormalizeForm { return &NormalizeForm{} }

func (f *NormalizeForm) Stage() models.Stage { return models.StageNormalize }

func (f *NormalizeForm) Validate() error {
	var c checker
	c.dir("source_dir", f.SourceDir)
	c.dir("output_dir", f.OutputDir)
	return c.err()
}

func (f *NormalizeForm) Prefill(ns models.Namespace, paths PathLookup) {
	fill(&f.SourceDir, source(ns, paths, models.StageASR, stageDir(ns, models.StageASR)))
	fill(&f.OutputDir, stageDir(ns, models.StageNormalize))
}

func (f *NormalizeForm) Paths() models.PathPair {
	return models.PathPair{SourceDir: f.SourceDir, OutputDir: f.OutputDir}
}

func (f *NormalizeForm) start(ctx context.Context, a StageAPI) (string, error) {
	return a.StartNormalize(ctx, f.NormalizeRequest)
}

// SovitsForm trains the SoVITS model.
type SovitsForm struct {
	models.SovitsTrainRequest
}

func NewSovitsForm() *SovitsForm {
	return &SovitsForm{models.SovitsTrainRequest{
		BatchSize:          2,
		TotalEpochs:        8,
		SaveEveryEpoch:     4,
		TextLowLRRate:      0.4,
		IfSaveLatest:       true,
		IfSaveEveryWeights: true,
		GPUIDs:             "0",
	}}
}

func (f *SovitsForm) Stage() models.Stage { return models.StageSovits }

func (f *SovitsForm) Validate() error {
	var c checker
	c.dir("train_input_dir", f.TrainInputDir)
	c.required("output_model_name", f.OutputModelName)
	c.atLeastOne("batch_size", f.BatchSize)
	c.atLeastOne("total_epochs", f.TotalEpochs)
	c.atLeastOne("save_every_epoch", f.SaveEveryEpoch)
	c.closed("text_low_lr_rate", f.TextLowLRRate, 0, 1)
	return c.err()
}

func (f *SovitsForm) Prefill(ns models.Namespace, paths PathLookup) {
	fill(&f.TrainInputDir, source(ns, paths, models.StageNormalize, stageDir(ns, models.StageNormalize)))
	fill(&f.OutputModelName, ns.Name)
}

func (f *SovitsForm) Paths() models.PathPair {
	return models.PathPair{SourceDir: f.TrainInputDir}
}

func (f *SovitsForm) start(ctx context.Context, a StageAPI) (string, error) {
	return a.StartSovitsTraining(ctx, f.SovitsTrainRequest)
}

// GPTForm trains the GPT model.
type GPTForm struct {
	models.GPTTrainRequest
}

func NewGPTForm() *GPTForm {
	return &GPTForm{models.GPTTrainRequest{
		BatchSize:          2,
		TotalEpochs:        15,
		SaveEveryEpoch:     5,
		IfSaveLatest:       true,
		IfSaveEveryWeights: true,
		GPUIDs:             "0",
	}}
}

func (f *GPTForm) Stage() models.Stage { return models.StageGPT }

func (f *GPTForm) Validate() error {
	var c checker
	c.dir("train_input_dir", f.TrainInputDir)
	c.required("output_model_name", f.OutputModelName)
	c.atLeastOne("batch_size", f.BatchSize)
	c.atLeastOne("total_epochs", f.TotalEpochs)
	c.atLeastOne("save_every_epoch", f.SaveEveryEpoch)
	return c.err()
}

func (f *GPTForm) Prefill(ns models.Namespace, paths PathLookup) {
	fill(&f.TrainInputDir, source(ns, paths, models.StageNormalize, stageDir(ns, models.StageNormalize)))
	fill(&f.OutputModelName, ns.Name)
}

func (f *GPTForm) Paths() models.PathPair {
	return models.PathPair{SourceDir: f.TrainInputDir}
}

func (f *GPTForm) start(ctx context.Context, a StageAPI) (string, error) {
	return a.StartGPTTraining(ctx, f.GPTTrainRequest)
}

// NewForm returns a defaulted form for a job-starting stage.
func NewForm(stage models.Stage) (Form, error) {
	switch stage {
	case models.StageEaseVoice:
		return NewEaseVoiceForm(), nil
	case models.StageUVR5:
		return NewUVR5Form(), nil
	case models.StageSlicer:
		return NewSlicerForm(), nil
	case models.StageDenoise:
		return NewDenoiseForm(), nil
	case models.StageASR:
		return NewASRForm(), nil
	case models.StageNormalize:
		return NewNormalizeForm(), nil
	case models.StageSovits:
		return NewSovitsForm(), nil
	case models.StageGPT:
		return NewGPTForm(), nil
	}
	return nil, fmt.Errorf("stage %s does not start a job", stage)
}

// RefinementForm addresses the transcripts of one ASR run.
type RefinementForm struct {
	InputDir  string
	OutputDir string
}

func (f *RefinementForm) Validate() error {
	var c checker
	c.dir("input_dir", f.InputDir)
	c.dir("output_dir", f.OutputDir)
	return c.err()
}

// Prefill points at the last ASR run: its audio as input and its transcripts as output.
func (f *RefinementForm) Prefill(ns models.Namespace, paths PathLookup) {
	if paths != nil {
		if pair, ok := paths.Get(models.StageASR); ok && inside(ns.HomePath, pair.OutputDir) {
			fill(&f.InputDir, pair.SourceDir)
			fill(&f.OutputDir, pair.OutputDir)
		}
	}
	fill(&f.InputDir, stageDir(ns, models.StageDenoise))
	fill(&f.OutputDir, stageDir(ns, models.StageASR))
}

func (f *RefinementForm) Paths() models.PathPair {
	return models.PathPair{SourceDir: f.InputDir, OutputDir: f.OutputDir}
}

// VoiceCloneForm synthesises speech with trained models and a reference clip.
type VoiceCloneForm struct {
	Text       string
	TextLang   string
	PromptText string
	PromptLang string
	// RefAudio is a blob URL or local path of the reference clip.
	RefAudio        string
	TextSplitMethod string
	BatchSize       int
	SpeedFactor     float64
	TopK            int
	TopP            float64
	Temperature     float64
	SovitsPath      string
	GPTPath         string
}

func NewVoiceCloneForm() *VoiceCloneForm {
	return &VoiceCloneForm{
		TextLang:        "zh",
		PromptLang:      "zh",
		TextSplitMethod: "cut5",
		BatchSize:       1,
		SpeedFactor:     1.0,
		TopK:            15,
		TopP:            1.0,
		Temperature:     1.0,
	}
}

func (f *VoiceCloneForm) Validate() error {
	var c checker
	c.required("text", f.Text)
	c.required("ref_audio", f.RefAudio)
	c.required("sovits_path", f.SovitsPath)
	c.required("gpt_path", f.GPTPath)
	c.atLeastOne("batch_size", f.BatchSize)
	c.halfOpen("speed_factor", f.SpeedFactor, 0, 2)
	c.halfOpen("temperature", f.Temperature, 0, 1)
	c.halfOpen("top_p", f.TopP, 0, 1)
	c.atLeastOne("top_k", f.TopK)
	return c.err()
}

// Prefill picks the newest trained models when none are chosen.
func (f *VoiceCloneForm) Prefill(available *models.VoiceCloneModels) {
	if available == nil {
		return
	}
	if n := len(available.Sovits); n > 0 {
		fill(&f.SovitsPath, available.Sovits[n-1])
	}
	if n := len(available.GPTs); n > 0 {
		fill(&f.GPTPath, available.GPTs[n-1])
	}
}

// Request builds the wire request around the base64 encoded reference clip.
func (f *VoiceCloneForm) Request(refAudio string) models.VoiceCloneRequest {
	return models.VoiceCloneRequest{
		Text:            f.Text,
		TextLang:        f.TextLang,
		RefAudio:        refAudio,
		PromptText:      f.PromptText,
		PromptLang:      f.PromptLang,
		TextSplitMethod: f.TextSplitMethod,
		BatchSize:       f.BatchSize,
		SpeedFactor:     f.SpeedFactor,
		TopK:            f.TopK,
		TopP:            f.TopP,
		Temperature:     f.Temperature,
		SovitsPath:      f.SovitsPath,
		GPTPath:         f.GPTPath,
	}
}
