package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/mattsolo1/grove-voice/pkg/models"
)

// Session returns the session-wide task map keyed by UUID.
func (c *Client) Session(ctx context.Context) (models.Session, error) {
	out := models.Session{}
	if err := c.doJSON(ctx, http.MethodGet, "/session", nil, nil, &out); err != nil {
		return nil, err
	}
	for id, t := range out {
		if t.UUID == "" {
			t.UUID = id
			out[id] = t
		}
	}
	return out, nil
}

func (c *Client) start(ctx context.Context, path string, body any) (string, error) {
	var out models.StartResponse
	if err := c.doJSON(ctx, http.MethodPost, path, nil, body, &out); err != nil {
		return "", err
	}
	if out.UUID == "" {
		return "", fmt.Errorf("start %s: backend returned no task uuid", path)
	}
	return out.UUID, nil
}

// StartEaseVoice starts the one-click pipeline for a project directory.
func (c *Client) StartEaseVoice(ctx context.Context, req models.EaseVoiceRequest) (string, error) {
	return c.start(ctx, "/easevoice/start", req)
}

// StartUVR5 starts vocal extraction.
func (c *Client) StartUVR5(ctx context.Context, req models.UVR5Request) (string, error) {
	return c.start(ctx, "/audio/uvr5/start", req)
}

// StartSlicer starts audio slicing.
func (c *Client) StartSlicer(ctx context.Context, req models.SlicerRequest) (string, error) {
	return c.start(ctx, "/audio/slicer/start", req)
}

// StartDenoise starts denoising.
func (c *Client) StartDenoise(ctx context.Context, req models.DenoiseRequest) (string, error) {
	return c.start(ctx, "/audio/denoise/start", req)
}

// StartASR starts transcription.
func (c *Client) StartASR(ctx context.Context, req models.ASRRequest) (string, error) {
	return c.start(ctx, "/audio/asr/start", req)
}

// StartNormalize starts dataset normalization.
func (c *Client) StartNormalize(ctx context.Context, req models.NormalizeRequest) (string, error) {
	return c.start(ctx, "/normalize/start", req)
}

// StartSovitsTraining starts the SoVITS training stage.
func (c *Client) StartSovitsTraining(ctx context.Context, req models.SovitsTrainRequest) (string, error) {
	return c.start(ctx, "/train/sovits/start", req)
}

// StartGPTTraining starts the GPT training stage.
func (c *Client) StartGPTTraining(ctx context.Context, req models.GPTTrainRequest) (string, error) {
	return c.start(ctx, "/train/gpt/start", req)
}

type refinementList struct {
	Items []models.RefinementItem `json:"items"`
}

// ListRefinements returns the transcripts produced for inputDir.
func (c *Client) ListRefinements(ctx context.Context, inputDir, outputDir string) ([]models.RefinementItem, error) {
	var out refinementList
	q := url.Values{"input_dir": {inputDir}, "output_dir": {outputDir}}
	if err := c.doJSON(ctx, http.MethodGet, "/audio/refinement", q, nil, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

// UpdateRefinement replaces the transcript of one source file.
func (c *Client) UpdateRefinement(ctx context.Context, req models.RefinementRequest) error {
	return c.doJSON(ctx, http.MethodPost, "/audio/refinement", nil, req, nil)
}

// DeleteRefinement drops one source file from the transcript list.
func (c *Client) DeleteRefinement(ctx context.Context, req models.RefinementRequest) error {
	return c.doJSON(ctx, http.MethodDelete, "/audio/refinement", nil, req, nil)
}

// ReloadRefinements re-reads the transcript files from disk.
func (c *Client) ReloadRefinements(ctx context.Context, inputDir, outputDir string) ([]models.RefinementItem, error) {
	var out refinementList
	body := models.RefinementRequest{InputDir: inputDir, OutputDir: outputDir}
	if err := c.doJSON(ctx, http.MethodPost, "/audio/refinement/reload", nil, body, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

// VoiceCloneModels lists trained models available under projectDir.
func (c *Client) VoiceCloneModels(ctx context.Context, projectDir string) (*models.VoiceCloneModels, error) {
	var out models.VoiceCloneModels
	q := url.Values{"project_dir": {projectDir}}
	if err := c.doJSON(ctx, http.MethodGet, "/voiceclone/models", q, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Clone synthesises speech and returns the WAV bytes.
func (c *Client) Clone(ctx context.Context, req models.VoiceCloneRequest) ([]byte, error) {
	data, err := c.doBytes(ctx, http.MethodPost, "/voiceclone/clone", nil, req)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("voice clone returned no audio")
	}
	return data, nil
}
